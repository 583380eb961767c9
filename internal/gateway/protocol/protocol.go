// Package protocol defines the port to the external messaging network. The
// wire protocol itself (pairing, encryption, multi-device sync) lives
// behind the Client interface; the gateway only consumes its events and
// issues sends and logouts. One Client instance serves exactly one session.
package protocol

import (
	"context"
)

// Reason describes why a connection closed.
type Reason int

const (
	// ReasonUnknown covers closes with no usable cause attached.
	ReasonUnknown Reason = iota

	// ReasonNetworkLost indicates a transport-level drop.
	ReasonNetworkLost

	// ReasonStreamError indicates the remote endpoint ended the stream.
	ReasonStreamError

	// ReasonLoggedOut indicates the identity was explicitly unlinked on the
	// remote side. This is the only terminal close.
	ReasonLoggedOut
)

// Terminal reports whether the close permanently ends the session.
// Every reason other than an explicit logout is retryable.
func (r Reason) Terminal() bool {
	return r == ReasonLoggedOut
}

func (r Reason) String() string {
	switch r {
	case ReasonNetworkLost:
		return "network_lost"
	case ReasonStreamError:
		return "stream_error"
	case ReasonLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// ConnState is a connection-state event. Open carries the phone identity;
// a close carries the classification of its cause.
type ConnState struct {
	Open   bool
	Phone  string // populated on open
	Reason Reason // populated on close
}

// Handlers is the set of callbacks a session installs on its client.
// Callbacks are invoked from the client's event goroutine; handlers must
// not block on it. OnCredentials is the exception: it is called
// synchronously and its persistence side effect must complete before the
// client proceeds.
type Handlers struct {
	OnPairing         func(token string)
	OnCredentials     func(credentials []byte)
	OnConnectionState func(state ConnState)
	OnMessage         func(raw []byte)
}

// Client is one live connection to the messaging network.
type Client interface {
	// SendText sends a text message and returns the protocol message id.
	SendText(ctx context.Context, to string, text string) (string, error)

	// Logout unlinks the identity on the remote side. After a successful
	// logout the client is unusable.
	Logout(ctx context.Context) error

	// Disconnect tears down the connection without unlinking the identity.
	Disconnect()
}

// Dialer constructs a Client bound to the given credential material with
// the handlers installed before any event can fire. Connection
// establishment is asynchronous; Dial returns once the client exists.
type Dialer interface {
	Dial(ctx context.Context, credentials []byte, h Handlers) (Client, error)
}
