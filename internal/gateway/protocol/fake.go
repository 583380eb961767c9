package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FakeDialer is a Dialer test double. Each Dial hands out a new FakeClient
// and records it so tests can drive protocol events against the most
// recent connection attempt.
type FakeDialer struct {
	mu      sync.Mutex
	clients []*FakeClient

	// DialErr, when set, makes Dial fail without producing a client.
	DialErr error
}

// Dial implements Dialer.
func (d *FakeDialer) Dial(_ context.Context, credentials []byte, h Handlers) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	c := &FakeClient{
		handlers:    h,
		credentials: append([]byte(nil), credentials...),
	}
	d.clients = append(d.clients, c)
	return c, nil
}

// DialCount returns how many clients were handed out.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// Client returns the n-th client handed out, nil if none.
func (d *FakeDialer) Client(n int) *FakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 || n >= len(d.clients) {
		return nil
	}
	return d.clients[n]
}

// LastClient returns the most recently dialed client, nil if none.
func (d *FakeDialer) LastClient() *FakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

// SentMessage records one SendText call on a FakeClient.
type SentMessage struct {
	To   string
	Text string
}

// FakeClient is a Client test double. Tests fire protocol events through
// the Emit methods; the installed handlers run synchronously on the
// caller's goroutine.
type FakeClient struct {
	mu          sync.Mutex
	handlers    Handlers
	credentials []byte
	sent        []SentMessage
	sendSeq     int
	loggedOut   bool

	// SendErr, when set, makes SendText fail.
	SendErr error

	// LogoutErr, when set, makes Logout fail.
	LogoutErr error

	disconnected bool
}

// SendText implements Client.
func (c *FakeClient) SendText(_ context.Context, to string, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return "", c.SendErr
	}
	if c.loggedOut {
		return "", errors.New("client is logged out")
	}
	c.sendSeq++
	c.sent = append(c.sent, SentMessage{To: to, Text: text})
	return fmt.Sprintf("msg-%d", c.sendSeq), nil
}

// Logout implements Client.
func (c *FakeClient) Logout(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LogoutErr != nil {
		return c.LogoutErr
	}
	c.loggedOut = true
	return nil
}

// Disconnect implements Client.
func (c *FakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

// Sent returns a copy of the messages sent through this client.
func (c *FakeClient) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}

// LoggedOut reports whether Logout was called.
func (c *FakeClient) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// Disconnected reports whether Disconnect was called.
func (c *FakeClient) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Credentials returns the credential material the client was dialed with.
func (c *FakeClient) Credentials() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.credentials...)
}

// EmitPairing fires a pairing event.
func (c *FakeClient) EmitPairing(token string) {
	if h := c.handler().OnPairing; h != nil {
		h(token)
	}
}

// EmitCredentials fires a credential-update event.
func (c *FakeClient) EmitCredentials(credentials []byte) {
	if h := c.handler().OnCredentials; h != nil {
		h(credentials)
	}
}

// EmitOpen fires an open connection-state event.
func (c *FakeClient) EmitOpen(phone string) {
	if h := c.handler().OnConnectionState; h != nil {
		h(ConnState{Open: true, Phone: phone})
	}
}

// EmitClose fires a close connection-state event with the given reason.
func (c *FakeClient) EmitClose(reason Reason) {
	if h := c.handler().OnConnectionState; h != nil {
		h(ConnState{Open: false, Reason: reason})
	}
}

// EmitMessage fires an inbound-message event with the raw protocol payload.
func (c *FakeClient) EmitMessage(raw []byte) {
	if h := c.handler().OnMessage; h != nil {
		h(raw)
	}
}

func (c *FakeClient) handler() Handlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers
}
