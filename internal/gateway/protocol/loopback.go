package protocol

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoopbackDialer is a self-contained driver for development and smoke
// testing. A dialed client walks the full lifecycle on its own: it emits
// one pairing token, then reports the connection open after a short delay.
// Sends succeed without leaving the process.
type LoopbackDialer struct {
	// PairingDelay is the time between dial and the connection opening.
	PairingDelay time.Duration
}

// NewLoopbackDialer creates a loopback dialer with a two second pairing
// window.
func NewLoopbackDialer() *LoopbackDialer {
	return &LoopbackDialer{PairingDelay: 2 * time.Second}
}

func (d *LoopbackDialer) Dial(_ context.Context, credentials []byte, h Handlers) (Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &loopbackClient{cancel: cancel}

	go func() {
		if h.OnPairing != nil {
			h.OnPairing("loopback:" + uuid.NewString())
		}
		select {
		case <-time.After(d.PairingDelay):
		case <-ctx.Done():
			return
		}
		if len(credentials) == 0 && h.OnCredentials != nil {
			h.OnCredentials([]byte(`{"driver":"loopback","linked":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
		}
		if h.OnConnectionState != nil {
			h.OnConnectionState(ConnState{Open: true, Phone: "loopback"})
		}
	}()

	return c, nil
}

type loopbackClient struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (c *loopbackClient) SendText(_ context.Context, to string, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", context.Canceled
	}
	return uuid.NewString(), nil
}

func (c *loopbackClient) Logout(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
	return nil
}

func (c *loopbackClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
}
