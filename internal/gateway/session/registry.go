package session

import (
	"context"
	"sync"
	"time"

	"github.com/waygate/waygate/internal/common/apperrors"
	"github.com/waygate/waygate/internal/gateway/protocol"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusConnecting means a client exists but the connection is not
	// established yet; pairing may be in progress.
	StatusConnecting Status = "connecting"

	// StatusConnected means the session is linked and able to send.
	StatusConnected Status = "connected"

	// StatusDisconnected means the connection dropped for a retryable
	// reason and a reconnect is supervised.
	StatusDisconnected Status = "disconnected"

	// StatusLoggedOut means the identity was unlinked remotely. The state
	// is terminal; the session is removed as it is reached.
	StatusLoggedOut Status = "logged_out"
)

// Session is one registered identity and its live protocol client. All
// fields are guarded by the owning registry's lock; only snapshots leave
// the package.
type Session struct {
	ID         string
	Status     Status
	Phone      string
	LastSeen   time.Time
	WebhookURL string // immutable after creation

	client protocol.Client

	// generation increments each time a dial is claimed for this id; event
	// handlers carry the generation of the client that produced them so
	// callbacks from a replaced client can be recognized as stale.
	generation uint64

	// reconnectCancel stops the reconnect supervisor, if one is running.
	reconnectCancel context.CancelFunc
}

// Snapshot is the externally visible view of a session.
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Status    Status    `json:"status"`
	Phone     string    `json:"phone,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		SessionID: s.ID,
		Status:    s.Status,
		Phone:     s.Phone,
		LastSeen:  s.LastSeen,
	}
}

// Registry is the authoritative table of sessions. It is safe for
// concurrent use from HTTP handlers and protocol event callbacks; a single
// lock serializes structural changes and field mutation. No registry
// operation performs network I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session in the connecting state. Fails with
// ErrSessionExists if the id is already registered.
func (r *Registry) Create(id string, webhookURL string) apperrors.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return ErrSessionExists
	}
	r.sessions[id] = &Session{
		ID:         id,
		Status:     StatusConnecting,
		LastSeen:   time.Now().UTC(),
		WebhookURL: webhookURL,
	}
	return nil
}

// Remove deletes a session and cancels its reconnect supervisor. Removing
// an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, exists := r.sessions[id]; exists {
		if s.reconnectCancel != nil {
			s.reconnectCancel()
		}
		delete(r.sessions, id)
	}
}

// Snapshot returns the visible state of one session.
func (r *Registry) Snapshot(id string) (Snapshot, apperrors.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// List returns snapshots of all sessions.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshots = append(snapshots, s.snapshot())
	}
	return snapshots
}

// Client returns the live client handle and status for a session.
func (r *Registry) Client(id string) (protocol.Client, Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return nil, "", false
	}
	return s.client, s.Status, true
}

// WebhookURL returns the webhook destination for a session.
func (r *Registry) WebhookURL(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return "", false
	}
	return s.WebhookURL, true
}

// claimDial marks the session as connecting and allocates the generation
// for the client about to be dialed. Returns false if the id is not
// registered.
func (r *Registry) claimDial(id string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return 0, false
	}
	s.generation++
	s.Status = StatusConnecting
	s.LastSeen = time.Now().UTC()
	return s.generation, true
}

// attachClient installs the dialed client handle, unless the claim has
// been superseded in the meantime.
func (r *Registry) attachClient(id string, generation uint64, client protocol.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists || s.generation != generation {
		return false
	}
	s.client = client
	return true
}

// update runs fn on the session under the registry lock, provided the
// session exists and the event generation is current. A zero generation
// skips the staleness check.
func (r *Registry) update(id string, generation uint64, fn func(*Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return false
	}
	if generation != 0 && s.generation != generation {
		return false
	}
	fn(s)
	s.LastSeen = time.Now().UTC()
	return true
}

// setReconnectCancel stores the cancel function of the session's reconnect
// supervisor, cancelling any previous one.
func (r *Registry) setReconnectCancel(id string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	if !exists {
		return false
	}
	if s.reconnectCancel != nil {
		s.reconnectCancel()
	}
	s.reconnectCancel = cancel
	return true
}

// reconnectEligible reports whether a supervised reconnect may proceed:
// the session must still exist and still be waiting in the disconnected
// state. This is the guard that keeps a scheduled reconnect from
// resurrecting a session deleted in the meantime.
func (r *Registry) reconnectEligible(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[id]
	return exists && s.Status == StatusDisconnected
}
