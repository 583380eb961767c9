package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"github.com/waygate/waygate/internal/common/apperrors"
	"github.com/waygate/waygate/internal/gateway/config"
	"github.com/waygate/waygate/internal/gateway/credstore"
	"github.com/waygate/waygate/internal/gateway/eventbus"
	"github.com/waygate/waygate/internal/gateway/protocol"
	"github.com/waygate/waygate/internal/gateway/qrcode"
	"github.com/waygate/waygate/pkg/api"
)

// Manager orchestrates the session lifecycle: it dials protocol clients,
// reacts to their events, supervises reconnects, and fans session events
// out to webhook dispatchers. It is the only writer of registry state.
type Manager struct {
	registry *Registry
	qrs      *QRCache
	bus      *eventbus.EventBus
	dialer   protocol.Dialer
	creds    credstore.Store
	encoder  qrcode.Encoder

	mu          sync.Mutex
	dispatchers map[string]*Dispatcher
}

// NewManager creates a manager wired to the given protocol dialer and
// credential store.
func NewManager(dialer protocol.Dialer, creds credstore.Store, encoder qrcode.Encoder) *Manager {
	return &Manager{
		registry:    NewRegistry(),
		qrs:         NewQRCache(),
		bus:         eventbus.New(),
		dialer:      dialer,
		creds:       creds,
		encoder:     encoder,
		dispatchers: make(map[string]*Dispatcher),
	}
}

var activeManager *Manager

// Init installs the process-wide manager instance.
func Init(dialer protocol.Dialer, creds credstore.Store, encoder qrcode.Encoder) {
	activeManager = NewManager(dialer, creds, encoder)
}

// ActiveManager returns the process-wide manager instance.
func ActiveManager() *Manager {
	return activeManager
}

// StartSession registers a new session and dials its protocol client.
// The session id must not already be registered. On a dial failure the
// registration is rolled back and the error surfaced to the caller.
func (m *Manager) StartSession(ctx context.Context, id string, webhookURL string) apperrors.Error {
	if err := m.registry.Create(id, webhookURL); err != nil {
		return err
	}

	if err := m.creds.SaveMeta(ctx, id, credstore.Meta{WebhookURL: webhookURL}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", id).Msg("unable to persist session metadata")
	}

	if webhookURL != "" {
		m.startDispatcher(id, webhookURL)
	}

	if err := m.dial(ctx, id); err != nil {
		m.teardown(id)
		return err
	}

	log.Ctx(ctx).Info().Str("session_id", id).Msg("session started")
	return nil
}

// StopSession logs the session out, removes it, and deletes its persisted
// credentials. Logout is best effort; teardown proceeds regardless.
// Idempotent: stopping an absent session still clears any persisted
// material and succeeds.
func (m *Manager) StopSession(ctx context.Context, id string) apperrors.Error {
	client, _, exists := m.registry.Client(id)

	if exists && client != nil {
		if err := client.Logout(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("session_id", id).Msg("logout failed during session stop")
		}
		client.Disconnect()
	}

	m.teardown(id)
	if err := m.creds.Delete(ctx, id); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", id).Msg("unable to delete stored credentials")
	}

	log.Ctx(ctx).Info().Str("session_id", id).Msg("session stopped")
	return nil
}

// recipientDomain completes bare phone-number recipients into full
// protocol addresses. Recipients already carrying a domain pass through
// untouched.
const recipientDomain = "@s.whatsapp.net"

func canonicalRecipient(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return to + recipientDomain
}

// SendText sends a text message through a connected session and returns
// the protocol message id.
func (m *Manager) SendText(ctx context.Context, id string, to string, text string) (string, apperrors.Error) {
	client, status, exists := m.registry.Client(id)
	if !exists || status != StatusConnected || client == nil {
		return "", ErrSessionNotConnected
	}

	msgID, err := client.SendText(ctx, canonicalRecipient(to), text)
	if err != nil {
		return "", ErrSendFailed.Err(err)
	}
	return msgID, nil
}

// Status returns the visible state of one session.
func (m *Manager) Status(id string) (Snapshot, apperrors.Error) {
	return m.registry.Snapshot(id)
}

// Sessions returns the visible state of all sessions.
func (m *Manager) Sessions() []Snapshot {
	return m.registry.List()
}

// QRCode returns the current pairing artifact for a session. Once the
// session connects the artifact is gone.
func (m *Manager) QRCode(id string) (string, apperrors.Error) {
	if _, err := m.registry.Snapshot(id); err != nil {
		return "", err
	}
	artifact, ok := m.qrs.Get(id)
	if !ok {
		return "", ErrNoPairingArtifact
	}
	return artifact, nil
}

// RestoreSessions re-registers every session with persisted credentials
// and dials each one. A session whose dial fails is left in the
// disconnected state with a reconnect supervisor running, so transient
// failures at boot heal on their own.
func (m *Manager) RestoreSessions(ctx context.Context) {
	ids, err := m.creds.List(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to list stored sessions")
		return
	}

	for _, id := range ids {
		meta, _, err := m.creds.LoadMeta(ctx, id)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("session_id", id).Msg("unable to load session metadata, skipping restore")
			continue
		}
		if cerr := m.registry.Create(id, meta.WebhookURL); cerr != nil {
			continue
		}
		if meta.WebhookURL != "" {
			m.startDispatcher(id, meta.WebhookURL)
		}

		if derr := m.dial(ctx, id); derr != nil {
			log.Ctx(ctx).Warn().Err(derr).Str("session_id", id).Msg("restore dial failed, scheduling reconnect")
			m.registry.update(id, 0, func(s *Session) {
				s.Status = StatusDisconnected
			})
			m.scheduleReconnect(id)
			continue
		}
		log.Ctx(ctx).Info().Str("session_id", id).Msg("session restored")
	}
}

// Shutdown disconnects every client without logging out and stops all
// dispatchers. Credentials stay persisted for the next restore.
func (m *Manager) Shutdown() {
	for _, snap := range m.registry.List() {
		client, _, _ := m.registry.Client(snap.SessionID)
		m.registry.Remove(snap.SessionID)
		if client != nil {
			client.Disconnect()
		}
		m.stopDispatcher(snap.SessionID)
	}
	m.bus.Shutdown()
}

// dial claims a dial for the session, constructs a protocol client with
// handlers bound to the claimed generation, and attaches it.
func (m *Manager) dial(ctx context.Context, id string) apperrors.Error {
	generation, ok := m.registry.claimDial(id)
	if !ok {
		return ErrSessionNotFound
	}

	blob, _, err := m.creds.Load(ctx, id)
	if err != nil {
		return ErrStartFailed.Err(err)
	}

	handlers := protocol.Handlers{
		OnPairing: func(token string) {
			m.handlePairing(id, generation, token)
		},
		OnCredentials: func(credentials []byte) {
			m.handleCredentials(id, credentials)
		},
		OnConnectionState: func(state protocol.ConnState) {
			if state.Open {
				m.handleOpen(id, generation, state.Phone)
			} else {
				m.handleClose(id, generation, state.Reason)
			}
		},
		OnMessage: func(raw []byte) {
			m.handleInboundMessage(id, generation, raw)
		},
	}

	client, derr := m.dialer.Dial(ctx, blob, handlers)
	if derr != nil {
		return ErrStartFailed.Err(derr)
	}
	if !m.registry.attachClient(id, generation, client) {
		// claim superseded or session removed while dialing
		client.Disconnect()
		return ErrSessionNotFound
	}
	return nil
}

// handlePairing encodes a fresh pairing token, caches it, and notifies the
// webhook. Each new token replaces the previous one.
func (m *Manager) handlePairing(id string, generation uint64, token string) {
	if !m.registry.update(id, generation, func(*Session) {}) {
		return
	}

	artifact, err := m.encoder.EncodeDataURL(token)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("unable to encode pairing token")
		return
	}
	m.qrs.Put(id, artifact)
	m.publish(id, api.WebhookEvent{
		Type:      api.EventQRCode,
		SessionID: id,
		QRCode:    artifact,
	})
	log.Debug().Str("session_id", id).Msg("pairing token issued")
}

// handleCredentials persists updated credential material. The callback is
// synchronous: the blob is durable before the client proceeds.
func (m *Manager) handleCredentials(id string, credentials []byte) {
	if err := m.creds.Save(context.Background(), id, credentials); err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("unable to persist credentials")
	}
}

// handleOpen marks the session connected, clears the pairing artifact, and
// notifies the webhook.
func (m *Manager) handleOpen(id string, generation uint64, phone string) {
	ok := m.registry.update(id, generation, func(s *Session) {
		s.Status = StatusConnected
		s.Phone = phone
	})
	if !ok {
		return
	}
	m.qrs.Clear(id)
	m.publish(id, api.WebhookEvent{
		Type:      api.EventConnected,
		SessionID: id,
		Phone:     phone,
	})
	log.Info().Str("session_id", id).Str("phone", phone).Msg("session connected")
}

// handleClose reacts to a dropped connection. A terminal close removes the
// session outright; any other close marks it disconnected and hands it to
// the reconnect supervisor.
func (m *Manager) handleClose(id string, generation uint64, reason protocol.Reason) {
	if reason.Terminal() {
		if !m.registry.update(id, generation, func(*Session) {}) {
			return
		}
		log.Info().Str("session_id", id).Msg("session logged out remotely, removing")
		m.teardown(id)
		return
	}

	ok := m.registry.update(id, generation, func(s *Session) {
		s.Status = StatusDisconnected
	})
	if !ok {
		return
	}
	log.Warn().Str("session_id", id).Str("reason", reason.String()).Msg("connection lost, supervising reconnect")
	m.scheduleReconnect(id)
}

// handleInboundMessage normalizes an inbound protocol message and notifies
// the webhook. Messages the session sent itself are suppressed.
func (m *Manager) handleInboundMessage(id string, generation uint64, raw []byte) {
	if fromSelf(raw) {
		return
	}
	if !m.registry.update(id, generation, func(*Session) {}) {
		return
	}
	msg := Normalize(raw)
	m.publish(id, api.WebhookEvent{
		Type:      api.EventMessage,
		SessionID: id,
		Message:   &msg,
	})
}

// scheduleReconnect starts a supervisor goroutine that waits out the
// configured delay and then redials until the session connects, the
// attempt budget is exhausted, or the session stops being eligible.
func (m *Manager) scheduleReconnect(id string) {
	rctx, cancel := context.WithCancel(context.Background())
	if !m.registry.setReconnectCancel(id, cancel) {
		cancel()
		return
	}

	reconnect := config.Config().Reconnect
	go func() {
		select {
		case <-time.After(reconnect.GetDelay()):
		case <-rctx.Done():
			return
		}

		opts := []retry.Option{
			retry.Context(rctx),
			retry.Delay(reconnect.GetDelay()),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.Warn().Err(err).Str("session_id", id).Uint("attempt", n+1).Msg("reconnect attempt failed")
			}),
		}
		if reconnect.Backoff {
			opts = append(opts,
				retry.Attempts(reconnect.MaxAttempts),
				retry.DelayType(retry.BackOffDelay),
				retry.MaxDelay(reconnect.GetMaxDelay()),
			)
		} else {
			opts = append(opts,
				retry.Attempts(0),
				retry.DelayType(retry.FixedDelay),
			)
		}

		err := retry.Do(func() error {
			if !m.registry.reconnectEligible(id) {
				return retry.Unrecoverable(errors.New("session no longer eligible for reconnect"))
			}
			if derr := m.dial(rctx, id); derr != nil {
				m.registry.update(id, 0, func(s *Session) {
					s.Status = StatusDisconnected
				})
				return derr
			}
			return nil
		}, opts...)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("reconnect supervision ended without success")
		}
	}()
}

// publish puts a webhook event on the session's topic. Delivery is weak:
// if the dispatcher's buffer stays full past the publish timeout the event
// is dropped.
func (m *Manager) publish(id string, event api.WebhookEvent) {
	m.bus.Publish(sessionTopic(id, TopicWebhook), event, publishTimeout)
}

func (m *Manager) startDispatcher(id string, webhookURL string) {
	cfg := config.Config()
	d := NewDispatcher(m.bus, id, webhookURL, cfg.Webhook.GetTimeout(), cfg.Webhook.BufferSize)

	m.mu.Lock()
	m.dispatchers[id] = d
	m.mu.Unlock()
}

func (m *Manager) stopDispatcher(id string) {
	m.mu.Lock()
	d := m.dispatchers[id]
	delete(m.dispatchers, id)
	m.mu.Unlock()

	if d != nil {
		d.Stop()
	}
}

// teardown removes every trace of a session from the in-memory state:
// registry entry, reconnect supervisor, pairing artifact, dispatcher, and
// bus topics. Persisted credentials are untouched.
func (m *Manager) teardown(id string) {
	m.registry.Remove(id)
	m.qrs.Clear(id)
	m.stopDispatcher(id)
	m.bus.CloseAllForPattern(allSessionTopics(id))
}
