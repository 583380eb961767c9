// Package credstore persists per-session credential material. The protocol
// client hands the gateway opaque credential blobs on every update; the
// store keeps the latest blob per session together with a small metadata
// record (the webhook URL) so sessions can be restored across restarts.
//
// Two backends exist: a file backend storing one directory per session, and
// a Postgres backend storing one row per session. Blobs in the file backend
// are snappy-compressed and, when a sealing key is configured, encrypted
// with XChaCha20-Poly1305.
package credstore

import (
	"context"
	"net/http"

	"github.com/waygate/waygate/internal/common/apperrors"
)

var (
	// ErrCredStore is the base error for credential store failures.
	ErrCredStore apperrors.Error = apperrors.New("credential store error").SetStatusCode(http.StatusInternalServerError)

	// ErrInvalidSealingKey is returned when the configured sealing key
	// cannot be parsed into a valid cipher key.
	ErrInvalidSealingKey apperrors.Error = ErrCredStore.New("invalid sealing key")

	// ErrUnseal is returned when a stored blob cannot be decrypted or
	// decompressed, typically after a sealing key change.
	ErrUnseal apperrors.Error = ErrCredStore.New("unable to unseal stored credentials")
)

// Meta is the per-session metadata stored alongside the credential blob.
type Meta struct {
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// Store is the credential store contract. Load and LoadMeta report absence
// through the boolean rather than an error; every other failure is an
// apperrors.Error.
type Store interface {
	// Load returns the latest credential blob for the session.
	Load(ctx context.Context, sessionID string) ([]byte, bool, apperrors.Error)

	// Save persists the credential blob, replacing any previous one.
	Save(ctx context.Context, sessionID string, blob []byte) apperrors.Error

	// LoadMeta returns the session metadata record.
	LoadMeta(ctx context.Context, sessionID string) (Meta, bool, apperrors.Error)

	// SaveMeta persists the session metadata record.
	SaveMeta(ctx context.Context, sessionID string, meta Meta) apperrors.Error

	// Delete removes all persisted material for the session. Deleting an
	// absent session is a no-op.
	Delete(ctx context.Context, sessionID string) apperrors.Error

	// List returns the session ids that have persisted material.
	List(ctx context.Context) ([]string, apperrors.Error)

	// Close releases backend resources.
	Close() error
}
