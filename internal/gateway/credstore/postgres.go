package credstore

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/waygate/waygate/internal/common/apperrors"
)

// PostgresStore persists credentials in a single table, one row per
// session. Blobs go through the same sealer as the file backend so a
// database dump does not expose key material when sealing is enabled.
type PostgresStore struct {
	db     *sql.DB
	sealer *sealer
}

var _ Store = &PostgresStore{}

const credentialsSchema = `
CREATE TABLE IF NOT EXISTS waygate_credentials (
	session_id  TEXT PRIMARY KEY,
	credentials BYTEA,
	webhook_url TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore opens a connection pool for the given DSN and ensures
// the credentials table exists.
func NewPostgresStore(ctx context.Context, dsn string, sealingKey string) (*PostgresStore, apperrors.Error) {
	s, err := newSealer(sealingKey)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return nil, appErr
		}
		return nil, ErrCredStore.Err(err)
	}
	db, errStd := sql.Open("pgx", dsn)
	if errStd != nil {
		return nil, ErrCredStore.MsgErr("unable to open database", errStd)
	}
	if errStd := db.PingContext(ctx); errStd != nil {
		db.Close()
		return nil, ErrCredStore.MsgErr("unable to reach database", errStd)
	}
	if _, errStd := db.ExecContext(ctx, credentialsSchema); errStd != nil {
		db.Close()
		return nil, ErrCredStore.MsgErr("unable to create credentials table", errStd)
	}
	return &PostgresStore{db: db, sealer: s}, nil
}

// Load implements Store.
func (p *PostgresStore) Load(ctx context.Context, sessionID string) ([]byte, bool, apperrors.Error) {
	var stored []byte
	errStd := p.db.QueryRowContext(ctx,
		`SELECT credentials FROM waygate_credentials WHERE session_id = $1 AND credentials IS NOT NULL`,
		sessionID).Scan(&stored)
	if errStd != nil {
		if errors.Is(errStd, sql.ErrNoRows) {
			return nil, false, nil
		}
		log.Ctx(ctx).Error().Err(errStd).Msg("failed to load credentials")
		return nil, false, ErrCredStore.MsgErr("unable to load credentials", errStd)
	}
	blob, err := p.sealer.unseal(stored)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return nil, false, appErr
		}
		return nil, false, ErrUnseal.Err(err)
	}
	return blob, true, nil
}

// Save implements Store.
func (p *PostgresStore) Save(ctx context.Context, sessionID string, blob []byte) apperrors.Error {
	sealed, err := p.sealer.seal(blob)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return appErr
		}
		return ErrCredStore.Err(err)
	}
	_, errStd := p.db.ExecContext(ctx, `
		INSERT INTO waygate_credentials (session_id, credentials, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id)
		DO UPDATE SET credentials = EXCLUDED.credentials, updated_at = now()`,
		sessionID, sealed)
	if errStd != nil {
		log.Ctx(ctx).Error().Err(errStd).Msg("failed to save credentials")
		return ErrCredStore.MsgErr("unable to save credentials", errStd)
	}
	return nil
}

// LoadMeta implements Store.
func (p *PostgresStore) LoadMeta(ctx context.Context, sessionID string) (Meta, bool, apperrors.Error) {
	var meta Meta
	errStd := p.db.QueryRowContext(ctx,
		`SELECT webhook_url FROM waygate_credentials WHERE session_id = $1`,
		sessionID).Scan(&meta.WebhookURL)
	if errStd != nil {
		if errors.Is(errStd, sql.ErrNoRows) {
			return Meta{}, false, nil
		}
		return Meta{}, false, ErrCredStore.MsgErr("unable to load session metadata", errStd)
	}
	return meta, true, nil
}

// SaveMeta implements Store.
func (p *PostgresStore) SaveMeta(ctx context.Context, sessionID string, meta Meta) apperrors.Error {
	_, errStd := p.db.ExecContext(ctx, `
		INSERT INTO waygate_credentials (session_id, webhook_url, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id)
		DO UPDATE SET webhook_url = EXCLUDED.webhook_url, updated_at = now()`,
		sessionID, meta.WebhookURL)
	if errStd != nil {
		return ErrCredStore.MsgErr("unable to save session metadata", errStd)
	}
	return nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, sessionID string) apperrors.Error {
	_, errStd := p.db.ExecContext(ctx,
		`DELETE FROM waygate_credentials WHERE session_id = $1`, sessionID)
	if errStd != nil {
		return ErrCredStore.MsgErr("unable to delete credentials", errStd)
	}
	return nil
}

// List implements Store.
func (p *PostgresStore) List(ctx context.Context) ([]string, apperrors.Error) {
	rows, errStd := p.db.QueryContext(ctx,
		`SELECT session_id FROM waygate_credentials WHERE credentials IS NOT NULL ORDER BY session_id`)
	if errStd != nil {
		return nil, ErrCredStore.MsgErr("unable to list credentials", errStd)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if errStd := rows.Scan(&id); errStd != nil {
			return nil, ErrCredStore.MsgErr("unable to scan credentials row", errStd)
		}
		ids = append(ids, id)
	}
	if errStd := rows.Err(); errStd != nil {
		return nil, ErrCredStore.MsgErr("unable to iterate credentials rows", errStd)
	}
	return ids, nil
}

// Close implements Store.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
