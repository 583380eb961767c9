package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/waygate/waygate/internal/common/apperrors"
)

const (
	credsFileName = "creds.bin"
	metaFileName  = "meta.json"
)

// FileStore persists credentials under one directory per session:
// <dir>/<sessionID>/creds.bin and <dir>/<sessionID>/meta.json.
type FileStore struct {
	dir    string
	sealer *sealer
}

var _ Store = &FileStore{}

// NewFileStore creates a file-backed store rooted at dir. sealingKey is a
// hex-encoded 32-byte key enabling at-rest encryption; empty disables it.
func NewFileStore(dir string, sealingKey string) (*FileStore, apperrors.Error) {
	if dir == "" {
		return nil, ErrCredStore.Msg("sessions directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, ErrCredStore.MsgErr("unable to create sessions directory", err)
	}
	s, err := newSealer(sealingKey)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return nil, appErr
		}
		return nil, ErrCredStore.Err(err)
	}
	return &FileStore{dir: dir, sealer: s}, nil
}

func (f *FileStore) sessionDir(sessionID string) string {
	return filepath.Join(f.dir, sessionID)
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context, sessionID string) ([]byte, bool, apperrors.Error) {
	stored, err := os.ReadFile(filepath.Join(f.sessionDir(sessionID), credsFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, ErrCredStore.MsgErr("unable to read credentials", err)
	}
	blob, err := f.sealer.unseal(stored)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return nil, false, appErr
		}
		return nil, false, ErrUnseal.Err(err)
	}
	return blob, true, nil
}

// Save implements Store. The blob is written to a temp file and renamed so
// a crash mid-write never leaves a truncated credential file.
func (f *FileStore) Save(_ context.Context, sessionID string, blob []byte) apperrors.Error {
	dir := f.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return ErrCredStore.MsgErr("unable to create session directory", err)
	}
	sealed, err := f.sealer.seal(blob)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return appErr
		}
		return ErrCredStore.Err(err)
	}
	return writeFileAtomic(filepath.Join(dir, credsFileName), sealed)
}

// LoadMeta implements Store.
func (f *FileStore) LoadMeta(_ context.Context, sessionID string) (Meta, bool, apperrors.Error) {
	data, err := os.ReadFile(filepath.Join(f.sessionDir(sessionID), metaFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, false, nil
		}
		return Meta{}, false, ErrCredStore.MsgErr("unable to read session metadata", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, ErrCredStore.MsgErr("unable to parse session metadata", err)
	}
	return meta, true, nil
}

// SaveMeta implements Store.
func (f *FileStore) SaveMeta(_ context.Context, sessionID string, meta Meta) apperrors.Error {
	dir := f.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return ErrCredStore.MsgErr("unable to create session directory", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ErrCredStore.MsgErr("unable to encode session metadata", err)
	}
	return writeFileAtomic(filepath.Join(dir, metaFileName), data)
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, sessionID string) apperrors.Error {
	if err := os.RemoveAll(f.sessionDir(sessionID)); err != nil {
		return ErrCredStore.MsgErr("unable to remove session directory", err)
	}
	return nil
}

// List implements Store. Only sessions with a credential blob are listed;
// a directory holding only metadata was never paired.
func (f *FileStore) List(_ context.Context) ([]string, apperrors.Error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, ErrCredStore.MsgErr("unable to list sessions directory", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(f.dir, entry.Name(), credsFileName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) apperrors.Error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return ErrCredStore.MsgErr("unable to write file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return ErrCredStore.MsgErr("unable to replace file", err)
	}
	return nil
}
