package credstore

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/golang/snappy"
	"golang.org/x/crypto/chacha20poly1305"
)

// sealer compresses and optionally encrypts credential blobs. A nil aead
// means compression only.
type sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// newSealer builds a sealer from a hex-encoded key. An empty key disables
// encryption; a non-empty key must decode to the XChaCha20-Poly1305 key
// size (32 bytes).
func newSealer(hexKey string) (*sealer, error) {
	if hexKey == "" {
		return &sealer{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, ErrInvalidSealingKey.Err(err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidSealingKey.Msg("sealing key must be 32 bytes")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidSealingKey.Err(err)
	}
	return &sealer{aead: aead}, nil
}

// seal compresses the blob and, when a key is configured, encrypts it with
// a random nonce prefixed to the ciphertext.
func (s *sealer) seal(blob []byte) ([]byte, error) {
	compressed := snappy.Encode(nil, blob)
	if s.aead == nil {
		return compressed, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, ErrCredStore.MsgErr("unable to generate nonce", err)
	}
	return s.aead.Seal(nonce, nonce, compressed, nil), nil
}

// unseal reverses seal.
func (s *sealer) unseal(stored []byte) ([]byte, error) {
	compressed := stored
	if s.aead != nil {
		if len(stored) < s.aead.NonceSize() {
			return nil, ErrUnseal.Msg("stored blob too short")
		}
		nonce, ciphertext := stored[:s.aead.NonceSize()], stored[s.aead.NonceSize():]
		var err error
		compressed, err = s.aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, ErrUnseal.Err(err)
		}
	}
	blob, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, ErrUnseal.Err(err)
	}
	return blob, nil
}
