package middleware

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// EncryptedContextKey holds the ciphertext inside the opaque envelope.
const EncryptedContextKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// keyring seals with the active key and opens with any known key, newest first.
type keyring struct {
	seal cipher.AEAD
	open []cipher.AEAD
}

func newKeyring(config EncryptionConfig) (*keyring, error) {
	active, err := gcmFor(config.ActiveKey)
	if err != nil {
		return nil, err
	}
	ring := &keyring{seal: active, open: []cipher.AEAD{active}}
	for i, key := range config.FallbackKeys {
		aead, err := gcmFor(key)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		ring.open = append(ring.open, aead)
	}
	return ring, nil
}

func gcmFor(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealSnapshot prefixes the ciphertext with its random nonce.
func (r *keyring) sealSnapshot(plain []byte) ([]byte, error) {
	nonce := make([]byte, r.seal.NonceSize(), r.seal.NonceSize()+len(plain)+r.seal.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return r.seal.Seal(nonce, nonce, plain, nil), nil
}

func (r *keyring) openSnapshot(sealed []byte) ([]byte, error) {
	for _, aead := range r.open {
		n := aead.NonceSize()
		if len(sealed) < n {
			continue
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], nil); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("no configured key opens the snapshot")
}

type encryptionMiddleware struct {
	next ports.Serializer
	keys *keyring
}

// NewEncryptionMiddleware creates a middleware that encrypts snapshots using AES-GCM.
// The stored envelope keeps version, instance and variant readable so that key
// listing and version checks work without the key; step, path and context do not leak.
// It panics when the active key is not 32 bytes or a fallback key is unusable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	keys, err := newKeyring(config)
	if err != nil {
		panic(err)
	}
	return func(next ports.Serializer) ports.Serializer {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func (m *encryptionMiddleware) Marshal(state *domain.PersistedFlowState) (string, error) {
	inner, err := m.next.Marshal(state)
	if err != nil {
		return "", err
	}
	sealed, err := m.keys.sealSnapshot([]byte(inner))
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	envelope := &domain.PersistedFlowState{
		FlowState: domain.FlowState{
			StepID:  "encrypted",
			Status:  state.Status,
			Context: domain.Context{EncryptedContextKey: base64.StdEncoding.EncodeToString(sealed)},
		},
		Version:    state.Version,
		InstanceID: state.InstanceID,
		VariantID:  state.VariantID,
		SavedAt:    state.SavedAt,
	}
	return m.next.Marshal(envelope)
}

func (m *encryptionMiddleware) Unmarshal(data string) (*domain.PersistedFlowState, error) {
	envelope, err := m.next.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	// Plain snapshots are rejected once encryption is configured.
	encoded, ok := envelope.Context[EncryptedContextKey].(string)
	if !ok {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode sealed snapshot: %w", err)
	}
	inner, err := m.keys.openSnapshot(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}
	return m.next.Unmarshal(string(inner))
}
