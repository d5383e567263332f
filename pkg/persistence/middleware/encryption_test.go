package middleware_test

import (
	"crypto/rand"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func newSnapshot(ctx domain.Context) *domain.PersistedFlowState {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.PersistedFlowState{
		FlowState: domain.FlowState{
			StepID:  "start",
			Context: ctx,
			Status:  domain.StatusActive,
			Path:    []domain.PathEntry{{StepID: "start", StartedAt: started}},
		},
		Version:    "2",
		InstanceID: "task-1",
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	base := persistence.JSONSerializer{}
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(base)

	data, err := secure.Marshal(newSnapshot(domain.Context{"secret": "my-secret-sauce"}))
	require.NoError(t, err)
	assert.NotContains(t, data, "my-secret-sauce")

	// The outer envelope is still a readable snapshot.
	stored, err := base.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.Version)
	assert.Equal(t, "task-1", stored.InstanceID)
	assert.Contains(t, stored.Context, middleware.EncryptedContextKey)
	assert.Empty(t, stored.Path)

	loaded, err := secure.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "start", loaded.StepID)
	assert.Equal(t, "my-secret-sauce", loaded.Context["secret"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	base := persistence.JSONSerializer{}
	oldKey := generateKey(t)
	newKey := generateKey(t)

	oldSecure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(base)
	newSecure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(base)

	data, err := oldSecure.Marshal(newSnapshot(domain.Context{"data": "encrypted-with-old-key"}))
	require.NoError(t, err)

	loaded, err := newSecure.Unmarshal(data)
	require.NoError(t, err, "fallback key should decrypt")
	assert.Equal(t, "encrypted-with-old-key", loaded.Context["data"])

	loaded.Context["data"] = "encrypted-with-new-key"
	data, err = newSecure.Marshal(loaded)
	require.NoError(t, err)

	_, err = oldSecure.Unmarshal(data)
	assert.Error(t, err, "old key alone cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainSnapshot(t *testing.T) {
	base := persistence.JSONSerializer{}
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(base)

	plain, err := base.Marshal(newSnapshot(domain.Context{}))
	require.NoError(t, err)

	_, err = secure.Unmarshal(plain)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "encrypted data envelope"))
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
