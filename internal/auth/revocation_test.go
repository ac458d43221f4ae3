package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokedKey(t *testing.T) {
	assert.Equal(t, "revoked-token:abc", revokedKey("abc"))
}

func TestNewRedisRevokerFromURLRejectsBadURL(t *testing.T) {
	_, err := NewRedisRevokerFromURL("not a url")
	assert.Error(t, err)
}

// REDIS_TEST_URL が設定されているときだけ実際の Redis に対して動かす
func TestRedisRevokerIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_TEST_URL")
	if redisURL == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	r, err := NewRedisRevokerFromURL(redisURL)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	id := uuid.NewString()
	revoked, err := r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, id, time.Now().Add(time.Minute)))
	revoked, err = r.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)

	// 期限切れのトークンは記録しない
	expired := uuid.NewString()
	require.NoError(t, r.Revoke(ctx, expired, time.Now().Add(-time.Minute)))
	revoked, err = r.IsRevoked(ctx, expired)
	require.NoError(t, err)
	assert.False(t, revoked)
}
