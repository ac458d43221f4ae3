package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked-token:"

// RedisRevoker は失効したトークンIDを Redis に保存します。
// キーはトークン自身の有効期限が切れると自動で消えます。
type RedisRevoker struct {
	rdb *redis.Client
}

// NewRedisRevoker は RedisRevoker を作成します。
func NewRedisRevoker(rdb *redis.Client) *RedisRevoker {
	return &RedisRevoker{rdb: rdb}
}

// NewRedisRevokerFromURL は接続URLから RedisRevoker を作成します。
func NewRedisRevokerFromURL(redisURL string) (*RedisRevoker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisRevoker(redis.NewClient(opt)), nil
}

// Revoke はトークンIDを until まで失効扱いにします。
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("tokenID is required")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
}

// IsRevoked はトークンIDが失効済みかを返します。
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping は Redis への疎通を確認します。
func (r *RedisRevoker) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close は Redis クライアントを閉じます。
func (r *RedisRevoker) Close() error {
	return r.rdb.Close()
}

func revokedKey(id string) string {
	return revokedKeyPrefix + id
}
