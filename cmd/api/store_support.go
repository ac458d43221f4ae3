package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/wisdom-library/internal/auth"
	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
	"github.com/yourusername/wisdom-library/internal/storage"
)

// dependencies はハンドラーが使う長寿命の依存をまとめたものです。
type dependencies struct {
	store       library.Store
	revoker     *auth.RedisRevoker
	authManager *auth.Manager
	service     *library.Service
}

func setupDependencies(ctx context.Context, cfg *config.Config, logger *log.Logger) (*dependencies, error) {
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		// 起動は続ける。/health が 503 を返す
		logger.Printf("store ping failed: %v", err)
	}

	// REDIS_URL があればログアウト時の失効リストを有効にする
	var revoker *auth.RedisRevoker
	if cfg.RedisURL != "" {
		revoker, err = auth.NewRedisRevokerFromURL(cfg.RedisURL)
		if err != nil {
			_ = store.Close(context.Background())
			return nil, err
		}
		if err := revoker.Ping(ctx); err != nil {
			logger.Printf("redis ping failed: %v", err)
		}
	}

	return newDependencies(store, revoker, cfg, logger)
}

func newDependencies(store library.Store, revoker *auth.RedisRevoker, cfg *config.Config, logger *log.Logger) (*dependencies, error) {
	service, err := library.NewService(store, logger)
	if err != nil {
		return nil, err
	}

	// nil の *RedisRevoker をそのまま Revoker に入れると nil 判定が効かない
	var r auth.Revoker
	if revoker != nil {
		r = revoker
	}
	authManager := auth.NewManager(cfg, r, logger)

	return &dependencies{
		store:       store,
		revoker:     revoker,
		authManager: authManager,
		service:     service,
	}, nil
}

// Close はストアと Redis の接続を閉じます。
func (d *dependencies) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.store.Close(ctx); err != nil {
		log.Printf("failed to close store: %v", err)
	}
	if d.revoker != nil {
		if err := d.revoker.Close(); err != nil {
			log.Printf("failed to close redis: %v", err)
		}
	}
}
