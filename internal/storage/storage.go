// Package storage は library.Store の実装（MongoDB と SQL）を提供します。
package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/yourusername/wisdom-library/internal/config"
	"github.com/yourusername/wisdom-library/internal/library"
)

// Open は設定の STORE_DRIVER に応じたストアを開きます。
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (library.Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		store, err := NewMongoStore(ctx, MongoURI(cfg), cfg.DBName, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		store, err := NewSQLStore(cfg.StoreDriver, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.StoreDriver)
	}
}

func invalidID(id string) error {
	return fmt.Errorf("%w: %q", library.ErrInvalidID, id)
}
