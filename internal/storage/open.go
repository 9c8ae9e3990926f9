package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"taskhub/internal/config"
)

// Open открывает хранилище, выбранное в конфигурации
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ошибка создания каталога %s: %w", dir, err)
			}
		}
		return NewSQLiteStorage(cfg.SQLitePath)
	case config.StoreMongo:
		return NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTransactions)
	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Store)
	}
}
