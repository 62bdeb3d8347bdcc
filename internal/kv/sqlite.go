package kv

import (
	"context"
	"database/sql"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/db"
)

// SQLite stores blobs in the kv table of ~/.forge/forge.db.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite initializes forge.db under baseDir and applies pool settings.
func OpenSQLite(baseDir string, cfg *config.Config) (*SQLite, error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, err
	}
	db.ConfigurePool(database, cfg)
	return &SQLite{db: database}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return db.GetValue(ctx, s.db, key)
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	return db.PutValue(ctx, s.db, key, value)
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	return db.DeleteValue(ctx, s.db, key)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
