package db

import (
	"context"
	"database/sql"
	"time"
)

// GetValue returns the blob stored under key. found is false when the key
// does not exist.
func GetValue(ctx context.Context, db *sql.DB, key string) (value []byte, found bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// PutValue stores value under key, replacing any existing blob.
func PutValue(ctx context.Context, db *sql.DB, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	return err
}

// DeleteValue removes key. Removing a missing key is not an error.
func DeleteValue(ctx context.Context, db *sql.DB, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}
