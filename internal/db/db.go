package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	_ "modernc.org/sqlite"
)

// migrations[i] moves the schema from user_version i to i+1. Append only.
var migrations = [...]string{
	`CREATE TABLE IF NOT EXISTS kv (
	  key        TEXT PRIMARY KEY,
	  value      BLOB NOT NULL,
	  updated_at INTEGER NOT NULL
	);`,
}

// CurrentSchemaVersion is the user_version a fully migrated forge.db reports.
const CurrentSchemaVersion = len(migrations)

// busy_timeout and WAL are set per connection through the DSN so every
// pooled connection gets them.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Init opens forge.db under baseDir, creating baseDir and its exports
// directory owner-only, and brings the schema up to CurrentSchemaVersion.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, "exports")} {
		if err := privateDir(dir); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(baseDir, "forge.db")
	database, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := requireWAL(database); err != nil {
		database.Close()
		return nil, err
	}
	if err := migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0600)
	return database, nil
}

// privateDir creates dir with 0700. The chmod covers directories that
// already existed with wider permissions; it is ignored where unsupported.
func privateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool caps open and idle connections. Zero leaves the
// database/sql default in place.
func ConfigurePool(database *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if n := cfg.DBMaxOpenConns; n > 0 {
		database.SetMaxOpenConns(n)
	}
	if n := cfg.DBMaxIdleConns; n > 0 {
		database.SetMaxIdleConns(n)
	}
}

func migrate(database *sql.DB) error {
	version, err := GetUserVersion(database)
	if err != nil {
		return err
	}
	for v := version; v < len(migrations); v++ {
		if _, err := database.Exec(migrations[v]); err != nil {
			return fmt.Errorf("schema %d -> %d: %w", v, v+1, err)
		}
		if err := SetUserVersion(database, v+1); err != nil {
			return err
		}
	}
	return nil
}

func requireWAL(database *sql.DB) error {
	var mode string
	if err := database.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("read journal_mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal_mode is %q, want wal", mode)
	}
	return nil
}

// GetUserVersion reads PRAGMA user_version.
func GetUserVersion(database *sql.DB) (int, error) {
	var version int
	if err := database.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion writes PRAGMA user_version.
func SetUserVersion(database *sql.DB, version int) error {
	if _, err := database.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}
