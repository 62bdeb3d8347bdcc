package db

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, "forge.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	exportsDir := filepath.Join(tmpDir, "exports")
	info, err := os.Stat(exportsDir)
	if os.IsNotExist(err) {
		t.Errorf("exports directory not created at %s", exportsDir)
	} else if !info.IsDir() {
		t.Errorf("exports path is not a directory")
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&tableName)
	if err != nil {
		t.Fatalf("kv table not found: %v", err)
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "nested", "path", ".forge")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	if err := PutValue(context.Background(), db1, "k", []byte("v")); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}

	got, found, err := GetValue(context.Background(), db2, "k")
	if err != nil || !found || string(got) != "v" {
		t.Errorf("GetValue() = %q, %v, %v; want v, true, nil", got, found, err)
	}
}

func TestKVQueries(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	if _, found, err := GetValue(ctx, db, "missing"); err != nil || found {
		t.Fatalf("GetValue(missing) found=%v err=%v", found, err)
	}

	if err := PutValue(ctx, db, "saves", []byte("one")); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	if err := PutValue(ctx, db, "saves", []byte("two")); err != nil {
		t.Fatalf("PutValue() overwrite error = %v", err)
	}
	got, found, err := GetValue(ctx, db, "saves")
	if err != nil || !found {
		t.Fatalf("GetValue() found=%v err=%v", found, err)
	}
	if string(got) != "two" {
		t.Errorf("GetValue() = %q, want two", got)
	}

	if err := DeleteValue(ctx, db, "saves"); err != nil {
		t.Fatalf("DeleteValue() error = %v", err)
	}
	if err := DeleteValue(ctx, db, "saves"); err != nil {
		t.Fatalf("DeleteValue() twice error = %v", err)
	}
	if _, found, _ := GetValue(ctx, db, "saves"); found {
		t.Error("value still present after delete")
	}
}

func TestUserVersion(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := SetUserVersion(db, 99); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != 99 {
		t.Errorf("user_version = %d, want 99", version)
	}
}

func TestInit_ReappliesMigrationsFromVersionZero(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := PutValue(context.Background(), db1, "k", []byte("v")); err != nil {
		t.Fatalf("PutValue() error = %v", err)
	}
	if err := SetUserVersion(db1, 0); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() over version 0 error = %v", err)
	}
	defer db2.Close()

	if version, _ := GetUserVersion(db2); version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
	if got, found, err := GetValue(context.Background(), db2, "k"); err != nil || !found || string(got) != "v" {
		t.Errorf("GetValue() = %q, %v, %v; want v, true, nil", got, found, err)
	}
}

func TestInit_TightensDirectoryPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	baseDir := filepath.Join(t.TempDir(), ".forge")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		t.Fatal(err)
	}

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	for _, dir := range []string{baseDir, filepath.Join(baseDir, "exports")} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s mode = %o, want 700", dir, perm)
		}
	}
}
