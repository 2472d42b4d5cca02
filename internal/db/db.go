package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/onionskin/onion/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/onion.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.onion.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, "onion.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
// Migrations only add; existing records are never rewritten.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: the four collections and their secondary indexes.
	// seq is the canonical enumeration order; upserts keep it.
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS projects (
		  seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		  id              TEXT NOT NULL UNIQUE,
		  title           TEXT,
		  frame_rate      INTEGER NOT NULL,
		  num_onion_skins INTEGER NOT NULL,
		  demo            INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS scenes (
		  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		  id          TEXT NOT NULL UNIQUE,
		  project     TEXT NOT NULL,
		  image       TEXT,
		  description TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_scenes_project
		ON scenes(project, seq);

		CREATE TABLE IF NOT EXISTS frames (
		  seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		  id       TEXT NOT NULL UNIQUE,
		  project  TEXT NOT NULL,
		  scene    TEXT,
		  image    TEXT NOT NULL,
		  duration REAL
		);

		CREATE INDEX IF NOT EXISTS idx_frames_project
		ON frames(project, seq);

		CREATE INDEX IF NOT EXISTS idx_frames_scene
		ON frames(scene, seq)
		WHERE scene IS NOT NULL;

		CREATE TABLE IF NOT EXISTS settings (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: seed the example movies.
	if version < 2 {
		if err := seedDemos(db); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
