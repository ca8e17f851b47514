package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// dsnOptions enables foreign keys (hub → connection cascade), waits on locks
// instead of failing, and takes the write lock at BEGIN so read-modify-write
// transactions serialize.
const dsnOptions = "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"

// InitDB initializes the database connection. It takes the database path as input.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("connected to database")
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hubs (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL UNIQUE,
        owner_id TEXT NOT NULL,
        icon_url TEXT NOT NULL DEFAULT '',
        visibility TEXT NOT NULL DEFAULT 'private',
        settings INTEGER NOT NULL DEFAULT 0,
        appeal_cooldown INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL
    );`,
	`CREATE TABLE IF NOT EXISTS connections (
        id TEXT PRIMARY KEY,
        hub_id TEXT NOT NULL REFERENCES hubs(id) ON DELETE CASCADE,
        server_id TEXT NOT NULL,
        channel_id TEXT NOT NULL UNIQUE,
        parent_id TEXT NOT NULL DEFAULT '',
        webhook_url TEXT NOT NULL,
        connected INTEGER NOT NULL DEFAULT 1,
        compact INTEGER NOT NULL DEFAULT 0,
        profanity_filter INTEGER NOT NULL DEFAULT 1,
        embed_color INTEGER NOT NULL DEFAULT 0,
        last_active_at INTEGER NOT NULL,
        created_at INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_connections_hub_active ON connections(hub_id, last_active_at DESC);`,
	`CREATE TABLE IF NOT EXISTS original_messages (
        id TEXT PRIMARY KEY,
        hub_id TEXT NOT NULL,
        author_id TEXT NOT NULL,
        author_name TEXT NOT NULL DEFAULT '',
        avatar_url TEXT NOT NULL DEFAULT '',
        guild_id TEXT NOT NULL,
        guild_name TEXT NOT NULL DEFAULT '',
        channel_id TEXT NOT NULL,
        content TEXT NOT NULL,
        attachments TEXT NOT NULL DEFAULT '[]',
        reply_to_id TEXT NOT NULL DEFAULT '',
        reactions TEXT NOT NULL DEFAULT '{}',
        created_at INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_original_messages_created ON original_messages(created_at);`,
	`CREATE TABLE IF NOT EXISTS broadcast_messages (
        id TEXT PRIMARY KEY,
        original_id TEXT NOT NULL REFERENCES original_messages(id) ON DELETE CASCADE,
        channel_id TEXT NOT NULL,
        guild_id TEXT NOT NULL,
        mode TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_broadcast_messages_original ON broadcast_messages(original_id);`,
	`CREATE TABLE IF NOT EXISTS infractions (
        id TEXT PRIMARY KEY,
        target_id TEXT NOT NULL,
        target_type TEXT NOT NULL,
        hub_id TEXT NOT NULL,
        status TEXT NOT NULL,
        reason TEXT NOT NULL,
        moderator_id TEXT NOT NULL,
        created_at INTEGER NOT NULL,
        expires_at INTEGER,
        appealed_at INTEGER
    );`,
	`CREATE INDEX IF NOT EXISTS idx_infractions_target ON infractions(target_type, target_id, hub_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_infractions_expiry ON infractions(status, expires_at);`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
