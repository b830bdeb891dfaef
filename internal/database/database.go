package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"staytoken/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the sqlite-backed store for all protocol state.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Таблица бронирований
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_id INTEGER NOT NULL DEFAULT 0,
            owner TEXT NOT NULL,
            total_amount INTEGER NOT NULL,
            base_rate INTEGER NOT NULL,
            minimum_deposit INTEGER NOT NULL,
            room_count INTEGER NOT NULL DEFAULT 1,
            extra_count INTEGER NOT NULL DEFAULT 0,
            check_in DATETIME NOT NULL,
            check_out DATETIME NOT NULL,
            trade_time_limit_hours INTEGER NOT NULL DEFAULT 0,
            tradeable BOOLEAN NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'booked',
            reference_id TEXT NOT NULL,
            metadata_uri TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// Реестры владения: одна строка на юнит в реестре
		`CREATE TABLE IF NOT EXISTS units (
            registry_id TEXT NOT NULL,
            unit_id INTEGER NOT NULL,
            owner TEXT NOT NULL,
            metadata_uri TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (registry_id, unit_id)
        )`,

		`CREATE TABLE IF NOT EXISTS listings (
            unit_id INTEGER PRIMARY KEY,
            seller TEXT NOT NULL,
            price INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS royalty_fixed (
            role TEXT PRIMARY KEY,
            recipient TEXT NOT NULL,
            fraction_bps INTEGER NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS royalty_other (
            position INTEGER PRIMARY KEY AUTOINCREMENT,
            recipient TEXT NOT NULL,
            fraction_bps INTEGER NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS royalty_snapshots (
            unit_id INTEGER PRIMARY KEY,
            first_owner TEXT NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS roles (
            capability TEXT NOT NULL,
            address TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (capability, address)
        )`,

		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            reference_id TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT '',
            start_time DATETIME NOT NULL,
            end_time DATETIME NOT NULL,
            ticket_capacity INTEGER NOT NULL,
            tickets_issued INTEGER NOT NULL DEFAULT 0,
            trade_time_limit_hours INTEGER NOT NULL DEFAULT 0,
            registry_id TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS config (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,

		`CREATE TABLE IF NOT EXISTS journal (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            payload BLOB,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_owner ON bookings(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_units_owner ON units(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_units_unit ON units(unit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_type ON journal(type)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetConfig upserts one configuration value.
func (db *DB) SetConfig(ctx context.Context, key, value string) error {
	query := `INSERT INTO config (key, value) VALUES (?, ?)
              ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// GetConfig returns a configuration value; empty string when unset.
func (db *DB) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// AppendJournal persists one emitted record.
func (db *DB) AppendJournal(ctx context.Context, rec *models.JournalRecord) error {
	query := `INSERT INTO journal (id, type, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, rec.ID, rec.Type, rec.Payload, rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}
	return nil
}

// ListJournal returns the most recent records, newest first.
func (db *DB) ListJournal(ctx context.Context, limit int) ([]*models.JournalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, type, payload, created_at FROM journal ORDER BY created_at DESC, id LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var records []*models.JournalRecord
	for rows.Next() {
		var rec models.JournalRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (db *DB) Close() error {
	return db.DB.Close()
}
