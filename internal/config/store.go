package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const settingsTable = "settings"

// Store persists settings as JSON values in a sqlite key/value table
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates if needed) the settings database at path
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure settings db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + settingsTable + ` (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored settings on top of the defaults
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	query, args, err := sq.Select("key", "value").
		From(settingsTable).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Assemble a JSON object from the rows and decode it over the defaults
	stored := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		stored[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if len(stored) > 0 {
		data, err := json.Marshal(stored)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	settings.Sanitize()
	return settings, nil
}

// Save writes every setting in a single transaction
func (s *Store) Save(ctx context.Context, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range fields {
		query, args, err := sq.Insert(settingsTable).
			Columns("key", "value").
			Values(key, string(value)).
			Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
			PlaceholderFormat(sq.Question).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Update loads the settings, sets one key and saves the result
func (s *Store) Update(ctx context.Context, key, value string) (*Settings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := settings.Set(key, value); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Reset removes every stored value so defaults apply again
func (s *Store) Reset(ctx context.Context) error {
	query, args, err := sq.Delete(settingsTable).PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}
