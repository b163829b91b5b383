package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed Registrar for local runs: one row per
// database/table pair, create-or-replace on re-registration.
type Store struct {
	db *sql.DB
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	database_name TEXT NOT NULL,
	table_name    TEXT NOT NULL,
	description   TEXT NOT NULL,
	location      TEXT NOT NULL,
	columns_json  TEXT NOT NULL,
	rules         TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	PRIMARY KEY (database_name, table_name)
)`

// OpenStore opens (and initializes if needed) a local catalog store.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type storedColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Comment    string `json:"comment"`
	SourceType string `json:"source_type"`
}

// Register writes the entry, replacing any prior registration of the same
// table. Column types are mapped to engine types up front so that a bad
// type fails registration instead of landing in the catalog.
func (s *Store) Register(ctx context.Context, e Entry) error {
	cols := make([]storedColumn, 0, len(e.Schema.Columns))
	for _, c := range e.Schema.Columns {
		mapped, err := MapColumnType(c.Type)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		cols = append(cols, storedColumn{
			Name:       c.Name,
			Type:       mapped,
			Comment:    c.Description,
			SourceType: c.Type,
		})
	}
	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO catalog_entries
		 (database_name, table_name, description, location, columns_json, rules, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Database,
		e.Table,
		TruncateDescription(e.Description),
		e.Location,
		string(colsJSON),
		e.Rules,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("register %s.%s: %w", e.Database, e.Table, err)
	}
	return nil
}
