// Package sqlite persists the knowledge base in an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Skufu/medsafe/internal/model"
)

// Backend implements kb.Backend on SQLite.
type Backend struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer at a time; the KB already serializes saves
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *Backend) migrate() error {
	_, err := b.db.Exec(`
	CREATE TABLE IF NOT EXISTS drugs (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		synonyms TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS facts (
		drugs       TEXT PRIMARY KEY,
		id          TEXT NOT NULL,
		severity    TEXT NOT NULL CHECK (severity IN ('safe', 'moderate', 'high')),
		description TEXT NOT NULL DEFAULT '',
		updated_at  TEXT NOT NULL
	);
	`)
	return err
}

// Load reads every drug and fact.
func (b *Backend) Load(ctx context.Context) (model.Dataset, error) {
	var ds model.Dataset

	rows, err := b.db.QueryContext(ctx, `SELECT id, name, synonyms, warnings FROM drugs ORDER BY id`)
	if err != nil {
		return ds, fmt.Errorf("query drugs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.Drug
		var synonyms string
		if err := rows.Scan(&d.ID, &d.Name, &synonyms, &d.Warnings); err != nil {
			return ds, fmt.Errorf("scan drug: %w", err)
		}
		if err := json.Unmarshal([]byte(synonyms), &d.Synonyms); err != nil {
			return ds, fmt.Errorf("decode synonyms of %s: %w", d.ID, err)
		}
		ds.Drugs = append(ds.Drugs, d)
	}
	if err := rows.Err(); err != nil {
		return ds, err
	}

	frows, err := b.db.QueryContext(ctx, `SELECT drugs, id, severity, description, updated_at FROM facts ORDER BY drugs`)
	if err != nil {
		return ds, fmt.Errorf("query facts: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var rec model.FactRecord
		var drugs, severity, updated string
		if err := frows.Scan(&drugs, &rec.ID, &severity, &rec.Description, &updated); err != nil {
			return ds, fmt.Errorf("scan fact: %w", err)
		}
		if err := json.Unmarshal([]byte(drugs), &rec.Drugs); err != nil {
			return ds, fmt.Errorf("decode fact drugs %s: %w", drugs, err)
		}
		if rec.Severity, err = model.ParseSeverity(severity); err != nil {
			return ds, fmt.Errorf("fact %s: %w", drugs, err)
		}
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return ds, fmt.Errorf("fact %s: parse updated_at: %w", drugs, err)
		}
		ds.Facts = append(ds.Facts, rec)
	}
	return ds, frows.Err()
}

// Save replaces the stored dataset in one transaction.
func (b *Backend) Save(ctx context.Context, ds model.Dataset) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts`); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drugs`); err != nil {
		return fmt.Errorf("clear drugs: %w", err)
	}

	for _, d := range ds.Drugs {
		synonyms, _ := json.Marshal(nonNil(d.Synonyms))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO drugs (id, name, synonyms, warnings) VALUES (?, ?, ?, ?)`,
			d.ID, d.Name, string(synonyms), d.Warnings); err != nil {
			return fmt.Errorf("insert drug %s: %w", d.ID, err)
		}
	}
	for _, f := range ds.Facts {
		drugs, _ := json.Marshal(model.NewDrugSet(f.Drugs...))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO facts (drugs, id, severity, description, updated_at) VALUES (?, ?, ?, ?, ?)`,
			string(drugs), f.ID, string(f.Severity), f.Description, f.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert fact %s: %w", drugs, err)
		}
	}
	return tx.Commit()
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
