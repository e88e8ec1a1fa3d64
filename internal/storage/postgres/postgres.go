// Package postgres persists the knowledge base in PostgreSQL through a pgx
// connection pool. The schema is managed with golang-migrate from embedded
// migration files.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/medsafe/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Backend implements kb.Backend on PostgreSQL.
type Backend struct {
	pool *pgxpool.Pool
}

// Connect migrates the schema, opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*Backend, error) {
	if err := Migrate(url); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Backend{pool: pool}, nil
}

// Migrate applies pending migrations. No pending migrations is not an error.
func Migrate(url string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(url))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// migrateURL rewrites a libpq URL to the scheme the pgx/v5 migrate driver
// registers.
func migrateURL(url string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return url
}

// Load reads every drug and fact.
func (b *Backend) Load(ctx context.Context) (model.Dataset, error) {
	var ds model.Dataset

	rows, err := b.pool.Query(ctx, `SELECT id, name, synonyms, warnings FROM drugs ORDER BY id`)
	if err != nil {
		return ds, fmt.Errorf("query drugs: %w", err)
	}
	ds.Drugs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Drug, error) {
		var d model.Drug
		err := row.Scan(&d.ID, &d.Name, &d.Synonyms, &d.Warnings)
		return d, err
	})
	if err != nil {
		return ds, fmt.Errorf("scan drugs: %w", err)
	}

	rows, err = b.pool.Query(ctx,
		`SELECT drugs, id, severity, description, updated_at FROM interaction_facts ORDER BY drugs`)
	if err != nil {
		return ds, fmt.Errorf("query facts: %w", err)
	}
	ds.Facts, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.FactRecord, error) {
		var rec model.FactRecord
		var severity string
		if err := row.Scan(&rec.Drugs, &rec.ID, &severity, &rec.Description, &rec.UpdatedAt); err != nil {
			return rec, err
		}
		rec.UpdatedAt = rec.UpdatedAt.UTC()
		sev, err := model.ParseSeverity(severity)
		rec.Severity = sev
		return rec, err
	})
	if err != nil {
		return ds, fmt.Errorf("scan facts: %w", err)
	}
	return ds, nil
}

// Save replaces the stored dataset in one transaction using COPY.
func (b *Backend) Save(ctx context.Context, ds model.Dataset) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE interaction_facts, drugs`); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"drugs"},
			[]string{"id", "name", "synonyms", "warnings"},
			pgx.CopyFromSlice(len(ds.Drugs), func(i int) ([]any, error) {
				d := ds.Drugs[i]
				synonyms := d.Synonyms
				if synonyms == nil {
					synonyms = []string{}
				}
				return []any{d.ID, d.Name, synonyms, d.Warnings}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy drugs: %w", err)
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"interaction_facts"},
			[]string{"drugs", "id", "severity", "description", "updated_at"},
			pgx.CopyFromSlice(len(ds.Facts), func(i int) ([]any, error) {
				f := ds.Facts[i]
				return []any{[]string(model.NewDrugSet(f.Drugs...)), f.ID, string(f.Severity), f.Description, f.UpdatedAt}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy facts: %w", err)
		}
		return nil
	})
}

// Ping checks the pool.
func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close closes the pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
