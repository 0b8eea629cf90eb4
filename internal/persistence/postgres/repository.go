// Package postgres stores synchronised activities in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torhovland/segmentor/internal/domain"
	"github.com/torhovland/segmentor/internal/observability"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Repository provides Postgres-backed persistence for activities.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Migrate applies the embedded schema files in lexical order. Every statement is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// Upsert inserts the activity or overwrites name and time of the existing row.
// Concurrent upserts of the same id are serialised by the row lock taken by ON CONFLICT.
func (r *Repository) Upsert(ctx context.Context, activity domain.StoredActivity) error {
	const stmt = `INSERT INTO activities (id, name, time) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, time = EXCLUDED.time`

	if _, err := r.pool.Exec(ctx, stmt, activity.ID, activity.Name, activity.Time.UTC()); err != nil {
		return fmt.Errorf("upsert activity %d: %w", activity.ID, err)
	}
	observability.RecordActivityPersisted(r.now())
	return nil
}

// ListAll returns every stored activity.
func (r *Repository) ListAll(ctx context.Context) ([]domain.StoredActivity, error) {
	const query = `SELECT id, name, time FROM activities ORDER BY time DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	activities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StoredActivity, error) {
		var a domain.StoredActivity
		if err := row.Scan(&a.ID, &a.Name, &a.Time); err != nil {
			return domain.StoredActivity{}, err
		}
		a.Time = a.Time.UTC()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// Count returns the number of stored activities.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM activities`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping verifies connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
