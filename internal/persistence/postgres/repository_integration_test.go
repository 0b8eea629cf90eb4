//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/torhovland/segmentor/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("segmentor"),
		postgrescontainer.WithUsername("postgres_user"),
		postgrescontainer.WithPassword("password"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)
	require.NoError(t, repo.Migrate(ctx))
	// A second run must be a no-op.
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestRepositoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	start := time.Date(2023, time.June, 1, 14, 30, 0, 0, time.UTC)
	activities := []domain.StoredActivity{
		{ID: 9_100_000_001, Name: "Morning Ride", Time: start},
		{ID: 9_100_000_002, Name: "Evening Run", Time: start.Add(8 * time.Hour)},
	}

	for round := 0; round < 2; round++ {
		for _, a := range activities {
			require.NoError(t, repo.Upsert(ctx, a))
		}
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, repo.Upsert(ctx, domain.StoredActivity{ID: 9_100_000_001, Name: "Renamed Ride", Time: start.Add(time.Minute)}))

	stored, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, int64(9_100_000_002), stored[0].ID)
	require.Equal(t, "Renamed Ride", stored[1].Name)
	require.True(t, stored[1].Time.Equal(start.Add(time.Minute)))
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
