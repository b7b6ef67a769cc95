//go:build integration

package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestExportToPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bankd_test"),
		tcpostgres.WithUsername("bankd_test"),
		tcpostgres.WithPassword("bankd_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "bankd_test",
			User:     "bankd_test",
			Password: "bankd_test",
		},
	}

	_, store := seeded(t)

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	stats, err := e.Run(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Users)

	// A second open finds the schema already migrated.
	again, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, again.Close())

	var n int64
	require.NoError(t, e.DB().Model(&AccountRow{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}
