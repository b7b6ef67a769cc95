package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/store/journal"
)

func seeded(t *testing.T) (*banking.Service, *repository.Store) {
	t.Helper()
	store, err := repository.Open(t.TempDir(), nil)
	require.NoError(t, err)

	j := journal.New(journal.NewNullPersister(), store.RawTables()...)
	svc := banking.New(store, j, banking.WithBcryptCost(bcrypt.MinCost))
	_, err = svc.Seed(context.Background())
	require.NoError(t, err)
	return svc, store
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, DatabaseTypeSQLite, cfg.Type)
	assert.NoError(t, cfg.Validate())

	cfg = Config{Type: DatabaseTypePostgres}
	cfg.ApplyDefaults()
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Error(t, cfg.Validate())

	cfg = Config{Type: "oracle"}
	assert.Error(t, cfg.Validate())
}

func TestExportToSQLite(t *testing.T) {
	ctx := context.Background()
	svc, store := seeded(t)

	customer, err := svc.User(ctx, 2)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, customer, 1, models.Money(150000))
	require.NoError(t, err)

	e, err := Open(ctx, Config{SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "export.db")}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	stats, err := e.Run(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Users)
	assert.Equal(t, 2, stats.Accounts)
	assert.Equal(t, 1, stats.Transactions)

	var acct AccountRow
	require.NoError(t, e.DB().First(&acct, "number = ?", "SB10001").Error)
	assert.EqualValues(t, 650000, acct.BalancePaise)

	var txn TransactionRow
	require.NoError(t, e.DB().First(&txn).Error)
	assert.Equal(t, "deposit", txn.Type)

	var manager UserRow
	require.NoError(t, e.DB().First(&manager, 4).Error)
	assert.Equal(t, "manager", manager.Role)
}

func TestExportReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	_, store := seeded(t)

	e, err := Open(ctx, Config{SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "export.db")}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Run(ctx, store)
	require.NoError(t, err)
	_, err = e.Run(ctx, store)
	require.NoError(t, err)

	var n int64
	require.NoError(t, e.DB().Model(&UserRow{}).Count(&n).Error)
	assert.EqualValues(t, 4, n)
}
