// Package export copies the bank tables into a relational database for
// reporting.
//
// Every run replaces the previous contents of the target tables inside one
// database transaction, so readers see either the old or the new export.
// Password hashes are never exported.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/repository"
)

const batchSize = 500

// Stats counts exported rows per table.
type Stats struct {
	Users        int
	Accounts     int
	Loans        int
	Feedback     int
	Transactions int
	Duration     time.Duration
}

// Exporter writes table contents to a SQL database.
type Exporter struct {
	db  *gorm.DB
	cfg Config
}

// Open connects to the target and prepares the schema: golang-migrate for
// PostgreSQL, AutoMigrate for SQLite.
func Open(ctx context.Context, cfg Config) (*Exporter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DatabaseTypePostgres:
		if err := runMigrations(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		dialector = postgres.Open(cfg.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == DatabaseTypeSQLite {
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	return &Exporter{db: db, cfg: cfg}, nil
}

// DB returns the underlying connection, for queries against the export.
func (e *Exporter) DB() *gorm.DB {
	return e.db
}

// Close releases the database connection.
func (e *Exporter) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Run reads every table of store and replaces the exported rows.
func (e *Exporter) Run(ctx context.Context, store *repository.Store) (stats Stats, err error) {
	start := time.Now()
	ctx, span := telemetry.StartStorageSpan(ctx, "export")
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	users, err := store.Users.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("read users: %w", err)
	}
	accounts, err := store.Accounts.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("read accounts: %w", err)
	}
	loans, err := store.Loans.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("read loans: %w", err)
	}
	feedback, err := store.Feedback.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("read feedback: %w", err)
	}
	txns, err := store.Transactions.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("read transactions: %w", err)
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children first.
		for _, m := range []any{&TransactionRow{}, &FeedbackRow{}, &LoanRow{}, &AccountRow{}, &UserRow{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		if err := insert(tx, users, userRow); err != nil {
			return err
		}
		if err := insert(tx, accounts, accountRow); err != nil {
			return err
		}
		if err := insert(tx, loans, loanRow); err != nil {
			return err
		}
		if err := insert(tx, feedback, feedbackRow); err != nil {
			return err
		}
		return insert(tx, txns, transactionRow)
	})
	if err != nil {
		return stats, err
	}

	stats = Stats{
		Users:        len(users),
		Accounts:     len(accounts),
		Loans:        len(loans),
		Feedback:     len(feedback),
		Transactions: len(txns),
		Duration:     time.Since(start),
	}
	logger.InfoCtx(ctx, "Export completed",
		"target", string(e.cfg.Type),
		"users", stats.Users,
		"accounts", stats.Accounts,
		"transactions", stats.Transactions,
		"duration", stats.Duration.String())
	return stats, nil
}

func insert[M any, R any](tx *gorm.DB, records []M, conv func(M) R) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]R, len(records))
	for i, r := range records {
		rows[i] = conv(r)
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("insert %T: %w", rows[0], err)
	}
	return nil
}
