// Package storage opens the tables and journal of a loaded configuration
// for the bankd commands that work on the data directory.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/marmos91/bankd/pkg/metrics"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/store/journal"
	"github.com/marmos91/bankd/pkg/store/lock"
)

// BadgerDir is the directory of the badger journal inside the data directory.
const BadgerDir = "journal.badger"

// Storage bundles an opened store with its journal.
type Storage struct {
	Store   *repository.Store
	Journal *journal.Journal
	Locks   *lock.Manager
}

// NewLockManager builds the lock manager for cfg. Lock metrics are
// registered when the metrics registry is initialized.
func NewLockManager(cfg config.StorageConfig) *lock.Manager {
	var opts []lock.Option
	if metrics.IsEnabled() {
		opts = append(opts, lock.WithMetrics(lock.NewMetrics(metrics.GetRegistry())))
	}
	if cfg.UseOSLocks() {
		if l := lock.NewOFDLocker(); l != nil {
			opts = append(opts, lock.WithOSLocker(l))
		}
	}
	return lock.NewManager(opts...)
}

// NewPersister opens the journal backend selected by cfg.
func NewPersister(cfg config.StorageConfig) (journal.Persister, error) {
	switch cfg.Journal {
	case config.JournalNone:
		return journal.NewNullPersister(), nil
	case config.JournalBadger:
		p, err := journal.NewBadgerPersister(filepath.Join(cfg.DataDir, BadgerDir))
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.JournalFile, "":
		p, err := journal.NewFilePersister(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Journal)
	}
}

// Open opens the store and journal under cfg.Storage.DataDir. It does not
// run recovery.
func Open(cfg *config.Config) (*Storage, error) {
	locks := NewLockManager(cfg.Storage)

	store, err := repository.Open(cfg.Storage.DataDir, locks)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	p, err := NewPersister(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Storage{
		Store:   store,
		Journal: journal.New(p, store.RawTables()...),
		Locks:   locks,
	}, nil
}

// Recover rolls back operations interrupted by a crash.
func (s *Storage) Recover(ctx context.Context) (journal.RecoveryReport, error) {
	report, err := s.Journal.Recover(ctx)
	if err != nil {
		return report, fmt.Errorf("journal recovery failed: %w", err)
	}
	if report.RolledBack > 0 {
		logger.WarnCtx(ctx, "Rolled back interrupted operations",
			"rolled_back", report.RolledBack, "images", report.Images, "skipped", report.Skipped)
	}
	if report.Conflicts > 0 {
		logger.ErrorCtx(ctx, "Interrupted writes could not be undone",
			"conflicts", report.Conflicts)
	}
	return report, nil
}

// Close releases the journal.
func (s *Storage) Close() error {
	return s.Journal.Close()
}
