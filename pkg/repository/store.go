package repository

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/journal"
	"github.com/marmos91/bankd/pkg/store/lock"
	"github.com/marmos91/bankd/pkg/store/record"
)

// Table file names inside the data directory.
const (
	UsersFile        = "users.dat"
	AccountsFile     = "accounts.dat"
	LoansFile        = "loans.dat"
	FeedbackFile     = "feedback.dat"
	TransactionsFile = "transactions.dat"
)

// TableHandle is the byte-level view of one table, used by journal
// recovery, backups and exports.
type TableHandle interface {
	journal.RawTable
	Path() string
	RecordSize() int
	Len(ctx context.Context) (int64, error)
	ReadRawAt(ctx context.Context, pos int64) ([]byte, error)
	Snapshot(ctx context.Context, w io.Writer) (int64, error)
}

// Store opens the five bank tables of one data directory with a shared lock
// manager.
type Store struct {
	dir   string
	locks *lock.Manager

	Users        *UserRepository
	Accounts     *AccountRepository
	Loans        *LoanRepository
	Feedback     *FeedbackRepository
	Transactions *TransactionRepository

	handles []TableHandle
}

// Open opens the tables under dir, creating the directory if needed. Table
// files themselves appear on first write. A nil lock manager gets a private
// one.
func Open(dir string, locks *lock.Manager) (*Store, error) {
	if locks == nil {
		locks = lock.NewManager()
	}
	s := &Store{dir: dir, locks: locks}

	users, err := record.Open[models.User]("users", filepath.Join(dir, UsersFile), models.UserCodec{}, locks)
	if err != nil {
		return nil, fmt.Errorf("open users table: %w", err)
	}
	accounts, err := record.Open[models.Account]("accounts", filepath.Join(dir, AccountsFile), models.AccountCodec{}, locks)
	if err != nil {
		return nil, fmt.Errorf("open accounts table: %w", err)
	}
	loans, err := record.Open[models.Loan]("loans", filepath.Join(dir, LoansFile), models.LoanCodec{}, locks)
	if err != nil {
		return nil, fmt.Errorf("open loans table: %w", err)
	}
	feedback, err := record.Open[models.Feedback]("feedback", filepath.Join(dir, FeedbackFile), models.FeedbackCodec{}, locks)
	if err != nil {
		return nil, fmt.Errorf("open feedback table: %w", err)
	}
	txns, err := record.Open[models.Transaction]("transactions", filepath.Join(dir, TransactionsFile), models.TransactionCodec{}, locks)
	if err != nil {
		return nil, fmt.Errorf("open transactions table: %w", err)
	}

	s.Users = NewUserRepository(users)
	s.Accounts = NewAccountRepository(accounts)
	s.Loans = NewLoanRepository(loans)
	s.Feedback = NewFeedbackRepository(feedback)
	s.Transactions = NewTransactionRepository(txns)
	s.handles = []TableHandle{users, accounts, loans, feedback, txns}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Locks returns the shared lock manager.
func (s *Store) Locks() *lock.Manager {
	return s.locks
}

// Tables returns the byte-level handles of every table.
func (s *Store) Tables() []TableHandle {
	out := make([]TableHandle, len(s.handles))
	copy(out, s.handles)
	return out
}

// RawTables returns the tables as journal.RawTable for recovery.
func (s *Store) RawTables() []journal.RawTable {
	out := make([]journal.RawTable, len(s.handles))
	for i, h := range s.handles {
		out[i] = h
	}
	return out
}

// Empty reports whether the users table has no records.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	n, err := s.Users.Count(ctx)
	return n == 0, err
}

// Journaled is the set of repositories bound to one journal operation.
type Journaled struct {
	Users        *UserRepository
	Accounts     *AccountRepository
	Loans        *LoanRepository
	Transactions *TransactionRepository
}

// WithRecorder returns repositories whose writes are reported to rec.
func (s *Store) WithRecorder(rec Recorder) Journaled {
	return Journaled{
		Users:        s.Users.Journaled(rec),
		Accounts:     s.Accounts.Journaled(rec),
		Loans:        s.Loans.Journaled(rec),
		Transactions: s.Transactions.Journaled(rec),
	}
}
