package repository

import (
	"context"
	"time"

	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/record"
)

// TransactionRepository stores ledger entries in transactions.dat.
// Transactions are append-only.
type TransactionRepository struct {
	table[models.Transaction]
}

// NewTransactionRepository wraps an open transactions table.
func NewTransactionRepository(t *record.Table[models.Transaction]) *TransactionRepository {
	return &TransactionRepository{
		table: newTable(t, func(x *models.Transaction) int32 { return x.ID }, "transaction"),
	}
}

// Journaled returns a view of the repository whose writes are reported to r.
func (r *TransactionRepository) Journaled(rec Recorder) *TransactionRepository {
	return &TransactionRepository{table: r.table.journaled(rec)}
}

// GetByID returns the transaction with id.
func (r *TransactionRepository) GetByID(ctx context.Context, id int32) (models.Transaction, error) {
	x, _, err := r.getByID(ctx, id)
	return x, err
}

// Add appends txn under the next id. A zero timestamp is set to now.
func (r *TransactionRepository) Add(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	return r.add(ctx, func(next int32, _ *models.Transaction) (models.Transaction, error) {
		txn.ID = next
		return txn, nil
	})
}

// AddAll appends txns under consecutive ids in one append, so either all
// of them are stored or none is. Zero timestamps are set to now.
func (r *TransactionRepository) AddAll(ctx context.Context, txns ...models.Transaction) ([]models.Transaction, error) {
	now := time.Now().UTC()
	builds := make([]func(int32, *models.Transaction) (models.Transaction, error), len(txns))
	for i := range txns {
		txn := txns[i]
		if txn.Timestamp.IsZero() {
			txn.Timestamp = now
		}
		builds[i] = func(next int32, _ *models.Transaction) (models.Transaction, error) {
			txn.ID = next
			return txn, nil
		}
	}
	return r.addAll(ctx, builds...)
}

// ListByAccount returns the transactions of accountID in id order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int32) ([]models.Transaction, error) {
	return r.filter(ctx, func(x *models.Transaction) bool { return x.AccountID == accountID }, 0)
}

// List returns every transaction matching pred.
func (r *TransactionRepository) List(ctx context.Context, pred func(*models.Transaction) bool) ([]models.Transaction, error) {
	return r.filter(ctx, pred, 0)
}
