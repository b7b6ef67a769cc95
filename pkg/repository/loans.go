package repository

import (
	"context"
	"time"

	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/record"
)

// LoanRepository stores loan applications in loans.dat.
type LoanRepository struct {
	table[models.Loan]
}

// NewLoanRepository wraps an open loans table.
func NewLoanRepository(t *record.Table[models.Loan]) *LoanRepository {
	return &LoanRepository{
		table: newTable(t, func(l *models.Loan) int32 { return l.ID }, "loan"),
	}
}

// Journaled returns a view of the repository whose writes are reported to r.
func (r *LoanRepository) Journaled(rec Recorder) *LoanRepository {
	return &LoanRepository{table: r.table.journaled(rec)}
}

// GetByID returns the loan with id.
func (r *LoanRepository) GetByID(ctx context.Context, id int32) (models.Loan, error) {
	l, _, err := r.getByID(ctx, id)
	return l, err
}

// Add stores a new application under the next id.
func (r *LoanRepository) Add(ctx context.Context, l models.Loan) (models.Loan, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return r.add(ctx, func(next int32, _ *models.Loan) (models.Loan, error) {
		l.ID = next
		return l, nil
	})
}

// Update overwrites the stored loan with l.ID.
func (r *LoanRepository) Update(ctx context.Context, l models.Loan) error {
	return r.update(ctx, l)
}

// Modify applies fn to the stored loan under its record lock.
func (r *LoanRepository) Modify(ctx context.Context, id int32, fn func(*models.Loan) error) (models.Loan, error) {
	return r.modify(ctx, id, fn)
}

// ListByUser returns every application of userID.
func (r *LoanRepository) ListByUser(ctx context.Context, userID int32) ([]models.Loan, error) {
	return r.filter(ctx, func(l *models.Loan) bool { return l.UserID == userID }, 0)
}

// ListUnassigned returns pending loans not yet assigned to an employee.
func (r *LoanRepository) ListUnassigned(ctx context.Context) ([]models.Loan, error) {
	return r.filter(ctx, func(l *models.Loan) bool {
		return l.AssignedTo == 0 && l.Status == models.LoanPending
	}, 0)
}

// ListAssignedTo returns the open loans assigned to employeeID.
func (r *LoanRepository) ListAssignedTo(ctx context.Context, employeeID int32) ([]models.Loan, error) {
	return r.filter(ctx, func(l *models.Loan) bool {
		return l.AssignedTo == employeeID && l.Status.Open()
	}, 0)
}

// ListByStatus returns every loan in status.
func (r *LoanRepository) ListByStatus(ctx context.Context, status models.LoanStatus) ([]models.Loan, error) {
	return r.filter(ctx, func(l *models.Loan) bool { return l.Status == status }, 0)
}

// List returns every loan matching pred. A nil pred matches all.
func (r *LoanRepository) List(ctx context.Context, pred func(*models.Loan) bool) ([]models.Loan, error) {
	return r.filter(ctx, pred, 0)
}
