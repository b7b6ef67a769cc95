package repository

import (
	"context"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/store/record"
)

// AccountRepository stores accounts in accounts.dat.
type AccountRepository struct {
	table[models.Account]
}

// NewAccountRepository wraps an open accounts table.
func NewAccountRepository(t *record.Table[models.Account]) *AccountRepository {
	return &AccountRepository{
		table: newTable(t, func(a *models.Account) int32 { return a.ID }, "account"),
	}
}

// Journaled returns a view of the repository whose writes are reported to r.
func (r *AccountRepository) Journaled(rec Recorder) *AccountRepository {
	return &AccountRepository{table: r.table.journaled(rec)}
}

// GetByID returns the account with id.
func (r *AccountRepository) GetByID(ctx context.Context, id int32) (models.Account, error) {
	a, _, err := r.getByID(ctx, id)
	return a, err
}

// GetByNumber returns the account with the given account number.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (models.Account, error) {
	if number == "" {
		return models.Account{}, r.notFound()
	}
	return r.findOne(ctx, func(a *models.Account) bool { return a.Number == number })
}

// Open creates a new active account for owner with the given opening
// balance. The id and the account number are both derived from the last
// stored account inside the append lock.
func (r *AccountRepository) Open(ctx context.Context, ownerID int32, balance models.Money) (models.Account, error) {
	return r.add(ctx, func(next int32, last *models.Account) (models.Account, error) {
		return models.Account{
			ID:      next,
			OwnerID: ownerID,
			Number:  models.NextAccountNumber(last),
			Balance: balance,
			Active:  true,
		}, nil
	})
}

// Add stores a fully formed account, keeping its number but assigning the
// next id. Used by seeding and imports.
func (r *AccountRepository) Add(ctx context.Context, a models.Account) (models.Account, error) {
	return r.add(ctx, func(next int32, _ *models.Account) (models.Account, error) {
		a.ID = next
		return a, nil
	})
}

// Update overwrites the stored account with a.ID.
func (r *AccountRepository) Update(ctx context.Context, a models.Account) error {
	return r.update(ctx, a)
}

// Modify applies fn to the stored account under its record lock. All
// balance changes go through Modify so concurrent deposits never lose an
// update.
func (r *AccountRepository) Modify(ctx context.Context, id int32, fn func(*models.Account) error) (models.Account, error) {
	return r.modify(ctx, id, fn)
}

// ListByOwner returns up to limit accounts owned by ownerID in table order.
// Matches beyond limit are silently dropped; limit <= 0 uses
// models.MaxAccountsPerUser.
func (r *AccountRepository) ListByOwner(ctx context.Context, ownerID int32, activeOnly bool, limit int) ([]models.Account, error) {
	if limit <= 0 {
		limit = models.MaxAccountsPerUser
	}
	return r.filter(ctx, func(a *models.Account) bool {
		return a.OwnerID == ownerID && (!activeOnly || a.Active)
	}, limit)
}

// List returns every account matching pred.
func (r *AccountRepository) List(ctx context.Context, pred func(*models.Account) bool) ([]models.Account, error) {
	return r.filter(ctx, pred, 0)
}

// SetActiveForOwner sets the active flag on every account of ownerID and
// returns how many records changed and how many updates failed.
func (r *AccountRepository) SetActiveForOwner(ctx context.Context, ownerID int32, active bool) (updated, failed int, err error) {
	var positions []int64
	err = r.t.Scan(ctx, func(pos int64, a *models.Account) bool {
		if a.OwnerID == ownerID && a.Active != active {
			positions = append(positions, pos)
		}
		return true
	})
	if err != nil {
		return 0, 0, err
	}

	for _, pos := range positions {
		_, err := r.t.ModifyAt(ctx, pos, func(a *models.Account) error {
			a.Active = active
			return nil
		}, r.hook())
		if err != nil {
			logger.Warn("Failed to update account status",
				logger.KeyTable, r.t.Name(), logger.KeyPosition, pos, logger.KeyError, err)
			failed++
			continue
		}
		updated++
	}
	return updated, failed, nil
}
