package export

import (
	"time"

	"github.com/marmos91/bankd/pkg/models"
)

// UserRow is a user without credentials.
type UserRow struct {
	ID        int32  `gorm:"primaryKey;autoIncrement:false"`
	Role      string `gorm:"size:16;not null;index"`
	Active    bool   `gorm:"not null"`
	FirstName string `gorm:"size:50"`
	LastName  string `gorm:"size:50"`
	Phone     string `gorm:"size:15"`
	Email     string `gorm:"size:100"`
	Address   string `gorm:"size:256"`
	CreatedAt time.Time
}

func (UserRow) TableName() string { return "users" }

// AccountRow is an account. Amounts are in paise.
type AccountRow struct {
	ID           int32  `gorm:"primaryKey;autoIncrement:false"`
	OwnerID      int32  `gorm:"not null;index"`
	Number       string `gorm:"size:16;not null;uniqueIndex"`
	BalancePaise int64  `gorm:"not null"`
	Active       bool   `gorm:"not null"`
}

func (AccountRow) TableName() string { return "accounts" }

// LoanRow is a loan application.
type LoanRow struct {
	ID          int32  `gorm:"primaryKey;autoIncrement:false"`
	UserID      int32  `gorm:"not null;index"`
	AccountID   int32  `gorm:"not null"`
	AmountPaise int64  `gorm:"not null"`
	Status      string `gorm:"size:16;not null;index"`
	AssignedTo  *int32
	CreatedAt   time.Time
}

func (LoanRow) TableName() string { return "loans" }

// FeedbackRow is a piece of customer feedback.
type FeedbackRow struct {
	ID        int32  `gorm:"primaryKey;autoIncrement:false"`
	UserID    int32  `gorm:"not null;index"`
	Text      string `gorm:"size:255"`
	Reviewed  bool   `gorm:"not null"`
	CreatedAt time.Time
}

func (FeedbackRow) TableName() string { return "feedback" }

// TransactionRow is a ledger entry.
type TransactionRow struct {
	ID              int32     `gorm:"primaryKey;autoIncrement:false"`
	AccountID       int32     `gorm:"not null;index"`
	UserID          int32     `gorm:"not null"`
	Type            string    `gorm:"size:16;not null"`
	AmountPaise     int64     `gorm:"not null"`
	NewBalancePaise int64     `gorm:"not null"`
	Counterparty    string    `gorm:"size:16"`
	OccurredAt      time.Time `gorm:"not null;index"`
}

func (TransactionRow) TableName() string { return "transactions" }

// AllModels returns every exported model, in dependency order.
func AllModels() []any {
	return []any{&UserRow{}, &AccountRow{}, &LoanRow{}, &FeedbackRow{}, &TransactionRow{}}
}

func userRow(u models.User) UserRow {
	return UserRow{
		ID:        u.ID,
		Role:      u.Role.String(),
		Active:    u.Active,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Email:     u.Email,
		Address:   u.Address,
		CreatedAt: u.CreatedAt,
	}
}

func accountRow(a models.Account) AccountRow {
	return AccountRow{
		ID:           a.ID,
		OwnerID:      a.OwnerID,
		Number:       a.Number,
		BalancePaise: int64(a.Balance),
		Active:       a.Active,
	}
}

func loanRow(l models.Loan) LoanRow {
	row := LoanRow{
		ID:          l.ID,
		UserID:      l.UserID,
		AccountID:   l.AccountID,
		AmountPaise: int64(l.Amount),
		Status:      l.Status.String(),
		CreatedAt:   l.CreatedAt,
	}
	if l.AssignedTo != 0 {
		assigned := l.AssignedTo
		row.AssignedTo = &assigned
	}
	return row
}

func feedbackRow(f models.Feedback) FeedbackRow {
	return FeedbackRow{
		ID:        f.ID,
		UserID:    f.UserID,
		Text:      f.Text,
		Reviewed:  f.Reviewed,
		CreatedAt: f.CreatedAt,
	}
}

func transactionRow(t models.Transaction) TransactionRow {
	return TransactionRow{
		ID:              t.ID,
		AccountID:       t.AccountID,
		UserID:          t.UserID,
		Type:            t.Type.String(),
		AmountPaise:     int64(t.Amount),
		NewBalancePaise: int64(t.NewBalance),
		Counterparty:    t.Counterparty,
		OccurredAt:      t.Timestamp,
	}
}
