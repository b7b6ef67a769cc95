package models

import (
	"fmt"
	"time"

	"github.com/marmos91/bankd/pkg/store/record"
)

// LoanStatus is the workflow state of a loan application.
type LoanStatus uint8

const (
	LoanPending LoanStatus = iota
	LoanProcessing
	LoanApproved
	LoanRejected
)

func (s LoanStatus) String() string {
	switch s {
	case LoanPending:
		return "PENDING"
	case LoanProcessing:
		return "PROCESSING"
	case LoanApproved:
		return "APPROVED"
	case LoanRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Open reports whether the loan still awaits a decision.
func (s LoanStatus) Open() bool {
	return s == LoanPending || s == LoanProcessing
}

// Loan is a customer's loan application.
type Loan struct {
	ID         int32
	UserID     int32
	AccountID  int32 // account credited on approval
	Amount     Money
	Status     LoanStatus
	AssignedTo int32 // employee user id, 0 when unassigned
	CreatedAt  time.Time
}

// LoanCodec is the on-disk layout of loans.dat.
type LoanCodec struct{}

var _ record.Codec[Loan] = LoanCodec{}

func (LoanCodec) Size() int { return 4 + 4 + 4 + 8 + 1 + 4 + 8 }

func (LoanCodec) Encode(l *Loan, buf []byte) error {
	e := record.NewEncoder(buf)
	e.Int32(l.ID)
	e.Int32(l.UserID)
	e.Int32(l.AccountID)
	e.Int64(int64(l.Amount))
	e.Uint8(uint8(l.Status))
	e.Int32(l.AssignedTo)
	e.Time(l.CreatedAt)
	return nil
}

func (LoanCodec) Decode(buf []byte, l *Loan) error {
	d := record.NewDecoder(buf)
	l.ID = d.Int32()
	l.UserID = d.Int32()
	l.AccountID = d.Int32()
	l.Amount = Money(d.Int64())
	l.Status = LoanStatus(d.Uint8())
	l.AssignedTo = d.Int32()
	l.CreatedAt = d.Time()
	if l.Status > LoanRejected {
		return fmt.Errorf("loan %d: invalid status %d", l.ID, l.Status)
	}
	return nil
}

func (LoanCodec) ID(l *Loan) int32 { return l.ID }
