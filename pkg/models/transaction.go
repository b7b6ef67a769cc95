package models

import (
	"fmt"
	"time"

	"github.com/marmos91/bankd/pkg/store/record"
)

// TransactionType classifies a ledger entry.
type TransactionType uint8

const (
	TxnDeposit TransactionType = iota
	TxnWithdrawal
	TxnTransferOut
	TxnTransferIn
)

func (t TransactionType) String() string {
	switch t {
	case TxnDeposit:
		return "deposit"
	case TxnWithdrawal:
		return "withdrawal"
	case TxnTransferOut:
		return "transfer_out"
	case TxnTransferIn:
		return "transfer_in"
	default:
		return fmt.Sprintf("txn(%d)", uint8(t))
	}
}

// Direction returns CREDITED or DEBITED as shown in statements.
func (t TransactionType) Direction() string {
	switch t {
	case TxnDeposit, TxnTransferIn:
		return "CREDITED"
	case TxnWithdrawal, TxnTransferOut:
		return "DEBITED"
	default:
		return "UNKNOWN"
	}
}

// Counterparty placeholders used when a transaction has no other account.
const (
	CounterpartySelf       = "SELF"
	CounterpartyLoanCredit = "LOAN_CREDIT"
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID           int32
	AccountID    int32
	UserID       int32
	Type         TransactionType
	Amount       Money
	NewBalance   Money
	Counterparty string
	Timestamp    time.Time
}

// TransactionCodec is the on-disk layout of transactions.dat.
type TransactionCodec struct{}

var _ record.Codec[Transaction] = TransactionCodec{}

func (TransactionCodec) Size() int { return 4 + 4 + 4 + 1 + 8 + 8 + AccountNumberWidth + 8 }

func (TransactionCodec) Encode(t *Transaction, buf []byte) error {
	e := record.NewEncoder(buf)
	e.Int32(t.ID)
	e.Int32(t.AccountID)
	e.Int32(t.UserID)
	e.Uint8(uint8(t.Type))
	e.Int64(int64(t.Amount))
	e.Int64(int64(t.NewBalance))
	e.String(t.Counterparty, AccountNumberWidth)
	e.Time(t.Timestamp)
	return nil
}

func (TransactionCodec) Decode(buf []byte, t *Transaction) error {
	d := record.NewDecoder(buf)
	t.ID = d.Int32()
	t.AccountID = d.Int32()
	t.UserID = d.Int32()
	t.Type = TransactionType(d.Uint8())
	t.Amount = Money(d.Int64())
	t.NewBalance = Money(d.Int64())
	t.Counterparty = d.String(AccountNumberWidth)
	t.Timestamp = d.Time()
	return nil
}

func (TransactionCodec) ID(t *Transaction) int32 { return t.ID }
