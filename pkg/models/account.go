package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/marmos91/bankd/pkg/store/record"
)

const (
	// AccountNumberPrefix starts every generated account number.
	AccountNumberPrefix = "SB"

	// FirstAccountNumber is the numeric suffix of the first account.
	FirstAccountNumber = 10001

	// AccountNumberWidth is the stored width of an account number.
	AccountNumberWidth = 20

	// MaxAccountsPerUser caps how many accounts a listing returns per owner.
	MaxAccountsPerUser = 10
)

// Account is a savings account owned by a customer.
type Account struct {
	ID      int32
	OwnerID int32
	Number  string
	Balance Money
	Active  bool
}

// NextAccountNumber derives the account number that follows last.
//
// The suffix after the prefix is incremented. An empty table, a foreign
// prefix or an unparsable suffix restarts at FirstAccountNumber.
func NextAccountNumber(last *Account) string {
	next := FirstAccountNumber
	if last != nil && strings.HasPrefix(last.Number, AccountNumberPrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last.Number, AccountNumberPrefix)); err == nil && n > 0 {
			next = n + 1
		}
	}
	return AccountNumberPrefix + strconv.Itoa(next)
}

// AccountCodec is the on-disk layout of accounts.dat.
type AccountCodec struct{}

var (
	_ record.Codec[Account]    = AccountCodec{}
	_ record.Reverter[Account] = AccountCodec{}
)

func (AccountCodec) Size() int { return 4 + 4 + AccountNumberWidth + 8 + 1 }

func (AccountCodec) Encode(a *Account, buf []byte) error {
	if len(a.Number) >= AccountNumberWidth {
		return fmt.Errorf("account number %q too long", a.Number)
	}
	e := record.NewEncoder(buf)
	e.Int32(a.ID)
	e.Int32(a.OwnerID)
	e.String(a.Number, AccountNumberWidth)
	e.Int64(int64(a.Balance))
	e.Bool(a.Active)
	return nil
}

func (AccountCodec) Decode(buf []byte, a *Account) error {
	d := record.NewDecoder(buf)
	a.ID = d.Int32()
	a.OwnerID = d.Int32()
	a.Number = d.String(AccountNumberWidth)
	a.Balance = Money(d.Int64())
	a.Active = d.Bool()
	return nil
}

func (AccountCodec) ID(a *Account) int32 { return a.ID }

// Revert undoes the pre to post change on cur. The balance moves back by
// the difference, so deposits and withdrawals that landed afterwards are
// kept. The active flag is put back only while it still holds post's
// value. A revert that would leave a negative balance fails.
func (AccountCodec) Revert(cur, pre, post *Account) error {
	if cur.ID != post.ID || cur.OwnerID != post.OwnerID || cur.Number != post.Number {
		return fmt.Errorf("account %d was replaced", post.ID)
	}

	delta := int64(pre.Balance) - int64(post.Balance)
	balance := int64(cur.Balance)
	if (delta > 0 && balance > math.MaxInt64-delta) || balance+delta < 0 {
		return fmt.Errorf("account %s: cannot move balance %s by %s",
			cur.Number, cur.Balance.Plain(), Money(delta).Plain())
	}

	if pre.Active != post.Active {
		if cur.Active != post.Active {
			return fmt.Errorf("account %s: active flag changed again", cur.Number)
		}
		cur.Active = pre.Active
	}
	cur.Balance = Money(balance + delta)
	return nil
}
