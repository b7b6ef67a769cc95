package banking

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
)

// CustomerAccounts returns the active accounts of actor, at most
// models.MaxAccountsPerUser of them.
func (s *Service) CustomerAccounts(ctx context.Context, actor models.User) ([]models.Account, error) {
	return s.store.Accounts.ListByOwner(ctx, actor.ID, true, models.MaxAccountsPerUser)
}

// Account returns accountID. Customers may only read their own accounts.
func (s *Service) Account(ctx context.Context, actor models.User, accountID int32) (models.Account, error) {
	a, err := s.store.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Account{}, notFound(err, ErrAccountNotFound)
	}
	if actor.Role == models.RoleCustomer && a.OwnerID != actor.ID {
		return models.Account{}, ErrNotOwner
	}
	return a, nil
}

// Deposit credits amount to accountID and records a Deposit transaction.
func (s *Service) Deposit(ctx context.Context, actor models.User, accountID int32, amount models.Money) (acc models.Account, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "deposit", telemetry.UserID(actor.ID), telemetry.Amount(int64(amount)))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "deposit", start, err) }(time.Now())

	if !models.ValidAmount(amount) {
		return models.Account{}, ErrInvalidAmount
	}

	opID, err := s.journaled(ctx, "deposit", func(j repository.Journaled) error {
		acc, err = j.Accounts.Modify(ctx, accountID, func(a *models.Account) error {
			if err := checkOwnedActive(actor, a); err != nil {
				return err
			}
			return credit(a, amount)
		})
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		_, err = j.Transactions.Add(ctx, models.Transaction{
			AccountID:    acc.ID,
			UserID:       acc.OwnerID,
			Type:         models.TxnDeposit,
			Amount:       amount,
			NewBalance:   acc.Balance,
			Counterparty: models.CounterpartySelf,
		})
		return err
	})
	if err != nil {
		return models.Account{}, err
	}

	s.moved(ctx, events.TypeDeposit, opID, actor, acc, "", amount)
	return acc, nil
}

// Withdraw debits amount from accountID and records a Withdrawal
// transaction. A withdrawal larger than the balance is rejected and leaves
// no trace.
func (s *Service) Withdraw(ctx context.Context, actor models.User, accountID int32, amount models.Money) (acc models.Account, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "withdraw", telemetry.UserID(actor.ID), telemetry.Amount(int64(amount)))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "withdraw", start, err) }(time.Now())

	if !models.ValidAmount(amount) {
		return models.Account{}, ErrInvalidAmount
	}

	opID, err := s.journaled(ctx, "withdraw", func(j repository.Journaled) error {
		acc, err = j.Accounts.Modify(ctx, accountID, func(a *models.Account) error {
			if err := checkOwnedActive(actor, a); err != nil {
				return err
			}
			return debit(a, amount)
		})
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		_, err = j.Transactions.Add(ctx, models.Transaction{
			AccountID:    acc.ID,
			UserID:       acc.OwnerID,
			Type:         models.TxnWithdrawal,
			Amount:       amount,
			NewBalance:   acc.Balance,
			Counterparty: models.CounterpartySelf,
		})
		return err
	})
	if err != nil {
		return models.Account{}, err
	}

	s.moved(ctx, events.TypeWithdrawal, opID, actor, acc, "", amount)
	return acc, nil
}

// Transfer moves amount from fromID to the account numbered toNumber and
// records a TransferOut and a TransferIn transaction. It returns the
// sender's account after the debit.
//
// The debit and the credit take the two record locks one after the other,
// never together. Both ledger rows are appended together once the balances
// have moved. When a step fails the journal undoes the debit, with any
// deposit that reached the sender in the meantime left in place.
func (s *Service) Transfer(ctx context.Context, actor models.User, fromID int32, toNumber string, amount models.Money) (from models.Account, err error) {
	toNumber = strings.TrimSpace(toNumber)
	ctx, span := telemetry.StartBankSpan(ctx, "transfer",
		telemetry.UserID(actor.ID), telemetry.Counterparty(toNumber), telemetry.Amount(int64(amount)))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "transfer", start, err) }(time.Now())

	if !models.ValidAmount(amount) {
		return models.Account{}, ErrInvalidAmount
	}

	src, err := s.store.Accounts.GetByID(ctx, fromID)
	if err != nil {
		return models.Account{}, notFound(err, ErrInvalidAccount)
	}
	dst, err := s.store.Accounts.GetByNumber(ctx, toNumber)
	if err != nil {
		return models.Account{}, notFound(err, ErrInvalidAccount)
	}
	if actor.Role == models.RoleCustomer && src.OwnerID != actor.ID {
		return models.Account{}, ErrNotOwner
	}
	if !src.Active || !dst.Active {
		return models.Account{}, ErrAccountInactive
	}
	if src.ID == dst.ID {
		return models.Account{}, ErrSameAccount
	}

	opID, err := s.journaled(ctx, "transfer", func(j repository.Journaled) error {
		var to models.Account
		from, err = j.Accounts.Modify(ctx, src.ID, func(a *models.Account) error {
			if !a.Active {
				return ErrAccountInactive
			}
			return debit(a, amount)
		})
		if err != nil {
			return notFound(err, ErrInvalidAccount)
		}

		to, err = j.Accounts.Modify(ctx, dst.ID, func(a *models.Account) error {
			if !a.Active {
				return ErrAccountInactive
			}
			return credit(a, amount)
		})
		if err != nil {
			return notFound(err, ErrInvalidAccount)
		}

		_, err = j.Transactions.AddAll(ctx,
			models.Transaction{
				AccountID:    from.ID,
				UserID:       from.OwnerID,
				Type:         models.TxnTransferOut,
				Amount:       amount,
				NewBalance:   from.Balance,
				Counterparty: dst.Number,
			},
			models.Transaction{
				AccountID:    to.ID,
				UserID:       to.OwnerID,
				Type:         models.TxnTransferIn,
				Amount:       amount,
				NewBalance:   to.Balance,
				Counterparty: from.Number,
			})
		return err
	})
	if err != nil {
		return models.Account{}, err
	}

	s.moved(ctx, events.TypeTransfer, opID, actor, from, dst.Number, amount)
	return from, nil
}

// ApplyLoan files a Pending loan application that credits accountNumber
// on approval. The account must belong to actor and be active.
func (s *Service) ApplyLoan(ctx context.Context, actor models.User, amount models.Money, accountNumber string) (loan models.Loan, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "apply_loan", telemetry.UserID(actor.ID), telemetry.Amount(int64(amount)))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "apply_loan", start, err) }(time.Now())

	if !models.ValidAmount(amount) {
		return models.Loan{}, ErrInvalidAmount
	}
	a, err := s.store.Accounts.GetByNumber(ctx, strings.TrimSpace(accountNumber))
	if err != nil {
		return models.Loan{}, notFound(err, ErrAccountNotFound)
	}
	if err := checkOwnedActive(actor, &a); err != nil {
		return models.Loan{}, err
	}

	loan, err = s.store.Loans.Add(ctx, models.Loan{
		UserID:    actor.ID,
		AccountID: a.ID,
		Amount:    amount,
		Status:    models.LoanPending,
	})
	if err != nil {
		return models.Loan{}, err
	}

	logger.InfoCtx(ctx, "Loan application filed",
		logger.KeyLoanID, loan.ID, logger.KeyAccount, a.Number, logger.KeyAmount, amount.Plain())
	return loan, nil
}

// Loans returns actor's loan applications.
func (s *Service) Loans(ctx context.Context, actor models.User) ([]models.Loan, error) {
	return s.store.Loans.ListByUser(ctx, actor.ID)
}

// Transactions returns the ledger of accountID in id order. Customers may
// only read their own accounts.
func (s *Service) Transactions(ctx context.Context, actor models.User, accountID int32) ([]models.Transaction, error) {
	if _, err := s.Account(ctx, actor, accountID); err != nil {
		return nil, err
	}
	return s.store.Transactions.ListByAccount(ctx, accountID)
}

// SubmitFeedback stores text as unreviewed feedback of actor. Text longer
// than models.MaxFeedbackLength is truncated.
func (s *Service) SubmitFeedback(ctx context.Context, actor models.User, text string) (models.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Feedback{}, &ValidationError{Field: "feedback", Err: errEmpty}
	}
	return s.store.Feedback.Add(ctx, models.Feedback{UserID: actor.ID, Text: text})
}

// FeedbackOf returns every feedback submitted by actor.
func (s *Service) FeedbackOf(ctx context.Context, actor models.User) ([]models.Feedback, error) {
	return s.store.Feedback.ListByUser(ctx, actor.ID)
}

func checkOwnedActive(actor models.User, a *models.Account) error {
	if actor.Role == models.RoleCustomer && a.OwnerID != actor.ID {
		return ErrNotOwner
	}
	if !a.Active {
		return ErrAccountInactive
	}
	return nil
}

func credit(a *models.Account, amount models.Money) error {
	if a.Balance > models.Money(math.MaxInt64)-amount {
		return ErrBalanceOverflow
	}
	a.Balance += amount
	return nil
}

func debit(a *models.Account, amount models.Money) error {
	if a.Balance < amount {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}

// moved reports a committed money movement.
func (s *Service) moved(ctx context.Context, t events.Type, opID string, actor models.User, acc models.Account, counterparty string, amount models.Money) {
	s.addVolume(string(t), amount)
	telemetry.SetAttributes(ctx, telemetry.Account(acc.Number), telemetry.OpID(opID))
	logger.InfoCtx(ctx, "Money moved",
		logger.KeyOperation, string(t),
		logger.KeyOpID, opID,
		logger.KeyAccount, acc.Number,
		logger.KeyCounterparty, counterparty,
		logger.KeyAmount, amount.Plain(),
		logger.KeyBalance, acc.Balance.Plain())

	e := events.New(t, actor.ID)
	e.OpID = opID
	e.Account = acc.Number
	e.Counterparty = counterparty
	e.Amount = amount
	e.NewBalance = acc.Balance
	s.publish(ctx, e)
}
