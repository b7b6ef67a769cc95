package banking

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
	storeerrors "github.com/marmos91/bankd/pkg/store/errors"
	"github.com/marmos91/bankd/pkg/store/journal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *repository.Store
	journal  *journal.Journal
	pub      *recordingPublisher
	admin    models.User
	customer models.User
	employee models.User
	manager  models.User
	savings  models.Account // SB10001, 5000.00
	current  models.Account // SB10002, 25000.00
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.Open(dir, nil)
	require.NoError(t, err)

	p, err := journal.NewFilePersister(dir)
	require.NoError(t, err)
	j := journal.New(p, store.RawTables()...)
	t.Cleanup(func() { _ = j.Close() })

	pub := &recordingPublisher{}
	svc := New(store, j, WithPublisher(pub), WithBcryptCost(bcrypt.MinCost))

	report, err := svc.Seed(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, report.Users, 4)
	require.Len(t, report.Accounts, 2)

	return &fixture{
		svc:      svc,
		store:    store,
		journal:  j,
		pub:      pub,
		admin:    report.Users[0].User,
		customer: report.Users[1].User,
		employee: report.Users[2].User,
		manager:  report.Users[3].User,
		savings:  report.Accounts[0],
		current:  report.Accounts[1],
	}
}

func (f *fixture) balance(t *testing.T, id int32) models.Money {
	t.Helper()
	a, err := f.store.Accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) txns(t *testing.T, id int32) []models.Transaction {
	t.Helper()
	out, err := f.store.Transactions.ListByAccount(context.Background(), id)
	require.NoError(t, err)
	return out
}

func TestSeed(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, int32(1), f.admin.ID)
	assert.Equal(t, int32(2), f.customer.ID)
	assert.Equal(t, int32(3), f.employee.ID)
	assert.Equal(t, int32(4), f.manager.ID)
	assert.Equal(t, "SB10001", f.savings.Number)
	assert.Equal(t, "SB10002", f.current.Number)
	assert.Equal(t, models.Rupees(5000), f.savings.Balance)
	assert.Equal(t, models.Rupees(25000), f.current.Balance)

	report, err := f.svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Login(ctx, 2, "cust123", models.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", u.FirstName)

	_, err = f.svc.Login(ctx, 2, "wrong", models.RoleCustomer)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, 99, "cust123", models.RoleCustomer)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, 2, "cust123", models.RoleManager)
	assert.ErrorIs(t, err, ErrRoleMismatch)

	_, err = f.svc.SetUserStatus(ctx, f.manager, 2, false)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, 2, "cust123", models.RoleManager)
	assert.ErrorIs(t, err, ErrUserInactive, "inactive is reported before role mismatch")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ChangePassword(ctx, f.employee, "n3wpass"))
	_, err := f.svc.Login(ctx, f.employee.ID, "emp123", models.RoleEmployee)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, f.employee.ID, "n3wpass", models.RoleEmployee)
	assert.NoError(t, err)

	err = f.svc.ChangePassword(ctx, f.employee, "")
	assert.True(t, IsValidationError(err))
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)

	acc, err := f.svc.Deposit(context.Background(), f.customer, f.savings.ID, models.ParseAmount("1500.50"))
	require.NoError(t, err)
	assert.Equal(t, models.Money(650050), acc.Balance)
	assert.Equal(t, models.Money(650050), f.balance(t, f.savings.ID))

	txns := f.txns(t, f.savings.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnDeposit, txns[0].Type)
	assert.Equal(t, models.Money(150050), txns[0].Amount)
	assert.Equal(t, models.Money(650050), txns[0].NewBalance)
	assert.Equal(t, models.CounterpartySelf, txns[0].Counterparty)

	assert.Equal(t, []events.Type{events.TypeDeposit}, f.pub.types())
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, f.customer, f.savings.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, f.customer, f.savings.ID, models.MaxAmount+1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, f.customer, 42, models.Rupees(1))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	other := f.customer
	other.ID = 77
	_, err = f.svc.Deposit(ctx, other, f.savings.ID, models.Rupees(1))
	assert.ErrorIs(t, err, ErrNotOwner)

	assert.Empty(t, f.txns(t, f.savings.ID))
	assert.Equal(t, models.Rupees(5000), f.balance(t, f.savings.ID))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	poor, err := f.svc.OpenAccount(ctx, f.employee, f.customer.ID)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, f.customer, poor.ID, models.Rupees(100))
	require.NoError(t, err)
	before := len(f.txns(t, poor.ID))

	_, err = f.svc.Withdraw(ctx, f.customer, poor.ID, models.Rupees(150))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, IsRejection(err))

	assert.Equal(t, models.Rupees(100), f.balance(t, poor.ID))
	assert.Len(t, f.txns(t, poor.ID), before)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)

	acc, err := f.svc.Withdraw(context.Background(), f.customer, f.savings.ID, models.Rupees(1200))
	require.NoError(t, err)
	assert.Equal(t, models.Rupees(3800), acc.Balance)

	txns := f.txns(t, f.savings.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnWithdrawal, txns[0].Type)
	assert.Equal(t, "DEBITED", txns[0].Type.Direction())
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.OpenAccount(ctx, f.employee, f.customer.ID)
	require.NoError(t, err)
	b, err := f.svc.OpenAccount(ctx, f.employee, f.customer.ID)
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, f.customer, a.ID, models.Rupees(1000))
	require.NoError(t, err)
	_, err = f.svc.Deposit(ctx, f.customer, b.ID, models.Rupees(200))
	require.NoError(t, err)

	from, err := f.svc.Transfer(ctx, f.customer, a.ID, b.Number, models.Rupees(300))
	require.NoError(t, err)
	assert.Equal(t, models.Rupees(700), from.Balance)
	assert.Equal(t, models.Rupees(700), f.balance(t, a.ID))
	assert.Equal(t, models.Rupees(500), f.balance(t, b.ID))

	outs := f.txns(t, a.ID)
	ins := f.txns(t, b.ID)
	out := outs[len(outs)-1]
	in := ins[len(ins)-1]
	assert.Equal(t, models.TxnTransferOut, out.Type)
	assert.Equal(t, b.Number, out.Counterparty)
	assert.Equal(t, models.Rupees(700), out.NewBalance)
	assert.Equal(t, models.TxnTransferIn, in.Type)
	assert.Equal(t, a.Number, in.Counterparty)
	assert.Equal(t, models.Rupees(500), in.NewBalance)
}

func TestTransferRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, f.customer, f.savings.ID, f.savings.Number, models.Rupees(1))
	assert.ErrorIs(t, err, ErrSameAccount)

	_, err = f.svc.Transfer(ctx, f.customer, f.savings.ID, "SB99999", models.Rupees(1))
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = f.svc.Transfer(ctx, f.customer, f.savings.ID, f.current.Number, models.Rupees(5001))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.svc.SetUserStatus(ctx, f.manager, f.customer.ID, false)
	require.NoError(t, err)
	_, err = f.svc.Transfer(ctx, f.customer, f.savings.ID, f.current.Number, models.Rupees(1))
	assert.ErrorIs(t, err, ErrAccountInactive)

	assert.Equal(t, models.Rupees(5000), f.balance(t, f.savings.ID))
	assert.Equal(t, models.Rupees(25000), f.balance(t, f.current.ID))
	assert.Empty(t, f.txns(t, f.savings.ID))
}

func TestTransferRollsBackWhenCreditFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Push the receiver to the overflow limit so the credit step fails
	// after the debit was written.
	_, err := f.store.Accounts.Modify(ctx, f.current.ID, func(a *models.Account) error {
		a.Balance = models.Money(1<<63 - 1)
		return nil
	})
	require.NoError(t, err)

	_, err = f.svc.Transfer(ctx, f.customer, f.savings.ID, f.current.Number, models.Rupees(10))
	assert.ErrorIs(t, err, ErrBalanceOverflow)

	assert.Equal(t, models.Rupees(5000), f.balance(t, f.savings.ID))
	assert.Empty(t, f.txns(t, f.savings.ID), "TransferOut row must be removed")
	assert.Empty(t, f.pub.types())
}

func TestRollbackKeepsConcurrentDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	op, err := f.journal.Begin(ctx, "transfer")
	require.NoError(t, err)
	_, err = f.store.WithRecorder(op).Accounts.Modify(ctx, f.savings.ID, func(a *models.Account) error {
		return debit(a, models.Rupees(300))
	})
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, f.customer, f.savings.ID, models.Rupees(100))
	require.NoError(t, err)

	require.NoError(t, op.Rollback(ctx))
	assert.Equal(t, models.Rupees(5100), f.balance(t, f.savings.ID))

	txns := f.txns(t, f.savings.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnDeposit, txns[0].Type)
}

func TestRollbackReportsSpentCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	op, err := f.journal.Begin(ctx, "process_loan")
	require.NoError(t, err)
	_, err = f.store.WithRecorder(op).Accounts.Modify(ctx, f.savings.ID, func(a *models.Account) error {
		return credit(a, models.Rupees(1000))
	})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, f.customer, f.savings.ID, models.Rupees(5500))
	require.NoError(t, err)

	err = op.Rollback(ctx)
	require.Error(t, err)
	assert.True(t, storeerrors.IsPartialFailureError(err))
	assert.Equal(t, models.Rupees(500), f.balance(t, f.savings.ID))
}

func TestConcurrentTransfersAndDepositsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Transfers that fail on the receiver race with deposits to the sender.
	_, err := f.store.Accounts.Modify(ctx, f.current.ID, func(a *models.Account) error {
		a.Balance = models.Money(1<<63 - 1)
		return nil
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(ctx, f.customer, f.savings.ID, f.current.Number, models.Rupees(10))
			assert.ErrorIs(t, err, ErrBalanceOverflow)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Deposit(ctx, f.customer, f.savings.ID, models.Rupees(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, models.Rupees(5000+5*workers), f.balance(t, f.savings.ID))
	assert.Len(t, f.txns(t, f.savings.ID), workers)
}

func TestConcurrentDepositsKeepEveryUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Deposit(ctx, f.customer, f.savings.ID, models.Rupees(10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, models.Rupees(5000+10*workers), f.balance(t, f.savings.ID))
	txns := f.txns(t, f.savings.ID)
	require.Len(t, txns, workers)
	seen := make(map[int32]bool)
	for _, x := range txns {
		assert.False(t, seen[x.ID], "duplicate transaction id %d", x.ID)
		seen[x.ID] = true
	}
}

func TestCustomerAccountsOnlyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accounts, err := f.svc.CustomerAccounts(ctx, f.customer)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	res, err := f.svc.SetUserStatus(ctx, f.admin, f.customer.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Failed)

	accounts, err = f.svc.CustomerAccounts(ctx, f.customer)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
