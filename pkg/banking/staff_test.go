package banking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
)

func newCustomer(phone, email string) NewUser {
	return NewUser{
		Role:      models.RoleCustomer,
		Password:  "secret1",
		FirstName: "Asha",
		LastName:  "Rao",
		Phone:     phone,
		Email:     email,
		Address:   "12 Brigade Road, Bangalore",
	}
}

func TestCreateCustomerOpensFirstAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, acc, err := f.svc.CreateUser(ctx, f.employee, newCustomer("9123456780", "asha@mail.com"))
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, int32(5), u.ID)
	assert.Equal(t, "SB10003", acc.Number)
	assert.Equal(t, u.ID, acc.OwnerID)
	assert.True(t, acc.Active)

	_, err = f.svc.Login(ctx, u.ID, "secret1", models.RoleCustomer)
	assert.NoError(t, err)
}

func TestCreateUserRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateUser(ctx, f.employee, newCustomer("8888888888", "new@mail.com"))
	assert.ErrorIs(t, err, ErrPhoneInUse)

	_, _, err = f.svc.CreateUser(ctx, f.employee, newCustomer("9123456780", "RAVI@gmail.com"))
	assert.ErrorIs(t, err, ErrEmailInUse)

	_, _, err = f.svc.CreateUser(ctx, f.employee, newCustomer("12345", "x@mail.com"))
	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "phone", v.Field)

	staff := newCustomer("9123456780", "staff@bank.com")
	staff.Role = models.RoleManager
	_, _, err = f.svc.CreateUser(ctx, f.employee, staff)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	staff.Role = models.RoleAdministrator
	_, _, err = f.svc.CreateUser(ctx, f.admin, staff)
	assert.ErrorIs(t, err, ErrInvalidRole)

	staff.Role = models.RoleManager
	u, acc, err := f.svc.CreateUser(ctx, f.admin, staff)
	require.NoError(t, err)
	assert.Nil(t, acc)
	assert.Equal(t, models.RoleManager, u.Role)

	n, err := f.store.Users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.OpenAccount(ctx, f.employee, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "SB10003", acc.Number)
	assert.Zero(t, acc.Balance)

	_, err = f.svc.OpenAccount(ctx, f.employee, f.manager.ID)
	assert.ErrorIs(t, err, ErrNotCustomer)

	_, err = f.svc.OpenAccount(ctx, f.employee, 404)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.svc.OpenAccount(ctx, f.customer, f.customer.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Ravindra"
	u, err := f.svc.UpdateUser(ctx, f.employee, f.customer.ID, UserChanges{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ravindra", u.FirstName)
	assert.Equal(t, "Kumar", u.LastName)

	_, err = f.svc.UpdateUser(ctx, f.employee, f.manager.ID, UserChanges{FirstName: &name})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	role := models.RoleEmployee
	_, err = f.svc.UpdateUser(ctx, f.employee, f.customer.ID, UserChanges{Role: &role})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	phone := "7777777777"
	_, err = f.svc.UpdateUser(ctx, f.admin, f.customer.ID, UserChanges{Phone: &phone})
	assert.ErrorIs(t, err, ErrPhoneInUse)

	u, err = f.svc.UpdateUser(ctx, f.admin, f.customer.ID, UserChanges{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, u.Role)
}

func TestUpdateUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	addr := "99 Residency Road, Bangalore"
	_, err := f.svc.UpdateUser(ctx, f.admin, f.customer.ID, UserChanges{Address: &addr})
	require.NoError(t, err)

	handle := f.store.Tables()[0]
	first, err := handle.ReadRawAt(ctx, int64(f.customer.ID-1))
	require.NoError(t, err)

	_, err = f.svc.UpdateUser(ctx, f.admin, f.customer.ID, UserChanges{Address: &addr})
	require.NoError(t, err)
	second, err := handle.ReadRawAt(ctx, int64(f.customer.ID-1))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoanWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loan, err := f.svc.ApplyLoan(ctx, f.customer, models.Rupees(50000), "SB10001")
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, loan.Status)

	unassigned, err := f.svc.UnassignedLoans(ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, unassigned, 1)

	_, err = f.svc.AssignLoan(ctx, f.manager, loan.ID, f.customer.ID)
	assert.ErrorIs(t, err, ErrInvalidEmployee)
	_, err = f.svc.AssignLoan(ctx, f.manager, 99, f.employee.ID)
	assert.ErrorIs(t, err, ErrLoanNotFound)

	loan, err = f.svc.AssignLoan(ctx, f.manager, loan.ID, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanProcessing, loan.Status)
	_, err = f.svc.AssignLoan(ctx, f.manager, loan.ID, f.employee.ID)
	assert.ErrorIs(t, err, ErrLoanNotAssignable)

	assigned, err := f.svc.AssignedLoans(ctx, f.employee)
	require.NoError(t, err)
	require.Len(t, assigned, 1)

	loan, err = f.svc.ProcessLoan(ctx, f.employee, loan.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, loan.Status)
	assert.Equal(t, models.Rupees(55000), f.balance(t, f.savings.ID))

	txns := f.txns(t, f.savings.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnDeposit, txns[0].Type)
	assert.Equal(t, models.CounterpartyLoanCredit, txns[0].Counterparty)

	_, err = f.svc.ProcessLoan(ctx, f.employee, loan.ID, false)
	assert.ErrorIs(t, err, ErrLoanProcessed)
	assert.Contains(t, f.pub.types(), events.TypeLoanApproved)
}

func TestProcessLoanRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ApplyLoan(ctx, f.customer, models.Rupees(1), "SB-404")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = f.svc.ApplyLoan(ctx, f.customer, 0, "SB10001")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	loan, err := f.svc.ApplyLoan(ctx, f.customer, models.Rupees(1000), "SB10002")
	require.NoError(t, err)

	_, err = f.svc.ProcessLoan(ctx, f.employee, loan.ID, false)
	assert.ErrorIs(t, err, ErrLoanNotAssigned)

	_, err = f.svc.AssignLoan(ctx, f.manager, loan.ID, f.employee.ID)
	require.NoError(t, err)
	loan, err = f.svc.ProcessLoan(ctx, f.employee, loan.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, loan.Status)
	assert.Equal(t, models.Rupees(25000), f.balance(t, f.current.ID))
}

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fb, err := f.svc.SubmitFeedback(ctx, f.customer, "Great service")
	require.NoError(t, err)
	assert.False(t, fb.Reviewed)

	_, err = f.svc.SubmitFeedback(ctx, f.customer, "   ")
	assert.True(t, IsValidationError(err))

	pending, err := f.svc.UnreviewedFeedback(ctx, f.manager)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	fb, err = f.svc.ReviewFeedback(ctx, f.manager, fb.ID)
	require.NoError(t, err)
	assert.True(t, fb.Reviewed)

	_, err = f.svc.ReviewFeedback(ctx, f.manager, fb.ID)
	assert.ErrorIs(t, err, ErrFeedbackReviewed)
	_, err = f.svc.ReviewFeedback(ctx, f.manager, 50)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	mine, err := f.svc.FeedbackOf(ctx, f.customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].Reviewed)
}

func TestSetUserStatusPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetUserStatus(ctx, f.manager, f.employee.ID, false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.SetUserStatus(ctx, f.employee, f.customer.ID, false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.SetUserStatus(ctx, f.manager, 404, false)
	assert.ErrorIs(t, err, ErrUserNotFound)

	res, err := f.svc.SetUserStatus(ctx, f.admin, f.employee.ID, false)
	require.NoError(t, err)
	assert.False(t, res.User.Active)
	assert.Zero(t, res.Updated)

	res, err = f.svc.SetUserStatus(ctx, f.manager, f.customer.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	res, err = f.svc.SetUserStatus(ctx, f.manager, f.customer.ID, false)
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
}
