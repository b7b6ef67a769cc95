package banking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
)

// NewUser describes a user to create.
type NewUser struct {
	Role      models.Role
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Address   string

	// OpeningBalance of the first account. Only customers get one.
	OpeningBalance models.Money
}

// UserChanges lists the fields to change. Nil fields are kept.
type UserChanges struct {
	Password  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Email     *string
	Address   *string
	Role      *models.Role
}

// Empty reports whether no field is set.
func (c UserChanges) Empty() bool {
	return c.Password == nil && c.FirstName == nil && c.LastName == nil &&
		c.Phone == nil && c.Email == nil && c.Address == nil && c.Role == nil
}

// canCreate reports whether actor may create a user with role.
func canCreate(actor models.User, role models.Role) error {
	switch actor.Role {
	case models.RoleEmployee:
		if role != models.RoleCustomer {
			return ErrPermissionDenied
		}
	case models.RoleAdministrator:
		if role == models.RoleAdministrator || !role.IsValid() {
			return ErrInvalidRole
		}
	default:
		return ErrPermissionDenied
	}
	return nil
}

// CreateUser validates nu and stores it. A customer also gets a first
// account; user and account are created in one journal operation, so a
// failed account creation removes the user again. The account is nil for
// staff users.
func (s *Service) CreateUser(ctx context.Context, actor models.User, nu NewUser) (created models.User, account *models.Account, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "create_user", telemetry.UserID(actor.ID), telemetry.Role(nu.Role.String()))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "create_user", start, err) }(time.Now())

	if err := canCreate(actor, nu.Role); err != nil {
		return models.User{}, nil, err
	}
	if nu.OpeningBalance < 0 || nu.OpeningBalance > models.MaxAmount {
		return models.User{}, nil, ErrInvalidAmount
	}

	u := models.User{
		Role:      nu.Role,
		Active:    true,
		FirstName: strings.TrimSpace(nu.FirstName),
		LastName:  strings.TrimSpace(nu.LastName),
		Phone:     strings.TrimSpace(nu.Phone),
		Email:     strings.TrimSpace(nu.Email),
		Address:   strings.TrimSpace(nu.Address),
	}
	if err := validateProfile(&u); err != nil {
		return models.User{}, nil, err
	}
	if u.PasswordHash, err = s.hashPassword(nu.Password); err != nil {
		return models.User{}, nil, err
	}

	_, err = s.journaled(ctx, "create_user", func(j repository.Journaled) error {
		var openErr error
		created, err = j.Users.AddWith(ctx, u, func(stored models.User) error {
			if stored.Role != models.RoleCustomer {
				return nil
			}
			a, err := j.Accounts.Open(ctx, stored.ID, nu.OpeningBalance)
			if err != nil {
				openErr = err
				return err
			}
			account = &a
			return nil
		})
		if err != nil && openErr == nil {
			return uniqueness(err)
		}
		return err
	})
	if err != nil {
		return models.User{}, nil, err
	}

	attrs := []any{logger.KeyUserID, created.ID, logger.KeyRole, created.Role.String()}
	if account != nil {
		attrs = append(attrs, logger.KeyAccount, account.Number)
	}
	logger.InfoCtx(ctx, "User created", attrs...)
	return created, account, nil
}

// OpenAccount opens an additional empty account for customerID.
func (s *Service) OpenAccount(ctx context.Context, actor models.User, customerID int32) (acc models.Account, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "open_account", telemetry.UserID(actor.ID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "open_account", start, err) }(time.Now())

	if err := requireRole(actor, models.RoleEmployee, models.RoleAdministrator); err != nil {
		return models.Account{}, err
	}
	owner, err := s.store.Users.GetByID(ctx, customerID)
	if err != nil {
		return models.Account{}, notFound(err, ErrUserNotFound)
	}
	if owner.Role != models.RoleCustomer {
		return models.Account{}, ErrNotCustomer
	}

	acc, err = s.store.Accounts.Open(ctx, owner.ID, 0)
	if err != nil {
		return models.Account{}, err
	}
	logger.InfoCtx(ctx, "Account opened", logger.KeyUserID, owner.ID, logger.KeyAccount, acc.Number)
	return acc, nil
}

// UpdateUser applies changes to userID. Employees may only modify
// customers; only administrators may change a role.
func (s *Service) UpdateUser(ctx context.Context, actor models.User, userID int32, changes UserChanges) (u models.User, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "update_user", telemetry.UserID(actor.ID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "update_user", start, err) }(time.Now())

	if err := requireRole(actor, models.RoleEmployee, models.RoleAdministrator); err != nil {
		return models.User{}, err
	}
	u, err = s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	if actor.Role == models.RoleEmployee && u.Role != models.RoleCustomer {
		return models.User{}, ErrPermissionDenied
	}
	if changes.Role != nil && actor.Role != models.RoleAdministrator {
		return models.User{}, ErrPermissionDenied
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.FirstName, changes.FirstName)
	set(&u.LastName, changes.LastName)
	set(&u.Phone, changes.Phone)
	set(&u.Email, changes.Email)
	set(&u.Address, changes.Address)
	if changes.Role != nil {
		if !changes.Role.IsValid() {
			return models.User{}, ErrInvalidRole
		}
		u.Role = *changes.Role
	}
	if err := validateProfile(&u); err != nil {
		return models.User{}, err
	}
	if changes.Password != nil {
		if u.PasswordHash, err = s.hashPassword(*changes.Password); err != nil {
			return models.User{}, err
		}
	}

	if err := s.store.Users.Update(ctx, u); err != nil {
		return models.User{}, notFound(uniqueness(err), ErrUserNotFound)
	}
	logger.InfoCtx(ctx, "User modified", logger.KeyUserID, u.ID, logger.KeyRole, u.Role.String())
	return u, nil
}

// AccountByNumber looks up an account for a staff member.
func (s *Service) AccountByNumber(ctx context.Context, actor models.User, number string) (models.Account, error) {
	if err := requireRole(actor, models.RoleEmployee, models.RoleManager, models.RoleAdministrator); err != nil {
		return models.Account{}, err
	}
	a, err := s.store.Accounts.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return models.Account{}, notFound(err, ErrAccountNotFound)
	}
	return a, nil
}

// AssignedLoans returns the open loans assigned to actor.
func (s *Service) AssignedLoans(ctx context.Context, actor models.User) ([]models.Loan, error) {
	if err := requireRole(actor, models.RoleEmployee); err != nil {
		return nil, err
	}
	return s.store.Loans.ListAssignedTo(ctx, actor.ID)
}

// ProcessLoan approves or rejects a loan assigned to actor.
//
// Approval sets the loan to Approved, credits the loan's account and
// records a Deposit transaction with counterparty LOAN_CREDIT, all in one
// journal operation. If the account is gone the loan keeps its status.
func (s *Service) ProcessLoan(ctx context.Context, actor models.User, loanID int32, approve bool) (loan models.Loan, err error) {
	operation := "reject_loan"
	if approve {
		operation = "approve_loan"
	}
	ctx, span := telemetry.StartBankSpan(ctx, operation, telemetry.UserID(actor.ID), telemetry.LoanID(loanID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, operation, start, err) }(time.Now())

	if err := requireRole(actor, models.RoleEmployee); err != nil {
		return models.Loan{}, err
	}

	var acc models.Account
	opID, err := s.journaled(ctx, operation, func(j repository.Journaled) error {
		l, err := j.Loans.Modify(ctx, loanID, func(l *models.Loan) error {
			if l.AssignedTo != actor.ID {
				return ErrLoanNotAssigned
			}
			if !l.Status.Open() {
				return ErrLoanProcessed
			}
			if approve {
				l.Status = models.LoanApproved
			} else {
				l.Status = models.LoanRejected
			}
			return nil
		})
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		loan = l
		if !approve {
			return nil
		}

		acc, err = j.Accounts.Modify(ctx, l.AccountID, func(a *models.Account) error {
			return credit(a, l.Amount)
		})
		if err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		_, err = j.Transactions.Add(ctx, models.Transaction{
			AccountID:    acc.ID,
			UserID:       acc.OwnerID,
			Type:         models.TxnDeposit,
			Amount:       l.Amount,
			NewBalance:   acc.Balance,
			Counterparty: models.CounterpartyLoanCredit,
		})
		return err
	})
	if err != nil {
		return models.Loan{}, err
	}

	if approve {
		s.moved(ctx, events.TypeLoanApproved, opID, actor, acc, models.CounterpartyLoanCredit, loan.Amount)
	} else {
		e := events.New(events.TypeLoanRejected, actor.ID)
		e.OpID = opID
		e.Amount = loan.Amount
		s.publish(ctx, e)
		logger.InfoCtx(ctx, "Loan rejected", logger.KeyLoanID, loan.ID)
	}
	return loan, nil
}

// validateProfile checks the editable fields of u.
func validateProfile(u *models.User) error {
	if err := models.ValidateName(u.FirstName); err != nil {
		return &ValidationError{Field: "first_name", Err: err}
	}
	if err := models.ValidateName(u.LastName); err != nil {
		return &ValidationError{Field: "last_name", Err: err}
	}
	if !models.IsValidPhone(u.Phone) {
		return &ValidationError{Field: "phone", Err: errors.New("invalid phone number (must be 10 digits)")}
	}
	if !models.IsValidEmail(u.Email) {
		return &ValidationError{Field: "email", Err: errors.New("invalid email format (or too long)")}
	}
	if err := models.ValidateAddress(u.Address); err != nil {
		return &ValidationError{Field: "address", Err: err}
	}
	return nil
}

// uniqueness maps repository key conflicts to rejections.
func uniqueness(err error) error {
	switch {
	case errors.Is(err, repository.ErrPhoneInUse):
		return ErrPhoneInUse
	case errors.Is(err, repository.ErrEmailInUse):
		return ErrEmailInUse
	}
	return err
}
