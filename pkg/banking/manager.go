package banking

import (
	"context"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/events"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
)

// StatusChange is the outcome of SetUserStatus.
type StatusChange struct {
	User models.User

	// Accounts whose flag changed, and accounts that could not be updated.
	Updated int
	Failed  int
}

// SetUserStatus activates or deactivates userID and every account the user
// owns. Managers may only change customers; administrators any user.
func (s *Service) SetUserStatus(ctx context.Context, actor models.User, userID int32, active bool) (res StatusChange, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "set_user_status", telemetry.UserID(actor.ID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "set_user_status", start, err) }(time.Now())

	if err := requireRole(actor, models.RoleManager, models.RoleAdministrator); err != nil {
		return StatusChange{}, err
	}

	opID, err := s.journaled(ctx, "set_user_status", func(j repository.Journaled) error {
		u, err := j.Users.Modify(ctx, userID, func(u *models.User) error {
			if actor.Role == models.RoleManager && u.Role != models.RoleCustomer {
				return ErrPermissionDenied
			}
			u.Active = active
			return nil
		})
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		res.User = u

		res.Updated, res.Failed, err = j.Accounts.SetActiveForOwner(ctx, userID, active)
		return err
	})
	if err != nil {
		return StatusChange{}, err
	}

	logger.InfoCtx(ctx, "User status changed",
		logger.KeyUserID, userID, logger.KeyActive, active,
		"accounts_updated", res.Updated, "accounts_failed", res.Failed)

	e := events.New(events.TypeUserStatus, actor.ID)
	e.OpID = opID
	e.Counterparty = res.User.FullName()
	s.publish(ctx, e)
	return res, nil
}

// UnassignedLoans returns pending loans no employee works on yet.
func (s *Service) UnassignedLoans(ctx context.Context, actor models.User) ([]models.Loan, error) {
	if err := requireRole(actor, models.RoleManager); err != nil {
		return nil, err
	}
	return s.store.Loans.ListUnassigned(ctx)
}

// AssignLoan hands a pending, unassigned loan to employeeID and moves it to
// Processing. The employee is checked before the loan.
func (s *Service) AssignLoan(ctx context.Context, actor models.User, loanID, employeeID int32) (loan models.Loan, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "assign_loan", telemetry.UserID(actor.ID), telemetry.LoanID(loanID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "assign_loan", start, err) }(time.Now())

	if err := requireRole(actor, models.RoleManager); err != nil {
		return models.Loan{}, err
	}
	emp, err := s.store.Users.GetByID(ctx, employeeID)
	if err != nil {
		return models.Loan{}, notFound(err, ErrInvalidEmployee)
	}
	if emp.Role != models.RoleEmployee || !emp.Active {
		return models.Loan{}, ErrInvalidEmployee
	}

	loan, err = s.store.Loans.Modify(ctx, loanID, func(l *models.Loan) error {
		if l.AssignedTo != 0 || l.Status != models.LoanPending {
			return ErrLoanNotAssignable
		}
		l.AssignedTo = emp.ID
		l.Status = models.LoanProcessing
		return nil
	})
	if err != nil {
		return models.Loan{}, notFound(err, ErrLoanNotFound)
	}

	logger.InfoCtx(ctx, "Loan assigned", logger.KeyLoanID, loan.ID, logger.KeyUserID, emp.ID)
	return loan, nil
}

// UnreviewedFeedback returns feedback not yet marked as reviewed.
func (s *Service) UnreviewedFeedback(ctx context.Context, actor models.User) ([]models.Feedback, error) {
	if err := requireRole(actor, models.RoleManager); err != nil {
		return nil, err
	}
	return s.store.Feedback.ListUnreviewed(ctx)
}

// ReviewFeedback marks feedbackID as reviewed.
func (s *Service) ReviewFeedback(ctx context.Context, actor models.User, feedbackID int32) (models.Feedback, error) {
	if err := requireRole(actor, models.RoleManager); err != nil {
		return models.Feedback{}, err
	}
	f, err := s.store.Feedback.Modify(ctx, feedbackID, func(f *models.Feedback) error {
		if f.Reviewed {
			return ErrFeedbackReviewed
		}
		f.Reviewed = true
		return nil
	})
	if err != nil {
		return models.Feedback{}, notFound(err, ErrFeedbackNotFound)
	}
	return f, nil
}
