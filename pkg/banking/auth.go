package banking

import (
	"context"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/internal/telemetry"
	"github.com/marmos91/bankd/pkg/models"
)

// Login authenticates userID with password for the selected role.
//
// Checks run in a fixed order: unknown id or wrong password, then a
// deactivated user, then a role that differs from the selected one. Session
// exclusivity is the caller's concern.
func (s *Service) Login(ctx context.Context, userID int32, password string, role models.Role) (u models.User, err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "login", telemetry.UserID(userID), telemetry.Role(role.String()))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "login", start, err) }(time.Now())

	u, err = s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, notFound(err, ErrInvalidCredentials)
	}
	if !u.CheckPassword(password) {
		return models.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return models.User{}, ErrUserInactive
	}
	if u.Role != role {
		return models.User{}, ErrRoleMismatch
	}

	if models.NeedsRehash(u.PasswordHash) && s.bcryptCost >= models.DefaultBcryptCost {
		s.rehash(ctx, u.ID, password)
	}
	return u, nil
}

// rehash upgrades a stored hash made with a weaker cost. Failures are
// logged and otherwise ignored.
func (s *Service) rehash(ctx context.Context, userID int32, password string) {
	hash, err := models.HashPasswordWithCost(password, s.bcryptCost)
	if err != nil {
		return
	}
	_, err = s.store.Users.Modify(ctx, userID, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		logger.WarnCtx(ctx, "Failed to upgrade password hash", logger.KeyUserID, userID, logger.KeyError, err)
	}
}

// User returns the current record of userID.
func (s *Service) User(ctx context.Context, userID int32) (models.User, error) {
	u, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return models.User{}, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// ChangePassword replaces actor's password.
func (s *Service) ChangePassword(ctx context.Context, actor models.User, password string) (err error) {
	ctx, span := telemetry.StartBankSpan(ctx, "change_password", telemetry.UserID(actor.ID))
	defer span.End()
	defer func(start time.Time) { s.observe(ctx, "change_password", start, err) }(time.Now())

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.store.Users.Modify(ctx, actor.ID, func(u *models.User) error {
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return notFound(err, ErrUserNotFound)
	}

	logger.InfoCtx(ctx, "Password changed", logger.KeyUserID, actor.ID)
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	if err := models.ValidatePassword(password); err != nil {
		return "", &ValidationError{Field: "password", Err: err}
	}
	return models.HashPasswordWithCost(password, s.bcryptCost)
}
