package adapter

import (
	"context"

	"github.com/marmos91/bankd/pkg/models"
)

// Authenticator verifies credentials for a selected role.
//
// Implementations return the authenticated user on success. Failures are
// reported as errors the adapter maps with MapError, so the client learns
// whether the id or password was wrong, the user is deactivated, or the
// role does not match. *banking.Service implements it.
//
// Implementations must be safe for concurrent use.
type Authenticator interface {
	Login(ctx context.Context, userID int32, password string, role models.Role) (models.User, error)
}
