package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/bankd/pkg/adapter"
	"github.com/marmos91/bankd/pkg/api/problem"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
)

// UserStore authenticates and looks up users. *banking.Service implements it.
type UserStore interface {
	adapter.Authenticator
	User(ctx context.Context, userID int32) (models.User, error)
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		problem.BadRequest(w, r, "Invalid request body")
		return false
	}
	return true
}

// getUserOrUnauthorized fetches a user by id, returning 401 if not found.
// Used for auth-related endpoints where user absence means invalid auth.
func getUserOrUnauthorized(w http.ResponseWriter, r *http.Request, store UserStore, id int32) (models.User, bool) {
	user, err := store.User(r.Context(), id)
	if err != nil {
		if errors.Is(err, banking.ErrUserNotFound) {
			problem.Unauthorized(w, r, "User no longer exists")
			return models.User{}, false
		}
		problem.Internal(w, r, "Failed to get user")
		return models.User{}, false
	}
	return user, true
}

// isStaff reports whether role may use the admin API.
func isStaff(role models.Role) bool {
	return role == models.RoleManager || role == models.RoleAdministrator
}
