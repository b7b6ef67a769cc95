package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/api/auth"
	"github.com/marmos91/bankd/pkg/api/middleware"
	"github.com/marmos91/bankd/pkg/api/problem"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/models"
)

// AuthHandler handles authentication-related API endpoints.
//
// Only managers and administrators receive tokens. The same credential
// check as the teller protocol is used, so a deactivated user or a wrong
// role is refused here too.
type AuthHandler struct {
	users      UserStore
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users UserStore, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	UserID   int32  `json:"user_id"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a sanitized user representation for API responses.
type UserResponse struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.UserID <= 0 || req.Password == "" || req.Role == "" {
		problem.BadRequest(w, r, "user_id, password and role are required")
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		problem.BadRequest(w, r, err.Error())
		return
	}
	if !isStaff(role) {
		problem.Forbidden(w, r, "Only managers and administrators may use the admin API")
		return
	}

	user, err := h.users.Login(r.Context(), req.UserID, req.Password, role)
	if err != nil {
		switch {
		case errors.Is(err, banking.ErrInvalidCredentials), errors.Is(err, banking.ErrRoleMismatch):
			problem.Unauthorized(w, r, "Invalid user id, password or role")
		case errors.Is(err, banking.ErrUserInactive):
			problem.Forbidden(w, r, "User account is deactivated")
		default:
			logger.ErrorCtx(r.Context(), "API login failed", logger.KeyUserID, req.UserID, logger.KeyError, err)
			problem.Internal(w, r, "Authentication failed")
		}
		return
	}

	h.issue(w, r, user)
}

// Refresh handles POST /api/v1/auth/refresh.
// Returns a new token pair using a valid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		problem.BadRequest(w, r, "Refresh token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			problem.Unauthorized(w, r, "Refresh token has expired")
			return
		}
		problem.Unauthorized(w, r, "Invalid refresh token")
		return
	}

	// Role and status may have changed since the token was issued.
	user, ok := getUserOrUnauthorized(w, r, h.users, claims.UserID)
	if !ok {
		return
	}
	if !user.Active {
		problem.Forbidden(w, r, "User account is deactivated")
		return
	}
	if !isStaff(user.Role) {
		problem.Forbidden(w, r, "Only managers and administrators may use the admin API")
		return
	}

	h.issue(w, r, user)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		problem.Unauthorized(w, r, "Authentication required")
		return
	}

	user, ok := getUserOrUnauthorized(w, r, h.users, claims.UserID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, user models.User) {
	pair, err := h.jwtService.GenerateTokenPair(user)
	if err != nil {
		problem.Internal(w, r, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
		User:         userToResponse(user),
	})
}

func userToResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.FullName(),
		Role:      u.Role.String(),
		Phone:     u.Phone,
		Email:     u.Email,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
