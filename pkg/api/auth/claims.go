// Package auth issues and validates the JWTs of the admin HTTP API.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/bankd/pkg/models"
)

// TokenType indicates whether a token is an access token or refresh token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived token used for API authorization.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived token used to obtain new access tokens.
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the JWT claims of a bank staff member.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the bank user id.
	UserID int32 `json:"uid"`

	// Name is the user's full name, for display only.
	Name string `json:"name,omitempty"`

	// Role is the role name ("manager", "administrator", ...).
	Role string `json:"role"`

	// TokenType indicates whether this is an access or refresh token.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken returns true if this is an access token.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken returns true if this is a refresh token.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}

// UserRole parses Role. An unknown name yields an error.
func (c *Claims) UserRole() (models.Role, error) {
	return models.ParseRole(c.Role)
}

// HasRole reports whether the token was issued to one of roles.
func (c *Claims) HasRole(roles ...models.Role) bool {
	role, err := c.UserRole()
	return err == nil && slices.Contains(roles, role)
}
