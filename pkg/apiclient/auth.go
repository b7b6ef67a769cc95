package apiclient

import (
	"context"
	"time"
)

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	UserID   int32  `json:"user_id"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// User is the public view of a user.
type User struct {
	ID        int32     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"` // seconds
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// ExpiresInDuration returns ExpiresIn as a time.Duration.
func (t *TokenResponse) ExpiresInDuration() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

// Login authenticates a staff user. role is the role name, e.g. "manager".
func (c *Client) Login(ctx context.Context, userID int32, password, role string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.post(ctx, "/api/v1/auth/login", LoginRequest{
		UserID:   userID,
		Password: password,
		Role:     role,
	}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	req := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: refreshToken}

	var resp TokenResponse
	if err := c.post(ctx, "/api/v1/auth/refresh", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the user the access token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/v1/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}
