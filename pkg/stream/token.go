package stream

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clockSkewAllowance backdates issued-at so tokens validate on clients whose
// clocks run slightly ahead of the server.
const clockSkewAllowance = time.Minute

// GenerateUserToken mints a short-lived HS256 call token for the given user.
// The token is scoped by user id; the platform enforces call-level access
// from the user's role and membership.
func (c *Client) GenerateUserToken(userID string, validity time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if validity <= 0 {
		return "", fmt.Errorf("token validity must be positive")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Add(-clockSkewAllowance).Unix(),
		"exp":     now.Add(validity).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign user token: %w", err)
	}

	return signed, nil
}

// serverToken mints the server-scoped token used to authenticate REST calls
// against the platform.
func (c *Client) serverToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"server": true,
		"iat":    now.Add(-clockSkewAllowance).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.apiSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign server token: %w", err)
	}

	return signed, nil
}
