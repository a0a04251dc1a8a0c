package auth

import (
	"fmt"
	"strings"
)

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// Guard authorises requests from their Authorization header.
// It does no I/O beyond token verification.
type Guard struct {
	tokens *TokenService
}

// NewGuard creates a Guard backed by tokens.
func NewGuard(tokens *TokenService) *Guard {
	return &Guard{tokens: tokens}
}

// Authorize validates a session token and enforces the required role.
//
// RoleUser admits any authenticated caller; RoleAdmin admits only admins.
// Reset tokens are rejected.
func (g *Guard) Authorize(required Role, header string) (*Claims, error) {
	claims, err := g.parse(header)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != PurposeSession {
		return nil, fmt.Errorf("%w: not a session token", ErrTokenInvalid)
	}

	if required == RoleAdmin && claims.Role != RoleAdmin {
		return nil, ErrNoPermission
	}

	return claims, nil
}

// AuthorizeReset validates a password reset token.
// Session tokens are rejected.
func (g *Guard) AuthorizeReset(header string) (*Claims, error) {
	claims, err := g.parse(header)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != PurposeReset {
		return nil, fmt.Errorf("%w: not a reset token", ErrTokenInvalid)
	}

	return claims, nil
}

func (g *Guard) parse(header string) (*Claims, error) {
	if header == "" {
		return nil, ErrNoAuthHeader
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return nil, ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return nil, ErrInvalidAuthHeader
	}

	return g.tokens.Validate(token)
}
