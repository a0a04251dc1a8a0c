package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of session and reset tokens.
const DefaultTokenTTL = 30 * time.Minute

// Purpose distinguishes login sessions from password reset links.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
)

// fingerprintLen is the number of hex characters kept from the password hash digest.
const fingerprintLen = 16

// Claims is the payload of a signed token.
type Claims struct {
	jwt.RegisteredClaims
	Role    Role    `json:"role"`
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`

	// PasswordFingerprint ties a reset token to the password it replaces,
	// so the link stops working once the password changes.
	PasswordFingerprint string `json:"pwd,omitempty"`
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject is not a user id", ErrTokenInvalid)
	}
	return id, nil
}

// TokenService issues and validates HS512-signed tokens.
// Tokens are stateless: validity is signature plus expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. A non-positive ttl selects DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a session token for a user.
func (s *TokenService) Issue(userID int64, role Role, email string) (string, error) {
	return s.sign(userID, role, email, PurposeSession, "")
}

// IssueReset creates a password reset token bound to the user's current password hash.
func (s *TokenService) IssueReset(user *User) (string, error) {
	return s.sign(user.ID, user.Role, user.Email, PurposeReset, PasswordFingerprint(user.PasswordHash))
}

func (s *TokenService) sign(userID int64, role Role, email string, purpose Purpose, fingerprint string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Role:                role,
		Email:               email,
		Purpose:             purpose,
		PasswordFingerprint: fingerprint,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm and expiry, and returns the claims.
// Every failure wraps ErrTokenInvalid.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if claims.Role != RoleUser && claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrTokenInvalid)
	}
	if claims.Purpose != PurposeSession && claims.Purpose != PurposeReset {
		return nil, fmt.Errorf("%w: unknown purpose", ErrTokenInvalid)
	}

	return claims, nil
}

// PasswordFingerprint returns a short digest of a stored password hash.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
