package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput is returned when a required request field is empty.
var ErrInvalidInput = errors.New("invalid input")

// Accounts implements the credential flows that sit on top of the
// user directory: login, password change, password reset and device
// registration.
type Accounts struct {
	users  UserRepository
	hasher *Hasher
	tokens *TokenService
}

// NewAccounts creates an Accounts service.
func NewAccounts(users UserRepository, hasher *Hasher, tokens *TokenService) *Accounts {
	return &Accounts{users: users, hasher: hasher, tokens: tokens}
}

// SessionTTL is the lifetime of tokens issued by Login.
func (a *Accounts) SessionTTL() time.Duration {
	return a.tokens.TTL()
}

// Login verifies a password and issues a session token.
func (a *Accounts) Login(ctx context.Context, email, password string) (string, *User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if err := a.checkPassword(password, user.PasswordHash); err != nil {
		return "", nil, err
	}

	token, err := a.tokens.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
// The body email must name the same account as the session.
func (a *Accounts) ChangePassword(ctx context.Context, claims *Claims, email, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrInvalidInput)
	}
	if NormalizeEmail(email) != NormalizeEmail(claims.Email) {
		return ErrNoPermission
	}

	user, err := a.accountFor(ctx, claims)
	if err != nil {
		return err
	}

	if err := a.checkPassword(current, user.PasswordHash); err != nil {
		return err
	}

	return a.users.UpdatePassword(ctx, user.ID, a.hasher.Hash(next))
}

// StartReset issues a reset token for the account. The caller delivers it.
func (a *Accounts) StartReset(ctx context.Context, email string) (string, *User, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	token, err := a.tokens.IssueReset(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// CompleteReset sets a new password from a reset token.
// The token stops working as soon as the password it was issued against changes.
func (a *Accounts) CompleteReset(ctx context.Context, claims *Claims, email, password string) error {
	if claims.Purpose != PurposeReset {
		return ErrTokenInvalid
	}
	if password == "" {
		return fmt.Errorf("%w: reset password is required", ErrInvalidInput)
	}
	if email != "" && NormalizeEmail(email) != NormalizeEmail(claims.Email) {
		return ErrNoPermission
	}

	user, err := a.accountFor(ctx, claims)
	if err != nil {
		return err
	}

	if PasswordFingerprint(user.PasswordHash) != claims.PasswordFingerprint {
		return fmt.Errorf("%w: reset link already used", ErrTokenInvalid)
	}

	return a.users.UpdatePassword(ctx, user.ID, a.hasher.Hash(password))
}

// RegisterDevice stores the push token for the session's account.
func (a *Accounts) RegisterDevice(ctx context.Context, claims *Claims, deviceToken string) error {
	deviceToken = strings.TrimSpace(deviceToken)
	if deviceToken == "" {
		return fmt.Errorf("%w: device token is required", ErrInvalidInput)
	}
	return a.users.SetDeviceToken(ctx, claims.Email, deviceToken)
}

// accountFor loads the account a token was issued to. A token whose email
// no longer matches that account is rejected.
func (a *Accounts) accountFor(ctx context.Context, claims *Claims) (*User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if NormalizeEmail(user.Email) != NormalizeEmail(claims.Email) {
		return nil, fmt.Errorf("%w: token does not match account", ErrTokenInvalid)
	}
	return user, nil
}

func (a *Accounts) checkPassword(password, encoded string) error {
	ok, err := a.hasher.Verify(password, encoded)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}
