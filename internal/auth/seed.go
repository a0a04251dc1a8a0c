package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SeedUser describes an account provisioned at boot.
type SeedUser struct {
	Email    string
	Name     string
	Role     Role
	Password string
}

// SeedUsers creates any configured account that does not exist yet.
// Existing accounts are left untouched, including their passwords.
// Returns the number of accounts created.
func SeedUsers(ctx context.Context, userRepo UserRepository, hasher *Hasher, seeds []SeedUser, logger *slog.Logger) (int, error) {
	created := 0
	for _, seed := range seeds {
		email := NormalizeEmail(seed.Email)
		if email == "" {
			return created, fmt.Errorf("seed user %q: email is required", seed.Name)
		}

		_, err := userRepo.GetByEmail(ctx, email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, fmt.Errorf("looking up seed user %s: %w", email, err)
		}

		if seed.Password == "" {
			return created, fmt.Errorf("seed user %s: password is required", email)
		}

		user := &User{
			Email:        email,
			Name:         seed.Name,
			PasswordHash: hasher.Hash(seed.Password),
			Role:         seed.Role,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return created, fmt.Errorf("creating seed user %s: %w", email, err)
		}

		logger.Info("seed user created", "email", email, "role", string(user.Role))
		created++
	}

	if created == 0 {
		logger.Debug("seed users already present", "count", len(seeds))
	}
	return created, nil
}
