package auth

import (
	"errors"
	"testing"
)

func TestGuard_Authorize(t *testing.T) {
	tokens := NewTokenService(testSecret, 0)
	guard := NewGuard(tokens)

	userToken, err := tokens.Issue(1, RoleUser, "user@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	adminToken, err := tokens.Issue(2, RoleAdmin, "admin@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	resetToken, err := tokens.IssueReset(&User{ID: 1, Role: RoleUser, Email: "user@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("IssueReset() error = %v", err)
	}

	tests := []struct {
		name      string
		required  Role
		header    string
		wantErr   error
		wantEmail string
	}{
		{"missing header", RoleUser, "", ErrNoAuthHeader, ""},
		{"basic scheme", RoleUser, "Basic dXNlcjpwYXNz", ErrInvalidAuthHeader, ""},
		{"lowercase prefix", RoleUser, "bearer " + userToken, ErrInvalidAuthHeader, ""},
		{"prefix only", RoleUser, "Bearer ", ErrInvalidAuthHeader, ""},
		{"garbage token", RoleUser, "Bearer nope", ErrTokenInvalid, ""},
		{"reset token on session route", RoleUser, "Bearer " + resetToken, ErrTokenInvalid, ""},
		{"user on user route", RoleUser, "Bearer " + userToken, nil, "user@example.com"},
		{"admin on user route", RoleUser, "Bearer " + adminToken, nil, "admin@example.com"},
		{"user on admin route", RoleAdmin, "Bearer " + userToken, ErrNoPermission, ""},
		{"admin on admin route", RoleAdmin, "Bearer " + adminToken, nil, "admin@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := guard.Authorize(tt.required, tt.header)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Authorize() error = %v, want %v", err, tt.wantErr)
				}
				if claims != nil {
					t.Error("Authorize() should not return claims on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if claims.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", claims.Email, tt.wantEmail)
			}
		})
	}
}

func TestGuard_AuthorizeReset(t *testing.T) {
	tokens := NewTokenService(testSecret, 0)
	guard := NewGuard(tokens)

	sessionToken, err := tokens.Issue(1, RoleUser, "user@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	resetToken, err := tokens.IssueReset(&User{ID: 1, Role: RoleUser, Email: "user@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("IssueReset() error = %v", err)
	}

	if _, err := guard.AuthorizeReset("Bearer " + sessionToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("AuthorizeReset(session) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := guard.AuthorizeReset(""); !errors.Is(err, ErrNoAuthHeader) {
		t.Errorf("AuthorizeReset(\"\") error = %v, want ErrNoAuthHeader", err)
	}

	claims, err := guard.AuthorizeReset("Bearer " + resetToken)
	if err != nil {
		t.Fatalf("AuthorizeReset() error = %v", err)
	}
	if claims.Purpose != PurposeReset {
		t.Errorf("Purpose = %q, want %q", claims.Purpose, PurposeReset)
	}
}
