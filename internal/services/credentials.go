package services

import (
	"context"
	"errors"

	"github.com/taskbrew/taskbrew-backend/internal/models"
	"github.com/taskbrew/taskbrew-backend/internal/store"
	"github.com/taskbrew/taskbrew-backend/pkg/utils"
)

// ErrInvalidCredentials covers every way a login can fail on the caller's
// side: unknown email or wrong password. One error for both, so the
// response never reveals which part was wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserFinder is the slice of the user store credential verification needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// CredentialVerifier checks a submitted email/password pair against the
// stored identity records.
type CredentialVerifier struct {
	users UserFinder
}

func NewCredentialVerifier(users UserFinder) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify returns the identity matching the credentials, or
// ErrInvalidCredentials. Infrastructure failures (store unreachable)
// propagate unchanged so they are not mistaken for bad credentials.
// The plaintext password and the stored hash never leave this function.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	u, err := v.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
