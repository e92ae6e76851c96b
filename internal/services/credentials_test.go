package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/models"
	"github.com/taskbrew/taskbrew-backend/internal/store"
	"github.com/taskbrew/taskbrew-backend/pkg/utils"
)

type fakeUserFinder struct {
	user *models.User
	err  error
}

func (f *fakeUserFinder) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func TestVerifyHappyPath(t *testing.T) {
	hash, err := utils.HashPassword("p1")
	require.NoError(t, err)

	v := NewCredentialVerifier(&fakeUserFinder{user: &models.User{Email: "a@x.com", PasswordHash: hash}})

	u, err := v.Verify(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestVerifyFailsGenerically(t *testing.T) {
	hash, err := utils.HashPassword("p1")
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		v := NewCredentialVerifier(&fakeUserFinder{err: store.ErrNotFound})
		_, err := v.Verify(context.Background(), "nobody@x.com", "p1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		v := NewCredentialVerifier(&fakeUserFinder{user: &models.User{PasswordHash: hash}})
		_, err := v.Verify(context.Background(), "a@x.com", "p2")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash", func(t *testing.T) {
		v := NewCredentialVerifier(&fakeUserFinder{user: &models.User{PasswordHash: "garbage"}})
		_, err := v.Verify(context.Background(), "a@x.com", "p1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerifyPropagatesStoreFailure(t *testing.T) {
	unavailable := fmt.Errorf("%w: dial tcp: connection refused", database.ErrUnavailable)
	v := NewCredentialVerifier(&fakeUserFinder{err: unavailable})
	_, err := v.Verify(context.Background(), "a@x.com", "p1")
	assert.ErrorIs(t, err, database.ErrUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
