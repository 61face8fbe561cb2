package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := accounts.NewRepositoryManager(db)
	handler := accounts.NewRegisterUserHandler(repos)

	t.Run("registers a user with a hashed credential", func(t *testing.T) {
		var created *accounts.User

		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Username: "newuser",
			Email:    "new@example.com",
			FullName: "New User",
			Password: "password123",
			Avatar:   "https://cdn.example.com/a.png",
			OnResponse: func(u *accounts.User) {
				created = u
			},
		})
		require.NoError(t, err)
		require.NotNil(t, created)

		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "newuser", created.Username)
		assert.NotEqual(t, "password123", created.PasswordHash)
		assert.True(t, accounts.IsHashedSecret(created.PasswordHash))

		found, err := repos.Users().GetByIdentifier(ctx, "new@example.com")
		require.NoError(t, err)
		assert.NoError(t, accounts.ComparePasswordAndHash("password123", found.PasswordHash))
	})

	t.Run("username defaults to the email local part", func(t *testing.T) {
		var created *accounts.User

		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Email:    "localpart@example.com",
			FullName: "Local Part",
			Password: "password123",
			OnResponse: func(u *accounts.User) {
				created = u
			},
		})
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "localpart", created.Username)
	})

	t.Run("hashid ids are deterministic per email", func(t *testing.T) {
		var created *accounts.User

		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Username:  "stableid",
			Email:     "stable@example.com",
			FullName:  "Stable ID",
			Password:  "password123",
			UseHashid: true,
			OnResponse: func(u *accounts.User) {
				created = u
			},
		})
		require.NoError(t, err)
		require.NotNil(t, created)

		expected, err := hashid.NewUUID("stable@example.com")
		require.NoError(t, err)
		assert.Equal(t, expected, created.ID)
	})

	t.Run("duplicate account is a conflict", func(t *testing.T) {
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Username: "newuser",
			Email:    "other@example.com",
			FullName: "Dupe",
			Password: "password123",
		})
		assert.Error(t, err)
		assert.ErrorIs(t, err, accounts.ErrDuplicateAccount)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Username: "nopass",
			Email:    "nopass@example.com",
			FullName: "No Pass",
		})
		assert.Error(t, err)

		_, err = repos.Users().GetByIdentifier(ctx, "nopass")
		assert.Error(t, err)
	})

	t.Run("cancelled context short circuits", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, accounts.RegisterUserMessage{
			Username: "cancelled",
			Email:    "cancelled@example.com",
			Password: "password123",
		})
		assert.Error(t, err)
	})
}
