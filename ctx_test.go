package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext(t *testing.T) {
	user := &accounts.User{ID: uuid.New(), Username: "ctxuser"}

	ctx := accounts.WithContext(context.Background(), user)

	found, ok := accounts.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, found)

	t.Run("missing user", func(t *testing.T) {
		_, ok := accounts.FromContext(context.Background())
		assert.False(t, ok)
	})
}

func TestSessionContext(t *testing.T) {
	session := &accounts.SessionObject{UserID: uuid.NewString()}

	ctx := accounts.WithSessionContext(context.Background(), session)

	found, ok := accounts.SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, session.GetUserID(), found.GetUserID())

	t.Run("missing session", func(t *testing.T) {
		_, ok := accounts.SessionFromContext(context.Background())
		assert.False(t, ok)
	})
}
