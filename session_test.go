package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObject(t *testing.T) {
	userID := uuid.New()
	issuedAt := time.Now()

	session := &accounts.SessionObject{
		UserID:   userID.String(),
		Audience: []string{"test-audience"},
		Issuer:   "test-issuer",
		IssuedAt: &issuedAt,
		Data:     map[string]any{"key": "value"},
	}

	assert.Equal(t, userID.String(), session.GetUserID())
	assert.Equal(t, []string{"test-audience"}, session.GetAudience())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, &issuedAt, session.GetIssuedAt())
	assert.Equal(t, "value", session.GetData()["key"])

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestSessionObjectGetUserUUIDInvalid(t *testing.T) {
	session := &accounts.SessionObject{UserID: "not-a-uuid"}

	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestHasUserUUID(t *testing.T) {
	withID := &accounts.SessionObject{UserID: uuid.NewString()}
	assert.True(t, accounts.HasUserUUID(withID))

	withoutID := &accounts.SessionObject{UserID: "nope"}
	assert.False(t, accounts.HasUserUUID(withoutID))

	assert.False(t, accounts.HasUserUUID(nil))
}
