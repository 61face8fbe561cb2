package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*accounts.User, *memTokenStore, *MockUserTracker, *accounts.Auther, *capturingSink) {
	t.Helper()

	passwordHash, err := accounts.HashPassword("password123")
	require.NoError(t, err)

	user := newTestUser()
	user.PasswordHash = passwordHash

	store := newMemTokenStore(user)
	tracker := new(MockUserTracker)
	sink := &capturingSink{}

	provider := accounts.NewUserProvider(tracker)
	tokens := accounts.NewTokenService(newTestConfig(), store, nil)

	auther := accounts.NewAuthenticator(provider, tokens).WithActivitySink(sink)

	return user, store, tracker, auther, sink
}

func TestAutherLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful login issues a pair and records it", func(t *testing.T) {
		user, store, tracker, auther, sink := newAuthFixture(t)

		tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, mock.Anything).Return(nil).Once()

		pair, err := auther.Login(ctx, user.Email, "password123")
		require.NoError(t, err)
		require.NotNil(t, pair)
		assert.NotEmpty(t, pair.Access)

		slot := store.currentRefreshToken(user.ID)
		require.NotNil(t, slot)
		assert.Equal(t, pair.Refresh, *slot)

		require.Len(t, sink.events, 1)
		assert.Equal(t, accounts.ActivityEventLoginSuccess, sink.events[0].EventType)
		assert.Equal(t, user.ID.String(), sink.events[0].UserID)

		tracker.AssertExpectations(t)
	})

	t.Run("bad password records a failure", func(t *testing.T) {
		user, _, tracker, auther, sink := newAuthFixture(t)

		tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, mock.Anything).Return(nil).Once()

		pair, err := auther.Login(ctx, user.Email, "wrong_password")
		assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)
		assert.Nil(t, pair)

		require.Len(t, sink.events, 1)
		assert.Equal(t, accounts.ActivityEventLoginFailure, sink.events[0].EventType)

		tracker.AssertExpectations(t)
	})
}

func TestAutherRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation emits a rotated event", func(t *testing.T) {
		user, _, tracker, auther, sink := newAuthFixture(t)

		tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, mock.Anything).Return(nil).Once()

		pair, err := auther.Login(ctx, user.Email, "password123")
		require.NoError(t, err)

		rotated, err := auther.Refresh(ctx, pair.Refresh)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Refresh, rotated.Refresh)

		require.Len(t, sink.events, 2)
		assert.Equal(t, accounts.ActivityEventTokenRotated, sink.events[1].EventType)
	})

	t.Run("reuse is recorded as a theft signal", func(t *testing.T) {
		user, _, tracker, auther, sink := newAuthFixture(t)

		tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, mock.Anything).Return(nil).Once()

		pair, err := auther.Login(ctx, user.Email, "password123")
		require.NoError(t, err)

		_, err = auther.Refresh(ctx, pair.Refresh)
		require.NoError(t, err)

		_, err = auther.Refresh(ctx, pair.Refresh)
		assert.True(t, accounts.IsStaleTokenError(err))

		require.Len(t, sink.events, 3)
		assert.Equal(t, accounts.ActivityEventTokenReuse, sink.events[2].EventType)
	})
}

func TestAutherLogout(t *testing.T) {
	ctx := context.Background()
	user, store, tracker, auther, sink := newAuthFixture(t)

	tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
	tracker.On("TrackSuccessfulLogin", ctx, mock.Anything).Return(nil).Once()

	pair, err := auther.Login(ctx, user.Email, "password123")
	require.NoError(t, err)

	require.NoError(t, auther.Logout(ctx, user.ID.String()))
	assert.Nil(t, store.currentRefreshToken(user.ID))

	// the revoked refresh token can no longer rotate
	_, err = auther.Refresh(ctx, pair.Refresh)
	assert.True(t, accounts.IsStaleTokenError(err))

	require.GreaterOrEqual(t, len(sink.events), 2)
	assert.Equal(t, accounts.ActivityEventLogout, sink.events[1].EventType)

	t.Run("logout is idempotent", func(t *testing.T) {
		assert.NoError(t, auther.Logout(ctx, user.ID.String()))
	})
}

func TestAutherSessionFromToken(t *testing.T) {
	ctx := context.Background()
	user, _, tracker, auther, _ := newAuthFixture(t)

	tracker.On("GetByIdentifier", ctx, user.Email).Return(user, nil).Once()
	tracker.On("TrackSuccessfulLogin", ctx, mock.Anything).Return(nil).Once()

	pair, err := auther.Login(ctx, user.Email, "password123")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), session.GetUserID())
	assert.Equal(t, "test-issuer", session.GetIssuer())
	assert.Equal(t, []string{"test-audience"}, session.GetAudience())

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, parsed)

	t.Run("rejects a bad token", func(t *testing.T) {
		_, err := auther.SessionFromToken("nope")
		assert.Error(t, err)
	})
}

func TestAutherIdentityFromSession(t *testing.T) {
	ctx := context.Background()
	user, _, tracker, auther, _ := newAuthFixture(t)

	session := &accounts.SessionObject{UserID: user.ID.String()}

	tracker.On("GetByIdentifier", ctx, user.ID.String()).Return(user, nil).Once()

	identity, err := auther.IdentityFromSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, user.Username, identity.Username())

	t.Run("unknown session user", func(t *testing.T) {
		missing := uuid.NewString()
		tracker.On("GetByIdentifier", ctx, missing).
			Return(nil, accounts.ErrIdentityNotFound).Once()

		_, err := auther.IdentityFromSession(ctx, &accounts.SessionObject{UserID: missing})
		assert.Error(t, err)
	})

	tracker.AssertExpectations(t)
}
