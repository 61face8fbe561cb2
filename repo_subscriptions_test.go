package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := accounts.NewRepositoryManager(db)
	subs := repos.Subscriptions()

	channel := seedUser(t, repos, "channel", "channel@example.com")
	alice := seedUser(t, repos, "alice", "alice@example.com")
	bob := seedUser(t, repos, "bob", "bob@example.com")

	t.Run("subscribe creates the edge", func(t *testing.T) {
		edge, err := subs.Subscribe(ctx, alice.ID, channel.ID)
		require.NoError(t, err)
		require.NotNil(t, edge)
		assert.Equal(t, alice.ID, edge.SubscriberID)
		assert.Equal(t, channel.ID, edge.ChannelID)

		subscribed, err := subs.IsSubscribed(ctx, alice.ID, channel.ID)
		require.NoError(t, err)
		assert.True(t, subscribed)
	})

	t.Run("subscribing twice is a conflict", func(t *testing.T) {
		_, err := subs.Subscribe(ctx, alice.ID, channel.ID)
		assert.ErrorIs(t, err, accounts.ErrAlreadySubscribed)
	})

	t.Run("self subscription is rejected", func(t *testing.T) {
		_, err := subs.Subscribe(ctx, channel.ID, channel.ID)
		assert.ErrorIs(t, err, accounts.ErrSelfSubscription)
	})

	t.Run("counts are per direction", func(t *testing.T) {
		_, err := subs.Subscribe(ctx, bob.ID, channel.ID)
		require.NoError(t, err)
		_, err = subs.Subscribe(ctx, alice.ID, bob.ID)
		require.NoError(t, err)

		subscribers, err := subs.CountSubscribers(ctx, channel.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, subscribers)

		outbound, err := subs.CountSubscriptions(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, outbound)

		outbound, err = subs.CountSubscriptions(ctx, channel.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, outbound)
	})

	t.Run("edges are directed", func(t *testing.T) {
		subscribed, err := subs.IsSubscribed(ctx, channel.ID, alice.ID)
		require.NoError(t, err)
		assert.False(t, subscribed)
	})

	t.Run("unsubscribe removes the edge", func(t *testing.T) {
		require.NoError(t, subs.Unsubscribe(ctx, alice.ID, channel.ID))

		subscribed, err := subs.IsSubscribed(ctx, alice.ID, channel.ID)
		require.NoError(t, err)
		assert.False(t, subscribed)

		subscribers, err := subs.CountSubscribers(ctx, channel.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, subscribers)
	})

	t.Run("unsubscribing a missing edge is a no-op", func(t *testing.T) {
		assert.NoError(t, subs.Unsubscribe(ctx, alice.ID, channel.ID))
	})
}
