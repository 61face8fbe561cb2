package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVideo(t *testing.T, repos accounts.RepositoryManager, owner *accounts.User, title string) *accounts.Video {
	t.Helper()

	video, err := repos.Videos().Create(context.Background(), &accounts.Video{
		ID:      uuid.New(),
		OwnerID: owner.ID,
		Title:   title,
	})
	require.NoError(t, err)
	return video
}

func TestVideosWatchHistory(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := accounts.NewRepositoryManager(db)
	videos := repos.Videos()

	owner := seedUser(t, repos, "owner", "owner@example.com")
	viewer := seedUser(t, repos, "viewer", "viewer@example.com")

	first := seedVideo(t, repos, owner, "First Video")
	second := seedVideo(t, repos, owner, "Second Video")

	t.Run("empty history is an empty slice", func(t *testing.T) {
		events, err := videos.WatchHistory(ctx, viewer.ID)
		require.NoError(t, err)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})

	t.Run("events come back in append order", func(t *testing.T) {
		eventA, err := videos.AppendWatchEvent(ctx, viewer.ID, first.ID)
		require.NoError(t, err)
		eventB, err := videos.AppendWatchEvent(ctx, viewer.ID, second.ID)
		require.NoError(t, err)
		assert.Greater(t, eventB.Seq, eventA.Seq)

		// re-watching appends, it never reorders
		eventC, err := videos.AppendWatchEvent(ctx, viewer.ID, first.ID)
		require.NoError(t, err)
		assert.Greater(t, eventC.Seq, eventB.Seq)

		events, err := videos.WatchHistory(ctx, viewer.ID)
		require.NoError(t, err)
		require.Len(t, events, 3)

		assert.Equal(t, first.ID, events[0].VideoID)
		assert.Equal(t, second.ID, events[1].VideoID)
		assert.Equal(t, first.ID, events[2].VideoID)
	})

	t.Run("history joins the video and its owner", func(t *testing.T) {
		events, err := videos.WatchHistory(ctx, viewer.ID)
		require.NoError(t, err)
		require.NotEmpty(t, events)

		entry := events[0]
		require.NotNil(t, entry.Video)
		assert.Equal(t, "First Video", entry.Video.Title)
		require.NotNil(t, entry.Video.Owner)
		assert.Equal(t, "owner", entry.Video.Owner.Username)
	})

	t.Run("history is scoped to the user", func(t *testing.T) {
		events, err := videos.WatchHistory(ctx, owner.ID)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
