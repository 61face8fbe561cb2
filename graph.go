package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ChannelProfile is the public view of a user as a channel, decorated with
// the viewer relative subscription state.
type ChannelProfile struct {
	ID                      uuid.UUID `json:"id"`
	Username                string    `json:"username"`
	FullName                string    `json:"full_name"`
	Email                   string    `json:"email"`
	Avatar                  string    `json:"avatar,omitempty"`
	CoverImage              string    `json:"cover_image,omitempty"`
	SubscribersCount        int       `json:"subscribers_count"`
	ChannelsSubscribedCount int       `json:"channels_subscribed_to_count"`
	IsSubscribed            bool      `json:"is_subscribed"`
}

// HistoryOwner is the slim projection of a video's owner embedded in
// history entries.
type HistoryOwner struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar,omitempty"`
}

// HistoryEntry is one watched video with its owner resolved.
type HistoryEntry struct {
	VideoID     uuid.UUID    `json:"video_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Duration    int          `json:"duration,omitempty"`
	Views       int64        `json:"views"`
	Owner       HistoryOwner `json:"owner"`
}

// ChannelGraph composes the relationship reads: channel profiles with
// subscriber counts and the per user watch history. Each read is a handful
// of indexed queries rather than one large join, which keeps the shape
// portable across the SQL dialects bun supports.
type ChannelGraph struct {
	users         Users
	subscriptions Subscriptions
	videos        Videos
	logger        Logger
}

func NewChannelGraph(repos RepositoryManager) *ChannelGraph {
	return &ChannelGraph{
		users:         repos.Users(),
		subscriptions: repos.Subscriptions(),
		videos:        repos.Videos(),
		logger:        defLogger{},
	}
}

func (g *ChannelGraph) WithLogger(logger Logger) *ChannelGraph {
	g.logger = logger
	return g
}

// Profile resolves a channel by username and decorates it for the viewer.
// viewerID may be uuid.Nil for anonymous viewers, in which case IsSubscribed
// is always false.
func (g *ChannelGraph) Profile(ctx context.Context, username string, viewerID uuid.UUID) (*ChannelProfile, error) {
	user, err := g.users.GetByIdentifier(ctx, NormalizeIdentifier(username))
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to resolve channel")
	}

	subscribers, err := g.subscriptions.CountSubscribers(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count subscribers")
	}

	subscribedTo, err := g.subscriptions.CountSubscriptions(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to count subscriptions")
	}

	isSubscribed := false
	if viewerID != uuid.Nil {
		isSubscribed, err = g.subscriptions.IsSubscribed(ctx, viewerID, user.ID)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check subscription")
		}
	}

	return &ChannelProfile{
		ID:                      user.ID,
		Username:                user.Username,
		FullName:                user.FullName,
		Email:                   user.Email,
		Avatar:                  user.Avatar,
		CoverImage:              user.CoverImage,
		SubscribersCount:        subscribers,
		ChannelsSubscribedCount: subscribedTo,
		IsSubscribed:            isSubscribed,
	}, nil
}

// WatchHistory returns the user's watched videos in the order the watches
// were recorded. Events whose video has since been deleted are skipped.
func (g *ChannelGraph) WatchHistory(ctx context.Context, userID uuid.UUID) ([]HistoryEntry, error) {
	events, err := g.videos.WatchHistory(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load watch history")
	}

	entries := make([]HistoryEntry, 0, len(events))
	for _, event := range events {
		if event.Video == nil {
			g.logger.Warn("watch event references missing video", "video_id", event.VideoID)
			continue
		}

		entry := HistoryEntry{
			VideoID:     event.Video.ID,
			Title:       event.Video.Title,
			Description: event.Video.Description,
			Thumbnail:   event.Video.Thumbnail,
			Duration:    event.Video.Duration,
			Views:       event.Video.Views,
		}

		if owner := event.Video.Owner; owner != nil {
			entry.Owner = HistoryOwner{
				Username: owner.Username,
				FullName: owner.FullName,
				Avatar:   owner.Avatar,
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
