package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Videos is the content store plus the per user watch history log. History
// is append only: every watch is a new row with a store assigned sequence
// number, and reads always come back in append order.
type Videos interface {
	repository.Repository[*Video]

	AppendWatchEvent(ctx context.Context, userID, videoID uuid.UUID) (*WatchEvent, error)
	AppendWatchEventTx(ctx context.Context, tx bun.IDB, userID, videoID uuid.UUID) (*WatchEvent, error)
	WatchHistory(ctx context.Context, userID uuid.UUID) ([]*WatchEvent, error)
}

type videos struct {
	repository.Repository[*Video]
	db *bun.DB
}

var _ Videos = (*videos)(nil)

func NewVideosRepository(db *bun.DB) Videos {
	repo := repository.NewRepository[*Video](db, repository.ModelHandlers[*Video]{
		NewRecord: func() *Video { return &Video{} },
		GetID: func(v *Video) uuid.UUID {
			if v == nil {
				return uuid.Nil
			}
			return v.ID
		},
		SetID: func(v *Video, id uuid.UUID) {
			if v != nil {
				v.ID = id
			}
		},
	})

	return &videos{
		Repository: repo,
		db:         db,
	}
}

func (v *videos) AppendWatchEvent(ctx context.Context, userID, videoID uuid.UUID) (*WatchEvent, error) {
	return v.AppendWatchEventTx(ctx, v.db, userID, videoID)
}

func (v *videos) AppendWatchEventTx(ctx context.Context, tx bun.IDB, userID, videoID uuid.UUID) (*WatchEvent, error) {
	event := &WatchEvent{
		UserID:  userID,
		VideoID: videoID,
	}

	if _, err := tx.NewInsert().Model(event).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}

	return event, nil
}

// WatchHistory returns the user's watch events oldest first, each with its
// video and the video's owner loaded. An empty history is an empty slice,
// never an error.
func (v *videos) WatchHistory(ctx context.Context, userID uuid.UUID) ([]*WatchEvent, error) {
	events := []*WatchEvent{}

	err := v.db.NewSelect().
		Model(&events).
		Relation("Video").
		Relation("Video.Owner").
		Where("?TableAlias.user_id = ?", userID).
		Order("wh.seq ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return events, nil
}
