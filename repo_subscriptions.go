package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subscriptions manages the directed subscriber -> channel edges behind
// channel profiles. Counts and membership checks are read paths the graph
// engine composes; Subscribe and Unsubscribe are the only writers.
type Subscriptions interface {
	repository.Repository[*Subscription]

	Subscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*Subscription, error)
	Unsubscribe(ctx context.Context, subscriberID, channelID uuid.UUID) error

	CountSubscribers(ctx context.Context, channelID uuid.UUID) (int, error)
	CountSubscriptions(ctx context.Context, subscriberID uuid.UUID) (int, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error)
}

type subscriptions struct {
	repository.Repository[*Subscription]
	db *bun.DB
}

var _ Subscriptions = (*subscriptions)(nil)

func NewSubscriptionsRepository(db *bun.DB) Subscriptions {
	repo := repository.NewRepository[*Subscription](db, repository.ModelHandlers[*Subscription]{
		NewRecord: func() *Subscription { return &Subscription{} },
		GetID: func(s *Subscription) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Subscription, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &subscriptions{
		Repository: repo,
		db:         db,
	}
}

// Subscribe creates the edge. Re-subscribing is a conflict, not an upsert,
// so callers can distinguish a no-op from a state change.
func (s *subscriptions) Subscribe(ctx context.Context, subscriberID, channelID uuid.UUID) (*Subscription, error) {
	if subscriberID == channelID {
		return nil, ErrSelfSubscription
	}

	exists, err := s.IsSubscribed(ctx, subscriberID, channelID)
	if err != nil {
		return nil, err
	}

	if exists {
		return nil, ErrAlreadySubscribed
	}

	record := &Subscription{
		ID:           uuid.New(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
	}

	return s.Repository.Create(ctx, record)
}

// Unsubscribe removes the edge. Removing an edge that does not exist is not
// an error.
func (s *subscriptions) Unsubscribe(ctx context.Context, subscriberID, channelID uuid.UUID) error {
	_, err := s.db.NewDelete().
		Model((*Subscription)(nil)).
		Where("?TableAlias.subscriber_id = ?", subscriberID).
		Where("?TableAlias.channel_id = ?", channelID).
		Exec(ctx)

	return err
}

func (s *subscriptions) CountSubscribers(ctx context.Context, channelID uuid.UUID) (int, error) {
	return s.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("?TableAlias.channel_id = ?", channelID).
		Count(ctx)
}

func (s *subscriptions) CountSubscriptions(ctx context.Context, subscriberID uuid.UUID) (int, error) {
	return s.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("?TableAlias.subscriber_id = ?", subscriberID).
		Count(ctx)
}

func (s *subscriptions) IsSubscribed(ctx context.Context, subscriberID, channelID uuid.UUID) (bool, error) {
	return s.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("?TableAlias.subscriber_id = ?", subscriberID).
		Where("?TableAlias.channel_id = ?", channelID).
		Exists(ctx)
}
