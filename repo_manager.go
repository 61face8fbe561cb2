package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Subscriptions() Subscriptions
	Videos() Videos
}

type mngr struct {
	db            *bun.DB
	users         Users
	subscriptions Subscriptions
	videos        Videos
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		subscriptions: NewSubscriptionsRepository(db),
		videos:        NewVideosRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.subscriptions == nil {
		return errors.New("repository subscriptions should be initialized")
	}

	if m.videos == nil {
		return errors.New("repository videos should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Subscriptions() Subscriptions {
	return m.subscriptions
}

func (m mngr) Videos() Videos {
	return m.videos
}
