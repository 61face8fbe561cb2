package accounts

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// SwapRefreshTokenSQL is the compare-and-swap behind rotation: the update
// only lands when the stored slot still holds the token being replaced.
var SwapRefreshTokenSQL = `UPDATE "users" AS "usr"
SET
	"refresh_token" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."id" = ?
AND "usr"."refresh_token" = ? RETURNING *;`

var ClearRefreshTokenSQL = `UPDATE "users" AS "usr"
SET
	"refresh_token" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
);`

type Users interface {
	repository.Repository[*User]

	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	UpdateAccount(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (*User, error)
	UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (*User, error)
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	SwapRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
	_ TokenStore                   = (*users)(nil)
	_ UserTracker                  = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx creates the user after confirming neither the username nor the
// email is taken. The unique constraints still back this up at the schema
// level; the pre-check exists to surface a clean conflict error.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	user.Normalize()

	existing, err := a.getByUsernameOrEmailTx(ctx, tx, user.Username, user.Email)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if existing != nil {
		return nil, ErrDuplicateAccount
	}

	return a.CreateTx(ctx, tx, user)
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	return a.GetByIdentifier(ctx, id)
}

func (a *users) GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	return a.getByUsernameOrEmailTx(ctx, a.db, NormalizeIdentifier(username), NormalizeIdentifier(email))
}

func (a *users) getByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, username, email string) (*User, error) {
	record := &User{}

	q := tx.NewSelect().Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.username = ?", username).
				WhereOr("?TableAlias.email = ?", email)
		}).
		Limit(1)

	if err := q.Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
					"email":    email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

// UpdateAccount updates the mutable public fields. It never touches the
// password hash, so no re-hash can happen on this path.
func (a *users) UpdateAccount(ctx context.Context, id uuid.UUID, fullName, email string) (*User, error) {
	record := &User{}
	record.ID = id
	record.FullName = strings.TrimSpace(fullName)
	record.Email = NormalizeIdentifier(email)

	return a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))
}

func (a *users) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (*User, error) {
	record := &User{}
	record.ID = id
	record.Avatar = url

	return a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))
}

func (a *users) UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (*User, error) {
	record := &User{}
	record.ID = id
	record.CoverImage = url

	return a.Repository.Update(ctx, record, repository.UpdateByID(id.String()))
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont persist
	// nullable columns consistently; raw SQL keeps the slot semantics exact.
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, id).Exec(ctx)

	return err
}

// SwapRefreshToken atomically replaces current with next. When the slot no
// longer holds current the swap is rejected as stale: either a concurrent
// rotation already won or the token was revoked.
func (a *users) SwapRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	res, err := a.Repository.Raw(ctx, SwapRefreshTokenSQL, next, id.String(), current)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrRefreshTokenStale
	}

	return nil
}

func (a *users) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewRaw(ClearRefreshTokenSQL, id.String()).Exec(ctx)
	return err
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(user.ID.String()),
	}

	record := &User{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Normalize()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  NormalizeIdentifier(trimmed),
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  NormalizeIdentifier(trimmed),
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
