package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Username and email are stored normalized
// (lowercased, trimmed); RefreshToken is the single authoritative slot for
// the identity's current refresh token.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FullName       string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	Avatar         string     `bun:"avatar" json:"avatar,omitempty"`
	CoverImage     string     `bun:"cover_image" json:"cover_image,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	RefreshToken   *string    `bun:"refresh_token" json:"-"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Normalize lowercases and trims the unique identifier fields in place.
func (u *User) Normalize() *User {
	u.Username = NormalizeIdentifier(u.Username)
	u.Email = NormalizeIdentifier(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)
	return u
}

// Subscription is a directed edge from a subscriber to a channel. Edges are
// immutable once created; unsubscribe deletes the edge. The
// (subscriber_id, channel_id) pair is unique at the schema level.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SubscriberID  uuid.UUID  `bun:"subscriber_id,notnull,type:uuid,unique:subscriber_channel" json:"subscriber_id,omitempty"`
	ChannelID     uuid.UUID  `bun:"channel_id,notnull,type:uuid,unique:subscriber_channel" json:"channel_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Video is the content item referenced by watch history entries.
type Video struct {
	bun.BaseModel `bun:"table:videos,alias:vid"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	OwnerID       uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Owner         *User      `bun:"rel:belongs-to,join:owner_id=id" json:"owner,omitempty"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	Thumbnail     string     `bun:"thumbnail" json:"thumbnail,omitempty"`
	Duration      int        `bun:"duration" json:"duration,omitempty"`
	Views         int64      `bun:"views" json:"views,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// WatchEvent records one watch-history entry. Seq is assigned by the store
// in insertion order; history views sort on it so the sequence a client
// sees always matches the order events were appended.
type WatchEvent struct {
	bun.BaseModel `bun:"table:watch_history,alias:wh"`
	Seq           int64      `bun:"seq,pk,autoincrement" json:"seq,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	VideoID       uuid.UUID  `bun:"video_id,notnull,type:uuid" json:"video_id,omitempty"`
	Video         *Video     `bun:"rel:belongs-to,join:video_id=id" json:"video,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeIdentifier lowercases and trims a username or email so lookups
// and the unique constraints always operate on the same form.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
