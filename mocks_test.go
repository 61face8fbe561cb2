package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockUserTracker implements accounts.UserTracker for testing
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*accounts.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*accounts.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSuccessfulLogin(ctx context.Context, user *accounts.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// TestIdentity is a plain Identity value for token tests
type TestIdentity struct {
	id       string
	username string
	email    string
	fullName string
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) FullName() string { return t.fullName }

// capturingSink records activity events in order
type capturingSink struct {
	events []accounts.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt accounts.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

// memTokenStore is an in-memory TokenStore with the same slot semantics as
// the SQL-backed repository: SwapRefreshToken only lands when the slot still
// holds the token being replaced.
type memTokenStore struct {
	mu       sync.Mutex
	users    map[string]*accounts.User
	swapHook func() error
}

func newMemTokenStore(users ...*accounts.User) *memTokenStore {
	store := &memTokenStore{users: map[string]*accounts.User{}}
	for _, user := range users {
		store.users[user.ID.String()] = user
	}
	return store
}

func (m *memTokenStore) GetByID(ctx context.Context, id string) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{"id": id})
	}

	clone := *user
	return &clone, nil
}

func (m *memTokenStore) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id.String()]
	if !ok {
		return repository.NewRecordNotFound()
	}

	user.RefreshToken = &token
	return nil
}

func (m *memTokenStore) SwapRefreshToken(ctx context.Context, id uuid.UUID, current, next string) error {
	if m.swapHook != nil {
		if err := m.swapHook(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id.String()]
	if !ok || user.RefreshToken == nil || *user.RefreshToken != current {
		return accounts.ErrRefreshTokenStale
	}

	user.RefreshToken = &next
	return nil
}

func (m *memTokenStore) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[id.String()]; ok {
		user.RefreshToken = nil
	}
	return nil
}

func (m *memTokenStore) currentRefreshToken(id uuid.UUID) *string {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id.String()]
	if !ok {
		return nil
	}
	return user.RefreshToken
}

// testConfig implements accounts.Config
type testConfig struct {
	accessKey     string
	refreshKey    string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	audience      []string
	contextKey    string
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessKey:     "access-signing-secret",
		refreshKey:    "refresh-signing-secret",
		accessExpiry:  15 * time.Minute,
		refreshExpiry: 240 * time.Hour,
		issuer:        "test-issuer",
		audience:      []string{"test-audience"},
		contextKey:    "session",
	}
}

func (c *testConfig) GetAccessSigningKey() string              { return c.accessKey }
func (c *testConfig) GetRefreshSigningKey() string             { return c.refreshKey }
func (c *testConfig) GetSigningMethod() string                 { return "HS256" }
func (c *testConfig) GetContextKey() string                    { return c.contextKey }
func (c *testConfig) GetAccessTokenExpiration() time.Duration  { return c.accessExpiry }
func (c *testConfig) GetRefreshTokenExpiration() time.Duration { return c.refreshExpiry }
func (c *testConfig) GetAccessCookieName() string              { return "accessToken" }
func (c *testConfig) GetRefreshCookieName() string             { return "refreshToken" }
func (c *testConfig) GetAuthScheme() string                    { return "Bearer" }
func (c *testConfig) GetIssuer() string                        { return c.issuer }
func (c *testConfig) GetAudience() []string                    { return c.audience }

// setupTestDB opens an isolated in-memory SQLite database with the account
// schema created.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*accounts.User)(nil),
		(*accounts.Subscription)(nil),
		(*accounts.Video)(nil),
		(*accounts.WatchEvent)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	return db
}

func seedUser(t *testing.T, repos accounts.RepositoryManager, username, email string) *accounts.User {
	t.Helper()

	user, err := repos.Users().Register(context.Background(), &accounts.User{
		Username: username,
		Email:    email,
		FullName: username,
	})
	require.NoError(t, err)
	return user
}
