package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    is_superuser BOOLEAN NOT NULL DEFAULT 0,
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`
	sqliteCreateAdminTokens = `CREATE TABLE admin_tokens (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    user_id INTEGER NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
);`
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateAdminTokens)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

type testConfig struct {
	signingKey    string
	signingMethod string
	tokenExp      int
	resetExp      int
	issuer        string
	audience      []string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:    "test-signing-key-0123456789",
		signingMethod: "HS256",
		tokenExp:      24,
		resetExp:      4,
		issuer:        "accounts-test",
		audience:      []string{"accounts"},
	}
}

func (c *testConfig) GetSigningKey() string          { return c.signingKey }
func (c *testConfig) GetSigningMethod() string       { return c.signingMethod }
func (c *testConfig) GetTokenExpiration() int        { return c.tokenExp }
func (c *testConfig) GetResetTokenExpiration() int   { return c.resetExp }
func (c *testConfig) GetIssuer() string              { return c.issuer }
func (c *testConfig) GetAudience() []string          { return c.audience }

// fakeAuthz mimics the relationship engine's model resolution: a user can
// act on itself through the self relationship, and superusers can act on
// anyone through the app role.
type fakeAuthz struct {
	mu     sync.Mutex
	roles  map[int64]accounts.UserRole
	selves map[int64]bool
	grants int
	revoke int
}

func newFakeAuthz() *fakeAuthz {
	return &fakeAuthz{
		roles:  map[int64]accounts.UserRole{},
		selves: map[int64]bool{},
	}
}

func (f *fakeAuthz) Grant(_ context.Context, userID int64, role accounts.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = role
	f.selves[userID] = true
	f.grants++
	return nil
}

func (f *fakeAuthz) Revoke(_ context.Context, userID int64, _ accounts.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, userID)
	delete(f.selves, userID)
	f.revoke++
	return nil
}

func (f *fakeAuthz) allowed(subjectID, objectID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roles[subjectID] == accounts.RoleSuperuser {
		return true
	}
	return subjectID == objectID && f.selves[objectID]
}

func (f *fakeAuthz) CanRead(_ context.Context, subjectID, objectID int64) (bool, error) {
	return f.allowed(subjectID, objectID), nil
}

func (f *fakeAuthz) CanUpdate(_ context.Context, subjectID, objectID int64) (bool, error) {
	return f.allowed(subjectID, objectID), nil
}

func (f *fakeAuthz) CanDelete(_ context.Context, subjectID, objectID int64) (bool, error) {
	return f.allowed(subjectID, objectID), nil
}

// fakeIndexer records search index traffic.
type fakeIndexer struct {
	mu        sync.Mutex
	indexed   []int64
	reindexed []int64
	removed   []int64
}

func (f *fakeIndexer) IndexUsers(_ context.Context, users []*accounts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		f.indexed = append(f.indexed, u.ID)
	}
	return nil
}

func (f *fakeIndexer) ReindexUsers(_ context.Context, users []*accounts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range users {
		f.reindexed = append(f.reindexed, u.ID)
	}
	return nil
}

func (f *fakeIndexer) RemoveUser(_ context.Context, user *accounts.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, user.ID)
	return nil
}

type usersEnv struct {
	db        *bun.DB
	users     *accounts.Users
	scheduler *accounts.Scheduler
	authz     *fakeAuthz
	search    *fakeIndexer
}

func setupUsers(t *testing.T) *usersEnv {
	t.Helper()

	db := setupDB(t)
	scheduler := accounts.NewScheduler()
	authz := newFakeAuthz()
	search := &fakeIndexer{}

	users := accounts.NewUsersRepository(db,
		accounts.WithUsersScheduler(scheduler),
		accounts.WithUsersRelationships(authz),
		accounts.WithUsersSearch(search),
	)

	t.Cleanup(func() {
		scheduler.Wait()
		scheduler.Close()
	})

	return &usersEnv{
		db:        db,
		users:     users,
		scheduler: scheduler,
		authz:     authz,
		search:    search,
	}
}
