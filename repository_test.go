package accounts_test

import (
	"context"
	"sync"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newUserRepo(t *testing.T, db *bun.DB, opts ...accounts.RepositoryOption[*accounts.User]) *accounts.Repository[*accounts.User] {
	t.Helper()
	return accounts.NewRepository(db, "user", accounts.ModelHandlers[*accounts.User]{
		NewRecord: func() *accounts.User { return &accounts.User{} },
		GetID: func(record *accounts.User) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	}, opts...)
}

func TestRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t))

	created, err := repo.Create(ctx, &accounts.User{
		Email:        "pepe@example.com",
		Username:     "pepe",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pepe@example.com", got.Email)
	assert.Equal(t, "pepe", got.Username)

	// reads are idempotent
	again, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Email, again.Email)
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := newUserRepo(t, setupDB(t))

	_, err := repo.Get(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, "user.not_found", accounts.TextCode(err))
}

func TestRepositoryCreateConflictLeavesExistingRow(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t), accounts.WithConflictDetail[*accounts.User]("email_already_registered"))

	first, err := repo.Create(ctx, &accounts.User{
		Email:        "dup@example.com",
		Username:     "original",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &accounts.User{
		Email:        "dup@example.com",
		Username:     "impostor",
		PasswordHash: "hash",
	})
	require.Error(t, err)
	assert.True(t, accounts.IsConflict(err))
	assert.Equal(t, "user.conflict.email_already_registered", accounts.TextCode(err))

	// the losing insert rolled back without touching the winner
	kept, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", kept.Username)
}

func TestRepositoryUpdateMergePatch(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t))

	created, err := repo.Create(ctx, &accounts.User{
		Email:        "patch@example.com",
		Username:     "before",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, map[string]any{
		"username": "after",
	})
	require.NoError(t, err)

	// only the named column changed
	assert.Equal(t, "after", updated.Username)
	assert.Equal(t, "patch@example.com", updated.Email)
	assert.Equal(t, "hash", updated.PasswordHash)
	assert.True(t, updated.IsActive)
}

func TestRepositoryUpdateEmptyPatch(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t))

	created, err := repo.Create(ctx, &accounts.User{
		Email:        "noop@example.com",
		Username:     "same",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "same", updated.Username)
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := newUserRepo(t, setupDB(t))

	_, err := repo.Update(context.Background(), 404, map[string]any{"username": "x"})
	require.Error(t, err)
	assert.Equal(t, "user.not_found", accounts.TextCode(err))
}

func TestRepositoryUpdateConflict(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t), accounts.WithConflictDetail[*accounts.User]("email_already_registered"))

	_, err := repo.Create(ctx, &accounts.User{
		Email:        "taken@example.com",
		Username:     "a",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	second, err := repo.Create(ctx, &accounts.User{
		Email:        "free@example.com",
		Username:     "b",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	_, err = repo.Update(ctx, second.ID, map[string]any{"email": "taken@example.com"})
	require.Error(t, err)
	assert.True(t, accounts.IsConflict(err))

	// rolled back, the row keeps its email
	kept, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "free@example.com", kept.Email)
}

func TestRepositoryRemove(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t, setupDB(t))

	created, err := repo.Create(ctx, &accounts.User{
		Email:        "gone@example.com",
		Username:     "gone",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, created.ID))

	_, err = repo.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "user.not_found", accounts.TextCode(err))

	// removing again reports NotFound
	err = repo.Remove(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "user.not_found", accounts.TextCode(err))
}

func TestRepositoryHooksRunAfterCommit(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	var mu sync.Mutex
	var events []string
	var deletedRow *accounts.User

	var repo *accounts.Repository[*accounts.User]
	repo = newUserRepo(t, db, accounts.WithHooks(accounts.Hooks[*accounts.User]{
		OnCreated: func(ctx context.Context, record *accounts.User) {
			// the row is committed and visible by the time the hook runs
			if _, err := repo.Get(ctx, record.ID); err == nil {
				mu.Lock()
				events = append(events, "created")
				mu.Unlock()
			}
		},
		OnUpdated: func(ctx context.Context, record *accounts.User) {
			mu.Lock()
			events = append(events, "updated:"+record.Username)
			mu.Unlock()
		},
		OnDeleted: func(ctx context.Context, record *accounts.User) {
			mu.Lock()
			events = append(events, "deleted")
			deletedRow = record
			mu.Unlock()
		},
	}))

	created, err := repo.Create(ctx, &accounts.User{
		Email:        "hooks@example.com",
		Username:     "hooked",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	_, err = repo.Update(ctx, created.ID, map[string]any{"username": "rehooked"})
	require.NoError(t, err)

	require.NoError(t, repo.Remove(ctx, created.ID))

	assert.Equal(t, []string{"created", "updated:rehooked", "deleted"}, events)
	// the delete hook carries the row as it was before deletion
	require.NotNil(t, deletedRow)
	assert.Equal(t, "rehooked", deletedRow.Username)
}

func TestRepositoryHooksDoNotRunOnFailure(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	var fired bool
	repo := newUserRepo(t, db, accounts.WithHooks(accounts.Hooks[*accounts.User]{
		OnCreated: func(ctx context.Context, record *accounts.User) {
			fired = true
		},
	}))

	_, err := repo.Create(ctx, &accounts.User{
		Email:        "once@example.com",
		Username:     "once",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	fired = false

	_, err = repo.Create(ctx, &accounts.User{
		Email:        "once@example.com",
		Username:     "again",
		PasswordHash: "hash",
	})
	require.Error(t, err)
	assert.False(t, fired)
}

func TestRepositoryRunInTxCancelled(t *testing.T) {
	repo := newUserRepo(t, setupDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		t.Fatal("transaction body must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
