package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const conflictEmailAlreadyRegistered = "email_already_registered"

// relationshipGranter is the slice of the relationship client the user
// lifecycle hooks need.
type relationshipGranter interface {
	Grant(ctx context.Context, userID int64, role UserRole) error
	Revoke(ctx context.Context, userID int64, role UserRole) error
}

// userIndexer is the slice of the search client the user lifecycle hooks need.
type userIndexer interface {
	IndexUsers(ctx context.Context, users []*User) error
	ReindexUsers(ctx context.Context, users []*User) error
	RemoveUser(ctx context.Context, user *User) error
}

// Users is the User specialization of the generic repository. Its lifecycle
// hooks schedule, never execute, the relationship grant/revoke and search
// index writes; the primary commit is the durability boundary and the
// external engines are eventually consistent with it.
type Users struct {
	*Repository[*User]
	scheduler *Scheduler
	authz     relationshipGranter
	search    userIndexer
	logger    Logger
}

type UsersOption func(*Users)

func WithUsersScheduler(s *Scheduler) UsersOption {
	return func(u *Users) {
		if s != nil {
			u.scheduler = s
		}
	}
}

func WithUsersRelationships(authz relationshipGranter) UsersOption {
	return func(u *Users) {
		u.authz = authz
	}
}

func WithUsersSearch(search userIndexer) UsersOption {
	return func(u *Users) {
		u.search = search
	}
}

func WithUsersLogger(logger Logger) UsersOption {
	return func(u *Users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUsersRepository creates the Users repository. Without an explicit
// scheduler a private one is started.
func NewUsersRepository(db *bun.DB, opts ...UsersOption) *Users {
	u := &Users{logger: defLogger{}}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	if u.scheduler == nil {
		u.scheduler = NewScheduler(WithSchedulerLogger(u.logger))
	}

	u.Repository = NewRepository(db, "user", ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(record *User) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	},
		WithConflictDetail[*User](conflictEmailAlreadyRegistered),
		WithRepositoryLogger[*User](u.logger),
		WithHooks(Hooks[*User]{
			OnCreated: u.onCreated,
			OnUpdated: u.onUpdated,
			OnDeleted: u.onDeleted,
		}),
	)

	return u
}

// Scheduler exposes the deferred task queue so callers can await side
// effects, tests especially.
func (u *Users) Scheduler() *Scheduler {
	return u.scheduler
}

// Register creates an account from a registration payload. The password must
// pass the strength policy before anything touches storage, and the stored
// account is always active and never a superuser regardless of the payload.
func (u *Users) Register(ctx context.Context, input UserCreate) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(errorCode("user", eventBadRequest))
	}

	if !IsStrongPassword(input.Password) {
		return nil, NewBadRequest("user", "password_not_strong")
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        NormalizeEmail(input.Email),
		Username:     input.Username,
		PasswordHash: hash,
		IsActive:     true,
		// superuser elevation is never settable through registration
		IsSuperuser: false,
	}

	return u.Create(ctx, user)
}

// GetByEmail looks a user up by normalized email.
func (u *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := u.DB().NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFound("user")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user by email")
	}
	return record, nil
}

// Update applies a merge-patch to the user. A present password is
// re-validated against the strength policy and re-hashed; cleartext never
// reaches a storage column. Role and superuser changes are never driven
// through this path.
func (u *Users) Update(ctx context.Context, id int64, patch UserUpdate) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid update payload").
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(errorCode("user", eventBadRequest))
	}

	fields := patch.changes()

	if patch.Password != nil {
		if !IsStrongPassword(*patch.Password) {
			return nil, NewBadRequest("user", "password_not_strong", id)
		}
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		fields["password_hash"] = hash
	}

	fields["updated_at"] = time.Now()

	return u.Repository.Update(ctx, id, fields)
}

// SetAvatarURL stores the opaque object storage URI on the user row.
func (u *Users) SetAvatarURL(ctx context.Context, id int64, url string) (*User, error) {
	return u.Repository.Update(ctx, id, map[string]any{
		"avatar_url": url,
		"updated_at": time.Now(),
	})
}

// SetPasswordHash overwrites the stored hash; the reset flow calls this
// after policy checks.
func (u *Users) SetPasswordHash(ctx context.Context, id int64, hash string) (*User, error) {
	return u.Repository.Update(ctx, id, map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now(),
	})
}

func (u *Users) onCreated(ctx context.Context, user *User) {
	id, role := user.ID, user.Role()

	if u.authz != nil {
		u.scheduler.Enqueue("user.relationships.grant", func(ctx context.Context) error {
			return u.authz.Grant(ctx, id, role)
		})
	}
	if u.search != nil {
		u.scheduler.Enqueue("user.search.index", func(ctx context.Context) error {
			return u.search.IndexUsers(ctx, []*User{user})
		})
	}
}

func (u *Users) onUpdated(ctx context.Context, user *User) {
	// relationships are untouched here: role changes never ride the
	// generic update path
	if u.search != nil {
		u.scheduler.Enqueue("user.search.reindex", func(ctx context.Context) error {
			return u.search.ReindexUsers(ctx, []*User{user})
		})
	}
}

func (u *Users) onDeleted(ctx context.Context, user *User) {
	id, role := user.ID, user.Role()

	if u.authz != nil {
		u.scheduler.Enqueue("user.relationships.revoke", func(ctx context.Context) error {
			return u.authz.Revoke(ctx, id, role)
		})
	}
	if u.search != nil {
		u.scheduler.Enqueue("user.search.remove", func(ctx context.Context) error {
			return u.search.RemoveUser(ctx, user)
		})
	}
}
