package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminTokens manages admin override tokens. Tokens are created by
// administrative provisioning, never updated, and either expire or are
// deleted.
type AdminTokens struct {
	*Repository[*AdminToken]
	users  *Users
	logger Logger
}

type AdminTokensOption func(*AdminTokens)

func WithAdminTokensLogger(logger Logger) AdminTokensOption {
	return func(a *AdminTokens) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAdminTokensRepository(db *bun.DB, users *Users, opts ...AdminTokensOption) *AdminTokens {
	a := &AdminTokens{users: users, logger: defLogger{}}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	a.Repository = NewRepository(db, "admin_token", ModelHandlers[*AdminToken]{
		NewRecord: func() *AdminToken { return &AdminToken{} },
		GetID: func(record *AdminToken) int64 {
			if record == nil {
				return 0
			}
			return record.ID
		},
	},
		WithConflictDetail[*AdminToken]("token_already_exists"),
		WithRepositoryLogger[*AdminToken](a.logger),
	)

	return a
}

// Provision creates a token for a superuser owner. Non-superuser owners are
// rejected up front; the superuser condition is checked again at every
// verification.
func (a *AdminTokens) Provision(ctx context.Context, userID int64, ttl time.Duration) (*AdminToken, error) {
	owner, err := a.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !owner.IsSuperuser {
		return nil, NewBadRequest("admin_token", "owner_not_superuser", userID)
	}

	token := &AdminToken{
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl),
		UserID:    userID,
	}

	return a.Create(ctx, token)
}

// Verify resolves a token string to its owning user. Both conditions are
// evaluated now, not at issuance: the token must be unexpired AND the owner
// must currently be a superuser, so stripping the flag invalidates every
// outstanding token. An unknown, expired, or demoted token resolves to
// (nil, nil) so the caller can fall through to the next credential strategy.
func (a *AdminTokens) Verify(ctx context.Context, token string) (*User, error) {
	record := &AdminToken{}
	err := a.DB().NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expires_at > ?", time.Now()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load admin token")
	}

	user, err := a.users.Get(ctx, record.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if !user.IsSuperuser {
		return nil, nil
	}

	return user, nil
}

// PurgeExpired removes tokens whose expiry has passed.
func (a *AdminTokens) PurgeExpired(ctx context.Context) (int64, error) {
	var deleted int64
	err := a.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*AdminToken)(nil)).
			Where("?TableAlias.expires_at <= ?", time.Now()).
			Exec(ctx)
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge expired admin tokens")
	}
	return deleted, nil
}
