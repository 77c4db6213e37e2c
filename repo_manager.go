package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() *Users
	AdminTokens() *AdminTokens
}

type mngr struct {
	db          *bun.DB
	users       *Users
	adminTokens *AdminTokens
}

// NewRepositoryManager wires the repositories over a shared bun handle.
// Options are forwarded to the Users repository so callers can attach the
// relationship client, search client, and scheduler in one place.
func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	users := NewUsersRepository(db, opts...)
	return &mngr{
		db:          db,
		users:       users,
		adminTokens: NewAdminTokensRepository(db, users),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.adminTokens == nil {
		return errors.New("repository adminTokens should be initialized")
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

func (m mngr) Users() *Users {
	return m.users
}

func (m mngr) AdminTokens() *AdminTokens {
	return m.adminTokens
}
