package accounts

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ModelHandlers binds a Repository to a concrete entity's storage mapping.
type ModelHandlers[T any] struct {
	NewRecord func() T
	GetID     func(T) int64
}

// Hooks are the entity specific lifecycle callbacks. They run strictly after
// the transaction commits, never inside it, and are expected to schedule
// deferred side effects rather than perform them inline.
type Hooks[T any] struct {
	OnCreated func(ctx context.Context, record T)
	OnUpdated func(ctx context.Context, record T)
	OnDeleted func(ctx context.Context, record T)
}

// Repository is the generic CRUD core. Every mutating operation runs inside
// exactly one storage transaction; commit failures roll back and are
// translated into the domain taxonomy before they cross this boundary, so
// raw storage errors never reach callers.
type Repository[T any] struct {
	db             *bun.DB
	target         string
	conflictDetail string
	handlers       ModelHandlers[T]
	hooks          Hooks[T]
	logger         Logger
}

type RepositoryOption[T any] func(*Repository[T])

// WithHooks installs the entity's post-commit lifecycle callbacks.
func WithHooks[T any](hooks Hooks[T]) RepositoryOption[T] {
	return func(r *Repository[T]) {
		r.hooks = hooks
	}
}

// WithConflictDetail names the unique constraint in domain terms for
// Conflict translation, e.g. "email_already_registered".
func WithConflictDetail[T any](detail string) RepositoryOption[T] {
	return func(r *Repository[T]) {
		if detail != "" {
			r.conflictDetail = detail
		}
	}
}

func WithRepositoryLogger[T any](logger Logger) RepositoryOption[T] {
	return func(r *Repository[T]) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository creates a Repository bound to one entity kind. target is the
// noun used in error codes ("user", "admin_token").
func NewRepository[T any](db *bun.DB, target string, handlers ModelHandlers[T], opts ...RepositoryOption[T]) *Repository[T] {
	r := &Repository[T]{
		db:             db,
		target:         target,
		conflictDetail: "duplicate",
		handlers:       handlers,
		logger:         defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// DB exposes the underlying handle for entity specific queries.
func (r *Repository[T]) DB() *bun.DB {
	return r.db
}

// Get returns the entity by id; absence is NotFound, never a nil record.
func (r *Repository[T]) Get(ctx context.Context, id int64) (T, error) {
	return r.GetTx(ctx, r.db, id)
}

func (r *Repository[T]) GetTx(ctx context.Context, tx bun.IDB, id int64) (T, error) {
	var zero T
	record := r.handlers.NewRecord()

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, NewNotFound(r.target, id)
		}
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load "+r.target)
	}

	return record, nil
}

// Create inserts the record in its own transaction. Unique violations roll
// back and surface as Conflict. OnCreated fires only after commit.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return zero, NewConflict(r.target, r.conflictDetail)
		}
		return zero, r.translate(err, "failed to create "+r.target)
	}

	if r.hooks.OnCreated != nil {
		r.hooks.OnCreated(ctx, record)
	}

	return record, nil
}

// Update applies a merge-patch: only the given columns change, everything
// else is left untouched. Fetch and write share one transaction, and the
// merged row is re-read inside it so the returned record reflects exactly
// what was committed. OnUpdated fires only after commit.
func (r *Repository[T]) Update(ctx context.Context, id int64, fields map[string]any) (T, error) {
	var zero T
	var record T

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if record, err = r.GetTx(ctx, tx, id); err != nil {
			return err
		}

		if len(fields) == 0 {
			return nil
		}

		q := tx.NewUpdate().Model(record).WherePK()
		for col, val := range fields {
			q = q.Set("? = ?", bun.Ident(col), val)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}

		record, err = r.GetTx(ctx, tx, id)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return zero, NewConflict(r.target, r.conflictDetail)
		}
		return zero, r.translate(err, "failed to update "+r.target)
	}

	if r.hooks.OnUpdated != nil {
		r.hooks.OnUpdated(ctx, record)
	}

	return record, nil
}

// Remove deletes the entity by id; missing rows are NotFound. OnDeleted
// fires only after commit, carrying the row as it was before deletion.
func (r *Repository[T]) Remove(ctx context.Context, id int64) error {
	var record T

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if record, err = r.GetTx(ctx, tx, id); err != nil {
			return err
		}

		_, err = tx.NewDelete().Model(record).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return r.translate(err, "failed to delete "+r.target)
	}

	if r.hooks.OnDeleted != nil {
		r.hooks.OnDeleted(ctx, record)
	}

	return nil
}

// RunInTx opens the single transaction an operation is allowed; bun rolls
// back automatically when f returns an error.
func (r *Repository[T]) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

// translate keeps taxonomy errors intact and wraps anything else so raw
// storage errors never escape the repository.
func (r *Repository[T]) translate(err error, msg string) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
