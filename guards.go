package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// relationshipChecker is the slice of the relationship client guards consume.
type relationshipChecker interface {
	CanRead(ctx context.Context, subjectID, objectID int64) (bool, error)
	CanUpdate(ctx context.Context, subjectID, objectID int64) (bool, error)
	CanDelete(ctx context.Context, subjectID, objectID int64) (bool, error)
}

// Guards are the per-object authorization preconditions the request layer
// composes ahead of repository calls, so Forbidden short-circuits before any
// storage mutation is attempted. The relationship engine is the single
// source of truth; nothing is cached locally.
type Guards struct {
	authz relationshipChecker
}

func NewGuards(authz relationshipChecker) *Guards {
	return &Guards{authz: authz}
}

func (g *Guards) guard(ctx context.Context, actor *User, targetID int64,
	check func(ctx context.Context, subjectID, objectID int64) (bool, error)) error {

	if actor == nil {
		return ErrInvalidCredentials
	}

	allowed, err := check(ctx, actor.ID, targetID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "relationship check failed")
	}
	if !allowed {
		return NewForbidden("user")
	}
	return nil
}

// CanRead fails with Forbidden unless actor holds can_read over the target.
func (g *Guards) CanRead(ctx context.Context, actor *User, targetID int64) error {
	return g.guard(ctx, actor, targetID, g.authz.CanRead)
}

// CanUpdate fails with Forbidden unless actor holds can_update over the target.
func (g *Guards) CanUpdate(ctx context.Context, actor *User, targetID int64) error {
	return g.guard(ctx, actor, targetID, g.authz.CanUpdate)
}

// CanDelete fails with Forbidden unless actor holds can_delete over the target.
func (g *Guards) CanDelete(ctx context.Context, actor *User, targetID int64) error {
	return g.guard(ctx, actor, targetID, g.authz.CanDelete)
}

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the resolved User in the given context so the request
// layer can hand it to guards downstream.
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}
