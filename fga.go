package accounts

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	fgaclient "github.com/openfga/go-sdk/client"
)

// Relations resolved per object by the authorization engine.
const (
	RelationCanRead   = "can_read"
	RelationCanUpdate = "can_update"
	RelationCanDelete = "can_delete"
	RelationSelfUser  = "self_user"
	RelationParentApp = "parent_app"
)

// ObjectNamespaceUserSelf is the object namespace for user-scoped checks.
const ObjectNamespaceUserSelf = "user_self"

// appObject is the singleton application object every role tuple points at.
const appObject = "app:app"

// Tuple is a (subject, relation, object) fact in the authorization engine.
type Tuple struct {
	Subject  string
	Relation string
	Object   string
}

// RelationshipClient is the transport boundary to the authorization engine.
// Write applies adds and deletes as a single multi-tuple request; partial
// application is treated as not-applied and never retried tuple by tuple.
type RelationshipClient interface {
	Check(ctx context.Context, tuple Tuple) (bool, error)
	Write(ctx context.Context, writes, deletes []Tuple) error
}

// OpenFGAClient implements RelationshipClient over the OpenFGA SDK, scoped
// to a store and authorization model fixed at construction.
type OpenFGAClient struct {
	api *fgaclient.OpenFgaClient
}

var _ RelationshipClient = (*OpenFGAClient)(nil)

// NewOpenFGAClient connects to the engine described by cfg.
func NewOpenFGAClient(cfg AuthzConfig) (*OpenFGAClient, error) {
	api, err := fgaclient.NewSdkClient(&fgaclient.ClientConfiguration{
		ApiUrl:               cfg.GetAuthzAPIURL(),
		StoreId:              cfg.GetAuthzStoreID(),
		AuthorizationModelId: cfg.GetAuthzModelID(),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create authorization engine client")
	}
	return &OpenFGAClient{api: api}, nil
}

func (c *OpenFGAClient) Check(ctx context.Context, tuple Tuple) (bool, error) {
	res, err := c.api.Check(ctx).Body(fgaclient.ClientCheckRequest{
		User:     tuple.Subject,
		Relation: tuple.Relation,
		Object:   tuple.Object,
	}).Execute()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "relationship check failed")
	}
	return res.GetAllowed(), nil
}

func (c *OpenFGAClient) Write(ctx context.Context, writes, deletes []Tuple) error {
	body := fgaclient.ClientWriteRequest{}
	for _, t := range writes {
		body.Writes = append(body.Writes, fgaclient.ClientTupleKey{
			User:     t.Subject,
			Relation: t.Relation,
			Object:   t.Object,
		})
	}
	for _, t := range deletes {
		body.Deletes = append(body.Deletes, fgaclient.ClientTupleKeyWithoutCondition{
			User:     t.Subject,
			Relation: t.Relation,
			Object:   t.Object,
		})
	}

	if _, err := c.api.Write(ctx).Body(body).Execute(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "relationship write failed")
	}
	return nil
}

// UserRelationships manages the user-scoped relationship graph: the fixed
// tuple set written at creation, removed at deletion, and the per-object
// can_* checks the guards consume. Checks always hit the engine; there is no
// local cache by design, staleness here would be a security hole.
type UserRelationships struct {
	client RelationshipClient
	logger Logger
}

func NewUserRelationships(client RelationshipClient, logger Logger) *UserRelationships {
	if logger == nil {
		logger = defLogger{}
	}
	return &UserRelationships{client: client, logger: logger}
}

func userSubject(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func userSelfObject(id int64) string {
	return fmt.Sprintf("%s:%d", ObjectNamespaceUserSelf, id)
}

// userTuples is the fixed 3-tuple set granted as a unit:
// role over the app, self over the user-scoped object, and the app as the
// object's parent.
func userTuples(userID int64, role UserRole) []Tuple {
	return []Tuple{
		{Subject: userSubject(userID), Relation: role, Object: appObject},
		{Subject: userSubject(userID), Relation: RelationSelfUser, Object: userSelfObject(userID)},
		{Subject: appObject, Relation: RelationParentApp, Object: userSelfObject(userID)},
	}
}

// Grant writes the user's tuple set in a single engine request.
func (r *UserRelationships) Grant(ctx context.Context, userID int64, role UserRole) error {
	r.logger.Info("granting %s relationships for user %d", role, userID)
	return r.client.Write(ctx, userTuples(userID, role), nil)
}

// Revoke deletes the same tuple set the user was granted at creation.
func (r *UserRelationships) Revoke(ctx context.Context, userID int64, role UserRole) error {
	r.logger.Info("revoking %s relationships for user %d", role, userID)
	return r.client.Write(ctx, nil, userTuples(userID, role))
}

func (r *UserRelationships) check(ctx context.Context, subjectID int64, relation string, objectID int64) (bool, error) {
	return r.client.Check(ctx, Tuple{
		Subject:  userSubject(subjectID),
		Relation: relation,
		Object:   userSelfObject(objectID),
	})
}

// CanRead checks whether subject holds can_read over the target user.
func (r *UserRelationships) CanRead(ctx context.Context, subjectID, objectID int64) (bool, error) {
	return r.check(ctx, subjectID, RelationCanRead, objectID)
}

// CanUpdate checks whether subject holds can_update over the target user.
func (r *UserRelationships) CanUpdate(ctx context.Context, subjectID, objectID int64) (bool, error) {
	return r.check(ctx, subjectID, RelationCanUpdate, objectID)
}

// CanDelete checks whether subject holds can_delete over the target user.
func (r *UserRelationships) CanDelete(ctx context.Context, subjectID, objectID int64) (bool, error) {
	return r.check(ctx, subjectID, RelationCanDelete, objectID)
}
