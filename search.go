package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/meilisearch/meilisearch-go"
)

// UserIndexName is the search engine index holding user documents
const UserIndexName = "users"

// searchIndex is the slice of the Meilisearch index API this client uses.
type searchIndex interface {
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	UpdateDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteDocument(identifier string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// taskGetter polls async engine operations until they settle.
type taskGetter interface {
	GetTask(taskUID int64) (*meilisearch.Task, error)
}

// UserSearch maintains the denormalized user documents in the search engine.
// Mutations are asynchronous engine side; each call here polls the operation
// status handle until it leaves the pending states so completion is
// confirmed before returning. In the repository's normal flow these calls
// run on the deferred task scheduler, not the request path.
type UserSearch struct {
	index        searchIndex
	tasks        taskGetter
	pollInterval time.Duration
	logger       Logger
}

type UserSearchOption func(*UserSearch)

func WithSearchLogger(logger Logger) UserSearchOption {
	return func(s *UserSearch) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewUserSearch connects to the engine and bootstraps the users index with
// id as a filterable attribute, which the exclude-self query filter needs.
func NewUserSearch(cfg SearchConfig, opts ...UserSearchOption) (*UserSearch, error) {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.GetSearchHost(),
		APIKey: cfg.GetSearchAPIKey(),
	})

	s := &UserSearch{
		index:        client.Index(UserIndexName),
		tasks:        client,
		pollInterval: 10 * time.Millisecond,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if info, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        UserIndexName,
		PrimaryKey: "id",
	}); err == nil {
		_ = s.awaitTask(context.Background(), info)
	}

	if info, err := client.Index(UserIndexName).UpdateFilterableAttributes(&[]string{"id"}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to configure users index")
	} else if err := s.awaitTask(context.Background(), info); err != nil {
		return nil, err
	}

	return s, nil
}

// newUserSearchWithIndex wires an explicit index and task poller; tests use
// it to substitute fakes for the engine.
func newUserSearchWithIndex(index searchIndex, tasks taskGetter, logger Logger) *UserSearch {
	if logger == nil {
		logger = defLogger{}
	}
	return &UserSearch{
		index:        index,
		tasks:        tasks,
		pollInterval: time.Millisecond,
		logger:       logger,
	}
}

// IndexUsers adds documents for the given users.
func (s *UserSearch) IndexUsers(ctx context.Context, users []*User) error {
	info, err := s.index.AddDocuments(documentsFor(users))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to add user documents")
	}
	return s.awaitTask(ctx, info)
}

// ReindexUsers rewrites documents for the given users.
func (s *UserSearch) ReindexUsers(ctx context.Context, users []*User) error {
	info, err := s.index.UpdateDocuments(documentsFor(users))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user documents")
	}
	return s.awaitTask(ctx, info)
}

// RemoveUser deletes the user's document.
func (s *UserSearch) RemoveUser(ctx context.Context, user *User) error {
	info, err := s.index.DeleteDocument(user.Document().DocumentID())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user document")
	}
	return s.awaitTask(ctx, info)
}

// Query runs a single-page full text query. The requesting user's own
// document is always excluded; ordering is engine relevance.
func (s *UserSearch) Query(ctx context.Context, text string, offset int64, excludeID int64) ([]UserDocument, error) {
	res, err := s.index.Search(text, &meilisearch.SearchRequest{
		Offset: offset,
		Filter: fmt.Sprintf("id != %d", excludeID),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user search query failed")
	}

	docs := make([]UserDocument, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			s.logger.Error("failed to encode search hit: %s", err)
			continue
		}
		var doc UserDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Error("failed to decode search hit: %s", err)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// awaitTask polls the operation status until it leaves the pending states.
func (s *UserSearch) awaitTask(ctx context.Context, info *meilisearch.TaskInfo) error {
	if info == nil {
		return nil
	}

	for {
		task, err := s.tasks.GetTask(info.TaskUID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to poll search task")
		}

		switch task.Status {
		case meilisearch.TaskStatusEnqueued, meilisearch.TaskStatusProcessing:
		case meilisearch.TaskStatusSucceeded:
			return nil
		default:
			return goerrors.New(
				fmt.Sprintf("search task %d finished with status %s", info.TaskUID, task.Status),
				goerrors.CategoryInternal,
			)
		}

		select {
		case <-ctx.Done():
			return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "cancelled while awaiting search task")
		case <-time.After(s.pollInterval):
		}
	}
}

func documentsFor(users []*User) []UserDocument {
	docs := make([]UserDocument, 0, len(users))
	for _, u := range users {
		docs = append(docs, u.Document())
	}
	return docs
}
