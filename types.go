package accounts

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the credential codec options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetTokenExpiration() int
	GetResetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// AuthzConfig locates the relationship engine store and model
type AuthzConfig interface {
	GetAuthzAPIURL() string
	GetAuthzStoreID() string
	GetAuthzModelID() string
}

// SearchConfig locates the document search engine
type SearchConfig interface {
	GetSearchHost() string
	GetSearchAPIKey() string
}

// StorageConfig locates the avatar object store
type StorageConfig interface {
	GetStorageBucket() string
	GetStorageRegion() string
	GetStorageEndpoint() string
	GetStorageAccessKey() string
	GetStorageSecretKey() string
	GetStoragePublicURL() string
}

// IdentityResolver maps a bearer credential to a user. A (nil, nil) return
// means the credential is not of this resolver's kind and the next strategy
// should be tried.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*User, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
