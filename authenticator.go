package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AdminTokenResolver resolves admin override tokens. It runs ahead of the
// session token strategy; a credential that is not a live admin token simply
// yields no identity.
type AdminTokenResolver struct {
	tokens *AdminTokens
}

func NewAdminTokenResolver(tokens *AdminTokens) *AdminTokenResolver {
	return &AdminTokenResolver{tokens: tokens}
}

func (r *AdminTokenResolver) Resolve(ctx context.Context, credential string) (*User, error) {
	return r.tokens.Verify(ctx, credential)
}

// SessionTokenResolver decodes the general session token and resolves the
// embedded email claim to a user. Any decode or lookup failure yields no
// identity rather than an error; the authenticator collapses the overall
// miss into a single Unauthorized.
type SessionTokenResolver struct {
	codec  *TokenService
	users  *Users
	logger Logger
}

func NewSessionTokenResolver(codec *TokenService, users *Users, logger Logger) *SessionTokenResolver {
	if logger == nil {
		logger = defLogger{}
	}
	return &SessionTokenResolver{codec: codec, users: users, logger: logger}
}

func (r *SessionTokenResolver) Resolve(ctx context.Context, credential string) (*User, error) {
	claims, err := r.codec.Validate(credential)
	if err != nil {
		return nil, nil
	}

	if claims.Email == "" {
		return nil, nil
	}

	user, err := r.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// Authenticator resolves bearer credentials through an ordered list of
// strategies, first non-empty identity wins, and handles password login.
// Every terminal resolution failure collapses into ErrInvalidCredentials;
// callers never learn which strategy rejected the credential or why.
type Authenticator struct {
	resolvers []IdentityResolver
	users     *Users
	codec     *TokenService
	logger    Logger
}

type AuthenticatorOption func(*Authenticator)

func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithResolvers replaces the default admin-token-then-session chain.
func WithResolvers(resolvers ...IdentityResolver) AuthenticatorOption {
	return func(a *Authenticator) {
		if len(resolvers) > 0 {
			a.resolvers = resolvers
		}
	}
}

// NewAuthenticator builds the default resolution chain: admin override
// token first, then the general session token.
func NewAuthenticator(users *Users, tokens *AdminTokens, codec *TokenService, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		users:  users,
		codec:  codec,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if len(a.resolvers) == 0 {
		a.resolvers = []IdentityResolver{
			NewAdminTokenResolver(tokens),
			NewSessionTokenResolver(codec, users, a.logger),
		}
	}

	return a
}

// ResolveIdentity maps a bearer credential to a user, trying each strategy
// in order.
func (a *Authenticator) ResolveIdentity(ctx context.Context, credential string) (*User, error) {
	if credential == "" {
		return nil, ErrInvalidCredentials
	}

	for _, resolver := range a.resolvers {
		user, err := resolver.Resolve(ctx, credential)
		if err != nil {
			a.logger.Error("identity resolution failed: %s", err)
			return nil, ErrInvalidCredentials
		}
		if user != nil {
			return user, nil
		}
	}

	return nil, ErrInvalidCredentials
}

// Login verifies an email/password pair and issues a session token. Unknown
// email and wrong password are indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return "", ErrInvalidCredentials
	}

	return a.codec.Generate(user)
}
