package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Error events compose with a target noun into stable machine codes,
// e.g. "user.conflict.email_already_registered".
const (
	eventNotFound     = "not_found"
	eventBadRequest   = "invalid"
	eventUnauthorized = "unauthorized"
	eventConflict     = "conflict"
	eventForbidden    = "forbidden"
)

// ErrInvalidToken is returned for any token decode failure: bad signature,
// malformed payload, or expiry. Callers never learn which.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(errorCode("token", eventUnauthorized, "invalid_token"))

// ErrInvalidCredentials is the generic response to a failed login or an
// unresolvable bearer credential.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(errorCode("user", eventUnauthorized, "invalid_credentials"))

func errorCode(target, event string, detail ...string) string {
	parts := append([]string{target, event}, detail...)
	return strings.Join(parts, ".")
}

// NewNotFound reports a missing entity, optionally carrying related ids.
func NewNotFound(target string, ids ...int64) *goerrors.Error {
	err := goerrors.New(target+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(errorCode(target, eventNotFound))
	if len(ids) > 0 {
		err = err.WithMetadata(map[string]any{"ids": ids})
	}
	return err
}

// NewConflict reports a uniqueness violation translated at the repository
// boundary; detail names the violated constraint in domain terms.
func NewConflict(target, detail string) *goerrors.Error {
	return goerrors.New(target+" already exists", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(errorCode(target, eventConflict, detail))
}

// NewBadRequest reports a validation failure before any storage mutation.
func NewBadRequest(target, detail string, ids ...int64) *goerrors.Error {
	err := goerrors.New("invalid "+target+" input", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(errorCode(target, eventBadRequest, detail))
	if len(ids) > 0 {
		err = err.WithMetadata(map[string]any{"ids": ids})
	}
	return err
}

// NewForbidden reports an authenticated caller lacking the required
// relationship over the target object.
func NewForbidden(target string) *goerrors.Error {
	return goerrors.New("missing required relationship over "+target, goerrors.CategoryAuthz).
		WithTextCode(errorCode(target, eventForbidden))
}

// TextCode extracts the stable machine code from any error in our taxonomy,
// or "" when the error carries none.
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// IsConflict reports whether err is a translated uniqueness violation.
func IsConflict(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryConflict
	}
	return false
}

// IsForbidden reports whether err is a relationship-check rejection.
func IsForbidden(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryAuthz
	}
	return false
}

// IsUnauthorized reports whether err is a credential rejection.
func IsUnauthorized(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryAuth
	}
	return false
}

// isUniqueViolation sniffs driver level unique constraint errors so the
// repository can translate them before they cross its boundary.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
