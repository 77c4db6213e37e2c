package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const resetTokenScope = "password_reset"

// resetSigningMethod is pinned so reset tokens stay verifiable even when the
// session token algorithm configuration changes.
var resetSigningMethod = jwt.SigningMethodHS256

// SessionClaims are the claims embedded in a session token. Email is the
// claim the identity resolution path keys on.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// TokenService issues and validates signed, time-limited bearer tokens:
// session tokens and password reset tokens.
type TokenService struct {
	signingKey      []byte
	signingMethod   jwt.SigningMethod
	tokenExpiration int
	resetExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a TokenService from config. Expirations are hours.
func NewTokenService(cfg Config, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}

	method := jwt.GetSigningMethod(cfg.GetSigningMethod())
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		method = jwt.SigningMethodHS256
	}

	return &TokenService{
		signingKey:      []byte(cfg.GetSigningKey()),
		signingMethod:   method,
		tokenExpiration: cfg.GetTokenExpiration(),
		resetExpiration: cfg.GetResetTokenExpiration(),
		issuer:          cfg.GetIssuer(),
		audience:        cfg.GetAudience(),
		logger:          logger,
	}
}

// Generate creates a session token for the user with the configured TTL
func (ts *TokenService) Generate(user *User) (string, error) {
	return ts.GenerateWithTTL(user, time.Duration(ts.tokenExpiration)*time.Hour)
}

// GenerateWithTTL creates a session token with an explicit TTL
func (ts *TokenService) GenerateWithTTL(user *User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: user.Email,
		Role:  user.Role(),
	}

	token := jwt.NewWithClaims(ts.signingMethod, claims)
	return token.SignedString(ts.signingKey)
}

// Validate parses a session token. Every failure mode, bad signature,
// malformed payload, or expiry, collapses into ErrInvalidToken.
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("token validation failed: %s", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateResetToken issues a password reset token scoped separately from
// session tokens, signed with the pinned reset profile.
func (ts *TokenService) GenerateResetToken(email string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.resetExpiration) * time.Hour)),
		},
		Email: NormalizeEmail(email),
		Scope: resetTokenScope,
	}

	token := jwt.NewWithClaims(resetSigningMethod, claims)
	return token.SignedString(ts.signingKey)
}

// ValidateResetToken decodes a reset token and returns the email it was
// issued for. Failures collapse into ErrInvalidToken.
func (ts *TokenService) ValidateResetToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != resetSigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	})
	if err != nil {
		ts.logger.Debug("reset token validation failed: %s", err)
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Scope != resetTokenScope || claims.Email == "" {
		return "", ErrInvalidToken
	}

	return claims.Email, nil
}
