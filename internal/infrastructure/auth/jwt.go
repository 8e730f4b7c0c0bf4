// Package auth implements bearer token verification for the API. Tokens are
// HS256 JWTs carrying the user id in the subject claim and the role in a
// custom claim; issuing them is the identity provider's job, not ours.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskops/taskboard/internal/domain/identity"
	"github.com/taskops/taskboard/internal/domain/uuid"
	"github.com/taskops/taskboard/internal/middleware"
)

// Claims are the JWT claims understood by the validator.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT validation configuration.
type JWTConfig struct {
	// Secret is the HMAC signing key.
	Secret string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Leeway is the clock skew tolerance.
	Leeway time.Duration
}

// DefaultLeeway is the default clock skew tolerance.
const DefaultLeeway = 30 * time.Second

// JWTValidator validates HS256 bearer tokens and maps their claims to an
// actor. Implements middleware.TokenValidator.
type JWTValidator struct {
	config JWTConfig
	parser *jwt.Parser
}

var _ middleware.TokenValidator = (*JWTValidator)(nil)

// NewJWTValidator creates a validator for the given configuration.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if config.Leeway == 0 {
		config.Leeway = DefaultLeeway
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &JWTValidator{
		config: config,
		parser: jwt.NewParser(opts...),
	}, nil
}

// ValidateToken verifies the token signature and registered claims and
// returns the actor it encodes. Unknown roles degrade to the user role.
func (v *JWTValidator) ValidateToken(_ context.Context, tokenString string) (identity.Actor, error) {
	var claims Claims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Actor{}, middleware.ErrTokenExpired
		}
		return identity.Actor{}, middleware.ErrInvalidToken
	}
	if !token.Valid {
		return identity.Actor{}, middleware.ErrInvalidToken
	}

	userID, err := uuid.ParseUUID(claims.Subject)
	if err != nil {
		return identity.Actor{}, middleware.ErrInvalidToken
	}

	return identity.Actor{
		ID:   userID,
		Role: identity.ParseRole(claims.Role),
	}, nil
}

// IssueToken signs a token for the given actor. Used by tests and local
// tooling; production tokens come from the identity provider.
func IssueToken(config JWTConfig, actor identity.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.Issuer,
			Subject:   actor.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
