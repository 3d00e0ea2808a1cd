// Package security provides JWT authentication for the HTTP API.
package security

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ingest-worker/config"
	"ingest-worker/pkg/errors"
)

// Claims are the JWT claims issued and accepted by the API.
type Claims struct {
	Subject string   `json:"sub_name"`
	Roles   []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates API tokens.
type TokenManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

func NewTokenManager(cfg *config.SecurityConfig) (*TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.NewConfigurationError("auth enabled but no jwt secret configured")
	}
	expiry := cfg.JWTExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		expiry: expiry,
	}, nil
}

// GenerateToken issues a signed token for the given subject.
func (tm *TokenManager) GenerateToken(subject string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.InternalError, "TOKEN_SIGN_FAILED", "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a token string.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewValidationError("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, errors.ValidationError, "TOKEN_INVALID", "token validation failed")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.NewValidationError("invalid token claims")
	}
	return claims, nil
}

// Middleware returns a fiber handler that rejects requests without a
// valid bearer token. Claims are stored in locals under "claims".
func (tm *TokenManager) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if auth == "" {
			return unauthorized(c, "missing authorization header")
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return unauthorized(c, "malformed authorization header")
		}

		claims, err := tm.ValidateToken(parts[1])
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":  "unauthorized",
		"reason": reason,
	})
}
