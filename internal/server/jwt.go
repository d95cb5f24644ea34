package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/server/middleware"
	"github.com/jonathan/venture-planner/internal/types"
)

// Claims represents JWT claims with user ID.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// GetUserID implements middleware.UserIDGetter.
func (c *Claims) GetUserID() uuid.UUID {
	return c.UserID
}

// JWTService issues and validates HS256 API tokens.
type JWTService struct {
	config config.JWTConfig
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	if cfg.Issuer == "" {
		cfg.Issuer = config.DefaultJWTIssuer
	}
	return &JWTService{config: cfg, now: time.Now}
}

// Issue signs a token for user and reports when it expires.
func (s *JWTService) Issue(user *types.User) (*types.TokenResponse, error) {
	token, expiresAt, err := s.sign(user.ID)
	if err != nil {
		return nil, err
	}
	return &types.TokenResponse{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *JWTService) sign(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.config.Expiration)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("token expired: %w", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, fmt.Errorf("invalid token signature: %w", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("malformed token: %w", err)
	default:
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user id")
	}
	return claims, nil
}

// AsTokenValidator adapts the service to middleware.TokenValidator.
func (s *JWTService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{s}
}

type tokenValidator struct{ s *JWTService }

func (v tokenValidator) ValidateToken(token string) (middleware.UserIDGetter, error) {
	claims, err := v.s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
