package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrAuthDisabled is returned by LoadAuth when JWT_SECRET is not set.
var ErrAuthDisabled = errors.New("JWT_SECRET is not set; API authentication is disabled")

// DefaultJWTIssuer is the "iss" claim of issued tokens.
const DefaultJWTIssuer = "venture-planner"

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
}

// AuthConfig groups the API authentication settings.
type AuthConfig struct {
	JWT      JWTConfig
	Password PasswordConfig
}

// LoadAuth reads JWT_SECRET, JWT_EXPIRATION_HOURS (default 24), BCRYPT_COST (default 12)
// and PASSWORD_PEPPER. It returns ErrAuthDisabled when no secret is configured.
func LoadAuth() (*AuthConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrAuthDisabled
	}

	hours, err := envInt("JWT_EXPIRATION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cost, err := envInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}

	cfg := &AuthConfig{
		JWT: JWTConfig{
			Secret:     secret,
			Expiration: time.Duration(hours) * time.Hour,
			Issuer:     DefaultJWTIssuer,
		},
		Password: PasswordConfig{
			BcryptCost: cost,
			Pepper:     os.Getenv("PASSWORD_PEPPER"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envInt(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return v, nil
}

// Validate checks the token lifetime and the bcrypt cost.
func (c *AuthConfig) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if c.JWT.Expiration < time.Hour {
		return fmt.Errorf("JWT expiration must be at least 1 hour, got: %s", c.JWT.Expiration)
	}
	if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.Password.BcryptCost)
	}
	return nil
}

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

func (c *PasswordConfig) peppered(pw string) ([]byte, error) {
	b := []byte(pw + c.Pepper)
	if len(b) > maxPasswordBytes {
		return nil, fmt.Errorf("password too long: %d bytes with pepper (max %d)", len(b), maxPasswordBytes)
	}
	return b, nil
}

// HashPassword hashes a password using bcrypt (with optional pepper).
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	b, err := c.peppered(pw)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword(b, c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash (with optional pepper).
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	b, err := c.peppered(pw)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), b) == nil
}
