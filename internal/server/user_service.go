package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/venture-planner/internal/config"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

// UserService registers and authenticates API users.
type UserService struct {
	users    store.UserStore
	password config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(users store.UserStore, password config.PasswordConfig) *UserService {
	return &UserService{users: users, password: password}
}

// Register creates a new user with password authentication
func (s *UserService) Register(ctx context.Context, req *types.RegisterRequest) (*types.User, error) {
	exists, err := s.users.CheckEmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, &ErrEmailAlreadyExists{Email: req.Email}
	}

	hash, err := s.password.HashPassword(req.Password)
	if err != nil {
		return nil, &ErrValidation{Field: "password", Message: err.Error()}
	}

	// two steps: the account exists before it has a password
	id, err := s.users.CreateUser(ctx, req.Name, req.Email, req.Phone)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, &ErrEmailAlreadyExists{Email: req.Email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return nil, fmt.Errorf("failed to set password: %w", err)
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("created user not found: %s", id)
	}
	return user.Public(), nil
}

// Login authenticates a user. Unknown emails and wrong passwords fail the same way.
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*types.User, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if user == nil || !user.PasswordSet || !s.password.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return user.Public(), nil
}
