package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/users"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore is the slice of persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, fullName, hashedPassword string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

type Service struct {
	store  UserStore
	config Config
}

func NewService(userStore UserStore, config Config) *Service {
	return &Service{
		store:  userStore,
		config: config,
	}
}

func (s *Service) Register(ctx context.Context, email, fullName, password string) (store.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, email, fullName, hash)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return store.User{}, ErrEmailExists
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("query user: %w", err)
	}

	if !users.CheckPassword(password, user.HashedPassword) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := GenerateTokenPair(s.config, user.ID, user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate tokens: %w", err)
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := ValidateToken(s.config, refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("query user: %w", err)
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidToken
	}

	pair, err := GenerateTokenPair(s.config, user.ID, user.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate tokens: %w", err)
	}
	return pair, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, ErrUserNotFound
		}
		return store.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}
