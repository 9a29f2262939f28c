package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/image-tattoo/internal/config"
	"github.com/iliyamo/image-tattoo/internal/model"
	"github.com/iliyamo/image-tattoo/internal/repository"
	"github.com/iliyamo/image-tattoo/internal/utils"
)

var (
	// ErrValidation is returned when a required signup or login field is empty.
	ErrValidation = errors.New("missing required fields")
	// ErrUserNotFound is returned by Login when no account has the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned by Login on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAmbiguousAccount is returned by Login when several accounts share the email.
	ErrAmbiguousAccount = errors.New("ambiguous account")
	// ErrEmailExists is returned by Signup for an already registered email.
	ErrEmailExists = errors.New("email already exists")
)

// UserStore is the subset of the user repository the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (string, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// SignupInput carries the POST /signup body.
type SignupInput struct {
	Username  string
	Email     string
	Role      string
	Password  string
	CreatedBy string
}

// Session is returned by a successful Login.
type Session struct {
	Token    string
	UserID   string
	UserName string
	Role     string
}

// AuthService registers and authenticates users.
type AuthService struct {
	users      UserStore
	secret     string
	ttlMin     int
	bcryptCost int
}

// NewAuthService takes the signing secret, session TTL and bcrypt cost from cfg.
func NewAuthService(cfg config.Config, users UserStore) *AuthService {
	return &AuthService{
		users:      users,
		secret:     cfg.JWTSecret,
		ttlMin:     cfg.AccessTTLMin,
		bcryptCost: cfg.BcryptCost,
	}
}

// Signup hashes the password and stores a new user, returning its id.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (string, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return "", ErrValidation
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	id, err := s.users.Create(ctx, &model.User{
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
		CreatedBy:    in.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// Login checks the password against the stored hash and issues a signed
// session token carrying the user id, username and role.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, ErrValidation
	}
	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Session{}, ErrUserNotFound
	case errors.Is(err, repository.ErrAmbiguousAccount):
		return Session{}, ErrAmbiguousAccount
	case err != nil:
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	at, err := utils.NewAccessToken(s.secret, u.ID, u.Username, u.Role, s.ttlMin)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: at.Token, UserID: u.ID, UserName: u.Username, Role: u.Role}, nil
}
