package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrInvalidSignUp      = errors.New("a valid email and a password of at least 8 characters are required")
)

const minPasswordLength = 8

// Store is the persistence the service needs
type Store interface {
	Create(ctx context.Context, email, passwordHash, name string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Service handles sign-up, sign-in and token checks
type Service struct {
	store    Store
	tokens   *Tokens
	denylist Denylist
	logger   *zap.Logger
}

// NewService creates a new auth service
func NewService(store Store, tokens *Tokens, denylist Denylist, logger *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, denylist: denylist, logger: logger}
}

// SignUp creates an account with a default profile and signs it in
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*SessionResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || len(req.Password) < minPasswordLength {
		return nil, ErrInvalidSignUp
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.Create(ctx, email, hash, displayName(req))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.Stringer("user_id", user.ID))
	return s.session(user)
}

// SignIn checks a password and issues an access token
func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*SessionResponse, error) {
	user, err := s.store.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || CheckPassword(user.PasswordHash, req.Password) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// SignOut revokes the presented token
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Authenticate validates token and returns its claims
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// VerifyToken resolves a token to the caller's user id
func (s *Service) VerifyToken(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := claims.Subject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Session describes the caller of a valid token
func (s *Service) Session(ctx context.Context, token string) (*SessionResponse, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	id, err := claims.Subject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return &SessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user.ToResponse(),
	}, nil
}

func (s *Service) session(user *User) (*SessionResponse, error) {
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user.ToResponse(),
	}, nil
}
