// Package identity issues and validates platform credentials: short-lived
// signed access tokens and persisted, revocable refresh tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("user is inactive")
	ErrTokenInvalid       = errors.New("token invalid or expired")
)

// Repository is the persistence contract for users, sessions and audits.
type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	StoreRefreshToken(ctx context.Context, t *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeUserTokens(ctx context.Context, userID string) error

	RecordLogin(ctx context.Context, a *domain.LoginAudit) error
	ListLogins(ctx context.Context, email string, limit int) ([]domain.LoginAudit, error)
}

// Service implements registration, login and session lifecycle.
type Service struct {
	repo       Repository
	tokens     *TokenIssuer
	bcryptCost int
	refreshTTL time.Duration
}

// NewService creates an identity service.
func NewService(repo Repository, tokens *TokenIssuer, bcryptCost int, refreshTTL time.Duration) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, tokens: tokens, bcryptCost: bcryptCost, refreshTTL: refreshTTL}
}

// Session is the result of a successful login or refresh.
type Session struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// Register creates a user. Email is stored lowercased; the role must be one
// of the four platform roles.
func (s *Service) Register(ctx context.Context, email, password, fullName string, role domain.Role) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("valid email is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user registered", "user_id", u.ID, "role", string(u.Role))
	return u, nil
}

// Login exchanges credentials for a session and records the attempt either way.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	audit := &domain.LoginAudit{
		ID:        uuid.New().String(),
		Email:     email,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			audit.FailureReason = "unknown email"
			s.recordLogin(ctx, audit)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	audit.UserID = &u.ID

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		audit.FailureReason = "bad password"
		s.recordLogin(ctx, audit)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		audit.FailureReason = "inactive"
		s.recordLogin(ctx, audit)
		return nil, ErrInactive
	}

	sess, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, err
	}
	audit.Success = true
	s.recordLogin(ctx, audit)
	return sess, nil
}

func (s *Service) recordLogin(ctx context.Context, a *domain.LoginAudit) {
	// Audit failures never mask the login outcome.
	if err := s.repo.RecordLogin(ctx, a); err != nil {
		logger.Error("record login audit", "error", err.Error())
	}
}

func (s *Service) issueSession(ctx context.Context, u *domain.User) (*Session, error) {
	access, err := s.tokens.MintAccess(u.Email)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	if err := s.repo.StoreRefreshToken(ctx, &domain.RefreshToken{
		Token:     refresh,
		UserID:    u.ID,
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh rotates the access token. The refresh token itself is untouched; it
// stays valid until expiry or revocation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	t, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if t.Revoked || time.Now().UTC().After(t.ExpiresAt) {
		return nil, ErrTokenInvalid
	}
	u, err := s.repo.GetUserByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	access, err := s.tokens.MintAccess(u.Email)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refreshToken}, nil
}

// Logout revokes the refresh token, scoped to the calling user. Revocation is
// monotonic.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	t, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil // already gone
		}
		return err
	}
	if t.UserID != userID {
		return ErrTokenInvalid
	}
	return s.repo.RevokeRefreshToken(ctx, refreshToken)
}

// Me resolves an access token to its user and checks the account is active.
func (s *Service) Me(ctx context.Context, accessToken string) (*domain.User, error) {
	email, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}

// ListLogins returns recent login audits. Marketing managers only; the
// handler enforces the role, this just reads.
func (s *Service) ListLogins(ctx context.Context, email string, limit int) ([]domain.LoginAudit, error) {
	return s.repo.ListLogins(ctx, email, limit)
}
