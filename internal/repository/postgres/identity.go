package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/service/identity"
)

// IdentityRepo implements identity.Repository against PostgreSQL.
type IdentityRepo struct{ db *sql.DB }

// NewIdentityRepo creates a Postgres-backed identity repository.
func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

const userCols = `id, email, password_hash, full_name, role, is_active, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *IdentityRepo) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive)
	if isUniqueViolation(err) {
		return identity.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *IdentityRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *IdentityRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *IdentityRepo) StoreRefreshToken(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
	`, t.Token, t.UserID, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *IdentityRepo) GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token = $1
	`, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, identity.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

// RevokeRefreshToken is monotonic: revoking an already-revoked token is a no-op.
func (r *IdentityRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *IdentityRepo) RevokeUserTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (r *IdentityRepo) RecordLogin(ctx context.Context, a *domain.LoginAudit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_audits (id, user_id, email, ip, user_agent, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, a.ID, a.UserID, a.Email, a.IP, a.UserAgent, a.Success, a.FailureReason)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (r *IdentityRepo) ListLogins(ctx context.Context, email string, limit int) ([]domain.LoginAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, user_id, email, ip, user_agent, success, failure_reason, created_at
	      FROM login_audits`
	args := []interface{}{}
	if email != "" {
		q += ` WHERE lower(email) = lower($1)`
		args = append(args, email)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}
	defer rows.Close()

	var out []domain.LoginAudit
	for rows.Next() {
		var a domain.LoginAudit
		if err := rows.Scan(&a.ID, &a.UserID, &a.Email, &a.IP, &a.UserAgent,
			&a.Success, &a.FailureReason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login audit: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
