package domain

import "time"

// Role enumerates the four platform roles. The workflow engine gates every
// status transition and the visibility filter on the caller's role.
type Role string

const (
	RoleBusinessAnalyst  Role = "business_analyst"
	RoleCreativeAnalyst  Role = "creative_analyst"
	RoleCampaignAnalyst  Role = "campaign_analyst"
	RoleMarketingManager Role = "marketing_manager"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleBusinessAnalyst, RoleCreativeAnalyst, RoleCampaignAnalyst, RoleMarketingManager:
		return true
	}
	return false
}

// User is a platform identity. PasswordHash never leaves the identity service.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name,omitempty" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LoginAudit records one login attempt, successful or not.
type LoginAudit struct {
	ID            string    `json:"id" db:"id"`
	UserID        *string   `json:"user_id" db:"user_id"`
	Email         string    `json:"email" db:"email"`
	IP            string    `json:"ip" db:"ip"`
	UserAgent     string    `json:"user_agent" db:"user_agent"`
	Success       bool      `json:"success" db:"success"`
	FailureReason string    `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RefreshToken is the persisted, revocable half of a session. Revocation is
// monotonic: a revoked token never becomes valid again.
type RefreshToken struct {
	Token     string    `json:"-" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
