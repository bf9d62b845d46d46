package domain

import "time"

// IAVerdict is the automated validation outcome snapshot attached to a
// review at submit time. Empty means the unit was not AI-validated.
type IAVerdict string

const (
	IANone     IAVerdict = ""
	IAApproved IAVerdict = "approved"
	IARejected IAVerdict = "rejected"
	IAWarning  IAVerdict = "warning"
)

// ValidIAVerdict reports whether v is an accepted snapshot value.
func ValidIAVerdict(v IAVerdict) bool {
	switch v {
	case IANone, IAApproved, IARejected, IAWarning:
		return true
	}
	return false
}

// HumanVerdict is the marketing manager's decision on a review unit.
type HumanVerdict string

const (
	HumanPending          HumanVerdict = "pending"
	HumanApproved         HumanVerdict = "approved"
	HumanRejected         HumanVerdict = "rejected"
	HumanManuallyRejected HumanVerdict = "manually_rejected"
)

// ReviewUnit is the smallest thing that can carry a verdict: a piece, or a
// (piece, commercial space) pair for APP.
type ReviewUnit struct {
	CampaignID      string  `json:"campaign_id"`
	PieceID         string  `json:"piece_id"`
	Channel         Channel `json:"channel"`
	CommercialSpace string  `json:"commercial_space,omitempty"`
}

// PieceReview is one row per reviewable unit. ia_verdict and human_verdict
// together decide finality.
type PieceReview struct {
	ID              string       `json:"id" db:"id"`
	Unit            ReviewUnit   `json:"unit"`
	IAVerdict       IAVerdict    `json:"ia_verdict" db:"ia_verdict"`
	HumanVerdict    HumanVerdict `json:"human_verdict" db:"human_verdict"`
	RejectionReason string       `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy      string       `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time   `json:"reviewed_at,omitempty" db:"reviewed_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// FinallyApproved derives approval from the two verdict coordinates. A human
// approval always wins; an AI approval stands unless a human rejected it.
// ia_verdict=warning is advisory and never finally approves on its own.
func (r *PieceReview) FinallyApproved() bool {
	if r.HumanVerdict == HumanApproved {
		return true
	}
	return r.IAVerdict == IAApproved &&
		r.HumanVerdict != HumanManuallyRejected &&
		r.HumanVerdict != HumanRejected
}

// FinallyRejected derives rejection from the two verdict coordinates. A human
// rejection of either kind is terminal; an AI rejection stands unless a human
// approved over it.
func (r *PieceReview) FinallyRejected() bool {
	if r.HumanVerdict == HumanRejected || r.HumanVerdict == HumanManuallyRejected {
		return true
	}
	return r.IAVerdict == IARejected && r.HumanVerdict != HumanApproved
}

// ReviewEventType enumerates the append-only review log entry types.
type ReviewEventType string

const (
	ReviewSubmitted        ReviewEventType = "SUBMITTED"
	ReviewApproved         ReviewEventType = "APPROVED"
	ReviewRejected         ReviewEventType = "REJECTED"
	ReviewManuallyRejected ReviewEventType = "MANUALLY_REJECTED"
)

// PieceReviewEvent is an append-only log entry for a review unit. Never
// updated, never deleted; ordering is server timestamp with insertion id as
// tiebreaker.
type PieceReviewEvent struct {
	ID        int64           `json:"id" db:"id"`
	Unit      ReviewUnit      `json:"unit"`
	Type      ReviewEventType `json:"type" db:"event_type"`
	IAVerdict IAVerdict       `json:"ia_verdict,omitempty" db:"ia_verdict"`
	Reason    string          `json:"reason,omitempty" db:"reason"`
	Actor     string          `json:"actor" db:"actor"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// CampaignStatusEvent is an append-only log entry for a status transition.
type CampaignStatusEvent struct {
	ID         int64          `json:"id" db:"id"`
	CampaignID string         `json:"campaign_id" db:"campaign_id"`
	FromStatus CampaignStatus `json:"from_status" db:"from_status"`
	ToStatus   CampaignStatus `json:"to_status" db:"to_status"`
	Actor      string         `json:"actor" db:"actor"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// ValidationCacheEntry persists one aggregated validation outcome, keyed by
// (campaign, channel, content hash). Re-validating identical content
// replaces the row.
type ValidationCacheEntry struct {
	CampaignID  string    `json:"campaign_id" db:"campaign_id"`
	Channel     Channel   `json:"channel" db:"channel"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Response    []byte    `json:"response" db:"response"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AIInteraction records one briefing-enhancer invocation; the user may later
// approve or reject the suggestion.
type AIInteraction struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	CampaignID   string    `json:"campaign_id,omitempty" db:"campaign_id"`
	SessionID    string    `json:"session_id,omitempty" db:"session_id"`
	FieldName    string    `json:"field_name" db:"field_name"`
	InputText    string    `json:"input_text" db:"input_text"`
	EnhancedText string    `json:"enhanced_text" db:"enhanced_text"`
	Explanation  string    `json:"explanation" db:"explanation"`
	Decision     string    `json:"decision,omitempty" db:"decision"` // approved | rejected | ""
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
