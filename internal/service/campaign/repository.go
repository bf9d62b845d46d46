package campaign

import (
	"context"
	"time"

	"github.com/orqestra/campaign-hub/internal/domain"
)

// Repository defines the data access contract for the workflow engine.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies briefing fields. Only non-nil fields are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign. Only drafts can be deleted.
	Delete(ctx context.Context, id string) error

	// TransitionStatus updates the status and appends the status event in a
	// single transaction, conditional on the currently stored status being
	// `from`. Returns ErrInvalidTransition when the condition fails.
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus, actor string) error

	// StatusEvents returns the append-only status log, ascending.
	StatusEvents(ctx context.Context, campaignID string) ([]domain.CampaignStatusEvent, error)

	// UpsertPiece inserts or replaces the piece for (campaign, piece_type).
	UpsertPiece(ctx context.Context, p *domain.CreativePiece) error

	// GetPiece returns one piece by id. Returns ErrPieceNotFound if missing.
	GetPiece(ctx context.Context, campaignID, pieceID string) (*domain.CreativePiece, error)

	// ListPieces returns every piece of a campaign.
	ListPieces(ctx context.Context, campaignID string) ([]domain.CreativePiece, error)

	// UpsertReview creates the review row for the unit with human_verdict
	// pending, or overwrites ia_verdict and resets human_verdict on re-submit.
	UpsertReview(ctx context.Context, unit domain.ReviewUnit, ia domain.IAVerdict) error

	// GetReview returns the review row for a unit.
	GetReview(ctx context.Context, unit domain.ReviewUnit) (*domain.PieceReview, error)

	// ListReviews returns every review row of a campaign.
	ListReviews(ctx context.Context, campaignID string) ([]domain.PieceReview, error)

	// UpdateReview applies the manager verdict conditionally on the
	// previously-observed updated_at. Returns ErrReviewConflict when another
	// writer won.
	UpdateReview(ctx context.Context, r *domain.PieceReview, seenUpdatedAt time.Time) error

	// AppendReviewEvent appends to the review log.
	AppendReviewEvent(ctx context.Context, ev *domain.PieceReviewEvent) error

	// ReviewEvents returns the append-only review log, ascending.
	ReviewEvents(ctx context.Context, campaignID string) ([]domain.PieceReviewEvent, error)

	// AddComment persists a campaign comment.
	AddComment(ctx context.Context, c *domain.Comment) error

	// ListComments returns comments ascending by creation time.
	ListComments(ctx context.Context, campaignID string) ([]domain.Comment, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Statuses  []domain.CampaignStatus // visibility set; empty means no status filter
	OwnDrafts string                  // user id whose drafts are included on top of Statuses
	Search    string
	Limit     int
	Offset    int
}

// UpdateFields holds the mutable briefing fields. Nil fields are not applied.
type UpdateFields struct {
	Name              *string          `json:"name,omitempty"`
	Category          *string          `json:"category,omitempty"`
	BusinessObjective *string          `json:"business_objective,omitempty"`
	ExpectedResult    *string          `json:"expected_result,omitempty"`
	RequestingArea    *string          `json:"requesting_area,omitempty"`
	StartDate         *domain.Date     `json:"start_date,omitempty"`
	EndDate           *domain.Date     `json:"end_date,omitempty"`
	Priority          *string          `json:"priority,omitempty"`
	TargetAudience    *string          `json:"target_audience,omitempty"`
	ExclusionCriteria *string          `json:"exclusion_criteria,omitempty"`
	EstimatedImpact   *domain.Decimal2 `json:"estimated_impact_volume,omitempty"`
	Tone              *string          `json:"tone,omitempty"`
	RecencyDays       *int             `json:"recency_days,omitempty"`
}
