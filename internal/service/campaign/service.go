package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Actor is the authenticated identity acting on the engine, decoded from the
// gateway's X-User-* headers.
type Actor struct {
	ID       string
	Email    string
	Role     domain.Role
	IsActive bool
}

// Service implements the workflow engine business logic. All public methods
// are safe for concurrent use if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a workflow engine backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a campaign if the actor may see it.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(actor, c) {
		// Invisible reads as missing so listing and reading agree.
		return nil, ErrNotFound
	}
	return c, nil
}

// List returns the campaigns the actor's role may see, plus their own drafts.
func (s *Service) List(ctx context.Context, actor Actor, search string, limit, offset int) ([]domain.Campaign, int, error) {
	f := ListFilter{
		Statuses: VisibleStatuses(actor.Role),
		Search:   search,
		Limit:    limit,
		Offset:   offset,
	}
	if actor.Role != domain.RoleBusinessAnalyst {
		f.OwnDrafts = actor.ID
	}
	return s.repo.List(ctx, f)
}

// Create validates and persists a new campaign in draft status. Only business
// analysts open briefings.
func (s *Service) Create(ctx context.Context, actor Actor, c *domain.Campaign) (*domain.Campaign, error) {
	if actor.Role != domain.RoleBusinessAnalyst {
		return nil, ErrForbidden
	}
	c.ID = uuid.New().String()
	c.Status = domain.StatusDraft
	c.CreatedBy = actor.ID
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	// Seed the status log: every campaign carries at least one event and the
	// last to_status always matches the current status.
	if err := s.repo.TransitionStatus(ctx, id, domain.StatusDraft, domain.StatusDraft, actor.Email); err != nil {
		return nil, err
	}
	logger.Info("campaign created", "campaign_id", c.ID, "actor", actor.Email)
	return c, nil
}

// Update modifies briefing fields. Drafts only; the creator or any business
// analyst may edit.
func (s *Service) Update(ctx context.Context, actor Actor, id string, u UpdateFields) error {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if c.Status != domain.StatusDraft {
		return ErrImmutable
	}
	if actor.Role != domain.RoleBusinessAnalyst && c.CreatedBy != actor.ID {
		return ErrForbidden
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes a draft campaign.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if c.Status != domain.StatusDraft {
		return ErrImmutable
	}
	if actor.Role != domain.RoleBusinessAnalyst && c.CreatedBy != actor.ID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Transition moves the campaign along the state machine. The write updates
// the status and appends the event atomically; losers of a concurrent race
// observe ErrInvalidTransition from the conditional update and surface it.
func (s *Service) Transition(ctx context.Context, actor Actor, id string, to domain.CampaignStatus) (*domain.Campaign, error) {
	if !domain.ValidStatus(to) {
		return nil, fmt.Errorf("unknown status %q", to)
	}
	// The matrix is checked before visibility: an out-of-matrix attempt is a
	// 403 even when the actor could not list the campaign.
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !TransitionAllowed(actor.Role, c.Status, to) {
		return nil, ErrForbidden
	}

	// Entering CampaignBuilding requires every review unit finally approved.
	if c.Status == domain.StatusContentReview && to == domain.StatusCampaignBuilding {
		reviews, err := s.repo.ListReviews(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(reviews) == 0 {
			return nil, ErrReviewsNotFinal
		}
		for i := range reviews {
			if !reviews[i].FinallyApproved() {
				return nil, ErrReviewsNotFinal
			}
		}
	}

	if err := s.repo.TransitionStatus(ctx, id, c.Status, to, actor.Email); err != nil {
		return nil, err
	}
	logger.Info("campaign transitioned",
		"campaign_id", id, "from", string(c.Status), "to", string(to), "actor", actor.Email)
	c.Status = to
	return c, nil
}

// StatusHistory returns the append-only status log, ascending.
func (s *Service) StatusHistory(ctx context.Context, actor Actor, id string) ([]domain.CampaignStatusEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.StatusEvents(ctx, id)
}

// UpsertPiece creates or replaces the creative piece for its channel.
// Content is mutable only while the campaign is in a creative stage.
func (s *Service) UpsertPiece(ctx context.Context, actor Actor, p *domain.CreativePiece) (*domain.CreativePiece, error) {
	if actor.Role != domain.RoleCreativeAnalyst {
		return nil, ErrForbidden
	}
	c, err := s.Get(ctx, actor, p.CampaignID)
	if err != nil {
		return nil, err
	}
	if !contentEditable(c.Status) {
		return nil, ErrImmutable
	}
	if !c.HasChannel(p.PieceType) {
		return nil, fmt.Errorf("campaign does not target channel %s", p.PieceType)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.PieceType == domain.ChannelApp {
		for space := range p.ImageObjectKeys {
			if !contains(c.CommercialSpaces, space) {
				return nil, fmt.Errorf("unknown commercial space %q", space)
			}
		}
	}
	if err := s.repo.UpsertPiece(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPiece returns one piece, visibility-checked.
func (s *Service) GetPiece(ctx context.Context, actor Actor, campaignID, pieceID string) (*domain.CreativePiece, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.repo.GetPiece(ctx, campaignID, pieceID)
}

// ListPieces returns the campaign's pieces, visibility-checked.
func (s *Service) ListPieces(ctx context.Context, actor Actor, campaignID string) ([]domain.CreativePiece, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListPieces(ctx, campaignID)
}

// AddComment attaches a comment; visibility inherits from the campaign.
func (s *Service) AddComment(ctx context.Context, actor Actor, campaignID, body string) (*domain.Comment, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("comment body is required")
	}
	c := &domain.Comment{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Author:     actor.Email,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComments returns the campaign's comments, visibility-checked.
func (s *Service) ListComments(ctx context.Context, actor Actor, campaignID string) ([]domain.Comment, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, campaignID)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
