package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// ReviewSubmission is one reviewable unit with its AI verdict snapshot.
type ReviewSubmission struct {
	PieceID         string           `json:"piece_id"`
	CommercialSpace string           `json:"commercial_space,omitempty"`
	IAVerdict       domain.IAVerdict `json:"ia_verdict"`
}

// ReviewAction is the manager's decision on a unit.
type ReviewAction string

const (
	ActionApprove        ReviewAction = "approve"
	ActionReject         ReviewAction = "reject"
	ActionManuallyReject ReviewAction = "manually_reject"
)

// ReviewInput carries one manager decision.
type ReviewInput struct {
	PieceID         string       `json:"piece_id"`
	CommercialSpace string       `json:"commercial_space,omitempty"`
	Action          ReviewAction `json:"action"`
	Reason          string       `json:"reason,omitempty"`
}

// SubmitForReview records one review row per submitted unit with
// human_verdict pending and appends a SUBMITTED event per unit. Re-submitting
// a unit overwrites its ia_verdict and resets the human verdict.
func (s *Service) SubmitForReview(ctx context.Context, actor Actor, campaignID string, subs []ReviewSubmission) error {
	if actor.Role != domain.RoleCreativeAnalyst {
		return ErrForbidden
	}
	c, err := s.Get(ctx, actor, campaignID)
	if err != nil {
		return err
	}
	if !submittable(c.Status) {
		return ErrInvalidTransition
	}
	if len(subs) == 0 {
		return fmt.Errorf("at least one submission is required")
	}

	for _, sub := range subs {
		if !domain.ValidIAVerdict(sub.IAVerdict) {
			return fmt.Errorf("unknown ia_verdict %q", sub.IAVerdict)
		}
		p, err := s.repo.GetPiece(ctx, campaignID, sub.PieceID)
		if err != nil {
			return err
		}
		unit := domain.ReviewUnit{
			CampaignID: campaignID,
			PieceID:    p.ID,
			Channel:    p.PieceType,
		}
		if p.PieceType == domain.ChannelApp {
			if sub.CommercialSpace == "" {
				return fmt.Errorf("commercial_space is required for APP submissions")
			}
			if _, ok := p.ImageObjectKeys[sub.CommercialSpace]; !ok {
				return fmt.Errorf("piece has no image for commercial space %q", sub.CommercialSpace)
			}
			unit.CommercialSpace = sub.CommercialSpace
		} else if sub.CommercialSpace != "" {
			return fmt.Errorf("commercial_space is only valid for APP submissions")
		}

		if err := s.repo.UpsertReview(ctx, unit, sub.IAVerdict); err != nil {
			return err
		}
		ev := &domain.PieceReviewEvent{
			Unit:      unit,
			Type:      domain.ReviewSubmitted,
			IAVerdict: sub.IAVerdict,
			Actor:     actor.Email,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.AppendReviewEvent(ctx, ev); err != nil {
			return err
		}
	}
	// One timeline row per submission call. The status log doubles as the
	// campaign activity timeline; submissions appear as self-loop rows while
	// manager decisions live in the review log only.
	if err := s.repo.TransitionStatus(ctx, campaignID, c.Status, c.Status, actor.Email); err != nil {
		return err
	}
	logger.Info("pieces submitted for review",
		"campaign_id", campaignID, "units", fmt.Sprintf("%d", len(subs)), "actor", actor.Email)
	return nil
}

// Review applies a manager decision to one unit. Reviews are only writable
// while the campaign sits in content review; losers of a concurrent write
// get ErrReviewConflict and must re-read.
func (s *Service) Review(ctx context.Context, actor Actor, campaignID string, in ReviewInput) (*domain.PieceReview, error) {
	if actor.Role != domain.RoleMarketingManager {
		return nil, ErrForbidden
	}
	c, err := s.Get(ctx, actor, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.StatusContentReview {
		return nil, ErrInvalidTransition
	}

	p, err := s.repo.GetPiece(ctx, campaignID, in.PieceID)
	if err != nil {
		return nil, err
	}
	unit := domain.ReviewUnit{CampaignID: campaignID, PieceID: p.ID, Channel: p.PieceType}
	if p.PieceType == domain.ChannelApp {
		if in.CommercialSpace == "" {
			return nil, fmt.Errorf("commercial_space is required for APP reviews")
		}
		unit.CommercialSpace = in.CommercialSpace
	}

	r, err := s.repo.GetReview(ctx, unit)
	if err != nil {
		return nil, err
	}
	seen := r.UpdatedAt

	eventType := domain.ReviewApproved
	switch in.Action {
	case ActionApprove:
		r.HumanVerdict = domain.HumanApproved
	case ActionReject:
		// Confirming the AI: only valid when the AI itself rejected.
		if r.IAVerdict != domain.IARejected {
			return nil, fmt.Errorf("reject confirms an AI rejection; ia_verdict is %q", r.IAVerdict)
		}
		r.HumanVerdict = domain.HumanRejected
		eventType = domain.ReviewRejected
	case ActionManuallyReject:
		// Overriding the AI: only valid when the AI approved, warned or
		// did not run; a reason is mandatory.
		if r.IAVerdict == domain.IARejected {
			return nil, fmt.Errorf("manually_reject overrides the AI; use reject for ia_verdict=rejected")
		}
		if in.Reason == "" {
			return nil, fmt.Errorf("rejection_reason is required for manually_reject")
		}
		r.HumanVerdict = domain.HumanManuallyRejected
		r.RejectionReason = in.Reason
		eventType = domain.ReviewManuallyRejected
	default:
		return nil, fmt.Errorf("unknown review action %q", in.Action)
	}

	now := time.Now().UTC()
	r.ReviewedBy = actor.Email
	r.ReviewedAt = &now
	if err := s.repo.UpdateReview(ctx, r, seen); err != nil {
		return nil, err
	}

	ev := &domain.PieceReviewEvent{
		Unit:      unit,
		Type:      eventType,
		IAVerdict: r.IAVerdict,
		Reason:    in.Reason,
		Actor:     actor.Email,
		CreatedAt: now,
	}
	if err := s.repo.AppendReviewEvent(ctx, ev); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReviews returns the campaign's review rows, visibility-checked.
func (s *Service) ListReviews(ctx context.Context, actor Actor, campaignID string) ([]domain.PieceReview, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListReviews(ctx, campaignID)
}

// ReviewHistory returns the append-only review log, ascending.
func (s *Service) ReviewHistory(ctx context.Context, actor Actor, campaignID string) ([]domain.PieceReviewEvent, error) {
	if _, err := s.Get(ctx, actor, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ReviewEvents(ctx, campaignID)
}
