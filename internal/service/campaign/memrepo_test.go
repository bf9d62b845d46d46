package campaign_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/service/campaign"
)

// memRepo is an in-memory engine repository for unit testing.
type memRepo struct {
	mu           sync.Mutex
	campaigns    map[string]*domain.Campaign
	pieces       map[string]*domain.CreativePiece // keyed by piece id
	reviews      map[string]*domain.PieceReview   // keyed by unit key
	statusEvents []domain.CampaignStatusEvent
	reviewEvents []domain.PieceReviewEvent
	comments     []domain.Comment
	nextEventID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		pieces:    make(map[string]*domain.CreativePiece),
		reviews:   make(map[string]*domain.PieceReview),
	}
}

func unitKey(u domain.ReviewUnit) string {
	return strings.Join([]string{u.CampaignID, string(u.Channel), u.PieceID, u.CommercialSpace}, "|")
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		visible := false
		for _, s := range f.Statuses {
			if c.Status == s {
				visible = true
			}
		}
		if f.OwnDrafts != "" && c.Status == domain.StatusDraft && c.CreatedBy == f.OwnDrafts {
			visible = true
		}
		if visible {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.CreatedAt = time.Now().UTC()
	m.campaigns[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.BusinessObjective != nil {
		c.BusinessObjective = *u.BusinessObjective
	}
	if u.ExpectedResult != nil {
		c.ExpectedResult = *u.ExpectedResult
	}
	if u.RequestingArea != nil {
		c.RequestingArea = *u.RequestingArea
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = *u.EndDate
	}
	if u.Priority != nil {
		c.Priority = *u.Priority
	}
	if u.TargetAudience != nil {
		c.TargetAudience = *u.TargetAudience
	}
	if u.ExclusionCriteria != nil {
		c.ExclusionCriteria = *u.ExclusionCriteria
	}
	if u.EstimatedImpact != nil {
		c.EstimatedImpact = *u.EstimatedImpact
	}
	if u.Tone != nil {
		c.Tone = *u.Tone
	}
	if u.RecencyDays != nil {
		c.RecencyDays = *u.RecencyDays
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) TransitionStatus(_ context.Context, id string, from, to domain.CampaignStatus, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != from {
		return campaign.ErrInvalidTransition
	}
	c.Status = to
	m.nextEventID++
	m.statusEvents = append(m.statusEvents, domain.CampaignStatusEvent{
		ID: m.nextEventID, CampaignID: id, FromStatus: from, ToStatus: to,
		Actor: actor, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *memRepo) StatusEvents(_ context.Context, campaignID string) ([]domain.CampaignStatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CampaignStatusEvent
	for _, ev := range m.statusEvents {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertPiece(_ context.Context, p *domain.CreativePiece) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.pieces {
		if existing.CampaignID == p.CampaignID && existing.PieceType == p.PieceType && existing.ID != p.ID {
			p.ID = existing.ID // one piece per (campaign, type)
		}
	}
	cp := *p
	cp.UpdatedAt = time.Now().UTC()
	m.pieces[cp.ID] = &cp
	return nil
}

func (m *memRepo) GetPiece(_ context.Context, campaignID, pieceID string) (*domain.CreativePiece, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pieces[pieceID]
	if !ok || p.CampaignID != campaignID {
		return nil, campaign.ErrPieceNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListPieces(_ context.Context, campaignID string) ([]domain.CreativePiece, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CreativePiece
	for _, p := range m.pieces {
		if p.CampaignID == campaignID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) UpsertReview(_ context.Context, unit domain.ReviewUnit, ia domain.IAVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := unitKey(unit)
	r, ok := m.reviews[key]
	if !ok {
		r = &domain.PieceReview{ID: fmt.Sprintf("rev-%d", len(m.reviews)+1), Unit: unit}
		m.reviews[key] = r
	}
	r.IAVerdict = ia
	r.HumanVerdict = domain.HumanPending
	r.RejectionReason = ""
	r.ReviewedBy = ""
	r.ReviewedAt = nil
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRepo) GetReview(_ context.Context, unit domain.ReviewUnit) (*domain.PieceReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[unitKey(unit)]
	if !ok {
		return nil, campaign.ErrReviewNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ListReviews(_ context.Context, campaignID string) ([]domain.PieceReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PieceReview
	for _, r := range m.reviews {
		if r.Unit.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateReview(_ context.Context, r *domain.PieceReview, seen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reviews[unitKey(r.Unit)]
	if !ok {
		return campaign.ErrReviewNotFound
	}
	if !stored.UpdatedAt.Equal(seen) {
		return campaign.ErrReviewConflict
	}
	cp := *r
	cp.UpdatedAt = time.Now().UTC()
	m.reviews[unitKey(r.Unit)] = &cp
	r.UpdatedAt = cp.UpdatedAt
	return nil
}

func (m *memRepo) AppendReviewEvent(_ context.Context, ev *domain.PieceReviewEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev.ID = m.nextEventID
	m.reviewEvents = append(m.reviewEvents, *ev)
	return nil
}

func (m *memRepo) ReviewEvents(_ context.Context, campaignID string) ([]domain.PieceReviewEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PieceReviewEvent
	for _, ev := range m.reviewEvents {
		if ev.Unit.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memRepo) AddComment(_ context.Context, c *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memRepo) ListComments(_ context.Context, campaignID string) ([]domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Comment
	for _, c := range m.comments {
		if c.CampaignID == campaignID {
			out = append(out, c)
		}
	}
	return out, nil
}
