// Package enhancer rewrites briefing fields with an LLM. Each invocation is
// recorded as an AIInteraction the user can later approve or reject; rejected
// suggestions are demoted from the cache.
package enhancer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// FieldMeta describes one enhanceable briefing field: how it is presented and
// what a good value looks like. Rows live in the briefing_fields table.
type FieldMeta struct {
	FieldName    string `json:"field_name" db:"field_name"`
	DisplayName  string `json:"display_name" db:"display_name"`
	Expectations string `json:"expectations" db:"expectations"`
	Guidelines   string `json:"guidelines" db:"guidelines"`
}

// Repository is the enhancer's persistence contract.
type Repository interface {
	GetFieldMeta(ctx context.Context, fieldName string) (*FieldMeta, error)
	InsertInteraction(ctx context.Context, ai *domain.AIInteraction) error
	GetInteraction(ctx context.Context, id string) (*domain.AIInteraction, error)
	SetInteractionDecision(ctx context.Context, id, decision string) error
	ListSessionInteractions(ctx context.Context, sessionID string, limit int) ([]domain.AIInteraction, error)
}

// EnhanceRequest is the public enhance-objective input.
type EnhanceRequest struct {
	FieldName    string `json:"field_name"`
	Text         string `json:"text"`
	CampaignID   string `json:"campaign_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
}

// EnhanceResult is the public enhance-objective output.
type EnhanceResult struct {
	EnhancedText  string `json:"enhanced_text"`
	Explanation   string `json:"explanation"`
	InteractionID string `json:"interaction_id"`
}

// Service runs the two-node enhance graph: fetch field metadata, invoke the
// model with session history folded into the prompt.
type Service struct {
	repo           Repository
	model          llm.Client
	cache          *Cache
	sessionHistory int
}

// NewService creates an enhancer service. cache may be nil.
func NewService(repo Repository, model llm.Client, cache *Cache, sessionHistory int) *Service {
	if sessionHistory <= 0 {
		sessionHistory = 5
	}
	return &Service{repo: repo, model: model, cache: cache, sessionHistory: sessionHistory}
}

// Scope returns the cache scope for a request: session beats campaign beats
// global.
func (r EnhanceRequest) Scope() string {
	if r.SessionID != "" {
		return "session:" + r.SessionID
	}
	if r.CampaignID != "" {
		return "campaign:" + r.CampaignID
	}
	return "global"
}

// TextHash is the canonical hash of the input text used in cache keys.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Enhance rewrites one briefing field.
func (s *Service) Enhance(ctx context.Context, userID string, req EnhanceRequest) (*EnhanceResult, error) {
	if req.FieldName == "" || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("field_name and text are required")
	}
	meta, err := s.repo.GetFieldMeta(ctx, req.FieldName)
	if err != nil {
		return nil, err
	}

	hash := TextHash(req.Text)
	if cached := s.cache.Get(ctx, userID, req.FieldName, hash, req.Scope()); cached != nil {
		return cached, nil
	}

	var history []domain.AIInteraction
	if req.SessionID != "" {
		history, err = s.repo.ListSessionInteractions(ctx, req.SessionID, s.sessionHistory)
		if err != nil {
			// History only enriches the prompt; a read failure is not fatal.
			logger.Warn("enhancer session history unavailable", "session_id", req.SessionID)
			history = nil
		}
	}

	system, user, err := buildPrompt(meta, req, history)
	if err != nil {
		return nil, err
	}
	reply, err := s.model.Invoke(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Text: user}},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("enhance %s: %w", req.FieldName, err)
	}

	payload, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("enhance %s: %w", req.FieldName, err)
	}
	var out struct {
		EnhancedText string `json:"enhanced_text"`
		Explanation  string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("enhance %s: model reply is not the expected shape: %w", req.FieldName, err)
	}
	if out.EnhancedText == "" {
		return nil, fmt.Errorf("enhance %s: model returned an empty rewrite", req.FieldName)
	}

	ai := &domain.AIInteraction{
		ID:           uuid.New().String(),
		UserID:       userID,
		CampaignID:   req.CampaignID,
		SessionID:    req.SessionID,
		FieldName:    req.FieldName,
		InputText:    req.Text,
		EnhancedText: out.EnhancedText,
		Explanation:  out.Explanation,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.InsertInteraction(ctx, ai); err != nil {
		return nil, err
	}

	result := &EnhanceResult{
		EnhancedText:  out.EnhancedText,
		Explanation:   out.Explanation,
		InteractionID: ai.ID,
	}
	s.cache.Put(ctx, userID, req.FieldName, hash, req.Scope(), result)
	return result, nil
}

// Decide records the user's verdict on a suggestion. A rejection demotes the
// cached entry so the same input is re-enhanced next time.
func (s *Service) Decide(ctx context.Context, userID, interactionID, decision string) error {
	if decision != "approved" && decision != "rejected" {
		return fmt.Errorf("decision must be approved or rejected")
	}
	ai, err := s.repo.GetInteraction(ctx, interactionID)
	if err != nil {
		return err
	}
	if ai.UserID != userID {
		return ErrInteractionNotFound
	}
	if err := s.repo.SetInteractionDecision(ctx, interactionID, decision); err != nil {
		return err
	}
	if decision == "rejected" {
		s.cache.Demote(ctx, interactionID)
	}
	return nil
}

// Interaction returns one interaction scoped to its owner.
func (s *Service) Interaction(ctx context.Context, userID, interactionID string) (*domain.AIInteraction, error) {
	ai, err := s.repo.GetInteraction(ctx, interactionID)
	if err != nil {
		return nil, err
	}
	if ai.UserID != userID {
		return nil, ErrInteractionNotFound
	}
	return ai, nil
}
