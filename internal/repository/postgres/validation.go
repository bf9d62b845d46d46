package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/enhancer"
)

// ValidationRepo persists aggregated validation outcomes and the briefing
// enhancer's interaction log.
type ValidationRepo struct{ db *sql.DB }

// NewValidationRepo creates a Postgres-backed validation repository.
func NewValidationRepo(db *sql.DB) *ValidationRepo { return &ValidationRepo{db: db} }

// UpsertEntry replaces the cached outcome for (campaign, channel, hash).
// Re-validating identical content refreshes response and created_at.
func (r *ValidationRepo) UpsertEntry(ctx context.Context, e *domain.ValidationCacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO validation_cache (campaign_id, channel, content_hash, response, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (campaign_id, channel, content_hash) DO UPDATE SET
			response = EXCLUDED.response,
			created_at = NOW()
	`, e.CampaignID, e.Channel, e.ContentHash, e.Response)
	if err != nil {
		return fmt.Errorf("upsert validation entry: %w", err)
	}
	return nil
}

// GetEntry returns the cached outcome, or nil when the content was never
// validated.
func (r *ValidationRepo) GetEntry(ctx context.Context, campaignID string, channel domain.Channel, contentHash string) (*domain.ValidationCacheEntry, error) {
	var e domain.ValidationCacheEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id, channel, content_hash, response, created_at
		FROM validation_cache
		WHERE campaign_id = $1 AND channel = $2 AND content_hash = $3
	`, campaignID, channel, contentHash).
		Scan(&e.CampaignID, &e.Channel, &e.ContentHash, &e.Response, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get validation entry: %w", err)
	}
	return &e, nil
}

// ListEntries returns every persisted outcome for a campaign, newest first.
func (r *ValidationRepo) ListEntries(ctx context.Context, campaignID string) ([]domain.ValidationCacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_id, channel, content_hash, response, created_at
		FROM validation_cache
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list validation entries: %w", err)
	}
	defer rows.Close()

	var out []domain.ValidationCacheEntry
	for rows.Next() {
		var e domain.ValidationCacheEntry
		if err := rows.Scan(&e.CampaignID, &e.Channel, &e.ContentHash, &e.Response, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertInteraction records one enhancer invocation.
func (r *ValidationRepo) InsertInteraction(ctx context.Context, ai *domain.AIInteraction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ai_interactions
			(id, user_id, campaign_id, session_id, field_name, input_text, enhanced_text, explanation, decision, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, ai.ID, ai.UserID, ai.CampaignID, ai.SessionID, ai.FieldName,
		ai.InputText, ai.EnhancedText, ai.Explanation, ai.Decision)
	if err != nil {
		return fmt.Errorf("insert ai interaction: %w", err)
	}
	return nil
}

// GetInteraction returns one enhancer invocation by id.
func (r *ValidationRepo) GetInteraction(ctx context.Context, id string) (*domain.AIInteraction, error) {
	var ai domain.AIInteraction
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, campaign_id, session_id, field_name, input_text, enhanced_text, explanation, decision, created_at
		FROM ai_interactions WHERE id = $1
	`, id).Scan(&ai.ID, &ai.UserID, &ai.CampaignID, &ai.SessionID, &ai.FieldName,
		&ai.InputText, &ai.EnhancedText, &ai.Explanation, &ai.Decision, &ai.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, enhancer.ErrInteractionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ai interaction: %w", err)
	}
	return &ai, nil
}

// GetFieldMeta returns the enhanceable-field metadata row.
func (r *ValidationRepo) GetFieldMeta(ctx context.Context, fieldName string) (*enhancer.FieldMeta, error) {
	var m enhancer.FieldMeta
	err := r.db.QueryRowContext(ctx, `
		SELECT field_name, display_name, expectations, guidelines
		FROM briefing_fields WHERE field_name = $1
	`, fieldName).Scan(&m.FieldName, &m.DisplayName, &m.Expectations, &m.Guidelines)
	if err == sql.ErrNoRows {
		return nil, enhancer.ErrUnknownField
	}
	if err != nil {
		return nil, fmt.Errorf("get field meta: %w", err)
	}
	return &m, nil
}

// ListSessionInteractions returns the newest interactions of a session in
// chronological order.
func (r *ValidationRepo) ListSessionInteractions(ctx context.Context, sessionID string, limit int) ([]domain.AIInteraction, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, campaign_id, session_id, field_name, input_text, enhanced_text, explanation, decision, created_at
		FROM (
			SELECT * FROM ai_interactions
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list session interactions: %w", err)
	}
	defer rows.Close()

	var out []domain.AIInteraction
	for rows.Next() {
		var ai domain.AIInteraction
		if err := rows.Scan(&ai.ID, &ai.UserID, &ai.CampaignID, &ai.SessionID, &ai.FieldName,
			&ai.InputText, &ai.EnhancedText, &ai.Explanation, &ai.Decision, &ai.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ai interaction: %w", err)
		}
		out = append(out, ai)
	}
	return out, rows.Err()
}

// SetInteractionDecision records the user's verdict on a suggestion.
func (r *ValidationRepo) SetInteractionDecision(ctx context.Context, id, decision string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ai_interactions SET decision = $1 WHERE id = $2`, decision, id)
	if err != nil {
		return fmt.Errorf("set interaction decision: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return enhancer.ErrInteractionNotFound
	}
	return nil
}
