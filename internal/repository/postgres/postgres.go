// Package postgres implements the platform repositories on PostgreSQL via
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Open connects with sane timeouts and pool limits. The DSN gains a
// connect_timeout and server-side statement timeouts unless already present.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += sep + "connect_timeout=5"
		sep = "&"
	}
	if !strings.Contains(dsn, "statement_timeout") {
		dsn += sep + "options=-c%20statement_timeout%3D15000%20-c%20idle_in_transaction_session_timeout%3D15000"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist. Statements are
// idempotent so every service can run this at boot.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS login_audits (
			id UUID PRIMARY KEY,
			user_id UUID,
			email TEXT NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			success BOOLEAN NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_login_audits_email ON login_audits(email, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			business_objective TEXT NOT NULL DEFAULT '',
			expected_result TEXT NOT NULL DEFAULT '',
			requesting_area TEXT NOT NULL DEFAULT '',
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			channels TEXT[] NOT NULL,
			commercial_spaces TEXT[] NOT NULL DEFAULT '{}',
			target_audience TEXT NOT NULL DEFAULT '',
			exclusion_criteria TEXT NOT NULL DEFAULT '',
			estimated_impact_hundredths BIGINT NOT NULL DEFAULT 0,
			tone TEXT NOT NULL DEFAULT '',
			execution_model TEXT NOT NULL,
			trigger_event TEXT NOT NULL DEFAULT '',
			recency_days INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS creative_pieces (
			id UUID PRIMARY KEY,
			campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			piece_type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			html_object_key TEXT NOT NULL DEFAULT '',
			image_object_keys JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (campaign_id, piece_type)
		)`,
		`CREATE TABLE IF NOT EXISTS piece_reviews (
			id UUID PRIMARY KEY,
			campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			piece_id UUID NOT NULL,
			channel TEXT NOT NULL,
			commercial_space TEXT NOT NULL DEFAULT '',
			ia_verdict TEXT NOT NULL DEFAULT '',
			human_verdict TEXT NOT NULL DEFAULT 'pending',
			rejection_reason TEXT NOT NULL DEFAULT '',
			reviewed_by TEXT NOT NULL DEFAULT '',
			reviewed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (campaign_id, piece_id, channel, commercial_space)
		)`,
		`CREATE TABLE IF NOT EXISTS piece_review_events (
			id BIGSERIAL PRIMARY KEY,
			campaign_id UUID NOT NULL,
			piece_id UUID NOT NULL,
			channel TEXT NOT NULL,
			commercial_space TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			ia_verdict TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_events_campaign ON piece_review_events(campaign_id, created_at, id)`,
		`CREATE TABLE IF NOT EXISTS campaign_status_events (
			id BIGSERIAL PRIMARY KEY,
			campaign_id UUID NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL,
			actor TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_events_campaign ON campaign_status_events(campaign_id, created_at, id)`,
		`CREATE TABLE IF NOT EXISTS campaign_comments (
			id UUID PRIMARY KEY,
			campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS validation_cache (
			campaign_id UUID NOT NULL,
			channel TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			response JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (campaign_id, channel, content_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_interactions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			campaign_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			field_name TEXT NOT NULL,
			input_text TEXT NOT NULL,
			enhanced_text TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			decision TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_interactions_session
			ON ai_interactions (session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS briefing_fields (
			field_name TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			expectations TEXT NOT NULL DEFAULT '',
			guidelines TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return seedBriefingFields(ctx, db)
}

// seedBriefingFields installs the default enhanceable-field metadata without
// overwriting operator edits.
func seedBriefingFields(ctx context.Context, db *sql.DB) error {
	rows := [][4]string{
		{"business_objective", "Objetivo de negócio",
			"mensurável, com meta numérica e prazo",
			"usar verbos de ação; evitar jargão interno"},
		{"expected_result", "Resultado esperado",
			"quantificado e ligado ao objetivo",
			"citar a métrica de sucesso e o período de apuração"},
		{"target_audience", "Público-alvo",
			"segmento claro com critérios de inclusão",
			"descrever perfil, produto atual e comportamento relevante"},
		{"exclusion_criteria", "Critérios de exclusão",
			"lista objetiva de segmentos fora da campanha",
			"citar regras de contato recente e restrições regulatórias"},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO briefing_fields (field_name, display_name, expectations, guidelines)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (field_name) DO NOTHING
		`, r[0], r[1], r[2], r[3])
		if err != nil {
			return fmt.Errorf("seed briefing fields: %w", err)
		}
	}
	return nil
}
