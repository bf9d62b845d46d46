package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed workflow engine repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignCols = `id, name, category, business_objective, expected_result, requesting_area,
       start_date, end_date, priority, channels, commercial_spaces,
       target_audience, exclusion_criteria, estimated_impact_hundredths, tone,
       execution_model, trigger_event, recency_days, status, created_by,
       created_at, updated_at`

func dateOf(t time.Time) domain.Date {
	return domain.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func timeOf(d domain.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	var (
		c          domain.Campaign
		start, end time.Time
		channels   pq.StringArray
		spaces     pq.StringArray
		impact     int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Category, &c.BusinessObjective, &c.ExpectedResult, &c.RequestingArea,
		&start, &end, &c.Priority, &channels, &spaces,
		&c.TargetAudience, &c.ExclusionCriteria, &impact, &c.Tone,
		&c.ExecutionModel, &c.TriggerEvent, &c.RecencyDays, &c.Status, &c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.StartDate = dateOf(start)
	c.EndDate = dateOf(end)
	c.EstimatedImpact = domain.Decimal2(impact)
	c.Channels = make([]domain.Channel, len(channels))
	for i, ch := range channels {
		c.Channels[i] = domain.Channel(ch)
	}
	c.CommercialSpaces = spaces
	return &c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	// Visibility: status in the role's set, or the caller's own drafts.
	where := `(status = ANY($1)`
	args := []interface{}{pq.Array(statusStrings(f.Statuses))}
	idx := 2
	if f.OwnDrafts != "" {
		where += fmt.Sprintf(` OR (status = 'draft' AND created_by = $%d)`, idx)
		args = append(args, f.OwnDrafts)
		idx++
	}
	where += `)`
	if f.Search != "" {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignCols + ` FROM campaigns WHERE ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func statusStrings(in []domain.CampaignStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, category, business_objective, expected_result, requesting_area,
			 start_date, end_date, priority, channels, commercial_spaces,
			 target_audience, exclusion_criteria, estimated_impact_hundredths, tone,
			 execution_model, trigger_event, recency_days, status, created_by,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),NOW())
	`, c.ID, c.Name, c.Category, c.BusinessObjective, c.ExpectedResult, c.RequestingArea,
		timeOf(c.StartDate), timeOf(c.EndDate), c.Priority,
		pq.Array(channelStrings(c.Channels)), pq.Array(c.CommercialSpaces),
		c.TargetAudience, c.ExclusionCriteria, int64(c.EstimatedImpact), c.Tone,
		c.ExecutionModel, c.TriggerEvent, c.RecencyDays, c.Status, c.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func channelStrings(in []domain.Channel) []string {
	out := make([]string, len(in))
	for i, ch := range in {
		out[i] = string(ch)
	}
	return out
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.BusinessObjective != nil {
		add("business_objective", *u.BusinessObjective)
	}
	if u.ExpectedResult != nil {
		add("expected_result", *u.ExpectedResult)
	}
	if u.RequestingArea != nil {
		add("requesting_area", *u.RequestingArea)
	}
	if u.StartDate != nil {
		add("start_date", timeOf(*u.StartDate))
	}
	if u.EndDate != nil {
		add("end_date", timeOf(*u.EndDate))
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}
	if u.TargetAudience != nil {
		add("target_audience", *u.TargetAudience)
	}
	if u.ExclusionCriteria != nil {
		add("exclusion_criteria", *u.ExclusionCriteria)
	}
	if u.EstimatedImpact != nil {
		add("estimated_impact_hundredths", int64(*u.EstimatedImpact))
	}
	if u.Tone != nil {
		add("tone", *u.Tone)
	}
	if u.RecencyDays != nil {
		add("recency_days", *u.RecencyDays)
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf("UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d",
		joinComma(sets), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// TransitionStatus flips the status conditionally and appends the event row in
// one transaction. A lost race shows up as zero updated rows.
func (r *CampaignRepo) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus, actor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check campaign: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return campaign.ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_status_events (campaign_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, id, from, to, actor); err != nil {
		return fmt.Errorf("append status event: %w", err)
	}
	return tx.Commit()
}

func (r *CampaignRepo) StatusEvents(ctx context.Context, campaignID string) ([]domain.CampaignStatusEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, from_status, to_status, actor, created_at
		FROM campaign_status_events
		WHERE campaign_id = $1
		ORDER BY created_at ASC, id ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("status events: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignStatusEvent
	for rows.Next() {
		var ev domain.CampaignStatusEvent
		if err := rows.Scan(&ev.ID, &ev.CampaignID, &ev.FromStatus, &ev.ToStatus, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) UpsertPiece(ctx context.Context, p *domain.CreativePiece) error {
	images, err := json.Marshal(p.ImageObjectKeys)
	if err != nil {
		return fmt.Errorf("marshal image keys: %w", err)
	}
	// One piece per (campaign, channel); a re-upload keeps the original id.
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO creative_pieces
			(id, campaign_id, piece_type, title, body, html_object_key, image_object_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (campaign_id, piece_type) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			html_object_key = EXCLUDED.html_object_key,
			image_object_keys = EXCLUDED.image_object_keys,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, p.ID, p.CampaignID, p.PieceType, p.Title, p.Body, p.HTMLObjectKey, images).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert piece: %w", err)
	}
	return nil
}

const pieceCols = `id, campaign_id, piece_type, title, body, html_object_key, image_object_keys, created_at, updated_at`

func scanPiece(row interface{ Scan(...interface{}) error }) (*domain.CreativePiece, error) {
	var (
		p      domain.CreativePiece
		images []byte
	)
	err := row.Scan(&p.ID, &p.CampaignID, &p.PieceType, &p.Title, &p.Body,
		&p.HTMLObjectKey, &images, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.ImageObjectKeys); err != nil {
			return nil, fmt.Errorf("unmarshal image keys: %w", err)
		}
	}
	if len(p.ImageObjectKeys) == 0 {
		p.ImageObjectKeys = nil
	}
	return &p, nil
}

func (r *CampaignRepo) GetPiece(ctx context.Context, campaignID, pieceID string) (*domain.CreativePiece, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+pieceCols+` FROM creative_pieces WHERE id = $1 AND campaign_id = $2`,
		pieceID, campaignID)
	p, err := scanPiece(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrPieceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get piece: %w", err)
	}
	return p, nil
}

func (r *CampaignRepo) ListPieces(ctx context.Context, campaignID string) ([]domain.CreativePiece, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pieceCols+` FROM creative_pieces WHERE campaign_id = $1 ORDER BY piece_type`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	defer rows.Close()

	var out []domain.CreativePiece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, fmt.Errorf("scan piece: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) UpsertReview(ctx context.Context, unit domain.ReviewUnit, ia domain.IAVerdict) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO piece_reviews
			(id, campaign_id, piece_id, channel, commercial_space, ia_verdict, human_verdict, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, 'pending', NOW())
		ON CONFLICT (campaign_id, piece_id, channel, commercial_space) DO UPDATE SET
			ia_verdict = EXCLUDED.ia_verdict,
			human_verdict = 'pending',
			rejection_reason = '',
			reviewed_by = '',
			reviewed_at = NULL,
			updated_at = NOW()
	`, unit.CampaignID, unit.PieceID, unit.Channel, unit.CommercialSpace, ia)
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

const reviewCols = `id, campaign_id, piece_id, channel, commercial_space,
       ia_verdict, human_verdict, rejection_reason, reviewed_by, reviewed_at, updated_at`

func scanReview(row interface{ Scan(...interface{}) error }) (*domain.PieceReview, error) {
	var (
		rv         domain.PieceReview
		reviewedAt sql.NullTime
	)
	err := row.Scan(&rv.ID, &rv.Unit.CampaignID, &rv.Unit.PieceID, &rv.Unit.Channel,
		&rv.Unit.CommercialSpace, &rv.IAVerdict, &rv.HumanVerdict, &rv.RejectionReason,
		&rv.ReviewedBy, &reviewedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rv.ReviewedAt = &t
	}
	return &rv, nil
}

func (r *CampaignRepo) GetReview(ctx context.Context, unit domain.ReviewUnit) (*domain.PieceReview, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+reviewCols+` FROM piece_reviews
		WHERE campaign_id = $1 AND piece_id = $2 AND channel = $3 AND commercial_space = $4
	`, unit.CampaignID, unit.PieceID, unit.Channel, unit.CommercialSpace)
	rv, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *CampaignRepo) ListReviews(ctx context.Context, campaignID string) ([]domain.PieceReview, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reviewCols+` FROM piece_reviews
		WHERE campaign_id = $1
		ORDER BY channel, commercial_space
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []domain.PieceReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// UpdateReview writes the manager verdict conditionally on the updated_at the
// caller last read. Zero rows with the row still present means another
// reviewer won the race.
func (r *CampaignRepo) UpdateReview(ctx context.Context, rv *domain.PieceReview, seenUpdatedAt time.Time) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE piece_reviews SET
			human_verdict = $1, rejection_reason = $2, reviewed_by = $3, reviewed_at = $4,
			updated_at = NOW()
		WHERE id = $5 AND updated_at = $6
		RETURNING updated_at
	`, rv.HumanVerdict, rv.RejectionReason, rv.ReviewedBy, rv.ReviewedAt,
		rv.ID, seenUpdatedAt).Scan(&rv.UpdatedAt)
	if err == sql.ErrNoRows {
		var exists bool
		if qerr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM piece_reviews WHERE id = $1)`, rv.ID).Scan(&exists); qerr != nil {
			return fmt.Errorf("check review: %w", qerr)
		}
		if !exists {
			return campaign.ErrReviewNotFound
		}
		return campaign.ErrReviewConflict
	}
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func (r *CampaignRepo) AppendReviewEvent(ctx context.Context, ev *domain.PieceReviewEvent) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO piece_review_events
			(campaign_id, piece_id, channel, commercial_space, event_type, ia_verdict, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id
	`, ev.Unit.CampaignID, ev.Unit.PieceID, ev.Unit.Channel, ev.Unit.CommercialSpace,
		ev.Type, ev.IAVerdict, ev.Reason, ev.Actor).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("append review event: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ReviewEvents(ctx context.Context, campaignID string) ([]domain.PieceReviewEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, piece_id, channel, commercial_space, event_type, ia_verdict, reason, actor, created_at
		FROM piece_review_events
		WHERE campaign_id = $1
		ORDER BY created_at ASC, id ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("review events: %w", err)
	}
	defer rows.Close()

	var out []domain.PieceReviewEvent
	for rows.Next() {
		var ev domain.PieceReviewEvent
		if err := rows.Scan(&ev.ID, &ev.Unit.CampaignID, &ev.Unit.PieceID, &ev.Unit.Channel,
			&ev.Unit.CommercialSpace, &ev.Type, &ev.IAVerdict, &ev.Reason, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) AddComment(ctx context.Context, c *domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_comments (id, campaign_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.CampaignID, c.Author, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ListComments(ctx context.Context, campaignID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, author, body, created_at
		FROM campaign_comments
		WHERE campaign_id = $1
		ORDER BY created_at ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Author, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
