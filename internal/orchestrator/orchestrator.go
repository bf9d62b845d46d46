// Package orchestrator runs the per-piece validation graph: a structural
// channel gate, artifact retrieval for stored content, a concurrent fan-out
// to the specs, brand and legal validators, and a pure aggregation that is
// persisted idempotently on the content hash.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
	"github.com/orqestra/campaign-hub/internal/validator/brand"
	"github.com/orqestra/campaign-hub/internal/validator/legal"
	"github.com/orqestra/campaign-hub/internal/validator/specs"
)

// TaskValidateCommunication is the only task the graph accepts.
const TaskValidateCommunication = "VALIDATE_COMMUNICATION"

// Graph stage names, as reported in stages_completed and failure_stage.
const (
	StageValidateChannel = "validate_channel"
	StageRetrieveContent = "retrieve_content"
	StageValidateSpecs   = "validate_specs"
	StageValidateBrand   = "validate_brand"
	StageValidateLegal   = "validate_legal"
)

// Request is the analyze-piece entry payload.
type Request struct {
	Task       string         `json:"task"`
	Channel    domain.Channel `json:"channel"`
	Content    domain.Content `json:"content"`
	CampaignID string         `json:"campaign_id,omitempty"`
}

// ChannelCheck is the structural gate outcome.
type ChannelCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// FinalVerdict is the aggregated decision.
type FinalVerdict struct {
	Decision            string        `json:"decision"`
	RequiresHumanReview bool          `json:"requires_human_review"`
	Summary             string        `json:"summary"`
	Sources             []string      `json:"sources"`
	Specs               *specs.Result `json:"specs"`
	Legal               *legal.Result `json:"legal"`
	Branding            *brand.Result `json:"branding"`
}

// Response is the analyze-piece reply: every partial result plus the verdict.
type Response struct {
	ValidationResult      *ChannelCheck `json:"validation_result"`
	SpecsResult           *specs.Result `json:"specs_result"`
	BrandingResult        *brand.Result `json:"branding_result"`
	ComplianceResult      *legal.Result `json:"compliance_result"`
	RequiresHumanApproval bool          `json:"requires_human_approval"`
	HumanApprovalReason   string        `json:"human_approval_reason,omitempty"`
	FailureStage          string        `json:"failure_stage,omitempty"`
	StagesCompleted       []string      `json:"stages_completed"`
	FinalVerdict          *FinalVerdict `json:"final_verdict"`
}

// Repository persists aggregated outcomes.
type Repository interface {
	UpsertEntry(ctx context.Context, e *domain.ValidationCacheEntry) error
	GetEntry(ctx context.Context, campaignID string, channel domain.Channel, contentHash string) (*domain.ValidationCacheEntry, error)
	ListEntries(ctx context.Context, campaignID string) ([]domain.ValidationCacheEntry, error)
}

// Orchestrator wires the graph's validators and tools.
type Orchestrator struct {
	specs   *specs.Validator
	brand   *brand.Validator
	legal   *legal.Agent
	content *ContentClient
	render  *RenderClient
	repo    Repository

	maxImageBytes int64
	totalTimeout  time.Duration
}

// New builds the orchestrator.
func New(sv *specs.Validator, bv *brand.Validator, la *legal.Agent,
	content *ContentClient, render *RenderClient, repo Repository,
	maxImageBytes int64, totalTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		specs:         sv,
		brand:         bv,
		legal:         la,
		content:       content,
		render:        render,
		repo:          repo,
		maxImageBytes: maxImageBytes,
		totalTimeout:  totalTimeout,
	}
}

// resolved carries the request plus everything retrieval produced.
type resolved struct {
	req Request

	html          []byte
	renderedImage string // data URL, legal visual review
	renderedBytes int64

	image        []byte
	imageDataURL string
	imageWidth   int
	imageHeight  int
}

// Analyze runs the graph and returns the marshaled response. Identical
// content replays the persisted row byte-for-byte.
func (o *Orchestrator) Analyze(ctx context.Context, req Request, fwd http.Header) ([]byte, error) {
	if o.totalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.totalTimeout)
		defer cancel()
	}

	check := validateChannel(req)
	if !check.Valid {
		return marshal(earlyFail(check, StageValidateChannel,
			strings.Join(check.Errors, "; "), nil))
	}
	stages := []string{StageValidateChannel}

	r := &resolved{req: req}
	if req.Channel == domain.ChannelEmail || req.Channel == domain.ChannelApp {
		if err := o.retrieve(ctx, r, fwd); err != nil {
			logger.Warn("content retrieval failed",
				"channel", string(req.Channel), "error", err.Error())
			return marshal(earlyFail(check, StageRetrieveContent, err.Error(), stages))
		}
		stages = append(stages, StageRetrieveContent)
	}

	hash := contentHash(r)
	if req.CampaignID != "" {
		if e, err := o.repo.GetEntry(ctx, req.CampaignID, req.Channel, hash); err == nil && e != nil {
			logger.Debug("validation served from cache",
				"campaign_id", req.CampaignID, "channel", string(req.Channel))
			o.persist(ctx, req, hash, e.Response)
			return e.Response, nil
		}
	}

	var (
		wg                     sync.WaitGroup
		specsRes               *specs.Result
		brandRes               *brand.Result
		legalRes               *legal.Result
		specsErr, brandErr, legalErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		specsRes, specsErr = o.specs.Validate(ctx, specsInput(r))
	}()
	go func() {
		defer wg.Done()
		brandRes, brandErr = o.runBrand(r)
	}()
	go func() {
		defer wg.Done()
		legalRes, legalErr = o.legal.Validate(ctx, legalInput(r))
	}()
	wg.Wait()

	resp := aggregate(check, stages, stageOutcome{
		specs: specsRes, specsErr: specsErr,
		brand: brandRes, brandErr: brandErr,
		legal: legalRes, legalErr: legalErr,
	})
	raw, err := marshal(resp)
	if err != nil {
		return nil, err
	}
	if req.CampaignID != "" {
		o.persist(ctx, req, hash, raw)
	}
	return raw, nil
}

// History lists the persisted outcomes for one campaign.
func (o *Orchestrator) History(ctx context.Context, campaignID string) ([]domain.ValidationCacheEntry, error) {
	return o.repo.ListEntries(ctx, campaignID)
}

func marshal(resp *Response) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal response: %w", err)
	}
	return raw, nil
}

// persist upserts the outcome; a write failure loses history, not the verdict.
func (o *Orchestrator) persist(ctx context.Context, req Request, hash string, raw []byte) {
	err := o.repo.UpsertEntry(ctx, &domain.ValidationCacheEntry{
		CampaignID:  req.CampaignID,
		Channel:     req.Channel,
		ContentHash: hash,
		Response:    raw,
	})
	if err != nil {
		logger.Warn("validation persist failed",
			"campaign_id", req.CampaignID, "error", err.Error())
	}
}

// validateChannel is the structural gate: required fields, well-typed, for
// the declared channel. No I/O.
func validateChannel(req Request) *ChannelCheck {
	check := &ChannelCheck{Valid: true, Errors: []string{}}
	fail := func(msg string) {
		check.Valid = false
		check.Errors = append(check.Errors, msg)
	}

	if req.Task != TaskValidateCommunication {
		fail(fmt.Sprintf("tarefa desconhecida %q", req.Task))
	}
	if !domain.ValidChannel(req.Channel) {
		fail(fmt.Sprintf("canal desconhecido %q", req.Channel))
		return check
	}
	c := req.Content
	switch req.Channel {
	case domain.ChannelSMS:
		if c.Body == "" {
			fail("SMS requer body")
		}
	case domain.ChannelPush:
		if c.Title == "" {
			fail("PUSH requer title")
		}
		if c.Body == "" {
			fail("PUSH requer body")
		}
	case domain.ChannelEmail:
		if c.HTML == "" && (c.CampaignID == "" || c.PieceID == "") {
			fail("EMAIL requer html inline ou referência campaign_id+piece_id")
		}
	case domain.ChannelApp:
		if c.CommercialSpace == "" {
			fail("APP requer commercial_space")
		}
		if c.Image == "" && (c.CampaignID == "" || c.PieceID == "") {
			fail("APP requer imagem inline ou referência campaign_id+piece_id")
		}
	}
	return check
}

// retrieve resolves EMAIL/APP content: inline when provided, via the content
// tool otherwise. EMAIL additionally renders a preview; render failure
// degrades to HTML-only legal review.
func (o *Orchestrator) retrieve(ctx context.Context, r *resolved, fwd http.Header) error {
	c := r.req.Content
	switch r.req.Channel {
	case domain.ChannelEmail:
		if c.HTML != "" {
			r.html = []byte(c.HTML)
		} else {
			body, ct, err := o.content.Fetch(ctx, c.CampaignID, c.PieceID, "", fwd)
			if err != nil {
				return err
			}
			if !strings.Contains(ct, "text/html") {
				return fmt.Errorf("conteúdo EMAIL com content-type inesperado %q", ct)
			}
			r.html = body
		}
		if img, ct, err := o.render.Render(ctx, r.html); err != nil {
			logger.Warn("render preview unavailable, legal review runs on HTML only",
				"error", err.Error())
		} else {
			r.renderedBytes = int64(len(img))
			r.renderedImage = fmt.Sprintf("data:%s;base64,%s", ct,
				base64.StdEncoding.EncodeToString(img))
		}
		return nil

	case domain.ChannelApp:
		dataURL := c.Image
		if dataURL == "" {
			body, _, err := o.content.Fetch(ctx, c.CampaignID, c.PieceID, c.CommercialSpace, fwd)
			if err != nil {
				return err
			}
			dataURL = strings.TrimSpace(string(body))
		}
		mime, b64, err := llm.SplitDataURL(dataURL)
		if err != nil || !strings.HasPrefix(mime, "image/") {
			return fmt.Errorf("conteúdo APP não é uma data URL de imagem")
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return fmt.Errorf("imagem APP com base64 inválido: %w", err)
		}
		if o.maxImageBytes > 0 && int64(len(raw)) > o.maxImageBytes {
			return fmt.Errorf("imagem APP excede o limite de %d bytes", o.maxImageBytes)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("imagem APP indecodificável: %w", err)
		}
		r.image = raw
		r.imageDataURL = dataURL
		r.imageWidth = cfg.Width
		r.imageHeight = cfg.Height
		return nil
	}
	return nil
}

func specsInput(r *resolved) specs.Input {
	return specs.Input{
		Channel:         r.req.Channel,
		CommercialSpace: r.req.Content.CommercialSpace,
		Body:            r.req.Content.Body,
		Title:           r.req.Content.Title,
		HTML:            r.html,
		RenderedBytes:   r.renderedBytes,
		ImageBytes:      r.image,
		ImageWidth:      r.imageWidth,
		ImageHeight:     r.imageHeight,
	}
}

// runBrand dispatches to the HTML or image rulebook; SMS/PUSH carry no brand
// surface and pass trivially.
func (o *Orchestrator) runBrand(r *resolved) (*brand.Result, error) {
	switch r.req.Channel {
	case domain.ChannelEmail:
		return o.brand.ValidateHTML(r.html)
	case domain.ChannelApp:
		return o.brand.ValidateImage(r.image)
	default:
		return &brand.Result{Compliant: true, Score: 100, Violations: []brand.Violation{}}, nil
	}
}

func legalInput(r *resolved) legal.Input {
	in := legal.Input{Task: r.req.Task, Channel: string(r.req.Channel)}
	switch r.req.Channel {
	case domain.ChannelSMS:
		in.Content = r.req.Content.Body
	case domain.ChannelPush:
		in.Content = r.req.Content.Title + "\n" + r.req.Content.Body
	case domain.ChannelEmail:
		in.Content = string(r.html)
		in.ImageDataURL = r.renderedImage
	case domain.ChannelApp:
		in.Content = "peça visual para o espaço comercial " + r.req.Content.CommercialSpace
		in.ImageDataURL = r.imageDataURL
	}
	return in
}
