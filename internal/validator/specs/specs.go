// Package specs validates creative content against per-channel technical
// limits: character counts, byte weights and image dimensions. Rows come from
// an external specs tool with a local YAML fallback.
package specs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/httpretry"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Result is the specs validator outcome.
type Result struct {
	Valid    bool                   `json:"valid"`
	Errors   []string               `json:"errors"`
	Warnings []string               `json:"warnings"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Input carries the resolved content for one validation.
type Input struct {
	Channel         domain.Channel
	CommercialSpace string

	Body  string
	Title string

	HTML          []byte
	RenderedBytes int64

	ImageBytes  []byte
	ImageWidth  int
	ImageHeight int
}

// Source provides spec rows.
type Source interface {
	Rows(ctx context.Context) ([]config.ChannelSpec, error)
}

// StaticSource serves the YAML fallback rows from config.
type StaticSource struct{ rows []config.ChannelSpec }

// NewStaticSource wraps the config fallback rows.
func NewStaticSource(cfg config.SpecsConfig) *StaticSource {
	return &StaticSource{rows: cfg.Rows}
}

func (s *StaticSource) Rows(context.Context) ([]config.ChannelSpec, error) {
	return s.rows, nil
}

// ToolSource fetches rows from the external specs service, falling back to
// the local rows when the tool is unreachable.
type ToolSource struct {
	url      string
	client   httpretry.HTTPDoer
	fallback *StaticSource
}

// NewToolSource builds a tool-backed source. An empty URL serves only the
// fallback.
func NewToolSource(url string, client httpretry.HTTPDoer, fallback *StaticSource) *ToolSource {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	return &ToolSource{url: url, client: client, fallback: fallback}
}

func (s *ToolSource) Rows(ctx context.Context) ([]config.ChannelSpec, error) {
	if s.url == "" {
		return s.fallback.Rows(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return s.fallback.Rows(ctx)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn("specs tool unreachable, using fallback rows", "error", err.Error())
		return s.fallback.Rows(ctx)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.Warn("specs tool returned an error, using fallback rows",
			"status", fmt.Sprintf("%d", resp.StatusCode))
		return s.fallback.Rows(ctx)
	}
	var out struct {
		Rows []config.ChannelSpec `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Rows) == 0 {
		return s.fallback.Rows(ctx)
	}
	return out.Rows, nil
}

// Resolve picks the row for (channel, commercial space): an exact space match
// beats the channel-wide row (empty commercial_space).
func Resolve(rows []config.ChannelSpec, channel domain.Channel, space string) *config.ChannelSpec {
	var channelWide *config.ChannelSpec
	for i := range rows {
		if !strings.EqualFold(rows[i].Channel, string(channel)) {
			continue
		}
		if rows[i].CommercialSpace == space && space != "" {
			return &rows[i]
		}
		if rows[i].CommercialSpace == "" {
			channelWide = &rows[i]
		}
	}
	return channelWide
}

// Validator runs the deterministic spec checks.
type Validator struct {
	source Source
}

// New creates a specs validator.
func New(source Source) *Validator { return &Validator{source: source} }

// Validate checks the content against its spec row. A missing row passes with
// a warning; limits are opt-in per row.
func (v *Validator) Validate(ctx context.Context, in Input) (*Result, error) {
	rows, err := v.source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("specs: load rows: %w", err)
	}
	spec := Resolve(rows, in.Channel, in.CommercialSpace)

	res := &Result{Valid: true, Errors: []string{}, Warnings: []string{}, Details: map[string]interface{}{}}
	if spec == nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("sem especificação cadastrada para o canal %s", in.Channel))
		return res, nil
	}

	switch in.Channel {
	case domain.ChannelSMS:
		v.checkSMS(in, spec, res)
	case domain.ChannelPush:
		v.checkPush(in, spec, res)
	case domain.ChannelEmail:
		v.checkEmail(in, spec, res)
	case domain.ChannelApp:
		v.checkApp(in, spec, res)
	default:
		return nil, fmt.Errorf("specs: unknown channel %q", in.Channel)
	}

	res.Valid = len(res.Errors) == 0
	return res, nil
}

func (v *Validator) checkSMS(in Input, spec *config.ChannelSpec, res *Result) {
	n := utf8.RuneCountInString(in.Body)
	res.Details["body_chars"] = n
	if spec.MaxBodyChars > 0 && n > spec.MaxBodyChars {
		res.Errors = append(res.Errors,
			fmt.Sprintf("SMS excede %d caracteres", spec.MaxBodyChars))
	}
}

func (v *Validator) checkPush(in Input, spec *config.ChannelSpec, res *Result) {
	titleLen := utf8.RuneCountInString(in.Title)
	bodyLen := utf8.RuneCountInString(in.Body)
	res.Details["title_chars"] = titleLen
	res.Details["body_chars"] = bodyLen
	if spec.MaxTitleChars > 0 && titleLen > spec.MaxTitleChars {
		res.Errors = append(res.Errors,
			fmt.Sprintf("título do push excede %d caracteres", spec.MaxTitleChars))
	}
	if spec.MaxBodyChars > 0 && bodyLen > spec.MaxBodyChars {
		res.Errors = append(res.Errors,
			fmt.Sprintf("corpo do push excede %d caracteres", spec.MaxBodyChars))
	}
}

func (v *Validator) checkEmail(in Input, spec *config.ChannelSpec, res *Result) {
	size := int64(len(in.HTML))
	res.Details["html_bytes"] = size
	if spec.MaxHTMLBytes > 0 && size > spec.MaxHTMLBytes {
		res.Errors = append(res.Errors,
			fmt.Sprintf("HTML excede %d bytes", spec.MaxHTMLBytes))
	}
	if in.RenderedBytes > 0 {
		res.Details["rendered_bytes"] = in.RenderedBytes
		if spec.RenderWarnBytes > 0 && in.RenderedBytes > spec.RenderWarnBytes {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("imagem renderizada excede %d bytes", spec.RenderWarnBytes))
		}
	}
}

func (v *Validator) checkApp(in Input, spec *config.ChannelSpec, res *Result) {
	size := int64(len(in.ImageBytes))
	res.Details["image_bytes"] = size
	res.Details["width"] = in.ImageWidth
	res.Details["height"] = in.ImageHeight
	if spec.MaxImageBytes > 0 && size > spec.MaxImageBytes {
		res.Errors = append(res.Errors,
			fmt.Sprintf("imagem excede %d bytes", spec.MaxImageBytes))
	}
	if spec.ExpectedWidth > 0 && spec.ExpectedHeight > 0 {
		tol := spec.DimensionTolPct
		if !withinTolerance(in.ImageWidth, spec.ExpectedWidth, tol) ||
			!withinTolerance(in.ImageHeight, spec.ExpectedHeight, tol) {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"dimensões %dx%d fora do esperado %dx%d (tolerância %d%%)",
				in.ImageWidth, in.ImageHeight, spec.ExpectedWidth, spec.ExpectedHeight, tol))
		}
	}
}

func withinTolerance(actual, expected, tolPct int) bool {
	if expected == 0 {
		return true
	}
	delta := expected * tolPct / 100
	return actual >= expected-delta && actual <= expected+delta
}
