package legal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Verdict decisions.
const (
	DecisionApproved = "APROVADO"
	DecisionRejected = "REPROVADO"
)

// Result is the legal agent verdict.
type Result struct {
	Decision            string   `json:"decision"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	Summary             string   `json:"summary"`
	Sources             []string `json:"sources"`
}

// Input is one piece of content to review. ImageDataURL, when set, is
// attached to the model call for visual review.
type Input struct {
	Task         string
	Channel      string
	Content      string
	ImageDataURL string
}

// Agent runs moderation, retrieval and the LLM verdict.
type Agent struct {
	index *Index
	model llm.Client
	cache *Cache
	topK  int
}

// New builds the agent, loading and indexing the corpus up front.
func New(ctx context.Context, cfg config.ValidatorConfig, model llm.Client, redisClient *redis.Client) (*Agent, error) {
	passages, err := LoadCorpus(cfg.LegalCorpusPath)
	if err != nil {
		return nil, err
	}
	return &Agent{
		index: NewIndex(ctx, passages, model, cfg.LegalHybridAlpha),
		model: model,
		cache: NewCache(redisClient, cfg.LegalCacheTTL()),
		topK:  cfg.LegalTopK,
	}, nil
}

// NewWithIndex wires a prebuilt index, for tests and custom corpora.
func NewWithIndex(index *Index, model llm.Client, cache *Cache, topK int) *Agent {
	return &Agent{index: index, model: model, cache: cache, topK: topK}
}

// Validate produces the verdict for one piece. Moderation blocks short-circuit
// before any model call; cached verdicts are returned as-is.
func (a *Agent) Validate(ctx context.Context, in Input) (*Result, error) {
	if cached := a.cache.Get(ctx, in.Task, in.Channel, in.Content); cached != nil {
		logger.Debug("legal verdict served from cache", "channel", in.Channel)
		return cached, nil
	}

	if reason := moderate(in.Content); reason != "" {
		res := &Result{
			Decision:            DecisionRejected,
			RequiresHumanReview: true,
			Summary:             "Conteúdo bloqueado pela moderação: " + reason,
			Sources:             []string{},
		}
		a.cache.Put(ctx, in.Task, in.Channel, in.Content, res)
		return res, nil
	}

	query := in.Task + " " + in.Channel + " " + in.Content
	passages := a.index.Search(ctx, a.model, query, a.topK)

	system, user, err := buildPrompt(in.Channel, in.Content, passages)
	if err != nil {
		return nil, err
	}
	msg := llm.Message{Role: "user", Text: user}
	if in.ImageDataURL != "" {
		msg.ImageDataURL = in.ImageDataURL
	}
	reply, err := a.model.Invoke(ctx, llm.Request{
		System:      system,
		Messages:    []llm.Message{msg},
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("legal: model invoke: %w", err)
	}

	res, err := parseVerdict(reply)
	if err != nil {
		return nil, err
	}
	if len(res.Sources) == 0 {
		for _, p := range passages {
			res.Sources = append(res.Sources, p.Source)
		}
	}
	a.cache.Put(ctx, in.Task, in.Channel, in.Content, res)
	return res, nil
}

func parseVerdict(reply string) (*Result, error) {
	raw, err := llm.ExtractJSON(reply)
	if err != nil {
		return nil, fmt.Errorf("legal: verdict is not JSON: %w", err)
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("legal: decode verdict: %w", err)
	}
	res.Decision = strings.ToUpper(strings.TrimSpace(res.Decision))
	if res.Decision != DecisionApproved && res.Decision != DecisionRejected {
		return nil, fmt.Errorf("legal: unexpected decision %q", res.Decision)
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	return &res, nil
}

// moderationBlocklist catches claims that can never go to the model as
// legitimate marketing copy. Matching is case-insensitive on the canonical
// form of the content.
var moderationBlocklist = []string{
	"lucro garantido",
	"ganho garantido",
	"renda garantida",
	"sem nenhum risco",
	"dinheiro fácil",
	"pirâmide",
	"fique rico",
}

// moderate returns a non-empty reason when the content is blocked.
func moderate(content string) string {
	c := strings.ToLower(canonical(content))
	for _, term := range moderationBlocklist {
		if strings.Contains(c, term) {
			return fmt.Sprintf("a expressão %q viola a política de promessas de ganho", term)
		}
	}
	return ""
}
