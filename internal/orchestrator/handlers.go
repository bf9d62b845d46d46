package orchestrator

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// Handler is the validator service HTTP surface.
type Handler struct {
	orch  *Orchestrator
	model llm.Client
}

// NewHandler wires the orchestrator and the generation model.
func NewHandler(orch *Orchestrator, model llm.Client) *Handler {
	return &Handler{orch: orch, model: model}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok", "service": "validator"})
	})
	r.Post("/api/ai/analyze-piece", h.analyzePiece)
	r.Get("/api/ai/validations", h.listValidations)
	r.Post("/api/ai/generate-text", h.generateText)
	return r
}

func (h *Handler) analyzePiece(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httputil.Decode(w, r, &req) {
		return
	}
	raw, err := h.orch.Analyze(r.Context(), req, r.Header)
	if err != nil {
		logger.Error("analyze-piece failed", "error", err.Error())
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (h *Handler) listValidations(w http.ResponseWriter, r *http.Request) {
	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		httputil.BadRequest(w, "campaign_id is required")
		return
	}
	entries, err := h.orch.History(r.Context(), campaignID)
	if err != nil {
		logger.Error("list validations failed", "error", err.Error())
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, entries)
}

type generateRequest struct {
	Channel      string `json:"channel"`
	CampaignName string `json:"campaign_name,omitempty"`
	Briefing     string `json:"briefing"`
}

// generateText streams copy suggestions as SSE. The model reply is produced
// in one call and flushed to the client in word chunks.
func (h *Handler) generateText(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Briefing == "" {
		httputil.BadRequest(w, "briefing is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	text, err := h.model.Invoke(r.Context(), llm.Request{
		System: "Você é um redator de marketing. Gere uma sugestão de texto " +
			"para o canal informado, direta e dentro das boas práticas da marca.",
		Messages: []llm.Message{{
			Role: "user",
			Text: fmt.Sprintf("Canal: %s\nCampanha: %s\nBriefing: %s",
				req.Channel, req.CampaignName, req.Briefing),
		}},
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", "geração indisponível")
		flusher.Flush()
		return
	}

	for _, chunk := range chunkWords(text, 8) {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// chunkWords splits text into groups of n words, newlines folded to spaces so
// each chunk stays a single SSE data line.
func chunkWords(text string, n int) []string {
	words := strings.Fields(text)
	var out []string
	for len(words) > 0 {
		k := n
		if k > len(words) {
			k = len(words)
		}
		out = append(out, strings.Join(words[:k], " "))
		words = words[k:]
	}
	return out
}
