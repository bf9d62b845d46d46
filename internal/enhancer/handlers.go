package enhancer

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orqestra/campaign-hub/internal/pkg/headerenc"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
)

// Handler is the enhancer HTTP surface. Identity arrives via the gateway's
// X-User-* headers.
type Handler struct {
	svc *Service
}

// NewHandler creates the enhancer HTTP handler.
func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Routes builds the enhancer router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok", "service": "enhancer"})
	})
	r.Post("/api/enhance-objective", h.enhance)
	r.Get("/api/ai-interactions/{id}", h.getInteraction)
	r.Patch("/api/ai-interactions/{id}", h.decide)
	return r
}

func userID(r *http.Request) string {
	return headerenc.Decode(r.Header.Get("X-User-Id"))
}

func (h *Handler) enhance(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.Unauthorized(w, "not authenticated")
		return
	}
	var req EnhanceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	result, err := h.svc.Enhance(r.Context(), uid, req)
	if err != nil {
		if errors.Is(err, ErrUnknownField) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

func (h *Handler) getInteraction(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.Unauthorized(w, "not authenticated")
		return
	}
	ai, err := h.svc.Interaction(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrInteractionNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, ai)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.Unauthorized(w, "not authenticated")
		return
	}
	var req decisionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.svc.Decide(r.Context(), uid, chi.URLParam(r, "id"), req.Decision); err != nil {
		switch {
		case errors.Is(err, ErrInteractionNotFound):
			httputil.NotFound(w, err.Error())
		default:
			httputil.BadRequest(w, err.Error())
		}
		return
	}
	httputil.NoContent(w)
}
