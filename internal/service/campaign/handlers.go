package campaign

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/headerenc"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
	"github.com/orqestra/campaign-hub/internal/storage"
)

// Handler is the workflow engine HTTP surface. It trusts the gateway's
// X-User-* headers; the engine is never exposed directly to clients.
type Handler struct {
	svc            *Service
	store          storage.ObjectStore
	maxUploadBytes int64
}

// NewHandler creates the engine HTTP handler.
func NewHandler(svc *Service, store storage.ObjectStore, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{svc: svc, store: store, maxUploadBytes: maxUploadBytes}
}

// Routes builds the engine router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok", "service": "campaigns"})
	})

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.delete)
			r.Post("/transition", h.transition)
			r.Get("/status-history", h.statusHistory)
			r.Get("/comments", h.listComments)
			r.Post("/comments", h.addComment)
			r.Post("/submit-for-review", h.submitForReview)
			r.Post("/review", h.review)
			r.Get("/reviews", h.listReviews)
			r.Get("/review-history", h.reviewHistory)
			r.Route("/creative-pieces", func(r chi.Router) {
				r.Get("/", h.listPieces)
				r.Post("/", h.upsertPiece)
				r.Post("/upload", h.uploadArtifact)
				r.Route("/{pieceID}", func(r chi.Router) {
					r.Get("/", h.getPiece)
					r.Get("/content", h.pieceContent)
					r.Get("/download", h.pieceDownload)
				})
			})
		})
	})
	return r
}

// actorFrom decodes the gateway identity headers. A missing identity means
// the request bypassed the gateway and is rejected.
func actorFrom(r *http.Request) (Actor, error) {
	id := headerenc.Decode(r.Header.Get("X-User-Id"))
	if id == "" {
		return Actor{}, fmt.Errorf("missing identity headers")
	}
	return Actor{
		ID:       id,
		Email:    headerenc.Decode(r.Header.Get("X-User-Email")),
		Role:     domain.Role(headerenc.Decode(r.Header.Get("X-User-Role"))),
		IsActive: r.Header.Get("X-User-Is-Active") != "false",
	}, nil
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	a, err := actorFrom(r)
	if err != nil {
		httputil.Unauthorized(w, "not authenticated")
		return Actor{}, false
	}
	if !a.IsActive {
		httputil.Forbidden(w, "account is inactive")
		return Actor{}, false
	}
	return a, true
}

// writeServiceError maps engine sentinels onto HTTP statuses. Unclassified
// errors are constraint violations and surface as 400s.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPieceNotFound), errors.Is(err, ErrReviewNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, ErrForbidden):
		httputil.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrImmutable),
		errors.Is(err, ErrReviewsNotFinal), errors.Is(err, ErrReviewConflict):
		httputil.Conflict(w, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	campaigns, total, err := h.svc.List(r.Context(), a, r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns": campaigns,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var c domain.Campaign
	if !httputil.Decode(w, r, &c) {
		return
	}
	created, err := h.svc.Create(r.Context(), a, &c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var u UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	if err := h.svc.Update(r.Context(), a, chi.URLParam(r, "id"), u); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

type transitionRequest struct {
	Status domain.CampaignStatus `json:"status"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Transition(r.Context(), a, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handler) statusHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	events, err := h.svc.StatusHistory(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"events": events})
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.AddComment(r.Context(), a, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	comments, err := h.svc.ListComments(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"comments": comments})
}

type submitRequest struct {
	Submissions []ReviewSubmission `json:"submissions"`
}

func (h *Handler) submitForReview(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.svc.SubmitForReview(r.Context(), a, chi.URLParam(r, "id"), req.Submissions); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in ReviewInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	rv, err := h.svc.Review(r.Context(), a, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, rv)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	reviews, err := h.svc.ListReviews(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"reviews": reviews})
}

func (h *Handler) reviewHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	events, err := h.svc.ReviewHistory(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"events": events})
}

func (h *Handler) listPieces(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	pieces, err := h.svc.ListPieces(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"pieces": pieces})
}

func (h *Handler) getPiece(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPiece(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pieceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// upsertPiece handles inline SMS/PUSH content. EMAIL and APP pieces go
// through /upload which stores the artifact first.
func (h *Handler) upsertPiece(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	var p domain.CreativePiece
	if !httputil.Decode(w, r, &p) {
		return
	}
	p.CampaignID = chi.URLParam(r, "id")
	created, err := h.svc.UpsertPiece(r.Context(), a, &p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, created)
}

// uploadArtifact receives a multipart EMAIL html or APP image, stores it and
// upserts the piece row pointing at the new object key.
func (h *Handler) uploadArtifact(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	campaignID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httputil.BadRequest(w, "upload too large or malformed multipart body")
		return
	}

	pieceType := domain.Channel(r.FormValue("piece_type"))
	space := r.FormValue("commercial_space")
	switch pieceType {
	case domain.ChannelEmail:
		if space != "" {
			httputil.BadRequest(w, "commercial_space is only valid for APP uploads")
			return
		}
	case domain.ChannelApp:
		if space == "" {
			httputil.BadRequest(w, "commercial_space is required for APP uploads")
			return
		}
	default:
		httputil.BadRequest(w, "piece_type must be EMAIL or APP for uploads")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.PieceKey(campaignID, pieceType, space, storage.ExtFromContentType(contentType))
	if err := h.store.Put(r.Context(), key, contentType, file); err != nil {
		httputil.InternalError(w, err)
		return
	}

	p, err := h.pieceForChannel(r, a, campaignID, pieceType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	switch pieceType {
	case domain.ChannelEmail:
		p.HTMLObjectKey = key
	case domain.ChannelApp:
		if p.ImageObjectKeys == nil {
			p.ImageObjectKeys = map[string]string{}
		}
		p.ImageObjectKeys[space] = key
	}

	created, err := h.svc.UpsertPiece(r.Context(), a, p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Created(w, created)
}

// pieceForChannel returns the existing piece of the channel, or a fresh one.
// APP uploads accumulate one image per commercial space onto a single row.
func (h *Handler) pieceForChannel(r *http.Request, a Actor, campaignID string, ch domain.Channel) (*domain.CreativePiece, error) {
	pieces, err := h.svc.ListPieces(r.Context(), a, campaignID)
	if err != nil {
		return nil, err
	}
	for i := range pieces {
		if pieces[i].PieceType == ch {
			return &pieces[i], nil
		}
	}
	return &domain.CreativePiece{CampaignID: campaignID, PieceType: ch}, nil
}

// pieceContent serves the reviewable content: HTML text for EMAIL, a base64
// data URL for APP (per commercial space), the inline body otherwise.
func (h *Handler) pieceContent(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPiece(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pieceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch p.PieceType {
	case domain.ChannelEmail:
		data, _, err := h.store.Get(r.Context(), p.HTMLObjectKey)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	case domain.ChannelApp:
		space := r.URL.Query().Get("commercial_space")
		key, ok := p.ImageObjectKeys[space]
		if !ok {
			httputil.NotFound(w, fmt.Sprintf("no image for commercial space %q", space))
			return
		}
		data, contentType, err := h.store.Get(r.Context(), key)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if p.Title != "" {
			fmt.Fprintln(w, p.Title)
		}
		fmt.Fprint(w, p.Body)
	}
}

// pieceDownload serves the raw stored artifact with its original content type.
func (h *Handler) pieceDownload(w http.ResponseWriter, r *http.Request) {
	a, ok := h.actor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetPiece(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "pieceID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var key string
	switch p.PieceType {
	case domain.ChannelEmail:
		key = p.HTMLObjectKey
	case domain.ChannelApp:
		space := r.URL.Query().Get("commercial_space")
		k, ok := p.ImageObjectKeys[space]
		if !ok {
			httputil.NotFound(w, fmt.Sprintf("no image for commercial space %q", space))
			return
		}
		key = k
	default:
		httputil.BadRequest(w, "piece has no stored artifact")
		return
	}

	data, contentType, err := h.store.Get(r.Context(), key)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}
