package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// Handler is the identity service HTTP surface.
type Handler struct {
	svc          *Service
	cookieDomain string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	secure       bool
}

// NewHandler creates the identity HTTP handler. secure controls the cookie
// Secure flag and must be true in production.
func NewHandler(svc *Service, cookieDomain string, accessTTL, refreshTTL time.Duration, secure bool) *Handler {
	return &Handler{
		svc:          svc,
		cookieDomain: cookieDomain,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		secure:       secure,
	}
}

// Routes builds the identity router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok", "service": "identity"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.Get("/me", h.me)
		r.Get("/logins", h.listLogins)
	})
	return r
}

type registerRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.FullName, req.Role)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httputil.Conflict(w, "email already registered")
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httputil.Unauthorized(w, "invalid credentials")
		case errors.Is(err, ErrInactive):
			httputil.Forbidden(w, "account is inactive")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	h.setSessionCookies(w, sess)
	httputil.OK(w, map[string]interface{}{
		"user":          sess.User,
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		httputil.Unauthorized(w, "refresh token required")
		return
	}
	sess, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUserNotFound):
			httputil.Unauthorized(w, "refresh token invalid or expired")
		case errors.Is(err, ErrInactive):
			httputil.Forbidden(w, "account is inactive")
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	h.setAccessCookie(w, sess.AccessToken)
	httputil.OK(w, map[string]interface{}{
		"user":         sess.User,
		"access_token": sess.AccessToken,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		httputil.Unauthorized(w, "not authenticated")
		return
	}
	if token := refreshTokenFrom(r); token != "" {
		if err := h.svc.Logout(r.Context(), u.ID, token); err != nil && !errors.Is(err, ErrTokenInvalid) {
			httputil.InternalError(w, err)
			return
		}
	}
	h.clearSessionCookies(w)
	httputil.NoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		switch {
		case errors.Is(err, ErrInactive):
			httputil.Forbidden(w, "account is inactive")
		default:
			httputil.Unauthorized(w, "not authenticated")
		}
		return
	}
	httputil.OK(w, u)
}

func (h *Handler) listLogins(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		httputil.Unauthorized(w, "not authenticated")
		return
	}
	if u.Role != domain.RoleMarketingManager {
		httputil.Forbidden(w, "managers only")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	audits, err := h.svc.ListLogins(r.Context(), r.URL.Query().Get("email"), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"logins": audits})
}

// currentUser resolves the caller from the access cookie or bearer header,
// cookie first.
func (h *Handler) currentUser(r *http.Request) (*domain.User, error) {
	token := ""
	if c, err := r.Cookie(accessCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			token = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if token == "" {
		return nil, ErrTokenInvalid
	}
	return h.svc.Me(r.Context(), token)
}

func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Body is optional; cookie is the normal path.
	_ = decodeQuiet(r, &body)
	return body.RefreshToken
}

func decodeQuiet(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, sess *Session) {
	h.setAccessCookie(w, sess.AccessToken)
	http.SetCookie(w, h.cookie(refreshCookie, sess.RefreshToken, int(h.refreshTTL.Seconds())))
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.cookie(accessCookie, token, int(h.accessTTL.Seconds())))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(accessCookie, "", -1))
	http.SetCookie(w, h.cookie(refreshCookie, "", -1))
}

func (h *Handler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secure,
	}
}

func clientIP(r *http.Request) string {
	// middleware.RealIP already folded X-Forwarded-For into RemoteAddr.
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
