package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/MrEthical07/streamauth"
	"github.com/MrEthical07/streamauth/middleware"
)

// Auth is the part of *streamauth.Manager the handlers use.
type Auth interface {
	Login(ctx context.Context, creds streamauth.Credentials) (*streamauth.LoginResult, error)
	LogoutToken(ctx context.Context, raw string) error
	AuthenticateToken(ctx context.Context, raw string) (*streamauth.AuthUser, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	CookieName() string
	SecureCookies() bool
	AccessTTL() time.Duration
}

// Handler implements the /auth routes.
type Handler struct {
	auth Auth
	log  logr.Logger
}

func NewHandler(auth Auth, log logr.Logger) *Handler {
	return &Handler{auth: auth, log: log}
}

// Routes returns the auth routes relative to their mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/validate", h.validate)
	r.Post("/refresh", h.refresh)
	return r
}

type loginResponse struct {
	User         *streamauth.AuthUser `json:"user"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
}

type validateResponse struct {
	User *streamauth.AuthUser `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds streamauth.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	res, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		h.loginError(w, err)
		return
	}

	h.setAccessCookie(w, res.Tokens.AccessToken, res.Tokens.AccessExpiresAt)
	middleware.WriteJSON(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *Handler) loginError(w http.ResponseWriter, err error) {
	var rl *streamauth.RateLimitError
	switch {
	case errors.As(err, &rl):
		minutes := int(math.Ceil(rl.RetryAfter.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "rate_limited", fmt.Sprintf("too many login attempts, retry in %d minutes", minutes))
	case errors.Is(err, streamauth.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case streamauth.StatusCode(err) == http.StatusServiceUnavailable:
		h.log.Error(err, "login unavailable")
		writeError(w, http.StatusServiceUnavailable, "unavailable", "service unavailable")
	default:
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if tok := streamauth.TokenFromRequest(r, h.auth.CookieName()); tok != "" {
		if err := h.auth.LogoutToken(r.Context(), tok); err != nil {
			h.log.V(1).Info("logout with unusable token", "error", err.Error())
		}
	}
	h.clearAccessCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.AuthenticateToken(r.Context(), streamauth.TokenFromRequest(r, h.auth.CookieName()))
	if err != nil {
		h.authError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, validateResponse{User: user})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required")
		return
	}

	access, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.authError(w, err)
		return
	}
	h.setAccessCookie(w, access, time.Now().Add(h.auth.AccessTTL()))
	middleware.WriteJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

// authError answers 401 for every token problem. Backend outages are
// logged but the client sees the same unauthorized result.
func (h *Handler) authError(w http.ResponseWriter, err error) {
	if streamauth.StatusCode(err) == http.StatusServiceUnavailable {
		h.log.Error(err, "token verification degraded to unauthorized")
	}
	code := streamauth.ErrorCode(err)
	if code != "token_expired" {
		code = "unauthorized"
	}
	writeError(w, http.StatusUnauthorized, code, "authentication required")
}

func (h *Handler) setAccessCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.auth.CookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.auth.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.auth.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.auth.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	middleware.WriteJSON(w, status, middleware.ErrorBody{Code: code, Error: msg})
}
