package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/service"
)

// AuthHandler manages session lifecycle: sign-in, logout, and "who am I".
//
// SESSION MODEL:
// A successful sign-in issues a JWT stored in an HttpOnly cookie. The server
// keeps no session state — "logout" just deletes the cookie, and the token
// quietly ages out at its expiry.
type AuthHandler struct {
	accounts *service.AccountService
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthHandler(accounts *service.AccountService, tokens *auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

type signInRequest struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}

// HandleSignIn authenticates by username or email and sets the session cookie.
//
// HTTP: POST /api/auth/sign-in
//
// Distinct failures, distinct codes: unknown identifier → 404, account not
// yet verified → 403 (password never checked), wrong password → 401.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.accounts.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	// HttpOnly: JavaScript can't read the token (XSS protection).
	// SameSite=Lax: not sent on cross-site POSTs.
	// Secure should be on behind HTTPS; left off for local dev.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.tokens.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("account signed in", slog.String("username", result.Account.Username))
	writeJSON(w, http.StatusOK, result.Account)
}

// HandleLogout deletes the session cookie.
//
// HTTP: POST /api/auth/logout
//
// POST, not GET: logout changes state, and GET would be prefetchable. The
// token itself stays valid until expiry — without the cookie the browser
// simply can't present it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated account's own record.
//
// HTTP: GET /api/auth/me
// Auth: required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't panic if miswired.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}
