package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/service"
)

// AccountHandler covers registration and the verification lifecycle. All of
// its routes are public — they exist precisely for people who can't sign in
// yet.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	EmailSent bool   `json:"emailSent"`
}

// HandleSignUp registers a new unverified account and emails a verification
// code.
//
// HTTP: POST /api/auth/sign-up
//
// Responds 201 even when the email could not be delivered — the account and
// its code exist either way, and emailSent:false tells the client to steer
// the user toward resend.
func (h *AccountHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.accounts.SignUp(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("account registered",
		slog.String("username", result.Account.Username),
		slog.Bool("emailSent", result.EmailSent),
	)

	writeJSON(w, http.StatusCreated, signUpResponse{
		Username:  result.Account.Username,
		Email:     result.Account.Email,
		EmailSent: result.EmailSent,
	})
}

type verifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// HandleVerifyCode confirms an account with the emailed code.
//
// HTTP: POST /api/auth/verify-code
//
// Each failure mode gets its own status: unknown username 404, already
// verified 409, expired code 410, wrong code 400.
func (h *AccountHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.VerifyCode(r.Context(), req.Username, req.Code); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("account verified", slog.String("username", req.Username))
	writeJSON(w, http.StatusOK, map[string]string{"message": "account verified"})
}

type resendCodeRequest struct {
	Username string `json:"username"`
}

// HandleResendCode issues and emails a fresh verification code, invalidating
// the previous one.
//
// HTTP: POST /api/auth/resend-code
func (h *AccountHandler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	var req resendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.ResendCode(r.Context(), req.Username); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

type checkUsernameResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// HandleCheckUsername reports whether a username is valid and unclaimed.
// Backs the debounced as-you-type check on the sign-up form.
//
// HTTP: GET /api/auth/check-username?username=alice
func (h *AccountHandler) HandleCheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	available, err := h.accounts.CheckUsername(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkUsernameResponse{
		Username:  username,
		Available: available,
	})
}
