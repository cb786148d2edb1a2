// Package service holds the business rules between the HTTP handlers and the
// repository: input validation, the verification lifecycle, credential
// checks, and inbox rules. Handlers translate errors to status codes; the
// store guarantees atomicity of individual writes; everything in between is
// here.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"time"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/email"
	"github.com/sakif/whisper-net/internal/model"
	"github.com/sakif/whisper-net/internal/repository"
)

// usernameRe: 2–20 chars, letters/digits/underscore. Usernames appear in
// public profile URLs, so the alphabet is deliberately narrow.
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{2,20}$`)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt input limit
)

// AccountService implements registration, verification, and sign-in.
type AccountService struct {
	repo      repository.AccountRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    email.Sender
	logger    *slog.Logger
}

func NewAccountService(
	repo repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer email.Sender,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:      repo,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		logger:    logger,
	}
}

// SignUpResult reports the created account and whether the verification
// email actually went out.
type SignUpResult struct {
	Account   *model.Account
	EmailSent bool
}

// SignUp creates an unverified account with a fresh verification code and
// emails the code to the given address.
//
// Email delivery is best-effort: a send failure does NOT fail the sign-up
// (the account exists, the code is live, resend-code is the recovery path) —
// it is only reported through EmailSent so the client can tell the user.
func (s *AccountService) SignUp(ctx context.Context, username, emailAddr, password string) (*SignUpResult, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(emailAddr); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("generating verification code: %w", err)
	}

	account := &model.Account{
		Username:            username,
		Email:               emailAddr,
		PasswordHash:        hash,
		VerifyCode:          code,
		VerifyCodeExpiry:    time.Now().Add(auth.CodeTTL),
		IsAcceptingMessages: true,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	sent := true
	if err := s.mailer.SendVerificationCode(ctx, account.Email, account.Username, code); err != nil {
		sent = false
		s.logger.Error("verification email failed at sign-up",
			"username", account.Username,
			"error", err,
		)
	}

	return &SignUpResult{Account: account, EmailSent: sent}, nil
}

// ResendCode issues a brand-new code for an unverified account and emails
// it. The new code supersedes the old one the moment it is stored — there is
// never more than one live code.
//
// Unlike sign-up, a delivery failure here IS an error (upstream): the whole
// point of the call was the email. The freshly stored code stays live, so a
// later retry that succeeds will deliver a working code.
func (s *AccountService) ResendCode(ctx context.Context, username string) error {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return apperror.Conflict("account is already verified")
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return fmt.Errorf("generating verification code: %w", err)
	}

	if err := s.repo.UpdateVerifyCode(ctx, account.ID, code, time.Now().Add(auth.CodeTTL)); err != nil {
		return err
	}

	if err := s.mailer.SendVerificationCode(ctx, account.Email, account.Username, code); err != nil {
		s.logger.Error("verification email failed at resend",
			"username", account.Username,
			"error", err,
		)
		return apperror.Upstream("email", err)
	}

	return nil
}

// VerifyCode confirms an account with the submitted code. Check order
// matters and each failure is a distinct kind:
//
//  1. unknown username          → NotFound
//  2. already verified          → Conflict (code is not even compared)
//  3. code expired              → Expired (even if the digits match)
//  4. wrong code                → Validation
//  5. match                     → atomic false→true flip
//
// The flip itself is guarded by the store, so two racing confirms can't both
// succeed: the loser comes back as Conflict, same as case 2.
func (s *AccountService) VerifyCode(ctx context.Context, username, code string) error {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if account.IsVerified {
		return apperror.Conflict("account is already verified")
	}
	if time.Now().After(account.VerifyCodeExpiry) {
		return apperror.Expired("verification code")
	}
	if subtle.ConstantTimeCompare([]byte(account.VerifyCode), []byte(code)) != 1 {
		return apperror.ValidationFailed("code", "incorrect verification code")
	}

	return s.repo.MarkVerified(ctx, account.ID)
}

// AuthResult carries the signed session token alongside the account.
type AuthResult struct {
	Account *model.Account
	Token   string
}

// Authenticate signs a user in by username OR email. Check order:
//
//  1. unknown identifier  → NotFound
//  2. not verified        → Forbidden (before the password is even checked)
//  3. wrong password      → Unauthorized
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*AuthResult, error) {
	account, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !account.IsVerified {
		return nil, apperror.Forbidden("account is not verified")
	}
	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("incorrect password")
	}

	token, err := s.tokens.Generate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// CheckUsername reports whether the username is valid and unclaimed. Backs
// the as-you-type availability check on the sign-up form.
func (s *AccountService) CheckUsername(ctx context.Context, username string) (bool, error) {
	if err := validateUsername(username); err != nil {
		return false, err
	}

	_, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// GetByID fetches the account for an authenticated session.
func (s *AccountService) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return s.repo.GetByID(ctx, id)
}

func validateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return apperror.ValidationFailed("username", "must be 2-20 characters of letters, digits, or underscore")
	}
	return nil
}

func validateEmail(address string) error {
	addr, err := mail.ParseAddress(address)
	if err != nil || addr.Address != address {
		return apperror.ValidationFailed("email", "must be a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperror.ValidationFailed("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return apperror.ValidationFailed("password", fmt.Sprintf("must be at most %d characters", maxPasswordLen))
	}
	return nil
}
