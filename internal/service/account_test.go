package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/repository/memory"
)

// fakeMailer records every send and can be told to start failing.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

type sentMail struct {
	to       string
	username string
	code     string
}

func (m *fakeMailer) SendVerificationCode(ctx context.Context, to, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("smtp: connection refused")
	}
	m.sent = append(m.sent, sentMail{to: to, username: username, code: code})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email was sent")
	}
	return m.sent[len(m.sent)-1]
}

func newAccountService(t *testing.T) (*AccountService, *memory.Store, *fakeMailer) {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	store := memory.New()
	mailer := &fakeMailer{}
	svc := NewAccountService(
		store,
		tokens,
		auth.NewPasswordServiceForTest(4),
		mailer,
		slog.New(slog.DiscardHandler),
	)
	return svc, store, mailer
}

func signUp(t *testing.T, svc *AccountService, username string) *SignUpResult {
	t.Helper()
	res, err := svc.SignUp(context.Background(), username, username+"@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignUp(%q) error = %v", username, err)
	}
	return res
}

// =========================================================================
// SIGN-UP TESTS
// =========================================================================

func TestSignUp_CreatesUnverifiedAccountWithLiveCode(t *testing.T) {
	svc, _, mailer := newAccountService(t)

	res := signUp(t, svc, "alice")

	if res.Account.IsVerified {
		t.Error("new account must start unverified")
	}
	if !res.Account.IsAcceptingMessages {
		t.Error("new account must start accepting messages")
	}
	if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(res.Account.VerifyCode) {
		t.Errorf("verify code = %q, want six digits", res.Account.VerifyCode)
	}

	// Expiry sits about an hour out.
	until := time.Until(res.Account.VerifyCodeExpiry)
	if until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("code expiry in %v, want ≈1h", until)
	}

	if !res.EmailSent {
		t.Error("EmailSent = false, want true")
	}
	mail := mailer.last(t)
	if mail.to != "alice@example.com" || mail.code != res.Account.VerifyCode {
		t.Errorf("email went to %q with code %q, want alice@example.com with %q",
			mail.to, mail.code, res.Account.VerifyCode)
	}
}

func TestSignUp_Validation(t *testing.T) {
	svc, _, _ := newAccountService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"username too short", "a", "a@example.com", "hunter22"},
		{"username too long", "abcdefghijklmnopqrstu", "a@example.com", "hunter22"},
		{"username bad characters", "al ice!", "a@example.com", "hunter22"},
		{"email not an address", "alice", "not-an-email", "hunter22"},
		{"password too short", "alice", "a@example.com", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("SignUp() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSignUp_DuplicateUsernameConflicts(t *testing.T) {
	svc, _, _ := newAccountService(t)
	signUp(t, svc, "alice")

	_, err := svc.SignUp(context.Background(), "alice", "other@example.com", "hunter22")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate SignUp() error = %v, want ErrConflict", err)
	}
}

// A failed email must not fail the sign-up: the account exists, the code is
// live, and resend is the recovery path.
func TestSignUp_EmailFailureStillCreatesAccount(t *testing.T) {
	svc, store, mailer := newAccountService(t)
	mailer.fail = true

	res, err := svc.SignUp(context.Background(), "alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if res.EmailSent {
		t.Error("EmailSent = true, want false")
	}

	stored, err := store.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("account was not created: %v", err)
	}

	// The stored code still works.
	mailer.fail = false
	if err := svc.VerifyCode(context.Background(), "alice", stored.VerifyCode); err != nil {
		t.Errorf("VerifyCode() with the undelivered code error = %v", err)
	}
}

// =========================================================================
// VERIFICATION LIFECYCLE TESTS
// =========================================================================

func TestVerifyCode_HappyPathThenConflict(t *testing.T) {
	svc, store, _ := newAccountService(t)
	res := signUp(t, svc, "alice")

	if err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}

	stored, _ := store.GetByUsername(context.Background(), "alice")
	if !stored.IsVerified {
		t.Fatal("account should be verified")
	}

	// Second confirm with the same (correct) code: AlreadyVerified, the
	// code is not even compared.
	err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second VerifyCode() error = %v, want ErrConflict", err)
	}
	// Same answer for a wrong code once verified.
	err = svc.VerifyCode(context.Background(), "alice", "000000")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("VerifyCode(wrong, verified) error = %v, want ErrConflict", err)
	}
}

func TestVerifyCode_UnknownUsername(t *testing.T) {
	svc, _, _ := newAccountService(t)

	err := svc.VerifyCode(context.Background(), "ghost", "123456")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("VerifyCode() error = %v, want ErrNotFound", err)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc, store, _ := newAccountService(t)
	res := signUp(t, svc, "alice")

	wrong := "000000"
	if wrong == res.Account.VerifyCode {
		wrong = "000001"
	}

	err := svc.VerifyCode(context.Background(), "alice", wrong)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("VerifyCode(wrong) error = %v, want ErrValidation", err)
	}

	stored, _ := store.GetByUsername(context.Background(), "alice")
	if stored.IsVerified {
		t.Error("wrong code must not verify the account")
	}
}

// An expired code fails as Expired even when the digits match exactly.
func TestVerifyCode_ExpiredBeatsEquality(t *testing.T) {
	svc, store, _ := newAccountService(t)
	res := signUp(t, svc, "alice")

	if err := store.UpdateVerifyCode(context.Background(), res.Account.ID,
		res.Account.VerifyCode, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("backdating expiry: %v", err)
	}

	err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode)
	if !errors.Is(err, apperror.ErrExpired) {
		t.Fatalf("VerifyCode(expired) error = %v, want ErrExpired", err)
	}
}

// =========================================================================
// RESEND TESTS
// =========================================================================

func TestResendCode_InvalidatesPreviousCode(t *testing.T) {
	svc, _, mailer := newAccountService(t)
	res := signUp(t, svc, "alice")
	oldCode := res.Account.VerifyCode

	if err := svc.ResendCode(context.Background(), "alice"); err != nil {
		t.Fatalf("ResendCode() error = %v", err)
	}

	newCode := mailer.last(t).code
	if newCode == oldCode {
		t.Skip("new code collided with the old one; nothing to assert")
	}

	// The superseded code is dead even though it never expired.
	err := svc.VerifyCode(context.Background(), "alice", oldCode)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("VerifyCode(superseded) error = %v, want ErrValidation", err)
	}

	if err := svc.VerifyCode(context.Background(), "alice", newCode); err != nil {
		t.Fatalf("VerifyCode(new) error = %v", err)
	}
}

func TestResendCode_VerifiedAccountConflicts(t *testing.T) {
	svc, _, _ := newAccountService(t)
	res := signUp(t, svc, "alice")

	if err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}

	err := svc.ResendCode(context.Background(), "alice")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("ResendCode(verified) error = %v, want ErrConflict", err)
	}
}

// When the email fails, resend reports upstream failure but the fresh code
// stays live — a user reading it out of the server log could still verify.
func TestResendCode_EmailFailureKeepsCodeLive(t *testing.T) {
	svc, store, mailer := newAccountService(t)
	signUp(t, svc, "alice")
	mailer.fail = true

	err := svc.ResendCode(context.Background(), "alice")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("ResendCode() error = %v, want ErrUpstream", err)
	}

	stored, _ := store.GetByUsername(context.Background(), "alice")
	if err := svc.VerifyCode(context.Background(), "alice", stored.VerifyCode); err != nil {
		t.Errorf("VerifyCode() with the stored code error = %v", err)
	}
}

// =========================================================================
// SIGN-IN TESTS
// =========================================================================

func TestAuthenticate_CheckOrder(t *testing.T) {
	svc, _, _ := newAccountService(t)
	res := signUp(t, svc, "alice")

	// Unknown identifier first.
	_, err := svc.Authenticate(context.Background(), "ghost", "hunter22")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Authenticate(unknown) error = %v, want ErrNotFound", err)
	}

	// Unverified beats wrong password: the password isn't even checked.
	_, err = svc.Authenticate(context.Background(), "alice", "wrong-password")
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("Authenticate(unverified) error = %v, want ErrForbidden", err)
	}

	if err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}

	_, err = svc.Authenticate(context.Background(), "alice", "wrong-password")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Authenticate(wrong password) error = %v, want ErrUnauthorized", err)
	}

	got, err := svc.Authenticate(context.Background(), "alice", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.Token == "" {
		t.Error("Authenticate() returned an empty token")
	}
}

func TestAuthenticate_ByEmail(t *testing.T) {
	svc, _, _ := newAccountService(t)
	res := signUp(t, svc, "alice")
	if err := svc.VerifyCode(context.Background(), "alice", res.Account.VerifyCode); err != nil {
		t.Fatalf("VerifyCode() error = %v", err)
	}

	got, err := svc.Authenticate(context.Background(), "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate(email) error = %v", err)
	}
	if got.Account.Username != "alice" {
		t.Errorf("Authenticate(email) account = %q, want alice", got.Account.Username)
	}
}

// =========================================================================
// USERNAME AVAILABILITY TESTS
// =========================================================================

func TestCheckUsername(t *testing.T) {
	svc, _, _ := newAccountService(t)
	signUp(t, svc, "alice")

	available, err := svc.CheckUsername(context.Background(), "bob")
	if err != nil || !available {
		t.Errorf("CheckUsername(bob) = %v, %v, want true, nil", available, err)
	}

	available, err = svc.CheckUsername(context.Background(), "alice")
	if err != nil || available {
		t.Errorf("CheckUsername(alice) = %v, %v, want false, nil", available, err)
	}

	_, err = svc.CheckUsername(context.Background(), "no spaces allowed")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CheckUsername(invalid) error = %v, want ErrValidation", err)
	}
}
