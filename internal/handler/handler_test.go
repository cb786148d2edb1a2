package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/repository/memory"
	"github.com/sakif/whisper-net/internal/service"
	"github.com/sakif/whisper-net/internal/suggest"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
// Real services over the in-memory store, real JWT middleware, and the same
// route table as production. Only the edges (mail, Gemini) are faked.

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string // username → last code sent
	fail  bool
}

func (m *fakeMailer) SendVerificationCode(ctx context.Context, to, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("smtp: connection refused")
	}
	m.codes[username] = code
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T, username string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[username]
	if !ok {
		t.Fatalf("no code was emailed to %q", username)
	}
	return code
}

// fakeStreamer emits canned segments, optionally failing before or after.
type fakeStreamer struct {
	segments  []string
	failAfter int // fail after this many segments; -1 = never
}

func (f *fakeStreamer) Stream(ctx context.Context, emit func(string) error) error {
	for i, seg := range f.segments {
		if f.failAfter >= 0 && i == f.failAfter {
			return fmt.Errorf("model stream reset")
		}
		if err := emit(seg); err != nil {
			return err
		}
	}
	return nil
}

type testEnv struct {
	router http.Handler
	store  *memory.Store
	mailer *fakeMailer
}

func newTestEnv(t *testing.T, streamer suggest.Streamer) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("handler-test-secret-key", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	store := memory.New()
	mailer := &fakeMailer{codes: make(map[string]string)}

	accounts := service.NewAccountService(store, tokens, auth.NewPasswordServiceForTest(4), mailer, logger)
	messages := service.NewMessageService(store)

	accountHandler := NewAccountHandler(accounts, logger)
	authHandler := NewAuthHandler(accounts, tokens, logger)
	messageHandler := NewMessageHandler(messages, logger)
	suggestHandler := NewSuggestHandler(streamer, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-up", accountHandler.HandleSignUp)
			r.Post("/verify-code", accountHandler.HandleVerifyCode)
			r.Post("/resend-code", accountHandler.HandleResendCode)
			r.Get("/check-username", accountHandler.HandleCheckUsername)
			r.Post("/sign-in", authHandler.HandleSignIn)
			r.Post("/logout", authHandler.HandleLogout)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Get("/me", authHandler.HandleMe)
			})
		})

		r.Post("/send-message", messageHandler.HandleSend)
		r.Post("/suggest-messages", suggestHandler.HandleSuggest)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/messages", messageHandler.HandleList)
			r.Delete("/messages/{messageID}", messageHandler.HandleDelete)
			r.Get("/accept-messages", messageHandler.HandleGetAccepting)
			r.Post("/accept-messages", messageHandler.HandleSetAccepting)
		})
	})

	return &testEnv{router: r, store: store, mailer: mailer}
}

// do runs one request through the router. body is JSON-encoded; cookies ride
// along as-is.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// register runs the full sign-up → verify → sign-in flow and returns the
// session cookie.
func (e *testEnv) register(t *testing.T, username string) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/sign-up", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-up status = %d, body %s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodPost, "/api/auth/verify-code", map[string]string{
		"username": username,
		"code":     e.mailer.lastCode(t, username),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-code status = %d, body %s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodPost, "/api/auth/sign-in", map[string]string{
		"identifier": username,
		"password":   "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-in status = %d, body %s", rec.Code, rec.Body)
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("sign-in did not set a session cookie")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body, err)
	}
}

func wantErrorKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body)
	}
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	if resp.Error != kind {
		t.Errorf("error kind = %q, want %q", resp.Error, kind)
	}
}
