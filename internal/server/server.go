// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and
// routes. main.go decides WHICH implementations exist (Mongo or memory, real
// SMTP or the log sender, Gemini or nothing); this package wires whatever it
// is handed and owns the server lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go creates: store, mailer, relay, token service
//	server.New creates: services → handlers → routes
//
// This is the composition root — every dependency is assembled here rather
// than scattered across the codebase. Each layer only receives what it
// needs: services get the repository interface (not the concrete store),
// handlers get services (never the repository).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/email"
	"github.com/sakif/whisper-net/internal/handler"
	"github.com/sakif/whisper-net/internal/middleware"
	"github.com/sakif/whisper-net/internal/repository"
	"github.com/sakif/whisper-net/internal/service"
	"github.com/sakif/whisper-net/internal/suggest"
)

// Config holds what the server itself needs to run. Everything else arrives
// as constructed dependencies.
type Config struct {
	Port int
}

// Server owns the router, its dependencies, and the store's lifecycle: the
// store is closed during graceful shutdown, after in-flight requests drain.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
}

// New assembles the full dependency chain. relay may be nil (no API key
// configured) — the suggest route then answers 503 instead of streaming.
func New(
	cfg Config,
	logger *slog.Logger,
	store repository.Store,
	mailer email.Sender,
	relay suggest.Streamer,
	tokens *auth.TokenService,
) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	s.setupRoutes(mailer, relay, tokens)
	return s
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/sign-up              → register, email code (public)
//	POST   /api/auth/verify-code          → confirm account (public)
//	POST   /api/auth/resend-code          → fresh code (public)
//	GET    /api/auth/check-username       → availability check (public)
//	POST   /api/auth/sign-in              → session cookie (public)
//	POST   /api/auth/logout               → clear cookie (public)
//	GET    /api/auth/me                   → own account (session)
//	POST   /api/send-message              → anonymous send (public, no session read)
//	POST   /api/suggest-messages          → Gemini stream (public)
//	GET    /api/messages                  → own inbox, newest first (session)
//	DELETE /api/messages/{messageID}      → delete own message (session)
//	GET    /api/accept-messages           → read acceptance flag (session)
//	POST   /api/accept-messages           → set acceptance flag (session)
//	GET    /healthz                       → liveness probe
//
// MIDDLEWARE ORDER MATTERS:
// RequestID → RealIP → Recoverer → Logger, then RequireAuth only on the
// session-scoped group. The send and suggest routes deliberately sit outside
// that group: anonymity is the product.
func (s *Server) setupRoutes(mailer email.Sender, relay suggest.Streamer, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	accounts := service.NewAccountService(s.store, tokens, auth.NewPasswordService(), mailer, s.logger)
	messages := service.NewMessageService(s.store)

	accountHandler := handler.NewAccountHandler(accounts, s.logger)
	authHandler := handler.NewAuthHandler(accounts, tokens, s.logger)
	messageHandler := handler.NewMessageHandler(messages, s.logger)
	suggestHandler := handler.NewSuggestHandler(relay, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
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

		// Public by design: the sender must stay anonymous, so these
		// routes never read a session even when one is present.
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
}

// Start runs the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s budget)
//  3. Close the store (returns pooled connections)
//
// The 15s write timeout would cut off a slow Gemini stream; the suggest
// handler lifts it per-response through http.ResponseController.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		if err := s.store.Close(ctx); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
