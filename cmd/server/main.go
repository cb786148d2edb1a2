// Package main is the entry point for the Whisper Net server.
//
// Its job is deliberately small:
//  1. Load configuration (viper: config.yaml + WHISPER_* env vars)
//  2. Choose concrete implementations — MongoDB or the in-memory store,
//     pooled SMTP or the log sender, Gemini or no suggestions
//  3. Hand everything to internal/server and block until shutdown
//
// Every optional dependency degrades loudly but safely: the server always
// starts, and each missing piece is a WARN line saying exactly what is off.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/config"
	"github.com/sakif/whisper-net/internal/email"
	"github.com/sakif/whisper-net/internal/repository"
	"github.com/sakif/whisper-net/internal/repository/memory"
	"github.com/sakif/whisper-net/internal/repository/mongodb"
	"github.com/sakif/whisper-net/internal/server"
	"github.com/sakif/whisper-net/internal/suggest"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === AUTH ===
	// A random secret works but invalidates every session on restart, so it
	// only gets a pass in dev.
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		logger.Warn("auth.jwt_secret not set — generating a volatile secret; sessions will not survive restarts")
		jwtSecret = auth.RandomSecret()
	}
	tokens, err := auth.NewTokenService(jwtSecret, cfg.Auth.SessionTTL)
	if err != nil {
		logger.Error("failed to create token service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === STORE ===
	// MongoDB when a URI is configured; otherwise the in-memory store, which
	// loses everything on restart.
	var store repository.Store
	if cfg.Mongo.URI != "" {
		mongoStore, err := mongodb.New(cfg.Mongo)
		if err != nil {
			logger.Error("failed to connect to MongoDB", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = mongoStore
		logger.Info("using MongoDB store", slog.String("database", cfg.Mongo.Database))
	} else {
		logger.Warn("mongo.uri not set — using the in-memory store; all data is lost on restart")
		store = memory.New()
	}

	// === EMAIL ===
	var mailer email.Sender
	if cfg.SMTP.Host != "" {
		smtpSender, err := email.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.Error("failed to create SMTP sender", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer smtpSender.Close()
		mailer = smtpSender
		logger.Info("using SMTP email delivery", slog.String("host", cfg.SMTP.Host))
	} else {
		logger.Warn("smtp.host not set — verification codes will be written to the log")
		mailer = email.NewLogSender(logger)
	}

	// === SUGGESTIONS ===
	var relay suggest.Streamer
	if cfg.Gemini.APIKey != "" {
		r, err := suggest.NewRelay(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Error("failed to create suggestion relay", slog.String("error", err.Error()))
			os.Exit(1)
		}
		relay = r
		logger.Info("suggestion relay enabled", slog.String("model", cfg.Gemini.Model))
	} else {
		logger.Warn("gemini.api_key not set — /api/suggest-messages will return 503")
	}

	// === SERVE ===
	srv := server.New(server.Config{Port: cfg.Server.Port}, logger, store, mailer, relay, tokens)

	// Start() blocks until SIGINT/SIGTERM and drains before returning.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
