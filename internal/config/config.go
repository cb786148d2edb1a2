// Package config loads the server configuration.
//
// LAYERED CONFIG:
// Values come from three layers, later ones winning:
//  1. Built-in defaults (sane local-dev values)
//  2. An optional config.yaml in the working directory or ./config
//  3. Environment variables prefixed WHISPER_, with dots replaced by
//     underscores — WHISPER_SERVER_PORT overrides server.port,
//     WHISPER_AUTH_JWT_SECRET overrides auth.jwt_secret, and so on
//
// Secrets (JWT secret, SMTP password, Gemini key) are expected through the
// environment in deployment; the yaml file is for the boring structural
// values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MongoConfig struct {
	URI         string `mapstructure:"uri"` // empty → in-memory store (dev mode)
	Database    string `mapstructure:"database"`
	Timeout     int    `mapstructure:"timeout"` // seconds, per-operation
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"` // empty → log-only mailer (dev mode)
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	SendTimeout int    `mapstructure:"send_timeout"` // seconds
	MaxConns    int    `mapstructure:"max_conns"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"` // empty → suggestion relay disabled
	Model  string `mapstructure:"model"`
}

type AppConfig struct {
	Server ServerConfig `mapstructure:"server"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Auth   AuthConfig   `mapstructure:"auth"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// Load reads defaults, the optional yaml file, and WHISPER_* env overrides.
// A missing config file is fine; a malformed one is an error.
func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", 8080)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "whispernet")
	v.SetDefault("mongo.timeout", 10)
	v.SetDefault("mongo.max_pool_size", 16)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@whispernet.local")
	v.SetDefault("smtp.send_timeout", 15)
	v.SetDefault("smtp.max_conns", 4)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetEnvPrefix("WHISPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
		// no file — defaults + env only
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return &cfg, nil
}
