package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"github.com/knadh/smtppool"

	"github.com/sakif/whisper-net/internal/config"
)

// SMTPSender sends over a pool of reused SMTP connections. Verification
// emails arrive in bursts (sign-up waves, impatient resend clicking), and
// re-handshaking TLS per message is the slowest part of delivery.
type SMTPSender struct {
	pool *smtppool.Pool
	from string
}

// NewSMTPSender dials nothing up front; the pool connects lazily on the
// first send. Plain auth is skipped entirely when no username is set, which
// is the usual shape of a local relay.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	sendTimeout := time.Duration(cfg.SendTimeout) * time.Second
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}

	pool, err := smtppool.New(smtppool.Opt{
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxConns:        maxConns,
		IdleTimeout:     sendTimeout,
		PoolWaitTimeout: sendTimeout,
		TLSConfig:       &tls.Config{ServerName: cfg.Host},
		Auth:            auth,
	})
	if err != nil {
		return nil, fmt.Errorf("email: creating smtp pool: %w", err)
	}

	return &SMTPSender{pool: pool, from: cfg.From}, nil
}

func (s *SMTPSender) SendVerificationCode(ctx context.Context, to, username, code string) error {
	html, err := renderVerificationHTML(username, code)
	if err != nil {
		return err
	}

	err = s.pool.Send(smtppool.Email{
		From:    s.from,
		To:      []string{to},
		Subject: verificationSubject,
		HTML:    html,
		Text:    renderVerificationText(username, code),
	})
	if err != nil {
		return fmt.Errorf("email: sending verification code to %s: %w", to, err)
	}

	return nil
}

// Close tears the pool down; safe to call once at shutdown.
func (s *SMTPSender) Close() {
	s.pool.Close()
}
