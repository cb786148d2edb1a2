// Package auth provides the session, credential, and verification-code
// primitives for the Whisper Net API.
//
// SESSION FLOW:
//  1. Client signs in with username-or-email + password
//  2. The account service checks existence → verification → password, in that
//     order, and asks TokenService for a signed JWT
//  3. The handler stores the JWT in an HttpOnly cookie
//  4. On later requests, RequireAuth validates the cookie and puts the
//     account ID in the request context — handlers never trust a
//     client-supplied account ID, they always re-derive it from the token
//
// WHY JWT?
// The token is self-contained and signed, so no session table is needed.
// Everything an authorized operation needs (the account ID in "sub", the
// expiry) travels inside the token; the HMAC signature makes it tamper-proof.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issuer is baked into every token and required on validation, so tokens
// minted by other apps sharing a secret by accident are still rejected.
const issuer = "whisper-net"

// DefaultSessionTTL is how long a session token stays valid unless the
// config overrides it. Unlike the short-lived API tokens of a refresh-token
// setup, a messaging dashboard session is expected to survive the day.
const DefaultSessionTTL = 24 * time.Hour

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations — keep it safe and rotate it
// periodically in production.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime. The secret should be at least 32 bytes of random data in
// production (JWT_SECRET=$(openssl rand -hex 32)); a zero ttl falls back to
// DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// RandomSecret returns a fresh 32-byte hex-encoded signing secret. Meant for
// dev runs without a configured secret — every restart mints a new one, so
// existing sessions die with the process.
func RandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken beyond saving.
		panic(fmt.Sprintf("auth: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// claims is the JWT payload. We only need the registered claims: the account
// ID travels in "sub" (Subject), the standard claim for token ownership.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given account ID.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, fast, and fine for a
// single-server deployment. Validate rejects anything else to block
// algorithm-confusion attacks.
func (s *TokenService) Generate(accountID string) (string, error) {
	return s.GenerateWithDuration(accountID, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(accountID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// SessionTTL reports the configured session lifetime. Handlers use it to set
// the cookie Max-Age so cookie and token expire together.
func (s *TokenService) SessionTTL() time.Duration {
	return s.ttl
}

// Validate parses and verifies a JWT string and returns the account ID from
// its "sub" claim.
//
// The jwt library checks the signature, the expiry, the issuer, and — via
// WithValidMethods — that the token really is HS256 and not "none".
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	accountID := c.Subject
	if accountID == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return accountID, nil
}
