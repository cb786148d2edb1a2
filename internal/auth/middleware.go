package auth

import (
	"context"
	"net/http"
)

// SessionCookie is the name of the HttpOnly cookie carrying the JWT.
const SessionCookie = "token"

// contextKey is an unexported type used for context keys in this package.
// A package-private key type means only this package can read or write the
// account ID in a request context — no other package can collide with it.
type contextKey string

const accountIDKey contextKey = "accountID"

// RequireAuth is a middleware that enforces authentication on protected
// routes (dashboard, inbox, acceptance toggle).
//
// It reads the JWT from the session cookie, validates it, and stores the
// account ID in the request context. If the token is missing or invalid it
// returns 401 and stops the chain — handlers behind it can assume a valid
// session.
//
// The token lives in an HttpOnly cookie rather than localStorage or a
// header: JavaScript cannot read it, which keeps XSS from stealing sessions.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := extractAccountID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFromContext retrieves the authenticated account's ID from the
// request context.
//
// Returns ("", false) if the request is anonymous. On routes behind
// RequireAuth it always returns (id, true).
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

// extractAccountID reads the session cookie and validates the JWT in it.
func extractAccountID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		// http.ErrNoCookie — no session, request is anonymous
		return "", err
	}

	return tokens.Validate(cookie.Value)
}
