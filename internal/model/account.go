// Package model defines the data structures used throughout the application.
package model

import "time"

// Message is a single anonymous message embedded in exactly one Account's
// inbox. It is never stored in its own collection and never addressable
// outside the owning account — the bson tags describe its shape as an array
// element of Account.Messages.
//
// No sender field exists anywhere. Anonymity is the product's core guarantee,
// so sender identity is simply never recorded.
type Message struct {
	ID        string    `json:"id"        bson:"_id"`
	Content   string    `json:"content"   bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Account represents a registered identity: credentials, verification state,
// the acceptance flag, and the embedded inbox.
//
// WHY `json:"-"` ON SO MANY FIELDS?
// Account doubles as the API response shape (sign-in, /api/me, the acceptance
// toggle all return a snapshot). The credential hash and the live verification
// code must never cross the boundary, and the inbox has its own endpoint, so
// all of them are excluded from JSON while keeping their bson representation.
//
// isVerified transitions false→true exactly once; no code path reverses it.
// The stored verifyCode is NOT cleared on success — instead every consumer
// short-circuits on IsVerified before comparing, so a consumed code can never
// validate again (see service.AccountService.VerifyCode).
type Account struct {
	ID                  string    `json:"id"                  bson:"_id"`
	Username            string    `json:"username"            bson:"username"` // unique, immutable after creation
	Email               string    `json:"email"               bson:"email"`
	PasswordHash        string    `json:"-"                   bson:"passwordHash"`
	IsVerified          bool      `json:"isVerified"          bson:"isVerified"`
	VerifyCode          string    `json:"-"                   bson:"verifyCode"`       // 6 digits, fixed width
	VerifyCodeExpiry    time.Time `json:"-"                   bson:"verifyCodeExpiry"` // issuance + 1 hour
	IsAcceptingMessages bool      `json:"isAcceptingMessages" bson:"isAcceptingMessages"`
	Messages            []Message `json:"-"                   bson:"messages"` // arrival order, unbounded
	CreatedAt           time.Time `json:"createdAt"           bson:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"           bson:"updatedAt"`
}
