// Package repository defines the storage contract for account records.
//
// Every operation is a single atomic read or read-modify-write against one
// account document — there are no cross-account transactions anywhere in the
// app, so the store's single-document atomicity guarantee is all we rely on.
package repository

import (
	"context"
	"time"

	"github.com/sakif/whisper-net/internal/model"
)

// AccountRepository is the storage interface for accounts and their embedded
// inboxes. Implementations: mongodb (production), memory (tests and
// no-database dev mode).
type AccountRepository interface {
	// Create inserts a new account. Returns apperror.ErrConflict if the
	// username is already taken; a failed create must leave no partial
	// record behind.
	Create(ctx context.Context, account *model.Account) error

	// GetByID returns the account with the given internal ID, or
	// apperror.ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Account, error)

	// GetByUsername returns the account owning the username, or
	// apperror.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)

	// GetByIdentifier tries the identifier against both username and email
	// and returns the first match, or apperror.ErrNotFound.
	GetByIdentifier(ctx context.Context, identifier string) (*model.Account, error)

	// UpdateVerifyCode atomically stores a freshly issued code and its
	// expiry on an UNVERIFIED account, superseding any prior code.
	// Returns apperror.ErrConflict if the account is already verified and
	// apperror.ErrNotFound if it doesn't exist.
	UpdateVerifyCode(ctx context.Context, id, code string, expiry time.Time) error

	// MarkVerified flips isVerified false→true as a single atomic update.
	// Returns apperror.ErrConflict if the account was already verified
	// (the transition happens at most once) and apperror.ErrNotFound if it
	// doesn't exist.
	MarkVerified(ctx context.Context, id string) error

	// SetAcceptingMessages sets the acceptance flag and returns the updated
	// account snapshot. Idempotent. Returns apperror.ErrNotFound if the
	// account doesn't exist.
	SetAcceptingMessages(ctx context.Context, id string, accepting bool) (*model.Account, error)

	// AppendMessage atomically appends msg to the recipient's inbox IF the
	// recipient exists and is accepting at this moment. The acceptance
	// check and the append are one filtered update — concurrent appends
	// are independent array pushes and never lose each other's writes.
	// Returns apperror.ErrNotFound for an unknown recipient and
	// apperror.ErrForbidden when the recipient is not accepting.
	AppendMessage(ctx context.Context, username string, msg *model.Message) error

	// DeleteMessage removes one message by ID from the given account's
	// inbox. Returns apperror.ErrNotFound when nothing was removed —
	// deliberately the same answer whether the message never existed or
	// belongs to someone else's inbox.
	DeleteMessage(ctx context.Context, accountID, messageID string) error
}

// Store is what the server owns: the repository plus its lifecycle.
type Store interface {
	AccountRepository

	// Close releases the underlying connections. The context bounds how
	// long shutdown may take.
	Close(ctx context.Context) error
}
