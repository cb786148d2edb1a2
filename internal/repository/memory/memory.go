// Package memory implements the account repository as a mutex-guarded map.
//
// It exists for two reasons:
//   - the server can start without a MongoDB (local dev, demos) — main falls
//     back to this store with a loud warning
//   - every service and handler test runs against it, so the suites are
//     hermetic and fast
//
// The semantics mirror the mongodb package operation for operation: the same
// filtered-update behaviour, the same error kinds, the same "append is
// atomic, delete is pull-by-id" contract. Everything is copied on the way in
// and out so callers can never mutate the stored state behind the lock.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/model"
	"github.com/sakif/whisper-net/internal/repository"
)

// compile-time check that *Store implements repository.Store
var _ repository.Store = (*Store)(nil)

type Store struct {
	mu         sync.RWMutex
	byID       map[string]*model.Account
	byUsername map[string]string // username → id
}

func New() *Store {
	return &Store{
		byID:       make(map[string]*model.Account),
		byUsername: make(map[string]string),
	}
}

// Close is a no-op; it satisfies repository.Store.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) Create(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[account.Username]; taken {
		return apperror.Conflict(fmt.Sprintf("username %q is already taken", account.Username))
	}

	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Messages == nil {
		account.Messages = []model.Message{}
	}

	stored := cloneAccount(account)
	s.byID[stored.ID] = stored
	s.byUsername[stored.Username] = stored.ID

	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	return cloneAccount(account), nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, apperror.NotFound("account", username)
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.byUsername[identifier]; ok {
		return cloneAccount(s.byID[id]), nil
	}
	for _, account := range s.byID {
		if account.Email == identifier {
			return cloneAccount(account), nil
		}
	}
	return nil, apperror.NotFound("account", identifier)
}

func (s *Store) UpdateVerifyCode(ctx context.Context, id, code string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	if account.IsVerified {
		return apperror.Conflict("account is already verified")
	}

	account.VerifyCode = code
	account.VerifyCodeExpiry = expiry
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	if account.IsVerified {
		return apperror.Conflict("account is already verified")
	}

	account.IsVerified = true
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetAcceptingMessages(ctx context.Context, id string, accepting bool) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}

	account.IsAcceptingMessages = accepting
	account.UpdatedAt = time.Now().UTC()
	return cloneAccount(account), nil
}

// AppendMessage checks the acceptance flag and appends under one lock hold,
// matching the mongodb store's single filtered $push.
func (s *Store) AppendMessage(ctx context.Context, username string, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return apperror.NotFound("account", username)
	}
	account := s.byID[id]
	if !account.IsAcceptingMessages {
		return apperror.Forbidden("recipient is not accepting messages")
	}

	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now().UTC()
	account.Messages = append(account.Messages, *msg)
	account.UpdatedAt = msg.CreatedAt

	return nil
}

// DeleteMessage scans only the owner's inbox, so a message in someone else's
// inbox produces the same NotFound as a message that never existed.
func (s *Store) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[accountID]
	if !ok {
		return apperror.NotFound("message", messageID)
	}

	for i, m := range account.Messages {
		if m.ID == messageID {
			account.Messages = append(account.Messages[:i], account.Messages[i+1:]...)
			account.UpdatedAt = time.Now().UTC()
			return nil
		}
	}

	return apperror.NotFound("message", messageID)
}

func cloneAccount(a *model.Account) *model.Account {
	c := *a
	c.Messages = make([]model.Message, len(a.Messages))
	copy(c.Messages, a.Messages)
	return &c
}
