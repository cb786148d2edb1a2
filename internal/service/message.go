package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/model"
	"github.com/sakif/whisper-net/internal/repository"
)

// Content limits are measured in runes, not bytes, so multibyte scripts get
// the same budget as ASCII.
const (
	minMessageLen = 10
	maxMessageLen = 300
)

// MessageService implements the anonymous inbox: send, list, delete, and the
// acceptance toggle.
type MessageService struct {
	repo repository.AccountRepository
}

func NewMessageService(repo repository.AccountRepository) *MessageService {
	return &MessageService{repo: repo}
}

// Send delivers an anonymous message to the named recipient. No sender
// identity is taken, stored, or derivable — content and arrival time are the
// whole record.
//
// The acceptance check happens inside the store's atomic append, so the flag
// is honoured at the exact moment of the write; a rejected send never
// mutates the inbox.
func (s *MessageService) Send(ctx context.Context, username, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < minMessageLen {
		return nil, apperror.ValidationFailed("content", "message must be at least 10 characters")
	} else if n > maxMessageLen {
		return nil, apperror.ValidationFailed("content", "message must be at most 300 characters")
	}

	msg := &model.Message{Content: content}
	if err := s.repo.AppendMessage(ctx, username, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// List returns the owner's inbox newest-first. Storage keeps arrival order,
// so this is a reversed copy; the stored order is never touched.
func (s *MessageService) List(ctx context.Context, accountID string) ([]model.Message, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, len(account.Messages))
	for i, m := range account.Messages {
		messages[len(messages)-1-i] = m
	}
	return messages, nil
}

// Delete removes one message from the owner's inbox. A missing message and a
// message sitting in someone else's inbox are the same NotFound.
func (s *MessageService) Delete(ctx context.Context, accountID, messageID string) error {
	return s.repo.DeleteMessage(ctx, accountID, messageID)
}

// SetAccepting flips the acceptance flag and returns the updated value.
// Idempotent, and never retroactive: messages that landed while the flag was
// true stay in the inbox when it goes false.
func (s *MessageService) SetAccepting(ctx context.Context, accountID string, accepting bool) (bool, error) {
	account, err := s.repo.SetAcceptingMessages(ctx, accountID, accepting)
	if err != nil {
		return false, err
	}
	return account.IsAcceptingMessages, nil
}

// GetAccepting reads the owner's current acceptance flag.
func (s *MessageService) GetAccepting(ctx context.Context, accountID string) (bool, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	return account.IsAcceptingMessages, nil
}
