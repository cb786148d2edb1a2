package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/whisper-net/internal/apperror"
	"github.com/sakif/whisper-net/internal/auth"
	"github.com/sakif/whisper-net/internal/model"
	"github.com/sakif/whisper-net/internal/service"
)

// MessageHandler covers both sides of the inbox: the public anonymous send,
// and the owner-only list/delete/toggle routes behind RequireAuth.
type MessageHandler struct {
	messages *service.MessageService
	logger   *slog.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// HandleSend accepts an anonymous message for the named recipient.
//
// HTTP: POST /api/send-message (public — no session, by design)
//
// Nothing about the sender is read or logged here. The request body names a
// recipient and carries content; that is the entire record.
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if _, err := h.messages.Send(r.Context(), req.Username, req.Content); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "message sent"})
}

type listMessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

// HandleList returns the owner's inbox, newest first.
//
// HTTP: GET /api/messages
// Auth: required
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	messages, err := h.messages.List(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listMessagesResponse{Messages: messages})
}

// HandleDelete removes one message from the owner's inbox.
//
// HTTP: DELETE /api/messages/{messageID}
// Auth: required
//
// 404 covers both "no such message" and "that message is in someone else's
// inbox" — indistinguishable on purpose.
func (h *MessageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	messageID := chi.URLParam(r, "messageID")
	if err := h.messages.Delete(r.Context(), accountID, messageID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("message deleted",
		slog.String("accountID", accountID),
		slog.String("messageID", messageID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

type acceptMessagesRequest struct {
	AcceptMessages bool `json:"acceptMessages"`
}

type acceptMessagesResponse struct {
	AcceptMessages bool `json:"acceptMessages"`
}

// HandleGetAccepting reads the owner's acceptance flag.
//
// HTTP: GET /api/accept-messages
// Auth: required
func (h *MessageHandler) HandleGetAccepting(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	accepting, err := h.messages.GetAccepting(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptMessagesResponse{AcceptMessages: accepting})
}

// HandleSetAccepting flips the owner's acceptance flag. Idempotent, never
// retroactive: flipping to false keeps everything already in the inbox.
//
// HTTP: POST /api/accept-messages
// Auth: required
func (h *MessageHandler) HandleSetAccepting(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req acceptMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	accepting, err := h.messages.SetAccepting(r.Context(), accountID, req.AcceptMessages)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acceptMessagesResponse{AcceptMessages: accepting})
}
