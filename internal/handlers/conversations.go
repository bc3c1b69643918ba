package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

type addMessageRequest struct {
	Text   string        `json:"text"`
	Sender models.Sender `json:"sender"`
}

// conversationsSSEType is the event carrying the re-rendered conversation table rows.
var conversationsSSEType = sse.Type("conversations")

// HandleListConversations returns the conversations of the signed-in user, most recent activity first.
func (m Main) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	convs, err := m.store.Conversations(r.Context(), user.ID)
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get conversations")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// HandleCreateConversation creates an empty conversation owned by the signed-in user.
func (m Main) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	now := time.Now()
	id, err := m.store.AddConversation(r.Context(), models.Conversation{
		OwnerID:   user.ID,
		Timestamp: now,
		CreatedAt: now,
	})
	if err != nil {
		m.logger.Error("Failed to add conversation", slog.String(errLoggerKey, err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	m.publishConversations(user.ID)
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// HandleDeleteConversation deletes a conversation of the signed-in user with all of its messages.
func (m Main) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	if err := m.deleteConversation(r.Context(), user, r.PathValue("id")); err != nil {
		m.conversationFailure(w, err, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMessages returns the messages of a conversation in the order they were added.
func (m Main) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	conv, err := m.ownedConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		m.conversationFailure(w, err, "failed to get conversation")
		return
	}

	msgs, err := m.store.Messages(r.Context(), conv.ID)
	if err != nil {
		m.conversationFailure(w, err, "failed to get messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleAddMessage appends a message to a conversation of the signed-in user. The first user message of
// an untitled conversation becomes its title, and triggers title generation when configured.
func (m Main) HandleAddMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req addMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Sender.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sender %q", req.Sender))
		return
	}
	if req.Sender == models.SenderUser && strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	conv, err := m.ownedConversation(r.Context(), user, r.PathValue("id"))
	if err != nil {
		m.conversationFailure(w, err, "failed to get conversation")
		return
	}

	id, err := m.store.AddMessage(r.Context(), conv.ID, models.Message{
		Text:      req.Text,
		Sender:    req.Sender,
		Timestamp: time.Now(),
	})
	if err != nil {
		m.conversationFailure(w, err, "failed to save message")
		return
	}

	if conv.Title == "" && req.Sender == models.SenderUser && m.titleGenerator != nil {
		go m.generateTitle(user.ID, conv.ID, req.Text)
	}

	m.publishConversations(user.ID)
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

// ownedConversation returns the conversation if it exists and belongs to user. Conversations of other
// users are reported as missing.
func (m Main) ownedConversation(ctx context.Context, user models.User, id string) (models.Conversation, error) {
	conv, err := m.store.Conversation(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.OwnerID != user.ID {
		return models.Conversation{}, models.ErrNotFound
	}
	return conv, nil
}

func (m Main) deleteConversation(ctx context.Context, user models.User, id string) error {
	if _, err := m.ownedConversation(ctx, user, id); err != nil {
		return err
	}
	if err := m.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	m.publishConversations(user.ID)
	return nil
}

func (m Main) conversationFailure(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	m.logger.Error(message, slog.String(errLoggerKey, err.Error()))
	writeError(w, http.StatusInternalServerError, message)
}

func (m Main) generateTitle(userID, conversationID, message string) {
	title, err := m.titleGenerator.GenerateTitle(context.Background(), message)
	if err != nil {
		m.logger.Error("Error generating conversation title",
			slog.String("message", message),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	title = models.Truncate(title, models.SummaryLength)
	if err := m.store.UpdateTitle(context.Background(), conversationID, title); err != nil {
		m.logger.Error("Failed to update conversation title",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	m.publishConversations(userID)
}

// publishConversations pushes the re-rendered conversation rows to the browsers of the user.
func (m Main) publishConversations(userID string) {
	convs, err := m.store.Conversations(context.Background(), userID)
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "conversation_rows", conversationRows(convs, "")); err != nil {
		m.logger.Error("Failed to render conversation rows", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: conversationsSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, userTopic(userID)); err != nil {
		m.logger.Error("Failed to publish conversations", slog.String(errLoggerKey, err.Error()))
	}
}
