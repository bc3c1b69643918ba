package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

type conversation struct {
	ID          string
	Title       string
	LastMessage string
	Timestamp   time.Time

	Selected bool
}

type message struct {
	Sender models.Sender
	Text   string
}

type homePageData struct {
	UserName string

	Conversations []conversation
	// SelectedID is empty while the fresh, unsaved conversation is shown.
	SelectedID string
	Messages   []message

	AssistantMarkup string
	DefaultRating   int
}

type signInPageData struct {
	Error string
}

// HandleHome renders the sign-in page for anonymous visitors, and the conversation table with the chat
// box otherwise. The conversation_id query parameter selects the conversation shown in the chat box; an
// unknown id falls back to a fresh conversation.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := m.currentUser(r)
	if !ok {
		if err := m.templates.ExecuteTemplate(w, "signin.html", signInPageData{}); err != nil {
			m.logger.Error("Failed to render sign-in page", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	convs, err := m.store.Conversations(r.Context(), user.ID)
	if err != nil {
		m.logger.Error("Failed to get conversations", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		UserName:        user.DisplayName(),
		AssistantMarkup: m.assistantMarkup,
		DefaultRating:   models.DefaultRating,
	}

	if id := r.URL.Query().Get("conversation_id"); id != "" {
		conv, err := m.ownedConversation(r.Context(), user, id)
		switch {
		case err == nil:
			msgs, err := m.store.Messages(r.Context(), conv.ID)
			if err != nil {
				m.logger.Error("Failed to get messages",
					slog.String("conversationID", conv.ID),
					slog.String(errLoggerKey, err.Error()))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			data.SelectedID = conv.ID
			data.Messages = make([]message, len(msgs))
			for i, msg := range msgs {
				data.Messages[i] = message{Sender: msg.Sender, Text: msg.Text}
			}
		case errors.Is(err, models.ErrNotFound):
		default:
			m.logger.Error("Failed to get conversation", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	data.Conversations = conversationRows(convs, data.SelectedID)

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleDeleteConversationForm deletes a conversation from the conversation table. The "selected" form
// field carries the conversation shown in the chat box: deleting it resets the page to a fresh
// conversation, deleting another one keeps the selection.
func (m Main) HandleDeleteConversationForm(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	id := r.PathValue("id")
	if err := m.deleteConversation(r.Context(), user, id); err != nil && !errors.Is(err, models.ErrNotFound) {
		m.logger.Error("Failed to delete conversation",
			slog.String("conversationID", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "failed to delete conversation", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, selectionAfterDelete(id, r.FormValue("selected")), http.StatusSeeOther)
}

func selectionAfterDelete(deletedID, selectedID string) string {
	if selectedID == "" || selectedID == deletedID {
		return "/"
	}
	return "/?conversation_id=" + url.QueryEscape(selectedID)
}

func conversationRows(convs []models.Conversation, selectedID string) []conversation {
	rows := make([]conversation, len(convs))
	for i, c := range convs {
		title := c.Title
		if title == "" {
			title = "New conversation"
		}
		rows[i] = conversation{
			ID:          c.ID,
			Title:       title,
			LastMessage: c.LastMessage,
			Timestamp:   c.Timestamp,
			Selected:    c.ID == selectedID,
		}
	}
	return rows
}
