package client

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// Selection tracks the conversation list of the user and the conversation shown in the chat. An empty
// selected id stands for the fresh conversation that has not been saved yet.
type Selection struct {
	client *Client

	mu            sync.Mutex
	conversations []models.Conversation
	selectedID    string
}

// Recorder saves finished exchanges into the selected conversation, creating it on the first record when
// the fresh conversation is selected.
type Recorder struct {
	client    *Client
	selection *Selection
}

// NewSelection creates a Selection starting on the fresh conversation.
func NewSelection(client *Client) *Selection {
	return &Selection{client: client}
}

// NewRecorder creates a Recorder for the conversations of selection.
func NewRecorder(client *Client, selection *Selection) Recorder {
	return Recorder{client: client, selection: selection}
}

// Refresh reloads the conversation list.
func (s *Selection) Refresh(ctx context.Context) ([]models.Conversation, error) {
	convs, err := s.client.Conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = convs
	return slices.Clone(convs), nil
}

// Conversations returns the list loaded by the last Refresh.
func (s *Selection) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// Selected returns the id of the selected conversation, or "" for the fresh one.
func (s *Selection) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// New selects a fresh conversation.
func (s *Selection) New() {
	s.set("")
}

// Open selects the conversation with the given id and returns its messages.
func (s *Selection) Open(ctx context.Context, id string) ([]models.Message, error) {
	msgs, err := s.client.Messages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation %s: %w", id, err)
	}
	s.set(id)
	return msgs, nil
}

// Delete removes the conversation remotely and refreshes the list. Deleting the selected conversation
// selects a fresh one; it reports whether that happened.
func (s *Selection) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.client.DeleteConversation(ctx, id); err != nil {
		return false, fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}

	s.mu.Lock()
	reset := s.selectedID == id
	if reset {
		s.selectedID = ""
	}
	s.mu.Unlock()

	if _, err := s.Refresh(ctx); err != nil {
		return reset, err
	}
	return reset, nil
}

func (s *Selection) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
}

// Record saves the user entry and the assistant entry, in that order.
func (r Recorder) Record(ctx context.Context, user, assistant models.Entry) error {
	id := r.selection.Selected()
	if id == "" {
		var err error
		id, err = r.client.CreateConversation(ctx)
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		r.selection.set(id)
	}

	now := time.Now()
	for _, e := range []models.Entry{user, assistant} {
		msg := models.Message{Text: e.Content, Sender: e.Role.Sender(), Timestamp: now}
		if _, err := r.client.AddMessage(ctx, id, msg); err != nil {
			return fmt.Errorf("failed to save %s message: %w", msg.Sender, err)
		}
	}
	return nil
}
