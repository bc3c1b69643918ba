package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/services"
)

type store interface {
	Conversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	Conversation(ctx context.Context, id string) (models.Conversation, error)
	AddConversation(ctx context.Context, conv models.Conversation) (string, error)
	UpdateTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)
	AddFeedback(ctx context.Context, feedback models.Feedback) (string, error)
	Feedbacks(ctx context.Context) ([]models.Feedback, error)
	AddUser(ctx context.Context, user models.User) (string, error)
	User(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

func TestBoltDB(t *testing.T) {
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	testStore(t, db)
}

func TestSQLStore(t *testing.T) {
	db, err := services.NewSQLStore("sqlite", filepath.Join(t.TempDir(), "store.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	testStore(t, db)
}

func TestSQLStoreUnknownDriver(t *testing.T) {
	if _, err := services.NewSQLStore("postgres", ""); err == nil {
		t.Error("NewSQLStore() with unknown driver should fail")
	}
}

func testStore(t *testing.T, s store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Conversations", func(t *testing.T) {
		first, err := s.AddConversation(ctx, models.Conversation{OwnerID: "alice", Timestamp: base, CreatedAt: base})
		if err != nil {
			t.Fatalf("AddConversation() error = %v", err)
		}
		second, err := s.AddConversation(ctx, models.Conversation{OwnerID: "alice", Timestamp: base, CreatedAt: base})
		if err != nil {
			t.Fatalf("AddConversation() error = %v", err)
		}
		if _, err := s.AddConversation(ctx, models.Conversation{OwnerID: "bob", Timestamp: base, CreatedAt: base}); err != nil {
			t.Fatalf("AddConversation() error = %v", err)
		}
		if first == second {
			t.Fatalf("AddConversation() returned duplicate id %q", first)
		}

		msgs := []models.Message{
			{Text: "Hi, I need help with voice guidance settings", Sender: models.SenderUser, Timestamp: base.Add(time.Minute)},
			{Text: "Sure, open the settings menu.", Sender: models.SenderAI, Timestamp: base.Add(2 * time.Minute)},
		}
		for _, m := range msgs {
			if _, err := s.AddMessage(ctx, first, m); err != nil {
				t.Fatalf("AddMessage() error = %v", err)
			}
		}

		got, err := s.Messages(ctx, first)
		if err != nil {
			t.Fatalf("Messages() error = %v", err)
		}
		if len(got) != len(msgs) {
			t.Fatalf("Messages() returned %d messages, want %d", len(got), len(msgs))
		}
		for i := range msgs {
			if got[i].Text != msgs[i].Text || got[i].Sender != msgs[i].Sender || got[i].ID == "" {
				t.Errorf("message %d = %+v, want text %q sender %q", i, got[i], msgs[i].Text, msgs[i].Sender)
			}
		}

		conv, err := s.Conversation(ctx, first)
		if err != nil {
			t.Fatalf("Conversation() error = %v", err)
		}
		if conv.Title != "Hi, I need help with voice gui..." {
			t.Errorf("Title = %q", conv.Title)
		}
		if conv.LastMessage != "Sure, open the settings menu." {
			t.Errorf("LastMessage = %q", conv.LastMessage)
		}
		if !conv.Timestamp.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("Timestamp = %v, want %v", conv.Timestamp, base.Add(2*time.Minute))
		}

		list, err := s.Conversations(ctx, "alice")
		if err != nil {
			t.Fatalf("Conversations() error = %v", err)
		}
		if len(list) != 2 || list[0].ID != first {
			t.Fatalf("Conversations() = %+v, want 2 conversations with %s first", list, first)
		}

		if err := s.UpdateTitle(ctx, first, "Voice guidance"); err != nil {
			t.Fatalf("UpdateTitle() error = %v", err)
		}
		conv, _ = s.Conversation(ctx, first)
		if conv.Title != "Voice guidance" || conv.LastMessage != "Sure, open the settings menu." {
			t.Errorf("conversation after UpdateTitle = %+v", conv)
		}
		if !conv.Timestamp.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("Timestamp after UpdateTitle = %v, want %v", conv.Timestamp, base.Add(2*time.Minute))
		}

		if _, err := s.AddMessage(ctx, first, models.Message{
			Text:      "Thanks, that worked",
			Sender:    models.SenderUser,
			Timestamp: base.Add(3 * time.Minute),
		}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
		conv, _ = s.Conversation(ctx, first)
		if conv.Title != "Voice guidance" || conv.LastMessage != "Thanks, that worked" {
			t.Errorf("conversation after a new message = %+v", conv)
		}

		if err := s.UpdateTitle(ctx, "missing", "Title"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("UpdateTitle() of missing conversation error = %v, want %v", err, models.ErrNotFound)
		}

		if err := s.DeleteConversation(ctx, first); err != nil {
			t.Fatalf("DeleteConversation() error = %v", err)
		}
		if _, err := s.Conversation(ctx, first); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Conversation() after delete error = %v, want %v", err, models.ErrNotFound)
		}
		if _, err := s.Messages(ctx, first); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Messages() after delete error = %v, want %v", err, models.ErrNotFound)
		}
		if err := s.DeleteConversation(ctx, first); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("DeleteConversation() twice error = %v, want %v", err, models.ErrNotFound)
		}
		if _, err := s.AddMessage(ctx, first, msgs[0]); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("AddMessage() after delete error = %v, want %v", err, models.ErrNotFound)
		}

		list, _ = s.Conversations(ctx, "alice")
		if len(list) != 1 || list[0].ID != second {
			t.Errorf("Conversations() after delete = %+v, want only %s", list, second)
		}
	})

	t.Run("Users", func(t *testing.T) {
		id, err := s.AddUser(ctx, models.User{Email: "Ada@Example.com", Name: "Ada", PasswordHash: "hash", CreatedAt: base})
		if err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
		if _, err := s.AddUser(ctx, models.User{Email: "ada@example.com", PasswordHash: "hash"}); !errors.Is(err, models.ErrConflict) {
			t.Errorf("AddUser() duplicate error = %v, want %v", err, models.ErrConflict)
		}

		byEmail, err := s.UserByEmail(ctx, "ADA@example.com")
		if err != nil {
			t.Fatalf("UserByEmail() error = %v", err)
		}
		if byEmail.ID != id || byEmail.PasswordHash != "hash" {
			t.Errorf("UserByEmail() = %+v", byEmail)
		}

		byID, err := s.User(ctx, id)
		if err != nil {
			t.Fatalf("User() error = %v", err)
		}
		if byID.Name != "Ada" {
			t.Errorf("User().Name = %q, want Ada", byID.Name)
		}

		if _, err := s.User(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("User() missing error = %v, want %v", err, models.ErrNotFound)
		}
		if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("UserByEmail() missing error = %v, want %v", err, models.ErrNotFound)
		}
	})

	t.Run("Feedback", func(t *testing.T) {
		fb := models.Feedback{UserID: "alice", Name: "Anonymous", Rating: 4, Comment: "helpful", Timestamp: base}
		id, err := s.AddFeedback(ctx, fb)
		if err != nil {
			t.Fatalf("AddFeedback() error = %v", err)
		}

		all, err := s.Feedbacks(ctx)
		if err != nil {
			t.Fatalf("Feedbacks() error = %v", err)
		}
		if len(all) != 1 || all[0].ID != id || all[0].Rating != 4 || all[0].Comment != "helpful" {
			t.Errorf("Feedbacks() = %+v", all)
		}
	})
}
