package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Conversation is the container of one support thread owned by a single user. Title and LastMessage are
// short summaries kept up to date by the store owner so listings never need to load the messages.
type Conversation struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is a persisted turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is one turn of a transcript as exchanged with the chat relay.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Sender identifies the author of a persisted message.
type Sender string

// Role identifies the speaker of a transcript entry.
type Role string

const (
	// SenderUser marks a message written by the signed-in user.
	SenderUser Sender = "user"
	// SenderAI marks a message produced by the assistant.
	SenderAI Sender = "ai"

	// RoleUser is the role of entries typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is the role of entries produced by the provider.
	RoleAssistant Role = "assistant"
	// RoleSystem is only used by provider adapters for the fixed system instruction.
	RoleSystem Role = "system"
)

// SummaryLength is the number of characters kept by conversation titles and previews.
const SummaryLength = 30

var (
	// ErrNotFound is returned by stores when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores when a unique attribute is already taken.
	ErrConflict = errors.New("already exists")
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Role maps a persisted sender to the transcript role.
func (s Sender) Role() Role {
	if s == SenderAI {
		return RoleAssistant
	}
	return RoleUser
}

// Valid reports whether r may appear in a chat history sent by a client.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Sender maps a transcript role to the persisted sender.
func (r Role) Sender() Sender {
	if r == RoleAssistant {
		return SenderAI
	}
	return SenderUser
}

// Entry converts the message into a transcript entry.
func (m Message) Entry() Entry {
	return Entry{Role: m.Sender.Role(), Content: m.Text}
}

// Entries converts persisted messages into transcript entries, keeping their order.
func Entries(messages []Message) []Entry {
	entries := make([]Entry, len(messages))
	for i, m := range messages {
		entries[i] = m.Entry()
	}
	return entries
}

// Truncate shortens s to at most max characters, appending "..." when something was cut.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// Touch updates the conversation summary after msg has been added to it. The first user message becomes
// the title of an untitled conversation.
func (c *Conversation) Touch(msg Message) {
	if c.Title == "" && msg.Sender == SenderUser {
		c.Title = Truncate(msg.Text, SummaryLength)
	}
	c.LastMessage = Truncate(msg.Text, SummaryLength)
	c.Timestamp = msg.Timestamp
}
