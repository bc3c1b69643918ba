package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"iter"
	"log/slog"
	"net/http"
	"time"

	supportchat "github.com/MegaGrindStone/support-chat"
	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a context
// and the conversation history, returning an iterator that yields response fragments and potential errors.
// A yielded error terminates the sequence.
type LLM interface {
	Chat(ctx context.Context, entries []models.Entry) iter.Seq2[string, error]
}

// TitleGenerator produces a short title for a conversation from its first user message.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, message string) (string, error)
}

// Store defines the interface for persisting conversations, their messages, feedback and user accounts.
// Lookups of missing records return models.ErrNotFound, and AddUser returns models.ErrConflict for a
// taken email. AddMessage keeps the conversation summary up to date.
type Store interface {
	Conversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	Conversation(ctx context.Context, id string) (models.Conversation, error)
	AddConversation(ctx context.Context, conv models.Conversation) (string, error)
	UpdateTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	AddMessage(ctx context.Context, conversationID string, message models.Message) (string, error)

	AddFeedback(ctx context.Context, feedback models.Feedback) (string, error)

	AddUser(ctx context.Context, user models.User) (string, error)
	User(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
}

// Revoker remembers signed out session tokens until they expire.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Config holds the optional collaborators and settings of Main.
type Config struct {
	// TitleGenerator, when set, replaces the truncated first message with a generated title.
	TitleGenerator TitleGenerator
	// Revoker is required.
	Revoker Revoker

	// Secret signs the session tokens and is required.
	Secret   string
	TokenTTL time.Duration

	// AllowAnonymousChat lets the chat relay answer requests without a signed-in user.
	AllowAnonymousChat bool
	// AssistantMarkup selects how stored assistant messages are rendered: MarkupMarkdown (default) or
	// MarkupInline.
	AssistantMarkup string
}

// Main handles the core functionality of the support chat: the streaming relay, the conversation API, the
// account endpoints and the web pages. It also keeps the server-sent events server that pushes
// conversation list updates to signed-in browsers.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	llm            LLM
	titleGenerator TitleGenerator
	store          Store
	revoker        Revoker

	secret             string
	tokenTTL           time.Duration
	allowAnonymousChat bool
	assistantMarkup    string

	logger *slog.Logger
}

const (
	// MarkupMarkdown renders assistant messages as markdown.
	MarkupMarkdown = "markdown"
	// MarkupInline renders assistant messages as plain text with **bold** runs.
	MarkupInline = "inline"

	errLoggerKey = "err"
)

// NewMain creates a new Main instance with the provided LLM and Store implementations. It initializes the
// SSE server, which subscribes every signed-in browser to the topic of its user, and parses the HTML
// templates from the embedded filesystem.
func NewMain(llm LLM, store Store, cfg Config, logger *slog.Logger) (Main, error) {
	if cfg.Revoker == nil {
		return Main{}, errors.New("revoker is required")
	}
	if cfg.Secret == "" {
		return Main{}, errors.New("token secret is required")
	}

	switch cfg.AssistantMarkup {
	case "":
		cfg.AssistantMarkup = MarkupMarkdown
	case MarkupMarkdown, MarkupInline:
	default:
		return Main{}, fmt.Errorf("unknown assistant markup: %s", cfg.AssistantMarkup)
	}

	m := Main{
		markdown:           newMarkdown(),
		llm:                llm,
		titleGenerator:     cfg.TitleGenerator,
		store:              store,
		revoker:            cfg.Revoker,
		secret:             cfg.Secret,
		tokenTTL:           cfg.TokenTTL,
		allowAnonymousChat: cfg.AllowAnonymousChat,
		assistantMarkup:    cfg.AssistantMarkup,
		logger:             logger.With(slog.String("module", "main")),
	}

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(m.templateFuncs()).ParseFS(
		supportchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}
	m.templates = tmpl

	m.sseSrv = &sse.Server{
		OnSession: func(w http.ResponseWriter, r *http.Request) ([]string, bool) {
			user, ok := m.currentUser(r)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return nil, false
			}
			return []string{sse.DefaultTopic, userTopic(user.ID)}, true
		},
		Logger: func(*http.Request) *slog.Logger {
			return m.logger.With(slog.String("component", "sse"))
		},
	}

	return m, nil
}

func userTopic(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// HandleSSE streams conversation list updates to the signed-in user.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeConversations")}
	// An event without data is not dispatched by browsers.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
