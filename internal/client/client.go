package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// Client talks to the support chat HTTP API on behalf of a single user.
type Client struct {
	server string
	token  string

	httpClient *http.Client
	logger     *slog.Logger
}

// Session is the result of signing in or signing up.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// APIError is a non-successful answer of the API.
type APIError struct {
	StatusCode int
	Message    string
}

type errorResponse struct {
	Error string `json:"error"`
}

type idResponse struct {
	ID string `json:"id"`
}

// ErrUnauthorized is matched by API errors answered with 401.
var ErrUnauthorized = errors.New("unauthorized")

const (
	endpointSignUp        = "/auth/signup"
	endpointSignIn        = "/auth/signin"
	endpointSignOut       = "/auth/signout"
	endpointMe            = "/api/me"
	endpointChat          = "/api/chat"
	endpointConversations = "/api/conversations"
	endpointConversation  = "/api/conversations/%s"
	endpointMessages      = "/api/conversations/%s/messages"
	endpointFeedback      = "/api/feedback"
)

// New creates a client for the server at the given address. The token may be empty until the user signs
// in.
func New(server, token string, logger *slog.Logger) (*Client, error) {
	normalized, err := normalizeServerURL(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return &Client{
		server:     normalized,
		token:      token,
		httpClient: &http.Client{},
		logger:     logger.With(slog.String("module", "client")),
	}, nil
}

// normalizeServerURL adds a missing scheme and drops any path and trailing slash.
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", server)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code to the sentinel errors of the domain, so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrConflict
	}
	return nil
}

// Server returns the normalized server address.
func (c *Client) Server() string {
	return c.server
}

// Token returns the session token used for requests.
func (c *Client) Token() string {
	return c.token
}

// SignUp creates an account and keeps the returned session token.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (Session, error) {
	return c.startSession(ctx, endpointSignUp, map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
}

// SignIn verifies the credentials and keeps the returned session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	return c.startSession(ctx, endpointSignIn, map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) startSession(ctx context.Context, endpoint string, body any) (Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodPost, endpoint, body, &sess); err != nil {
		return Session{}, err
	}
	c.token = sess.Token
	return sess, nil
}

// SignOut revokes the session token on the server and forgets it.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, endpointSignOut, nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodGet, endpointMe, nil, &user)
	return user, err
}

// Conversations lists the conversations of the signed-in user, most recent activity first.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := c.do(ctx, http.MethodGet, endpointConversations, nil, &convs)
	return convs, err
}

// CreateConversation creates an empty conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, endpointConversations, nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// DeleteConversation deletes a conversation with all of its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf(endpointConversation, url.PathEscape(id)), nil, nil)
}

// Messages returns the messages of a conversation in order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := c.do(ctx, http.MethodGet, fmt.Sprintf(endpointMessages, url.PathEscape(conversationID)), nil, &msgs)
	return msgs, err
}

// AddMessage appends a message to a conversation and returns its id.
func (c *Client) AddMessage(ctx context.Context, conversationID string, msg models.Message) (string, error) {
	body := map[string]any{"text": msg.Text, "sender": msg.Sender}

	var resp idResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf(endpointMessages, url.PathEscape(conversationID)), body, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Feedback submits a rating with an optional comment.
func (c *Client) Feedback(ctx context.Context, rating int, comment string) (string, error) {
	body := map[string]any{"rating": rating, "comment": comment}

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, endpointFeedback, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Chat posts the history to the relay and returns the raw answer stream. The caller must close the
// returned body. A body cut short by the server surfaces as a read error.
func (c *Client) Chat(ctx context.Context, history []models.Entry) (io.ReadCloser, error) {
	if history == nil {
		history = []models.Entry{}
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpointChat, history)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Sending request", slog.String("method", method), slog.String("endpoint", endpoint))

	return req, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	bs, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var er errorResponse
	if json.Unmarshal(bs, &er) == nil && er.Error != "" {
		apiErr.Message = er.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(bs))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
