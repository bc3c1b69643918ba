package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// HandleChat relays a chat history to the LLM and streams the answer back as raw UTF-8 text.
//
// The request body is a JSON array of {role, content} entries. The response body carries only the answer
// text, flushed fragment by fragment; there is no envelope and no end marker. If the provider fails before
// the first fragment the handler answers 502, and a failure after that aborts the connection so the client
// sees a truncated body. The provider is called exactly once per request.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !m.allowAnonymousChat {
		if _, ok := m.currentUser(r); !ok {
			writeError(w, http.StatusUnauthorized, "sign in required")
			return
		}
	}

	entries, err := decodeHistory(r)
	if err != nil {
		m.logger.Warn("Invalid chat history", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), bodyErrorStatus(err))
		return
	}

	next, stop := iter.Pull2(m.llm.Chat(r.Context(), entries))
	defer stop()

	first, err := nextFragment(next)
	if err != nil {
		m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "The assistant is unavailable, please try again.", http.StatusBadGateway)
		return
	}

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fragment := first
	for fragment != "" {
		if _, err := w.Write([]byte(fragment)); err != nil {
			m.logger.Warn("Client went away", slog.String(errLoggerKey, err.Error()))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		fragment, err = nextFragment(next)
		if err != nil {
			m.logger.Error("Stream from llm provider interrupted", slog.String(errLoggerKey, err.Error()))
			panic(http.ErrAbortHandler)
		}
	}
}

// nextFragment pulls the next non-empty fragment. It returns "" when the provider is done.
func nextFragment(next func() (string, error, bool)) (string, error) {
	for {
		fragment, err, ok := next()
		if !ok {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if fragment != "" {
			return fragment, nil
		}
	}
}

func decodeHistory(r *http.Request) ([]models.Entry, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, errors.New("request body must be a JSON array of messages")
	}

	var entries []models.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid messages: %w", err)
	}
	for i, e := range entries {
		if !e.Role.Valid() {
			return nil, fmt.Errorf("message %d has invalid role %q", i, e.Role)
		}
	}
	return entries, nil
}
