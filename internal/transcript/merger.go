package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// Relay opens a streamed answer for the given history. The returned body yields the answer as raw UTF-8
// bytes; a read error other than io.EOF means the stream was interrupted.
type Relay interface {
	Chat(ctx context.Context, history []models.Entry) (io.ReadCloser, error)
}

// Recorder persists a finished exchange.
type Recorder interface {
	Record(ctx context.Context, user, assistant models.Entry) error
}

// ErrBusy is returned by Send while a previous answer is still streaming.
var ErrBusy = errors.New("an answer is still streaming")

const readChunkSize = 4096

// Merger sends user input to a Relay and merges the streamed answer into the open entry of a Transcript.
type Merger struct {
	transcript *Transcript
	relay      Relay
	recorder   Recorder

	sending atomic.Bool

	logger *slog.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithRecorder persists every completed exchange through r. Recording failures are logged and never
// affect the transcript.
func WithRecorder(r Recorder) MergerOption {
	return func(m *Merger) {
		m.recorder = r
	}
}

// NewMerger creates a Merger writing into t.
func NewMerger(t *Transcript, relay Relay, logger *slog.Logger, opts ...MergerOption) *Merger {
	m := &Merger{
		transcript: t,
		relay:      relay,
		logger:     logger.With(slog.String("module", "transcript")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transcript returns the transcript the merger writes into.
func (m *Merger) Transcript() *Transcript {
	return m.transcript
}

// Sending reports whether an answer is currently streaming.
func (m *Merger) Sending() bool {
	return m.sending.Load()
}

// Send submits input and streams the answer into the transcript. Blank input is ignored. The history sent
// to the relay is the transcript before the call followed by the new user entry.
//
// On failure the open entry is frozen with whatever text arrived, and the error is returned; nothing is
// retried.
func (m *Merger) Send(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	if !m.sending.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer m.sending.Store(false)

	user := models.Entry{Role: models.RoleUser, Content: text}
	history := append(m.transcript.Entries(), user)

	if err := m.transcript.Append(user); err != nil {
		return err
	}
	if err := m.transcript.Open(); err != nil {
		return err
	}

	assistant, err := m.stream(ctx, history)
	if err != nil {
		m.logger.Error("Failed to stream answer", slog.String(errLoggerKey, err.Error()))
		return err
	}

	if m.recorder != nil {
		if err := m.recorder.Record(ctx, user, assistant); err != nil {
			m.logger.Error("Failed to record exchange", slog.String(errLoggerKey, err.Error()))
		}
	}
	return nil
}

// stream reads the relay body into the open entry and always freezes it before returning.
func (m *Merger) stream(ctx context.Context, history []models.Entry) (models.Entry, error) {
	body, err := m.relay.Chat(ctx, history)
	if err != nil {
		return m.freeze(fmt.Errorf("failed to open stream: %w", err))
	}
	defer body.Close()

	dec := NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n], true); text != "" {
				if err := m.transcript.Grow(text); err != nil {
					return m.freeze(err)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return m.freeze(fmt.Errorf("failed to read stream: %w", readErr))
		}
	}

	if text := dec.Decode(nil, false); text != "" {
		if err := m.transcript.Grow(text); err != nil {
			return m.freeze(err)
		}
	}
	return m.freeze(nil)
}

func (m *Merger) freeze(cause error) (models.Entry, error) {
	entry, err := m.transcript.Freeze()
	if err != nil && cause == nil {
		return entry, err
	}
	return entry, cause
}
