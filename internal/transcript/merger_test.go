package transcript_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/transcript"
)

type mockRelay struct {
	chunks  [][]byte
	readErr error
	openErr error

	calls   int
	history []models.Entry

	// block, when set, is waited on before the first chunk is served.
	block chan struct{}
}

type chunkBody struct {
	chunks [][]byte
	err    error
	block  chan struct{}
}

type mockRecorder struct {
	mu        sync.Mutex
	user      []models.Entry
	assistant []models.Entry
	err       error
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMergerSend(t *testing.T) {
	relay := &mockRelay{chunks: [][]byte{[]byte("Hel"), []byte("lo "), []byte("there")}}
	rec := &mockRecorder{}
	tr := transcript.New()

	var events []transcript.Event
	tr.Subscribe(func(e transcript.Event) {
		events = append(events, e)
	})

	m := transcript.NewMerger(tr, relay, testLogger(), transcript.WithRecorder(rec))
	if err := m.Send(context.Background(), "  Hi  "); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := []models.Entry{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello there"},
	}
	assertEntries(t, tr.Entries(), want)

	if tr.IsOpen() {
		t.Error("IsOpen() = true after Send, want false")
	}
	if m.Sending() {
		t.Error("Sending() = true after Send, want false")
	}

	grown := 0
	for _, e := range events {
		if e.Kind == transcript.EventGrown {
			grown++
		}
	}
	if grown != 3 {
		t.Errorf("got %d grow events, want 3", grown)
	}
	if events[len(events)-1].Kind != transcript.EventFrozen {
		t.Errorf("last event kind = %v, want %v", events[len(events)-1].Kind, transcript.EventFrozen)
	}

	assertEntries(t, relay.history, want[:1])
	if len(rec.user) != 1 || rec.assistant[0].Content != "Hello there" {
		t.Errorf("recorded user = %v, assistant = %v", rec.user, rec.assistant)
	}
}

func TestMergerHistoryExcludesPlaceholder(t *testing.T) {
	seed := []models.Entry{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: "Hello"},
	}
	relay := &mockRelay{chunks: [][]byte{[]byte("Sure.")}}
	tr := transcript.New(seed...)

	m := transcript.NewMerger(tr, relay, testLogger())
	if err := m.Send(context.Background(), "Help me"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	wantHistory := append(append([]models.Entry(nil), seed...), models.Entry{Role: models.RoleUser, Content: "Help me"})
	assertEntries(t, relay.history, wantHistory)
	if got := tr.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestMergerBlankInput(t *testing.T) {
	relay := &mockRelay{}
	tr := transcript.New()

	var events int
	tr.Subscribe(func(transcript.Event) { events++ })

	m := transcript.NewMerger(tr, relay, testLogger())
	for _, input := range []string{"", "   ", "\n\t"} {
		if err := m.Send(context.Background(), input); err != nil {
			t.Errorf("Send(%q) error = %v", input, err)
		}
	}

	if relay.calls != 0 {
		t.Errorf("relay called %d times, want 0", relay.calls)
	}
	if tr.Len() != 0 || events != 0 {
		t.Errorf("transcript changed: len = %d, events = %d", tr.Len(), events)
	}
}

func TestMergerOpenFailure(t *testing.T) {
	relay := &mockRelay{openErr: errors.New("provider unavailable")}
	rec := &mockRecorder{}
	tr := transcript.New()

	m := transcript.NewMerger(tr, relay, testLogger(), transcript.WithRecorder(rec))
	err := m.Send(context.Background(), "Hi")
	if !errors.Is(err, relay.openErr) {
		t.Fatalf("Send() error = %v, want %v", err, relay.openErr)
	}

	assertEntries(t, tr.Entries(), []models.Entry{
		{Role: models.RoleUser, Content: "Hi"},
		{Role: models.RoleAssistant, Content: ""},
	})
	if tr.IsOpen() {
		t.Error("IsOpen() = true after failure, want false")
	}
	if len(rec.user) != 0 {
		t.Error("failed exchange should not be recorded")
	}
	if m.Sending() {
		t.Error("Sending() = true after failure, want false")
	}
}

func TestMergerInterruptedStream(t *testing.T) {
	relay := &mockRelay{
		chunks:  [][]byte{[]byte("Partial ")},
		readErr: io.ErrUnexpectedEOF,
	}
	tr := transcript.New()

	m := transcript.NewMerger(tr, relay, testLogger())
	if err := m.Send(context.Background(), "Hi"); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Send() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}

	entries := tr.Entries()
	if got := entries[len(entries)-1].Content; got != "Partial " {
		t.Errorf("partial content = %q, want %q", got, "Partial ")
	}
	if tr.IsOpen() {
		t.Error("IsOpen() = true after failure, want false")
	}
}

func TestMergerSplitCharacter(t *testing.T) {
	raw := []byte("café 🙂")
	relay := &mockRelay{chunks: [][]byte{raw[:4], raw[4:7], raw[7:]}}
	tr := transcript.New()

	m := transcript.NewMerger(tr, relay, testLogger())
	if err := m.Send(context.Background(), "Hi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := tr.Entries()[1].Content; got != "café 🙂" {
		t.Errorf("content = %q, want %q", got, "café 🙂")
	}
}

func TestMergerBusy(t *testing.T) {
	relay := &mockRelay{
		chunks: [][]byte{[]byte("slow")},
		block:  make(chan struct{}),
	}
	tr := transcript.New()

	opened := make(chan struct{})
	tr.Subscribe(func(e transcript.Event) {
		if e.Kind == transcript.EventOpened {
			close(opened)
		}
	})

	m := transcript.NewMerger(tr, relay, testLogger())

	done := make(chan error)
	go func() {
		done <- m.Send(context.Background(), "first")
	}()
	<-opened

	if !m.Sending() {
		t.Error("Sending() = false while streaming, want true")
	}
	if err := m.Send(context.Background(), "second"); !errors.Is(err, transcript.ErrBusy) {
		t.Errorf("Send() while busy error = %v, want %v", err, transcript.ErrBusy)
	}

	close(relay.block)
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := tr.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestMergerRecorderFailureIgnored(t *testing.T) {
	relay := &mockRelay{chunks: [][]byte{[]byte("ok")}}
	rec := &mockRecorder{err: errors.New("storage down")}
	tr := transcript.New()

	m := transcript.NewMerger(tr, relay, testLogger(), transcript.WithRecorder(rec))
	if err := m.Send(context.Background(), "Hi"); err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
	if got := tr.Entries()[1].Content; got != "ok" {
		t.Errorf("content = %q, want %q", got, "ok")
	}
}

func assertEntries(t *testing.T, got, want []models.Entry) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %d entries %v, want %d entries %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func (m *mockRelay) Chat(_ context.Context, history []models.Entry) (io.ReadCloser, error) {
	m.calls++
	m.history = history
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &chunkBody{chunks: m.chunks, err: m.readErr, block: m.block}, nil
}

func (b *chunkBody) Read(p []byte) (int, error) {
	if b.block != nil {
		<-b.block
		b.block = nil
	}
	if len(b.chunks) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks[0] = b.chunks[0][n:]
	if len(b.chunks[0]) == 0 {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkBody) Close() error {
	return nil
}

func (r *mockRecorder) Record(_ context.Context, user, assistant models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.user = append(r.user, user)
	r.assistant = append(r.assistant, assistant)
	return nil
}
