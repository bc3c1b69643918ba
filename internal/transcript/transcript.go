// Package transcript keeps the client-side state of a conversation while answers stream in.
//
// A Transcript is append-only: every entry is frozen once added, except the last assistant entry while
// its stream is open. Each mutation is reported to the subscribed observers, which is how renderers learn
// that they must redraw.
package transcript

import (
	"errors"
	"sync"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// EventKind describes the mutation reported by an Event.
type EventKind int

const (
	// EventAppended reports a frozen entry added to the transcript.
	EventAppended EventKind = iota
	// EventOpened reports a new open assistant entry.
	EventOpened
	// EventGrown reports text appended to the open entry. Event.Delta holds the appended text.
	EventGrown
	// EventFrozen reports that the open entry will not change anymore.
	EventFrozen
)

// Event is emitted after every transcript mutation.
type Event struct {
	Kind  EventKind
	Index int
	Entry models.Entry
	Delta string
}

// Observer receives transcript events in mutation order.
type Observer func(Event)

var (
	// ErrEntryOpen is returned when appending while an entry is still streaming.
	ErrEntryOpen = errors.New("transcript has an open entry")
	// ErrNoOpenEntry is returned when growing or freezing without an open entry.
	ErrNoOpenEntry = errors.New("transcript has no open entry")
)

// Transcript is the ordered list of entries of one conversation.
type Transcript struct {
	mu        sync.Mutex
	entries   []models.Entry
	open      bool
	observers []Observer
}

// New returns a transcript seeded with frozen entries, for example the history of a selected conversation.
func New(entries ...models.Entry) *Transcript {
	return &Transcript{entries: append([]models.Entry(nil), entries...)}
}

// Subscribe registers o for all future events.
func (t *Transcript) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Entries returns a copy of the current entries.
func (t *Transcript) Entries() []models.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Entry(nil), t.entries...)
}

// Len returns the number of entries, including an open one.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// IsOpen reports whether the last entry is still streaming.
func (t *Transcript) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Append adds a frozen entry.
func (t *Transcript) Append(e models.Entry) error {
	return t.mutate(func() (Event, error) {
		if t.open {
			return Event{}, ErrEntryOpen
		}
		t.entries = append(t.entries, e)
		return Event{Kind: EventAppended, Index: len(t.entries) - 1, Entry: e}, nil
	})
}

// Open adds an empty assistant entry that stays mutable until Freeze.
func (t *Transcript) Open() error {
	return t.mutate(func() (Event, error) {
		if t.open {
			return Event{}, ErrEntryOpen
		}
		e := models.Entry{Role: models.RoleAssistant}
		t.entries = append(t.entries, e)
		t.open = true
		return Event{Kind: EventOpened, Index: len(t.entries) - 1, Entry: e}, nil
	})
}

// Grow appends text to the open entry.
func (t *Transcript) Grow(text string) error {
	return t.mutate(func() (Event, error) {
		if !t.open {
			return Event{}, ErrNoOpenEntry
		}
		last := len(t.entries) - 1
		t.entries[last].Content += text
		return Event{Kind: EventGrown, Index: last, Entry: t.entries[last], Delta: text}, nil
	})
}

// Freeze closes the open entry and returns its final state.
func (t *Transcript) Freeze() (models.Entry, error) {
	var frozen models.Entry
	err := t.mutate(func() (Event, error) {
		if !t.open {
			return Event{}, ErrNoOpenEntry
		}
		t.open = false
		last := len(t.entries) - 1
		frozen = t.entries[last]
		return Event{Kind: EventFrozen, Index: last, Entry: frozen}, nil
	})
	return frozen, err
}

// mutate applies fn under the lock and notifies the observers outside of it, so observers may read the
// transcript.
func (t *Transcript) mutate(fn func() (Event, error)) error {
	t.mu.Lock()
	ev, err := fn()
	observers := t.observers
	t.mu.Unlock()
	if err != nil {
		return err
	}
	for _, o := range observers {
		o(ev)
	}
	return nil
}
