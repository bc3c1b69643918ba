package transcript_test

import (
	"errors"
	"testing"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/MegaGrindStone/support-chat/internal/transcript"
)

func TestTranscriptLifecycle(t *testing.T) {
	tr := transcript.New(models.Entry{Role: models.RoleUser, Content: "Hi"})

	var events []transcript.Event
	tr.Subscribe(func(e transcript.Event) {
		events = append(events, e)
	})

	if err := tr.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !tr.IsOpen() {
		t.Error("IsOpen() = false, want true")
	}
	if err := tr.Append(models.Entry{Role: models.RoleUser, Content: "again"}); !errors.Is(err, transcript.ErrEntryOpen) {
		t.Errorf("Append() error = %v, want %v", err, transcript.ErrEntryOpen)
	}
	if err := tr.Open(); !errors.Is(err, transcript.ErrEntryOpen) {
		t.Errorf("Open() error = %v, want %v", err, transcript.ErrEntryOpen)
	}
	if err := tr.Grow("Hel"); err != nil {
		t.Fatalf("Grow() error = %v", err)
	}
	if err := tr.Grow("lo"); err != nil {
		t.Fatalf("Grow() error = %v", err)
	}

	frozen, err := tr.Freeze()
	if err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}
	if frozen.Content != "Hello" || frozen.Role != models.RoleAssistant {
		t.Errorf("Freeze() = %+v, want assistant entry with content Hello", frozen)
	}
	if err := tr.Grow("!"); !errors.Is(err, transcript.ErrNoOpenEntry) {
		t.Errorf("Grow() after Freeze error = %v, want %v", err, transcript.ErrNoOpenEntry)
	}
	if _, err := tr.Freeze(); !errors.Is(err, transcript.ErrNoOpenEntry) {
		t.Errorf("Freeze() twice error = %v, want %v", err, transcript.ErrNoOpenEntry)
	}

	wantKinds := []transcript.EventKind{
		transcript.EventOpened,
		transcript.EventGrown,
		transcript.EventGrown,
		transcript.EventFrozen,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(events), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if events[i].Kind != kind {
			t.Errorf("event %d kind = %v, want %v", i, events[i].Kind, kind)
		}
		if events[i].Index != 1 {
			t.Errorf("event %d index = %d, want 1", i, events[i].Index)
		}
	}
	if events[2].Delta != "lo" || events[2].Entry.Content != "Hello" {
		t.Errorf("second grow event = %+v", events[2])
	}

	if got := tr.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestTranscriptEntriesIsCopy(t *testing.T) {
	tr := transcript.New(models.Entry{Role: models.RoleUser, Content: "Hi"})

	entries := tr.Entries()
	entries[0].Content = "changed"

	if got := tr.Entries()[0].Content; got != "Hi" {
		t.Errorf("Entries()[0].Content = %q, want %q", got, "Hi")
	}
}

func TestTranscriptObserverCanRead(t *testing.T) {
	tr := transcript.New()

	var lens []int
	tr.Subscribe(func(transcript.Event) {
		lens = append(lens, tr.Len())
	})

	if err := tr.Append(models.Entry{Role: models.RoleUser, Content: "Hi"}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Open(); err != nil {
		t.Fatal(err)
	}

	if len(lens) != 2 || lens[0] != 1 || lens[1] != 2 {
		t.Errorf("observed lengths = %v, want [1 2]", lens)
	}
}
