package transcript_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/support-chat/internal/transcript"
)

func TestDecoderSplitCharacters(t *testing.T) {
	inputs := []string{
		"Hello there",
		"Grüße aus Köln",
		"日本語のテキスト",
		"emoji 🙂 and more 🚀",
		"",
	}

	for _, input := range inputs {
		raw := []byte(input)
		// Every split point, including ones inside a multi-byte character.
		for split := 0; split <= len(raw); split++ {
			dec := transcript.NewDecoder()
			var sb strings.Builder
			sb.WriteString(dec.Decode(raw[:split], true))
			sb.WriteString(dec.Decode(raw[split:], true))
			sb.WriteString(dec.Decode(nil, false))

			if sb.String() != input {
				t.Errorf("split %q at %d = %q, want %q", input, split, sb.String(), input)
			}
		}
	}
}

func TestDecoderByteByByte(t *testing.T) {
	input := "Añ🙂"
	dec := transcript.NewDecoder()

	var sb strings.Builder
	for _, b := range []byte(input) {
		sb.WriteString(dec.Decode([]byte{b}, true))
	}
	if dec.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", dec.Pending())
	}
	sb.WriteString(dec.Decode(nil, false))

	if sb.String() != input {
		t.Errorf("decoded = %q, want %q", sb.String(), input)
	}
}

func TestDecoderHoldsIncompleteCharacter(t *testing.T) {
	dec := transcript.NewDecoder()
	raw := []byte("é")

	if got := dec.Decode(raw[:1], true); got != "" {
		t.Errorf("Decode() of first byte = %q, want empty", got)
	}
	if dec.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", dec.Pending())
	}
	if got := dec.Decode(raw[1:], true); got != "é" {
		t.Errorf("Decode() of second byte = %q, want %q", got, "é")
	}
}

func TestDecoderFlushInvalid(t *testing.T) {
	dec := transcript.NewDecoder()

	got := dec.Decode([]byte{'a', 0xe2, 0x82}, true)
	if got != "a" {
		t.Errorf("Decode() = %q, want %q", got, "a")
	}
	got = dec.Decode(nil, false)
	if !strings.ContainsRune(got, '�') {
		t.Errorf("flush = %q, want replacement character", got)
	}
	if dec.Pending() != 0 {
		t.Errorf("Pending() after flush = %d, want 0", dec.Pending())
	}
}
