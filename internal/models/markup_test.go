package models_test

import (
	"slices"
	"testing"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

func TestParseInline(t *testing.T) {
	text := func(s string) models.Inline { return models.Inline{Kind: models.InlineText, Text: s} }
	bold := func(s string) models.Inline { return models.Inline{Kind: models.InlineBold, Text: s} }

	tests := []struct {
		name  string
		input string
		want  []models.Inline
	}{
		{
			name:  "Empty",
			input: "",
			want:  nil,
		},
		{
			name:  "Plain text",
			input: "Hello there",
			want:  []models.Inline{text("Hello there")},
		},
		{
			name:  "Bold in the middle",
			input: "Open **Settings** now",
			want:  []models.Inline{text("Open "), bold("Settings"), text(" now")},
		},
		{
			name:  "Shortest match",
			input: "**a** and **b**",
			want:  []models.Inline{bold("a"), text(" and "), bold("b")},
		},
		{
			name:  "Unmatched marker",
			input: "2 ** 3",
			want:  []models.Inline{text("2 ** 3")},
		},
		{
			name:  "Bold does not span lines",
			input: "**first\nsecond**",
			want:  []models.Inline{text("**first\nsecond**")},
		},
		{
			name:  "Markup is kept as text",
			input: "<script>**x**</script>",
			want:  []models.Inline{text("<script>"), bold("x"), text("</script>")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.ParseInline(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseInline(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{input: "short", max: 30, want: "short"},
		{input: "  padded  ", max: 30, want: "padded"},
		{input: "How do I install Navability on my phone?", max: 30, want: "How do I install Navability on..."},
		{input: "héllo wörld", max: 5, want: "héllo..."},
		{input: "Hi, I need help with voice gui", max: 30, want: "Hi, I need help with voice gui"},
		{input: "Hi, I need help with voice guid", max: 30, want: "Hi, I need help with voice gui..."},
	}

	for _, tt := range tests {
		if got := models.Truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}

func TestConversationTouch(t *testing.T) {
	var c models.Conversation

	c.Touch(models.Message{Text: "Hi, I need help with voice guidance please", Sender: models.SenderUser})
	if c.Title != "Hi, I need help with voice gui..." {
		t.Errorf("Title = %q", c.Title)
	}

	c.Touch(models.Message{Text: "Sure!", Sender: models.SenderAI})
	if c.Title != "Hi, I need help with voice gui..." {
		t.Errorf("Title changed to %q", c.Title)
	}
	if c.LastMessage != "Sure!" {
		t.Errorf("LastMessage = %q, want %q", c.LastMessage, "Sure!")
	}
}
