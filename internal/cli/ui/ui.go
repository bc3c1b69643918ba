package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MegaGrindStone/support-chat/internal/models"
)

// Styles defines all lipgloss styles used in the CLI
var Styles = struct {
	Bold      lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Selected  lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Banner    lipgloss.Style
}{
	Bold:      lipgloss.NewStyle().Bold(true),
	User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
	Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
	Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),

	Banner: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("86")).
		Padding(0, 1),
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Styles.Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Styles.Error.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints a secondary message
func PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// RenderInline renders text with its bold runs passed through bold. Everything else is kept verbatim.
func RenderInline(text string, bold func(...string) string) string {
	var sb strings.Builder
	for _, node := range models.ParseInline(text) {
		if node.Bold() {
			sb.WriteString(bold(node.Text))
			continue
		}
		sb.WriteString(node.Text)
	}
	return sb.String()
}

// PrintMessage prints a stored message with the label of its sender.
func PrintMessage(w io.Writer, msg models.Message) {
	if msg.Sender == models.SenderAI {
		fmt.Fprintf(w, "%s %s\n", Styles.Assistant.Render("assistant>"), RenderInline(msg.Text, Styles.Bold.Render))
		return
	}
	fmt.Fprintf(w, "%s %s\n", Styles.User.Render("you>"), msg.Text)
}

// PrintConversations prints the conversation list, marking the selected conversation.
func PrintConversations(w io.Writer, convs []models.Conversation, selectedID string) {
	if len(convs) == 0 {
		PrintInfo(w, "No conversations yet.")
		return
	}
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "New conversation"
		}
		line := fmt.Sprintf("%-40s %-33s %s", c.ID, title, Styles.Muted.Render(formatTime(c)))
		if c.ID == selectedID {
			fmt.Fprintln(w, Styles.Selected.Render("* ")+line)
			continue
		}
		fmt.Fprintln(w, "  "+line)
	}
}

func formatTime(c models.Conversation) string {
	if c.Timestamp.IsZero() {
		return ""
	}
	return c.Timestamp.Local().Format("Jan 2, 2006 15:04")
}

// InlineWriter renders an assistant entry while it grows. Text is written as soon as its markup is
// settled: a "**" opener without its closer on the same line, or a trailing "*", is held back until more
// text arrives or the writer is closed.
type InlineWriter struct {
	w    io.Writer
	bold func(...string) string

	text    strings.Builder
	written int
}

// NewInlineWriter creates an InlineWriter printing to w.
func NewInlineWriter(w io.Writer, bold func(...string) string) *InlineWriter {
	return &InlineWriter{w: w, bold: bold}
}

// Grow adds delta to the entry and prints what became settled.
func (iw *InlineWriter) Grow(delta string) error {
	iw.text.WriteString(delta)
	return iw.flush(false)
}

// Close prints the remaining text.
func (iw *InlineWriter) Close() error {
	return iw.flush(true)
}

func (iw *InlineWriter) flush(final bool) error {
	rest := iw.text.String()[iw.written:]
	n := len(rest)
	if !final {
		n = settledPrefix(rest)
	}
	if n == 0 {
		return nil
	}
	iw.written += n
	_, err := io.WriteString(iw.w, RenderInline(rest[:n], iw.bold))
	return err
}

// settledPrefix returns the length of the prefix of s whose inline markup cannot change when more text
// is appended.
func settledPrefix(s string) int {
	i := 0
	for {
		idx := strings.Index(s[i:], "**")
		if idx == -1 {
			if strings.HasSuffix(s[i:], "*") {
				return len(s) - 1
			}
			return len(s)
		}
		open := i + idx
		body := s[open+2:]
		closing := strings.Index(body, "**")
		newline := strings.IndexByte(body, '\n')
		switch {
		case newline != -1 && (closing == -1 || newline < closing):
			i = open + 2 + newline + 1
		case closing == -1:
			return open
		default:
			i = open + 2 + closing + 2
		}
	}
}
