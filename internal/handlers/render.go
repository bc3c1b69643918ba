package handlers

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdown returns the renderer for assistant messages. Raw HTML in the source is never passed
// through.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
}

func (m Main) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"assistant": m.renderAssistant,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"ratings": func() []int {
			ratings := make([]int, 0, models.MaxRating-models.MinRating+1)
			for i := models.MinRating; i <= models.MaxRating; i++ {
				ratings = append(ratings, i)
			}
			return ratings
		},
	}
}

// renderAssistant renders the text of an assistant message in the configured markup.
func (m Main) renderAssistant(text string) template.HTML {
	if m.assistantMarkup == MarkupInline {
		return renderInline(text)
	}

	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(text), &buf); err != nil {
		return renderInline(text)
	}
	return template.HTML(buf.String())
}

// renderInline renders text as escaped plain text with <strong> for bold runs.
func renderInline(text string) template.HTML {
	var sb strings.Builder
	for _, node := range models.ParseInline(text) {
		if node.Bold() {
			sb.WriteString("<strong>")
			sb.WriteString(template.HTMLEscapeString(node.Text))
			sb.WriteString("</strong>")
			continue
		}
		sb.WriteString(template.HTMLEscapeString(node.Text))
	}
	return template.HTML(sb.String())
}
