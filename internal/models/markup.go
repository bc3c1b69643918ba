package models

import "regexp"

// InlineKind tags an Inline node.
type InlineKind int

const (
	// InlineText is literal text.
	InlineText InlineKind = iota
	// InlineBold is text emphasized with a double asterisk pair.
	InlineBold
)

// Inline is a node of the inline markup tree produced by ParseInline. Renderers decide how each kind is
// displayed, so the message text is never injected as markup.
type Inline struct {
	Kind InlineKind
	Text string
}

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// Bold reports whether the node is emphasized.
func (i Inline) Bold() bool {
	return i.Kind == InlineBold
}

// ParseInline splits s into Text and Bold nodes. A bold span is the shortest run enclosed by "**" on a
// single line; unmatched markers stay in the text.
func ParseInline(s string) []Inline {
	var nodes []Inline
	last := 0
	for _, loc := range boldPattern.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			nodes = append(nodes, Inline{Kind: InlineText, Text: s[last:loc[0]]})
		}
		nodes = append(nodes, Inline{Kind: InlineBold, Text: s[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(s) {
		nodes = append(nodes, Inline{Kind: InlineText, Text: s[last:]})
	}
	return nodes
}
