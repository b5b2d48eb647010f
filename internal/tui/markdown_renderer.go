package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minHelpWidth keeps glamour from wrapping key descriptions into single words.
const minHelpWidth = 24

// markdownRenderer renders the help overlay. The glamour renderer is rebuilt only when
// the wrap width changes and the last document is served from cache until the keys or
// width change.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer

	lastDoc string
	lastOut string
}

// render converts markdown into ANSI-styled terminal text wrapped at width. It falls
// back to the raw markdown when glamour fails.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, minHelpWidth)
	if r.renderer != nil && r.width == wrapWidth && r.lastDoc == markdown {
		return r.lastOut
	}
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer, r.width = renderer, wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	r.lastDoc, r.lastOut = markdown, strings.TrimRight(rendered, "\n")
	return r.lastOut
}
