// Package markdown turns transcript turns into what the chat screen shows.
package markdown

import (
	"bytes"
	"fmt"

	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/types"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in model output is dropped, not passed through.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Turn renders one turn as "[timestamp] content" plus its HTML body.
func Turn(t transcript.Turn) types.RenderedTurn {
	out := types.RenderedTurn{
		Role:      string(t.Role),
		Content:   t.Content,
		Timestamp: t.Timestamp,
		Length:    t.Length,
		Display:   fmt.Sprintf("[%s] %s", t.Timestamp, t.Content),
	}
	if h, err := ToHTML(t.Content); err == nil {
		out.HTML = h
	}
	return out
}

// Turns renders the visible turns; system turns are never shown.
func Turns(turns []transcript.Turn) []types.RenderedTurn {
	visible := transcript.WithoutSystem(turns)
	out := make([]types.RenderedTurn, 0, len(visible))
	for _, t := range visible {
		out = append(out, Turn(t))
	}
	return out
}
