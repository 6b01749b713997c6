package views

import (
	"fmt"
	"io"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/a-h/templ"
)

// htmlWriter keeps the first write error so components can write freely and
// check once at the end.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func resultLabel(r bracket.Result, n NodeData) string {
	if w := n.Match.Winner(r); w != nil {
		return *w
	}
	return string(r)
}
