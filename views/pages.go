package views

import (
	"context"
	"fmt"
	"io"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/graph"
	"github.com/a-h/templ"
)

func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(`</title><script src="https://unpkg.com/htmx.org@2.0.4"></script>` +
			`<script src="https://unpkg.com/htmx-ext-ws@2.0.2"></script>` +
			`<link rel="stylesheet" href="/static/style.css"></head><body hx-boost="true">`)
		if h.err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</body></html>`)
		return h.err
	})
}

func Index(brackets []bracket.Bracket) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<main><h1>Brackets</h1><ul class="brackets">`)
		for _, b := range brackets {
			h.rawf(`<li><a href="/brackets/%s">`, templ.EscapeString(b.ID.String()))
			h.text(b.Name)
			h.raw(`</a> <span class="format">`)
			h.text(b.Format().Label())
			h.raw(`</span> <span class="status">`)
			h.text(string(b.Status))
			h.raw(`</span></li>`)
		}
		h.raw(`</ul>`)
		writeCreateForm(h)
		h.raw(`</main>`)
		return h.err
	})
	return Page("Brackets", body)
}

func writeCreateForm(h *htmlWriter) {
	h.raw(`<form hx-post="/brackets" class="create">` +
		`<label>Name <input name="name" required maxlength="100"></label>` +
		`<label>Format <select name="format">` +
		`<option value="single">Single elimination</option>` +
		`<option value="double">Double elimination</option></select></label>` +
		`<label><input type="checkbox" name="third_place" value="true"> Third place match</label>` +
		`<fieldset id="entries">`)
	for i := range 4 {
		h.raw(Entry(i))
	}
	h.raw(`</fieldset><button hx-post="/brackets/entries" hx-target="#entries" hx-swap="beforeend" type="button">Add entry</button>` +
		`<button type="submit">Create</button></form>`)
}

// Entry is the markup of one entry input row.
func Entry(index int) string {
	return fmt.Sprintf(`<input name="entry_name_%d" placeholder="Entry %d" maxlength="50">`, index, index+1)
}

type BracketPageData struct {
	Bracket  *bracket.Bracket
	Data     BracketData
	ShareURL string
	FullView bool
}

func BracketPage(p BracketPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		id := templ.EscapeString(p.Bracket.ID.String())

		h.raw(`<main class="bracket"><h1>`)
		h.text(p.Bracket.Name)
		h.raw(`</h1><p class="format">`)
		h.text(p.Bracket.Format().Label())
		h.raw(`</p>`)

		if p.Data.Error != "" {
			h.raw(`<p class="error">`)
			h.text(p.Data.Error)
			h.raw(`</p>`)
		}
		if p.Data.Loading {
			h.rawf(`<p class="loading" hx-get="/brackets/%s" hx-trigger="load delay:500ms" hx-select="main" hx-target="main" hx-swap="outerHTML">Loading matches...</p>`, id)
		}
		if p.Data.Dangling > 0 {
			h.rawf(`<p class="warning">%d progression links point at missing matches.</p>`, p.Data.Dangling)
		}

		h.rawf(`<nav><a href="%s">Share this view</a>`, templ.EscapeString(p.ShareURL))
		if p.FullView {
			h.rawf(` <a href="/brackets/%s">Winners bracket only</a>`, id)
		} else {
			h.rawf(` <a href="/brackets/%s?view=full">Full bracket</a>`, id)
		}
		h.raw(`</nav>`)

		writeSVG(h, id, p.Data)

		if p.Data.PendingCount > 0 {
			h.rawf(`<form hx-post="/brackets/%s/submit"><button type="submit">Submit %d pending result(s)</button></form>`, id, p.Data.PendingCount)
		}
		h.rawf(`<div hx-ext="ws" ws-connect="/brackets/%s/ws"></div></main>`, id)
		return h.err
	})
	return Page(p.Bracket.Name, body)
}

func writeSVG(h *htmlWriter, id string, data BracketData) {
	h.rawf(`<svg class="bracket-graph" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" xmlns="http://www.w3.org/2000/svg">`,
		data.Width, data.Height, data.Width, data.Height)

	for _, e := range data.Edges {
		class := "edge-winner"
		switch e.Kind {
		case graph.EdgeLoser:
			class = "edge-loser"
		case graph.EdgeRedemption:
			class = "edge-redemption"
		}
		h.rawf(`<path class="%s" d="%s" fill="none"/>`, class, e.Path())
	}

	for _, n := range data.Nodes {
		class := "match"
		if n.Highlight {
			class += " highlight"
		}
		if n.Pending != nil {
			class += " pending"
		}
		b := n.Box
		h.rawf(`<g class="%s" id="match-%d" transform="translate(%.1f %.1f)">`, class, b.ID, b.X, b.Y)
		h.rawf(`<rect width="%.1f" height="%.1f" rx="4"/>`, b.Width, b.Height)
		writeSlot(h, id, n, bracket.ResultTeam1, n.Team1, b.Height/3)
		writeSlot(h, id, n, bracket.ResultTeam2, n.Team2, 2*b.Height/3+4)
		h.raw(`</g>`)
	}
	h.raw(`</svg>`)
}

func writeSlot(h *htmlWriter, id string, n NodeData, slot bracket.Result, label string, y float64) {
	class := "team"
	switch {
	case n.Match.Result != nil && *n.Match.Result == slot:
		class += " winner"
	case n.Pending != nil && *n.Pending == slot:
		class += " proposed"
	}

	if n.Proposable() {
		if n.Pending != nil && *n.Pending == slot {
			h.rawf(`<text class="%s" x="8" y="%.1f" hx-delete="/brackets/%s/pending/%d">`, class, y, id, n.Box.ID)
		} else {
			h.rawf(`<text class="%s" x="8" y="%.1f" hx-post="/brackets/%s/pending" hx-vals='{"match":"%d","result":"%s"}'>`,
				class, y, id, n.Box.ID, slot)
		}
	} else {
		h.rawf(`<text class="%s" x="8" y="%.1f">`, class, y)
	}
	h.text(label)
	if n.Pending != nil && *n.Pending == slot {
		h.raw(`<title>Proposed: `)
		h.text(resultLabel(slot, n))
		h.raw(`</title>`)
	}
	h.raw(`</text>`)
}
