package views

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/graph"
	"github.com/AdamBeresnev/bracket-engine/internal/layout"
	"github.com/AdamBeresnev/bracket-engine/internal/view"
)

const placeholder = "TBD"

type NodeData struct {
	Box       layout.NodeBox
	Match     bracket.Match
	Team1     string
	Team2     string
	Pending   *bracket.Result
	Highlight bool
}

// Proposable reports whether the viewer may propose a result for this match.
func (n NodeData) Proposable() bool {
	return !n.Match.Decided() && n.Match.Ready()
}

type EdgeData struct {
	From layout.Point
	To   layout.Point
	Kind graph.EdgeKind
}

// Path is an SVG path from the source's right side to the target's left side.
func (e EdgeData) Path() string {
	mid := (e.From.X + e.To.X) / 2
	return fmt.Sprintf("M%.1f %.1f C%.1f %.1f, %.1f %.1f, %.1f %.1f",
		e.From.X, e.From.Y, mid, e.From.Y, mid, e.To.Y, e.To.X, e.To.Y)
}

type BracketData struct {
	Nodes        []NodeData
	Edges        []EdgeData
	Width        float64
	Height       float64
	Loading      bool
	Error        string
	PendingCount int
	Dangling     int
}

// PrepareBracketData merges the confirmed layout with the viewer's pending
// overlay. Without the full bracket flag the losers bracket is hidden.
func PrepareBracketData(snap view.Snapshot, share view.ShareState) BracketData {
	data := BracketData{
		Loading:      !snap.Done,
		PendingCount: len(snap.Pending),
		Dangling:     len(snap.Dangling),
	}
	if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	if snap.Layout == nil {
		return data
	}
	data.Width, data.Height = snap.Layout.Width, snap.Layout.Height

	hidden := make(map[int]bool)
	for _, box := range snap.Layout.Nodes {
		m, ok := snap.Graph.Node(box.ID)
		if !ok {
			continue
		}
		if m.IsLosersBracket && !share.FullBracket {
			hidden[box.ID] = true
			continue
		}

		n := NodeData{
			Box:       box,
			Match:     m,
			Team1:     teamLabel(m.Team1),
			Team2:     teamLabel(m.Team2),
			Highlight: share.Highlight == box.ID,
		}
		if r, ok := snap.PendingResult(box.ID); ok {
			n.Pending = &r
		}
		data.Nodes = append(data.Nodes, n)
	}

	for _, e := range snap.Layout.Edges {
		if hidden[e.Source] || hidden[e.Target] {
			continue
		}
		from, to, ok := snap.Layout.Anchors(e)
		if !ok {
			continue
		}
		data.Edges = append(data.Edges, EdgeData{From: from, To: to, Kind: e.Kind})
	}
	return data
}

func teamLabel(team *string) string {
	if team == nil {
		return placeholder
	}
	return *team
}
