// Package graph turns a flat set of bracket matches into a directed graph of
// winner and loser progression. Nodes are stored in an arena ordered by match
// number and edges reference nodes by match number only, so a refetched match
// set can replace the graph wholesale without any shared object references.
package graph

import (
	"slices"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
)

type EdgeKind string

const (
	EdgeWinner EdgeKind = "winner"
	EdgeLoser  EdgeKind = "loser"
	// A winner edge leaving a losers bracket match.
	EdgeRedemption EdgeKind = "redemption"
)

type Edge struct {
	Source int      `json:"source"`
	Target int      `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Primary reports whether the edge is on a winners path.
func (e Edge) Primary() bool {
	return e.Kind == EdgeWinner || e.Kind == EdgeRedemption
}

type Graph struct {
	nodes []bracket.Match
	index map[int]int
	edges []Edge
	// outgoing edge indices, by arena position of the source
	out [][]int
}

// Build is pure: it never mutates the input and returns a fresh graph. Matches
// that reference a next match missing from the set keep their edge; the target
// is reported by Dangling until that match shows up.
func Build(matches []bracket.Match) *Graph {
	nodes := make([]bracket.Match, 0, len(matches))
	seen := make(map[int]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.MatchNumber]; ok {
			continue
		}
		seen[m.MatchNumber] = struct{}{}
		nodes = append(nodes, m)
	}
	slices.SortFunc(nodes, func(a, b bracket.Match) int {
		return a.MatchNumber - b.MatchNumber
	})

	g := &Graph{
		nodes: nodes,
		index: make(map[int]int, len(nodes)),
		out:   make([][]int, len(nodes)),
	}
	for i, m := range nodes {
		g.index[m.MatchNumber] = i
	}

	for i, m := range nodes {
		if m.NextMatchWinner != nil {
			kind := EdgeWinner
			if m.IsLosersBracket {
				kind = EdgeRedemption
			}
			g.addEdge(i, Edge{Source: m.MatchNumber, Target: *m.NextMatchWinner, Kind: kind})
		}
		if m.NextMatchLoser != nil {
			g.addEdge(i, Edge{Source: m.MatchNumber, Target: *m.NextMatchLoser, Kind: EdgeLoser})
		}
	}

	return g
}

func (g *Graph) addEdge(source int, e Edge) {
	g.out[source] = append(g.out[source], len(g.edges))
	g.edges = append(g.edges, e)
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the matches ordered by match number.
func (g *Graph) Nodes() []bracket.Match {
	return slices.Clone(g.nodes)
}

func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

func (g *Graph) Node(id int) (bracket.Match, bool) {
	i, ok := g.index[id]
	if !ok {
		return bracket.Match{}, false
	}
	return g.nodes[i], true
}

func (g *Graph) Has(id int) bool {
	_, ok := g.index[id]
	return ok
}

func (g *Graph) Out(id int) []Edge {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(g.out[i]))
	for _, ei := range g.out[i] {
		out = append(out, g.edges[ei])
	}
	return out
}

// Dangling lists edges whose target is not in the graph.
func (g *Graph) Dangling() []Edge {
	var dangling []Edge
	for _, e := range g.edges {
		if !g.Has(e.Target) {
			dangling = append(dangling, e)
		}
	}
	return dangling
}
