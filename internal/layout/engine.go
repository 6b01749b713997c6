// Package layout assigns every bracket node a non-overlapping box so that
// progression flows left to right. The engine owns sizing and edge weighting;
// the actual layering is delegated to a Primitive.
package layout

import (
	"fmt"

	"github.com/AdamBeresnev/bracket-engine/internal/graph"
)

const (
	DefaultWinnerWeight = 100.0
	DefaultLoserWeight  = 1.0
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type InputNode struct {
	ID     int
	Width  float64
	Height float64
}

type InputEdge struct {
	Source int
	Target int
	Weight float64
}

type Input struct {
	Nodes []InputNode
	Edges []InputEdge
}

// Primitive places nodes and returns their centers. Every edge in the input
// references nodes that are present in it.
type Primitive interface {
	Layout(in Input) (map[int]Point, error)
}

// NodeBox is a positioned node, anchored at its top-left corner.
type NodeBox struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	In     Side    `json:"in"`
	Out    Side    `json:"out"`
}

type Result struct {
	Nodes  []NodeBox    `json:"nodes"`
	Edges  []graph.Edge `json:"edges"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`

	index map[int]int
}

func (r *Result) Node(id int) (NodeBox, bool) {
	i, ok := r.index[id]
	if !ok {
		return NodeBox{}, false
	}
	return r.Nodes[i], true
}

// Anchors returns the outbound anchor of the edge source and the inbound
// anchor of its target. ok is false for dangling edges.
func (r *Result) Anchors(e graph.Edge) (from, to Point, ok bool) {
	src, ok1 := r.Node(e.Source)
	dst, ok2 := r.Node(e.Target)
	if !ok1 || !ok2 {
		return Point{}, Point{}, false
	}
	return src.anchor(src.Out), dst.anchor(dst.In), true
}

func (b NodeBox) anchor(side Side) Point {
	y := b.Y + b.Height/2
	if side == SideLeft {
		return Point{X: b.X, Y: y}
	}
	return Point{X: b.X + b.Width, Y: y}
}

type Engine struct {
	primitive    Primitive
	sizing       Sizing
	name         NameFunc
	winnerWeight float64
	loserWeight  float64
}

type Option func(*Engine)

func WithPrimitive(p Primitive) Option {
	return func(e *Engine) { e.primitive = p }
}

func WithSizing(s Sizing) Option {
	return func(e *Engine) { e.sizing = s }
}

// WithNameFunc sets how participant ids are turned into display names.
func WithNameFunc(fn NameFunc) Option {
	return func(e *Engine) { e.name = fn }
}

func WithWeights(winner, loser float64) Option {
	return func(e *Engine) {
		e.winnerWeight = winner
		e.loserWeight = loser
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		primitive:    NewLayered(),
		sizing:       DefaultSizing,
		name:         func(team string) string { return team },
		winnerWeight: DefaultWinnerWeight,
		loserWeight:  DefaultLoserWeight,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Layout is deterministic for a fixed graph and fixed sizing inputs.
func (e *Engine) Layout(g *graph.Graph) (*Result, error) {
	nodes := g.Nodes()
	edges := g.Edges()

	in := Input{
		Nodes: make([]InputNode, 0, len(nodes)),
		Edges: make([]InputEdge, 0, len(edges)),
	}
	for _, m := range nodes {
		w, h := e.sizing.Size(m, e.name)
		in.Nodes = append(in.Nodes, InputNode{ID: m.MatchNumber, Width: w, Height: h})
	}
	for _, edge := range edges {
		if !g.Has(edge.Target) {
			continue
		}
		in.Edges = append(in.Edges, InputEdge{
			Source: edge.Source,
			Target: edge.Target,
			Weight: e.weight(edge),
		})
	}

	centers, err := e.primitive.Layout(in)
	if err != nil {
		return nil, fmt.Errorf("layout bracket: %w", err)
	}

	res := &Result{
		Nodes: make([]NodeBox, 0, len(in.Nodes)),
		Edges: edges,
		index: make(map[int]int, len(in.Nodes)),
	}
	for _, n := range in.Nodes {
		c, ok := centers[n.ID]
		if !ok {
			return nil, fmt.Errorf("layout bracket: no position for match %d", n.ID)
		}
		box := NodeBox{
			ID:     n.ID,
			X:      c.X - n.Width/2,
			Y:      c.Y - n.Height/2,
			Width:  n.Width,
			Height: n.Height,
			In:     SideLeft,
			Out:    SideRight,
		}
		res.index[n.ID] = len(res.Nodes)
		res.Nodes = append(res.Nodes, box)
		res.Width = max(res.Width, box.X+box.Width)
		res.Height = max(res.Height, box.Y+box.Height)
	}

	return res, nil
}

func (e *Engine) weight(edge graph.Edge) float64 {
	if edge.Primary() {
		return e.winnerWeight
	}
	return e.loserWeight
}
