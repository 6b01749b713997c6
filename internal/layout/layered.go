package layout

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/AdamBeresnev/bracket-engine/internal/graph"
)

// Layered is a small Sugiyama style layout: rank assignment, crossing
// reduction by weighted barycenters, then coordinates. Ranks grow along x.
type Layered struct {
	RankSep float64
	NodeSep float64
	Sweeps  int
}

func NewLayered() *Layered {
	return &Layered{RankSep: 80, NodeSep: 24, Sweeps: 8}
}

type arc struct {
	to     int
	weight float64
}

type layeredGraph struct {
	nodes []InputNode
	preds [][]arc
	succs [][]arc
	rank  []int
	pos   []int
}

func (l *Layered) Layout(in Input) (map[int]Point, error) {
	lg, err := newLayeredGraph(in)
	if err != nil {
		return nil, err
	}

	order, err := lg.topoOrder()
	if err != nil {
		return nil, err
	}
	lg.assignRanks(order)
	layers := lg.orderLayers(l.Sweeps)
	return lg.coordinates(layers, l.RankSep, l.NodeSep), nil
}

func newLayeredGraph(in Input) (*layeredGraph, error) {
	nodes := slices.Clone(in.Nodes)
	slices.SortFunc(nodes, func(a, b InputNode) int { return a.ID - b.ID })

	index := make(map[int]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate layout node %d", n.ID)
		}
		index[n.ID] = i
	}

	lg := &layeredGraph{
		nodes: nodes,
		preds: make([][]arc, len(nodes)),
		succs: make([][]arc, len(nodes)),
		rank:  make([]int, len(nodes)),
		pos:   make([]int, len(nodes)),
	}
	for _, e := range in.Edges {
		s, ok1 := index[e.Source]
		t, ok2 := index[e.Target]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("layout edge %d -> %d references an unknown node", e.Source, e.Target)
		}
		if s == t {
			return nil, &graph.CycleError{Matches: []int{e.Source}}
		}
		lg.succs[s] = append(lg.succs[s], arc{to: t, weight: e.Weight})
		lg.preds[t] = append(lg.preds[t], arc{to: s, weight: e.Weight})
	}
	return lg, nil
}

// topoOrder is Kahn's algorithm, always releasing the lowest id first.
func (lg *layeredGraph) topoOrder() ([]int, error) {
	indegree := make([]int, len(lg.nodes))
	for v := range lg.nodes {
		indegree[v] = len(lg.preds[v])
	}

	var ready []int
	for v, d := range indegree {
		if d == 0 {
			ready = append(ready, v)
		}
	}

	order := make([]int, 0, len(lg.nodes))
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, a := range lg.succs[v] {
			indegree[a.to]--
			if indegree[a.to] == 0 {
				i, _ := slices.BinarySearch(ready, a.to)
				ready = slices.Insert(ready, i, a.to)
			}
		}
	}

	if len(order) != len(lg.nodes) {
		var stuck []int
		for v, d := range indegree {
			if d > 0 {
				stuck = append(stuck, lg.nodes[v].ID)
			}
		}
		return nil, &graph.CycleError{Matches: stuck}
	}
	return order, nil
}

// assignRanks starts from longest-path ranks and then slides each node
// between its neighbours towards whichever side carries more edge weight,
// so heavy winner edges end up spanning a single rank.
func (lg *layeredGraph) assignRanks(order []int) {
	for _, v := range order {
		for _, a := range lg.preds[v] {
			lg.rank[v] = max(lg.rank[v], lg.rank[a.to]+1)
		}
	}

	for range len(order) + 1 {
		changed := false
		for i := len(order) - 1; i >= 0; i-- {
			v := order[i]
			lo, hi := 0, math.MaxInt
			var inW, outW float64
			for _, a := range lg.preds[v] {
				lo = max(lo, lg.rank[a.to]+1)
				inW += a.weight
			}
			for _, a := range lg.succs[v] {
				hi = min(hi, lg.rank[a.to]-1)
				outW += a.weight
			}
			if hi == math.MaxInt {
				hi = lo
			}

			target := lg.rank[v]
			switch {
			case inW > outW:
				target = lo
			case outW > inW:
				target = hi
			}
			target = min(max(target, lo), hi)
			if target != lg.rank[v] {
				lg.rank[v] = target
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	minRank := math.MaxInt
	for _, r := range lg.rank {
		minRank = min(minRank, r)
	}
	for v := range lg.rank {
		lg.rank[v] -= minRank
	}
}

// orderLayers groups nodes by rank and reorders each rank by the weighted
// barycenter of its neighbours, alternating downward and upward sweeps.
func (lg *layeredGraph) orderLayers(sweeps int) [][]int {
	if len(lg.nodes) == 0 {
		return nil
	}
	maxRank := 0
	for _, r := range lg.rank {
		maxRank = max(maxRank, r)
	}
	layers := make([][]int, maxRank+1)
	for v := range lg.nodes {
		layers[lg.rank[v]] = append(layers[lg.rank[v]], v)
	}
	for _, layer := range layers {
		for i, v := range layer {
			lg.pos[v] = i
		}
	}

	for s := range sweeps {
		if s%2 == 0 {
			for r := 1; r <= maxRank; r++ {
				lg.reorder(layers[r], lg.preds)
			}
		} else {
			for r := maxRank - 1; r >= 0; r-- {
				lg.reorder(layers[r], lg.succs)
			}
		}
	}
	return layers
}

func (lg *layeredGraph) reorder(layer []int, neighbours [][]arc) {
	bary := make(map[int]float64, len(layer))
	for _, v := range layer {
		var sum, weight float64
		for _, a := range neighbours[v] {
			sum += a.weight * float64(lg.pos[a.to])
			weight += a.weight
		}
		if weight > 0 {
			bary[v] = sum / weight
		} else {
			bary[v] = float64(lg.pos[v])
		}
	}

	sort.SliceStable(layer, func(i, j int) bool {
		a, b := layer[i], layer[j]
		if bary[a] != bary[b] {
			return bary[a] < bary[b]
		}
		if lg.pos[a] != lg.pos[b] {
			return lg.pos[a] < lg.pos[b]
		}
		return lg.nodes[a].ID < lg.nodes[b].ID
	})
	for i, v := range layer {
		lg.pos[v] = i
	}
}

// coordinates places ranks side by side and stacks each rank top to bottom,
// pulling every node towards the weighted mean height of its predecessors
// without letting it overlap the node above.
func (lg *layeredGraph) coordinates(layers [][]int, rankSep, nodeSep float64) map[int]Point {
	centers := make(map[int]Point, len(lg.nodes))
	ys := make([]float64, len(lg.nodes))

	x := 0.0
	for _, layer := range layers {
		width := 0.0
		for _, v := range layer {
			width = max(width, lg.nodes[v].Width)
		}

		bottom := math.Inf(-1)
		for _, v := range layer {
			h := lg.nodes[v].Height
			minY := h / 2
			if !math.IsInf(bottom, -1) {
				minY = bottom + nodeSep + h/2
			}

			y := minY
			var sum, weight float64
			for _, a := range lg.preds[v] {
				sum += a.weight * ys[a.to]
				weight += a.weight
			}
			if weight > 0 {
				y = max(sum/weight, minY)
			}

			ys[v] = y
			bottom = y + h/2
			centers[lg.nodes[v].ID] = Point{X: x + width/2, Y: y}
		}

		x += width + rankSep
	}
	return centers
}
