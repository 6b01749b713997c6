package graph

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var ErrCycle = errors.New("bracket progression contains a cycle")

// CycleError names the match numbers that take part in a progression cycle.
type CycleError struct {
	Matches []int
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.Matches))
	for i, id := range e.Matches {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf("%s: matches %s", ErrCycle, strings.Join(ids, ", "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Validate checks that winner and loser progression is acyclic. Dangling edges
// are ignored since they cannot close a cycle.
func (g *Graph) Validate() error {
	_, err := g.TopologicalOrder()
	return err
}

// TopologicalOrder returns match numbers so that every match precedes its
// dependents. Ties are broken by match number.
func (g *Graph) TopologicalOrder() ([]int, error) {
	dg := simple.NewDirectedGraph()
	for _, m := range g.nodes {
		dg.AddNode(simple.Node(m.MatchNumber))
	}
	for _, e := range g.edges {
		if !g.Has(e.Target) {
			continue
		}
		if e.Source == e.Target {
			// simple graphs reject self edges, and a self edge is a cycle anyway
			return nil, &CycleError{Matches: []int{e.Source}}
		}
		from, to := dg.Node(int64(e.Source)), dg.Node(int64(e.Target))
		if dg.HasEdgeFromTo(from.ID(), to.ID()) {
			continue
		}
		dg.SetEdge(dg.NewEdge(from, to))
	}

	sorted, err := topo.SortStabilized(dg, byID)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) && len(unorderable) > 0 {
			cycle := nodeIDs(unorderable[0])
			slices.Sort(cycle)
			return nil, &CycleError{Matches: cycle}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	return nodeIDs(sorted), nil
}

func byID(nodes []gonum.Node) {
	slices.SortFunc(nodes, func(a, b gonum.Node) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
}

func nodeIDs(nodes []gonum.Node) []int {
	ids := make([]int, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		ids = append(ids, int(n.ID()))
	}
	return ids
}
