package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"edfi-dms/internal/domain"
)

const (
	white uint8 = iota
	gray
	black
)

// cycleFinder runs a depth-first search over the live vertices in insertion
// order, following out-edges in insertion order. stack holds the tree edges
// from the current root to the vertex being expanded.
type cycleFinder[K comparable, V any] struct {
	g      *Graph[K, V]
	state  []uint8
	stack  []int
	cycles [][]int
	first  bool
}

func (f *cycleFinder[K, V]) run() [][]int {
	f.state = make([]uint8, len(f.g.vertices))
	for v := range f.g.vertices {
		if !f.g.vertices[v].alive || f.state[v] != white {
			continue
		}
		if f.visit(v) {
			break
		}
	}
	return f.cycles
}

func (f *cycleFinder[K, V]) visit(v int) bool {
	f.state[v] = gray
	for _, h := range f.g.vertices[v].out {
		dst := f.g.edges[h].dst
		switch f.state[dst] {
		case gray:
			f.cycles = append(f.cycles, append(f.pathFrom(dst), h))
			if f.first {
				return true
			}
		case white:
			f.stack = append(f.stack, h)
			if f.visit(dst) {
				return true
			}
			f.stack = f.stack[:len(f.stack)-1]
		}
	}
	f.state[v] = black
	return false
}

// pathFrom copies the tree edges that lead from vertex v down to the top of
// the stack. v is always on the stack when this is called.
func (f *cycleFinder[K, V]) pathFrom(v int) []int {
	for i, h := range f.stack {
		if f.g.edges[h].src == v {
			return append([]int(nil), f.stack[i:]...)
		}
	}
	return nil
}

func (g *Graph[K, V]) cycleEdges(handles []int) []Edge[K] {
	return g.collect(handles)
}

// CyclePath renders a cycle as its vertex sequence, repeating the first
// vertex at the end.
func CyclePath[K comparable](cycle []Edge[K]) []string {
	if len(cycle) == 0 {
		return nil
	}
	path := make([]string, 0, len(cycle)+1)
	for _, e := range cycle {
		path = append(path, fmt.Sprint(e.Source))
	}
	return append(path, fmt.Sprint(cycle[len(cycle)-1].Target))
}

// FindCycle returns the first cycle met by the traversal, ordered from the
// vertex where it starts to the back edge that closes it.
func FindCycle[K comparable, V any](g *Graph[K, V]) ([]Edge[K], bool) {
	f := &cycleFinder[K, V]{g: g, first: true}
	cycles := f.run()
	if len(cycles) == 0 {
		return nil, false
	}
	return g.cycleEdges(cycles[0]), true
}

// Validate returns a *domain.NonAcyclicGraphError listing one cycle per back
// edge found, or nil when the graph is acyclic. Self edges count as cycles.
func Validate[K comparable, V any](g *Graph[K, V]) error {
	f := &cycleFinder[K, V]{g: g}
	cycles := f.run()
	if len(cycles) == 0 {
		return nil
	}
	err := &domain.NonAcyclicGraphError{Cycles: make([][]string, len(cycles))}
	for i, c := range cycles {
		err.Cycles[i] = CyclePath(g.cycleEdges(c))
	}
	return err
}

// BreakCycles removes edges from g until it is acyclic and returns them in
// removal order. Each round finds one cycle and removes a single edge from
// it: the back edge when isRemovable accepts it, otherwise the next accepted
// edge walking back toward the start of the cycle. Self edges are removed
// regardless of isRemovable. When a cycle has no removable edge the edges
// removed so far are returned with a *domain.NonAcyclicGraphError.
func BreakCycles[K comparable, V any](g *Graph[K, V], isRemovable func(Edge[K]) bool, logger *slog.Logger) ([]Edge[K], error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var removed []Edge[K]
	for {
		f := &cycleFinder[K, V]{g: g, first: true}
		cycles := f.run()
		if len(cycles) == 0 {
			break
		}
		handles := cycles[0]
		cycle := g.cycleEdges(handles)

		chosen := -1
		for i := len(handles) - 1; i >= 0; i-- {
			if cycle[i].IsSelf() || isRemovable(cycle[i]) {
				chosen = i
				break
			}
		}
		if chosen < 0 {
			return removed, &domain.NonAcyclicGraphError{Cycles: [][]string{CyclePath(cycle)}}
		}

		g.removeEdgeHandle(handles[chosen])
		removed = append(removed, cycle[chosen])
		logger.Debug("edge removed to break cycle",
			"source", fmt.Sprint(cycle[chosen].Source),
			"target", fmt.Sprint(cycle[chosen].Target),
			"cycle", strings.Join(CyclePath(cycle), " --> "))
	}
	if len(removed) > 0 {
		logger.Debug("cycles broken", "removed_edges", len(removed))
	}
	return removed, nil
}
