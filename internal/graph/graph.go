// Package graph provides a directed multigraph stored as an arena of vertex
// and edge slots addressed by integer handle. Iteration order always follows
// insertion order so that every algorithm built on it is deterministic.
package graph

import (
	"edfi-dms/internal/domain"
)

// Edge is a directed dependency: Source must be loaded before Target.
type Edge[K comparable] struct {
	Source   K
	Target   K
	Required bool
	Label    string
}

// IsSelf reports whether the edge starts and ends at the same vertex.
func (e Edge[K]) IsSelf() bool { return e.Source == e.Target }

type vertexSlot[K comparable, V any] struct {
	key   K
	value V
	out   []int
	in    []int
	alive bool
}

type edgeSlot[K comparable] struct {
	edge  Edge[K]
	src   int
	dst   int
	alive bool
}

// Graph is a directed graph keyed by K carrying a value V per vertex.
// The zero value is not usable; call New.
type Graph[K comparable, V any] struct {
	vertices []vertexSlot[K, V]
	edges    []edgeSlot[K]
	index    map[K]int
	order    int
	size     int
}

// New returns an empty graph.
func New[K comparable, V any]() *Graph[K, V] {
	return &Graph[K, V]{index: make(map[K]int)}
}

// Order returns the number of vertices.
func (g *Graph[K, V]) Order() int { return g.order }

// Size returns the number of edges.
func (g *Graph[K, V]) Size() int { return g.size }

// AddVertex inserts a vertex. A key may only be present once.
func (g *Graph[K, V]) AddVertex(key K, value V) error {
	if _, ok := g.index[key]; ok {
		return domain.ErrConflict("vertex %v already exists", key)
	}
	g.index[key] = len(g.vertices)
	g.vertices = append(g.vertices, vertexSlot[K, V]{key: key, value: value, alive: true})
	g.order++
	return nil
}

// HasVertex reports whether key is present.
func (g *Graph[K, V]) HasVertex(key K) bool {
	_, ok := g.index[key]
	return ok
}

// Vertex returns the value stored for key.
func (g *Graph[K, V]) Vertex(key K) (V, bool) {
	h, ok := g.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return g.vertices[h].value, true
}

// Vertices returns every vertex key in insertion order.
func (g *Graph[K, V]) Vertices() []K {
	keys := make([]K, 0, g.order)
	for i := range g.vertices {
		if g.vertices[i].alive {
			keys = append(keys, g.vertices[i].key)
		}
	}
	return keys
}

// RemoveVertex deletes a vertex together with every edge touching it.
func (g *Graph[K, V]) RemoveVertex(key K) bool {
	h, ok := g.index[key]
	if !ok {
		return false
	}
	v := &g.vertices[h]
	for _, e := range append(append([]int(nil), v.out...), v.in...) {
		g.removeEdgeHandle(e)
	}
	var zero V
	v.value = zero
	v.alive = false
	v.out, v.in = nil, nil
	delete(g.index, key)
	g.order--
	return true
}

// AddEdge inserts e. Both endpoints must already exist. An edge with the same
// source, target and label as an existing one is merged into it, and the
// merged edge is required if either was.
func (g *Graph[K, V]) AddEdge(e Edge[K]) error {
	src, ok := g.index[e.Source]
	if !ok {
		return domain.ErrNotFound("edge source %v not found", e.Source)
	}
	dst, ok := g.index[e.Target]
	if !ok {
		return domain.ErrNotFound("edge target %v not found", e.Target)
	}
	if h, ok := g.findEdge(src, dst, e.Label); ok {
		g.edges[h].edge.Required = g.edges[h].edge.Required || e.Required
		return nil
	}
	h := len(g.edges)
	g.edges = append(g.edges, edgeSlot[K]{edge: e, src: src, dst: dst, alive: true})
	g.vertices[src].out = append(g.vertices[src].out, h)
	g.vertices[dst].in = append(g.vertices[dst].in, h)
	g.size++
	return nil
}

// HasEdge reports whether any edge runs from source to target.
func (g *Graph[K, V]) HasEdge(source, target K) bool {
	src, ok := g.index[source]
	if !ok {
		return false
	}
	dst, ok := g.index[target]
	if !ok {
		return false
	}
	for _, h := range g.vertices[src].out {
		if g.edges[h].dst == dst {
			return true
		}
	}
	return false
}

// RemoveEdge deletes the edge matching e's source, target and label.
func (g *Graph[K, V]) RemoveEdge(e Edge[K]) bool {
	src, ok := g.index[e.Source]
	if !ok {
		return false
	}
	dst, ok := g.index[e.Target]
	if !ok {
		return false
	}
	h, ok := g.findEdge(src, dst, e.Label)
	if !ok {
		return false
	}
	g.removeEdgeHandle(h)
	return true
}

// Edges returns every edge in insertion order.
func (g *Graph[K, V]) Edges() []Edge[K] {
	out := make([]Edge[K], 0, g.size)
	for i := range g.edges {
		if g.edges[i].alive {
			out = append(out, g.edges[i].edge)
		}
	}
	return out
}

// OutEdges returns the edges leaving key in insertion order.
func (g *Graph[K, V]) OutEdges(key K) []Edge[K] {
	h, ok := g.index[key]
	if !ok {
		return nil
	}
	return g.collect(g.vertices[h].out)
}

// InEdges returns the edges entering key in insertion order.
func (g *Graph[K, V]) InEdges(key K) []Edge[K] {
	h, ok := g.index[key]
	if !ok {
		return nil
	}
	return g.collect(g.vertices[h].in)
}

// Reachable reports whether target can be reached from source by following
// one or more edges.
func (g *Graph[K, V]) Reachable(source, target K) bool {
	src, ok := g.index[source]
	if !ok {
		return false
	}
	dst, ok := g.index[target]
	if !ok {
		return false
	}
	seen := make([]bool, len(g.vertices))
	stack := []int{src}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, h := range g.vertices[v].out {
			next := g.edges[h].dst
			if next == dst {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Clone returns an independent copy with the same insertion order. Dead
// slots are not carried over.
func (g *Graph[K, V]) Clone() *Graph[K, V] {
	c := &Graph[K, V]{
		vertices: make([]vertexSlot[K, V], 0, g.order),
		edges:    make([]edgeSlot[K], 0, g.size),
		index:    make(map[K]int, g.order),
	}
	for i := range g.vertices {
		v := g.vertices[i]
		if !v.alive {
			continue
		}
		c.index[v.key] = len(c.vertices)
		c.vertices = append(c.vertices, vertexSlot[K, V]{key: v.key, value: v.value, alive: true})
	}
	c.order = len(c.vertices)
	for i := range g.edges {
		e := g.edges[i]
		if !e.alive {
			continue
		}
		src, dst := c.index[e.edge.Source], c.index[e.edge.Target]
		h := len(c.edges)
		c.edges = append(c.edges, edgeSlot[K]{edge: e.edge, src: src, dst: dst, alive: true})
		c.vertices[src].out = append(c.vertices[src].out, h)
		c.vertices[dst].in = append(c.vertices[dst].in, h)
	}
	c.size = len(c.edges)
	return c
}

func (g *Graph[K, V]) findEdge(src, dst int, label string) (int, bool) {
	for _, h := range g.vertices[src].out {
		if g.edges[h].dst == dst && g.edges[h].edge.Label == label {
			return h, true
		}
	}
	return 0, false
}

func (g *Graph[K, V]) collect(handles []int) []Edge[K] {
	out := make([]Edge[K], len(handles))
	for i, h := range handles {
		out[i] = g.edges[h].edge
	}
	return out
}

func (g *Graph[K, V]) removeEdgeHandle(h int) {
	e := &g.edges[h]
	if !e.alive {
		return
	}
	e.alive = false
	g.vertices[e.src].out = without(g.vertices[e.src].out, h)
	g.vertices[e.dst].in = without(g.vertices[e.dst].in, h)
	g.size--
}

func without(handles []int, h int) []int {
	for i, x := range handles {
		if x == h {
			return append(handles[:i:i], handles[i+1:]...)
		}
	}
	return handles
}
