package scene

import (
	"github.com/sadmanca/ck-board/internal/board"
)

// Graph is an in-memory scene graph. It is not safe for concurrent use:
// like the canvas it stands in for, all mutations are expected to happen
// on one goroutine (the sync engine's command loop).
type Graph struct {
	width  float64
	height float64

	nodes      []*Node
	background *board.Background

	renders           int
	renderOnAddRemove bool

	onAdded   []func(*Node)
	onRemoved []func(*Node)
	onMoving  []func(*Node, Point)
}

// NewGraph creates a graph with the given viewport extents.
func NewGraph(width, height float64) *Graph {
	return &Graph{
		width:             width,
		height:            height,
		renderOnAddRemove: true,
	}
}

// Width returns the viewport width.
func (g *Graph) Width() float64 { return g.width }

// Height returns the viewport height.
func (g *Graph) Height() float64 { return g.height }

// OnAdded registers a handler fired after a node is added.
func (g *Graph) OnAdded(fn func(*Node)) { g.onAdded = append(g.onAdded, fn) }

// OnRemoved registers a handler fired after a node is removed.
func (g *Graph) OnRemoved(fn func(*Node)) { g.onRemoved = append(g.onRemoved, fn) }

// OnMoving registers a handler fired for every drag frame. The handler is
// responsible for updating the node's position from the pointer location.
func (g *Graph) OnMoving(fn func(*Node, Point)) { g.onMoving = append(g.onMoving, fn) }

// Add places a node on the graph and fires the added handlers.
func (g *Graph) Add(n *Node) {
	g.nodes = append(g.nodes, n)
	for _, fn := range g.onAdded {
		fn(n)
	}
	if g.renderOnAddRemove {
		g.Render()
	}
}

// AddBatch adds several nodes with a single re-render at the end.
// Used when one logical entity decodes into multiple primitives.
func (g *Graph) AddBatch(nodes []*Node) {
	orig := g.renderOnAddRemove
	g.renderOnAddRemove = false
	for _, n := range nodes {
		g.Add(n)
	}
	g.renderOnAddRemove = orig
	g.Render()
}

// Remove takes a node off the graph and fires the removed handlers.
// Removing a node that is not on the graph is a no-op.
func (g *Graph) Remove(n *Node) {
	for i, cur := range g.nodes {
		if cur == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			for _, fn := range g.onRemoved {
				fn(n)
			}
			if g.renderOnAddRemove {
				g.Render()
			}
			return
		}
	}
}

// Move reports a drag frame for a node at the given pointer location.
// Locked nodes do not move; the frame is swallowed before any handler
// sees it, mirroring how a canvas ignores drags on locked objects.
func (g *Graph) Move(n *Node, pointer Point) {
	if n.Locked || n.Removed {
		return
	}
	for _, fn := range g.onMoving {
		fn(n, pointer)
	}
}

// NodeByID returns the node carrying the given post ID, or nil.
func (g *Graph) NodeByID(postID string) *Node {
	if postID == "" {
		return nil
	}
	for _, n := range g.nodes {
		if n.PostID == postID {
			return n
		}
	}
	return nil
}

// Objects returns the current visible nodes in insertion order.
func (g *Graph) Objects() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// SetBackground applies a background image and re-renders.
func (g *Graph) SetBackground(bg *board.Background) {
	g.background = bg
	g.Render()
}

// Background returns the current background, or nil.
func (g *Graph) Background() *board.Background {
	return g.background
}

// Render flushes the scene to the surface. The in-memory graph just
// counts renders so tests can assert batching behavior.
func (g *Graph) Render() {
	g.renders++
}

// Renders returns how many times the scene has been rendered.
func (g *Graph) Renders() int {
	return g.renders
}
