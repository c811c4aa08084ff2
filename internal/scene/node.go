// Package scene provides the rendering-surface contract the sync engine
// drives: a 2D graph of positioned nodes with add/remove/move events.
//
// The engine only consumes the event hooks and issues add/remove/render
// commands; a real deployment would back this with an actual canvas
// library, while tests and the headless client use the in-memory Graph.
package scene

import (
	"encoding/json"
)

// Point is a canvas coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single drawable object on the scene graph.
//
// PostID correlates the node with its replicated record; it is empty for
// a node the local user just placed and is assigned exactly once by the
// sync engine. Removed is the local tombstone flag and is terminal.
type Node struct {
	PostID string
	Name   string // "post" for post groups; primitives carry their shape name
	Author string

	Title string
	Desc  string

	Left   float64
	Top    float64
	Width  float64
	Height float64
	ScaleX float64
	ScaleY float64

	// Locked blocks movement; set by the board policy controller.
	Locked bool

	// Removed marks a tombstoned node. Never cleared once set.
	Removed bool

	// Extra holds view properties the sync core does not interpret
	// (color, shape, font metrics). Preserved verbatim by the codec.
	Extra map[string]json.RawMessage
}

// ScaledWidth returns the node's rendered width.
func (n *Node) ScaledWidth() float64 {
	if n.ScaleX == 0 {
		return n.Width
	}
	return n.Width * n.ScaleX
}

// ScaledHeight returns the node's rendered height.
func (n *Node) ScaledHeight() float64 {
	if n.ScaleY == 0 {
		return n.Height
	}
	return n.Height * n.ScaleY
}

// SetText updates the node's text content and re-lays-out the glyphs.
// Title and description are baked into the rendered layout, so a text
// change is a structural update, not just a field write.
func (n *Node) SetText(title, desc string) {
	n.Title = title
	n.Desc = desc
	n.layoutText()
}

// layoutText recomputes the node's extents from its text content.
// The in-memory surface approximates what a canvas text engine does:
// wider titles widen the post, description lines grow it downward.
func (n *Node) layoutText() {
	const (
		minWidth   = 120.0
		charWidth  = 7.0
		lineHeight = 18.0
		padding    = 20.0
	)
	w := float64(len(n.Title))*charWidth + padding
	if w < minWidth {
		w = minWidth
	}
	h := lineHeight + padding
	if n.Desc != "" {
		lines := 1 + len(n.Desc)/28
		h += float64(lines) * lineHeight
	}
	n.Width = w
	n.Height = h
}

// NewPost builds a post node ready to be added to a graph.
func NewPost(title, desc, author string, left, top float64, locked bool) *Node {
	n := &Node{
		Name:   "post",
		Author: author,
		Left:   left,
		Top:    top,
		ScaleX: 1,
		ScaleY: 1,
		Locked: locked,
	}
	n.SetText(title, desc)
	return n
}
