package scene

import (
	"testing"
)

func TestGraphAddFiresHandlers(t *testing.T) {
	g := NewGraph(1920, 1080)

	var added []*Node
	g.OnAdded(func(n *Node) { added = append(added, n) })

	n := NewPost("Hello", "", "alice", 100, 200, false)
	g.Add(n)

	if len(added) != 1 || added[0] != n {
		t.Fatalf("expected added handler to fire once with the node, got %d calls", len(added))
	}
	if g.Renders() != 1 {
		t.Errorf("expected one render after Add, got %d", g.Renders())
	}
}

func TestGraphAddBatchRendersOnce(t *testing.T) {
	g := NewGraph(1920, 1080)

	nodes := []*Node{
		NewPost("a", "", "alice", 0, 0, false),
		NewPost("b", "", "alice", 10, 10, false),
		NewPost("c", "", "alice", 20, 20, false),
	}
	g.AddBatch(nodes)

	if g.Renders() != 1 {
		t.Errorf("expected one render for a batch add, got %d", g.Renders())
	}
	if len(g.Objects()) != 3 {
		t.Errorf("expected 3 nodes on graph, got %d", len(g.Objects()))
	}
}

func TestGraphRemove(t *testing.T) {
	g := NewGraph(1920, 1080)

	var removed []*Node
	g.OnRemoved(func(n *Node) { removed = append(removed, n) })

	n := NewPost("Hello", "", "alice", 0, 0, false)
	g.Add(n)
	g.Remove(n)

	if len(removed) != 1 {
		t.Fatalf("expected removed handler to fire once, got %d calls", len(removed))
	}
	if len(g.Objects()) != 0 {
		t.Errorf("expected empty graph after remove, got %d nodes", len(g.Objects()))
	}

	// Removing again is a no-op.
	g.Remove(n)
	if len(removed) != 1 {
		t.Errorf("expected repeat remove to be a no-op, handler fired %d times", len(removed))
	}
}

func TestGraphMoveLockedNodeSwallowed(t *testing.T) {
	g := NewGraph(1920, 1080)

	moves := 0
	g.OnMoving(func(n *Node, p Point) { moves++ })

	n := NewPost("Hello", "", "alice", 0, 0, true)
	g.Add(n)
	g.Move(n, Point{X: 500, Y: 500})

	if moves != 0 {
		t.Errorf("expected locked node drag to be swallowed, handler fired %d times", moves)
	}

	n.Locked = false
	g.Move(n, Point{X: 500, Y: 500})
	if moves != 1 {
		t.Errorf("expected unlocked node drag to fire handler, got %d calls", moves)
	}

	n.Removed = true
	g.Move(n, Point{X: 600, Y: 600})
	if moves != 1 {
		t.Errorf("expected removed node drag to be swallowed, handler fired %d times", moves)
	}
}

func TestGraphNodeByID(t *testing.T) {
	g := NewGraph(1920, 1080)

	n := NewPost("Hello", "", "alice", 0, 0, false)
	n.PostID = "1700000000000-alice"
	g.Add(n)

	if got := g.NodeByID("1700000000000-alice"); got != n {
		t.Errorf("expected lookup by ID to return the node, got %v", got)
	}
	if got := g.NodeByID("missing"); got != nil {
		t.Errorf("expected lookup of unknown ID to return nil, got %v", got)
	}
	if got := g.NodeByID(""); got != nil {
		t.Errorf("expected lookup of empty ID to return nil, got %v", got)
	}
}

func TestNodeTextLayout(t *testing.T) {
	n := NewPost("Hi", "", "alice", 0, 0, false)
	shortW, shortH := n.Width, n.Height

	n.SetText("A much longer title that should widen the post", "")
	if n.Width <= shortW {
		t.Errorf("expected longer title to widen the node: %v <= %v", n.Width, shortW)
	}

	n.SetText("Hi", "a description long enough to wrap onto several lines of the post body")
	if n.Height <= shortH {
		t.Errorf("expected description to grow the node: %v <= %v", n.Height, shortH)
	}
}

func TestNodeScaledExtents(t *testing.T) {
	n := &Node{Width: 100, Height: 50, ScaleX: 2, ScaleY: 0.5}
	if got := n.ScaledWidth(); got != 200 {
		t.Errorf("ScaledWidth = %v, want 200", got)
	}
	if got := n.ScaledHeight(); got != 25 {
		t.Errorf("ScaledHeight = %v, want 25", got)
	}

	// Zero scale means unscaled, not invisible.
	n.ScaleX, n.ScaleY = 0, 0
	if got := n.ScaledWidth(); got != 100 {
		t.Errorf("ScaledWidth with zero scale = %v, want 100", got)
	}
}
