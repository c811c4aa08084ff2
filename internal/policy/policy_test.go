package policy

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// fakeBoardStore records UpdateBoard calls. The other Store methods are
// never reached by the policy controller.
type fakeBoardStore struct {
	patches []*board.BoardPatch
}

func (f *fakeBoardStore) UpdateBoard(ctx context.Context, boardID string, patch *board.BoardPatch) error {
	f.patches = append(f.patches, patch)
	return nil
}

func testController(t *testing.T, st *fakeBoardStore) (*Controller, *scene.Graph) {
	t.Helper()

	g := scene.NewGraph(1920, 1080)
	logger := log.New(io.Discard, "", 0)

	if st == nil {
		return New("board-1", g, nil, logger), g
	}
	return New("board-1", g, st, logger), g
}

func TestApplyLocksMovement(t *testing.T) {
	c, g := testController(t, nil)

	a := scene.NewPost("a", "", "alice", 0, 0, false)
	b := scene.NewPost("b", "", "bob", 10, 10, false)
	g.Add(a)
	g.Add(b)

	rec := &board.BoardRecord{
		ID:          "board-1",
		Permissions: board.Permissions{AllowMoveAny: false},
	}
	c.Apply(context.Background(), rec)

	if !a.Locked || !b.Locked {
		t.Error("expected all nodes locked when movement is restricted")
	}

	rec.Permissions.AllowMoveAny = true
	c.Apply(context.Background(), rec)

	if a.Locked || b.Locked {
		t.Error("expected all nodes unlocked when movement is allowed")
	}
}

func TestApplyNilRecordIsNoOp(t *testing.T) {
	c, g := testController(t, nil)
	before := g.Renders()
	c.Apply(context.Background(), nil)
	if g.Renders() != before {
		t.Error("nil record should not touch the scene")
	}
}

func TestApplyBackgroundComputesPlacementOnce(t *testing.T) {
	st := &fakeBoardStore{}
	c, g := testController(t, st)

	rec := &board.BoardRecord{
		ID:          "board-1",
		Permissions: board.Permissions{AllowMoveAny: true},
		Background:  &board.Background{URL: "https://example.com/bg.png"},
	}
	c.Apply(context.Background(), rec)

	bg := g.Background()
	if bg == nil {
		t.Fatal("background not applied")
	}
	if bg.Placement.Width != 1920 || bg.Placement.Height != 1080 {
		t.Errorf("expected viewport-filling placement, got %+v", bg.Placement)
	}
	if len(st.patches) != 1 {
		t.Fatalf("expected one placement write-back, got %d", len(st.patches))
	}
	if st.patches[0].Background == nil || st.patches[0].Background.Placement.IsZero() {
		t.Errorf("write-back missing computed placement: %+v", st.patches[0])
	}

	// A record that already carries a placement is applied as-is.
	placed := &board.BoardRecord{
		ID:          "board-1",
		Permissions: board.Permissions{AllowMoveAny: true},
		Background: &board.Background{
			URL:       "https://example.com/bg.png",
			Placement: board.Placement{Left: 5, Top: 5, Width: 100, Height: 100, ScaleX: 1, ScaleY: 1},
		},
	}
	c.Apply(context.Background(), placed)

	if len(st.patches) != 1 {
		t.Errorf("placed background should not be written back, got %d writes", len(st.patches))
	}
	if g.Background().Placement.Left != 5 {
		t.Errorf("stored placement not applied: %+v", g.Background().Placement)
	}
}

func TestApplyCachesName(t *testing.T) {
	c, _ := testController(t, nil)

	rec := &board.BoardRecord{
		ID:          "board-1",
		Name:        "Retro",
		Permissions: board.Permissions{AllowMoveAny: true},
	}
	c.Apply(context.Background(), rec)

	if c.Name() != "Retro" {
		t.Errorf("Name = %q, want Retro", c.Name())
	}
}
