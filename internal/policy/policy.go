// Package policy applies replicated board-wide state to the local scene:
// movement permission, background image, and board name.
package policy

import (
	"context"
	"log"
	"os"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// BoardWriter is the slice of the record store the controller needs: it
// only ever writes back a computed background placement.
type BoardWriter interface {
	UpdateBoard(ctx context.Context, boardID string, patch *board.BoardPatch) error
}

// Controller applies board records to a scene graph. Apply is idempotent:
// re-applying the same record only costs redundant renders.
type Controller struct {
	boardID string
	graph   *scene.Graph
	store   BoardWriter
	logger  *log.Logger

	name string
}

// New creates a policy controller. If logger is nil, a default stderr
// logger is used. The store may be nil for read-only sessions; it is only
// needed to write back a computed background placement.
func New(boardID string, graph *scene.Graph, st BoardWriter, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "[policy] ", log.LstdFlags)
	}
	return &Controller{
		boardID: boardID,
		graph:   graph,
		store:   st,
		logger:  logger,
	}
}

// Apply pushes a board record's state onto the scene: every node's lock
// flag follows the movement permission, the background is placed, and the
// board name is cached for display.
func (c *Controller) Apply(ctx context.Context, rec *board.BoardRecord) {
	if rec == nil {
		return
	}

	c.LockMovement(!rec.Permissions.AllowMoveAny)

	if rec.Background != nil {
		c.applyBackground(ctx, rec.Background)
	}

	if rec.Name != "" && rec.Name != c.name {
		c.name = rec.Name
		c.logger.Printf("Board renamed: %s", rec.Name)
	}
}

// LockMovement sets every current node's lock flag in one pass.
func (c *Controller) LockMovement(locked bool) {
	for _, n := range c.graph.Objects() {
		n.Locked = locked
	}
	c.graph.Render()
}

// applyBackground places the background image. A record without a
// computed placement gets one spanning the viewport, and the placement is
// written back to the store so other clients reuse it instead of each
// computing their own.
func (c *Controller) applyBackground(ctx context.Context, bg *board.Background) {
	placed := *bg
	if placed.Placement.IsZero() {
		placed.Placement = FillViewport(c.graph.Width(), c.graph.Height())
		if c.store != nil {
			patch := &board.BoardPatch{Background: &placed}
			if err := c.store.UpdateBoard(ctx, c.boardID, patch); err != nil {
				c.logger.Printf("Warning: failed to store background placement: %v", err)
			}
		}
	}
	c.graph.SetBackground(&placed)
}

// Name returns the last applied board name.
func (c *Controller) Name() string {
	return c.name
}

// FillViewport computes a placement stretching an image across the whole
// viewport. Image dimensions are unknown to a headless session, so the
// scale factors stay at 1 and the extents carry the stretch.
func FillViewport(width, height float64) board.Placement {
	return board.Placement{
		Left:   0,
		Top:    0,
		Width:  width,
		Height: height,
		ScaleX: 1,
		ScaleY: 1,
	}
}
