package sync

import (
	"context"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// The reconciler: merges an inbound record into the local scene graph.
// Tombstones remove, known IDs update, unknown IDs insert. Applying the
// same record twice yields the same local state as applying it once.

// reconcile applies one inbound post record. Malformed records are
// dropped with a diagnostic; one bad record never blocks the stream.
func (e *Engine) reconcile(ctx context.Context, rec *board.PostRecord) {
	if rec == nil || rec.ID == "" {
		e.logger.Printf("Warning: dropping record without ID")
		return
	}

	// Tombstoned IDs are terminal: neither updates nor inserts may
	// resurrect them.
	if e.tombstones[rec.ID] && !rec.Removed {
		return
	}

	if rec.Removed {
		e.reconcileTombstone(rec.ID)
		return
	}

	if n := e.graph.NodeByID(rec.ID); n != nil {
		if IsTombstoned(n) {
			return
		}
		e.reconcileUpdate(rec)
		return
	}

	e.reconcileInsert(rec)
}

// reconcileTombstone removes every node carrying the ID. The nodes are
// marked removed before leaving the scene so the dispatcher recognizes
// the removal as already announced.
func (e *Engine) reconcileTombstone(postID string) {
	e.tombstones[postID] = true
	for {
		n := e.graph.NodeByID(postID)
		if n == nil {
			return
		}
		n.Removed = true
		e.graph.Remove(n)
	}
}

// reconcileUpdate merges an inbound record onto the existing node. Text
// changes re-render the glyph layout first; then position and the view
// property bag are overwritten wholesale from the record. Last writer
// wins per field group: there is no version clock, so truly concurrent
// edits to the same group can lose one side. Accepted limitation.
func (e *Engine) reconcileUpdate(rec *board.PostRecord) {
	n := e.graph.NodeByID(rec.ID)

	views, err := e.decodeRecord(rec)
	if err != nil {
		return
	}
	v := views[0]

	if rec.Title != n.Title || rec.Description != n.Desc {
		n.SetText(rec.Title, rec.Description)
	}

	n.Left = v.Left
	n.Top = v.Top
	n.ScaleX = v.ScaleX
	n.ScaleY = v.ScaleY
	if v.Name != "" {
		n.Name = v.Name
	}
	if v.Author != "" {
		n.Author = v.Author
	}
	n.Extra = v.Extra

	e.graph.Render()
}

// reconcileInsert materializes an unseen record as scene nodes. Every
// decoded primitive carries the record's ID so the dispatcher recognizes
// all of them as already announced, and the batch renders once however
// many primitives one logical post decodes into.
func (e *Engine) reconcileInsert(rec *board.PostRecord) {
	views, err := e.decodeRecord(rec)
	if err != nil {
		return
	}

	locked := e.lockNewNodes()
	for _, v := range views {
		v.PostID = rec.ID
		v.Removed = false
		v.Locked = locked
		if v.Title == "" {
			v.Title = rec.Title
		}
		if v.Desc == "" {
			v.Desc = rec.Description
		}
	}

	e.graph.AddBatch(views)
}

// decodeRecord parses a record's view blob, logging and dropping
// malformed payloads.
func (e *Engine) decodeRecord(rec *board.PostRecord) ([]*scene.Node, error) {
	views, err := scene.DecodeView(rec.SerializedView)
	if err != nil {
		e.logger.Printf("Warning: dropping malformed record %s: %v", rec.ID, err)
		return nil, err
	}
	return views, nil
}
