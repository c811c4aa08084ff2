package sync

import (
	"context"
	"math"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// The local change dispatcher: observes scene mutations and decides, per
// event, whether to suppress them (re-observations of inbound state) or
// announce them through the store.
//
// Outbound operations are fire-and-forget: they never block the consumer
// loop on acknowledgement and are not retried on failure. A failed write
// degrades to a stale view for other clients, never to a crash here.
// They deliberately run inline on the consumer goroutine so a single
// post's writes reach the store in the order they happened; the store
// implementations are responsible for not blocking (the websocket client
// buffers sends, SQLite writes are local).
//
// Outbound operations carry context.Background(): once issued they are
// not abortable.

// handleNodeAdded reacts to a node landing on the scene. A node that
// already carries a post ID was added by the reconciler (or re-observed)
// and is not re-announced.
func (e *Engine) handleNodeAdded(n *scene.Node) {
	if !IsNewEntity(n) {
		return
	}
	if !e.ready() {
		e.logger.Printf("Warning: node added before identity resolution, not announced")
		return
	}

	AssignID(n, e.username)

	rec, err := e.recordFromNode(n)
	if err != nil {
		e.logger.Printf("Warning: failed to serialize post %s: %v", n.PostID, err)
		return
	}

	if _, err := e.st.CreatePost(context.Background(), rec); err != nil {
		e.logger.Printf("Warning: failed to announce post %s: %v", n.PostID, err)
	}
}

// handleNodeRemoved reacts to a node leaving the scene. An already
// tombstoned node was removed by the reconciler and stays quiet.
// Otherwise the removal is announced twice, matching the store's dual
// signal: a removed-flag update for live clients, then the store delete.
func (e *Engine) handleNodeRemoved(n *scene.Node) {
	if IsTombstoned(n) {
		return
	}
	if n.PostID == "" {
		return
	}

	n.Removed = true
	e.tombstones[n.PostID] = true

	blob, err := scene.EncodeNode(n)
	if err != nil {
		e.logger.Printf("Warning: failed to serialize tombstone for %s: %v", n.PostID, err)
	} else {
		removed := true
		patch := &board.PostPatch{Removed: &removed, SerializedView: &blob}
		if err := e.st.UpdatePost(context.Background(), n.PostID, patch); err != nil {
			e.logger.Printf("Warning: failed to announce removal of %s: %v", n.PostID, err)
		}
	}

	if err := e.st.DeletePost(context.Background(), n.PostID); err != nil {
		e.logger.Printf("Warning: failed to delete post %s: %v", n.PostID, err)
	}
}

// handleNodeMoving reacts to a drag frame: the node is re-centered under
// the pointer using its half extents, rendered, and the new view is
// announced. Frames for untagged nodes move locally but stay quiet.
func (e *Engine) handleNodeMoving(n *scene.Node, pointer scene.Point) {
	n.Left = math.Round(pointer.X - n.ScaledWidth()/2)
	n.Top = math.Round(pointer.Y - n.ScaledHeight()/2)
	e.graph.Render()

	if IsNewEntity(n) || IsTombstoned(n) {
		return
	}

	blob, err := scene.EncodeNode(n)
	if err != nil {
		e.logger.Printf("Warning: failed to serialize post %s: %v", n.PostID, err)
		return
	}

	patch := &board.PostPatch{SerializedView: &blob}
	if err := e.st.UpdatePost(context.Background(), n.PostID, patch); err != nil {
		e.logger.Printf("Warning: failed to announce move of %s: %v", n.PostID, err)
	}
}

// editPost rewrites a post's text, re-renders it, and announces the new
// title, description and view.
func (e *Engine) editPost(ctx context.Context, postID, title, desc string) {
	n := e.graph.NodeByID(postID)
	if n == nil || IsTombstoned(n) {
		e.logger.Printf("Warning: edit of unknown post %s ignored", postID)
		return
	}

	n.SetText(title, desc)
	e.graph.Render()

	blob, err := scene.EncodeNode(n)
	if err != nil {
		e.logger.Printf("Warning: failed to serialize post %s: %v", postID, err)
		return
	}

	patch := &board.PostPatch{
		Title:          &title,
		Description:    &desc,
		SerializedView: &blob,
	}
	if err := e.st.UpdatePost(ctx, postID, patch); err != nil {
		e.logger.Printf("Warning: failed to announce edit of %s: %v", postID, err)
	}
}

// recordFromNode serializes a node into its replicated record.
func (e *Engine) recordFromNode(n *scene.Node) (*board.PostRecord, error) {
	blob, err := scene.EncodeNode(n)
	if err != nil {
		return nil, err
	}
	return &board.PostRecord{
		ID:             n.PostID,
		OwnerID:        e.username,
		BoardID:        e.boardID,
		Title:          n.Title,
		Description:    n.Desc,
		Removed:        n.Removed,
		SerializedView: blob,
	}, nil
}
