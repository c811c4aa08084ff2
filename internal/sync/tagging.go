package sync

import (
	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// Entity tagging is the engine's sole loop-prevention mechanism. Inbound
// reconciliation mutates the scene through the same add/remove primitives
// the dispatcher observes; the dispatcher tells its own announcements
// apart from re-observations purely by these predicates.

// IsNewEntity reports whether a node has never been announced: it carries
// no post ID yet.
func IsNewEntity(n *scene.Node) bool {
	return n.PostID == ""
}

// IsTombstoned reports whether a node's removal has already been
// announced. Tombstoning is terminal.
func IsTombstoned(n *scene.Node) bool {
	return n.Removed
}

// AssignID gives a node its stable identity exactly once. Calling it on
// an already-tagged node returns the existing ID unchanged.
func AssignID(n *scene.Node, owner string) string {
	if n.PostID != "" {
		return n.PostID
	}
	n.PostID = board.NewPostID(owner)
	return n.PostID
}
