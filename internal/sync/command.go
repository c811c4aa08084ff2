// Package sync implements the synchronization engine that keeps a local
// scene graph consistent with the shared record store.
//
// All mutations flow through one command queue drained by a single
// consumer: local interactions (add, remove, move, edit) and inbound
// remote records (insert, update, tombstone, board state) both enqueue,
// and the consumer applies them in arrival order. The scene graph is
// therefore only ever touched from that one goroutine and needs no
// locking of its own.
package sync

import (
	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/scene"
)

// Kind identifies a command variant.
type Kind int

const (
	// EntityAdded places a node on the scene (a local add interaction).
	EntityAdded Kind = iota
	// EntityRemoved takes a node off the scene.
	EntityRemoved
	// EntityMoved reports one drag frame with the pointer location.
	EntityMoved
	// EntityEdited rewrites a post's title and description.
	EntityEdited
	// RemoteInsert carries a record that appeared in the store.
	RemoteInsert
	// RemoteUpdate carries a record that changed in the store.
	RemoteUpdate
	// RemoteTombstone carries a record whose removed flag is set.
	RemoteTombstone
	// RemoteBoard carries replicated board-wide state.
	RemoteBoard
)

// String returns a human-readable representation of the command kind.
func (k Kind) String() string {
	switch k {
	case EntityAdded:
		return "entity_added"
	case EntityRemoved:
		return "entity_removed"
	case EntityMoved:
		return "entity_moved"
	case EntityEdited:
		return "entity_edited"
	case RemoteInsert:
		return "remote_insert"
	case RemoteUpdate:
		return "remote_update"
	case RemoteTombstone:
		return "remote_tombstone"
	case RemoteBoard:
		return "remote_board"
	default:
		return "unknown"
	}
}

// Command is one unit of work for the engine's consumer loop.
// Which fields are meaningful depends on Kind.
type Command struct {
	Kind Kind

	// Node is the subject of local entity commands. When nil, PostID is
	// used to look the node up on the consumer goroutine.
	Node   *scene.Node
	PostID string

	// Pointer is the drag location for EntityMoved.
	Pointer scene.Point

	// Title and Desc carry new text for EntityEdited.
	Title string
	Desc  string

	// Record is the inbound record for Remote* post commands.
	Record *board.PostRecord

	// Board is the inbound record for RemoteBoard.
	Board *board.BoardRecord
}

// classifyRemote maps an inbound post record to its command kind.
// A record with the removed flag set is always a tombstone, whichever
// stream delivered it.
func classifyRemote(rec *board.PostRecord, inserted bool) Kind {
	if rec.Removed {
		return RemoteTombstone
	}
	if inserted {
		return RemoteInsert
	}
	return RemoteUpdate
}
