// Package server provides the websocket relay that lets multiple clients
// share one record store: client operations come in over the socket, are
// applied to the store, and every resulting change record fans out to all
// connected clients (including the originator, whose sync engine
// recognizes and suppresses its own echo).
package server

import (
	"encoding/json"
	"time"

	"github.com/sadmanca/ck-board/internal/board"
)

// MessageType identifies a server-to-client broadcast.
type MessageType string

const (
	// MessageTypePostInserted announces a freshly created post record.
	MessageTypePostInserted MessageType = "post_inserted"

	// MessageTypePostChanged announces a mutated or deleted post record.
	// Deletions carry the removed flag.
	MessageTypePostChanged MessageType = "post_changed"

	// MessageTypeBoardChanged announces replicated board state.
	MessageTypeBoardChanged MessageType = "board_changed"
)

// Message is one server-to-client broadcast frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// OpType identifies a client-to-server operation.
type OpType string

const (
	// OpCreatePost appends a new post record.
	OpCreatePost OpType = "create_post"

	// OpUpdatePost merges a partial record into matching posts.
	OpUpdatePost OpType = "update_post"

	// OpDeletePost removes matching post records.
	OpDeletePost OpType = "delete_post"

	// OpUpdateBoard merges a partial board record.
	OpUpdateBoard OpType = "update_board"

	// OpWipeBoard deletes every post on a board.
	OpWipeBoard OpType = "wipe_board"
)

// Op is one client-to-server operation frame. Which fields are set
// depends on the op type.
type Op struct {
	Op OpType `json:"op"`

	Record     *board.PostRecord `json:"record,omitempty"`
	PostID     string            `json:"post_id,omitempty"`
	PostPatch  *board.PostPatch  `json:"post_patch,omitempty"`
	BoardID    string            `json:"board_id,omitempty"`
	BoardPatch *board.BoardPatch `json:"board_patch,omitempty"`
}
