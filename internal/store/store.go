// Package store defines the narrow backing-store contract the sync engine
// requires, plus the SQLite-backed implementation used by the relay server
// and by single-process sessions.
package store

import (
	"context"

	"github.com/sadmanca/ck-board/internal/board"
)

// Store is the keyed record store the sync engine talks to.
//
// Writes are asynchronous from the engine's point of view: the engine
// issues them fire-and-forget and never blocks the interaction path on
// their completion. Implementations deliver change notifications through
// the Subscribe callbacks; delivery order across different posts is not
// guaranteed, but notifications for a single post preserve write order.
//
// Callbacks may be invoked from any goroutine. Subscribers must not call
// back into the store from inside a callback.
type Store interface {
	// CreatePost appends a new post record and returns its storage key.
	// The storage key is independent of the record's post ID.
	CreatePost(ctx context.Context, rec *board.PostRecord) (string, error)

	// UpdatePost merges a partial record into every stored record whose
	// post ID matches. Matching nothing is not an error.
	UpdatePost(ctx context.Context, postID string, patch *board.PostPatch) error

	// DeletePost removes every stored record whose post ID matches.
	// Returns nil if nothing matched (idempotent).
	DeletePost(ctx context.Context, postID string) error

	// GetAllPosts returns a snapshot of all live records for a board,
	// for initial load.
	GetAllPosts(ctx context.Context, boardID string) ([]*board.PostRecord, error)

	// DeleteAllPosts wipes a board's post collection.
	DeleteAllPosts(ctx context.Context, boardID string) error

	// GetBoard returns the replicated board record, or (nil, nil) if the
	// board has never been written.
	GetBoard(ctx context.Context, boardID string) (*board.BoardRecord, error)

	// UpdateBoard merges a partial board record, creating the board
	// record if it does not exist yet.
	UpdateBoard(ctx context.Context, boardID string, patch *board.BoardPatch) error

	// SubscribeInserted registers a callback invoked with the full record
	// whenever a post record is created.
	SubscribeInserted(fn func(*board.PostRecord))

	// SubscribeChanged registers a callback invoked with the full record
	// whenever a post record is mutated or deleted. Deletions surface as
	// records with the Removed flag set.
	SubscribeChanged(fn func(*board.PostRecord))

	// SubscribeBoard registers a callback invoked with the full board
	// record whenever it changes.
	SubscribeBoard(fn func(*board.BoardRecord))

	// Close releases the store's resources.
	Close() error
}
