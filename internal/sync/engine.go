package sync

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/policy"
	"github.com/sadmanca/ck-board/internal/scene"
	"github.com/sadmanca/ck-board/internal/store"
)

// Mode is the local interaction mode. Pan mode locks every node so drags
// pan the viewport instead of moving posts; it is a pure view concern and
// is never replicated.
type Mode int

const (
	// ModeEdit allows selecting and moving posts.
	ModeEdit Mode = iota
	// ModePan locks posts so pointer drags pan the view.
	ModePan
)

// Config holds everything a sync session needs: the session context the
// engine threads through every operation instead of ambient globals.
type Config struct {
	// BoardID identifies the shared board.
	BoardID string

	// Username is the local user's identity; it becomes the owner
	// discriminator in post IDs. May be empty until identity resolution
	// completes, in which case mutating operations are disabled.
	Username string

	// Store is the backing record store shared across clients.
	Store store.Store

	// Graph is the local scene graph. Exclusively owned by the engine's
	// consumer goroutine once the engine is constructed.
	Graph *scene.Graph

	// QueueSize bounds the command queue (default 256).
	QueueSize int

	// Logger for engine activity (default: stderr logger).
	Logger *log.Logger
}

// Engine wires the local change dispatcher, the reconciler, and the
// board policy controller around one command queue.
type Engine struct {
	boardID  string
	username string
	st       store.Store
	graph    *scene.Graph
	logger   *log.Logger
	policy   *policy.Controller

	queue chan Command

	// Consumer-goroutine state. board is nil until the first board
	// record arrives; tombstones records every ID ever removed so a
	// tombstoned entity can never be resurrected.
	board      *board.BoardRecord
	tombstones map[string]bool
	mode       Mode
}

// New creates an engine, hooks the scene graph's event surface, and
// subscribes to the store's change streams. The engine does not consume
// commands until Run is called (or Drain, in synchronous use).
func New(cfg Config) (*Engine, error) {
	if cfg.BoardID == "" {
		return nil, fmt.Errorf("board ID cannot be empty")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	e := &Engine{
		boardID:    cfg.BoardID,
		username:   cfg.Username,
		st:         cfg.Store,
		graph:      cfg.Graph,
		logger:     cfg.Logger,
		policy:     policy.New(cfg.BoardID, cfg.Graph, cfg.Store, cfg.Logger),
		queue:      make(chan Command, cfg.QueueSize),
		tombstones: make(map[string]bool),
	}

	// The dispatcher observes every scene mutation, whoever caused it.
	e.graph.OnAdded(e.handleNodeAdded)
	e.graph.OnRemoved(e.handleNodeRemoved)
	e.graph.OnMoving(e.handleNodeMoving)

	// Inbound change streams enqueue; the consumer loop reconciles.
	e.st.SubscribeInserted(func(rec *board.PostRecord) {
		e.Enqueue(Command{Kind: classifyRemote(rec, true), Record: rec})
	})
	e.st.SubscribeChanged(func(rec *board.PostRecord) {
		e.Enqueue(Command{Kind: classifyRemote(rec, false), Record: rec})
	})
	e.st.SubscribeBoard(func(rec *board.BoardRecord) {
		e.Enqueue(Command{Kind: RemoteBoard, Board: rec})
	})

	return e, nil
}

// Load performs the initial board load: reconcile a full snapshot of the
// post collection, then fetch and apply the board record. Must run on the
// consumer goroutine (before Run, or from within it).
func (e *Engine) Load(ctx context.Context) error {
	posts, err := e.st.GetAllPosts(ctx, e.boardID)
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}
	for _, rec := range posts {
		e.reconcile(ctx, rec)
	}

	rec, err := e.st.GetBoard(ctx, e.boardID)
	if err != nil {
		return fmt.Errorf("failed to load board: %w", err)
	}
	if rec != nil {
		e.applyBoard(ctx, rec)
	}

	e.logger.Printf("Board loaded: %d posts", len(posts))
	return nil
}

// Run drains the command queue until ctx is cancelled. This is the single
// consumer: every scene mutation happens on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-e.queue:
			e.Process(ctx, cmd)
		}
	}
}

// Enqueue adds a command to the queue without blocking. A full queue
// drops the command with a diagnostic; the client's view degrades to
// stale rather than wedging the producer.
func (e *Engine) Enqueue(cmd Command) {
	select {
	case e.queue <- cmd:
	default:
		e.logger.Printf("Warning: command queue full, dropping %s", cmd.Kind)
	}
}

// Drain synchronously processes everything currently queued. It lets
// single-threaded callers (and tests) run the engine without a consumer
// goroutine: enqueue, then drain.
func (e *Engine) Drain(ctx context.Context) {
	for {
		select {
		case cmd := <-e.queue:
			e.Process(ctx, cmd)
		default:
			return
		}
	}
}

// Process applies one command. It must only be called from the consumer
// goroutine.
func (e *Engine) Process(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case EntityAdded:
		if cmd.Node != nil {
			e.graph.Add(cmd.Node)
		}
	case EntityRemoved:
		if n := e.resolveNode(cmd); n != nil {
			e.graph.Remove(n)
		}
	case EntityMoved:
		if n := e.resolveNode(cmd); n != nil {
			e.graph.Move(n, cmd.Pointer)
		}
	case EntityEdited:
		e.editPost(ctx, cmd.PostID, cmd.Title, cmd.Desc)
	case RemoteInsert, RemoteUpdate, RemoteTombstone:
		e.reconcile(ctx, cmd.Record)
	case RemoteBoard:
		e.applyBoard(ctx, cmd.Board)
	default:
		e.logger.Printf("Warning: unknown command kind %d", cmd.Kind)
	}
}

// resolveNode returns the command's node, looking it up by post ID when
// the producer only knew the ID.
func (e *Engine) resolveNode(cmd Command) *scene.Node {
	if cmd.Node != nil {
		return cmd.Node
	}
	return e.graph.NodeByID(cmd.PostID)
}

// ready reports whether the session has enough context for mutating
// operations. Actions invoked before identity resolution are no-ops.
func (e *Engine) ready() bool {
	return e.username != ""
}

// Board returns the last applied board record, or nil before the first
// board state arrives.
func (e *Engine) Board() *board.BoardRecord {
	return e.board
}

// BoardName returns the display name from the last applied board state.
func (e *Engine) BoardName() string {
	return e.policy.Name()
}

// lockNewNodes reports whether freshly inserted posts start locked under
// the current board policy.
func (e *Engine) lockNewNodes() bool {
	return e.board != nil && !e.board.Permissions.AllowMoveAny
}

// applyBoard caches the replicated board state and hands it to the policy
// controller.
func (e *Engine) applyBoard(ctx context.Context, rec *board.BoardRecord) {
	if rec == nil {
		return
	}
	e.board = rec
	e.policy.Apply(ctx, rec)
}

// CreatePost builds a post node and enqueues its placement. The outbound
// create is announced by the dispatcher once the node lands on the scene.
func (e *Engine) CreatePost(title, desc string, left, top float64) error {
	if !e.ready() {
		return fmt.Errorf("session has no user identity yet")
	}
	n := scene.NewPost(title, desc, e.username, left, top, e.lockNewNodes())
	e.Enqueue(Command{Kind: EntityAdded, Node: n})
	return nil
}

// RemovePost enqueues removal of the post with the given ID.
func (e *Engine) RemovePost(postID string) error {
	if !e.ready() {
		return fmt.Errorf("session has no user identity yet")
	}
	e.Enqueue(Command{Kind: EntityRemoved, PostID: postID})
	return nil
}

// MovePost enqueues one drag frame for the post with the given ID.
func (e *Engine) MovePost(postID string, pointer scene.Point) error {
	if !e.ready() {
		return fmt.Errorf("session has no user identity yet")
	}
	e.Enqueue(Command{Kind: EntityMoved, PostID: postID, Pointer: pointer})
	return nil
}

// EditPost enqueues a title/description rewrite for the post with the
// given ID.
func (e *Engine) EditPost(postID, title, desc string) error {
	if !e.ready() {
		return fmt.Errorf("session has no user identity yet")
	}
	e.Enqueue(Command{Kind: EntityEdited, PostID: postID, Title: title, Desc: desc})
	return nil
}

// SetBoardName writes a new board name through the store. The change is
// applied locally when the replicated record echoes back.
func (e *Engine) SetBoardName(ctx context.Context, name string) error {
	return e.st.UpdateBoard(ctx, e.boardID, &board.BoardPatch{Name: &name})
}

// SetAllowMoveAny writes the movement permission through the store.
func (e *Engine) SetAllowMoveAny(ctx context.Context, allow bool) error {
	return e.st.UpdateBoard(ctx, e.boardID, &board.BoardPatch{AllowMoveAny: &allow})
}

// SetBackground writes a background image URL through the store. The
// policy controller computes and stores the placement when the record
// echoes back without one.
func (e *Engine) SetBackground(ctx context.Context, url string) error {
	bg := &board.Background{URL: url}
	return e.st.UpdateBoard(ctx, e.boardID, &board.BoardPatch{Background: bg})
}

// SetMode switches the local interaction mode. Pan mode locks every node;
// edit mode restores the replicated movement policy.
func (e *Engine) SetMode(mode Mode) {
	e.mode = mode
	switch mode {
	case ModePan:
		e.policy.LockMovement(true)
	case ModeEdit:
		e.policy.LockMovement(e.lockNewNodes())
	}
}

// CurrentMode returns the local interaction mode.
func (e *Engine) CurrentMode() Mode {
	return e.mode
}
