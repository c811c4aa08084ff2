package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sadmanca/ck-board/internal/board"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLite is the Store implementation backed by an embedded SQLite
// database in WAL mode. Change notifications are delivered in-process,
// synchronously after each committed write, so a single post's
// notifications always arrive in write order.
type SQLite struct {
	conn *sql.DB
	path string

	subsMu     sync.RWMutex
	onInserted []func(*board.PostRecord)
	onChanged  []func(*board.PostRecord)
	onBoard    []func(*board.BoardRecord)
}

// Open creates a store at the given path, creating the file and parent
// directory if needed. The caller MUST call Close when done.
//
// Example:
//
//	st, err := store.Open(".ckboard/board.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &SQLite{
		conn: conn,
		path: path,
	}

	// WAL mode for concurrent readers during writes
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := st.initSchema(); err != nil {
		_ = st.Close()
		return nil, err
	}

	return st, nil
}

// initSchema creates the posts and boards tables. Idempotent.
func (st *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		key TEXT PRIMARY KEY,          -- storage key (ULID), independent of post_id
		post_id TEXT NOT NULL,
		board_id TEXT NOT NULL,
		owner_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		removed INTEGER NOT NULL DEFAULT 0,
		serialized_view TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS boards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		allow_move_any INTEGER NOT NULL DEFAULT 1,
		bg_url TEXT,
		bg_placement TEXT,  -- JSON
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_post_id ON posts(post_id);
	CREATE INDEX IF NOT EXISTS idx_posts_board_id ON posts(board_id);
	`

	if _, err := st.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection after checkpointing the WAL.
func (st *SQLite) Close() error {
	if st.conn == nil {
		return nil
	}

	if _, err := st.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	st.conn = nil
	return nil
}

// Path returns the database file path.
func (st *SQLite) Path() string {
	return st.path
}

// CreatePost implements Store.CreatePost.
func (st *SQLite) CreatePost(ctx context.Context, rec *board.PostRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("invalid post record: %w", err)
	}
	rec.SetDefaults()

	key := ulid.Make().String()

	query := `
	INSERT INTO posts (key, post_id, board_id, owner_id, title, description,
	                   removed, serialized_view, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := st.conn.ExecContext(ctx, query,
		key,
		rec.ID,
		rec.BoardID,
		rec.OwnerID,
		rec.Title,
		rec.Description,
		boolToInt(rec.Removed),
		rec.SerializedView,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create post %s: %w", rec.ID, err)
	}

	st.notifyInserted(rec.Clone())
	return key, nil
}

// UpdatePost implements Store.UpdatePost. Nil patch fields leave the
// stored columns untouched (store-level partial merge).
func (st *SQLite) UpdatePost(ctx context.Context, postID string, patch *board.PostPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}

	query := `
	UPDATE posts SET
		title = COALESCE(?, title),
		description = COALESCE(?, description),
		serialized_view = COALESCE(?, serialized_view),
		removed = COALESCE(?, removed),
		updated_at = ?
	WHERE post_id = ?
	`

	res, err := st.conn.ExecContext(ctx, query,
		nullString(patch.Title),
		nullString(patch.Description),
		nullString(patch.SerializedView),
		nullBool(patch.Removed),
		time.Now().Format(time.RFC3339Nano),
		postID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post %s: %w", postID, err)
	}

	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		// Nothing matched; nothing to announce.
		return nil
	}

	rec, err := st.getPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to read back post %s: %w", postID, err)
	}
	if rec != nil {
		st.notifyChanged(rec)
	}
	return nil
}

// DeletePost implements Store.DeletePost. The deletion surfaces on the
// change stream as a tombstone record, so subscribers that miss the
// explicit removed-flag update still converge.
func (st *SQLite) DeletePost(ctx context.Context, postID string) error {
	rec, err := st.getPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to look up post %s: %w", postID, err)
	}

	if _, err := st.conn.ExecContext(ctx, `DELETE FROM posts WHERE post_id = ?`, postID); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", postID, err)
	}

	if rec != nil {
		rec.Removed = true
		st.notifyChanged(rec)
	}
	return nil
}

// GetAllPosts implements Store.GetAllPosts.
func (st *SQLite) GetAllPosts(ctx context.Context, boardID string) ([]*board.PostRecord, error) {
	query := `
	SELECT post_id, board_id, owner_id, title, description, removed,
	       serialized_view, created_at, updated_at
	FROM posts
	WHERE board_id = ?
	ORDER BY created_at ASC, key ASC
	`

	rows, err := st.conn.QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*board.PostRecord
	for rows.Next() {
		rec, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// DeleteAllPosts implements Store.DeleteAllPosts. Every removed record
// is announced as a tombstone so live clients clear their boards.
func (st *SQLite) DeleteAllPosts(ctx context.Context, boardID string) error {
	posts, err := st.GetAllPosts(ctx, boardID)
	if err != nil {
		return err
	}

	if _, err := st.conn.ExecContext(ctx, `DELETE FROM posts WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("failed to wipe board %s: %w", boardID, err)
	}

	for _, rec := range posts {
		rec.Removed = true
		st.notifyChanged(rec)
	}
	return nil
}

// GetBoard implements Store.GetBoard.
func (st *SQLite) GetBoard(ctx context.Context, boardID string) (*board.BoardRecord, error) {
	query := `SELECT id, name, allow_move_any, bg_url, bg_placement, updated_at FROM boards WHERE id = ?`
	row := st.conn.QueryRowContext(ctx, query, boardID)

	rec, err := scanBoard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board %s: %w", boardID, err)
	}
	return rec, nil
}

// UpdateBoard implements Store.UpdateBoard. The board record is replaced
// whole: the patch is merged over the current (or zero) record and the
// result written back.
func (st *SQLite) UpdateBoard(ctx context.Context, boardID string, patch *board.BoardPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}

	rec, err := st.GetBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &board.BoardRecord{
			ID:          boardID,
			Permissions: board.Permissions{AllowMoveAny: true},
		}
	}
	patch.ApplyTo(rec)

	var bgURL, bgPlacement sql.NullString
	if rec.Background != nil {
		bgURL = sql.NullString{String: rec.Background.URL, Valid: true}
		placementJSON, err := json.Marshal(rec.Background.Placement)
		if err != nil {
			return fmt.Errorf("failed to marshal background placement: %w", err)
		}
		bgPlacement = sql.NullString{String: string(placementJSON), Valid: true}
	}

	query := `
	INSERT INTO boards (id, name, allow_move_any, bg_url, bg_placement, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		allow_move_any = excluded.allow_move_any,
		bg_url = excluded.bg_url,
		bg_placement = excluded.bg_placement,
		updated_at = excluded.updated_at
	`

	_, err = st.conn.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		boolToInt(rec.Permissions.AllowMoveAny),
		bgURL,
		bgPlacement,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert board %s: %w", boardID, err)
	}

	st.notifyBoard(rec.Clone())
	return nil
}

// SubscribeInserted implements Store.SubscribeInserted.
func (st *SQLite) SubscribeInserted(fn func(*board.PostRecord)) {
	st.subsMu.Lock()
	defer st.subsMu.Unlock()
	st.onInserted = append(st.onInserted, fn)
}

// SubscribeChanged implements Store.SubscribeChanged.
func (st *SQLite) SubscribeChanged(fn func(*board.PostRecord)) {
	st.subsMu.Lock()
	defer st.subsMu.Unlock()
	st.onChanged = append(st.onChanged, fn)
}

// SubscribeBoard implements Store.SubscribeBoard.
func (st *SQLite) SubscribeBoard(fn func(*board.BoardRecord)) {
	st.subsMu.Lock()
	defer st.subsMu.Unlock()
	st.onBoard = append(st.onBoard, fn)
}

func (st *SQLite) notifyInserted(rec *board.PostRecord) {
	st.subsMu.RLock()
	subs := make([]func(*board.PostRecord), len(st.onInserted))
	copy(subs, st.onInserted)
	st.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}

func (st *SQLite) notifyChanged(rec *board.PostRecord) {
	st.subsMu.RLock()
	subs := make([]func(*board.PostRecord), len(st.onChanged))
	copy(subs, st.onChanged)
	st.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}

func (st *SQLite) notifyBoard(rec *board.BoardRecord) {
	st.subsMu.RLock()
	subs := make([]func(*board.BoardRecord), len(st.onBoard))
	copy(subs, st.onBoard)
	st.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}

// getPost reads the first record matching a post ID, or nil.
func (st *SQLite) getPost(ctx context.Context, postID string) (*board.PostRecord, error) {
	query := `
	SELECT post_id, board_id, owner_id, title, description, removed,
	       serialized_view, created_at, updated_at
	FROM posts
	WHERE post_id = ?
	ORDER BY key ASC
	LIMIT 1
	`
	row := st.conn.QueryRowContext(ctx, query, postID)

	rec, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*board.PostRecord, error) {
	var rec board.PostRecord
	var removed int
	var createdAt, updatedAt string

	err := s.Scan(
		&rec.ID,
		&rec.BoardID,
		&rec.OwnerID,
		&rec.Title,
		&rec.Description,
		&removed,
		&rec.SerializedView,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	rec.Removed = removed != 0
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func scanBoard(s scanner) (*board.BoardRecord, error) {
	var rec board.BoardRecord
	var allowMove int
	var bgURL, bgPlacement sql.NullString
	var updatedAt string

	err := s.Scan(&rec.ID, &rec.Name, &allowMove, &bgURL, &bgPlacement, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Permissions.AllowMoveAny = allowMove != 0
	if bgURL.Valid {
		bg := &board.Background{URL: bgURL.String}
		if bgPlacement.Valid && bgPlacement.String != "" {
			if err := json.Unmarshal([]byte(bgPlacement.String), &bg.Placement); err != nil {
				return nil, fmt.Errorf("failed to unmarshal background placement: %w", err)
			}
		}
		rec.Background = bg
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	var v int64
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
