package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/store"
)

// Client is the store.Store implementation that speaks to a relay
// server. Writes are buffered and flushed by a background sender, so
// the sync engine's interaction path never blocks on the network; a
// single client's ops reach the server in issue order.
type Client struct {
	addr   string
	conn   *websocket.Conn
	logger *log.Logger

	send chan Op

	subsMu     sync.RWMutex
	onInserted []func(*board.PostRecord)
	onChanged  []func(*board.PostRecord)
	onBoard    []func(*board.BoardRecord)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ store.Store = (*Client)(nil)

// Dial connects to a relay server at host:port. The caller MUST call
// Close when done.
func Dial(ctx context.Context, addr string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial board server %s: %w", addr, err)
	}

	cctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		addr:   addr,
		conn:   conn,
		logger: logger,
		send:   make(chan Op, 256),
		ctx:    cctx,
		cancel: cancel,
	}

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()

	return c, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.wg.Wait()
	if err != nil && websocket.CloseStatus(err) == -1 {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// enqueue hands an op to the sender. A full buffer drops the op with a
// diagnostic rather than blocking the caller.
func (c *Client) enqueue(op Op) {
	select {
	case c.send <- op:
	case <-c.ctx.Done():
	default:
		c.logger.Printf("Warning: send buffer full, dropping %s", op.Op)
	}
}

// writeLoop flushes queued ops to the server in order.
func (c *Client) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case op := <-c.send:
			data, err := json.Marshal(op)
			if err != nil {
				c.logger.Printf("Failed to marshal op %s: %v", op.Op, err)
				continue
			}

			ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			err = c.conn.Write(ctx, websocket.MessageText, data)
			cancel()

			if err != nil {
				c.logger.Printf("Failed to send op %s: %v", op.Op, err)
			}
		}
	}
}

// readLoop dispatches broadcast frames to the registered callbacks.
// A malformed frame is dropped with a diagnostic and never stops the
// stream.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Printf("Warning: dropping malformed message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageTypePostInserted:
			var rec board.PostRecord
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				c.logger.Printf("Warning: dropping malformed post record: %v", err)
				continue
			}
			c.dispatchInserted(&rec)

		case MessageTypePostChanged:
			var rec board.PostRecord
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				c.logger.Printf("Warning: dropping malformed post record: %v", err)
				continue
			}
			c.dispatchChanged(&rec)

		case MessageTypeBoardChanged:
			var rec board.BoardRecord
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				c.logger.Printf("Warning: dropping malformed board record: %v", err)
				continue
			}
			c.dispatchBoard(&rec)

		default:
			c.logger.Printf("Warning: unknown message type %q", msg.Type)
		}
	}
}

// CreatePost implements store.Store. Storage keys are assigned by the
// server, so the returned handle is empty for remote clients.
func (c *Client) CreatePost(ctx context.Context, rec *board.PostRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("invalid post record: %w", err)
	}
	c.enqueue(Op{Op: OpCreatePost, Record: rec.Clone()})
	return "", nil
}

// UpdatePost implements store.Store.
func (c *Client) UpdatePost(ctx context.Context, postID string, patch *board.PostPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}
	c.enqueue(Op{Op: OpUpdatePost, PostID: postID, PostPatch: patch})
	return nil
}

// DeletePost implements store.Store.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	c.enqueue(Op{Op: OpDeletePost, PostID: postID})
	return nil
}

// DeleteAllPosts implements store.Store.
func (c *Client) DeleteAllPosts(ctx context.Context, boardID string) error {
	c.enqueue(Op{Op: OpWipeBoard, BoardID: boardID})
	return nil
}

// UpdateBoard implements store.Store.
func (c *Client) UpdateBoard(ctx context.Context, boardID string, patch *board.BoardPatch) error {
	if patch == nil || patch.IsEmpty() {
		return nil
	}
	c.enqueue(Op{Op: OpUpdateBoard, BoardID: boardID, BoardPatch: patch})
	return nil
}

// GetAllPosts implements store.Store via the server's snapshot endpoint.
func (c *Client) GetAllPosts(ctx context.Context, boardID string) ([]*board.PostRecord, error) {
	u := fmt.Sprintf("http://%s/posts?board_id=%s", c.addr, url.QueryEscape(boardID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed: %s", resp.Status)
	}

	var posts []*board.PostRecord
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

// GetBoard implements store.Store via the server's board endpoint.
func (c *Client) GetBoard(ctx context.Context, boardID string) (*board.BoardRecord, error) {
	u := fmt.Sprintf("http://%s/board?board_id=%s", c.addr, url.QueryEscape(boardID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build board request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board request failed: %s", resp.Status)
	}

	var rec board.BoardRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode board: %w", err)
	}
	return &rec, nil
}

// SubscribeInserted implements store.Store.
func (c *Client) SubscribeInserted(fn func(*board.PostRecord)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.onInserted = append(c.onInserted, fn)
}

// SubscribeChanged implements store.Store.
func (c *Client) SubscribeChanged(fn func(*board.PostRecord)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.onChanged = append(c.onChanged, fn)
}

// SubscribeBoard implements store.Store.
func (c *Client) SubscribeBoard(fn func(*board.BoardRecord)) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.onBoard = append(c.onBoard, fn)
}

func (c *Client) dispatchInserted(rec *board.PostRecord) {
	c.subsMu.RLock()
	subs := make([]func(*board.PostRecord), len(c.onInserted))
	copy(subs, c.onInserted)
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}

func (c *Client) dispatchChanged(rec *board.PostRecord) {
	c.subsMu.RLock()
	subs := make([]func(*board.PostRecord), len(c.onChanged))
	copy(subs, c.onChanged)
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}

func (c *Client) dispatchBoard(rec *board.BoardRecord) {
	c.subsMu.RLock()
	subs := make([]func(*board.BoardRecord), len(c.onBoard))
	copy(subs, c.onBoard)
	c.subsMu.RUnlock()

	for _, fn := range subs {
		fn(rec.Clone())
	}
}
