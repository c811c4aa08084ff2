package server

import (
	"context"
	"io"
	"log"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/store"
)

// setupTestServer starts a relay server on a random port and returns
// its dialable address.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := New(st, &Config{
		Port:   0, // random free port
		Logger: log.New(io.Discard, "", 0),
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	_, port, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("bad server address %q: %v", srv.Addr(), err)
	}
	return srv, net.JoinHostPort("localhost", port)
}

// dialTestClient connects a client to the server.
func dialTestClient(t *testing.T, addr string) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, addr, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitPost receives one post record from a subscription channel.
func waitPost(t *testing.T, ch <-chan *board.PostRecord, desc string) *board.PostRecord {
	t.Helper()

	select {
	case rec := <-ch:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", desc)
		return nil
	}
}

func testRecord(id, title string) *board.PostRecord {
	return &board.PostRecord{
		ID:             id,
		OwnerID:        board.OwnerFromID(id),
		BoardID:        "board-1",
		Title:          title,
		SerializedView: `{"postID": "` + id + `", "left": 10, "top": 20}`,
	}
}

func TestEndToEndTwoClients(t *testing.T) {
	_, addr := setupTestServer(t)
	ctx := context.Background()

	a := dialTestClient(t, addr)
	b := dialTestClient(t, addr)

	bInserted := make(chan *board.PostRecord, 10)
	bChanged := make(chan *board.PostRecord, 10)
	b.SubscribeInserted(func(rec *board.PostRecord) { bInserted <- rec })
	b.SubscribeChanged(func(rec *board.PostRecord) { bChanged <- rec })

	aChanged := make(chan *board.PostRecord, 10)
	a.SubscribeChanged(func(rec *board.PostRecord) { aChanged <- rec })

	// A creates; B sees the insert.
	id := "1700000000000-alice"
	if _, err := a.CreatePost(ctx, testRecord(id, "hello")); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	rec := waitPost(t, bInserted, "insert broadcast")
	if rec.ID != id || rec.Title != "hello" {
		t.Errorf("insert broadcast wrong: %+v", rec)
	}

	// A edits; B sees the change.
	title := "hello v2"
	if err := a.UpdatePost(ctx, id, &board.PostPatch{Title: &title}); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	rec = waitPost(t, bChanged, "update broadcast")
	if rec.Title != "hello v2" {
		t.Errorf("update broadcast Title = %q, want hello v2", rec.Title)
	}

	// B removes; A sees the tombstone.
	if err := b.DeletePost(ctx, id); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	for {
		rec = waitPost(t, aChanged, "tombstone broadcast")
		if rec.Removed {
			break
		}
		// A also receives the earlier update echo; skip past it.
	}
	if rec.ID != id {
		t.Errorf("tombstone for %q, want %q", rec.ID, id)
	}

	posts, err := a.GetAllPosts(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected empty board after delete, got %d posts", len(posts))
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	_, addr := setupTestServer(t)
	ctx := context.Background()

	c := dialTestClient(t, addr)

	echo := make(chan *board.PostRecord, 1)
	c.SubscribeInserted(func(rec *board.PostRecord) { echo <- rec })

	if _, err := c.CreatePost(ctx, testRecord("1-alice", "snapshot me")); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	waitPost(t, echo, "create echo")

	posts, err := c.GetAllPosts(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "snapshot me" {
		t.Errorf("snapshot wrong: %+v", posts)
	}

	empty, err := c.GetAllPosts(ctx, "board-other")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty snapshot for unknown board, got %d", len(empty))
	}
}

func TestSnapshotEscapesBoardID(t *testing.T) {
	_, addr := setupTestServer(t)
	ctx := context.Background()

	c := dialTestClient(t, addr)

	echo := make(chan *board.PostRecord, 1)
	c.SubscribeInserted(func(rec *board.PostRecord) { echo <- rec })

	rec := testRecord("1-alice", "escaped")
	rec.BoardID = "team boards & retro"
	if _, err := c.CreatePost(ctx, rec); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	waitPost(t, echo, "create echo")

	posts, err := c.GetAllPosts(ctx, "team boards & retro")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "escaped" {
		t.Errorf("snapshot for escaped board ID wrong: %+v", posts)
	}

	if _, err := c.GetBoard(ctx, "team boards & retro"); err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
}

func TestBoardEndpointAndBroadcast(t *testing.T) {
	_, addr := setupTestServer(t)
	ctx := context.Background()

	a := dialTestClient(t, addr)
	b := dialTestClient(t, addr)

	rec, err := a.GetBoard(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil board before first write, got %+v", rec)
	}

	boards := make(chan *board.BoardRecord, 1)
	b.SubscribeBoard(func(r *board.BoardRecord) { boards <- r })

	name := "Sprint Review"
	if err := a.UpdateBoard(ctx, "board-1", &board.BoardPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateBoard failed: %v", err)
	}

	select {
	case r := <-boards:
		if r.Name != "Sprint Review" {
			t.Errorf("board broadcast Name = %q", r.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for board broadcast")
	}

	rec, err = b.GetBoard(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if rec == nil || rec.Name != "Sprint Review" {
		t.Errorf("board snapshot wrong: %+v", rec)
	}
}

func TestWipeBroadcastsTombstones(t *testing.T) {
	_, addr := setupTestServer(t)
	ctx := context.Background()

	a := dialTestClient(t, addr)
	b := dialTestClient(t, addr)

	aEcho := make(chan *board.PostRecord, 2)
	a.SubscribeInserted(func(rec *board.PostRecord) { aEcho <- rec })

	bChanged := make(chan *board.PostRecord, 10)
	b.SubscribeChanged(func(rec *board.PostRecord) { bChanged <- rec })

	for _, id := range []string{"1-alice", "2-alice"} {
		if _, err := a.CreatePost(ctx, testRecord(id, "post")); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
		waitPost(t, aEcho, "create echo")
	}

	if err := a.DeleteAllPosts(ctx, "board-1"); err != nil {
		t.Fatalf("DeleteAllPosts failed: %v", err)
	}

	tombstones := 0
	for tombstones < 2 {
		rec := waitPost(t, bChanged, "wipe tombstones")
		if rec.Removed {
			tombstones++
		}
	}

	posts, err := b.GetAllPosts(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected empty board after wipe, got %d posts", len(posts))
	}
}

func TestClientCount(t *testing.T) {
	srv, addr := setupTestServer(t)

	if srv.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", srv.ClientCount())
	}

	c := dialTestClient(t, addr)
	_ = c

	deadline := time.Now().Add(5 * time.Second)
	for srv.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 client, got %d", srv.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
