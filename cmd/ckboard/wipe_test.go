package main

import (
	"context"
	"io"
	"log"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/server"
	"github.com/sadmanca/ck-board/internal/store"
)

// startWipeTestServer runs a relay server over a fresh store and
// returns both plus the dialable address.
func startWipeTestServer(t *testing.T) (*store.SQLite, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(st, &server.Config{
		Port:   0,
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
	return st, net.JoinHostPort("localhost", port)
}

// A wipe routed through the server must land on the server's own store
// instance, so its subscribers announce tombstones and connected
// sessions hear them. Wiping a second database handle would delete the
// rows without anyone being told.
func TestWipeViaServerBroadcastsTombstones(t *testing.T) {
	st, addr := startWipeTestServer(t)
	ctx := context.Background()

	serverTombstones := make(chan *board.PostRecord, 10)
	st.SubscribeChanged(func(rec *board.PostRecord) {
		if rec.Removed {
			serverTombstones <- rec
		}
	})

	for _, id := range []string{"1-alice", "2-alice"} {
		rec := &board.PostRecord{
			ID:             id,
			OwnerID:        board.OwnerFromID(id),
			BoardID:        "board-1",
			Title:          "post",
			SerializedView: `{"postID": "` + id + `", "left": 10, "top": 20}`,
		}
		if _, err := st.CreatePost(ctx, rec); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
	}

	session, err := server.Dial(ctx, addr, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to dial session: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	sessionTombstones := make(chan *board.PostRecord, 10)
	session.SubscribeChanged(func(rec *board.PostRecord) {
		if rec.Removed {
			sessionTombstones <- rec
		}
	})

	wiper, err := server.Dial(ctx, addr, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to dial wiper: %v", err)
	}
	t.Cleanup(func() { wiper.Close() })

	removed, err := wipeViaServer(ctx, wiper, "board-1")
	if err != nil {
		t.Fatalf("wipeViaServer failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	for seen := 0; seen < 2; seen++ {
		select {
		case <-sessionTombstones:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for session tombstone %d", seen+1)
		}
	}

	if got := len(serverTombstones); got != 2 {
		t.Errorf("server store announced %d tombstones, want 2", got)
	}

	posts, err := st.GetAllPosts(ctx, "board-1")
	if err != nil {
		t.Fatalf("GetAllPosts failed: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected empty board after wipe, got %d posts", len(posts))
	}
}

func TestWipeViaServerEmptyBoard(t *testing.T) {
	_, addr := startWipeTestServer(t)
	ctx := context.Background()

	client, err := server.Dial(ctx, addr, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	removed, err := wipeViaServer(ctx, client, "board-1")
	if err != nil {
		t.Fatalf("wipeViaServer failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
