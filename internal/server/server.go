package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/store"
)

// Server relays board operations between websocket clients and the
// backing store. Every store change, whoever caused it (including the
// settings watcher), is broadcast to all connected clients.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	st store.Store

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8484).
	Port int

	// Logger for server activity (default: log.Default()).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8484,
		Logger: log.Default(),
	}
}

// New creates a relay server over the given store.
func New(st store.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		st:        st,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}

	// Bridge the store's change streams onto the broadcast channel.
	st.SubscribeInserted(func(rec *board.PostRecord) {
		s.broadcastRecord(MessageTypePostInserted, rec)
	})
	st.SubscribeChanged(func(rec *board.PostRecord) {
		s.broadcastRecord(MessageTypePostChanged, rec)
	})
	st.SubscribeBoard(func(rec *board.BoardRecord) {
		s.broadcastRecord(MessageTypeBoardChanged, rec)
	})

	return s
}

// Start begins listening and serving. Non-blocking; use Stop to shut
// down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/posts", s.handlePosts)
	mux.HandleFunc("/board", s.handleBoard)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Board server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping board server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Board server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// broadcastRecord marshals a record into a broadcast message.
func (s *Server) broadcastRecord(typ MessageType, rec any) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Printf("Failed to marshal %s record: %v", typ, err)
		return
	}

	msg := Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}

	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop fans queued messages out to every connected client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the lock so one slow client can't stall
			// new connections.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts relaying ops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop consumes op frames from one client and applies them to the
// store. A malformed or failing op is logged and skipped; the connection
// survives.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			return
		}

		var op Op
		if err := json.Unmarshal(data, &op); err != nil {
			s.logger.Printf("Warning: dropping malformed op: %v", err)
			continue
		}

		if err := s.applyOp(s.ctx, &op); err != nil {
			s.logger.Printf("Warning: op %s failed: %v", op.Op, err)
		}
	}
}

// applyOp executes one client operation against the store.
func (s *Server) applyOp(ctx context.Context, op *Op) error {
	switch op.Op {
	case OpCreatePost:
		if op.Record == nil {
			return fmt.Errorf("create_post without record")
		}
		_, err := s.st.CreatePost(ctx, op.Record)
		return err

	case OpUpdatePost:
		if op.PostID == "" || op.PostPatch == nil {
			return fmt.Errorf("update_post without post_id or patch")
		}
		return s.st.UpdatePost(ctx, op.PostID, op.PostPatch)

	case OpDeletePost:
		if op.PostID == "" {
			return fmt.Errorf("delete_post without post_id")
		}
		return s.st.DeletePost(ctx, op.PostID)

	case OpUpdateBoard:
		if op.BoardID == "" || op.BoardPatch == nil {
			return fmt.Errorf("update_board without board_id or patch")
		}
		return s.st.UpdateBoard(ctx, op.BoardID, op.BoardPatch)

	case OpWipeBoard:
		if op.BoardID == "" {
			return fmt.Errorf("wipe_board without board_id")
		}
		return s.st.DeleteAllPosts(ctx, op.BoardID)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handlePosts serves the initial-load snapshot of a board's posts.
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	boardID := r.URL.Query().Get("board_id")
	if boardID == "" {
		http.Error(w, "board_id is required", http.StatusBadRequest)
		return
	}

	posts, err := s.st.GetAllPosts(r.Context(), boardID)
	if err != nil {
		s.logger.Printf("Failed to load posts: %v", err)
		http.Error(w, "failed to load posts", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []*board.PostRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(posts)
}

// handleBoard serves the replicated board record. A board that has never
// been written yields 204.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	boardID := r.URL.Query().Get("board_id")
	if boardID == "" {
		http.Error(w, "board_id is required", http.StatusBadRequest)
		return
	}

	rec, err := s.st.GetBoard(r.Context(), boardID)
	if err != nil {
		s.logger.Printf("Failed to load board: %v", err)
		http.Error(w, "failed to load board", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}
