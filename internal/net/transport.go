package net

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"EmojiArt/internal/document"
)

// Message is what the share server pushes to viewers. Document holds the
// persisted document encoding.
type Message struct {
	Type     string          `json:"type"`
	Session  string          `json:"session"`
	Revision uint64          `json:"revision"`
	Status   string          `json:"status"`
	Document json.RawMessage `json:"document,omitempty"`
}

const MessageDocument = "document"

// Source is the live document a share server publishes.
// *document.Controller implements it.
type Source interface {
	Snapshot() document.Snapshot
	Subscribe(fn func(document.Snapshot)) (cancel func())
}

const writeTimeout = 10 * time.Second

// ShareServer publishes a document over HTTP and pushes every change to
// connected websocket viewers.
type ShareServer struct {
	src      Source
	logger   *slog.Logger
	session  string
	router   *chi.Mux
	upgrader websocket.Upgrader
	cancel   func()

	peers map[*peer]bool
	mu    sync.RWMutex
}

func NewShareServer(src Source, logger *slog.Logger) *ShareServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ShareServer{
		src:     src,
		logger:  logger,
		session: uuid.NewString(),
		peers:   make(map[*peer]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// viewers are native clients on the LAN, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/document", s.handleDocument)
	r.Get("/background", s.handleBackground)
	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWS)
	s.router = r

	s.cancel = src.Subscribe(s.broadcast)
	return s
}

// Session identifies this server run; viewers reset on a new one.
func (s *ShareServer) Session() string { return s.session }

func (s *ShareServer) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *ShareServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *ShareServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("share server listening", "addr", ln.Addr().String(), "session", s.session)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops publishing changes and disconnects every viewer.
func (s *ShareServer) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.peers {
		p.conn.Close()
	}
}

// Peers returns how many viewers are connected.
func (s *ShareServer) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *ShareServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	data, err := snap.Model.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Revision", strconv.FormatUint(snap.Revision, 10))
	w.Write(data)
}

func (s *ShareServer) handleBackground(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	if snap.Image == nil {
		http.Error(w, "no background image", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, snap.Image); err != nil {
		s.logger.Warn("background encode failed", "error", err)
	}
}

func (s *ShareServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  s.session,
		"revision": snap.Revision,
		"status":   snap.Status.String(),
		"emojis":   snap.Model.Len(),
		"viewers":  s.Peers(),
	})
}

func (s *ShareServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, 1)}
	go p.writeLoop(s.logger)

	// Registering and sending the current state under the write lock keeps
	// broadcasts from slipping in between.
	s.mu.Lock()
	s.peers[p] = true
	if msg, rev, ok := s.message(s.src.Snapshot()); ok {
		p.offer(rev, msg)
	}
	s.mu.Unlock()
	s.logger.Info("viewer connected", "remote", r.RemoteAddr)

	// Viewers never send anything; reading only detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.remove(p)
	s.logger.Info("viewer disconnected", "remote", r.RemoteAddr)
}

func (s *ShareServer) remove(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peers[p] {
		delete(s.peers, p)
		close(p.send)
	}
	p.conn.Close()
}

func (s *ShareServer) broadcast(snap document.Snapshot) {
	msg, rev, ok := s.message(snap)
	if !ok {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.peers {
		p.offer(rev, msg)
	}
}

func (s *ShareServer) message(snap document.Snapshot) ([]byte, uint64, bool) {
	doc, err := snap.Model.Encode()
	if err != nil {
		s.logger.Warn("document not shareable", "revision", snap.Revision, "error", err)
		return nil, 0, false
	}
	data, err := json.Marshal(Message{
		Type:     MessageDocument,
		Session:  s.session,
		Revision: snap.Revision,
		Status:   snap.Status.String(),
		Document: doc,
	})
	if err != nil {
		s.logger.Warn("message encode failed", "error", err)
		return nil, 0, false
	}
	return data, snap.Revision, true
}

// peer is one connected viewer. Every message carries the whole document,
// so a slow viewer only ever needs the newest one.
type peer struct {
	conn *websocket.Conn
	send chan []byte

	mu  sync.Mutex
	rev uint64
}

func (p *peer) offer(rev uint64, msg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rev <= p.rev {
		return
	}
	p.rev = rev
	select {
	case p.send <- msg:
		return
	default:
	}
	select {
	case <-p.send:
	default:
	}
	select {
	case p.send <- msg:
	default:
	}
}

func (p *peer) writeLoop(logger *slog.Logger) {
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("viewer write failed", "remote", p.conn.RemoteAddr().String(), "error", err)
			p.conn.Close()
			return
		}
	}
}

func (s *ShareServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
