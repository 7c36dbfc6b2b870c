// Package server exposes the lobby over REST, the hub over a websocket and
// board snapshots as PNG images.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-chess-hub/internal/hub"
	"github.com/park285/cheese-chess-hub/internal/lobby"
	"github.com/park285/cheese-chess-hub/internal/msgcat"
	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/internal/render"
)

const maxJSONBodyBytes int64 = 1 << 16

type Options struct {
	// SendBuffer bounds each connection's outbound queue.
	SendBuffer int
	// ReadLimit caps one inbound websocket message in bytes.
	ReadLimit int64
	// OriginPatterns are passed to websocket.Accept. Empty means same-origin only.
	OriginPatterns []string
}

type Server struct {
	hub      *hub.Hub
	lobby    *lobby.Manager
	renderer *render.BoardRenderer
	msgs     *msgcat.Catalog
	opts     Options

	srvMu sync.Mutex
	srv   *http.Server

	connMu sync.Mutex
	conns  map[string]*wsConn
}

func New(h *hub.Hub, lb *lobby.Manager, msgs *msgcat.Catalog, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 8192
	}
	return &Server{
		hub:      h,
		lobby:    lb,
		renderer: render.NewBoardRenderer(),
		msgs:     msgs,
		opts:     opts,
		conns:    make(map[string]*wsConn),
	}
}

// Handler returns the routed handler, for Listen and for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /game", s.withJSON(s.handleCreateGame))
	mux.HandleFunc("PUT /game", s.withJSON(s.handleJoinGame))
	mux.HandleFunc("GET /game", s.withJSON(s.handleListGames))
	mux.HandleFunc("GET /game/{id}/board.png", s.handleBoardPNG)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return accessLog(mux)
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	obslog.L().Info("http_listen", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every live websocket.
func (s *Server) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.connMu.Lock()
	live := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		live = append(live, c)
	}
	s.connMu.Unlock()
	for _, c := range live {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
	return err
}

func (s *Server) track(c *wsConn) {
	s.connMu.Lock()
	s.conns[c.id] = c
	s.connMu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.connMu.Lock()
	delete(s.conns, c.id)
	s.connMu.Unlock()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes the websocket upgrade through to the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
