package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var (
	errConnClosed = errors.New("connection closed")
	errQueueFull  = errors.New("send queue full")
)

// wsConn is the hub's view of one websocket. Send only enqueues; a writer
// goroutine drains the queue so a slow socket never blocks a broadcast.
type wsConn struct {
	id   string
	conn *websocket.Conn
	out  chan chessdto.ServerMessage

	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	return &wsConn{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan chessdto.ServerMessage, buffer),
		done: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg chessdto.ServerMessage) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		// a client that cannot keep up is cut off rather than fed a partial history
		c.close(websocket.StatusPolicyViolation, "send queue full")
		return errQueueFull
	}
}

func (c *wsConn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() { _ = c.conn.Close(code, reason) }()
	})
}

func (c *wsConn) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_failed", zap.String("conn_id", c.id), zap.Error(err))
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(s.opts.ReadLimit)

	c := newWSConn(conn, s.opts.SendBuffer)
	s.track(c)
	obslog.L().Info("ws_open", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	// The request context ends when this handler returns, so the session gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.writeLoop(ctx)
	}()

	s.readLoop(ctx, c)

	s.hub.Disconnect(context.Background(), c)
	c.close(websocket.StatusNormalClosure, "")
	cancel()
	writer.Wait()
	s.untrack(c)
	obslog.L().Info("ws_closed", zap.String("conn_id", c.id))
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				obslog.L().Debug("ws_read_end", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			_ = c.Send(chessdto.ErrorMessage(s.msgs.Text("error.bad_request", nil)))
			continue
		}
		var cmd chessdto.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = c.Send(chessdto.ErrorMessage(s.msgs.Text("error.bad_request", nil)))
			continue
		}
		// Handle already reports failures to c as ERROR messages.
		_ = s.hub.Handle(ctx, c, cmd)
	}
}
