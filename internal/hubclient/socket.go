package hubclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

type MessageCallback func(msg chessdto.ServerMessage)

type callbackEntry struct {
	id       int
	callback MessageCallback
}

// Socket is one session connection. Callbacks run on the read goroutine in arrival order.
type Socket struct {
	conn  *websocket.Conn
	token string

	cbM    sync.RWMutex
	msgCbs []callbackEntry
	nextID int

	rootCtx    context.Context
	rootCancel context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	readErr    error
}

// Dial opens the session websocket at wsURL. token is stamped on every command sent.
func Dial(ctx context.Context, wsURL, token string) (*Socket, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, err
	}
	s := &Socket{conn: conn, token: token, done: make(chan struct{})}
	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	go s.listen()
	return s, nil
}

func (s *Socket) listen() {
	defer close(s.done)
	for {
		var msg chessdto.ServerMessage
		if err := wsjson.Read(s.rootCtx, s.conn, &msg); err != nil {
			s.readErr = err
			return
		}
		s.cbM.RLock()
		callbacks := make([]callbackEntry, len(s.msgCbs))
		copy(callbacks, s.msgCbs)
		s.cbM.RUnlock()
		for _, entry := range callbacks {
			entry.callback(msg)
		}
	}
}

func (s *Socket) OnMessage(cb MessageCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextID++
	s.msgCbs = append(s.msgCbs, callbackEntry{id: s.nextID, callback: cb})
	return s.nextID
}

func (s *Socket) RemoveMessageCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.msgCbs {
		if cb.id == id {
			s.msgCbs = append(s.msgCbs[:i], s.msgCbs[i+1:]...)
			break
		}
	}
}

// Send writes cmd, filling in the auth token when the caller left it empty.
func (s *Socket) Send(ctx context.Context, cmd chessdto.Command) error {
	if cmd.AuthToken == "" {
		cmd.AuthToken = s.token
	}
	return wsjson.Write(ctx, s.conn, cmd)
}

func (s *Socket) Connect(ctx context.Context, gameID int, team string) error {
	return s.Send(ctx, chessdto.Command{CommandType: chessdto.CommandConnect, GameID: gameID, Team: team})
}

func (s *Socket) MakeMove(ctx context.Context, gameID int, team string, mv chessdto.Move) error {
	return s.Send(ctx, chessdto.Command{CommandType: chessdto.CommandMakeMove, GameID: gameID, Team: team, Move: &mv})
}

func (s *Socket) Leave(ctx context.Context, gameID int) error {
	return s.Send(ctx, chessdto.Command{CommandType: chessdto.CommandLeave, GameID: gameID})
}

func (s *Socket) Resign(ctx context.Context, gameID int, team string) error {
	return s.Send(ctx, chessdto.Command{CommandType: chessdto.CommandResign, GameID: gameID, Team: team})
}

// Done is closed once the read loop has stopped.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Err reports why the read loop stopped. Valid after Done is closed.
func (s *Socket) Err() error {
	select {
	case <-s.done:
		if websocket.CloseStatus(s.readErr) == websocket.StatusNormalClosure {
			return nil
		}
		return s.readErr
	default:
		return nil
	}
}

func (s *Socket) Close(ctx context.Context) error {
	var closeErr error
	s.closeOnce.Do(func() {
		closeErr = s.conn.Close(websocket.StatusNormalClosure, "close")
	})
	select {
	case <-ctx.Done():
		s.rootCancel()
		return ctx.Err()
	case <-s.done:
		s.rootCancel()
	}
	if closeErr != nil && !errors.Is(closeErr, context.Canceled) && websocket.CloseStatus(closeErr) == -1 {
		return closeErr
	}
	return nil
}
