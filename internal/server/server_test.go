package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-hub/internal/hub"
	"github.com/park285/cheese-chess-hub/internal/hubclient"
	"github.com/park285/cheese-chess-hub/internal/lobby"
	"github.com/park285/cheese-chess-hub/internal/msgcat"
	"github.com/park285/cheese-chess-hub/internal/store"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

type fixture struct {
	srv  *Server
	http *httptest.Server
	msgs *msgcat.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.PutIdentity(ctx, "tok-a", "alice"))
	require.NoError(t, st.PutIdentity(ctx, "tok-b", "bob"))
	msgs := msgcat.Default()
	h := hub.New(st, msgs)
	s := New(h, lobby.NewManager(st, h), msgs, Options{SendBuffer: 16})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		ts.Close()
		h.Close()
	})
	return &fixture{srv: s, http: ts, msgs: msgs}
}

func (f *fixture) wsURL() string { return "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws" }

type inbox chan chessdto.ServerMessage

func dial(t *testing.T, f *fixture, token string) (*hubclient.Socket, inbox) {
	t.Helper()
	sock, err := hubclient.Dial(context.Background(), f.wsURL(), token)
	require.NoError(t, err)
	in := make(inbox, 32)
	sock.OnMessage(func(msg chessdto.ServerMessage) { in <- msg })
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sock.Close(ctx)
	})
	return sock, in
}

func (in inbox) next(t *testing.T) chessdto.ServerMessage {
	t.Helper()
	select {
	case msg := <-in:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a server message")
		return chessdto.ServerMessage{}
	}
}

func turnOf(t *testing.T, msg chessdto.ServerMessage) string {
	t.Helper()
	require.Equal(t, chessdto.MessageLoadGame, msg.ServerMessageType)
	var g struct {
		Turn string `json:"turn"`
	}
	require.NoError(t, json.Unmarshal(msg.Game, &g))
	return g.Turn
}

func pos(row, col int) chessdto.Position { return chessdto.Position{Row: row, Col: col} }

func TestRESTLobby(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := hubclient.NewClient(f.http.URL, hubclient.WithToken("tok-a"))
	bob := hubclient.NewClient(f.http.URL, hubclient.WithToken("Bearer tok-b"))

	_, err := hubclient.NewClient(f.http.URL).CreateGame(ctx, "nope")
	var apiErr *hubclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, chessdto.CodeUnauthorized, apiErr.Domain.Code)

	id, err := alice.CreateGame(ctx, "lunch game")
	require.NoError(t, err)
	require.NoError(t, alice.JoinGame(ctx, id, "WHITE"))

	err = bob.JoinGame(ctx, id, "WHITE")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, f.msgs.Text("error.already_taken", nil), apiErr.Domain.Message)

	err = bob.JoinGame(ctx, id+40, "BLACK")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	require.NoError(t, bob.JoinGame(ctx, id, "black"))

	games, err := bob.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, chessdto.GameSummary{GameID: id, WhiteUsername: "alice", BlackUsername: "bob", GameName: "lunch game", State: "READY"}, games[0])
}

func TestRESTRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/game", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "tok-a")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var de chessdto.DomainError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&de))
	assert.Equal(t, chessdto.CodeBadRequest, de.Code)
}

func TestSessionOverWebsocket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := hubclient.NewClient(f.http.URL, hubclient.WithToken("tok-a"))
	bob := hubclient.NewClient(f.http.URL, hubclient.WithToken("tok-b"))
	id, err := alice.CreateGame(ctx, "ws game")
	require.NoError(t, err)
	require.NoError(t, alice.JoinGame(ctx, id, "WHITE"))
	require.NoError(t, bob.JoinGame(ctx, id, "BLACK"))

	aSock, aIn := dial(t, f, "tok-a")
	require.NoError(t, aSock.Connect(ctx, id, "WHITE"))
	assert.Equal(t, "WHITE", turnOf(t, aIn.next(t)))

	bSock, bIn := dial(t, f, "tok-b")
	require.NoError(t, bSock.Connect(ctx, id, "BLACK"))
	assert.Equal(t, "WHITE", turnOf(t, bIn.next(t)))
	joined := aIn.next(t)
	assert.Equal(t, chessdto.MessageNotification, joined.ServerMessageType)
	assert.Equal(t, "bob has joined the game as BLACK TEAM!", joined.Message)

	require.NoError(t, aSock.MakeMove(ctx, id, "WHITE", chessdto.Move{StartPosition: pos(2, 5), EndPosition: pos(4, 5)}))
	assert.Equal(t, "BLACK", turnOf(t, aIn.next(t)))
	assert.Equal(t, "BLACK", turnOf(t, bIn.next(t)))
	moved := bIn.next(t)
	assert.Equal(t, "alice has made a move E2 to E4!", moved.Message)

	require.NoError(t, aSock.MakeMove(ctx, id, "WHITE", chessdto.Move{StartPosition: pos(2, 4), EndPosition: pos(4, 4)}))
	rejected := aIn.next(t)
	assert.Equal(t, chessdto.MessageError, rejected.ServerMessageType)
	assert.Equal(t, f.msgs.Text("error.not_your_turn", nil), rejected.ErrorMessage)

	img, err := bob.BoardPNG(ctx, id)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(img))
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = bSock.Close(closeCtx)
	left := aIn.next(t)
	assert.Equal(t, "bob (BLACK TEAM) has left the game.", left.Message)

	games, err := alice.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "bob", games[0].BlackUsername, "disconnect keeps the seat")
	assert.Equal(t, "IN_PROGRESS", games[0].State)
}

func TestWebsocketRejectsMalformedCommand(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, f.wsURL(), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{oops")))
	var msg chessdto.ServerMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, chessdto.MessageError, msg.ServerMessageType)
	assert.Equal(t, f.msgs.Text("error.bad_request", nil), msg.ErrorMessage)

	require.NoError(t, wsjson.Write(ctx, conn, chessdto.Command{CommandType: chessdto.CommandConnect, AuthToken: "forged", GameID: 1}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, f.msgs.Text("error.unauthorized", nil), msg.ErrorMessage)
}

func TestShutdownClosesSockets(t *testing.T) {
	f := newFixture(t)
	sock, _ := dial(t, f, "tok-a")

	require.Eventually(t, func() bool {
		f.srv.connMu.Lock()
		defer f.srv.connMu.Unlock()
		return len(f.srv.conns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.srv.Shutdown(context.Background()))
	select {
	case <-sock.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("socket still open after shutdown")
	}
}

func TestDomainErrorMapping(t *testing.T) {
	f := newFixture(t)
	de := f.srv.domainError(errors.New("boom"))
	assert.Equal(t, chessdto.CodeDataAccess, de.Code)
	assert.True(t, de.Retryable)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus())
}
