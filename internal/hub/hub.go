// Package hub coordinates live matches: it groups connections by match id,
// runs every state-changing command for a match under that match's lock and
// fans the results out to the match's connections.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/internal/msgcat"
	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/internal/store"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

// ResultSink receives every record that reaches Complete.
type ResultSink interface {
	SaveResult(ctx context.Context, rec *match.Record) error
}

type Hub struct {
	store   store.Store
	msgs    *msgcat.Catalog
	reg     *registry
	locks   *matchLocks
	results ResultSink
	now     func() time.Time

	sinkTimeout time.Duration
	sinkWG      sync.WaitGroup
}

type Option func(*Hub)

func WithResultSink(s ResultSink) Option { return func(h *Hub) { h.results = s } }

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func New(st store.Store, msgs *msgcat.Catalog, opts ...Option) *Hub {
	h := &Hub{
		store:       st,
		msgs:        msgs,
		reg:         newRegistry(),
		locks:       newMatchLocks(),
		now:         time.Now,
		sinkTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Request is a command after transport decoding.
type Request struct {
	AuthToken string
	MatchID   int
	// Team is the seat the caller claims. A claim on a seat held by another
	// username is not honoured: the caller is treated as an observer.
	Team match.Team
	Move chess.Move
}

// LockMatch takes the per-match lock used by every hub command. Callers outside
// the hub (the lobby) use it to serialize their own read-modify-write on a record.
func (h *Hub) LockMatch(id int) (unlock func()) { return h.locks.lock(id) }

// Close waits for pending result-sink deliveries.
func (h *Hub) Close() { h.sinkWG.Wait() }

// Handle decodes cmd, runs it and reports any failure to c as an ERROR message.
func (h *Hub) Handle(ctx context.Context, c Conn, cmd chessdto.Command) error {
	req, err := requestFromCommand(cmd)
	if err == nil {
		switch cmd.CommandType {
		case chessdto.CommandConnect:
			err = h.Connect(ctx, c, req)
		case chessdto.CommandMakeMove:
			if cmd.Move == nil {
				err = fmt.Errorf("%w: move is required", match.ErrInvalidRequest)
				break
			}
			err = h.MakeMove(ctx, c, req)
		case chessdto.CommandLeave:
			err = h.Leave(ctx, c, req)
		case chessdto.CommandResign:
			err = h.Resign(ctx, c, req)
		default:
			err = fmt.Errorf("%w: unknown command %q", match.ErrInvalidRequest, cmd.CommandType)
		}
	}
	if err != nil {
		h.reject(c, err)
	}
	return err
}

// Connect joins c to the match's group, tells the others and sends c the current game.
func (h *Hub) Connect(ctx context.Context, c Conn, req Request) error {
	unlock := h.locks.lock(req.MatchID)
	defer unlock()

	username, rec, err := h.load(ctx, req)
	if err != nil {
		return err
	}
	team := resolveTeam(rec, username, req.Team)
	snapshot, err := encodeGame(rec.Game)
	if err != nil {
		return err
	}

	prevMatch, prev := h.reg.add(req.MatchID, &member{conn: c, username: username, team: team})
	if prev != nil {
		h.broadcast(prevMatch, "", h.notice("notice.left", map[string]string{
			"User": prev.username, "Team": prev.team.DisplayName(),
		}))
	}
	obslog.L().Info("hub_connect",
		zap.Int("match_id", req.MatchID),
		zap.String("conn_id", c.ID()),
		zap.String("user", username),
		zap.String("team", team.DisplayName()),
	)
	h.broadcast(req.MatchID, c.ID(), h.notice("notice.joined", map[string]string{
		"User": username, "Team": team.DisplayName(),
	}))
	h.send(c, chessdto.LoadGame(snapshot))
	return nil
}

// MakeMove validates turn ownership, applies the move, persists and broadcasts.
func (h *Hub) MakeMove(ctx context.Context, c Conn, req Request) error {
	unlock := h.locks.lock(req.MatchID)
	defer unlock()

	username, rec, err := h.load(ctx, req)
	if err != nil {
		return err
	}
	if rec.Complete() {
		return notice("error.game_complete")
	}
	team := resolveTeam(rec, username, req.Team)
	color, seated := team.Color()
	if !seated {
		return notice("error.observer_move")
	}
	if rec.Game.Turn() != color {
		return notice("error.not_your_turn")
	}
	if err := rec.Game.MakeMove(req.Move); err != nil {
		obslog.L().Debug("hub_illegal_move", zap.Int("match_id", req.MatchID), zap.String("move", req.Move.String()), zap.Error(err))
		return err
	}

	rec.Moves = append(rec.Moves, req.Move.String())
	rec.UpdatedAt = h.now()
	v := evaluate(rec.Game)
	switch v.kind {
	case verdictCheckmate:
		rec.Finish(match.TeamOf(v.color.Opponent()), match.ReasonCheckmate)
	case verdictStalemate:
		rec.Finish(match.TeamNone, match.ReasonStalemate)
	default:
		if rec.BothSeated() {
			rec.State = match.StateInProgress
		}
	}
	snapshot, err := encodeGame(rec.Game)
	if err != nil {
		return err
	}
	if err := h.store.UpdateMatch(ctx, req.MatchID, rec); err != nil {
		obslog.L().Error("hub_persist_failed", zap.Int("match_id", req.MatchID), zap.Error(err))
		return err
	}

	obslog.L().Info("hub_move",
		zap.Int("match_id", req.MatchID),
		zap.String("user", username),
		zap.String("move", req.Move.String()),
		zap.String("state", string(rec.State)),
	)
	h.broadcast(req.MatchID, "", chessdto.LoadGame(snapshot))
	h.broadcast(req.MatchID, c.ID(), h.notice("notice.moved", map[string]string{
		"User": username, "From": req.Move.Start.Label(), "To": req.Move.End.Label(),
	}))
	if msg, ok := h.verdictNotice(v); ok {
		h.broadcast(req.MatchID, "", msg)
	}
	if rec.Complete() {
		h.finish(rec)
	}
	return nil
}

// Leave frees the caller's seat, if any, and removes c from the group.
func (h *Hub) Leave(ctx context.Context, c Conn, req Request) error {
	unlock := h.locks.lock(req.MatchID)
	defer unlock()

	username, rec, err := h.load(ctx, req)
	if errors.Is(err, match.ErrNotFound) {
		h.reg.remove(c.ID())
		return err
	}
	if err != nil {
		return err
	}
	team := resolveTeam(rec, username, req.Team)
	if team != match.TeamNone {
		rec.SetSeat(team, "")
		if rec.State == match.StateInProgress {
			rec.State = match.StateUnfinished
		}
		rec.UpdatedAt = h.now()
		if err := h.store.UpdateMatch(ctx, req.MatchID, rec); err != nil {
			obslog.L().Error("hub_persist_failed", zap.Int("match_id", req.MatchID), zap.Error(err))
			return err
		}
	}
	h.reg.remove(c.ID())
	obslog.L().Info("hub_leave",
		zap.Int("match_id", req.MatchID),
		zap.String("user", username),
		zap.String("team", team.DisplayName()),
		zap.String("state", string(rec.State)),
	)
	h.broadcast(req.MatchID, c.ID(), h.notice("notice.left", map[string]string{
		"User": username, "Team": team.DisplayName(),
	}))
	return nil
}

// Resign ends the match in the opponent's favour.
func (h *Hub) Resign(ctx context.Context, c Conn, req Request) error {
	unlock := h.locks.lock(req.MatchID)
	defer unlock()

	username, rec, err := h.load(ctx, req)
	if err != nil {
		return err
	}
	if rec.Complete() {
		return notice("error.game_complete")
	}
	team := resolveTeam(rec, username, req.Team)
	if team == match.TeamNone {
		return notice("error.observer_resign")
	}
	rec.Finish(team.Opponent(), match.ReasonResignation)
	rec.UpdatedAt = h.now()
	if err := h.store.UpdateMatch(ctx, req.MatchID, rec); err != nil {
		obslog.L().Error("hub_persist_failed", zap.Int("match_id", req.MatchID), zap.Error(err))
		return err
	}
	obslog.L().Info("hub_resign", zap.Int("match_id", req.MatchID), zap.String("user", username))
	h.broadcast(req.MatchID, "", h.notice("notice.resigned", map[string]string{
		"User": username, "Team": team.DisplayName(), "Winner": team.Opponent().DisplayName(),
	}))
	h.finish(rec)
	return nil
}

// Disconnect is called by the transport when c goes away. Seats are kept so the
// player can reconnect.
func (h *Hub) Disconnect(ctx context.Context, c Conn) {
	matchID, _, ok := h.reg.lookup(c.ID())
	if !ok {
		return
	}
	unlock := h.locks.lock(matchID)
	defer unlock()

	gone, m, ok := h.reg.remove(c.ID())
	if !ok {
		return
	}
	obslog.L().Info("hub_disconnect", zap.Int("match_id", gone), zap.String("conn_id", c.ID()), zap.String("user", m.username))
	h.broadcast(gone, "", h.notice("notice.left", map[string]string{
		"User": m.username, "Team": m.team.DisplayName(),
	}))
}

// Members reports how many connections are attached to a match.
func (h *Hub) Members(matchID int) int { return h.reg.size(matchID) }

// load resolves the caller and reads the record. Must run under the match lock.
func (h *Hub) load(ctx context.Context, req Request) (string, *match.Record, error) {
	username, ok, err := h.store.GetIdentity(ctx, req.AuthToken)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, match.ErrUnauthorized
	}
	rec, err := h.store.GetMatch(ctx, req.MatchID)
	if err != nil {
		return "", nil, err
	}
	if rec == nil {
		return "", nil, fmt.Errorf("match %d: %w", req.MatchID, match.ErrNotFound)
	}
	if rec.Game == nil {
		rec.Game = chess.NewGame()
	}
	return username, rec, nil
}

// resolveTeam honours a claimed team only when the caller holds that seat. A
// claim on someone else's seat resolves to TeamNone (observer) rather than
// granting that seat. A caller claiming nothing is matched against the seated
// usernames.
func resolveTeam(rec *match.Record, username string, claimed match.Team) match.Team {
	if claimed == match.TeamNone {
		return rec.TeamFor(username)
	}
	if rec.Seat(claimed) == username {
		return claimed
	}
	return match.TeamNone
}

func (h *Hub) finish(rec *match.Record) {
	obslog.L().Info("hub_match_complete",
		zap.Int("match_id", rec.ID),
		zap.String("winner", string(rec.Winner)),
		zap.String("reason", rec.Reason),
	)
	if h.results == nil {
		return
	}
	final := rec.Clone()
	h.sinkWG.Add(1)
	go func() {
		defer h.sinkWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.sinkTimeout)
		defer cancel()
		if err := h.results.SaveResult(ctx, final); err != nil {
			obslog.L().Error("hub_result_sink_failed", zap.Int("match_id", final.ID), zap.Error(err))
		}
	}()
}

func (h *Hub) broadcast(matchID int, exclude string, msg chessdto.ServerMessage) {
	for _, m := range h.reg.members(matchID) {
		if m.conn.ID() == exclude {
			continue
		}
		h.send(m.conn, msg)
	}
}

func (h *Hub) send(c Conn, msg chessdto.ServerMessage) {
	if err := c.Send(msg); err != nil {
		obslog.L().Warn("hub_send_failed",
			zap.String("conn_id", c.ID()),
			zap.String("type", string(msg.ServerMessageType)),
			zap.Error(err),
		)
	}
}

func (h *Hub) notice(key string, data map[string]string) chessdto.ServerMessage {
	return chessdto.Notification(h.msgs.Text(key, data))
}

func (h *Hub) reject(c Conn, err error) {
	h.send(c, chessdto.ErrorMessage(h.msgs.Text(errorKey(err), nil)))
}

func encodeGame(g *chess.Game) (json.RawMessage, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode game: %w", err)
	}
	return raw, nil
}
