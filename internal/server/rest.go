package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-hub/internal/chess"
	"github.com/park285/cheese-chess-hub/internal/match"
	"github.com/park285/cheese-chess-hub/internal/obslog"
	"github.com/park285/cheese-chess-hub/internal/render"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

func (s *Server) withJSON(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	de := s.domainError(err)
	if de.Code == chessdto.CodeDataAccess {
		obslog.L().Error("http_error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	writeJSON(w, de.HTTPStatus(), de)
}

// domainError maps a lobby or store failure onto the wire error envelope.
func (s *Server) domainError(err error) chessdto.DomainError {
	switch {
	case errors.Is(err, match.ErrUnauthorized):
		return chessdto.DomainError{Code: chessdto.CodeUnauthorized, Message: s.msgs.Text("error.unauthorized", nil)}
	case errors.Is(err, match.ErrNotFound):
		return chessdto.DomainError{Code: chessdto.CodeNotFound, Message: s.msgs.Text("error.not_found", nil)}
	case errors.Is(err, match.ErrAlreadyTaken):
		return chessdto.DomainError{Code: chessdto.CodeAlreadyTaken, Message: s.msgs.Text("error.already_taken", nil)}
	case errors.Is(err, match.ErrInvalidRequest):
		return chessdto.DomainError{Code: chessdto.CodeBadRequest, Message: s.msgs.Text("error.bad_request", nil)}
	default:
		return chessdto.DomainError{Code: chessdto.CodeDataAccess, Message: s.msgs.Text("error.data_access", nil), Retryable: true}
	}
}

func authToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(match.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.CreateGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.lobby.CreateGame(r.Context(), authToken(r), req.GameName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.CreateGameResponse{GameID: id})
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.JoinGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.lobby.JoinGame(r.Context(), authToken(r), req.GameID, match.ParseTeam(req.PlayerColor)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	recs, err := s.lobby.ListGames(r.Context(), authToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	games := make([]chessdto.GameSummary, 0, len(recs))
	for _, rec := range recs {
		games = append(games, chessdto.GameSummary{
			GameID:        rec.ID,
			WhiteUsername: rec.WhiteUsername,
			BlackUsername: rec.BlackUsername,
			GameName:      rec.Name,
			State:         string(rec.State),
		})
	}
	writeJSON(w, http.StatusOK, chessdto.ListGamesResponse{Games: games})
}

// handleBoardPNG renders the stored position. ?perspective=black flips the board.
func (s *Server) handleBoardPNG(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, errors.Join(match.ErrInvalidRequest, err))
		return
	}
	rec, err := s.lobby.GetGame(r.Context(), authToken(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := render.Options{
		Header: rec.Name,
		Flip:   strings.EqualFold(r.URL.Query().Get("perspective"), "black"),
	}
	if n := len(rec.Moves); n > 0 {
		if last, err := chess.ParseMove(rec.Moves[n-1]); err == nil {
			opts.LastMove = &last
		}
	}
	if rec.Complete() {
		opts.Turn = string(match.StateComplete)
	} else {
		opts.Turn = rec.Game.Turn().String() + " to move"
	}

	img, err := s.renderer.RenderPNG(r.Context(), rec.Game.Board(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}
