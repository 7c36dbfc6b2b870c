package match

import (
	"strings"
	"time"

	"github.com/park285/cheese-chess-hub/internal/chess"
)

// State is the lifecycle of a match record.
type State string

const (
	StateReady      State = "READY"
	StateInProgress State = "IN_PROGRESS"
	StateUnfinished State = "UNFINISHED"
	StateComplete   State = "COMPLETE"
)

// Team is the role a connection plays in a match. TeamNone is an observer.
type Team string

const (
	TeamNone  Team = ""
	TeamWhite Team = "WHITE"
	TeamBlack Team = "BLACK"
)

func ParseTeam(s string) Team {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return TeamWhite
	case "black", "b":
		return TeamBlack
	default:
		return TeamNone
	}
}

func TeamOf(c chess.Color) Team {
	if c == chess.Black {
		return TeamBlack
	}
	return TeamWhite
}

// Color maps a seated team to its side. ok is false for observers.
func (t Team) Color() (chess.Color, bool) {
	switch t {
	case TeamWhite:
		return chess.White, true
	case TeamBlack:
		return chess.Black, true
	default:
		return chess.White, false
	}
}

func (t Team) Opponent() Team {
	switch t {
	case TeamWhite:
		return TeamBlack
	case TeamBlack:
		return TeamWhite
	default:
		return TeamNone
	}
}

// DisplayName is the label used in player-facing notices.
func (t Team) DisplayName() string {
	switch t {
	case TeamWhite:
		return "WHITE TEAM"
	case TeamBlack:
		return "BLACK TEAM"
	default:
		return "OBSERVER"
	}
}

// Outcome reasons recorded once a match is complete.
const (
	ReasonCheckmate   = "checkmate"
	ReasonStalemate   = "stalemate"
	ReasonResignation = "resignation"
)

// Record is the persisted state of one match.
type Record struct {
	ID            int         `json:"gameID"`
	WhiteUsername string      `json:"whiteUsername,omitempty"`
	BlackUsername string      `json:"blackUsername,omitempty"`
	Name          string      `json:"gameName"`
	Game          *chess.Game `json:"game"`
	State         State       `json:"state"`
	Moves         []string    `json:"moves,omitempty"`
	Winner        Team        `json:"winner,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// New returns a fresh Ready record with the opening position and no seated players.
func New(name string, now time.Time) *Record {
	return &Record{
		Name:      name,
		Game:      chess.NewGame(),
		State:     StateReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone deep-copies the record so callers can mutate it without touching a shared copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Game = r.Game.Clone()
	if r.Moves != nil {
		cp.Moves = append([]string(nil), r.Moves...)
	}
	return &cp
}

// Seat returns the username occupying t's seat.
func (r *Record) Seat(t Team) string {
	switch t {
	case TeamWhite:
		return r.WhiteUsername
	case TeamBlack:
		return r.BlackUsername
	default:
		return ""
	}
}

func (r *Record) SetSeat(t Team, username string) {
	switch t {
	case TeamWhite:
		r.WhiteUsername = username
	case TeamBlack:
		r.BlackUsername = username
	}
}

// TeamFor finds the seat held by username, or TeamNone.
func (r *Record) TeamFor(username string) Team {
	switch {
	case username == "":
		return TeamNone
	case r.WhiteUsername == username:
		return TeamWhite
	case r.BlackUsername == username:
		return TeamBlack
	default:
		return TeamNone
	}
}

func (r *Record) BothSeated() bool {
	return r.WhiteUsername != "" && r.BlackUsername != ""
}

func (r *Record) Complete() bool { return r.State == StateComplete }

// Finish freezes the record. A Complete record is never reopened.
func (r *Record) Finish(winner Team, reason string) {
	r.State = StateComplete
	r.Winner = winner
	r.Reason = reason
}
