package room

import (
	"time"

	"github.com/mzelenka/dama-server/internal/board"
)

// Capacity is the number of seats per room.
const Capacity = 2

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusInGame   Status = "IN_GAME"
	StatusFinished Status = "FINISHED"
)

// Turn names the seat on the move.
type Turn int

const (
	TurnNone Turn = iota
	TurnPlayer1
	TurnPlayer2
)

func (t Turn) String() string {
	switch t {
	case TurnPlayer1:
		return "PLAYER1"
	case TurnPlayer2:
		return "PLAYER2"
	default:
		return "NONE"
	}
}

// Room is a two-seat game container. Seat 0 plays WHITE, seat 1 BLACK.
// The turn clock is either running (LastTurnAt set, RemainingTurnMs == -1)
// or frozen (LastTurnAt zero, RemainingTurnMs >= 0) while IN_GAME.
type Room struct {
	ID     int
	Name   string
	Status Status
	Seats  []string // player tokens
	Turn   Turn

	Board       board.Board
	CaptureLock *board.Square

	LastTurnAt      time.Time
	RemainingTurnMs int64
}

// SeatIndex returns the seat of token, -1 when absent.
func (r *Room) SeatIndex(token string) int {
	for i, t := range r.Seats {
		if t == token {
			return i
		}
	}
	return -1
}

// OpponentToken returns the other seat's token, "" when there is none.
func (r *Room) OpponentToken(token string) string {
	for _, t := range r.Seats {
		if t != token {
			return t
		}
	}
	return ""
}

// SeatColor maps a seat index to its side.
func SeatColor(seat int) board.Color {
	if seat == 0 {
		return board.White
	}
	return board.Black
}

// TurnSeat returns the seat index on the move, -1 when none.
func (r *Room) TurnSeat() int {
	switch r.Turn {
	case TurnPlayer1:
		return 0
	case TurnPlayer2:
		return 1
	default:
		return -1
	}
}

// Start transitions a full WAITING room into a fresh game.
func (r *Room) Start(now time.Time) {
	r.Status = StatusInGame
	r.Turn = TurnPlayer1
	r.Board = board.Initial()
	r.CaptureLock = nil
	r.LastTurnAt = now
	r.RemainingTurnMs = -1
}

// Reset returns the room to WAITING with empty seats and no board.
func (r *Room) Reset() {
	r.Status = StatusWaiting
	r.Turn = TurnNone
	r.Seats = nil
	r.Board = nil
	r.CaptureLock = nil
	r.LastTurnAt = time.Time{}
	r.RemainingTurnMs = -1
}

// RotateTurn passes the move to the other seat.
func (r *Room) RotateTurn() {
	if r.Turn == TurnPlayer1 {
		r.Turn = TurnPlayer2
	} else {
		r.Turn = TurnPlayer1
	}
}

// ReanchorTurn restarts the turn clock at asOf.
func (r *Room) ReanchorTurn(asOf time.Time) {
	r.LastTurnAt = asOf
	r.RemainingTurnMs = -1
}

// FreezeTurn stops the turn clock, keeping the unspent remainder. asOf is
// the effective current time (the sweep may pass the last datagram seen
// instead of now). Freezing an already frozen clock is a no-op.
func (r *Room) FreezeTurn(asOf time.Time, turnTimeout time.Duration) {
	if r.LastTurnAt.IsZero() {
		return
	}
	elapsed := asOf.Sub(r.LastTurnAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := turnTimeout - elapsed
	if remaining < 0 {
		remaining = 0
	}
	r.RemainingTurnMs = remaining.Milliseconds()
	r.LastTurnAt = time.Time{}
}

// ResumeTurn re-anchors a frozen clock so the stored remainder is kept.
func (r *Room) ResumeTurn(now time.Time, turnTimeout time.Duration) {
	if !r.LastTurnAt.IsZero() {
		return
	}
	remaining := r.RemainingTurnMs
	if remaining < 0 {
		remaining = turnTimeout.Milliseconds()
	}
	spent := turnTimeout - time.Duration(remaining)*time.Millisecond
	r.LastTurnAt = now.Add(-spent)
	r.RemainingTurnMs = -1
}

// RemainingMs reports the unspent turn clock for GAME_STATE.
func (r *Room) RemainingMs(now time.Time, turnTimeout time.Duration) int64 {
	if !r.LastTurnAt.IsZero() {
		rem := turnTimeout - now.Sub(r.LastTurnAt)
		if rem < 0 {
			rem = 0
		}
		return rem.Milliseconds()
	}
	if r.RemainingTurnMs >= 0 {
		return r.RemainingTurnMs
	}
	return turnTimeout.Milliseconds()
}

// TurnExpired reports whether the running clock passed the turn timeout.
// A frozen clock never expires.
func (r *Room) TurnExpired(now time.Time, turnTimeout time.Duration) bool {
	return !r.LastTurnAt.IsZero() && now.Sub(r.LastTurnAt) > turnTimeout
}
