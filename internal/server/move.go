package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/board"
	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/protocol"
	"github.com/mzelenka/dama-server/internal/room"
	"github.com/mzelenka/dama-server/internal/session"
)

// handleMove runs the whole move pipeline: admission checks in protocol
// precedence order, the board kernel, chain bookkeeping, clock re-anchor,
// broadcast, and win detection.
func (s *Server) handleMove(msg *protocol.Message, p *session.Player, now time.Time) {
	if len(msg.Params) < 5 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Missing roomId/fromRow/fromCol/toRow/toCol"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}
	roomID, ok0 := msg.Int(0)
	fromRow, ok1 := msg.Int(1)
	fromCol, ok2 := msg.Int(2)
	toRow, ok3 := msg.Int(3)
	toCol, ok4 := msg.Int(4)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Coordinates must be numbers"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}

	rm := s.rooms.Get(roomID)
	if rm == nil {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotFound))
		s.strike(p.Token, now, protocol.CodeRoomNotFound)
		return
	}
	if rm.Status != room.StatusInGame {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotInGame))
		s.strike(p.Token, now, protocol.CodeRoomNotInGame)
		return
	}
	seat := rm.SeatIndex(p.Token)
	if seat < 0 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeNotInRoom))
		s.strike(p.Token, now, protocol.CodeNotInRoom)
		return
	}

	// Datagrams duplicate; a replayed MOVE succeeds silently with no effect.
	if msg.ID <= p.LastMoveMsgID {
		return
	}
	p.LastMoveMsgID = msg.ID

	if rm.TurnSeat() != seat {
		s.send(p, protocol.Error(msg.ID, protocol.CodeNotYourTurn))
		s.strike(p.Token, now, protocol.CodeNotYourTurn)
		return
	}
	if s.roomHasPausedPlayer(rm) {
		s.send(p, protocol.Error(msg.ID, protocol.CodeGamePaused))
		s.strike(p.Token, now, protocol.CodeGamePaused)
		return
	}

	mover := room.SeatColor(seat)
	outcome, err := board.Apply(rm.Board,
		board.Square{Row: fromRow, Col: fromCol},
		board.Square{Row: toRow, Col: toCol},
		mover, rm.CaptureLock)
	if err != nil {
		code := protocol.CodeInvalidMove
		var v board.Violation
		if errors.As(err, &v) {
			code = string(v)
		}
		s.send(p, protocol.Error(msg.ID, code))
		s.strike(p.Token, now, code)
		return
	}

	if outcome.ChainContinues {
		rm.CaptureLock = &board.Square{Row: toRow, Col: toCol}
	} else {
		rm.CaptureLock = nil
		rm.RotateTurn()
	}
	rm.ReanchorTurn(now)

	obslog.L().Info("move",
		zap.Int("room", rm.ID),
		zap.String("from", strconv.Itoa(fromRow)+","+strconv.Itoa(fromCol)),
		zap.String("to", strconv.Itoa(toRow)+","+strconv.Itoa(toCol)),
		zap.Int("seat", seat+1),
		zap.Bool("capture", outcome.Captured != nil),
		zap.Bool("king", board.IsKing(outcome.Piece)),
	)

	opponent := mover.Opponent()
	opponentHasPieces := board.HasAnyPiece(rm.Board, opponent)
	opponentHasMoves := board.HasAnyMove(rm.Board, opponent)

	s.broadcastGameState(msg.ID, rm, now)

	switch {
	case !opponentHasPieces:
		s.sendGameEnd(msg.ID, rm, winReason(mover, "NO_PIECES"), "NONE")
		rm.Reset()
	case !opponentHasMoves:
		s.sendGameEnd(msg.ID, rm, winReason(mover, "NO_MOVES"), "NONE")
		rm.Reset()
	}
}

func (s *Server) handleLegalMoves(msg *protocol.Message, p *session.Player, now time.Time) {
	if len(msg.Params) < 3 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Missing roomId/row/col"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}
	roomID, ok0 := msg.Int(0)
	row, ok1 := msg.Int(1)
	col, ok2 := msg.Int(2)
	if !ok0 || !ok1 || !ok2 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "roomId/row/col must be numbers"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}

	rm := s.rooms.Get(roomID)
	if rm == nil {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotFound))
		s.strike(p.Token, now, protocol.CodeRoomNotFound)
		return
	}
	if rm.Status != room.StatusInGame {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotInGame))
		s.strike(p.Token, now, protocol.CodeRoomNotInGame)
		return
	}
	seat := rm.SeatIndex(p.Token)
	if seat < 0 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeNotInRoom))
		s.strike(p.Token, now, protocol.CodeNotInRoom)
		return
	}
	if s.roomHasPausedPlayer(rm) {
		s.send(p, protocol.Error(msg.ID, protocol.CodeGamePaused))
		s.strike(p.Token, now, protocol.CodeGamePaused)
		return
	}

	dests, mustCapture, err := board.LegalMoves(rm.Board,
		board.Square{Row: row, Col: col}, room.SeatColor(seat), rm.CaptureLock)
	if err != nil {
		code := protocol.CodeInvalidSquare
		var v board.Violation
		if errors.As(err, &v) {
			code = string(v)
		}
		s.send(p, protocol.Error(msg.ID, code))
		s.strike(p.Token, now, code)
		return
	}

	var to strings.Builder
	for i, d := range dests {
		if i > 0 {
			to.WriteByte('|')
		}
		to.WriteString(strconv.Itoa(d.Row))
		to.WriteByte(',')
		to.WriteString(strconv.Itoa(d.Col))
	}
	flag := "0"
	if mustCapture {
		flag = "1"
	}
	s.send(p, protocol.Line(msg.ID,
		"LEGAL_MOVES",
		protocol.KVInt("room", rm.ID),
		protocol.KV("from", strconv.Itoa(row)+","+strconv.Itoa(col)),
		protocol.KV("to", to.String()),
		protocol.KV("mustCapture", flag),
	))
}

func winReason(mover board.Color, suffix string) string {
	if mover == board.White {
		return "WHITE_WIN_" + suffix
	}
	return "BLACK_WIN_" + suffix
}
