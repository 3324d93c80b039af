package server

import (
	"errors"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/boardtext"
	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/protocol"
	"github.com/mzelenka/dama-server/internal/room"
	"github.com/mzelenka/dama-server/internal/session"
)

func (s *Server) handleLogin(msg *protocol.Message, endpoint string, addr *net.UDPAddr, now time.Time) {
	if len(msg.Params) < 1 {
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Missing nick"))
		return
	}
	nick := msg.Params[0]
	if detail, ok := session.ValidateNick(nick); !ok {
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeInvalidFormat, detail))
		return
	}

	p, existing, err := s.sessions.Login(endpoint, addr, nick, now)
	switch {
	case errors.Is(err, session.ErrAlreadyLoggedIn):
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeAlreadyLogged))
		obslog.L().Info("login_rejected", zap.String("endpoint", endpoint), zap.String("nick", nick))
		return
	case errors.Is(err, session.ErrServerFull):
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeServerFull, "Players limit reached"))
		return
	case err != nil:
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeInvalidFormat))
		return
	}

	s.out.Send(addr, protocol.Line(msg.ID,
		"LOGIN_OK",
		protocol.KVInt("player", p.ID),
		protocol.KV("token", p.Token),
	))
	s.sendConfig(p, now)

	if !existing {
		obslog.L().Info("login",
			zap.Int("player", p.ID),
			zap.String("nick", p.Nick),
			zap.String("endpoint", endpoint),
			zap.Int("turn_timeout_ms", s.cfg.TurnTimeoutMs),
		)
	}
}

func (s *Server) handleReconnect(msg *protocol.Message, endpoint string, addr *net.UDPAddr, now time.Time) {
	if len(msg.Params) < 1 || msg.Params[0] == "" {
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Missing token"))
		return
	}
	token := msg.Params[0]

	p, err := s.sessions.Reconnect(token, endpoint, addr, now)
	switch {
	case errors.Is(err, session.ErrTokenNotFound):
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeTokenNotFound))
		return
	case errors.Is(err, session.ErrTokenExpired):
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeTokenExpired))
		return
	case err != nil:
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeTokenNotFound))
		return
	}

	s.send(p, protocol.Line(msg.ID, "RECONNECT_OK"))
	obslog.L().Info("reconnect", zap.Int("player", p.ID), zap.String("endpoint", endpoint))

	for _, rm := range s.rooms.RoomsOf(p.Token) {
		if rm.Status != room.StatusInGame {
			continue
		}
		if !s.roomHasPausedPlayer(rm) {
			rm.ResumeTurn(now, s.cfg.TurnTimeout())
			s.broadcastGameState(0, rm, now)
			obslog.L().Info("game_resumed", zap.Int("room", rm.ID))
			continue
		}
		// Opponent still away; tell the reconnecter when the game dies.
		resumeBy := now.Add(s.cfg.ReconnectWindow())
		if opp := s.sessions.ByToken(rm.OpponentToken(p.Token)); opp != nil && !opp.ResumeDeadline.IsZero() {
			resumeBy = opp.ResumeDeadline
		}
		s.send(p, protocol.Line(0,
			"GAME_PAUSED",
			protocol.KVInt("room", rm.ID),
			protocol.KVInt64("resumeBy", resumeBy.UnixMilli()),
		))
	}
}

func (s *Server) handleListRooms(msg *protocol.Message, p *session.Player) {
	rooms := s.rooms.List()
	if len(rooms) == 0 {
		s.send(p, protocol.Line(msg.ID, "ROOMS_EMPTY"))
		return
	}
	for _, rm := range rooms {
		s.send(p, protocol.Line(msg.ID,
			"ROOM",
			protocol.KVInt("id", rm.ID),
			protocol.KV("name", rm.Name),
			protocol.KVInt("players", len(rm.Seats)),
			protocol.KV("status", string(rm.Status)),
		))
	}
}

func (s *Server) handleCreateRoom(msg *protocol.Message, p *session.Player, now time.Time) {
	if len(msg.Params) < 1 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "Missing room name"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}
	// The client name is validated like a nick, then replaced by the
	// server-assigned table name.
	if detail, ok := session.ValidateNick(msg.Params[0]); !ok {
		if detail == "Missing nick" {
			detail = "Missing room name"
		} else if detail == "Nick too long" {
			detail = "Room name too long"
		} else {
			detail = "Invalid chars in room name"
		}
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, detail))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}

	rm, err := s.rooms.Create()
	if errors.Is(err, room.ErrRoomLimit) {
		s.send(p, protocol.Error(msg.ID, protocol.CodeServerFull, "Rooms limit reached"))
		return
	}

	s.send(p, protocol.Line(msg.ID,
		"CREATE_ROOM_OK",
		protocol.KVInt("room", rm.ID),
		protocol.KV("name", rm.Name),
	))
	obslog.L().Info("create_room", zap.Int("room", rm.ID), zap.String("name", rm.Name))
}

func (s *Server) handleJoinRoom(msg *protocol.Message, p *session.Player, now time.Time) {
	roomID, ok := msg.Int(0)
	if !ok {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "roomId must be number"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}

	rm := s.rooms.Get(roomID)
	if rm == nil {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotFound))
		s.strike(p.Token, now, protocol.CodeRoomNotFound)
		return
	}
	if rm.Status != room.StatusWaiting {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotAvail))
		return
	}
	if rm.SeatIndex(p.Token) < 0 {
		if len(rm.Seats) >= room.Capacity {
			s.send(p, protocol.Error(msg.ID, protocol.CodeRoomFull))
			return
		}
		rm.Seats = append(rm.Seats, p.Token)
	}

	s.send(p, protocol.Line(msg.ID,
		"JOIN_ROOM_OK",
		protocol.KVInt("room", rm.ID),
		protocol.KV("players", strconv.Itoa(len(rm.Seats))+"/"+strconv.Itoa(room.Capacity)),
	))
	obslog.L().Info("join_room",
		zap.Int("room", rm.ID),
		zap.Int("player", p.ID),
		zap.Int("seats", len(rm.Seats)),
	)

	if len(rm.Seats) < room.Capacity {
		return
	}

	rm.Start(now)
	for i, tok := range rm.Seats {
		seatP := s.sessions.ByToken(tok)
		if seatP == nil {
			continue
		}
		fields := []string{
			"GAME_START",
			protocol.KVInt("room", rm.ID),
			protocol.KV("you", room.SeatColor(i).String()),
		}
		if opp := s.sessions.ByToken(rm.OpponentToken(tok)); opp != nil && opp.Nick != "" {
			fields = append(fields, protocol.KV("opponent", opp.Nick))
		}
		s.send(seatP, protocol.Line(msg.ID, fields...))
	}
	s.broadcastGameState(msg.ID, rm, now)
	obslog.L().Info("game_start", zap.Int("room", rm.ID))
	obslog.L().Debug("board", zap.Int("room", rm.ID),
		zap.String("view", "\n"+boardtext.Render(rm.Board.String())))
}

func (s *Server) handleLeaveRoom(msg *protocol.Message, p *session.Player, now time.Time) {
	roomID, ok := msg.Int(0)
	if !ok {
		s.send(p, protocol.Error(msg.ID, protocol.CodeInvalidFormat, "roomId must be number"))
		s.strike(p.Token, now, protocol.CodeInvalidFormat)
		return
	}

	rm := s.rooms.Get(roomID)
	if rm == nil {
		s.send(p, protocol.Error(msg.ID, protocol.CodeRoomNotFound))
		s.strike(p.Token, now, protocol.CodeRoomNotFound)
		return
	}
	idx := rm.SeatIndex(p.Token)
	if idx < 0 {
		s.send(p, protocol.Error(msg.ID, protocol.CodeNotInRoom))
		s.strike(p.Token, now, protocol.CodeNotInRoom)
		return
	}

	leavingWasWhite := idx == 0
	wasInGame := rm.Status == room.StatusInGame
	rm.Seats = append(rm.Seats[:idx], rm.Seats[idx+1:]...)

	s.send(p, protocol.Line(msg.ID, "LEAVE_ROOM_OK", protocol.KVInt("room", rm.ID)))
	obslog.L().Info("leave_room", zap.Int("room", rm.ID), zap.Int("player", p.ID))

	if len(rm.Seats) == 0 {
		rm.Reset()
		return
	}
	if wasInGame {
		winner := "WHITE"
		if leavingWasWhite {
			winner = "BLACK"
		}
		s.sendGameEnd(msg.ID, rm, protocol.ReasonOpponentLeft, winner)
		rm.Reset()
	}
}

func (s *Server) handleBye(msg *protocol.Message, p *session.Player) {
	for _, rm := range s.rooms.RoomsOf(p.Token) {
		if rm.Status == room.StatusInGame {
			s.sendGameEnd(msg.ID, rm, protocol.ReasonOpponentLeft, "NONE")
			rm.Reset()
			continue
		}
		s.removeSeat(rm, p.Token)
	}
	s.sessions.Remove(p.Token)
	s.send(p, protocol.Line(msg.ID, "BYE_OK"))
	obslog.L().Info("bye", zap.Int("player", p.ID))
}
