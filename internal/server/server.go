// Package server is the single-writer event loop of the game server: it
// owns the session and room registries, routes parsed datagrams to
// handlers, and runs the periodic timeout sweep. One mutex covers the
// whole path from parse to sweep; no handler blocks on I/O while
// holding it (UDP egress is best-effort and non-blocking).
package server

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/config"
	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/protocol"
	"github.com/mzelenka/dama-server/internal/room"
	"github.com/mzelenka/dama-server/internal/session"
)

const (
	sweepInterval      = 500 * time.Millisecond
	configResendPeriod = 3 * time.Second
	maxPauseThreshold  = 12 * time.Second
)

// Sender delivers one outbound line to an endpoint. Failures must not
// unwind committed state; implementations log and swallow them.
type Sender interface {
	Send(addr *net.UDPAddr, line string)
}

// UDPSender writes datagrams on a bound socket.
type UDPSender struct {
	Conn *net.UDPConn
}

func (s *UDPSender) Send(addr *net.UDPAddr, line string) {
	if s == nil || s.Conn == nil || addr == nil {
		return
	}
	if _, err := s.Conn.WriteToUDP([]byte(line), addr); err != nil {
		obslog.L().Warn("send_failed", zap.String("to", addr.String()), zap.Error(err))
	}
}

// Server holds the whole mutable server state.
type Server struct {
	mu sync.Mutex

	cfg      *config.Config
	sessions *session.Registry
	rooms    *room.Registry
	out      Sender

	now       func() time.Time // test hook
	lastSweep time.Time
}

func New(cfg *config.Config, out Sender) *Server {
	return &Server{
		cfg:      cfg,
		sessions: session.NewRegistry(cfg.MaxPlayers),
		rooms:    room.NewRegistry(cfg.MaxRooms),
		out:      out,
		now:      time.Now,
	}
}

// Run reads datagrams until ctx is done. The read deadline doubles as the
// sweep pacing, so timeouts fire even when no traffic arrives.
func (s *Server) Run(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, protocol.MaxDatagram+1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(sweepInterval))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				s.Tick()
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			obslog.L().Warn("recv_failed", zap.Error(err))
			continue
		}
		s.HandleDatagram(addr, buf[:n])
		s.Tick()
	}
}

// HandleDatagram processes one inbound datagram end to end.
func (s *Server) HandleDatagram(addr *net.UDPAddr, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(payload) > protocol.MaxDatagram {
		s.out.Send(addr, protocol.Error(0, protocol.CodeInvalidFormat, "Message too long"))
		return
	}

	msg, err := protocol.Parse(string(payload))
	if err != nil {
		s.out.Send(addr, protocol.Error(0, protocol.CodeInvalidFormat, "Cannot parse message"))
		return
	}

	now := s.now()
	endpoint := addr.String()
	p := s.sessions.ByEndpoint(endpoint)
	if p != nil {
		p.LastSeen = now
		p.Connected = true
		p.Addr = addr
	}

	s.dispatch(msg, endpoint, addr, p, now)
}

// Tick runs the timeout sweep when it is overdue.
func (s *Server) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	s.sweep(now)
}

// send delivers a line to a player's current endpoint.
func (s *Server) send(p *session.Player, line string) {
	if p == nil || p.Addr == nil {
		return
	}
	s.out.Send(p.Addr, line)
}

// broadcastGameState emits GAME_STATE to every seat of rm.
func (s *Server) broadcastGameState(id int, rm *room.Room, now time.Time) {
	line := s.gameStateLine(id, rm, now)
	for _, tok := range rm.Seats {
		s.send(s.sessions.ByToken(tok), line)
	}
}

func (s *Server) gameStateLine(id int, rm *room.Room, now time.Time) string {
	fields := []string{
		"GAME_STATE",
		protocol.KVInt("room", rm.ID),
		protocol.KV("turn", rm.Turn.String()),
		protocol.KV("board", rm.Board.String()),
		protocol.KVInt64("remainingMs", rm.RemainingMs(now, s.cfg.TurnTimeout())),
	}
	if rm.CaptureLock != nil {
		fields = append(fields, protocol.KV("lock",
			strconv.Itoa(rm.CaptureLock.Row)+","+strconv.Itoa(rm.CaptureLock.Col)))
	}
	return protocol.Line(id, fields...)
}

// sendGameEnd marks rm FINISHED and emits GAME_END to every seat. The
// caller resets the room afterwards. With winnerOverride "NONE" the
// winner is derived from the reason code.
func (s *Server) sendGameEnd(id int, rm *room.Room, reason, winnerOverride string) {
	rm.Status = room.StatusFinished
	rm.Turn = room.TurnNone
	rm.CaptureLock = nil

	winner := winnerOverride
	if winner == "NONE" {
		switch {
		case strings.HasPrefix(reason, "WHITE_WIN"):
			winner = "WHITE"
		case strings.HasPrefix(reason, "BLACK_WIN"):
			winner = "BLACK"
		}
	}

	line := protocol.Line(id,
		"GAME_END",
		protocol.KVInt("room", rm.ID),
		protocol.KV("reason", reason),
		protocol.KV("winner", winner),
	)
	for _, tok := range rm.Seats {
		s.send(s.sessions.ByToken(tok), line)
	}

	obslog.L().Info("game_end",
		zap.Int("room", rm.ID),
		zap.String("reason", reason),
		zap.String("winner", winner),
	)
}

// sendConfig pushes the server parameters to a player; retransmitted by
// the sweep until CONFIG_ACK arrives.
func (s *Server) sendConfig(p *session.Player, now time.Time) {
	s.send(p, protocol.Line(0, "CONFIG", protocol.KVInt("turnTimeoutMs", s.cfg.TurnTimeoutMs)))
	p.LastConfigSent = now
}

// strike advances the invalid-message meter of token and drops the
// session on the third strike within the window.
func (s *Server) strike(token string, now time.Time, reason string) {
	if token == "" {
		return
	}
	count, drop := s.sessions.RegisterInvalid(token, now)
	if count == 0 {
		return
	}
	obslog.L().Warn("invalid_message",
		zap.String("token", token),
		zap.Int("count", count),
		zap.String("reason", reason),
	)
	if drop {
		obslog.L().Warn("drop_player", zap.String("token", token))
		s.dropPlayer(token)
	}
}

// dropPlayer removes a session and cleans up every room referencing it
// in the same step.
func (s *Server) dropPlayer(token string) {
	for _, rm := range s.rooms.RoomsOf(token) {
		if rm.Status == room.StatusInGame {
			s.sendGameEnd(0, rm, protocol.ReasonOpponentLeft, "NONE")
			rm.Reset()
			continue
		}
		s.removeSeat(rm, token)
	}
	s.sessions.Remove(token)
}

// removeSeat takes token out of rm and resets the room when it empties.
func (s *Server) removeSeat(rm *room.Room, token string) {
	idx := rm.SeatIndex(token)
	if idx < 0 {
		return
	}
	rm.Seats = append(rm.Seats[:idx], rm.Seats[idx+1:]...)
	if len(rm.Seats) == 0 {
		rm.Reset()
	}
}

// roomHasPausedPlayer reports whether any seat of rm is paused, gone, or
// disconnected; no MOVE is accepted in that state.
func (s *Server) roomHasPausedPlayer(rm *room.Room) bool {
	for _, tok := range rm.Seats {
		p := s.sessions.ByToken(tok)
		if p == nil || p.Paused || !p.Connected {
			return true
		}
	}
	return false
}

