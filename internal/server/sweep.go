package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/protocol"
	"github.com/mzelenka/dama-server/internal/room"
	"github.com/mzelenka/dama-server/internal/session"
)

// sweep is the periodic scheduler pass. All deadlines come from the
// monotonic clock; a wall clock only feeds the resumeBy advertised in
// GAME_PAUSED. Order matters: the outage freeze must run before the
// turn-timeout pass or a server stall would forfeit games.
func (s *Server) sweep(now time.Time) {
	s.resendConfigs(now)
	s.freezeStaleRooms(now)
	s.expireHeartbeats(now)
	s.expireTurns(now)
	s.expireReconnects(now)
	s.cleanupOrphanedRooms(now)
}

// resendConfigs retransmits CONFIG to connected sessions until acked.
func (s *Server) resendConfigs(now time.Time) {
	for _, p := range s.sessions.Players() {
		if !p.Connected || p.ConfigAcked {
			continue
		}
		if now.Sub(p.LastConfigSent) >= configResendPeriod {
			s.sendConfig(p, now)
		}
	}
}

// freezeStaleRooms stops turn clocks in rooms where every seat has gone
// quiet, using the most recent datagram seen as the effective time. This
// keeps a server-side stall from eating the mover's clock.
func (s *Server) freezeStaleRooms(now time.Time) {
	threshold := s.pauseThreshold()
	if threshold <= 0 {
		return
	}
	for _, rm := range s.rooms.List() {
		if rm.Status != room.StatusInGame || rm.LastTurnAt.IsZero() || len(rm.Seats) == 0 {
			continue
		}
		anyPlayer := false
		allStale := true
		var freezeAt time.Time
		for _, tok := range rm.Seats {
			p := s.sessions.ByToken(tok)
			if p == nil {
				continue
			}
			anyPlayer = true
			if p.LastSeen.After(freezeAt) {
				freezeAt = p.LastSeen
			}
			if now.Sub(p.LastSeen) <= threshold {
				allStale = false
				break
			}
		}
		if anyPlayer && allStale {
			if freezeAt.IsZero() {
				freezeAt = now
			}
			rm.FreezeTurn(freezeAt, s.cfg.TurnTimeout())
		}
	}
}

// expireHeartbeats pauses sessions that stopped sending and pauses or
// vacates their rooms.
func (s *Server) expireHeartbeats(now time.Time) {
	for _, p := range s.sessions.Players() {
		if p.Paused || now.Sub(p.LastSeen) <= s.cfg.EffectiveHeartbeat() {
			continue
		}
		obslog.L().Warn("heartbeat_timeout",
			zap.Int("player", p.ID),
			zap.String("nick", p.Nick),
			zap.String("endpoint", p.Endpoint),
		)
		p.Connected = false
		p.Paused = true
		p.ResumeDeadline = now.Add(s.cfg.ReconnectWindow())

		for _, rm := range s.rooms.RoomsOf(p.Token) {
			if rm.Status == room.StatusInGame {
				s.pauseRoom(rm, p.Token, now)
				continue
			}
			s.removeSeat(rm, p.Token)
		}
	}
}

// pauseRoom freezes the turn clock and marks the absent seats paused,
// then advertises the resume deadline to whoever is still reachable.
func (s *Server) pauseRoom(rm *room.Room, offenderToken string, now time.Time) {
	rm.FreezeTurn(now, s.cfg.TurnTimeout())

	resumeBy := now.Add(s.cfg.ReconnectWindow())
	for _, tok := range rm.Seats {
		p := s.sessions.ByToken(tok)
		if p == nil {
			continue
		}
		if tok == offenderToken {
			p.Connected = false
			p.Paused = true
			p.ResumeDeadline = resumeBy
		} else if !p.Connected {
			p.Paused = true
			p.ResumeDeadline = resumeBy
		}
	}
	for _, tok := range rm.Seats {
		p := s.sessions.ByToken(tok)
		if p == nil || !p.Connected {
			continue
		}
		s.send(p, protocol.Line(0,
			"GAME_PAUSED",
			protocol.KVInt("room", rm.ID),
			protocol.KVInt64("resumeBy", resumeBy.UnixMilli()),
		))
	}
	obslog.L().Info("game_paused",
		zap.Int("room", rm.ID),
		zap.Int64("resume_by", resumeBy.UnixMilli()),
	)
}

// expireTurns forfeits the mover in rooms whose running clock lapsed.
func (s *Server) expireTurns(now time.Time) {
	for _, rm := range s.rooms.List() {
		if rm.Status != room.StatusInGame || !rm.TurnExpired(now, s.cfg.TurnTimeout()) {
			continue
		}
		obslog.L().Warn("turn_timeout", zap.Int("room", rm.ID))
		winner := "NONE"
		switch {
		case rm.Turn == room.TurnPlayer1 && len(rm.Seats) > 1:
			winner = "BLACK"
		case rm.Turn == room.TurnPlayer2 && len(rm.Seats) > 1:
			winner = "WHITE"
		}
		s.sendGameEnd(0, rm, protocol.ReasonTurnTimeout, winner)
		rm.Reset()
	}
}

// expireReconnects drops paused sessions whose window lapsed, awarding
// the game to a still-live opponent.
func (s *Server) expireReconnects(now time.Time) {
	for _, p := range s.sessions.Players() {
		if !p.Paused || p.ResumeDeadline.IsZero() || !now.After(p.ResumeDeadline) {
			continue
		}
		obslog.L().Warn("reconnect_timeout", zap.Int("player", p.ID), zap.String("nick", p.Nick))

		for _, rm := range s.rooms.RoomsOf(p.Token) {
			if rm.Status == room.StatusInGame {
				winner := "NONE"
				if opp := s.sessions.ByToken(rm.OpponentToken(p.Token)); opp != nil && s.opponentLive(opp, now) {
					if rm.SeatIndex(p.Token) == 0 {
						winner = "BLACK"
					} else {
						winner = "WHITE"
					}
				}
				s.sendGameEnd(0, rm, protocol.ReasonOpponentTimeout, winner)
			}
			rm.Reset()
		}
		s.sessions.Remove(p.Token)
	}
}

// opponentLive reports whether opp can still claim the win: connected, or
// paused with an unexpired window.
func (s *Server) opponentLive(opp *session.Player, now time.Time) bool {
	return !opp.Paused || opp.ResumeDeadline.IsZero() || opp.ResumeDeadline.After(now)
}

// cleanupOrphanedRooms resets IN_GAME rooms nobody can come back to.
func (s *Server) cleanupOrphanedRooms(now time.Time) {
	for _, rm := range s.rooms.List() {
		if rm.Status != room.StatusInGame {
			continue
		}
		anyConnected := false
		for _, tok := range rm.Seats {
			if p := s.sessions.ByToken(tok); p != nil && p.Connected {
				anyConnected = true
				break
			}
		}
		if anyConnected {
			continue
		}
		allExpired := true
		for _, tok := range rm.Seats {
			if p := s.sessions.ByToken(tok); p != nil {
				if p.ResumeDeadline.IsZero() || p.ResumeDeadline.After(now) {
					allExpired = false
					break
				}
			}
		}
		if allExpired {
			rm.Reset()
		}
	}
}

func (s *Server) pauseThreshold() time.Duration {
	threshold := s.cfg.EffectiveHeartbeat()
	if threshold > maxPauseThreshold {
		threshold = maxPauseThreshold
	}
	return threshold
}
