package server

import (
	"net"
	"time"

	"github.com/mzelenka/dama-server/internal/protocol"
	"github.com/mzelenka/dama-server/internal/session"
)

// dispatch routes one parsed message. LOGIN, PING, and RECONNECT work
// without a session; a session-less BYE still gets BYE_OK; everything
// else requires the endpoint to be bound.
func (s *Server) dispatch(msg *protocol.Message, endpoint string, addr *net.UDPAddr, p *session.Player, now time.Time) {
	switch msg.Type {
	case protocol.TypeLogin:
		s.handleLogin(msg, endpoint, addr, now)
		return
	case protocol.TypePing:
		s.out.Send(addr, protocol.Line(msg.ID, "PONG"))
		return
	case protocol.TypeReconnect:
		s.handleReconnect(msg, endpoint, addr, now)
		return
	}

	if p == nil {
		if msg.Type == protocol.TypeBye {
			// BYE is idempotent; a gone session still gets its ack.
			s.out.Send(addr, protocol.Line(msg.ID, "BYE_OK"))
			return
		}
		s.out.Send(addr, protocol.Error(msg.ID, protocol.CodeNotLoggedIn))
		return
	}

	switch msg.Type {
	case protocol.TypeListRooms:
		s.handleListRooms(msg, p)
	case protocol.TypeCreateRoom:
		s.handleCreateRoom(msg, p, now)
	case protocol.TypeJoinRoom:
		s.handleJoinRoom(msg, p, now)
	case protocol.TypeLeaveRoom:
		s.handleLeaveRoom(msg, p, now)
	case protocol.TypeMove:
		s.handleMove(msg, p, now)
	case protocol.TypeLegalMoves:
		s.handleLegalMoves(msg, p, now)
	case protocol.TypeBye:
		s.handleBye(msg, p)
	case protocol.TypeConfigAck:
		p.ConfigAcked = true
	default:
		s.send(p, protocol.Error(msg.ID, protocol.CodeUnsupported, "Unsupported message type"))
		s.strike(p.Token, now, protocol.CodeUnsupported)
	}
}
