// Package discovery answers LAN discovery probes. A client broadcasts the
// literal DISCOVER line on the secondary port and learns the game
// endpoint from the ENDPOINT reply.
package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/protocol"
)

// Responder owns the secondary UDP socket.
type Responder struct {
	conn *net.UDPConn
	host string
	port int
}

// Listen binds the discovery socket. gamePort is the advertised game
// endpoint; when bindHost is a wildcard the advertised host falls back
// to the primary outbound interface address.
func Listen(bindHost string, discoveryPort, gamePort int) (*Responder, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(bindHost), Port: discoveryPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("bind discovery socket: %w", err)
	}
	host := bindHost
	if host == "" || host == "0.0.0.0" {
		host = outboundIP()
	}
	return &Responder{conn: conn, host: host, port: gamePort}, nil
}

// Run serves probes until Close. Anything that is not a DISCOVER line is
// dropped silently.
func (r *Responder) Run() {
	buf := make([]byte, 64)
	for {
		_ = r.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return
			}
			obslog.L().Warn("discovery_recv_failed", zap.Error(err))
			continue
		}
		if strings.TrimSpace(string(buf[:n])) != "DISCOVER" {
			continue
		}
		reply := protocol.Line(0,
			"ENDPOINT",
			protocol.KV("host", r.host),
			protocol.KVInt("port", r.port),
		)
		if _, err := r.conn.WriteToUDP([]byte(reply), addr); err != nil {
			obslog.L().Warn("discovery_send_failed", zap.String("to", addr.String()), zap.Error(err))
		}
	}
}

func (r *Responder) Close() error { return r.conn.Close() }

// Addr returns the bound discovery address.
func (r *Responder) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// outboundIP guesses the address other hosts can reach us on. The dial
// sends no packets; it only resolves the routing decision.
func outboundIP() string {
	conn, err := net.Dial("udp4", "192.0.2.1:9")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	return "127.0.0.1"
}
