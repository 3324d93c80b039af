package session

import (
	"net"
	"time"
)

// Player is the persistent identity of a connected user. Identity is the
// token; the endpoint is only an index and changes on reconnect.
type Player struct {
	ID       int
	Nick     string
	Token    string
	Endpoint string // "ip:port" of the current transport address
	Addr     *net.UDPAddr

	Connected bool
	Paused    bool

	LastSeen       time.Time
	ResumeDeadline time.Time // zero unless paused

	LastMoveMsgID int // highest processed MOVE id, for dedup

	InvalidCount       int
	InvalidWindowStart time.Time

	ConfigAcked    bool
	LastConfigSent time.Time
}
