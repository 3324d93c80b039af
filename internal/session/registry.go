// Package session tracks logged-in players. The authoritative map is
// token → Player; endpoint → token is an index so NAT rebinding and
// reconnects never orphan a session.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"sort"
	"strings"
	"time"
)

const (
	maxNickLen = 64

	invalidWindow = 30 * time.Second
	invalidLimit  = 3
)

var (
	ErrAlreadyLoggedIn = errors.New("endpoint already owns a session with another nick")
	ErrServerFull      = errors.New("players limit reached")
	ErrTokenNotFound   = errors.New("unknown resume token")
	ErrTokenExpired    = errors.New("resume token expired")
)

// ValidateNick rejects empty, oversized, or delimiter-bearing nicks.
// The returned message is the INVALID_FORMAT detail.
func ValidateNick(nick string) (string, bool) {
	if nick == "" {
		return "Missing nick", false
	}
	if strings.ContainsAny(nick, ";=") {
		return "Invalid chars in nick", false
	}
	if len(nick) > maxNickLen {
		return "Nick too long", false
	}
	return "", true
}

// Registry owns every living Player. It carries no lock; the server's
// single writer covers it.
type Registry struct {
	byToken    map[string]*Player
	byEndpoint map[string]string
	nextID     int
	maxPlayers int
}

func NewRegistry(maxPlayers int) *Registry {
	return &Registry{
		byToken:    make(map[string]*Player),
		byEndpoint: make(map[string]string),
		nextID:     1,
		maxPlayers: maxPlayers,
	}
}

// Login binds a session to endpoint. A repeat LOGIN from a bound endpoint
// with the same nick returns the existing player (existing=true); a
// different nick is ErrAlreadyLoggedIn. New sessions respect the player
// limit.
func (r *Registry) Login(endpoint string, addr *net.UDPAddr, nick string, now time.Time) (p *Player, existing bool, err error) {
	if tok, ok := r.byEndpoint[endpoint]; ok {
		if cur, ok := r.byToken[tok]; ok {
			if cur.Nick != "" && cur.Nick != nick {
				return nil, false, ErrAlreadyLoggedIn
			}
			return cur, true, nil
		}
		delete(r.byEndpoint, endpoint) // stale index entry
	}

	if len(r.byToken) >= r.maxPlayers {
		return nil, false, ErrServerFull
	}

	p = &Player{
		ID:            r.nextID,
		Nick:          nick,
		Token:         newToken(),
		Endpoint:      endpoint,
		Addr:          addr,
		Connected:     true,
		LastSeen:      now,
		LastMoveMsgID: -1,
	}
	r.nextID++
	r.byToken[p.Token] = p
	r.byEndpoint[endpoint] = p.Token
	return p, false, nil
}

// Reconnect resumes the session owning token from a possibly new endpoint.
func (r *Registry) Reconnect(token, endpoint string, addr *net.UDPAddr, now time.Time) (*Player, error) {
	p, ok := r.byToken[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if p.Paused && !p.ResumeDeadline.IsZero() && now.After(p.ResumeDeadline) {
		return nil, ErrTokenExpired
	}

	for ep, tok := range r.byEndpoint {
		if tok == token {
			delete(r.byEndpoint, ep)
		}
	}
	r.byEndpoint[endpoint] = token

	p.Endpoint = endpoint
	p.Addr = addr
	p.Connected = true
	p.Paused = false
	p.ResumeDeadline = time.Time{}
	p.LastSeen = now
	return p, nil
}

// ByEndpoint resolves the session currently bound to endpoint.
func (r *Registry) ByEndpoint(endpoint string) *Player {
	tok, ok := r.byEndpoint[endpoint]
	if !ok {
		return nil
	}
	return r.byToken[tok]
}

// ByToken resolves a session by its token.
func (r *Registry) ByToken(token string) *Player {
	return r.byToken[token]
}

// Remove erases the session and every endpoint binding pointing at it.
func (r *Registry) Remove(token string) {
	for ep, tok := range r.byEndpoint {
		if tok == token {
			delete(r.byEndpoint, ep)
		}
	}
	delete(r.byToken, token)
}

// RegisterInvalid advances the invalid-message meter and reports whether
// the session crossed the drop threshold. The 30 s window restarts when
// it lapses.
func (r *Registry) RegisterInvalid(token string, now time.Time) (count int, drop bool) {
	p, ok := r.byToken[token]
	if !ok {
		return 0, false
	}
	if p.InvalidWindowStart.IsZero() || now.Sub(p.InvalidWindowStart) > invalidWindow {
		p.InvalidCount = 0
		p.InvalidWindowStart = now
	}
	p.InvalidCount++
	return p.InvalidCount, p.InvalidCount >= invalidLimit
}

// Players lists every session ordered by id, for deterministic sweeps.
func (r *Registry) Players() []*Player {
	out := make([]*Player, 0, len(r.byToken))
	for _, p := range r.byToken {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of living sessions.
func (r *Registry) Count() int { return len(r.byToken) }

// newToken returns an opaque 64-bit hex resume token.
func newToken() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable for token issuance
		panic(err)
	}
	return hex.EncodeToString(b)
}
