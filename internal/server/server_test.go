package server

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mzelenka/dama-server/internal/board"
	"github.com/mzelenka/dama-server/internal/config"
	"github.com/mzelenka/dama-server/internal/room"
)

const (
	epAlice = "127.0.0.1:1111"
	epBob   = "127.0.0.1:2222"
	epCarol = "127.0.0.1:3333"
)

type fakeSender struct {
	lines map[string][]string
}

func newFakeSender() *fakeSender { return &fakeSender{lines: make(map[string][]string)} }

func (f *fakeSender) Send(addr *net.UDPAddr, line string) {
	f.lines[addr.String()] = append(f.lines[addr.String()], strings.TrimRight(line, "\n"))
}

func (f *fakeSender) all(ep string) []string { return f.lines[ep] }

func (f *fakeSender) last(t *testing.T, ep string) string {
	t.Helper()
	ls := f.lines[ep]
	if len(ls) == 0 {
		t.Fatalf("no lines sent to %s", ep)
	}
	return ls[len(ls)-1]
}

func (f *fakeSender) clear() { f.lines = make(map[string][]string) }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func mustAddr(t *testing.T, ep string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp4", ep)
	if err != nil {
		t.Fatalf("resolve %s: %v", ep, err)
	}
	return addr
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeSender, *fakeClock) {
	t.Helper()
	cfg := config.Defaults()
	cfg.TimeoutMs = 20000
	cfg.TimeoutGrace = 1
	cfg.TurnTimeoutMs = 60000
	cfg.ReconnectWindowMs = 5000
	if mutate != nil {
		mutate(cfg)
	}
	out := newFakeSender()
	s := New(cfg, out)
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s.now = clk.now
	return s, out, clk
}

func (s *Server) recv(t *testing.T, ep, line string) {
	t.Helper()
	s.HandleDatagram(mustAddr(t, ep), []byte(line))
}

// loginToken logs in nick from ep and returns the issued resume token.
func loginToken(t *testing.T, s *Server, out *fakeSender, id int, ep, nick string) string {
	t.Helper()
	s.recv(t, ep, fmt.Sprintf("%d;LOGIN;%s", id, nick))
	for _, l := range out.all(ep) {
		if strings.Contains(l, "LOGIN_OK") {
			i := strings.Index(l, "token=")
			if i < 0 {
				t.Fatalf("LOGIN_OK without token: %s", l)
			}
			return l[i+len("token="):]
		}
	}
	t.Fatalf("no LOGIN_OK sent to %s: %v", ep, out.all(ep))
	return ""
}

// startGame brings alice (WHITE, seat 0) and bob (BLACK, seat 1) into a
// running game in room 1 and clears the captured egress.
func startGame(t *testing.T, s *Server, out *fakeSender) (aliceToken, bobToken string) {
	t.Helper()
	aliceToken = loginToken(t, s, out, 1, epAlice, "alice")
	bobToken = loginToken(t, s, out, 2, epBob, "bob")
	s.recv(t, epAlice, "3;CREATE_ROOM;x")
	s.recv(t, epAlice, "4;JOIN_ROOM;1")
	s.recv(t, epBob, "5;JOIN_ROOM;1")
	out.clear()
	return aliceToken, bobToken
}

func contains(t *testing.T, lines []string, want string) {
	t.Helper()
	for _, l := range lines {
		if strings.Contains(l, want) {
			return
		}
	}
	t.Fatalf("no line containing %q in %v", want, lines)
}

func TestLoginIssuesIDTokenAndConfig(t *testing.T) {
	s, out, _ := newTestServer(t, nil)

	s.recv(t, epAlice, "1;LOGIN;alice")
	lines := out.all(epAlice)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.HasPrefix(lines[0], "1;LOGIN_OK;player=1;token=") {
		t.Fatalf("LOGIN_OK wrong: %s", lines[0])
	}
	token := strings.TrimPrefix(lines[0], "1;LOGIN_OK;player=1;token=")
	if len(token) != 16 {
		t.Fatalf("token %q is not 64-bit hex", token)
	}
	if lines[1] != "0;CONFIG;turnTimeoutMs=60000" {
		t.Fatalf("CONFIG wrong: %s", lines[1])
	}
}

func TestLoginRepeatAndMismatch(t *testing.T) {
	s, out, _ := newTestServer(t, nil)

	tok := loginToken(t, s, out, 1, epAlice, "alice")
	out.clear()

	s.recv(t, epAlice, "2;LOGIN;alice")
	if got := out.all(epAlice)[0]; got != "2;LOGIN_OK;player=1;token="+tok {
		t.Fatalf("repeat login: %s", got)
	}

	s.recv(t, epAlice, "3;LOGIN;other")
	if got := out.last(t, epAlice); got != "3;ERROR;ALREADY_LOGGED_IN" {
		t.Fatalf("mismatch login: %s", got)
	}
}

func TestLoginServerFull(t *testing.T) {
	s, out, _ := newTestServer(t, func(c *config.Config) { c.MaxPlayers = 1 })

	loginToken(t, s, out, 1, epAlice, "alice")
	s.recv(t, epBob, "2;LOGIN;bob")
	if got := out.last(t, epBob); !strings.HasPrefix(got, "2;ERROR;SERVER_FULL") {
		t.Fatalf("got %s", got)
	}
}

func TestLoginBadNick(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	s.recv(t, epAlice, "1;LOGIN;a=b")
	if got := out.last(t, epAlice); got != "1;ERROR;INVALID_FORMAT;Invalid chars in nick" {
		t.Fatalf("got %s", got)
	}
}

func TestPingWithoutSession(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	s.recv(t, epAlice, "7;PING")
	if got := out.last(t, epAlice); got != "7;PONG" {
		t.Fatalf("got %s", got)
	}
}

func TestNotLoggedIn(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	s.recv(t, epAlice, "3;LIST_ROOMS")
	if got := out.last(t, epAlice); got != "3;ERROR;NOT_LOGGED_IN" {
		t.Fatalf("got %s", got)
	}
}

func TestUnsupportedType(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	loginToken(t, s, out, 1, epAlice, "alice")
	s.recv(t, epAlice, "2;FROBNICATE")
	if got := out.last(t, epAlice); !strings.HasPrefix(got, "2;ERROR;UNSUPPORTED_TYPE") {
		t.Fatalf("got %s", got)
	}
}

func TestOversizedDatagramRejected(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	s.recv(t, epAlice, "1;LOGIN;"+strings.Repeat("a", 1500))
	if got := out.last(t, epAlice); got != "0;ERROR;INVALID_FORMAT;Message too long" {
		t.Fatalf("got %s", got)
	}
}

func TestCreateJoinStart(t *testing.T) {
	s, out, _ := newTestServer(t, nil)

	loginToken(t, s, out, 1, epAlice, "alice")
	loginToken(t, s, out, 3, epBob, "bob")

	s.recv(t, epAlice, "2;CREATE_ROOM;whatever")
	if got := out.last(t, epAlice); got != "2;CREATE_ROOM_OK;room=1;name=Table 1" {
		t.Fatalf("create: %s", got)
	}

	s.recv(t, epBob, "4;JOIN_ROOM;1")
	if got := out.last(t, epBob); got != "4;JOIN_ROOM_OK;room=1;players=1/2" {
		t.Fatalf("first join: %s", got)
	}

	out.clear()
	s.recv(t, epAlice, "5;JOIN_ROOM;1")

	contains(t, out.all(epAlice), "5;JOIN_ROOM_OK;room=1;players=2/2")
	// bob joined first and holds seat 0
	contains(t, out.all(epBob), "5;GAME_START;room=1;you=WHITE;opponent=alice")
	contains(t, out.all(epAlice), "5;GAME_START;room=1;you=BLACK;opponent=bob")

	want := "5;GAME_STATE;room=1;turn=PLAYER1;board=" + board.Initial().String() + ";remainingMs=60000"
	contains(t, out.all(epAlice), want)
	contains(t, out.all(epBob), want)
}

func TestListRooms(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	loginToken(t, s, out, 1, epAlice, "alice")

	s.recv(t, epAlice, "2;LIST_ROOMS")
	if got := out.last(t, epAlice); got != "2;ROOMS_EMPTY" {
		t.Fatalf("empty list: %s", got)
	}

	s.recv(t, epAlice, "3;CREATE_ROOM;x")
	s.recv(t, epAlice, "4;LIST_ROOMS")
	if got := out.last(t, epAlice); got != "4;ROOM;id=1;name=Table 1;players=0;status=WAITING" {
		t.Fatalf("list: %s", got)
	}
}

func TestSimpleMoveRotatesTurn(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epAlice, "6;MOVE;1;5;0;4;1")

	wantBoard := board.Initial()
	_, err := board.Apply(wantBoard, board.Square{Row: 5, Col: 0}, board.Square{Row: 4, Col: 1}, board.White, nil)
	if err != nil {
		t.Fatalf("reference apply: %v", err)
	}
	want := "6;GAME_STATE;room=1;turn=PLAYER2;board=" + wantBoard.String() + ";remainingMs=60000"
	contains(t, out.all(epAlice), want)
	contains(t, out.all(epBob), want)
	if wantBoard[4*8+1] != 'w' {
		t.Fatalf("moved man missing")
	}
}

func TestMoveOutOfTurn(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epBob, "6;MOVE;1;2;1;3;2")
	if got := out.last(t, epBob); got != "6;ERROR;NOT_YOUR_TURN" {
		t.Fatalf("got %s", got)
	}
}

func TestMoveIdempotency(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epAlice, "6;MOVE;1;5;0;4;1")
	before := len(out.all(epAlice))
	boardBefore := s.rooms.Get(1).Board.String()

	// duplicate datagram: silently accepted, no effect
	s.recv(t, epAlice, "6;MOVE;1;5;0;4;1")
	if len(out.all(epAlice)) != before {
		t.Fatalf("duplicate MOVE produced output: %v", out.all(epAlice)[before:])
	}
	if s.rooms.Get(1).Board.String() != boardBefore {
		t.Fatalf("duplicate MOVE mutated the board")
	}
}

func TestMandatoryCaptureAndChain(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	rm := s.rooms.Get(1)
	b := make(board.Board, 64)
	for i := range b {
		b[i] = '.'
	}
	b[5*8+2] = 'w' // (5,2)
	b[4*8+3] = 'b' // (4,3), capturable to (3,4)
	b[2*8+5] = 'b' // (2,5), continues the chain to (1,6)
	b[7*8+0] = 'w' // (7,0), an uninvolved white man
	rm.Board = b
	rm.CaptureLock = nil
	out.clear()

	// simple move while a capture exists
	s.recv(t, epAlice, "6;MOVE;1;5;2;4;1")
	if got := out.last(t, epAlice); got != "6;ERROR;MUST_CAPTURE" {
		t.Fatalf("got %s", got)
	}

	// the capture; a further jump exists, so the turn stays locked
	s.recv(t, epAlice, "7;MOVE;1;5;2;3;4")
	state := out.last(t, epBob)
	if !strings.Contains(state, "turn=PLAYER1") || !strings.Contains(state, ";lock=3,4") {
		t.Fatalf("chain state wrong: %s", state)
	}
	if rm.Board.At(4, 3) != '.' {
		t.Fatalf("captured man still on board")
	}

	// moving any other piece is rejected mid-chain
	s.recv(t, epAlice, "8;MOVE;1;7;0;6;1")
	if got := out.last(t, epAlice); got != "8;ERROR;MUST_CONTINUE_CAPTURE" {
		t.Fatalf("got %s", got)
	}

	// chain finishes, black is out of pieces
	s.recv(t, epAlice, "9;MOVE;1;3;4;1;6")
	contains(t, out.all(epAlice), "9;GAME_END;room=1;reason=WHITE_WIN_NO_PIECES;winner=WHITE")
	contains(t, out.all(epBob), "9;GAME_END;room=1;reason=WHITE_WIN_NO_PIECES;winner=WHITE")
	if rm.Status != room.StatusWaiting || rm.Seats != nil {
		t.Fatalf("room not reset: %+v", rm)
	}
}

func TestPromotionOnBackRank(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	rm := s.rooms.Get(1)
	b := make(board.Board, 64)
	for i := range b {
		b[i] = '.'
	}
	b[1*8+2] = 'w' // one step from the back rank
	b[0*8+3] = 'b'
	rm.Board = b
	out.clear()

	s.recv(t, epAlice, "6;MOVE;1;1;2;0;1")
	state := out.last(t, epAlice)
	if !strings.Contains(state, "turn=PLAYER2") {
		t.Fatalf("turn not rotated: %s", state)
	}
	if rm.Board.At(0, 1) != 'W' {
		t.Fatalf("man not promoted: %c", rm.Board.At(0, 1))
	}
}

func TestLegalMovesQuery(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epAlice, "6;LEGAL_MOVES;1;5;0")
	if got := out.last(t, epAlice); got != "6;LEGAL_MOVES;room=1;from=5,0;to=4,1;mustCapture=0" {
		t.Fatalf("got %s", got)
	}

	s.recv(t, epAlice, "7;LEGAL_MOVES;1;4;1")
	if got := out.last(t, epAlice); got != "7;ERROR;NO_PIECE" {
		t.Fatalf("got %s", got)
	}
}

func TestConfigResendUntilAck(t *testing.T) {
	s, out, clk := newTestServer(t, nil)
	loginToken(t, s, out, 1, epAlice, "alice")
	out.clear()

	clk.advance(3100 * time.Millisecond)
	s.Tick()
	contains(t, out.all(epAlice), "0;CONFIG;turnTimeoutMs=60000")

	out.clear()
	s.recv(t, epAlice, "2;CONFIG_ACK")
	clk.advance(4 * time.Second)
	s.Tick()
	for _, l := range out.all(epAlice) {
		if strings.Contains(l, "CONFIG") {
			t.Fatalf("CONFIG resent after ack: %s", l)
		}
	}
}

func TestHeartbeatPauseAndReconnect(t *testing.T) {
	s, out, clk := newTestServer(t, func(c *config.Config) { c.TimeoutMs = 2000 })
	_, bobToken := startGame(t, s, out)

	clk.advance(2500 * time.Millisecond)
	s.recv(t, epAlice, "6;PING") // alice stays alive
	s.Tick()

	paused := ""
	for _, l := range out.all(epAlice) {
		if strings.HasPrefix(l, "0;GAME_PAUSED;room=1;resumeBy=") {
			paused = l
		}
	}
	if paused == "" {
		t.Fatalf("alice got no GAME_PAUSED: %v", out.all(epAlice))
	}
	wantResume := clk.now().Add(5 * time.Second).UnixMilli()
	if !strings.HasSuffix(paused, fmt.Sprintf("resumeBy=%d", wantResume)) {
		t.Fatalf("resumeBy wrong: %s (want %d)", paused, wantResume)
	}

	// a MOVE during the pause is refused
	s.recv(t, epAlice, "7;MOVE;1;5;0;4;1")
	if got := out.last(t, epAlice); got != "7;ERROR;GAME_PAUSED" {
		t.Fatalf("got %s", got)
	}

	// bob resumes from a brand-new endpoint within the window
	out.clear()
	clk.advance(500 * time.Millisecond)
	s.recv(t, epCarol, "99;RECONNECT;"+bobToken)
	contains(t, out.all(epCarol), "99;RECONNECT_OK")

	// both seats connected again: fresh state with the remainder intact
	want := "0;GAME_STATE;room=1;turn=PLAYER1;board=" + board.Initial().String() + ";remainingMs=57500"
	contains(t, out.all(epAlice), want)
	contains(t, out.all(epCarol), want)
}

func TestReconnectUnknownAndExpiredToken(t *testing.T) {
	s, out, clk := newTestServer(t, func(c *config.Config) { c.TimeoutMs = 2000 })
	_, bobToken := startGame(t, s, out)

	s.recv(t, epCarol, "50;RECONNECT;ffffffffffffffff")
	if got := out.last(t, epCarol); got != "50;ERROR;TOKEN_NOT_FOUND" {
		t.Fatalf("got %s", got)
	}

	// bob goes quiet, window opens at +2.5 s and closes 5 s later
	clk.advance(2500 * time.Millisecond)
	s.recv(t, epAlice, "6;PING")
	s.Tick()
	clk.advance(5100 * time.Millisecond)

	s.recv(t, epCarol, "51;RECONNECT;"+bobToken)
	if got := out.last(t, epCarol); got != "51;ERROR;TOKEN_EXPIRED" {
		t.Fatalf("got %s", got)
	}
}

func TestReconnectWindowExpiryEndsGame(t *testing.T) {
	s, out, clk := newTestServer(t, func(c *config.Config) { c.TimeoutMs = 2000 })
	_, bobToken := startGame(t, s, out)

	clk.advance(2500 * time.Millisecond)
	s.recv(t, epAlice, "6;PING")
	s.Tick()

	out.clear()
	clk.advance(5100 * time.Millisecond)
	s.recv(t, epAlice, "7;PING")
	s.Tick()

	contains(t, out.all(epAlice), "0;GAME_END;room=1;reason=OPPONENT_TIMEOUT;winner=WHITE")
	rm := s.rooms.Get(1)
	if rm.Status != room.StatusWaiting {
		t.Fatalf("room not reset: %s", rm.Status)
	}

	// the expired session is gone for good
	s.recv(t, epCarol, "52;RECONNECT;"+bobToken)
	if got := out.last(t, epCarol); got != "52;ERROR;TOKEN_NOT_FOUND" {
		t.Fatalf("got %s", got)
	}
}

func TestTurnTimeoutForfeitsMover(t *testing.T) {
	s, out, clk := newTestServer(t, func(c *config.Config) {
		c.TurnTimeoutMs = 1000
		c.TimeoutMs = 600000
	})
	startGame(t, s, out)

	clk.advance(1200 * time.Millisecond)
	s.Tick()

	contains(t, out.all(epAlice), "0;GAME_END;room=1;reason=TURN_TIMEOUT;winner=BLACK")
	contains(t, out.all(epBob), "0;GAME_END;room=1;reason=TURN_TIMEOUT;winner=BLACK")
	if s.rooms.Get(1).Status != room.StatusWaiting {
		t.Fatalf("room not reset after turn timeout")
	}
}

func TestServerOutageFreezesTurnClock(t *testing.T) {
	s, out, clk := newTestServer(t, func(c *config.Config) {
		c.TurnTimeoutMs = 60000
		c.TimeoutMs = 600000 // heartbeats stay comfortably alive
	})
	startGame(t, s, out)

	// nobody is heard from past the 12 s outage threshold
	clk.advance(13 * time.Second)
	s.Tick()

	rm := s.rooms.Get(1)
	if !rm.LastTurnAt.IsZero() {
		t.Fatalf("turn clock still running after outage freeze")
	}
	// frozen with the remainder measured at the last datagram seen
	if rm.RemainingTurnMs != 60000 {
		t.Fatalf("remaining = %d, want 60000", rm.RemainingTurnMs)
	}
}

func TestInvalidMessageStrikesDropSession(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epAlice, "10;JOIN_ROOM;zzz")
	s.recv(t, epAlice, "11;JOIN_ROOM;zzz")
	s.recv(t, epAlice, "12;JOIN_ROOM;zzz")

	contains(t, out.all(epBob), "0;GAME_END;room=1;reason=OPPONENT_LEFT;winner=NONE")
	if s.rooms.Get(1).Status != room.StatusWaiting {
		t.Fatalf("room not reset after drop")
	}

	s.recv(t, epAlice, "13;LIST_ROOMS")
	if got := out.last(t, epAlice); got != "13;ERROR;NOT_LOGGED_IN" {
		t.Fatalf("dropped session still bound: %s", got)
	}
}

func TestLeaveRoomMidGame(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epBob, "6;LEAVE_ROOM;1")
	contains(t, out.all(epBob), "6;LEAVE_ROOM_OK;room=1")
	contains(t, out.all(epAlice), "6;GAME_END;room=1;reason=OPPONENT_LEFT;winner=WHITE")
	if s.rooms.Get(1).Status != room.StatusWaiting {
		t.Fatalf("room not reset after leave")
	}
}

func TestByeIsIdempotent(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	s.recv(t, epAlice, "6;BYE")
	contains(t, out.all(epAlice), "6;BYE_OK")
	contains(t, out.all(epBob), "6;GAME_END;room=1;reason=OPPONENT_LEFT;winner=NONE")

	s.recv(t, epAlice, "7;BYE")
	if got := out.last(t, epAlice); got != "7;BYE_OK" {
		t.Fatalf("second BYE: %s", got)
	}
}

func TestJoinUnavailableAndUnknownRooms(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	loginToken(t, s, out, 20, epCarol, "carol")
	s.recv(t, epCarol, "21;JOIN_ROOM;1")
	if got := out.last(t, epCarol); got != "21;ERROR;ROOM_NOT_AVAILABLE" {
		t.Fatalf("got %s", got)
	}

	s.recv(t, epCarol, "22;JOIN_ROOM;9")
	if got := out.last(t, epCarol); got != "22;ERROR;ROOM_NOT_FOUND" {
		t.Fatalf("got %s", got)
	}
}

func TestRoomLimit(t *testing.T) {
	s, out, _ := newTestServer(t, func(c *config.Config) { c.MaxRooms = 1 })
	loginToken(t, s, out, 1, epAlice, "alice")

	s.recv(t, epAlice, "2;CREATE_ROOM;a")
	s.recv(t, epAlice, "3;CREATE_ROOM;b")
	if got := out.last(t, epAlice); !strings.HasPrefix(got, "3;ERROR;SERVER_FULL") {
		t.Fatalf("got %s", got)
	}
}

func TestSnapshot(t *testing.T) {
	s, out, _ := newTestServer(t, nil)
	startGame(t, s, out)

	st := s.Snapshot()
	if st.Players != 2 || len(st.Rooms) != 1 {
		t.Fatalf("snapshot = %+v", st)
	}
	if st.Rooms[0].Status != string(room.StatusInGame) || len(st.Rooms[0].Board) != 64 {
		t.Fatalf("room stat = %+v", st.Rooms[0])
	}
}
