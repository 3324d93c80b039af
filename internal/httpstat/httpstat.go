// Package httpstat serves a read-only HTTP status surface next to the
// game endpoint: /healthz for probes, /status for a JSON snapshot, and
// /board for a human-readable board view.
package httpstat

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/mzelenka/dama-server/internal/boardtext"
	"github.com/mzelenka/dama-server/internal/obslog"
	"github.com/mzelenka/dama-server/internal/server"
)

// Handler exposes server snapshots over HTTP.
type Handler struct {
	instance string
	started  time.Time
	snapshot func() server.Stats
}

func New(instance string, snapshot func() server.Stats) *Handler {
	return &Handler{instance: instance, started: time.Now(), snapshot: snapshot}
}

// Serve blocks on the fasthttp listener.
func (h *Handler) Serve(addr string) error {
	obslog.L().Info("status_listening", zap.String("addr", addr))
	return fasthttp.ListenAndServe(addr, h.route)
}

func (h *Handler) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/status":
		h.status(ctx)
	case "/board":
		h.board(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

type statusBody struct {
	Instance      string            `json:"instance"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
	Players       int               `json:"players"`
	Rooms         []server.RoomStat `json:"rooms"`
}

func (h *Handler) status(ctx *fasthttp.RequestCtx) {
	st := h.snapshot()
	body := statusBody{
		Instance:      h.instance,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Players:       st.Players,
		Rooms:         st.Rooms,
	}
	raw, err := json.Marshal(&body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(raw)
}

func (h *Handler) board(ctx *fasthttp.RequestCtx) {
	id, err := strconv.Atoi(string(ctx.QueryArgs().Peek("room")))
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("room query parameter required")
		return
	}
	for _, rm := range h.snapshot().Rooms {
		if rm.ID != id {
			continue
		}
		if rm.Board == "" {
			ctx.SetStatusCode(fasthttp.StatusConflict)
			ctx.SetBodyString("room has no active game")
			return
		}
		view := boardtext.Render
		if ctx.QueryArgs().GetBool("ansi") {
			view = boardtext.RenderColor
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString(view(rm.Board) + "\n")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}
