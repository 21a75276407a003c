package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/shaiso/dispatch-engine/internal/wire"
)

// upgrader permits cross-origin connections: extension workers connect
// from a browser-extension context, not a same-origin web page, so the
// usual same-origin websocket check is meaningless here. Edge-level origin
// allow-listing, if needed, belongs to the CORS/auth middleware chain, not
// here — that middleware sits in front of the engine, out of its scope.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS handles GET /ws: upgrades the connection and runs a wire.Client
// for its lifetime.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := wire.NewClient(conn, h.newWireHandler(), h.logger)
	client.Run(r.Context())
}
