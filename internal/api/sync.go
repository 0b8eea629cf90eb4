package api

import (
	"net/http"
)

// sync upgrades the request to a websocket and runs one sync session on it.
// The connection is closed when the session returns.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	stop := conn.CloseOnDone(ctx)
	defer stop()

	result := h.runner.Serve(ctx, conn)
	h.logger.Debug().
		Str("session_id", result.ID).
		Str("phase", string(result.Phase)).
		Msg("sync connection finished")
}
