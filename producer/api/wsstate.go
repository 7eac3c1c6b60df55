package api

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/mediaroom/producer/producer/logger"
	"github.com/mediaroom/producer/producer/metrics"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// stateStream sends the state once on connect and again after every session
// change. Messages from the client are ignored.
func (h *handlers) stateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.log.Error("Accept websocket connection", errors.Trace(err), nil)

		return
	}

	log := h.log.WithCtx(logger.Ctx{
		"remote_addr": r.RemoteAddr,
	})

	metrics.WebSocketClients.Inc()
	defer metrics.WebSocketClients.Dec()

	log.Info("State stream opened", nil)

	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "")
	}()

	updates, unsubscribe := h.session.Subscribe()
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())

	if err := h.writeState(ctx, conn); err != nil {
		log.Error("Write state", err, nil)

		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("State stream closed", nil)

			_ = conn.Close(websocket.StatusNormalClosure, "")

			return
		case <-updates:
			if err := h.writeState(ctx, conn); err != nil {
				if ctx.Err() == nil {
					log.Error("Write state", err, nil)
				}

				return
			}
		}
	}
}

func (h *handlers) writeState(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return errors.Trace(wsjson.Write(ctx, conn, h.state()))
}
