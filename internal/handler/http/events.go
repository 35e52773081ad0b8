package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/cart"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 15 * time.Second
)

// Events handles GET /api/v1/cart/events as a server-sent-events stream.
// The first event is a snapshot of the current cart. A client that falls
// behind loses intermediate events; every event carries the whole cart.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server's write timeout would otherwise end the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	ch := make(chan cart.Event, eventBuffer)
	unsubscribe := h.service.Store().Subscribe(func(e cart.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, cart.Event{Kind: "snapshot", Cart: h.service.Snapshot()}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "event stream not flushable", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			if err := writeEvent(w, e); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, e cart.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return err
}
