package httpapi

import (
	"fmt"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/pickemlabs/pickem-engine/internal/usecase"
)

const eventStreamHeartbeat = 15 * time.Second

// StreamEvents bridges the broadcast hub onto a server-sent-events
// response. Optional repeated topic query parameters narrow the stream;
// no topics means everything.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StreamEvents")
	defer span.End()

	if h.hub == nil {
		writeError(ctx, w, fmt.Errorf("%w: event hub is not configured", usecase.ErrDependencyUnavailable))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: streaming is not supported by this connection", usecase.ErrInvalidInput))
		return
	}

	sub := h.hub.Subscribe(r.URL.Query()["topic"]...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(eventStreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			data, err := sonic.Marshal(event)
			if err != nil {
				h.logger.WarnContext(ctx, "encode event failed", "topic", event.Topic, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
