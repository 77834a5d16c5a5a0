package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/service/events"
	"github.com/secmon-lab/followup/pkg/utils/errutil"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// eventsHandler streams hub events as Server-Sent Events until the client
// disconnects
func eventsHandler(hub *events.Hub, keepAlive time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		flusher, ok := w.(http.Flusher)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("streaming not supported"), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		logger := logging.From(ctx)
		logger.Debug("event stream opened", "subscribers", hub.SubscriberCount())

		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					logger.Error("failed to marshal event", "error", err, "type", ev.Type)
					continue
				}
				if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data); err != nil {
					logger.Debug("event stream closed by client", "error", err)
					return
				}
				flusher.Flush()

			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()

			case <-ctx.Done():
				logger.Debug("event stream closed")
				return
			}
		}
	}
}
