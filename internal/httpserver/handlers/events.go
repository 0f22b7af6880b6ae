package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

// DefaultHeartbeat keeps idle streams open through proxies.
const DefaultHeartbeat = 25 * time.Second

type stateEvent struct {
	HTML string `json:"html"`
}

// Events streams one live view over Server-Sent Events. The view is
// mounted under the id from the page, registered so mutations can reach
// it, and torn down when the client goes away or the view dies.
// Signed-out clients get 204, which stops EventSource from reconnecting.
// A reconnect from the same session takes over the id; another session
// naming a live view gets 409.
func Events(d deps.Deps) http.HandlerFunc {
	heartbeat := d.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("view")
		if !view.ValidID(id) {
			http.Error(w, "invalid view id", http.StatusBadRequest)
			return
		}

		v := view.New(id, d.ViewDeps, d.ViewOptions)
		v.Mount(r.Context(), accessToken(r, d))
		defer v.Close()

		if v.Session() == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := d.Views.Register(v); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		defer d.Views.Unregister(v)

		log := d.Logger.With(logger.String("view_id", id))
		rc := http.NewResponseController(w)
		// the stream outlives the server's WriteTimeout
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			log.Debug("cannot clear write deadline", logger.Error(err))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		push := func() error {
			html, err := d.Renderer.RenderString(v.State())
			if err != nil {
				return err
			}
			if err := writeEvent(w, "state", stateEvent{HTML: html}); err != nil {
				return err
			}
			for _, n := range v.DrainNotices() {
				if err := writeEvent(w, "notice", n); err != nil {
					return err
				}
			}
			return rc.Flush()
		}

		log.Debug("view streaming")
		if err := push(); err != nil {
			log.Debug("stream write failed", logger.Error(err))
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Debug("client disconnected")
				return
			case <-v.Done():
				return
			case <-v.Changed():
				if err := push(); err != nil {
					log.Debug("stream write failed", logger.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
