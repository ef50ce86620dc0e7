package httpapi

import (
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/scrivano/internal/progress"
)

// handleEvents upgrades to a WebSocket and streams progress events for one
// job until it reaches a terminal state or the client disconnects. A job that
// is already terminal gets a single synthetic terminal event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	// Subscribe before re-reading the job so a terminal transition between
	// the two reads cannot be missed.
	events, cancel := s.hub.Subscribe(id)
	defer cancel()

	j, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()

	ctx := r.Context()

	if j.Status.Terminal() {
		ev := progress.Event{
			JobID:    id,
			Stage:    string(j.Status),
			Detail:   j.Err,
			Terminal: true,
			At:       time.Now(),
		}
		_ = wsjson.Write(ctx, c, ev)
		c.Close(websocket.StatusNormalClosure, "")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, c, ev); err != nil {
				return
			}
			if ev.Terminal {
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}
