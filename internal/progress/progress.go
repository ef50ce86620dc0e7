// Package progress implements an in-memory pub/sub hub for per-job progress
// events. The job runner and provider adapters publish stage updates; the
// WebSocket endpoint subscribes and streams them to clients.
//
// Intermediate events are best-effort: a slow subscriber never blocks the
// publisher, it just misses stages. The terminal event is always delivered
// and closes all subscriptions for the job.
package progress

import (
	"sync"
	"time"
)

// Event is one progress update for a job.
type Event struct {
	// JobID identifies the job this event belongs to.
	JobID string `json:"job_id"`

	// Stage is a coarse human-readable step ("converting", "uploading",
	// "transcribing", "normalizing") or a terminal status ("completed",
	// "failed", "deleted").
	Stage string `json:"stage"`

	// Detail optionally carries extra context, e.g. a failure reason.
	Detail string `json:"detail,omitempty"`

	// Terminal marks the last event a job will ever publish.
	Terminal bool `json:"terminal"`

	// At is the time the event was published.
	At time.Time `json:"at"`
}

// subscriber is one open subscription's delivery channel.
type subscriber chan Event

// Hub fans progress events out to per-job subscribers. The zero value is not
// usable; create one with NewHub. Safe for concurrent use.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[subscriber]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[subscriber]struct{}{}}
}

// Subscribe registers for events of one job. The returned channel is closed
// after a terminal event or when cancel is called. cancel is idempotent.
func (h *Hub) Subscribe(jobID string) (events <-chan Event, cancel func()) {
	ch := make(subscriber, 16)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = map[subscriber]struct{}{}
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[jobID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, jobID)
				}
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers a stage update to every subscriber of the job. Full
// subscriber buffers are skipped rather than blocked on.
func (h *Hub) Publish(jobID, stage string) {
	h.publish(Event{JobID: jobID, Stage: stage, At: time.Now()})
}

// PublishTerminal delivers the final event for a job and closes all of its
// subscriptions.
func (h *Hub) PublishTerminal(jobID, stage, detail string) {
	h.publish(Event{JobID: jobID, Stage: stage, Detail: detail, Terminal: true, At: time.Now()})
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[ev.JobID]
	for ch := range set {
		// All sends happen under h.mu, so the len check cannot race with
		// another publisher. Non-terminal events leave the last buffer slot
		// free, which guarantees the single terminal event always fits.
		if ev.Terminal {
			ch <- ev
			delete(set, ch)
			close(ch)
		} else if len(ch) < cap(ch)-1 {
			ch <- ev
		}
	}
	if ev.Terminal {
		delete(h.subs, ev.JobID)
	}
}
