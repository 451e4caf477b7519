package status

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/constants"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the status server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// GetStatus serves the engine snapshot plus runner counters and feed
// health
func (h *Handlers) GetStatus(w http.ResponseWriter, req *http.Request) {
	lastLoaded, skipped, total := h.controller.deps.Feed.LastLoad()

	payload := struct {
		Version    string           `json:"version"`
		Engine     any              `json:"engine"`
		Runner     types.RunnerStats `json:"runner"`
		FeedLoaded time.Time        `json:"feed_loaded_at"`
		FeedSkips  int              `json:"feed_skipped_records"`
		FeedTotal  int              `json:"feed_total_records"`
	}{
		Version:    constants.Version,
		Engine:     h.controller.deps.Engine.Snapshot(),
		Runner:     h.controller.deps.Engine.Stats(),
		FeedLoaded: lastLoaded,
		FeedSkips:  skipped,
		FeedTotal:  total,
	}

	if err := h.formatter.WriteResponse(w, req, payload); err != nil {
		log.Errorf("error writing status response: %v", err)
	}
}

// GetVisibleHazards serves the hazards inside the visibility window,
// nearest first
func (h *Handlers) GetVisibleHazards(w http.ResponseWriter, req *http.Request) {
	visible := h.controller.deps.Engine.VisibleHazards()

	payload := struct {
		Count   int `json:"count"`
		Hazards any `json:"hazards"`
	}{
		Count:   len(visible),
		Hazards: visible,
	}

	if err := h.formatter.WriteResponse(w, req, payload); err != nil {
		log.Errorf("error writing visible hazards response: %v", err)
	}
}

// GetRecentEvents serves the newest buffered events, oldest first. The
// limit query parameter caps the count.
func (h *Handlers) GetRecentEvents(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events := h.controller.events.recent(limit)

	payload := struct {
		Count  int             `json:"count"`
		Events []bufferedEvent `json:"events"`
	}{
		Count:  len(events),
		Events: events,
	}

	if err := h.formatter.WriteResponse(w, req, payload); err != nil {
		log.Errorf("error writing events response: %v", err)
	}
}

// ReloadCatalog triggers an immediate hazard feed reload
func (h *Handlers) ReloadCatalog(w http.ResponseWriter, req *http.Request) {
	if err := h.controller.deps.Feed.Reload(req.Context()); err != nil {
		log.Errorf("manual catalog reload failed: %v", err)
		h.formatter.WriteError(w, req, http.StatusBadGateway, err.Error())
		return
	}

	lastLoaded, skipped, total := h.controller.deps.Feed.LastLoad()
	payload := struct {
		Status     string    `json:"status"`
		FeedLoaded time.Time `json:"feed_loaded_at"`
		FeedSkips  int       `json:"feed_skipped_records"`
		FeedTotal  int       `json:"feed_total_records"`
	}{
		Status:     "reloaded",
		FeedLoaded: lastLoaded,
		FeedSkips:  skipped,
		FeedTotal:  total,
	}

	if err := h.formatter.WriteResponse(w, req, payload); err != nil {
		log.Errorf("error writing reload response: %v", err)
	}
}

// bufferedEvent pairs an event with its name so clients do not have to
// guess payload shapes.
type bufferedEvent struct {
	Event string            `json:"event"`
	Data  types.EngineEvent `json:"data"`
}

// eventBuffer is a fixed-size ring of the most recent engine events.
type eventBuffer struct {
	mu     sync.Mutex
	events []bufferedEvent
	next   int
	full   bool
}

func newEventBuffer(size int) *eventBuffer {
	if size <= 0 {
		size = 256
	}
	return &eventBuffer{events: make([]bufferedEvent, size)}
}

func (b *eventBuffer) add(ev types.EngineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[b.next] = bufferedEvent{Event: ev.EventName(), Data: ev}
	b.next++
	if b.next == len(b.events) {
		b.next = 0
		b.full = true
	}
}

// recent returns up to limit of the newest events, oldest first. A limit
// of zero means everything buffered.
func (b *eventBuffer) recent(limit int) []bufferedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []bufferedEvent
	if b.full {
		ordered = append(ordered, b.events[b.next:]...)
		ordered = append(ordered, b.events[:b.next]...)
	} else {
		ordered = append(ordered, b.events[:b.next]...)
	}

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}
