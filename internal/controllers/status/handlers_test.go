package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/engine"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	log.Init(false, "")
	os.Exit(m.Run())
}

type stubEngine struct{}

func (stubEngine) Snapshot() engine.Snapshot {
	return engine.Snapshot{SpeedKmh: 72, VisibleCount: 2, HazardCount: 10, ZoneCount: 1}
}

func (stubEngine) VisibleHazards() []engine.VisibleHazard {
	return []engine.VisibleHazard{
		{Hazard: types.HazardPoint{ID: "h:39.00000,35.00000", Kind: types.HazardFixed}, DistanceM: 420},
	}
}

func (stubEngine) Stats() types.RunnerStats {
	return types.RunnerStats{SamplesIngested: 100, EventsEmitted: 7}
}

type stubFeed struct {
	reloadErr error
}

func (f *stubFeed) Reload(context.Context) error { return f.reloadErr }

func (f *stubFeed) LastLoad() (time.Time, int, int) {
	return time.Unix(1700000000, 0), 1, 11
}

type stubSubscriber struct{}

func (stubSubscriber) Subscribe(buffer int) <-chan types.EngineEvent {
	return make(chan types.EngineEvent, buffer)
}

func newTestController(t *testing.T, feed *stubFeed) *Controller {
	t.Helper()
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.StatusServerData{
		Port:        8090,
		EventBuffer: 8,
	}, Dependencies{
		Engine:     stubEngine{},
		Feed:       feed,
		Subscriber: stubSubscriber{},
	}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}
	return ctrl
}

func TestGetStatus(t *testing.T) {
	ctrl := newTestController(t, &stubFeed{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	ctrl.handlers.GetStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Engine struct {
			SpeedKmh float64 `json:"speed_kmh"`
		} `json:"engine"`
		FeedSkips int `json:"feed_skipped_records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Engine.SpeedKmh != 72 {
		t.Errorf("engine.speed_kmh = %v, want 72", body.Engine.SpeedKmh)
	}
	if body.FeedSkips != 1 {
		t.Errorf("feed_skipped_records = %d, want 1", body.FeedSkips)
	}
}

func TestGetRecentEventsLimit(t *testing.T) {
	ctrl := newTestController(t, &stubFeed{})
	for i := 0; i < 5; i++ {
		ctrl.events.add(types.HazardAlert{HazardID: "h", TimestampMs: int64(i)})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=2", nil)
	rec := httptest.NewRecorder()
	ctrl.handlers.GetRecentEvents(rec, req)

	var body struct {
		Count  int `json:"count"`
		Events []struct {
			Event string `json:"event"`
			Data  struct {
				TimestampMs int64 `json:"timestamp_ms"`
			} `json:"data"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if body.Events[0].Data.TimestampMs != 3 || body.Events[1].Data.TimestampMs != 4 {
		t.Errorf("expected the two newest events oldest first, got %+v", body.Events)
	}
}

func TestGetRecentEventsBadLimit(t *testing.T) {
	ctrl := newTestController(t, &stubFeed{})

	req := httptest.NewRequest(http.MethodGet, "/api/events?limit=bogus", nil)
	rec := httptest.NewRecorder()
	ctrl.handlers.GetRecentEvents(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReloadCatalogFailure(t *testing.T) {
	ctrl := newTestController(t, &stubFeed{reloadErr: fmt.Errorf("feed unreachable")})

	req := httptest.NewRequest(http.MethodPost, "/api/catalog/reload", nil)
	rec := httptest.NewRecorder()
	ctrl.handlers.ReloadCatalog(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestEventBufferWraps(t *testing.T) {
	buf := newEventBuffer(3)
	for i := 0; i < 5; i++ {
		buf.add(types.HazardAlert{TimestampMs: int64(i)})
	}

	events := buf.recent(0)
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	first := events[0].Data.(types.HazardAlert)
	last := events[2].Data.(types.HazardAlert)
	if first.TimestampMs != 2 || last.TimestampMs != 4 {
		t.Errorf("expected timestamps [2..4], got first=%d last=%d", first.TimestampMs, last.TimestampMs)
	}
}
