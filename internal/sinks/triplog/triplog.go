// Package triplog persists alerts and completed zone transits to a local
// SQLite journal, so a trip can be reviewed after the drive without any
// network connectivity.
package triplog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	_ "modernc.org/sqlite"
)

// Sink holds the SQLite trip journal
type Sink struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS alerts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms       INTEGER NOT NULL,
	hazard_id   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	distance_m  REAL NOT NULL,
	bearing_deg REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS zone_transits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	corridor_id TEXT NOT NULL,
	exited_ms   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	avg_kmh     REAL NOT NULL,
	limit_kmh   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts (ts_ms);
CREATE INDEX IF NOT EXISTS idx_transits_ts ON zone_transits (exited_ms);
`

// New sets up a new SQLite trip journal sink
func New(ctx context.Context, cfg *config.TripLogData) (*Sink, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("trip log requires a database path")
	}

	log.Info("opening trip journal...")
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open trip journal %s: %w", cfg.Path, err)
	}

	// modernc's driver is not safe for concurrent writers over multiple
	// connections on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create trip journal schema: %w", err)
	}

	return &Sink{db: db}, nil
}

// StartEventSink creates a goroutine loop to receive engine events and
// journal the ones worth keeping
func (s *Sink) StartEventSink(ctx context.Context, wg *sync.WaitGroup) chan<- types.EngineEvent {
	log.Info("starting trip journal sink...")
	eventChan := make(chan types.EngineEvent, 10)
	wg.Add(1)
	go s.processEvents(ctx, wg, eventChan)
	return eventChan
}

func (s *Sink) processEvents(ctx context.Context, wg *sync.WaitGroup, events <-chan types.EngineEvent) {
	defer wg.Done()
	defer s.db.Close()

	for {
		select {
		case ev := <-events:
			if err := s.storeEvent(ctx, ev); err != nil {
				log.Error("could not journal event:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling trip journal processor.")
			return
		}
	}
}

// storeEvent journals alerts and completed transits. Visibility churn and
// per-sample zone progress are too chatty to be worth keeping on disk.
func (s *Sink) storeEvent(ctx context.Context, ev types.EngineEvent) error {
	switch e := ev.(type) {
	case types.HazardAlert:
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO alerts (ts_ms, hazard_id, kind, distance_m, bearing_deg) VALUES (?, ?, ?, ?, ?)`,
			e.TimestampMs, e.HazardID, string(e.Kind), e.DistanceM, e.BearingDeg)
		return err
	case types.ZoneExited:
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO zone_transits (session_id, corridor_id, exited_ms, duration_ms, avg_kmh, limit_kmh) VALUES (?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.CorridorID, e.TimestampMs, e.DurationMs, e.AvgKmh, e.LimitKmh)
		return err
	}
	return nil
}
