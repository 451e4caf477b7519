// Package timescaledb archives every engine event to a TimescaleDB
// hypertable for fleet-wide analysis. Events are stored as JSONB with the
// event name broken out for cheap filtering.
package timescaledb

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgtype"
	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/log"
	"github.com/roadwatch/roadwatch/internal/types"
	"github.com/roadwatch/roadwatch/pkg/config"
	"gorm.io/gorm"
)

// Sink holds the connection to the TimescaleDB event archive
type Sink struct {
	TimescaleDBConn *gorm.DB
}

// EventRecord is one archived engine event
type EventRecord struct {
	Time      time.Time    `gorm:"column:time"`
	EventName string       `gorm:"column:event_name"`
	Payload   pgtype.JSONB `gorm:"column:payload;type:jsonb"`
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

func (EventRecord) TableName() string {
	return "engine_events"
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS engine_events (
	time TIMESTAMPTZ NOT NULL,
	event_name TEXT NOT NULL,
	payload JSONB
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('engine_events', 'time', if_not_exists => TRUE);`

// New sets up a new TimescaleDB event archive sink
func New(ctx context.Context, cfg *config.TimescaleDBData) (*Sink, error) {
	var err error
	s := Sink{}

	log.Info("connecting to TimescaleDB...")
	s.TimescaleDBConn, err = database.CreateConnection(cfg.ConnectionString)
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return &Sink{}, err
	}

	log.Info("creating event archive table...")
	err = s.TimescaleDBConn.WithContext(ctx).Exec(createTableSQL).Error
	if err != nil {
		log.Warn("warning: could not create event archive table")
		return &Sink{}, err
	}

	log.Info("creating TimescaleDB extension...")
	err = s.TimescaleDBConn.WithContext(ctx).Exec(createExtensionSQL).Error
	if err != nil {
		log.Warn("warning: could not create TimescaleDB extension")
		return &Sink{}, err
	}

	log.Info("creating hypertable...")
	err = s.TimescaleDBConn.WithContext(ctx).Exec(createHypertableSQL).Error
	if err != nil {
		log.Warn("warning: could not create hypertable")
		return &Sink{}, err
	}

	return &s, nil
}

// StartEventSink creates a goroutine loop to receive engine events and
// send them off to TimescaleDB
func (s *Sink) StartEventSink(ctx context.Context, wg *sync.WaitGroup) chan<- types.EngineEvent {
	log.Info("starting TimescaleDB event sink...")
	eventChan := make(chan types.EngineEvent, 10)
	wg.Add(1)
	go s.processEvents(ctx, wg, eventChan)
	return eventChan
}

func (s *Sink) processEvents(ctx context.Context, wg *sync.WaitGroup, events <-chan types.EngineEvent) {
	defer wg.Done()

	for {
		select {
		case ev := <-events:
			if err := s.StoreEvent(ev); err != nil {
				log.Error("could not archive event:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received. Cancelling event archiver.")
			return
		}
	}
}

// StoreEvent archives a single engine event
func (s *Sink) StoreEvent(ev types.EngineEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var payload pgtype.JSONB
	if err := payload.Set(raw); err != nil {
		return err
	}

	rec := EventRecord{
		Time:      time.Now(),
		EventName: ev.EventName(),
		Payload:   payload,
	}

	return s.TimescaleDBConn.Create(&rec).Error
}
