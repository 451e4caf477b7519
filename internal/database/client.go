// Package database provides the PostgreSQL/TimescaleDB connection helper
// shared by sinks that persist engine events.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roadwatch/roadwatch/internal/log"
	"go.uber.org/zap"
)

// CreateConnection opens a gorm connection to TimescaleDB, routing gorm's
// own logging through our zap logger.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: false,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to TimescaleDB: %w", err)
	}

	return db, nil
}
