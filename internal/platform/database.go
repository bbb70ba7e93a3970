package platform

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobboard/application-portal/application-portal-backend/internal/config"
)

// Databases holds the two handles over one connection pool: sqlx for the
// applications repository and gorm for jobs and notifications.
type Databases struct {
	SQL  *sqlx.DB
	Gorm *gorm.DB
}

// OpenDatabases connects to PostgreSQL and shares the pool with gorm
func OpenDatabases(cfg config.DatabaseConfig, logger *zap.Logger) (*Databases, error) {
	logger.Info("Connecting to database",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("db_name", cfg.DBName))

	db, err := sqlx.Connect("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &Databases{SQL: db, Gorm: gormDB}, nil
}

// Close closes the shared pool
func (d *Databases) Close() error {
	return d.SQL.Close()
}
