package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kapu/roster-aggregator-go/pkg/errors"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresService struct {
	db     *sql.DB
	logger *zap.Logger
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// NewPostgresService opens the pool and ensures the run tables exist.
func NewPostgresService(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresService, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.NewServiceError("failed to open postgres", "postgres", "open", 0, errors.KindFatal, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.NewServiceError("failed to ping postgres", "postgres", "ping", 0, errors.KindFatal, err)
	}

	ps := &PostgresService{db: db, logger: logger}
	if err := ps.Migrate(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("PostgreSQL connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
	)
	return ps, nil
}

// NewPostgresServiceFromDB wraps an existing pool.
func NewPostgresServiceFromDB(db *sql.DB, logger *zap.Logger) *PostgresService {
	return &PostgresService{db: db, logger: logger}
}

const schema = `
CREATE TABLE IF NOT EXISTS aggregation_runs (
	run_id       TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	record_count INTEGER NOT NULL,
	skip_count   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS enriched_teams (
	run_id      TEXT NOT NULL REFERENCES aggregation_runs(run_id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	school_name TEXT NOT NULL,
	division    TEXT NOT NULL,
	record      JSONB NOT NULL,
	PRIMARY KEY (run_id, position)
);`

func (ps *PostgresService) Migrate(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return errors.NewServiceError("failed to migrate postgres schema", "postgres", "migrate", 0, errors.KindFatal, err)
	}
	return nil
}

func (ps *PostgresService) GetDB() *sql.DB {
	return ps.db
}

func (ps *PostgresService) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
