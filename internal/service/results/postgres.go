package results

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// PostgresStore records each run and its enriched teams. Saving the same run
// again replaces its rows.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

func (p *PostgresStore) Name() string {
	return "postgres"
}

func (p *PostgresStore) Save(ctx context.Context, run *domain.RunResult) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.fail("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM aggregation_runs WHERE run_id = $1`, run.RunID); err != nil {
		return p.fail("delete", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO aggregation_runs (run_id, started_at, finished_at, record_count, skip_count) VALUES ($1, $2, $3, $4, $5)`,
		run.RunID, run.StartedAt, run.FinishedAt, len(run.Records), len(run.Skipped),
	); err != nil {
		return p.fail("insert_run", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO enriched_teams (run_id, position, school_name, division, record) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return p.fail("prepare", err)
	}
	defer stmt.Close()

	for i, record := range run.Records {
		data, err := json.Marshal(record)
		if err != nil {
			return errors.NewServiceError("failed to encode record", "postgres", "encode", 0, errors.KindPermanent, err)
		}
		if _, err := stmt.ExecContext(ctx, run.RunID, i, record.Team.SchoolName, record.Team.Division.String(), data); err != nil {
			return p.fail("insert_team", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return p.fail("commit", err)
	}

	p.logger.Info("Results saved to PostgreSQL", zap.String("run_id", run.RunID), zap.Int("records", len(run.Records)))
	return nil
}

func (p *PostgresStore) fail(operation string, err error) error {
	p.logger.Error("PostgreSQL save failed", zap.String("operation", operation), zap.Error(err))
	return errors.NewServiceError("postgres "+operation+" failed", "postgres", operation, 0, errors.KindTransient, err)
}
