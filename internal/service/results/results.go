// Package results persists the final batch of enriched records for a run.
package results

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/kapu/roster-aggregator-go/internal/domain"
	"github.com/kapu/roster-aggregator-go/internal/util"
	"github.com/kapu/roster-aggregator-go/pkg/errors"
	"go.uber.org/zap"
)

// BatchStore writes the enriched records of one run.
type BatchStore interface {
	Name() string
	Save(ctx context.Context, run *domain.RunResult) error
}

// FileStore writes <dir>/volleyball_teams_<timestamp>.json per run.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}
}

func (f *FileStore) Name() string {
	return "file"
}

// Path is the artifact location for a run.
func (f *FileStore) Path(run *domain.RunResult) string {
	name := constants.OutputConfig.FilePrefix + util.RunTimestamp(run.StartedAt) + ".json"
	return filepath.Join(f.dir, name)
}

func (f *FileStore) Save(ctx context.Context, run *domain.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errors.NewServiceError("failed to create output directory", "file", "mkdir", 0, errors.KindPermanent, err)
	}

	data, err := json.MarshalIndent(run.Records, "", "  ")
	if err != nil {
		return errors.NewServiceError("failed to encode results", "file", "encode", 0, errors.KindPermanent, err)
	}

	path := f.Path(run)
	tmp, err := os.CreateTemp(f.dir, ".results-*.json")
	if err != nil {
		return errors.NewServiceError("failed to create results file", "file", "create", 0, errors.KindTransient, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.NewServiceError("failed to write results file", "file", "write", 0, errors.KindTransient, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewServiceError("failed to write results file", "file", "close", 0, errors.KindTransient, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewServiceError("failed to move results file into place", "file", "rename", 0, errors.KindTransient, err)
	}

	f.logger.Info("Results saved", zap.String("path", path), zap.Int("records", len(run.Records)))
	return nil
}

// MultiStore saves to every store in order and reports all failures.
type MultiStore []BatchStore

func (m MultiStore) Name() string {
	return fmt.Sprintf("multi(%d)", len(m))
}

func (m MultiStore) Save(ctx context.Context, run *domain.RunResult) error {
	var errs []error
	for _, store := range m {
		if err := store.Save(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("%s store: %w", store.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}
