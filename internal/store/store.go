// Package store persists the staging and warehouse schemas and the run log.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/model"
)

// ErrAlreadyLoaded is returned by Load when the warehouse already holds facts
// and the caller did not ask to replace them.
var ErrAlreadyLoaded = eris.New("store: warehouse already loaded; rerun with --replace to reload")

// LoadSet is everything one run writes.
type LoadSet struct {
	Staged    model.Staged
	Warehouse model.Warehouse
}

// LoadOptions controls re-run behavior.
type LoadOptions struct {
	// Replace clears every staging and warehouse table inside the load
	// transaction before writing.
	Replace bool
}

// LoadResult is the number of rows written per qualified table name.
type LoadResult map[string]int64

// RunResult carries the counters stored with a completed run.
type RunResult struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store defines the persistence interface for the ETL.
type Store interface {
	// Schema
	Migrate(ctx context.Context) error
	Populated(ctx context.Context) (bool, error)

	// Load writes staging and warehouse rows in one transaction. Either all
	// tables are written or none are.
	Load(ctx context.Context, set LoadSet, opts LoadOptions) (LoadResult, error)

	// Report
	SaldosPorNatureza(ctx context.Context) ([]model.SaldoNatureza, error)

	// Run log, written outside the load transaction.
	StartRun(ctx context.Context) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID, stage, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Close() error
}

// runMetadata decodes the metadata stored with a run. Corrupt metadata is
// logged and dropped so the run itself still lists.
func runMetadata(runID string, data []byte) map[string]any {
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		zap.L().Warn("store: discarding unreadable run metadata",
			zap.String("component", "store"),
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return nil
	}
	return meta
}
