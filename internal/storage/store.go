package storage

import (
	"context"

	"physid/internal/model"
)

// Store defines transaction-like persistence operations for identification records.
type Store interface {
	Init(ctx context.Context) error
	SaveSystem(ctx context.Context, system model.SystemRecord) error
	GetSystem(ctx context.Context, name string) (model.SystemRecord, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	SaveLossHistory(ctx context.Context, runID string, history []float64) error
	GetLossHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveEpochReports(ctx context.Context, runID string, reports []model.EpochReport) error
	GetEpochReports(ctx context.Context, runID string) ([]model.EpochReport, bool, error)
	SaveExport(ctx context.Context, runID string, export model.ExportRecord) error
	GetExport(ctx context.Context, runID string) (model.ExportRecord, bool, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
