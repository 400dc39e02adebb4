package storage

import (
	"context"
	"sync"

	"physid/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	systems     map[string]model.SystemRecord
	runs        map[string]model.RunRecord
	losses      map[string][]float64
	reports     map[string][]model.EpochReport
	exports     map[string]model.ExportRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.systems = make(map[string]model.SystemRecord)
	s.runs = make(map[string]model.RunRecord)
	s.losses = make(map[string][]float64)
	s.reports = make(map[string][]model.EpochReport)
	s.exports = make(map[string]model.ExportRecord)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveSystem(_ context.Context, system model.SystemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systems[system.Name] = system
	return nil
}

func (s *MemoryStore) GetSystem(_ context.Context, name string) (model.SystemRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	system, ok := s.systems[name]
	return system, ok, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	return nil
}

func (s *MemoryStore) SaveLossHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]float64(nil), history...)
	s.losses[runID] = copied
	return nil
}

func (s *MemoryStore) GetLossHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.losses[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}

func (s *MemoryStore) SaveEpochReports(_ context.Context, runID string, reports []model.EpochReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.EpochReport, 0, len(reports))
	for _, report := range reports {
		bodies := make([]model.BodyEstimate, len(report.Bodies))
		copy(bodies, report.Bodies)
		report.Bodies = bodies
		copied = append(copied, report)
	}
	s.reports[runID] = copied
	return nil
}

func (s *MemoryStore) GetEpochReports(_ context.Context, runID string) ([]model.EpochReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, ok := s.reports[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.EpochReport, 0, len(reports))
	for _, report := range reports {
		bodies := make([]model.BodyEstimate, len(report.Bodies))
		copy(bodies, report.Bodies)
		report.Bodies = bodies
		copied = append(copied, report)
	}
	return copied, true, nil
}

func (s *MemoryStore) SaveExport(_ context.Context, runID string, export model.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	urdfs := make(map[string]string, len(export.URDFs))
	for name, text := range export.URDFs {
		urdfs[name] = text
	}
	export.URDFs = urdfs
	s.exports[runID] = export
	return nil
}

func (s *MemoryStore) GetExport(_ context.Context, runID string) (model.ExportRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export, ok := s.exports[runID]
	if !ok {
		return model.ExportRecord{}, false, nil
	}
	urdfs := make(map[string]string, len(export.URDFs))
	for name, text := range export.URDFs {
		urdfs[name] = text
	}
	export.URDFs = urdfs
	return export, true, nil
}
