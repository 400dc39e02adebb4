// Package experiment orchestrates identification runs: it registers the
// preset systems with a store, hands out run handles, and mirrors every
// recorded epoch into the run's artifact directory. The learning loop
// itself lives outside; this package only witnesses its progress.
package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"physid/internal/model"
	"physid/internal/plant"
	"physid/internal/presets"
	"physid/internal/storage"
	"physid/internal/systemid"
)

type Config struct {
	Store        storage.Store
	ArtifactRoot string
	// Systems lists the preset systems to register. Empty means all.
	Systems []string
}

type systemEntry struct {
	record    model.SystemRecord
	topology  *plant.Topology
	templates map[string]map[string]string
}

type Harness struct {
	store storage.Store
	root  string

	mu sync.RWMutex

	systems map[string]*systemEntry
	runs    map[string]*Run
	started bool

	config Config
}

var (
	defaultHarnessMu sync.Mutex
	defaultHarness   *Harness
)

func NewHarness(cfg Config) *Harness {
	return &Harness{
		store:   cfg.Store,
		root:    cfg.ArtifactRoot,
		systems: make(map[string]*systemEntry),
		runs:    make(map[string]*Run),
		config:  cfg,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Harness, error) {
	defaultHarnessMu.Lock()
	defer defaultHarnessMu.Unlock()

	if defaultHarness != nil && defaultHarness.Started() {
		return defaultHarness, nil
	}

	h := NewHarness(cfg)
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	defaultHarness = h
	return defaultHarness, nil
}

func Default() (*Harness, bool) {
	defaultHarnessMu.Lock()
	h := defaultHarness
	defaultHarnessMu.Unlock()

	if h == nil || !h.Started() {
		return nil, false
	}
	return h, true
}

func StopDefault() error {
	defaultHarnessMu.Lock()
	h := defaultHarness
	defaultHarnessMu.Unlock()
	if h == nil {
		return nil
	}
	h.Stop()
	defaultHarnessMu.Lock()
	if defaultHarness == h {
		defaultHarness = nil
	}
	defaultHarnessMu.Unlock()
	return nil
}

func (h *Harness) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}

	names := h.config.Systems
	if len(names) == 0 {
		names = presets.Systems()
	}
	for i, name := range names {
		if err := h.registerSystemLocked(ctx, name); err != nil {
			h.systems = make(map[string]*systemEntry)
			return fmt.Errorf("register system at index %d: %w", i, err)
		}
	}

	h.started = true
	return nil
}

func (h *Harness) registerSystemLocked(ctx context.Context, name string) error {
	canonical := systemid.Normalize(name)
	if canonical == "" {
		return fmt.Errorf("system name is required")
	}
	if _, exists := h.systems[canonical]; exists {
		return fmt.Errorf("duplicate system: %s", canonical)
	}

	variants, err := presets.Variants(canonical)
	if err != nil {
		return err
	}
	templates := make(map[string]map[string]string, len(variants))
	for _, variant := range variants {
		urdfs, err := presets.URDFs(canonical, variant)
		if err != nil {
			return err
		}
		templates[variant] = urdfs
	}

	topology := plant.NewTopology()
	modelNames := make([]string, 0, len(templates[presets.VariantTrue]))
	for modelName := range templates[presets.VariantTrue] {
		modelNames = append(modelNames, modelName)
	}
	sort.Strings(modelNames)
	for _, modelName := range modelNames {
		src := templates[presets.VariantTrue][modelName]
		if err := topology.AddModelFromString(modelName, src, plant.AddOptions{}); err != nil {
			return err
		}
	}
	space, err := topology.Finalize()
	if err != nil {
		return err
	}

	description, err := presets.Description(canonical)
	if err != nil {
		return err
	}
	record := model.SystemRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		Name:          canonical,
		Description:   description,
		Bodies:        topology.InertialBodyIDs(),
		Variants:      variants,
		NumPositions:  space.NumPositions(),
		NumVelocities: space.NumVelocities(),
	}
	if err := h.store.SaveSystem(ctx, record); err != nil {
		return err
	}

	h.systems[canonical] = &systemEntry{
		record:    record,
		topology:  topology,
		templates: templates,
	}
	return nil
}

func (h *Harness) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = false
	h.systems = make(map[string]*systemEntry)
	h.runs = make(map[string]*Run)
}

func (h *Harness) Reset(ctx context.Context) error {
	h.Stop()
	if resetter, ok := h.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return h.Init(ctx)
}

func (h *Harness) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Systems lists the registered system names in sorted order.
func (h *Harness) Systems() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.systems))
	for name := range h.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Harness) System(name string) (model.SystemRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.systems[systemid.Normalize(name)]
	if !ok {
		return model.SystemRecord{}, false
	}
	return entry.record, true
}

// Topology returns the live topology of a registered system. The
// topology is finalized and safe to share.
func (h *Harness) Topology(name string) (*plant.Topology, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.systems[systemid.Normalize(name)]
	if !ok {
		return nil, false
	}
	return entry.topology, true
}

func (h *Harness) Templates(name, variant string) (map[string]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.systems[systemid.Normalize(name)]
	if !ok {
		return nil, false
	}
	if variant == "" {
		variant = presets.VariantTrue
	}
	urdfs, ok := entry.templates[variant]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(urdfs))
	for modelName, src := range urdfs {
		out[modelName] = src
	}
	return out, true
}

// ActiveRuns lists the ids of runs that have started but not finished,
// in sorted order.
func (h *Harness) ActiveRuns() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.runs))
	for id := range h.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Harness) ArtifactRoot() string {
	return h.root
}

func (h *Harness) entry(name string) (*systemEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.systems[systemid.Normalize(name)]
	return entry, ok
}

func (h *Harness) registerRun(run *Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return fmt.Errorf("harness is not initialized")
	}
	if _, exists := h.runs[run.id]; exists {
		return fmt.Errorf("run already active: %s", run.id)
	}
	h.runs[run.id] = run
	return nil
}

func (h *Harness) unregisterRun(id string) {
	if id == "" {
		return
	}
	h.mu.Lock()
	delete(h.runs, id)
	h.mu.Unlock()
}
