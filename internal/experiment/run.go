package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"physid/internal/artifacts"
	"physid/internal/dataset"
	"physid/internal/geometry"
	"physid/internal/inertia"
	"physid/internal/model"
	"physid/internal/presets"
	"physid/internal/storage"
	"physid/internal/systemid"
	"physid/internal/urdf"
)

// Run status values persisted with the run record.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// RunConfig describes one identification run. RunID is optional; a fresh
// uuid is assigned when empty. Variant names the template set the learner
// starts from and defaults to the poor initialization.
type RunConfig struct {
	RunID            string
	System           string
	Variant          string
	Source           string
	DatasetSize      int
	TrajectoryLength int
	Timestep         float64
	Epochs           int
	Patience         int
	LearningRate     float64
	WeightDecay      float64
	Split            dataset.Split
	Seed             int64
}

// Tables is the learner-owned state an epoch snapshot captures: one
// parameter row per inertial body, positionally aligned to the system
// topology, plus the global geometry table and its per-body index lists.
type Tables struct {
	Rows         []inertia.Row
	Shapes       []geometry.Shape
	ShapesByBody map[string][]int
}

// Run is the live handle for one identification run. All methods are safe
// for concurrent use, though a single training loop driving RecordEpoch
// sequentially is the expected shape.
type Run struct {
	harness *Harness
	id      string
	system  string
	variant string
	dir     string

	mu        sync.Mutex
	record    model.RunRecord
	config    artifacts.RunConfig
	losses    []float64
	reports   []model.EpochReport
	lastURDFs map[string]string
	finished  bool
}

// EpochFunc is the per-epoch hook shape external training loops call.
type EpochFunc func(epoch int, loss float64, tables Tables) error

// NewRun validates the config against the registered systems, persists the
// run record, and creates the run's artifact directory with its config
// file. The run stays active until Finish.
func (h *Harness) NewRun(ctx context.Context, cfg RunConfig) (*Run, error) {
	system := systemid.Normalize(cfg.System)
	entry, ok := h.entry(system)
	if !ok {
		return nil, fmt.Errorf("unknown system: %s", cfg.System)
	}
	variant := cfg.Variant
	if variant == "" {
		variant = presets.VariantBadInit
	}
	if _, ok := entry.templates[variant]; !ok {
		return nil, fmt.Errorf("unsupported %s variant: %s", system, variant)
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}

	id := cfg.RunID
	if id == "" {
		id = uuid.New().String()
	}
	created := time.Now().UTC().Format(time.RFC3339)

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           id,
		System:       system,
		Variant:      variant,
		Epochs:       cfg.Epochs,
		Seed:         cfg.Seed,
		Status:       StatusRunning,
		CreatedAtUTC: created,
	}

	runConfig := artifacts.RunConfig{
		RunID:            id,
		System:           system,
		Variant:          variant,
		Source:           cfg.Source,
		DatasetSize:      cfg.DatasetSize,
		TrajectoryLength: cfg.TrajectoryLength,
		Timestep:         cfg.Timestep,
		Epochs:           cfg.Epochs,
		Patience:         cfg.Patience,
		LearningRate:     cfg.LearningRate,
		WeightDecay:      cfg.WeightDecay,
		TrainFraction:    cfg.Split.Train,
		ValidFraction:    cfg.Split.Valid,
		TestFraction:     cfg.Split.Test,
		Seed:             cfg.Seed,
		CreatedAtUTC:     created,
	}

	run := &Run{
		harness: h,
		id:      id,
		system:  system,
		variant: variant,
		dir:     filepath.Join(h.root, id),
		record:  record,
		config:  runConfig,
	}
	if err := h.registerRun(run); err != nil {
		return nil, err
	}

	if err := h.store.SaveRun(ctx, record); err != nil {
		h.unregisterRun(id)
		return nil, err
	}
	if err := artifacts.WriteRunConfig(h.root, id, runConfig); err != nil {
		h.unregisterRun(id)
		return nil, err
	}
	return run, nil
}

func (r *Run) ID() string     { return r.id }
func (r *Run) System() string { return r.system }
func (r *Run) Dir() string    { return r.dir }

// Losses returns the recorded loss history so far.
func (r *Run) Losses() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.losses...)
}

// RecordEpoch snapshots one training epoch: it serializes the learner's
// current tables into the run's template set, persists the export, the
// accumulated loss history, and the epoch report through the store, and
// rewrites the document mirror in the artifact directory. The first
// failure leaves the epoch unrecorded.
func (r *Run) RecordEpoch(ctx context.Context, epoch int, loss float64, tables Tables) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return fmt.Errorf("run %s is finished", r.id)
	}

	entry, ok := r.harness.entry(r.system)
	if !ok {
		return fmt.Errorf("unknown system: %s", r.system)
	}
	docs, err := urdf.Export(urdf.ExportRequest{
		Templates:    entry.templates[r.variant],
		InertialIDs:  entry.topology.InertialBodyIDs(),
		Rows:         tables.Rows,
		Shapes:       tables.Shapes,
		ShapesByBody: tables.ShapesByBody,
		Topology:     entry.topology,
	})
	if err != nil {
		return fmt.Errorf("run %s epoch %d: %w", r.id, epoch, err)
	}

	report := model.EpochReport{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		Epoch: epoch,
		Loss:  loss,
	}
	for i, id := range entry.topology.InertialBodyIDs() {
		mass, com, moments, err := inertia.ToURDF(tables.Rows[i])
		if err != nil {
			return fmt.Errorf("run %s epoch %d body %s: %w", r.id, epoch, id, err)
		}
		report.Bodies = append(report.Bodies, model.BodyEstimate{
			Body:    id,
			Mass:    mass,
			CoM:     [3]float64{com.X, com.Y, com.Z},
			Moments: moments,
		})
	}

	losses := append(append([]float64(nil), r.losses...), loss)
	reports := append(append([]model.EpochReport(nil), r.reports...), report)
	if err := r.harness.store.SaveLossHistory(ctx, r.id, losses); err != nil {
		return err
	}
	if err := r.harness.store.SaveEpochReports(ctx, r.id, reports); err != nil {
		return err
	}
	export := model.ExportRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID: r.id,
		Epoch: epoch,
		URDFs: docs,
	}
	if err := r.harness.store.SaveExport(ctx, r.id, export); err != nil {
		return err
	}
	if err := artifacts.WriteURDFs(r.dir, docs); err != nil {
		return err
	}

	r.losses = losses
	r.reports = reports
	r.lastURDFs = docs
	return nil
}

// Callback binds the run into the hook shape training loops consume.
func (r *Run) Callback(ctx context.Context) EpochFunc {
	return func(epoch int, loss float64, tables Tables) error {
		return r.RecordEpoch(ctx, epoch, loss, tables)
	}
}

// SaveTrajectory writes a dataset table under the run's trajectory
// directory.
func (r *Run) SaveTrajectory(name string, table dataset.TrajectoryFile) error {
	return artifacts.WriteTrajectory(r.dir, name, table)
}

// Finish seals the run: it updates the run record's status, writes the
// complete artifact bundle, appends the run index entry, and releases the
// run from the harness's active set. An empty status means complete.
func (r *Run) Finish(ctx context.Context, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return fmt.Errorf("run %s is finished", r.id)
	}
	if status == "" {
		status = StatusComplete
	}
	if status != StatusComplete && status != StatusFailed {
		return fmt.Errorf("unsupported run status: %s", status)
	}

	r.record.Status = status
	if err := r.harness.store.SaveRun(ctx, r.record); err != nil {
		return err
	}

	finalLoss := 0.0
	if len(r.losses) > 0 {
		finalLoss = r.losses[len(r.losses)-1]
	}
	var learned []model.BodyEstimate
	if len(r.reports) > 0 {
		learned = r.reports[len(r.reports)-1].Bodies
	}
	bundle := artifacts.RunArtifacts{
		Config:        r.config,
		LossByEpoch:   r.losses,
		FinalLoss:     finalLoss,
		EpochReports:  r.reports,
		LearnedParams: learned,
		URDFs:         r.lastURDFs,
	}
	if _, err := artifacts.WriteRunArtifacts(r.harness.root, bundle); err != nil {
		return err
	}
	indexEntry := artifacts.RunIndexEntry{
		RunID:        r.id,
		System:       r.system,
		Variant:      r.variant,
		Epochs:       r.record.Epochs,
		Seed:         r.record.Seed,
		FinalLoss:    finalLoss,
		CreatedAtUTC: r.record.CreatedAtUTC,
	}
	if err := artifacts.AppendRunIndex(r.harness.root, indexEntry); err != nil {
		return err
	}

	r.finished = true
	r.harness.unregisterRun(r.id)
	return nil
}

// InitialTables reads a system variant's templates back into learner
// tables: one parameter row per inertial body in topology order and the
// collision geometry of each link. This is the starting point a training
// loop perturbs.
func (h *Harness) InitialTables(system, variant string) (Tables, error) {
	entry, ok := h.entry(system)
	if !ok {
		return Tables{}, fmt.Errorf("unknown system: %s", system)
	}
	if variant == "" {
		variant = presets.VariantTrue
	}
	templates, ok := entry.templates[variant]
	if !ok {
		return Tables{}, fmt.Errorf("unsupported %s variant: %s", entry.record.Name, variant)
	}

	links := make(map[string]*etree.Element)
	for modelName, src := range templates {
		doc := etree.NewDocument()
		if err := doc.ReadFromString(src); err != nil {
			return Tables{}, fmt.Errorf("parse template %q: %w", modelName, err)
		}
		for _, link := range doc.FindElements("//" + string(urdf.KindLink)) {
			id := modelName + "_" + link.SelectAttrValue("name", "")
			links[id] = link
		}
	}

	tables := Tables{ShapesByBody: make(map[string][]int)}
	for _, id := range entry.topology.InertialBodyIDs() {
		link, ok := links[id]
		if !ok {
			return Tables{}, fmt.Errorf("body %q has no link in variant %s", id, variant)
		}
		row, err := urdf.ExtractLink(link)
		if err != nil {
			return Tables{}, err
		}
		tables.Rows = append(tables.Rows, row)

		for _, collision := range link.SelectElements(string(urdf.KindCollision)) {
			geom := collision.SelectElement(string(urdf.KindGeometry))
			if geom == nil {
				continue
			}
			for _, shapeEl := range geom.ChildElements() {
				shape, err := urdf.ParseRepresentation(shapeEl)
				if err != nil {
					return Tables{}, fmt.Errorf("body %q: %w", id, err)
				}
				tables.ShapesByBody[id] = append(tables.ShapesByBody[id], len(tables.Shapes))
				tables.Shapes = append(tables.Shapes, shape)
			}
		}
	}
	return tables, nil
}
