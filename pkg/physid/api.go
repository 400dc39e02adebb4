// Package physid is the public facade over the identification pipeline:
// preset systems, document export, run recording, datasets, and snapshot
// rendering behind one client with filled-in defaults.
package physid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"physid/internal/artifacts"
	"physid/internal/dataset"
	"physid/internal/experiment"
	"physid/internal/model"
	"physid/internal/presets"
	"physid/internal/storage"
	"physid/internal/urdf"
	"physid/internal/vis"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "physid.db"

	defaultSampleCount = 512
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store   storage.Store
	harness *experiment.Harness

	runsDir    string
	exportsDir string
}

type SystemItem struct {
	Name        string
	Description string
	Bodies      int
	Variants    []string
}

type SystemSummary struct {
	Name             string
	Description      string
	Bodies           []string
	Variants         []string
	NumPositions     int
	NumVelocities    int
	TrajectoryLength int
	Timestep         float64
}

type InstanceSummary struct {
	Name          string
	NumPositions  int
	NumVelocities int
	Welded        bool
}

type SpaceSummary struct {
	System        string
	NumPositions  int
	NumVelocities int
	Instances     []InstanceSummary
}

type ExportRequest struct {
	System  string
	Variant string
	OutDir  string
}

type ExportSummary struct {
	System    string
	Variant   string
	Directory string
	Models    []string
}

type BaselineRequest struct {
	RunID   string
	System  string
	Variant string
	Seed    int64
}

type RunSummary struct {
	RunID        string
	System       string
	Variant      string
	ArtifactsDir string
	Models       []string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	System       string
	Variant      string
	Epochs       int
	Seed         int64
	FinalLoss    float64
}

type ExportRunRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportRunSummary struct {
	RunID     string
	Directory string
}

type LossHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ReportsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type SampleRequest struct {
	System string
	Count  int
	Seed   int64
	Out    string
}

type SampleSummary struct {
	System string
	Count  int
	Path   string
}

type SplitRequest struct {
	Path   string
	System string
	Train  float64
	Valid  float64
	Test   float64
	Out    string
}

type SplitSummary struct {
	Path   string
	Rows   int
	TrnEnd int
	ValEnd int
	TstEnd int
}

type RenderRequest struct {
	System  string
	Variant string
	Out     string
	Size    int
}

type RenderSummary struct {
	System string
	Path   string
	Size   int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureHarness(ctx)
	return err
}

func (c *Client) Systems(ctx context.Context) ([]SystemItem, error) {
	h, err := c.ensureHarness(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SystemItem, 0, len(h.Systems()))
	for _, name := range h.Systems() {
		record, ok := h.System(name)
		if !ok {
			continue
		}
		out = append(out, SystemItem{
			Name:        record.Name,
			Description: record.Description,
			Bodies:      len(record.Bodies),
			Variants:    append([]string(nil), record.Variants...),
		})
	}
	return out, nil
}

func (c *Client) System(ctx context.Context, name string) (SystemSummary, error) {
	if name == "" {
		return SystemSummary{}, errors.New("system name is required")
	}
	h, err := c.ensureHarness(ctx)
	if err != nil {
		return SystemSummary{}, err
	}
	record, ok := h.System(name)
	if !ok {
		return SystemSummary{}, fmt.Errorf("unknown system: %s", name)
	}
	defaults, err := presets.SystemDefaults(record.Name)
	if err != nil {
		return SystemSummary{}, err
	}
	return SystemSummary{
		Name:             record.Name,
		Description:      record.Description,
		Bodies:           append([]string(nil), record.Bodies...),
		Variants:         append([]string(nil), record.Variants...),
		NumPositions:     record.NumPositions,
		NumVelocities:    record.NumVelocities,
		TrajectoryLength: defaults.TrajectoryLength,
		Timestep:         defaults.Timestep,
	}, nil
}

func (c *Client) Space(ctx context.Context, name string) (SpaceSummary, error) {
	if name == "" {
		return SpaceSummary{}, errors.New("system name is required")
	}
	h, err := c.ensureHarness(ctx)
	if err != nil {
		return SpaceSummary{}, err
	}
	record, ok := h.System(name)
	if !ok {
		return SpaceSummary{}, fmt.Errorf("unknown system: %s", name)
	}
	topology, ok := h.Topology(name)
	if !ok {
		return SpaceSummary{}, fmt.Errorf("unknown system: %s", name)
	}

	summary := SpaceSummary{
		System:        record.Name,
		NumPositions:  record.NumPositions,
		NumVelocities: record.NumVelocities,
	}
	for _, instance := range topology.Instances() {
		summary.Instances = append(summary.Instances, InstanceSummary{
			Name:          instance.Name,
			NumPositions:  instance.NumPositions(),
			NumVelocities: instance.NumVelocities(),
			Welded:        instance.Welded,
		})
	}
	return summary, nil
}

// Export runs the serializer over a system variant's templates with the
// parameters the templates themselves carry and writes one document per
// model under the output directory.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.System == "" {
		return ExportSummary{}, errors.New("system is required")
	}
	if req.Variant == "" {
		req.Variant = presets.VariantTrue
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	h, err := c.ensureHarness(ctx)
	if err != nil {
		return ExportSummary{}, err
	}
	record, ok := h.System(req.System)
	if !ok {
		return ExportSummary{}, fmt.Errorf("unknown system: %s", req.System)
	}
	topology, _ := h.Topology(req.System)
	templates, ok := h.Templates(req.System, req.Variant)
	if !ok {
		return ExportSummary{}, fmt.Errorf("unsupported %s variant: %s", record.Name, req.Variant)
	}
	tables, err := h.InitialTables(req.System, req.Variant)
	if err != nil {
		return ExportSummary{}, err
	}

	docs, err := urdf.Export(urdf.ExportRequest{
		Templates:      templates,
		InertialIDs:    topology.InertialBodyIDs(),
		Rows:           tables.Rows,
		Shapes:         tables.Shapes,
		ShapesByBody:   tables.ShapesByBody,
		Topology:       topology,
		VerifyCoverage: true,
	})
	if err != nil {
		return ExportSummary{}, err
	}

	dir := filepath.Join(req.OutDir, record.Name+"_"+req.Variant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, err
	}
	models := make([]string, 0, len(docs))
	for name := range docs {
		models = append(models, name)
	}
	sort.Strings(models)
	for _, name := range models {
		path := filepath.Join(dir, name+".urdf")
		if err := os.WriteFile(path, []byte(docs[name]), 0o644); err != nil {
			return ExportSummary{}, err
		}
	}

	return ExportSummary{
		System:    record.Name,
		Variant:   req.Variant,
		Directory: filepath.Clean(dir),
		Models:    models,
	}, nil
}

// Baseline records a one-epoch run holding a variant's template parameters
// unchanged: the full persistence path of a training run without any
// learning. The run id defaults to system-seed-timestamp.
func (c *Client) Baseline(ctx context.Context, req BaselineRequest) (RunSummary, error) {
	if req.System == "" {
		req.System = "cube"
	}
	if req.Variant == "" {
		req.Variant = presets.VariantTrue
	}

	h, err := c.ensureHarness(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	record, ok := h.System(req.System)
	if !ok {
		return RunSummary{}, fmt.Errorf("unknown system: %s", req.System)
	}
	defaults, err := presets.SystemDefaults(record.Name)
	if err != nil {
		return RunSummary{}, err
	}
	tables, err := h.InitialTables(req.System, req.Variant)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = fmt.Sprintf("%s-%d-%d", record.Name, req.Seed, time.Now().UTC().Unix())
	}
	run, err := h.NewRun(ctx, experiment.RunConfig{
		RunID:            runID,
		System:           record.Name,
		Variant:          req.Variant,
		Source:           "baseline",
		TrajectoryLength: defaults.TrajectoryLength,
		Timestep:         defaults.Timestep,
		Epochs:           1,
		Split:            dataset.DefaultSplit(),
		Seed:             req.Seed,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := run.RecordEpoch(ctx, 0, 0, tables); err != nil {
		return RunSummary{}, err
	}
	if err := run.Finish(ctx, ""); err != nil {
		return RunSummary{}, err
	}

	templates, _ := h.Templates(req.System, req.Variant)
	models := make([]string, 0, len(templates))
	for name := range templates {
		models = append(models, name)
	}
	sort.Strings(models)

	return RunSummary{
		RunID:        runID,
		System:       record.Name,
		Variant:      req.Variant,
		ArtifactsDir: filepath.Clean(run.Dir()),
		Models:       models,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := artifacts.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			System:       e.System,
			Variant:      e.Variant,
			Epochs:       e.Epochs,
			Seed:         e.Seed,
			FinalLoss:    e.FinalLoss,
		})
	}
	return out, nil
}

func (c *Client) ExportRun(_ context.Context, req ExportRunRequest) (ExportRunSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportRunSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportRunSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := artifacts.ListRunIndex(c.runsDir)
		if err != nil {
			return ExportRunSummary{}, err
		}
		if len(entries) == 0 {
			return ExportRunSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := artifacts.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportRunSummary{}, err
	}
	return ExportRunSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) LossHistory(ctx context.Context, req LossHistoryRequest) ([]float64, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := artifacts.ListRunIndex(c.runsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("loss history requires run id or latest")
	}

	if _, err := c.ensureHarness(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetLossHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loss history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Reports(ctx context.Context, req ReportsRequest) ([]model.EpochReport, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := artifacts.ListRunIndex(c.runsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("epoch reports require run id or latest")
	}

	if _, err := c.ensureHarness(ctx); err != nil {
		return nil, err
	}
	reports, ok, err := c.store.GetEpochReports(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("epoch reports not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(reports) > req.Limit {
		reports = reports[:req.Limit]
	}
	out := make([]model.EpochReport, len(reports))
	copy(out, reports)
	return out, nil
}

// Sample draws initial conditions around the system's nominal state and
// writes them as a trajectory CSV.
func (c *Client) Sample(ctx context.Context, req SampleRequest) (SampleSummary, error) {
	if req.System == "" {
		return SampleSummary{}, errors.New("system is required")
	}
	if req.Out == "" {
		return SampleSummary{}, errors.New("output path is required")
	}
	if req.Count <= 0 {
		req.Count = defaultSampleCount
	}

	h, err := c.ensureHarness(ctx)
	if err != nil {
		return SampleSummary{}, err
	}
	record, ok := h.System(req.System)
	if !ok {
		return SampleSummary{}, fmt.Errorf("unknown system: %s", req.System)
	}
	topology, _ := h.Topology(req.System)
	sp, ok := topology.StateSpace()
	if !ok {
		return SampleSummary{}, fmt.Errorf("system %s is not finalized", record.Name)
	}
	defaults, err := presets.SystemDefaults(record.Name)
	if err != nil {
		return SampleSummary{}, err
	}

	table, err := dataset.BuildInitialConditionTable(record.Name, sp,
		defaults.NominalState, defaults.SamplerRanges, req.Count, uint64(req.Seed))
	if err != nil {
		return SampleSummary{}, err
	}

	if dir := filepath.Dir(req.Out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SampleSummary{}, err
		}
	}
	f, err := os.Create(req.Out)
	if err != nil {
		return SampleSummary{}, err
	}
	if err := dataset.WriteTrajectoryCSV(f, table); err != nil {
		f.Close()
		return SampleSummary{}, err
	}
	if err := f.Close(); err != nil {
		return SampleSummary{}, err
	}

	return SampleSummary{
		System: record.Name,
		Count:  req.Count,
		Path:   filepath.Clean(req.Out),
	}, nil
}

// Split reads a trajectory CSV, assigns train/valid/test boundaries from
// the fractions, and writes the bounded table as JSON next to the source.
// Zero fractions select the 0.5/0.25/0.25 default.
func (c *Client) Split(ctx context.Context, req SplitRequest) (SplitSummary, error) {
	if req.Path == "" {
		return SplitSummary{}, errors.New("dataset path is required")
	}
	split := dataset.Split{Train: req.Train, Valid: req.Valid, Test: req.Test}
	if req.Train == 0 && req.Valid == 0 && req.Test == 0 {
		split = dataset.DefaultSplit()
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return SplitSummary{}, err
	}
	name := strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	table, err := dataset.ReadTrajectoryCSV(f, dataset.ReadOptions{Name: name})
	f.Close()
	if err != nil {
		return SplitSummary{}, err
	}

	if req.System != "" {
		h, err := c.ensureHarness(ctx)
		if err != nil {
			return SplitSummary{}, err
		}
		topology, ok := h.Topology(req.System)
		if !ok {
			return SplitSummary{}, fmt.Errorf("unknown system: %s", req.System)
		}
		sp, ok := topology.StateSpace()
		if !ok {
			return SplitSummary{}, fmt.Errorf("system %s is not finalized", req.System)
		}
		if err := dataset.CheckDimensions(table, sp); err != nil {
			return SplitSummary{}, err
		}
	}

	if err := dataset.ApplySplit(&table, split); err != nil {
		return SplitSummary{}, err
	}

	out := req.Out
	if out == "" {
		out = strings.TrimSuffix(req.Path, filepath.Ext(req.Path)) + ".json"
	}
	if err := dataset.WriteTrajectoryFile(out, table); err != nil {
		return SplitSummary{}, err
	}

	return SplitSummary{
		Path:   filepath.Clean(out),
		Rows:   len(table.Rows),
		TrnEnd: table.Info.TrnEnd,
		ValEnd: table.Info.ValEnd,
		TstEnd: table.Info.TstEnd,
	}, nil
}

// Render writes a top-down footprint snapshot of a system variant's
// collision geometry as a webp image.
func (c *Client) Render(ctx context.Context, req RenderRequest) (RenderSummary, error) {
	if req.System == "" {
		return RenderSummary{}, errors.New("system is required")
	}
	if req.Variant == "" {
		req.Variant = presets.VariantTrue
	}

	h, err := c.ensureHarness(ctx)
	if err != nil {
		return RenderSummary{}, err
	}
	record, ok := h.System(req.System)
	if !ok {
		return RenderSummary{}, fmt.Errorf("unknown system: %s", req.System)
	}
	tables, err := h.InitialTables(req.System, req.Variant)
	if err != nil {
		return RenderSummary{}, err
	}

	img, err := vis.Footprint(tables.Shapes, vis.Options{Size: req.Size})
	if err != nil {
		return RenderSummary{}, err
	}

	out := req.Out
	if out == "" {
		out = record.Name + "_" + req.Variant + ".webp"
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return RenderSummary{}, err
		}
	}
	if err := vis.WriteWebP(out, img); err != nil {
		return RenderSummary{}, err
	}

	return RenderSummary{
		System: record.Name,
		Path:   filepath.Clean(out),
		Size:   img.Bounds().Dx(),
	}, nil
}

func (c *Client) ensureHarness(ctx context.Context) (*experiment.Harness, error) {
	if c.harness != nil {
		return c.harness, nil
	}
	h := experiment.NewHarness(experiment.Config{Store: c.store, ArtifactRoot: c.runsDir})
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	c.harness = h
	return c.harness, nil
}
