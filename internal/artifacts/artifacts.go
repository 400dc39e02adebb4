package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"physid/internal/dataset"
	"physid/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile        = "config.json"
	lossHistoryFile   = "loss_history.json"
	learnedParamsFile = "learned_params.json"
	epochReportsFile  = "epoch_reports.json"
	urdfDirName       = "urdfs"
	trajectoryDirName = "trajectories"
)

type RunConfig struct {
	RunID            string  `json:"run_id"`
	System           string  `json:"system"`
	Variant          string  `json:"variant,omitempty"`
	Source           string  `json:"source,omitempty"`
	DatasetSize      int     `json:"dataset_size,omitempty"`
	TrajectoryLength int     `json:"trajectory_length,omitempty"`
	Timestep         float64 `json:"timestep,omitempty"`
	Epochs           int     `json:"epochs"`
	Patience         int     `json:"patience,omitempty"`
	LearningRate     float64 `json:"learning_rate,omitempty"`
	WeightDecay      float64 `json:"weight_decay,omitempty"`
	TrainFraction    float64 `json:"train_fraction,omitempty"`
	ValidFraction    float64 `json:"valid_fraction,omitempty"`
	TestFraction     float64 `json:"test_fraction,omitempty"`
	Seed             int64   `json:"seed"`
	CreatedAtUTC     string  `json:"created_at_utc,omitempty"`
}

type LossHistory struct {
	LossByEpoch []float64 `json:"loss_by_epoch"`
	FinalLoss   float64   `json:"final_loss"`
}

type RunArtifacts struct {
	Config        RunConfig
	LossByEpoch   []float64
	FinalLoss     float64
	EpochReports  []model.EpochReport
	LearnedParams []model.BodyEstimate
	URDFs         map[string]string
	Trajectories  map[string]dataset.TrajectoryFile
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	System       string  `json:"system"`
	Variant      string  `json:"variant,omitempty"`
	Epochs       int     `json:"epochs"`
	Seed         int64   `json:"seed"`
	FinalLoss    float64 `json:"final_loss"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, run RunArtifacts) (string, error) {
	if run.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, run.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), run.Config); err != nil {
		return "", err
	}
	history := LossHistory{LossByEpoch: run.LossByEpoch, FinalLoss: run.FinalLoss}
	if err := writeJSON(filepath.Join(runDir, lossHistoryFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, learnedParamsFile), run.LearnedParams); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, epochReportsFile), run.EpochReports); err != nil {
		return "", err
	}
	if len(run.URDFs) > 0 {
		if err := WriteURDFs(runDir, run.URDFs); err != nil {
			return "", err
		}
	}
	names := make([]string, 0, len(run.Trajectories))
	for name := range run.Trajectories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := WriteTrajectory(runDir, name, run.Trajectories[name]); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{configFile, lossHistoryFile, learnedParamsFile, epochReportsFile}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, dir := range []string{urdfDirName, trajectoryDirName} {
		if err := copyDir(filepath.Join(src, dir), filepath.Join(dst, dir)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadLossHistory(baseDir, runID string) (LossHistory, bool, error) {
	path := filepath.Join(baseDir, runID, lossHistoryFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LossHistory{}, false, nil
		}
		return LossHistory{}, false, err
	}

	var history LossHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return LossHistory{}, false, err
	}
	return history, true, nil
}

func ReadLearnedParams(baseDir, runID string) ([]model.BodyEstimate, bool, error) {
	path := filepath.Join(baseDir, runID, learnedParamsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var estimates []model.BodyEstimate
	if err := json.Unmarshal(data, &estimates); err != nil {
		return nil, false, err
	}
	return estimates, true, nil
}

func ReadEpochReports(baseDir, runID string) ([]model.EpochReport, bool, error) {
	path := filepath.Join(baseDir, runID, epochReportsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var reports []model.EpochReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, false, err
	}
	return reports, true, nil
}

// WriteURDFs rewrites the run's document set. Each recorded epoch lands
// here, so the files always hold the latest export.
func WriteURDFs(runDir string, urdfs map[string]string) error {
	dir := filepath.Join(runDir, urdfDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := make([]string, 0, len(urdfs))
	for name := range urdfs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name+".urdf")
		if err := os.WriteFile(path, []byte(urdfs[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func ReadURDF(baseDir, runID, modelName string) (string, bool, error) {
	path := filepath.Join(baseDir, runID, urdfDirName, modelName+".urdf")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func ListURDFs(baseDir, runID string) ([]string, error) {
	return listWithSuffix(filepath.Join(baseDir, runID, urdfDirName), ".urdf")
}

func WriteTrajectory(runDir, name string, table dataset.TrajectoryFile) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("trajectory name is required")
	}
	dir := filepath.Join(runDir, trajectoryDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(dir, name+".csv"))
	if err != nil {
		return err
	}
	defer file.Close()
	if err := dataset.WriteTrajectoryCSV(file, table); err != nil {
		return err
	}
	return file.Sync()
}

func ReadTrajectory(baseDir, runID, name string) (dataset.TrajectoryFile, bool, error) {
	path := filepath.Join(baseDir, runID, trajectoryDirName, name+".csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dataset.TrajectoryFile{}, false, nil
		}
		return dataset.TrajectoryFile{}, false, err
	}
	defer file.Close()

	table, err := dataset.ReadTrajectoryCSV(file, dataset.ReadOptions{Name: name})
	if err != nil {
		return dataset.TrajectoryFile{}, false, err
	}
	return table, true, nil
}

func ListTrajectories(baseDir, runID string) ([]string, error) {
	return listWithSuffix(filepath.Join(baseDir, runID, trajectoryDirName), ".csv")
}

func listWithSuffix(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), suffix))
	}
	sort.Strings(names)
	return names, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
