package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"physid/internal/experiment"
	"physid/internal/storage"
	physapi "physid/pkg/physid"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "systems":
		return runSystems(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "space":
		return runSpace(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "baseline":
		return runBaseline(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "loss":
		return runLoss(ctx, args[1:])
	case "reports":
		return runReports(ctx, args[1:])
	case "export-run":
		return runExportRun(ctx, args[1:])
	case "dataset":
		return runDataset(ctx, args[1:])
	case "render":
		return runRender(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	harness := experiment.NewHarness(experiment.Config{Store: store, ArtifactRoot: runsDir})
	if err := harness.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s systems=%v\n", *storeKind, harness.Systems())
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	harness := experiment.NewHarness(experiment.Config{Store: store, ArtifactRoot: runsDir})
	if err := harness.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runSystems(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("systems", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit systems list as JSON")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Systems(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		type systemsItem struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Bodies      int      `json:"bodies"`
			Variants    []string `json:"variants"`
		}
		out := make([]systemsItem, 0, len(items))
		for _, item := range items {
			out = append(out, systemsItem{
				Name:        item.Name,
				Description: item.Description,
				Bodies:      item.Bodies,
				Variants:    item.Variants,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, item := range items {
		fmt.Printf("system=%s bodies=%d variants=%v description=%q\n",
			item.Name,
			item.Bodies,
			item.Variants,
			item.Description,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	systemName := fs.String("system", "", "system name")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *systemName == "" {
		return errors.New("show requires --system")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.System(ctx, *systemName)
	if err != nil {
		return err
	}

	fmt.Printf("system=%s description=%q\n", summary.Name, summary.Description)
	fmt.Printf("bodies=%v variants=%v\n", summary.Bodies, summary.Variants)
	fmt.Printf("num_positions=%d num_velocities=%d trajectory_length=%d timestep=%.4f\n",
		summary.NumPositions,
		summary.NumVelocities,
		summary.TrajectoryLength,
		summary.Timestep,
	)
	return nil
}

func runSpace(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("space", flag.ContinueOnError)
	systemName := fs.String("system", "", "system name")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *systemName == "" {
		return errors.New("space requires --system")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Space(ctx, *systemName)
	if err != nil {
		return err
	}

	fmt.Printf("system=%s num_positions=%d num_velocities=%d\n",
		summary.System,
		summary.NumPositions,
		summary.NumVelocities,
	)
	for _, inst := range summary.Instances {
		fmt.Printf("instance=%s num_positions=%d num_velocities=%d welded=%t\n",
			inst.Name,
			inst.NumPositions,
			inst.NumVelocities,
			inst.Welded,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	systemName := fs.String("system", "", "system name")
	variant := fs.String("variant", "", "parameter variant (defaults to true)")
	outDir := fs.String("out", exportsDir, "export output directory")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *systemName == "" {
		return errors.New("export requires --system")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, physapi.ExportRequest{
		System:  *systemName,
		Variant: *variant,
		OutDir:  *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported system=%s variant=%s models=%v to=%s\n",
		summary.System,
		summary.Variant,
		summary.Models,
		filepath.Clean(summary.Directory),
	)
	return nil
}

func runBaseline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("baseline", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional baseline config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	systemName := fs.String("system", "cube", "system name")
	variant := fs.String("variant", "true", "parameter variant")
	seed := fs.Int64("seed", 1, "rng seed")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultBaselineRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = physapi.BaselineRequest{
			RunID:   *runID,
			System:  *systemName,
			Variant: *variant,
			Seed:    *seed,
		}
	} else {
		if err := overrideBaselineFromFlags(&req, setFlags, map[string]any{
			"run-id":  *runID,
			"system":  *systemName,
			"variant": *variant,
			"seed":    *seed,
		}); err != nil {
			return err
		}
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Baseline(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("baseline completed run_id=%s system=%s variant=%s seed=%d\n",
		summary.RunID,
		summary.System,
		summary.Variant,
		req.Seed,
	)
	fmt.Printf("models=%v\n", summary.Models)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	entries, err := client.Runs(ctx, physapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID        string  `json:"run_id"`
			CreatedAtUTC string  `json:"created_at_utc"`
			System       string  `json:"system"`
			Variant      string  `json:"variant"`
			Epochs       int     `json:"epochs"`
			Seed         int64   `json:"seed"`
			FinalLoss    float64 `json:"final_loss"`
		}
		items := make([]runsItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, runsItem{
				RunID:        e.RunID,
				CreatedAtUTC: e.CreatedAtUTC,
				System:       e.System,
				Variant:      e.Variant,
				Epochs:       e.Epochs,
				Seed:         e.Seed,
				FinalLoss:    e.FinalLoss,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s system=%s variant=%s epochs=%d seed=%d final_loss=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.System,
			e.Variant,
			e.Epochs,
			e.Seed,
			e.FinalLoss,
		)
	}
	return nil
}

func runLoss(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("loss", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show loss history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max epochs to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit loss history as JSON")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("loss requires --run-id or --latest")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.LossHistory(ctx, physapi.LossHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no loss history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, loss := range history {
		fmt.Printf("epoch=%d loss=%.6f\n", i, loss)
	}
	return nil
}

func runReports(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show epoch reports for the most recent run from run index")
	limit := fs.Int("limit", 50, "max epochs to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit epoch reports as JSON")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("reports requires --run-id or --latest")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	reports, err := client.Reports(ctx, physapi.ReportsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("no epoch reports")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, report := range reports {
		for _, body := range report.Bodies {
			fmt.Printf("epoch=%d loss=%.6f body=%s mass=%.6f com=%.6f,%.6f,%.6f moments=%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
				report.Epoch,
				report.Loss,
				body.Body,
				body.Mass,
				body.CoM[0],
				body.CoM[1],
				body.CoM[2],
				body.Moments[0],
				body.Moments[1],
				body.Moments[2],
				body.Moments[3],
				body.Moments[4],
				body.Moments[5],
			)
		}
	}
	return nil
}

func runExportRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-run", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export-run requires --run-id or --latest")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.ExportRun(ctx, physapi.ExportRunRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, filepath.Clean(summary.Directory))
	return nil
}

func runDataset(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("dataset requires a subcommand: sample|split")
	}
	switch args[0] {
	case "sample":
		return runDatasetSample(ctx, args[1:])
	case "split":
		return runDatasetSplit(ctx, args[1:])
	default:
		return fmt.Errorf("unknown dataset subcommand: %s", args[0])
	}
}

func runDatasetSample(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dataset sample", flag.ContinueOnError)
	systemName := fs.String("system", "", "system name")
	count := fs.Int("count", 512, "initial condition count")
	seed := fs.Int64("seed", 1, "rng seed")
	out := fs.String("out", "", "output CSV path")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *systemName == "" {
		return errors.New("dataset sample requires --system")
	}
	if *out == "" {
		return errors.New("dataset sample requires --out")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Sample(ctx, physapi.SampleRequest{
		System: *systemName,
		Count:  *count,
		Seed:   *seed,
		Out:    *out,
	})
	if err != nil {
		return err
	}

	fmt.Printf("sampled system=%s count=%d to=%s\n", summary.System, summary.Count, summary.Path)
	return nil
}

func runDatasetSplit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dataset split", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional split config JSON path")
	path := fs.String("path", "", "trajectory CSV path")
	systemName := fs.String("system", "", "optional system name for dimension checks")
	train := fs.Float64("train", 0, "train fraction (all zero fractions use the default split)")
	valid := fs.Float64("valid", 0, "validation fraction")
	testFraction := fs.Float64("test", 0, "test fraction")
	out := fs.String("out", "", "output JSON path (defaults next to the input)")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultSplitRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = physapi.SplitRequest{
			Path:   *path,
			System: *systemName,
			Train:  *train,
			Valid:  *valid,
			Test:   *testFraction,
			Out:    *out,
		}
	} else {
		if err := overrideSplitFromFlags(&req, setFlags, map[string]any{
			"path":   *path,
			"system": *systemName,
			"train":  *train,
			"valid":  *valid,
			"test":   *testFraction,
			"out":    *out,
		}); err != nil {
			return err
		}
	}
	if req.Path == "" {
		return errors.New("dataset split requires --path")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Split(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("split rows=%d train_end=%d valid_end=%d test_end=%d to=%s\n",
		summary.Rows,
		summary.TrnEnd,
		summary.ValEnd,
		summary.TstEnd,
		summary.Path,
	)
	return nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	systemName := fs.String("system", "", "system name")
	variant := fs.String("variant", "", "parameter variant (defaults to true)")
	out := fs.String("out", "", "output WebP path (defaults to <system>_<variant>.webp)")
	size := fs.Int("size", 0, "image size in pixels (0 uses the renderer default)")
	storeKind := fs.String("store", envOrDefault("PHYSID_STORE", storage.DefaultStoreKind()), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", envOrDefault("PHYSID_DB_PATH", "physid.db"), "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *systemName == "" {
		return errors.New("render requires --system")
	}

	client, err := physapi.New(physapi.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Render(ctx, physapi.RenderRequest{
		System:  *systemName,
		Variant: *variant,
		Out:     *out,
		Size:    *size,
	})
	if err != nil {
		return err
	}

	fmt.Printf("rendered system=%s size=%d to=%s\n", summary.System, summary.Size, summary.Path)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: physidctl <init|reset|systems|show|space|export|baseline|runs|loss|reports|export-run|dataset|render> [flags]", msg)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
