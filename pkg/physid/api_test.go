package physid

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"physid/internal/dataset"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientBaselineAndRunQueries(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Baseline(ctx, BaselineRequest{System: "cube", Seed: 42})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if !strings.HasPrefix(summary.RunID, "cube-42-") {
		t.Fatalf("unexpected run id: %s", summary.RunID)
	}
	if summary.Variant != "true" {
		t.Fatalf("unexpected variant: %s", summary.Variant)
	}
	if !reflect.DeepEqual(summary.Models, []string{"cube"}) {
		t.Fatalf("unexpected models: %v", summary.Models)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "config.json")); err != nil {
		t.Fatalf("expected run config artifact: %v", err)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "urdfs", "cube.urdf")); err != nil {
		t.Fatalf("expected document mirror: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected baseline run in runs list: %+v", runs)
	}
	if runs[0].System != "cube" || runs[0].Seed != 42 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}

	history, err := client.LossHistory(ctx, LossHistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("loss history: %v", err)
	}
	if !reflect.DeepEqual(history, []float64{0}) {
		t.Fatalf("unexpected loss history: %v", history)
	}
	latestHistory, err := client.LossHistory(ctx, LossHistoryRequest{Latest: true})
	if err != nil {
		t.Fatalf("loss history latest: %v", err)
	}
	if !reflect.DeepEqual(latestHistory, history) {
		t.Fatalf("latest history mismatch: %v vs %v", latestHistory, history)
	}

	reports, err := client.Reports(ctx, ReportsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if len(reports) != 1 || len(reports[0].Bodies) != 1 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if reports[0].Bodies[0].Body != "cube_body" || reports[0].Bodies[0].Mass != 0.37 {
		t.Fatalf("unexpected body estimate: %+v", reports[0].Bodies[0])
	}

	exported, err := client.ExportRun(ctx, ExportRunRequest{Latest: true})
	if err != nil {
		t.Fatalf("export run latest: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("unexpected exported run: %s", exported.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "loss_history.json")); err != nil {
		t.Fatalf("expected exported loss history: %v", err)
	}
	if _, err := client.ExportRun(ctx, ExportRunRequest{RunID: summary.RunID, Latest: true}); err == nil {
		t.Fatal("expected run id and latest to be mutually exclusive")
	}
}

func TestClientExportWritesDocuments(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Export(ctx, ExportRequest{System: "CUBE-REAL"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if summary.System != "cube" || summary.Variant != "true" {
		t.Fatalf("unexpected export summary: %+v", summary)
	}
	if !reflect.DeepEqual(summary.Models, []string{"cube"}) {
		t.Fatalf("unexpected models: %v", summary.Models)
	}
	data, err := os.ReadFile(filepath.Join(summary.Directory, "cube.urdf"))
	if err != nil {
		t.Fatalf("read exported document: %v", err)
	}
	doc := string(data)
	if !strings.HasPrefix(doc, "<?xml version=\"1.0\"?>\n") {
		t.Fatalf("expected declaration prefix, got %q", doc[:40])
	}
	if !strings.Contains(doc, `value="0.37"`) {
		t.Fatal("expected template mass in exported document")
	}

	poor, err := client.Export(ctx, ExportRequest{System: "cube", Variant: "bad_init"})
	if err != nil {
		t.Fatalf("export bad_init: %v", err)
	}
	data, err = os.ReadFile(filepath.Join(poor.Directory, "cube.urdf"))
	if err != nil {
		t.Fatalf("read bad_init document: %v", err)
	}
	if !strings.Contains(string(data), `value="1.0"`) {
		t.Fatal("expected bad_init mass in exported document")
	}

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected system requirement error")
	}
	if _, err := client.Export(ctx, ExportRequest{System: "cube", Variant: "mesh"}); err == nil {
		t.Fatal("expected unsupported variant error")
	}
}

func TestClientSystemQueries(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	items, err := client.Systems(ctx)
	if err != nil {
		t.Fatalf("systems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected three systems, got %d", len(items))
	}
	if items[0].Name != "asymmetric" || items[1].Name != "cube" || items[2].Name != "elbow" {
		t.Fatalf("unexpected system order: %+v", items)
	}

	elbow, err := client.System(ctx, "se")
	if err != nil {
		t.Fatalf("system alias: %v", err)
	}
	if elbow.Name != "elbow" || elbow.NumPositions != 8 || elbow.NumVelocities != 7 {
		t.Fatalf("unexpected elbow summary: %+v", elbow)
	}
	if elbow.TrajectoryLength != 120 || elbow.Timestep != 0.0068 {
		t.Fatalf("unexpected elbow defaults: %+v", elbow)
	}

	space, err := client.Space(ctx, "cube")
	if err != nil {
		t.Fatalf("space: %v", err)
	}
	if space.NumPositions != 7 || space.NumVelocities != 6 {
		t.Fatalf("unexpected cube space: %+v", space)
	}
	if len(space.Instances) != 2 {
		t.Fatalf("expected world and cube instances, got %+v", space.Instances)
	}
	if space.Instances[0].Name != "world" || !space.Instances[0].Welded {
		t.Fatalf("expected welded world instance first: %+v", space.Instances[0])
	}
	if space.Instances[1].Name != "cube" || space.Instances[1].NumPositions != 7 {
		t.Fatalf("unexpected cube instance: %+v", space.Instances[1])
	}

	if _, err := client.System(ctx, "warehouse"); err == nil {
		t.Fatal("expected unknown system error")
	}
}

func TestClientSampleAndSplit(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := t.TempDir()

	csvPath := filepath.Join(base, "cube_ics.csv")
	sample, err := client.Sample(ctx, SampleRequest{System: "cube", Count: 4, Seed: 9, Out: csvPath})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if sample.Count != 4 || sample.Path != csvPath {
		t.Fatalf("unexpected sample summary: %+v", sample)
	}
	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty sample csv, err=%v", err)
	}

	split, err := client.Split(ctx, SplitRequest{Path: csvPath, System: "cube"})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if split.Rows != 4 || split.TrnEnd != 2 || split.ValEnd != 3 || split.TstEnd != 4 {
		t.Fatalf("unexpected split summary: %+v", split)
	}
	table, err := dataset.ReadTrajectoryFile(split.Path)
	if err != nil {
		t.Fatalf("read split table: %v", err)
	}
	if len(table.Rows) != 4 || table.Info.NQ != 7 || table.Info.NV != 6 {
		t.Fatalf("unexpected split table: %+v", table.Info)
	}

	// An elbow check over cube-shaped rows must fail the dimension guard.
	if _, err := client.Split(ctx, SplitRequest{Path: csvPath, System: "elbow"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, err := client.Split(ctx, SplitRequest{Path: csvPath, Train: 0.9, Valid: 0.9, Test: 0.9}); err == nil {
		t.Fatal("expected fraction validation error")
	}
	if _, err := client.Sample(ctx, SampleRequest{System: "cube"}); err == nil {
		t.Fatal("expected output path requirement error")
	}
}

func TestClientRenderWritesSnapshot(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	out := filepath.Join(t.TempDir(), "cube.webp")
	summary, err := client.Render(ctx, RenderRequest{System: "cube", Size: 64, Out: out})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if summary.Size != 64 {
		t.Fatalf("unexpected snapshot size: %d", summary.Size)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty snapshot, err=%v", err)
	}

	if _, err := client.Render(ctx, RenderRequest{}); err == nil {
		t.Fatal("expected system requirement error")
	}
}

func TestClientQueryValidation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.LossHistory(ctx, LossHistoryRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id and latest to be mutually exclusive")
	}
	if _, err := client.LossHistory(ctx, LossHistoryRequest{Limit: -1, RunID: "x"}); err == nil {
		t.Fatal("expected limit validation error")
	}
	if _, err := client.LossHistory(ctx, LossHistoryRequest{Latest: true}); err == nil {
		t.Fatal("expected no-runs error")
	}
	if _, err := client.Reports(ctx, ReportsRequest{}); err == nil {
		t.Fatal("expected run id requirement error")
	}
	if _, err := client.LossHistory(ctx, LossHistoryRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected not-found error")
	}
	if _, err := client.ExportRun(ctx, ExportRunRequest{}); err == nil {
		t.Fatal("expected export requirement error")
	}

	if _, err := New(Options{StoreKind: "warehouse"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
