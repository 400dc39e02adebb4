package storage

import (
	"context"
	"testing"

	"physid/internal/model"
)

func TestMemoryStoreSystemRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.SystemRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Name:            "cube",
		Bodies:          []string{"body"},
		Variants:        []string{"true", "bad_init"},
		NumPositions:    7,
		NumVelocities:   6,
	}
	if err := store.SaveSystem(ctx, input); err != nil {
		t.Fatalf("save system: %v", err)
	}

	output, ok, err := store.GetSystem(ctx, "cube")
	if err != nil {
		t.Fatalf("get system: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted system")
	}
	if output.Name != "cube" || output.NumPositions != 7 {
		t.Fatalf("unexpected system: %+v", output)
	}

	if _, ok, err := store.GetSystem(ctx, "hexapod"); err != nil || ok {
		t.Fatalf("missing system lookup: ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreLossHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{0.9, 0.5, 0.2}
	if err := store.SaveLossHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetLossHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted loss history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}

	output[0] = 99
	again, _, err := store.GetLossHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history again: %v", err)
	}
	if again[0] != 0.9 {
		t.Fatal("store returned a shared slice")
	}
}

func TestMemoryStoreEpochReportsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.EpochReport{
		{Epoch: 1, Loss: 0.8, Bodies: []model.BodyEstimate{{Body: "cube_body", Mass: 0.37}}},
		{Epoch: 2, Loss: 0.6, Bodies: []model.BodyEstimate{{Body: "cube_body", Mass: 0.39}}},
	}
	if err := store.SaveEpochReports(ctx, "run-1", input); err != nil {
		t.Fatalf("save reports: %v", err)
	}
	output, ok, err := store.GetEpochReports(ctx, "run-1")
	if err != nil {
		t.Fatalf("get reports: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted reports")
	}
	if len(output) != 2 || output[1].Bodies[0].Mass != 0.39 {
		t.Fatalf("unexpected reports: %+v", output)
	}
}

func TestMemoryStoreExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.ExportRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		RunID:           "run-1",
		Epoch:           5,
		URDFs:           map[string]string{"cube": "<robot/>"},
	}
	if err := store.SaveExport(ctx, "run-1", input); err != nil {
		t.Fatalf("save export: %v", err)
	}

	output, ok, err := store.GetExport(ctx, "run-1")
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted export")
	}
	if output.Epoch != 5 || output.URDFs["cube"] != "<robot/>" {
		t.Fatalf("unexpected export: %+v", output)
	}

	output.URDFs["cube"] = "mutated"
	again, _, err := store.GetExport(ctx, "run-1")
	if err != nil {
		t.Fatalf("get export again: %v", err)
	}
	if again.URDFs["cube"] != "<robot/>" {
		t.Fatal("store returned a shared map")
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveRun(ctx, model.RunRecord{ID: "run-1"}); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, err := store.GetRun(ctx, "run-1"); err != nil || ok {
		t.Fatalf("run survived reset: ok=%t err=%v", ok, err)
	}
}
