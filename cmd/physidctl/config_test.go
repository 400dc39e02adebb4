package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	physapi "physid/pkg/physid"
)

func TestLoadBaselineRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline_config.json")
	payload := map[string]any{
		"run_id":  "cube-ref",
		"system":  "elbow",
		"variant": "bad_init",
		"seed":    77,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadBaselineRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load baseline request: %v", err)
	}
	if req.RunID != "cube-ref" || req.System != "elbow" || req.Variant != "bad_init" {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Seed != 77 {
		t.Fatalf("expected seed 77, got %d", req.Seed)
	}
}

func TestLoadBaselineRequestFromConfigIgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline_config.json")
	if err := os.WriteFile(path, []byte(`{"system":"cube","epochs":500,"note":"x"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadBaselineRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load baseline request: %v", err)
	}
	if req.System != "cube" || req.RunID != "" || req.Seed != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLoadOrDefaultBaselineRequest(t *testing.T) {
	req, err := loadOrDefaultBaselineRequest("")
	if err != nil {
		t.Fatalf("empty config path: %v", err)
	}
	if req != (physapi.BaselineRequest{}) {
		t.Fatalf("expected zero request for empty path, got %+v", req)
	}

	if _, err := loadOrDefaultBaselineRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}

	badPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadOrDefaultBaselineRequest(badPath); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestOverrideBaselineFromFlags(t *testing.T) {
	req := physapi.BaselineRequest{
		RunID:   "from-config",
		System:  "cube",
		Variant: "true",
		Seed:    1,
	}
	err := overrideBaselineFromFlags(&req, map[string]bool{"system": true, "seed": true}, map[string]any{
		"run-id":  "from-flag",
		"system":  "elbow",
		"variant": "bad_init",
		"seed":    int64(9),
	})
	if err != nil {
		t.Fatalf("override baseline: %v", err)
	}
	if req.System != "elbow" || req.Seed != 9 {
		t.Fatalf("expected set flags to override config, got %+v", req)
	}
	if req.RunID != "from-config" || req.Variant != "true" {
		t.Fatalf("expected unset flags to leave config values, got %+v", req)
	}
}

func TestLoadSplitRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split_config.json")
	payload := map[string]any{
		"path":   "tosses.csv",
		"system": "cube",
		"train":  0.6,
		"valid":  0.2,
		"test":   0.2,
		"out":    "tosses_split.json",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	req, err := loadSplitRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load split request: %v", err)
	}
	if req.Path != "tosses.csv" || req.System != "cube" || req.Out != "tosses_split.json" {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if req.Train != 0.6 || req.Valid != 0.2 || req.Test != 0.2 {
		t.Fatalf("unexpected fractions: %+v", req)
	}
}

func TestOverrideSplitFromFlags(t *testing.T) {
	req := physapi.SplitRequest{
		Path:  "tosses.csv",
		Train: 0.6,
		Valid: 0.2,
		Test:  0.2,
	}
	err := overrideSplitFromFlags(&req, map[string]bool{"train": true, "valid": true, "test": true}, map[string]any{
		"path":  "other.csv",
		"train": 0.5,
		"valid": 0.25,
		"test":  0.25,
	})
	if err != nil {
		t.Fatalf("override split: %v", err)
	}
	if req.Train != 0.5 || req.Valid != 0.25 || req.Test != 0.25 {
		t.Fatalf("expected fractions from flags, got %+v", req)
	}
	if req.Path != "tosses.csv" {
		t.Fatalf("expected path from config, got %q", req.Path)
	}
}

func TestAsInt64CoercesJSONNumbers(t *testing.T) {
	if v, ok := asInt64(float64(42)); !ok || v != 42 {
		t.Fatalf("expected float64 coercion, got %d ok=%t", v, ok)
	}
	if v, ok := asInt64(7); !ok || v != 7 {
		t.Fatalf("expected int coercion, got %d ok=%t", v, ok)
	}
	if _, ok := asInt64("42"); ok {
		t.Fatal("expected string to fail int64 coercion")
	}
	if v, ok := asFloat64(3); !ok || v != 3 {
		t.Fatalf("expected int to float64 coercion, got %f ok=%t", v, ok)
	}
	if _, ok := asString(13); ok {
		t.Fatal("expected number to fail string coercion")
	}
}
