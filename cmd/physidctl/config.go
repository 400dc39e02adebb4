package main

import (
	"encoding/json"
	"fmt"
	"os"

	physapi "physid/pkg/physid"
)

func loadBaselineRequestFromConfig(path string) (physapi.BaselineRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return physapi.BaselineRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return physapi.BaselineRequest{}, err
	}

	var req physapi.BaselineRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["system"]); ok {
		req.System = v
	}
	if v, ok := asString(raw["variant"]); ok {
		req.Variant = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	return req, nil
}

func loadSplitRequestFromConfig(path string) (physapi.SplitRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return physapi.SplitRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return physapi.SplitRequest{}, err
	}

	var req physapi.SplitRequest
	if v, ok := asString(raw["path"]); ok {
		req.Path = v
	}
	if v, ok := asString(raw["system"]); ok {
		req.System = v
	}
	if v, ok := asFloat64(raw["train"]); ok {
		req.Train = v
	}
	if v, ok := asFloat64(raw["valid"]); ok {
		req.Valid = v
	}
	if v, ok := asFloat64(raw["test"]); ok {
		req.Test = v
	}
	if v, ok := asString(raw["out"]); ok {
		req.Out = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideBaselineFromFlags(req *physapi.BaselineRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "system":
			req.System = v.(string)
		case "variant":
			req.Variant = v.(string)
		case "seed":
			req.Seed = v.(int64)
		}
	}
	return nil
}

func overrideSplitFromFlags(req *physapi.SplitRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "path":
			req.Path = v.(string)
		case "system":
			req.System = v.(string)
		case "train":
			req.Train = v.(float64)
		case "valid":
			req.Valid = v.(float64)
		case "test":
			req.Test = v.(float64)
		case "out":
			req.Out = v.(string)
		}
	}
	return nil
}

func loadOrDefaultBaselineRequest(configPath string) (physapi.BaselineRequest, error) {
	if configPath == "" {
		return physapi.BaselineRequest{}, nil
	}
	req, err := loadBaselineRequestFromConfig(configPath)
	if err != nil {
		return physapi.BaselineRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func loadOrDefaultSplitRequest(configPath string) (physapi.SplitRequest, error) {
	if configPath == "" {
		return physapi.SplitRequest{}, nil
	}
	req, err := loadSplitRequestFromConfig(configPath)
	if err != nil {
		return physapi.SplitRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
