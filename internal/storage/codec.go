package storage

import (
	"encoding/json"
	"errors"

	"physid/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSystem(s model.SystemRecord) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSystem(data []byte) (model.SystemRecord, error) {
	var system model.SystemRecord
	if err := json.Unmarshal(data, &system); err != nil {
		return model.SystemRecord{}, err
	}
	if err := checkVersion(system.VersionedRecord); err != nil {
		return model.SystemRecord{}, err
	}
	return system, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeExport(e model.ExportRecord) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeExport(data []byte) (model.ExportRecord, error) {
	var export model.ExportRecord
	if err := json.Unmarshal(data, &export); err != nil {
		return model.ExportRecord{}, err
	}
	if err := checkVersion(export.VersionedRecord); err != nil {
		return model.ExportRecord{}, err
	}
	return export, nil
}

func EncodeEpochReports(reports []model.EpochReport) ([]byte, error) {
	return json.Marshal(reports)
}

func DecodeEpochReports(data []byte) ([]model.EpochReport, error) {
	var reports []model.EpochReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, err
	}
	for _, report := range reports {
		if err := checkVersion(report.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func EncodeLossHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeLossHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
