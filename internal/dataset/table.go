package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TrajectoryInfo describes one state table: coordinate counts and the
// train/valid/test boundary indices over its rows.
type TrajectoryInfo struct {
	Name   string `json:"name"`
	NQ     int    `json:"nq,omitempty"`
	NV     int    `json:"nv,omitempty"`
	TrnEnd int    `json:"trn_end,omitempty"`
	ValEnd int    `json:"val_end,omitempty"`
	TstEnd int    `json:"tst_end,omitempty"`
}

// TrajectoryRow is one recorded state: position coordinates followed by
// velocity coordinates.
type TrajectoryRow struct {
	Index      int       `json:"index"`
	Positions  []float64 `json:"positions,omitempty"`
	Velocities []float64 `json:"velocities,omitempty"`
}

type TrajectoryFile struct {
	Info TrajectoryInfo  `json:"info"`
	Rows []TrajectoryRow `json:"rows"`
}

type ReadOptions struct {
	Name string
}

// ReadTrajectoryCSV parses a state table from CSV. The header names the
// coordinate layout, q0..q{nq-1} then v0..v{nv-1}, with an optional
// leading t column that is skipped. Split boundaries default to the full
// row count.
func ReadTrajectoryCSV(in io.Reader, opts ReadOptions) (TrajectoryFile, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "trajectory"
	}

	header, err := reader.Read()
	if err == io.EOF {
		return TrajectoryFile{Info: TrajectoryInfo{Name: name}}, nil
	}
	if err != nil {
		return TrajectoryFile{}, fmt.Errorf("read trajectory csv header: %w", err)
	}
	layout, err := parseHeader(header)
	if err != nil {
		return TrajectoryFile{}, err
	}

	rows := make([]TrajectoryRow, 0, 1024)
	rowIndex := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TrajectoryFile{}, fmt.Errorf("read trajectory csv row %d: %w", rowIndex, err)
		}
		if blankRecord(record) {
			continue
		}
		row, err := buildRowFromRecord(layout, record, rowIndex)
		if err != nil {
			return TrajectoryFile{}, err
		}
		rows = append(rows, row)
		rowIndex++
	}

	info := TrajectoryInfo{Name: name, NQ: layout.nq, NV: layout.nv}
	if len(rows) > 0 {
		info.TrnEnd = len(rows)
		info.ValEnd = len(rows)
		info.TstEnd = len(rows)
	}
	return TrajectoryFile{Info: info, Rows: rows}, nil
}

type headerLayout struct {
	hasTime bool
	nq      int
	nv      int
}

func parseHeader(header []string) (headerLayout, error) {
	var layout headerLayout
	pos := 0
	if len(header) > 0 && strings.ToLower(strings.TrimSpace(header[0])) == "t" {
		layout.hasTime = true
		pos = 1
	}
	for ; pos < len(header); pos++ {
		key := strings.ToLower(strings.TrimSpace(header[pos]))
		switch {
		case strings.HasPrefix(key, "q"):
			if layout.nv > 0 {
				return headerLayout{}, fmt.Errorf("trajectory csv column %d: position column %q after velocity columns", pos, key)
			}
			if key != fmt.Sprintf("q%d", layout.nq) {
				return headerLayout{}, fmt.Errorf("trajectory csv column %d: got %q, want q%d", pos, key, layout.nq)
			}
			layout.nq++
		case strings.HasPrefix(key, "v"):
			if key != fmt.Sprintf("v%d", layout.nv) {
				return headerLayout{}, fmt.Errorf("trajectory csv column %d: got %q, want v%d", pos, key, layout.nv)
			}
			layout.nv++
		default:
			return headerLayout{}, fmt.Errorf("trajectory csv column %d: unsupported column %q", pos, key)
		}
	}
	if layout.nq == 0 {
		return headerLayout{}, fmt.Errorf("trajectory csv header declares no position columns")
	}
	return layout, nil
}

func buildRowFromRecord(layout headerLayout, record []string, index int) (TrajectoryRow, error) {
	want := layout.nq + layout.nv
	if layout.hasTime {
		want++
	}
	if len(record) != want {
		return TrajectoryRow{}, fmt.Errorf("trajectory csv row %d: got %d columns, want %d", index, len(record), want)
	}
	if layout.hasTime {
		record = record[1:]
	}
	positions := make([]float64, 0, layout.nq)
	velocities := make([]float64, 0, layout.nv)
	for i, raw := range record {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return TrajectoryRow{}, fmt.Errorf("parse trajectory row %d column %d: %w", index, i, err)
		}
		if i < layout.nq {
			positions = append(positions, value)
		} else {
			velocities = append(velocities, value)
		}
	}
	return TrajectoryRow{
		Index:      index,
		Positions:  positions,
		Velocities: velocities,
	}, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// WriteTrajectoryCSV emits the table with its canonical header. Floats use
// the shortest exact decimal form.
func WriteTrajectoryCSV(w io.Writer, table TrajectoryFile) error {
	writer := csv.NewWriter(w)
	header := make([]string, 0, table.Info.NQ+table.Info.NV)
	for i := 0; i < table.Info.NQ; i++ {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < table.Info.NV; i++ {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write trajectory csv header: %w", err)
	}
	for _, row := range table.Rows {
		if len(row.Positions) != table.Info.NQ || len(row.Velocities) != table.Info.NV {
			return fmt.Errorf("trajectory row %d: got %dq+%dv coordinates, want %dq+%dv",
				row.Index, len(row.Positions), len(row.Velocities), table.Info.NQ, table.Info.NV)
		}
		record := make([]string, 0, len(header))
		for _, v := range row.Positions {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		for _, v := range row.Velocities {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write trajectory csv row %d: %w", row.Index, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteTrajectoryFile(path string, table TrajectoryFile) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("trajectory file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ReadTrajectoryFile(path string) (TrajectoryFile, error) {
	if strings.TrimSpace(path) == "" {
		return TrajectoryFile{}, fmt.Errorf("trajectory file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TrajectoryFile{}, err
	}
	var table TrajectoryFile
	if err := json.Unmarshal(data, &table); err != nil {
		return TrajectoryFile{}, err
	}
	return table, nil
}
