package dataset

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadTrajectoryCSV(t *testing.T) {
	in := strings.NewReader("q0,q1,v0\n1,0.5,-0.25\n0.9,0.4,0\n")
	table, err := ReadTrajectoryCSV(in, ReadOptions{Name: "pendulum"})
	if err != nil {
		t.Fatalf("read trajectory csv: %v", err)
	}
	if table.Info.Name != "pendulum" {
		t.Fatalf("unexpected table name: %+v", table.Info)
	}
	if table.Info.NQ != 2 || table.Info.NV != 1 {
		t.Fatalf("unexpected nq/nv: %+v", table.Info)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	want := TrajectoryRow{Index: 1, Positions: []float64{1, 0.5}, Velocities: []float64{-0.25}}
	if !reflect.DeepEqual(table.Rows[0], want) {
		t.Fatalf("unexpected first row: %+v", table.Rows[0])
	}
	if table.Info.TrnEnd != 2 || table.Info.ValEnd != 2 || table.Info.TstEnd != 2 {
		t.Fatalf("unexpected boundaries: %+v", table.Info)
	}
}

func TestReadTrajectoryCSVSkipsTimeColumn(t *testing.T) {
	in := strings.NewReader("t,q0,v0\n0,1,2\n0.0068,1.01,2\n")
	table, err := ReadTrajectoryCSV(in, ReadOptions{Name: "timed"})
	if err != nil {
		t.Fatalf("read trajectory csv: %v", err)
	}
	if table.Info.NQ != 1 || table.Info.NV != 1 {
		t.Fatalf("unexpected nq/nv: %+v", table.Info)
	}
	if table.Rows[0].Positions[0] != 1 || table.Rows[0].Velocities[0] != 2 {
		t.Fatalf("time column leaked into coordinates: %+v", table.Rows[0])
	}
}

func TestReadTrajectoryCSVRejectsBadHeaders(t *testing.T) {
	cases := map[string]string{
		"out of order":       "q0,v0,q1\n",
		"gap in positions":   "q0,q2,v0\n",
		"unsupported column": "q0,v0,loss\n",
		"no positions":       "v0,v1\n",
	}
	for name, header := range cases {
		if _, err := ReadTrajectoryCSV(strings.NewReader(header), ReadOptions{}); err == nil {
			t.Fatalf("%s: expected header error", name)
		}
	}
}

func TestReadTrajectoryCSVRejectsShortRow(t *testing.T) {
	in := strings.NewReader("q0,q1,v0\n1,2\n")
	if _, err := ReadTrajectoryCSV(in, ReadOptions{}); err == nil {
		t.Fatal("expected column count error")
	}
}

func TestWriteTrajectoryCSVRoundTrip(t *testing.T) {
	table := TrajectoryFile{
		Info: TrajectoryInfo{Name: "cube", NQ: 2, NV: 2, TrnEnd: 2, ValEnd: 2, TstEnd: 2},
		Rows: []TrajectoryRow{
			{Index: 1, Positions: []float64{1, 0.225}, Velocities: []float64{0, -0.5}},
			{Index: 2, Positions: []float64{0.99, 0.224}, Velocities: []float64{0.01, -0.49}},
		},
	}
	var buf bytes.Buffer
	if err := WriteTrajectoryCSV(&buf, table); err != nil {
		t.Fatalf("write trajectory csv: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "q0,q1,v0,v1\n") {
		t.Fatalf("unexpected header line: %q", buf.String())
	}
	loaded, err := ReadTrajectoryCSV(&buf, ReadOptions{Name: "cube"})
	if err != nil {
		t.Fatalf("read trajectory csv: %v", err)
	}
	if !reflect.DeepEqual(loaded, table) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, table)
	}
}

func TestWriteTrajectoryCSVRejectsMisshapenRow(t *testing.T) {
	table := TrajectoryFile{
		Info: TrajectoryInfo{Name: "cube", NQ: 2, NV: 1},
		Rows: []TrajectoryRow{{Index: 1, Positions: []float64{1}, Velocities: []float64{0}}},
	}
	if err := WriteTrajectoryCSV(&bytes.Buffer{}, table); err == nil {
		t.Fatal("expected row shape error")
	}
}

func TestWriteReadTrajectoryFile(t *testing.T) {
	table := TrajectoryFile{
		Info: TrajectoryInfo{Name: "cube", NQ: 1, NV: 1, TrnEnd: 1, ValEnd: 2, TstEnd: 2},
		Rows: []TrajectoryRow{
			{Index: 1, Positions: []float64{0.2}, Velocities: []float64{0}},
			{Index: 2, Positions: []float64{0.19}, Velocities: []float64{-0.1}},
		},
	}
	path := filepath.Join(t.TempDir(), "cube.table.json")
	if err := WriteTrajectoryFile(path, table); err != nil {
		t.Fatalf("write trajectory file: %v", err)
	}
	loaded, err := ReadTrajectoryFile(path)
	if err != nil {
		t.Fatalf("read trajectory file: %v", err)
	}
	if !reflect.DeepEqual(loaded, table) {
		t.Fatalf("unexpected loaded table: %+v", loaded)
	}
}
