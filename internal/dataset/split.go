package dataset

import (
	"fmt"

	"physid/internal/space"
)

// Split carries the fractional train/valid/test partition applied to a
// table's rows. Fractions need not sum to one; leftover rows land in no
// partition.
type Split struct {
	Train float64
	Valid float64
	Test  float64
}

// DefaultSplit is the reference partition study sweeps use.
func DefaultSplit() Split {
	return Split{Train: 0.5, Valid: 0.25, Test: 0.25}
}

func (s Split) validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"train", s.Train},
		{"valid", s.Valid},
		{"test", s.Test},
	} {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("split %s fraction out of range: %v", f.name, f.value)
		}
	}
	if sum := s.Train + s.Valid + s.Test; sum > 1+1e-9 {
		return fmt.Errorf("split fractions sum to %v, want at most 1", sum)
	}
	return nil
}

// ApplySplit rewrites the table's boundary indices from the fractional
// partition. Boundaries truncate toward zero, so leftover rows stay
// outside every partition.
func ApplySplit(table *TrajectoryFile, split Split) error {
	if table == nil {
		return fmt.Errorf("table is required")
	}
	if err := split.validate(); err != nil {
		return err
	}
	total := len(table.Rows)
	table.Info.TrnEnd = int(split.Train * float64(total))
	table.Info.ValEnd = table.Info.TrnEnd + int(split.Valid*float64(total))
	table.Info.TstEnd = table.Info.ValEnd + int(split.Test*float64(total))
	return nil
}

// TrainRows returns copies of the rows in the train partition.
func TrainRows(table TrajectoryFile) []TrajectoryRow {
	return copyRows(table, 0, table.Info.TrnEnd)
}

// ValidRows returns copies of the rows in the valid partition.
func ValidRows(table TrajectoryFile) []TrajectoryRow {
	return copyRows(table, table.Info.TrnEnd, table.Info.ValEnd)
}

// TestRows returns copies of the rows in the test partition.
func TestRows(table TrajectoryFile) []TrajectoryRow {
	return copyRows(table, table.Info.ValEnd, table.Info.TstEnd)
}

func copyRows(table TrajectoryFile, from, to int) []TrajectoryRow {
	total := len(table.Rows)
	if from < 0 {
		from = 0
	}
	if to > total {
		to = total
	}
	if from >= to {
		return nil
	}
	out := make([]TrajectoryRow, 0, to-from)
	for _, row := range table.Rows[from:to] {
		out = append(out, TrajectoryRow{
			Index:      row.Index,
			Positions:  append([]float64(nil), row.Positions...),
			Velocities: append([]float64(nil), row.Velocities...),
		})
	}
	return out
}

// CheckDimensions verifies the table matches a state space: the declared
// coordinate counts equal the space dimensions and every row carries
// exactly those counts.
func CheckDimensions(table TrajectoryFile, s space.Space) error {
	if table.Info.NQ != s.NumPositions() {
		return fmt.Errorf("table %s declares %d position coordinates, space has %d",
			table.Info.Name, table.Info.NQ, s.NumPositions())
	}
	if table.Info.NV != s.NumVelocities() {
		return fmt.Errorf("table %s declares %d velocity coordinates, space has %d",
			table.Info.Name, table.Info.NV, s.NumVelocities())
	}
	for _, row := range table.Rows {
		if len(row.Positions) != table.Info.NQ {
			return fmt.Errorf("table %s row %d: got %d position coordinates, want %d",
				table.Info.Name, row.Index, len(row.Positions), table.Info.NQ)
		}
		if len(row.Velocities) != table.Info.NV {
			return fmt.Errorf("table %s row %d: got %d velocity coordinates, want %d",
				table.Info.Name, row.Index, len(row.Velocities), table.Info.NV)
		}
	}
	return nil
}

// CheckBoundaries verifies the split boundary indices are ordered and in
// range.
func CheckBoundaries(table TrajectoryFile) error {
	total := len(table.Rows)
	if table.Info.TrnEnd < 0 || table.Info.TrnEnd > total {
		return fmt.Errorf("table %s trn_end out of range: %d (rows=%d)", table.Info.Name, table.Info.TrnEnd, total)
	}
	if table.Info.ValEnd < table.Info.TrnEnd || table.Info.ValEnd > total {
		return fmt.Errorf("table %s val_end out of range: %d (rows=%d)", table.Info.Name, table.Info.ValEnd, total)
	}
	if table.Info.TstEnd < table.Info.ValEnd || table.Info.TstEnd > total {
		return fmt.Errorf("table %s tst_end out of range: %d (rows=%d)", table.Info.Name, table.Info.TstEnd, total)
	}
	return nil
}
