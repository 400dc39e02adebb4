package dataset

import (
	"fmt"

	"physid/internal/space"
)

// BuildInitialConditionTable draws n states around a base state and
// packages them as a table with zero velocities. The trajectories
// themselves come from outside; these rows only seed them.
func BuildInitialConditionTable(name string, s space.Space, base, ranges []float64, n int, seed uint64) (TrajectoryFile, error) {
	if n <= 0 {
		return TrajectoryFile{}, fmt.Errorf("initial condition count must be positive, got %d", n)
	}
	sampler, err := space.NewUniformSampler(s, ranges, seed)
	if err != nil {
		return TrajectoryFile{}, err
	}
	if base != nil {
		if err := sampler.SetBase(base); err != nil {
			return TrajectoryFile{}, err
		}
	}
	states, err := sampler.SampleN(n)
	if err != nil {
		return TrajectoryFile{}, err
	}

	rows := make([]TrajectoryRow, 0, n)
	for i, x := range states {
		rows = append(rows, TrajectoryRow{
			Index:      i + 1,
			Positions:  x,
			Velocities: make([]float64, s.NumVelocities()),
		})
	}
	return TrajectoryFile{
		Info: TrajectoryInfo{
			Name:   name,
			NQ:     s.NumPositions(),
			NV:     s.NumVelocities(),
			TrnEnd: n,
			ValEnd: n,
			TstEnd: n,
		},
		Rows: rows,
	}, nil
}
