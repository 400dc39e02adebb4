package space

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// UniformSampler draws states by perturbing a base state with tangent
// displacements drawn componentwise from centered uniform ranges.
type UniformSampler struct {
	space  Space
	base   []float64
	ranges []float64
	src    *rand.Rand
}

func NewUniformSampler(s Space, ranges []float64, seed uint64) (*UniformSampler, error) {
	if len(ranges) != s.NumVelocities() {
		return nil, fmt.Errorf("ranges length %d, want %d", len(ranges), s.NumVelocities())
	}
	for i, r := range ranges {
		if r < 0 {
			return nil, fmt.Errorf("range %d is negative: %v", i, r)
		}
	}
	return &UniformSampler{
		space:  s,
		base:   Default(s),
		ranges: append([]float64(nil), ranges...),
		src:    rand.New(rand.NewSource(seed)),
	}, nil
}

// SetBase recenters the sampler on the given state.
func (u *UniformSampler) SetBase(x []float64) error {
	if len(x) != u.space.NumPositions() {
		return fmt.Errorf("state length %d, want %d", len(x), u.space.NumPositions())
	}
	u.base = append([]float64(nil), x...)
	return nil
}

// Sample returns one state drawn around the base state.
func (u *UniformSampler) Sample() ([]float64, error) {
	t := make([]float64, len(u.ranges))
	for i, r := range u.ranges {
		if r == 0 {
			continue
		}
		t[i] = distuv.Uniform{Min: -r, Max: r, Src: u.src}.Rand()
	}
	return Perturb(u.space, u.base, t)
}

// SampleN returns n independent draws.
func (u *UniformSampler) SampleN(n int) ([][]float64, error) {
	out := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		x, err := u.Sample()
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// GaussianNoiser models measurement noise on recorded states: one static
// tangent offset drawn per trajectory plus an independent dynamic draw per
// state.
type GaussianNoiser struct {
	space   Space
	static  []float64
	dynamic []float64
	src     *rand.Rand
}

func NewGaussianNoiser(s Space, static, dynamic []float64, seed uint64) (*GaussianNoiser, error) {
	nv := s.NumVelocities()
	if len(static) != nv {
		return nil, fmt.Errorf("static stddev length %d, want %d", len(static), nv)
	}
	if len(dynamic) != nv {
		return nil, fmt.Errorf("dynamic stddev length %d, want %d", len(dynamic), nv)
	}
	for i := 0; i < nv; i++ {
		if static[i] < 0 || dynamic[i] < 0 {
			return nil, fmt.Errorf("stddev %d is negative", i)
		}
	}
	return &GaussianNoiser{
		space:   s,
		static:  append([]float64(nil), static...),
		dynamic: append([]float64(nil), dynamic...),
		src:     rand.New(rand.NewSource(seed)),
	}, nil
}

func (g *GaussianNoiser) draw(stddev []float64) []float64 {
	t := make([]float64, len(stddev))
	for i, sd := range stddev {
		if sd == 0 {
			continue
		}
		t[i] = distuv.Normal{Mu: 0, Sigma: sd, Src: g.src}.Rand()
	}
	return t
}

// NoiseTrajectory returns a noised copy of the given state sequence. The
// input is not modified.
func (g *GaussianNoiser) NoiseTrajectory(states [][]float64) ([][]float64, error) {
	offset := g.draw(g.static)
	out := make([][]float64, len(states))
	for i, x := range states {
		t := g.draw(g.dynamic)
		for j := range t {
			t[j] += offset[j]
		}
		y, err := Perturb(g.space, x, t)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}
