// Package space describes the configuration and velocity coordinates of a
// multibody system as an ordered product of per-instance factors.
package space

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
)

// A Space reports the dimensions of one block of a system state vector.
// The concrete variants form a closed set.
type Space interface {
	NumPositions() int
	NumVelocities() int
	space()
}

// FloatingBase is the state block of a model instance whose base body
// translates and rotates freely. Positions hold a unit quaternion, a world
// translation, and one coordinate per joint; velocities hold the six
// spatial base rates plus one rate per joint.
type FloatingBase struct {
	NumJoints int
}

func (s FloatingBase) NumPositions() int  { return s.NumJoints + 7 }
func (s FloatingBase) NumVelocities() int { return s.NumJoints + 6 }
func (FloatingBase) space()               {}

// FixedBase is the state block of a model instance anchored to the world.
// Positions and velocities both hold one coordinate per joint.
type FixedBase struct {
	NumJoints int
}

func (s FixedBase) NumPositions() int  { return s.NumJoints }
func (s FixedBase) NumVelocities() int { return s.NumJoints }
func (FixedBase) space()               {}

// Product concatenates per-instance factors in state-vector order. The
// factor order is load-bearing: all block offsets are positional.
type Product struct {
	factors []Space
}

func NewProduct(factors ...Space) Product {
	return Product{factors: append([]Space(nil), factors...)}
}

func (p Product) Factors() []Space {
	return append([]Space(nil), p.factors...)
}

func (p Product) NumPositions() int {
	n := 0
	for _, f := range p.factors {
		n += f.NumPositions()
	}
	return n
}

func (p Product) NumVelocities() int {
	n := 0
	for _, f := range p.factors {
		n += f.NumVelocities()
	}
	return n
}

func (Product) space() {}

// Default returns the identity state: unit quaternion on every floating
// factor, zero everywhere else.
func Default(s Space) []float64 {
	x := make([]float64, s.NumPositions())
	fillDefault(s, x)
	return x
}

func fillDefault(s Space, x []float64) {
	switch v := s.(type) {
	case FloatingBase:
		x[0] = 1
	case FixedBase:
	case Product:
		off := 0
		for _, f := range v.factors {
			fillDefault(f, x[off:off+f.NumPositions()])
			off += f.NumPositions()
		}
	}
}

// Perturb applies a tangent displacement to a state and returns the result
// as a fresh slice. The first three tangent coordinates of a floating
// factor turn the base through the quaternion exponential map; every other
// coordinate adds linearly.
func Perturb(s Space, x, tangent []float64) ([]float64, error) {
	if len(x) != s.NumPositions() {
		return nil, fmt.Errorf("state length %d, want %d", len(x), s.NumPositions())
	}
	if len(tangent) != s.NumVelocities() {
		return nil, fmt.Errorf("tangent length %d, want %d", len(tangent), s.NumVelocities())
	}
	out := make([]float64, len(x))
	copy(out, x)
	perturbInto(s, out, tangent)
	return out, nil
}

func perturbInto(s Space, x, t []float64) {
	switch v := s.(type) {
	case FloatingBase:
		q := quat.Number{Real: x[0], Imag: x[1], Jmag: x[2], Kmag: x[3]}
		w := quat.Number{Imag: t[0] / 2, Jmag: t[1] / 2, Kmag: t[2] / 2}
		q = quat.Mul(q, quat.Exp(w))
		x[0], x[1], x[2], x[3] = q.Real, q.Imag, q.Jmag, q.Kmag
		for i := 0; i < 3; i++ {
			x[4+i] += t[3+i]
		}
		for i := 0; i < v.NumJoints; i++ {
			x[7+i] += t[6+i]
		}
	case FixedBase:
		for i := range t {
			x[i] += t[i]
		}
	case Product:
		xo, to := 0, 0
		for _, f := range v.factors {
			perturbInto(f, x[xo:xo+f.NumPositions()], t[to:to+f.NumVelocities()])
			xo += f.NumPositions()
			to += f.NumVelocities()
		}
	}
}
