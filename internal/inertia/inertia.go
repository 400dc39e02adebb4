// Package inertia converts between the 10-entry pi parameterization of a
// rigid body and the mass, center of mass, and inertia moments a robot
// description document stores.
package inertia

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Row is one body's pi parameterization: mass, first mass moment (mass
// times center of mass), and the six independent inertia entries about the
// center of mass in the order Ixx, Iyy, Izz, Ixy, Ixz, Iyz.
type Row [10]float64

// NumMoments is the count of independent inertia entries in a Row.
const NumMoments = 6

var (
	ErrMassNotPositive = errors.New("mass must be positive")
	ErrNotPhysical     = errors.New("inertia moments are not physical")
)

// Mass returns the body mass.
func (r Row) Mass() float64 { return r[0] }

// FirstMoment returns mass times the center of mass.
func (r Row) FirstMoment() r3.Vector {
	return r3.Vector{X: r[1], Y: r[2], Z: r[3]}
}

// Moments returns the six inertia entries about the center of mass.
func (r Row) Moments() [NumMoments]float64 {
	return [NumMoments]float64{r[4], r[5], r[6], r[7], r[8], r[9]}
}

// ToURDF maps a row to the values a link's inertial subtree stores: the
// mass, the center of mass (the first moment with the mass divided out),
// and the six inertia entries about the center of mass.
func ToURDF(r Row) (mass float64, com r3.Vector, moments [NumMoments]float64, err error) {
	mass = r.Mass()
	if mass <= 0 {
		return 0, r3.Vector{}, moments, fmt.Errorf("%w: got %v", ErrMassNotPositive, mass)
	}
	com = r.FirstMoment().Mul(1 / mass)
	moments = r.Moments()
	return mass, com, moments, nil
}

// FromURDF is the exact inverse of ToURDF.
func FromURDF(mass float64, com r3.Vector, moments [NumMoments]float64) Row {
	p := com.Mul(mass)
	return Row{
		mass, p.X, p.Y, p.Z,
		moments[0], moments[1], moments[2],
		moments[3], moments[4], moments[5],
	}
}

// Matrix assembles the symmetric inertia tensor from the six entries.
func Matrix(moments [NumMoments]float64) *mat.SymDense {
	ixx, iyy, izz := moments[0], moments[1], moments[2]
	ixy, ixz, iyz := moments[3], moments[4], moments[5]
	return mat.NewSymDense(3, []float64{
		ixx, ixy, ixz,
		ixy, iyy, iyz,
		ixz, iyz, izz,
	})
}

// Validate reports whether a row describes a physically realizable body:
// positive mass, a positive definite inertia tensor, and principal moments
// satisfying the triangle inequalities.
func Validate(r Row) error {
	if r.Mass() <= 0 {
		return fmt.Errorf("%w: got %v", ErrMassNotPositive, r.Mass())
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(Matrix(r.Moments()), false); !ok {
		return fmt.Errorf("%w: eigendecomposition failed", ErrNotPhysical)
	}
	ev := eig.Values(nil)
	for _, v := range ev {
		if v <= 0 {
			return fmt.Errorf("%w: principal moment %v is not positive", ErrNotPhysical, v)
		}
	}
	// Values come back in ascending order, so one inequality suffices.
	if ev[0]+ev[1] < ev[2] {
		return fmt.Errorf("%w: principal moments %v violate the triangle inequality", ErrNotPhysical, ev)
	}
	return nil
}
