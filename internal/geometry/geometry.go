// Package geometry defines the closed set of collision shapes a rigid body
// may carry.
package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Shape is the closed union of supported collision geometries. Consumers
// dispatch with an exhaustive type switch; adding a variant here breaks
// every consumer until its switch learns the new case.
type Shape interface {
	shape()
}

// Box is a rectangular prism described by its half edge lengths along the
// body axes.
type Box struct {
	HalfLengths r3.Vector
}

// Sphere is a ball of the given radius centered on the body origin.
type Sphere struct {
	Radius float64
}

// Polygon is a convex vertex cloud. It participates in contact bookkeeping
// but has no document encoding.
type Polygon struct {
	Vertices []r3.Vector
}

func (Box) shape()     {}
func (Sphere) shape()  {}
func (Polygon) shape() {}

// Name returns the lower-case variant name used in diagnostics.
func Name(s Shape) string {
	switch s.(type) {
	case Box:
		return "box"
	case Sphere:
		return "sphere"
	case Polygon:
		return "polygon"
	default:
		return fmt.Sprintf("%T", s)
	}
}
