package urdf

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/golang/geo/r3"

	"physid/internal/geometry"
)

// Representation maps a shape to the document tag and attributes that
// encode it inside a collision geometry element. The match over variants
// is exhaustive; the default arm only fires if the closed set grows
// without this site learning the new case.
func Representation(s geometry.Shape) (ElementKind, []Attr, error) {
	switch v := s.(type) {
	case geometry.Box:
		full := v.HalfLengths.Mul(2)
		return KindBox, []Attr{{attrSize, FormatVector(full)}}, nil
	case geometry.Sphere:
		return KindSphere, []Attr{{attrRadius, FormatFloat(v.Radius)}}, nil
	case geometry.Polygon:
		return "", nil, fmt.Errorf("%w: polygon", ErrUnsupportedOperation)
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, geometry.Name(s))
	}
}

// ParseRepresentation maps a shape element back to the geometry variant it
// encodes. It is the analysis-side inverse of Representation; attributes
// the element omits fall back to the schema defaults.
func ParseRepresentation(el *etree.Element) (geometry.Shape, error) {
	switch ElementKind(el.Tag) {
	case KindBox:
		full, err := ParseVector(el.SelectAttrValue(attrSize, zeroVector))
		if err != nil {
			return nil, fmt.Errorf("box size: %w", err)
		}
		return geometry.Box{HalfLengths: full.Mul(0.5)}, nil
	case KindSphere:
		radius, err := ParseFloat(el.SelectAttrValue(attrRadius, zeroScalar))
		if err != nil {
			return nil, fmt.Errorf("sphere radius: %w", err)
		}
		return geometry.Sphere{Radius: radius}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, el.Tag)
	}
}

// FormatFloat renders a float in its default decimal string form: the
// shortest representation that parses back exactly, with integral values
// keeping a trailing ".0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(v, 0) && !math.IsNaN(v) {
		s += ".0"
	}
	return s
}

// FormatVector renders a vector as space-joined scalars in x, y, z order.
func FormatVector(v r3.Vector) string {
	return FormatFloat(v.X) + " " + FormatFloat(v.Y) + " " + FormatFloat(v.Z)
}

// ParseFloat parses a scalar attribute value.
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse scalar attribute %q: %w", s, err)
	}
	return v, nil
}

// ParseVector parses a space-separated three-scalar attribute value.
func ParseVector(s string) (r3.Vector, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return r3.Vector{}, fmt.Errorf("vector attribute %q has %d fields, want 3", s, len(fields))
	}
	var out [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vector{}, fmt.Errorf("vector attribute %q: %w", s, err)
		}
		out[i] = v
	}
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}
