package urdf

import (
	"fmt"

	"github.com/beevik/etree"

	"physid/internal/geometry"
	"physid/internal/inertia"
)

// FillLink writes one body's parameter row and collision geometry into its
// link element, synthesizing missing structural slots from the default
// schema. Mass and center of mass are targeted writes; the inertia element
// and the shape element have their attributes overwritten wholesale, so
// unrelated attributes already present there are discarded.
//
// A body with no geometry gets its inertial subtree written and nothing
// else. More than one geometry per body is not supported.
func FillLink(link *etree.Element, row inertia.Row, shapes []geometry.Shape) error {
	name := link.SelectAttrValue(attrName, "")
	if len(shapes) > 1 {
		return fmt.Errorf("%w: link %q carries %d geometries, want at most 1",
			ErrUnsupportedConfiguration, name, len(shapes))
	}

	mass, com, moments, err := inertia.ToURDF(row)
	if err != nil {
		return fmt.Errorf("link %q: %w", name, err)
	}

	inertial, _ := FindOrDefault(link, KindInertial)
	massEl, _ := FindOrDefault(inertial, KindMass)
	massEl.CreateAttr(attrValue, FormatFloat(mass))
	originEl, _ := FindOrDefault(inertial, KindOrigin)
	originEl.CreateAttr(attrXYZ, FormatVector(com))

	inertiaEl, _ := FindOrDefault(inertial, KindInertia)
	momentAttrs := make([]Attr, len(inertiaAttrs))
	for i, a := range inertiaAttrs {
		momentAttrs[i] = Attr{Name: a, Value: FormatFloat(moments[i])}
	}
	overwriteAttrs(inertiaEl, momentAttrs)

	for _, shape := range shapes {
		collision, _ := FindOrDefault(link, KindCollision)
		geom, _ := FindOrDefault(collision, KindGeometry)
		kind, attrs, err := Representation(shape)
		if err != nil {
			return fmt.Errorf("link %q: %w", name, err)
		}
		shapeEl, _ := FindOrDefault(geom, kind)
		overwriteAttrs(shapeEl, attrs)
	}
	return nil
}

// ExtractLink reads a link's inertial subtree back into a parameter row.
// It is the analysis-side inverse of FillLink and never mutates the tree.
// Attributes a template omits fall back to the schema defaults; a link
// with no inertial element at all is an error.
func ExtractLink(link *etree.Element) (inertia.Row, error) {
	name := link.SelectAttrValue(attrName, "")
	inertial := link.SelectElement(string(KindInertial))
	if inertial == nil {
		return inertia.Row{}, fmt.Errorf("link %q has no inertial element", name)
	}

	mass := zeroScalar
	if el := inertial.SelectElement(string(KindMass)); el != nil {
		mass = el.SelectAttrValue(attrValue, zeroScalar)
	}
	m, err := ParseFloat(mass)
	if err != nil {
		return inertia.Row{}, fmt.Errorf("link %q mass: %w", name, err)
	}

	xyz := zeroVector
	if el := inertial.SelectElement(string(KindOrigin)); el != nil {
		xyz = el.SelectAttrValue(attrXYZ, zeroVector)
	}
	com, err := ParseVector(xyz)
	if err != nil {
		return inertia.Row{}, fmt.Errorf("link %q origin: %w", name, err)
	}

	var moments [inertia.NumMoments]float64
	if el := inertial.SelectElement(string(KindInertia)); el != nil {
		for i, a := range inertiaAttrs {
			v, err := ParseFloat(el.SelectAttrValue(a, zeroScalar))
			if err != nil {
				return inertia.Row{}, fmt.Errorf("link %q inertia %s: %w", name, a, err)
			}
			moments[i] = v
		}
	}
	return inertia.FromURDF(m, com, moments), nil
}
