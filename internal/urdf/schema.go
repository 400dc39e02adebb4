// Package urdf writes per-body physical parameters into robot description
// documents, synthesizing any structural elements a template omits from a
// static default schema.
package urdf

// ElementKind names a document element type known to the default schema.
// Schema lookups are keyed by this type rather than by raw tag strings.
type ElementKind string

const (
	KindLink      ElementKind = "link"
	KindInertial  ElementKind = "inertial"
	KindOrigin    ElementKind = "origin"
	KindMass      ElementKind = "mass"
	KindInertia   ElementKind = "inertia"
	KindCollision ElementKind = "collision"
	KindGeometry  ElementKind = "geometry"
	KindBox       ElementKind = "box"
	KindSphere    ElementKind = "sphere"
	KindCylinder  ElementKind = "cylinder"
)

const (
	attrName   = "name"
	attrValue  = "value"
	attrXYZ    = "xyz"
	attrRPY    = "rpy"
	attrSize   = "size"
	attrRadius = "radius"
	attrLength = "length"

	zeroScalar = "0."
	zeroVector = "0. 0. 0."
)

// inertiaAttrs is the fixed attribute write order for inertia entries.
var inertiaAttrs = [6]string{"ixx", "iyy", "izz", "ixy", "ixz", "iyz"}

// Attr is one attribute in write order. Synthesis and overwrites keep
// attribute order deterministic so repeated exports agree byte for byte.
type Attr struct {
	Name  string
	Value string
}

// Default describes how to synthesize one element kind: the attributes a
// fresh element carries and the child kinds it must own, in document order.
type Default struct {
	Attrs    []Attr
	Children []ElementKind
}

// defaults is the static schema. Kinds absent from the table synthesize as
// bare elements with no attributes and no required children.
var defaults = map[ElementKind]Default{
	KindInertial:  {Children: []ElementKind{KindOrigin, KindMass, KindInertia}},
	KindCollision: {Children: []ElementKind{KindGeometry, KindOrigin}},
	KindOrigin:    {Attrs: []Attr{{attrXYZ, zeroVector}, {attrRPY, zeroVector}}},
	KindMass:      {Attrs: []Attr{{attrValue, zeroScalar}}},
	KindInertia: {Attrs: []Attr{
		{inertiaAttrs[0], zeroScalar}, {inertiaAttrs[1], zeroScalar},
		{inertiaAttrs[2], zeroScalar}, {inertiaAttrs[3], zeroScalar},
		{inertiaAttrs[4], zeroScalar}, {inertiaAttrs[5], zeroScalar},
	}},
	KindBox:      {Attrs: []Attr{{attrSize, zeroVector}}},
	KindSphere:   {Attrs: []Attr{{attrRadius, zeroScalar}}},
	KindCylinder: {Attrs: []Attr{{attrRadius, zeroScalar}, {attrLength, zeroScalar}}},
	KindGeometry: {},
	KindLink:     {},
}

// Defaults returns the schema entry for a kind. The second return reports
// whether the kind has an explicit entry.
func Defaults(kind ElementKind) (Default, bool) {
	d, ok := defaults[kind]
	return d, ok
}
