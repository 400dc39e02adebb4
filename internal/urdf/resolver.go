package urdf

import "github.com/beevik/etree"

// FindOrDefault returns parent's first child element of the given kind.
// When no such child exists it synthesizes one from the default schema,
// recursively appending the kind's required children depth first, attaches
// the new subtree to parent, and returns its root. The second return
// reports whether synthesis happened; duplicate children are never
// reconciled here, so callers own any duplicate-handling policy.
//
// A found child is returned unmodified, which makes consecutive calls for
// the same (parent, kind) pair idempotent. After a call the returned node
// is always a valid destination for targeted attribute writes.
func FindOrDefault(parent *etree.Element, kind ElementKind) (*etree.Element, bool) {
	if child := parent.SelectElement(string(kind)); child != nil {
		return child, false
	}
	return synthesize(parent, kind), true
}

func synthesize(parent *etree.Element, kind ElementKind) *etree.Element {
	el := parent.CreateElement(string(kind))
	d := defaults[kind]
	for _, a := range d.Attrs {
		el.CreateAttr(a.Name, a.Value)
	}
	for _, child := range d.Children {
		synthesize(el, child)
	}
	return el
}

// overwriteAttrs replaces an element's attribute set wholesale, discarding
// anything already present.
func overwriteAttrs(el *etree.Element, attrs []Attr) {
	for _, a := range append([]etree.Attr(nil), el.Attr...) {
		el.RemoveAttr(a.Key)
	}
	for _, a := range attrs {
		el.CreateAttr(a.Name, a.Value)
	}
}
