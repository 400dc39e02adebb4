package urdf

import (
	"testing"

	"github.com/beevik/etree"
)

func parseRoot(t *testing.T, src string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc.Root()
}

func TestFindOrDefaultSynthesizesInertialSubtree(t *testing.T) {
	link := parseRoot(t, `<link name="body"/>`)
	inertial, synthesized := FindOrDefault(link, KindInertial)
	if !synthesized {
		t.Fatal("empty link reported an existing inertial")
	}

	children := inertial.ChildElements()
	want := []string{"origin", "mass", "inertia"}
	if len(children) != len(want) {
		t.Fatalf("inertial has %d children, want %d", len(children), len(want))
	}
	for i, c := range children {
		if c.Tag != want[i] {
			t.Fatalf("child %d = %q, want %q", i, c.Tag, want[i])
		}
	}
	if got := children[0].SelectAttrValue("xyz", ""); got != "0. 0. 0." {
		t.Fatalf("origin xyz default = %q", got)
	}
	if got := children[0].SelectAttrValue("rpy", ""); got != "0. 0. 0." {
		t.Fatalf("origin rpy default = %q", got)
	}
	if got := children[1].SelectAttrValue("value", ""); got != "0." {
		t.Fatalf("mass value default = %q", got)
	}
	if got := children[2].SelectAttrValue("iyy", ""); got != "0." {
		t.Fatalf("inertia iyy default = %q", got)
	}
}

func TestFindOrDefaultCollisionSubtree(t *testing.T) {
	link := parseRoot(t, `<link name="body"/>`)
	collision, synthesized := FindOrDefault(link, KindCollision)
	if !synthesized {
		t.Fatal("empty link reported an existing collision")
	}
	children := collision.ChildElements()
	want := []string{"geometry", "origin"}
	if len(children) != len(want) {
		t.Fatalf("collision has %d children, want %d", len(children), len(want))
	}
	for i, c := range children {
		if c.Tag != want[i] {
			t.Fatalf("child %d = %q, want %q", i, c.Tag, want[i])
		}
	}
}

func TestFindOrDefaultIdempotent(t *testing.T) {
	link := parseRoot(t, `<link name="body"/>`)
	first, synthesized := FindOrDefault(link, KindInertial)
	if !synthesized {
		t.Fatal("first call found a child on an empty link")
	}
	second, synthesized := FindOrDefault(link, KindInertial)
	if synthesized {
		t.Fatal("second call synthesized a duplicate")
	}
	if first != second {
		t.Fatal("second call returned a different node")
	}
	if n := len(link.SelectElements("inertial")); n != 1 {
		t.Fatalf("link has %d inertial children, want 1", n)
	}
}

func TestFindOrDefaultReturnsExistingUnmodified(t *testing.T) {
	link := parseRoot(t, `<link name="body"><inertial><mass value="3.5"/></inertial></link>`)
	inertial, synthesized := FindOrDefault(link, KindInertial)
	if synthesized {
		t.Fatal("existing child reported as synthesized")
	}
	mass := inertial.SelectElement("mass")
	if mass == nil || mass.SelectAttrValue("value", "") != "3.5" {
		t.Fatal("existing subtree was modified")
	}
	// A found element is returned as-is, even when partial.
	if inertial.SelectElement("origin") != nil {
		t.Fatal("existing inertial gained synthesized children")
	}
}

func TestFindOrDefaultReturnsFirstDuplicate(t *testing.T) {
	link := parseRoot(t, `<link><collision name="a"/><collision name="b"/></link>`)
	collision, synthesized := FindOrDefault(link, KindCollision)
	if synthesized {
		t.Fatal("duplicate children reported as synthesized")
	}
	if got := collision.SelectAttrValue("name", ""); got != "a" {
		t.Fatalf("returned duplicate %q, want first", got)
	}
	if n := len(link.SelectElements("collision")); n != 2 {
		t.Fatalf("duplicates were reconciled: %d collision children", n)
	}
}

func TestDefaultsTable(t *testing.T) {
	if _, ok := Defaults(KindCylinder); !ok {
		t.Fatal("cylinder missing from schema")
	}
	d, ok := Defaults(KindSphere)
	if !ok {
		t.Fatal("sphere missing from schema")
	}
	if len(d.Attrs) != 1 || d.Attrs[0].Name != "radius" || d.Attrs[0].Value != "0." {
		t.Fatalf("sphere defaults = %v", d.Attrs)
	}
	if _, ok := Defaults(ElementKind("visual")); ok {
		t.Fatal("schema claims an entry for visual")
	}
}
