package urdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"physid/internal/geometry"
	"physid/internal/inertia"
)

type fakeTopology map[string][]string

func (f fakeTopology) HasInstance(name string) bool {
	_, ok := f[name]
	return ok
}

func (f fakeTopology) InstanceBodies(name string) []string {
	return f[name]
}

const cubeTemplate = `<?xml version="1.0"?>
<robot name="cube">
  <link name="world"/>
  <link name="body">
    <inertial>
      <mass value="1."/>
    </inertial>
  </link>
</robot>
`

func cubeRequest() ExportRequest {
	return ExportRequest{
		Templates:   map[string]string{"cube": cubeTemplate},
		InertialIDs: []string{"cube_body"},
		Rows:        []inertia.Row{{2, 0, 0, 0, 0.5, 0.5, 0.5, 0, 0, 0}},
		Shapes: []geometry.Shape{
			geometry.Box{HalfLengths: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}},
		},
		ShapesByBody: map[string][]int{"cube_body": {0}},
		Topology:     fakeTopology{"cube": {"world", "body"}},
	}
}

func TestExportFillsInertialLinks(t *testing.T) {
	docs, err := Export(cubeRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	doc, ok := docs["cube"]
	if !ok {
		t.Fatalf("no document for cube, got %d documents", len(docs))
	}
	if !strings.HasPrefix(doc, `<?xml version="1.0"?>`+"\n") {
		t.Fatalf("missing declaration prefix: %q", doc[:40])
	}
	if strings.Count(doc, "<?xml") != 1 {
		t.Fatal("document carries more than one declaration")
	}
	if !strings.Contains(doc, `value="2.0"`) {
		t.Fatal("mass not written")
	}
	if !strings.Contains(doc, `size="0.2 0.2 0.2"`) {
		t.Fatal("box size not written")
	}
}

func TestExportLeavesNonInertialLinksUntouched(t *testing.T) {
	docs, err := Export(cubeRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(docs["cube"], `<link name="world"/>`) {
		t.Fatal("world link was modified")
	}
}

func TestExportWithoutMatchesPreservesTemplate(t *testing.T) {
	req := cubeRequest()
	req.InertialIDs = nil
	req.Rows = nil

	docs, err := Export(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	body := strings.TrimPrefix(cubeTemplate, `<?xml version="1.0"?>`+"\n")
	want := declaration + strings.TrimSuffix(body, "\n")
	if docs["cube"] != want {
		t.Fatalf("untouched template changed:\n got %q\nwant %q", docs["cube"], want)
	}
}

func TestExportDeterministic(t *testing.T) {
	first, err := Export(cubeRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	second, err := Export(cubeRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if first["cube"] != second["cube"] {
		t.Fatal("repeated exports disagree")
	}
}

func TestExportUnknownModel(t *testing.T) {
	req := cubeRequest()
	req.Templates = map[string]string{"mug": cubeTemplate}
	_, err := Export(req)
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
	if !strings.Contains(err.Error(), `"mug"`) {
		t.Fatalf("error does not name the model: %v", err)
	}
}

func TestExportRowMisalignment(t *testing.T) {
	req := cubeRequest()
	req.Rows = nil
	if _, err := Export(req); err == nil {
		t.Fatal("misaligned rows accepted")
	}
}

func TestExportTwoGeometriesAborts(t *testing.T) {
	req := cubeRequest()
	req.Shapes = append(req.Shapes, geometry.Sphere{Radius: 1})
	req.ShapesByBody["cube_body"] = []int{0, 1}
	_, err := Export(req)
	if !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Fatalf("err = %v, want ErrUnsupportedConfiguration", err)
	}
}

func TestExportGeometryIndexOutOfRange(t *testing.T) {
	req := cubeRequest()
	req.ShapesByBody["cube_body"] = []int{5}
	if _, err := Export(req); err == nil {
		t.Fatal("out-of-range geometry index accepted")
	}
}

func TestExportVerifyCoverage(t *testing.T) {
	// A body with no matching link passes silently by default and fails
	// loudly under verification.
	req := cubeRequest()
	req.InertialIDs = []string{"cube_body", "cube_lid"}
	req.Rows = append(req.Rows, inertia.Row{1, 0, 0, 0, 0.1, 0.1, 0.1, 0, 0, 0})
	req.Topology = fakeTopology{"cube": {"world", "body", "lid"}}

	if _, err := Export(req); err != nil {
		t.Fatalf("permissive export: %v", err)
	}

	req.VerifyCoverage = true
	_, err := Export(req)
	if !errors.Is(err, ErrLinkMismatch) {
		t.Fatalf("err = %v, want ErrLinkMismatch", err)
	}
	if !strings.Contains(err.Error(), "cube_lid") {
		t.Fatalf("error does not name the unmatched body: %v", err)
	}
}

func TestExportVerifyCoverageDuplicateLinks(t *testing.T) {
	template := `<robot name="cube"><link name="body"/><link name="body"/></robot>`
	req := cubeRequest()
	req.Templates = map[string]string{"cube": template}
	req.VerifyCoverage = true
	_, err := Export(req)
	if !errors.Is(err, ErrLinkMismatch) {
		t.Fatalf("err = %v, want ErrLinkMismatch", err)
	}
}
