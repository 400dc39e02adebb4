package urdf

import (
	"fmt"
	"sort"

	"github.com/beevik/etree"

	"physid/internal/geometry"
	"physid/internal/inertia"
)

// declaration is prefixed to every exported document.
const declaration = `<?xml version="1.0"?>` + "\n"

// TopologyLookup is the slice of the live topology the exporter consumes:
// exact-name model resolution and each model's body names in intrinsic
// order.
type TopologyLookup interface {
	HasInstance(name string) bool
	InstanceBodies(name string) []string
}

// ExportRequest carries one export pass over a set of model templates.
//
// Rows are positionally aligned to InertialIDs; that ordering is an
// explicit contract with the topology, never inferred. ShapesByBody holds
// indices into the global Shapes table keyed by body identifier. The
// request is treated as read-only for the duration of the call, so
// independent exports may run concurrently over the same tables.
type ExportRequest struct {
	// Templates maps model names to document source. Every call reparses
	// the source fresh; no tree state survives between calls.
	Templates map[string]string

	InertialIDs  []string
	Rows         []inertia.Row
	Shapes       []geometry.Shape
	ShapesByBody map[string][]int
	Topology     TopologyLookup

	// VerifyCoverage additionally requires every inertial body of each
	// exported model to match exactly one template link, instead of
	// silently skipping mismatched names.
	VerifyCoverage bool
}

// Export runs the serializer over every (model, template) pair and returns
// the finished documents keyed by model name. Models are processed
// independently with no shared mutable state; the first failure aborts the
// call and no partial result is returned.
func Export(req ExportRequest) (map[string]string, error) {
	if len(req.Rows) != len(req.InertialIDs) {
		return nil, fmt.Errorf("parameter rows (%d) misaligned with inertial identifiers (%d)",
			len(req.Rows), len(req.InertialIDs))
	}
	if req.Topology == nil {
		return nil, fmt.Errorf("no topology supplied")
	}

	rowIndex := make(map[string]int, len(req.InertialIDs))
	for i, id := range req.InertialIDs {
		rowIndex[id] = i
	}

	names := make([]string, 0, len(req.Templates))
	for name := range req.Templates {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		doc, err := exportModel(name, req.Templates[name], rowIndex, req)
		if err != nil {
			return nil, err
		}
		out[name] = doc
	}
	return out, nil
}

func exportModel(name, src string, rowIndex map[string]int, req ExportRequest) (string, error) {
	if !req.Topology.HasInstance(name) {
		return "", fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		return "", fmt.Errorf("parse template %q: %w", name, err)
	}
	if doc.Root() == nil {
		return "", fmt.Errorf("template %q has no root element", name)
	}

	matched := make(map[string]int)
	for _, link := range doc.FindElements("//" + string(KindLink)) {
		id := name + "_" + link.SelectAttrValue(attrName, "")
		i, ok := rowIndex[id]
		if !ok {
			// Non-inertial link, for instance the world body.
			continue
		}
		shapes, err := bodyShapes(req, id)
		if err != nil {
			return "", fmt.Errorf("model %q: %w", name, err)
		}
		if err := FillLink(link, req.Rows[i], shapes); err != nil {
			return "", fmt.Errorf("model %q: %w", name, err)
		}
		matched[id]++
	}

	if req.VerifyCoverage {
		if err := verifyCoverage(name, req, rowIndex, matched); err != nil {
			return "", err
		}
	}
	return serializeDocument(doc)
}

func bodyShapes(req ExportRequest, id string) ([]geometry.Shape, error) {
	indices := req.ShapesByBody[id]
	shapes := make([]geometry.Shape, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(req.Shapes) {
			return nil, fmt.Errorf("body %q: geometry index %d out of range (%d variants)",
				id, idx, len(req.Shapes))
		}
		shapes = append(shapes, req.Shapes[idx])
	}
	return shapes, nil
}

// verifyCoverage fails when the name-matching assumption between template
// links and topology bodies does not hold for one model.
func verifyCoverage(name string, req ExportRequest, rowIndex map[string]int, matched map[string]int) error {
	for _, body := range req.Topology.InstanceBodies(name) {
		id := name + "_" + body
		if _, inertial := rowIndex[id]; !inertial {
			continue
		}
		switch n := matched[id]; {
		case n == 0:
			return fmt.Errorf("%w: body %q has no link in template %q", ErrLinkMismatch, id, name)
		case n > 1:
			return fmt.Errorf("%w: body %q matches %d links in template %q", ErrLinkMismatch, id, n, name)
		}
	}
	return nil
}

// serializeDocument renders the root element and prefixes the fixed
// declaration. Document-level tokens from the parsed source are dropped so
// every export carries exactly one declaration.
func serializeDocument(doc *etree.Document) (string, error) {
	out := etree.NewDocument()
	out.AddChild(doc.Root().Copy())
	body, err := out.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return declaration + body, nil
}
