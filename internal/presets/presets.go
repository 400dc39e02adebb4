// Package presets embeds the reference multibody description sets the rest
// of the module is exercised against. Every system ships a true template
// and a deliberately poor bad_init template for learning starts.
package presets

import (
	"embed"
	"fmt"
	"math"
	"sort"

	"physid/internal/systemid"
)

//go:embed templates/*.urdf
var templateFS embed.FS

// Variant names every preset system ships.
const (
	VariantTrue    = "true"
	VariantBadInit = "bad_init"
)

const defaultTimestep = 0.0068

// Defaults are the per-system reference values sweeps start from: the
// nominal initial state, the tangent ranges initial conditions are drawn
// from around it, and the shape of the recorded trajectories.
type Defaults struct {
	NominalState     []float64
	SamplerRanges    []float64
	TrajectoryLength int
	Timestep         float64
}

type system struct {
	description string
	templates   map[string]map[string]string
	defaults    Defaults
}

var systems = map[string]system{
	"cube": {
		description: "single free rigid box",
		templates: map[string]map[string]string{
			VariantTrue:    {"cube": "templates/cube.urdf"},
			VariantBadInit: {"cube": "templates/cube_bad_init.urdf"},
		},
		defaults: Defaults{
			NominalState:     []float64{1, 0, 0, 0, 0, 0, 0.225},
			SamplerRanges:    []float64{2 * math.Pi, 2 * math.Pi, 2 * math.Pi, 0.03, 0.03, 0.015},
			TrajectoryLength: 80,
			Timestep:         defaultTimestep,
		},
	},
	"elbow": {
		description: "free two-link chain with a revolute hinge",
		templates: map[string]map[string]string{
			VariantTrue:    {"elbow": "templates/elbow.urdf"},
			VariantBadInit: {"elbow": "templates/elbow_bad_init.urdf"},
		},
		defaults: Defaults{
			NominalState:     []float64{1, 0, 0, 0, 0, 0, 0.225, math.Pi},
			SamplerRanges:    []float64{2 * math.Pi, 2 * math.Pi, 2 * math.Pi, 0.03, 0.03, 0.015, math.Pi},
			TrajectoryLength: 120,
			Timestep:         defaultTimestep,
		},
	},
	"asymmetric": {
		description: "free box with offset center of mass",
		templates: map[string]map[string]string{
			VariantTrue:    {"asymmetric": "templates/asymmetric.urdf"},
			VariantBadInit: {"asymmetric": "templates/asymmetric_bad_init.urdf"},
		},
		defaults: Defaults{
			NominalState:     []float64{1, 0, 0, 0, 0, 0, 0.1},
			SamplerRanges:    []float64{2 * math.Pi, 2 * math.Pi, 2 * math.Pi, 0.03, 0.03, 0.015},
			TrajectoryLength: 80,
			Timestep:         defaultTimestep,
		},
	},
}

// Systems lists the preset system names in sorted order.
func Systems() []string {
	names := make([]string, 0, len(systems))
	for name := range systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variants lists the template variants of a system in sorted order.
func Variants(name string) ([]string, error) {
	s, _, err := lookup(name)
	if err != nil {
		return nil, err
	}
	variants := make([]string, 0, len(s.templates))
	for variant := range s.templates {
		variants = append(variants, variant)
	}
	sort.Strings(variants)
	return variants, nil
}

// Description returns the one-line summary of a system.
func Description(name string) (string, error) {
	s, _, err := lookup(name)
	if err != nil {
		return "", err
	}
	return s.description, nil
}

// URDFs returns the model templates of one system variant keyed by model
// name, read fresh from the embedded set on every call. An empty variant
// selects the true templates.
func URDFs(name, variant string) (map[string]string, error) {
	s, canonical, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if variant == "" {
		variant = VariantTrue
	}
	paths, ok := s.templates[variant]
	if !ok {
		return nil, fmt.Errorf("unsupported %s variant: %s", canonical, variant)
	}
	out := make(map[string]string, len(paths))
	for model, path := range paths {
		src, err := templateFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
		out[model] = string(src)
	}
	return out, nil
}

// SystemDefaults returns the reference values of a system. The slices are
// copies the caller owns.
func SystemDefaults(name string) (Defaults, error) {
	s, _, err := lookup(name)
	if err != nil {
		return Defaults{}, err
	}
	d := s.defaults
	d.NominalState = append([]float64(nil), d.NominalState...)
	d.SamplerRanges = append([]float64(nil), d.SamplerRanges...)
	return d, nil
}

func lookup(name string) (system, string, error) {
	canonical := systemid.Normalize(name)
	s, ok := systems[canonical]
	if !ok {
		return system{}, "", fmt.Errorf("unsupported system: %s", name)
	}
	return s, canonical, nil
}
