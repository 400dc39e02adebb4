package vis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"physid/internal/geometry"
)

func TestFootprintBox(t *testing.T) {
	shapes := []geometry.Shape{geometry.Box{HalfLengths: r3.Vector{X: 1, Y: 0.5, Z: 0.2}}}
	img, err := Footprint(shapes, Options{Size: 64, Supersample: 2})
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	if got := img.Bounds().Dx(); got != 64 {
		t.Fatalf("canvas edge = %d, want 64", got)
	}
	if a := img.NRGBAAt(32, 32).A; a < 200 {
		t.Fatalf("center alpha = %d, want opaque", a)
	}
	// The box is twice as wide as tall, so the horizontal probe stays
	// inside while the vertical probe at the same offset falls outside.
	if a := img.NRGBAAt(16, 32).A; a < 200 {
		t.Fatalf("horizontal probe alpha = %d, want opaque", a)
	}
	if a := img.NRGBAAt(32, 8).A; a > 50 {
		t.Fatalf("vertical probe alpha = %d, want transparent", a)
	}
	if a := img.NRGBAAt(1, 1).A; a != 0 {
		t.Fatalf("corner alpha = %d, want 0", a)
	}
}

func TestFootprintSphere(t *testing.T) {
	shapes := []geometry.Shape{geometry.Sphere{Radius: 1}}
	img, err := Footprint(shapes, Options{Size: 64, Supersample: 2})
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	if a := img.NRGBAAt(32, 32).A; a < 200 {
		t.Fatalf("center alpha = %d, want opaque", a)
	}
	if a := img.NRGBAAt(4, 4).A; a > 50 {
		t.Fatalf("corner alpha = %d, want transparent", a)
	}
	if c := img.NRGBAAt(32, 32); c.R != sphereFill.R || c.G != sphereFill.G || c.B != sphereFill.B {
		t.Fatalf("unexpected fill color: %+v", c)
	}
}

func TestFootprintPolygon(t *testing.T) {
	shapes := []geometry.Shape{geometry.Polygon{Vertices: []r3.Vector{
		{X: 1, Y: 0, Z: 0},
		{X: -1, Y: 1, Z: 0},
		{X: -1, Y: -1, Z: 0},
	}}}
	img, err := Footprint(shapes, Options{Size: 64, Supersample: 2})
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	if a := img.NRGBAAt(32, 32).A; a < 200 {
		t.Fatalf("centroid alpha = %d, want opaque", a)
	}
	if a := img.NRGBAAt(32, 60).A; a > 50 {
		t.Fatalf("outside probe alpha = %d, want transparent", a)
	}
}

func TestFootprintDefaults(t *testing.T) {
	img, err := Footprint([]geometry.Shape{geometry.Sphere{Radius: 0.05}}, Options{})
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	if got := img.Bounds().Dx(); got != 512 {
		t.Fatalf("default canvas edge = %d, want 512", got)
	}
}

func TestFootprintErrors(t *testing.T) {
	if _, err := Footprint(nil, Options{}); err == nil {
		t.Fatal("expected error for empty geometry set")
	}
	if _, err := Footprint([]geometry.Shape{geometry.Box{}}, Options{}); err == nil {
		t.Fatal("expected error for zero planar extent")
	}
	if _, err := Footprint([]geometry.Shape{geometry.Polygon{Vertices: []r3.Vector{{X: 1}}}}, Options{}); err == nil {
		t.Fatal("expected error for degenerate polygon")
	}
}

func TestWriteWebP(t *testing.T) {
	img, err := Footprint([]geometry.Shape{geometry.Box{HalfLengths: r3.Vector{X: 0.0524, Y: 0.0524, Z: 0.0524}}}, Options{Size: 32, Supersample: 2})
	if err != nil {
		t.Fatalf("footprint: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cube.webp")
	if err := WriteWebP(path, img); err != nil {
		t.Fatalf("write webp: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat webp: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("webp file is empty")
	}
}
