// Package vis renders top-down footprints of geometry sets for quick
// visual sanity checks. Boxes project to rectangles, spheres to circles,
// polygons to filled vertex fans, all about the body origin looking down
// the z axis.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sort"

	"github.com/HugoSmits86/nativewebp"
	"github.com/golang/geo/r3"
	"golang.org/x/image/draw"

	"physid/internal/geometry"
)

type Options struct {
	// Size is the output canvas edge in pixels.
	Size int
	// Supersample renders at Size*Supersample before downscaling.
	Supersample int
	// FillRatio is the fraction of the canvas the footprint spans.
	FillRatio float64
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 512
	}
	if o.Supersample <= 0 {
		o.Supersample = 4
	}
	if o.FillRatio <= 0 || o.FillRatio > 1 {
		o.FillRatio = 0.9
	}
	return o
}

var (
	boxFill     = color.NRGBA{R: 58, G: 119, B: 189, A: 255}
	sphereFill  = color.NRGBA{R: 222, G: 129, B: 49, A: 255}
	polygonFill = color.NRGBA{R: 84, G: 163, B: 90, A: 255}
)

// Footprint renders the geometry set into an NRGBA raster with x right
// and y up. Shapes draw in slice order, later shapes over earlier ones.
func Footprint(shapes []geometry.Shape, opts Options) (*image.NRGBA, error) {
	opts = opts.withDefaults()
	if len(shapes) == 0 {
		return nil, fmt.Errorf("no geometry to render")
	}
	extent, err := footprintExtent(shapes)
	if err != nil {
		return nil, err
	}
	if extent <= 0 {
		return nil, fmt.Errorf("geometry set has no planar extent")
	}

	hi := opts.Size * opts.Supersample
	img := image.NewNRGBA(image.Rect(0, 0, hi, hi))
	scale := float64(hi) * opts.FillRatio / (2 * extent)
	center := float64(hi) / 2

	for _, s := range shapes {
		if err := fillShape(img, s, scale, center); err != nil {
			return nil, err
		}
	}
	if opts.Supersample == 1 {
		return img, nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

// WriteWebP encodes an image to a WebP file.
func WriteWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return f.Sync()
}

func footprintExtent(shapes []geometry.Shape) (float64, error) {
	extent := 0.0
	for _, s := range shapes {
		switch v := s.(type) {
		case geometry.Box:
			extent = math.Max(extent, math.Max(math.Abs(v.HalfLengths.X), math.Abs(v.HalfLengths.Y)))
		case geometry.Sphere:
			extent = math.Max(extent, math.Abs(v.Radius))
		case geometry.Polygon:
			for _, p := range v.Vertices {
				extent = math.Max(extent, math.Max(math.Abs(p.X), math.Abs(p.Y)))
			}
		default:
			return 0, fmt.Errorf("unsupported geometry variant: %s", geometry.Name(s))
		}
	}
	return extent, nil
}

func fillShape(img *image.NRGBA, s geometry.Shape, scale, center float64) error {
	switch v := s.(type) {
	case geometry.Box:
		fillWhere(img, scale, center, boxFill, func(x, y float64) bool {
			return math.Abs(x) <= v.HalfLengths.X && math.Abs(y) <= v.HalfLengths.Y
		})
	case geometry.Sphere:
		r2 := v.Radius * v.Radius
		fillWhere(img, scale, center, sphereFill, func(x, y float64) bool {
			return x*x+y*y <= r2
		})
	case geometry.Polygon:
		hull := orderedProjection(v.Vertices)
		if len(hull) < 3 {
			return fmt.Errorf("polygon footprint needs at least 3 vertices, got %d", len(hull))
		}
		fillWhere(img, scale, center, polygonFill, func(x, y float64) bool {
			return insideConvex(hull, x, y)
		})
	default:
		return fmt.Errorf("unsupported geometry variant: %s", geometry.Name(s))
	}
	return nil
}

// fillWhere paints every pixel whose world coordinates satisfy the
// predicate. Pixel centers map through the canvas scale with y flipped.
func fillWhere(img *image.NRGBA, scale, center float64, fill color.NRGBA, inside func(x, y float64) bool) {
	b := img.Bounds()
	for py := b.Min.Y; py < b.Max.Y; py++ {
		for px := b.Min.X; px < b.Max.X; px++ {
			wx := (float64(px) + 0.5 - center) / scale
			wy := (center - float64(py) - 0.5) / scale
			if !inside(wx, wy) {
				continue
			}
			i := img.PixOffset(px, py)
			img.Pix[i] = fill.R
			img.Pix[i+1] = fill.G
			img.Pix[i+2] = fill.B
			img.Pix[i+3] = fill.A
		}
	}
}

type planarPoint struct {
	x, y float64
}

// orderedProjection projects the vertex cloud onto the viewing plane and
// orders it counterclockwise about its centroid, giving a fan the inside
// test can walk.
func orderedProjection(vertices []r3.Vector) []planarPoint {
	if len(vertices) == 0 {
		return nil
	}
	pts := make([]planarPoint, 0, len(vertices))
	var cx, cy float64
	for _, v := range vertices {
		pts = append(pts, planarPoint{x: v.X, y: v.Y})
		cx += v.X
		cy += v.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))
	sort.Slice(pts, func(i, j int) bool {
		return math.Atan2(pts[i].y-cy, pts[i].x-cx) < math.Atan2(pts[j].y-cy, pts[j].x-cx)
	})
	return pts
}

func insideConvex(hull []planarPoint, x, y float64) bool {
	sign := 0.0
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		cross := (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
		if cross == 0 {
			continue
		}
		if sign == 0 {
			sign = cross
			continue
		}
		if (cross > 0) != (sign > 0) {
			return false
		}
	}
	return true
}
