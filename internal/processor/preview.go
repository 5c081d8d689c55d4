package processor

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/woozymasta/shp2geojson/internal/geo"

	"github.com/chai2010/webp"
	"github.com/paulmach/orb"
	"go.uber.org/multierr"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// PreviewOptions controls the quick-look raster.
type PreviewOptions struct {
	// Size is the length of the longer image side in pixels.
	Size    int
	Quality float32
}

var (
	previewBackground = color.RGBA{0xf4, 0xf1, 0xea, 0xff}
	previewFill       = image.NewUniform(color.RGBA{0x4a, 0x7f, 0xb5, 0xa0})
	previewStroke     = image.NewUniform(color.RGBA{0x1f, 0x3b, 0x5c, 0xff})
	previewDot        = image.NewUniform(color.RGBA{0xc0, 0x39, 0x2b, 0xff})
)

// ErrNothingToRender is returned when no feature carries coordinates.
var ErrNothingToRender = errors.New("no geometry to render")

const (
	previewSupersample = 2
	minPreviewSide     = 16
)

// RenderPreview draws the features into an image with the longer side of
// opts.Size pixels. Polygons are filled, lines stroked, points dotted.
func RenderPreview(features []*geo.Feature, opts PreviewOptions) (image.Image, error) {
	size := opts.Size
	if size <= 0 {
		size = 512
	}

	bound, ok := geo.Bound(features)
	if !ok {
		return nil, ErrNothingToRender
	}

	w, h := canvasSize(bound, size)
	scale := float64(previewSupersample)
	pr := newProjector(bound, float64(w)*scale, float64(h)*scale, 4*scale)

	big := image.NewRGBA(image.Rect(0, 0, int(pr.w), int(pr.h)))
	draw.Draw(big, big.Bounds(), image.NewUniform(previewBackground), image.Point{}, draw.Src)

	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		pr.add(f.Geometry.Coordinates, scale)
	}
	pr.flush(big)

	// downsample the supersampled canvas
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), big, big.Bounds(), draw.Over, nil)

	return out, nil
}

// WritePreview renders the features and writes them as WebP to path.
func WritePreview(path string, features []*geo.Feature, opts PreviewOptions) (err error) {
	img, err := RenderPreview(features, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &OutputWriteError{Path: path, Err: err}
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	return EncodePreview(f, img, opts)
}

// EncodePreview encodes img as lossy WebP.
func EncodePreview(w io.Writer, img image.Image, opts PreviewOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = 80
	}
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: quality})
}

func canvasSize(b orb.Bound, size int) (int, int) {
	dx, dy := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	switch {
	case dx <= 0 && dy <= 0:
		return size, size
	case dx >= dy:
		return size, max(minPreviewSide, int(math.Round(float64(size)*dy/dx)))
	default:
		return max(minPreviewSide, int(math.Round(float64(size)*dx/dy))), size
	}
}

type projector struct {
	bound orb.Bound
	w, h  float64
	pad   float64

	fills, strokes, dots *vector.Rasterizer
}

func newProjector(bound orb.Bound, w, h, pad float64) *projector {
	return &projector{
		bound:   bound,
		w:       w,
		h:       h,
		pad:     pad,
		fills:   vector.NewRasterizer(int(w), int(h)),
		strokes: vector.NewRasterizer(int(w), int(h)),
		dots:    vector.NewRasterizer(int(w), int(h)),
	}
}

// project maps a coordinate to pixel space with y pointing down.
func (p *projector) project(pt orb.Point) (float32, float32) {
	dx, dy := p.bound.Max[0]-p.bound.Min[0], p.bound.Max[1]-p.bound.Min[1]
	span := math.Max(dx, dy)
	if span <= 0 {
		return float32(p.w / 2), float32(p.h / 2)
	}
	k := math.Min((p.w-2*p.pad)/math.Max(dx, span*1e-9), (p.h-2*p.pad)/math.Max(dy, span*1e-9))
	x := p.pad + (pt[0]-p.bound.Min[0])*k
	y := p.h - p.pad - (pt[1]-p.bound.Min[1])*k
	return float32(x), float32(y)
}

// add queues the paths of g on the layer matching its type.
func (p *projector) add(g orb.Geometry, scale float64) {
	switch v := g.(type) {
	case orb.Point:
		p.dot(v, float32(2*scale))
	case orb.MultiPoint:
		for _, pt := range v {
			p.dot(pt, float32(2*scale))
		}
	case orb.LineString:
		p.stroke(v, float32(scale))
	case orb.MultiLineString:
		for _, ls := range v {
			p.stroke(ls, float32(scale))
		}
	case orb.Polygon:
		p.fill(v)
		for _, r := range v {
			p.stroke(orb.LineString(r), float32(scale))
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			p.add(poly, scale)
		}
	}
}

// flush paints fills, then strokes, then dots.
func (p *projector) flush(dst *image.RGBA) {
	p.fills.Draw(dst, dst.Bounds(), previewFill, image.Point{})
	p.strokes.Draw(dst, dst.Bounds(), previewStroke, image.Point{})
	p.dots.Draw(dst, dst.Bounds(), previewDot, image.Point{})
}

// fill adds every ring to one path; holes wound opposite to their shell
// cancel out.
func (p *projector) fill(poly orb.Polygon) {
	for _, ring := range poly {
		if len(ring) < 3 {
			continue
		}
		x, y := p.project(ring[0])
		p.fills.MoveTo(x, y)
		for _, pt := range ring[1:] {
			x, y = p.project(pt)
			p.fills.LineTo(x, y)
		}
		p.fills.ClosePath()
	}
}

// stroke adds each segment as a thin quad.
func (p *projector) stroke(ls orb.LineString, width float32) {
	half := width / 2
	for i := 1; i < len(ls); i++ {
		x0, y0 := p.project(ls[i-1])
		x1, y1 := p.project(ls[i])
		dx, dy := x1-x0, y1-y0
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*half, dx/l*half
		p.strokes.MoveTo(x0+nx, y0+ny)
		p.strokes.LineTo(x1+nx, y1+ny)
		p.strokes.LineTo(x1-nx, y1-ny)
		p.strokes.LineTo(x0-nx, y0-ny)
		p.strokes.ClosePath()
	}
}

func (p *projector) dot(pt orb.Point, r float32) {
	x, y := p.project(pt)
	p.dots.MoveTo(x-r, y-r)
	p.dots.LineTo(x+r, y-r)
	p.dots.LineTo(x+r, y+r)
	p.dots.LineTo(x-r, y+r)
	p.dots.ClosePath()
}
