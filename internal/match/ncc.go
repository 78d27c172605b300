package match

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// ErrSizeMismatch is returned when the image is smaller than the template in
// either dimension.
var ErrSizeMismatch = errors.New("image smaller than template")

// Surface is a row-major grid of correlation values. Cell (x,y) holds the
// score of the template placed with its top-left corner at (x,y).
type Surface struct {
	Width  int
	Height int
	Values []float64
}

// At returns the value of cell (x,y).
func (s *Surface) At(x, y int) float64 {
	return s.Values[y*s.Width+x]
}

// Max returns the largest value and its location. Ties go to the first cell
// in row-major order. An empty surface returns 0 at the origin.
func (s *Surface) Max() (float64, image.Point) {
	if len(s.Values) == 0 {
		return 0, image.Point{}
	}
	best := s.Values[0]
	var loc image.Point
	for i, v := range s.Values[1:] {
		if v > best {
			best = v
			loc = image.Point{X: (i + 1) % s.Width, Y: (i + 1) / s.Width}
		}
	}
	return best, loc
}

// tap is one nonzero template sample.
type tap struct {
	dx, dy int
	v      float64
}

// Template is an edge template prepared for repeated matching. It is
// read-only after Prepare and safe to share between goroutines.
type Template struct {
	Width  int
	Height int

	taps   []tap
	energy float64 // Σ T²
}

// Prepare converts an edge map into a matching template. Samples are scaled
// from 0..255 to 0..1.
func Prepare(edges *image.Gray) *Template {
	b := edges.Bounds()
	t := &Template{Width: b.Dx(), Height: b.Dy()}
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			s := edges.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			if s == 0 {
				continue
			}
			v := float64(s) / 255
			t.taps = append(t.taps, tap{dx: x, dy: y, v: v})
			t.energy += v * v
		}
	}
	return t
}

// Size returns the template dimensions as a point.
func (t *Template) Size() image.Point {
	return image.Point{X: t.Width, Y: t.Height}
}

// Samples returns the number of nonzero template samples.
func (t *Template) Samples() int {
	return len(t.taps)
}

// Result holds a correlation surface and its maximum.
type Result struct {
	Surface *Surface
	Best    float64
	Loc     image.Point
}

// Match slides t over edges and returns the correlation surface.
//
// The surface has size (W-w+1)×(H-h+1). Match returns an error wrapping
// ErrSizeMismatch when edges is smaller than t in either dimension.
func Match(edges *image.Gray, t *Template) (*Result, error) {
	b := edges.Bounds()
	W, H := b.Dx(), b.Dy()
	if W < t.Width || H < t.Height || t.Width == 0 || t.Height == 0 {
		return nil, fmt.Errorf("%w: image %dx%d, template %dx%d",
			ErrSizeMismatch, W, H, t.Width, t.Height)
	}

	plane := make([]float64, W*H)
	for y := 0; y < H; y++ {
		for x := 0; x < W; x++ {
			plane[y*W+x] = float64(edges.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 255
		}
	}
	sq := integralSquares(plane, W, H)

	surface := &Surface{
		Width:  W - t.Width + 1,
		Height: H - t.Height + 1,
	}
	surface.Values = make([]float64, surface.Width*surface.Height)

	parallel.Line(surface.Height, func(start, end int) {
		for y := start; y < end; y++ {
			row := surface.Values[y*surface.Width : (y+1)*surface.Width]
			for x := range row {
				row[x] = correlate(plane, W, sq, x, y, t)
			}
		}
	})

	best, loc := surface.Max()
	return &Result{Surface: surface, Best: best, Loc: loc}, nil
}

// correlate scores the template placed at (x,y).
func correlate(plane []float64, W int, sq []float64, x, y int, t *Template) float64 {
	windowEnergy := windowSum(sq, W, x, y, t.Width, t.Height)
	denom := math.Sqrt(windowEnergy * t.energy)
	if !(denom > 0) {
		return 0
	}

	var num float64
	for _, p := range t.taps {
		num += plane[(y+p.dy)*W+x+p.dx] * p.v
	}

	r := num / denom
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// integralSquares returns a (W+1)×(H+1) summed-area table of plane².
// Row 0 and column 0 are zero.
func integralSquares(plane []float64, W, H int) []float64 {
	stride := W + 1
	table := make([]float64, stride*(H+1))
	for y := 0; y < H; y++ {
		var rowSum float64
		for x := 0; x < W; x++ {
			v := plane[y*W+x]
			rowSum += v * v
			table[(y+1)*stride+x+1] = table[y*stride+x+1] + rowSum
		}
	}
	return table
}

// windowSum returns the sum over the w×h window at (x,y) from a table built
// by integralSquares for an image of width W.
func windowSum(table []float64, W, x, y, w, h int) float64 {
	stride := W + 1
	x1, y1 := x+w, y+h
	return table[y1*stride+x1] - table[y*stride+x1] - table[y1*stride+x] + table[y*stride+x]
}
