package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/emblem-match/internal/evaluate"
	emblemimg "github.com/ironsheep/emblem-match/internal/imaging"
)

// HistogramOptions controls the histogram canvas.
type HistogramOptions struct {
	Width  int
	Height int

	// Bins splits [0,1] into equal buckets.
	Bins int

	Title string
}

// DefaultHistogramOptions returns an 800x400 canvas with 200 bins.
func DefaultHistogramOptions() HistogramOptions {
	return HistogramOptions{Width: 800, Height: 400, Bins: 200}
}

const (
	marginLeft   = 44
	marginRight  = 12
	marginTop    = 24
	marginBottom = 28
)

var (
	negativeColor  = colorful.Hsv(210, 0.70, 0.85)
	positiveColor  = colorful.Hsv(28, 0.85, 0.95)
	thresholdColor = colorful.Hsv(0, 0.90, 0.80)
	axisColor      = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
)

// Histogram plots the negative and positive score distributions over [0,1]
// with a vertical line at threshold. Positive bars are drawn translucent on
// top of the negative ones.
func Histogram(set evaluate.LabeledScoreSet, threshold float64, opts HistogramOptions) *image.NRGBA {
	def := DefaultHistogramOptions()
	if opts.Width <= marginLeft+marginRight {
		opts.Width = def.Width
	}
	if opts.Height <= marginTop+marginBottom {
		opts.Height = def.Height
	}
	if opts.Bins <= 0 {
		opts.Bins = def.Bins
	}

	canvas := imaging.New(opts.Width, opts.Height, color.White)
	plot := image.Rect(marginLeft, marginTop, opts.Width-marginRight, opts.Height-marginBottom)

	neg := binCounts(set.Negative, opts.Bins)
	pos := binCounts(set.Positive, opts.Bins)
	peak := 1
	for i := range neg {
		peak = max(peak, neg[i], pos[i])
	}

	drawBars(canvas, plot, neg, peak, negativeColor, 255)
	drawBars(canvas, plot, pos, peak, positiveColor, 170)

	// axes
	draw.Draw(canvas, image.Rect(plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y+1), image.NewUniform(axisColor), image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(plot.Min.X-1, plot.Min.Y, plot.Min.X, plot.Max.Y+1), image.NewUniform(axisColor), image.Point{}, draw.Src)

	for _, tick := range []float64{0, 0.25, 0.5, 0.75, 1} {
		x := plot.Min.X + int(tick*float64(plot.Dx()-1))
		draw.Draw(canvas, image.Rect(x, plot.Max.Y, x+1, plot.Max.Y+4), image.NewUniform(axisColor), image.Point{}, draw.Src)
		label := fmt.Sprintf("%g", tick)
		emblemimg.DrawLabel(canvas, x-len(label)*emblemimg.LabelCharWidth/2, plot.Max.Y+6, label, axisColor, nil)
	}
	peakLabel := fmt.Sprintf("%d", peak)
	emblemimg.DrawLabel(canvas, plot.Min.X-4-len(peakLabel)*emblemimg.LabelCharWidth, plot.Min.Y, peakLabel, axisColor, nil)
	emblemimg.DrawLabel(canvas, plot.Min.X-4-emblemimg.LabelCharWidth, plot.Max.Y-emblemimg.LabelLineHeight, "0", axisColor, nil)

	if threshold >= 0 && threshold <= 1 {
		x := plot.Min.X + int(threshold*float64(plot.Dx()-1))
		draw.Draw(canvas, image.Rect(x, plot.Min.Y, x+1, plot.Max.Y), image.NewUniform(thresholdColor), image.Point{}, draw.Src)
		emblemimg.DrawLabel(canvas, x+3, plot.Min.Y, fmt.Sprintf("threshold %g", threshold), thresholdColor, nil)
	}

	legendX := plot.Max.X - 32*emblemimg.LabelCharWidth
	emblemimg.DrawLabel(canvas, legendX, 4, fmt.Sprintf("negative (%d)", len(set.Negative)), negativeColor, nil)
	emblemimg.DrawLabel(canvas, legendX+17*emblemimg.LabelCharWidth, 4, fmt.Sprintf("positive (%d)", len(set.Positive)), positiveColor, nil)
	if opts.Title != "" {
		emblemimg.DrawLabel(canvas, marginLeft, 4, opts.Title, axisColor, nil)
	}

	return canvas
}

// binCounts buckets scores into n bins over [0,1]. Out of range scores land
// in the first or last bin.
func binCounts(scores []float64, n int) []int {
	counts := make([]int, n)
	for _, s := range scores {
		counts[binIndex(s, n)]++
	}
	return counts
}

func binIndex(s float64, n int) int {
	i := int(s * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func drawBars(dst draw.Image, plot image.Rectangle, counts []int, peak int, c colorful.Color, alpha uint8) {
	src := image.NewUniform(c)
	mask := image.NewUniform(color.Alpha{A: alpha})
	n := len(counts)
	for i, count := range counts {
		if count == 0 {
			continue
		}
		x0 := plot.Min.X + i*plot.Dx()/n
		x1 := plot.Min.X + (i+1)*plot.Dx()/n
		if x1 <= x0 {
			x1 = x0 + 1
		}
		h := count * plot.Dy() / peak
		if h == 0 {
			h = 1
		}
		bar := image.Rect(x0, plot.Max.Y-h, x1, plot.Max.Y)
		draw.DrawMask(dst, bar, src, image.Point{}, mask, image.Point{}, draw.Over)
	}
}
