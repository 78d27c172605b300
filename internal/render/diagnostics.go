package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/emblem-match/internal/classify"
	emblemimg "github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/match"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

// ErrNoDiagnostics is returned when a result was scored without
// Config.Diagnostics or no level was matched.
var ErrNoDiagnostics = errors.New("result carries no diagnostics")

// Thresholds of the inspection edge map in the bottom-right panel.
const (
	InspectEdgeLow  = 100
	InspectEdgeHigh = 150
)

const (
	minCell     = 160
	titleHeight = emblemimg.LabelLineHeight + 6
)

var (
	heatLow  = colorful.Color{R: 0.02, G: 0.02, B: 0.20}
	heatHigh = colorful.Color{R: 1.00, G: 0.92, B: 0.25}
)

// DefaultBoxColor outlines the matched window unless WithBoxColor is given.
var DefaultBoxColor color.Color = color.NRGBA{R: 255, G: 40, B: 40, A: 255}

type diagnosticsOptions struct {
	box color.Color
}

// DiagnosticsOption customizes Diagnostics.
type DiagnosticsOption func(*diagnosticsOptions)

// WithBoxColor draws the matched window in c. A nil c keeps the default.
func WithBoxColor(c color.Color) DiagnosticsOption {
	return func(o *diagnosticsOptions) {
		if c != nil {
			o.box = c
		}
	}
}

// Diagnostics lays out a 2x2 panel: the match surface of the best level
// titled with the score, the best level's edge map with the matched window,
// the source image, and an edge map of the source at 100/150.
func Diagnostics(src image.Image, res scorer.Result, threshold float64, opts ...DiagnosticsOption) (*image.NRGBA, error) {
	best := res.Best
	if best == nil || best.Surface == nil || best.Edges == nil {
		return nil, ErrNoDiagnostics
	}
	o := diagnosticsOptions{box: DefaultBoxColor}
	for _, opt := range opts {
		opt(&o)
	}

	b := src.Bounds()
	cellW := max(b.Dx(), minCell)
	cellH := max(b.Dy(), minCell) + titleHeight

	edges := imaging.Clone(best.Edges)
	emblemimg.DrawBox(edges, best.Box(), o.box, 2)

	panels := []struct {
		title  string
		img    image.Image
		filter imaging.ResampleFilter
	}{
		{fmt.Sprintf("%.4f %s", res.Score, classify.Verdict(res.Score, threshold)), HeatMap(best.Surface), imaging.NearestNeighbor},
		{fmt.Sprintf("level %d x%.2f", best.Index, best.Scale()), edges, imaging.NearestNeighbor},
		{"source", src, imaging.Linear},
		{fmt.Sprintf("edges %d/%d", InspectEdgeLow, InspectEdgeHigh), emblemimg.FixedEdges{Low: InspectEdgeLow, High: InspectEdgeHigh}.Edges(src), imaging.NearestNeighbor},
	}

	out := imaging.New(2*cellW, 2*cellH, color.White)
	for i, p := range panels {
		origin := image.Pt((i%2)*cellW, (i/2)*cellH)
		emblemimg.DrawLabel(out, origin.X+4, origin.Y+3, p.title, color.Black, nil)

		fitted := fit(p.img, cellW, cellH-titleHeight, p.filter)
		fb := fitted.Bounds()
		at := origin.Add(image.Pt((cellW-fb.Dx())/2, titleHeight+(cellH-titleHeight-fb.Dy())/2))
		out = imaging.Paste(out, fitted, at)
	}
	return out, nil
}

// fit scales img to the largest size inside w x h keeping its aspect ratio.
func fit(img image.Image, w, h int, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return imaging.New(1, 1, color.White)
	}
	scale := min(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
	tw := max(1, int(float64(b.Dx())*scale))
	th := max(1, int(float64(b.Dy())*scale))
	if tw == b.Dx() && th == b.Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, tw, th, filter)
}

// HeatMap colors a correlation surface from dark blue at 0 to yellow at 1.
func HeatMap(s *match.Surface) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			c := heatLow.BlendLab(heatHigh, s.At(x, y)).Clamped()
			r, g, bl := c.RGB255()
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: bl, A: 255})
		}
	}
	return out
}

// Save writes img to path; the format follows the extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
