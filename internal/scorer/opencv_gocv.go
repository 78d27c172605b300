//go:build gocv

package scorer

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/match"
)

// OpenCVBackend is the name of the OpenCV backend.
const OpenCVBackend = "opencv"

func init() {
	RegisterBackend(OpenCVBackend, opencv{})
}

// opencv runs Canny, matchTemplate (TM_CCORR_NORMED) and resize through gocv.
// Conversions between Go images and Mats only fail for unsupported Mat
// types, which would be a bug here, so they panic.
type opencv struct{}

func (opencv) Edges(img image.Image, low, high int) *image.Gray {
	gray := mustGrayMat(img)
	defer gray.Close()

	return canny(gray, low, high)
}

func (opencv) AutoEdges(img image.Image, sigma float64) *image.Gray {
	if sigma <= 0 {
		sigma = imaging.DefaultSigma
	}
	gray := mustGrayMat(img)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(gray, &blurred, 3)

	low, high := imaging.AutoThresholds(matToGray(blurred), sigma)
	return canny(blurred, low, high)
}

// canny smooths gray with a 5x5 Gaussian, as the native extractor does,
// before running cv::Canny.
func canny(gray gocv.Mat, low, high int) *image.Gray {
	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.GaussianBlur(gray, &smoothed, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderReplicate)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(smoothed, &edges, float32(low), float32(high))

	return matToGray(edges)
}

func (opencv) Match(edges *image.Gray, t *Template) (*match.Result, error) {
	b := edges.Bounds()
	if b.Dx() < t.Width || b.Dy() < t.Height {
		return nil, fmt.Errorf("%w: image %dx%d, template %dx%d",
			match.ErrSizeMismatch, b.Dx(), b.Dy(), t.Width, t.Height)
	}

	src := mustGrayMat(edges)
	defer src.Close()
	tmpl := mustGrayMat(t.Edges)
	defer tmpl.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tmpl, &result, gocv.TmCcorrNormed, mask)

	surface := &match.Surface{Width: result.Cols(), Height: result.Rows()}
	surface.Values = make([]float64, surface.Width*surface.Height)
	for y := 0; y < surface.Height; y++ {
		for x := 0; x < surface.Width; x++ {
			v := float64(result.GetFloatAt(y, x))
			switch {
			case math.IsNaN(v) || v < 0:
				v = 0
			case v > 1:
				v = 1
			}
			surface.Values[y*surface.Width+x] = v
		}
	}

	best, loc := surface.Max()
	return &match.Result{Surface: surface, Best: best, Loc: loc}, nil
}

func (opencv) Downscale(img image.Image, ratio float64) (image.Image, bool) {
	b := img.Bounds()
	w, h := imaging.ScaledSize(b.Dx(), b.Dy(), ratio)
	if w <= 0 || h <= 0 {
		return nil, false
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		panic(fmt.Errorf("failed to convert image to Mat: %w", err))
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)

	out, err := dst.ToImage()
	if err != nil {
		panic(fmt.Errorf("failed to convert Mat to image: %w", err))
	}
	return out, true
}

// mustGrayMat returns a single channel 8-bit Mat of img.
func mustGrayMat(img image.Image) gocv.Mat {
	if g, ok := img.(*image.Gray); ok {
		b := g.Bounds()
		buf := make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := g.PixOffset(b.Min.X, y)
			buf = append(buf, g.Pix[off:off+b.Dx()]...)
		}
		m, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8U, buf)
		if err != nil {
			panic(fmt.Errorf("failed to build gray Mat: %w", err))
		}
		return m
	}

	color, err := gocv.ImageToMatRGB(img)
	if err != nil {
		panic(fmt.Errorf("failed to convert image to Mat: %w", err))
	}
	defer color.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(color, &gray, gocv.ColorBGRToGray)
	return gray
}

// matToGray copies a single channel 8-bit Mat into a zero-origin image.Gray.
func matToGray(m gocv.Mat) *image.Gray {
	w, h := m.Cols(), m.Rows()
	pix := make([]byte, w*h)
	copy(pix, m.ToBytes())
	return &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}
}
