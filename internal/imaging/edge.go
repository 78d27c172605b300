package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// Edge sample values. Edge maps are strictly binary.
const (
	EdgeOff uint8 = 0
	EdgeOn  uint8 = 255
)

// Default thresholds used inside the scoring loop and for the template.
const (
	DefaultEdgeLow  = 150
	DefaultEdgeHigh = 200

	// DefaultSigma is the sensitivity of the median-derived thresholds.
	DefaultSigma = 0.5
)

// EdgePolicy turns an image into a binary edge map of the same size.
// Implementations must be deterministic and must not mutate the input.
type EdgePolicy interface {
	Edges(img image.Image) *image.Gray
}

// FixedEdges applies EdgeDetect with constant thresholds, so that every
// pyramid level and the template are thresholded identically.
type FixedEdges struct {
	Low  int
	High int
}

func (p FixedEdges) Edges(img image.Image) *image.Gray {
	return EdgeDetect(img, p.Low, p.High)
}

// AdaptiveEdges derives thresholds from each image's median intensity.
// Useful when lighting and contrast vary so much that fixed thresholds misfire.
type AdaptiveEdges struct {
	Sigma float64
}

func (p AdaptiveEdges) Edges(img image.Image) *image.Gray {
	return AutoEdgeDetect(img, p.Sigma)
}

// EdgeDetect performs Canny-style edge detection on an image.
//
// Parameters:
//   - img: Source image (color or grayscale). Any bounds origin is accepted.
//   - thresholdLow: Gradient magnitude (0-255 intensity scale) a pixel must
//     exceed to be kept when it touches a strong edge.
//   - thresholdHigh: Gradient magnitude a pixel must exceed to be a strong edge.
//
// Returns a grayscale image with bounds (0,0)-(w,h) whose samples are EdgeOn
// for edges and EdgeOff elsewhere.
//
// # Algorithm
//
//  1. Grayscale conversion (bild effect.Grayscale)
//
//  2. Gaussian blur: 5x5 kernel (sum 273), replicated borders. The blurred
//     plane keeps the unnormalized sums so that every later step stays in
//     exact integer arithmetic; thresholds are scaled by 273 to match.
//
//  3. Gradient computation: Sobel operators for X and Y gradients on the
//     0-255 intensity scale, replicated borders
//     magnitude = sqrt(Gx² + Gy²)
//     direction = atan2(Gy, Gx)
//
//  4. Non-maximum suppression: keep only local maxima along the gradient
//     direction. Border pixels are suppressed.
//
//  5. Hysteresis: pixels above thresholdHigh seed edges; pixels above
//     thresholdLow are kept when 8-connected to a seed through other kept
//     pixels.
//
// AutoEdgeDetect adds a median blur ahead of this for the adaptive policy.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) *image.Gray {
	gray, width, height := grayPlane(img)
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return result
	}
	blurred := gaussianBlur(gray, width, height)

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					v := blurred[py*width+px]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			angle := direction[i]
			mag := magnitude[i]

			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			} else {
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis from strong seeds through weak pixels. result has a
	// zero origin and Stride == width, so plane indices address Pix directly.
	low := float64(thresholdLow) * gaussianSum
	high := float64(thresholdHigh) * gaussianSum
	stack := make([]int, 0, 64)
	for i, v := range suppressed {
		if v <= high || result.Pix[i] == EdgeOn {
			continue
		}
		result.Pix[i] = EdgeOn
		stack = append(stack, i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					n := ny*width + nx
					if result.Pix[n] == EdgeOff && suppressed[n] > low {
						result.Pix[n] = EdgeOn
						stack = append(stack, n)
					}
				}
			}
		}
	}

	return result
}

// AutoEdgeDetect runs EdgeDetect with thresholds derived from the image itself.
//
// The image is converted to grayscale and smoothed with a 3x3 median filter.
// With v the median intensity of the smoothed image:
//
//	lower = clamp(0, 255, (1 - sigma) * v)
//	upper = clamp(0, 255, (1 + sigma) * v)
//
// A sigma of 0.5 (DefaultSigma) is a good starting point; non-positive values
// fall back to it.
func AutoEdgeDetect(img image.Image, sigma float64) *image.Gray {
	edges, _, _ := AutoEdgeDetectThresholds(img, sigma)
	return edges
}

// AutoEdgeDetectThresholds is AutoEdgeDetect that also returns the derived
// thresholds.
func AutoEdgeDetectThresholds(img image.Image, sigma float64) (*image.Gray, int, int) {
	if sigma <= 0 {
		sigma = DefaultSigma
	}
	smoothed := grayFromRGBA(effect.Median(toGray(img), 1))
	low, high := AutoThresholds(smoothed, sigma)
	return EdgeDetect(smoothed, low, high), low, high
}

// AutoThresholds returns the median-derived (low, high) threshold pair for gray.
func AutoThresholds(gray *image.Gray, sigma float64) (int, int) {
	v := medianIntensity(gray)
	low := int(math.Max(0, (1.0-sigma)*v))
	high := int(math.Min(255, (1.0+sigma)*v))
	return low, high
}

// medianIntensity returns the median sample of gray. For an even number of
// samples it averages the two middle values.
func medianIntensity(gray *image.Gray) float64 {
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	kth := func(k int) int {
		seen := 0
		for v, c := range hist {
			seen += c
			if seen > k {
				return v
			}
		}
		return 255
	}

	if n%2 == 1 {
		return float64(kth(n / 2))
	}
	return float64(kth(n/2-1)+kth(n/2)) / 2
}

// grayPlane converts img to a row-major intensity plane (0-255).
func grayPlane(img image.Image) ([]float64, int, int) {
	g := toGray(img)
	width, height := g.Rect.Dx(), g.Rect.Dy()
	plane := make([]float64, width*height)
	for i, v := range g.Pix {
		plane[i] = float64(v)
	}
	return plane, width, height
}

// toGray returns img as a zero-origin *image.Gray with Stride == width.
// Gray inputs are copied as-is; anything else goes through bild's
// luminance conversion, which yields an RGBA image with R == G == B.
func toGray(img image.Image) *image.Gray {
	g, ok := img.(*image.Gray)
	if !ok {
		return grayFromRGBA(effect.Grayscale(img))
	}
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		start := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], g.Pix[start:start+b.Dx()])
	}
	return out
}

// grayFromRGBA takes the red channel of a gray-valued RGBA image, as
// produced by effect.Grayscale and effect.Median.
func grayFromRGBA(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)]
		}
	}
	return out
}

// gaussianSum is the weight total of gaussianKernel.
const gaussianSum = 273

var gaussianKernel = [5][5]float64{
	{1, 4, 7, 4, 1},
	{4, 16, 26, 16, 4},
	{7, 26, 41, 26, 7},
	{4, 16, 26, 16, 4},
	{1, 4, 7, 4, 1},
}

// gaussianBlur convolves plane with gaussianKernel and leaves the result
// scaled by gaussianSum.
func gaussianBlur(plane []float64, width, height int) []float64 {
	result := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					sum += plane[py*width+px] * gaussianKernel[ky+2][kx+2]
				}
			}
			result[y*width+x] = sum
		}
	}
	return result
}

// EdgeDetectResult contains an edge map encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of edge samples.
	EdgePixels int `json:"edge_pixels"`

	// Low and High are the thresholds that produced the map.
	Low  int `json:"low"`
	High int `json:"high"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EncodeEdges packages an edge map for the tool server.
func EncodeEdges(edges *image.Gray, low, high int) (*EdgeDetectResult, error) {
	encoded, err := EncodePNG(edges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Bounds().Dx(),
		Height:      edges.Bounds().Dy(),
		EdgePixels:  CountEdges(edges),
		Low:         low,
		High:        high,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// CountEdges returns the number of non-zero samples in edges.
func CountEdges(edges *image.Gray) int {
	b := edges.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if edges.GrayAt(x, y).Y != EdgeOff {
				n++
			}
		}
	}
	return n
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
