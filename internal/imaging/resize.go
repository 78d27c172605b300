package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ScaledSize returns the truncated dimensions of a w×h image scaled by ratio.
// For 0 < ratio < 1 both results are strictly smaller than the inputs.
func ScaledSize(w, h int, ratio float64) (int, int) {
	return int(float64(w) * ratio), int(float64(h) * ratio)
}

// Downscale resizes img by ratio using linear interpolation.
//
// Dimensions are truncated toward zero, so repeated calls with 0 < ratio < 1
// always shrink the image. The second result is false (and the image nil) when
// either scaled dimension would be zero.
func Downscale(img image.Image, ratio float64) (image.Image, bool) {
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), ratio)
	if w <= 0 || h <= 0 {
		return nil, false
	}
	return Resize(img, w, h), true
}

// Resize returns img resized to exactly w×h with linear interpolation.
// The result has a zero origin.
func Resize(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.Linear)
}

// Crop extracts the rectangle r from img. r is given in the image's own
// coordinates; (x1,y1) inclusive, (x2,y2) exclusive.
func Crop(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()

	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: x1 must be < x2, y1 must be < y2", r)
	}

	return imaging.Crop(img, r), nil
}

// CropResult contains a cropped region encoded as base64 PNG.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeCrop crops r from img and packages it for the tool server.
func EncodeCrop(img image.Image, r image.Rectangle) (*CropResult, error) {
	cropped, err := Crop(img, r)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodePNG(cropped)
	if err != nil {
		return nil, err
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNG returns img as a base64 encoded PNG.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
