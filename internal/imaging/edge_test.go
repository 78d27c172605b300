package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
)

// createStepImage returns a w×h image that is `left` for x < split and
// `right` otherwise.
func createStepImage(w, h, split int, left, right uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := left
			if x >= split {
				v = right
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func assertBinary(t *testing.T, edges *image.Gray) {
	t.Helper()
	for _, v := range edges.Pix {
		if v != EdgeOff && v != EdgeOn {
			t.Fatalf("edge map is not binary: found sample %d", v)
		}
	}
}

func TestEdgeDetect_SameSizeAndBinary(t *testing.T) {
	img := createStepImage(100, 60, 50, 0, 255)

	edges := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)

	if edges.Bounds() != image.Rect(0, 0, 100, 60) {
		t.Errorf("bounds: got %v, want (0,0)-(100,60)", edges.Bounds())
	}
	assertBinary(t, edges)
}

func TestEdgeDetect_UniformImage(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{128, 128, 128, 255})

	edges := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)

	if n := CountEdges(edges); n != 0 {
		t.Errorf("uniform image should have no edges, got %d", n)
	}
}

func TestEdgeDetect_StrongEdge(t *testing.T) {
	img := createStepImage(100, 100, 50, 0, 255)

	edges := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)

	for y := 1; y < 99; y++ {
		if edges.GrayAt(49, y).Y != EdgeOn || edges.GrayAt(50, y).Y != EdgeOn {
			t.Fatalf("expected edge at x=49,50 on row %d", y)
		}
	}
	for _, x := range []int{10, 30, 47, 52, 70, 90} {
		if edges.GrayAt(x, 50).Y != EdgeOff {
			t.Errorf("unexpected edge at (%d,50)", x)
		}
	}
}

func TestEdgeDetect_Thresholds(t *testing.T) {
	// After the blur a 0->45 step peaks at a Sobel magnitude of 45*692/273
	// (about 114) on the two columns next to the boundary.
	img := createStepImage(40, 40, 20, 0, 45)

	tests := []struct {
		name      string
		low, high int
		wantEdges bool
	}{
		{"below both thresholds", 120, 250, false},
		{"weak only, no strong seed", 100, 120, false},
		{"strong", 100, 110, true},
		{"low thresholds", 10, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := EdgeDetect(img, tt.low, tt.high)
			got := CountEdges(edges) > 0
			if got != tt.wantEdges {
				t.Errorf("edges found: got %v, want %v (count %d)", got, tt.wantEdges, CountEdges(edges))
			}
		})
	}
}

func TestEdgeDetect_ColorMatchesGray(t *testing.T) {
	gray := createStepImage(60, 40, 30, 0, 255)
	rgba := image.NewRGBA(gray.Bounds())
	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			rgba.Set(x, y, gray.GrayAt(x, y))
		}
	}

	want := EdgeDetect(gray, DefaultEdgeLow, DefaultEdgeHigh)
	got := EdgeDetect(rgba, DefaultEdgeLow, DefaultEdgeHigh)

	if CountEdges(want) == 0 {
		t.Fatal("expected edges on the step")
	}
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("RGBA and Gray inputs with the same intensities should give the same edges")
	}
}

func TestEdgeDetect_NoiseIsSparse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}

	edges := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)

	if density := float64(CountEdges(edges)) / 10000; density > 0.15 {
		t.Errorf("edge density on uniform noise: got %.3f, want at most 0.15", density)
	}
}

func TestToGray(t *testing.T) {
	t.Run("gray sub-image is copied to a zero origin", func(t *testing.T) {
		full := createStepImage(20, 20, 10, 30, 200)
		sub := full.SubImage(image.Rect(5, 5, 15, 15)).(*image.Gray)

		g := toGray(sub)

		if g.Bounds() != image.Rect(0, 0, 10, 10) || g.Stride != 10 {
			t.Fatalf("bounds %v stride %d, want zero-origin 10x10", g.Bounds(), g.Stride)
		}
		if g.GrayAt(4, 0).Y != 30 || g.GrayAt(5, 0).Y != 200 {
			t.Errorf("samples around the step: got %d,%d want 30,200", g.GrayAt(4, 0).Y, g.GrayAt(5, 0).Y)
		}
		g.Pix[0] = 99
		if full.GrayAt(5, 5).Y != 30 {
			t.Error("toGray must not alias the input")
		}
	})

	t.Run("rgba takes the red channel", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(2, 3, 6, 5))
		for y := 3; y < 5; y++ {
			for x := 2; x < 6; x++ {
				v := uint8(x*10 + y)
				src.Set(x, y, color.RGBA{v, v, v, 255})
			}
		}

		g := grayFromRGBA(src)

		if g.Bounds() != image.Rect(0, 0, 4, 2) {
			t.Fatalf("bounds: got %v", g.Bounds())
		}
		if g.GrayAt(0, 0).Y != 23 || g.GrayAt(3, 1).Y != 54 {
			t.Errorf("samples: got %d,%d want 23,54", g.GrayAt(0, 0).Y, g.GrayAt(3, 1).Y)
		}
	})
}

func TestEdgeDetect_Deterministic(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8((i*37 + i/64*91) % 256)
	}

	a := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)
	b := EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh)

	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("EdgeDetect is not deterministic")
	}
}

func TestEdgeDetect_SubImageOrigin(t *testing.T) {
	full := createStepImage(80, 80, 40, 0, 255)
	sub := full.SubImage(image.Rect(20, 20, 60, 60))

	edges := EdgeDetect(sub, DefaultEdgeLow, DefaultEdgeHigh)

	if edges.Bounds() != image.Rect(0, 0, 40, 40) {
		t.Fatalf("bounds: got %v, want zero-origin 40x40", edges.Bounds())
	}
	// The step sits at x=40 in the full image, x=20 in the sub-image.
	if edges.GrayAt(19, 20).Y != EdgeOn || edges.GrayAt(20, 20).Y != EdgeOn {
		t.Error("expected the step edge at x=19,20 of the sub-image")
	}
}

func TestEdgeDetect_EmptyImage(t *testing.T) {
	edges := EdgeDetect(image.NewGray(image.Rect(0, 0, 0, 0)), 1, 2)
	if !edges.Bounds().Empty() {
		t.Errorf("expected empty edge map, got %v", edges.Bounds())
	}
}

func TestAutoThresholds(t *testing.T) {
	tests := []struct {
		name              string
		img               *image.Gray
		sigma             float64
		wantLow, wantHigh int
	}{
		{"uniform 100", createStepImage(10, 10, 0, 0, 100), 0.5, 50, 150},
		{"even split averages the middle values", createStepImage(10, 10, 5, 10, 30), 0.5, 10, 30},
		{"upper clamps at 255", createStepImage(10, 10, 0, 0, 220), 0.5, 110, 255},
		{"sigma 0.33", createStepImage(10, 10, 0, 0, 90), 0.33, 60, 119},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, high := AutoThresholds(tt.img, tt.sigma)
			if low != tt.wantLow || high != tt.wantHigh {
				t.Errorf("thresholds: got (%d,%d), want (%d,%d)", low, high, tt.wantLow, tt.wantHigh)
			}
		})
	}
}

func TestAutoEdgeDetect(t *testing.T) {
	t.Run("step image has edges", func(t *testing.T) {
		// Mostly mid-gray so the median is 100 and the thresholds are 50/150.
		img := createStepImage(60, 60, 40, 100, 250)
		edges := AutoEdgeDetect(img, DefaultSigma)
		if edges.Bounds() != image.Rect(0, 0, 60, 60) {
			t.Errorf("bounds: got %v", edges.Bounds())
		}
		assertBinary(t, edges)
		if CountEdges(edges) == 0 {
			t.Error("expected edges on a strong step")
		}
	})

	t.Run("reports derived thresholds", func(t *testing.T) {
		img := createStepImage(60, 60, 40, 100, 250)
		edges, low, high := AutoEdgeDetectThresholds(img, DefaultSigma)
		if low != 50 || high != 150 {
			t.Errorf("thresholds: got %d/%d, want 50/150", low, high)
		}
		if !bytes.Equal(edges.Pix, AutoEdgeDetect(img, DefaultSigma).Pix) {
			t.Error("edges should match AutoEdgeDetect")
		}
	})

	t.Run("uniform image has none", func(t *testing.T) {
		edges := AutoEdgeDetect(createInMemoryImage(30, 30, color.RGBA{90, 90, 90, 255}), 0)
		if n := CountEdges(edges); n != 0 {
			t.Errorf("expected no edges, got %d", n)
		}
	})
}

func TestEdgePolicies(t *testing.T) {
	img := createStepImage(50, 50, 25, 0, 255)

	fixed := FixedEdges{Low: DefaultEdgeLow, High: DefaultEdgeHigh}.Edges(img)
	if !bytes.Equal(fixed.Pix, EdgeDetect(img, DefaultEdgeLow, DefaultEdgeHigh).Pix) {
		t.Error("FixedEdges should match EdgeDetect")
	}

	adaptive := AdaptiveEdges{Sigma: 0.5}.Edges(img)
	if !bytes.Equal(adaptive.Pix, AutoEdgeDetect(img, 0.5).Pix) {
		t.Error("AdaptiveEdges should match AutoEdgeDetect")
	}
}

func TestEncodeEdges(t *testing.T) {
	edges := EdgeDetect(createStepImage(100, 100, 50, 0, 255), 50, 150)

	result, err := EncodeEdges(edges, 50, 150)
	if err != nil {
		t.Fatalf("EncodeEdges failed: %v", err)
	}

	if result.Width != 100 || result.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	if result.EdgePixels != CountEdges(edges) {
		t.Errorf("EdgePixels: got %d, want %d", result.EdgePixels, CountEdges(edges))
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	edgeImg, err := png.Decode(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if edgeImg.Bounds().Dx() != 100 || edgeImg.Bounds().Dy() != 100 {
		t.Errorf("decoded image dimensions: got %dx%d, want 100x100",
			edgeImg.Bounds().Dx(), edgeImg.Bounds().Dy())
	}
}
