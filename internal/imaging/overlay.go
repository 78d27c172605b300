package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label metrics of basicfont.Face7x13.
const (
	LabelCharWidth  = 7
	LabelLineHeight = 13
)

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA" (the '#' is optional).
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	hex = strings.TrimPrefix(hex, "#")

	var alpha uint8 = 255
	switch len(hex) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:6]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: alpha}, nil
}

// DrawBox outlines r on img with the given line thickness. Parts of the box
// outside img are clipped.
func DrawBox(img draw.Image, r image.Rectangle, c color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	bounds := img.Bounds()
	set := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			img.Set(x, y, c)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := r.Min.X + t; x < r.Max.X-t; x++ {
			set(x, r.Min.Y+t)
			set(x, r.Max.Y-1-t)
		}
		for y := r.Min.Y + t; y < r.Max.Y-t; y++ {
			set(r.Min.X+t, y)
			set(r.Max.X-1-t, y)
		}
	}
}

// DrawLabel writes text with its top-left corner at (x, y) on a filled
// background. A nil bg draws the text only.
func DrawLabel(img draw.Image, x, y int, text string, fg, bg color.Color) {
	if text == "" {
		return
	}
	if bg != nil {
		box := image.Rect(x-1, y-1, x+len(text)*LabelCharWidth+1, y+LabelLineHeight+1)
		draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + basicfont.Face7x13.Ascent)},
	}
	d.DrawString(text)
}
