package scorer

import (
	"encoding/binary"
	"fmt"
	"image"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ironsheep/emblem-match/internal/match"
)

// Template is a reference emblem reduced to its edge map. It is computed once
// and never mutated, so one Template can be shared by concurrent Score calls.
type Template struct {
	// Width and Height are the template dimensions. They never change.
	Width  int
	Height int

	// Edges is the template's binary edge map.
	Edges *image.Gray

	// Low and High are the thresholds that produced Edges.
	Low  int
	High int

	prepared    *match.Template
	fingerprint uint64
}

// NewTemplate extracts the edge map of img with the template thresholds of
// cfg, using the backend cfg names.
func NewTemplate(img image.Image, cfg Config) (*Template, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, _ := LookupBackend(cfg.Backend)
	return newTemplate(img, b, cfg.TemplateEdgeLow, cfg.TemplateEdgeHigh)
}

func newTemplate(img image.Image, b Backend, low, high int) (*Template, error) {
	size := img.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return nil, fmt.Errorf("template image has zero size")
	}

	edges := b.Edges(img, low, high)
	t := &Template{
		Width:    size.X,
		Height:   size.Y,
		Edges:    edges,
		Low:      low,
		High:     high,
		prepared: match.Prepare(edges),
	}

	h := xxhash.New()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[:4], uint32(t.Width))
	binary.LittleEndian.PutUint32(dims[4:], uint32(t.Height))
	_, _ = h.Write(dims[:])
	_, _ = h.Write(edges.Pix)
	t.fingerprint = h.Sum64()

	return t, nil
}

// Samples returns the number of edge pixels in the template. A template with
// no edges matches nothing and every score against it is 0.
func (t *Template) Samples() int {
	return t.prepared.Samples()
}

// Fingerprint identifies the template's edge map. Equal edge maps have equal
// fingerprints.
func (t *Template) Fingerprint() string {
	return strconv.FormatUint(t.fingerprint, 16)
}
