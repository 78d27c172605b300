package scorer

import (
	"image"
	"sort"
	"sync"

	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/match"
)

// NativeBackend is the name of the pure Go backend.
const NativeBackend = "native"

// Backend supplies the image primitives of the pyramid loop. Implementations
// must be deterministic and safe for concurrent use.
type Backend interface {
	// Edges returns a binary edge map of img with fixed thresholds.
	Edges(img image.Image, low, high int) *image.Gray

	// AutoEdges returns a binary edge map with median-derived thresholds.
	AutoEdges(img image.Image, sigma float64) *image.Gray

	// Match correlates t over edges. It returns an error wrapping
	// match.ErrSizeMismatch when edges is smaller than t.
	Match(edges *image.Gray, t *Template) (*match.Result, error)

	// Downscale shrinks img by ratio with truncated dimensions. It reports
	// false when a dimension would reach zero.
	Downscale(img image.Image, ratio float64) (image.Image, bool)
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{
		NativeBackend: native{},
	}
)

// RegisterBackend makes b selectable by name through Config.Backend.
func RegisterBackend(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = b
}

// LookupBackend returns the backend registered under name.
func LookupBackend(name string) (Backend, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	return b, ok
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// native runs everything in Go on top of the imaging and match packages.
type native struct{}

func (native) Edges(img image.Image, low, high int) *image.Gray {
	return imaging.FixedEdges{Low: low, High: high}.Edges(img)
}

func (native) AutoEdges(img image.Image, sigma float64) *image.Gray {
	return imaging.AdaptiveEdges{Sigma: sigma}.Edges(img)
}

func (native) Match(edges *image.Gray, t *Template) (*match.Result, error) {
	return match.Match(edges, t.prepared)
}

func (native) Downscale(img image.Image, ratio float64) (image.Image, bool) {
	return imaging.Downscale(img, ratio)
}
