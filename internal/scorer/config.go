package scorer

import (
	"errors"
	"fmt"

	"github.com/ironsheep/emblem-match/internal/imaging"
)

// ErrConfig marks an invalid scorer configuration.
var ErrConfig = errors.New("invalid scorer configuration")

// Edge policies for pyramid levels.
const (
	PolicyFixed    = "fixed"
	PolicyAdaptive = "adaptive"
)

// DefaultDownscale is the ratio applied to both dimensions between pyramid levels.
const DefaultDownscale = 0.8

// Config holds every tunable of the scale pyramid scorer.
type Config struct {
	// EdgeLow and EdgeHigh are the hysteresis thresholds applied to every
	// pyramid level under the fixed policy.
	EdgeLow  int `json:"edge_low"`
	EdgeHigh int `json:"edge_high"`

	// TemplateEdgeLow and TemplateEdgeHigh are applied once to the template.
	TemplateEdgeLow  int `json:"template_edge_low"`
	TemplateEdgeHigh int `json:"template_edge_high"`

	// Downscale is the ratio between consecutive pyramid levels, in (0,1).
	Downscale float64 `json:"downscale"`

	// Policy selects fixed or adaptive (median-derived) edge thresholds for
	// pyramid levels. The template always uses fixed thresholds.
	Policy string `json:"policy"`

	// Sigma is the sensitivity of the adaptive policy.
	Sigma float64 `json:"sigma"`

	// Backend names a registered Backend ("native", or "opencv" when built
	// with the gocv tag).
	Backend string `json:"backend"`

	// Diagnostics keeps the best level's edge map and match surface in the
	// Result.
	Diagnostics bool `json:"diagnostics"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		EdgeLow:          imaging.DefaultEdgeLow,
		EdgeHigh:         imaging.DefaultEdgeHigh,
		TemplateEdgeLow:  imaging.DefaultEdgeLow,
		TemplateEdgeHigh: imaging.DefaultEdgeHigh,
		Downscale:        DefaultDownscale,
		Policy:           PolicyFixed,
		Sigma:            imaging.DefaultSigma,
		Backend:          NativeBackend,
	}
}

// Validate reports the first problem with c. Returned errors wrap ErrConfig.
func (c Config) Validate() error {
	if !(c.Downscale > 0 && c.Downscale < 1) {
		return fmt.Errorf("%w: downscale must be in (0,1), got %v", ErrConfig, c.Downscale)
	}
	if err := validThresholds("edge", c.EdgeLow, c.EdgeHigh); err != nil {
		return err
	}
	if err := validThresholds("template edge", c.TemplateEdgeLow, c.TemplateEdgeHigh); err != nil {
		return err
	}
	switch c.Policy {
	case PolicyFixed:
	case PolicyAdaptive:
		if c.Sigma <= 0 || c.Sigma >= 1 {
			return fmt.Errorf("%w: sigma must be in (0,1), got %v", ErrConfig, c.Sigma)
		}
	default:
		return fmt.Errorf("%w: unknown edge policy %q", ErrConfig, c.Policy)
	}
	if _, ok := LookupBackend(c.Backend); !ok {
		return fmt.Errorf("%w: backend %q is not available (have %v)", ErrConfig, c.Backend, Backends())
	}
	return nil
}

func validThresholds(name string, low, high int) error {
	if low < 0 || high < 0 {
		return fmt.Errorf("%w: %s thresholds must not be negative", ErrConfig, name)
	}
	if low > high {
		return fmt.Errorf("%w: %s low threshold %d above high threshold %d", ErrConfig, name, low, high)
	}
	return nil
}
