package scorer

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/match"
)

// Level is the outcome of matching at one pyramid level.
type Level struct {
	// Index is 0 for the full-resolution image and grows with each downscale.
	Index int

	// Size is the image size at this level; Source is the full-resolution size.
	Size   image.Point
	Source image.Point

	// Template is the template size.
	Template image.Point

	// Loc is the top-left corner of the best window; Value its score.
	Loc   image.Point
	Value float64

	// Edges and Surface are kept only with Config.Diagnostics.
	Edges   *image.Gray
	Surface *match.Surface
}

// Scale returns the ratio of this level's width to the source width.
func (l Level) Scale() float64 {
	if l.Source.X == 0 {
		return 0
	}
	return float64(l.Size.X) / float64(l.Source.X)
}

// Box returns the best window in level coordinates.
func (l Level) Box() image.Rectangle {
	return image.Rectangle{Min: l.Loc, Max: l.Loc.Add(l.Template)}
}

// SourceBox maps Box back to full-resolution coordinates, clipped to the
// source image.
func (l Level) SourceBox() image.Rectangle {
	if l.Size.X == 0 || l.Size.Y == 0 {
		return image.Rectangle{}
	}
	fx := float64(l.Source.X) / float64(l.Size.X)
	fy := float64(l.Source.Y) / float64(l.Size.Y)
	box := l.Box()
	r := image.Rect(
		int(math.Floor(float64(box.Min.X)*fx)),
		int(math.Floor(float64(box.Min.Y)*fy)),
		int(math.Ceil(float64(box.Max.X)*fx)),
		int(math.Ceil(float64(box.Max.Y)*fy)),
	)
	return r.Intersect(image.Rectangle{Max: l.Source})
}

// Result is the outcome of scoring one image.
type Result struct {
	// Score is the largest correlation seen across all levels, in [0,1].
	Score float64

	// Levels is the number of pyramid levels that were matched.
	Levels int

	// Best is the level that produced Score, nil when no level ran.
	Best *Level
}

// Attempted reports whether at least one pyramid level was matched. A result
// that was not attempted has Score 0, which is distinct from matching with
// score 0.
func (r Result) Attempted() bool {
	return r.Levels > 0
}

// Reduce folds levels into the one with the highest Value. The second result
// is false when levels is empty.
//
// Ties keep the earlier level: a later level that only equals the best value
// does not replace its Loc, Edges or Surface. The score is the same either
// way; a fold that overwrites on equality would instead report the last
// tying level in diagnostics.
func Reduce(levels []Level) (Level, bool) {
	var best *Level
	for i := range levels {
		best = better(best, &levels[i])
	}
	if best == nil {
		return Level{}, false
	}
	return *best, true
}

// better returns the running best after considering candidate. Only a
// strictly greater value replaces an existing best.
func better(best, candidate *Level) *Level {
	if best == nil || candidate.Value > best.Value {
		return candidate
	}
	return best
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger for per-level debug output.
func WithLogger(log logger.Logger) Option {
	return func(s *Scorer) { s.log = logger.OrNop(log) }
}

// WithBackend overrides the backend named in the configuration.
func WithBackend(b Backend) Option {
	return func(s *Scorer) { s.backend = b }
}

// Scorer runs the scale pyramid. It holds no mutable state and is safe for
// concurrent use.
type Scorer struct {
	cfg     Config
	backend Backend
	log     logger.Logger
}

// New validates cfg and returns a Scorer.
func New(cfg Config, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, _ := LookupBackend(cfg.Backend)
	s := &Scorer{cfg: cfg, backend: b, log: logger.Nop{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Template extracts a template from img with this scorer's backend and
// template thresholds.
func (s *Scorer) Template(img image.Image) (*Template, error) {
	return newTemplate(img, s.backend, s.cfg.TemplateEdgeLow, s.cfg.TemplateEdgeHigh)
}

// Score searches img for t at every pyramid level.
//
// The loop runs while the current image is at least as large as the template
// in both dimensions. Each level is edge-detected, correlated with the
// template and folded into the running best; the image is then shrunk by
// Config.Downscale with truncated dimensions. When the template is larger than
// img the loop never runs and the result is not attempted.
//
// Score panics if the backend reports a size mismatch, since the loop guard
// makes that impossible for a correct backend.
func (s *Scorer) Score(img image.Image, t *Template) Result {
	var res Result
	source := img.Bounds().Size()
	tsize := image.Point{X: t.Width, Y: t.Height}

	current := img
	for index := 0; ; index++ {
		size := current.Bounds().Size()
		if size.X < t.Width || size.Y < t.Height {
			break
		}

		edges := s.levelEdges(current)
		m, err := s.backend.Match(edges, t)
		if err != nil {
			panic(fmt.Errorf("pyramid level %d (%dx%d): %w", index, size.X, size.Y, err))
		}
		res.Levels++

		level := &Level{
			Index:    index,
			Size:     size,
			Source:   source,
			Template: tsize,
			Loc:      m.Loc,
			Value:    m.Best,
		}
		if s.cfg.Diagnostics {
			level.Edges = edges
			level.Surface = m.Surface
		}
		res.Best = better(res.Best, level)

		s.log.Debug("scorer", "level matched", map[string]interface{}{
			"level":  index,
			"width":  size.X,
			"height": size.Y,
			"value":  m.Best,
		})

		next, ok := s.backend.Downscale(current, s.cfg.Downscale)
		if !ok {
			break
		}
		current = next
	}

	if res.Best != nil {
		res.Score = res.Best.Value
	}
	return res
}

func (s *Scorer) levelEdges(img image.Image) *image.Gray {
	if s.cfg.Policy == PolicyAdaptive {
		return s.backend.AutoEdges(img, s.cfg.Sigma)
	}
	return s.backend.Edges(img, s.cfg.EdgeLow, s.cfg.EdgeHigh)
}

// Bound is a Scorer paired with one Template, the unit the evaluator and the
// caches work with.
type Bound struct {
	scorer   *Scorer
	template *Template
	key      string
}

// Bind pairs s with t.
func Bind(s *Scorer, t *Template) *Bound {
	h := xxhash.New()
	_, _ = h.WriteString(t.Fingerprint())
	c := s.cfg
	_, _ = fmt.Fprintf(h, "|%d|%d|%v|%s|%v|%s", c.EdgeLow, c.EdgeHigh, c.Downscale, c.Policy, c.Sigma, c.Backend)
	return &Bound{scorer: s, template: t, key: fmt.Sprintf("%016x", h.Sum64())}
}

// Open builds a scorer from cfg and binds it to the template image at path.
func Open(cfg Config, path string, opts ...Option) (*Bound, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", path, err)
	}
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	t, err := s.Template(img)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return Bind(s, t), nil
}

// Score scores img against the bound template. ctx is checked before the work
// starts; a single score is not interrupted once running.
func (b *Bound) Score(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return b.scorer.Score(img, b.template), nil
}

// Fingerprint identifies the template together with every setting that
// affects the score.
func (b *Bound) Fingerprint() string {
	return b.key
}

// Template returns the bound template.
func (b *Bound) Template() *Template {
	return b.template
}

// Scorer returns the underlying scorer.
func (b *Bound) Scorer() *Scorer {
	return b.scorer
}
