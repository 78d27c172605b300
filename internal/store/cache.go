package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/emblem-match/internal/scorer"
)

// DefaultCacheTTL applies when NewCachedScorer gets a non-positive ttl.
const DefaultCacheTTL = 24 * time.Hour

// FingerprintScorer is a scorer whose results depend only on the image and
// on the settings named by Fingerprint. *scorer.Bound satisfies it.
type FingerprintScorer interface {
	Score(ctx context.Context, img image.Image) (scorer.Result, error)
	Fingerprint() string
}

// CachedScorer decorates a scorer with a Redis cache of scores. Cached
// results carry the score and the level count only.
type CachedScorer struct {
	inner     FingerprintScorer
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

type cachedScore struct {
	Score  float64 `json:"score"`
	Levels int     `json:"levels"`
}

// NewCachedScorer wraps inner. A nil rdb disables caching. An empty
// namespace becomes "emblem".
func NewCachedScorer(rdb *redis.Client, ttl time.Duration, inner FingerprintScorer, namespace string) *CachedScorer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if namespace == "" {
		namespace = "emblem"
	}
	return &CachedScorer{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Score returns the cached score of img when present and scores it
// otherwise. Cache failures never fail the call.
func (c *CachedScorer) Score(ctx context.Context, img image.Image) (scorer.Result, error) {
	if c.rdb == nil {
		return c.inner.Score(ctx, img)
	}

	key := c.cacheKey(img)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var hit cachedScore
		if err := json.Unmarshal(b, &hit); err == nil {
			return scorer.Result{Score: hit.Score, Levels: hit.Levels}, nil
		}
		// corrupt entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	res, err := c.inner.Score(ctx, img)
	if err != nil {
		return scorer.Result{}, err
	}

	if b, err := json.Marshal(cachedScore{Score: res.Score, Levels: res.Levels}); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}
	return res, nil
}

// Fingerprint forwards the inner fingerprint.
func (c *CachedScorer) Fingerprint() string {
	return c.inner.Fingerprint()
}

func (c *CachedScorer) cacheKey(img image.Image) string {
	return fmt.Sprintf("%s:%s:%016x", c.namespace, safe(c.inner.Fingerprint()), PixelHash(img))
}

// PixelHash hashes the size and the NRGBA pixels of img. Images with equal
// pixels hash equally regardless of their concrete type or origin.
func PixelHash(img image.Image) uint64 {
	var nrgba *image.NRGBA
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		nrgba = n
	} else {
		nrgba = imaging.Clone(img)
	}

	h := xxhash.New()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(nrgba.Rect.Dx()))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(nrgba.Rect.Dy()))
	_, _ = h.Write(dims[:])
	_, _ = h.Write(nrgba.Pix)
	return h.Sum64()
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
