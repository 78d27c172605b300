// Package httpapi serves the emblem scorer over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"image"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/emblem-match/internal/classify"
	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

// DefaultMaxUploadBytes limits the multipart body of a score request.
const DefaultMaxUploadBytes = 10 << 20

// formOverhead is the body allowance for multipart headers and other fields.
const formOverhead = 1 << 20

// Scorer scores one decoded image. *scorer.Bound and *store.CachedScorer
// satisfy it.
type Scorer interface {
	Score(ctx context.Context, img image.Image) (scorer.Result, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Box is a rectangle in source image coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ScoreResponse is the body of a successful score request.
type ScoreResponse struct {
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`
	Threshold float64 `json:"threshold"`
	Attempted bool    `json:"attempted"`
	Levels    int     `json:"levels"`
	Box       *Box    `json:"box,omitempty"`
}

// ScoreHandler handles uploads to the scorer.
type ScoreHandler struct {
	scorer    Scorer
	threshold float64
	log       logger.Logger

	// MaxUploadBytes caps the request body.
	MaxUploadBytes int64
}

func NewScoreHandler(s Scorer, threshold float64, log logger.Logger) *ScoreHandler {
	return &ScoreHandler{
		scorer:         s,
		threshold:      threshold,
		log:            logger.OrNop(log),
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// Score scores an uploaded image.
//
// Endpoint: POST /v1/emblem/score
// Content-Type: multipart/form-data
// Field: image (image file, at most MaxUploadBytes)
func (h *ScoreHandler) Score(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+formOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image exceeds upload limit"})
			return
		}
		h.log.Warning("httpapi", "missing image field", map[string]interface{}{
			"error":       err.Error(),
			"remote_addr": c.ClientIP(),
		})
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image file is required"})
		return
	}

	if file.Size > h.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image exceeds upload limit"})
		return
	}

	f, err := file.Open()
	if err != nil {
		h.log.Error("httpapi", err, map[string]interface{}{"stage": "open upload"})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read image"})
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			h.log.Warning("httpapi", "failed to close upload", map[string]interface{}{"error": err.Error()})
		}
	}()

	img, err := imaging.Decode(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is not a decodable image"})
		return
	}

	res, err := h.scorer.Score(c.Request.Context(), img)
	if err != nil {
		h.log.Error("httpapi", err, map[string]interface{}{"stage": "score"})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to score image"})
		return
	}

	out := ScoreResponse{
		Score:     res.Score,
		Verdict:   classify.Verdict(res.Score, h.threshold),
		Threshold: h.threshold,
		Attempted: res.Attempted(),
		Levels:    res.Levels,
	}
	if res.Best != nil {
		r := res.Best.SourceBox()
		out.Box = &Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
	}
	c.JSON(http.StatusOK, out)
}

// Health handles /healthz. Responses are never cached.
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
