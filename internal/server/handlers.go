package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/emblem-match/internal/classify"
	"github.com/ironsheep/emblem-match/internal/evaluate"
	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "emblem_score").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies configured defaults for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate imaging/scorer/evaluate function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)

	// Edge Maps
	case "emblem_edge_detect":
		return s.handleEmblemEdgeDetect(args)

	// Scoring
	case "emblem_score":
		return s.handleEmblemScore(args)
	case "emblem_classify":
		return s.handleEmblemClassify(args)

	// Evaluation
	case "emblem_evaluate":
		return s.handleEmblemEvaluate(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Edge Map Handlers ===

type emblemEdgeDetectArgs struct {
	Path          string  `json:"path"`
	Policy        string  `json:"policy"`
	ThresholdLow  int     `json:"threshold_low"`
	ThresholdHigh int     `json:"threshold_high"`
	Sigma         float64 `json:"sigma"`
}

func (s *Server) handleEmblemEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a emblemEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Policy == "" {
		a.Policy = scorer.PolicyFixed
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = imaging.DefaultEdgeLow
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = imaging.DefaultEdgeHigh
	}
	if a.Sigma == 0 {
		a.Sigma = imaging.DefaultSigma
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	switch a.Policy {
	case scorer.PolicyFixed:
		if a.ThresholdLow < 0 || a.ThresholdLow > a.ThresholdHigh {
			return nil, fmt.Errorf("invalid thresholds %d/%d", a.ThresholdLow, a.ThresholdHigh)
		}
		return imaging.EncodeEdges(imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh), a.ThresholdLow, a.ThresholdHigh)
	case scorer.PolicyAdaptive:
		if a.Sigma <= 0 || a.Sigma >= 1 {
			return nil, fmt.Errorf("sigma %v outside (0,1)", a.Sigma)
		}
		edges, low, high := imaging.AutoEdgeDetectThresholds(img, a.Sigma)
		return imaging.EncodeEdges(edges, low, high)
	default:
		return nil, fmt.Errorf("unknown policy %q", a.Policy)
	}
}

// === Scoring Handlers ===

// matchBox is a rectangle in source image coordinates.
type matchBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// bestMatch describes the pyramid level that produced the score.
type bestMatch struct {
	Level int      `json:"level"`
	Scale float64  `json:"scale"`
	Box   matchBox `json:"box"`
}

// ScoreResult is the emblem_score payload.
type ScoreResult struct {
	Score     float64             `json:"score"`
	Verdict   string              `json:"verdict"`
	Threshold float64             `json:"threshold"`
	Attempted bool                `json:"attempted"`
	Levels    int                 `json:"levels"`
	Template  string              `json:"template"`
	Best      *bestMatch          `json:"best,omitempty"`
	Crop      *imaging.CropResult `json:"crop,omitempty"`
}

type emblemScoreArgs struct {
	Path        string   `json:"path"`
	Template    string   `json:"template"`
	Threshold   *float64 `json:"threshold"`
	IncludeCrop bool     `json:"include_crop"`
}

func (s *Server) handleEmblemScore(args json.RawMessage) (interface{}, error) {
	var a emblemScoreArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	threshold := s.threshold(a.Threshold)

	bound, templatePath, err := s.boundScorer(a.Template)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := bound.Score(context.Background(), img)
	if err != nil {
		return nil, err
	}

	out := &ScoreResult{
		Score:     res.Score,
		Verdict:   classify.Verdict(res.Score, threshold),
		Threshold: threshold,
		Attempted: res.Attempted(),
		Levels:    res.Levels,
		Template:  templatePath,
	}
	if res.Best != nil {
		r := res.Best.SourceBox()
		out.Best = &bestMatch{
			Level: res.Best.Index,
			Scale: res.Best.Scale(),
			Box:   matchBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y},
		}
		if a.IncludeCrop && !r.Empty() {
			crop, err := imaging.EncodeCrop(img, r.Add(img.Bounds().Min))
			if err != nil {
				return nil, err
			}
			out.Crop = crop
		}
	}

	s.log.Debug("server", "scored image", map[string]interface{}{
		"path":   a.Path,
		"score":  res.Score,
		"levels": res.Levels,
	})
	return out, nil
}

type emblemClassifyArgs struct {
	Score     float64  `json:"score"`
	Threshold *float64 `json:"threshold"`
}

// ClassifyResult is the emblem_classify payload.
type ClassifyResult struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Positive  bool    `json:"positive"`
	Verdict   string  `json:"verdict"`
}

func (s *Server) handleEmblemClassify(args json.RawMessage) (interface{}, error) {
	var a emblemClassifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	threshold := s.threshold(a.Threshold)
	return &ClassifyResult{
		Score:     a.Score,
		Threshold: threshold,
		Positive:  classify.Classify(a.Score, threshold),
		Verdict:   classify.Verdict(a.Score, threshold),
	}, nil
}

// === Evaluation Handlers ===

type emblemEvaluateArgs struct {
	PositiveDir string   `json:"positive_dir"`
	NegativeDir string   `json:"negative_dir"`
	Template    string   `json:"template"`
	Threshold   *float64 `json:"threshold"`
	Workers     int      `json:"workers"`
}

func (s *Server) handleEmblemEvaluate(args json.RawMessage) (interface{}, error) {
	var a emblemEvaluateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.PositiveDir == "" || a.NegativeDir == "" {
		return nil, fmt.Errorf("positive_dir and negative_dir are required")
	}
	if a.Workers <= 0 {
		a.Workers = s.cfg.Workers
	}

	bound, _, err := s.boundScorer(a.Template)
	if err != nil {
		return nil, err
	}

	e := &evaluate.Evaluator{
		Scorer:    bound,
		Loader:    evaluate.LoaderFunc(imaging.Load),
		Threshold: s.threshold(a.Threshold),
		Workers:   a.Workers,
		Log:       s.log,
	}
	return e.EvaluateDirs(context.Background(), a.PositiveDir, a.NegativeDir)
}

// === Helpers ===

func (s *Server) threshold(v *float64) float64 {
	if v != nil {
		return *v
	}
	return s.cfg.Threshold
}

// boundScorer returns the scorer for the template at path, building and
// caching it on first use. An empty path selects the configured template.
func (s *Server) boundScorer(path string) (*scorer.Bound, string, error) {
	if path == "" {
		path = s.cfg.TemplatePath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.scorers[path]; ok {
		return b, path, nil
	}

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load template: %w", err)
	}
	sc, err := scorer.New(s.cfg.Scorer, scorer.WithLogger(s.log))
	if err != nil {
		return nil, path, err
	}
	t, err := sc.Template(img)
	if err != nil {
		return nil, path, err
	}

	b := scorer.Bind(sc, t)
	s.scorers[path] = b
	s.log.Info("server", "template prepared", map[string]interface{}{
		"template":    path,
		"samples":     t.Samples(),
		"fingerprint": b.Fingerprint(),
	})
	return b, path, nil
}
