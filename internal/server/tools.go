package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image stays cached for subsequent calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},

		// Edge Maps
		{
			Name:        "emblem_edge_detect",
			Description: "Compute the binary edge map the scorer sees. Fixed policy uses the given thresholds; adaptive policy derives them from the median intensity. Returns the map as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"policy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"fixed", "adaptive"},
						"description": "Threshold policy. Default fixed",
						"default":     "fixed",
					},
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Weak edge threshold for the fixed policy. Default 150",
						"default":     150,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "Strong edge threshold for the fixed policy. Default 200",
						"default":     200,
					},
					"sigma": map[string]interface{}{
						"type":        "number",
						"description": "Sensitivity of the adaptive policy, in (0,1). Default 0.5",
						"default":     0.5,
					},
				},
				"required": []string{"path"},
			},
		},

		// Scoring
		{
			Name:        "emblem_score",
			Description: "Score how strongly the emblem template appears in an image, searching over a pyramid of downscaled copies. Returns the score in [0,1], the verdict and the best match location.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"template": map[string]interface{}{
						"type":        "string",
						"description": "Optional template image path. Defaults to the configured template",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Optional decision threshold. Defaults to the configured threshold",
					},
					"include_crop": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the best matching region of the source image as base64-encoded PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "emblem_classify",
			Description: "Turn a score into a positive or negative verdict.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"score": map[string]interface{}{
						"type":        "number",
						"description": "Score in [0,1]",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Optional decision threshold. Defaults to the configured threshold",
					},
				},
				"required": []string{"score"},
			},
		},

		// Evaluation
		{
			Name:        "emblem_evaluate",
			Description: "Score every image of a positive and a negative directory and report per-group statistics and confusion counts.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"positive_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory of images that contain the emblem",
					},
					"negative_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory of images that do not contain the emblem",
					},
					"template": map[string]interface{}{
						"type":        "string",
						"description": "Optional template image path. Defaults to the configured template",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Optional decision threshold. Defaults to the configured threshold",
					},
					"workers": map[string]interface{}{
						"type":        "integer",
						"description": "Optional number of images scored in parallel",
					},
				},
				"required": []string{"positive_dir", "negative_dir"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
