package evaluate

import (
	"fmt"
	"io"

	"github.com/ironsheep/emblem-match/internal/classify"
)

// LabeledScoreSet holds the scores of both label groups in input order.
type LabeledScoreSet struct {
	Positive []float64 `json:"positive_scores"`
	Negative []float64 `json:"negative_scores"`
}

// Stats summarizes one group of scores.
type Stats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Len int     `json:"len"`
	Avg float64 `json:"avg"`
}

// Summarize computes Stats for scores. An empty slice yields the zero value.
func Summarize(scores []float64) Stats {
	if len(scores) == 0 {
		return Stats{}
	}
	st := Stats{Min: scores[0], Max: scores[0], Len: len(scores)}
	var sum float64
	for _, s := range scores {
		if s < st.Min {
			st.Min = s
		}
		if s > st.Max {
			st.Max = s
		}
		sum += s
	}
	st.Avg = sum / float64(len(scores))
	return st
}

// Skipped records an image that could not be loaded.
type Skipped struct {
	Label Label  `json:"label"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report is the outcome of a dataset evaluation.
type Report struct {
	Scores        LabeledScoreSet    `json:"scores"`
	PositiveNames []string           `json:"positive_names"`
	NegativeNames []string           `json:"negative_names"`
	Threshold     float64            `json:"threshold"`
	Positive      Stats              `json:"positive"`
	Negative      Stats              `json:"negative"`
	Confusion     classify.Confusion `json:"confusion"`
	Skipped       []Skipped          `json:"skipped,omitempty"`

	// Unattempted counts images smaller than the template, which score 0
	// without being matched.
	Unattempted int `json:"unattempted"`
}

// WriteText prints the per-group statistics and the confusion counts.
func (r *Report) WriteText(w io.Writer) error {
	groups := []struct {
		adj string
		st  Stats
	}{
		{"negative", r.Negative},
		{"positive", r.Positive},
	}
	for _, g := range groups {
		if _, err := fmt.Fprintf(w, "Scores on %s images:\n    min: %v;\n    max: %v;\n    len: %d;\n    avg: %v;\n",
			g.adj, g.st.Min, g.st.Max, g.st.Len, g.st.Avg); err != nil {
			return err
		}
	}

	c := r.Confusion
	_, err := fmt.Fprintf(w, "correct positives: %d\ncorrect negatives: %d\nfalse-positives: %d\nfalse-negatives: %d\nskipped: %d\n",
		c.CorrectPositives, c.CorrectNegatives, c.FalsePositives, c.FalseNegatives, len(r.Skipped))
	if err != nil {
		return err
	}
	if r.Unattempted > 0 {
		_, err = fmt.Fprintf(w, "smaller than template: %d\n", r.Unattempted)
	}
	return err
}
