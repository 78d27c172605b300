// Package classify turns scores into verdicts and tallies them.
package classify

// DefaultThreshold separates positive from negative scores. It was chosen by
// inspecting score histograms of a labeled dataset.
const DefaultThreshold = 0.35

// Classify reports whether score counts as a match.
func Classify(score, threshold float64) bool {
	return score >= threshold
}

// Verdict returns "positive" or "negative" for score.
func Verdict(score, threshold float64) string {
	if Classify(score, threshold) {
		return "positive"
	}
	return "negative"
}

// Confusion holds the four outcome counts of a labeled evaluation.
type Confusion struct {
	CorrectPositives int `json:"correct_positives"`
	FalseNegatives   int `json:"false_negatives"`
	CorrectNegatives int `json:"correct_negatives"`
	FalsePositives   int `json:"false_positives"`
}

// Tally classifies every score of both groups against threshold.
func Tally(positive, negative []float64, threshold float64) Confusion {
	var c Confusion
	for _, s := range positive {
		if Classify(s, threshold) {
			c.CorrectPositives++
		} else {
			c.FalseNegatives++
		}
	}
	for _, s := range negative {
		if Classify(s, threshold) {
			c.FalsePositives++
		} else {
			c.CorrectNegatives++
		}
	}
	return c
}

// Total returns the number of classified scores.
func (c Confusion) Total() int {
	return c.CorrectPositives + c.FalseNegatives + c.CorrectNegatives + c.FalsePositives
}

// Precision is CP / (CP + FP), or 0 when nothing was predicted positive.
func (c Confusion) Precision() float64 {
	return ratio(c.CorrectPositives, c.CorrectPositives+c.FalsePositives)
}

// Recall is CP / (CP + FN), or 0 without positives.
func (c Confusion) Recall() float64 {
	return ratio(c.CorrectPositives, c.CorrectPositives+c.FalseNegatives)
}

// Accuracy is the share of correct verdicts, or 0 for an empty tally.
func (c Confusion) Accuracy() float64 {
	return ratio(c.CorrectPositives+c.CorrectNegatives, c.Total())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
