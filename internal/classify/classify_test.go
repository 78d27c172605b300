package classify

import (
	"math"
	"testing"
)

func TestClassify_Boundary(t *testing.T) {
	tests := []struct {
		score     float64
		threshold float64
		want      bool
	}{
		{DefaultThreshold, DefaultThreshold, true},
		{math.Nextafter(DefaultThreshold, 0), DefaultThreshold, false},
		{DefaultThreshold - 1e-9, DefaultThreshold, false},
		{1, DefaultThreshold, true},
		{0, DefaultThreshold, false},
		{0, 0, true},
		{0.5, 0.5, true},
	}
	for _, tt := range tests {
		if got := Classify(tt.score, tt.threshold); got != tt.want {
			t.Errorf("Classify(%v, %v): got %v, want %v", tt.score, tt.threshold, got, tt.want)
		}
	}
}

func TestVerdict(t *testing.T) {
	if got := Verdict(0.9, DefaultThreshold); got != "positive" {
		t.Errorf("Verdict(0.9): got %s, want positive", got)
	}
	if got := Verdict(0.1, DefaultThreshold); got != "negative" {
		t.Errorf("Verdict(0.1): got %s, want negative", got)
	}
}

func TestTally(t *testing.T) {
	c := Tally([]float64{0.9, 0.5, 0.2}, []float64{0.1, 0.4}, 0.35)

	want := Confusion{CorrectPositives: 2, FalseNegatives: 1, CorrectNegatives: 1, FalsePositives: 1}
	if c != want {
		t.Fatalf("Tally: got %+v, want %+v", c, want)
	}
	if c.Total() != 5 {
		t.Errorf("Total: got %d, want 5", c.Total())
	}
	if got := c.Precision(); got != 2.0/3.0 {
		t.Errorf("Precision: got %v, want 2/3", got)
	}
	if got := c.Recall(); got != 2.0/3.0 {
		t.Errorf("Recall: got %v, want 2/3", got)
	}
	if got := c.Accuracy(); got != 3.0/5.0 {
		t.Errorf("Accuracy: got %v, want 0.6", got)
	}
}

func TestTally_Empty(t *testing.T) {
	c := Tally(nil, nil, DefaultThreshold)
	if c != (Confusion{}) {
		t.Errorf("empty Tally: got %+v", c)
	}
	if c.Precision() != 0 || c.Recall() != 0 || c.Accuracy() != 0 {
		t.Error("ratios of an empty tally should be 0")
	}
}
