package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/emblem-match/internal/evaluate"
)

// ErrNoScores is returned by Load when nothing has been saved yet.
var ErrNoScores = errors.New("no stored scores")

// Sink saves and restores a labeled score set.
type Sink interface {
	Save(ctx context.Context, set evaluate.LabeledScoreSet) error
	Load(ctx context.Context) (evaluate.LabeledScoreSet, error)
}

// JSONFile stores a score set as one JSON document.
type JSONFile struct {
	Path string
}

var _ Sink = (*JSONFile)(nil)

// scoreDocument accepts both the current keys and the older
// original_scores / fake_scores naming.
type scoreDocument struct {
	Positive *[]float64 `json:"positive_scores,omitempty"`
	Negative *[]float64 `json:"negative_scores,omitempty"`
	Original *[]float64 `json:"original_scores,omitempty"`
	Fake     *[]float64 `json:"fake_scores,omitempty"`
}

// Save writes set to the file, replacing previous content.
func (f *JSONFile) Save(ctx context.Context, set evaluate.LabeledScoreSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if set.Positive == nil {
		set.Positive = []float64{}
	}
	if set.Negative == nil {
		set.Negative = []float64{}
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scores: %w", err)
	}
	return nil
}

// Load reads the file. A missing file yields ErrNoScores.
func (f *JSONFile) Load(ctx context.Context) (evaluate.LabeledScoreSet, error) {
	if err := ctx.Err(); err != nil {
		return evaluate.LabeledScoreSet{}, err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("%w: %s", ErrNoScores, f.Path)
	}
	if err != nil {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("failed to read scores: %w", err)
	}

	var doc scoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("failed to parse scores: %w", err)
	}

	var set evaluate.LabeledScoreSet
	switch {
	case doc.Positive != nil || doc.Negative != nil:
		set.Positive = deref(doc.Positive)
		set.Negative = deref(doc.Negative)
	case doc.Original != nil || doc.Fake != nil:
		set.Positive = deref(doc.Original)
		set.Negative = deref(doc.Fake)
	default:
		return evaluate.LabeledScoreSet{}, fmt.Errorf("%w: %s has no score keys", ErrNoScores, f.Path)
	}
	return set, nil
}

func deref(p *[]float64) []float64 {
	if p == nil {
		return []float64{}
	}
	return *p
}
