package evaluate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/emblem-match/internal/classify"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

// ErrEmptyDataset is returned when a label group has no scored image.
var ErrEmptyDataset = errors.New("dataset has no scorable images")

// Label tags a group of images.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
)

// Scorer scores one decoded image. *scorer.Bound and store.CachedScorer
// satisfy it.
type Scorer interface {
	Score(ctx context.Context, img image.Image) (scorer.Result, error)
}

// Loader decodes the image at path.
type Loader interface {
	Load(path string) (image.Image, error)
}

// LoaderFunc adapts a function such as imaging.Load to Loader.
type LoaderFunc func(path string) (image.Image, error)

func (f LoaderFunc) Load(path string) (image.Image, error) {
	return f(path)
}

// Evaluator scores labeled datasets with a pool of workers.
type Evaluator struct {
	Scorer Scorer
	Loader Loader

	// Threshold for the confusion counts, used as given: a score equal to
	// it is positive, so 0 counts every image as positive. Callers start
	// from classify.DefaultThreshold.
	Threshold float64

	// Workers bounds the number of images scored at once. Zero means
	// runtime.NumCPU().
	Workers int

	// Progress, when set, is called after each image with the number of
	// images finished so far. Calls are serialized.
	Progress func(done, total int)

	Log logger.Logger
}

type job struct {
	label Label
	entry Entry
}

type outcome struct {
	score   float64
	levels  int
	skipErr error
}

// Evaluate scores every positive and negative entry and builds the report.
//
// Images that fail to load are recorded in Report.Skipped and do not fail
// the run. Scores keep the input order of each group regardless of worker
// count. Cancelling ctx stops the run between images and returns ctx.Err().
// A group without any scored image fails with ErrEmptyDataset.
func (e *Evaluator) Evaluate(ctx context.Context, positives, negatives []Entry) (*Report, error) {
	log := logger.OrNop(e.Log)
	threshold := e.Threshold
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make([]job, 0, len(positives)+len(negatives))
	for _, en := range positives {
		jobs = append(jobs, job{label: Positive, entry: en})
	}
	for _, en := range negatives {
		jobs = append(jobs, job{label: Negative, entry: en})
	}

	results := make([]outcome, len(jobs))
	var (
		progressMu sync.Mutex
		done       int
	)
	finished := func() {
		if e.Progress == nil {
			return
		}
		progressMu.Lock()
		done++
		e.Progress(done, len(jobs))
		progressMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, j := range jobs {
		i, j := i, j
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			img, err := e.Loader.Load(j.entry.Path)
			if err != nil {
				log.Warning("evaluate", "skipping unreadable image", map[string]interface{}{
					"label": string(j.label),
					"name":  j.entry.Name,
					"error": err.Error(),
				})
				results[i] = outcome{skipErr: err}
				finished()
				return nil
			}

			res, err := e.Scorer.Score(gctx, img)
			if err != nil {
				return fmt.Errorf("failed to score %s: %w", j.entry.Path, err)
			}
			results[i] = outcome{score: res.Score, levels: res.Levels}
			finished()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Threshold: threshold}
	for i, j := range jobs {
		r := results[i]
		if r.skipErr != nil {
			report.Skipped = append(report.Skipped, Skipped{Label: j.label, Name: j.entry.Name, Error: r.skipErr.Error()})
			continue
		}
		if r.levels == 0 {
			report.Unattempted++
		}
		switch j.label {
		case Positive:
			report.Scores.Positive = append(report.Scores.Positive, r.score)
			report.PositiveNames = append(report.PositiveNames, j.entry.Name)
		case Negative:
			report.Scores.Negative = append(report.Scores.Negative, r.score)
			report.NegativeNames = append(report.NegativeNames, j.entry.Name)
		}
	}

	if len(report.Scores.Positive) == 0 {
		return nil, fmt.Errorf("%w: positive set (%d entries)", ErrEmptyDataset, len(positives))
	}
	if len(report.Scores.Negative) == 0 {
		return nil, fmt.Errorf("%w: negative set (%d entries)", ErrEmptyDataset, len(negatives))
	}

	report.Positive = Summarize(report.Scores.Positive)
	report.Negative = Summarize(report.Scores.Negative)
	report.Confusion = classify.Tally(report.Scores.Positive, report.Scores.Negative, threshold)

	log.Info("evaluate", "dataset evaluated", map[string]interface{}{
		"positives": len(report.Scores.Positive),
		"negatives": len(report.Scores.Negative),
		"skipped":   len(report.Skipped),
		"workers":   workers,
	})
	return report, nil
}

// EvaluateDirs enumerates both directories and evaluates them.
func (e *Evaluator) EvaluateDirs(ctx context.Context, positiveDir, negativeDir string) (*Report, error) {
	positives, err := Enumerate(positiveDir)
	if err != nil {
		return nil, fmt.Errorf("positive set: %w", err)
	}
	negatives, err := Enumerate(negativeDir)
	if err != nil {
		return nil, fmt.Errorf("negative set: %w", err)
	}
	return e.Evaluate(ctx, positives, negatives)
}
