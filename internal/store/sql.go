package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ironsheep/emblem-match/internal/evaluate"
)

// RunModel is one saved evaluation.
type RunModel struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	Threshold float64   `gorm:"not null;default:0"`
	Positives int       `gorm:"not null;default:0"`
	Negatives int       `gorm:"not null;default:0"`
}

func (RunModel) TableName() string {
	return "emblem_runs"
}

// ScoreModel is one image score of a run.
type ScoreModel struct {
	ID       uint    `gorm:"primaryKey"`
	Run      uint    `gorm:"not null;uniqueIndex:emblem_score_run_label_pos,priority:1"`
	Label    string  `gorm:"size:16;not null;uniqueIndex:emblem_score_run_label_pos,priority:2"`
	Position int     `gorm:"not null;uniqueIndex:emblem_score_run_label_pos,priority:3"`
	Name     string  `gorm:"size:255"`
	Score    float64 `gorm:"not null"`
}

func (ScoreModel) TableName() string {
	return "emblem_scores"
}

// OpenDB opens dsn with the postgres driver for postgres:// and
// postgresql:// URLs and with sqlite otherwise, then migrates the tables.
func OpenDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the score tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&RunModel{}, &ScoreModel{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// SQL keeps every saved score set as a separate run.
type SQL struct {
	db *gorm.DB
}

var _ Sink = (*SQL)(nil)

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// Save stores set as a new run.
func (s *SQL) Save(ctx context.Context, set evaluate.LabeledScoreSet) error {
	_, err := s.save(ctx, set, nil, nil, 0)
	return err
}

// SaveReport stores the scores of r together with the image names and the
// threshold. It returns the new run id.
func (s *SQL) SaveReport(ctx context.Context, r *evaluate.Report) (uint, error) {
	return s.save(ctx, r.Scores, r.PositiveNames, r.NegativeNames, r.Threshold)
}

func (s *SQL) save(ctx context.Context, set evaluate.LabeledScoreSet, posNames, negNames []string, threshold float64) (uint, error) {
	run := RunModel{
		CreatedAt: time.Now().UTC(),
		Threshold: threshold,
		Positives: len(set.Positive),
		Negatives: len(set.Negative),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		rows := make([]ScoreModel, 0, len(set.Positive)+len(set.Negative))
		rows = appendRows(rows, run.ID, evaluate.Positive, set.Positive, posNames)
		rows = appendRows(rows, run.ID, evaluate.Negative, set.Negative, negNames)
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save scores: %w", err)
	}
	return run.ID, nil
}

func appendRows(rows []ScoreModel, run uint, label evaluate.Label, scores []float64, names []string) []ScoreModel {
	for i, v := range scores {
		m := ScoreModel{Run: run, Label: string(label), Position: i, Score: v}
		if i < len(names) {
			m.Name = names[i]
		}
		rows = append(rows, m)
	}
	return rows
}

// Load returns the most recent run. Without any run it fails with
// ErrNoScores.
func (s *SQL) Load(ctx context.Context) (evaluate.LabeledScoreSet, error) {
	var run RunModel
	err := s.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return evaluate.LabeledScoreSet{}, ErrNoScores
	}
	if err != nil {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("failed to load run: %w", err)
	}
	return s.LoadRun(ctx, run.ID)
}

// LoadRun returns the scores of one run in their saved order. An unknown
// run fails with ErrNoScores.
func (s *SQL) LoadRun(ctx context.Context, run uint) (evaluate.LabeledScoreSet, error) {
	err := s.db.WithContext(ctx).First(&RunModel{}, run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("%w: run %d", ErrNoScores, run)
	}
	if err != nil {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("failed to load run: %w", err)
	}

	var rows []ScoreModel
	err = s.db.WithContext(ctx).
		Where("run = ?", run).
		Order("label DESC").
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return evaluate.LabeledScoreSet{}, fmt.Errorf("failed to load scores: %w", err)
	}

	set := evaluate.LabeledScoreSet{Positive: []float64{}, Negative: []float64{}}
	for _, m := range rows {
		switch evaluate.Label(m.Label) {
		case evaluate.Positive:
			set.Positive = append(set.Positive, m.Score)
		case evaluate.Negative:
			set.Negative = append(set.Negative, m.Score)
		}
	}
	return set, nil
}

// Runs lists saved runs, newest first.
func (s *SQL) Runs(ctx context.Context) ([]RunModel, error) {
	var runs []RunModel
	if err := s.db.WithContext(ctx).Order("id DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
