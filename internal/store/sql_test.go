package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ironsheep/emblem-match/internal/evaluate"
)

// setupTestDB opens a file-backed SQLite database in a temp directory.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "scores.db"))
	require.NoError(t, err, "failed to initialize test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestSQL_SaveLoad(t *testing.T) {
	s := NewSQL(setupTestDB(t))
	set := evaluate.LabeledScoreSet{
		Positive: []float64{0.9, 0.1, 0.5, 0.3},
		Negative: []float64{0.2, 0.05},
	}

	require.NoError(t, s.Save(context.Background(), set))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestSQL_LoadReturnsLatestRun(t *testing.T) {
	s := NewSQL(setupTestDB(t))
	ctx := context.Background()

	first := evaluate.LabeledScoreSet{Positive: []float64{0.7}, Negative: []float64{0.1}}
	second := evaluate.LabeledScoreSet{Positive: []float64{0.6, 0.8}, Negative: []float64{0.2, 0.3, 0.0}}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Positives)
	assert.Equal(t, 3, runs[0].Negatives)

	older, err := s.LoadRun(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, first, older)
}

func TestSQL_SaveReport(t *testing.T) {
	db := setupTestDB(t)
	s := NewSQL(db)
	ctx := context.Background()

	report := &evaluate.Report{
		Scores: evaluate.LabeledScoreSet{
			Positive: []float64{0.9, 0.4},
			Negative: []float64{0.1},
		},
		PositiveNames: []string{"a.png", "b.png"},
		NegativeNames: []string{"c.png"},
		Threshold:     0.35,
	}

	id, err := s.SaveReport(ctx, report)
	require.NoError(t, err)
	assert.NotZero(t, id)

	var rows []ScoreModel
	require.NoError(t, db.Where("run = ?", id).Order("label DESC, position ASC").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.png", rows[0].Name)
	assert.Equal(t, "b.png", rows[1].Name)
	assert.Equal(t, "c.png", rows[2].Name)
	assert.Equal(t, string(evaluate.Negative), rows[2].Label)

	var run RunModel
	require.NoError(t, db.First(&run, id).Error)
	assert.Equal(t, 0.35, run.Threshold)
}

func TestSQL_LoadEmpty(t *testing.T) {
	s := NewSQL(setupTestDB(t))
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestSQL_LoadRunUnknown(t *testing.T) {
	s := NewSQL(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, evaluate.LabeledScoreSet{Positive: []float64{0.4}}))

	_, err := s.LoadRun(ctx, 42)
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestSQL_SaveEmptySet(t *testing.T) {
	s := NewSQL(setupTestDB(t))
	require.NoError(t, s.Save(context.Background(), evaluate.LabeledScoreSet{}))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Positive)
	assert.Empty(t, got.Negative)
}
