package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/emblem-match/internal/store"
)

func writePNG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// dataset writes a template plus two positive and two negative images.
func dataset(t *testing.T) (dir, template string) {
	t.Helper()
	dir = t.TempDir()

	logo := image.NewGray(image.Rect(0, 0, 20, 20))
	draw.Draw(logo, image.Rect(5, 5, 15, 15), image.NewUniform(color.White), image.Point{}, draw.Src)
	template = writePNG(t, filepath.Join(dir, "logo.png"), logo)

	for i, at := range []image.Point{{10, 10}, {50, 30}} {
		scene := image.NewGray(image.Rect(0, 0, 90, 90))
		draw.Draw(scene, logo.Bounds().Add(at), logo, image.Point{}, draw.Src)
		writePNG(t, filepath.Join(dir, "pos", string(rune('a'+i))+".png"), scene)
	}
	writePNG(t, filepath.Join(dir, "neg", "a.png"), image.NewGray(image.Rect(0, 0, 90, 90)))
	writePNG(t, filepath.Join(dir, "neg", "b.png"), image.NewGray(image.Rect(0, 0, 60, 40)))
	return dir, template
}

func TestRun_Evaluate(t *testing.T) {
	dir, tmpl := dataset(t)
	jsonPath := filepath.Join(dir, "scores.json")
	histPath := filepath.Join(dir, "hist.png")
	dsn := filepath.Join(dir, "scores.db")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-template", tmpl,
		"-positive", filepath.Join(dir, "pos"),
		"-negative", filepath.Join(dir, "neg"),
		"-json", jsonPath,
		"-hist", histPath,
		"-db", dsn,
		"-workers", "2",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "correct positives: 2")
	assert.Contains(t, stdout.String(), "correct negatives: 2")
	assert.Contains(t, stderr.String(), "scored 4/4")
	assert.FileExists(t, histPath)

	set, err := (&store.JSONFile{Path: jsonPath}).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, set.Positive, 2)
	assert.Len(t, set.Negative, 2)

	db, err := store.OpenDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	stored, err := store.NewSQL(db).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, set, stored)
}

func TestRun_Replot(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "result.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"original_scores":[0.9,0.6],"fake_scores":[0.1]}`), 0o644))
	histPath := filepath.Join(dir, "hist.png")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-replot", "-json", jsonPath, "-hist", histPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.FileExists(t, histPath)
	assert.Empty(t, stdout.String())
}

func TestRun_StoredRuns(t *testing.T) {
	dir, tmpl := dataset(t)
	dsn := filepath.Join(dir, "scores.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		code := run(ctx, []string{
			"-template", tmpl,
			"-positive", filepath.Join(dir, "pos"),
			"-negative", filepath.Join(dir, "neg"),
			"-db", dsn,
			"-quiet",
		}, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
	}

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(ctx, []string{"-runs", "-db", dsn}, &stdout, &stderr), stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "run 2 "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "run 1 "), lines[1])
	assert.Contains(t, lines[1], "threshold 0.35  positives 2  negatives 2")

	histPath := filepath.Join(dir, "run1.png")
	stdout.Reset()
	code := run(ctx, []string{"-replot", "-db", dsn, "-run", "1", "-hist", histPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.FileExists(t, histPath)

	code = run(ctx, []string{"-replot", "-db", dsn, "-run", "9", "-hist", histPath}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}

func TestRun_Errors(t *testing.T) {
	dir, tmpl := dataset(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing dirs", []string{"-template", tmpl}},
		{"missing template", []string{"-template", filepath.Join(dir, "none.png"), "-positive", filepath.Join(dir, "pos"), "-negative", filepath.Join(dir, "neg")}},
		{"empty group", []string{"-template", tmpl, "-positive", filepath.Join(dir, "pos"), "-negative", t.TempDir()}},
		{"replot without hist", []string{"-replot", "-json", filepath.Join(dir, "x.json")}},
		{"replot without source", []string{"-replot", "-hist", filepath.Join(dir, "h.png")}},
		{"replot missing file", []string{"-replot", "-json", filepath.Join(dir, "x.json"), "-hist", filepath.Join(dir, "h.png")}},
		{"runs without db", []string{"-runs"}},
		{"unknown flag", []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir, tmpl := dataset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-template", tmpl, "-positive", filepath.Join(dir, "pos"), "-negative", filepath.Join(dir, "neg"), "-quiet"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
}
