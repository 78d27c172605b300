// Command emblem-eval scores a directory of images that contain the emblem
// and one of images that do not, then prints per-group statistics and the
// confusion counts at the decision threshold.
//
// Usage:
//
//	emblem-eval -template logo50.png -positive DIR -negative DIR [-json out.json] [-db dsn] [-hist hist.png]
//	emblem-eval -replot -json out.json -hist hist.png
//	emblem-eval -replot -db dsn [-run N] -hist hist.png
//	emblem-eval -runs -db dsn
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/emblem-match/internal/config"
	"github.com/ironsheep/emblem-match/internal/evaluate"
	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/render"
	"github.com/ironsheep/emblem-match/internal/scorer"
	"github.com/ironsheep/emblem-match/internal/store"
)

type options struct {
	positive string
	negative string
	jsonPath string
	histPath string
	replot   bool
	runs     bool
	run      uint
	quiet    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("emblem-eval", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	configPath := fs.String("config", "", "JSON configuration file")
	templatePath := fs.String("template", "", "template image (default logo50.png)")
	threshold := fs.Float64("threshold", 0, "decision threshold (default 0.35)")
	workers := fs.Int("workers", 0, "images scored in parallel (default one per CPU)")
	redisAddr := fs.String("redis", "", "redis address for the score cache")
	dsn := fs.String("db", "", "database DSN for score persistence (sqlite path or postgres:// URL)")
	fs.StringVar(&opts.positive, "positive", "", "directory of images containing the emblem")
	fs.StringVar(&opts.negative, "negative", "", "directory of images without the emblem")
	fs.StringVar(&opts.jsonPath, "json", "", "score file to write, or to read with -replot")
	fs.StringVar(&opts.histPath, "hist", "", "histogram PNG to write")
	fs.BoolVar(&opts.replot, "replot", false, "render the histogram of stored scores without scoring")
	fs.BoolVar(&opts.runs, "runs", false, "list the runs stored in -db")
	fs.UintVar(&opts.run, "run", 0, "run id to replot from -db (default the latest)")
	fs.BoolVar(&opts.quiet, "quiet", false, "do not print progress")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Resolve(*configPath, func(c *config.Config) {
		if set["template"] {
			c.TemplatePath = *templatePath
		}
		if set["threshold"] {
			c.Threshold = *threshold
		}
		if set["workers"] {
			c.Workers = *workers
		}
		if set["redis"] {
			c.RedisAddr = *redisAddr
		}
		if set["db"] {
			c.DatabaseDSN = *dsn
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "emblem-eval: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "emblem-eval: %v\n", err)
		return 1
	}
	log := logger.NewConsoleLogger(stderr, level)

	switch {
	case opts.runs:
		err = listRuns(ctx, cfg.DatabaseDSN, stdout)
	case opts.replot:
		err = replot(ctx, cfg, opts)
	default:
		err = evaluateDirs(ctx, cfg, opts, stdout, stderr, log)
	}
	if err != nil {
		log.Error("emblem-eval", err, nil)
		return 1
	}
	return 0
}

func evaluateDirs(ctx context.Context, cfg *config.Config, opts options, stdout, stderr io.Writer, log logger.Logger) error {
	if opts.positive == "" || opts.negative == "" {
		return errors.New("-positive and -negative are required")
	}

	bound, err := scorer.Open(cfg.Scorer, cfg.TemplatePath, scorer.WithLogger(log))
	if err != nil {
		return err
	}

	var sc evaluate.Scorer = bound
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		sc = store.NewCachedScorer(rdb, cfg.RedisTTL.Duration, bound, "emblem")
	}

	ev := &evaluate.Evaluator{
		Scorer:    sc,
		Loader:    evaluate.LoaderFunc(imaging.Load),
		Threshold: cfg.Threshold,
		Workers:   cfg.Workers,
		Log:       log,
	}
	if !opts.quiet {
		ev.Progress = func(done, total int) {
			fmt.Fprintf(stderr, "\rscored %d/%d", done, total)
			if done == total {
				fmt.Fprintln(stderr)
			}
		}
	}

	report, err := ev.EvaluateDirs(ctx, opts.positive, opts.negative)
	if err != nil {
		return err
	}
	if err := report.WriteText(stdout); err != nil {
		return err
	}

	if opts.jsonPath != "" {
		sink := &store.JSONFile{Path: opts.jsonPath}
		if err := sink.Save(ctx, report.Scores); err != nil {
			return err
		}
	}
	if cfg.DatabaseDSN != "" {
		id, err := saveReport(ctx, cfg.DatabaseDSN, report)
		if err != nil {
			return err
		}
		log.Info("emblem-eval", "scores stored", map[string]interface{}{"run": id})
	}
	if opts.histPath != "" {
		return writeHistogram(report.Scores, cfg.Threshold, opts.histPath)
	}
	return nil
}

// replot renders the histogram of a stored score set: the JSON file when
// -json is given, otherwise run -run (or the latest run) in the database.
func replot(ctx context.Context, cfg *config.Config, opts options) error {
	if opts.histPath == "" {
		return errors.New("-replot needs -hist")
	}

	var (
		set evaluate.LabeledScoreSet
		err error
	)
	switch {
	case opts.jsonPath != "":
		set, err = (&store.JSONFile{Path: opts.jsonPath}).Load(ctx)
	case cfg.DatabaseDSN != "":
		set, err = loadRun(ctx, cfg.DatabaseDSN, opts.run)
	default:
		return errors.New("-replot needs -json or -db")
	}
	if err != nil {
		return err
	}
	return writeHistogram(set, cfg.Threshold, opts.histPath)
}

func saveReport(ctx context.Context, dsn string, report *evaluate.Report) (uint, error) {
	db, err := store.OpenDB(dsn)
	if err != nil {
		return 0, err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return store.NewSQL(db).SaveReport(ctx, report)
}

// loadRun loads run id from dsn; id 0 selects the latest run.
func loadRun(ctx context.Context, dsn string, id uint) (evaluate.LabeledScoreSet, error) {
	db, err := store.OpenDB(dsn)
	if err != nil {
		return evaluate.LabeledScoreSet{}, err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if id == 0 {
		return store.NewSQL(db).Load(ctx)
	}
	return store.NewSQL(db).LoadRun(ctx, id)
}

func listRuns(ctx context.Context, dsn string, w io.Writer) error {
	if dsn == "" {
		return errors.New("-runs needs -db")
	}
	db, err := store.OpenDB(dsn)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	runs, err := store.NewSQL(db).Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "run %d  %s  threshold %.2f  positives %d  negatives %d\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Threshold, r.Positives, r.Negatives)
	}
	return nil
}

func writeHistogram(set evaluate.LabeledScoreSet, threshold float64, path string) error {
	opts := render.DefaultHistogramOptions()
	opts.Title = "emblem scores"
	return render.Save(render.Histogram(set, threshold, opts), path)
}
