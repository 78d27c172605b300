// Command emblem reports whether an image contains the emblem.
//
// Usage:
//
//	emblem [flags] <image>
//
// On a positive verdict the token is printed to stdout; on a negative one
// nothing is printed. With -verdict the verdict and score are printed instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ironsheep/emblem-match/internal/classify"
	"github.com/ironsheep/emblem-match/internal/config"
	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/render"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("emblem", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON configuration file")
	templatePath := fs.String("template", "", "template image (default logo50.png)")
	token := fs.String("token", "", "text printed on a positive verdict (default kruzhok)")
	threshold := fs.Float64("threshold", 0, "decision threshold (default 0.35)")
	policy := fs.String("policy", "", "edge threshold policy: fixed or adaptive")
	verdict := fs.Bool("verdict", false, "print the verdict and score instead of the token")
	diag := fs.String("diag", "", "write a diagnostics panel to this PNG path")
	boxColor := fs.String("box-color", "", "matched window color in the diagnostics panel (default #ff2828)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: emblem [flags] <image>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Resolve(*configPath, func(c *config.Config) {
		if set["template"] {
			c.TemplatePath = *templatePath
		}
		if set["token"] {
			c.Token = *token
		}
		if set["threshold"] {
			c.Threshold = *threshold
		}
		if set["policy"] {
			c.Scorer.Policy = *policy
		}
		if set["box-color"] {
			c.BoxColor = *boxColor
		}
		if *diag != "" {
			c.Scorer.Diagnostics = true
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "emblem: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "emblem: %v\n", err)
		return 1
	}
	log := logger.NewConsoleLogger(stderr, level)

	if err := score(context.Background(), cfg, fs.Arg(0), *verdict, *diag, stdout, log); err != nil {
		log.Error("emblem", err, map[string]interface{}{"image": fs.Arg(0)})
		return 1
	}
	return 0
}

func score(ctx context.Context, cfg *config.Config, path string, verdict bool, diag string, stdout io.Writer, log logger.Logger) error {
	bound, err := scorer.Open(cfg.Scorer, cfg.TemplatePath, scorer.WithLogger(log))
	if err != nil {
		return err
	}
	img, err := imaging.Load(path)
	if err != nil {
		return err
	}
	res, err := bound.Score(ctx, img)
	if err != nil {
		return err
	}
	log.Debug("emblem", "scored", map[string]interface{}{
		"score":  res.Score,
		"levels": res.Levels,
	})

	if diag != "" {
		box, err := imaging.ParseHexColor(cfg.BoxColor)
		if err != nil {
			return fmt.Errorf("box color: %w", err)
		}
		panel, err := render.Diagnostics(img, res, cfg.Threshold, render.WithBoxColor(box))
		if err != nil {
			log.Warning("emblem", "no diagnostics for this image", map[string]interface{}{"error": err.Error()})
		} else if err := render.Save(panel, diag); err != nil {
			return fmt.Errorf("failed to write diagnostics: %w", err)
		}
	}

	switch {
	case verdict:
		fmt.Fprintf(stdout, "%s %.4f\n", classify.Verdict(res.Score, cfg.Threshold), res.Score)
	case classify.Classify(res.Score, cfg.Threshold):
		fmt.Fprintln(stdout, cfg.Token)
	}
	return nil
}
