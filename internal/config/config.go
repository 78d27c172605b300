// Package config loads the settings shared by the emblem binaries.
//
// Values come from three layers, each overriding the previous one: built-in
// defaults, an optional JSON file, and EMBLEM_* environment variables.
// Command-line flags are applied last by each binary.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/emblem-match/internal/classify"
	"github.com/ironsheep/emblem-match/internal/imaging"
	"github.com/ironsheep/emblem-match/internal/logger"
	"github.com/ironsheep/emblem-match/internal/scorer"
)

// Duration is a time.Duration that reads and writes strings such as "24h".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// plain seconds
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("invalid duration %s", b)
		}
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// Config holds runtime configuration for scoring and evaluation.
type Config struct {
	Scorer scorer.Config `json:"scorer"`

	Threshold    float64 `json:"threshold"`
	TemplatePath string  `json:"template_path"`
	Token        string  `json:"token"`

	// Workers is the evaluator pool size; 0 means one per CPU.
	Workers int `json:"workers"`

	// Redis score cache, disabled when RedisAddr is empty.
	RedisAddr string   `json:"redis_addr"`
	RedisTTL  Duration `json:"redis_ttl"`

	// DatabaseDSN selects the SQL score sink, disabled when empty.
	DatabaseDSN string `json:"database_dsn"`

	HTTPAddr string `json:"http_addr"`
	LogLevel string `json:"log_level"`

	// BoxColor outlines the matched window in diagnostics panels, as
	// "#RRGGBB" or "#RRGGBBAA".
	BoxColor string `json:"box_color"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Scorer:       scorer.DefaultConfig(),
		Threshold:    classify.DefaultThreshold,
		TemplatePath: "logo50.png",
		Token:        "kruzhok",
		RedisTTL:     Duration{24 * time.Hour},
		HTTPAddr:     ":8080",
		LogLevel:     "info",
		BoxColor:     "#ff2828",
	}
}

// Validate reports the first invalid setting. Errors wrap scorer.ErrConfig.
func (c *Config) Validate() error {
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", scorer.ErrConfig, c.Threshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", scorer.ErrConfig)
	}
	if c.RedisTTL.Duration < 0 {
		return fmt.Errorf("%w: redis_ttl must not be negative", scorer.ErrConfig)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", scorer.ErrConfig, err)
	}
	if _, err := imaging.ParseHexColor(c.BoxColor); err != nil {
		return fmt.Errorf("%w: box_color: %v", scorer.ErrConfig, err)
	}
	return nil
}

// Load reads configuration from the JSON file at path on top of the
// defaults. A missing file returns DefaultConfig(). An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads path, applies EMBLEM_* overrides, then override (command-line
// flags), and validates the result.
func Resolve(path string, override func(*Config)) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from EMBLEM_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", scorer.ErrConfig, name, err)
		}
		*dst = n
		return nil
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", scorer.ErrConfig, name, err)
		}
		*dst = f
		return nil
	}

	str("EMBLEM_TEMPLATE", &c.TemplatePath)
	str("EMBLEM_TOKEN", &c.Token)
	str("EMBLEM_REDIS_ADDR", &c.RedisAddr)
	str("EMBLEM_DATABASE_DSN", &c.DatabaseDSN)
	str("EMBLEM_HTTP_ADDR", &c.HTTPAddr)
	str("EMBLEM_LOG_LEVEL", &c.LogLevel)
	str("EMBLEM_BOX_COLOR", &c.BoxColor)
	str("EMBLEM_POLICY", &c.Scorer.Policy)
	str("EMBLEM_BACKEND", &c.Scorer.Backend)

	for _, apply := range []func() error{
		func() error { return float("EMBLEM_THRESHOLD", &c.Threshold) },
		func() error { return float("EMBLEM_DOWNSCALE", &c.Scorer.Downscale) },
		func() error { return float("EMBLEM_SIGMA", &c.Scorer.Sigma) },
		func() error { return integer("EMBLEM_WORKERS", &c.Workers) },
		func() error { return integer("EMBLEM_EDGE_LOW", &c.Scorer.EdgeLow) },
		func() error { return integer("EMBLEM_EDGE_HIGH", &c.Scorer.EdgeHigh) },
	} {
		if err := apply(); err != nil {
			return err
		}
	}

	if v, ok := lookup("EMBLEM_REDIS_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: EMBLEM_REDIS_TTL: %v", scorer.ErrConfig, err)
		}
		c.RedisTTL = Duration{d}
	}
	return nil
}
