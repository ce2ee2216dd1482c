// Package runcfg loads and validates the YAML run configuration consumed by
// the command-line frontend.
package runcfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one sampling run end to end: the model, where its data
// lives, how many draws to take, and where the results go.
type Config struct {
	Model  string `yaml:"model"` // "hse" or "hsdem"
	Data   Data   `yaml:"data"`
	Run    Run    `yaml:"run"`
	Sink   Sink   `yaml:"sink"`
	Output string `yaml:"output"` // CSV stem for the final trace, empty to skip
	Listen string `yaml:"listen"` // status server address, empty to disable
}

// Data points at the input files. Observation-level and group-level tables
// are CSVs with a header row; weights are plain numeric CSV matrices.
type Data struct {
	Observations    string   `yaml:"observations"`
	Response        string   `yaml:"response"`
	Covariates      []string `yaml:"covariates"`
	Membership      string   `yaml:"membership"`
	Groups          string   `yaml:"groups"`
	GroupCovariates []string `yaml:"group_covariates"`
	WeightsLower    string   `yaml:"weights_lower"`
	WeightsUpper    string   `yaml:"weights_upper"`
}

// Run carries the sampling controls.
type Run struct {
	Samples     int     `yaml:"samples"`
	Jobs        int     `yaml:"jobs"`
	Seed        uint64  `yaml:"seed"`
	Tuning      int     `yaml:"tuning"`
	Jump        float64 `yaml:"jump"`
	SpatialLags *bool   `yaml:"spatial_lags"` // hsdem only, defaults to true
}

// Sink selects the persistence backend.
type Sink struct {
	Kind     string `yaml:"kind"` // "", "sqlite" or "redis"
	Path     string `yaml:"path"` // sqlite file
	Addr     string `yaml:"addr"` // redis address
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Name     string `yaml:"name"`    // redis key namespace
	Compact  bool   `yaml:"compact"` // bound in-memory trace to the head
}

// Load reads, decodes, applies defaults, and validates a configuration file.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := unmarshalStrict(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func unmarshalStrict(raw []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Run.Jobs == 0 {
		c.Run.Jobs = 1
	}
	if c.Run.Jump == 0 {
		c.Run.Jump = 0.5
	}
	if c.Sink.Kind == "redis" && c.Sink.Name == "" {
		c.Sink.Name = "gibbs"
	}
}

func (c *Config) validate() error {
	switch c.Model {
	case "hse", "hsdem":
	default:
		return fmt.Errorf("unknown model %q", c.Model)
	}
	if c.Run.Samples <= 0 {
		return fmt.Errorf("run.samples must be positive, got %d", c.Run.Samples)
	}
	if c.Run.Jobs < 1 {
		return fmt.Errorf("run.jobs must be at least 1, got %d", c.Run.Jobs)
	}
	d := c.Data
	for name, path := range map[string]string{
		"data.observations":  d.Observations,
		"data.groups":        d.Groups,
		"data.weights_lower": d.WeightsLower,
		"data.weights_upper": d.WeightsUpper,
	} {
		if path == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if d.Response == "" || len(d.Covariates) == 0 {
		return fmt.Errorf("data.response and data.covariates are required")
	}
	if d.Membership == "" {
		return fmt.Errorf("data.membership column is required")
	}
	switch c.Sink.Kind {
	case "", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown sink kind %q", c.Sink.Kind)
	}
	if c.Sink.Kind == "sqlite" && c.Sink.Path == "" {
		return fmt.Errorf("sink.path is required for the sqlite sink")
	}
	if c.Sink.Kind == "redis" && c.Sink.Addr == "" {
		return fmt.Errorf("sink.addr is required for the redis sink")
	}
	if c.Sink.Compact && c.Sink.Kind == "" {
		return fmt.Errorf("sink.compact needs a persistent sink")
	}
	return nil
}
