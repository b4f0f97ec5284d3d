// Package config - YAML/JSON configuration for the losses and the benchmark harness.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-trackloss/benchmark"
	"github.com/nvr-ai/go-trackloss/device"
	"github.com/nvr-ai/go-trackloss/evidential"
	"github.com/nvr-ai/go-trackloss/losses"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for encodings other than yaml or json.
var ErrUnknownFormat = errors.New("unknown config format")

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

// Config is the complete configuration of a training stage or benchmark run.
type Config struct {
	REG        losses.REGConfig  `json:"reg"        yaml:"reg"`
	Hinge      HingeSection      `json:"hinge"      yaml:"hinge"`
	Evidential EvidentialSection `json:"evidential" yaml:"evidential"`
	Benchmark  benchmark.Config  `json:"benchmark"  yaml:"benchmark"`
}

// HingeSection configures LBHinge.
type HingeSection struct {
	// Metric is "mse" or "mae".
	Metric    string   `json:"metric"              yaml:"metric"`
	Threshold *float32 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Clip      *float32 `json:"clip,omitempty"      yaml:"clip,omitempty"`
}

// EvidentialSection configures the evidential losses.
type EvidentialSection struct {
	Activation    string `json:"activation"     yaml:"activation"`
	Estimator     string `json:"estimator"      yaml:"estimator"`
	Classes       int    `json:"classes"        yaml:"classes"`
	AnnealingStep int    `json:"annealing_step" yaml:"annealing_step"`
	Device        string `json:"device"         yaml:"device"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		REG:   losses.DefaultREGConfig(),
		Hinge: HingeSection{Metric: "mse"},
		Evidential: EvidentialSection{
			Activation:    evidential.ReLU.String(),
			Estimator:     evidential.MSE.String(),
			Classes:       10,
			AnnealingStep: 10,
		},
		Benchmark: benchmark.DefaultConfig(),
	}
}

// Parse decodes data over the defaults and validates the result.
//
// Arguments:
//   - data: The encoded configuration.
//   - format: FormatYAML or FormatJSON.
//
// Returns:
//   - *Config: The configuration.
//   - error: Decoding or validation errors.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	defaults := cfg.Benchmark.Scenarios
	cfg.Benchmark.Scenarios = nil
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode yaml config")
		}
	case FormatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode json config")
		}
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
	if cfg.Benchmark.Scenarios == nil {
		cfg.Benchmark.Scenarios = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a configuration file, choosing the format by extension.
//
// Arguments:
//   - path: A .yaml, .yml or .json file.
//
// Returns:
//   - *Config: The configuration.
//   - error: Read, decoding or validation errors.
//
// @example
//
//	cfg, err := config.Load("configs/step-1.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	reg, err := cfg.REGLoss()
func Load(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	log.Printf("📋 Loaded config %s", path)
	return cfg, nil
}

// Save writes the configuration, choosing the format by extension.
func (c *Config) Save(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.REGLoss(); err != nil {
		return errors.Wrap(err, "reg")
	}
	if _, err := c.LBHinge(); err != nil {
		return errors.Wrap(err, "hinge")
	}
	if _, _, err := c.Evidential.Strategy(); err != nil {
		return errors.Wrap(err, "evidential")
	}
	if c.Evidential.Classes < 1 {
		return errors.Errorf("evidential: classes must be positive, got %d", c.Evidential.Classes)
	}
	if c.Evidential.AnnealingStep <= 0 {
		return errors.Wrapf(evidential.ErrInvalidAnnealingStep, "evidential: got %d", c.Evidential.AnnealingStep)
	}
	if _, err := c.Evidential.Backend(); err != nil {
		return errors.Wrap(err, "evidential")
	}
	if err := c.Benchmark.Validate(); err != nil {
		return errors.Wrap(err, "benchmark")
	}
	return nil
}

// REGLoss builds the configured REGLoss.
func (c *Config) REGLoss() (*losses.REGLoss, error) {
	return losses.NewREGLoss(c.REG)
}

// LBHinge builds the configured LBHinge.
func (c *Config) LBHinge() (*losses.LBHinge, error) {
	var metric losses.ErrorMetric
	switch strings.ToLower(c.Hinge.Metric) {
	case "", "mse":
		metric = losses.MeanSquaredError{}
	case "mae":
		metric = losses.MeanAbsoluteError{}
	default:
		return nil, errors.Errorf("unknown error metric %q", c.Hinge.Metric)
	}
	return losses.NewLBHinge(losses.HingeConfig{
		ErrorMetric: metric,
		Threshold:   c.Hinge.Threshold,
		Clip:        c.Hinge.Clip,
	}), nil
}

// Strategy parses the activation and estimator names.
func (e EvidentialSection) Strategy() (evidential.Activation, evidential.Estimator, error) {
	act, err := evidential.ParseActivation(e.Activation)
	if err != nil {
		return 0, 0, err
	}
	est, err := evidential.ParseEstimator(e.Estimator)
	if err != nil {
		return 0, 0, err
	}
	return act, est, nil
}

// Backend checks the device name. Empty means auto-detection.
func (e EvidentialSection) Backend() (device.Backend, error) {
	b := device.Backend(strings.ToLower(strings.TrimSpace(e.Device)))
	switch b {
	case device.Auto, device.CPU, device.CUDA:
		return b, nil
	default:
		return "", errors.Wrapf(device.ErrUnknownBackend, "%q", e.Device)
	}
}

// Losses builds the loss set the benchmark harness measures.
func (c *Config) Losses() (benchmark.Losses, error) {
	reg, err := c.REGLoss()
	if err != nil {
		return benchmark.Losses{}, err
	}
	hinge, err := c.LBHinge()
	if err != nil {
		return benchmark.Losses{}, err
	}
	act, _, err := c.Evidential.Strategy()
	if err != nil {
		return benchmark.Losses{}, err
	}
	backend, err := c.Evidential.Backend()
	if err != nil {
		return benchmark.Losses{}, err
	}
	return benchmark.Losses{
		IOU:           losses.NewIOULoss(losses.ReductionMean),
		REG:           reg,
		Hinge:         hinge,
		Activation:    act,
		Device:        backend,
		AnnealingStep: c.Evidential.AnnealingStep,
	}, nil
}
