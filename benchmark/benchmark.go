// Package benchmark - Timing harness for the box geometry and loss functions.
package benchmark

import (
	"strings"

	"github.com/pkg/errors"
)

// Target names the function a scenario measures.
type Target string

const (
	TargetIoU          Target = "iou"
	TargetGIoU         Target = "giou"
	TargetCIoU         Target = "ciou"
	TargetIOULoss      Target = "iou_loss"
	TargetREGLoss      Target = "reg_loss"
	TargetLBHinge      Target = "lbhinge"
	TargetEDLMSE       Target = "edl_mse"
	TargetEDLLog       Target = "edl_log"
	TargetEDLDigamma   Target = "edl_digamma"
	TargetGraphIOULoss Target = "graph_iou_loss"
)

// AllTargets lists every supported target.
var AllTargets = []Target{
	TargetIoU,
	TargetGIoU,
	TargetCIoU,
	TargetIOULoss,
	TargetREGLoss,
	TargetLBHinge,
	TargetEDLMSE,
	TargetEDLLog,
	TargetEDLDigamma,
	TargetGraphIOULoss,
}

// ErrUnknownTarget is returned for targets outside AllTargets.
var ErrUnknownTarget = errors.New("unknown benchmark target")

// ParseTarget parses a target name, case-insensitively.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTargets {
		if t == known {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownTarget, "%q", s)
}

// Scenario defines a specific benchmark configuration.
type Scenario struct {
	Name       string `json:"name"        yaml:"name"`
	Target     Target `json:"target"      yaml:"target"`
	BatchSize  int    `json:"batch_size"  yaml:"batch_size"`
	Classes    int    `json:"classes"     yaml:"classes"`
	MapSize    int    `json:"map_size"    yaml:"map_size"`
	Iterations int    `json:"iterations"  yaml:"iterations"`
	WarmupRuns int    `json:"warmup_runs" yaml:"warmup_runs"`
	Seed       uint64 `json:"seed"        yaml:"seed"`
}

// Validate checks the scenario is runnable.
func (s Scenario) Validate() error {
	if _, err := ParseTarget(string(s.Target)); err != nil {
		return errors.Wrapf(err, "scenario %q", s.Name)
	}
	if s.BatchSize <= 0 {
		return errors.Errorf("scenario %q: batch size must be positive, got %d", s.Name, s.BatchSize)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %q: iterations must be positive, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %q: warmup runs must not be negative, got %d", s.Name, s.WarmupRuns)
	}
	switch s.Target {
	case TargetEDLMSE, TargetEDLLog, TargetEDLDigamma:
		if s.Classes < 2 {
			return errors.Errorf("scenario %q: evidential targets need at least 2 classes, got %d", s.Name, s.Classes)
		}
	case TargetREGLoss:
		if s.MapSize < 1 {
			return errors.Errorf("scenario %q: reg_loss needs a positive map size, got %d", s.Name, s.MapSize)
		}
	}
	return nil
}

// Config represents the overall benchmark configuration.
type Config struct {
	OutputDir string     `json:"output_dir" yaml:"output_dir"`
	Scenarios []Scenario `json:"scenarios"  yaml:"scenarios"`
}

// DefaultConfig returns a configuration running the quick scenario set.
func DefaultConfig() Config {
	return Config{
		OutputDir: "./benchmark_results",
		Scenarios: QuickScenarios().Scenarios,
	}
}

// Validate checks every scenario.
func (c Config) Validate() error {
	for _, s := range c.Scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
