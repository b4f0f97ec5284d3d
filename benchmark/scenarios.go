package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder with batch size 32, 10 classes, a 16x16
// map, 100 iterations and 10 warmup runs.
func NewScenarioBuilder(name string, target Target) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Target:     target,
			BatchSize:  32,
			Classes:    10,
			MapSize:    16,
			Iterations: 100,
			WarmupRuns: 10,
			Seed:       1,
		},
	}
}

// WithBatchSize sets the number of samples per call.
func (sb *ScenarioBuilder) WithBatchSize(n int) *ScenarioBuilder {
	sb.scenario.BatchSize = n
	return sb
}

// WithClasses sets the class count of evidential targets.
func (sb *ScenarioBuilder) WithClasses(n int) *ScenarioBuilder {
	sb.scenario.Classes = n
	return sb
}

// WithMapSize sets the side of the reg_loss feature map.
func (sb *ScenarioBuilder) WithMapSize(n int) *ScenarioBuilder {
	sb.scenario.MapSize = n
	return sb
}

// WithIterations sets the number of timed iterations.
func (sb *ScenarioBuilder) WithIterations(n int) *ScenarioBuilder {
	sb.scenario.Iterations = n
	return sb
}

// WithWarmupRuns sets the number of untimed iterations.
func (sb *ScenarioBuilder) WithWarmupRuns(n int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = n
	return sb
}

// WithSeed sets the input generator seed.
func (sb *ScenarioBuilder) WithSeed(seed uint64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// QuickScenarios runs every target once at batch size 32.
func QuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0, len(AllTargets))
	for _, target := range AllTargets {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%s", target), target).
			WithIterations(50).
			WithWarmupRuns(5).
			Build())
	}
	return &ScenarioSet{
		Name:        "Quick Loss Benchmark",
		Description: "Every target at batch size 32",
		Scenarios:   scenarios,
	}
}

// BatchScalingScenarios runs one target over increasing batch sizes.
//
// Arguments:
//   - target: The function to measure.
//   - sizes: Batch sizes to run.
//
// Returns:
//   - *ScenarioSet: One scenario per size.
func BatchScalingScenarios(target Target, sizes ...int) *ScenarioSet {
	if len(sizes) == 0 {
		sizes = []int{1, 8, 64, 512}
	}
	scenarios := make([]Scenario, 0, len(sizes))
	for _, n := range sizes {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("batch_%s_%d", target, n), target).
			WithBatchSize(n).
			Build())
	}
	return &ScenarioSet{
		Name:        fmt.Sprintf("Batch Scaling - %s", target),
		Description: fmt.Sprintf("Compares batch sizes for %s", target),
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}
	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	var set ScenarioSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}
	return &set, nil
}
