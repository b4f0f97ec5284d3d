package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-trackloss/device"
	"github.com/nvr-ai/go-trackloss/evidential"
	"github.com/nvr-ai/go-trackloss/losses"
)

// Losses holds the configured loss instances the workloads call.
type Losses struct {
	IOU           *losses.IOULoss
	REG           *losses.REGLoss
	Hinge         *losses.LBHinge
	Activation    evidential.Activation
	Device        device.Backend
	Epoch         int
	AnnealingStep int
}

func (l Losses) withDefaults() Losses {
	if l.IOU == nil {
		l.IOU = losses.NewIOULoss(losses.ReductionMean)
	}
	if l.REG == nil {
		// The default configuration is always valid.
		l.REG, _ = losses.NewREGLoss(losses.DefaultREGConfig())
	}
	if l.Hinge == nil {
		l.Hinge = losses.NewLBHinge(losses.HingeConfig{})
	}
	if l.AnnealingStep <= 0 {
		l.AnnealingStep = 10
	}
	return l
}

// Suite manages and executes benchmark scenarios.
type Suite struct {
	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
	losses    Losses
	outputDir string
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - cfg: Output directory and initial scenarios.
//   - l: The loss instances to measure; nil fields take defaults.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(cfg Config, l Losses) *Suite {
	scenarios := make([]Scenario, len(cfg.Scenarios))
	copy(scenarios, cfg.Scenarios)
	return &Suite{
		scenarios: scenarios,
		results:   make([]PerformanceMetrics, 0),
		losses:    l.withDefaults(),
		outputDir: cfg.OutputDir,
	}
}

// AddScenario adds a scenario to the suite.
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// Scenarios returns the configured scenarios.
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]Scenario, len(bs.scenarios))
	copy(out, bs.scenarios)
	return out
}

// RunScenario executes a single scenario.
//
// Arguments:
//   - ctx: Cancels the run between iterations.
//   - scenario: The scenario.
//
// Returns:
//   - *PerformanceMetrics: Timings and memory statistics.
//   - error: Invalid scenario or cancellation.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	run, err := NewWorkload(scenario, bs.losses)
	if err != nil {
		return nil, err
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := run(); err != nil {
			continue
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	samples := make([]time.Duration, 0, scenario.Iterations)
	failures := 0
	startTime := time.Now()

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "scenario %s interrupted after %d iterations", scenario.Name, i)
		}
		callStart := time.Now()
		loss, err := run()
		samples = append(samples, time.Since(callStart))
		if err != nil {
			failures++
			continue
		}
		metrics.LastLoss = loss
	}

	totalDuration := time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.TotalDuration = totalDuration
	metrics.Latency = Summarize(samples)
	metrics.CallsPerSecond = float64(scenario.Iterations) / totalDuration.Seconds()
	metrics.SamplesPerSecond = metrics.CallsPerSecond * float64(scenario.BatchSize)
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	metrics.CPUStats = CPUMetrics{NumCPU: runtime.NumCPU()}

	return metrics, nil
}

// RunAllScenarios executes every scenario and records the results. Failing
// scenarios are logged and skipped; cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Printf("❌ Scenario %s failed: %v", scenario.Name, err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		log.Printf("✅ Scenario %s completed: %.0f calls/s, p50 %s", scenario.Name, metrics.CallsPerSecond, metrics.Latency.P50)
	}
	return nil
}

// Results returns all recorded results.
func (bs *Suite) Results() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}

// SaveResults writes the results as JSON and a CSV summary to the output
// directory.
//
// Returns:
//   - string: The JSON results path.
//   - error: Any filesystem error.
func (bs *Suite) SaveResults() (string, error) {
	results := bs.Results()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", errors.Wrap(err, "failed to save summary CSV")
	}

	log.Printf("💾 Results saved to: %s", resultsFile)
	log.Printf("💾 Summary saved to: %s", summaryFile)
	return resultsFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		"Scenario", "Target", "Batch", "Calls_Per_Second", "Samples_Per_Second",
		"Mean_us", "StdDev_us", "P50_us", "P95_us", "Total_Alloc_MB", "Error_Rate",
	}); err != nil {
		return err
	}

	us := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e3, 'f', 2, 64)
	}
	for _, r := range results {
		if err := w.Write([]string{
			r.Scenario.Name,
			string(r.Scenario.Target),
			strconv.Itoa(r.Scenario.BatchSize),
			strconv.FormatFloat(r.CallsPerSecond, 'f', 2, 64),
			strconv.FormatFloat(r.SamplesPerSecond, 'f', 2, 64),
			us(r.Latency.Mean),
			us(r.Latency.StdDev),
			us(r.Latency.P50),
			us(r.Latency.P95),
			strconv.FormatFloat(float64(r.MemoryStats.TotalAllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
