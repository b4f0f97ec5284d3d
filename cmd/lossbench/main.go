package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/go-trackloss/benchmark"
	"github.com/nvr-ai/go-trackloss/config"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to a YAML or JSON configuration file")
		scenarioFile = flag.String("scenarios", "", "Path to a JSON scenario set")
		outputDir    = flag.String("output", "", "Output directory for results (overrides the config)")
		target       = flag.String("target", "", "Run a single target instead of the configured scenarios")
		batches      = flag.String("batches", "", "Comma separated batch sizes for -target, e.g. 1,8,64")
		iterations   = flag.Int("iterations", 0, "Override the iteration count of every scenario")
		timeout      = flag.Duration("timeout", 10*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *outputDir != "" {
		cfg.Benchmark.OutputDir = *outputDir
	}

	scenarios, err := selectScenarios(cfg, *scenarioFile, *target, *batches)
	if err != nil {
		log.Fatalf("Failed to select scenarios: %v", err)
	}
	if *iterations > 0 {
		for i := range scenarios {
			scenarios[i].Iterations = *iterations
		}
	}

	l, err := cfg.Losses()
	if err != nil {
		log.Fatalf("Failed to build losses: %v", err)
	}

	suite := benchmark.NewSuite(benchmark.Config{OutputDir: cfg.Benchmark.OutputDir, Scenarios: scenarios}, l)
	log.Printf("🎯 Running %d scenarios", len(scenarios))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Fatalf("Benchmark execution failed: %v", err)
	}
	if _, err := suite.SaveResults(); err != nil {
		log.Fatalf("Failed to save results: %v", err)
	}
	log.Printf("📊 Benchmark completed in %v", time.Since(start))

	results := suite.Results()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d\n", len(results))
	for _, r := range results {
		fmt.Printf("  %-28s %12.0f samples/s  p50 %-10v p95 %-10v loss %.5f\n",
			r.Scenario.Name,
			r.SamplesPerSecond,
			r.Latency.P50,
			r.Latency.P95,
			r.LastLoss)
	}
}

// selectScenarios picks, in order of precedence, the -target sweep, the
// -scenarios file or the configured scenarios.
func selectScenarios(cfg *config.Config, scenarioFile, target, batches string) ([]benchmark.Scenario, error) {
	if target != "" {
		t, err := benchmark.ParseTarget(target)
		if err != nil {
			return nil, err
		}
		sizes, err := parseSizes(batches)
		if err != nil {
			return nil, err
		}
		set := benchmark.BatchScalingScenarios(t, sizes...)
		for i := range set.Scenarios {
			set.Scenarios[i].Classes = cfg.Evidential.Classes
		}
		return set.Scenarios, nil
	}

	if scenarioFile != "" {
		set, err := benchmark.LoadScenarioSet(scenarioFile)
		if err != nil {
			return nil, err
		}
		log.Printf("📁 Loaded %d scenarios from %s", len(set.Scenarios), scenarioFile)
		return set.Scenarios, nil
	}

	return cfg.Benchmark.Scenarios, nil
}

func parseSizes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad batch size %q: %w", part, err)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Benchmark tool for the tracking losses and box geometry.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -target ciou -batches 1,32,256\n", name)
		fmt.Fprintf(os.Stderr, "  %s -config ./lossbench.yaml -output ./results\n", name)
	}
}
