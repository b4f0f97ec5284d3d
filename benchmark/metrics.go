package benchmark

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PerformanceMetrics captures detailed performance data of one scenario.
type PerformanceMetrics struct {
	Scenario         Scenario      `json:"scenario"`
	Timestamp        time.Time     `json:"timestamp"`
	TotalDuration    time.Duration `json:"total_duration"`
	Latency          LatencyStats  `json:"latency"`
	CallsPerSecond   float64       `json:"calls_per_second"`
	SamplesPerSecond float64       `json:"samples_per_second"`
	LastLoss         float32       `json:"last_loss"`
	MemoryStats      MemoryMetrics `json:"memory_stats"`
	CPUStats         CPUMetrics    `json:"cpu_stats"`
	ErrorRate        float64       `json:"error_rate"`
}

// LatencyStats summarizes per-call durations.
type LatencyStats struct {
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"std_dev"`
	Min    time.Duration `json:"min"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	Max    time.Duration `json:"max"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics
type CPUMetrics struct {
	NumCPU int `json:"num_cpu"`
}

// Summarize computes latency statistics of the given call durations.
//
// Arguments:
//   - samples: Per-call durations, in any order.
//
// Returns:
//   - LatencyStats: Zero for no samples.
func Summarize(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	xs := make([]float64, len(samples))
	for i, d := range samples {
		xs[i] = float64(d)
	}
	sort.Float64s(xs)

	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return LatencyStats{
		Mean:   time.Duration(mean),
		StdDev: time.Duration(std),
		Min:    time.Duration(xs[0]),
		P50:    time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		Max:    time.Duration(xs[len(xs)-1]),
	}
}
