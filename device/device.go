// Package device - Execution target identifiers and accelerator auto-detection.
package device

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Backend identifies where a computation is meant to run.
type Backend string

const (
	// Auto resolves to CUDA when an accelerator is detected, CPU otherwise.
	Auto Backend = ""
	// CPU runs on the host.
	CPU Backend = "cpu"
	// CUDA targets the first NVIDIA GPU.
	CUDA Backend = "cuda"
)

var (
	// ErrUnknownBackend is returned for backends other than cpu or cuda.
	ErrUnknownBackend = errors.New("unknown device backend")
	// ErrUnavailable is returned when cuda is requested but no accelerator was detected.
	ErrUnavailable = errors.New("device backend unavailable")
)

// probe paths that indicate a usable NVIDIA driver.
var driverPaths = []string{
	"/proc/driver/nvidia/version",
	"/dev/nvidia0",
	"/dev/nvidiactl",
}

var (
	detectOnce sync.Once
	detected   Backend
)

// Detect reports the preferred backend for this process.
//
// CUDA is chosen when CUDA_VISIBLE_DEVICES is unset or lists a device and an
// NVIDIA driver node is present. The probe runs once per process.
//
// Returns:
//   - Backend: CUDA or CPU.
func Detect() Backend {
	detectOnce.Do(func() {
		visible, set := os.LookupEnv("CUDA_VISIBLE_DEVICES")
		detected = probe(visible, set, fileExists)
		log.Printf("🔍 Device backend detected: %s", detected)
	})
	return detected
}

// probe reports CPU when the device list is set but empty or -1, otherwise
// CUDA when a driver node exists.
func probe(visible string, set bool, exists func(string) bool) Backend {
	if set {
		if v := strings.TrimSpace(visible); v == "" || v == "-1" {
			return CPU
		}
	}
	for _, p := range driverPaths {
		if exists(p) {
			return CUDA
		}
	}
	return CPU
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Resolve turns a requested backend into a concrete one.
//
// Arguments:
//   - b: Requested backend; Auto defers to Detect.
//
// Returns:
//   - Backend: CPU or CUDA.
//   - error: ErrUnknownBackend, or ErrUnavailable when CUDA is requested on a host
//     without an accelerator.
func Resolve(b Backend) (Backend, error) {
	return resolve(b, Detect)
}

func resolve(b Backend, detect func() Backend) (Backend, error) {
	switch Backend(strings.ToLower(string(b))) {
	case Auto:
		return detect(), nil
	case CPU:
		return CPU, nil
	case CUDA:
		if detect() != CUDA {
			return "", errors.Wrap(ErrUnavailable, "cuda requested")
		}
		return CUDA, nil
	default:
		return "", errors.Wrapf(ErrUnknownBackend, "%q", b)
	}
}

// String returns the backend name, "auto" for Auto.
func (b Backend) String() string {
	if b == Auto {
		return "auto"
	}
	return string(b)
}
