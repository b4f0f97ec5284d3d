package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	driver := func(string) bool { return true }
	none := func(string) bool { return false }

	tests := []struct {
		name    string
		visible string
		set     bool
		exists  func(string) bool
		want    Backend
	}{
		{"driver present", "", false, driver, CUDA},
		{"devices listed", "0,1", true, driver, CUDA},
		{"devices hidden", "-1", true, driver, CPU},
		{"empty list hides devices", "", true, driver, CPU},
		{"blank list hides devices", " ", true, driver, CPU},
		{"no driver", "0", true, none, CPU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, probe(tt.visible, tt.set, tt.exists))
		})
	}
}

func TestResolve(t *testing.T) {
	cpuHost := func() Backend { return CPU }
	gpuHost := func() Backend { return CUDA }

	b, err := resolve(Auto, gpuHost)
	require.NoError(t, err)
	assert.Equal(t, CUDA, b)

	b, err = resolve("CPU", gpuHost)
	require.NoError(t, err)
	assert.Equal(t, CPU, b)

	_, err = resolve(CUDA, cpuHost)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = resolve("tpu", cpuHost)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestDetectIsStable(t *testing.T) {
	first := Detect()
	assert.Contains(t, []Backend{CPU, CUDA}, first)
	assert.Equal(t, first, Detect())
}
