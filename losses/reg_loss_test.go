package losses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// constantMap fills every cell of a (B, 4, W, W) map with the same distances.
func constantMap(batch, width int, dist [4]float32) []float32 {
	hw := width * width
	data := make([]float32, batch*4*hw)
	for b := 0; b < batch; b++ {
		for c := 0; c < 4; c++ {
			for i := 0; i < hw; i++ {
				data[(b*4+c)*hw+i] = dist[c]
			}
		}
	}
	return data
}

func TestNewREGLoss(t *testing.T) {
	l, err := NewREGLoss(REGConfig{})
	require.NoError(t, err)
	assert.Equal(t, 4, l.dim)

	_, err = NewREGLoss(REGConfig{Dim: 4, LossType: "giou"})
	assert.ErrorIs(t, err, ErrUnsupportedLossType)

	_, err = NewREGLoss(REGConfig{Dim: 2, LossType: LossTypeIoU})
	assert.Error(t, err)
}

func TestREGLoss_RadiusZeroMatchesIOULoss(t *testing.T) {
	l, err := NewREGLoss(DefaultREGConfig())
	require.NoError(t, err)

	width := 5
	feat := tensors.New(indexedMap(2, 4, width), 2, 4, width, width)
	// Keep the gathered values small so they read as distances.
	data := feat.Float32s()
	for i := range data {
		data[i] = data[i]/1000 + 0.1
	}
	ind := []int{7, 18}
	target := tensors.New([]float32{
		0.3, 0.2, 0.4, 0.1,
		1.2, 1.0, 1.3, 1.1,
	}, 2, 4)

	gathered, err := TransposeAndGather(feat, [][]int{{ind[0]}, {ind[1]}})
	require.NoError(t, err)
	pred := gathered.Float32s()
	want, err := NewIOULoss(ReductionMean).Forward(tensors.New(pred, 2, 4), target, nil)
	require.NoError(t, err)

	got, err := l.Forward(feat, ind, target, WithRadius(0))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)

	got, err = l.Forward(feat, ind, target, WithoutNeighbourhood())
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)
}

func TestREGLoss_NeighbourhoodMean(t *testing.T) {
	l, err := NewREGLoss(DefaultREGConfig())
	require.NoError(t, err)

	width := 3
	dist := [4]float32{1, 1, 1, 1}
	norm := float32(0.1)

	shiftLoss := func(rw, rh int) float32 {
		shifted := make([]float32, 4)
		require.True(t, shiftTargets(dist[:], shifted, float32(rw)*norm, float32(rh)*norm))
		return directionalIoULosses(dist[:], shifted)[0]
	}

	t.Run("centre cell uses all nine shifts", func(t *testing.T) {
		feat := tensors.New(constantMap(1, width, dist), 1, 4, width, width)
		var want float32
		for rw := -1; rw <= 1; rw++ {
			for rh := -1; rh <= 1; rh++ {
				want += shiftLoss(rw, rh)
			}
		}
		want /= 9

		got, err := l.Forward(feat, []int{4}, tensors.New(dist[:], 1, 4), WithNorm(norm))
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-6)
	})

	t.Run("corner sample removes shifts for the whole batch", func(t *testing.T) {
		feat := tensors.New(constantMap(2, width, dist), 2, 4, width, width)
		target := tensors.New(append(dist[:], dist[:]...), 2, 4)

		var want float32
		for rw := 0; rw <= 1; rw++ {
			for rh := 0; rh <= 1; rh++ {
				want += shiftLoss(rw, rh)
			}
		}
		want /= 4

		got, err := l.Forward(feat, []int{4, 0}, target, WithNorm(norm))
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-6)
	})
}

func TestREGLoss_NegativeShiftedTargetSkipsShift(t *testing.T) {
	l, err := NewREGLoss(DefaultREGConfig())
	require.NoError(t, err)

	width := 3
	dist := [4]float32{1, 1, 1, 1}
	feat := tensors.New(constantMap(1, width, dist), 1, 4, width, width)
	// left = 0 invalidates rw = -1, bottom = 0.04 invalidates rh = +1.
	target := []float32{0, 1, 1, 0.04}

	var want float32
	n := 0
	for rw := 0; rw <= 1; rw++ {
		for rh := -1; rh <= 0; rh++ {
			shifted := make([]float32, 4)
			require.True(t, shiftTargets(target, shifted, float32(rw)*DefaultNorm, float32(rh)*DefaultNorm))
			want += directionalIoULosses(dist[:], shifted)[0]
			n++
		}
	}
	want /= float32(n)

	got, err := l.Forward(feat, []int{4}, tensors.New(target, 1, 4))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)
}

func TestREGLoss_FallsBackToTargetCell(t *testing.T) {
	l, err := NewREGLoss(DefaultREGConfig())
	require.NoError(t, err)

	width := 3
	dist := [4]float32{1, 1, 1, 1}
	feat := tensors.New(constantMap(1, width, dist), 1, 4, width, width)
	// A negative side invalidates every shift, including (0, 0).
	target := []float32{-0.5, 1, 1, 1}

	want := directionalIoULosses(dist[:], target)[0]
	got, err := l.Forward(feat, []int{4}, tensors.New(target, 1, 4))
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)
}

func TestREGLoss_Errors(t *testing.T) {
	l, err := NewREGLoss(DefaultREGConfig())
	require.NoError(t, err)
	target := tensors.New([]float32{1, 1, 1, 1}, 1, 4)

	_, err = l.Forward(tensors.Zeros(1, 4, 3, 3), []int{9}, target)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = l.Forward(tensors.Zeros(1, 4, 3, 4), []int{0}, target)
	assert.ErrorIs(t, err, tensors.ErrShape)

	_, err = l.Forward(tensors.Zeros(1, 2, 3, 3), []int{0}, target)
	assert.ErrorIs(t, err, tensors.ErrShape)

	_, err = l.Forward(tensors.Zeros(1, 4, 3, 3), []int{0, 1}, target)
	assert.ErrorIs(t, err, tensors.ErrShape)
}
