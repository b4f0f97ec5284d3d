package boxes

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-trackloss/tensors"
)

func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name    string
		b1, b2  Box
		iou     float32
		union   float32
		epsilon float32
	}{
		{
			name:    "Half overlap",
			b1:      Box{0, 0, 2, 2},
			b2:      Box{1, 1, 3, 3},
			iou:     1.0 / 7.0, // intersection=1, union=4+4-1=7
			union:   7,
			epsilon: 1e-6,
		},
		{
			name:    "Identical boxes",
			b1:      Box{10, 10, 50, 30},
			b2:      Box{10, 10, 50, 30},
			iou:     1,
			union:   800,
			epsilon: 1e-6,
		},
		{
			name:    "No overlap",
			b1:      Box{0, 0, 10, 10},
			b2:      Box{20, 20, 30, 30},
			iou:     0,
			union:   200,
			epsilon: 1e-6,
		},
		{
			name:    "Touching edges",
			b1:      Box{0, 0, 10, 10},
			b2:      Box{10, 0, 20, 10},
			iou:     0,
			union:   200,
			epsilon: 1e-6,
		},
		{
			name:    "One inside other",
			b1:      Box{0, 0, 100, 100},
			b2:      Box{25, 25, 75, 75},
			iou:     0.25,
			union:   10000,
			epsilon: 1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iou, union, err := IoU(FromBoxes([]Box{tt.b1}), FromBoxes([]Box{tt.b2}))
			require.NoError(t, err)
			require.Equal(t, []int{1}, []int(iou.Shape()))
			require.Equal(t, []int{1}, []int(union.Shape()))

			assert.InDelta(t, tt.iou, iou.Float32s()[0], float64(tt.epsilon))
			assert.InDelta(t, tt.union, union.Float32s()[0], float64(tt.epsilon))

			// The scalar form agrees with the batched form and is symmetric.
			assert.InDelta(t, tt.iou, tt.b1.IoU(tt.b2), float64(tt.epsilon))
			assert.InDelta(t, tt.iou, tt.b2.IoU(tt.b1), float64(tt.epsilon))
		})
	}
}

func TestIoU_PairedByRow(t *testing.T) {
	b1 := tensors.New([]float32{
		0, 0, 2, 2,
		0, 0, 2, 2,
	}, 2, 4)
	b2 := tensors.New([]float32{
		0, 0, 2, 2,
		1, 1, 3, 3,
	}, 2, 4)

	iou, _, err := IoU(b1, b2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1.0 / 7.0}, iou.Float32s(), 1e-6)
}

func TestIoU_ZeroAreaIsNaN(t *testing.T) {
	iou, _, err := IoU(FromBoxes([]Box{{1, 1, 1, 1}}), FromBoxes([]Box{{1, 1, 1, 1}}))
	require.NoError(t, err)
	assert.True(t, math32.IsNaN(iou.Float32s()[0]))
}

func TestIoU_SingleBoxBroadcasts(t *testing.T) {
	one := Box{0, 0, 2, 2}
	many := []Box{{1, 1, 3, 3}, {0, 0, 2, 2}, {5, 5, 6, 6}}

	wantIoU, wantUnion, err := IoU(FromBoxes([]Box{one, one, one}), FromBoxes(many))
	require.NoError(t, err)

	t.Run("Single box first", func(t *testing.T) {
		iou, union, err := IoU(FromBoxes([]Box{one}), FromBoxes(many))
		require.NoError(t, err)
		assert.Equal(t, []int{3}, []int(iou.Shape()))
		assert.InDeltaSlice(t, wantIoU.Float32s(), iou.Float32s(), 1e-6)
		assert.InDeltaSlice(t, wantUnion.Float32s(), union.Float32s(), 1e-6)
	})

	t.Run("Single box second", func(t *testing.T) {
		iou, _, err := IoU(FromBoxes(many), FromBoxes([]Box{one}))
		require.NoError(t, err)
		assert.InDeltaSlice(t, wantIoU.Float32s(), iou.Float32s(), 1e-6)
	})

	t.Run("GIoU", func(t *testing.T) {
		want, _, err := GeneralizedIoU(FromBoxes([]Box{one, one, one}), FromBoxes(many))
		require.NoError(t, err)
		giou, _, err := GeneralizedIoU(FromBoxes([]Box{one}), FromBoxes(many))
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.Float32s(), giou.Float32s(), 1e-6)
	})
}

func TestIoU_MismatchedBatches(t *testing.T) {
	two := FromBoxes([]Box{{0, 0, 1, 1}, {0, 0, 2, 2}})
	three := FromBoxes([]Box{{0, 0, 1, 1}, {0, 0, 1, 1}, {1, 1, 2, 2}})

	_, _, err := IoU(two, three)
	assert.ErrorIs(t, err, tensors.ErrShape)

	_, _, err = GeneralizedIoU(three, two)
	assert.ErrorIs(t, err, tensors.ErrShape)

	_, _, err = IoU(tensors.New([]float32{0, 0, 1}, 1, 3), FromBoxes([]Box{{0, 0, 1, 1}}))
	assert.ErrorIs(t, err, tensors.ErrShape)
}

func TestGeneralizedIoU(t *testing.T) {
	t.Run("Identical boxes", func(t *testing.T) {
		b := FromBoxes([]Box{{0, 0, 4, 4}, {1, 2, 3, 5}})
		giou, iou, err := GeneralizedIoU(b, b)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{1, 1}, giou.Float32s(), 1e-6)
		assert.InDeltaSlice(t, []float32{1, 1}, iou.Float32s(), 1e-6)
	})

	t.Run("Disjoint boxes", func(t *testing.T) {
		b1 := FromBoxes([]Box{{0, 0, 1, 1}})
		b2 := FromBoxes([]Box{{2, 0, 3, 1}})
		giou, iou, err := GeneralizedIoU(b1, b2)
		require.NoError(t, err)

		// enclosing area 3, union 2
		assert.Equal(t, float32(0), iou.Float32s()[0])
		assert.InDelta(t, -1.0/3.0, giou.Float32s()[0], 1e-6)
		assert.Less(t, giou.Float32s()[0], float32(0))
		assert.Greater(t, giou.Float32s()[0], float32(-1))
	})

	t.Run("Half overlap", func(t *testing.T) {
		giou, _, err := GeneralizedIoU(FromBoxes([]Box{{0, 0, 2, 2}}), FromBoxes([]Box{{1, 1, 3, 3}}))
		require.NoError(t, err)
		// enclosing area 9, union 7: 1/7 - 2/9
		assert.InDelta(t, 1.0/7.0-2.0/9.0, giou.Float32s()[0], 1e-6)
	})

	t.Run("Unordered corners", func(t *testing.T) {
		_, _, err := GeneralizedIoU(FromBoxes([]Box{{0, 0, 1, 1}}), FromBoxes([]Box{{3, 0, 2, 1}}))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDegenerateBox)
	})
}

func TestGIoULoss(t *testing.T) {
	b := FromBoxes([]Box{{0, 0, 4, 4}, {1, 2, 3, 5}})
	loss, iou, err := GIoULoss(b, b)
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-6)
	assert.Equal(t, 2, iou.Shape()[0])

	loss, _, err = GIoULoss(FromBoxes([]Box{{0, 0, 1, 1}}), FromBoxes([]Box{{2, 0, 3, 1}}))
	require.NoError(t, err)
	assert.InDelta(t, 1+1.0/3.0, loss, 1e-6)
}

func TestDisjointBoxesProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := randomBox(rng)
		// shift b fully to the right of a
		b := a
		shift := (a.X2 - a.X1) + 1 + rng.Float32()*10
		b.X1 += shift
		b.X2 += shift

		assert.Equal(t, float32(0), a.IoU(b))
		giou := a.GIoU(b)
		assert.Less(t, giou, float32(0))
		assert.Greater(t, giou, float32(-1))

		c := a.Enclosing(b)
		enclosing := (c.X2 - c.X1) * (c.Y2 - c.Y1)
		assert.Greater(t, enclosing, a.Union(b))
	}
}

func randomBox(rng *rand.Rand) Box {
	x1 := rng.Float32() * 100
	y1 := rng.Float32() * 100
	return Box{X1: x1, Y1: y1, X2: x1 + 1 + rng.Float32()*50, Y2: y1 + 1 + rng.Float32()*50}
}
