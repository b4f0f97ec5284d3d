package boxes

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-trackloss/tensors"
)

func TestCIoULoss_IdenticalBoxes(t *testing.T) {
	b := FromBoxes([]Box{{0, 0, 4, 4}, {10, 20, 14, 30}})

	res, err := CIoULoss(b, b)
	require.NoError(t, err)
	require.False(t, res.Empty())

	assert.InDeltaSlice(t, []float32{1, 1}, res.CIoU.Float32s(), 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1}, res.IoU.Float32s(), 1e-6)
	assert.InDelta(t, 0, res.Loss, 1e-6)
}

func TestCIoULoss_KnownPair(t *testing.T) {
	a := Box{0, 0, 2, 2}
	b := Box{1, 1, 3, 3}

	res, err := CIoULoss(FromBoxes([]Box{a}), FromBoxes([]Box{b}))
	require.NoError(t, err)

	// Same aspect ratio so v = 0; centers 1,1 and 2,2 give d²=2; enclosing
	// diagonal c² = 9+9 = 18.
	want := float32(1.0/7.0 - 2.0/18.0)
	assert.InDelta(t, want, res.CIoU.Float32s()[0], 1e-6)
	assert.InDelta(t, 1-want, res.Loss, 1e-6)
	assert.InDelta(t, want, a.CIoU(b), 1e-6)
}

func TestCIoULoss_AspectTermAboveThreshold(t *testing.T) {
	a := Box{0, 0, 10, 10}
	b := Box{0, 0, 10, 8}

	iou := float32(0.8)
	d := math32.Atan(10.0/8.0) - math32.Atan(1)
	v := 4 / (math32.Pi * math32.Pi) * d * d
	alpha := v / (1 - iou + v)
	// centers (5,5) and (5,4), enclosing diagonal 10²+10²
	u := float32(1.0 / 200.0)

	assert.InDelta(t, iou-u-alpha*v, a.CIoU(b), 1e-5)
}

func TestCIoULoss_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 500
	b1 := make([]Box, n)
	b2 := make([]Box, n)
	for i := range b1 {
		b1[i] = randomBox(rng)
		b2[i] = randomBox(rng)
	}

	res, err := CIoULoss(FromBoxes(b1), FromBoxes(b2))
	require.NoError(t, err)
	for i, c := range res.CIoU.Float32s() {
		assert.GreaterOrEqual(t, c, float32(-1), "pair %d", i)
		assert.LessOrEqual(t, c, float32(1), "pair %d", i)
	}
	assert.GreaterOrEqual(t, res.Loss, float32(0))
	assert.LessOrEqual(t, res.Loss, float32(2))
}

func TestCIoULoss_EmptyBatches(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
	}{
		{"no rows", 0, 3},
		{"no cols", 2, 0},
		{"both empty", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b1 := tensors.Zeros(tt.rows, 4)
			b2 := tensors.Zeros(tt.cols, 4)

			res, err := CIoULoss(b1, b2)
			require.NoError(t, err)
			require.True(t, res.Empty())
			assert.Equal(t, []int{tt.rows, tt.cols}, []int(res.Zeros.Shape()))
			for _, v := range res.Zeros.Float32s() {
				assert.Equal(t, float32(0), v)
			}
			assert.Nil(t, res.CIoU)
		})
	}
}

func TestCIoULoss_SingleBoxBroadcasts(t *testing.T) {
	one := Box{0, 0, 4, 2}
	many := []Box{{1, 0, 5, 2}, {0, 0, 4, 2}, {2, 1, 3, 4}}

	want, err := CIoULoss(FromBoxes([]Box{one, one, one}), FromBoxes(many))
	require.NoError(t, err)

	for name, args := range map[string][2][]Box{
		"Single box first":  {{one}, many},
		"Single box second": {many, {one}},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := CIoULoss(FromBoxes(args[0]), FromBoxes(args[1]))
			require.NoError(t, err)
			assert.False(t, got.Empty())
			assert.Equal(t, []int{3}, []int(got.CIoU.Shape()))
			assert.InDeltaSlice(t, want.CIoU.Float32s(), got.CIoU.Float32s(), 1e-6)
			assert.InDeltaSlice(t, want.IoU.Float32s(), got.IoU.Float32s(), 1e-6)
			assert.InDelta(t, want.Loss, got.Loss, 1e-6)
		})
	}
}

func TestCIoULoss_MismatchedBatches(t *testing.T) {
	_, err := CIoULoss(
		FromBoxes([]Box{{0, 0, 1, 1}, {0, 0, 2, 2}}),
		FromBoxes([]Box{{0, 0, 1, 1}, {0, 0, 2, 2}, {1, 1, 2, 2}}),
	)
	assert.ErrorIs(t, err, tensors.ErrShape)
}

func TestClipBox(t *testing.T) {
	tests := []struct {
		name   string
		box    [4]float32
		margin float32
		want   [4]float32
	}{
		{"inside", [4]float32{10, 10, 20, 20}, 0, [4]float32{10, 10, 20, 20}},
		{"left overflow", [4]float32{-5, 10, 20, 20}, 0, [4]float32{0, 10, 15, 20}},
		{"bottom right overflow", [4]float32{90, 95, 20, 20}, 0, [4]float32{90, 95, 10, 5}},
		{"outside keeps margin", [4]float32{120, 120, 10, 10}, 4, [4]float32{96, 96, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClipBox(tt.box, 100, 100, tt.margin))
		})
	}
}

func TestBoxClip(t *testing.T) {
	assert.Equal(t, Box{0, 0, 50, 40}, Box{-10, -2, 60, 40}.Clip(50, 100))
}
