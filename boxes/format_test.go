package boxes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

func TestFormatRoundTrip(t *testing.T) {
	xyxy := []float32{
		0, 0, 2, 2,
		1.5, 2.5, 10, 4,
		-3, -1, 7, 9,
	}

	tests := []struct {
		name string
		to   func(*tensor.Dense) (*tensor.Dense, error)
		back func(*tensor.Dense) (*tensor.Dense, error)
	}{
		{"cxcywh", XYXYToCxCyWH, CxCyWHToXYXY},
		{"xywh", XYXYToXYWH, XYWHToXYXY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tensors.New(append([]float32(nil), xyxy...), 3, 4)
			encoded, err := tt.to(in)
			require.NoError(t, err)
			decoded, err := tt.back(encoded)
			require.NoError(t, err)

			assert.Equal(t, in.Shape(), decoded.Shape())
			assert.InDeltaSlice(t, xyxy, decoded.Float32s(), 1e-5)
		})
	}
}

func TestXYXYToCxCyWH(t *testing.T) {
	out, err := XYXYToCxCyWH(tensors.New([]float32{0, 0, 4, 2}, 1, 4))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1, 4, 2}, out.Float32s())
}

func TestXYWHToXYXY(t *testing.T) {
	out, err := XYWHToXYXY(tensors.New([]float32{1, 2, 3, 4}, 4))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 4, 6}, out.Float32s())
}

func TestConvertHigherRank(t *testing.T) {
	in := tensors.New([]float32{
		1, 1, 2, 2,
		5, 5, 2, 4,
	}, 2, 1, 4)
	out, err := Convert(in, FormatCxCyWH, FormatXYWH)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 4}, []int(out.Shape()))
	assert.Equal(t, []float32{0, 0, 2, 2, 4, 3, 2, 4}, out.Float32s())
}

func TestConvertRejectsBadShape(t *testing.T) {
	_, err := CxCyWHToXYXY(tensors.New([]float32{1, 2, 3}, 1, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, tensors.ErrShape)

	_, err = Convert(tensors.New([]float32{1, 2, 3, 4}, 1, 4), "polar", FormatXYXY)
	assert.Error(t, err)
}

func TestBoxHelpers(t *testing.T) {
	b := BoxFromCxCyWH(2, 1, 4, 2)
	assert.Equal(t, Box{X1: 0, Y1: 0, X2: 4, Y2: 2}, b)

	x, y, w, h := b.XYWH()
	assert.Equal(t, [4]float32{0, 0, 4, 2}, [4]float32{x, y, w, h})
	assert.Equal(t, b, BoxFromXYWH(x, y, w, h))

	bs := []Box{b, {X1: 1, Y1: 1, X2: 3, Y2: 3}}
	back, err := ToBoxes(FromBoxes(bs))
	require.NoError(t, err)
	assert.Equal(t, bs, back)
}
