package tensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestFloat32s(t *testing.T) {
	data, err := Float32s(New([]float32{1, 2, 3, 4}, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, data)

	_, err = Float32s(nil)
	assert.ErrorIs(t, err, ErrNil)

	f64 := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{1, 2}))
	_, err = Float32s(f64)
	assert.ErrorIs(t, err, ErrDtype)
}

func TestFloat32s_MaterializesTranspose(t *testing.T) {
	m := New([]float32{
		1, 2, 3,
		4, 5, 6,
	}, 2, 3)
	require.NoError(t, m.T())

	data, err := Float32s(m)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, data)
}

func TestCheckShape(t *testing.T) {
	x := Zeros(3, 4)

	assert.NoError(t, CheckShape(x, 3, 4))
	assert.NoError(t, CheckShape(x, Any, 4))
	assert.ErrorIs(t, CheckShape(x, Any, 3), ErrShape)
	assert.ErrorIs(t, CheckShape(x, 3, 4, 1), ErrShape)
	assert.ErrorIs(t, CheckShape(nil, 1), ErrNil)
}

func TestZerosAndRows(t *testing.T) {
	z := Zeros(0, 4)
	assert.Equal(t, 0, Rows(z))
	assert.Empty(t, z.Float32s())

	v := Vector([]float32{1, 2, 3})
	assert.Equal(t, 3, Rows(v))
	assert.Equal(t, []int{3}, []int(v.Shape()))
}
