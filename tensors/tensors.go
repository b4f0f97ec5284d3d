// Package tensors - float32 tensor access helpers shared by the geometry and loss packages.
package tensors

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var (
	// ErrShape is returned when a tensor does not have the expected shape.
	ErrShape = errors.New("unexpected tensor shape")
	// ErrDtype is returned when a tensor is not float32.
	ErrDtype = errors.New("unexpected tensor dtype")
	// ErrNil is returned when a required tensor is nil.
	ErrNil = errors.New("tensor is nil")
)

// Any matches any extent in CheckShape.
const Any = -1

// Float32s returns the row-major float32 backing data of t.
//
// Views and transposed tensors are materialized into a fresh contiguous tensor
// first, so the returned slice always lines up with t.Shape(). The slice must be
// treated as read-only since it may alias the caller's data.
//
// Arguments:
//   - t: The tensor to read.
//
// Returns:
//   - []float32: The contiguous data.
//   - error: ErrNil or ErrDtype.
func Float32s(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, ErrNil
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(ErrDtype, "want float32, got %v", t.Dtype())
	}
	if t.IsMaterializable() {
		m, ok := t.Materialize().(*tensor.Dense)
		if !ok {
			return nil, errors.Errorf("materialized %T is not *tensor.Dense", t.Materialize())
		}
		t = m
	}
	return t.Float32s(), nil
}

// CheckShape verifies that t has exactly len(dims) dimensions and that every
// extent matches, treating Any as a wildcard.
func CheckShape(t *tensor.Dense, dims ...int) error {
	if t == nil {
		return ErrNil
	}
	shape := t.Shape()
	if len(shape) != len(dims) {
		return errors.Wrapf(ErrShape, "want %d dims %v, got %v", len(dims), dims, shape)
	}
	for i, d := range dims {
		if d != Any && shape[i] != d {
			return errors.Wrapf(ErrShape, "want %v, got %v", dims, shape)
		}
	}
	return nil
}

// Rows returns the leading extent of t, or 0 for a scalar.
func Rows(t *tensor.Dense) int {
	shape := t.Shape()
	if len(shape) == 0 {
		return 0
	}
	return shape[0]
}

// New wraps data in a float32 tensor of the given shape. Data is not copied.
//
// @example
// boxes := tensors.New([]float32{0, 0, 2, 2, 1, 1, 3, 3}, 2, 4)
func New(data []float32, dims ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
}

// Zeros allocates a zero-filled float32 tensor of the given shape.
func Zeros(dims ...int) *tensor.Dense {
	size := 1
	for _, d := range dims {
		size *= d
	}
	return New(make([]float32, size), dims...)
}

// Vector is a shorthand for New(data, len(data)).
func Vector(data []float32) *tensor.Dense {
	return New(data, len(data))
}
