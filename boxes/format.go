package boxes

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// Format names one of the supported 4-tuple box encodings.
type Format string

const (
	// FormatXYXY is (x1, y1, x2, y2).
	FormatXYXY Format = "xyxy"
	// FormatXYWH is (x1, y1, w, h).
	FormatXYWH Format = "xywh"
	// FormatCxCyWH is (cx, cy, w, h).
	FormatCxCyWH Format = "cxcywh"
)

// CxCyWHToXYXY converts center boxes to corner boxes.
//
// Arguments:
//   - x: Tensor of any rank whose last dimension is 4.
//
// Returns:
//   - *tensor.Dense: New tensor with the same shape in xyxy encoding.
//   - error: ErrShape when the last dimension is not 4.
//
// @example
// out, _ := CxCyWHToXYXY(tensors.New([]float32{1, 1, 2, 2}, 1, 4)) // [[0 0 2 2]]
func CxCyWHToXYXY(x *tensor.Dense) (*tensor.Dense, error) {
	return convert(x, func(in, out []float32) {
		cx, cy, w, h := in[0], in[1], in[2], in[3]
		out[0], out[1], out[2], out[3] = cx-0.5*w, cy-0.5*h, cx+0.5*w, cy+0.5*h
	})
}

// XYWHToXYXY converts corner-plus-extent boxes to corner boxes.
func XYWHToXYXY(x *tensor.Dense) (*tensor.Dense, error) {
	return convert(x, func(in, out []float32) {
		x1, y1, w, h := in[0], in[1], in[2], in[3]
		out[0], out[1], out[2], out[3] = x1, y1, x1+w, y1+h
	})
}

// XYXYToXYWH converts corner boxes to corner-plus-extent boxes.
func XYXYToXYWH(x *tensor.Dense) (*tensor.Dense, error) {
	return convert(x, func(in, out []float32) {
		x1, y1, x2, y2 := in[0], in[1], in[2], in[3]
		out[0], out[1], out[2], out[3] = x1, y1, x2-x1, y2-y1
	})
}

// XYXYToCxCyWH converts corner boxes to center boxes.
func XYXYToCxCyWH(x *tensor.Dense) (*tensor.Dense, error) {
	return convert(x, func(in, out []float32) {
		x0, y0, x1, y1 := in[0], in[1], in[2], in[3]
		out[0], out[1], out[2], out[3] = (x0+x1)/2, (y0+y1)/2, x1-x0, y1-y0
	})
}

// Convert re-encodes boxes between any two formats.
func Convert(x *tensor.Dense, from, to Format) (*tensor.Dense, error) {
	if from == to {
		if _, err := lastDimFour(x); err != nil {
			return nil, err
		}
		return x.Clone().(*tensor.Dense), nil
	}

	xyxy := x
	var err error
	switch from {
	case FormatXYXY:
	case FormatXYWH:
		xyxy, err = XYWHToXYXY(x)
	case FormatCxCyWH:
		xyxy, err = CxCyWHToXYXY(x)
	default:
		return nil, errors.Errorf("unknown box format %q", from)
	}
	if err != nil {
		return nil, err
	}

	switch to {
	case FormatXYXY:
		return xyxy, nil
	case FormatXYWH:
		return XYXYToXYWH(xyxy)
	case FormatCxCyWH:
		return XYXYToCxCyWH(xyxy)
	default:
		return nil, errors.Errorf("unknown box format %q", to)
	}
}

func lastDimFour(x *tensor.Dense) ([]float32, error) {
	data, err := tensors.Float32s(x)
	if err != nil {
		return nil, err
	}
	shape := x.Shape()
	if len(shape) == 0 || shape[len(shape)-1] != 4 {
		return nil, errors.Wrapf(tensors.ErrShape, "last dimension must be 4, got %v", shape)
	}
	return data, nil
}

func convert(x *tensor.Dense, fn func(in, out []float32)) (*tensor.Dense, error) {
	data, err := lastDimFour(x)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(data))
	for i := 0; i < len(data); i += 4 {
		fn(data[i:i+4], out[i:i+4])
	}
	return tensors.New(out, x.Shape().Clone()...), nil
}

// ToBoxes reads an (N,4) xyxy tensor into Box values.
func ToBoxes(x *tensor.Dense) ([]Box, error) {
	if err := tensors.CheckShape(x, tensors.Any, 4); err != nil {
		return nil, err
	}
	data, err := tensors.Float32s(x)
	if err != nil {
		return nil, err
	}
	out := make([]Box, len(data)/4)
	for i := range out {
		out[i] = Box{X1: data[4*i], Y1: data[4*i+1], X2: data[4*i+2], Y2: data[4*i+3]}
	}
	return out, nil
}

// FromBoxes packs Box values into an (N,4) xyxy tensor.
func FromBoxes(bs []Box) *tensor.Dense {
	out := make([]float32, 0, 4*len(bs))
	for _, b := range bs {
		out = append(out, b.X1, b.Y1, b.X2, b.Y2)
	}
	return tensors.New(out, len(bs), 4)
}
