package boxes

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// ErrDegenerateBox is returned by GeneralizedIoU when a box has x2 < x1 or y2 < y1.
var ErrDegenerateBox = errors.New("degenerate box: x2 < x1 or y2 < y1")

// pairs reads two (N,4) batches and lines them up row by row. A batch of a
// single box is repeated against every row of the other batch.
func pairs(boxes1, boxes2 *tensor.Dense) ([]Box, []Box, error) {
	b1, err := ToBoxes(boxes1)
	if err != nil {
		return nil, nil, errors.Wrap(err, "boxes1")
	}
	b2, err := ToBoxes(boxes2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "boxes2")
	}
	switch {
	case len(b1) == len(b2):
	case len(b1) == 1:
		b1 = repeat(b1[0], len(b2))
	case len(b2) == 1:
		b2 = repeat(b2[0], len(b1))
	default:
		return nil, nil, errors.Wrapf(tensors.ErrShape, "paired batches differ in size: %d vs %d", len(b1), len(b2))
	}
	return b1, b2, nil
}

func repeat(b Box, n int) []Box {
	out := make([]Box, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// IoU computes the row-paired Intersection over Union of two box batches.
//
// boxes1[i] is compared with boxes2[i] only, this is not an all-pairs matrix.
// A (1,4) batch broadcasts against an (N,4) one. Zero-area pairs divide 0 by 0
// and yield NaN.
//
// Arguments:
//   - boxes1: (N,4) or (1,4) xyxy boxes.
//   - boxes2: (N,4) or (1,4) xyxy boxes.
//
// Returns:
//   - iou: (N,) overlap ratios.
//   - union: (N,) union areas.
//   - error: ErrShape on malformed or mismatched batches.
//
// @example
// b1 := tensors.New([]float32{0, 0, 2, 2}, 1, 4)
// b2 := tensors.New([]float32{1, 1, 3, 3}, 1, 4)
// iou, union, _ := IoU(b1, b2) // iou=[0.1429] union=[7]
func IoU(boxes1, boxes2 *tensor.Dense) (iou, union *tensor.Dense, err error) {
	b1, b2, err := pairs(boxes1, boxes2)
	if err != nil {
		return nil, nil, err
	}
	ious, unions := pairwiseIoU(b1, b2)
	return tensors.Vector(ious), tensors.Vector(unions), nil
}

func pairwiseIoU(b1, b2 []Box) (ious, unions []float32) {
	ious = make([]float32, len(b1))
	unions = make([]float32, len(b1))
	for i := range b1 {
		inter := b1[i].Intersection(b2[i])
		unions[i] = b1[i].Area() + b2[i].Area() - inter
		ious[i] = inter / unions[i]
	}
	return ious, unions
}

// GeneralizedIoU computes the row-paired GIoU from https://giou.stanford.edu/.
//
// Every box in both batches must have ordered corners, otherwise ErrDegenerateBox
// is returned and nothing is computed. Boxes that are valid but collapse to a
// zero-area enclosing box still produce Inf/NaN.
//
// Returns:
//   - giou: (N,) values in [-1, 1].
//   - iou: (N,) plain IoU values.
//   - error: ErrShape or ErrDegenerateBox.
func GeneralizedIoU(boxes1, boxes2 *tensor.Dense) (giou, iou *tensor.Dense, err error) {
	b1, b2, err := pairs(boxes1, boxes2)
	if err != nil {
		return nil, nil, err
	}
	for i := range b1 {
		if !b1[i].Valid() {
			return nil, nil, errors.Wrapf(ErrDegenerateBox, "boxes1[%d] = %v", i, b1[i])
		}
		if !b2[i].Valid() {
			return nil, nil, errors.Wrapf(ErrDegenerateBox, "boxes2[%d] = %v", i, b2[i])
		}
	}

	ious, unions := pairwiseIoU(b1, b2)
	gious := make([]float32, len(b1))
	for i := range b1 {
		c := b1[i].Enclosing(b2[i])
		area := math32.Max(c.X2-c.X1, 0) * math32.Max(c.Y2-c.Y1, 0)
		gious[i] = ious[i] - (area-unions[i])/area
	}
	return tensors.Vector(gious), tensors.Vector(ious), nil
}

// GIoULoss returns mean(1 - giou) over the batch together with the raw IoU.
//
// An empty batch yields NaN, matching the mean of an empty set.
func GIoULoss(boxes1, boxes2 *tensor.Dense) (float32, *tensor.Dense, error) {
	giou, iou, err := GeneralizedIoU(boxes1, boxes2)
	if err != nil {
		return 0, nil, err
	}
	return meanOneMinus(giou.Float32s()), iou, nil
}

func meanOneMinus(xs []float32) float32 {
	var sum float32
	for _, x := range xs {
		sum += 1 - x
	}
	return sum / float32(len(xs))
}
