package boxes

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// ciouAlphaIoU is the IoU above which the aspect-ratio term is weighted in.
const ciouAlphaIoU = 0.5

// CIoUResult holds the outputs of CIoULoss.
type CIoUResult struct {
	// Loss is mean(1 - ciou) over the batch.
	Loss float32
	// CIoU holds the clamped per-pair CIoU values, shape (N,).
	CIoU *tensor.Dense
	// IoU holds the per-pair IoU values, shape (N,).
	IoU *tensor.Dense
	// Zeros is set instead of the fields above when either batch is empty. It
	// has shape (rows, cols).
	Zeros *tensor.Dense
}

// Empty reports whether the result was short-circuited on an empty batch.
func (r *CIoUResult) Empty() bool { return r.Zeros != nil }

// CIoULoss computes the Complete IoU loss between two row-paired xyxy batches.
//
// Per pair it combines the IoU with a normalized center distance term
//
//	u = d² / c²
//
// where d is the distance between box centers and c the diagonal of the
// enclosing box, and an aspect ratio consistency term
//
//	v = 4/π² · (atan(w2/h2) - atan(w1/h1))²
//
// weighted by alpha = v / (1 - iou + v) only when iou > 0.5. alpha is treated as
// a constant weight. The final CIoU = iou - u - alpha·v is clamped to [-1, 1].
//
// If either batch is empty the result only carries an all-zero (rows, cols)
// tensor. The batches are always evaluated in the given orientation, and a
// single box broadcasts against every row of the other batch.
//
// Zero heights are not guarded and propagate Inf/NaN through the arctangent.
//
// Arguments:
//   - boxes1: (N,4) xyxy boxes.
//   - boxes2: (N,4) xyxy boxes.
//
// Returns:
//   - *CIoUResult: Loss, per-pair CIoU and IoU.
//   - error: ErrShape on malformed or mismatched batches.
func CIoULoss(boxes1, boxes2 *tensor.Dense) (*CIoUResult, error) {
	if err := tensors.CheckShape(boxes1, tensors.Any, 4); err != nil {
		return nil, err
	}
	if err := tensors.CheckShape(boxes2, tensors.Any, 4); err != nil {
		return nil, err
	}
	rows, cols := tensors.Rows(boxes1), tensors.Rows(boxes2)
	if rows*cols == 0 {
		return &CIoUResult{Zeros: tensors.Zeros(rows, cols)}, nil
	}

	b1, b2, err := pairs(boxes1, boxes2)
	if err != nil {
		return nil, err
	}

	cious := make([]float32, len(b1))
	ious := make([]float32, len(b1))
	var sum float32
	for i := range b1 {
		cious[i], ious[i] = completeIoU(b1[i], b2[i])
		sum += 1 - cious[i]
	}

	return &CIoUResult{
		Loss: sum / float32(len(b1)),
		CIoU: tensors.Vector(cious),
		IoU:  tensors.Vector(ious),
	}, nil
}

// CIoU returns the clamped Complete IoU of a single pair.
func (b Box) CIoU(other Box) float32 {
	ciou, _ := completeIoU(b, other)
	return ciou
}

func completeIoU(a, b Box) (ciou, iou float32) {
	w1, h1 := a.X2-a.X1, a.Y2-a.Y1
	w2, h2 := b.X2-b.X1, b.Y2-b.Y1
	cx1, cy1 := (a.X1+a.X2)/2, (a.Y1+a.Y2)/2
	cx2, cy2 := (b.X1+b.X2)/2, (b.Y1+b.Y2)/2

	interL := math32.Max(cx1-w1/2, cx2-w2/2)
	interR := math32.Min(cx1+w1/2, cx2+w2/2)
	interT := math32.Max(cy1-h1/2, cy2-h2/2)
	interB := math32.Min(cy1+h1/2, cy2+h2/2)
	interArea := math32.Max(interR-interL, 0) * math32.Max(interB-interT, 0)

	cL := math32.Min(cx1-w1/2, cx2-w2/2)
	cR := math32.Max(cx1+w1/2, cx2+w2/2)
	cT := math32.Min(cy1-h1/2, cy2-h2/2)
	cB := math32.Max(cy1+h1/2, cy2+h2/2)

	interDiag := (cx2-cx1)*(cx2-cx1) + (cy2-cy1)*(cy2-cy1)
	cw, ch := math32.Max(cR-cL, 0), math32.Max(cB-cT, 0)
	cDiag := cw*cw + ch*ch

	union := w1*h1 + w2*h2 - interArea
	u := interDiag / cDiag
	iou = interArea / union

	d := math32.Atan(w2/h2) - math32.Atan(w1/h1)
	v := 4 / (math32.Pi * math32.Pi) * d * d

	// v == 0 means matching aspect ratios, where alpha·v is 0 regardless of alpha.
	var alpha float32
	if iou > ciouAlphaIoU && v > 0 {
		alpha = v / (1 - iou + v)
	}

	ciou = clamp(iou-u-alpha*v, -1, 1)
	return ciou, iou
}
