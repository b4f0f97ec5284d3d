// Package losses - Box regression and heatmap losses for tracker training.
package losses

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

var (
	// ErrEmptyBatch is returned when an unweighted reduction receives no samples.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrUnsupportedLossType is returned by NewREGLoss for anything but LossTypeIoU.
	ErrUnsupportedLossType = errors.New("only iou loss is supported")
	// ErrIndexOutOfRange is returned when a gather index falls outside the feature map.
	ErrIndexOutOfRange = errors.New("gather index out of range")
)

// Reduction selects how per-sample losses are combined.
type Reduction string

const (
	// ReductionMean averages per-sample losses.
	ReductionMean Reduction = "mean"
	// ReductionSum adds per-sample losses.
	ReductionSum Reduction = "sum"
)

// IOULoss is the IoU loss for boxes parametrized as distances from a reference
// point to the four sides: (left, right, top, bottom).
type IOULoss struct {
	Reduction Reduction
}

// NewIOULoss creates an IOULoss. An empty reduction means ReductionMean, and
// anything other than ReductionMean sums.
func NewIOULoss(reduction Reduction) *IOULoss {
	if reduction == "" {
		reduction = ReductionMean
	}
	return &IOULoss{Reduction: reduction}
}

// Forward computes the reduced loss.
//
// Both boxes share the reference point, so the intersection extent on each axis
// is the sum of the per-side minimums. The per-sample loss is the Laplace
// smoothed log-IoU
//
//	-log((intersection + 1) / (union + 1))
//
// Arguments:
//   - pred: (N,4) predicted (left, right, top, bottom) distances.
//   - target: (N,4) target distances.
//   - weight: Optional (N,) sample weights. When non-nil with a positive sum the
//     result is the weighted mean and the reduction is ignored.
//
// Returns:
//   - float32: The reduced loss.
//   - error: ErrShape on malformed input, ErrEmptyBatch when N == 0 on the
//     unweighted path.
//
// @example
// l := NewIOULoss(ReductionMean)
// pred := tensors.New([]float32{1, 1, 1, 1}, 1, 4)
// loss, _ := l.Forward(pred, pred, nil) // 0
func (l *IOULoss) Forward(pred, target, weight *tensor.Dense) (float32, error) {
	losses, err := l.perSample(pred, target)
	if err != nil {
		return 0, err
	}

	if weight != nil {
		if err := tensors.CheckShape(weight, len(losses)); err != nil {
			return 0, errors.Wrap(err, "weight")
		}
		w, err := tensors.Float32s(weight)
		if err != nil {
			return 0, errors.Wrap(err, "weight")
		}
		var wsum, lsum float32
		for i, v := range w {
			wsum += v
			lsum += losses[i] * v
		}
		if wsum > 0 {
			return lsum / wsum, nil
		}
	}

	return l.reduce(losses)
}

// PerSample returns the unreduced (N,) losses.
func (l *IOULoss) PerSample(pred, target *tensor.Dense) (*tensor.Dense, error) {
	losses, err := l.perSample(pred, target)
	if err != nil {
		return nil, err
	}
	return tensors.Vector(losses), nil
}

func (l *IOULoss) perSample(pred, target *tensor.Dense) ([]float32, error) {
	if err := tensors.CheckShape(pred, tensors.Any, 4); err != nil {
		return nil, errors.Wrap(err, "pred")
	}
	if err := tensors.CheckShape(target, tensors.Rows(pred), 4); err != nil {
		return nil, errors.Wrap(err, "target")
	}
	p, err := tensors.Float32s(pred)
	if err != nil {
		return nil, errors.Wrap(err, "pred")
	}
	t, err := tensors.Float32s(target)
	if err != nil {
		return nil, errors.Wrap(err, "target")
	}
	return directionalIoULosses(p, t), nil
}

func (l *IOULoss) reduce(losses []float32) (float32, error) {
	if len(losses) == 0 {
		return 0, ErrEmptyBatch
	}
	var sum float32
	for _, v := range losses {
		sum += v
	}
	if l.Reduction == ReductionMean {
		return sum / float32(len(losses)), nil
	}
	return sum, nil
}

// directionalIoULosses computes the per-sample loss over flat (N*4) slices laid
// out as (left, right, top, bottom).
func directionalIoULosses(pred, target []float32) []float32 {
	out := make([]float32, len(pred)/4)
	for i := range out {
		p := pred[4*i : 4*i+4]
		t := target[4*i : 4*i+4]
		pl, pr, pt, pb := p[0], p[1], p[2], p[3]
		tl, tr, tt, tb := t[0], t[1], t[2], t[3]

		targetArea := (tl + tr) * (tt + tb)
		predArea := (pl + pr) * (pt + pb)

		wInter := math32.Min(pl, tl) + math32.Min(pr, tr)
		hInter := math32.Min(pb, tb) + math32.Min(pt, tt)

		inter := wInter * hInter
		union := targetArea + predArea - inter
		out[i] = -math32.Log((inter + 1) / (union + 1))
	}
	return out
}
