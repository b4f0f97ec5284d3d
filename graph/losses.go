package graph

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// IOULoss builds the mean directional IoU loss of (N,4) left/right/top/bottom
// offsets: -log((inter + 1) / (union + 1)).
//
// Arguments:
//   - pred: (N,4) predicted offsets.
//   - target: (N,4) target offsets.
//
// Returns:
//   - *G.Node: The scalar mean loss.
//   - error: Shape or construction errors.
func IOULoss(pred, target *G.Node) (*G.Node, error) {
	if !pred.Shape().Eq(target.Shape()) || len(pred.Shape()) != 2 || pred.Shape()[1] != 4 {
		return nil, errors.Wrapf(tensors.ErrShape, "want (N,4) pairs, got %v and %v", pred.Shape(), target.Shape())
	}

	var o ops
	pl, pr, pt, pb := o.column(pred, 0), o.column(pred, 1), o.column(pred, 2), o.column(pred, 3)
	tl, tr, tt, tb := o.column(target, 0), o.column(target, 1), o.column(target, 2), o.column(target, 3)

	predArea := o.mul(o.add(pl, pr), o.add(pt, pb))
	targetArea := o.mul(o.add(tl, tr), o.add(tt, tb))
	wIntersect := o.add(o.min(pl, tl), o.min(pr, tr))
	hIntersect := o.add(o.min(pb, tb), o.min(pt, tt))
	inter := o.mul(wIntersect, hIntersect)
	union := o.sub(o.add(predArea, targetArea), inter)

	one := scalar(1)
	ratio := o.div(o.add(inter, one), o.add(union, one))
	cost := o.mean(o.neg(o.log(ratio)))
	return cost, o.err
}

// LBHinge builds the threshold-gated squared error between prediction and
// label. Entries with label < threshold only penalize positive predictions.
// A non-nil clip caps the loss.
//
// Arguments:
//   - prediction: The prediction node.
//   - label: Label values laid out like prediction.
//   - threshold: The negative label threshold.
//   - clip: Optional upper bound of the loss.
//
// Returns:
//   - *G.Node: The scalar loss.
//   - error: Shape or construction errors.
func LBHinge(prediction *G.Node, label []float32, threshold float32, clip *float32) (*G.Node, error) {
	shape := prediction.Shape()
	if shape.TotalSize() != len(label) {
		return nil, errors.Wrapf(tensors.ErrShape, "prediction %v holds %d values, label %d", shape, shape.TotalSize(), len(label))
	}

	neg := make([]float32, len(label))
	pos := make([]float32, len(label))
	posLabel := make([]float32, len(label))
	for i, l := range label {
		if l < threshold {
			neg[i] = 1
		} else {
			pos[i] = 1
			posLabel[i] = l
		}
	}
	dims := []int(shape.Clone())

	var o ops
	hinged := o.add(
		o.mul(constant(neg, dims...), o.relu(prediction)),
		o.mul(constant(pos, dims...), prediction),
	)
	cost := o.mean(o.square(o.sub(hinged, constant(posLabel, dims...))))
	if clip != nil {
		cost = o.min(cost, scalar(*clip))
	}
	return cost, o.err
}

// EDLLogLikelihood builds the batch mean of the Dirichlet expected squared
// error plus predictive variance for (N,K) concentrations alpha and targets y.
//
// Arguments:
//   - alpha: (N,K) Dirichlet concentrations.
//   - y: (N,K) targets, row-major.
//
// Returns:
//   - *G.Node: The scalar mean loss.
//   - error: Shape or construction errors.
func EDLLogLikelihood(alpha *G.Node, y []float32) (*G.Node, error) {
	shape := alpha.Shape()
	if len(shape) != 2 || shape.TotalSize() != len(y) {
		return nil, errors.Wrapf(tensors.ErrShape, "alpha %v does not match %d targets", shape, len(y))
	}
	n, k := shape[0], shape[1]

	var o ops
	// Every column of alpha·ones(K,K) holds the row sum S.
	s := o.matmul(alpha, filled(1, k, k))
	target := constant(y, n, k)

	mean := o.div(alpha, s)
	errTerm := o.sum(o.square(o.sub(target, mean)), 1)
	variance := o.div(
		o.mul(alpha, o.sub(s, alpha)),
		o.mul(o.mul(s, s), o.add(s, scalar(1))),
	)
	varTerm := o.sum(variance, 1)
	cost := o.mean(o.add(errTerm, varTerm))
	return cost, o.err
}
