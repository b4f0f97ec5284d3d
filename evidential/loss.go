package evidential

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// Loss computes the per-sample evidential loss for Dirichlet concentrations.
//
// The risk term is the log-likelihood for MSE and Σ y·(f(S) - f(alpha)) for
// Log (f = log) and Digamma (f = ψ). The KL term is taken on the concentrations
// with the target class evidence removed and is scaled by the annealing
// coefficient.
//
// Arguments:
//   - est: The expected-risk estimator.
//   - y: (N,K) targets.
//   - alpha: (N,K) concentrations, alpha = evidence + 1.
//   - epoch: Current epoch.
//   - numClasses: K.
//   - annealingStep: Epochs until the KL term reaches full weight.
//   - opts: WithDevice.
//
// Returns:
//   - *tensor.Dense: (N,1) losses.
//   - error: ErrShape, ErrInvalidAnnealingStep or a device error.
func Loss(est Estimator, y, alpha *tensor.Dense, epoch, numClasses, annealingStep int, opts ...Option) (*tensor.Dense, error) {
	if _, err := resolveOptions(opts); err != nil {
		return nil, err
	}
	yb, err := readBatch(y, "target")
	if err != nil {
		return nil, err
	}
	ab, err := readBatch(alpha, "alpha")
	if err != nil {
		return nil, err
	}
	out, err := loss(est, yb, ab, epoch, numClasses, annealingStep)
	if err != nil {
		return nil, err
	}
	return out.column(), nil
}

func loss(est Estimator, y, alpha batch, epoch, numClasses, annealingStep int) (batch, error) {
	if !est.valid() {
		return batch{}, errors.Errorf("unknown estimator %s", est)
	}
	if err := checkPaired(y, alpha); err != nil {
		return batch{}, err
	}
	if alpha.k != numClasses {
		return batch{}, errors.Wrapf(tensors.ErrShape, "alpha has %d classes, want %d", alpha.k, numClasses)
	}
	coef, err := AnnealingCoefficient(epoch, annealingStep)
	if err != nil {
		return batch{}, err
	}

	var risk batch
	switch est {
	case MSE:
		risk = logLikelihood(y, alpha)
	case Log:
		risk = expectedRisk(math.Log, y, alpha)
	case Digamma:
		risk = expectedRisk(digamma, y, alpha)
	}

	kl := klDivergence(shrinkAlpha(y, alpha))
	for i := range risk.data {
		risk.data[i] += coef * kl.data[i]
	}
	return risk, nil
}

// EDLLoss turns raw outputs into evidence with act and returns the batch mean
// of Loss.
//
// Arguments:
//   - act: Evidence activation.
//   - est: Expected-risk estimator.
//   - output: (N,C) or (N,1,C) raw network outputs.
//   - target: (N,C) targets.
//   - epoch: Current epoch.
//   - numClasses: C.
//   - annealingStep: Epochs until the KL term reaches full weight.
//   - opts: WithDevice.
//
// Returns:
//   - float32: The mean loss.
//   - error: ErrShape, ErrInvalidAnnealingStep or a device error.
//
// @example
//
//	loss, err := evidential.EDLLoss(evidential.Softplus, evidential.Digamma, logits, onehot, epoch, 10, 10)
func EDLLoss(act Activation, est Estimator, output, target *tensor.Dense, epoch, numClasses, annealingStep int, opts ...Option) (float32, error) {
	if !act.valid() {
		return 0, errors.Errorf("unknown activation %s", act)
	}
	if _, err := resolveOptions(opts); err != nil {
		return 0, err
	}
	out, err := readBatch(output, "output")
	if err != nil {
		return 0, err
	}
	y, err := readBatch(target, "target")
	if err != nil {
		return 0, err
	}
	if out.n == 0 {
		return 0, errors.Wrap(tensors.ErrShape, "empty batch")
	}
	alpha := evidenceToAlpha(act, out)
	per, err := loss(est, y, alpha, epoch, numClasses, annealingStep)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range per.data {
		sum += v
	}
	return float32(sum / float64(per.n)), nil
}

// EDLMSELoss is EDLLoss with ReLU evidence and the MSE estimator.
func EDLMSELoss(output, target *tensor.Dense, epoch, numClasses, annealingStep int, opts ...Option) (float32, error) {
	return EDLLoss(ReLU, MSE, output, target, epoch, numClasses, annealingStep, opts...)
}

// EDLLogLoss is EDLLoss with ReLU evidence and the Log estimator.
func EDLLogLoss(output, target *tensor.Dense, epoch, numClasses, annealingStep int, opts ...Option) (float32, error) {
	return EDLLoss(ReLU, Log, output, target, epoch, numClasses, annealingStep, opts...)
}

// EDLDigammaLoss is EDLLoss with ReLU evidence and the Digamma estimator.
func EDLDigammaLoss(output, target *tensor.Dense, epoch, numClasses, annealingStep int, opts ...Option) (float32, error) {
	return EDLLoss(ReLU, Digamma, output, target, epoch, numClasses, annealingStep, opts...)
}

func evidenceToAlpha(act Activation, out batch) batch {
	alpha := batch{data: make([]float64, len(out.data)), n: out.n, k: out.k}
	for i, v := range out.data {
		alpha.data[i] = act.Apply(v) + 1
	}
	return alpha
}
