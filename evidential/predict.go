package evidential

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// Prediction is the Dirichlet summary of a batch of raw outputs.
type Prediction struct {
	// Probabilities is the (N,C) Dirichlet mean alpha / S.
	Probabilities *tensor.Dense
	// Uncertainty is the (N,1) vacuity C / S, 1 when there is no evidence.
	Uncertainty *tensor.Dense
	// Evidence is the (N,1) total evidence S - C.
	Evidence *tensor.Dense
}

// Predict converts raw outputs into class probabilities and uncertainty.
//
// Arguments:
//   - act: Evidence activation.
//   - output: (N,C) or (N,1,C) raw network outputs.
//
// Returns:
//   - *Prediction: Probabilities, uncertainty and total evidence.
//   - error: ErrShape or ErrNil.
func Predict(act Activation, output *tensor.Dense) (*Prediction, error) {
	if !act.valid() {
		return nil, errors.Errorf("unknown activation %s", act)
	}
	out, err := readBatch(output, "output")
	if err != nil {
		return nil, err
	}
	alpha := evidenceToAlpha(act, out)

	probs := make([]float32, len(alpha.data))
	unc := make([]float32, alpha.n)
	ev := make([]float32, alpha.n)
	for i := 0; i < alpha.n; i++ {
		row := alpha.row(i)
		s := floats.Sum(row)
		for k, a := range row {
			probs[i*alpha.k+k] = float32(a / s)
		}
		unc[i] = float32(float64(alpha.k) / s)
		ev[i] = float32(s - float64(alpha.k))
	}
	return &Prediction{
		Probabilities: tensors.New(probs, alpha.n, alpha.k),
		Uncertainty:   tensors.New(unc, alpha.n, 1),
		Evidence:      tensors.New(ev, alpha.n, 1),
	}, nil
}
