package evidential

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

func digamma(x float64) float64 { return mathext.Digamma(x) }

// batch is an (n, k) row-major float64 matrix.
type batch struct {
	data []float64
	n, k int
}

func (b batch) row(i int) []float64 { return b.data[i*b.k : (i+1)*b.k] }

// readBatch reads a float32 (N,K) tensor, accepting (N,1,K) and squeezing the
// middle axis.
func readBatch(t *tensor.Dense, name string) (batch, error) {
	if t == nil {
		return batch{}, errors.Wrap(tensors.ErrNil, name)
	}
	shape := t.Shape()
	var n, k int
	switch {
	case len(shape) == 2:
		n, k = shape[0], shape[1]
	case len(shape) == 3 && shape[1] == 1:
		n, k = shape[0], shape[2]
	default:
		return batch{}, errors.Wrapf(tensors.ErrShape, "%s: want (N,K) or (N,1,K), got %v", name, shape)
	}
	data, err := tensors.Float32s(t)
	if err != nil {
		return batch{}, errors.Wrap(err, name)
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return batch{data: out, n: n, k: k}, nil
}

func (b batch) column() *tensor.Dense {
	out := make([]float32, len(b.data))
	for i, v := range b.data {
		out[i] = float32(v)
	}
	return tensors.New(out, b.n, 1)
}

func checkPaired(y, alpha batch) error {
	if y.n != alpha.n || y.k != alpha.k {
		return errors.Wrapf(tensors.ErrShape, "target (%d,%d) vs alpha (%d,%d)", y.n, y.k, alpha.n, alpha.k)
	}
	return nil
}

// KLDivergence computes KL(Dir(alpha) || Dir(1, ..., 1)) per row:
//
//	lnΓ(S) - Σ lnΓ(alpha_k) + Σ lnΓ(1) - lnΓ(K) + Σ (alpha_k - 1)(ψ(alpha_k) - ψ(S))
//
// Arguments:
//   - alpha: (N,K) Dirichlet concentrations, every entry > 0.
//   - numClasses: K.
//   - opts: WithDevice.
//
// Returns:
//   - *tensor.Dense: (N,1) divergences, 0 for alpha = 1.
//   - error: ErrShape when alpha does not have numClasses columns.
func KLDivergence(alpha *tensor.Dense, numClasses int, opts ...Option) (*tensor.Dense, error) {
	if _, err := resolveOptions(opts); err != nil {
		return nil, err
	}
	a, err := readBatch(alpha, "alpha")
	if err != nil {
		return nil, err
	}
	if a.k != numClasses {
		return nil, errors.Wrapf(tensors.ErrShape, "alpha has %d classes, want %d", a.k, numClasses)
	}
	return klDivergence(a).column(), nil
}

func klDivergence(alpha batch) batch {
	out := batch{data: make([]float64, alpha.n), n: alpha.n, k: 1}
	lgammaK, _ := math.Lgamma(float64(alpha.k))
	for i := 0; i < alpha.n; i++ {
		row := alpha.row(i)
		s := floats.Sum(row)
		lgammaS, _ := math.Lgamma(s)
		digammaS := mathext.Digamma(s)

		first := lgammaS - lgammaK
		var second float64
		for _, a := range row {
			la, _ := math.Lgamma(a)
			first -= la
			second += (a - 1) * (mathext.Digamma(a) - digammaS)
		}
		out.data[i] = first + second
	}
	return out
}

// LogLikelihood computes the expected squared error of the Dirichlet mean plus
// its predictive variance per row:
//
//	Σ (y_k - alpha_k/S)² + Σ alpha_k(S - alpha_k) / (S²(S + 1))
//
// Arguments:
//   - y: (N,K) one-hot or soft targets.
//   - alpha: (N,K) Dirichlet concentrations.
//   - opts: WithDevice.
//
// Returns:
//   - *tensor.Dense: (N,1) losses.
//   - error: ErrShape when y and alpha differ in shape.
func LogLikelihood(y, alpha *tensor.Dense, opts ...Option) (*tensor.Dense, error) {
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
	if err := checkPaired(yb, ab); err != nil {
		return nil, err
	}
	return logLikelihood(yb, ab).column(), nil
}

func logLikelihood(y, alpha batch) batch {
	out := batch{data: make([]float64, alpha.n), n: alpha.n, k: 1}
	for i := 0; i < alpha.n; i++ {
		ar, yr := alpha.row(i), y.row(i)
		s := floats.Sum(ar)
		var errTerm, varTerm float64
		for k, a := range ar {
			d := yr[k] - a/s
			errTerm += d * d
			varTerm += a * (s - a) / (s * s * (s + 1))
		}
		out.data[i] = errTerm + varTerm
	}
	return out
}

// expectedRisk computes Σ y·(f(S) - f(alpha)) per row.
func expectedRisk(f func(float64) float64, y, alpha batch) batch {
	out := batch{data: make([]float64, alpha.n), n: alpha.n, k: 1}
	for i := 0; i < alpha.n; i++ {
		ar, yr := alpha.row(i), y.row(i)
		fs := f(floats.Sum(ar))
		var a float64
		for k, v := range ar {
			a += yr[k] * (fs - f(v))
		}
		out.data[i] = a
	}
	return out
}

// shrinkAlpha removes the evidence of the target class: (alpha - 1)(1 - y) + 1.
func shrinkAlpha(y, alpha batch) batch {
	out := batch{data: make([]float64, len(alpha.data)), n: alpha.n, k: alpha.k}
	for i, a := range alpha.data {
		out.data[i] = (a-1)*(1-y.data[i]) + 1
	}
	return out
}
