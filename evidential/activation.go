// Package evidential - Evidential deep learning losses over Dirichlet evidence.
//
// A classifier's raw outputs are turned into non-negative evidence e by an
// Activation; alpha = e + 1 are the concentration parameters of a Dirichlet
// over class probabilities and S = Σ alpha is its total evidence mass. The
// losses combine an expected-risk term, chosen by an Estimator, with a KL
// regularizer towards the uniform Dirichlet that is annealed in over training.
package evidential

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Activation maps raw network outputs to non-negative evidence.
type Activation int

const (
	// ReLU evidence: max(x, 0).
	ReLU Activation = iota
	// Exp evidence: exp(clamp(x, -10, 10)).
	Exp
	// Softplus evidence: log(1 + exp(x)).
	Softplus
)

// expClamp bounds the input of the Exp activation.
const expClamp = 10

// softplusThreshold is where softplus switches to the identity.
const softplusThreshold = 20

// Apply returns the evidence for a single raw output, or NaN for an unknown
// activation.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case ReLU:
		return math.Max(x, 0)
	case Exp:
		return math.Exp(math.Min(math.Max(x, -expClamp), expClamp))
	case Softplus:
		if x > softplusThreshold {
			return x
		}
		return math.Log1p(math.Exp(x))
	default:
		return math.NaN()
	}
}

func (a Activation) valid() bool { return a >= ReLU && a <= Softplus }

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Exp:
		return "exp"
	case Softplus:
		return "softplus"
	default:
		return "Activation(" + strconv.Itoa(int(a)) + ")"
	}
}

// ParseActivation parses "relu", "exp" or "softplus".
func ParseActivation(s string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relu", "":
		return ReLU, nil
	case "exp":
		return Exp, nil
	case "softplus":
		return Softplus, nil
	default:
		return 0, errors.Errorf("unknown evidence activation %q", s)
	}
}

// Estimator selects the expected-risk term of the evidential loss.
type Estimator int

const (
	// MSE is the expected squared error plus the Dirichlet predictive variance.
	MSE Estimator = iota
	// Log is the expected negative log-likelihood with log in place of digamma.
	Log
	// Digamma is the expected cross-entropy, Σ y·(ψ(S) - ψ(alpha)).
	Digamma
)

func (e Estimator) valid() bool { return e >= MSE && e <= Digamma }

func (e Estimator) String() string {
	switch e {
	case MSE:
		return "mse"
	case Log:
		return "log"
	case Digamma:
		return "digamma"
	default:
		return "Estimator(" + strconv.Itoa(int(e)) + ")"
	}
}

// ParseEstimator parses "mse", "log" or "digamma".
func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mse", "":
		return MSE, nil
	case "log":
		return Log, nil
	case "digamma":
		return Digamma, nil
	default:
		return 0, errors.Errorf("unknown evidential estimator %q", s)
	}
}
