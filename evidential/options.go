package evidential

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-trackloss/device"
)

// ErrInvalidAnnealingStep is returned when the annealing step is not positive.
var ErrInvalidAnnealingStep = errors.New("annealing step must be positive")

// Option configures an evidential loss call.
type Option func(*options)

type options struct {
	device device.Backend
}

// WithDevice selects the execution target. The default, device.Auto, follows
// device.Detect at call time.
func WithDevice(b device.Backend) Option {
	return func(o *options) { o.device = b }
}

// resolveOptions applies opts and resolves the device. Kernels run on the
// host engine of gorgonia.org/tensor for every backend, the device is only
// validated.
func resolveOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b, err := device.Resolve(o.device)
	if err != nil {
		return o, err
	}
	o.device = b
	return o, nil
}

// AnnealingCoefficient ramps linearly from 0 at epoch 0 to 1 at annealingStep
// and stays at 1 afterwards.
//
// Arguments:
//   - epoch: Current epoch, counted from 0.
//   - annealingStep: Number of epochs of the ramp.
//
// Returns:
//   - float64: min(1, epoch / annealingStep).
//   - error: ErrInvalidAnnealingStep when annealingStep <= 0.
func AnnealingCoefficient(epoch, annealingStep int) (float64, error) {
	if annealingStep <= 0 {
		return 0, errors.Wrapf(ErrInvalidAnnealingStep, "got %d", annealingStep)
	}
	c := float64(epoch) / float64(annealingStep)
	if c > 1 {
		return 1, nil
	}
	return c, nil
}
