package benchmark

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/boxes"
	"github.com/nvr-ai/go-trackloss/evidential"
	"github.com/nvr-ai/go-trackloss/graph"
	"github.com/nvr-ai/go-trackloss/tensors"
)

// Workload runs one call of the measured function and returns its loss, or
// the first output value for geometry targets.
type Workload func() (float32, error)

// inputs generates synthetic batches.
type inputs struct {
	rng *rand.Rand
}

func newInputs(seed uint64) *inputs {
	return &inputs{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (in *inputs) uniform(lo, hi float32) float32 {
	return lo + in.rng.Float32()*(hi-lo)
}

// boxBatch returns n valid xyxy boxes inside a 640x640 frame.
func (in *inputs) boxBatch(n int) *tensor.Dense {
	data := make([]float32, 0, n*4)
	for i := 0; i < n; i++ {
		x1, y1 := in.uniform(0, 600), in.uniform(0, 600)
		data = append(data, x1, y1, x1+in.uniform(4, 40), y1+in.uniform(4, 40))
	}
	return tensors.New(data, n, 4)
}

// offsets returns positive left/right/top/bottom offsets.
func (in *inputs) offsets(n int) []float32 {
	data := make([]float32, n*4)
	for i := range data {
		data[i] = in.uniform(0.1, 2)
	}
	return data
}

func (in *inputs) normal(n int, scale float64) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(in.rng.NormFloat64() * scale)
	}
	return data
}

func (in *inputs) oneHot(n, classes int) []float32 {
	data := make([]float32, n*classes)
	for i := 0; i < n; i++ {
		data[i*classes+in.rng.IntN(classes)] = 1
	}
	return data
}

// NewWorkload prepares the inputs of a scenario and returns the call to time.
//
// Arguments:
//   - s: The scenario.
//   - l: The configured losses.
//
// Returns:
//   - Workload: The measured call.
//   - error: When the scenario is invalid.
func NewWorkload(s Scenario, l Losses) (Workload, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	l = l.withDefaults()
	in := newInputs(s.Seed)
	n := s.BatchSize

	switch s.Target {
	case TargetIoU:
		b1, b2 := in.boxBatch(n), in.boxBatch(n)
		return func() (float32, error) {
			iou, _, err := boxes.IoU(b1, b2)
			if err != nil {
				return 0, err
			}
			return iou.Float32s()[0], nil
		}, nil

	case TargetGIoU:
		b1, b2 := in.boxBatch(n), in.boxBatch(n)
		return func() (float32, error) {
			loss, _, err := boxes.GIoULoss(b1, b2)
			return loss, err
		}, nil

	case TargetCIoU:
		b1, b2 := in.boxBatch(n), in.boxBatch(n)
		return func() (float32, error) {
			res, err := boxes.CIoULoss(b1, b2)
			if err != nil {
				return 0, err
			}
			return res.Loss, nil
		}, nil

	case TargetIOULoss:
		pred, target := tensors.New(in.offsets(n), n, 4), tensors.New(in.offsets(n), n, 4)
		return func() (float32, error) {
			return l.IOU.Forward(pred, target, nil)
		}, nil

	case TargetREGLoss:
		w := s.MapSize
		output := tensors.New(in.offsets(n*w*w), n, 4, w, w)
		ind := make([]int, n)
		for i := range ind {
			ind[i] = in.rng.IntN(w * w)
		}
		target := tensors.New(in.offsets(n), n, 4)
		return func() (float32, error) {
			return l.REG.Forward(output, ind, target)
		}, nil

	case TargetLBHinge:
		cols := max(s.MapSize, 1)
		pred := tensors.New(in.normal(n*cols, 1), n, cols)
		label := make([]float32, n*cols)
		for i := range label {
			label[i] = in.uniform(0, 1)
		}
		labels := tensors.New(label, n, cols)
		return func() (float32, error) {
			return l.Hinge.Forward(pred, labels)
		}, nil

	case TargetEDLMSE, TargetEDLLog, TargetEDLDigamma:
		est := map[Target]evidential.Estimator{
			TargetEDLMSE:     evidential.MSE,
			TargetEDLLog:     evidential.Log,
			TargetEDLDigamma: evidential.Digamma,
		}[s.Target]
		output := tensors.New(in.normal(n*s.Classes, 3), n, s.Classes)
		target := tensors.New(in.oneHot(n, s.Classes), n, s.Classes)
		return func() (float32, error) {
			return evidential.EDLLoss(l.Activation, est, output, target,
				l.Epoch, s.Classes, l.AnnealingStep, evidential.WithDevice(l.Device))
		}, nil

	case TargetGraphIOULoss:
		pred, target := in.offsets(n), in.offsets(n)
		return func() (float32, error) {
			g := G.NewGraph()
			p := graph.Input(g, "pred", tensors.New(append([]float32(nil), pred...), n, 4))
			t := graph.Input(g, "target", tensors.New(append([]float32(nil), target...), n, 4))
			cost, err := graph.IOULoss(p, t)
			if err != nil {
				return 0, err
			}
			res, err := graph.Evaluate(g, cost, p)
			if err != nil {
				return 0, err
			}
			return res.Loss, nil
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTarget, "%q", s.Target)
}
