package losses

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// DefaultHingeThreshold is low enough that every label counts as positive.
const DefaultHingeThreshold = float32(-100)

// HingeConfig configures an LBHinge.
type HingeConfig struct {
	// ErrorMetric is the base loss. Defaults to MeanSquaredError.
	ErrorMetric ErrorMetric `json:"-" yaml:"-"`
	// Threshold below which a label is negative. Nil means DefaultHingeThreshold.
	Threshold *float32 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Clip caps the loss when set.
	Clip *float32 `json:"clip,omitempty" yaml:"clip,omitempty"`
}

// LBHinge is a loss with a hinge on the lower bound: where the label is below
// the threshold the loss is zero as long as the prediction is not positive.
type LBHinge struct {
	metric    ErrorMetric
	threshold float32
	clip      *float32
}

// NewLBHinge creates an LBHinge, filling in defaults for unset fields.
//
// @example
// threshold, clip := float32(0.05), float32(2)
// hinge := NewLBHinge(HingeConfig{Threshold: &threshold, Clip: &clip})
func NewLBHinge(cfg HingeConfig) *LBHinge {
	h := &LBHinge{metric: cfg.ErrorMetric, threshold: DefaultHingeThreshold}
	if h.metric == nil {
		h.metric = MeanSquaredError{}
	}
	if cfg.Threshold != nil {
		h.threshold = *cfg.Threshold
	}
	if cfg.Clip != nil {
		c := *cfg.Clip
		h.clip = &c
	}
	return h
}

// Threshold returns the effective threshold.
func (h *LBHinge) Threshold() float32 { return h.threshold }

// Forward computes the hinge loss.
//
// With neg = label < threshold and pos = !neg:
//
//	prediction' = neg·relu(prediction) + pos·prediction
//	loss        = metric(prediction', pos·label)
//
// and the loss is capped at Clip when set.
//
// Arguments:
//   - prediction: Score map of any shape.
//   - label: Label map of the same shape.
//
// Returns:
//   - float32: The loss.
//   - error: ErrShape when the shapes differ.
func (h *LBHinge) Forward(prediction, label *tensor.Dense) (float32, error) {
	if prediction == nil || label == nil {
		return 0, tensors.ErrNil
	}
	if !prediction.Shape().Eq(label.Shape()) {
		return 0, errors.Wrapf(tensors.ErrShape, "prediction %v vs label %v", prediction.Shape(), label.Shape())
	}
	pred, err := tensors.Float32s(prediction)
	if err != nil {
		return 0, errors.Wrap(err, "prediction")
	}
	lbl, err := tensors.Float32s(label)
	if err != nil {
		return 0, errors.Wrap(err, "label")
	}

	hinged, target := h.Apply(pred, lbl)
	loss := h.metric.Compute(hinged, target)
	if h.clip != nil {
		loss = math32.Min(loss, *h.clip)
	}
	return loss, nil
}

// Apply returns the hinged prediction and the masked label that are fed to the
// error metric.
func (h *LBHinge) Apply(pred, label []float32) (hinged, target []float32) {
	hinged = make([]float32, len(pred))
	target = make([]float32, len(label))
	for i, l := range label {
		if l < h.threshold {
			hinged[i] = math32.Max(pred[i], 0)
			target[i] = 0
			continue
		}
		hinged[i] = pred[i]
		target[i] = l
	}
	return hinged, target
}
