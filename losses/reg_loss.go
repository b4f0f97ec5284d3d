package losses

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

const (
	// LossTypeIoU is the only regression loss REGLoss supports.
	LossTypeIoU = "iou"
	// DefaultRadius is the default neighbourhood radius in grid cells.
	DefaultRadius = 1
	// DefaultNorm is the default target shift per grid cell.
	DefaultNorm = float32(1.0 / 20.0)
)

// REGConfig configures a REGLoss.
type REGConfig struct {
	// Dim is the number of regression channels in the output map.
	Dim int `json:"dim" yaml:"dim"`
	// LossType selects the per-location loss. Only "iou" is supported.
	LossType string `json:"loss_type" yaml:"loss_type"`
}

// DefaultREGConfig returns Dim 4 with the IoU loss.
func DefaultREGConfig() REGConfig {
	return REGConfig{Dim: 4, LossType: LossTypeIoU}
}

// REGLoss is a box regression loss evaluated over a spatial neighbourhood of
// the target location on a dense (B, Dim, W, W) offset map.
type REGLoss struct {
	dim  int
	loss *IOULoss
}

// NewREGLoss creates a REGLoss. Zero fields take their defaults.
//
// Arguments:
//   - cfg: The configuration.
//
// Returns:
//   - *REGLoss: The loss.
//   - error: ErrUnsupportedLossType for any loss type other than "iou".
func NewREGLoss(cfg REGConfig) (*REGLoss, error) {
	if cfg.Dim == 0 {
		cfg.Dim = 4
	}
	if cfg.LossType == "" {
		cfg.LossType = LossTypeIoU
	}
	if cfg.LossType != LossTypeIoU {
		return nil, errors.Wrapf(ErrUnsupportedLossType, "got %q", cfg.LossType)
	}
	if cfg.Dim != 4 {
		return nil, errors.Errorf("iou loss needs 4 regression channels, got %d", cfg.Dim)
	}
	return &REGLoss{dim: cfg.Dim, loss: NewIOULoss(ReductionMean)}, nil
}

// REGOption tunes a single REGLoss.Forward call.
type REGOption func(*regOptions)

type regOptions struct {
	radius        int
	neighbourhood bool
	norm          float32
}

// WithRadius sets the neighbourhood radius in grid cells.
func WithRadius(r int) REGOption {
	return func(o *regOptions) {
		o.radius = r
		o.neighbourhood = true
	}
}

// WithoutNeighbourhood evaluates the loss at the target location only.
func WithoutNeighbourhood() REGOption {
	return func(o *regOptions) { o.neighbourhood = false }
}

// WithNorm sets how far the target box edges move per grid cell of shift.
func WithNorm(norm float32) REGOption {
	return func(o *regOptions) { o.norm = norm }
}

// Forward computes the neighbourhood regression loss.
//
// For every shift (rw, rh) in [-R, R]², the target distances are moved to what
// they would be when measured from the neighbouring cell:
//
//	(left + rw·norm, right - rw·norm, top + rh·norm, bottom - rh·norm)
//
// and the prediction is gathered at the shifted cell. A shift is skipped for
// the whole batch when any sample's shifted target has a negative side or any
// sample's shifted cell falls off the map. The result is the mean of the IoU
// losses of all evaluated shifts. If no shift survives, the loss at the target
// cell is returned instead.
//
// Arguments:
//   - output: (B, Dim, W, W) regression map. Maps must be square.
//   - ind: B flat row-major target cell indices (row·W + col).
//   - target: (B, Dim) target distances (left, right, top, bottom).
//   - opts: WithRadius, WithoutNeighbourhood, WithNorm.
//
// Returns:
//   - float32: The loss.
//   - error: ErrShape, ErrIndexOutOfRange or ErrEmptyBatch.
func (l *REGLoss) Forward(output *tensor.Dense, ind []int, target *tensor.Dense, opts ...REGOption) (float32, error) {
	o := regOptions{radius: DefaultRadius, neighbourhood: true, norm: DefaultNorm}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := newFeatureMap(output)
	if err != nil {
		return 0, errors.Wrap(err, "output")
	}
	if f.ch != l.dim {
		return 0, errors.Wrapf(tensors.ErrShape, "output has %d channels, want %d", f.ch, l.dim)
	}
	if f.rows != f.cols {
		return 0, errors.Wrapf(tensors.ErrShape, "output map must be square, got %dx%d", f.rows, f.cols)
	}
	if len(ind) != f.batch {
		return 0, errors.Wrapf(tensors.ErrShape, "got %d indices for batch of %d", len(ind), f.batch)
	}
	for b, idx := range ind {
		if idx < 0 || idx >= f.rows*f.cols {
			return 0, errors.Wrapf(ErrIndexOutOfRange, "ind[%d] = %d outside %dx%d map", b, idx, f.rows, f.cols)
		}
	}
	if err := tensors.CheckShape(target, f.batch, l.dim); err != nil {
		return 0, errors.Wrap(err, "target")
	}
	tgt, err := tensors.Float32s(target)
	if err != nil {
		return 0, errors.Wrap(err, "target")
	}

	if o.neighbourhood {
		loss, ok, err := l.neighbourhoodLoss(f, ind, tgt, o.radius, o.norm)
		if err != nil || ok {
			return loss, err
		}
	}

	return l.lossAt(f, ind, tgt)
}

func (l *REGLoss) lossAt(f *featureMap, ind []int, tgt []float32) (float32, error) {
	pred, err := f.gatherOne(ind)
	if err != nil {
		return 0, err
	}
	return l.loss.reduce(directionalIoULosses(pred, tgt))
}

// neighbourhoodLoss returns ok=false when no shift was valid.
func (l *REGLoss) neighbourhoodLoss(f *featureMap, ind []int, tgt []float32, radius int, norm float32) (float32, bool, error) {
	width := f.cols
	shifted := make([]float32, len(tgt))
	shiftedInd := make([]int, len(ind))

	var sum float32
	var count int
	for rw := -radius; rw <= radius; rw++ {
		for rh := -radius; rh <= radius; rh++ {
			if !shiftTargets(tgt, shifted, float32(rw)*norm, float32(rh)*norm) {
				continue
			}
			if !shiftIndices(ind, shiftedInd, width, rw, rh) {
				continue
			}

			pred, err := f.gatherOne(shiftedInd)
			if err != nil {
				return 0, false, err
			}
			loss, err := l.loss.reduce(directionalIoULosses(pred, shifted))
			if err != nil {
				return 0, false, err
			}
			sum += loss
			count++
		}
	}
	if count == 0 {
		return 0, false, nil
	}
	return sum / float32(count), true, nil
}

// shiftTargets writes the shifted distances into dst and reports whether every
// side of every sample stays non-negative.
func shiftTargets(src, dst []float32, dw, dh float32) bool {
	for i := 0; i < len(src); i += 4 {
		dst[i] = src[i] + dw
		dst[i+1] = src[i+1] - dw
		dst[i+2] = src[i+2] + dh
		dst[i+3] = src[i+3] - dh
		if dst[i] < 0 || dst[i+1] < 0 || dst[i+2] < 0 || dst[i+3] < 0 {
			return false
		}
	}
	return true
}

// shiftIndices moves every flat index by (rw, rh) cells and reports whether all
// of them stay on the width×width map.
func shiftIndices(src, dst []int, width, rw, rh int) bool {
	for i, idx := range src {
		col := idx%width + rw
		row := idx/width + rh
		if row < 0 || row >= width || col < 0 || col >= width {
			return false
		}
		dst[i] = row*width + col
	}
	return true
}
