package losses

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-trackloss/tensors"
)

// featureMap is a read-only (B, C, H, W) view over a dense channel-first map.
type featureMap struct {
	data                  []float32
	batch, ch, rows, cols int
}

func newFeatureMap(feat *tensor.Dense) (*featureMap, error) {
	if err := tensors.CheckShape(feat, tensors.Any, tensors.Any, tensors.Any, tensors.Any); err != nil {
		return nil, err
	}
	data, err := tensors.Float32s(feat)
	if err != nil {
		return nil, err
	}
	s := feat.Shape()
	return &featureMap{data: data, batch: s[0], ch: s[1], rows: s[2], cols: s[3]}, nil
}

// gather copies the C channel values at flat spatial index idx of batch item b into dst.
func (f *featureMap) gather(b, idx int, dst []float32) error {
	hw := f.rows * f.cols
	if idx < 0 || idx >= hw {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d outside [0, %d)", idx, hw)
	}
	base := b * f.ch * hw
	for c := 0; c < f.ch; c++ {
		dst[c] = f.data[base+c*hw+idx]
	}
	return nil
}

// TransposeAndGather picks feature vectors out of a channel-first map.
//
// The map is read as if permuted to (B, H, W, C) and flattened to (B, H·W, C);
// for every batch item b and slot k the C-vector at spatial index ind[b][k] is
// copied out. Indices are row-major: index = row·W + col.
//
// Arguments:
//   - feat: (B, C, H, W) feature map.
//   - ind: B rows of K flat spatial indices.
//
// Returns:
//   - *tensor.Dense: (B, K, C) gathered features.
//   - error: ErrShape or ErrIndexOutOfRange.
//
// @example
// feat := tensors.Zeros(2, 4, 16, 16)
// out, _ := TransposeAndGather(feat, [][]int{{17}, {42}}) // shape (2, 1, 4)
func TransposeAndGather(feat *tensor.Dense, ind [][]int) (*tensor.Dense, error) {
	f, err := newFeatureMap(feat)
	if err != nil {
		return nil, err
	}
	if len(ind) != f.batch {
		return nil, errors.Wrapf(tensors.ErrShape, "got %d index rows for batch of %d", len(ind), f.batch)
	}
	k := 0
	if len(ind) > 0 {
		k = len(ind[0])
	}

	out := make([]float32, f.batch*k*f.ch)
	for b, row := range ind {
		if len(row) != k {
			return nil, errors.Wrapf(tensors.ErrShape, "index row %d has %d entries, want %d", b, len(row), k)
		}
		for j, idx := range row {
			off := (b*k + j) * f.ch
			if err := f.gather(b, idx, out[off:off+f.ch]); err != nil {
				return nil, errors.Wrapf(err, "batch %d slot %d", b, j)
			}
		}
	}
	return tensors.New(out, f.batch, k, f.ch), nil
}

// gatherOne gathers a single C-vector per batch item, giving a flat (B·C) slice.
func (f *featureMap) gatherOne(ind []int) ([]float32, error) {
	out := make([]float32, f.batch*f.ch)
	for b, idx := range ind {
		if err := f.gather(b, idx, out[b*f.ch:(b+1)*f.ch]); err != nil {
			return nil, errors.Wrapf(err, "batch %d", b)
		}
	}
	return out, nil
}
