package boxes

import "github.com/chewxy/math32"

// ClipBox clamps an xywh box into an image of height h and width w while
// keeping at least margin pixels of extent on each axis.
//
// Arguments:
//   - box: (x, y, w, h) box.
//   - height, width: Image size.
//   - margin: Minimum extent of the clipped box.
//
// Returns:
//   - The clipped (x, y, w, h) box.
//
// @example
// ClipBox([4]float32{-5, 10, 20, 20}, 100, 100, 0) // [0 10 15 20]
func ClipBox(box [4]float32, height, width, margin float32) [4]float32 {
	x1, y1, bw, bh := box[0], box[1], box[2], box[3]
	x2, y2 := x1+bw, y1+bh

	x1 = math32.Min(math32.Max(0, x1), width-margin)
	x2 = math32.Min(math32.Max(margin, x2), width)
	y1 = math32.Min(math32.Max(0, y1), height-margin)
	y2 = math32.Min(math32.Max(margin, y2), height)

	return [4]float32{x1, y1, math32.Max(margin, x2-x1), math32.Max(margin, y2-y1)}
}
