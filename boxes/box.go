// Package boxes - Bounding box formats and overlap geometry (IoU, GIoU, CIoU).
package boxes

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is a single axis-aligned box in corner (xyxy) encoding.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// BoxFromCxCyWH builds a Box from a center point and an extent.
func BoxFromCxCyWH(cx, cy, w, h float32) Box {
	return Box{X1: cx - 0.5*w, Y1: cy - 0.5*h, X2: cx + 0.5*w, Y2: cy + 0.5*h}
}

// BoxFromXYWH builds a Box from its top-left corner and an extent.
func BoxFromXYWH(x, y, w, h float32) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

func (b Box) String() string {
	return fmt.Sprintf("Box (%f, %f), (%f, %f)", b.X1, b.Y1, b.X2, b.Y2)
}

// CxCyWH returns the center and extent of the box.
func (b Box) CxCyWH() (cx, cy, w, h float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2, b.X2 - b.X1, b.Y2 - b.Y1
}

// XYWH returns the top-left corner and extent of the box.
func (b Box) XYWH() (x, y, w, h float32) {
	return b.X1, b.Y1, b.X2 - b.X1, b.Y2 - b.Y1
}

// Valid reports whether the corners are ordered (x2 >= x1 and y2 >= y1).
func (b Box) Valid() bool {
	return b.X2 >= b.X1 && b.Y2 >= b.Y1
}

// Area returns (x2-x1)*(y2-y1). Unordered corners give a signed area.
func (b Box) Area() float32 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Intersection calculates the overlap area between two boxes.
//
// Arguments:
// - other: The other box to intersect with.
//
// Returns:
// - The overlap area, 0 when the boxes are disjoint or only touch.
//
// @example
// a := Box{X1: 0, Y1: 0, X2: 2, Y2: 2}
// b := Box{X1: 1, Y1: 1, X2: 3, Y2: 3}
// area := a.Intersection(b) // 1
func (b Box) Intersection(other Box) float32 {
	w := math32.Max(math32.Min(b.X2, other.X2)-math32.Max(b.X1, other.X1), 0)
	h := math32.Max(math32.Min(b.Y2, other.Y2)-math32.Max(b.Y1, other.Y1), 0)
	return w * h
}

// Union calculates the area covered by either box.
//
// @example
// a := Box{X1: 0, Y1: 0, X2: 2, Y2: 2}
// b := Box{X1: 1, Y1: 1, X2: 3, Y2: 3}
// area := a.Union(b) // 7
func (b Box) Union(other Box) float32 {
	return b.Area() + other.Area() - b.Intersection(other)
}

// IoU calculates the Intersection over Union between two boxes.
//
// Two zero-area boxes give 0/0 = NaN; callers are expected to filter those out.
//
// @example
// a := Box{X1: 0, Y1: 0, X2: 2, Y2: 2}
// b := Box{X1: 1, Y1: 1, X2: 3, Y2: 3}
// iou := a.IoU(b) // 1/7 ≈ 0.1429
func (b Box) IoU(other Box) float32 {
	return b.Intersection(other) / b.Union(other)
}

// Enclosing returns the smallest box containing both boxes.
func (b Box) Enclosing(other Box) Box {
	return Box{
		X1: math32.Min(b.X1, other.X1),
		Y1: math32.Min(b.Y1, other.Y1),
		X2: math32.Max(b.X2, other.X2),
		Y2: math32.Max(b.Y2, other.Y2),
	}
}

// GIoU calculates the Generalized IoU between two boxes.
func (b Box) GIoU(other Box) float32 {
	union := b.Union(other)
	iou := b.Intersection(other) / union
	c := b.Enclosing(other)
	area := math32.Max(c.X2-c.X1, 0) * math32.Max(c.Y2-c.Y1, 0)
	return iou - (area-union)/area
}

// Clip clamps the box to an image of the given width and height.
func (b Box) Clip(width, height float32) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
