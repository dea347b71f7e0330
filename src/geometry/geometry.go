// Package geometry holds the pixel and normalised rectangle types shared by
// the selection, preview and export stages.
package geometry

import "fmt"

// Point is a position in desktop pixel space.
type Point struct {
	X, Y int32
}

// Dimensions is an axis-aligned rectangle in desktop pixel space.
// Width and Height are magnitudes; a zero area means "no selection yet".
type Dimensions struct {
	Width  uint32
	Height uint32
	X      int32
	Y      int32
}

// Rect is an edge-based rectangle, right and bottom exclusive.
type Rect struct {
	Left, Top, Right, Bottom int32
}

// FromCorners derives the rectangle spanned by two arbitrary corners.
// The result does not depend on corner order.
func FromCorners(c1, c2 Point) Dimensions {
	return Dimensions{
		Width:  uint32(simpleAbs(int64(c2.X) - int64(c1.X))),
		Height: uint32(simpleAbs(int64(c2.Y) - int64(c1.Y))),
		X:      simpleMin(c1.X, c2.X),
		Y:      simpleMin(c1.Y, c2.Y),
	}
}

// FromCorner derives the rectangle of a selection whose second corner may be
// missing. Without a second corner the result is empty and positioned at c1.
func FromCorner(c1 Point, c2 *Point) Dimensions {
	if c2 == nil {
		return Dimensions{X: c1.X, Y: c1.Y}
	}
	return FromCorners(c1, *c2)
}

// HasArea reports whether the rectangle covers at least one pixel.
func (d Dimensions) HasArea() bool {
	return d.Width > 0 && d.Height > 0
}

// Rect converts to edge form.
func (d Dimensions) Rect() Rect {
	return Rect{
		Left:   d.X,
		Top:    d.Y,
		Right:  d.X + int32(d.Width),
		Bottom: d.Y + int32(d.Height),
	}
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", d.Width, d.Height, d.X, d.Y)
}

// Width of the rectangle, zero when inverted.
func (r Rect) Width() uint32 {
	if r.Right <= r.Left {
		return 0
	}
	return uint32(r.Right - r.Left)
}

// Height of the rectangle, zero when inverted.
func (r Rect) Height() uint32 {
	if r.Bottom <= r.Top {
		return 0
	}
	return uint32(r.Bottom - r.Top)
}

// HasArea reports whether the rectangle covers at least one pixel.
func (r Rect) HasArea() bool {
	return r.Width() > 0 && r.Height() > 0
}

// Dimensions converts back to origin and size form.
func (r Rect) Dimensions() Dimensions {
	return Dimensions{Width: r.Width(), Height: r.Height(), X: r.Left, Y: r.Top}
}

// ExpandTrailing grows the right and bottom edges by n pixels.
func (r Rect) ExpandTrailing(n int32) Rect {
	r.Right += n
	r.Bottom += n
	return r
}

// Offset translates the rectangle by (dx, dy).
func (r Rect) Offset(dx, dy int32) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Intersect returns the overlap of r and o. The result has no area when they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   simpleMax(r.Left, o.Left),
		Top:    simpleMax(r.Top, o.Top),
		Right:  simpleMin(r.Right, o.Right),
		Bottom: simpleMin(r.Bottom, o.Bottom),
	}
	if !out.HasArea() {
		return Rect{Left: out.Left, Top: out.Top, Right: out.Left, Bottom: out.Top}
	}
	return out
}

// Clamp restricts r to a surface of the given size anchored at the origin.
func (r Rect) Clamp(width, height uint32) Rect {
	return r.Intersect(Rect{Right: int32(width), Bottom: int32(height)})
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d - %d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Box is a 3D copy region as consumed by sub-resource copies.
type Box struct {
	Left, Top, Front, Right, Bottom, Back uint32
}

// BoxOf converts a rectangle to a single-slice copy box. Negative edges are
// clamped to zero.
func BoxOf(r Rect) Box {
	return Box{
		Left:   uint32(simpleMax(r.Left, 0)),
		Top:    uint32(simpleMax(r.Top, 0)),
		Front:  0,
		Right:  uint32(simpleMax(r.Right, 0)),
		Bottom: uint32(simpleMax(r.Bottom, 0)),
		Back:   1,
	}
}

// Width of the box in texels.
func (b Box) Width() uint32 {
	if b.Right <= b.Left {
		return 0
	}
	return b.Right - b.Left
}

// Height of the box in texels.
func (b Box) Height() uint32 {
	if b.Bottom <= b.Top {
		return 0
	}
	return b.Bottom - b.Top
}

func simpleMin(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func simpleMax(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func simpleAbs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}
