package models

import "math"

// Bounds is an axis-aligned collision region. X and Y address the top-left corner.
type Bounds struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Width  float64 `json:"w" msgpack:"w"`
	Height float64 `json:"h" msgpack:"h"`
}

// UpdateTo overwrites b with every attribute of other.
func (b *Bounds) UpdateTo(other Bounds) {
	*b = other
}

// SetSize resizes b into a size×size square around its current center.
func (b *Bounds) SetSize(size float64) {
	cx, cy := b.Center()
	b.Width = size
	b.Height = size
	b.X = cx - size/2
	b.Y = cy - size/2
}

// Size is the edge length used for eat/eaten comparisons.
func (b Bounds) Size() float64 {
	return math.Max(b.Width, b.Height)
}

func (b Bounds) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Intersects reports whether the two regions overlap with positive area.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X < o.X+o.Width && o.X < b.X+b.Width &&
		b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}

// Translate moves the region by (dx, dy) and clamps it inside a width×height area.
func (b *Bounds) Translate(dx, dy, width, height float64) {
	b.X = clamp(b.X+dx, 0, math.Max(0, width-b.Width))
	b.Y = clamp(b.Y+dy, 0, math.Max(0, height-b.Height))
}

// Finite reports whether every coordinate is a finite number.
func (b Bounds) Finite() bool {
	return finite(b.X) && finite(b.Y) && finite(b.Width) && finite(b.Height)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
