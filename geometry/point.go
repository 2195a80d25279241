package geometry

import "math"

// Point is a canvas position. T (timestamp) and P (pressure) are optional
// ink metadata and blend independently of each other.
type Point struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	T *float64 `json:"t,omitempty"`
	P *float64 `json:"p,omitempty"`
}

// Pt creates a Point without metadata.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Float returns a pointer to a copy of v. Used for the optional T and P fields.
func Float(v float64) *float64 {
	return &v
}

// Clone returns a copy of p that shares no memory with it.
func (p Point) Clone() Point {
	c := Point{X: p.X, Y: p.Y}
	if p.T != nil {
		c.T = Float(*p.T)
	}
	if p.P != nil {
		c.P = Float(*p.P)
	}
	return c
}

// ClonePoints copies a point sequence, metadata included. nil stays nil.
func ClonePoints(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Clone()
	}
	return out
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// manhattan returns |dx| + |dy|.
func manhattan(a, b Point) float64 {
	return math.Abs(b.X-a.X) + math.Abs(b.Y-a.Y)
}
