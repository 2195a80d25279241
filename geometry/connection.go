package geometry

import (
	"fmt"
	"math"
)

// Side names one edge of a Rect.
type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// Sides is the fixed enumeration order used when scoring side pairs.
var Sides = [4]Side{SideTop, SideRight, SideBottom, SideLeft}

// facingBonus scales the distance of side pairs that face each other.
const facingBonus = 0.8

// Valid reports whether s is one of the four named sides.
func (s Side) Valid() bool {
	switch s {
	case SideTop, SideRight, SideBottom, SideLeft:
		return true
	}
	return false
}

// ParseSide converts a wire string into a Side.
func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown side %q", v)
	}
	return s, nil
}

func (s Side) horizontal() bool {
	return s == SideLeft || s == SideRight
}

// GetConnectionPoint returns the midpoint of the given side of r.
func GetConnectionPoint(r Rect, side Side) Point {
	switch side {
	case SideTop:
		return Point{X: r.X + r.Width/2, Y: r.Y}
	case SideRight:
		return Point{X: r.X + r.Width, Y: r.Y + r.Height/2}
	case SideBottom:
		return Point{X: r.X + r.Width/2, Y: r.Y + r.Height}
	case SideLeft:
		return Point{X: r.X, Y: r.Y + r.Height/2}
	}
	return r.Center()
}

// AnchorPoint returns the point at fraction t along the given side, measured
// from the top-left end. t is clamped to [0, 1]; 0.5 equals GetConnectionPoint.
func AnchorPoint(r Rect, side Side, t float64) Point {
	t = math.Max(0, math.Min(1, t))
	switch side {
	case SideTop:
		return Point{X: r.X + r.Width*t, Y: r.Y}
	case SideBottom:
		return Point{X: r.X + r.Width*t, Y: r.Y + r.Height}
	case SideLeft:
		return Point{X: r.X, Y: r.Y + r.Height*t}
	case SideRight:
		return Point{X: r.X + r.Width, Y: r.Y + r.Height*t}
	}
	return r.Center()
}

// GetClosestSide picks the side of source that faces target. The vertical
// axis wins when |dx| == |dy|.
func GetClosestSide(source, target Rect) Side {
	sc, tc := source.Center(), target.Center()
	dx := tc.X - sc.X
	dy := tc.Y - sc.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return SideRight
		}
		return SideLeft
	}
	if dy >= 0 {
		return SideBottom
	}
	return SideTop
}

// GetOppositeSide maps top<->bottom and left<->right.
func GetOppositeSide(side Side) Side {
	switch side {
	case SideTop:
		return SideBottom
	case SideBottom:
		return SideTop
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return side
}

// CalculateConnectionSides scores all sixteen side pairs by Manhattan
// distance between their connection points, discounting facing pairs. On an
// exact tie the first pair in Sides x Sides order is kept.
func CalculateConnectionSides(from, to Rect) (Side, Side) {
	bestFrom, bestTo := Sides[0], Sides[0]
	best := math.Inf(1)
	for _, fs := range Sides {
		fp := GetConnectionPoint(from, fs)
		for _, ts := range Sides {
			d := manhattan(fp, GetConnectionPoint(to, ts))
			if ts == GetOppositeSide(fs) {
				d *= facingBonus
			}
			if d < best {
				best = d
				bestFrom, bestTo = fs, ts
			}
		}
	}
	return bestFrom, bestTo
}

// AdjustSideForOrthogonalRouting reroutes an exit side whose first segment
// towards next would run along the edge rather than away from it.
func AdjustSideForOrthogonalRouting(r Rect, side Side, next Point) Side {
	exit := GetConnectionPoint(r, side)
	dx := next.X - exit.X
	dy := next.Y - exit.Y
	switch side {
	case SideTop, SideBottom:
		if math.Abs(dx) > math.Abs(dy) {
			if dx > 0 {
				return SideRight
			}
			return SideLeft
		}
	case SideLeft, SideRight:
		if math.Abs(dy) > math.Abs(dx) {
			if dy > 0 {
				return SideBottom
			}
			return SideTop
		}
	}
	return side
}

// outward returns the unit direction leaving a rect through side.
func outward(side Side) Point {
	switch side {
	case SideTop:
		return Point{Y: -1}
	case SideRight:
		return Point{X: 1}
	case SideBottom:
		return Point{Y: 1}
	case SideLeft:
		return Point{X: -1}
	}
	return Point{}
}

// OrthogonalPath builds an axis-aligned polyline from the fromSide connection
// point of from to the toSide connection point of to. Each end leaves its
// rect perpendicular to the edge for stub units before the elbow.
func OrthogonalPath(from Rect, fromSide Side, to Rect, toSide Side, stub float64) []Point {
	a := GetConnectionPoint(from, fromSide)
	b := GetConnectionPoint(to, toSide)
	da, db := outward(fromSide), outward(toSide)
	a1 := Point{X: a.X + da.X*stub, Y: a.Y + da.Y*stub}
	b1 := Point{X: b.X + db.X*stub, Y: b.Y + db.Y*stub}

	var elbow []Point
	if fromSide.horizontal() {
		mx := (a1.X + b1.X) / 2
		elbow = []Point{{X: mx, Y: a1.Y}, {X: mx, Y: b1.Y}}
	} else {
		my := (a1.Y + b1.Y) / 2
		elbow = []Point{{X: a1.X, Y: my}, {X: b1.X, Y: my}}
	}

	raw := append([]Point{a, a1}, elbow...)
	raw = append(raw, b1, b)
	path := make([]Point, 0, len(raw))
	for _, p := range raw {
		if n := len(path); n > 0 && path[n-1].X == p.X && path[n-1].Y == p.Y {
			continue
		}
		path = append(path, p)
	}
	return path
}
