// Package ink turns captured pointer polylines into smooth strokes with
// fewer points. Every stage returns a new slice and leaves its input alone.
package ink

import (
	"math"

	"collabcanvas/geometry"
)

type Point = geometry.Point

// Options configures SmoothAndSimplify.
type Options struct {
	// SmoothingWindow is the moving-average window. Values below 3 disable it.
	SmoothingWindow int
	// Tolerance is the Ramer-Douglas-Peucker distance threshold.
	Tolerance float64
	// MinimumPoints is the smallest result accepted before falling back to
	// the raw input.
	MinimumPoints int
	// ChaikinIterations is the number of corner-cutting passes.
	ChaikinIterations int
}

// DefaultOptions returns the settings used for committed strokes.
func DefaultOptions() Options {
	return Options{
		SmoothingWindow:   5,
		Tolerance:         1.35,
		MinimumPoints:     2,
		ChaikinIterations: 1,
	}
}

// SmoothAndSimplify runs moving average, Chaikin subdivision and RDP
// simplification in that order. Input at or below MinimumPoints, or a result
// that ends up shorter than MinimumPoints, yields a copy of the input.
func SmoothAndSimplify(points []Point, opts Options) []Point {
	if len(points) <= opts.MinimumPoints {
		return geometry.ClonePoints(points)
	}
	out := MovingAverage(points, opts.SmoothingWindow)
	out = Chaikin(out, opts.ChaikinIterations)
	out = Simplify(out, opts.Tolerance)
	if len(out) < opts.MinimumPoints {
		return geometry.ClonePoints(points)
	}
	return out
}

// MovingAverage averages each interior point over floor(window/2) neighbors
// on either side. The endpoints are kept exactly. T and P are averaged only
// over the neighbors that carry them.
func MovingAverage(points []Point, window int) []Point {
	if window < 3 || len(points) <= 2 {
		return geometry.ClonePoints(points)
	}
	half := window / 2
	last := len(points) - 1
	out := make([]Point, len(points))
	out[0] = points[0].Clone()
	out[last] = points[last].Clone()

	for i := 1; i < last; i++ {
		lo := max(0, i-half)
		hi := min(last, i+half)

		var sx, sy, st, sp float64
		var nt, np int
		for j := lo; j <= hi; j++ {
			q := points[j]
			sx += q.X
			sy += q.Y
			if q.T != nil {
				st += *q.T
				nt++
			}
			if q.P != nil {
				sp += *q.P
				np++
			}
		}
		n := float64(hi - lo + 1)
		p := Point{X: sx / n, Y: sy / n}
		p.T = averageOr(st, nt, points[i].T)
		p.P = averageOr(sp, np, points[i].P)
		out[i] = p
	}
	return out
}

func averageOr(sum float64, n int, own *float64) *float64 {
	if n > 0 {
		return geometry.Float(sum / float64(n))
	}
	if own != nil {
		return geometry.Float(*own)
	}
	return nil
}

// Chaikin performs corner cutting. Each pass keeps both endpoints and
// replaces every edge with points at 25% and 75% along it.
func Chaikin(points []Point, iterations int) []Point {
	if iterations <= 0 || len(points) <= 2 {
		return geometry.ClonePoints(points)
	}
	cur := points
	for it := 0; it < iterations; it++ {
		next := make([]Point, 0, 2*len(cur))
		next = append(next, cur[0].Clone())
		for i := 0; i < len(cur)-1; i++ {
			p0, p1 := cur[i], cur[i+1]
			next = append(next, lerp(p0, p1, 0.25), lerp(p0, p1, 0.75))
		}
		next = append(next, cur[len(cur)-1].Clone())
		cur = next
	}
	return cur
}

func lerp(a, b Point, f float64) Point {
	return Point{
		X: a.X + (b.X-a.X)*f,
		Y: a.Y + (b.Y-a.Y)*f,
		T: blend(a.T, b.T, f),
		P: blend(a.P, b.P, f),
	}
}

func blend(a, b *float64, f float64) *float64 {
	switch {
	case a != nil && b != nil:
		return geometry.Float(*a + (*b-*a)*f)
	case a != nil:
		return geometry.Float(*a)
	case b != nil:
		return geometry.Float(*b)
	}
	return nil
}

// Simplify applies Ramer-Douglas-Peucker with the given tolerance.
func Simplify(points []Point, tolerance float64) []Point {
	if len(points) <= 2 {
		return geometry.ClonePoints(points)
	}
	return rdp(points, tolerance)
}

func rdp(points []Point, tolerance float64) []Point {
	first, last := points[0], points[len(points)-1]
	if len(points) <= 2 {
		return []Point{first.Clone(), last.Clone()}
	}
	idx, dmax := 0, 0.0
	for i := 1; i < len(points)-1; i++ {
		if d := perpendicularDistance(points[i], first, last); d > dmax {
			idx, dmax = i, d
		}
	}
	if dmax > tolerance {
		left := rdp(points[:idx+1], tolerance)
		right := rdp(points[idx:], tolerance)
		return append(left[:len(left)-1], right...)
	}
	return []Point{first.Clone(), last.Clone()}
}

// perpendicularDistance falls back to the distance from start when the chord
// has zero length.
func perpendicularDistance(p, start, end Point) float64 {
	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return geometry.Distance(p, start)
	}
	return math.Abs(dy*p.X-dx*p.Y+end.X*start.Y-end.Y*start.X) / length
}
