/*
Copyright © 2025 the RMCGeo authors.
This file is part of RMCGeo.

RMCGeo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RMCGeo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RMCGeo.  If not, see <http://www.gnu.org/licenses/>.
*/

package rmcgeo

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// Tolerances of the extended-intersection engine.
const (
	// MinChamferAngle is the smallest convergence angle, in degrees, at
	// which two lines may be chamfered.
	MinChamferAngle = 5.0

	parallelTolerance = 1e-10
	// paramTolerance allows intersections slightly behind a tested end.
	paramTolerance = -0.01
	// onLineTolerance is the fraction of a line's length within which an
	// intersection is considered to lie on the line itself.
	onLineTolerance = 0.01
	// oppositeTolerance is the fraction of a line's length an
	// intersection may lie behind the line's end.
	oppositeTolerance = 0.1
)

// Rejection is the reason two lines cannot be chamfered.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// lineEnd is the terminal segment at one end of a polyline, oriented so
// that it points out of the line.
type lineEnd struct {
	from, to geom.Point
}

func (e lineEnd) dir() geom.Point { return direction(e.from, e.to) }

func lastEnd(l geom.LineString) lineEnd  { return lineEnd{from: l[len(l)-2], to: l[len(l)-1]} }
func firstEnd(l geom.LineString) lineEnd { return lineEnd{from: l[1], to: l[0]} }

// extendedIntersection returns the intersection of the infinite lines
// through a and b with the parameters of the point along each
// direction, measured from the segment ends. ok is false when the
// segments are parallel or degenerate.
func extendedIntersection(a, b lineEnd) (p geom.Point, t1, t2 float64, ok bool) {
	d1, d2 := a.dir(), b.dir()
	c := cross(d1, d2)
	if math.Abs(c) < parallelTolerance {
		return geom.Point{}, 0, 0, false
	}
	d := sub(b.to, a.to)
	t1 = cross(d, d2) / c
	t2 = cross(d, d1) / c
	return add(a.to, scale(d1, t1)), t1, t2, true
}

// FindExtendedIntersection returns the point where l1 and l2 meet when
// extended beyond their ends. Every pairing of the two ends of each line
// is tried and the valid pairing whose point is closest to the tested
// ends wins. If no pairing is valid, the last segments of both lines are
// intersected regardless of direction. ok is false if the lines have
// fewer than two points or are parallel.
func FindExtendedIntersection(l1, l2 geom.LineString) (p geom.Point, ok bool) {
	if len(l1) < 2 || len(l2) < 2 {
		return geom.Point{}, false
	}
	combos := [4][2]lineEnd{
		{lastEnd(l1), lastEnd(l2)},
		{lastEnd(l1), firstEnd(l2)},
		{firstEnd(l1), lastEnd(l2)},
		{firstEnd(l1), firstEnd(l2)},
	}
	best := math.Inf(1)
	for _, c := range combos {
		x, t1, t2, valid := extendedIntersection(c[0], c[1])
		if !valid || t1 < paramTolerance || t2 < paramTolerance {
			continue
		}
		if d := distance(x, c[0].to) + distance(x, c[1].to); d < best {
			best = d
			p, ok = x, true
		}
	}
	if ok {
		return p, true
	}
	p, _, _, ok = extendedIntersection(combos[0][0], combos[0][1])
	return p, ok
}

// LinesIntersect returns whether any segment of l1 touches any segment
// of l2.
func LinesIntersect(l1, l2 geom.LineString) bool {
	for i := 0; i < len(l1)-1; i++ {
		for j := 0; j < len(l2)-1; j++ {
			if segmentsIntersect(l1[i], l1[i+1], l2[j], l2[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(a, b, c, d geom.Point) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.NonRobustLineIntersector{},
		coord(a), coord(b), coord(c), coord(d))
	return res.HasIntersection()
}

// segmentIntersection returns the single point where segments a-b and c-d
// cross. Collinear overlaps do not count.
func segmentIntersection(a, b, c, d geom.Point) (geom.Point, bool) {
	res := lineintersector.LineIntersectsLine(lineintersector.NonRobustLineIntersector{},
		coord(a), coord(b), coord(c), coord(d))
	if res.Type() != lineintersection.PointIntersection {
		return geom.Point{}, false
	}
	x := res.Intersection()[0]
	return geom.Point{X: x[0], Y: x[1]}, true
}

// nearerEnd returns the end of l closest to x.
func nearerEnd(l geom.LineString, x geom.Point) lineEnd {
	if distance(x, l[len(l)-1]) < distance(x, l[0]) {
		return lastEnd(l)
	}
	return firstEnd(l)
}

// Chamfer is a validated convergence of two lines.
type Chamfer struct {
	// Intersection is the point both lines are extended to.
	Intersection geom.Point
	// Dir1 and Dir2 are the unit directions of the line ends nearest
	// to Intersection.
	Dir1, Dir2 geom.Point
}

// ValidateChamfer checks that l1 and l2 can be extended to a common
// point. The returned error is a *Rejection describing the problem.
func ValidateChamfer(l1, l2 geom.LineString) (*Chamfer, error) {
	if len(l1) < 2 || len(l2) < 2 {
		return nil, reject("lines have too few points")
	}
	if LinesIntersect(l1, l2) {
		return nil, reject("lines already intersect")
	}
	x, ok := FindExtendedIntersection(l1, l2)
	if !ok {
		return nil, reject("lines are parallel or have no valid intersection")
	}

	e1, e2 := nearerEnd(l1, x), nearerEnd(l2, x)
	d1, ok1 := normalize(e1.dir())
	d2, ok2 := normalize(e2.dir())
	if !ok1 || !ok2 {
		return nil, reject("line has a zero-length end segment")
	}
	cos := math.Max(-1, math.Min(1, dot(d1, d2)))
	angle := math.Acos(math.Abs(cos)) * 180 / math.Pi
	if angle < MinChamferAngle {
		return nil, reject("lines are nearly parallel (angle: %.1f°); the minimum angle is %.0f°", angle, MinChamferAngle)
	}

	for i, l := range []geom.LineString{l1, l2} {
		length := l.Length()
		span := distance(x, l[0]) + distance(x, l[len(l)-1])
		if math.Abs(span-length) < onLineTolerance*length {
			return nil, reject("intersection lies on line %d itself, not beyond its ends", i+1)
		}
	}

	threshold := -l1.Length() * oppositeTolerance
	if dot(e1.dir(), sub(x, e1.to)) < threshold && dot(e2.dir(), sub(x, e2.to)) < threshold {
		return nil, reject("intersection lies behind both lines")
	}
	return &Chamfer{Intersection: x, Dir1: d1, Dir2: d2}, nil
}

// ExtendLineToPoint returns l with x added at the end facing it: appended
// if x lies ahead of the last segment, otherwise prepended if it lies ahead
// of the first segment, otherwise appended.
func ExtendLineToPoint(l geom.LineString, x geom.Point) geom.LineString {
	if len(l) < 2 {
		return append(append(geom.LineString(nil), l...), x)
	}
	last := lastEnd(l)
	if dot(last.dir(), sub(x, last.to)) >= 0 {
		return append(append(geom.LineString(nil), l...), x)
	}
	first := firstEnd(l)
	if dot(first.dir(), sub(x, first.to)) >= 0 {
		o := make(geom.LineString, 0, len(l)+1)
		return append(append(o, x), l...)
	}
	return append(append(geom.LineString(nil), l...), x)
}

// ChamferLines validates l1 and l2 and extends both to their convergence
// point.
func ChamferLines(l1, l2 geom.LineString) (e1, e2 geom.LineString, c *Chamfer, err error) {
	c, err = ValidateChamfer(l1, l2)
	if err != nil {
		return nil, nil, nil, err
	}
	return ExtendLineToPoint(l1, c.Intersection), ExtendLineToPoint(l2, c.Intersection), c, nil
}
