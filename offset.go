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
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const (
	// MiterLimit is the largest ratio of miter length to offset distance
	// at a corner before the corner is bevelled.
	MiterLimit = 10.0

	ringTolerance = 1e-9
)

// Offsetter builds parallel curves of lines and rings.
type Offsetter struct {
	// FallbackCRS is used when the UTM zone of a geographic geometry
	// cannot be built. It defaults to DefaultFallbackCRS.
	FallbackCRS string

	Log logrus.FieldLogger
}

// NewOffsetter returns an Offsetter using the default fallback CRS.
func NewOffsetter() *Offsetter {
	return &Offsetter{FallbackCRS: DefaultFallbackCRS, Log: logrus.StandardLogger()}
}

// Offset returns the curve parallel to g at the signed distance d, in map
// units of a projected crs or in meters of a geographic crs. Positive
// distances offset open lines to their left and grow closed rings and
// polygons; negative distances do the opposite. The result is a
// LineString in crs.
func (o *Offsetter) Offset(g geom.Geom, d float64, crs *CRS) (geom.LineString, error) {
	if g == nil {
		return nil, fmt.Errorf("rmcgeo: offset: nil geometry")
	}
	work := g
	var utm *CRS
	if crs != nil && crs.IsGeographic() {
		c, ok := Centroid(g)
		if !ok {
			return nil, fmt.Errorf("rmcgeo: offset: geometry has no centroid")
		}
		var err error
		if utm, err = UTMForLonLat(c.X, c.Y, o.FallbackCRS); err != nil {
			return nil, fmt.Errorf("rmcgeo: offset: %v", err)
		}
		if work, err = TransformGeom(g, crs, utm); err != nil {
			return nil, fmt.Errorf("rmcgeo: offset: projecting to %s: %v", utm, err)
		}
		o.Log.WithFields(logrus.Fields{"from": crs, "to": utm}).Debug("offset: working in UTM")
	}

	var out geom.LineString
	switch t := work.(type) {
	case geom.Polygon:
		if len(t) == 0 {
			return nil, fmt.Errorf("rmcgeo: offset: empty polygon")
		}
		out = BufferRing(t[0], d)
	case geom.MultiPolygon:
		if len(t) == 0 || len(t[0]) == 0 {
			return nil, fmt.Errorf("rmcgeo: offset: empty polygon")
		}
		out = BufferRing(t[0][0], d)
	default:
		l, ok := Polyline(work)
		if !ok {
			return nil, fmt.Errorf("rmcgeo: offset: unsupported geometry %T", work)
		}
		if IsClosedRing(l) {
			out = BufferRing(l, d)
		} else {
			out = OffsetCurve(l, d)
		}
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("rmcgeo: offset: empty result")
	}

	if utm != nil {
		back, err := TransformGeom(out, utm, crs)
		if err != nil {
			return nil, fmt.Errorf("rmcgeo: offset: projecting back to %s: %v", crs, err)
		}
		out = back.(geom.LineString)
	}
	return out, nil
}

// IsClosedRing returns whether l has at least three points and ends where
// it starts.
func IsClosedRing(l geom.LineString) bool {
	if len(l) < 3 {
		return false
	}
	a, b := l[0], l[len(l)-1]
	return math.Abs(a.X-b.X) < ringTolerance && math.Abs(a.Y-b.Y) < ringTolerance
}

// signedArea returns the area enclosed by ring r, positive when r runs
// counter-clockwise.
func signedArea(r []geom.Point) float64 {
	var a float64
	for i := range r {
		j := (i + 1) % len(r)
		a += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return a / 2
}

// dedupe drops consecutive repeated points.
func dedupe(pts []geom.Point) []geom.Point {
	o := make([]geom.Point, 0, len(pts))
	for _, p := range pts {
		if len(o) > 0 && o[len(o)-1].Equals(p) {
			continue
		}
		o = append(o, p)
	}
	return o
}

// BufferRing grows the ring r outward by d, or shrinks it for negative d,
// with mitered corners, and returns the exterior ring of the result in the
// orientation of r. When shrinking splits the ring, the largest part is
// kept. It returns nil if the ring collapses.
func BufferRing(r []geom.Point, d float64) geom.LineString {
	pts := dedupe(r)
	if len(pts) > 1 && pts[0].Equals(pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return nil
	}
	area := signedArea(pts)
	if area == 0 {
		return nil
	}
	res := geom.Polygon{closeRing(pts)}
	if d == 0 {
		return geom.LineString(res[0])
	}
	for _, piece := range boundaryBand(pts, math.Abs(d)) {
		if d > 0 {
			res = res.Union(piece)
		} else {
			res = res.Difference(piece)
		}
	}

	var best []geom.Point
	var bestArea float64
	for _, ring := range res {
		if a := signedArea(ring); math.Abs(a) > math.Abs(bestArea) {
			best, bestArea = ring, a
		}
	}
	if math.Abs(bestArea) < ringTolerance {
		return nil
	}
	out := dedupe(best)
	if out[0].Equals(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	if bestArea*area < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return geom.LineString(closeRing(out))
}

// boundaryBand returns polygons whose union covers every point within w of
// the closed ring pts, with mitered corners on the convex side of each
// vertex.
func boundaryBand(pts []geom.Point, w float64) []geom.Polygon {
	n := len(pts)
	var o []geom.Polygon
	for i := range pts {
		a, b := pts[i], pts[(i+1)%n]
		nb := scale(leftNormal(a, b), w)
		o = append(o, geom.Polygon{{add(a, nb), add(b, nb), sub(b, nb), sub(a, nb), add(a, nb)}})
	}
	for i, v := range pts {
		prev, next := pts[(i+n-1)%n], pts[(i+1)%n]
		d1, _ := normalize(direction(prev, v))
		d2, _ := normalize(direction(v, next))
		n1, n2 := leftNormal(prev, v), leftNormal(v, next)
		c := cross(d1, d2)
		if math.Abs(c) < parallelTolerance {
			if dot(d1, d2) < 0 {
				// The ring turns back on itself. Cap the end square.
				e := scale(d1, w)
				m1 := scale(n1, w)
				o = append(o, geom.Polygon{{add(v, m1), add(add(v, m1), e), add(sub(v, m1), e), sub(v, m1), add(v, m1)}})
			}
			continue
		}
		// A left turn leaves the gap between the edge strips on the right.
		side := 1.0
		if c > 0 {
			side = -1
		}
		p1, p2 := add(v, scale(n1, side*w)), add(v, scale(n2, side*w))
		k := 1 + dot(n1, n2)
		if k > 0 {
			m := add(v, scale(add(n1, n2), side*w/k))
			if distance(m, v) <= MiterLimit*w {
				o = append(o, geom.Polygon{{v, p1, m, p2, v}})
				continue
			}
		}
		o = append(o, geom.Polygon{{v, p1, p2, v}})
	}
	return o
}

// OffsetCurve returns the line parallel to l at distance d, to the left
// of l for positive d and to the right for negative d. The result runs
// in the same direction as l.
func OffsetCurve(l geom.LineString, d float64) geom.LineString {
	pts := dedupe(l)
	if len(pts) < 2 || d == 0 {
		if len(pts) < 2 {
			return nil
		}
		return append(geom.LineString(nil), pts...)
	}
	return geom.LineString(offsetPath(pts, d))
}

// leftNormal returns the unit normal to the left of segment a-b.
func leftNormal(a, b geom.Point) geom.Point {
	n, _ := normalize(geom.Point{X: a.Y - b.Y, Y: b.X - a.X})
	return n
}

// offsetPath offsets the open vertex path pts to its left by d.
func offsetPath(pts []geom.Point, d float64) []geom.Point {
	nseg := len(pts) - 1
	type seg struct{ a, b geom.Point }
	segs := make([]seg, nseg)
	for i := 0; i < nseg; i++ {
		a, b := pts[i], pts[i+1]
		off := scale(leftNormal(a, b), d)
		segs[i] = seg{add(a, off), add(b, off)}
	}

	out := []geom.Point{segs[0].a}
	for i := 1; i < nseg; i++ {
		s1, s2 := segs[i-1], segs[i]
		d1, d2 := direction(s1.a, s1.b), direction(s2.a, s2.b)
		c := cross(d1, d2)
		if math.Abs(c) < parallelTolerance*norm(d1)*norm(d2) {
			out = append(out, s1.b)
			continue
		}
		x, _, _, _ := extendedIntersection(lineEnd{s1.a, s1.b}, lineEnd{s2.a, s2.b})
		outer := c*d < 0
		if outer && distance(x, pts[i]) > MiterLimit*math.Abs(d) {
			out = append(out, s1.b, s2.a)
			continue
		}
		out = append(out, x)
	}
	out = append(out, segs[nseg-1].b)
	return dedupe(out)
}

// CalculateOffsetSide returns the side of l on which m lies: -1 when the
// cross product of (m - start) and (end - start) of the segment nearest
// to m is positive, otherwise 1. Multiplying an offset distance by the
// side offsets toward m.
func CalculateOffsetSide(l geom.LineString, m geom.Point) int {
	if len(l) < 2 {
		return 1
	}
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < len(l)-1; i++ {
		if d := segmentDistance(m, l[i], l[i+1]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return 1
	}
	s, e := l[best], l[best+1]
	if cross(sub(m, s), sub(e, s)) > 0 {
		return -1
	}
	return 1
}

// ParseOffsetDistance parses a user-entered offset distance. A comma may
// be used as the decimal separator. The distance must be positive.
func ParseOffsetDistance(s string) (float64, error) {
	v, err := cast.ToFloat64E(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
	if err != nil {
		return 0, fmt.Errorf("rmcgeo: invalid offset distance %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("rmcgeo: offset distance must be positive, got %g", v)
	}
	return v, nil
}
