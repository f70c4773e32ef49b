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
	"math"

	"github.com/ctessum/geom"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Vector arithmetic over geom.Point, which doubles as a 2D vector.

func sub(a, b geom.Point) geom.Point { return geom.Point{X: a.X - b.X, Y: a.Y - b.Y} }

func add(a, b geom.Point) geom.Point { return geom.Point{X: a.X + b.X, Y: a.Y + b.Y} }

func scale(a geom.Point, s float64) geom.Point { return geom.Point{X: a.X * s, Y: a.Y * s} }

func dot(a, b geom.Point) float64 { return a.X*b.X + a.Y*b.Y }

// cross returns the z component of the cross product a × b.
func cross(a, b geom.Point) float64 { return a.X*b.Y - a.Y*b.X }

func norm(a geom.Point) float64 { return math.Hypot(a.X, a.Y) }

// normalize returns the unit vector in the direction of a, or false
// if a has zero length.
func normalize(a geom.Point) (geom.Point, bool) {
	n := norm(a)
	if n == 0 {
		return geom.Point{}, false
	}
	return geom.Point{X: a.X / n, Y: a.Y / n}, true
}

// distance returns the Euclidean distance between a and b.
func distance(a, b geom.Point) float64 { return norm(sub(a, b)) }

// direction returns the vector pointing from a to b.
func direction(a, b geom.Point) geom.Point { return sub(b, a) }

func coord(p geom.Point) gogeom.Coord { return gogeom.Coord{p.X, p.Y} }

// segmentDistance returns the distance from p to the segment s-e.
func segmentDistance(p, s, e geom.Point) float64 {
	if s.Equals(e) {
		return distance(p, s)
	}
	return xy.DistanceFromPointToLine(coord(p), coord(s), coord(e))
}

// pathDistance returns the distance from p to the polyline through pts.
func pathDistance(p geom.Point, pts []geom.Point) float64 {
	switch len(pts) {
	case 0:
		return math.Inf(1)
	case 1:
		return distance(p, pts[0])
	}
	d := math.Inf(1)
	for i := 0; i < len(pts)-1; i++ {
		d = math.Min(d, segmentDistance(p, pts[i], pts[i+1]))
	}
	return d
}

// DistanceToPoint returns the distance from p to the nearest part of g.
// Points inside a polygon are at distance zero. Unsupported or empty
// geometries are infinitely far away.
func DistanceToPoint(g geom.Geom, p geom.Point) float64 {
	switch t := g.(type) {
	case geom.Point:
		return distance(p, t)
	case geom.MultiPoint:
		d := math.Inf(1)
		for _, pp := range t {
			d = math.Min(d, distance(p, pp))
		}
		return d
	case geom.LineString:
		return pathDistance(p, t)
	case geom.MultiLineString:
		d := math.Inf(1)
		for _, l := range t {
			d = math.Min(d, pathDistance(p, l))
		}
		return d
	case geom.Polygon:
		if p.Within(t) != geom.Outside {
			return 0
		}
		d := math.Inf(1)
		for _, r := range t {
			d = math.Min(d, pathDistance(p, closeRing(r)))
		}
		return d
	case geom.MultiPolygon:
		d := math.Inf(1)
		for _, pp := range t {
			d = math.Min(d, DistanceToPoint(pp, p))
		}
		return d
	default:
		return math.Inf(1)
	}
}

// closeRing returns r with its first point repeated at the end if it is
// not already closed.
func closeRing(r []geom.Point) []geom.Point {
	if len(r) == 0 || r[0].Equals(r[len(r)-1]) {
		return r
	}
	o := make([]geom.Point, len(r)+1)
	copy(o, r)
	o[len(r)] = r[0]
	return o
}

// Polyline returns the editable polyline of g: g itself for a LineString,
// or the first part of a MultiLineString.
func Polyline(g geom.Geom) (geom.LineString, bool) {
	switch t := g.(type) {
	case geom.LineString:
		return t, true
	case geom.MultiLineString:
		if len(t) == 0 {
			return nil, false
		}
		return t[0], true
	default:
		return nil, false
	}
}

// withPolyline returns a copy of orig with its editable polyline replaced
// by l. The geometry type and any further parts of orig are kept.
func withPolyline(orig geom.Geom, l geom.LineString) geom.Geom {
	if ml, ok := orig.(geom.MultiLineString); ok && len(ml) > 0 {
		o := make(geom.MultiLineString, len(ml))
		copy(o, ml)
		o[0] = l
		return o
	}
	return l
}

// Length returns the planar length of a line geometry, or the perimeter of
// a polygonal geometry.
func Length(g geom.Geom) float64 {
	switch t := g.(type) {
	case geom.LineString:
		return t.Length()
	case geom.MultiLineString:
		return t.Length()
	case geom.Polygon:
		var l float64
		for _, r := range t {
			l += geom.LineString(closeRing(r)).Length()
		}
		return l
	case geom.MultiPolygon:
		var l float64
		for _, p := range t {
			l += Length(p)
		}
		return l
	default:
		return 0
	}
}
