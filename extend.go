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
)

// ExtendSide is the end of a line that the extend tool lengthens.
type ExtendSide int

// Line ends.
const (
	ExtendEnd ExtendSide = iota
	ExtendStart
)

func (s ExtendSide) String() string {
	if s == ExtendStart {
		return "start"
	}
	return "end"
}

// rayFactor is the number of terminal-segment lengths a line is
// extended by when searching for its target.
const rayFactor = 10000

// DetermineExtendSide returns the end of l nearer to m, measured by
// projecting m onto the chord from the first to the last point of l.
func DetermineExtendSide(l geom.LineString, m geom.Point) ExtendSide {
	if len(l) < 2 {
		return ExtendEnd
	}
	first, last := l[0], l[len(l)-1]
	d := sub(last, first)
	lenSq := dot(d, d)
	if lenSq == 0 {
		return ExtendEnd
	}
	if t := dot(sub(m, first), d) / lenSq; t < 0.5 {
		return ExtendStart
	}
	return ExtendEnd
}

// ExtendLineFromSide lengthens the polyline of g from side until it meets
// target. The new vertex is the crossing of the extension ray with
// target nearest to the extended end. It returns false if the ray does
// not cross target.
func ExtendLineFromSide(g geom.Geom, target geom.Geom, side ExtendSide) (geom.Geom, bool) {
	l, ok := Polyline(g)
	if !ok || len(l) < 2 {
		return nil, false
	}
	end := lastEnd(l)
	if side == ExtendStart {
		end = firstEnd(l)
	}
	far := add(end.to, scale(end.dir(), rayFactor))
	x, ok := nearestCrossing(end.to, far, target)
	if !ok || x.Equals(end.to) {
		return nil, false
	}
	var nl geom.LineString
	if side == ExtendStart {
		nl = append(geom.LineString{x}, l...)
	} else {
		nl = append(append(geom.LineString(nil), l...), x)
	}
	return withPolyline(g, nl), true
}

// nearestCrossing returns the point where segment a-b crosses target
// closest to a. When the ray crosses target more than once this is not
// the first crossing in target's vertex order, which is what a host
// intersection would report first; the result depends only on distance
// from a.
func nearestCrossing(a, b geom.Point, target geom.Geom) (geom.Point, bool) {
	var best geom.Point
	bestDist := math.Inf(1)
	for _, path := range segmentPaths(target) {
		for i := 0; i < len(path)-1; i++ {
			x, ok := segmentIntersection(a, b, path[i], path[i+1])
			if !ok {
				continue
			}
			if d := distance(a, x); d < bestDist {
				bestDist = d
				best = x
			}
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// segmentPaths returns the vertex paths of the linework of g, with
// polygon rings closed.
func segmentPaths(g geom.Geom) [][]geom.Point {
	switch t := g.(type) {
	case geom.LineString:
		return [][]geom.Point{t}
	case geom.MultiLineString:
		o := make([][]geom.Point, len(t))
		for i, l := range t {
			o[i] = l
		}
		return o
	case geom.Polygon:
		o := make([][]geom.Point, len(t))
		for i, r := range t {
			o[i] = closeRing(r)
		}
		return o
	case geom.MultiPolygon:
		var o [][]geom.Point
		for _, p := range t {
			o = append(o, segmentPaths(p)...)
		}
		return o
	default:
		return nil
	}
}
