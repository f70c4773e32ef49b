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
	"github.com/sirupsen/logrus"
)

// Default hover search radii, in screen pixels.
const (
	SnapPixels       = 10 // chamfer and extend tools
	OffsetSnapPixels = 5  // offset tool
)

// Hit is the line feature found nearest to a query point.
type Hit struct {
	Layer   Layer
	Feature *Feature
	// Distance is measured in the CRS of Layer.
	Distance float64
}

// HoverResolver finds the line feature nearest to a point on a canvas.
type HoverResolver struct {
	Canvas Canvas

	// Pixels is the search radius in screen pixels.
	Pixels float64

	// Inclusive accepts features at exactly the search radius.
	Inclusive bool

	Log logrus.FieldLogger
}

// NewHoverResolver returns a resolver with a radius of pixels that
// excludes the radius boundary.
func NewHoverResolver(c Canvas, pixels float64) *HoverResolver {
	return &HoverResolver{Canvas: c, Pixels: pixels, Log: logrus.StandardLogger()}
}

// Resolve returns the line feature closest to p, which is in the canvas
// CRS. If only is not nil, the search is restricted to that layer. It
// returns nil when no feature is within the search radius.
func (h *HoverResolver) Resolve(p geom.Point, only Layer) *Hit {
	radius := h.Pixels * h.Canvas.MapUnitsPerPixel()
	layers := h.Canvas.Layers()
	if only != nil {
		layers = []Layer{only}
	}
	var best *Hit
	bestDist := math.Inf(1)
	for _, l := range layers {
		if !isLineLayer(l) {
			continue
		}
		lp, lr := h.toLayer(p, radius, l)
		b := geom.NewBoundsPoint(geom.Point{X: lp.X - lr, Y: lp.Y - lr})
		b.Extend(geom.NewBoundsPoint(geom.Point{X: lp.X + lr, Y: lp.Y + lr}))
		for _, f := range l.FeaturesInBounds(b) {
			d := DistanceToPoint(f.Geom, lp)
			if !h.within(d, lr) || d >= bestDist {
				continue
			}
			bestDist = d
			best = &Hit{Layer: l, Feature: f, Distance: d}
		}
	}
	return best
}

func (h *HoverResolver) within(d, radius float64) bool {
	if h.Inclusive {
		return d <= radius
	}
	return d < radius
}

// toLayer converts the query point and search radius into the CRS of l by
// transforming the point and a point one radius east of it. On failure the
// canvas values are used unchanged.
func (h *HoverResolver) toLayer(p geom.Point, radius float64, l Layer) (geom.Point, float64) {
	src, dst := h.Canvas.CRS(), l.CRS()
	if src == nil || dst == nil || src.Equal(dst) {
		return p, radius
	}
	lp, err := TransformPoint(p, src, dst)
	if err != nil {
		h.Log.WithFields(logrus.Fields{"layer": l.Name(), "error": err}).Warn("hover: using untransformed query point")
		return p, radius
	}
	edge, err := TransformPoint(geom.Point{X: p.X + radius, Y: p.Y}, src, dst)
	if err != nil {
		h.Log.WithFields(logrus.Fields{"layer": l.Name(), "error": err}).Warn("hover: using untransformed search radius")
		return lp, radius
	}
	return lp, distance(lp, edge)
}
