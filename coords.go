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

	"github.com/ctessum/geom"
)

// VertexSnapPixels is the radius, in pixels, within which the coordinate
// tool snaps to a vertex.
const VertexSnapPixels = 6

// FormatCoordinate formats p as "x, y" with four decimal places.
func FormatCoordinate(p geom.Point) string {
	return fmt.Sprintf("%.4f, %.4f", p.X, p.Y)
}

// vertices calls f for every vertex of g until f returns false.
func vertices(g geom.Geom, f func(geom.Point) bool) {
	switch t := g.(type) {
	case geom.Point:
		f(t)
	case geom.MultiPoint:
		for _, p := range t {
			if !f(p) {
				return
			}
		}
	case geom.LineString:
		for _, p := range t {
			if !f(p) {
				return
			}
		}
	case geom.MultiLineString:
		for _, l := range t {
			for _, p := range l {
				if !f(p) {
					return
				}
			}
		}
	case geom.Polygon:
		for _, r := range t {
			for _, p := range r {
				if !f(p) {
					return
				}
			}
		}
	case geom.MultiPolygon:
		for _, pg := range t {
			for _, r := range pg {
				for _, p := range r {
					if !f(p) {
						return
					}
				}
			}
		}
	}
}

// SnapToVertex returns the vertex of any layer of c nearest p within
// pixels screen pixels, in canvas coordinates.
func SnapToVertex(c Canvas, p geom.Point, pixels float64) (geom.Point, bool) {
	radius := pixels * c.MapUnitsPerPixel()
	var best geom.Point
	bestD := radius
	found := false
	for _, l := range c.Layers() {
		lp, err := TransformPoint(p, c.CRS(), l.CRS())
		if err != nil {
			continue
		}
		r := radius
		if edge, err := TransformPoint(geom.Point{X: p.X + radius, Y: p.Y}, c.CRS(), l.CRS()); err == nil {
			r = distance(lp, edge)
		}
		b := &geom.Bounds{Min: geom.Point{X: lp.X - r, Y: lp.Y - r}, Max: geom.Point{X: lp.X + r, Y: lp.Y + r}}
		for _, f := range l.FeaturesInBounds(b) {
			vertices(f.Geom, func(v geom.Point) bool {
				cv, err := TransformPoint(v, l.CRS(), c.CRS())
				if err != nil {
					return false
				}
				if d := distance(cv, p); d <= bestD {
					best, bestD, found = cv, d, true
				}
				return true
			})
		}
	}
	return best, found
}

// CoordinateTool copies the coordinates of a clicked point, snapped to a
// nearby vertex when there is one, in the canvas CRS.
type CoordinateTool struct {
	canvas Canvas

	// Copy receives the formatted coordinates of each click.
	Copy func(text string)
	// Pixels is the vertex snapping radius.
	Pixels float64
}

// NewCoordinateTool returns a coordinate tool that passes each captured
// coordinate to copy.
func NewCoordinateTool(c Canvas, copy func(string)) *CoordinateTool {
	return &CoordinateTool{canvas: c, Copy: copy, Pixels: VertexSnapPixels}
}

// Activate implements Tool.
func (t *CoordinateTool) Activate() error {
	t.canvas.Messenger().Info("Instructions", "Click on the map to copy coordinates in the current CRS.")
	return nil
}

// Deactivate implements Tool.
func (t *CoordinateTool) Deactivate() { t.canvas.ClearPreview(pointPreview) }

// Move implements Tool. The snapped vertex, if any, is previewed.
func (t *CoordinateTool) Move(e PointerEvent) {
	if v, ok := SnapToVertex(t.canvas, e.Pos, t.Pixels); ok {
		t.canvas.SetPreview(pointPreview, v)
		return
	}
	t.canvas.ClearPreview(pointPreview)
}

// Press implements Tool. A right click unsets the tool.
func (t *CoordinateTool) Press(e PointerEvent) {
	if e.Button == RightButton {
		t.canvas.UnsetTool(t)
		return
	}
	if e.Button != LeftButton {
		return
	}
	p, snapped := SnapToVertex(t.canvas, e.Pos, t.Pixels)
	status := "not snapped"
	if snapped {
		status = "snapped"
	} else {
		p = e.Pos
	}
	text := FormatCoordinate(p)
	if t.Copy != nil {
		t.Copy(text)
	}
	t.canvas.Messenger().Success("Success",
		fmt.Sprintf("Coordinates %s (CRS: %s) copied (%s).", text, t.canvas.CRS().AuthID(), status))
	t.canvas.ClearPreview(pointPreview)
}

// Release implements Tool.
func (t *CoordinateTool) Release(PointerEvent) {}

// KeyPress implements Tool.
func (t *CoordinateTool) KeyPress(Key) {}
