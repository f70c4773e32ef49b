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
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

type extendSession struct {
	step   int
	line   *Hit
	target *Hit
	// mouse is the last pointer position, in canvas CRS.
	mouse   geom.Point
	hasMove bool
}

// ExtendTool lengthens one line until it meets another. The first click
// selects the line to extend, the second click selects the target. The end
// that is extended is the one nearer the pointer.
type ExtendTool struct {
	toolBase
	session extendSession
}

// NewExtendTool returns an extend tool that searches every line layer of c.
func NewExtendTool(c Canvas) *ExtendTool {
	return &ExtendTool{toolBase: newToolBase(c, "extend", SnapPixels, false)}
}

// Step returns 0 while waiting for the line to extend and 1 while waiting
// for the target.
func (t *ExtendTool) Step() int { return t.session.step }

// Line returns the selected line, if any.
func (t *ExtendTool) Line() *Hit { return t.session.line }

// Activate implements Tool.
func (t *ExtendTool) Activate() error { return nil }

// Deactivate implements Tool.
func (t *ExtendTool) Deactivate() {
	t.reset()
	t.hovered = nil
	t.clearPreviews(hoverPreview)
}

func (t *ExtendTool) reset() {
	t.session = extendSession{}
	t.clearPreviews(firstPreview, resultPreview)
}

// Move implements Tool.
func (t *ExtendTool) Move(e PointerEvent) {
	t.session.mouse, t.session.hasMove = e.Pos, true
	t.updateHover(e.Pos, nil)
	if t.session.step != 1 || t.session.line == nil || t.hovered == nil {
		return
	}
	if sameFeature(t.hovered, t.session.line) {
		return
	}
	t.canvas.ClearPreview(resultPreview)
	g, ok := t.extended(t.session.line, t.hovered, e.Pos)
	if !ok {
		return
	}
	t.canvas.SetPreview(resultPreview, layerToCanvas(t.canvas, t.session.line.Layer, g))
}

// extended returns the geometry of line extended to target from the side
// nearest m, in the CRS of the line's layer.
func (t *ExtendTool) extended(line, target *Hit, m geom.Point) (geom.Geom, bool) {
	lcrs := line.Layer.CRS()
	mouse, err := TransformPoint(m, t.canvas.CRS(), lcrs)
	if err != nil {
		t.logger().WithField("error", err).Warn("using untransformed pointer position")
		mouse = m
	}
	tg, err := TransformGeom(target.Feature.Geom, target.Layer.CRS(), lcrs)
	if err != nil {
		t.logger().WithField("error", err).Warn("cannot transform target line")
		return nil, false
	}
	l, ok := Polyline(line.Feature.Geom)
	if !ok {
		return nil, false
	}
	return ExtendLineFromSide(line.Feature.Geom, tg, DetermineExtendSide(l, mouse))
}

// Press implements Tool.
func (t *ExtendTool) Press(e PointerEvent) {
	if e.Button != LeftButton || t.hovered == nil {
		return
	}
	if !t.session.hasMove {
		t.session.mouse, t.session.hasMove = e.Pos, true
	}
	switch t.session.step {
	case 0:
		if !isLineLayer(t.hovered.Layer) || !RequireEditable(t.canvas, t.hovered.Layer) {
			return
		}
		t.session.line = t.hovered
		t.session.step = 1
		t.canvas.SetPreview(firstPreview, layerToCanvas(t.canvas, t.hovered.Layer, t.hovered.Feature.Geom))
		t.logger().WithField("feature", t.hovered.Feature.ID).Debug("line to extend selected")
	case 1:
		if !isLineLayer(t.hovered.Layer) {
			return
		}
		t.session.target = t.hovered
		t.perform()
		t.reset()
	}
}

func (t *ExtendTool) perform() {
	line, target := t.session.line, t.session.target
	if line == nil || target == nil || !t.session.hasMove || sameFeature(line, target) {
		return
	}
	g, ok := t.extended(line, target, t.session.mouse)
	if !ok {
		t.logger().Debug("extension does not reach the target")
		return
	}
	if UpdateGeometry(t.canvas, line.Layer, line.Feature.ID, g) {
		t.logger().WithFields(logrus.Fields{"feature": line.Feature.ID, "target": target.Feature.ID}).Info("line extended")
	}
}

// Release implements Tool.
func (t *ExtendTool) Release(e PointerEvent) {
	if e.Button == RightButton {
		t.reset()
		t.canvas.UnsetTool(t)
	}
}

// KeyPress implements Tool.
func (t *ExtendTool) KeyPress(k Key) {
	if k == KeyEscape {
		t.reset()
	}
}
