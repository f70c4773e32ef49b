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
	"github.com/sirupsen/logrus"
)

// toolBase holds what the line-editing tools share: the canvas, a hover
// resolver, and the feature currently under the pointer.
type toolBase struct {
	canvas Canvas
	hover  *HoverResolver
	name   string

	// hovered is the line under the pointer, or nil.
	hovered *Hit

	Log logrus.FieldLogger
}

func newToolBase(c Canvas, name string, pixels float64, inclusive bool) toolBase {
	h := NewHoverResolver(c, pixels)
	h.Inclusive = inclusive
	return toolBase{canvas: c, hover: h, name: name, Log: logrus.StandardLogger()}
}

// updateHover finds the line under p, restricted to layer only if it is
// not nil, and highlights it.
func (b *toolBase) updateHover(p geom.Point, only Layer) {
	b.hover.Log = b.Log
	b.hovered = b.hover.Resolve(p, only)
	if b.hovered == nil {
		b.canvas.ClearPreview(hoverPreview)
		return
	}
	b.canvas.SetPreview(hoverPreview, layerToCanvas(b.canvas, b.hovered.Layer, b.hovered.Feature.Geom))
}

func (b *toolBase) clearPreviews(names ...string) {
	for _, n := range names {
		b.canvas.ClearPreview(n)
	}
}

func (b *toolBase) logger() *logrus.Entry {
	return b.Log.WithField("tool", b.name)
}

// sameFeature returns whether a and b refer to the same feature of the same
// layer.
func sameFeature(a, b *Hit) bool {
	return a != nil && b != nil && a.Layer == b.Layer && a.Feature.ID == b.Feature.ID
}

// chamferSession is the selection state of a ChamferTool.
type chamferSession struct {
	step  int
	first *Hit
}

// ChamferTool extends two lines of the active layer until they meet. The
// first click selects a line, the second click selects the other line and
// applies the change to both.
type ChamferTool struct {
	toolBase
	session chamferSession
}

// NewChamferTool returns a chamfer tool operating on the active layer of c.
func NewChamferTool(c Canvas) *ChamferTool {
	return &ChamferTool{toolBase: newToolBase(c, "chamfer", SnapPixels, false)}
}

// Step returns 0 while waiting for the first line and 1 while waiting for
// the second.
func (t *ChamferTool) Step() int { return t.session.step }

// First returns the selected first line, if any.
func (t *ChamferTool) First() *Hit { return t.session.first }

// Activate implements Tool.
func (t *ChamferTool) Activate() error {
	if !isLineLayer(t.canvas.ActiveLayer()) {
		t.canvas.Messenger().Warning("Invalid layer", "Select a line layer to use the chamfer tool.")
		return fmt.Errorf("rmcgeo: chamfer: active layer is not a line layer")
	}
	return nil
}

// Deactivate implements Tool.
func (t *ChamferTool) Deactivate() {
	t.reset()
	t.hovered = nil
	t.clearPreviews(hoverPreview)
}

func (t *ChamferTool) reset() {
	t.session = chamferSession{}
	t.clearPreviews(firstPreview, resultPreview, pointPreview)
}

// Move implements Tool.
func (t *ChamferTool) Move(e PointerEvent) {
	layer := t.canvas.ActiveLayer()
	if !isLineLayer(layer) {
		return
	}
	t.updateHover(e.Pos, layer)
	if t.session.step != 1 || t.session.first == nil {
		return
	}
	if t.hovered == nil || sameFeature(t.hovered, t.session.first) {
		t.clearPreviews(resultPreview, pointPreview)
		return
	}
	t.preview(t.session.first, t.hovered)
}

func (t *ChamferTool) preview(a, b *Hit) {
	t.clearPreviews(resultPreview, pointPreview)
	e1, e2, c, err := t.chamfer(a, b)
	if err != nil {
		return
	}
	t.canvas.SetPreview(resultPreview, layerToCanvas(t.canvas, a.Layer, geom.MultiLineString{e1, e2}))
	t.canvas.SetPreview(pointPreview, layerToCanvas(t.canvas, a.Layer, c.Intersection))
}

func (t *ChamferTool) chamfer(a, b *Hit) (e1, e2 geom.LineString, c *Chamfer, err error) {
	l1, ok1 := Polyline(a.Feature.Geom)
	l2, ok2 := Polyline(b.Feature.Geom)
	if !ok1 || !ok2 {
		return nil, nil, nil, reject("invalid line geometry")
	}
	return ChamferLines(l1, l2)
}

// Press implements Tool.
func (t *ChamferTool) Press(e PointerEvent) {
	if e.Button != LeftButton {
		return
	}
	layer := t.canvas.ActiveLayer()
	if !isLineLayer(layer) || !RequireEditable(t.canvas, layer) {
		return
	}
	if t.hovered == nil {
		return
	}
	switch t.session.step {
	case 0:
		t.session.first = t.hovered
		t.session.step = 1
		t.canvas.SetPreview(firstPreview, layerToCanvas(t.canvas, layer, t.hovered.Feature.Geom))
		t.logger().WithField("feature", t.hovered.Feature.ID).Debug("first line selected")
	case 1:
		t.perform(t.session.first, t.hovered)
		t.reset()
	}
}

// perform chamfers a and b and writes both geometries back.
func (t *ChamferTool) perform(a, b *Hit) {
	if a == nil || b == nil || sameFeature(a, b) {
		return
	}
	e1, e2, _, err := t.chamfer(a, b)
	if err != nil {
		t.canvas.Messenger().Warning("Chamfer", err.Error())
		t.logger().WithField("reason", err).Info("chamfer rejected")
		return
	}
	ok1 := UpdateGeometry(t.canvas, a.Layer, a.Feature.ID, withPolyline(a.Feature.Geom, e1))
	ok2 := UpdateGeometry(t.canvas, b.Layer, b.Feature.ID, withPolyline(b.Feature.Geom, e2))
	if !ok1 || !ok2 {
		t.canvas.Messenger().Error("Chamfer", "Could not update the line geometries.")
		return
	}
	t.logger().WithFields(logrus.Fields{"first": a.Feature.ID, "second": b.Feature.ID}).Info("lines chamfered")
}

// Release implements Tool.
func (t *ChamferTool) Release(e PointerEvent) {
	if e.Button == RightButton {
		t.reset()
		t.canvas.UnsetTool(t)
	}
}

// KeyPress implements Tool.
func (t *ChamferTool) KeyPress(k Key) {
	if k == KeyEscape {
		t.reset()
	}
}
