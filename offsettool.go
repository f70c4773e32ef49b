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
	"strings"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// DistancePrompt asks the user for an offset distance. ok is false if the
// user cancels.
type DistancePrompt func() (text string, ok bool)

// FixedDistance returns a prompt that always answers d.
func FixedDistance(d float64) DistancePrompt {
	return func() (string, bool) { return fmt.Sprint(d), true }
}

// OffsetState is the phase of an OffsetTool.
type OffsetState int

// Offset tool phases.
const (
	SelectingFeature OffsetState = iota
	SelectingSide
)

type offsetSession struct {
	state    OffsetState
	selected *Hit
	side     int
}

// OffsetTool creates a copy of a line parallel to it. A click selects the
// line, moving the pointer chooses the side, and a second click adds the
// new feature to the line's layer.
type OffsetTool struct {
	toolBase
	prompt    DistancePrompt
	offsetter *Offsetter

	distance float64
	session  offsetSession
}

// NewOffsetTool returns an offset tool that asks prompt for the distance
// when activated.
func NewOffsetTool(c Canvas, prompt DistancePrompt, o *Offsetter) *OffsetTool {
	if o == nil {
		o = NewOffsetter()
	}
	t := &OffsetTool{
		toolBase:  newToolBase(c, "offset", OffsetSnapPixels, true),
		prompt:    prompt,
		offsetter: o,
	}
	t.session = offsetSession{side: 1}
	return t
}

// Distance returns the offset distance entered on activation.
func (t *OffsetTool) Distance() float64 { return t.distance }

// State returns the current phase.
func (t *OffsetTool) State() OffsetState { return t.session.state }

// Side returns the current offset side, 1 or -1.
func (t *OffsetTool) Side() int { return t.session.side }

// Activate implements Tool.
func (t *OffsetTool) Activate() error {
	if !isLineLayer(t.canvas.ActiveLayer()) {
		t.canvas.Messenger().Warning("Invalid layer", "Select a line layer to use the offset tool.")
		return fmt.Errorf("rmcgeo: offset: active layer is not a line layer")
	}
	if t.prompt == nil {
		return fmt.Errorf("rmcgeo: offset: no distance prompt")
	}
	text, ok := t.prompt()
	if !ok {
		return fmt.Errorf("rmcgeo: offset: cancelled")
	}
	d, err := ParseOffsetDistance(text)
	if err != nil {
		t.canvas.Messenger().Warning("Offset", err.Error())
		return err
	}
	t.distance = d
	t.reset()
	return nil
}

// Deactivate implements Tool.
func (t *OffsetTool) Deactivate() {
	t.reset()
	t.hovered = nil
	t.clearPreviews(hoverPreview)
}

func (t *OffsetTool) reset() {
	t.session = offsetSession{state: SelectingFeature, side: 1}
	t.clearPreviews(resultPreview)
}

// Move implements Tool.
func (t *OffsetTool) Move(e PointerEvent) {
	switch t.session.state {
	case SelectingFeature:
		layer := t.canvas.ActiveLayer()
		if !isLineLayer(layer) {
			return
		}
		t.updateHover(e.Pos, layer)
	case SelectingSide:
		sel := t.session.selected
		p, err := TransformPoint(e.Pos, t.canvas.CRS(), sel.Layer.CRS())
		if err != nil {
			t.logger().WithField("error", err).Warn("using untransformed pointer position")
			p = e.Pos
		}
		if l, ok := Polyline(sel.Feature.Geom); ok {
			t.session.side = CalculateOffsetSide(l, p)
		}
		t.preview()
	}
}

func (t *OffsetTool) offsetGeom() (geom.LineString, error) {
	sel := t.session.selected
	return t.offsetter.Offset(sel.Feature.Geom, t.distance*float64(t.session.side), sel.Layer.CRS())
}

func (t *OffsetTool) preview() {
	g, err := t.offsetGeom()
	if err != nil {
		t.canvas.ClearPreview(resultPreview)
		return
	}
	t.canvas.SetPreview(resultPreview, layerToCanvas(t.canvas, t.session.selected.Layer, g))
}

// Press implements Tool.
func (t *OffsetTool) Press(e PointerEvent) {
	switch e.Button {
	case RightButton:
		t.reset()
		t.canvas.UnsetTool(t)
	case LeftButton:
		switch t.session.state {
		case SelectingFeature:
			t.selectFeature()
		case SelectingSide:
			t.createFeature()
			t.reset()
		}
	}
}

func (t *OffsetTool) selectFeature() {
	h := t.hovered
	if h == nil || !isLineLayer(h.Layer) || !RequireEditable(t.canvas, h.Layer) {
		return
	}
	t.session.selected = h
	t.session.state = SelectingSide
	t.hovered = nil
	t.canvas.ClearPreview(hoverPreview)
	t.logger().WithField("feature", h.Feature.ID).Debug("line selected")
}

// createFeature adds the offset line to the selected layer, copying the
// attributes of the source feature except its primary key and any fid or
// id field.
func (t *OffsetTool) createFeature() {
	sel := t.session.selected
	g, err := t.offsetGeom()
	if err != nil {
		t.logger().WithField("error", err).Warn("offset failed")
		return
	}
	skip := make(map[int]bool)
	for _, i := range sel.Layer.PrimaryKeyIndices() {
		skip[i] = true
	}
	attrs := make(map[string]interface{})
	for i, f := range sel.Layer.Fields() {
		n := strings.ToLower(f.Name)
		if skip[i] || n == "fid" || n == "id" {
			continue
		}
		attrs[f.Name] = attribute(sel.Feature, f.Name)
	}
	var out geom.Geom = g
	if _, multi := sel.Feature.Geom.(geom.MultiLineString); multi {
		out = geom.MultiLineString{g}
	}
	id, ok := InsertFeature(t.canvas, sel.Layer, &Feature{Geom: out, Attributes: attrs})
	if !ok {
		return
	}
	t.logger().WithFields(logrus.Fields{"source": sel.Feature.ID, "feature": id, "side": t.session.side}).Info("offset line added")
}

// Release implements Tool.
func (t *OffsetTool) Release(PointerEvent) {}

// KeyPress implements Tool.
func (t *OffsetTool) KeyPress(k Key) {
	if k == KeyEscape {
		t.reset()
	}
}
