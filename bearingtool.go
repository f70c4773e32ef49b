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

// Columns of a LegTable.
const (
	AngleColumn = iota
	DistanceColumn
)

// LegTable is the two-column table of traverse legs shown to the user.
// Cells written by the tool itself do not trigger the change handler.
type LegTable struct {
	rows [][2]string

	// updating is set while the tool rewrites cells.
	updating bool
	onChange func(row, col int)
}

// Rows returns the number of rows.
func (tb *LegTable) Rows() int { return len(tb.rows) }

// Text returns the text of a cell.
func (tb *LegTable) Text(row, col int) string { return tb.rows[row][col] }

// Edit sets the text of a cell as the user would, invoking the change
// handler.
func (tb *LegTable) Edit(row, col int, text string) {
	if row < 0 || row >= len(tb.rows) || col < 0 || col > 1 {
		return
	}
	tb.rows[row][col] = text
	if !tb.updating && tb.onChange != nil {
		tb.onChange(row, col)
	}
}

// update runs f with the change handler suppressed.
func (tb *LegTable) update(f func()) {
	tb.updating = true
	defer func() { tb.updating = false }()
	f()
}

func (tb *LegTable) set(row, col int, text string) {
	tb.update(func() { tb.rows[row][col] = text })
}

func (tb *LegTable) appendRow(angle, distance string) {
	tb.update(func() { tb.rows = append(tb.rows, [2]string{angle, distance}) })
}

func (tb *LegTable) removeLast() {
	tb.update(func() { tb.rows = tb.rows[:len(tb.rows)-1] })
}

// BearingTool draws lines from a clicked start point by azimuth or rumo and
// distance. Legs are entered through Insert, shown in Table, and written
// to a line layer by Save.
type BearingTool struct {
	canvas Canvas
	kind   TraverseKind

	// LayerCRS is the CRS in which lines are saved.
	LayerCRS string

	start    geom.Point
	hasStart bool
	open     bool
	legs     []Leg
	table    *LegTable

	Log logrus.FieldLogger
}

// NewBearingTool returns a traverse tool of the given kind.
func NewBearingTool(c Canvas, kind TraverseKind) *BearingTool {
	t := &BearingTool{
		canvas:   c,
		kind:     kind,
		LayerCRS: DefaultFallbackCRS,
		Log:      logrus.StandardLogger(),
	}
	t.table = &LegTable{onChange: t.cellChanged}
	return t
}

// Kind returns the angle convention of t.
func (t *BearingTool) Kind() TraverseKind { return t.kind }

// Table returns the leg table.
func (t *BearingTool) Table() *LegTable { return t.table }

// Legs returns the entered legs.
func (t *BearingTool) Legs() []Leg { return append([]Leg(nil), t.legs...) }

// Start returns the start point, if one has been clicked.
func (t *BearingTool) Start() (geom.Point, bool) { return t.start, t.hasStart }

// IsOpen returns whether the leg entry session is open.
func (t *BearingTool) IsOpen() bool { return t.open }

// Traverse returns the current start point and legs.
func (t *BearingTool) Traverse() *Traverse {
	return &Traverse{Kind: t.kind, Start: t.start, Legs: t.Legs(), CRS: t.canvas.CRS().AuthID()}
}

func (t *BearingTool) logger() *logrus.Entry {
	return t.Log.WithField("tool", t.kind.String())
}

// Activate implements Tool. The canvas must be in a UTM projection.
func (t *BearingTool) Activate() error {
	crs := t.canvas.CRS()
	if crs == nil || crs.IsGeographic() || !crs.IsUTM() {
		desc := "none"
		if crs != nil {
			desc = crs.Description()
		}
		t.canvas.Messenger().Warning("Invalid coordinate system",
			fmt.Sprintf("This tool only works with UTM coordinate systems. Current system: %s.", desc))
		return fmt.Errorf("rmcgeo: %s tool: canvas CRS %s is not UTM", t.kind, desc)
	}
	t.canvas.Messenger().Info("Instructions", "Click on the map to set the start point of the line.")
	return nil
}

// Deactivate implements Tool.
func (t *BearingTool) Deactivate() { t.close() }

// close ends the entry session and discards its state.
func (t *BearingTool) close() {
	t.open = false
	t.hasStart = false
	t.start = geom.Point{}
	t.legs = nil
	t.table.update(func() { t.table.rows = nil })
	t.canvas.ClearPreview(resultPreview)
}

// Press implements Tool. A click sets the start point of the traverse.
func (t *BearingTool) Press(e PointerEvent) {
	if e.Button != LeftButton {
		return
	}
	if l := t.canvas.ActiveLayer(); l != nil && !l.IsEditable() {
		t.canvas.Messenger().Warning("Warning", "The layer must be in edit mode to use this tool.")
		return
	}
	t.start, t.hasStart = e.Pos, true
	t.open = true
	t.Preview("", "", "")
}

// Move implements Tool.
func (t *BearingTool) Move(PointerEvent) {}

// Release implements Tool. A right click closes the session and the tool.
func (t *BearingTool) Release(e PointerEvent) {
	if e.Button == RightButton {
		t.close()
		t.canvas.UnsetTool(t)
	}
}

// KeyPress implements Tool.
func (t *BearingTool) KeyPress(k Key) {
	if k == KeyEscape {
		t.close()
	}
}

// Preview shows the traverse with a pending leg that has not been
// inserted yet. Invalid pending values are left out.
func (t *BearingTool) Preview(angle, quadrant, distance string) {
	if !t.hasStart {
		return
	}
	legs := t.legs
	if leg, err := NewLeg(t.kind, angle, quadrant, distance); err == nil {
		legs = append(append([]Leg(nil), t.legs...), leg)
	}
	pts := TraversePoints(t.start, legs)
	if len(pts) < 2 {
		t.canvas.ClearPreview(resultPreview)
		return
	}
	t.canvas.SetPreview(resultPreview, geom.LineString(pts))
}

// Insert validates and appends a leg.
func (t *BearingTool) Insert(angle, quadrant, distance string) error {
	if !t.open {
		return fmt.Errorf("rmcgeo: %s tool: click a start point first", t.kind)
	}
	leg, err := NewLeg(t.kind, angle, quadrant, distance)
	if err != nil {
		t.canvas.Messenger().Warning("Error", err.Error())
		return err
	}
	t.legs = append(t.legs, leg)
	t.table.appendRow(leg.Label, FormatDistance(leg.Distance))
	t.Preview("", "", "")
	t.logger().WithFields(logrus.Fields{"azimuth": leg.Azimuth, "distance": leg.Distance}).Debug("leg inserted")
	return nil
}

// Undo removes the last leg.
func (t *BearingTool) Undo() {
	if len(t.legs) == 0 {
		return
	}
	t.legs = t.legs[:len(t.legs)-1]
	t.table.removeLast()
	t.Preview("", "", "")
}

// cellChanged handles a user edit of the leg table.
func (t *BearingTool) cellChanged(row, col int) {
	if row >= len(t.legs) {
		return
	}
	leg := &t.legs[row]
	text := t.table.Text(row, col)
	switch col {
	case AngleColumn:
		if t.kind == RumoTraverse {
			t.canvas.Messenger().Warning("Warning", "To change a bearing, remove the row and insert it again.")
			t.table.set(row, col, leg.Label)
			return
		}
		clean := strings.Join(dmsFields(text), " ")
		az, err := ParseDMS(clean)
		if err != nil || az < 0 || az > 360 {
			t.canvas.Messenger().Warning("Error", "Invalid azimuth. It must be between 0 and 360 degrees.")
			t.table.set(row, col, fmt.Sprintf("%.2f°", leg.Azimuth))
			return
		}
		leg.Azimuth, leg.Angle, leg.Label = az, clean, text
	case DistanceColumn:
		d, err := ParseDistance(text)
		if err != nil {
			t.canvas.Messenger().Warning("Error", "Invalid distance. Use a number greater than zero.")
			t.table.set(row, col, FormatDistance(leg.Distance))
			return
		}
		leg.Distance = d
		t.table.set(row, col, FormatDistance(d))
	}
	t.Preview("", "", "")
}

// Save writes one two-point line per leg, chained from the start point and
// transformed from the canvas CRS to the layer CRS, to the active layer if it is a line layer in LayerCRS, or else to a new
// memory layer added to the canvas. The layer is left in edit mode. The
// session is closed and the tool unset afterwards. Save returns the layer
// written to, or nil if nothing was saved.
func (t *BearingTool) Save() Layer {
	defer t.canvas.UnsetTool(t)
	defer t.close()
	if !t.hasStart || len(t.legs) == 0 {
		return nil
	}
	msg := t.canvas.Messenger()
	layer := t.canvas.ActiveLayer()
	crs, err := ParseCRS(t.LayerCRS)
	if err != nil {
		msg.Error("Error", fmt.Sprintf("Cannot create a layer in %s.", t.LayerCRS))
		return nil
	}
	switch {
	case layer == nil:
		layer = t.workingLayer(crs)
	case layer.CRS().AuthID() != crs.AuthID():
		msg.Warning("Warning", fmt.Sprintf("The selected layer is not in %s. Creating a new layer.", crs.AuthID()))
		layer = t.workingLayer(crs)
	case !isLineLayer(layer):
		msg.Warning("Warning", "The selected layer is not a line layer. Creating a new layer.")
		layer = t.workingLayer(crs)
	}
	if !layer.IsEditable() && !layer.StartEditing() {
		return nil
	}

	pts := TraversePoints(t.start, t.legs)
	if src := t.canvas.CRS(); layer.CRS() != nil && !src.Equal(layer.CRS()) {
		g, err := TransformGeom(geom.LineString(pts), src, layer.CRS())
		if err != nil {
			msg.Error("Error", fmt.Sprintf("Cannot transform the traverse to %s.", layer.CRS().AuthID()))
			t.logger().WithError(err).Warn("traverse not saved")
			return nil
		}
		pts = g.(geom.LineString)
	}
	added := 0
	for i := 0; i < len(pts)-1; i++ {
		if pts[i].Equals(pts[i+1]) {
			continue
		}
		f := &Feature{Geom: geom.LineString{pts[i], pts[i+1]}}
		if _, ok := layer.AddFeature(f); ok {
			added++
		}
	}
	if added == 0 {
		msg.Error("Error", "Could not add the lines.")
		return nil
	}
	layer.UpdateExtents()
	t.canvas.Refresh()
	msg.Success("Success", fmt.Sprintf("%d lines added. The layer remains in edit mode.", added))
	t.logger().WithFields(logrus.Fields{"layer": layer.Name(), "lines": added}).Info("traverse saved")
	return layer
}

func (t *BearingTool) workingLayer(crs *CRS) Layer {
	l := NewMemLayer(t.kind.layerName(), LineGeometry, crs)
	l.Log = t.Log
	t.canvas.AddLayer(l)
	return l
}

// Load replaces the current session with the traverse tr.
func (t *BearingTool) Load(tr *Traverse) {
	t.close()
	t.kind = tr.Kind
	t.start, t.hasStart, t.open = tr.Start, true, true
	for _, l := range tr.Legs {
		t.legs = append(t.legs, l)
		t.table.appendRow(l.Label, FormatDistance(l.Distance))
	}
	t.Preview("", "", "")
}
