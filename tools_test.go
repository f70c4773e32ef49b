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
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// toolViewport returns a viewport at 0.1 map units per pixel over an
// editable line layer holding ls.
func toolViewport(t *testing.T, ls ...geom.Geom) (*Viewport, *MemLayer, *LogMessenger) {
	l := lineLayer(t, "roads", ls...)
	l.StartEditing()
	msg := NewLogMessenger()
	return NewViewport(l.CRS(), 0.1, msg, l), l, msg
}

func geometryOf(t *testing.T, l Layer, id int64) geom.Geom {
	f, ok := l.Feature(id)
	if !ok {
		t.Fatalf("feature %d not found", id)
	}
	return f.Geom
}

func TestChamferTool(t *testing.T) {
	v, l, _ := toolViewport(t,
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}},
		geom.LineString{{X: 20, Y: 20}, {X: 20, Y: 10}},
	)
	tool := NewChamferTool(v)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}

	v.Click(geom.Point{X: 5, Y: 0.5}, LeftButton)
	if tool.Step() != 1 || tool.First() == nil || tool.First().Feature.ID != 1 {
		t.Fatalf("after the first click: step %d, first %+v", tool.Step(), tool.First())
	}
	if _, ok := v.Preview(firstPreview); !ok {
		t.Error("the first line should be highlighted")
	}

	v.Move(PointerEvent{Pos: geom.Point{X: 20.3, Y: 15}})
	if _, ok := v.Preview(resultPreview); !ok {
		t.Error("want a preview of the result")
	}
	v.Click(geom.Point{X: 20.3, Y: 15}, LeftButton)
	if tool.Step() != 0 {
		t.Errorf("step after the second click: %d", tool.Step())
	}
	x := geom.Point{X: 20, Y: 0}
	if g := geometryOf(t, l, 1); !g.Similar(geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}, x}, testTolerance) {
		t.Errorf("line 1: %v", g)
	}
	if g := geometryOf(t, l, 2); !g.Similar(geom.LineString{{X: 20, Y: 20}, {X: 20, Y: 10}, x}, testTolerance) {
		t.Errorf("line 2: %v", g)
	}
	for _, name := range []string{firstPreview, resultPreview, pointPreview} {
		if _, ok := v.Preview(name); ok {
			t.Errorf("preview %s left after the chamfer", name)
		}
	}
}

func TestChamferToolPreviewCleared(t *testing.T) {
	v, _, _ := toolViewport(t,
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}},
		geom.LineString{{X: 20, Y: 20}, {X: 20, Y: 10}},
	)
	tool := NewChamferTool(v)
	v.SetTool(tool)
	v.Click(geom.Point{X: 5, Y: 0.5}, LeftButton)

	v.Move(PointerEvent{Pos: geom.Point{X: 20.3, Y: 15}})
	if _, ok := v.Preview(resultPreview); !ok {
		t.Fatal("want a preview of the result")
	}
	// Back over the first line.
	v.Move(PointerEvent{Pos: geom.Point{X: 5, Y: 0.5}})
	for _, name := range []string{resultPreview, pointPreview} {
		if _, ok := v.Preview(name); ok {
			t.Errorf("preview %s left over the first line", name)
		}
	}
	if _, ok := v.Preview(firstPreview); !ok {
		t.Error("the first line should stay highlighted")
	}

	v.Move(PointerEvent{Pos: geom.Point{X: 20.3, Y: 15}})
	v.Move(PointerEvent{Pos: geom.Point{X: 50, Y: 50}})
	if _, ok := v.Preview(resultPreview); ok {
		t.Error("preview left with nothing hovered")
	}
}

func TestChamferToolRejects(t *testing.T) {
	crossing := []geom.Geom{
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 10}},
		geom.LineString{{X: 0, Y: 10}, {X: 10, Y: 0}},
	}
	v, l, msg := toolViewport(t, crossing...)
	tool := NewChamferTool(v)
	v.SetTool(tool)
	v.Click(geom.Point{X: 1, Y: 1.2}, LeftButton)
	v.Click(geom.Point{X: 1, Y: 8.8}, LeftButton)

	if m, ok := msg.Last(); !ok || m.Level != logrus.WarnLevel || m.Title != "Chamfer" {
		t.Errorf("want a chamfer warning, have %+v", m)
	}
	for i, g := range crossing {
		if have := geometryOf(t, l, int64(i+1)); !have.Similar(g, 0) {
			t.Errorf("line %d changed: %v", i+1, have)
		}
	}
}

func TestChamferToolSessionReset(t *testing.T) {
	v, _, _ := toolViewport(t,
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}},
		geom.LineString{{X: 20, Y: 20}, {X: 20, Y: 10}},
	)
	tool := NewChamferTool(v)
	v.SetTool(tool)

	v.Click(geom.Point{X: 5, Y: 0.5}, LeftButton)
	tool.KeyPress(KeyEscape)
	if tool.Step() != 0 || tool.First() != nil {
		t.Error("escape should reset the selection")
	}

	v.Click(geom.Point{X: 5, Y: 0.5}, LeftButton)
	v.Click(geom.Point{X: 5, Y: 0.5}, RightButton)
	if tool.Step() != 0 || v.Tool() != nil {
		t.Error("a right click should reset and unset the tool")
	}
}

func TestChamferToolActivation(t *testing.T) {
	poly := NewMemLayer("lots", PolygonGeometry, nil)
	msg := NewLogMessenger()
	v := NewViewport(nil, 1, msg, poly)
	if err := v.SetTool(NewChamferTool(v)); err == nil {
		t.Error("chamfer on a polygon layer should not activate")
	}
	if v.Tool() != nil {
		t.Error("no tool should be current")
	}
	if m, _ := msg.Last(); m.Title != "Invalid layer" {
		t.Errorf("have message %+v", m)
	}
}

func TestChamferToolNeedsEditing(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	msg := NewLogMessenger()
	v := NewViewport(l.CRS(), 0.1, msg, l)
	tool := NewChamferTool(v)
	v.SetTool(tool)
	v.Click(geom.Point{X: 5, Y: 0.5}, LeftButton)
	if tool.Step() != 0 {
		t.Error("selection should not start outside an edit session")
	}
	if m, _ := msg.Last(); m.Title != "Edit mode" {
		t.Errorf("have message %+v", m)
	}
}

func TestExtendTool(t *testing.T) {
	v, l, _ := toolViewport(t,
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}},
		geom.LineString{{X: 20, Y: -5}, {X: 20, Y: 5}},
	)
	tool := NewExtendTool(v)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}
	v.Click(geom.Point{X: 9, Y: 0.2}, LeftButton)
	if tool.Step() != 1 || tool.Line().Feature.ID != 1 {
		t.Fatalf("after the first click: step %d", tool.Step())
	}
	v.Click(geom.Point{X: 20.2, Y: 1}, LeftButton)
	if tool.Step() != 0 {
		t.Errorf("step after the second click: %d", tool.Step())
	}
	want := geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}}
	if g := geometryOf(t, l, 1); !g.Similar(want, 1e-6) {
		t.Errorf("have %v, want %v", g, want)
	}
	if g := geometryOf(t, l, 2); !g.Similar(geom.LineString{{X: 20, Y: -5}, {X: 20, Y: 5}}, 0) {
		t.Errorf("the target changed: %v", g)
	}
}

func TestExtendToolMiss(t *testing.T) {
	orig := geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}}
	v, l, _ := toolViewport(t, orig, geom.LineString{{X: 20, Y: 5}, {X: 20, Y: 10}})
	tool := NewExtendTool(v)
	v.SetTool(tool)
	v.Click(geom.Point{X: 9, Y: 0.2}, LeftButton)
	v.Click(geom.Point{X: 20.2, Y: 7}, LeftButton)
	if g := geometryOf(t, l, 1); !g.Similar(orig, 0) {
		t.Errorf("a line that misses the target should not change: %v", g)
	}
	if tool.Step() != 0 {
		t.Error("the session should reset after a miss")
	}
	v.Click(geom.Point{X: 9, Y: 0.2}, RightButton)
	if v.Tool() != nil {
		t.Error("a right click should unset the tool")
	}
}

func TestOffsetTool(t *testing.T) {
	v, l, _ := toolViewport(t, geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	l.PrimaryKey = []string{"id"}
	tool := NewOffsetTool(v, FixedDistance(2), nil)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}
	if tool.Distance() != 2 {
		t.Fatalf("distance: have %g", tool.Distance())
	}

	v.Click(geom.Point{X: 5, Y: 0.3}, LeftButton)
	if tool.State() != SelectingSide {
		t.Fatal("the line should be selected")
	}
	v.Move(PointerEvent{Pos: geom.Point{X: 5, Y: 3}})
	if tool.Side() != 1 {
		t.Errorf("side above the line: %d", tool.Side())
	}
	v.Move(PointerEvent{Pos: geom.Point{X: 5, Y: -3}})
	if tool.Side() != -1 {
		t.Errorf("side below the line: %d", tool.Side())
	}
	if _, ok := v.Preview(resultPreview); !ok {
		t.Error("want a preview of the offset line")
	}
	v.Click(geom.Point{X: 5, Y: -3}, LeftButton)
	if tool.State() != SelectingFeature {
		t.Error("the session should reset after creating the line")
	}

	fs := l.Features()
	if len(fs) != 2 {
		t.Fatalf("have %d features, want 2", len(fs))
	}
	nf := fs[1]
	if want := (geom.LineString{{X: 0, Y: -2}, {X: 10, Y: -2}}); !nf.Geom.Similar(want, testTolerance) {
		t.Errorf("offset line: have %v, want %v", nf.Geom, want)
	}
	if nf.Attributes["name"] != "roads" {
		t.Errorf("attributes should be copied: %v", nf.Attributes)
	}
	if _, ok := nf.Attributes["id"]; ok {
		t.Error("the primary key should not be copied")
	}
	if g := geometryOf(t, l, 1); !g.Similar(geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}}, 0) {
		t.Error("the source line changed")
	}
}

func TestOffsetToolActivation(t *testing.T) {
	v, _, msg := toolViewport(t, geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})

	cancel := func() (string, bool) { return "", false }
	if err := v.SetTool(NewOffsetTool(v, cancel, nil)); err == nil || v.Tool() != nil {
		t.Error("a cancelled prompt should not activate the tool")
	}

	bad := func() (string, bool) { return "-3", true }
	if err := v.SetTool(NewOffsetTool(v, bad, nil)); err == nil {
		t.Error("a negative distance should not activate the tool")
	}
	if m, _ := msg.Last(); m.Level != logrus.WarnLevel {
		t.Errorf("want a warning, have %+v", m)
	}

	comma := func() (string, bool) { return "2,5", true }
	tool := NewOffsetTool(v, comma, nil)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}
	if tool.Distance() != 2.5 {
		t.Errorf("distance: have %g, want 2.5", tool.Distance())
	}
}

func TestOffsetToolEscape(t *testing.T) {
	v, l, _ := toolViewport(t, geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	tool := NewOffsetTool(v, FixedDistance(1), nil)
	v.SetTool(tool)
	v.Click(geom.Point{X: 5, Y: 0.3}, LeftButton)
	tool.KeyPress(KeyEscape)
	if tool.State() != SelectingFeature || tool.Side() != 1 {
		t.Error("escape should reset the session")
	}
	v.Click(geom.Point{X: 5, Y: 0.3}, RightButton)
	if v.Tool() != nil {
		t.Error("a right click should unset the tool")
	}
	if n := len(l.Features()); n != 1 {
		t.Errorf("have %d features, want 1", n)
	}
}
