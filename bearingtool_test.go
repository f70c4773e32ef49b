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

func bearingViewport(t *testing.T) (*Viewport, *MemLayer, *LogMessenger) {
	l := lineLayer(t, "lines")
	l.StartEditing()
	msg := NewLogMessenger()
	return NewViewport(l.CRS(), 1, msg, l), l, msg
}

func TestBearingToolActivation(t *testing.T) {
	msg := NewLogMessenger()
	v := NewViewport(MustParseCRS("EPSG:4326"), 1, msg)
	if err := v.SetTool(NewBearingTool(v, AzimuthTraverse)); err == nil {
		t.Error("a geographic canvas should be rejected")
	}
	if m, _ := msg.Last(); m.Title != "Invalid coordinate system" {
		t.Errorf("message: %+v", m)
	}

	v = NewViewport(MustParseCRS("EPSG:3857"), 1, msg)
	if err := v.SetTool(NewBearingTool(v, AzimuthTraverse)); err == nil {
		t.Error("a non-UTM projection should be rejected")
	}

	v = NewViewport(MustParseCRS("EPSG:31982"), 1, msg)
	if err := v.SetTool(NewBearingTool(v, AzimuthTraverse)); err != nil {
		t.Fatal(err)
	}
	if m, _ := msg.Last(); m.Title != "Instructions" {
		t.Errorf("message: %+v", m)
	}
}

func TestBearingToolAzimuth(t *testing.T) {
	v, l, msg := bearingViewport(t)
	tool := NewBearingTool(v, AzimuthTraverse)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}
	if err := tool.Insert("90", "", "100"); err == nil {
		t.Error("inserting before a start point should fail")
	}

	start := geom.Point{X: 500000, Y: 7000000}
	v.Click(start, LeftButton)
	if p, ok := tool.Start(); !ok || !tool.IsOpen() || p != start {
		t.Fatalf("start: %v, %v", p, ok)
	}
	if err := tool.Insert("90", "", "100"); err != nil {
		t.Fatal(err)
	}
	if err := tool.Insert("0", "", "50,5"); err != nil {
		t.Fatal(err)
	}
	if err := tool.Insert("400", "", "10"); err == nil {
		t.Error("azimuth 400: want error")
	}
	if m, _ := msg.Last(); m.Level != logrus.WarnLevel {
		t.Errorf("want a warning, have %+v", m)
	}

	tb := tool.Table()
	if tb.Rows() != 2 || tb.Text(0, AngleColumn) != "90°" || tb.Text(1, DistanceColumn) != "50.50m" {
		t.Errorf("table: %v", tb.rows)
	}
	prev, ok := v.Preview(resultPreview)
	if !ok {
		t.Fatal("want a preview")
	}
	wantPts := geom.LineString{start, {X: 500100, Y: 7000000}, {X: 500100, Y: 7000050.5}}
	if !prev.Similar(wantPts, 1e-6) {
		t.Errorf("preview: have %v, want %v", prev, wantPts)
	}

	// A pending leg is previewed without being inserted.
	tool.Preview("180", "", "10")
	prev, _ = v.Preview(resultPreview)
	if n := len(prev.(geom.LineString)); n != 4 || len(tool.Legs()) != 2 {
		t.Errorf("pending preview: %d points, %d legs", n, len(tool.Legs()))
	}

	tool.Undo()
	if len(tool.Legs()) != 1 || tb.Rows() != 1 {
		t.Errorf("undo: %d legs, %d rows", len(tool.Legs()), tb.Rows())
	}

	layer := tool.Save()
	if layer != Layer(l) {
		t.Fatalf("saved to %v, want the active layer", layer)
	}
	fs := l.Features()
	if len(fs) != 1 || !fs[0].Geom.Similar(geom.LineString{start, {X: 500100, Y: 7000000}}, 1e-6) {
		t.Errorf("saved features: %v", fs)
	}
	if !l.IsEditable() {
		t.Error("the layer should stay in edit mode")
	}
	if v.Tool() != nil || tool.IsOpen() || tb.Rows() != 0 {
		t.Error("saving should close the session and unset the tool")
	}
	if m, _ := msg.Last(); m.Title != "Success" {
		t.Errorf("message: %+v", m)
	}
}

func TestBearingToolTableEdits(t *testing.T) {
	v, _, msg := bearingViewport(t)
	tool := NewBearingTool(v, AzimuthTraverse)
	v.SetTool(tool)
	v.Click(geom.Point{X: 500000, Y: 7000000}, LeftButton)
	tool.Insert("90", "", "100")
	tb := tool.Table()

	tb.Edit(0, DistanceColumn, "25")
	if leg := tool.Legs()[0]; leg.Distance != 25 || tb.Text(0, DistanceColumn) != "25.00m" {
		t.Errorf("distance edit: %+v, cell %q", leg, tb.Text(0, DistanceColumn))
	}
	tb.Edit(0, DistanceColumn, "-1")
	if tool.Legs()[0].Distance != 25 || tb.Text(0, DistanceColumn) != "25.00m" {
		t.Error("an invalid distance should be reverted")
	}
	if m, _ := msg.Last(); m.Level != logrus.WarnLevel {
		t.Errorf("want a warning, have %+v", m)
	}

	tb.Edit(0, AngleColumn, "45°30'")
	if leg := tool.Legs()[0]; leg.Azimuth != 45.5 || leg.Angle != "45 30" {
		t.Errorf("angle edit: %+v", leg)
	}
	tb.Edit(0, AngleColumn, "500")
	if tool.Legs()[0].Azimuth != 45.5 || tb.Text(0, AngleColumn) != "45.50°" {
		t.Errorf("an invalid azimuth should be reverted, cell %q", tb.Text(0, AngleColumn))
	}
}

func TestBearingToolRumo(t *testing.T) {
	poly := NewMemLayer("lots", PolygonGeometry, MustParseCRS(DefaultFallbackCRS))
	msg := NewLogMessenger()
	v := NewViewport(poly.CRS(), 1, msg, poly)
	tool := NewBearingTool(v, RumoTraverse)
	v.SetTool(tool)
	v.Click(geom.Point{X: 500000, Y: 7000000}, LeftButton)
	if tool.IsOpen() {
		t.Fatal("the start point needs an editable layer")
	}
	poly.StartEditing()
	v.Click(geom.Point{X: 500000, Y: 7000000}, LeftButton)
	if err := tool.Insert("45", "ne", "10"); err != nil {
		t.Fatal(err)
	}
	if err := tool.Insert("95", "NE", "10"); err == nil {
		t.Error("rumo above 90: want error")
	}
	tb := tool.Table()
	if tb.Text(0, AngleColumn) != "45° NE" {
		t.Errorf("label: %q", tb.Text(0, AngleColumn))
	}
	tb.Edit(0, AngleColumn, "30")
	if tb.Text(0, AngleColumn) != "45° NE" || tool.Legs()[0].Azimuth != 45 {
		t.Error("rumo angles are not editable in place")
	}

	layer := tool.Save()
	if layer == nil || layer.Name() != "Linhas_Rumo" || layer == Layer(poly) {
		t.Fatalf("want a new working layer, have %v", layer)
	}
	if len(v.Layers()) != 2 || len(layer.Features()) != 1 {
		t.Errorf("layers %d, features %d", len(v.Layers()), len(layer.Features()))
	}
}

func TestBearingToolLoad(t *testing.T) {
	v, _, _ := bearingViewport(t)
	tool := NewBearingTool(v, AzimuthTraverse)
	v.SetTool(tool)
	tr := &Traverse{Kind: RumoTraverse, Start: geom.Point{X: 1, Y: 2}}
	for _, q := range []string{"NE", "SW"} {
		leg, err := NewLeg(RumoTraverse, "10", q, "5")
		if err != nil {
			t.Fatal(err)
		}
		tr.Legs = append(tr.Legs, leg)
	}
	tool.Load(tr)
	if tool.Kind() != RumoTraverse || len(tool.Legs()) != 2 || tool.Table().Rows() != 2 {
		t.Errorf("loaded: kind %v, %d legs", tool.Kind(), len(tool.Legs()))
	}
	pts := tool.Traverse().Points()
	if !pts[2].Similar(pts[0], 1e-9) {
		t.Errorf("a traverse walked back should return to its start: %v", pts)
	}

	tool.KeyPress(KeyEscape)
	if tool.IsOpen() || len(tool.Legs()) != 0 {
		t.Error("escape should close the session")
	}
	if tool.Save() != nil {
		t.Error("saving an empty session should do nothing")
	}
}

func TestBearingToolSaveTransforms(t *testing.T) {
	msg := NewLogMessenger()
	canvasCRS := MustParseCRS("EPSG:32723")
	v := NewViewport(canvasCRS, 1, msg)
	tool := NewBearingTool(v, AzimuthTraverse)
	if err := v.SetTool(tool); err != nil {
		t.Fatal(err)
	}
	start := geom.Point{X: 500000, Y: 7000000}
	v.Click(start, LeftButton)
	if err := tool.Insert("90", "", "100"); err != nil {
		t.Fatal(err)
	}

	layer := tool.Save()
	if layer == nil {
		t.Fatal("nothing saved")
	}
	if layer.CRS().AuthID() != DefaultFallbackCRS {
		t.Fatalf("layer CRS: %s", layer.CRS().AuthID())
	}
	fs := layer.Features()
	if len(fs) != 1 {
		t.Fatalf("saved features: %v", fs)
	}
	a, err := TransformPoint(start, canvasCRS, layer.CRS())
	if err != nil {
		t.Fatal(err)
	}
	b, err := TransformPoint(geom.Point{X: 500100, Y: 7000000}, canvasCRS, layer.CRS())
	if err != nil {
		t.Fatal(err)
	}
	if want := (geom.LineString{a, b}); !fs[0].Geom.Similar(want, 1e-6) {
		t.Errorf("have %v, want %v", fs[0].Geom, want)
	}
	if fs[0].Geom.(geom.LineString)[0].Similar(start, 1) {
		t.Error("the leg was saved in canvas coordinates")
	}
}
