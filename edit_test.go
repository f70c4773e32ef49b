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
)

func TestEditSessionOwned(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	s, err := BeginEdit(l)
	if err != nil {
		t.Fatal(err)
	}
	if s.WasEditing() || !l.IsEditable() {
		t.Fatal("session should have started editing")
	}
	if err := s.AddField(Field{Name: "Comp_m", Type: StringField}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAttribute(1, "Comp_m", "10"); err != nil {
		t.Fatal(err)
	}
	s.Rollback()
	if l.IsEditable() || l.FieldIndex("Comp_m") >= 0 {
		t.Error("rollback should end editing and drop the new field")
	}

	s, _ = BeginEdit(l)
	s.AddField(Field{Name: "Comp_m", Type: StringField})
	s.SetAttribute(1, "Comp_m", "10")
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	s.Rollback() // no-op once committed
	f, _ := l.Feature(1)
	if l.IsEditable() || f.Attributes["Comp_m"] != "10" {
		t.Errorf("commit: editable %v, value %v", l.IsEditable(), f.Attributes["Comp_m"])
	}
}

func TestEditSessionNested(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	l.StartEditing()
	l.ChangeGeometry(1, geom.LineString{{X: 0, Y: 0}, {X: 20, Y: 0}})

	s, err := BeginEdit(l)
	if err != nil {
		t.Fatal(err)
	}
	if !s.WasEditing() {
		t.Fatal("the layer was already being edited")
	}
	s.AddField(Field{Name: "Area_m2", Type: FloatField})
	s.SetAttribute(1, "name", "changed")
	s.SetAttribute(1, "Area_m2", 3.0)
	s.Rollback()

	if !l.IsEditable() {
		t.Fatal("the surrounding edit session should stay open")
	}
	f, _ := l.Feature(1)
	if f.Attributes["name"] != "roads" {
		t.Errorf("name: have %v, want roads", f.Attributes["name"])
	}
	if l.FieldIndex("Area_m2") >= 0 {
		t.Error("field created by the session should be removed")
	}
	if !f.Geom.Similar(geom.LineString{{X: 0, Y: 0}, {X: 20, Y: 0}}, 0) {
		t.Error("changes made outside the session should be kept")
	}
}

func TestUpdateGeometry(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	msg := NewLogMessenger()
	v := NewViewport(l.CRS(), 1, msg, l)
	g := geom.LineString{{X: 0, Y: 0}, {X: 20, Y: 0}}

	if UpdateGeometry(v, l, 1, g) {
		t.Error("update outside an edit session should fail")
	}
	if m, ok := msg.Last(); !ok || m.Title != "Edit mode" {
		t.Errorf("want an edit mode warning, have %+v", m)
	}

	l.StartEditing()
	if !UpdateGeometry(v, l, 1, g) {
		t.Fatal("update failed")
	}
	if v.Refreshes != 1 {
		t.Errorf("refreshes: have %d, want 1", v.Refreshes)
	}
	if UpdateGeometry(v, l, 99, g) {
		t.Error("update of a missing feature should fail")
	}
}
