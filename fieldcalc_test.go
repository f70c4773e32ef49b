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
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/gonum/floats"
	"github.com/sirupsen/logrus"
)

func polygonLayer(t *testing.T, crs string, ps ...geom.Polygon) *MemLayer {
	l := NewMemLayer("lots", PolygonGeometry, MustParseCRS(crs), Field{Name: "name", Type: StringField})
	for _, p := range ps {
		if err := l.Load(&Feature{Geom: p, Attributes: map[string]interface{}{"name": "lot"}}); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

func TestCalculatorPresets(t *testing.T) {
	lots := polygonLayer(t, DefaultFallbackCRS, rect(0, 0, 100, 100), rect(0, 0, 200, 50))
	lines := lineLayer(t, "roads",
		geom.LineString{{X: 0, Y: 0}, {X: 3, Y: 4}},
		geom.LineString{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 10}},
	)
	points := NewMemLayer("marks", PointGeometry, MustParseCRS(DefaultFallbackCRS))
	points.Load(&Feature{Geom: geom.Point{X: 500000.5, Y: 7000000.25}})

	tests := []struct {
		config  CalculatorConfig
		layer   *MemLayer
		variant string
		field   string
		want    []string
	}{
		{AreaCalculator, lots, "", "Area_ha", []string{"1.00", "1.00"}},
		{AreaCalculator, lots, "area_m2", "Area_m2", []string{"10000.00", "10000.00"}},
		{AreaCalculator, lots, "Square kilometers (km²)", "Area_km2", []string{"0.010", "0.010"}},
		{PerimeterCalculator, lots, "", "Perim_m", []string{"400.00", "500.00"}},
		{PerimeterCalculator, lots, "Perim_km", "Perim_km", []string{"0.400", "0.500"}},
		{LengthCalculator, lines, "", "Comp_m", []string{"5.000", "14.142"}},
		{LengthCalculator, lines, "Comp_cm", "Comp_cm", []string{"500.00", "1414.21"}},
		{AzimuthCalculator, lines, "", "Azimute_GMS", []string{`36° 52' 11.63"`, `45° 0' 0"`}},
		{AzimuthCalculator, lines, "Azimute_Dec", "Azimute_Dec", []string{"36.8699", "45.0000"}},
		{CoordXCalculator, points, "", "Coord_X", []string{"500000.5"}},
		{CoordYCalculator, points, "", "Coord_Y", []string{"7000000.25"}},
	}
	for _, test := range tests {
		t.Run(test.field, func(t *testing.T) {
			msg := NewLogMessenger()
			res, err := NewCalculator(test.config, msg).Run(test.layer, test.variant)
			if err != nil {
				t.Fatal(err)
			}
			if res.Field != test.field || !res.Created || res.Updated != len(test.want) {
				t.Errorf("result: %+v", res)
			}
			for i, f := range test.layer.Features() {
				if have := f.Attributes[test.field]; have != test.want[i] {
					t.Errorf("feature %d: have %v, want %s", f.ID, have, test.want[i])
				}
			}
			if test.layer.IsEditable() {
				t.Error("the calculator should commit its own edit session")
			}
			m, _ := msg.Last()
			if !strings.Contains(m.Text, "added") {
				t.Errorf("success message: %q", m.Text)
			}
		})
	}
}

func TestCalculatorGeographicArea(t *testing.T) {
	// About 100 m by 100 m near Curitiba.
	wgs84 := MustParseCRS("EPSG:4326")
	utm := MustParseCRS("EPSG:32722")
	sq, err := TransformGeom(rect(670000, 7180000, 670100, 7180100), utm, wgs84)
	if err != nil {
		t.Fatal(err)
	}
	l := polygonLayer(t, "EPSG:4326", sq.(geom.Polygon))
	if _, err := NewCalculator(AreaCalculator, NewLogMessenger()).Run(l, "Area_m2"); err != nil {
		t.Fatal(err)
	}
	f, _ := l.Feature(1)
	if f.Attributes["Area_m2"] != "10000.00" {
		t.Errorf("area: have %v, want 10000.00", f.Attributes["Area_m2"])
	}
}

func TestCalculatorFeetCRS(t *testing.T) {
	l := polygonLayer(t, "+proj=utm +zone=22 +south +datum=WGS84 +units=ft +no_defs", rect(0, 0, 100, 100))
	if _, err := NewCalculator(AreaCalculator, NewLogMessenger()).Run(l, "Area_m2"); err != nil {
		t.Fatal(err)
	}
	f, _ := l.Feature(1)
	if f.Attributes["Area_m2"] != "929.03" {
		t.Errorf("area: have %v, want 929.03", f.Attributes["Area_m2"])
	}
}

func TestCalculatorUnitMismatch(t *testing.T) {
	l := NewMemLayer("marks", PointGeometry, MustParseCRS("EPSG:4326"))
	l.Load(&Feature{Geom: geom.Point{X: -49, Y: -25.5}})

	// Degrees cannot be written to a field in meters.
	if _, err := NewCalculator(CoordXCalculator, NewLogMessenger()).Run(l, ""); err == nil {
		t.Fatal("want a unit error")
	} else if !strings.Contains(err.Error(), "needs") {
		t.Errorf("error: %v", err)
	}
	if l.FieldIndex("Coord_X") >= 0 {
		t.Error("the rejected field should be removed")
	}

	if _, err := NewCalculator(CoordYCalculator, NewLogMessenger()).Run(l, "Latitude (degrees)"); err != nil {
		t.Fatal(err)
	}
	f, _ := l.Feature(1)
	if f.Attributes["Coord_Lat"] != "-25.50000000" {
		t.Errorf("latitude: have %v", f.Attributes["Coord_Lat"])
	}
}

func TestCalculatorRollback(t *testing.T) {
	var ls []geom.Geom
	for i := 0; i < 10; i++ {
		y := float64(i)
		ls = append(ls, geom.LineString{{X: 0, Y: y}, {X: 10, Y: y + 1}})
	}
	// Features 5 and 8 have no direction.
	ls[4] = geom.LineString{{X: 0, Y: 4}}
	ls[7] = geom.LineString{{X: 0, Y: 7}}
	l := lineLayer(t, "roads", ls...)
	msg := NewLogMessenger()

	res, err := NewCalculator(AzimuthCalculator, msg).Run(l, "")
	if err == nil {
		t.Fatalf("want an error, have %+v", res)
	}
	if !strings.Contains(err.Error(), "feature 5") || !strings.Contains(err.Error(), "2 features failed") {
		t.Errorf("error: %v", err)
	}
	if l.FieldIndex("Azimute_GMS") >= 0 {
		t.Error("the new field should be removed")
	}
	if l.IsEditable() {
		t.Error("the edit session opened by the calculator should be closed")
	}
	for _, f := range l.Features() {
		if _, ok := f.Attributes["Azimute_GMS"]; ok {
			t.Errorf("feature %d keeps a value", f.ID)
		}
	}
	if m, _ := msg.Last(); m.Level != logrus.ErrorLevel {
		t.Errorf("want an error message, have %+v", m)
	}
}

func TestCalculatorRollbackInEditSession(t *testing.T) {
	l := lineLayer(t, "roads",
		geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}},
		geom.LineString{{X: 0, Y: 5}},
	)
	l.StartEditing()
	l.AddField(Field{Name: "Comp_m", Type: StringField})
	l.ChangeAttributeValue(2, "Comp_m", "old")

	if _, err := NewCalculator(AzimuthCalculator, NewLogMessenger()).Run(l, ""); err == nil {
		t.Fatal("want an error")
	}
	if !l.IsEditable() {
		t.Error("the user's edit session should stay open")
	}
	if l.FieldIndex("Comp_m") < 0 || l.FieldIndex("Azimute_GMS") >= 0 {
		t.Error("only the calculator's field should be removed")
	}
	f, _ := l.Feature(2)
	if f.Attributes["Comp_m"] != "old" {
		t.Errorf("unrelated value changed: %v", f.Attributes["Comp_m"])
	}
}

func TestCalculatorExistingField(t *testing.T) {
	l := polygonLayer(t, DefaultFallbackCRS, rect(0, 0, 10, 10))
	l.StartEditing()
	l.AddField(Field{Name: "Area_m2", Type: FloatField, Precision: 2})
	l.ChangeAttributeValue(1, "Area_m2", 1.0)
	l.CommitChanges()

	msg := NewLogMessenger()
	msg.Answer = false
	c := NewCalculator(AreaCalculator, msg)
	if _, err := c.Run(l, "Area_m2"); err != ErrCancelled {
		t.Fatalf("declined: have %v, want ErrCancelled", err)
	}
	if f, _ := l.Feature(1); f.Attributes["Area_m2"] != 1.0 {
		t.Error("declining should leave the field alone")
	}

	msg.Answer = true
	res, err := c.Run(l, "Area_m2")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created || res.Updated != 1 {
		t.Errorf("result: %+v", res)
	}
	// Numeric fields store numbers.
	if f, _ := l.Feature(1); f.Attributes["Area_m2"] != 100.0 {
		t.Errorf("have %#v, want 100.0", f.Attributes["Area_m2"])
	}
	if m, _ := msg.Last(); !strings.Contains(m.Text, "updated") {
		t.Errorf("message: %q", m.Text)
	}
}

func TestCalculatorGeometryGate(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	msg := NewLogMessenger()
	if _, err := NewCalculator(AreaCalculator, msg).Run(l, ""); err == nil {
		t.Error("area of a line layer: want error")
	}
	if m, _ := msg.Last(); m.Level != logrus.WarnLevel {
		t.Errorf("want a warning, have %+v", m)
	}
	if l.IsEditable() || l.FieldIndex("Area_ha") >= 0 {
		t.Error("the layer should be untouched")
	}
	if _, err := NewCalculator(AreaCalculator, msg).Run(nil, ""); err == nil {
		t.Error("no layer: want error")
	}
	if _, err := NewCalculator(LengthCalculator, msg).Run(l, "furlongs"); err == nil {
		t.Error("unknown variant: want error")
	}
}

func TestCalculatorCustomExpression(t *testing.T) {
	l := lineLayer(t, "roads", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}})
	c := CalculatorConfig{
		Title:         "Scaled length",
		GeometryTypes: []GeometryType{LineGeometry},
		FieldType:     FloatField,
		Formats:       []FormatVariant{{Label: "scaled", FieldName: "scaled", Expression: "round(length() / 3, 2) * floor(id + 0.5)"}},
	}
	if _, err := NewCalculator(c, NewLogMessenger()).Run(l, ""); err != nil {
		t.Fatal(err)
	}
	f, _ := l.Feature(1)
	if f.Attributes["scaled"] != 3.33 {
		t.Errorf("have %#v, want 3.33", f.Attributes["scaled"])
	}

	c.Formats[0].Expression = "format_number(length())"
	if _, err := NewCalculator(c, NewLogMessenger()).Run(l, ""); err == nil ||
		!strings.Contains(err.Error(), "got 1 arguments for function 'format_number', but needs 2") {
		t.Errorf("argument count: have %v", err)
	}
}

func TestStoredValue(t *testing.T) {
	tests := []struct {
		v    interface{}
		t    FieldType
		want interface{}
	}{
		{"1,5", FloatField, 1.5},
		{"3", IntField, int64(3)},
		{2.0, IntField, int64(2)},
		{2.5, StringField, "2.5"},
		{"abc", StringField, "abc"},
		{"abc", FloatField, "abc"},
	}
	for _, test := range tests {
		if have := storedValue(test.v, test.t); have != test.want {
			t.Errorf("%#v as %v: have %#v, want %#v", test.v, test.t, have, test.want)
		}
	}
}

func TestFormatAzimuthDMS(t *testing.T) {
	tests := map[float64]string{
		0:         `0° 0' 0"`,
		45.5:      `45° 30' 0"`,
		123.50431: `123° 30' 15.52"`,
		359.99:    `359° 59' 24"`,
		44.999999: `45° 0' 0"`,
	}
	for v, want := range tests {
		if have := FormatAzimuthDMS(v); have != want {
			t.Errorf("%g: have %q, want %q", v, have, want)
		}
	}
}

func TestAzimuth(t *testing.T) {
	o := geom.Point{}
	for want, p := range map[float64]geom.Point{
		0:   {X: 0, Y: 1},
		90:  {X: 1, Y: 0},
		180: {X: 0, Y: -1},
		270: {X: -1, Y: 0},
	} {
		if have := Azimuth(o, p); !floats.EqualWithinAbs(have, want, 1e-12) {
			t.Errorf("%v: have %g, want %g", p, have, want)
		}
	}
}
