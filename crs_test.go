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
	"github.com/gonum/floats"
)

func TestParseCRS(t *testing.T) {
	tests := []struct {
		code       string
		auth       string
		geographic bool
		utm        bool
	}{
		{"EPSG:4326", "EPSG:4326", true, false},
		{"4674", "EPSG:4674", true, false},
		{"epsg:31982", "EPSG:31982", false, true},
		{"EPSG:32722", "EPSG:32722", false, true},
		{"EPSG:31975", "EPSG:31975", false, true},
		{"EPSG:3857", "EPSG:3857", false, false},
		{"+proj=utm +zone=23 +south +datum=WGS84 +units=m +no_defs", "USER:CUSTOM", false, true},
	}
	for _, test := range tests {
		t.Run(test.code, func(t *testing.T) {
			c, err := ParseCRS(test.code)
			if err != nil {
				t.Fatal(err)
			}
			if c.AuthID() != test.auth {
				t.Errorf("auth id: have %s, want %s", c.AuthID(), test.auth)
			}
			if c.IsGeographic() != test.geographic {
				t.Errorf("geographic: have %v, want %v", c.IsGeographic(), test.geographic)
			}
			if c.IsUTM() != test.utm {
				t.Errorf("utm: have %v, want %v", c.IsUTM(), test.utm)
			}
		})
	}
	for _, bad := range []string{"", "EPSG:9999", "not a crs"} {
		if _, err := ParseCRS(bad); err == nil {
			t.Errorf("%q: want error", bad)
		}
	}
}

func TestPrjRoundTrip(t *testing.T) {
	for _, code := range []string{"EPSG:4326", "EPSG:4674", "EPSG:31982", "EPSG:31976", "EPSG:32722", "EPSG:32618", "EPSG:3857"} {
		c := MustParseCRS(code)
		c2, err := ParsePrj(c.WKT())
		if err != nil {
			t.Errorf("%s: %v", code, err)
			continue
		}
		if c2.AuthID() != code || !c2.Equal(c) {
			t.Errorf("%s: round trip gave %s", code, c2.AuthID())
		}
	}
}

func TestParsePrjWithoutAuthority(t *testing.T) {
	const wkt = `PROJCS["SIRGAS 2000 / UTM zone 22S",GEOGCS["SIRGAS 2000",` +
		`DATUM["Sistema_de_Referencia_Geocentrico_para_las_AmericaS_2000",SPHEROID["GRS 1980",6378137,298.257222101]],` +
		`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],` +
		`PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-51],PARAMETER["scale_factor",0.9996],` +
		`PARAMETER["false_easting",500000],PARAMETER["false_northing",10000000],UNIT["metre",1]]`
	c, err := ParsePrj(wkt)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsGeographic() {
		t.Error("want a projected system")
	}
	if c.WKT() != wkt {
		t.Error("WKT definitions should be written back unchanged")
	}
}

func TestUTMForLonLat(t *testing.T) {
	tests := []struct {
		lon, lat float64
		want     string
	}{
		{-51, -25, "EPSG:32722"},
		{-47.9, -15.8, "EPSG:32723"},
		{-60, 2, "EPSG:32620"},
		{179.9, 10, "EPSG:32660"},
	}
	for _, test := range tests {
		c, err := UTMForLonLat(test.lon, test.lat, "")
		if err != nil {
			t.Fatal(err)
		}
		if c.AuthID() != test.want {
			t.Errorf("(%g, %g): have %s, want %s", test.lon, test.lat, c.AuthID(), test.want)
		}
	}
	// Longitude 180 gives zone 61, which does not exist.
	c, err := UTMForLonLat(180, -10, "EPSG:31982")
	if err != nil {
		t.Fatal(err)
	}
	if c.AuthID() != "EPSG:31982" {
		t.Errorf("fallback: have %s", c.AuthID())
	}
}

func TestTransformPointRoundTrip(t *testing.T) {
	wgs84, utm := MustParseCRS("EPSG:4326"), MustParseCRS("EPSG:31982")
	p := geom.Point{X: -51.2, Y: -25.4}
	q, err := TransformPoint(p, wgs84, utm)
	if err != nil {
		t.Fatal(err)
	}
	if q.X < 100000 || q.X > 900000 || q.Y < 7000000 || q.Y > 7300000 {
		t.Errorf("projected point %v is outside zone 22S", q)
	}
	back, err := TransformPoint(q, utm, wgs84)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Similar(p, 1e-7) {
		t.Errorf("round trip: have %v, want %v", back, p)
	}
}

func TestTransformGeom(t *testing.T) {
	wgs84, utm := MustParseCRS("EPSG:4326"), MustParseCRS("EPSG:31982")
	a, b := geom.Point{X: -51.2, Y: -25.4}, geom.Point{X: -51.1, Y: -25.3}
	pa, err := TransformPoint(a, wgs84, utm)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := TransformPoint(b, wgs84, utm)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		g, want geom.Geom
	}{
		{geom.MultiLineString{{a, b}}, geom.MultiLineString{{pa, pb}}},
		{geom.Polygon{{a, b, {X: a.X, Y: b.Y}, a}}, nil},
	}
	for _, test := range tests {
		have, err := TransformGeom(test.g, wgs84, utm)
		if err != nil {
			t.Fatal(err)
		}
		if test.want != nil && !have.Similar(test.want, 1e-6) {
			t.Errorf("have %v, want %v", have, test.want)
		}
		if p, ok := have.(geom.Polygon); ok {
			if len(p) != 1 || len(p[0]) != 4 || !p[0][0].Similar(pa, 1e-6) || !p[0][1].Similar(pb, 1e-6) {
				t.Errorf("polygon: %v", p)
			}
		}
	}
	if same, _ := TransformGeom(geom.Point{X: 1, Y: 2}, utm, utm); same != (geom.Point{X: 1, Y: 2}) {
		t.Errorf("identity transform changed the point: %v", same)
	}
}

func TestCentroid(t *testing.T) {
	tests := []struct {
		name string
		g    geom.Geom
		want geom.Point
		ok   bool
	}{
		{"point", geom.Point{X: 1, Y: 2}, geom.Point{X: 1, Y: 2}, true},
		{"line", geom.LineString{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, geom.Point{X: 7.5, Y: 2.5}, true},
		{"polygon", geom.Polygon{geom.Path(square(10))}, geom.Point{X: 5, Y: 5}, true},
		{"multipoint", geom.MultiPoint{{X: 0, Y: 0}, {X: 2, Y: 4}}, geom.Point{X: 1, Y: 2}, true},
		{"empty", geom.MultiPoint{}, geom.Point{}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, ok := Centroid(test.g)
			if ok != test.ok {
				t.Fatalf("ok: have %v, want %v", ok, test.ok)
			}
			if !floats.EqualWithinAbs(c.X, test.want.X, testTolerance) || !floats.EqualWithinAbs(c.Y, test.want.Y, testTolerance) {
				t.Errorf("have %v, want %v", c, test.want)
			}
		})
	}
}
