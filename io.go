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
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// Field widths used when writing shapefiles.
const (
	shpStringLength = 254
	shpIntLength    = 10
	shpFloatLength  = 24
	shpFloatPrec    = 8
)

func shpFieldName(f goshp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00 ")
}

func shpGeometryType(t goshp.ShapeType) GeometryType {
	switch t {
	case goshp.POINT, goshp.POINTZ, goshp.POINTM, goshp.MULTIPOINT, goshp.MULTIPOINTZ, goshp.MULTIPOINTM:
		return PointGeometry
	case goshp.POLYLINE, goshp.POLYLINEZ, goshp.POLYLINEM:
		return LineGeometry
	case goshp.POLYGON, goshp.POLYGONZ, goshp.POLYGONM:
		return PolygonGeometry
	}
	return UnknownGeometry
}

func shpField(f goshp.Field) Field {
	o := Field{Name: shpFieldName(f), Length: int(f.Size), Precision: int(f.Precision)}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			o.Type = IntField
		} else {
			o.Type = FloatField
		}
	case 'F':
		o.Type = FloatField
	default:
		o.Type = StringField
	}
	return o
}

// parseAttribute converts a dbf attribute string to the type of f. Blank
// values become nil.
func parseAttribute(s string, f Field) (interface{}, error) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return nil, nil
	}
	switch f.Type {
	case IntField:
		return strconv.ParseInt(s, 10, 64)
	case FloatField:
		return strconv.ParseFloat(s, 64)
	}
	return s, nil
}

// ReadShapefile loads the shapefile at path into a memory layer named
// after the file. The CRS is read from the .prj file next to it, or
// parsed from defaultCRS if there is none. Single-part polylines load as
// LineStrings.
func ReadShapefile(path, defaultCRS string) (*MemLayer, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	d, err := shp.NewDecoder(base + ".shp")
	if err != nil {
		return nil, fmt.Errorf("rmcgeo: opening shapefile %s: %v", path, err)
	}
	defer d.Close()

	var crs *CRS
	if b, err := ioutil.ReadFile(base + ".prj"); err == nil {
		if crs, err = ParsePrj(string(b)); err != nil {
			return nil, fmt.Errorf("rmcgeo: reading projection of %s: %v", path, err)
		}
	} else if os.IsNotExist(err) && defaultCRS != "" {
		if crs, err = ParseCRS(defaultCRS); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("rmcgeo: reading projection of %s: %v", path, err)
	}

	gType := shpGeometryType(d.GeometryType)
	if gType == UnknownGeometry {
		return nil, fmt.Errorf("rmcgeo: shapefile %s: unsupported shape type %d", path, d.GeometryType)
	}
	var fields []Field
	var names []string
	for _, f := range d.Fields() {
		fields = append(fields, shpField(f))
		names = append(names, shpFieldName(f))
	}
	l := NewMemLayer(filepath.Base(base), gType, crs, fields...)

	row := 0
	for {
		g, vals, more := d.DecodeRowFields(names...)
		if !more {
			break
		}
		row++
		if g == nil {
			l.Log.WithFields(logrus.Fields{"layer": l.Name(), "row": row}).Warn("skipping record without geometry")
			continue
		}
		if ml, ok := g.(geom.MultiLineString); ok && len(ml) == 1 {
			g = ml[0]
		}
		attrs := make(map[string]interface{}, len(vals))
		for i, n := range names {
			v, err := parseAttribute(vals[n], fields[i])
			if err != nil {
				return nil, fmt.Errorf("rmcgeo: shapefile %s row %d field %s: %v", path, row, n, err)
			}
			attrs[n] = v
		}
		if err := l.Load(&Feature{Geom: g, Attributes: attrs}); err != nil {
			return nil, err
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("rmcgeo: reading shapefile %s: %v", path, err)
	}
	return l, nil
}

func shpFieldDef(f Field) goshp.Field {
	switch f.Type {
	case IntField:
		n := f.Length
		if n <= 0 {
			n = shpIntLength
		}
		return goshp.NumberField(f.Name, uint8(n))
	case FloatField:
		p := f.Precision
		if p <= 0 {
			p = shpFloatPrec
		}
		return goshp.FloatField(f.Name, shpFloatLength, uint8(p))
	default:
		n := f.Length
		if n <= 0 || n > shpStringLength {
			n = shpStringLength
		}
		return goshp.StringField(f.Name, uint8(n))
	}
}

// shpValue converts an attribute value for writing to a field of type t.
func shpValue(v interface{}, t FieldType) interface{} {
	switch t {
	case IntField:
		if i, err := cast.ToIntE(v); err == nil && v != nil {
			return i
		}
	case FloatField:
		if f, err := cast.ToFloat64E(v); err == nil && v != nil {
			return f
		}
	default:
		if v != nil {
			return cast.ToString(v)
		}
	}
	return ""
}

// shpGeom converts g to a geometry the shapefile encoder accepts.
func shpGeom(g geom.Geom) geom.Geom {
	switch t := g.(type) {
	case geom.LineString:
		return geom.MultiLineString{t}
	case geom.MultiPolygon:
		var p geom.Polygon
		for _, pg := range t {
			p = append(p, pg...)
		}
		return p
	}
	return g
}

// WriteShapefile writes the features and attributes of l to a shapefile
// at path, with a .prj file describing the layer CRS.
func WriteShapefile(l Layer, path string) error {
	var st goshp.ShapeType
	switch l.GeometryType() {
	case PointGeometry:
		st = goshp.POINT
	case LineGeometry:
		st = goshp.POLYLINE
	case PolygonGeometry:
		st = goshp.POLYGON
	default:
		return fmt.Errorf("rmcgeo: layer %s: cannot write %v geometry", l.Name(), l.GeometryType())
	}
	if l.GeometryType() == PointGeometry {
		for _, f := range l.Features() {
			if _, ok := f.Geom.(geom.MultiPoint); ok {
				st = goshp.MULTIPOINT
				break
			}
		}
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	fields := l.Fields()
	defs := make([]goshp.Field, len(fields))
	for i, f := range fields {
		defs[i] = shpFieldDef(f)
	}
	e, err := shp.NewEncoderFromFields(base+".shp", st, defs...)
	if err != nil {
		return fmt.Errorf("rmcgeo: creating shapefile %s: %v", path, err)
	}
	for _, f := range l.Features() {
		vals := make([]interface{}, len(fields))
		for i, fd := range fields {
			vals[i] = shpValue(attribute(f, fd.Name), fd.Type)
		}
		g := shpGeom(f.Geom)
		if p, ok := g.(geom.Point); ok && st == goshp.MULTIPOINT {
			g = geom.MultiPoint{p}
		}
		if err := e.EncodeFields(g, vals...); err != nil {
			e.Close()
			return fmt.Errorf("rmcgeo: writing shapefile %s: %v", path, err)
		}
	}
	e.Close()

	if crs := l.CRS(); crs != nil {
		if err := ioutil.WriteFile(base+".prj", []byte(crs.WKT()), 0644); err != nil {
			return fmt.Errorf("rmcgeo: writing projection of %s: %v", path, err)
		}
	}
	return nil
}
