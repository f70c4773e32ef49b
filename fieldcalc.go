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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// FormatVariant is one output format of a field calculator.
type FormatVariant struct {
	Label      string
	FieldName  string
	Expression string

	// Quantity names the measurement function the variant reports, and
	// Unit its dimensions. Measurements of Quantity are checked against
	// Unit during evaluation. A nil Unit disables the check.
	Quantity string
	Unit     unit.Dimensions
}

// CalculatorConfig describes a field calculator that writes a computed
// value into an attribute field of every feature of a layer.
type CalculatorConfig struct {
	Title         string
	GeometryTypes []GeometryType
	FieldType     FieldType
	FieldLength   int

	// Formats holds the available output formats. The first is the
	// default.
	Formats []FormatVariant
}

func textField(c CalculatorConfig) CalculatorConfig {
	c.FieldType, c.FieldLength = StringField, 254
	return c
}

// Field calculator presets.
var (
	AreaCalculator = textField(CalculatorConfig{
		Title:         "Add area to attribute table",
		GeometryTypes: []GeometryType{PolygonGeometry},
		Formats: []FormatVariant{
			{Label: "Hectares (ha)", FieldName: "Area_ha", Expression: "format_number(area() / 10000, 2)", Quantity: "area", Unit: unit.Meter2},
			{Label: "Square meters (m²)", FieldName: "Area_m2", Expression: "format_number(area(), 2)", Quantity: "area", Unit: unit.Meter2},
			{Label: "Square kilometers (km²)", FieldName: "Area_km2", Expression: "format_number(area() / 1000000, 3)", Quantity: "area", Unit: unit.Meter2},
			{Label: "Acres", FieldName: "Area_acres", Expression: "format_number(area() / 4046.86, 3)", Quantity: "area", Unit: unit.Meter2},
		},
	})
	LengthCalculator = textField(CalculatorConfig{
		Title:         "Add length to attribute table",
		GeometryTypes: []GeometryType{LineGeometry},
		Formats: []FormatVariant{
			{Label: "Meters (m)", FieldName: "Comp_m", Expression: "format_number(length(), 3)", Quantity: "length", Unit: unit.Meter},
			{Label: "Kilometers (km)", FieldName: "Comp_km", Expression: "format_number(length() / 1000, 3)", Quantity: "length", Unit: unit.Meter},
			{Label: "Centimeters (cm)", FieldName: "Comp_cm", Expression: "format_number(length() * 100, 2)", Quantity: "length", Unit: unit.Meter},
		},
	})
	PerimeterCalculator = textField(CalculatorConfig{
		Title:         "Add perimeter to attribute table",
		GeometryTypes: []GeometryType{PolygonGeometry},
		Formats: []FormatVariant{
			{Label: "Meters (m)", FieldName: "Perim_m", Expression: "format_number(perimeter(), 2)", Quantity: "perimeter", Unit: unit.Meter},
			{Label: "Kilometers (km)", FieldName: "Perim_km", Expression: "format_number(perimeter() / 1000, 3)", Quantity: "perimeter", Unit: unit.Meter},
			{Label: "Centimeters (cm)", FieldName: "Perim_cm", Expression: "format_number(perimeter() * 100, 2)", Quantity: "perimeter", Unit: unit.Meter},
		},
	})
	AzimuthCalculator = textField(CalculatorConfig{
		Title:         "Add azimuth to attribute table",
		GeometryTypes: []GeometryType{LineGeometry},
		Formats: []FormatVariant{
			{Label: `DMS (degrees° minutes' seconds")`, FieldName: "Azimute_GMS", Expression: "to_dms(azimuth())", Quantity: "azimuth", Unit: unit.Dimless},
			{Label: "Decimal degrees", FieldName: "Azimute_Dec", Expression: "format_number(azimuth(), 4)", Quantity: "azimuth", Unit: unit.Dimless},
		},
	})
	CoordXCalculator = textField(CalculatorConfig{
		Title:         "Add X coordinate to attribute table",
		GeometryTypes: []GeometryType{PointGeometry},
		Formats: []FormatVariant{
			{Label: "X (m)", FieldName: "Coord_X", Expression: "to_string(x())", Quantity: "x", Unit: unit.Meter},
			{Label: "Longitude (degrees)", FieldName: "Coord_Lon", Expression: "format_number(x(), 8)", Quantity: "x", Unit: unit.Dimless},
		},
	})
	CoordYCalculator = textField(CalculatorConfig{
		Title:         "Add Y coordinate to attribute table",
		GeometryTypes: []GeometryType{PointGeometry},
		Formats: []FormatVariant{
			{Label: "Y (m)", FieldName: "Coord_Y", Expression: "to_string(y())", Quantity: "y", Unit: unit.Meter},
			{Label: "Latitude (degrees)", FieldName: "Coord_Lat", Expression: "format_number(y(), 8)", Quantity: "y", Unit: unit.Dimless},
		},
	})
)

// Calculators returns the presets keyed by short name.
func Calculators() map[string]CalculatorConfig {
	return map[string]CalculatorConfig{
		"area":      AreaCalculator,
		"length":    LengthCalculator,
		"perimeter": PerimeterCalculator,
		"azimuth":   AzimuthCalculator,
		"x":         CoordXCalculator,
		"y":         CoordYCalculator,
	}
}

// Variant returns the format whose label or field name matches name,
// ignoring case. An empty name selects the default format.
func (c CalculatorConfig) Variant(name string) (FormatVariant, error) {
	if len(c.Formats) == 0 {
		return FormatVariant{}, fmt.Errorf("rmcgeo: calculator %q has no formats", c.Title)
	}
	if name == "" {
		return c.Formats[0], nil
	}
	for _, f := range c.Formats {
		if strings.EqualFold(f.Label, name) || strings.EqualFold(f.FieldName, name) {
			return f, nil
		}
	}
	return FormatVariant{}, fmt.Errorf("rmcgeo: calculator %q has no format %q", c.Title, name)
}

func (c CalculatorConfig) accepts(t GeometryType) bool {
	for _, a := range c.GeometryTypes {
		if a == t {
			return true
		}
	}
	return false
}

// ErrCancelled is returned when the user declines to recalculate an
// existing field.
var ErrCancelled = errors.New("rmcgeo: cancelled")

// CalcResult summarizes a field calculation.
type CalcResult struct {
	Field   string
	Created bool
	Updated int
}

// Calculator runs a field calculator on layers.
type Calculator struct {
	Config CalculatorConfig
	Msg    Messenger

	// FallbackCRS is the projected CRS used to measure geographic layers
	// when their UTM zone cannot be built.
	FallbackCRS string

	Log logrus.FieldLogger
}

// NewCalculator returns a calculator for c reporting through msg.
func NewCalculator(c CalculatorConfig, msg Messenger) *Calculator {
	return &Calculator{Config: c, Msg: msg, FallbackCRS: DefaultFallbackCRS, Log: logrus.StandardLogger()}
}

// Run evaluates the expression of the format named variant for every
// feature of l and stores the result. If the field already exists, the
// user is asked whether to recalculate it. The first evaluation error
// undoes every change, including the creation of the field.
func (c *Calculator) Run(l Layer, variant string) (*CalcResult, error) {
	if l == nil {
		c.Msg.Warning("Warning", "Select a layer.")
		return nil, fmt.Errorf("rmcgeo: no layer selected")
	}
	if !c.Config.accepts(l.GeometryType()) {
		c.Msg.Warning("Warning", fmt.Sprintf("Layer %s has %v geometry, which this calculator does not support.", l.Name(), l.GeometryType()))
		return nil, fmt.Errorf("rmcgeo: layer %s: unsupported geometry type %v", l.Name(), l.GeometryType())
	}
	v, err := c.Config.Variant(variant)
	if err != nil {
		return nil, err
	}
	res := &CalcResult{Field: v.FieldName}
	exists := l.FieldIndex(v.FieldName) >= 0
	if exists && !c.Msg.Confirm("Field exists",
		fmt.Sprintf("The field '%s' already exists in the layer.\nRecalculate its values?", v.FieldName)) {
		return nil, ErrCancelled
	}

	env := &evalEnv{variant: v, fallback: c.FallbackCRS, crs: l.CRS()}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(v.Expression, env.functions())
	if err != nil {
		c.Msg.Error("Error", fmt.Sprintf("Expression error: %v", err))
		return nil, fmt.Errorf("rmcgeo: parsing expression %q: %v", v.Expression, err)
	}

	s, err := BeginEdit(l)
	if err != nil {
		return nil, err
	}
	s.Log = c.Log
	if !exists {
		if err = s.AddField(Field{Name: v.FieldName, Type: c.Config.FieldType, Length: c.Config.FieldLength}); err != nil {
			s.Rollback()
			c.Msg.Error("Error", err.Error())
			return nil, err
		}
		res.Created = true
	}
	fieldType := l.Fields()[l.FieldIndex(v.FieldName)].Type

	features := l.Features()
	for i, f := range features {
		val, err := env.evaluate(expr, f)
		if err == nil {
			err = s.SetAttribute(f.ID, v.FieldName, storedValue(val, fieldType))
		}
		if err != nil {
			failed := 1
			for _, rest := range features[i+1:] {
				if _, err := env.evaluate(expr, rest); err != nil {
					failed++
				}
			}
			s.Rollback()
			c.Msg.Error("Error", fmt.Sprintf("Error adding or updating field '%s':\n%v", v.FieldName, err))
			c.Log.WithFields(logrus.Fields{"layer": l.Name(), "field": v.FieldName, "failed": failed}).Warn("field calculation rolled back")
			return nil, fmt.Errorf("rmcgeo: calculating %s for feature %d: %v (%d features failed)", v.FieldName, f.ID, err, failed)
		}
		res.Updated++
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}
	verb := "updated"
	if res.Created {
		verb = "added"
	}
	c.Msg.Success("Success", fmt.Sprintf("Field '%s' %s.\n%d features processed.", v.FieldName, verb, res.Updated))
	c.Log.WithFields(logrus.Fields{"layer": l.Name(), "field": v.FieldName, "features": res.Updated}).Info("field calculated")
	return res, nil
}

// storedValue converts an expression result for a field of type t.
// Numeric fields accept strings with a decimal comma.
func storedValue(v interface{}, t FieldType) interface{} {
	switch t {
	case FloatField, IntField:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
				v = f
			}
		}
		if t == IntField {
			if i, err := cast.ToInt64E(v); err == nil {
				return i
			}
		}
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
		return v
	default:
		if f, ok := v.(float64); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return cast.ToString(v)
	}
}

// evalEnv holds the feature an expression is being evaluated for.
type evalEnv struct {
	variant  FormatVariant
	crs      *CRS
	fallback string

	feature *Feature
	// measured is the feature geometry in a projected CRS.
	measured geom.Geom
}

func (e *evalEnv) evaluate(expr *govaluate.EvaluableExpression, f *Feature) (interface{}, error) {
	e.feature, e.measured = f, nil
	params := make(map[string]interface{}, len(f.Attributes))
	for k, v := range f.Attributes {
		if v != nil {
			params[k] = v
		}
	}
	return expr.Evaluate(params)
}

// projected returns the feature geometry in a CRS with linear units,
// reprojecting geographic layers to their local UTM zone.
func (e *evalEnv) projected() (geom.Geom, error) {
	if e.measured != nil {
		return e.measured, nil
	}
	g := e.feature.Geom
	if g == nil {
		return nil, fmt.Errorf("feature %d has no geometry", e.feature.ID)
	}
	if e.crs != nil && e.crs.IsGeographic() {
		c, ok := Centroid(g)
		if !ok {
			return nil, fmt.Errorf("feature %d has no centroid", e.feature.ID)
		}
		utm, err := UTMForLonLat(c.X, c.Y, e.fallback)
		if err != nil {
			return nil, err
		}
		if g, err = TransformGeom(g, e.crs, utm); err != nil {
			return nil, err
		}
	}
	e.measured = g
	return g, nil
}

// measure computes the named quantity for the current feature. Lengths,
// areas and projected coordinates are in meters. Geographic coordinates
// and azimuths are dimensionless degrees. A measurement of the variant's
// quantity must have the variant's dimensions.
func (e *evalEnv) measure(name string) (*unit.Unit, error) {
	var u *unit.Unit
	switch name {
	case "area", "length", "perimeter":
		g, err := e.projected()
		if err != nil {
			return nil, err
		}
		k := 1.0
		if e.crs != nil && !e.crs.IsGeographic() {
			k = e.crs.MetersPerUnit()
		}
		switch name {
		case "area":
			p, ok := g.(geom.Polygonal)
			if !ok {
				return nil, fmt.Errorf("area of non-polygon geometry %T", g)
			}
			u = unit.New(math.Abs(p.Area())*k*k, unit.Meter2)
		default:
			u = unit.New(Length(g)*k, unit.Meter)
		}
	case "x", "y":
		p, ok := Centroid(e.feature.Geom)
		if !ok {
			return nil, fmt.Errorf("feature %d has no position", e.feature.ID)
		}
		v := p.X
		if name == "y" {
			v = p.Y
		}
		if e.crs != nil && e.crs.IsGeographic() {
			u = unit.New(v, unit.Dimless)
		} else {
			u = unit.New(v*e.crs.MetersPerUnit(), unit.Meter)
		}
	case "azimuth":
		az, err := lineAzimuth(e.feature.Geom)
		if err != nil {
			return nil, err
		}
		u = unit.New(az, unit.Dimless)
	default:
		return nil, fmt.Errorf("unknown quantity %q", name)
	}
	if name == e.variant.Quantity && e.variant.Unit != nil {
		if err := u.Check(e.variant.Unit); err != nil {
			return nil, fmt.Errorf("%s is in %v, but format %q needs %v", name, u.Dimensions(), e.variant.Label, e.variant.Unit)
		}
	}
	return u, nil
}

// lineAzimuth returns the azimuth in degrees from the first to the last
// point of a line.
func lineAzimuth(g geom.Geom) (float64, error) {
	var start, end geom.Point
	switch t := g.(type) {
	case geom.LineString:
		if len(t) < 2 {
			return 0, fmt.Errorf("line has fewer than two points")
		}
		start, end = t[0], t[len(t)-1]
	case geom.MultiLineString:
		if len(t) == 0 || len(t[0]) == 0 || len(t[len(t)-1]) == 0 {
			return 0, fmt.Errorf("empty line")
		}
		last := t[len(t)-1]
		start, end = t[0][0], last[len(last)-1]
	default:
		return 0, fmt.Errorf("azimuth of non-line geometry %T", g)
	}
	return Azimuth(start, end), nil
}

// Azimuth returns the direction from a to b in degrees clockwise from
// north, in [0, 360).
func Azimuth(a, b geom.Point) float64 {
	az := math.Atan2(b.X-a.X, b.Y-a.Y) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az
}

// FormatAzimuthDMS formats decimal degrees as degrees, minutes and
// seconds, e.g. `45° 30' 15.5"`.
func FormatAzimuthDMS(v float64) string {
	deg := math.Floor(v)
	min := math.Floor((v - deg) * 60)
	sec := ((v-deg)*60 - min) * 60
	sec = math.Round(sec*100) / 100
	if sec >= 60 {
		sec -= 60
		min++
	}
	if min >= 60 {
		min -= 60
		deg++
	}
	return fmt.Sprintf("%.0f° %.0f' %s\"", deg, min, strconv.FormatFloat(sec, 'f', -1, 64))
}

func argFloat(name string, args []interface{}, i int) (float64, error) {
	f, err := cast.ToFloat64E(args[i])
	if err != nil {
		return 0, fmt.Errorf("rmcgeo: argument %d of '%s': %v", i+1, name, err)
	}
	return f, nil
}

func nArgs(name string, args []interface{}, n int) error {
	if len(args) != n {
		return fmt.Errorf("rmcgeo: got %d arguments for function '%s', but needs %d", len(args), name, n)
	}
	return nil
}

func (e *evalEnv) functions() map[string]govaluate.ExpressionFunction {
	funcs := map[string]govaluate.ExpressionFunction{
		"format_number": func(args ...interface{}) (interface{}, error) {
			if err := nArgs("format_number", args, 2); err != nil {
				return nil, err
			}
			v, err := argFloat("format_number", args, 0)
			if err != nil {
				return nil, err
			}
			n, err := argFloat("format_number", args, 1)
			if err != nil {
				return nil, err
			}
			return strconv.FormatFloat(v, 'f', int(n), 64), nil
		},
		"round": func(args ...interface{}) (interface{}, error) {
			if err := nArgs("round", args, 2); err != nil {
				return nil, err
			}
			v, err := argFloat("round", args, 0)
			if err != nil {
				return nil, err
			}
			n, err := argFloat("round", args, 1)
			if err != nil {
				return nil, err
			}
			p := math.Pow(10, math.Floor(n))
			return math.Round(v*p) / p, nil
		},
		"floor": func(args ...interface{}) (interface{}, error) {
			if err := nArgs("floor", args, 1); err != nil {
				return nil, err
			}
			v, err := argFloat("floor", args, 0)
			if err != nil {
				return nil, err
			}
			return math.Floor(v), nil
		},
		"to_string": func(args ...interface{}) (interface{}, error) {
			if err := nArgs("to_string", args, 1); err != nil {
				return nil, err
			}
			return storedValue(args[0], StringField), nil
		},
		"to_dms": func(args ...interface{}) (interface{}, error) {
			if err := nArgs("to_dms", args, 1); err != nil {
				return nil, err
			}
			v, err := argFloat("to_dms", args, 0)
			if err != nil {
				return nil, err
			}
			return FormatAzimuthDMS(v), nil
		},
	}
	for _, q := range []string{"area", "length", "perimeter", "x", "y", "azimuth"} {
		q := q
		funcs[q] = func(args ...interface{}) (interface{}, error) {
			if err := nArgs(q, args, 0); err != nil {
				return nil, err
			}
			u, err := e.measure(q)
			if err != nil {
				return nil, err
			}
			return u.Value(), nil
		}
	}
	return funcs
}
