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
)

// GeometryType is the geometry family of a layer.
type GeometryType int

// Geometry families.
const (
	UnknownGeometry GeometryType = iota
	PointGeometry
	LineGeometry
	PolygonGeometry
)

func (t GeometryType) String() string {
	switch t {
	case PointGeometry:
		return "point"
	case LineGeometry:
		return "line"
	case PolygonGeometry:
		return "polygon"
	default:
		return "unknown"
	}
}

// GeometryTypeOf returns the geometry family of g.
func GeometryTypeOf(g geom.Geom) GeometryType {
	switch g.(type) {
	case geom.Point, geom.MultiPoint:
		return PointGeometry
	case geom.LineString, geom.MultiLineString:
		return LineGeometry
	case geom.Polygon, geom.MultiPolygon:
		return PolygonGeometry
	default:
		return UnknownGeometry
	}
}

// FieldType is the type of an attribute field.
type FieldType int

// Attribute field types.
const (
	StringField FieldType = iota
	FloatField
	IntField
)

// Field describes an attribute column.
type Field struct {
	Name      string
	Type      FieldType
	Length    int // string length or numeric width
	Precision int // decimal places for FloatField
}

// Feature is a geometry with attributes, identified within its layer by ID.
type Feature struct {
	ID         int64
	Geom       geom.Geom
	Attributes map[string]interface{}
}

// Bounds returns the bounding box of the feature geometry.
func (f *Feature) Bounds() *geom.Bounds { return f.Geom.Bounds() }

func (f *Feature) String() string { return fmt.Sprintf("feature %d", f.ID) }

// clone returns a copy of f with its own attribute map. Geometries are
// replaced rather than mutated, so they are shared.
func (f *Feature) clone() *Feature {
	o := &Feature{ID: f.ID, Geom: f.Geom, Attributes: make(map[string]interface{}, len(f.Attributes))}
	for k, v := range f.Attributes {
		o.Attributes[k] = v
	}
	return o
}

// Layer is a collection of features sharing a geometry type and a CRS,
// with a transactional edit session.
type Layer interface {
	Name() string
	GeometryType() GeometryType
	CRS() *CRS

	// FeaturesInBounds returns the features whose bounding boxes overlap b.
	FeaturesInBounds(b *geom.Bounds) []*Feature
	Features() []*Feature
	Feature(id int64) (*Feature, bool)

	IsEditable() bool
	StartEditing() bool
	CommitChanges() error
	RollBack()

	// The mutating methods below fail unless the layer is editable.
	ChangeGeometry(id int64, g geom.Geom) bool
	AddFeature(f *Feature) (int64, bool)
	ChangeAttributeValue(id int64, field string, v interface{}) bool
	AddField(f Field) bool
	DeleteField(name string) bool

	Fields() []Field
	// FieldIndex returns the index of the named field or -1.
	FieldIndex(name string) int
	PrimaryKeyIndices() []int
	UpdateExtents()
}

// Messenger delivers notifications to the user. Only Confirm returns a
// value that callers may branch on.
type Messenger interface {
	Info(title, msg string)
	Warning(title, msg string)
	Error(title, msg string)
	Success(title, msg string)
	Confirm(title, question string) bool
}

// Canvas is the map view the tools operate on.
type Canvas interface {
	CRS() *CRS
	MapUnitsPerPixel() float64
	ActiveLayer() Layer
	Layers() []Layer
	AddLayer(l Layer)

	// SetPreview shows a transient geometry in canvas coordinates under
	// name, replacing any previous geometry of that name.
	SetPreview(name string, g geom.Geom)
	ClearPreview(name string)
	Refresh()

	Messenger() Messenger
	// UnsetTool deactivates t if it is the current tool.
	UnsetTool(t Tool)
}

func isLineLayer(l Layer) bool {
	return l != nil && l.GeometryType() == LineGeometry
}

// layerToCanvas transforms g from the CRS of l into the canvas CRS for
// display. On failure g is returned untransformed.
func layerToCanvas(c Canvas, l Layer, g geom.Geom) geom.Geom {
	if g == nil || l == nil {
		return g
	}
	o, err := TransformGeom(g, l.CRS(), c.CRS())
	if err != nil {
		return g
	}
	return o
}
