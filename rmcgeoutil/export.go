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

package rmcgeoutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/rmcgeo/rmcgeo"
	"github.com/spf13/cast"
	"github.com/tealeg/xlsx"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// Export writes the layer at input to output, as an Excel attribute table
// or a GeoJSON feature collection depending on the output extension.
func Export(ctx context.Context, input, output, defaultCRS string) error {
	l, err := openLayer(ctx, input, defaultCRS)
	if err != nil {
		return err
	}
	u := new(uploader)
	local := u.maybeUpload(output)
	if u.err != nil {
		return fmt.Errorf("rmcgeo: preparing upload of %s: %v", output, u.err)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".xlsx":
		err = writeXLSX(l, local)
	case ".geojson", ".json":
		err = writeGeoJSON(l, local)
	default:
		return fmt.Errorf("rmcgeo: export: unsupported output format %q; use .xlsx, .geojson or .json", filepath.Ext(output))
	}
	if err != nil {
		return err
	}
	return u.uploadOutput(ctx)
}

// attributeTable returns a workbook with one sheet holding the feature
// IDs and attributes of l.
func attributeTable(l rmcgeo.Layer) (*xlsx.File, error) {
	name := l.Name()
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(name)
	if err != nil {
		return nil, fmt.Errorf("rmcgeo: export: %v", err)
	}
	fields := l.Fields()
	header := sheet.AddRow()
	header.AddCell().SetString("fid")
	for _, f := range fields {
		header.AddCell().SetString(f.Name)
	}
	for _, f := range l.Features() {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(f.ID))
		for _, fd := range fields {
			cell := row.AddCell()
			v := f.Attributes[fd.Name]
			if v == nil {
				continue
			}
			switch fd.Type {
			case rmcgeo.IntField:
				cell.SetInt(cast.ToInt(v))
			case rmcgeo.FloatField:
				cell.SetFloat(cast.ToFloat64(v))
			default:
				cell.SetString(cast.ToString(v))
			}
		}
	}
	return file, nil
}

func writeXLSX(l rmcgeo.Layer, path string) error {
	file, err := attributeTable(l)
	if err != nil {
		return err
	}
	if err := file.Save(path); err != nil {
		return fmt.Errorf("rmcgeo: writing %s: %v", path, err)
	}
	return nil
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         int64                  `json:"id"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type featureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// toGeoJSON converts g to a GeoJSON geometry, including the multi-part
// types.
func toGeoJSON(g geom.Geom) (*geojson.Geometry, error) {
	var parts []geom.Geom
	var typ string
	switch t := g.(type) {
	case geom.MultiPoint:
		typ = "MultiPoint"
		for _, p := range t {
			parts = append(parts, p)
		}
	case geom.MultiLineString:
		typ = "MultiLineString"
		for _, l := range t {
			parts = append(parts, l)
		}
	case geom.MultiPolygon:
		typ = "MultiPolygon"
		for _, p := range t {
			parts = append(parts, p)
		}
	default:
		return geojson.ToGeoJSON(g)
	}
	coords := make([]interface{}, len(parts))
	for i, p := range parts {
		j, err := geojson.ToGeoJSON(p)
		if err != nil {
			return nil, err
		}
		coords[i] = j.Coordinates
	}
	return &geojson.Geometry{Type: typ, Coordinates: coords}, nil
}

// featureCollectionOf returns the features of l with coordinates in
// longitude and latitude.
func featureCollectionOf(l rmcgeo.Layer) (*featureCollection, error) {
	wgs84 := rmcgeo.MustParseCRS("EPSG:4326")
	fc := &featureCollection{Type: "FeatureCollection", Features: []geoJSONFeature{}}
	for _, f := range l.Features() {
		out := geoJSONFeature{Type: "Feature", ID: f.ID, Properties: make(map[string]interface{})}
		for _, fd := range l.Fields() {
			out.Properties[fd.Name] = f.Attributes[fd.Name]
		}
		if f.Geom != nil {
			g := f.Geom
			if crs := l.CRS(); crs != nil {
				var err error
				if g, err = rmcgeo.TransformGeom(g, crs, wgs84); err != nil {
					return nil, fmt.Errorf("rmcgeo: export: feature %d: %v", f.ID, err)
				}
			}
			j, err := toGeoJSON(g)
			if err != nil {
				return nil, fmt.Errorf("rmcgeo: export: feature %d: %v", f.ID, err)
			}
			out.Geometry = j
		}
		fc.Features = append(fc.Features, out)
	}
	return fc, nil
}

func writeGeoJSON(l rmcgeo.Layer, path string) error {
	fc, err := featureCollectionOf(l)
	if err != nil {
		return err
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rmcgeo: export: %v", err)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(fc); err != nil {
		w.Close()
		return fmt.Errorf("rmcgeo: writing %s: %v", path, err)
	}
	return w.Close()
}
