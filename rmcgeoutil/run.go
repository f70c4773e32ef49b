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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/rmcgeo/rmcgeo"
	"github.com/sirupsen/logrus"
)

// CanvasOptions configure the commands that replay map clicks on a layer.
type CanvasOptions struct {
	// Input and Output are the paths of the layer to edit and of the
	// edited copy.
	Input, Output string

	// At holds the clicked points in CRS.
	At []geom.Point

	// CRS is the canvas CRS. The CRS of the input layer is used if it
	// is empty.
	CRS string

	// DefaultCRS is the CRS of input shapefiles without a .prj file.
	DefaultCRS string

	UnitsPerPixel float64
}

// openLayer downloads the shapefile at path if necessary and loads it.
func openLayer(ctx context.Context, path, defaultCRS string) (*rmcgeo.MemLayer, error) {
	local, err := maybeDownload(ctx, path)
	if err != nil {
		return nil, err
	}
	return rmcgeo.ReadShapefile(local, defaultCRS)
}

// saveLayer writes l to path, uploading it if path is a blob location.
func saveLayer(ctx context.Context, l rmcgeo.Layer, path string) error {
	u := new(uploader)
	local := u.maybeUpload(path)
	if u.err != nil {
		return fmt.Errorf("rmcgeo: preparing upload of %s: %v", path, u.err)
	}
	if err := rmcgeo.WriteShapefile(l, local); err != nil {
		return err
	}
	if err := u.uploadOutput(ctx); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"layer": l.Name(), "file": path}).Info("layer saved")
	return nil
}

// mapSession is a headless map view over one layer.
type mapSession struct {
	layer *rmcgeo.MemLayer
	view  *rmcgeo.Viewport
	msg   *rmcgeo.LogMessenger
}

func openMap(ctx context.Context, o CanvasOptions) (*mapSession, error) {
	l, err := openLayer(ctx, o.Input, o.DefaultCRS)
	if err != nil {
		return nil, err
	}
	crs := l.CRS()
	if o.CRS != "" {
		if crs, err = rmcgeo.ParseCRS(o.CRS); err != nil {
			return nil, err
		}
	}
	if crs == nil {
		return nil, fmt.Errorf("rmcgeo: layer %s has no coordinate reference system; set DefaultCRS", l.Name())
	}
	msg := rmcgeo.NewLogMessenger()
	return &mapSession{layer: l, view: rmcgeo.NewViewport(crs, o.UnitsPerPixel, msg, l), msg: msg}, nil
}

// failure returns an error describing why a tool made no change.
func (s *mapSession) failure(tool string) error {
	for i := len(s.msg.Messages) - 1; i >= 0; i-- {
		if m := s.msg.Messages[i]; m.Level <= logrus.WarnLevel {
			return fmt.Errorf("rmcgeo: %s: %s", tool, m.Text)
		}
	}
	return fmt.Errorf("rmcgeo: %s: no feature was changed at the given points", tool)
}

// edit activates t on the layer of o, clicks each point of o.At, and
// saves the layer to o.Output if t changed it.
func edit(ctx context.Context, o CanvasOptions, name string, clicks int, newTool func(*mapSession) rmcgeo.Tool) error {
	if len(o.At) != clicks {
		return fmt.Errorf("rmcgeo: %s needs %d --at points, got %d", name, clicks, len(o.At))
	}
	if _, err := checkOutputFile(o.Output); err != nil {
		return err
	}
	s, err := openMap(ctx, o)
	if err != nil {
		return err
	}
	if !s.layer.StartEditing() {
		return fmt.Errorf("rmcgeo: cannot edit layer %s", s.layer.Name())
	}
	if err := s.view.SetTool(newTool(s)); err != nil {
		s.layer.RollBack()
		return err
	}
	before := s.view.Refreshes
	for _, p := range o.At {
		s.view.Click(p, rmcgeo.LeftButton)
	}
	if s.view.Refreshes == before {
		s.layer.RollBack()
		return s.failure(name)
	}
	if err := s.layer.CommitChanges(); err != nil {
		return err
	}
	return saveLayer(ctx, s.layer, o.Output)
}

// Chamfer extends the two lines picked by o.At to their intersection.
func Chamfer(ctx context.Context, o CanvasOptions) error {
	return edit(ctx, o, "chamfer", 2, func(s *mapSession) rmcgeo.Tool {
		return rmcgeo.NewChamferTool(s.view)
	})
}

// Extend extends the line picked by the first point of o.At to the line
// picked by the second.
func Extend(ctx context.Context, o CanvasOptions) error {
	return edit(ctx, o, "extend", 2, func(s *mapSession) rmcgeo.Tool {
		return rmcgeo.NewExtendTool(s.view)
	})
}

// Offset adds a copy of the line picked by the first point of o.At,
// distance away from it on the side of the second point.
func Offset(ctx context.Context, o CanvasOptions, distance, fallbackCRS string) error {
	if strings.TrimSpace(distance) == "" {
		return fmt.Errorf(`you need to specify an offset distance configuration variable (for example: Offset.Distance="2.5")`)
	}
	off := rmcgeo.NewOffsetter()
	if fallbackCRS != "" {
		off.FallbackCRS = fallbackCRS
	}
	prompt := func() (string, bool) { return distance, true }
	return edit(ctx, o, "offset", 2, func(s *mapSession) rmcgeo.Tool {
		return rmcgeo.NewOffsetTool(s.view, prompt, off)
	})
}

// Traverse draws the legs of the traverse file at path. The lines are
// added to the line layer at input if it is given and is in the traverse
// CRS, or to a new layer otherwise, which is written to output.
func Traverse(ctx context.Context, path, crs, input, output, defaultCRS string) error {
	if path == "" {
		return fmt.Errorf(`you need to specify a traverse file configuration variable (for example: Traverse.File="traverse.toml")`)
	}
	local, err := maybeDownload(ctx, path)
	if err != nil {
		return err
	}
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("rmcgeo: opening traverse file: %v", err)
	}
	tr, err := rmcgeo.ReadTraverse(f)
	f.Close()
	if err != nil {
		return err
	}
	if tr.CRS == "" {
		tr.CRS = crs
	}
	c, err := rmcgeo.ParseCRS(tr.CRS)
	if err != nil {
		return err
	}

	msg := rmcgeo.NewLogMessenger()
	v := rmcgeo.NewViewport(c, 1, msg)
	if input != "" {
		l, err := openLayer(ctx, input, defaultCRS)
		if err != nil {
			return err
		}
		if !l.StartEditing() {
			return fmt.Errorf("rmcgeo: cannot edit layer %s", l.Name())
		}
		v.AddLayer(l)
	}
	existing := make(map[rmcgeo.Layer]map[int64]bool)
	for _, l := range v.Layers() {
		ids := make(map[int64]bool)
		for _, f := range l.Features() {
			ids[f.ID] = true
		}
		existing[l] = ids
	}
	t := rmcgeo.NewBearingTool(v, tr.Kind)
	t.LayerCRS = tr.CRS
	if err := v.SetTool(t); err != nil {
		return err
	}
	t.Load(tr)
	l := t.Save()
	if l == nil {
		if m, ok := msg.Last(); ok && m.Level <= logrus.WarnLevel {
			return fmt.Errorf("rmcgeo: traverse: %s", m.Text)
		}
		return fmt.Errorf("rmcgeo: traverse: no lines were drawn")
	}
	var added []*rmcgeo.Feature
	for _, f := range l.Features() {
		if !existing[l][f.ID] {
			added = append(added, f)
		}
	}
	labelLegs(l, added, tr.Legs)
	if err := l.CommitChanges(); err != nil {
		return err
	}
	return saveLayer(ctx, l, output)
}

// Fields describing the legs of a saved traverse.
var legFields = []rmcgeo.Field{
	{Name: "leg", Type: rmcgeo.IntField, Length: 10},
	{Name: "angle", Type: rmcgeo.StringField, Length: 32},
	{Name: "distance", Type: rmcgeo.FloatField, Precision: 2},
}

// labelLegs writes the leg number, angle and distance of each leg to the
// line drawn for it, creating the fields if needed.
func labelLegs(l rmcgeo.Layer, lines []*rmcgeo.Feature, legs []rmcgeo.Leg) {
	for _, fd := range legFields {
		if l.FieldIndex(fd.Name) < 0 {
			l.AddField(fd)
		}
	}
	for i, f := range lines {
		if i >= len(legs) {
			break
		}
		l.ChangeAttributeValue(f.ID, "leg", int64(i+1))
		l.ChangeAttributeValue(f.ID, "angle", legs[i].Label)
		l.ChangeAttributeValue(f.ID, "distance", legs[i].Distance)
	}
}

// CalcOptions configure Calc.
type CalcOptions struct {
	Input, Output string

	DefaultCRS, FallbackCRS string

	// Calculator is the short name of a field calculator preset and
	// Format the label or field name of one of its formats.
	Calculator, Format string

	// Expression, if not empty, replaces the expression of the format.
	Expression string

	// Overwrite allows recalculating an existing field.
	Overwrite bool
}

// Calc runs a field calculator on the layer at o.Input and writes the
// result to o.Output.
func Calc(ctx context.Context, o CalcOptions) (*rmcgeo.CalcResult, error) {
	presets := rmcgeo.Calculators()
	cfg, ok := presets[strings.ToLower(o.Calculator)]
	if !ok {
		var names []string
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("rmcgeo: unknown calculator %q; valid options are %s", o.Calculator, strings.Join(names, ", "))
	}
	format := o.Format
	if o.Expression != "" {
		v, err := cfg.Variant(format)
		if err != nil {
			return nil, err
		}
		v.Expression = o.Expression
		cfg.Formats = []rmcgeo.FormatVariant{v}
		format = ""
	}
	l, err := openLayer(ctx, o.Input, o.DefaultCRS)
	if err != nil {
		return nil, err
	}
	msg := rmcgeo.NewLogMessenger()
	msg.Answer = o.Overwrite
	c := rmcgeo.NewCalculator(cfg, msg)
	if o.FallbackCRS != "" {
		c.FallbackCRS = o.FallbackCRS
	}
	res, err := c.Run(l, format)
	if err != nil {
		return nil, err
	}
	if err := saveLayer(ctx, l, o.Output); err != nil {
		return nil, err
	}
	return res, nil
}

// Norms checks the land-use shares of the subdivision whose boundary is
// the polygon layer at boundary. layers maps land-use names to the paths
// of their polygon layers.
func Norms(ctx context.Context, boundary string, layers map[string]string, defaultCRS, fallbackCRS string) (*rmcgeo.NormsReport, error) {
	if boundary == "" {
		return nil, fmt.Errorf(`you need to specify a boundary configuration variable (for example: Norms.Boundary="boundary.shp")`)
	}
	b, err := openLayer(ctx, boundary, defaultCRS)
	if err != nil {
		return nil, err
	}
	uses := make(map[rmcgeo.LandUse]rmcgeo.Layer, len(layers))
	for name, path := range layers {
		u, err := rmcgeo.ParseLandUse(name)
		if err != nil {
			return nil, err
		}
		l, err := openLayer(ctx, path, defaultCRS)
		if err != nil {
			return nil, err
		}
		uses[u] = l
	}
	if fallbackCRS == "" {
		fallbackCRS = rmcgeo.DefaultFallbackCRS
	}
	return rmcgeo.CheckLayerNorms(b, uses, fallbackCRS)
}

// Coords returns the coordinates of each point of o.At, snapped to a
// nearby vertex of the input layer, followed by the canvas CRS.
func Coords(ctx context.Context, o CanvasOptions) ([]string, error) {
	if len(o.At) == 0 {
		return nil, fmt.Errorf("rmcgeo: coords needs at least one --at point")
	}
	s, err := openMap(ctx, o)
	if err != nil {
		return nil, err
	}
	var out []string
	t := rmcgeo.NewCoordinateTool(s.view, func(text string) {
		out = append(out, fmt.Sprintf("%s (%s)", text, s.view.CRS().AuthID()))
	})
	if err := s.view.SetTool(t); err != nil {
		return nil, err
	}
	for _, p := range o.At {
		s.view.Click(p, rmcgeo.LeftButton)
	}
	return out, nil
}
