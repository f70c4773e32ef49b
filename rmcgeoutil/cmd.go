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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/rmcgeo/rmcgeo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to RMCGeo.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel sets the logging verbosity. Valid values are
              "debug", "info", "warning" and "error".`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DefaultCRS",
			usage: `
              DefaultCRS is the coordinate reference system assumed for
              shapefiles that have no .prj file, as an EPSG code
              (for example "EPSG:31982"), a proj4 string or WKT.`,
			defaultVal: rmcgeo.DefaultFallbackCRS,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Canvas.CRS",
			usage: `
              Canvas.CRS is the coordinate reference system of the points
              given with --at. If it is empty, the points are in the CRS
              of the input layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{chamferCmd.Flags(), extendCmd.Flags(), offsetCmd.Flags(), coordsCmd.Flags()},
		},
		{
			name: "Canvas.UnitsPerPixel",
			usage: `
              Canvas.UnitsPerPixel is the number of canvas map units per
              screen pixel. Clicks given with --at select features within
              a few pixels of the point, so this sets the pick tolerance.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{chamferCmd.Flags(), extendCmd.Flags(), offsetCmd.Flags(), coordsCmd.Flags()},
		},
		{
			name: "Input",
			usage: `
              Input is the path to the input shapefile. It can be a local
              path, an http(s) URL or a blob storage location beginning
              with file://, gs:// or s3://, and can include environment
              variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{chamferCmd.Flags(), extendCmd.Flags(), offsetCmd.Flags(),
				coordsCmd.Flags(), calcCmd.Flags(), exportCmd.Flags(), traverseCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the result should be written.
              It can be a local path or a blob storage location, and can
              include environment variables. The export command writes an
              .xlsx workbook or, for the .geojson and .json extensions, a
              GeoJSON feature collection.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{chamferCmd.Flags(), extendCmd.Flags(), offsetCmd.Flags(),
				calcCmd.Flags(), exportCmd.Flags(), traverseCmd.Flags()},
		},
		{
			name: "at",
			usage: `
              at gives the clicked map points as "x,y" pairs, in order.
              chamfer takes the first and the second line; extend takes the
              line to extend and the target line, which also sets the end
              that is extended; offset takes the line and a point on the
              side to offset to; coords takes any number of points.`,
			shorthand:  "a",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{chamferCmd.Flags(), extendCmd.Flags(), offsetCmd.Flags(), coordsCmd.Flags()},
		},
		{
			name: "Offset.Distance",
			usage: `
              Offset.Distance is the distance between a line and its offset
              copy, in meters for geographic layers and map units otherwise.
              A comma may be used as the decimal separator.`,
			shorthand:  "d",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{offsetCmd.Flags()},
		},
		{
			name: "Offset.FallbackCRS",
			usage: `
              Offset.FallbackCRS is the projected CRS used to measure and
              offset geographic geometries whose UTM zone cannot be built.`,
			defaultVal: rmcgeo.DefaultFallbackCRS,
			flagsets:   []*pflag.FlagSet{offsetCmd.Flags(), calcCmd.Flags(), normsCmd.Flags()},
		},
		{
			name: "Calc.Calculator",
			usage: `
              Calc.Calculator selects the field calculator: "area",
              "length", "perimeter", "azimuth", "x" or "y".`,
			defaultVal: "area",
			flagsets:   []*pflag.FlagSet{calcCmd.Flags()},
		},
		{
			name: "Calc.Format",
			usage: `
              Calc.Format selects the output format of the calculator by
              label or field name, for example "Area_m2". The first format
              of the calculator is used if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{calcCmd.Flags()},
		},
		{
			name: "Calc.Expression",
			usage: `
              Calc.Expression replaces the expression of the selected
              format. Expressions can use area(), length(), perimeter(),
              azimuth(), x(), y(), the layer fields, and the functions
              round, floor, format_number, to_dms and to_string.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{calcCmd.Flags()},
		},
		{
			name: "Calc.Overwrite",
			usage: `
              Calc.Overwrite specifies whether an existing field should be
              recalculated.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{calcCmd.Flags()},
		},
		{
			name: "Traverse.File",
			usage: `
              Traverse.File is the path to a TOML file describing a start
              point and a list of azimuth or rumo legs.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{traverseCmd.Flags()},
		},
		{
			name: "Traverse.CRS",
			usage: `
              Traverse.CRS is the UTM coordinate reference system of the
              traverse, used when the traverse file does not name one.`,
			defaultVal: rmcgeo.DefaultFallbackCRS,
			flagsets:   []*pflag.FlagSet{traverseCmd.Flags()},
		},
		{
			name: "Norms.Boundary",
			usage: `
              Norms.Boundary is the path to the polygon shapefile holding
              the subdivision boundary.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{normsCmd.Flags()},
		},
		{
			name: "Norms.Layers",
			usage: `
              Norms.Layers maps land-use categories ("green",
              "institutional", "roads", "app", "reserve" and "lots") to the
              paths of the polygon shapefiles holding them.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{normsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("RMCGEO")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(chamferCmd)
	Root.AddCommand(extendCmd)
	Root.AddCommand(offsetCmd)
	Root.AddCommand(traverseCmd)
	Root.AddCommand(calcCmd)
	Root.AddCommand(normsCmd)
	Root.AddCommand(coordsCmd)
	Root.AddCommand(exportCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("rmcgeo: problem reading configuration file: %v", err)
		}
	}
	return setLogLevel(Cfg.GetString("loglevel"))
}

// setLogLevel configures the standard logger.
func setLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("rmcgeo: invalid loglevel %q: %v", level, err)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(lvl)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "rmcgeo",
	Short: "Geometry editing tools for land surveying.",
	Long: `RMCGeo is a set of geometry editing tools for land surveying and
subdivision projects: chamfering and extending lines, offsetting lines,
drawing azimuth and rumo traverses, filling attribute fields with
measurements, and checking public-use area norms.
Use the subcommands specified below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'RMCGEO_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of RMCGeo.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("RMCGeo v%s\n", rmcgeo.Version)
	},
	DisableAutoGenTag: true,
}

// chamferCmd extends two lines until they meet.
var chamferCmd = &cobra.Command{
	Use:   "chamfer",
	Short: "Extend two lines until they meet",
	Long: `chamfer extends two non-intersecting lines of the input layer to
their common intersection point. The lines are picked with two --at points.
Lines that already intersect, are parallel, or meet at less than 5° are
rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := canvasOptions(Cfg)
		if err != nil {
			return err
		}
		return Chamfer(context.TODO(), opts)
	},
	DisableAutoGenTag: true,
}

// extendCmd extends a line to another line.
var extendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Extend a line to a target line",
	Long: `extend extends the end of a line that is nearest to the second --at
point until it meets the target line picked with that point.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := canvasOptions(Cfg)
		if err != nil {
			return err
		}
		return Extend(context.TODO(), opts)
	},
	DisableAutoGenTag: true,
}

// offsetCmd adds a parallel copy of a line.
var offsetCmd = &cobra.Command{
	Use:   "offset",
	Short: "Add a parallel copy of a line",
	Long: `offset adds a copy of the line picked with the first --at point,
parallel to it at Offset.Distance, on the side of the second --at point.
Geographic layers are offset in their local UTM zone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := canvasOptions(Cfg)
		if err != nil {
			return err
		}
		return Offset(context.TODO(), opts, Cfg.GetString("Offset.Distance"), os.ExpandEnv(Cfg.GetString("Offset.FallbackCRS")))
	},
	DisableAutoGenTag: true,
}

// traverseCmd draws the lines of an azimuth or rumo traverse.
var traverseCmd = &cobra.Command{
	Use:   "traverse",
	Short: "Draw an azimuth or rumo traverse",
	Long: `traverse draws one line per leg of the traverse in Traverse.File,
chained from its start point. The lines are added to the Input layer if it is
a line layer in the traverse CRS, and to a new layer otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Traverse(context.TODO(),
			os.ExpandEnv(Cfg.GetString("Traverse.File")),
			os.ExpandEnv(Cfg.GetString("Traverse.CRS")),
			os.ExpandEnv(Cfg.GetString("Input")),
			outputFile,
			os.ExpandEnv(Cfg.GetString("DefaultCRS")))
	},
	DisableAutoGenTag: true,
}

// calcCmd fills an attribute field with a computed value.
var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Fill an attribute field with measurements",
	Long: `calc writes the area, length, perimeter, azimuth or coordinates of
every feature of the input layer into an attribute field. If any feature fails,
no changes are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		input, err := checkInputFile(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		c := CalcOptions{
			Input:       input,
			Output:      outputFile,
			DefaultCRS:  os.ExpandEnv(Cfg.GetString("DefaultCRS")),
			FallbackCRS: os.ExpandEnv(Cfg.GetString("Offset.FallbackCRS")),
			Calculator:  Cfg.GetString("Calc.Calculator"),
			Format:      Cfg.GetString("Calc.Format"),
			Expression:  Cfg.GetString("Calc.Expression"),
			Overwrite:   Cfg.GetBool("Calc.Overwrite"),
		}
		res, err := Calc(context.TODO(), c)
		if err != nil {
			return err
		}
		cmd.Printf("%d features updated in field %s\n", res.Updated, res.Field)
		return nil
	},
	DisableAutoGenTag: true,
}

// normsCmd checks the public-use area shares of a subdivision.
var normsCmd = &cobra.Command{
	Use:   "norms",
	Short: "Check subdivision land-use norms",
	Long: `norms measures the subdivision boundary and the land-use layers in
Norms.Layers and reports whether the green, institutional and total public-use
areas meet their minimum shares of the parcelable area.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		layers := expandStringMap(GetStringMapString("Norms.Layers", Cfg))
		r, err := Norms(context.TODO(),
			os.ExpandEnv(Cfg.GetString("Norms.Boundary")),
			layers,
			os.ExpandEnv(Cfg.GetString("DefaultCRS")),
			os.ExpandEnv(Cfg.GetString("Offset.FallbackCRS")))
		if err != nil {
			return err
		}
		cmd.Print(r.String())
		return nil
	},
	DisableAutoGenTag: true,
}

// coordsCmd prints the snapped coordinates of points.
var coordsCmd = &cobra.Command{
	Use:   "coords",
	Short: "Print coordinates snapped to nearby vertices",
	Long: `coords prints the coordinates of each --at point, snapped to the
nearest vertex of the input layer within a few pixels.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := canvasOptions(Cfg)
		if err != nil {
			return err
		}
		coords, err := Coords(context.TODO(), opts)
		if err != nil {
			return err
		}
		for _, c := range coords {
			cmd.Println(c)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// exportCmd writes the attribute table of a layer.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a layer's attribute table",
	Long: `export writes the attribute table of the input layer to an Excel
workbook, or the layer's features to a GeoJSON feature collection when
OutputFile ends in .geojson or .json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Export(context.TODO(), input, outputFile, os.ExpandEnv(Cfg.GetString("DefaultCRS")))
	},
	DisableAutoGenTag: true,
}

// canvasOptions collects the configuration shared by the map commands.
func canvasOptions(cfg *viper.Viper) (CanvasOptions, error) {
	var o CanvasOptions
	var err error
	if o.Input, err = checkInputFile(cfg.GetString("Input")); err != nil {
		return o, err
	}
	if of := cfg.GetString("OutputFile"); of != "" {
		if o.Output, err = checkOutputFile(of); err != nil {
			return o, err
		}
	}
	at, err := cast.ToStringSliceE(cfg.Get("at"))
	if err != nil {
		return o, fmt.Errorf("rmcgeo: reading 'at': %v", err)
	}
	if o.At, err = parsePoints(at); err != nil {
		return o, err
	}
	o.CRS = os.ExpandEnv(cfg.GetString("Canvas.CRS"))
	o.DefaultCRS = os.ExpandEnv(cfg.GetString("DefaultCRS"))
	o.UnitsPerPixel = cfg.GetFloat64("Canvas.UnitsPerPixel")
	if !(o.UnitsPerPixel > 0) {
		return o, fmt.Errorf("rmcgeo: Canvas.UnitsPerPixel=%g but should be >0", o.UnitsPerPixel)
	}
	return o, nil
}
