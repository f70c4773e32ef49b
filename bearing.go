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
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
)

// TraverseKind is the angle convention of a traverse.
type TraverseKind int

// Angle conventions.
const (
	// AzimuthTraverse angles are azimuths, clockwise from north in [0, 360].
	AzimuthTraverse TraverseKind = iota
	// RumoTraverse angles are bearings in [0, 90] within a quadrant.
	RumoTraverse
)

func (k TraverseKind) String() string {
	if k == RumoTraverse {
		return "rumo"
	}
	return "azimuth"
}

// layerName is the name of the working layer created when saving.
func (k TraverseKind) layerName() string {
	if k == RumoTraverse {
		return "Linhas_Rumo"
	}
	return "Linhas_Azimute"
}

// ParseTraverseKind parses "azimuth" or "rumo".
func ParseTraverseKind(s string) (TraverseKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "azimuth", "azimute", "":
		return AzimuthTraverse, nil
	case "rumo", "bearing":
		return RumoTraverse, nil
	}
	return 0, fmt.Errorf("rmcgeo: unknown traverse kind %q", s)
}

// dmsFields splits an angle written as "D", "D M" or "D M S", tolerating
// degree, minute and second symbols and decimal commas.
func dmsFields(s string) []string {
	s = strings.NewReplacer("°", " ", "'", " ", `"`, " ", ",", ".").Replace(s)
	return strings.Fields(s)
}

// ParseDMS converts an angle in degrees, minutes and seconds to decimal
// degrees. Seconds are rounded to two decimal places.
func ParseDMS(s string) (float64, error) {
	parts := dmsFields(s)
	if len(parts) < 1 || len(parts) > 3 {
		return 0, fmt.Errorf("rmcgeo: invalid angle %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("rmcgeo: invalid angle %q", s)
		}
		v[i] = f
	}
	sec := math.Round(v[2]*100) / 100
	return v[0] + v[1]/60 + sec/3600, nil
}

// FormatDMS formats the angle text s for display, e.g. "55 30 15.5"
// becomes `55° 30' 15.50"`. Unparseable text is returned unchanged.
func FormatDMS(s string) string {
	parts := dmsFields(s)
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return s
		}
		v[i] = f
	}
	switch len(v) {
	case 1:
		return fmt.Sprintf("%.0f°", v[0])
	case 2:
		return fmt.Sprintf("%.0f° %.0f'", v[0], v[1])
	case 3:
		return fmt.Sprintf("%.0f° %.0f' %.2f\"", v[0], v[1], v[2])
	}
	return s
}

// FormatDistance formats a leg distance for display.
func FormatDistance(d float64) string { return fmt.Sprintf("%.2fm", d) }

// ParseDistance parses a leg distance, with an optional "m" suffix and
// decimal comma. The distance must be positive.
func ParseDistance(s string) (float64, error) {
	t := strings.TrimSpace(strings.Replace(s, "m", "", -1))
	if t == "" {
		return 0, fmt.Errorf("rmcgeo: missing distance")
	}
	d, err := strconv.ParseFloat(strings.Replace(t, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("rmcgeo: invalid distance %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("rmcgeo: distance must be greater than zero")
	}
	return d, nil
}

// RumoToAzimuth converts a bearing in [0, 90] degrees within quadrant
// (NE, SE, SW or NW) to an azimuth.
func RumoToAzimuth(rumo float64, quadrant string) (float64, error) {
	if rumo < 0 || rumo > 90 {
		return 0, fmt.Errorf("rmcgeo: bearing %g is outside [0, 90]", rumo)
	}
	switch strings.ToUpper(strings.TrimSpace(quadrant)) {
	case "NE":
		return rumo, nil
	case "SE":
		return 180 - rumo, nil
	case "SW":
		return 180 + rumo, nil
	case "NW":
		return 360 - rumo, nil
	}
	return 0, fmt.Errorf("rmcgeo: invalid quadrant %q", quadrant)
}

// EndPoint returns the point reached from start by walking distance along
// azimuth, in degrees clockwise from north.
func EndPoint(start geom.Point, azimuth, distance float64) geom.Point {
	rad := (90 - azimuth) * math.Pi / 180
	return geom.Point{
		X: start.X + distance*math.Cos(rad),
		Y: start.Y + distance*math.Sin(rad),
	}
}

// Leg is one course of a traverse.
type Leg struct {
	// Angle and Quadrant are the angle as entered by the user.
	Angle, Quadrant string
	// Label is the angle as shown to the user.
	Label    string
	Azimuth  float64
	Distance float64
}

// NewLeg validates an angle and a distance entered by the user. quadrant
// is only used by rumo traverses.
func NewLeg(kind TraverseKind, angle, quadrant, distance string) (Leg, error) {
	a, err := ParseDMS(angle)
	if err != nil {
		return Leg{}, err
	}
	leg := Leg{Angle: strings.TrimSpace(angle)}
	switch kind {
	case RumoTraverse:
		if a < 0 || a > 90 {
			return Leg{}, fmt.Errorf("rmcgeo: invalid bearing %q: it must be between 0 and 90 degrees", angle)
		}
		if leg.Azimuth, err = RumoToAzimuth(a, quadrant); err != nil {
			return Leg{}, err
		}
		leg.Quadrant = strings.ToUpper(strings.TrimSpace(quadrant))
		leg.Label = FormatDMS(angle) + " " + leg.Quadrant
	default:
		if a < 0 || a > 360 {
			return Leg{}, fmt.Errorf("rmcgeo: invalid azimuth %q: it must be between 0 and 360 degrees", angle)
		}
		leg.Azimuth = a
		leg.Label = FormatDMS(angle)
	}
	if leg.Distance, err = ParseDistance(distance); err != nil {
		return Leg{}, err
	}
	return leg, nil
}

// TraversePoints returns the vertices reached from start by walking legs
// in order.
func TraversePoints(start geom.Point, legs []Leg) []geom.Point {
	pts := []geom.Point{start}
	p := start
	for _, l := range legs {
		p = EndPoint(p, l.Azimuth, l.Distance)
		pts = append(pts, p)
	}
	return pts
}

// Traverse is a start point and the legs walked from it.
type Traverse struct {
	Kind  TraverseKind
	Start geom.Point
	Legs  []Leg
	// CRS is the authority code of the coordinates, if known.
	CRS string
}

// Points returns the vertices of t.
func (t *Traverse) Points() []geom.Point { return TraversePoints(t.Start, t.Legs) }

// traverseFile is the TOML representation of a Traverse.
type traverseFile struct {
	Kind  string      `toml:"kind"`
	CRS   string      `toml:"crs,omitempty"`
	Start [2]float64  `toml:"start"`
	Legs  []legRecord `toml:"leg"`
}

type legRecord struct {
	Angle    string  `toml:"angle"`
	Quadrant string  `toml:"quadrant,omitempty"`
	Distance float64 `toml:"distance"`
}

// ReadTraverse decodes and validates a TOML traverse such as
//
//	kind = "rumo"
//	crs = "EPSG:31982"
//	start = [500000.0, 7000000.0]
//
//	[[leg]]
//	angle = "45 30"
//	quadrant = "NE"
//	distance = 120.5
func ReadTraverse(r io.Reader) (*Traverse, error) {
	var f traverseFile
	if _, err := toml.DecodeReader(r, &f); err != nil {
		return nil, fmt.Errorf("rmcgeo: reading traverse: %v", err)
	}
	kind, err := ParseTraverseKind(f.Kind)
	if err != nil {
		return nil, err
	}
	t := &Traverse{Kind: kind, Start: geom.Point{X: f.Start[0], Y: f.Start[1]}, CRS: f.CRS}
	for i, l := range f.Legs {
		leg, err := NewLeg(kind, l.Angle, l.Quadrant, strconv.FormatFloat(l.Distance, 'f', -1, 64))
		if err != nil {
			return nil, fmt.Errorf("rmcgeo: traverse leg %d: %v", i+1, err)
		}
		t.Legs = append(t.Legs, leg)
	}
	return t, nil
}

// WriteTraverse encodes t as TOML.
func WriteTraverse(w io.Writer, t *Traverse) error {
	f := traverseFile{Kind: t.Kind.String(), CRS: t.CRS, Start: [2]float64{t.Start.X, t.Start.Y}}
	for _, l := range t.Legs {
		f.Legs = append(f.Legs, legRecord{Angle: l.Angle, Quadrant: l.Quadrant, Distance: l.Distance})
	}
	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("rmcgeo: writing traverse: %v", err)
	}
	return nil
}
