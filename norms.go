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
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/gonum/floats"
)

// Minimum shares of the parcelable area required of public-use areas of
// an urban subdivision, in percent.
const (
	MinGreenPercent         = 7.5
	MinInstitutionalPercent = 7.5
	MinPublicUsePercent     = 15.0
)

// LandUse is a category of area within a subdivision.
type LandUse int

// Land-use categories.
const (
	GreenArea LandUse = iota
	InstitutionalArea
	RoadArea
	PreservationArea
	ReserveArea
	LotArea
	numLandUses
)

func (u LandUse) String() string {
	return [...]string{
		"Green areas",
		"Institutional areas",
		"Road system",
		"Permanent preservation (APP)",
		"Legal reserve",
		"Lots and blocks",
	}[u]
}

// ParseLandUse parses the short name of a land-use category: green,
// institutional, roads, app, reserve or lots.
func ParseLandUse(s string) (LandUse, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "green", "verde":
		return GreenArea, nil
	case "institutional", "inst":
		return InstitutionalArea, nil
	case "roads", "viario":
		return RoadArea, nil
	case "app":
		return PreservationArea, nil
	case "reserve", "reserva":
		return ReserveArea, nil
	case "lots", "lotes":
		return LotArea, nil
	}
	return 0, fmt.Errorf("rmcgeo: unknown land use %q", s)
}

// LayerArea returns the summed area of the polygons of l in square meters.
// Geographic layers are measured in the UTM zone of each feature.
func LayerArea(l Layer, fallback string) (float64, error) {
	if l == nil {
		return 0, nil
	}
	var areas []float64
	for _, f := range l.Features() {
		if f.Geom == nil {
			continue
		}
		env := &evalEnv{crs: l.CRS(), fallback: fallback, feature: f}
		g, err := env.projected()
		if err != nil {
			return 0, fmt.Errorf("rmcgeo: layer %s: %v", l.Name(), err)
		}
		if p, ok := g.(geom.Polygonal); ok {
			areas = append(areas, math.Abs(p.Area()))
		}
	}
	if len(areas) == 0 {
		return 0, nil
	}
	return floats.Sum(areas), nil
}

// NormCheck is the result of one minimum-share rule.
type NormCheck struct {
	Name    string
	Percent float64
	Minimum float64
}

// OK returns whether the rule is met.
func (c NormCheck) OK() bool { return c.Percent >= c.Minimum }

// NormsReport summarizes the land-use shares of a subdivision.
type NormsReport struct {
	Total      float64
	Parcelable float64
	Areas      [numLandUses]float64

	// Checks holds the green, institutional and total public-use rules,
	// as percentages of the parcelable area.
	Checks []NormCheck
}

// Percent returns the share of the total area taken by u.
func (r *NormsReport) Percent(u LandUse) float64 { return r.Areas[u] / r.Total * 100 }

// Occupied returns the share of the total area taken by all categories.
func (r *NormsReport) Occupied() float64 { return floats.Sum(r.Areas[:]) / r.Total * 100 }

// OK returns whether every rule is met.
func (r *NormsReport) OK() bool {
	for _, c := range r.Checks {
		if !c.OK() {
			return false
		}
	}
	return true
}

func (r *NormsReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total area: %.2f m²\n", r.Total)
	fmt.Fprintf(&b, "APP area: %.2f m²\n", r.Areas[PreservationArea])
	fmt.Fprintf(&b, "Legal reserve area: %.2f m²\n", r.Areas[ReserveArea])
	fmt.Fprintf(&b, "Parcelable area: %.2f m²\n\n", r.Parcelable)
	for u := LandUse(0); u < numLandUses; u++ {
		fmt.Fprintf(&b, "%-30s %14.2f m² %7.2f%%\n", u, r.Areas[u], r.Percent(u))
	}
	b.WriteString("\n")
	for _, c := range r.Checks {
		status := "OK"
		if !c.OK() {
			status = "BELOW"
		}
		fmt.Fprintf(&b, "%s: %.2f%% (min. %.1f%% of parcelable area) %s\n", c.Name, c.Percent, c.Minimum, status)
	}
	fmt.Fprintf(&b, "Occupied: %.2f%% of total area\n", r.Occupied())
	if r.OK() {
		b.WriteString("The project meets the public-use area requirements.\n")
	} else {
		b.WriteString("The project does not meet the minimum public-use area requirements.\n")
	}
	return b.String()
}

// CheckNorms evaluates the land-use shares of a subdivision with the given
// total area and category areas, all in square meters. The parcelable area
// is the total minus the APP and legal reserve areas, and must be positive.
func CheckNorms(total float64, areas map[LandUse]float64) (*NormsReport, error) {
	if total <= 0 {
		return nil, fmt.Errorf("rmcgeo: total area must be positive")
	}
	r := &NormsReport{Total: total}
	for u, a := range areas {
		if u < 0 || u >= numLandUses {
			return nil, fmt.Errorf("rmcgeo: invalid land use %d", u)
		}
		r.Areas[u] = a
	}
	r.Parcelable = total - r.Areas[PreservationArea] - r.Areas[ReserveArea]
	if r.Parcelable <= 0 {
		return nil, fmt.Errorf("rmcgeo: parcelable area is zero or negative; check the APP and reserve areas")
	}
	green := r.Areas[GreenArea] / r.Parcelable * 100
	inst := r.Areas[InstitutionalArea] / r.Parcelable * 100
	r.Checks = []NormCheck{
		{Name: "Green areas", Percent: green, Minimum: MinGreenPercent},
		{Name: "Institutional areas", Percent: inst, Minimum: MinInstitutionalPercent},
		{Name: "Total public-use areas", Percent: green + inst, Minimum: MinPublicUsePercent},
	}
	return r, nil
}

// CheckLayerNorms measures the subdivision boundary layer and one layer per
// land-use category and evaluates them with CheckNorms.
func CheckLayerNorms(boundary Layer, layers map[LandUse]Layer, fallback string) (*NormsReport, error) {
	if boundary == nil {
		return nil, fmt.Errorf("rmcgeo: select the subdivision boundary layer first")
	}
	total, err := LayerArea(boundary, fallback)
	if err != nil {
		return nil, err
	}
	areas := make(map[LandUse]float64, len(layers))
	for u, l := range layers {
		if areas[u], err = LayerArea(l, fallback); err != nil {
			return nil, err
		}
	}
	return CheckNorms(total, areas)
}
