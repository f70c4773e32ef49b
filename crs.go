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
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/golang/groupcache/lru"
)

// DefaultFallbackCRS is the projected CRS used by the offset engine when the
// UTM zone computed for a geometry cannot be built, and the CRS of the
// working layers created by the traverse tools (SIRGAS 2000 / UTM zone 22S).
const DefaultFallbackCRS = "EPSG:31982"

// epsgDefs holds proj4 definitions for the fixed EPSG codes the toolset
// understands. UTM zone families are generated in epsgDefinition.
var epsgDefs = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4674: "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +no_defs",
}

// epsgDefinition returns the proj4 definition of an EPSG code.
func epsgDefinition(code int) (def, title string, ok bool) {
	if d, ok := epsgDefs[code]; ok {
		switch code {
		case 4326:
			return d, "WGS 84", true
		case 4674:
			return d, "SIRGAS 2000", true
		default:
			return d, "WGS 84 / Pseudo-Mercator", true
		}
	}
	switch {
	case code > 32600 && code <= 32660:
		z := code - 32600
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", z),
			fmt.Sprintf("WGS 84 / UTM zone %dN", z), true
	case code > 32700 && code <= 32760:
		z := code - 32700
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", z),
			fmt.Sprintf("WGS 84 / UTM zone %dS", z), true
	case code >= 31965 && code <= 31976:
		z := code - 31954
		return fmt.Sprintf("+proj=utm +zone=%d +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs", z),
			fmt.Sprintf("SIRGAS 2000 / UTM zone %dN", z), true
	case code >= 31977 && code <= 31985:
		z := code - 31960
		return fmt.Sprintf("+proj=utm +zone=%d +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs", z),
			fmt.Sprintf("SIRGAS 2000 / UTM zone %dS", z), true
	}
	return "", "", false
}

// CRS is a coordinate reference system.
type CRS struct {
	authID string
	title  string
	def    string
	sr     *proj.SR
}

// ParseCRS parses a coordinate reference system from an authority code
// ("EPSG:31982" or "31982"), a proj4 string, or WKT.
func ParseCRS(code string) (*CRS, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("rmcgeo: empty CRS definition")
	}
	c := &CRS{def: code}
	num := strings.TrimPrefix(strings.ToUpper(code), "EPSG:")
	if n, err := strconv.Atoi(num); err == nil {
		def, title, ok := epsgDefinition(n)
		if !ok {
			return nil, fmt.Errorf("rmcgeo: unsupported CRS EPSG:%d", n)
		}
		c.authID = fmt.Sprintf("EPSG:%d", n)
		c.title = title
		c.def = def
	}
	sr, err := proj.Parse(c.def)
	if err != nil {
		return nil, fmt.Errorf("rmcgeo: parsing CRS %q: %v", code, err)
	}
	c.sr = sr
	if c.title == "" {
		c.title = sr.SRSCode
	}
	return c, nil
}

// epsgCode returns the numeric EPSG code of c, or 0.
func (c *CRS) epsgCode() int {
	n, err := strconv.Atoi(strings.TrimPrefix(c.authID, "EPSG:"))
	if err != nil {
		return 0
	}
	return n
}

const (
	wgs84GeogCS  = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	sirgasGeogCS = `GEOGCS["SIRGAS 2000",DATUM["Sistema_de_Referencia_Geocentrico_para_las_AmericaS_2000",SPHEROID["GRS 1980",6378137,298.257222101],TOWGS84[0,0,0,0,0,0,0]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
)

var epsgAuthority = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"(\d+)"\]\s*\]\s*$`)

// WKT returns a well-known-text description of c suitable for a .prj
// file. Registered systems carry their EPSG authority, which ParsePrj
// recognizes. Systems defined by proj4 text are returned unchanged.
func (c *CRS) WKT() string {
	if strings.Contains(c.def, "GEOGCS") || strings.Contains(c.def, "PROJCS") {
		return c.def
	}
	code := c.epsgCode()
	auth := fmt.Sprintf(`,AUTHORITY["EPSG","%d"]]`, code)
	geog := wgs84GeogCS
	if strings.Contains(c.def, "+ellps=GRS80") {
		geog = sirgasGeogCS
	}
	switch {
	case code == 0:
		return c.def
	case c.IsGeographic():
		return strings.TrimSuffix(strings.Replace(geog, "WGS 84", c.title, 1), "]") + auth
	case c.sr.Name == "utm":
		zone, south := int(c.sr.Zone), c.sr.UTMSouth
		northing := 0
		if south {
			northing = 10000000
		}
		return fmt.Sprintf(`PROJCS["%s",%s,PROJECTION["Transverse_Mercator"],`+
			`PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",%d],`+
			`PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],`+
			`PARAMETER["false_northing",%d],UNIT["metre",1]`,
			c.title, geog, zone*6-183, northing) + auth
	default:
		return fmt.Sprintf(`PROJCS["%s",%s,PROJECTION["Mercator"],`+
			`PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],`+
			`PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1]`,
			c.title, geog) + auth
	}
}

// ParsePrj parses the contents of a .prj file. A trailing EPSG authority
// of a registered system is resolved through the registry.
func ParsePrj(text string) (*CRS, error) {
	text = strings.TrimSpace(text)
	if m := epsgAuthority.FindStringSubmatch(text); m != nil {
		if c, err := ParseCRS("EPSG:" + m[1]); err == nil {
			return c, nil
		}
	}
	return ParseCRS(text)
}

// MustParseCRS is like ParseCRS but panics on error.
func MustParseCRS(code string) *CRS {
	c, err := ParseCRS(code)
	if err != nil {
		panic(err)
	}
	return c
}

// AuthID returns the authority identifier of c (e.g., "EPSG:4326"), or
// "USER:CUSTOM" for CRSs defined by proj4 or WKT text.
func (c *CRS) AuthID() string {
	if c.authID == "" {
		return "USER:CUSTOM"
	}
	return c.authID
}

// Description returns a human-readable name.
func (c *CRS) Description() string {
	if c.title != "" {
		return c.title
	}
	return c.def
}

func (c *CRS) String() string { return c.AuthID() }

// SR returns the underlying spatial reference.
func (c *CRS) SR() *proj.SR { return c.sr }

// IsGeographic returns whether coordinates in c are longitude and latitude
// in degrees.
func (c *CRS) IsGeographic() bool { return c.sr.Name == "longlat" }

// MetersPerUnit returns the length in meters of one linear unit of a
// projected c. It is 1 for geographic systems and nil.
func (c *CRS) MetersPerUnit() float64 {
	if c == nil || c.IsGeographic() {
		return 1
	}
	if m := c.sr.ToMeter; m > 0 && !math.IsNaN(m) {
		return m
	}
	return 1
}

// IsUTM returns whether c is a projected Universal Transverse Mercator system.
func (c *CRS) IsUTM() bool {
	if c.IsGeographic() {
		return false
	}
	name := strings.ToUpper(c.sr.Name)
	desc := strings.ToUpper(c.Description() + " " + c.sr.SRSCode)
	return name == "UTM" || strings.Contains(desc, "UTM") ||
		strings.Contains(name, "UNIVERSAL TRANSVERSE MERCATOR") ||
		strings.Contains(desc, "UNIVERSAL TRANSVERSE MERCATOR")
}

// Equal returns whether c and c2 describe the same system.
func (c *CRS) Equal(c2 *CRS) bool {
	if c == nil || c2 == nil {
		return c == c2
	}
	if c.def == c2.def {
		return true
	}
	return c.sr.Equal(c2.sr, 3)
}

var transformCache = struct {
	sync.Mutex
	*lru.Cache
}{Cache: lru.New(64)}

// Transformer returns a function that transforms points from c to dst.
// Transformers are cached.
func (c *CRS) Transformer(dst *CRS) (proj.Transformer, error) {
	if c.Equal(dst) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	key := c.def + "\x00" + dst.def
	transformCache.Lock()
	defer transformCache.Unlock()
	if t, ok := transformCache.Get(key); ok {
		return t.(proj.Transformer), nil
	}
	t, err := c.sr.NewTransform(dst.sr)
	if err != nil {
		return nil, fmt.Errorf("rmcgeo: creating transform from %s to %s: %v", c, dst, err)
	}
	transformCache.Add(key, t)
	return t, nil
}

// TransformPoint transforms p from src to dst.
func TransformPoint(p geom.Point, src, dst *CRS) (geom.Point, error) {
	t, err := src.Transformer(dst)
	if err != nil {
		return p, err
	}
	x, y, err := t(p.X, p.Y)
	if err != nil {
		return p, fmt.Errorf("rmcgeo: transforming point %v from %s to %s: %v", p, src, dst, err)
	}
	return geom.Point{X: x, Y: y}, nil
}

// TransformGeom transforms g from src to dst. The first failing point
// aborts the transformation.
func TransformGeom(g geom.Geom, src, dst *CRS) (geom.Geom, error) {
	if src.Equal(dst) {
		return g, nil
	}
	t, err := src.Transformer(dst)
	if err != nil {
		return nil, err
	}
	out, err := g.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("rmcgeo: transforming geometry from %s to %s: %v", src, dst, err)
	}
	return out, nil
}

// UTMZone returns the UTM zone number and hemisphere of a longitude and
// latitude in degrees.
func UTMZone(lon, lat float64) (zone int, south bool) {
	return int((lon+180)/6) + 1, lat < 0
}

// UTMForLonLat returns the WGS 84 UTM system covering lon, lat. If that
// system cannot be built, fallback is parsed and returned instead.
func UTMForLonLat(lon, lat float64, fallback string) (*CRS, error) {
	zone, south := UTMZone(lon, lat)
	code := 32600 + zone
	if south {
		code = 32700 + zone
	}
	c, err := ParseCRS(fmt.Sprintf("EPSG:%d", code))
	if err == nil {
		return c, nil
	}
	if fallback == "" {
		fallback = DefaultFallbackCRS
	}
	return ParseCRS(fallback)
}

// Centroid returns the centroid of g: the area-weighted centroid of a
// polygon, the length-weighted midpoint of a line, or the mean of points.
func Centroid(g geom.Geom) (geom.Point, bool) {
	switch t := g.(type) {
	case geom.Point:
		return t, true
	case geom.MultiPoint:
		return meanPoint(t)
	case geom.LineString:
		return lineCentroid([]geom.LineString{t})
	case geom.MultiLineString:
		return lineCentroid(t)
	case geom.Polygonal:
		if t.Area() == 0 {
			return geom.Point{}, false
		}
		return t.Centroid(), true
	}
	return geom.Point{}, false
}

func meanPoint(pts []geom.Point) (geom.Point, bool) {
	if len(pts) == 0 {
		return geom.Point{}, false
	}
	var c geom.Point
	for _, p := range pts {
		c = add(c, p)
	}
	return scale(c, 1/float64(len(pts))), true
}

func lineCentroid(lines []geom.LineString) (geom.Point, bool) {
	var c geom.Point
	var total float64
	var pts []geom.Point
	for _, l := range lines {
		pts = append(pts, l...)
		for i := 0; i < len(l)-1; i++ {
			d := distance(l[i], l[i+1])
			c = add(c, scale(add(l[i], l[i+1]), d/2))
			total += d
		}
	}
	if total == 0 {
		return meanPoint(pts)
	}
	return scale(c, 1/total), true
}
