/*
Copyright © 2026 the tminzonal authors.
This file is part of tminzonal.

tminzonal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

tminzonal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with tminzonal.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package crs resolves coordinate reference system identifiers into
// spatial references.
package crs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// WGS84 is the geographic longitude/latitude reference system used when an
// input does not declare one.
const WGS84 = "+proj=longlat +datum=WGS84 +no_defs"

// WGS84WKT is the ESRI flavor of WGS84 written to shapefile .prj files.
const WGS84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// Proj4 returns the proj4 definition of the given EPSG code, for the codes
// that commonly occur in South American climate and boundary data.
func Proj4(code int) (string, bool) {
	switch {
	case code == 4326 || code == 4979 || code == 4269 || code == 4258 || code == 4283:
		return WGS84, true
	case code == 3857 || code == 900913:
		return "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +no_defs", true
	case code > 32600 && code <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", code-32600), true
	case code > 32700 && code <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", code-32700), true
	case code >= 24891 && code <= 24893:
		// PSAD56 / Peru west, central and east zones.
		lon := map[int]string{24891: "-80.5", 24892: "-76", 24893: "-70.5"}[code]
		x0 := map[int]string{24891: "222000", 24892: "720000", 24893: "1324000"}[code]
		return "+proj=tmerc +lat_0=-6 +lon_0=" + lon + " +k=0.99983008 +x_0=" + x0 +
			" +y_0=1500000 +ellps=intl +towgs84=-288,175,-376,0,0,0,0 +units=m +no_defs", true
	}
	return "", false
}

// EPSGCode extracts an EPSG code from identifiers such as "EPSG:4326",
// "epsg:32718", "urn:ogc:def:crs:EPSG::4326" and
// "urn:ogc:def:crs:OGC:1.3:CRS84" (which is reported as 4326).
func EPSGCode(s string) (int, bool) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(u, "CRS84") {
		return 4326, true
	}
	i := strings.LastIndex(u, "EPSG:")
	if i < 0 {
		return 0, false
	}
	code := strings.TrimLeft(u[i+len("EPSG:"):], ":")
	c, err := strconv.Atoi(code)
	if err != nil {
		return 0, false
	}
	return c, true
}

// Parse returns the spatial reference for s, which may be an EPSG
// identifier known to Proj4, a proj4 string or a WKT string.
func Parse(s string) (*proj.SR, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("crs: empty spatial reference")
	}
	if code, ok := EPSGCode(s); ok {
		def, ok := Proj4(code)
		if !ok {
			return nil, fmt.Errorf("crs: unsupported EPSG code %d", code)
		}
		s = def
	}
	sr, err := proj.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("crs: parsing %q: %v", s, err)
	}
	return sr, nil
}

// Equal returns whether a and b describe the same reference system.
// Two nil references are equal.
func Equal(a, b *proj.SR) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b, 3)
}
