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

package boundary

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

// readShapefile reads the shapefile at path along with its .prj file,
// if there is one.
func readShapefile(path string) (*source, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("boundary: opening shapefile %s: %v", path, err)
	}
	defer d.Close()

	src := new(source)
	for _, f := range d.Fields() {
		src.columns = append(src.columns, fieldName(f))
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".shp") + ".prj"); err == nil {
		if src.sr, err = d.SR(); err != nil {
			return nil, fmt.Errorf("boundary: reading spatial reference of %s: %v", path, err)
		}
	}

	for row := 0; d.Next(); row++ {
		_, shape := d.Shape()
		f := feature{geom: shapeToGeom(shape)}
		f.attrs = make([]string, len(src.columns))
		for i := range src.columns {
			f.attrs[i] = decodeText(d.ReadAttribute(row, i))
		}
		src.features = append(src.features, f)
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("boundary: reading shapefile %s: %v", path, err)
	}
	return src, nil
}

func fieldName(f goshp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00 ")
}

// shapeToGeom converts polygon shapes to geometries. Other shape types,
// including null shapes, give nil.
func shapeToGeom(s goshp.Shape) geom.Geom {
	var parts []int32
	var points []goshp.Point
	switch t := s.(type) {
	case *goshp.Polygon:
		parts, points = t.Parts, t.Points
	case *goshp.PolygonZ:
		parts, points = t.Parts, t.Points
	case *goshp.PolygonM:
		parts, points = t.Parts, t.Points
	default:
		return nil
	}
	p := make(geom.Polygon, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start > end {
			return nil
		}
		ring := make([]geom.Point, end-start)
		for j, pt := range points[start:end] {
			ring[j] = geom.Point{X: pt.X, Y: pt.Y}
		}
		p[i] = ring
	}
	return p
}

const (
	// identifierFieldLength is the DBF width of identifier columns.
	identifierFieldLength = 80

	// maxFieldName is the longest DBF field name.
	maxFieldName = 10
)

// WriteShapefile writes the records of d and their detected identifiers
// to the shapefile at path, along with a .prj file when the records are
// in geographic coordinates. Multi-polygons are
// written as single polygon shapes with one ring per part.
func WriteShapefile(path string, d *Dataset) error {
	cols := d.Detected.Columns()
	fields := make([]goshp.Field, len(cols))
	for i, c := range cols {
		name := c.String()
		if len(name) > maxFieldName {
			name = name[:maxFieldName]
		}
		fields[i] = goshp.StringField(name, identifierFieldLength)
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("boundary: creating shapefile %s: %v", path, err)
	}
	for i, r := range d.Records {
		var p geom.Polygon
		for _, poly := range r.Geom.Polygons() {
			p = append(p, poly...)
		}
		vals := make([]interface{}, len(cols))
		for j, c := range cols {
			v := ""
			if id := r.Identifier(c); id != nil {
				v = *id
			}
			if len(v) > identifierFieldLength {
				v = v[:identifierFieldLength]
			}
			vals[j] = v
		}
		if err := e.EncodeFields(p, vals...); err != nil {
			e.Close()
			return fmt.Errorf("boundary: writing record %d: %v", i, err)
		}
	}
	e.Close()

	// Only geographic references have a known WKT form.
	if d.SR != nil && d.SR.Name != "longlat" {
		return nil
	}
	return ioutil.WriteFile(strings.TrimSuffix(path, ".shp")+".prj", []byte(crs.WGS84WKT), 0644)
}
