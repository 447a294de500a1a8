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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

type geoJSONFeature struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONFile struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
	CRS      *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`

	// Set when the file holds a single Feature.
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

func readGeoJSONFile(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("boundary: %v", err)
	}
	defer f.Close()
	src, err := readGeoJSON(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("boundary: reading %s: %v", path, err)
	}
	return src, nil
}

// readGeoJSON reads a FeatureCollection or a single Feature. Property
// names keep their order of appearance, including repeated names.
func readGeoJSON(r io.Reader) (*source, error) {
	var fc geoJSONFile
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, err
	}
	switch fc.Type {
	case "FeatureCollection":
	case "Feature":
		fc.Features = []geoJSONFeature{{Type: "Feature", Properties: fc.Properties, Geometry: fc.Geometry}}
	default:
		return nil, fmt.Errorf("unsupported GeoJSON object type %q", fc.Type)
	}

	src := new(source)
	if fc.CRS != nil && fc.CRS.Properties.Name != "" {
		sr, err := crs.Parse(fc.CRS.Properties.Name)
		if err != nil {
			return nil, err
		}
		src.sr = sr
	}

	// columnIndex maps a property name to the columns holding its first,
	// second, ... occurrence within a feature.
	columnIndex := make(map[string][]int)
	for i, ft := range fc.Features {
		keys, values, err := orderedProperties(ft.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d properties: %v", i, err)
		}
		f := feature{attrs: make([]string, len(src.columns))}
		seen := make(map[string]int)
		for k, key := range keys {
			n := seen[key]
			seen[key]++
			if n >= len(columnIndex[key]) {
				columnIndex[key] = append(columnIndex[key], len(src.columns))
				src.columns = append(src.columns, key)
				f.attrs = append(f.attrs, "")
			}
			f.attrs[columnIndex[key][n]] = values[k]
		}
		if f.geom, f.other, err = decodeGeometry(ft.Geometry); err != nil {
			return nil, fmt.Errorf("feature %d geometry: %v", i, err)
		}
		src.features = append(src.features, f)
	}
	// Earlier features have no values for columns added later.
	for i := range src.features {
		for len(src.features[i].attrs) < len(src.columns) {
			src.features[i].attrs = append(src.features[i].attrs, "")
		}
	}
	return src, nil
}

// orderedProperties returns the keys and values of a JSON object in
// document order. Values are converted to text; null becomes "".
func orderedProperties(raw json.RawMessage) (keys, values []string, err error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	t, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := t.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("properties must be an object")
	}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := t.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid property name %v", t)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, propertyText(v))
	}
	return keys, values, nil
}

func propertyText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeGeometry decodes polygonal geometries. other is true for
// geometries of other types, which are not decoded.
func decodeGeometry(raw json.RawMessage) (g geom.Geom, other bool, err error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false, nil
	}
	var gj struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &gj); err != nil {
		return nil, false, err
	}
	switch gj.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(gj.Coordinates, &coords); err != nil {
			return nil, false, err
		}
		if len(coords) == 0 || len(coords[0]) == 0 {
			return nil, false, nil
		}
		p, err := polygonFromCoordinates(coords)
		return p, false, err
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(gj.Coordinates, &coords); err != nil {
			return nil, false, err
		}
		var mp geom.MultiPolygon
		for _, c := range coords {
			if len(c) == 0 || len(c[0]) == 0 {
				continue
			}
			p, err := polygonFromCoordinates(c)
			if err != nil {
				return nil, false, err
			}
			mp = append(mp, p)
		}
		if len(mp) == 0 {
			return nil, false, nil
		}
		return mp, false, nil
	}
	return nil, true, nil
}

func polygonFromCoordinates(coords [][][]float64) (geom.Polygon, error) {
	for _, ring := range coords {
		for _, pt := range ring {
			if len(pt) < 2 {
				return nil, fmt.Errorf("position with %d coordinates", len(pt))
			}
		}
	}
	// The geojson package only accepts two-dimensional positions.
	flat := make([]interface{}, len(coords))
	for i, ring := range coords {
		r := make([]interface{}, len(ring))
		for j, pt := range ring {
			r[j] = []interface{}{pt[0], pt[1]}
		}
		flat[i] = r
	}
	g, err := geojson.FromGeoJSON(&geojson.Geometry{Type: "Polygon", Coordinates: flat})
	if err != nil {
		return nil, err
	}
	return g.(geom.Polygon), nil
}

// WriteGeoJSON writes the records of d and their detected identifiers as
// a GeoJSON FeatureCollection. Output is deterministic.
func WriteGeoJSON(w io.Writer, d *Dataset) error {
	cols := d.Detected.Columns()
	bw := bufio.NewWriter(w)
	bw.WriteString(`{"type":"FeatureCollection","features":[`)
	for i, r := range d.Records {
		if i > 0 {
			bw.WriteString(",\n")
		} else {
			bw.WriteString("\n")
		}
		bw.WriteString(`{"type":"Feature","properties":{`)
		for j, c := range cols {
			if j > 0 {
				bw.WriteByte(',')
			}
			k, _ := json.Marshal(c.String())
			bw.Write(k)
			bw.WriteByte(':')
			if id := r.Identifier(c); id != nil {
				v, _ := json.Marshal(*id)
				bw.Write(v)
			} else {
				bw.WriteString("null")
			}
		}
		bw.WriteString(`},"geometry":`)
		g, err := encodeGeometry(r.Geom)
		if err != nil {
			return fmt.Errorf("boundary: encoding record %d: %v", i, err)
		}
		bw.Write(g)
		bw.WriteByte('}')
	}
	bw.WriteString("\n]}\n")
	return bw.Flush()
}

func encodeGeometry(p geom.Polygonal) ([]byte, error) {
	switch t := p.(type) {
	case geom.Polygon:
		return geojson.Encode(t)
	case geom.MultiPolygon:
		coords := make([][][][]float64, len(t))
		for i, poly := range t {
			coords[i] = make([][][]float64, len(poly))
			for j, ring := range poly {
				coords[i][j] = make([][]float64, len(ring))
				for k, pt := range ring {
					coords[i][j][k] = []float64{pt.X, pt.Y}
				}
			}
		}
		return json.Marshal(struct {
			Type        string          `json:"type"`
			Coordinates [][][][]float64 `json:"coordinates"`
		}{"MultiPolygon", coords})
	}
	return nil, fmt.Errorf("unsupported geometry type %T", p)
}
