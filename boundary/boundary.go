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

// Package boundary loads administrative boundary polygons, harmonizes
// their identifier columns and spatial reference, and writes cleaned
// copies.
package boundary

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

// Record is one administrative unit.
type Record struct {
	// Identifiers, nil when the category was not detected in the input.
	UBIGEO, Departamento, Provincia, Distrito *string

	// Geom is never empty.
	Geom geom.Polygonal
}

// Identifier returns the value of identifier c, or nil if it is absent.
func (r *Record) Identifier(c Category) *string {
	switch c {
	case UBIGEO:
		return r.UBIGEO
	case Departamento:
		return r.Departamento
	case Provincia:
		return r.Provincia
	case Distrito:
		return r.Distrito
	}
	return nil
}

// SetIdentifier sets identifier c to v.
func (r *Record) SetIdentifier(c Category, v string) {
	switch c {
	case UBIGEO:
		r.UBIGEO = &v
	case Departamento:
		r.Departamento = &v
	case Provincia:
		r.Provincia = &v
	case Distrito:
		r.Distrito = &v
	}
}

// Dataset is a set of boundary records.
type Dataset struct {
	Records []Record

	// Columns are the deduplicated attribute column names of the input.
	Columns []string

	// Detected maps identifier categories to input columns.
	Detected Detection

	// SR is the spatial reference of the record geometries.
	SR *proj.SR
}

// Polygons returns the record geometries without their attributes.
func (d *Dataset) Polygons() []geom.Polygonal {
	o := make([]geom.Polygonal, len(d.Records))
	for i, r := range d.Records {
		o[i] = r.Geom
	}
	return o
}

// Transform reprojects the dataset in place to sr.
func (d *Dataset) Transform(sr *proj.SR) error {
	if sr == nil || d.SR == nil || crs.Equal(d.SR, sr) {
		if sr != nil {
			d.SR = sr
		}
		return nil
	}
	ct, err := d.SR.NewTransform(sr)
	if err != nil {
		return fmt.Errorf("boundary: creating transform: %v", err)
	}
	for i, r := range d.Records {
		g, err := r.Geom.Transform(ct)
		if err != nil {
			return fmt.Errorf("boundary: transforming record %d: %v", i, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return fmt.Errorf("boundary: transformed record %d is a %T", i, g)
		}
		d.Records[i].Geom = p
	}
	d.SR = sr
	return nil
}

// Options control how boundaries are loaded.
type Options struct {
	// TargetSR is the spatial reference to project the geometries into.
	// If nil, geometries stay in their source reference.
	TargetSR *proj.SR

	// DefaultSR is assumed for inputs that do not declare a spatial
	// reference. If empty, WGS84 longitude/latitude is assumed.
	DefaultSR string

	// Normalize upper-cases identifiers and removes their accents.
	Normalize bool

	// Log receives data quality warnings. If nil, the standard logger
	// is used.
	Log logrus.FieldLogger
}

func (o *Options) log() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// feature is a raw input feature before cleaning.
type feature struct {
	attrs []string
	geom  geom.Geom

	// other is set for geometries of a non-polygonal type that were
	// not decoded.
	other bool
}

// source is a decoded input file.
type source struct {
	columns  []string
	features []feature
	sr       *proj.SR // nil if the input does not declare one
}

// Load reads the boundaries in path, which may be a shapefile (.shp), a
// GeoJSON file (.geojson or .json) or a zip archive containing either.
func Load(path string, opts Options) (*Dataset, error) {
	log := opts.log()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("boundary: %v", err)
	}
	var src *source
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".zip":
		src, err = readZip(path)
	case ".shp":
		src, err = readShapefile(path)
	case ".geojson", ".json":
		src, err = readGeoJSONFile(path)
	default:
		return nil, fmt.Errorf("boundary: unsupported file extension %q for %s", ext, path)
	}
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		Columns: DedupColumns(src.columns),
		SR:      src.sr,
	}
	d.Detected = DetectColumns(d.Columns)
	if d.SR == nil {
		def := opts.DefaultSR
		if def == "" {
			def = crs.WGS84
		}
		log.WithField("path", path).Warnf("boundary: input has no spatial reference; assuming %s", def)
		if d.SR, err = crs.Parse(def); err != nil {
			return nil, fmt.Errorf("boundary: %v", err)
		}
	}
	for _, c := range Categories {
		if col, ok := d.Detected[c]; ok {
			log.WithFields(logrus.Fields{"column": col, "as": c.String()}).Debug("boundary: identifier column")
		}
	}

	index := make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		index[c] = i
	}
	var empty, notPolygonal, repaired int
	for _, f := range src.features {
		p, ok := f.geom.(geom.Polygonal)
		if f.other || (f.geom != nil && !ok) {
			notPolygonal++
			continue
		}
		if f.geom == nil || isEmpty(p) {
			empty++
			continue
		}
		p, changed := RepairPolygonal(p)
		if isEmpty(p) {
			empty++
			continue
		}
		if changed {
			repaired++
		}
		r := Record{Geom: p}
		for c, col := range d.Detected {
			if i := index[col]; i < len(f.attrs) {
				v := f.attrs[i]
				if opts.Normalize {
					v = NormalizeText(v)
				}
				r.SetIdentifier(c, v)
			}
		}
		d.Records = append(d.Records, r)
	}
	if empty > 0 {
		log.WithFields(logrus.Fields{"path": path, "dropped": empty}).Warn("boundary: dropped features with empty geometry")
	}
	if notPolygonal > 0 {
		log.WithFields(logrus.Fields{"path": path, "dropped": notPolygonal}).Warn("boundary: dropped non-polygon features")
	}
	if repaired > 0 {
		log.WithFields(logrus.Fields{"path": path, "repaired": repaired}).Warn("boundary: repaired invalid geometries")
	}
	if err := d.Transform(opts.TargetSR); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "records": len(d.Records)}).Info("boundary: loaded")
	return d, nil
}

// isEmpty returns whether p has no rings with at least three vertices.
func isEmpty(p geom.Polygonal) bool {
	if p == nil {
		return true
	}
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			if len(ring) >= 3 {
				return false
			}
		}
	}
	return true
}

// readZip extracts the archive at path to a temporary directory and
// reads the first shapefile in it, or the first GeoJSON file if it
// contains no shapefile.
func readZip(path string) (*source, error) {
	dir, err := ioutil.TempDir("", "tminzonal-boundary")
	if err != nil {
		return nil, fmt.Errorf("boundary: %v", err)
	}
	defer os.RemoveAll(dir)
	files, err := unzip(path, dir)
	if err != nil {
		return nil, err
	}
	for _, exts := range [][]string{{".shp"}, {".geojson", ".json"}} {
		for _, f := range files {
			for _, ext := range exts {
				if strings.EqualFold(filepath.Ext(f), ext) {
					if ext == ".shp" {
						return readShapefile(f)
					}
					return readGeoJSONFile(f)
				}
			}
		}
	}
	return nil, fmt.Errorf("boundary: no shapefile or GeoJSON file found in %s", path)
}
