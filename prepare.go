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

package tminzonal

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/boundary"
	"github.com/spatialmodel/tminzonal/cloud"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

// DefaultCleanFile is where Prepare writes the cleaned boundaries by
// default.
var DefaultCleanFile = filepath.Join("data", "clean", "peru_distrital_simple.geojson")

// splitOutput splits an output file location into its directory and
// file name. Blob URLs are split at the last slash.
func splitOutput(path string) (dir, name string) {
	if cloud.IsBlob(path) {
		i := strings.LastIndex(path, "/")
		return path[:i], path[i+1:]
	}
	return filepath.Dir(path), filepath.Base(path)
}

// Prepare loads the boundaries named by cfg, normalizes their
// identifiers, repairs their geometries and writes them with canonical
// columns to out, which may be a GeoJSON file (.geojson or .json) or a
// shapefile (.shp).
func Prepare(ctx context.Context, cfg *Config, out string, log logrus.FieldLogger) (*boundary.Dataset, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ext := strings.ToLower(filepath.Ext(out))
	if ext != ".geojson" && ext != ".json" && ext != ".shp" {
		return nil, fmt.Errorf("tminzonal: unsupported output file type %q", ext)
	}
	target, err := crs.Parse(cfg.TargetCRS)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: invalid TargetCRS: %v", err)
	}
	tmp, err := ioutil.TempDir("", "tminzonal")
	if err != nil {
		return nil, fmt.Errorf("tminzonal: %v", err)
	}
	defer os.RemoveAll(tmp)

	vectorPath, err := resolveInput(ctx, cfg.VectorPath, cfg.VectorDir, VectorExtensions, tmp)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: locating boundaries: %w", err)
	}
	d, err := boundary.Load(vectorPath, boundary.Options{
		TargetSR:  target,
		Normalize: true,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	dir, name := splitOutput(out)
	s, err := cloud.NewStager(dir)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if ext == ".shp" {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		for _, sidecar := range []string{".dbf", ".shx", ".prj"} {
			s.Path(base + sidecar)
		}
		if err := boundary.WriteShapefile(s.Path(name), d); err != nil {
			return nil, err
		}
	} else {
		if err := writeFile(s.Path(name), func(w io.Writer) error { return boundary.WriteGeoJSON(w, d) }); err != nil {
			return nil, fmt.Errorf("tminzonal: writing %s: %v", name, err)
		}
	}
	if err := s.Commit(ctx); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"path":     s.Destination(name),
		"features": len(d.Records),
		"crs":      cfg.TargetCRS,
	}).Info("tminzonal: wrote cleaned boundaries")
	return d, nil
}
