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

package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/proj"
)

// Source is an open raster data set.
type Source interface {
	// NoData returns the nodata sentinel and whether one is set.
	NoData() (float64, bool)

	// Transform returns the pixel-to-model affine transform.
	Transform() Affine

	// SR returns the spatial reference, or nil if it is unknown.
	SR() *proj.SR

	// EPSG returns the EPSG code of the spatial reference, or 0.
	EPSG() int

	// Size returns the number of columns and rows.
	Size() (width, height int)

	// ReadBand reads the first band in row-major order.
	ReadBand() ([]float64, error)

	Close() error
}

// Extensions lists the file extensions Open recognizes.
var Extensions = []string{".tif", ".tiff", ".nc"}

// Open opens the raster at path. GeoTIFF (.tif, .tiff) and netCDF (.nc)
// files are supported. variable names the netCDF variable to read and is
// ignored for GeoTIFF files.
func Open(path, variable string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".tif", ".tiff":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("raster: %v", err)
		}
		t, err := newGeoTIFF(f, f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("raster: opening %s: %v", path, err)
		}
		return t, nil
	case ".nc":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("raster: %v", err)
		}
		defer f.Close()
		g, err := DecodeNetCDF(f, variable)
		if err != nil {
			return nil, fmt.Errorf("raster: opening %s: %v", path, err)
		}
		return &netCDF{g: *g}, nil
	}
	return nil, fmt.Errorf("raster: unsupported file extension %q for %s", ext, path)
}

// ReadGrid reads the first band of src into memory.
func ReadGrid(src Source) (*Grid, error) {
	data, err := src.ReadBand()
	if err != nil {
		return nil, err
	}
	w, h := src.Size()
	if len(data) != w*h {
		return nil, fmt.Errorf("raster: read %d cells from a %dx%d band", len(data), w, h)
	}
	g := &Grid{
		Width:     w,
		Height:    h,
		Transform: src.Transform(),
		SR:        src.SR(),
		EPSG:      src.EPSG(),
		Data:      data,
	}
	g.NoData, g.HasNoData = src.NoData()
	return g, nil
}
