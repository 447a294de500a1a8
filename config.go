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
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spatialmodel/tminzonal/cloud"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

// ErrNoInput is returned when an input directory holds no file of the
// expected type.
var ErrNoInput = errors.New("tminzonal: no input file found")

// RasterExtensions and VectorExtensions are the input file types that
// are searched for when no input path is given.
var (
	RasterExtensions = []string{".tif", ".tiff", ".nc"}
	VectorExtensions = []string{".zip", ".shp", ".geojson", ".json"}
)

// Config holds the settings of a pipeline run.
type Config struct {
	// RasterPath is the Tmin raster. If empty, the first raster in
	// RasterDir is used.
	RasterPath string `toml:"RasterPath"`
	RasterDir  string `toml:"RasterDir"`

	// NetCDFVariable is the variable to read from netCDF rasters. If
	// empty, the first gridded variable is used.
	NetCDFVariable string `toml:"NetCDFVariable"`

	// VectorPath holds the district boundaries. If empty, the first
	// boundary file in VectorDir is used.
	VectorPath string `toml:"VectorPath"`
	VectorDir  string `toml:"VectorDir"`

	// OutputDir is a local directory or a blob URL.
	OutputDir string `toml:"OutputDir"`

	// ScaleFactor divides every statistic except the cell count.
	// Rasters stored as tenths of a degree need a factor of 10.
	ScaleFactor float64 `toml:"ScaleFactor"`

	// TargetCRS is the reference the boundaries are harmonized to and
	// the map is drawn in.
	TargetCRS string `toml:"TargetCRS"`

	// Normalize upper-cases identifiers and removes their accents.
	Normalize bool `toml:"Normalize"`

	// TopN is the length of the ranking tables.
	TopN int `toml:"TopN"`

	// Output file names, relative to OutputDir. XLSXFile is optional.
	TableFile     string `toml:"TableFile"`
	MapFile       string `toml:"MapFile"`
	HistogramFile string `toml:"HistogramFile"`
	TopFile       string `toml:"TopFile"`
	BottomFile    string `toml:"BottomFile"`
	XLSXFile      string `toml:"XLSXFile"`

	// Map size in inches and resolution.
	MapWidth  float64 `toml:"MapWidth"`
	MapHeight float64 `toml:"MapHeight"`
	MapDPI    int     `toml:"MapDPI"`

	HistBins int `toml:"HistBins"`
	HistDPI  int `toml:"HistDPI"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		RasterDir:     filepath.Join("data", "raw", "raster"),
		VectorDir:     filepath.Join("data", "raw", "vectors"),
		OutputDir:     filepath.Join("data", "processed"),
		ScaleFactor:   1,
		TargetCRS:     crs.WGS84,
		Normalize:     false,
		TopN:          15,
		TableFile:     "tmin_zonal_distritos.csv",
		MapFile:       "tmin_choropleth.png",
		HistogramFile: "histograma_tmin.png",
		TopFile:       "top15_tmin_mean_alta.csv",
		BottomFile:    "top15_tmin_mean_baja.csv",
		MapWidth:      7.5,
		MapHeight:     9,
		MapDPI:        200,
		HistBins:      30,
		HistDPI:       300,
	}
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.RasterPath == "" && c.RasterDir == "" {
		return fmt.Errorf("tminzonal: either RasterPath or RasterDir must be set")
	}
	if c.VectorPath == "" && c.VectorDir == "" {
		return fmt.Errorf("tminzonal: either VectorPath or VectorDir must be set")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("tminzonal: OutputDir must be set")
	}
	if c.ScaleFactor == 0 || math.IsNaN(c.ScaleFactor) || math.IsInf(c.ScaleFactor, 0) {
		return fmt.Errorf("tminzonal: invalid ScaleFactor %g", c.ScaleFactor)
	}
	if _, err := crs.Parse(c.TargetCRS); err != nil {
		return fmt.Errorf("tminzonal: invalid TargetCRS: %v", err)
	}
	if c.TopN < 0 {
		return fmt.Errorf("tminzonal: TopN must not be negative, but is %d", c.TopN)
	}
	for name, f := range map[string]string{
		"TableFile":     c.TableFile,
		"MapFile":       c.MapFile,
		"HistogramFile": c.HistogramFile,
		"TopFile":       c.TopFile,
		"BottomFile":    c.BottomFile,
	} {
		if f == "" {
			return fmt.Errorf("tminzonal: %s must be set", name)
		}
		if strings.ContainsAny(f, `/\`) {
			return fmt.Errorf("tminzonal: %s must be a file name, not a path: %q", name, f)
		}
	}
	if strings.ContainsAny(c.XLSXFile, `/\`) {
		return fmt.Errorf("tminzonal: XLSXFile must be a file name, not a path: %q", c.XLSXFile)
	}
	if c.MapWidth <= 0 || c.MapHeight <= 0 || c.MapDPI <= 0 {
		return fmt.Errorf("tminzonal: invalid map size %gx%g in at %d dpi", c.MapWidth, c.MapHeight, c.MapDPI)
	}
	if c.HistBins <= 0 || c.HistDPI <= 0 {
		return fmt.Errorf("tminzonal: invalid histogram settings: %d bins at %d dpi", c.HistBins, c.HistDPI)
	}
	return nil
}

// FindInput returns the first file in dir, in lexical order, that has
// one of the given extensions. Extensions are matched without regard
// to case.
func FindInput(dir string, exts ...string) (string, error) {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoInput, err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	name, ok := firstMatch(names, exts)
	if !ok {
		return "", fmt.Errorf("%w: no %s file in %s", ErrNoInput, strings.Join(exts, ", "), dir)
	}
	return filepath.Join(dir, name), nil
}

// findInput is FindInput for directories that may be blob URLs.
func findInput(ctx context.Context, dir string, exts ...string) (string, error) {
	if !cloud.IsBlob(dir) {
		return FindInput(dir, exts...)
	}
	paths, err := cloud.List(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoInput, err)
	}
	p, ok := firstMatch(paths, exts)
	if !ok {
		return "", fmt.Errorf("%w: no %s file in %s", ErrNoInput, strings.Join(exts, ", "), dir)
	}
	return p, nil
}

func firstMatch(names []string, exts []string) (string, bool) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, n := range sorted {
		for _, ext := range exts {
			if strings.EqualFold(filepath.Ext(n), ext) {
				return n, true
			}
		}
	}
	return "", false
}
