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
	"io/ioutil"
	"os"

	"github.com/spatialmodel/tminzonal/raster"
)

// Inspect summarizes the raster named by cfg. Only RasterPath,
// RasterDir, NetCDFVariable and ScaleFactor are used; a ScaleFactor
// other than 1 is applied before summarizing so its effect can be
// checked.
func Inspect(ctx context.Context, cfg *Config) (raster.Summary, error) {
	tmp, err := ioutil.TempDir("", "tminzonal")
	if err != nil {
		return raster.Summary{}, fmt.Errorf("tminzonal: %v", err)
	}
	defer os.RemoveAll(tmp)
	path, err := resolveInput(ctx, cfg.RasterPath, cfg.RasterDir, RasterExtensions, tmp)
	if err != nil {
		return raster.Summary{}, fmt.Errorf("tminzonal: locating raster: %w", err)
	}
	g, err := readRaster(path, cfg.NetCDFVariable)
	if err != nil {
		return raster.Summary{}, err
	}
	if f := cfg.ScaleFactor; f != 0 && f != 1 {
		g = g.Scale(f)
	}
	return raster.Inspect(g), nil
}
