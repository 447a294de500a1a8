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

package tminutil

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/tminzonal"
	"github.com/spf13/cast"
)

// Config returns the pipeline settings held in cfg. Paths can include
// environment variables.
func (cfg *Cfg) Config() (*tminzonal.Config, error) {
	c := &tminzonal.Config{
		RasterPath:     os.ExpandEnv(cfg.GetString("RasterPath")),
		RasterDir:      os.ExpandEnv(cfg.GetString("RasterDir")),
		NetCDFVariable: cfg.GetString("NetCDFVariable"),
		VectorPath:     os.ExpandEnv(cfg.GetString("VectorPath")),
		VectorDir:      os.ExpandEnv(cfg.GetString("VectorDir")),
		OutputDir:      os.ExpandEnv(cfg.GetString("OutputDir")),
		TargetCRS:      cfg.GetString("TargetCRS"),
		TableFile:      cfg.GetString("TableFile"),
		MapFile:        cfg.GetString("MapFile"),
		HistogramFile:  cfg.GetString("HistogramFile"),
		TopFile:        cfg.GetString("TopFile"),
		BottomFile:     cfg.GetString("BottomFile"),
		XLSXFile:       cfg.GetString("XLSXFile"),
	}
	var err error
	if c.Normalize, err = cast.ToBoolE(cfg.Get("Normalize")); err != nil {
		return nil, fmt.Errorf("tminzonal: parsing Normalize: %v", err)
	}
	for name, dst := range map[string]*float64{
		"ScaleFactor": &c.ScaleFactor,
		"MapWidth":    &c.MapWidth,
		"MapHeight":   &c.MapHeight,
	} {
		if *dst, err = cast.ToFloat64E(cfg.Get(name)); err != nil {
			return nil, fmt.Errorf("tminzonal: parsing %s: %v", name, err)
		}
	}
	for name, dst := range map[string]*int{
		"TopN":     &c.TopN,
		"MapDPI":   &c.MapDPI,
		"HistBins": &c.HistBins,
		"HistDPI":  &c.HistDPI,
	} {
		if *dst, err = cast.ToIntE(cfg.Get(name)); err != nil {
			return nil, fmt.Errorf("tminzonal: parsing %s: %v", name, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// WriteConfig writes c in the configuration file format.
func WriteConfig(w io.Writer, c *tminzonal.Config) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("tminzonal: writing configuration: %v", err)
	}
	return nil
}
