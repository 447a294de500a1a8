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
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// PlausibleLimit is the largest magnitude (°C) expected in a
// minimum-temperature raster. Rasters whose values exceed it were most
// likely stored as fixed-point integers scaled by 10.
const PlausibleLimit = 90.0

// Summary describes a raster band.
type Summary struct {
	Width, Height int
	Transform     Affine
	NoData        float64
	HasNoData     bool
	EPSG          int
	SRName        string

	// Valid is the number of cells that are not nodata.
	Valid    int
	Min, Max float64
}

// Inspect summarizes g.
func Inspect(g *Grid) Summary {
	s := Summary{
		Width:     g.Width,
		Height:    g.Height,
		Transform: g.Transform,
		NoData:    g.NoData,
		HasNoData: g.HasNoData,
		EPSG:      g.EPSG,
		Min:       math.NaN(),
		Max:       math.NaN(),
	}
	if g.SR != nil {
		s.SRName = g.SR.Name
	}
	v := g.Valid()
	s.Valid = len(v)
	if len(v) > 0 {
		s.Min, s.Max = floats.Min(v), floats.Max(v)
	}
	return s
}

// LikelyScaled returns whether the value range of the band exceeds
// PlausibleLimit, suggesting a scale factor of 10 should be configured.
// It is advisory and never applied automatically.
func (s Summary) LikelyScaled() bool {
	if s.Valid == 0 {
		return false
	}
	return math.Max(math.Abs(s.Min), math.Abs(s.Max)) > PlausibleLimit
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "size:      %d x %d\n", s.Width, s.Height)
	fmt.Fprintf(&b, "transform: %v\n", [6]float64(s.Transform))
	if s.EPSG != 0 {
		fmt.Fprintf(&b, "crs:       EPSG:%d (%s)\n", s.EPSG, s.SRName)
	} else if s.SRName != "" {
		fmt.Fprintf(&b, "crs:       %s\n", s.SRName)
	} else {
		fmt.Fprintf(&b, "crs:       unknown\n")
	}
	if s.HasNoData {
		fmt.Fprintf(&b, "nodata:    %g\n", s.NoData)
	} else {
		fmt.Fprintf(&b, "nodata:    none\n")
	}
	fmt.Fprintf(&b, "valid:     %d\n", s.Valid)
	fmt.Fprintf(&b, "min:       %g\n", s.Min)
	fmt.Fprintf(&b, "max:       %g\n", s.Max)
	return b.String()
}
