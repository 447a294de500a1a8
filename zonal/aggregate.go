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

package zonal

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/raster"
)

// Options control zonal aggregation.
type Options struct {
	// Log receives warnings about polygons that could not be evaluated.
	// If nil, the standard logger is used.
	Log logrus.FieldLogger
}

// Aggregate calculates the statistics of the cells of g that fall within
// each polygon. A cell belongs to a polygon when its center is inside
// the polygon or on its boundary. Nodata cells are ignored.
//
// The result is index-aligned with polys. Polygons that cover no valid
// cells, and polygons that cannot be evaluated, get null statistics.
func Aggregate(polys []geom.Polygonal, g *raster.Grid, opts Options) []Stats {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	out := make([]Stats, len(polys))
	var empty, failed int
	for i, p := range polys {
		values, err := cellValues(p, g)
		if err != nil {
			failed++
			log.WithFields(logrus.Fields{"index": i}).Warnf("zonal: skipping polygon: %v", err)
			continue
		}
		out[i] = Compute(values)
		if out[i].IsNull() {
			empty++
		}
	}
	if empty > 0 {
		log.WithFields(logrus.Fields{
			"polygons": len(polys),
			"empty":    empty,
		}).Info("zonal: some polygons contain no valid raster cells")
	}
	if failed > 0 {
		log.WithFields(logrus.Fields{"failed": failed}).Warn("zonal: some polygons could not be evaluated")
	}
	return out
}

// cellValues returns the valid values of the cells whose centers lie
// within p.
func cellValues(p geom.Polygonal, g *raster.Grid) (values []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, fmt.Errorf("invalid geometry: %v", r)
		}
	}()
	if p == nil {
		return nil, fmt.Errorf("missing geometry")
	}
	parts := p.Polygons()
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty geometry")
	}
	b := p.Bounds()
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("geometry has non-finite bounds %v", b)
		}
	}
	r0, r1, c0, c1, ok := g.Window(b)
	if !ok {
		return nil, nil
	}
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			v := g.At(r, c)
			if g.IsNoData(v) {
				continue
			}
			center := g.Transform.Center(r, c)
			for _, part := range parts {
				if center.Within(part) != geom.Outside {
					values = append(values, v)
					break
				}
			}
		}
	}
	return values, nil
}
