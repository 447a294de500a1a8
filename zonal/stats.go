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

// Package zonal aggregates raster cell values within polygons and derives
// cold-risk indicators from the aggregated statistics.
package zonal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats holds the statistics of the raster values within one polygon.
// All fields are null when no valid raster cell falls within the polygon.
type Stats struct {
	Count Int
	Mean  Float
	Min   Float
	Max   Float
	// Std is the population standard deviation.
	Std Float
	P10 Float
	P90 Float
}

// IsNull returns whether no cells contributed to s.
func (s Stats) IsNull() bool {
	return !s.Count.Valid || s.Count.Value == 0
}

// Compute calculates the statistics of values. NaN values are ignored.
// The returned Stats is null if there are no values to summarize.
func Compute(values []float64) Stats {
	v := make([]float64, 0, len(values))
	for _, x := range values {
		if !math.IsNaN(x) {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return Stats{}
	}
	sort.Float64s(v)
	mean, variance := stat.MeanVariance(v, nil)
	// MeanVariance is unbiased; convert to the population variance.
	n := float64(len(v))
	std := 0.0
	if len(v) > 1 {
		std = math.Sqrt(variance * (n - 1) / n)
	}
	return Stats{
		Count: SomeInt(len(v)),
		Mean:  Some(mean),
		Min:   Some(floats.Min(v)),
		Max:   Some(floats.Max(v)),
		Std:   Some(std),
		P10:   Some(Percentile(v, 10)),
		P90:   Some(Percentile(v, 90)),
	}
}

// Percentile returns the q-th percentile (0 <= q <= 100) of sorted,
// interpolating linearly between the two nearest order statistics.
// sorted must be in ascending order and non-empty.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// Rescale divides every statistic except the count by factor. Rasters
// stored as fixed-point integers (for example °C × 10) are corrected this way.
// A factor of 1 returns s unchanged.
func Rescale(s Stats, factor float64) Stats {
	if factor == 1 {
		return s
	}
	div := func(f Float) Float {
		if !f.Valid {
			return f
		}
		return Some(f.Value / factor)
	}
	return Stats{
		Count: s.Count,
		Mean:  div(s.Mean),
		Min:   div(s.Min),
		Max:   div(s.Max),
		Std:   div(s.Std),
		P10:   div(s.P10),
		P90:   div(s.P90),
	}
}
