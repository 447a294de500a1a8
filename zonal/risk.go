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

import "math"

const (
	// RiskThreshold is the 10th-percentile Tmin (°C) below which a
	// district starts accruing cold risk.
	RiskThreshold = 5.0

	// FreezingPoint is the mean Tmin (°C) below which a district is flagged.
	FreezingPoint = 0.0
)

// Risk holds the cold-risk indicators derived from a Stats record.
type Risk struct {
	// Index is max(0, RiskThreshold - P10). Higher is colder.
	Index Float
	// Flag is 1 when the mean is below FreezingPoint and 0 otherwise.
	Flag Int
}

// Score derives the cold-risk indicators from s. A null P10 gives a null
// Index and a null Mean gives a null Flag.
func Score(s Stats) Risk {
	var r Risk
	if s.P10.Valid {
		r.Index = Some(math.Max(0, RiskThreshold-s.P10.Value))
	}
	if s.Mean.Valid {
		if s.Mean.Value < FreezingPoint {
			r.Flag = SomeInt(1)
		} else {
			r.Flag = SomeInt(0)
		}
	}
	return r
}

// ScoreAll scores every record in stats, preserving order.
func ScoreAll(stats []Stats) []Risk {
	o := make([]Risk, len(stats))
	for i, s := range stats {
		o[i] = Score(s)
	}
	return o
}
