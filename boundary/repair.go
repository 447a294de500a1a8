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

package boundary

import (
	"sort"

	"github.com/ctessum/geom"
)

// Repair applies a minimal fix to p: rings are closed, repeated vertices
// are removed, and rings with fewer than three distinct vertices or no
// area are dropped. If the remaining rings cross themselves or each other,
// the polygon is rebuilt by clipping it to its own bounding box, which
// splits it at the crossings. It returns the repaired polygon, which may
// be empty, and whether anything changed.
func Repair(p geom.Polygon) (geom.Polygon, bool) {
	var out geom.Polygon
	changed := false
	for _, ring := range p {
		r, ringChanged := cleanRing(ring)
		changed = changed || ringChanged
		if r == nil {
			changed = true
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, true
	}
	if selfIntersects(out) {
		b := out.Bounds()
		box := geom.Polygon{{
			b.Min, {X: b.Max.X, Y: b.Min.Y}, b.Max, {X: b.Min.X, Y: b.Max.Y}, b.Min,
		}}
		var kept geom.Polygon
		if fixed := out.Intersection(box); fixed != nil {
			for _, poly := range fixed.Polygons() {
				for _, ring := range poly {
					if r, _ := cleanRing(ring); r != nil {
						kept = append(kept, r)
					}
				}
			}
		}
		return kept, true
	}
	return out, changed
}

// RepairPolygonal repairs each polygon in p. Polygons that repair to
// nothing are dropped from multi-polygons; the result is nil if nothing
// remains.
func RepairPolygonal(p geom.Polygonal) (geom.Polygonal, bool) {
	switch t := p.(type) {
	case geom.Polygon:
		r, changed := Repair(t)
		if len(r) == 0 {
			return nil, true
		}
		return r, changed
	case geom.MultiPolygon:
		var out geom.MultiPolygon
		changed := false
		for _, poly := range t {
			r, c := Repair(poly)
			changed = changed || c
			if len(r) > 0 {
				out = append(out, r)
			}
		}
		if len(out) == 0 {
			return nil, true
		}
		return out, changed
	}
	return p, false
}

// cleanRing closes ring and removes consecutive duplicate vertices. It
// returns nil if the ring is degenerate.
func cleanRing(ring []geom.Point) ([]geom.Point, bool) {
	if len(ring) == 0 {
		return nil, true
	}
	out := make([]geom.Point, 0, len(ring)+1)
	changed := false
	for i, pt := range ring {
		if i > 0 && pt.Equals(out[len(out)-1]) {
			changed = true
			continue
		}
		out = append(out, pt)
	}
	if !out[0].Equals(out[len(out)-1]) {
		out = append(out, out[0])
		changed = true
	}
	if len(out) < 4 || ringArea(out) == 0 {
		return nil, true
	}
	return out, changed
}

// ringArea returns the absolute area of a closed ring.
func ringArea(ring []geom.Point) float64 {
	a := 0.0
	for i := 0; i < len(ring)-1; i++ {
		a += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	if a < 0 {
		a = -a
	}
	return a / 2
}

type segment struct {
	a, b geom.Point
}

func (s segment) minX() float64 {
	if s.a.X < s.b.X {
		return s.a.X
	}
	return s.b.X
}

func (s segment) maxX() float64 {
	if s.a.X > s.b.X {
		return s.a.X
	}
	return s.b.X
}

// selfIntersects returns whether any two edges of p cross at a point
// interior to both. Edges are swept in order of their minimum x.
func selfIntersects(p geom.Polygon) bool {
	var segs []segment
	for _, ring := range p {
		for i := 0; i < len(ring)-1; i++ {
			segs = append(segs, segment{ring[i], ring[i+1]})
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].minX() < segs[j].minX() })
	for i, s := range segs {
		maxX := s.maxX()
		for _, t := range segs[i+1:] {
			if t.minX() > maxX {
				break
			}
			if crosses(s, t) {
				return true
			}
		}
	}
	return false
}

// crosses returns whether s and t properly intersect. Segments that only
// touch at an endpoint do not cross.
func crosses(s, t segment) bool {
	d1 := orient(t.a, t.b, s.a)
	d2 := orient(t.a, t.b, s.b)
	d3 := orient(s.a, s.b, t.a)
	d4 := orient(s.a, s.b, t.b)
	return d1*d2 < 0 && d3*d4 < 0
}

func orient(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
