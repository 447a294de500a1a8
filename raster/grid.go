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

// Package raster reads single-band gridded data sets (GeoTIFF and netCDF)
// into memory along with their georeferencing information.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Affine is an affine transform from pixel space (column, row) to
// spatial coordinates, in GDAL order:
//  x = a[0] + col*a[1] + row*a[2]
//  y = a[3] + col*a[4] + row*a[5]
// Pixel (0, 0) is the upper-left corner of the upper-left cell.
type Affine [6]float64

// Apply transforms the pixel-space location (col, row) to spatial coordinates.
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a[0] + col*a[1] + row*a[2], a[3] + col*a[4] + row*a[5]
}

// Invert returns the transform from spatial coordinates to pixel space.
func (a Affine) Invert() (Affine, error) {
	det := a[1]*a[5] - a[2]*a[4]
	if det == 0 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("raster: affine transform %v is not invertible", a)
	}
	return Affine{
		(a[2]*a[3] - a[0]*a[5]) / det,
		a[5] / det,
		-a[2] / det,
		(a[0]*a[4] - a[1]*a[3]) / det,
		-a[4] / det,
		a[1] / det,
	}, nil
}

// Center returns the spatial location of the center of cell (row, col).
func (a Affine) Center(row, col int) geom.Point {
	x, y := a.Apply(float64(col)+0.5, float64(row)+0.5)
	return geom.Point{X: x, Y: y}
}

// Index returns the row and column of the cell containing (x, y). The
// result may lie outside the grid.
func (a Affine) Index(x, y float64) (row, col int, err error) {
	inv, err := a.Invert()
	if err != nil {
		return 0, 0, err
	}
	c, r := inv.Apply(x, y)
	return int(math.Floor(r)), int(math.Floor(c)), nil
}

// Grid is a single raster band held in memory.
type Grid struct {
	Width, Height int
	Transform     Affine

	// NoData is the sentinel value for missing cells; it is only
	// meaningful when HasNoData is true. NaN cells are always missing.
	NoData    float64
	HasNoData bool

	// SR is the spatial reference of the grid, or nil if unknown.
	SR *proj.SR
	// EPSG is the EPSG code the spatial reference was derived from,
	// or 0 if none was found.
	EPSG int

	// Data holds the cell values in row-major order, starting at the
	// upper-left cell.
	Data []float64
}

// At returns the value of cell (row, col).
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Width+col]
}

// IsNoData returns whether v represents a missing value.
func (g *Grid) IsNoData(v float64) bool {
	if math.IsNaN(v) {
		return true
	}
	return g.HasNoData && v == g.NoData
}

// Bounds returns the spatial extent of the grid.
func (g *Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for _, c := range [][2]float64{{0, 0}, {float64(g.Width), 0},
		{0, float64(g.Height)}, {float64(g.Width), float64(g.Height)}} {
		x, y := g.Transform.Apply(c[0], c[1])
		b.Extend(geom.NewBoundsPoint(geom.Point{X: x, Y: y}))
	}
	return b
}

// Window returns the range of rows [r0, r1) and columns [c0, c1) whose
// cells could have centers within b. ok is false if the window is empty.
func (g *Grid) Window(b *geom.Bounds) (r0, r1, c0, c1 int, ok bool) {
	inv, err := g.Transform.Invert()
	if err != nil {
		return 0, 0, 0, 0, false
	}
	minRow, minCol := math.Inf(1), math.Inf(1)
	maxRow, maxCol := math.Inf(-1), math.Inf(-1)
	for _, p := range []geom.Point{b.Min, b.Max, {X: b.Min.X, Y: b.Max.Y}, {X: b.Max.X, Y: b.Min.Y}} {
		col, row := inv.Apply(p.X, p.Y)
		minRow, maxRow = math.Min(minRow, row), math.Max(maxRow, row)
		minCol, maxCol = math.Min(minCol, col), math.Max(maxCol, col)
	}
	if math.IsNaN(minRow) || math.IsNaN(minCol) || math.IsInf(minRow, 0) ||
		math.IsInf(minCol, 0) || math.IsInf(maxRow, 0) || math.IsInf(maxCol, 0) {
		return 0, 0, 0, 0, false
	}
	// A cell center (i+0.5) lies in [min, max] when
	// ceil(min-0.5) <= i <= floor(max-0.5). Clamping happens before the
	// conversion to int, which would overflow for very distant bounds.
	h, w := float64(g.Height), float64(g.Width)
	r0 = int(clamp(math.Ceil(minRow-0.5), 0, h))
	r1 = int(clamp(math.Floor(maxRow-0.5)+1, 0, h))
	c0 = int(clamp(math.Ceil(minCol-0.5), 0, w))
	c1 = int(clamp(math.Floor(maxCol-0.5)+1, 0, w))
	return r0, r1, c0, c1, r0 < r1 && c0 < c1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Valid returns the values of all cells that are not missing.
func (g *Grid) Valid() []float64 {
	o := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			o = append(o, v)
		}
	}
	return o
}

// Scale returns a copy of g with every valid cell divided by factor.
func (g *Grid) Scale(factor float64) *Grid {
	o := *g
	o.Data = make([]float64, len(g.Data))
	for i, v := range g.Data {
		if g.IsNoData(v) {
			o.Data[i] = v
			continue
		}
		o.Data[i] = v / factor
	}
	return &o
}
