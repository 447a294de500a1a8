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

package artifact

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/spatialmodel/tminzonal/zonal"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// MapOptions control the appearance of a choropleth map.
type MapOptions struct {
	Width, Height vg.Length
	DPI           int

	Title       string
	LegendLabel string

	// NullColor fills polygons without a value.
	NullColor color.NRGBA
}

// DefaultMapOptions returns the options of the district Tmin map.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Width:       7.5 * vg.Inch,
		Height:      9 * vg.Inch,
		DPI:         200,
		Title:       "Temperatura mínima media (Tmin) – Distritos",
		LegendLabel: "Tmin media (°C)",
		NullColor:   color.NRGBA{R: 211, G: 211, B: 211, A: 255},
	}
}

const (
	mapTitleHeight  = 0.5 * vg.Inch
	mapLegendHeight = 0.6 * vg.Inch
	mapPad          = 0.2 * vg.Inch
)

// Choropleth draws polys filled by their values as a PNG image, with a
// color legend below the map. Values are mapped with a diverging scale
// centered on zero. Polygons without a value are drawn in
// opts.NullColor.
func Choropleth(w io.Writer, polys []geom.Polygonal, values []zonal.Float, opts MapOptions) (err error) {
	if len(polys) != len(values) {
		return fmt.Errorf("artifact: %d polygons but %d values", len(polys), len(values))
	}
	b := geom.NewBounds()
	n := 0
	for _, p := range polys {
		if p != nil {
			b.Extend(p.Bounds())
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("artifact: no polygons to map")
	}
	if b.Max.X == b.Min.X {
		b.Min.X, b.Max.X = b.Min.X-0.5, b.Max.X+0.5
	}
	if b.Max.Y == b.Min.Y {
		b.Min.Y, b.Max.Y = b.Min.Y-0.5, b.Max.Y+0.5
	}

	// The color map panics on values outside its range.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("artifact: drawing map: %v", r)
		}
	}()

	var valid []float64
	legend := false
	for _, v := range values {
		if v.Valid {
			valid = append(valid, v.Value)
			legend = legend || v.Value != 0
		}
	}
	cmap := carto.NewColorMap(carto.Linear)
	cmap.NumDivisions = 8
	if len(valid) > 0 {
		cmap.AddArray(valid)
	}
	cmap.Set()

	c := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	dc := draw.New(c)
	dc.FillPolygon(color.White, []vg.Point{
		{X: dc.Min.X, Y: dc.Min.Y}, {X: dc.Max.X, Y: dc.Min.Y},
		{X: dc.Max.X, Y: dc.Max.Y}, {X: dc.Min.X, Y: dc.Max.Y},
	})

	titlec := draw.Crop(dc, 0, 0, opts.Height-mapTitleHeight, 0)
	legendc := draw.Crop(dc, opts.Width/6, -opts.Width/6, 0, -opts.Height+mapLegendHeight)
	mapc := draw.Crop(dc, mapPad, -mapPad, mapLegendHeight+mapPad, -mapTitleHeight)

	// Center the map in its panel.
	cw, ch := mapc.Max.X-mapc.Min.X, mapc.Max.Y-mapc.Min.Y
	scale := math.Min(float64(cw)/(b.Max.X-b.Min.X), float64(ch)/(b.Max.Y-b.Min.Y))
	dx := (cw - vg.Length(scale*(b.Max.X-b.Min.X))) / 2
	dy := (ch - vg.Length(scale*(b.Max.Y-b.Min.Y))) / 2
	mapc = draw.Crop(mapc, dx, -dx, dy, -dy)
	m := carto.NewCanvas(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, mapc)

	edge := draw.LineStyle{Color: color.Black, Width: vg.Points(0.1)}
	for i, p := range polys {
		if p == nil {
			continue
		}
		fill := opts.NullColor
		if values[i].Valid {
			fill = cmap.GetColor(values[i].Value)
		}
		if err := m.DrawVector(p, fill, edge, draw.GlyphStyle{}); err != nil {
			return fmt.Errorf("artifact: drawing polygon %d: %v", i, err)
		}
	}

	if legend {
		if err := cmap.Legend(&legendc, opts.LegendLabel); err != nil {
			return fmt.Errorf("artifact: drawing legend: %v", err)
		}
	}
	font, err := vg.MakeFont(cmap.Font, vg.Points(12))
	if err != nil {
		return fmt.Errorf("artifact: loading font: %v", err)
	}
	ts := draw.TextStyle{Color: color.Black, Font: font, XAlign: -0.5, YAlign: -0.5}
	titlec.FillText(ts, vg.Point{X: titlec.X(0.5), Y: titlec.Y(0.5)}, opts.Title)

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("artifact: writing map: %v", err)
	}
	return nil
}
