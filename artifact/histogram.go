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
	"sort"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/tminzonal/zonal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// HistOptions control the appearance of a histogram.
type HistOptions struct {
	Width, Height vg.Length
	DPI           int
	Bins          int

	Title, XLabel, YLabel string

	// KDE adds a kernel density estimate scaled to the bin counts.
	KDE bool
}

// DefaultHistOptions returns the options of the district Tmin histogram.
func DefaultHistOptions() HistOptions {
	return HistOptions{
		Width:  12 * vg.Inch,
		Height: 6 * vg.Inch,
		DPI:    300,
		Bins:   30,
		Title:  "Distribución de Temperatura Mínima Promedio (°C) en Distritos del Perú",
		XLabel: "Temperatura Mínima Promedio (°C)",
		YLabel: "Número de Distritos",
		KDE:    true,
	}
}

var (
	histFill    = color.NRGBA{R: 135, G: 206, B: 235, A: 255} // sky blue
	kdeColor    = color.NRGBA{R: 70, G: 130, B: 180, A: 255}
	meanColor   = color.NRGBA{R: 255, A: 255}
	medianColor = color.NRGBA{G: 128, A: 255}
)

// Histogram draws the distribution of values as a PNG image, with dashed
// vertical lines at their mean and median. Null values are skipped; it
// is an error if there are no valid values.
func Histogram(w io.Writer, values []zonal.Float, opts HistOptions) error {
	var v []float64
	for _, x := range values {
		if x.Valid {
			v = append(v, x.Value)
		}
	}
	if len(v) == 0 {
		return fmt.Errorf("artifact: no values for histogram")
	}
	if opts.Bins <= 0 {
		opts.Bins = 30
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	mean := floats.Sum(v) / float64(len(v))
	median := zonal.Percentile(sorted, 50)

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("artifact: creating plot: %v", err)
	}
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Legend.Top = true

	h, err := plotter.NewHist(plotter.Values(v), opts.Bins)
	if err != nil {
		return fmt.Errorf("artifact: binning histogram: %v", err)
	}
	h.FillColor = histFill
	h.LineStyle.Color = color.Black
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	ymax := 0.0
	for _, b := range h.Bins {
		ymax = math.Max(ymax, b.Weight)
	}

	if opts.KDE && len(h.Bins) > 0 {
		if xys := kde(sorted, h.Bins[0].Max-h.Bins[0].Min); xys != nil {
			l, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("artifact: density line: %v", err)
			}
			l.Color = kdeColor
			l.Width = vg.Points(1.5)
			p.Add(l)
		}
	}

	dashes := []vg.Length{vg.Points(6), vg.Points(3)}
	for _, ref := range []struct {
		x     float64
		c     color.Color
		label string
	}{
		{mean, meanColor, fmt.Sprintf("Media: %.2f°C", mean)},
		{median, medianColor, fmt.Sprintf("Mediana: %.2f°C", median)},
	} {
		l, err := plotter.NewLine(plotter.XYs{{X: ref.x, Y: 0}, {X: ref.x, Y: ymax * 1.05}})
		if err != nil {
			return fmt.Errorf("artifact: reference line: %v", err)
		}
		l.Color = ref.c
		l.Width = vg.Points(1.5)
		l.Dashes = dashes
		p.Add(l)
		p.Legend.Add(ref.label, l)
	}
	p.Y.Min = 0

	c := vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height), vgimg.UseDPI(opts.DPI))
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("artifact: writing histogram: %v", err)
	}
	return nil
}

// kdePoints is the number of points on the density curve.
const kdePoints = 200

// kde returns a Gaussian kernel density estimate of sorted over its range,
// scaled so that it is comparable to histogram counts with the given bin
// width. The bandwidth follows Scott's rule. It returns nil if the values
// have no spread.
func kde(sorted []float64, binWidth float64) plotter.XYs {
	n := len(sorted)
	if n < 2 {
		return nil
	}
	bw := stats.StatsSampleStandardDeviation(sorted) * math.Pow(float64(n), -0.2)
	if bw == 0 || math.IsNaN(bw) {
		return nil
	}
	lo, hi := sorted[0], sorted[n-1]
	xys := make(plotter.XYs, kdePoints)
	norm := binWidth / (bw * math.Sqrt(2*math.Pi))
	for i := range xys {
		x := lo + (hi-lo)*float64(i)/float64(kdePoints-1)
		y := 0.0
		for _, v := range sorted {
			z := (x - v) / bw
			y += math.Exp(-0.5 * z * z)
		}
		xys[i].X = x
		xys[i].Y = y * norm
	}
	return xys
}
