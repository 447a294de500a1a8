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
	"io"
	"math"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

var (
	latNames = []string{"lat", "latitude", "y"}
	lonNames = []string{"lon", "longitude", "x"}
)

// netCDF is a grid variable read from a netCDF classic file. The whole
// band is read when the file is opened.
type netCDF struct {
	g Grid
}

func (n *netCDF) NoData() (float64, bool)      { return n.g.NoData, n.g.HasNoData }
func (n *netCDF) Transform() Affine            { return n.g.Transform }
func (n *netCDF) SR() *proj.SR                 { return n.g.SR }
func (n *netCDF) EPSG() int                    { return n.g.EPSG }
func (n *netCDF) Size() (int, int)             { return n.g.Width, n.g.Height }
func (n *netCDF) ReadBand() ([]float64, error) { return append([]float64(nil), n.g.Data...), nil }
func (n *netCDF) Close() error                 { return nil }

// DecodeNetCDF reads the named variable from the netCDF file in r. If
// variable is empty, the first variable with latitude and longitude as
// its two innermost dimensions is used. Only the first element of any
// leading (for example time) dimensions is read, and rows are ordered
// north to south.
func DecodeNetCDF(r cdf.ReaderWriterAt, variable string) (*Grid, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("raster: opening netCDF: %v", err)
	}
	h := f.Header
	if variable == "" {
		if variable = gridVariable(h); variable == "" {
			return nil, fmt.Errorf("raster: no latitude/longitude variable found in netCDF file")
		}
	}
	dims := h.Dimensions(variable)
	if dims == nil {
		return nil, fmt.Errorf("raster: netCDF variable %q does not exist", variable)
	}
	if len(dims) < 2 {
		return nil, fmt.Errorf("raster: netCDF variable %q has %d dimensions; at least 2 are required",
			variable, len(dims))
	}
	latVar := coordVariable(h, dims[len(dims)-2], latNames)
	lonVar := coordVariable(h, dims[len(dims)-1], lonNames)
	if latVar == "" || lonVar == "" {
		return nil, fmt.Errorf("raster: netCDF variable %q is not on a latitude/longitude grid", variable)
	}
	lat, err := readFloats(f, latVar, nil, nil, h.Lengths(latVar)[0])
	if err != nil {
		return nil, err
	}
	lon, err := readFloats(f, lonVar, nil, nil, h.Lengths(lonVar)[0])
	if err != nil {
		return nil, err
	}
	ny, nx := len(lat), len(lon)
	if ny < 2 || nx < 2 {
		return nil, fmt.Errorf("raster: netCDF grid of %dx%d cells is too small to georeference", nx, ny)
	}

	begin := make([]int, len(dims))
	end := make([]int, len(dims))
	end[len(dims)-2], end[len(dims)-1] = ny-1, nx-1
	data, err := readFloats(f, variable, begin, end, nx*ny)
	if err != nil {
		return nil, err
	}

	fill, hasFill := attrFloat(h, variable, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(h, variable, "missing_value")
	}
	scale, ok := attrFloat(h, variable, "scale_factor")
	if !ok {
		scale = 1
	}
	offset, _ := attrFloat(h, variable, "add_offset")
	for i, v := range data {
		if hasFill && v == fill {
			data[i] = math.NaN()
			continue
		}
		data[i] = v*scale + offset
	}

	dx := (lon[nx-1] - lon[0]) / float64(nx-1)
	dy := (lat[ny-1] - lat[0]) / float64(ny-1)
	if dy > 0 {
		// Flip south-to-north files so that row 0 is northernmost.
		for r := 0; r < ny/2; r++ {
			a, b := data[r*nx:(r+1)*nx], data[(ny-1-r)*nx:(ny-r)*nx]
			for c := range a {
				a[c], b[c] = b[c], a[c]
			}
		}
		dy = -dy
	}
	north := math.Max(lat[0], lat[ny-1])

	sr, err := crs.Parse(crs.WGS84)
	if err != nil {
		return nil, err
	}
	return &Grid{
		Width:     nx,
		Height:    ny,
		Transform: Affine{lon[0] - dx/2, dx, 0, north - dy/2, 0, dy},
		NoData:    math.NaN(),
		HasNoData: true,
		SR:        sr,
		EPSG:      4326,
		Data:      data,
	}, nil
}

// gridVariable returns the first variable whose two innermost dimensions
// are latitude and longitude.
func gridVariable(h *cdf.Header) string {
	for _, v := range h.Variables() {
		dims := h.Dimensions(v)
		if len(dims) < 2 {
			continue
		}
		if hasName(dims[len(dims)-2], latNames) && hasName(dims[len(dims)-1], lonNames) {
			return v
		}
	}
	return ""
}

// coordVariable returns the 1-D coordinate variable for dimension dim.
func coordVariable(h *cdf.Header, dim string, names []string) string {
	candidates := append([]string{dim}, names...)
	for _, c := range candidates {
		for _, v := range h.Variables() {
			if strings.EqualFold(v, c) && len(h.Dimensions(v)) == 1 {
				return v
			}
		}
	}
	return ""
}

func hasName(s string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(s, n) {
			return true
		}
	}
	return false
}

// readFloats reads n values of variable v between the corners begin and
// end and converts them to float64.
func readFloats(f *cdf.File, v string, begin, end []int, n int) ([]float64, error) {
	r := f.Reader(v, begin, end)
	if r == nil {
		return nil, fmt.Errorf("raster: netCDF variable %q does not exist", v)
	}
	buf := f.Header.ZeroValue(v, n)
	nr, err := r.Read(buf)
	if err != nil && !(err == io.EOF && nr == n) {
		return nil, fmt.Errorf("raster: reading netCDF variable %q: %v", v, err)
	}
	o := make([]float64, n)
	switch b := buf.(type) {
	case []uint8:
		for i, x := range b {
			o[i] = float64(int8(x))
		}
	case []int16:
		for i, x := range b {
			o[i] = float64(x)
		}
	case []int32:
		for i, x := range b {
			o[i] = float64(x)
		}
	case []float32:
		for i, x := range b {
			o[i] = float64(x)
		}
	case []float64:
		copy(o, b)
	default:
		return nil, fmt.Errorf("raster: netCDF variable %q has unsupported type %T", v, buf)
	}
	return o, nil
}

// attrFloat returns the first value of a numeric attribute.
func attrFloat(h *cdf.Header, v, name string) (float64, bool) {
	switch a := h.GetAttribute(v, name).(type) {
	case []uint8:
		if len(a) > 0 {
			return float64(int8(a[0])), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	}
	return 0, false
}
