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
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/tminzonal/internal/crs"
)

// GeoKey identifiers.
const (
	gkModelType      = 1024
	gkRasterType     = 1025
	gkGeographicType = 2048
	gkProjectedType  = 3072

	modelProjected  = 1
	modelGeographic = 2
	rasterPixelArea = 1
	rasterPoint     = 2
)

// geoTIFF is an open GeoTIFF file. The pixel data is only read when
// ReadBand is called.
type geoTIFF struct {
	r      io.ReaderAt
	closer io.Closer
	ifd    *ifd
	layout *layout
	meta   Grid
}

// DecodeGeoTIFF reads the first band of the GeoTIFF in r.
func DecodeGeoTIFF(r io.ReaderAt) (*Grid, error) {
	t, err := newGeoTIFF(r, nil)
	if err != nil {
		return nil, err
	}
	return ReadGrid(t)
}

func newGeoTIFF(r io.ReaderAt, c io.Closer) (*geoTIFF, error) {
	d, err := readIFD(r)
	if err != nil {
		return nil, err
	}
	l, err := d.layout()
	if err != nil {
		return nil, err
	}
	t := &geoTIFF{r: r, closer: c, ifd: d, layout: l}
	t.meta.Width, t.meta.Height = l.width, l.height
	if t.meta.Transform, err = d.transform(); err != nil {
		return nil, err
	}
	if nd := strings.TrimSpace(d.ascii(tGDALNoData)); nd != "" {
		v, err := strconv.ParseFloat(nd, 64)
		if err != nil {
			return nil, fmt.Errorf("raster: invalid GDAL_NODATA value %q", nd)
		}
		t.meta.NoData, t.meta.HasNoData = v, true
	}
	if code := d.epsg(); code != 0 {
		t.meta.EPSG = code
		if def, ok := crs.Proj4(code); ok {
			if t.meta.SR, err = crs.Parse(def); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// geoKeys returns the GeoKey directory as a map from key ID to its
// SHORT value. Keys stored in other tags are omitted.
func (d *ifd) geoKeys() map[int]int {
	dir := d.ints(tGeoKeyDirectory)
	if len(dir) < 4 {
		return nil
	}
	keys := make(map[int]int)
	n := int(dir[3])
	for i := 0; i < n && 4*(i+2) <= len(dir); i++ {
		e := dir[4*(i+1) : 4*(i+2)]
		if e[1] == 0 && e[2] == 1 {
			keys[int(e[0])] = int(e[3])
		}
	}
	return keys
}

// epsg returns the EPSG code of the image's coordinate reference system,
// or 0 if it is user-defined or absent.
func (d *ifd) epsg() int {
	keys := d.geoKeys()
	for _, k := range []int{gkProjectedType, gkGeographicType} {
		if v, ok := keys[k]; ok && v > 0 && v != 32767 {
			return v
		}
	}
	return 0
}

// transform derives the pixel-to-model affine transform.
func (d *ifd) transform() (Affine, error) {
	var a Affine
	if m := d.floats(tModelTransformation); len(m) >= 16 {
		a = Affine{m[3], m[0], m[1], m[7], m[4], m[5]}
	} else {
		scale := d.floats(tModelPixelScale)
		tie := d.floats(tModelTiepoint)
		if len(scale) < 2 || len(tie) < 6 {
			// Without georeferencing, pixel space is the model space.
			return Affine{0, 1, 0, 0, 0, 1}, nil
		}
		a = Affine{
			tie[3] - tie[0]*scale[0], scale[0], 0,
			tie[4] + tie[1]*scale[1], 0, -scale[1],
		}
	}
	if d.geoKeys()[gkRasterType] == rasterPoint {
		// Tie points refer to pixel centers.
		a[0] -= 0.5*a[1] + 0.5*a[2]
		a[3] -= 0.5*a[4] + 0.5*a[5]
	}
	if a[1]*a[5]-a[2]*a[4] == 0 {
		return a, fmt.Errorf("raster: degenerate GeoTIFF transform %v", a)
	}
	return a, nil
}

func (t *geoTIFF) NoData() (float64, bool) { return t.meta.NoData, t.meta.HasNoData }
func (t *geoTIFF) Transform() Affine       { return t.meta.Transform }
func (t *geoTIFF) SR() *proj.SR            { return t.meta.SR }
func (t *geoTIFF) EPSG() int               { return t.meta.EPSG }
func (t *geoTIFF) Size() (int, int)        { return t.meta.Width, t.meta.Height }

// ReadBand reads the first band.
func (t *geoTIFF) ReadBand() ([]float64, error) {
	return t.layout.readBand(t.r, t.ifd.order)
}

func (t *geoTIFF) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// EncodeOptions control how a Grid is written as a GeoTIFF.
type EncodeOptions struct {
	// Deflate compresses the image data.
	Deflate bool
	// RowsPerStrip is the number of rows stored in each strip. If zero,
	// strips of roughly 8 KiB are used.
	RowsPerStrip int
}

// EncodeGeoTIFF writes g to w as a little-endian, single-band float64
// GeoTIFF.
func EncodeGeoTIFF(w io.Writer, g *Grid, opts *EncodeOptions) error {
	if opts == nil {
		opts = &EncodeOptions{}
	}
	if g.Width <= 0 || g.Height <= 0 || len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("raster: grid of size %dx%d has %d cells", g.Width, g.Height, len(g.Data))
	}
	order := binary.LittleEndian
	rps := opts.RowsPerStrip
	if rps <= 0 {
		rps = 8192 / (8 * g.Width)
		if rps < 1 {
			rps = 1
		}
	}
	if rps > g.Height {
		rps = g.Height
	}

	var img bytes.Buffer
	var offsets, counts []uint32
	row := make([]byte, 8*g.Width)
	for r0 := 0; r0 < g.Height; r0 += rps {
		r1 := r0 + rps
		if r1 > g.Height {
			r1 = g.Height
		}
		var strip bytes.Buffer
		var sw io.Writer = &strip
		var zw *zlib.Writer
		if opts.Deflate {
			zw = zlib.NewWriter(&strip)
			sw = zw
		}
		for r := r0; r < r1; r++ {
			for c := 0; c < g.Width; c++ {
				order.PutUint64(row[8*c:], math.Float64bits(g.Data[r*g.Width+c]))
			}
			if _, err := sw.Write(row); err != nil {
				return err
			}
		}
		if zw != nil {
			if err := zw.Close(); err != nil {
				return err
			}
		}
		offsets = append(offsets, uint32(8+img.Len()))
		counts = append(counts, uint32(strip.Len()))
		img.Write(strip.Bytes())
		if img.Len()%2 == 1 {
			img.WriteByte(0)
		}
	}

	compression := uint16(cNone)
	if opts.Deflate {
		compression = cDeflate
	}
	entries := []tiffEntry{
		shortEntry(tImageWidth, uint16(g.Width)),
		shortEntry(tImageLength, uint16(g.Height)),
		shortEntry(tBitsPerSample, 64),
		shortEntry(tCompression, compression),
		shortEntry(tPhotometric, 1),
		longEntry(tStripOffsets, offsets...),
		shortEntry(tSamplesPerPixel, 1),
		longEntry(tRowsPerStrip, uint32(rps)),
		longEntry(tStripByteCounts, counts...),
		shortEntry(tPlanarConfig, 1),
		shortEntry(tSampleFormat, sfFloat),
	}
	if g.Width > math.MaxUint16 || g.Height > math.MaxUint16 {
		entries[0] = longEntry(tImageWidth, uint32(g.Width))
		entries[1] = longEntry(tImageLength, uint32(g.Height))
	}
	a := g.Transform
	if a[2] == 0 && a[4] == 0 {
		entries = append(entries,
			doubleEntry(tModelPixelScale, a[1], -a[5], 0),
			doubleEntry(tModelTiepoint, 0, 0, 0, a[0], a[3], 0))
	} else {
		entries = append(entries, doubleEntry(tModelTransformation,
			a[1], a[2], 0, a[0],
			a[4], a[5], 0, a[3],
			0, 0, 0, 0,
			0, 0, 0, 1))
	}
	keys := []uint16{1, 1, 0, 2,
		gkModelType, 0, 1, modelProjected,
		gkRasterType, 0, 1, rasterPixelArea}
	if g.EPSG != 0 {
		key := uint16(gkProjectedType)
		if g.SR != nil && g.SR.Name == "longlat" {
			keys[7] = modelGeographic
			key = gkGeographicType
		}
		keys[3] = 3
		keys = append(keys, key, 0, 1, uint16(g.EPSG))
	} else if g.SR != nil && g.SR.Name == "longlat" {
		keys[7] = modelGeographic
	}
	entries = append(entries, shortEntry(tGeoKeyDirectory, keys...))
	if g.HasNoData {
		entries = append(entries, asciiEntry(tGDALNoData,
			strconv.FormatFloat(g.NoData, 'g', -1, 64)))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdOff := uint32(8 + img.Len())
	extra := ifdOff + uint32(2+12*len(entries)+4)
	var dir, ext bytes.Buffer
	b2 := make([]byte, 2)
	b4 := make([]byte, 4)
	order.PutUint16(b2, uint16(len(entries)))
	dir.Write(b2)
	for _, e := range entries {
		order.PutUint16(b2, e.tag)
		dir.Write(b2)
		order.PutUint16(b2, e.typ)
		dir.Write(b2)
		order.PutUint32(b4, e.count)
		dir.Write(b4)
		if len(e.data) <= 4 {
			v := make([]byte, 4)
			copy(v, e.data)
			dir.Write(v)
			continue
		}
		order.PutUint32(b4, extra+uint32(ext.Len()))
		dir.Write(b4)
		ext.Write(e.data)
		if ext.Len()%2 == 1 {
			ext.WriteByte(0)
		}
	}
	dir.Write([]byte{0, 0, 0, 0})

	hdr := []byte{'I', 'I', 42, 0, 0, 0, 0, 0}
	order.PutUint32(hdr[4:], ifdOff)
	for _, b := range [][]byte{hdr, img.Bytes(), dir.Bytes(), ext.Bytes()} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

type tiffEntry struct {
	tag, typ uint16
	count    uint32
	data     []byte
}

func shortEntry(tag uint16, v ...uint16) tiffEntry {
	b := make([]byte, 2*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint16(b[2*i:], x)
	}
	return tiffEntry{tag: tag, typ: dtShort, count: uint32(len(v)), data: b}
}

func longEntry(tag uint16, v ...uint32) tiffEntry {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[4*i:], x)
	}
	return tiffEntry{tag: tag, typ: dtLong, count: uint32(len(v)), data: b}
}

func doubleEntry(tag uint16, v ...float64) tiffEntry {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return tiffEntry{tag: tag, typ: dtDouble, count: uint32(len(v)), data: b}
}

func asciiEntry(tag uint16, s string) tiffEntry {
	b := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: dtASCII, count: uint32(len(b)), data: b}
}
