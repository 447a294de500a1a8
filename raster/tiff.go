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
	"io/ioutil"
	"math"
	"strings"

	"github.com/google/tiff"
	"golang.org/x/image/tiff/lzw"
)

// TIFF tags used when reading and writing GeoTIFF files.
const (
	tImageWidth      = 256
	tImageLength     = 257
	tBitsPerSample   = 258
	tCompression     = 259
	tPhotometric     = 262
	tStripOffsets    = 273
	tSamplesPerPixel = 277
	tRowsPerStrip    = 278
	tStripByteCounts = 279
	tPlanarConfig    = 284
	tPredictor       = 317
	tTileWidth       = 322
	tTileLength      = 323
	tTileOffsets     = 324
	tTileByteCounts  = 325
	tSampleFormat    = 339

	tModelPixelScale     = 33550
	tModelTiepoint       = 33922
	tModelTransformation = 34264
	tGeoKeyDirectory     = 34735
	tGeoDoubleParams     = 34736
	tGeoASCIIParams      = 34737
	tGDALNoData          = 42113
)

// TIFF field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtLong8     = 16
)

// Compression schemes.
const (
	cNone       = 1
	cLZW        = 5
	cDeflate    = 8
	cPackBits   = 32773
	cDeflateOld = 32946
)

// Sample formats.
const (
	sfUint  = 1
	sfInt   = 2
	sfFloat = 3
)

// field holds the raw value bytes of a tag in the file's byte order.
type field struct {
	typ   uint16
	count uint32
	raw   []byte
}

// ifd is a decoded TIFF image file directory.
type ifd struct {
	order  binary.ByteOrder
	fields map[uint16]field
}

// readIFD reads the first image file directory of the TIFF in r.
func readIFD(r io.ReaderAt) (*ifd, error) {
	t, err := tiff.Parse(io.NewSectionReader(r, 0, math.MaxInt64), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("raster: reading TIFF: %v", err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, fmt.Errorf("raster: TIFF file has no images")
	}
	d := &ifd{fields: make(map[uint16]field)}
	for _, f := range ifds[0].Fields() {
		v := f.Value()
		if d.order == nil {
			d.order = v.Order()
		}
		d.fields[f.Tag().ID()] = field{typ: f.Type().ID(), count: uint32(f.Count()), raw: v.Bytes()}
	}
	if d.order == nil {
		return nil, fmt.Errorf("raster: TIFF image has no tags")
	}
	return d, nil
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.fields[tag]
	return ok
}

// ints returns the values of an integer-valued tag.
func (d *ifd) ints(tag uint16) []int64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	o := make([]int64, f.count)
	for i := range o {
		switch f.typ {
		case dtByte, dtUndefined:
			o[i] = int64(f.raw[i])
		case dtSByte:
			o[i] = int64(int8(f.raw[i]))
		case dtShort:
			o[i] = int64(d.order.Uint16(f.raw[2*i:]))
		case dtSShort:
			o[i] = int64(int16(d.order.Uint16(f.raw[2*i:])))
		case dtLong:
			o[i] = int64(d.order.Uint32(f.raw[4*i:]))
		case dtSLong:
			o[i] = int64(int32(d.order.Uint32(f.raw[4*i:])))
		case dtLong8:
			o[i] = int64(d.order.Uint64(f.raw[8*i:]))
		default:
			return nil
		}
	}
	return o
}

// first returns the first value of an integer tag, or def if it is absent.
func (d *ifd) first(tag uint16, def int64) int64 {
	v := d.ints(tag)
	if len(v) == 0 {
		return def
	}
	return v[0]
}

// floats returns the values of a numeric tag as float64.
func (d *ifd) floats(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok {
		return nil
	}
	switch f.typ {
	case dtFloat:
		o := make([]float64, f.count)
		for i := range o {
			o[i] = float64(math.Float32frombits(d.order.Uint32(f.raw[4*i:])))
		}
		return o
	case dtDouble:
		o := make([]float64, f.count)
		for i := range o {
			o[i] = math.Float64frombits(d.order.Uint64(f.raw[8*i:]))
		}
		return o
	case dtRational, dtSRational:
		o := make([]float64, f.count)
		for i := range o {
			num := d.order.Uint32(f.raw[8*i:])
			den := d.order.Uint32(f.raw[8*i+4:])
			if f.typ == dtSRational {
				o[i] = float64(int32(num)) / float64(int32(den))
			} else {
				o[i] = float64(num) / float64(den)
			}
		}
		return o
	}
	ints := d.ints(tag)
	o := make([]float64, len(ints))
	for i, v := range ints {
		o[i] = float64(v)
	}
	return o
}

// ascii returns the value of an ASCII tag without trailing NULs.
func (d *ifd) ascii(tag uint16) string {
	f, ok := d.fields[tag]
	if !ok {
		return ""
	}
	return strings.TrimRight(string(f.raw), "\x00")
}

// layout describes how the samples of the first band are stored.
type layout struct {
	width, height   int
	bitsPerSample   int
	bytesPerSample  int
	samplesPerPixel int
	sampleFormat    int
	planar          int
	compression     int
	predictor       int

	tiled                 bool
	chunkWidth, chunkRows int
	offsets, byteCounts   []int64
}

func (d *ifd) layout() (*layout, error) {
	l := &layout{
		width:           int(d.first(tImageWidth, 0)),
		height:          int(d.first(tImageLength, 0)),
		samplesPerPixel: int(d.first(tSamplesPerPixel, 1)),
		sampleFormat:    int(d.first(tSampleFormat, sfUint)),
		planar:          int(d.first(tPlanarConfig, 1)),
		compression:     int(d.first(tCompression, cNone)),
		predictor:       int(d.first(tPredictor, 1)),
	}
	if l.width <= 0 || l.height <= 0 {
		return nil, fmt.Errorf("raster: invalid TIFF dimensions %dx%d", l.width, l.height)
	}
	bps := d.ints(tBitsPerSample)
	if len(bps) == 0 {
		l.bitsPerSample = 1
	} else {
		l.bitsPerSample = int(bps[0])
		for _, b := range bps[1:] {
			if int(b) != l.bitsPerSample {
				return nil, fmt.Errorf("raster: mixed bits per sample %v are not supported", bps)
			}
		}
	}
	switch l.bitsPerSample {
	case 8, 16, 32, 64:
		l.bytesPerSample = l.bitsPerSample / 8
	default:
		return nil, fmt.Errorf("raster: %d bits per sample is not supported", l.bitsPerSample)
	}
	if l.sampleFormat == sfFloat && l.bitsPerSample < 32 {
		return nil, fmt.Errorf("raster: %d-bit floating point samples are not supported", l.bitsPerSample)
	}
	switch l.compression {
	case cNone, cLZW, cDeflate, cDeflateOld, cPackBits:
	default:
		return nil, fmt.Errorf("raster: TIFF compression scheme %d is not supported", l.compression)
	}

	if d.has(tTileWidth) {
		l.tiled = true
		l.chunkWidth = int(d.first(tTileWidth, 0))
		l.chunkRows = int(d.first(tTileLength, 0))
		l.offsets = d.ints(tTileOffsets)
		l.byteCounts = d.ints(tTileByteCounts)
	} else {
		l.chunkWidth = l.width
		l.chunkRows = int(d.first(tRowsPerStrip, int64(l.height)))
		if l.chunkRows > l.height || l.chunkRows <= 0 {
			l.chunkRows = l.height
		}
		l.offsets = d.ints(tStripOffsets)
		l.byteCounts = d.ints(tStripByteCounts)
	}
	if l.chunkWidth <= 0 || l.chunkRows <= 0 {
		return nil, fmt.Errorf("raster: invalid TIFF tile size %dx%d", l.chunkWidth, l.chunkRows)
	}
	if len(l.offsets) == 0 || len(l.offsets) != len(l.byteCounts) {
		return nil, fmt.Errorf("raster: TIFF has %d data offsets and %d byte counts",
			len(l.offsets), len(l.byteCounts))
	}
	return l, nil
}

// pixelStride is the number of bytes between consecutive first-band
// samples within a decompressed chunk.
func (l *layout) pixelStride() int {
	if l.planar == 2 {
		return l.bytesPerSample
	}
	return l.bytesPerSample * l.samplesPerPixel
}

// readBand decodes the first band of the image.
func (l *layout) readBand(r io.ReaderAt, order binary.ByteOrder) ([]float64, error) {
	across := (l.width + l.chunkWidth - 1) / l.chunkWidth
	down := (l.height + l.chunkRows - 1) / l.chunkRows
	if len(l.offsets) < across*down {
		return nil, fmt.Errorf("raster: TIFF has %d chunks but %d are needed",
			len(l.offsets), across*down)
	}
	out := make([]float64, l.width*l.height)
	stride := l.pixelStride()
	rowBytes := l.chunkWidth * stride
	for cy := 0; cy < down; cy++ {
		for cx := 0; cx < across; cx++ {
			i := cy*across + cx
			rows := l.chunkRows
			if !l.tiled && (cy+1)*l.chunkRows > l.height {
				rows = l.height - cy*l.chunkRows
			}
			buf, err := l.readChunk(r, l.offsets[i], l.byteCounts[i], rows*rowBytes)
			if err != nil {
				return nil, fmt.Errorf("raster: TIFF chunk %d: %v", i, err)
			}
			if err := l.undoPredictor(buf, rowBytes, order); err != nil {
				return nil, err
			}
			valueOrder := order
			if l.predictor == 3 {
				valueOrder = binary.BigEndian
			}
			for y := 0; y < rows; y++ {
				row := cy*l.chunkRows + y
				if row >= l.height {
					break
				}
				for x := 0; x < l.chunkWidth; x++ {
					col := cx*l.chunkWidth + x
					if col >= l.width {
						break
					}
					off := y*rowBytes + x*stride
					out[row*l.width+col] = l.sample(buf[off:off+l.bytesPerSample], valueOrder)
				}
			}
		}
	}
	return out, nil
}

// readChunk reads and decompresses one strip or tile. want is the
// number of bytes the decompressed chunk must hold.
func (l *layout) readChunk(r io.ReaderAt, offset, count int64, want int) ([]byte, error) {
	raw := make([]byte, count)
	if _, err := r.ReadAt(raw, offset); err != nil && err != io.EOF {
		return nil, err
	}
	var buf []byte
	switch l.compression {
	case cNone:
		buf = raw
	case cLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer rc.Close()
		var err error
		if buf, err = ioutil.ReadAll(rc); err != nil {
			return nil, fmt.Errorf("lzw: %v", err)
		}
	case cDeflate, cDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("deflate: %v", err)
		}
		defer zr.Close()
		if buf, err = ioutil.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("deflate: %v", err)
		}
	case cPackBits:
		var err error
		if buf, err = unpackBits(raw); err != nil {
			return nil, err
		}
	}
	if len(buf) < want {
		return nil, fmt.Errorf("decompressed %d bytes but expected %d", len(buf), want)
	}
	return buf, nil
}

// unpackBits decodes PackBits run-length encoding.
func unpackBits(src []byte) ([]byte, error) {
	var dst []byte
	for i := 0; i < len(src); {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(src) {
				return nil, fmt.Errorf("packbits: literal run past end of data")
			}
			dst = append(dst, src[i:i+n+1]...)
			i += n + 1
		case n != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("packbits: repeat run past end of data")
			}
			for j := 0; j < 1-n; j++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	return dst, nil
}

// undoPredictor reverses horizontal differencing (predictor 2) or
// floating point byte-plane differencing (predictor 3) in place.
func (l *layout) undoPredictor(buf []byte, rowBytes int, order binary.ByteOrder) error {
	switch l.predictor {
	case 1:
		return nil
	case 2:
		spp := l.samplesPerPixel
		if l.planar == 2 {
			spp = 1
		}
		bps := l.bytesPerSample
		step := spp * bps
		for start := 0; start+rowBytes <= len(buf); start += rowBytes {
			row := buf[start : start+rowBytes]
			for i := step; i+bps <= len(row); i += bps {
				switch bps {
				case 1:
					row[i] += row[i-step]
				case 2:
					order.PutUint16(row[i:], order.Uint16(row[i:])+order.Uint16(row[i-step:]))
				case 4:
					order.PutUint32(row[i:], order.Uint32(row[i:])+order.Uint32(row[i-step:]))
				case 8:
					order.PutUint64(row[i:], order.Uint64(row[i:])+order.Uint64(row[i-step:]))
				}
			}
		}
		return nil
	case 3:
		spp := l.samplesPerPixel
		if l.planar == 2 {
			spp = 1
		}
		bps := l.bytesPerSample
		tmp := make([]byte, rowBytes)
		for start := 0; start+rowBytes <= len(buf); start += rowBytes {
			row := buf[start : start+rowBytes]
			for i := spp; i < len(row); i++ {
				row[i] += row[i-spp]
			}
			// The row now holds byte planes, most significant first;
			// interleave them back into big-endian values.
			copy(tmp, row)
			n := rowBytes / bps
			for k := 0; k < n; k++ {
				for b := 0; b < bps; b++ {
					row[k*bps+b] = tmp[b*n+k]
				}
			}
		}
		return nil
	}
	return fmt.Errorf("raster: TIFF predictor %d is not supported", l.predictor)
}

// sample converts the bytes of one sample to float64.
func (l *layout) sample(b []byte, order binary.ByteOrder) float64 {
	switch l.sampleFormat {
	case sfFloat:
		if l.bytesPerSample == 4 {
			return float64(math.Float32frombits(order.Uint32(b)))
		}
		return math.Float64frombits(order.Uint64(b))
	case sfInt:
		switch l.bytesPerSample {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(order.Uint16(b)))
		case 4:
			return float64(int32(order.Uint32(b)))
		default:
			return float64(int64(order.Uint64(b)))
		}
	default:
		switch l.bytesPerSample {
		case 1:
			return float64(b[0])
		case 2:
			return float64(order.Uint16(b))
		case 4:
			return float64(order.Uint32(b))
		default:
			return float64(order.Uint64(b))
		}
	}
}
