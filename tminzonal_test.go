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

package tminzonal

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/artifact"
	"github.com/spatialmodel/tminzonal/internal/crs"
	"github.com/spatialmodel/tminzonal/raster"
)

const testTolerance = 1.e-10

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// testDistricts are four districts over the test raster: two that cover
// valid cells, one outside the raster and one over a nodata cell.
const testDistricts = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"UBIGEO":"120101","DEPARTAMENTO":"JUNIN","PROVINCIA":"HUANCAYO","DISTRITO":"HUANCAYO"},
 "geometry":{"type":"Polygon","coordinates":[[[-76,-14],[-74,-14],[-74,-12],[-76,-12],[-76,-14]]]}},
{"type":"Feature","properties":{"UBIGEO":"210101","DEPARTAMENTO":"PUNO","PROVINCIA":"PUNO","DISTRITO":"PUNO"},
 "geometry":{"type":"Polygon","coordinates":[[[-74,-15],[-72,-15],[-72,-13],[-74,-13],[-74,-15]]]}},
{"type":"Feature","properties":{"UBIGEO":"160101","DEPARTAMENTO":"LORETO","PROVINCIA":"MAYNAS","DISTRITO":"IQUITOS"},
 "geometry":{"type":"Polygon","coordinates":[[[-70,-13],[-69,-13],[-69,-12],[-70,-12],[-70,-13]]]}},
{"type":"Feature","properties":{"UBIGEO":"040101","DEPARTAMENTO":"AREQUIPA","PROVINCIA":"AREQUIPA","DISTRITO":"AREQUIPA"},
 "geometry":{"type":"Polygon","coordinates":[[[-76,-16],[-75,-16],[-75,-15],[-76,-15],[-76,-16]]]}}
]}
`

// writeTestInputs writes the test raster and the given boundaries
// to the default input layout under dir and returns a configuration
// that reads them.
func writeTestInputs(t *testing.T, dir, districts string) *Config {
	sr, err := crs.Parse("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	g := &raster.Grid{
		Width:     4,
		Height:    4,
		Transform: raster.Affine{-76, 1, 0, -12, 0, -1},
		NoData:    -9999,
		HasNoData: true,
		SR:        sr,
		EPSG:      4326,
		Data: []float64{
			8, 6, 4, 2,
			3, 1, -1, -3,
			-2, -4, -6, -8,
			-9999, 0, 5, 7,
		},
	}
	cfg := DefaultConfig()
	cfg.RasterDir = filepath.Join(dir, "raw", "raster")
	cfg.VectorDir = filepath.Join(dir, "raw", "vectors")
	cfg.OutputDir = filepath.Join(dir, "processed")
	cfg.MapDPI = 20
	cfg.HistDPI = 20
	for _, d := range []string{cfg.RasterDir, cfg.VectorDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := raster.EncodeGeoTIFF(&buf, g, &raster.EncodeOptions{Deflate: true}); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(cfg.RasterDir, "tmin_peru.tif"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(cfg.VectorDir, "distritos.geojson"), []byte(districts), 0644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "tminzonal")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	log := logrus.New()
	log.Out = buf
	log.Level = logrus.DebugLevel
	return log, buf
}

func readOutput(t *testing.T, path string) artifact.Table {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	tbl, err := artifact.ReadCSV(f)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func ubigeos(t artifact.Table) []string {
	var o []string
	for _, r := range t {
		if r.UBIGEO == nil {
			o = append(o, "")
			continue
		}
		o = append(o, *r.UBIGEO)
	}
	return o
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	cfg.XLSXFile = "tmin_zonal_distritos.xlsx"
	log, _ := testLogger()

	res, err := Run(ctx, cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Table) != 4 {
		t.Fatalf("rows: have %d, want 4", len(res.Table))
	}
	if have, want := ubigeos(res.Table), []string{"120101", "210101", "160101", "040101"}; !reflect.DeepEqual(have, want) {
		t.Errorf("row order: have %v, want %v", have, want)
	}

	want := []struct {
		count                      int
		mean, min, max, p10, index float64
		flag                       int
	}{
		{4, 4.5, 1, 8, 1.6, 3.4, 0},
		{4, -4.5, -8, -1, -7.4, 12.4, 1},
	}
	for i, w := range want {
		r := res.Table[i]
		if !r.Stats.Count.Valid || r.Stats.Count.Value != w.count {
			t.Errorf("row %d count: have %v, want %d", i, r.Stats.Count, w.count)
		}
		for _, c := range []struct {
			name  string
			have  float64
			valid bool
			want  float64
		}{
			{"mean", r.Stats.Mean.Value, r.Stats.Mean.Valid, w.mean},
			{"min", r.Stats.Min.Value, r.Stats.Min.Valid, w.min},
			{"max", r.Stats.Max.Value, r.Stats.Max.Valid, w.max},
			{"p10", r.Stats.P10.Value, r.Stats.P10.Valid, w.p10},
			{"risk_index", r.Risk.Index.Value, r.Risk.Index.Valid, w.index},
		} {
			if !c.valid || different(c.have, c.want, testTolerance) {
				t.Errorf("row %d %s: have %g (valid %v), want %g", i, c.name, c.have, c.valid, c.want)
			}
		}
		if !r.Risk.Flag.Valid || r.Risk.Flag.Value != w.flag {
			t.Errorf("row %d risk_flag: have %v, want %d", i, r.Risk.Flag, w.flag)
		}
	}
	for i := 2; i < 4; i++ {
		r := res.Table[i]
		if !r.Stats.IsNull() || r.Risk.Index.Valid || r.Risk.Flag.Valid {
			t.Errorf("row %d should be null: %+v", i, r)
		}
	}

	files := []string{cfg.TableFile, cfg.MapFile, cfg.HistogramFile, cfg.TopFile, cfg.BottomFile, cfg.XLSXFile}
	var wantOutputs []string
	for _, f := range files {
		wantOutputs = append(wantOutputs, filepath.Join(cfg.OutputDir, f))
	}
	if !reflect.DeepEqual(res.Outputs, wantOutputs) {
		t.Errorf("outputs: have %v, want %v", res.Outputs, wantOutputs)
	}
	for _, p := range wantOutputs {
		if fi, err := os.Stat(p); err != nil || fi.Size() == 0 {
			t.Errorf("output %s missing or empty: %v", p, err)
		}
	}

	if have := readOutput(t, filepath.Join(cfg.OutputDir, cfg.TableFile)); !reflect.DeepEqual(ubigeos(have), ubigeos(res.Table)) {
		t.Errorf("table file rows: have %v", ubigeos(have))
	}
	top := readOutput(t, filepath.Join(cfg.OutputDir, cfg.TopFile))
	if have, want := ubigeos(top), []string{"120101", "210101", "160101", "040101"}; !reflect.DeepEqual(have, want) {
		t.Errorf("warmest: have %v, want %v", have, want)
	}
	bottom := readOutput(t, filepath.Join(cfg.OutputDir, cfg.BottomFile))
	if have, want := ubigeos(bottom), []string{"210101", "120101", "160101", "040101"}; !reflect.DeepEqual(have, want) {
		t.Errorf("coldest: have %v, want %v", have, want)
	}
	wb, err := artifact.ReadXLSX(filepath.Join(cfg.OutputDir, cfg.XLSXFile))
	if err != nil {
		t.Fatal(err)
	}
	if have := ubigeos(wb); !reflect.DeepEqual(have, ubigeos(res.Table)) {
		t.Errorf("workbook rows: have %v", have)
	}
}

func TestRunDeterministic(t *testing.T) {
	ctx := context.Background()
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	log, _ := testLogger()

	read := func() map[string][]byte {
		o := make(map[string][]byte)
		for _, f := range []string{cfg.TableFile, cfg.TopFile, cfg.BottomFile} {
			b, err := ioutil.ReadFile(filepath.Join(cfg.OutputDir, f))
			if err != nil {
				t.Fatal(err)
			}
			o[f] = b
		}
		return o
	}
	first, err := Run(ctx, cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	a := read()
	second, err := Run(ctx, cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	b := read()
	for f := range a {
		if !bytes.Equal(a[f], b[f]) {
			t.Errorf("%s differs between runs:\n%s\n%s", f, a[f], b[f])
		}
	}
	if first.Fingerprint == "" || first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints: %q, %q", first.Fingerprint, second.Fingerprint)
	}
	if first.Settings != second.Settings {
		t.Errorf("settings hashes: %q, %q", first.Settings, second.Settings)
	}
	cfg.TopN = 1
	third, err := Run(ctx, cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	if third.Settings == first.Settings {
		t.Error("changing the settings should change their hash")
	}
}

func TestRunScaled(t *testing.T) {
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	cfg.ScaleFactor = 10
	log, _ := testLogger()
	res, err := Run(context.Background(), cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	r := res.Table[0]
	if r.Stats.Count.Value != 4 {
		t.Errorf("count should not be rescaled: %v", r.Stats.Count)
	}
	if different(r.Stats.Mean.Value, 0.45, testTolerance) {
		t.Errorf("mean: have %g, want 0.45", r.Stats.Mean.Value)
	}
	if different(r.Risk.Index.Value, 5-0.16, testTolerance) {
		t.Errorf("risk_index: have %g, want 4.84", r.Risk.Index.Value)
	}
}

func TestRunNoOverlap(t *testing.T) {
	dir := tempDir(t)
	districts := `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"UBIGEO":"160101"},
 "geometry":{"type":"Polygon","coordinates":[[[-70,-13],[-69,-13],[-69,-12],[-70,-12],[-70,-13]]]}}
]}`
	cfg := writeTestInputs(t, dir, districts)
	log, buf := testLogger()
	res, err := Run(context.Background(), cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Table) != 1 || !res.Table[0].Stats.IsNull() {
		t.Errorf("want a single null row, have %+v", res.Table)
	}
	if !strings.Contains(buf.String(), "skipping the histogram") {
		t.Errorf("missing histogram warning in log:\n%s", buf.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.HistogramFile)); !os.IsNotExist(err) {
		t.Errorf("histogram should not be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.MapFile)); err != nil {
		t.Errorf("map should still be written: %v", err)
	}
}

func TestRunBlobOutput(t *testing.T) {
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	remote := tempDir(t)
	cfg.OutputDir = "file://" + remote + "/salidas"
	cfg.VectorPath = "file://" + filepath.Join(cfg.VectorDir, "distritos.geojson")
	log, _ := testLogger()
	res, err := Run(context.Background(), cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	if want := cfg.OutputDir + "/" + cfg.TableFile; res.Outputs[0] != want {
		t.Errorf("first output: have %s, want %s", res.Outputs[0], want)
	}
	for _, f := range []string{cfg.TableFile, cfg.MapFile, cfg.HistogramFile, cfg.TopFile, cfg.BottomFile} {
		if _, err := os.Stat(filepath.Join(remote, "salidas", f)); err != nil {
			t.Errorf("uploaded %s: %v", f, err)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	log, _ := testLogger()

	t.Run("raster dir", func(t *testing.T) {
		c := *cfg
		c.RasterDir = filepath.Join(dir, "empty")
		if err := os.MkdirAll(c.RasterDir, 0755); err != nil {
			t.Fatal(err)
		}
		_, err := Run(context.Background(), &c, log)
		if !errors.Is(err, ErrNoInput) {
			t.Errorf("have %v, want ErrNoInput", err)
		}
	})
	t.Run("vector dir", func(t *testing.T) {
		c := *cfg
		c.VectorDir = filepath.Join(dir, "missing")
		_, err := Run(context.Background(), &c, log)
		if !errors.Is(err, ErrNoInput) {
			t.Errorf("have %v, want ErrNoInput", err)
		}
	})
	t.Run("raster path", func(t *testing.T) {
		c := *cfg
		c.RasterPath = filepath.Join(dir, "none.tif")
		if _, err := Run(context.Background(), &c, log); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("invalid config", func(t *testing.T) {
		c := *cfg
		c.ScaleFactor = 0
		if _, err := Run(context.Background(), &c, log); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestInspect(t *testing.T) {
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	s, err := Inspect(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 4 || s.Height != 4 || s.Valid != 15 || s.EPSG != 4326 {
		t.Errorf("summary: %+v", s)
	}
	if s.Min != -8 || s.Max != 8 {
		t.Errorf("range: have [%g, %g], want [-8, 8]", s.Min, s.Max)
	}
	if s.LikelyScaled() {
		t.Error("values within ±90 should not look scaled")
	}

	cfg.ScaleFactor = 2
	s, err = Inspect(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Min != -4 || s.Max != 4 || s.Valid != 15 {
		t.Errorf("scaled summary: %+v", s)
	}
}
