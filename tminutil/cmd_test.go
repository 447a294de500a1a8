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

package tminutil

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/kr/pretty"
	"github.com/spatialmodel/tminzonal"
	"github.com/spatialmodel/tminzonal/artifact"
	"github.com/spatialmodel/tminzonal/internal/crs"
	"github.com/spatialmodel/tminzonal/raster"
)

const testDistricts = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"UBIGEO":"120101","DEPARTAMENTO":"Junín","PROVINCIA":"Huancayo","DISTRITO":"Huancayo"},
 "geometry":{"type":"Polygon","coordinates":[[[-76,-14],[-74,-14],[-74,-12],[-76,-12],[-76,-14]]]}},
{"type":"Feature","properties":{"UBIGEO":"120102","DEPARTAMENTO":"Junín","PROVINCIA":"Huancayo","DISTRITO":"Carhuacallanga"},
 "geometry":{"type":"Polygon","coordinates":[[[-76,-13],[-75,-13],[-75,-12],[-76,-12],[-76,-13]]]}}
]}`

// writeInputs writes a 2x2 raster and two districts under dir.
func writeInputs(t *testing.T, dir string) (rasterPath, vectorPath string) {
	sr, err := crs.Parse("EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	g := &raster.Grid{
		Width:     2,
		Height:    2,
		Transform: raster.Affine{-76, 1, 0, -12, 0, -1},
		SR:        sr,
		EPSG:      4326,
		Data:      []float64{-20, -10, 0, 10},
	}
	var buf bytes.Buffer
	if err := raster.EncodeGeoTIFF(&buf, g, nil); err != nil {
		t.Fatal(err)
	}
	rasterPath = filepath.Join(dir, "tmin.tif")
	if err := ioutil.WriteFile(rasterPath, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	vectorPath = filepath.Join(dir, "distritos.geojson")
	if err := ioutil.WriteFile(vectorPath, []byte(testDistricts), 0644); err != nil {
		t.Fatal(err)
	}
	return rasterPath, vectorPath
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "tminutil")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func execute(t *testing.T, cfg *Cfg, args ...string) string {
	var out bytes.Buffer
	cfg.Root.SetOut(&out)
	cfg.Root.SetErr(&out)
	cfg.Log.Out = ioutil.Discard
	cfg.Root.SetArgs(args)
	if err := cfg.Root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, InitializeConfig(), "version")
	if want := "tminzonal v" + tminzonal.Version + "\n"; out != want {
		t.Errorf("have %q, want %q", out, want)
	}
}

func TestDefaults(t *testing.T) {
	cfg := InitializeConfig()
	c, err := cfg.Config()
	if err != nil {
		t.Fatal(err)
	}
	if want := tminzonal.DefaultConfig(); len(pretty.Diff(c, want)) != 0 {
		t.Errorf("default configuration differs: %v", pretty.Diff(c, want))
	}
}

func TestRunCommand(t *testing.T) {
	dir := tempDir(t)
	rasterPath, vectorPath := writeInputs(t, dir)
	out := filepath.Join(dir, "processed")
	cfg := InitializeConfig()
	stdout := execute(t, cfg, "run",
		"--RasterPath="+rasterPath,
		"--VectorPath="+vectorPath,
		"--OutputDir="+out,
		"--Normalize",
		"--MapDPI=20",
		"--HistDPI=20",
	)
	if !strings.Contains(stdout, filepath.Join(out, "tmin_zonal_distritos.csv")) {
		t.Errorf("output paths not printed:\n%s", stdout)
	}
	b, err := ioutil.ReadFile(filepath.Join(out, "tmin_zonal_distritos.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(b), "\n")
	if len(lines) != 4 || lines[3] != "" {
		t.Fatalf("table should have a header and two rows:\n%s", b)
	}
	if want := strings.Join(artifact.Header, ","); lines[0] != want {
		t.Errorf("header: have %s, want %s", lines[0], want)
	}
	// The remaining statistics are checked in the pipeline tests.
	if !strings.HasPrefix(lines[1], "120101,JUNIN,HUANCAYO,HUANCAYO,4,-5,-20,10,") || !strings.HasSuffix(lines[1], ",1") {
		t.Errorf("row: %s", lines[1])
	}
	if want := "120102,JUNIN,HUANCAYO,CARHUACALLANGA,1,-20,-20,-20,0,-20,-20,25,1"; lines[2] != want {
		t.Errorf("row: have %s, want %s", lines[2], want)
	}

	summary := execute(t, InitializeConfig(), "summary", "--OutputDir="+out)
	if !strings.Contains(summary, "Distritos: 2") || !strings.Contains(summary, "Distritos con Tmin<0°C: 2") {
		t.Errorf("summary output:\n%s", summary)
	}
}

func TestInspectCommand(t *testing.T) {
	dir := tempDir(t)
	rasterPath, _ := writeInputs(t, dir)
	out := execute(t, InitializeConfig(), "inspect", "--RasterPath="+rasterPath)
	for _, want := range []string{"size:      2 x 2", "EPSG:4326", "min:       -20", "max:       10"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ScaleFactor") {
		t.Errorf("unexpected scaling note:\n%s", out)
	}
}

func TestPrepareCommand(t *testing.T) {
	dir := tempDir(t)
	_, vectorPath := writeInputs(t, dir)
	clean := filepath.Join(dir, "clean", "distritos.geojson")
	execute(t, InitializeConfig(), "prepare", "--VectorPath="+vectorPath, "--CleanFile="+clean)
	b, err := ioutil.ReadFile(clean)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"DEPARTAMENTO":"JUNIN"`) {
		t.Errorf("identifiers not normalized:\n%s", b)
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := tempDir(t)
	file := filepath.Join(dir, "config.toml")
	err := ioutil.WriteFile(file, []byte(`
TopN = 10
ScaleFactor = 10.0
OutputDir = "from_file"
MapDPI = 100
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("TMINZONAL_OUTPUTDIR", "from_env")
	os.Setenv("TMINZONAL_MAPDPI", "150")
	defer os.Unsetenv("TMINZONAL_OUTPUTDIR")
	defer os.Unsetenv("TMINZONAL_MAPDPI")

	cfg := InitializeConfig()
	out := execute(t, cfg, "config", "--config="+file, "--MapDPI=120")

	var c tminzonal.Config
	if _, err := toml.Decode(out, &c); err != nil {
		t.Fatalf("%v:\n%s", err, out)
	}
	want := tminzonal.DefaultConfig()
	want.TopN = 10              // file
	want.ScaleFactor = 10       // file
	want.OutputDir = "from_env" // environment beats file
	want.MapDPI = 120           // flag beats environment and file
	if len(pretty.Diff(&c, want)) != 0 {
		t.Errorf("configuration differs: %v", pretty.Diff(&c, want))
	}
}

func TestConfigInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"config", "--ScaleFactor=0"},
		{"config", "--log_level=loud"},
		{"config", "--config=" + filepath.Join(tempDir(t), "none.toml")},
	} {
		cfg := InitializeConfig()
		cfg.Log.Out = ioutil.Discard
		cfg.Root.SetOut(ioutil.Discard)
		cfg.Root.SetErr(ioutil.Discard)
		cfg.Root.SetArgs(args)
		if err := cfg.Root.Execute(); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}
