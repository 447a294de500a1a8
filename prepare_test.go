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
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spatialmodel/tminzonal/boundary"
)

const accentedDistricts = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"UBIGEO":"120101","NOMBDEP":"Junín","NOMBPROV":"Huancayo","NOMBDIST":"Huancayo"},
 "geometry":{"type":"Polygon","coordinates":[[[-76,-14],[-74,-14],[-74,-12],[-76,-12],[-76,-14]]]}},
{"type":"Feature","properties":{"UBIGEO":"150101","NOMBDEP":"Lima","NOMBPROV":"Lima","NOMBDIST":" Jesús María "},
 "geometry":null}
]}`

func TestPrepare(t *testing.T) {
	ctx := context.Background()
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, accentedDistricts)
	log, buf := testLogger()

	for _, ext := range []string{".geojson", ".shp"} {
		t.Run(ext, func(t *testing.T) {
			out := filepath.Join(dir, "clean", "peru_distrital_simple"+ext)
			d, err := Prepare(ctx, cfg, out, log)
			if err != nil {
				t.Fatal(err)
			}
			if len(d.Records) != 1 {
				t.Fatalf("records: have %d, want 1", len(d.Records))
			}
			if have := *d.Records[0].Departamento; have != "JUNIN" {
				t.Errorf("departamento: have %q, want JUNIN", have)
			}
			back, err := boundary.Load(out, boundary.Options{Log: log})
			if err != nil {
				t.Fatal(err)
			}
			if len(back.Records) != 1 {
				t.Fatalf("reloaded records: have %d", len(back.Records))
			}
			r := back.Records[0]
			have := []string{*r.Departamento, *r.Provincia, *r.Distrito}
			if want := []string{"JUNIN", "HUANCAYO", "HUANCAYO"}; !reflect.DeepEqual(have, want) {
				t.Errorf("reloaded identifiers: have %v, want %v", have, want)
			}
		})
	}
	if !strings.Contains(buf.String(), "dropped features with empty geometry") {
		t.Errorf("missing empty geometry warning:\n%s", buf.String())
	}
	if _, err := Prepare(ctx, cfg, filepath.Join(dir, "clean", "x.gpkg"), log); err == nil {
		t.Error("expected an error for an unsupported output type")
	}
}

func TestSplitOutput(t *testing.T) {
	for _, test := range []struct{ path, dir, name string }{
		{"s3://bucket/clean/x.geojson", "s3://bucket/clean", "x.geojson"},
		{"file:///tmp/clean/x.shp", "file:///tmp/clean", "x.shp"},
		{filepath.Join("data", "clean", "x.geojson"), filepath.Join("data", "clean"), "x.geojson"},
	} {
		dir, name := splitOutput(test.path)
		if dir != test.dir || name != test.name {
			t.Errorf("%s: have (%s, %s), want (%s, %s)", test.path, dir, name, test.dir, test.name)
		}
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	dir := tempDir(t)
	cfg := writeTestInputs(t, dir, testDistricts)
	cfg.XLSXFile = "tabla.xlsx"
	log, _ := testLogger()
	if _, err := Run(ctx, cfg, log); err != nil {
		t.Fatal(err)
	}
	top := filepath.Join(cfg.OutputDir, cfg.TopFile)
	want, err := ioutil.ReadFile(top)
	if err != nil {
		t.Fatal(err)
	}

	for _, table := range []string{"", filepath.Join(cfg.OutputDir, cfg.XLSXFile)} {
		if err := os.Remove(top); err != nil {
			t.Fatal(err)
		}
		k, err := Summary(ctx, cfg, table, log)
		if err != nil {
			t.Fatal(err)
		}
		if k.Districts != 4 || k.Freezing != 1 {
			t.Errorf("%q: KPIs %+v", table, k)
		}
		if !k.MeanTmin.Valid || math.Abs(k.MeanTmin.Value) > testTolerance {
			t.Errorf("%q: mean Tmin %v, want 0", table, k.MeanTmin)
		}
		have, err := ioutil.ReadFile(top)
		if err != nil {
			t.Fatalf("%q: ranking not regenerated: %v", table, err)
		}
		if string(have) != string(want) {
			t.Errorf("%q: regenerated ranking differs:\n%s\nwant\n%s", table, have, want)
		}
	}

	if _, err := Summary(ctx, cfg, filepath.Join(dir, "none.csv"), log); err == nil {
		t.Error("expected an error for a missing table")
	}
}
