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
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
	"github.com/spatialmodel/tminzonal/boundary"
	"github.com/spatialmodel/tminzonal/zonal"
)

func strp(s string) *string { return &s }

func row(ubigeo string, mean float64) Row {
	return Row{
		UBIGEO: strp(ubigeo),
		Stats:  zonal.Stats{Count: zonal.SomeInt(1), Mean: zonal.Some(mean)},
	}
}

func testTable() Table {
	return Table{
		{
			UBIGEO:       strp("010101"),
			Departamento: strp("AMAZONAS"),
			Provincia:    strp("CHACHAPOYAS"),
			Distrito:     strp("CHACHAPOYAS"),
			Stats: zonal.Stats{
				Count: zonal.SomeInt(5),
				Mean:  zonal.Some(-1),
				Min:   zonal.Some(-5),
				Max:   zonal.Some(3),
				Std:   zonal.Some(2.5),
				P10:   zonal.Some(-4.2),
				P90:   zonal.Some(2.2),
			},
			Risk: zonal.Risk{Index: zonal.Some(9.2), Flag: zonal.SomeInt(1)},
		},
		{
			UBIGEO:   strp("150101"),
			Distrito: strp("LIMA, CERCADO"),
		},
	}
}

const testCSV = `UBIGEO,DEPARTAMENTO,PROVINCIA,DISTRITO,count,mean,min,max,std,percentile_10,percentile_90,risk_index,risk_flag
010101,AMAZONAS,CHACHAPOYAS,CHACHAPOYAS,5,-1,-5,3,2.5,-4.2,2.2,9.2,1
150101,,,"LIMA, CERCADO",,,,,,,,,
`

func TestWriteCSV(t *testing.T) {
	var b bytes.Buffer
	if err := WriteCSV(&b, testTable()); err != nil {
		t.Fatal(err)
	}
	if b.String() != testCSV {
		t.Errorf("have\n%s\nwant\n%s", b.String(), testCSV)
	}
}

func TestReadCSV(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		have, err := ReadCSV(strings.NewReader(testCSV))
		if err != nil {
			t.Fatal(err)
		}
		want := testTable()
		// Absent identifiers are read back as empty strings.
		want[1].Departamento = strp("")
		want[1].Provincia = strp("")
		if !reflect.DeepEqual(have, want) {
			t.Errorf("have %# v\nwant %# v", pretty.Formatter(have), pretty.Formatter(want))
		}
	})
	t.Run("aliases", func(t *testing.T) {
		const in = "\ufeffDISTRITO,p90,p10,mean,extra\nLIMA,20.5,12,16.25,x\n"
		have, err := ReadCSV(strings.NewReader(in))
		if err != nil {
			t.Fatal(err)
		}
		want := Table{{
			Distrito: strp("LIMA"),
			Stats:    zonal.Stats{Mean: zonal.Some(16.25), P10: zonal.Some(12), P90: zonal.Some(20.5)},
		}}
		if !reflect.DeepEqual(have, want) {
			t.Errorf("have %# v\nwant %# v", pretty.Formatter(have), pretty.Formatter(want))
		}
	})
	t.Run("bad number", func(t *testing.T) {
		if _, err := ReadCSV(strings.NewReader("mean\nfrio\n")); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, err := ReadCSV(strings.NewReader("")); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestNewTable(t *testing.T) {
	recs := []boundary.Record{{UBIGEO: strp("010101")}, {UBIGEO: strp("010102")}}
	stats := []zonal.Stats{zonal.Compute([]float64{1, 2}), {}}
	tab, err := NewTable(recs, stats, zonal.ScoreAll(stats))
	if err != nil {
		t.Fatal(err)
	}
	if len(tab) != 2 || *tab[1].UBIGEO != "010102" || tab[1].Risk.Index.Valid {
		t.Errorf("unexpected table %# v", pretty.Formatter(tab))
	}
	if _, err := NewTable(recs, stats[:1], nil); err == nil {
		t.Error("expected a length mismatch error")
	}
}

func TestRank(t *testing.T) {
	tab := Table{
		row("a", 3),
		row("b", -2),
		{UBIGEO: strp("null")},
		row("c", 3),
		row("d", 7),
		row("e", -2),
	}
	ids := func(t Table) []string {
		var o []string
		for _, r := range t {
			o = append(o, *r.UBIGEO)
		}
		return o
	}
	tests := []struct {
		n          int
		descending bool
		want       []string
	}{
		{n: 3, descending: true, want: []string{"d", "a", "c"}},
		{n: 3, descending: false, want: []string{"b", "e", "a"}},
		{n: 15, descending: true, want: []string{"d", "a", "c", "b", "e", "null"}},
		{n: 15, descending: false, want: []string{"b", "e", "a", "c", "d", "null"}},
		{n: 0, descending: true, want: nil},
	}
	for _, test := range tests {
		t.Run(pretty.Sprint(test.n, test.descending), func(t *testing.T) {
			have := ids(Rank(tab, test.n, test.descending))
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}

	// Half the districts without a mean still fill both rankings.
	var half Table
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("%02d", i)
		if i%2 == 0 {
			half = append(half, row(id, float64(i)))
		} else {
			half = append(half, Row{UBIGEO: strp(id)})
		}
	}
	for _, descending := range []bool{true, false} {
		r := Rank(half, 15, descending)
		if len(r) != 15 {
			t.Errorf("descending=%v: have %d rows, want 15", descending, len(r))
			continue
		}
		for i, d := range r {
			if valid := i < 10; d.Stats.Mean.Valid != valid {
				t.Errorf("descending=%v: row %d mean valid = %v", descending, i, d.Stats.Mean.Valid)
			}
		}
		first, last := *r[0].UBIGEO, *r[9].UBIGEO
		if descending && (first != "18" || last != "00") || !descending && (first != "00" || last != "18") {
			t.Errorf("descending=%v: have ends %s and %s", descending, first, last)
		}
	}
}

func TestWriteRankingCSV(t *testing.T) {
	var b bytes.Buffer
	if err := WriteRankingCSV(&b, testTable()[:1]); err != nil {
		t.Fatal(err)
	}
	const want = `UBIGEO,DEPARTAMENTO,PROVINCIA,DISTRITO,mean,percentile_10,percentile_90,risk_index,risk_flag
010101,AMAZONAS,CHACHAPOYAS,CHACHAPOYAS,-1,-4.2,2.2,9.2,1
`
	if b.String() != want {
		t.Errorf("have\n%s\nwant\n%s", b.String(), want)
	}
}

func TestSummarize(t *testing.T) {
	tab := testTable()
	tab = append(tab, Row{
		Stats: zonal.Stats{Count: zonal.SomeInt(2), Mean: zonal.Some(3), P10: zonal.Some(1.8)},
		Risk:  zonal.Risk{Index: zonal.Some(3.2), Flag: zonal.SomeInt(0)},
	})
	k := Summarize(tab)
	want := KPIs{
		Districts: 3,
		MeanTmin:  zonal.Some(1),
		MeanP10:   zonal.Some(-1.2),
		Freezing:  1,
	}
	if k.Districts != want.Districts || k.Freezing != want.Freezing ||
		different(k.MeanTmin.Value, want.MeanTmin.Value, 1.e-10) ||
		different(k.MeanP10.Value, want.MeanP10.Value, 1.e-10) {
		t.Errorf("have %+v, want %+v", k, want)
	}
	if s := k.String(); !strings.Contains(s, "Distritos con Tmin<0°C: 1") {
		t.Errorf("unexpected summary %q", s)
	}
	if k := Summarize(nil); k.MeanTmin.Valid || k.Districts != 0 {
		t.Errorf("empty table: %+v", k)
	}
}

func TestXLSX(t *testing.T) {
	dir, err := ioutil.TempDir("", "tminzonal-artifact-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "tmin.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	tab := testTable()
	err = WriteXLSX(f,
		Sheet{Name: "distritos", Header: Header, Table: tab},
		Sheet{Name: "top15_alta", Header: RankingHeader, Table: Rank(tab, 15, true)},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	have, err := ReadXLSX(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(have) != 2 {
		t.Fatalf("have %d rows, want 2", len(have))
	}
	r := have[0]
	if *r.UBIGEO != "010101" || r.Stats.Count != zonal.SomeInt(5) || r.Risk.Flag != zonal.SomeInt(1) {
		t.Errorf("row 0: %# v", pretty.Formatter(r))
	}
	if different(r.Stats.P10.Value, -4.2, 1.e-10) {
		t.Errorf("p10: have %g, want -4.2", r.Stats.P10.Value)
	}
	if have[1].Stats.Mean.Valid {
		t.Errorf("row 1 mean should be null: %# v", pretty.Formatter(have[1]))
	}
}

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	return 2*(a-b)/(a+b) > tolerance || 2*(b-a)/(a+b) > tolerance
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}
