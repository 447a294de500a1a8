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

package boundary

import (
	"reflect"
	"testing"

	"github.com/kr/pretty"
)

func TestDedupColumns(t *testing.T) {
	tests := []struct {
		in, want []string
	}{
		{
			in:   []string{"A", "B", "A", "A"},
			want: []string{"A", "B", "A_1", "A_2"},
		},
		{
			in:   []string{"A", "A_1", "A"},
			want: []string{"A", "A_1", "A_2"},
		},
		{
			in:   []string{"UBIGEO", "NOMBDIST"},
			want: []string{"UBIGEO", "NOMBDIST"},
		},
		{
			in:   nil,
			want: []string{},
		},
	}
	for _, test := range tests {
		t.Run(pretty.Sprint(test.in), func(t *testing.T) {
			have := DedupColumns(test.in)
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want Detection
	}{
		{
			name: "inei",
			in:   []string{"OBJECTID", "UBIGEO", "DEPARTAMEN", "PROVINCIA", "DISTRITO", "AREA"},
			want: Detection{UBIGEO: "UBIGEO", Departamento: "DEPARTAMEN", Provincia: "PROVINCIA", Distrito: "DISTRITO"},
		},
		{
			name: "lower case",
			in:   []string{"ubigeo", "nombdep", "nombprov", "nombdist"},
			want: Detection{UBIGEO: "ubigeo", Departamento: "nombdep", Provincia: "nombprov", Distrito: "nombdist"},
		},
		{
			name: "contains",
			in:   []string{"IDUBIGEO_X", "CODIGO", "NOMBDIST"},
			want: Detection{UBIGEO: "IDUBIGEO_X", Distrito: "NOMBDIST"},
		},
		{
			name: "codigo",
			in:   []string{"codigo", "NOMBDIST"},
			want: Detection{UBIGEO: "codigo", Distrito: "NOMBDIST"},
		},
		{
			name: "claimed",
			in:   []string{"UBIGEO_DIST", "DIST"},
			want: Detection{UBIGEO: "UBIGEO_DIST", Distrito: "DIST"},
		},
		{
			name: "not reused",
			in:   []string{"UBIGEO_DIST", "NOMBDEP"},
			want: Detection{UBIGEO: "UBIGEO_DIST", Departamento: "NOMBDEP"},
		},
		{
			name: "none",
			in:   []string{"OBJECTID", "AREA"},
			want: Detection{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have := DetectColumns(test.in)
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %# v, want %# v", pretty.Formatter(have), pretty.Formatter(test.want))
			}
		})
	}
}

func TestDetectionColumns(t *testing.T) {
	d := Detection{Distrito: "D", UBIGEO: "U"}
	want := []Category{UBIGEO, Distrito}
	if have := d.Columns(); !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		have, ok := ParseCategory(c.String())
		if !ok || have != c {
			t.Errorf("%s: have %v, %v", c, have, ok)
		}
	}
	if _, ok := ParseCategory("region"); ok {
		t.Error("parsed unknown category")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"  Áncash ":     "ANCASH",
		"San Martín":    "SAN MARTIN",
		"Ñuñoa":         "NUNOA",
		"APURÍMAC":      "APURIMAC",
		"":              "",
		"Huánuco\t":     "HUANUCO",
		"madre de dios": "MADRE DE DIOS",
	}
	for in, want := range tests {
		if have := NormalizeText(in); have != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", in, have, want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "LIMA      ", want: "LIMA"},
		{in: "JUN\xcdN", want: "JUNÍN"}, // ISO-8859-1
		{in: "JUNÍN\x00\x00", want: "JUNÍN"},
		{in: "  CUSCO", want: "CUSCO"},
	}
	for _, test := range tests {
		if have := decodeText(test.in); have != test.want {
			t.Errorf("decodeText(%q) = %q, want %q", test.in, have, test.want)
		}
	}
}
