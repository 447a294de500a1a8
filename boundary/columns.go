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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category is a kind of administrative identifier.
type Category int

// Identifier categories, in output column order.
const (
	UBIGEO Category = iota
	Departamento
	Provincia
	Distrito
)

// Categories lists every Category in output column order.
var Categories = []Category{UBIGEO, Departamento, Provincia, Distrito}

// String returns the canonical column name of c.
func (c Category) String() string {
	switch c {
	case UBIGEO:
		return "UBIGEO"
	case Departamento:
		return "DEPARTAMENTO"
	case Provincia:
		return "PROVINCIA"
	case Distrito:
		return "DISTRITO"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory returns the Category whose canonical name is s.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(c.String(), s) {
			return c, true
		}
	}
	return 0, false
}

// DedupColumns makes column names unique by appending _1, _2, ... to
// repeated names, in order of appearance. For example
// ["A", "B", "A", "A"] becomes ["A", "B", "A_1", "A_2"].
func DedupColumns(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	seen := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		if !used[n] {
			out[i] = n
			used[n] = true
			continue
		}
		for {
			seen[n]++
			candidate := fmt.Sprintf("%s_%d", n, seen[n])
			if !taken[candidate] && !used[candidate] {
				out[i] = candidate
				used[candidate] = true
				break
			}
		}
	}
	return out
}

// Detection maps each identifier category to the source column it was
// found in. Categories that were not found are absent.
type Detection map[Category]string

// Columns returns the detected categories in output column order.
func (d Detection) Columns() []Category {
	var o []Category
	for _, c := range Categories {
		if _, ok := d[c]; ok {
			o = append(o, c)
		}
	}
	return o
}

var detectRules = []struct {
	cat     Category
	needles []string
}{
	{UBIGEO, []string{"UBIGEO"}},
	{Departamento, []string{"DEPART", "DEP"}},
	{Provincia, []string{"PROV"}},
	{Distrito, []string{"DIST"}},
}

// ubigeoFallbacks are exact (case-insensitive) names tried when no column
// contains "UBIGEO".
var ubigeoFallbacks = []string{"UBIGEO_DIST", "UBIGEO_DPT", "UBIGEO_PROV", "CODIGO", "IDUBIGEO"}

// DetectColumns finds the identifier columns among names. Each category
// takes the first column whose upper-cased name contains one of its
// keywords and that has not already been taken by an earlier category.
func DetectColumns(names []string) Detection {
	d := make(Detection)
	claimed := make(map[string]bool)
	for _, rule := range detectRules {
		col := ""
		for _, n := range names {
			if claimed[n] || n == "" {
				continue
			}
			u := strings.ToUpper(n)
			for _, needle := range rule.needles {
				if strings.Contains(u, needle) {
					col = n
					break
				}
			}
			if col != "" {
				break
			}
		}
		if col == "" && rule.cat == UBIGEO {
			col = fallback(names, claimed)
		}
		if col != "" {
			d[rule.cat] = col
			claimed[col] = true
		}
	}
	return d
}

func fallback(names []string, claimed map[string]bool) string {
	for _, f := range ubigeoFallbacks {
		for _, n := range names {
			if !claimed[n] && strings.EqualFold(n, f) {
				return n
			}
		}
	}
	return ""
}

// NormalizeText trims s, converts it to upper case and removes accents,
// so that "  Áncash " becomes "ANCASH".
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	o, _, err := transform.String(t, strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(s))
	}
	return o
}

// decodeText converts a DBF attribute to UTF-8. Attributes that are not
// valid UTF-8 are assumed to be ISO-8859-1, the encoding of most
// Peruvian government shapefiles.
func decodeText(s string) string {
	s = strings.TrimRight(s, "\x00 ")
	s = strings.TrimLeft(s, " ")
	if utf8.ValidString(s) {
		return s
	}
	o, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return o
}
