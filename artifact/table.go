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

// Package artifact assembles the per-district output table and writes it
// as CSV, spreadsheet, map and histogram artifacts.
package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spatialmodel/tminzonal/boundary"
	"github.com/spatialmodel/tminzonal/zonal"
	"gonum.org/v1/gonum/stat"
)

// Row is one district of the output table.
type Row struct {
	UBIGEO, Departamento, Provincia, Distrito *string

	Stats zonal.Stats
	Risk  zonal.Risk
}

// Identifier returns the value of identifier c, or nil if it is absent.
func (r *Row) Identifier(c boundary.Category) *string {
	switch c {
	case boundary.UBIGEO:
		return r.UBIGEO
	case boundary.Departamento:
		return r.Departamento
	case boundary.Provincia:
		return r.Provincia
	case boundary.Distrito:
		return r.Distrito
	}
	return nil
}

func (r *Row) setIdentifier(c boundary.Category, v string) {
	switch c {
	case boundary.UBIGEO:
		r.UBIGEO = &v
	case boundary.Departamento:
		r.Departamento = &v
	case boundary.Provincia:
		r.Provincia = &v
	case boundary.Distrito:
		r.Distrito = &v
	}
}

// Table holds one row per district, in boundary file order.
type Table []Row

// NewTable joins boundary records with their statistics and risk scores
// by position. The three slices must have the same length.
func NewTable(records []boundary.Record, stats []zonal.Stats, risks []zonal.Risk) (Table, error) {
	if len(records) != len(stats) || len(records) != len(risks) {
		return nil, fmt.Errorf("artifact: %d records, %d statistics and %d risk scores", len(records), len(stats), len(risks))
	}
	t := make(Table, len(records))
	for i, r := range records {
		t[i] = Row{
			UBIGEO:       r.UBIGEO,
			Departamento: r.Departamento,
			Provincia:    r.Provincia,
			Distrito:     r.Distrito,
			Stats:        stats[i],
			Risk:         risks[i],
		}
	}
	return t, nil
}

// Means returns the mean of each row.
func (t Table) Means() []zonal.Float {
	o := make([]zonal.Float, len(t))
	for i, r := range t {
		o[i] = r.Stats.Mean
	}
	return o
}

// Column names.
const (
	ColCount     = "count"
	ColMean      = "mean"
	ColMin       = "min"
	ColMax       = "max"
	ColStd       = "std"
	ColP10       = "percentile_10"
	ColP90       = "percentile_90"
	ColRiskIndex = "risk_index"
	ColRiskFlag  = "risk_flag"

	aliasP10 = "p10"
	aliasP90 = "p90"
)

// Header is the canonical column order of the combined table.
var Header = []string{
	"UBIGEO", "DEPARTAMENTO", "PROVINCIA", "DISTRITO",
	ColCount, ColMean, ColMin, ColMax, ColStd, ColP10, ColP90, ColRiskIndex, ColRiskFlag,
}

// RankingHeader is the column order of the ranking tables.
var RankingHeader = []string{
	"UBIGEO", "DEPARTAMENTO", "PROVINCIA", "DISTRITO",
	ColMean, ColP10, ColP90, ColRiskIndex, ColRiskFlag,
}

// value returns the text of column col in r. Null values and absent
// identifiers are empty.
func (r *Row) value(col string) string {
	if c, ok := boundary.ParseCategory(col); ok {
		if v := r.Identifier(c); v != nil {
			return *v
		}
		return ""
	}
	if f, ok := r.float(col); ok {
		return f.String()
	}
	if i, ok := r.integer(col); ok {
		return i.String()
	}
	return ""
}

// float returns the value of a floating point column.
func (r *Row) float(col string) (zonal.Float, bool) {
	switch col {
	case ColMean:
		return r.Stats.Mean, true
	case ColMin:
		return r.Stats.Min, true
	case ColMax:
		return r.Stats.Max, true
	case ColStd:
		return r.Stats.Std, true
	case ColP10:
		return r.Stats.P10, true
	case ColP90:
		return r.Stats.P90, true
	case ColRiskIndex:
		return r.Risk.Index, true
	}
	return zonal.Float{}, false
}

// integer returns the value of an integer column.
func (r *Row) integer(col string) (zonal.Int, bool) {
	switch col {
	case ColCount:
		return r.Stats.Count, true
	case ColRiskFlag:
		return r.Risk.Flag, true
	}
	return zonal.Int{}, false
}

// set parses s into column col of r. Unknown columns are ignored.
func (r *Row) set(col, s string) error {
	if c, ok := boundary.ParseCategory(col); ok {
		r.setIdentifier(c, s)
		return nil
	}
	var err error
	switch strings.ToLower(col) {
	case ColCount:
		r.Stats.Count, err = zonal.ParseInt(s)
	case ColMean:
		r.Stats.Mean, err = zonal.ParseFloat(s)
	case ColMin:
		r.Stats.Min, err = zonal.ParseFloat(s)
	case ColMax:
		r.Stats.Max, err = zonal.ParseFloat(s)
	case ColStd:
		r.Stats.Std, err = zonal.ParseFloat(s)
	case ColP10, aliasP10:
		r.Stats.P10, err = zonal.ParseFloat(s)
	case ColP90, aliasP90:
		r.Stats.P90, err = zonal.ParseFloat(s)
	case ColRiskIndex:
		r.Risk.Index, err = zonal.ParseFloat(s)
	case ColRiskFlag:
		r.Risk.Flag, err = zonal.ParseInt(s)
	}
	return err
}

// WriteCSV writes t with the canonical header. The output depends only
// on the contents of t.
func WriteCSV(w io.Writer, t Table) error {
	return writeCSV(w, t, Header)
}

// WriteRankingCSV writes a ranking table.
func WriteRankingCSV(w io.Writer, t Table) error {
	return writeCSV(w, t, RankingHeader)
}

func writeCSV(w io.Writer, t Table, header []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("artifact: writing CSV header: %v", err)
	}
	rec := make([]string, len(header))
	for i := range t {
		for j, col := range header {
			rec[j] = t[i].value(col)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("artifact: writing CSV row %d: %v", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("artifact: writing CSV: %v", err)
	}
	return nil
}

// ReadCSV reads a table written by WriteCSV or WriteRankingCSV. Columns
// may appear in any order, p10 and p90 are accepted for the percentile
// columns, and unknown columns are ignored.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("artifact: reading CSV: %v", err)
	}
	return tableFromRecords(recs)
}

func tableFromRecords(recs [][]string) (Table, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("artifact: table has no header")
	}
	header := recs[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := make(Table, 0, len(recs)-1)
	for i, rec := range recs[1:] {
		var row Row
		for j, col := range header {
			if j >= len(rec) {
				break
			}
			if err := row.set(strings.TrimSpace(col), rec[j]); err != nil {
				return nil, fmt.Errorf("artifact: row %d column %s: %v", i+1, col, err)
			}
		}
		t = append(t, row)
	}
	return t, nil
}

// Rank returns the first n rows of t sorted by mean, highest first if
// descending is true. Rows without a mean sort after all others in both
// orders and ties keep their table order, so the result always has
// min(n, len(t)) rows.
func Rank(t Table, n int, descending bool) Table {
	o := make(Table, len(t))
	copy(o, t)
	sort.SliceStable(o, func(i, j int) bool {
		a, b := o[i].Stats.Mean, o[j].Stats.Mean
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		if descending {
			return a.Value > b.Value
		}
		return a.Value < b.Value
	})
	if n >= 0 && n < len(o) {
		o = o[:n]
	}
	return o
}

// KPIs are the headline figures of a table.
type KPIs struct {
	// Districts is the number of rows.
	Districts int

	// MeanTmin is the average of the district means.
	MeanTmin zonal.Float

	// MeanP10 is the average of the district 10th percentiles.
	MeanP10 zonal.Float

	// Freezing is the number of districts with a risk flag of 1.
	Freezing int
}

// Summarize computes the KPIs of t. Null values are skipped.
func Summarize(t Table) KPIs {
	k := KPIs{Districts: len(t)}
	var means, p10s []float64
	for _, r := range t {
		if r.Stats.Mean.Valid {
			means = append(means, r.Stats.Mean.Value)
		}
		if r.Stats.P10.Valid {
			p10s = append(p10s, r.Stats.P10.Value)
		}
		if r.Risk.Flag.Valid && r.Risk.Flag.Value == 1 {
			k.Freezing++
		}
	}
	k.MeanTmin = average(means)
	k.MeanP10 = average(p10s)
	return k
}

func average(v []float64) zonal.Float {
	if len(v) == 0 {
		return zonal.Float{}
	}
	return zonal.Some(stat.Mean(v, nil))
}

func (k KPIs) String() string {
	f := func(v zonal.Float) string {
		if !v.Valid {
			return "n/a"
		}
		return fmt.Sprintf("%.2f °C", v.Value)
	}
	return fmt.Sprintf("Distritos: %d\nTmin media: %s\nP10 promedio: %s\nDistritos con Tmin<0°C: %d",
		k.Districts, f(k.MeanTmin), f(k.MeanP10), k.Freezing)
}
