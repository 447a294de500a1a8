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
	"fmt"
	"io"

	"github.com/tealeg/xlsx"
)

// Sheet is one worksheet of a workbook.
type Sheet struct {
	Name   string
	Header []string
	Table  Table
}

// WriteXLSX writes the given sheets as a Microsoft Excel workbook.
// Statistics are stored as numbers and null values as empty cells.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.Name)
		if err != nil {
			return fmt.Errorf("artifact: adding sheet %s: %v", s.Name, err)
		}
		row := sh.AddRow()
		for _, col := range s.Header {
			row.AddCell().SetString(col)
		}
		for i := range s.Table {
			row := sh.AddRow()
			for _, col := range s.Header {
				setCell(row.AddCell(), &s.Table[i], col)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("artifact: writing workbook: %v", err)
	}
	return nil
}

func setCell(c *xlsx.Cell, r *Row, col string) {
	if f, ok := r.float(col); ok {
		if f.Valid {
			c.SetFloat(f.Value)
		}
		return
	}
	if i, ok := r.integer(col); ok {
		if i.Valid {
			c.SetInt(i.Value)
		}
		return
	}
	if v := r.value(col); v != "" {
		c.SetString(v)
	}
}

// ReadXLSX reads the first worksheet of the workbook at path as a table,
// with the same column rules as ReadCSV.
func ReadXLSX(path string) (Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: opening workbook: %v", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("artifact: workbook %s has no sheets", path)
	}
	s := f.Sheets[0]
	recs := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		recs[i] = make([]string, len(row.Cells))
		for j, c := range row.Cells {
			recs[i][j] = c.Value
		}
	}
	return tableFromRecords(recs)
}
