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

package zonal

import (
	"math"
	"strconv"
)

// Float is a float64 value that may be missing. The zero value is null.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a valid Float holding v. NaN values are stored as null.
func Some(v float64) Float {
	if math.IsNaN(v) {
		return Float{}
	}
	return Float{Value: v, Valid: true}
}

// String formats f with the shortest representation that round-trips,
// or returns an empty string if f is null.
func (f Float) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// ParseFloat is the inverse of Float.String.
func ParseFloat(s string) (Float, error) {
	if s == "" {
		return Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Float{}, err
	}
	return Some(v), nil
}

// Int is an int value that may be missing. The zero value is null.
type Int struct {
	Value int
	Valid bool
}

// SomeInt returns a valid Int holding v.
func SomeInt(v int) Int { return Int{Value: v, Valid: true} }

func (i Int) String() string {
	if !i.Valid {
		return ""
	}
	return strconv.Itoa(i.Value)
}

// ParseInt is the inverse of Int.String. Integral floats such as "3.0"
// are accepted because some table writers emit counts that way.
func ParseInt(s string) (Int, error) {
	if s == "" {
		return Int{}, nil
	}
	v, err := strconv.Atoi(s)
	if err == nil {
		return SomeInt(v), nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return Int{}, err
	}
	return SomeInt(int(f)), nil
}
