package result

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is a cell value: nil, string, int64 or float64.
type Value any

// Row maps column name to cell value. Every row of a Result has exactly
// the Result's columns as keys.
type Row map[string]Value

// Result is a materialized query result.
type Result struct {
	Columns []string
	Rows    []Row

	// Path is the file the result was read from, if any.
	Path string
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// HasColumn reports whether name is a declared column.
func (r *Result) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
// Returns nil if the column is not declared.
func (r *Result) Column(name string) []Value {
	if !r.HasColumn(name) {
		return nil
	}
	out := make([]Value, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row[name]
	}
	return out
}

// Record returns row i as a slice ordered like Columns.
func (r *Result) Record(i int) []Value {
	row := r.Rows[i]
	out := make([]Value, len(r.Columns))
	for j, c := range r.Columns {
		out[j] = row[c]
	}
	return out
}

// Validate checks that every row carries exactly the declared columns and
// only supported cell types.
func (r *Result) Validate() error {
	seen := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d: has %d cells, want %d", i, len(row), len(r.Columns))
		}
		for _, c := range r.Columns {
			v, ok := row[c]
			if !ok {
				return fmt.Errorf("row %d: missing column %q", i, c)
			}
			switch v.(type) {
			case nil, string, int64, float64:
			default:
				return fmt.Errorf("row %d: column %q: unsupported value type %T", i, c, v)
			}
		}
	}
	return nil
}

// EqualValues reports whether two cells are equal under string/number/null
// equivalence: numbers compare numerically whatever their Go type, numeric
// text equals the number it spells, and the empty string equals null.
func EqualValues(a, b Value) bool {
	return canonical(a) == canonical(b)
}

// EqualUnordered reports whether a and b have the same columns in the same
// order and the same multiset of rows.
func EqualUnordered(a, b *Result) bool {
	if len(a.Columns) != len(b.Columns) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}

	ka, kb := rowKeys(a), rowKeys(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

// rowKeys returns the sorted canonical keys of all rows.
func rowKeys(r *Result) []string {
	keys := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		parts := make([]string, len(r.Columns))
		for j, c := range r.Columns {
			parts[j] = strconv.Quote(canonical(row[c]))
		}
		keys[i] = strings.Join(parts, ",")
	}
	sort.Strings(keys)
	return keys
}

const nullKey = "\x00null"

// canonical returns a comparison key for a cell.
func canonical(v Value) string {
	switch val := v.(type) {
	case nil:
		return nullKey
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		if val == "" {
			return nullKey
		}
		if parsed := parseCell(val); parsed != nil {
			if _, isString := parsed.(string); !isString {
				return canonical(parsed)
			}
		}
		return "s:" + val
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
