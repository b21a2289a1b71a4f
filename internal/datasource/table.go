package datasource

import "strconv"

// Table is a rectangular block of text cells. Every row has len(Columns)
// cells; missing values are empty strings.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable builds a table, padding or truncating rows to the column count.
// Repeated column names get a ".N" suffix ("a", "a.1", "a.2").
func NewTable(columns []string, rows [][]string) Table {
	t := Table{Columns: uniqueColumns(columns)}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.Rows = append(t.Rows, fit(r, len(columns)))
	}
	return t
}

func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func (t Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values.
func (t Table) Column(name string) ([]string, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Head returns the first n rows.
func (t Table) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Append concatenates o below t. The result carries the union of both
// column sets in first-seen order; cells absent from a source are empty.
func (t Table) Append(o Table) Table {
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		return NewTable(o.Columns, o.Rows)
	}
	t.Columns = uniqueColumns(t.Columns)
	o.Columns = uniqueColumns(o.Columns)
	cols := append([]string(nil), t.Columns...)
	for _, c := range o.Columns {
		if indexOf(cols, c) < 0 {
			cols = append(cols, c)
		}
	}
	out := Table{Columns: cols, Rows: make([][]string, 0, len(t.Rows)+len(o.Rows))}
	out.Rows = appendMapped(out.Rows, t, cols)
	out.Rows = appendMapped(out.Rows, o, cols)
	return out
}

func appendMapped(dst [][]string, src Table, cols []string) [][]string {
	pos := make([]int, len(src.Columns))
	for i, c := range src.Columns {
		pos[i] = indexOf(cols, c)
	}
	for _, row := range src.Rows {
		r := make([]string, len(cols))
		for i, v := range row {
			if i < len(pos) {
				r[pos[i]] = v
			}
		}
		dst = append(dst, r)
	}
	return dst
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

// uniqueColumns returns a copy of names with duplicates renamed to
// name.1, name.2 and so on, skipping suffixes already taken.
func uniqueColumns(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	counts := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		name := n
		if used[name] {
			for {
				counts[n]++
				name = n + "." + strconv.Itoa(counts[n])
				if !seen[name] && !used[name] {
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}
