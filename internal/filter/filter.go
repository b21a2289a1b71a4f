// Package filter narrows datasource tables by column, value and set
// membership, and schedules those narrowings for live sessions.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"konan/internal/datasource"
)

var (
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownComparator = errors.New("unknown comparator")
	ErrInvalidPeriod     = errors.New("period must be a whole number of days >= 1")
)

type Comparator string

const (
	Ne Comparator = "!="
	Eq Comparator = "=="
	Lt Comparator = "<"
	Gt Comparator = ">"
	Le Comparator = "<="
	Ge Comparator = ">="
)

func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(strings.TrimSpace(s)); c {
	case Ne, Eq, Lt, Gt, Le, Ge:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownComparator, s)
	}
}

// Condition keeps rows whose Column compares to Value under Op.
type Condition struct {
	Column string     `json:"column"`
	Op     Comparator `json:"op"`
	Value  string     `json:"value"`
}

func (c Condition) String() string { return c.Column + " " + string(c.Op) + " " + c.Value }

// Match compares cell against the condition value. Both sides are compared
// as decimals when both parse, as text otherwise. An empty cell is a
// missing value and only satisfies !=.
func (c Condition) Match(cell string) bool {
	if cell == "" && c.Value != "" {
		return c.Op == Ne
	}
	var cmp int
	a, errA := decimal.NewFromString(strings.TrimSpace(cell))
	b, errB := decimal.NewFromString(strings.TrimSpace(c.Value))
	if errA == nil && errB == nil {
		cmp = a.Cmp(b)
	} else {
		cmp = strings.Compare(cell, c.Value)
	}
	switch c.Op {
	case Ne:
		return cmp != 0
	case Eq:
		return cmp == 0
	case Lt:
		return cmp < 0
	case Gt:
		return cmp > 0
	case Le:
		return cmp <= 0
	case Ge:
		return cmp >= 0
	}
	return false
}

// ParseCondition reads "column OP value", for example "price>=100" or
// "sector == tech". Two-character operators win over their one-character
// prefixes.
func ParseCondition(s string) (Condition, error) {
	for _, op := range []Comparator{Ne, Eq, Le, Ge, Lt, Gt} {
		i := strings.Index(s, string(op))
		if i < 0 {
			continue
		}
		col := strings.TrimSpace(s[:i])
		if col == "" {
			return Condition{}, fmt.Errorf("condition %q: missing column", s)
		}
		return Condition{Column: col, Op: op, Value: strings.TrimSpace(s[i+len(op):])}, nil
	}
	return Condition{}, fmt.Errorf("%w in %q", ErrUnknownComparator, s)
}

// Columns keeps (black=false) or drops (black=true) the named columns.
// Whitelisted columns must exist; blacklisting an absent column is a no-op.
func Columns(t datasource.Table, cols []string, black bool) (datasource.Table, error) {
	var keep []int
	if black {
		drop := map[string]bool{}
		for _, c := range cols {
			drop[c] = true
		}
		for i, c := range t.Columns {
			if !drop[c] {
				keep = append(keep, i)
			}
		}
	} else {
		for _, c := range cols {
			i := t.Index(c)
			if i < 0 {
				return datasource.Table{}, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
			}
			keep = append(keep, i)
		}
	}
	out := datasource.Table{Columns: make([]string, len(keep)), Rows: make([][]string, len(t.Rows))}
	for j, i := range keep {
		out.Columns[j] = t.Columns[i]
	}
	for r, row := range t.Rows {
		nr := make([]string, len(keep))
		for j, i := range keep {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// Values applies every condition in order; a row survives only if it
// matches all of them.
func Values(t datasource.Table, conds []Condition) (datasource.Table, error) {
	idx := make([]int, len(conds))
	for k, c := range conds {
		i := t.Index(c.Column)
		if i < 0 {
			return datasource.Table{}, fmt.Errorf("%w: %q", ErrUnknownColumn, c.Column)
		}
		if _, err := ParseComparator(string(c.Op)); err != nil {
			return datasource.Table{}, err
		}
		idx[k] = i
	}
	return keepRows(t, func(row []string) bool {
		for k, c := range conds {
			if !c.Match(row[idx[k]]) {
				return false
			}
		}
		return true
	}), nil
}

// Set keeps rows whose value in every listed column is a member of set.
func Set(t datasource.Table, cols []string, set []string) (datasource.Table, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		i := t.Index(c)
		if i < 0 {
			return datasource.Table{}, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		idx[k] = i
	}
	members := make(map[string]struct{}, len(set))
	for _, s := range set {
		members[s] = struct{}{}
	}
	return keepRows(t, func(row []string) bool {
		for _, i := range idx {
			if _, ok := members[row[i]]; !ok {
				return false
			}
		}
		return true
	}), nil
}

// TableFunc derives a table from another.
type TableFunc func(datasource.Table) (datasource.Table, error)

// Calc threads t through fns in order and stops at the first error.
func Calc(t datasource.Table, fns ...TableFunc) (datasource.Table, error) {
	var err error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if t, err = fn(t); err != nil {
			return datasource.Table{}, err
		}
	}
	return t, nil
}

func keepRows(t datasource.Table, keep func([]string) bool) datasource.Table {
	out := datasource.Table{Columns: t.Columns, Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
