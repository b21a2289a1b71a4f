package datasource

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// layout describes how a vendor file is framed: rows to skip before the
// header and cell values that mean "missing".
type layout struct {
	name  string
	skip  int
	nulls []string
}

var (
	generalLayout = layout{name: "general"}

	// Keyword matching is case sensitive and first match wins.
	csvLayouts = []struct {
		keyword string
		layout  layout
	}{
		{"accern", layout{name: "accern", nulls: []string{"na"}}},
		{"IWM", layout{name: "ishares", skip: 10}},
	}
	sheetLayouts = []struct {
		keyword string
		layout  layout
	}{
		{"SPY", layout{name: "spdr", skip: 3}},
		{"MDY", layout{name: "spdr", skip: 3}},
	}
)

func csvLayoutFor(name string) layout {
	base := filepath.Base(name)
	for _, l := range csvLayouts {
		if strings.Contains(base, l.keyword) {
			return l.layout
		}
	}
	return generalLayout
}

func sheetLayoutFor(name string) layout {
	base := filepath.Base(name)
	for _, l := range sheetLayouts {
		if strings.Contains(base, l.keyword) {
			return l.layout
		}
	}
	return generalLayout
}

// readFunc decodes one file. limit <= 0 reads every row.
type readFunc func(r io.Reader, name string, limit int) (Table, error)

func readerFor(name string) (readFunc, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return readCSV, nil
	case ".json":
		return readJSON, nil
	case ".xlsx", ".xlsm":
		return readSheet, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func readCSV(r io.Reader, name string, limit int) (Table, error) {
	lay := csvLayoutFor(name)
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	for i := 0; i < lay.skip; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return Table{}, fmt.Errorf("%s: %w", name, ErrEmptyTable)
			}
			return Table{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("%s: %w", name, ErrEmptyTable)
		}
		return Table{}, fmt.Errorf("%s: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for limit <= 0 || len(rows) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%s: %w", name, err)
		}
		if blank(rec) {
			continue
		}
		rows = append(rows, lay.clean(rec))
	}
	return NewTable(header, rows), nil
}

func (l layout) clean(rec []string) []string {
	if len(l.nulls) == 0 {
		return rec
	}
	for i, v := range rec {
		for _, n := range l.nulls {
			if v == n {
				rec[i] = ""
			}
		}
	}
	return rec
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readJSON accepts an array of row objects or an object of columns, each
// column being an array or an index-keyed object. Key order is preserved.
func readJSON(r io.Reader, name string, limit int) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", name, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Table{}, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}

	var t Table
	switch data[0] {
	case '[':
		t, err = jsonRecords(data, limit)
	case '{':
		t, err = jsonColumns(data, limit)
	default:
		err = fmt.Errorf("%w: top-level JSON must be an array or object", ErrUnsupportedFormat)
	}
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func jsonRecords(data []byte, limit int) (Table, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Table{}, err
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	type record struct {
		keys []string
		vals map[string]json.RawMessage
	}
	recs := make([]record, len(raw))
	var cols []string
	pos := map[string]int{}
	for i, rec := range raw {
		keys, vals, err := orderedObject(rec)
		if err != nil {
			return Table{}, err
		}
		for _, k := range keys {
			if _, ok := pos[k]; !ok {
				pos[k] = len(cols)
				cols = append(cols, k)
			}
		}
		recs[i] = record{keys: keys, vals: vals}
	}
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		row := make([]string, len(cols))
		for _, k := range rec.keys {
			row[pos[k]] = jsonCell(rec.vals[k])
		}
		rows[i] = row
	}
	return Table{Columns: cols, Rows: rows}, nil
}

func jsonColumns(data []byte, limit int) (Table, error) {
	cols, vals, err := orderedObject(data)
	if err != nil {
		return Table{}, err
	}
	columns := make([][]string, len(cols))
	n := 0
	for i, c := range cols {
		cells, err := jsonColumn(vals[c])
		if err != nil {
			return Table{}, fmt.Errorf("column %q: %w", c, err)
		}
		columns[i] = cells
		if len(cells) > n {
			n = len(cells)
		}
	}
	if limit > 0 && n > limit {
		n = limit
	}
	rows := make([][]string, n)
	for r := range rows {
		rows[r] = make([]string, len(cols))
		for c := range cols {
			if r < len(columns[c]) {
				rows[r][c] = columns[c][r]
			}
		}
	}
	return Table{Columns: cols, Rows: rows}, nil
}

func jsonColumn(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		keys, vals, err := orderedObject(raw)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = jsonCell(vals[k])
		}
		return out, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		out[i] = jsonCell(v)
	}
	return out, nil
}

func orderedObject(raw []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected JSON object")
	}
	var keys []string
	vals := map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, seen := vals[key]; !seen {
			keys = append(keys, key)
		}
		vals[key] = v
	}
	return keys, vals, nil
}

func jsonCell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// readSheet reads the first worksheet of a workbook.
func readSheet(r io.Reader, name string, limit int) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", name, err)
	}
	lay := sheetLayoutFor(name)
	if len(all) <= lay.skip {
		return Table{}, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	header := all[lay.skip]
	var rows [][]string
	for _, rec := range all[lay.skip+1:] {
		if limit > 0 && len(rows) >= limit {
			break
		}
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return NewTable(header, rows), nil
}
