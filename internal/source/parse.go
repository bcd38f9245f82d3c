package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/fetcher"
)

// Row is one data record bound to its dataset schema.
type Row struct {
	b   *Binding
	rec fetcher.Record
}

// Line returns the source line the record starts on.
func (r Row) Line() int { return r.rec.Line }

func (r Row) column(target string) (Column, string) {
	i := r.b.schema.index(target)
	if i < 0 {
		// Programming error: decoders only ask for columns of their own schema.
		panic("source: column " + target + " not in schema " + string(r.b.schema.Dataset))
	}
	col := r.b.schema.Columns[i]
	pos := r.b.pos[i]
	if pos >= len(r.rec.Fields) {
		return col, ""
	}
	return col, strings.TrimSpace(r.rec.Fields[pos])
}

func (r Row) fail(col Column, value string, err error) error {
	return &etlerr.InputFormatError{
		Dataset: string(r.b.schema.Dataset),
		Line:    r.rec.Line,
		Column:  col.Source,
		Value:   value,
		Err:     err,
	}
}

// Text returns the trimmed value of a text column. A required column must be non-empty.
func (r Row) Text(target string) (string, error) {
	col, v := r.column(target)
	if v == "" && col.Required {
		return "", r.fail(col, v, eris.New("required value is empty"))
	}
	return v, nil
}

// Int parses an integer column.
func (r Row) Int(target string) (int64, error) {
	col, v := r.column(target)
	n, err := parseInt(v)
	if err != nil {
		return 0, r.fail(col, v, err)
	}
	return n, nil
}

// Float parses a decimal column.
func (r Row) Float(target string) (float64, error) {
	col, v := r.column(target)
	f, err := parseFloat(v)
	if err != nil {
		return 0, r.fail(col, v, err)
	}
	return f, nil
}

// parseInt accepts plain integers and integral decimals such as "2019.0",
// which spreadsheet exports produce for numeric id columns.
func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, eris.New("required value is empty")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, eris.Errorf("not an integer")
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, eris.Errorf("not an integer")
	}
	return int64(f), nil
}

// parseFloat accepts "1234.56", "1234,56" and "1.234,56". When both separators
// appear, the one occurring last is the decimal separator.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, eris.New("required value is empty")
	}
	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.New("not a number")
	}
	return f, nil
}
