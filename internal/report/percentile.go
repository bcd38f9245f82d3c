// Package report computes the cumulative distribution of fact balances per
// tax family and exports it.
package report

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/sells-group/cda-warehouse/internal/model"
)

// Points are the percentiles the report shows: 1, 5, 10, ..., 100.
var Points = func() []int {
	p := []int{1}
	for i := 5; i <= 100; i += 5 {
		p = append(p, i)
	}
	return p
}()

// Point is one report row: the cumulative share of each bucket's total
// balance held by the certificates up to Percentil.
type Point struct {
	Percentil int
	Values    []float64 // one per bucket, in Table.Buckets order
}

// Table is the full report.
type Table struct {
	Buckets []string
	Points  []Point
}

// MarshalJSON renders the table as rows of {"Percentual": p, "<bucket>": v, ...}
// with keys in column order.
func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range t.Points {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"Percentual":`)
		buf.WriteString(strconv.Itoa(p.Percentil))
		for j, name := range t.Buckets {
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			buf.WriteByte(',')
			buf.Write(key)
			buf.WriteByte(':')
			buf.WriteString(strconv.FormatFloat(p.Values[j], 'f', -1, 64))
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Cumulative computes the report for rows. Rows whose natureza matches no
// bucket are ignored; when none match, the table has no points.
func Cumulative(rows []model.SaldoNatureza, buckets []Bucket) Table {
	t := Table{Buckets: make([]string, len(buckets))}
	for i, b := range buckets {
		t.Buckets[i] = b.Name
	}

	m := newMatcher(buckets)
	grouped := make([][]model.SaldoNatureza, len(buckets))
	matched := 0
	for _, r := range rows {
		if i := m.match(r.Natureza); i >= 0 {
			grouped[i] = append(grouped[i], r)
			matched++
		}
	}
	if matched == 0 {
		return t
	}

	curves := make([][]float64, len(buckets))
	for i, g := range grouped {
		curves[i] = curve(g)
	}

	t.Points = make([]Point, len(Points))
	for k, p := range Points {
		vals := make([]float64, len(buckets))
		for i := range buckets {
			vals[i] = curves[i][p]
		}
		t.Points[k] = Point{Percentil: p, Values: vals}
	}
	return t
}

// curve returns the cumulative percentage of the total balance at each
// percentile 1..100 (index 0 unused). Rows are ordered by balance, ties by
// num_cda, and the i-th of n rows falls in percentile floor(i*100/n)+1.
// The running total carries across percentiles with no rows, but those
// percentiles themselves report 0. A bucket with no rows or a zero total
// yields all zeros.
func curve(rows []model.SaldoNatureza) []float64 {
	out := make([]float64, 101)
	n := len(rows)
	if n == 0 {
		return out
	}

	sorted := make([]model.SaldoNatureza, n)
	copy(sorted, rows)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].ValorSaldo != sorted[b].ValorSaldo {
			return sorted[a].ValorSaldo < sorted[b].ValorSaldo
		}
		return sorted[a].NumCDA < sorted[b].NumCDA
	})

	var sums [101]float64
	var present [101]bool
	for i, r := range sorted {
		p := i*100/n + 1
		sums[p] += r.ValorSaldo
		present[p] = true
	}

	// Summed in percentile order so the last populated percentile is exactly 100.
	var total float64
	for p := 1; p <= 100; p++ {
		total += sums[p]
	}
	if total == 0 {
		return out
	}

	var running float64
	for p := 1; p <= 100; p++ {
		running += sums[p]
		if present[p] {
			out[p] = running / total * 100
		}
	}
	return out
}
