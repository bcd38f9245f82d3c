// Package normalize cleans the source datasets before they are staged.
//
// Every keep-first rule follows source file row order: the record that
// appears first in the file wins and later repeats are dropped.
package normalize

import (
	"go.uber.org/zap"
)

// Stats counts what a cleanup step did to one dataset.
type Stats struct {
	Dataset         string `json:"dataset"`
	RowsIn          int    `json:"rows_in"`
	RowsOut         int    `json:"rows_out"`
	Duplicates      int    `json:"duplicates"`
	DatesNulled     int    `json:"dates_nulled,omitempty"`
	DatesClamped    int    `json:"dates_clamped,omitempty"`
	DocumentsNulled int    `json:"documents_nulled,omitempty"`
}

// Fields returns the counters as zap fields.
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.String("dataset", s.Dataset),
		zap.Int("rows_in", s.RowsIn),
		zap.Int("rows_out", s.RowsOut),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("dates_nulled", s.DatesNulled),
		zap.Int("dates_clamped", s.DatesClamped),
		zap.Int("documents_nulled", s.DocumentsNulled),
	}
}

// keepFirst returns rows with later repeats of the same key removed.
func keepFirst[T any, K comparable](rows []T, key func(T) K) ([]T, int) {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(rows) - len(out)
}
