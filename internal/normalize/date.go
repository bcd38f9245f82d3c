package normalize

import (
	"strings"
	"time"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/model"
)

// dateLayouts are tried in order. The first is the staging storage format.
var dateLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate parses a source date in any accepted layout. An empty value is
// null and not an error.
func ParseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &etlerr.DateParseError{Value: v}
}

// SanitizeDate parses v, turning unparsable values into null and clamping
// anything before model.DateFloor to the floor.
func SanitizeDate(v string, st *Stats) *time.Time {
	t, err := ParseDate(v)
	if err != nil {
		st.DatesNulled++
		return nil
	}
	if t != nil && t.Before(model.DateFloor) {
		st.DatesClamped++
		floor := model.DateFloor
		return &floor
	}
	return t
}
