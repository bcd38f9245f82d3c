package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Bucket is one report column; a row belongs to it when its natureza
// descricao starts with Prefix.
type Bucket struct {
	Name   string `mapstructure:"name" json:"name"`
	Prefix string `mapstructure:"prefix" json:"prefix"`
}

// DefaultBuckets are the tax families of the municipal report.
var DefaultBuckets = []Bucket{
	{Name: "IPTU", Prefix: "IPTU"},
	{Name: "ISS", Prefix: "ISS"},
	{Name: "Taxas", Prefix: "Taxa"},
	{Name: "Multas", Prefix: "Multa"},
	{Name: "ITBI", Prefix: "ITBI"},
}

// fold lower-cases s and strips accents.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// matcher assigns a descricao to the bucket with the longest matching prefix.
type matcher struct {
	prefixes []string
}

func newMatcher(buckets []Bucket) *matcher {
	m := &matcher{prefixes: make([]string, len(buckets))}
	for i, b := range buckets {
		m.prefixes[i] = fold(b.Prefix)
	}
	return m
}

// match returns the bucket index for descricao, or -1.
func (m *matcher) match(descricao string) int {
	d := fold(descricao)
	best, bestLen := -1, -1
	for i, p := range m.prefixes {
		if p == "" || !strings.HasPrefix(d, p) {
			continue
		}
		if len(p) > bestLen {
			best, bestLen = i, len(p)
		}
	}
	return best
}
