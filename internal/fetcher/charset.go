package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeReader wraps r so that bytes in the named charset are decoded to UTF-8.
// A leading UTF-8 byte order mark is dropped. Empty and "utf-8" charsets only
// strip the BOM.
func DecodeReader(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "charset: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
