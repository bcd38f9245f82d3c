// Package fetcher opens CDA source files from local disk, HTTP(S) or FTP and
// streams their delimited rows.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Opener resolves a source location to a readable stream.
type Opener struct {
	HTTP Fetcher // used for http:// and https://
	FTP  Fetcher // used for ftp://
}

// NewOpener builds an Opener with default HTTP and FTP fetchers.
func NewOpener(httpOpts HTTPOptions, ftpOpts FTPOptions) *Opener {
	return &Opener{
		HTTP: NewHTTPFetcher(httpOpts),
		FTP:  NewFTPFetcher(ftpOpts),
	}
}

// Open returns a reader for location. Locations without a URL scheme are
// treated as local file paths.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch scheme(location) {
	case "http", "https":
		if o.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher configured for %s", location)
		}
		return o.HTTP.Download(ctx, location)
	case "ftp":
		if o.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher configured for %s", location)
		}
		return o.FTP.Download(ctx, location)
	case "", "file":
		path := strings.TrimPrefix(location, "file://")
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		return f, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported location scheme in %q", location)
	}
}

// Join resolves name against base, which may be a directory or a URL prefix.
// An absolute path or a full URL in name is returned unchanged.
func Join(base, name string) string {
	if name == "" || base == "" || scheme(name) != "" || filepath.IsAbs(name) {
		return name
	}
	if s := scheme(base); s != "" && s != "file" {
		return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(name, "/")
	}
	return filepath.Join(strings.TrimPrefix(base, "file://"), name)
}

// scheme returns the lower-cased URL scheme of location, or "" for plain paths.
// Single-letter schemes are Windows drive letters, not URLs.
func scheme(location string) string {
	if !strings.Contains(location, "://") {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
