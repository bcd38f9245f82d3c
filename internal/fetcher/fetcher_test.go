package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	body string
	got  string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.got = url
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestOpener_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001.csv")
	require.NoError(t, os.WriteFile(path, []byte("numCDA\n"), 0o644))

	o := &Opener{}
	rc, err := o.Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "numCDA\n", string(data))

	rc2, err := o.Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	rc2.Close()
}

func TestOpener_DispatchesByScheme(t *testing.T) {
	httpStub := &stubFetcher{body: "h"}
	ftpStub := &stubFetcher{body: "f"}
	o := &Opener{HTTP: httpStub, FTP: ftpStub}

	rc, err := o.Open(context.Background(), "https://dados.example.gov.br/cda/001.csv")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "https://dados.example.gov.br/cda/001.csv", httpStub.got)

	rc, err = o.Open(context.Background(), "ftp://ftp.example.gov.br/cda/002.csv")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "ftp://ftp.example.gov.br/cda/002.csv", ftpStub.got)
}

func TestOpener_Errors(t *testing.T) {
	o := &Opener{}
	_, err := o.Open(context.Background(), "https://example.com/x.csv")
	assert.Error(t, err)

	_, err = o.Open(context.Background(), "s3://bucket/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported location scheme")

	_, err = o.Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "001.csv"), Join("data", "001.csv"))
	assert.Equal(t, "https://host/dados/001.csv", Join("https://host/dados/", "001.csv"))
	assert.Equal(t, "ftp://host/pub/002.csv", Join("ftp://host/pub", "/002.csv"))
	assert.Equal(t, "/abs/001.csv", Join("data", "/abs/001.csv"))
	assert.Equal(t, "https://other/001.csv", Join("data", "https://other/001.csv"))
	assert.Equal(t, "001.csv", Join("", "001.csv"))
}

func TestIsXLSX(t *testing.T) {
	assert.True(t, IsXLSX("data/001.xlsx"))
	assert.True(t, IsXLSX("https://example.com/cda/001.XLSX?token=abc"))
	assert.False(t, IsXLSX("data/001.csv"))
	assert.False(t, IsXLSX("ftp://ftp.example.com/cda/001.csv"))
}
