package source

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/fetcher"
)

// Options configures how source files are decoded.
type Options struct {
	CSV     fetcher.CSVOptions
	Charset string
	Sheet   string // worksheet name for .xlsx files, first sheet when empty
}

// Opener resolves a location to a readable stream.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Read streams r, binds the first record as header and decodes every
// following record in source order. The first decode error aborts the read.
// Files named *.xlsx are read as workbooks, everything else as delimited text.
func Read[T any](ctx context.Context, r io.Reader, schema Schema, opts Options, decode func(Row) (T, error)) ([]T, error) {
	// Cancel the producer when we stop early so it does not block on send.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		recCh <-chan fetcher.Record
		errCh <-chan error
	)
	if fetcher.IsXLSX(schema.File) {
		recCh, errCh = fetcher.StreamXLSX(runCtx, r, fetcher.XLSXOptions{SheetName: opts.Sheet})
	} else {
		decoded, err := fetcher.DecodeReader(r, opts.Charset)
		if err != nil {
			return nil, err
		}
		recCh, errCh = fetcher.StreamCSV(runCtx, decoded, opts.CSV)
	}

	var (
		binding *Binding
		out     []T
		rowErr  error
	)
	for rec := range recCh {
		if rowErr != nil {
			continue
		}
		if binding == nil {
			binding, rowErr = schema.Bind(rec.Fields)
			if rowErr != nil {
				cancel()
			}
			continue
		}
		if isBlank(rec.Fields) {
			continue
		}
		v, err := decode(Row{b: binding, rec: rec})
		if err != nil {
			rowErr = err
			cancel()
			continue
		}
		out = append(out, v)
	}

	streamErr := <-errCh
	if rowErr != nil {
		return nil, rowErr
	}
	if ctx.Err() != nil {
		return nil, eris.Wrapf(ctx.Err(), "source: read %s", schema.Dataset)
	}
	if streamErr != nil {
		return nil, &etlerr.InputFormatError{Dataset: string(schema.Dataset), Err: streamErr}
	}
	if binding == nil {
		return nil, &etlerr.InputFormatError{Dataset: string(schema.Dataset), Err: eris.New("missing header row")}
	}
	return out, nil
}

// isBlank reports whether a record has no non-empty field (trailing blank lines
// in spreadsheet exports).
func isBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// Source loads the CDA datasets from a base location.
type Source struct {
	Catalog *Catalog
	Opener  Opener
	Base    string
	Options Options
}

// Location returns the resolved location of a dataset file.
func (s *Source) Location(ds Dataset) (string, error) {
	schema, err := s.Catalog.Schema(ds)
	if err != nil {
		return "", err
	}
	return fetcher.Join(s.Base, schema.File), nil
}

// load opens the dataset file and decodes it with decode.
func load[T any](ctx context.Context, s *Source, ds Dataset, decode func(Row) (T, error)) ([]T, error) {
	schema, err := s.Catalog.Schema(ds)
	if err != nil {
		return nil, err
	}
	loc := fetcher.Join(s.Base, schema.File)

	rc, err := s.Opener.Open(ctx, loc)
	if err != nil {
		return nil, &etlerr.InputFormatError{Dataset: string(ds), Err: err}
	}
	defer rc.Close() //nolint:errcheck

	rows, err := Read(ctx, rc, schema, s.Options, decode)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("source: dataset read",
		zap.String("dataset", string(ds)),
		zap.String("location", loc),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}
