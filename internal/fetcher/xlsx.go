package fetcher

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to stream.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// IsXLSX reports whether location names a spreadsheet workbook.
func IsXLSX(location string) bool {
	if i := strings.IndexAny(location, "?#"); i >= 0 && scheme(location) != "" {
		location = location[:i]
	}
	return strings.EqualFold(path.Ext(location), ".xlsx")
}

// StreamXLSX reads a workbook from r and sends the rows of one sheet to a
// channel, header row included, with 1-based row numbers as lines. The
// workbook is buffered in memory; the format cannot be parsed incrementally.
// Both channels are closed when processing completes.
func StreamXLSX(ctx context.Context, r io.Reader, opts XLSXOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		data, err := io.ReadAll(r)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: read workbook")
			return
		}
		f, err := xlsx.OpenBinary(data)
		if err != nil {
			errCh <- eris.Wrap(err, "xlsx: open workbook")
			return
		}

		sheet, err := getSheet(f, opts)
		if err != nil {
			errCh <- err
			return
		}

		for i, row := range sheet.Rows {
			if row == nil {
				continue
			}
			select {
			case recCh <- Record{Line: i + 1, Fields: rowToStrings(row)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
