package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/model"
)

// TableOptions selects how a tabular file is parsed. The format is chosen by
// file extension: .xlsx is read with the XLSX parser, everything else as CSV.
type TableOptions struct {
	Sheet     string
	Delimiter rune
	Charset   string
}

// Table is a parsed file: a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a CSV or XLSX file whose first row is the header.
func ReadTable(ctx context.Context, path string, opts TableOptions) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := ReadXLSX(path, XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, err
		}
		return newTable(rows), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open file")
	}
	defer f.Close() //nolint:errcheck

	return readCSVTable(ctx, f, filepath.Base(path), opts)
}

// ReadTableFrom reads a table from r. name only selects the parser by its
// extension and labels errors.
func ReadTableFrom(ctx context.Context, r io.Reader, name string, opts TableOptions) (*Table, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrapf(err, "table: read %s", name)
		}
		rows, err := ReadXLSXBytes(data, XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, err
		}
		return newTable(rows), nil
	}
	return readCSVTable(ctx, r, name, opts)
}

func readCSVTable(ctx context.Context, r io.Reader, name string, opts TableOptions) (*Table, error) {
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{
		Delimiter:  opts.Delimiter,
		Charset:    opts.Charset,
		LazyQuotes: true,
	})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "table: read %s", name)
		}
	}
	return newTable(rows), nil
}

func newTable(rows [][]string) *Table {
	if len(rows) == 0 {
		return &Table{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Table{Header: header, Rows: rows[1:]}
}

// Column returns the index of a header, matched case-insensitively after trimming.
func (t *Table) Column(name string) (int, bool) {
	want := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.EqualFold(h, want) {
			return i, true
		}
	}
	return -1, false
}

// Records converts the data rows into header-keyed rows. Cells missing from
// short rows are absent from the map, which reads as "".
func (t *Table) Records() []model.Row {
	out := make([]model.Row, 0, len(t.Rows))
	for _, rec := range t.Rows {
		row := make(model.Row, len(t.Header))
		for i, h := range t.Header {
			if h == "" || i >= len(rec) {
				continue
			}
			row[h] = rec[i]
		}
		out = append(out, row)
	}
	return out
}
