// Package export writes accepted datasets as CSV, XLSX or JSON.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (valid: csv, xlsx, json)", s)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	case ".json":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// Options tunes the writers.
type Options struct {
	Delimiter rune   // CSV only; default ','
	BOM       bool   // CSV only; prefix a UTF-8 BOM so spreadsheet apps detect the encoding
	Sheet     string // XLSX only; default "Datos"
}

// Write encodes ds to w in the given format.
func Write(w io.Writer, format Format, ds *model.Dataset, opts Options) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, ds, opts)
	case FormatXLSX:
		return WriteXLSX(w, ds, opts)
	case FormatJSON:
		return WriteJSON(w, ds)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteFile writes ds to path, creating or truncating it.
func WriteFile(path string, format Format, ds *model.Dataset, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(f, format, ds, opts); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, ds *model.Dataset, opts Options) error {
	if opts.BOM {
		if _, err := io.WriteString(w, "\ufeff"); err != nil {
			return eris.Wrap(err, "export: write bom")
		}
	}
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	if err := cw.Write(ds.Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(ds.Records); err != nil {
		return eris.Wrap(err, "export: write csv records")
	}
	return nil
}

// WriteXLSX writes one unstyled sheet with a header row.
func WriteXLSX(w io.Writer, ds *model.Dataset, opts Options) error {
	sheet := opts.Sheet
	if sheet == "" {
		sheet = "Datos"
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return eris.Wrap(err, "export: stream writer")
	}
	if err := sw.SetRow("A1", toAny(ds.Columns)); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for i, rec := range ds.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "export: cell name")
		}
		if err := sw.SetRow(cell, toAny(rec)); err != nil {
			return eris.Wrapf(err, "export: write row %d", i+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return eris.Wrap(err, "export: flush sheet")
	}
	if _, err := f.WriteTo(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func toAny(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// WriteJSON writes an array of objects whose keys follow the column order.
func WriteJSON(w io.Writer, ds *model.Dataset) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, len(ds.Columns))
	for i, c := range ds.Columns {
		k, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "export: encode column")
		}
		keys[i] = k
	}

	bw.WriteByte('[')
	for i, rec := range ds.Records {
		if i > 0 {
			bw.WriteByte(',')
		}
		bw.WriteString("\n  {")
		for j, k := range keys {
			if j > 0 {
				bw.WriteByte(',')
			}
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			val, err := json.Marshal(v)
			if err != nil {
				return eris.Wrap(err, "export: encode value")
			}
			bw.Write(k)
			bw.WriteByte(':')
			bw.Write(val)
		}
		bw.WriteByte('}')
	}
	if len(ds.Records) > 0 {
		bw.WriteByte('\n')
	}
	bw.WriteString("]\n")
	return eris.Wrap(bw.Flush(), "export: write json")
}
