package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is a pipeline export file format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ErrUnsupportedFormat is returned for formats other than csv, xlsx and pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat accepts csv, xlsx (or excel) and pdf, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Column is one exported field: Key looks up the row value, Label is shown.
type Column struct {
	Key   string
	Label string
}

// Table is the data handed to every exporter
type Table struct {
	Title       string
	Subtitle    string
	Columns     []Column
	Rows        []map[string]interface{}
	GeneratedAt time.Time
}

func (t *Table) keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

func (t *Table) labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
		if labels[i] == "" {
			labels[i] = c.Key
		}
	}
	return labels
}

// Write renders table in the given format to w
func Write(w io.Writer, format Format, table *Table) error {
	if table.GeneratedAt.IsZero() {
		table.GeneratedAt = time.Now().UTC()
	}

	switch format {
	case FormatCSV:
		exporter := NewCSVExporter(w, DefaultCSVOptions())
		if err := exporter.WriteHeader(table.labels()); err != nil {
			return err
		}
		if err := exporter.WriteMapRows(table.Rows, table.keys()); err != nil {
			return err
		}
		return exporter.Flush()

	case FormatExcel:
		options := DefaultExcelOptions()
		if table.Title != "" {
			options.SheetName = sheetName(table.Title)
		}
		exporter := NewExcelExporter(options)
		defer exporter.Close()
		if err := exporter.WriteHeader(table.labels()); err != nil {
			return err
		}
		if err := exporter.WriteRows(table.Rows, table.keys()); err != nil {
			return err
		}
		return exporter.WriteTo(w)

	case FormatPDF:
		options := DefaultPDFOptions()
		options.Title = table.Title
		options.Subtitle = table.Subtitle
		options.Orientation = "landscape"
		generator := NewPDFGenerator(options)
		if err := generator.Generate(table); err != nil {
			return err
		}
		return generator.WriteTo(w)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// sheetName trims a title to Excel's 31 character sheet name limit and
// drops the characters Excel rejects.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, title)
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	if strings.TrimSpace(name) == "" {
		return "Applications"
	}
	return name
}
