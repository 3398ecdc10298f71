// Package tabular reads and writes the spreadsheet grids used by bulk import and export
package tabular

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sheet is a header row plus data rows of rendered cell values
type Sheet struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Reader turns a spreadsheet file into a grid of cells; row 0 is the header row
type Reader interface {
	Read(r io.Reader) ([][]string, error)
}

// Writer renders a sheet into a spreadsheet file
type Writer interface {
	Write(w io.Writer, sheet *Sheet) error
	ContentType() string
	Extension() string
}

// Format names a supported file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat resolves a format name, defaulting to xlsx
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "", "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q", name)
	}
}

// FormatFromFilename resolves the format from a file extension
func FormatFromFilename(filename string) (Format, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", fmt.Errorf("file %q has no extension", filename)
	}
	return ParseFormat(ext)
}

// NewReader returns the reader for a format
func NewReader(f Format) Reader {
	if f == FormatCSV {
		return CSV{}
	}
	return XLSX{}
}

// NewWriter returns the writer for a format
func NewWriter(f Format) Writer {
	if f == FormatCSV {
		return CSV{}
	}
	return XLSX{}
}

// WriteFile renders sheet into path, creating missing parent directories.
// A partially written file is removed.
func WriteFile(path string, sheet *Sheet, f Format) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := NewWriter(f).Write(out, sheet); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
