package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q: use .csv, .xlsx or .json", filepath.Ext(path))
}

// Exporter writes run results to files.
type Exporter struct {
	csv    *CSVWriter
	logger *slog.Logger
}

// New creates an Exporter.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exporter"))
	return &Exporter{csv: NewCSVWriter(logger), logger: logger}
}

// Export writes a result to path in the format its extension names and
// returns the files written. JSON output is payload itself. CSV output puts
// the first table at path and each further table next to it, suffixed with
// the table name. XLSX output is one workbook with a sheet per table.
func (e *Exporter) Export(path string, payload interface{}, tables []Table) ([]string, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var written []string
	switch format {
	case FormatJSON:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
		defer f.Close()
		if err := WriteJSON(f, payload); err != nil {
			return nil, err
		}
		written = append(written, path)

	case FormatXLSX:
		if err := SaveWorkbook(path, tables); err != nil {
			return nil, err
		}
		written = append(written, path)

	case FormatCSV:
		for i, t := range tables {
			target := path
			if i > 0 {
				target = siblingPath(path, t.Name)
			}
			if err := e.csv.WriteTable(target, t); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", t.Name, err)
			}
			written = append(written, target)
		}
	}

	e.logger.Info("export complete",
		slog.String("format", string(format)),
		slog.Any("files", written))
	return written, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// siblingPath turns report.csv and "notes" into report_notes.csv.
func siblingPath(path, name string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + name + ext
}
