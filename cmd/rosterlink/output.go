package main

import (
	"fmt"
	"io"
	"path/filepath"

	"rosterlink/internal/exporter"
	"rosterlink/internal/validation"
)

// writeResult prints payload as JSON to stdout, or exports it to out in the
// format its extension names.
func (c *cli) writeResult(stdout, stderr io.Writer, out string, payload interface{}, tables []exporter.Table) error {
	if out == "" {
		return exporter.WriteJSON(stdout, payload)
	}
	if _, err := exporter.FormatFromPath(out); err != nil {
		return err
	}
	if err := validation.NewFileValidator(c.logger).ValidateOutputDirectory(filepath.Dir(out)); err != nil {
		return err
	}

	written, err := exporter.New(c.logger).Export(out, payload, tables)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintf(stderr, "wrote %s\n", path)
	}
	return nil
}
