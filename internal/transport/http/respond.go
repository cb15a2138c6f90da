package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	apierrors "rosterlink/internal/errors"
	"rosterlink/internal/exporter"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// responseFormat reads ?format=, defaulting to JSON.
func responseFormat(r *http.Request) (exporter.Format, error) {
	switch f := exporter.Format(strings.ToLower(r.URL.Query().Get("format"))); f {
	case "", exporter.FormatJSON:
		return exporter.FormatJSON, nil
	case exporter.FormatCSV, exporter.FormatXLSX:
		return f, nil
	default:
		return "", apierrors.ErrValidation("format", fmt.Sprintf("format must be one of: json, csv, xlsx (got %q)", f))
	}
}

// respond writes payload as JSON, or tables as a download. CSV downloads
// carry only the first table.
func respond(w http.ResponseWriter, r *http.Request, format exporter.Format, name string, payload interface{}, tables []exporter.Table) error {
	if format == exporter.FormatJSON {
		render.JSON(w, r, payload)
		return nil
	}

	// Buffer so a failed export can still become a problem response.
	var buf bytes.Buffer
	contentType := xlsxContentType
	switch format {
	case exporter.FormatXLSX:
		if err := exporter.WriteWorkbook(&buf, tables); err != nil {
			return err
		}
	case exporter.FormatCSV:
		contentType = "text/csv; charset=utf-8"
		var first exporter.Table
		if len(tables) > 0 {
			first = tables[0]
		}
		if err := exporter.WriteTo(&buf, exporter.WriteOptions{Headers: first.Headers, Records: first.Rows, BOMPrefix: true}); err != nil {
			return err
		}
	}

	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().UTC().Format("20060102_150405"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	return nil
}
