package ingest

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSource reads registration form responses from a Google Sheets range.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetsSource creates a source for spreadsheetID. Credentials and
// endpoint come from opts, e.g. option.WithCredentialsJSON.
func NewSheetsSource(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if readRange == "" {
		readRange = "A:Z"
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsSource{service: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// Fetch reads the range. The first non-blank row is the header.
func (s *SheetsSource) Fetch(ctx context.Context) (ParseResult, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read sheet range %s: %w", s.readRange, err)
	}
	cells := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		cells[i] = make([]string, len(r))
		for j, v := range r {
			cells[i][j] = fmt.Sprint(v)
		}
	}
	return FromTable(cells, nil), nil
}
