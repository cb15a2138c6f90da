package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	apperrors "rosterlink/internal/errors"
)

// ReadWorkbook reads the first sheet of an .xlsx file.
func ReadWorkbook(path string, isHeader HeaderFunc) (ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ParseResult{}, apperrors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()
	return workbookRows(f, isHeader)
}

// ParseWorkbook reads the first sheet of an .xlsx stream.
func ParseWorkbook(r io.Reader, isHeader HeaderFunc) (ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{}, apperrors.NewParsingError("failed to read workbook", err)
	}
	defer f.Close()
	return workbookRows(f, isHeader)
}

func workbookRows(f *excelize.File, isHeader HeaderFunc) (ParseResult, error) {
	sheetsInBook := f.GetSheetList()
	if len(sheetsInBook) == 0 {
		return ParseResult{}, apperrors.NewParsingError("workbook has no sheets", nil)
	}
	cells, err := f.GetRows(sheetsInBook[0])
	if err != nil {
		return ParseResult{}, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheetsInBook[0]), err)
	}
	return FromTable(cells, isHeader), nil
}

// FromTable converts a grid of cells, such as a spreadsheet range, into a
// ParseResult. Blank rows are skipped.
func FromTable(cells [][]string, isHeader HeaderFunc) ParseResult {
	rows := make([]row, 0, len(cells))
	for i, c := range cells {
		if blank(c) {
			continue
		}
		rows = append(rows, row{line: i + 1, cells: c})
	}
	return fromRows(rows, isHeader)
}
