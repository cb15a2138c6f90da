// Package ingest turns tabular exports into records.
//
// Sources:
//
//	ParseCSV / ParseCSVWithHeader  comma separated text, one row per line
//	ReadWorkbook / ParseWorkbook   first sheet of an .xlsx workbook
//	SheetsSource                   a Google Sheets range
//
// Every source yields a ParseResult. ParseRegistrations and ParseAttendance
// then detect columns by header and produce typed rows:
//
//	res := ingest.ParseCSV(text)
//	rows, cols := ingest.ParseRegistrations(res)
//
// Parsing never fails on bad rows; problems are reported as ParseWarning.
package ingest
