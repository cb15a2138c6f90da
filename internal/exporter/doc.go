// Package exporter writes reconciliation and grading results as CSV files,
// Excel workbooks or JSON.
//
// Results are first laid out as Tables (ReconcileTables, GradingTables),
// then written by format:
//
//	tables := exporter.ReconcileTables(env.Data, env.Notes)
//	files, err := exporter.New(logger).Export("out/report.xlsx", env, tables)
//
// CSV files start with a UTF-8 BOM so Excel detects the encoding.
package exporter
