package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rosterlink/internal/exporter"
	"rosterlink/internal/files"
	"rosterlink/internal/ingest"
	"rosterlink/internal/services"
	"rosterlink/internal/validation"
)

type reconcileFlags struct {
	registration string
	sessions     []string
	sessionsDir  string
	course       string
	sheet        bool
	refresh      bool
	out          string
}

func newReconcileCmd(c *cli) *cobra.Command {
	var f reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile Canvas users, registrations and Zoom attendance",
		Long: `Builds one participant list from the supplied sources and reports
attendance discrepancies. Registration and session files may be .csv or
.xlsx. A session is given as key=path, or as a bare path whose file name
carries the session number (session2.csv, "Week 2.xlsx"). --sessions-dir
picks up every such export in a folder.`,
		Example: `  rosterlink reconcile --registration form.csv --session session1=zoom1.csv --session week2.xlsx
  rosterlink reconcile --course 12345 --sheet --sessions-dir ./zoom --out report.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(validation.NewFileValidator(c.logger), c.logger)
			if err != nil {
				return err
			}

			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			env, err := a.Services.Reconcile.Reconcile(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.writeResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), f.out, env, exporter.ReconcileTables(env.Data, env.Notes))
		},
	}

	cmd.Flags().StringVar(&f.registration, "registration", "", "registration export (.csv or .xlsx)")
	cmd.Flags().StringArrayVar(&f.sessions, "session", nil, "Zoom attendance export as key=path or path (repeatable)")
	cmd.Flags().StringVar(&f.sessionsDir, "sessions-dir", "", "folder of Zoom exports named by session number")
	cmd.Flags().StringVar(&f.course, "course", "", "Canvas course id")
	cmd.Flags().BoolVar(&f.sheet, "sheet", false, "read registrations from the configured Google Sheet")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cached Canvas data")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (.json, .csv or .xlsx); JSON to stdout when empty")
	return cmd
}

// request turns the flags into a service request, reading every file.
func (f reconcileFlags) request(v *validation.FileValidator, logger *slog.Logger) (services.ReconcileRequest, error) {
	req := services.ReconcileRequest{
		CourseID: strings.TrimSpace(f.course),
		UseSheet: f.sheet,
		Refresh:  f.refresh,
	}

	if f.registration != "" {
		if err := v.ValidateExport(f.registration); err != nil {
			return req, err
		}
		if isWorkbook(f.registration) {
			table, err := ingest.ReadWorkbook(f.registration, nil)
			if err != nil {
				return req, fmt.Errorf("registration %s: %w", f.registration, err)
			}
			req.Registrations = &table
		} else {
			text, err := os.ReadFile(f.registration)
			if err != nil {
				return req, fmt.Errorf("failed to read registration file: %w", err)
			}
			req.RegistrationCSV = string(text)
		}
	}

	sessions, err := f.sessionFiles(v, logger)
	if err != nil {
		return req, err
	}
	for _, s := range sessions {
		if err := v.ValidateExport(s.path); err != nil {
			return req, err
		}
		if isWorkbook(s.path) {
			table, err := ingest.ReadWorkbook(s.path, ingest.IsAttendanceHeader)
			if err != nil {
				return req, fmt.Errorf("session %s: %w", s.path, err)
			}
			if req.SessionTables == nil {
				req.SessionTables = make(map[string]ingest.ParseResult)
			}
			req.SessionTables[s.key] = table
			continue
		}

		text, err := os.ReadFile(s.path)
		if err != nil {
			return req, fmt.Errorf("failed to read session file: %w", err)
		}
		if req.Sessions == nil {
			req.Sessions = make(map[string]string)
		}
		req.Sessions[s.key] = string(text)
	}

	if req.CourseID == "" && req.RegistrationCSV == "" && req.Registrations == nil &&
		len(req.Sessions) == 0 && len(req.SessionTables) == 0 && !req.UseSheet {
		return req, fmt.Errorf("nothing to reconcile: pass --course, --registration, --sheet, --session or --sessions-dir")
	}
	return req, nil
}

type sessionFile struct {
	key  string
	path string
}

// sessionFiles collects the --sessions-dir exports followed by the explicit
// --session arguments. A key may appear only once.
func (f reconcileFlags) sessionFiles(v *validation.FileValidator, logger *slog.Logger) ([]sessionFile, error) {
	var out []sessionFile
	seen := make(map[string]bool)

	if f.sessionsDir != "" {
		if err := v.ValidateInputDirectory(f.sessionsDir); err != nil {
			return nil, err
		}
		var exclude []string
		if f.registration != "" {
			exclude = append(exclude, f.registration)
		}
		exports, err := files.NewDiscovery("").FindSessionExports(f.sessionsDir, exclude...)
		if err != nil {
			return nil, err
		}
		for _, skipped := range exports.Skipped {
			logger.Warn("Ignoring export", slog.String("file", skipped.Path))
		}
		for _, key := range exports.Keys() {
			seen[key] = true
			out = append(out, sessionFile{key: key, path: exports.Files[key].Path})
		}
	}

	for _, arg := range f.sessions {
		key, path, err := parseSessionArg(arg)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			return nil, fmt.Errorf("session %s given more than once", key)
		}
		seen[key] = true
		out = append(out, sessionFile{key: key, path: path})
	}
	return out, nil
}

// parseSessionArg splits "key=path". A bare path takes its key from the file name.
func parseSessionArg(arg string) (string, string, error) {
	if key, path, ok := strings.Cut(arg, "="); ok {
		key, path = strings.TrimSpace(key), strings.TrimSpace(path)
		if key == "" || path == "" {
			return "", "", fmt.Errorf("invalid --session %q: want key=path", arg)
		}
		return key, path, nil
	}
	key, ok := ingest.SessionKeyFromFilename(arg)
	if !ok {
		return "", "", fmt.Errorf("cannot tell the session of %q: name it key=path", arg)
	}
	return key, arg, nil
}

func isWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
