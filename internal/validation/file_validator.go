package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxInputBytes bounds a single registration or attendance export.
const DefaultMaxInputBytes int64 = 20 << 20

var exportExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

// FileValidator checks the files and directories handed to the command line
// before anything is parsed.
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:   logger.With(slog.String("component", "file_validator")),
		maxBytes: DefaultMaxInputBytes,
	}
}

// WithMaxBytes returns a copy that rejects files larger than n bytes.
// n <= 0 removes the limit.
func (v *FileValidator) WithMaxBytes(n int64) *FileValidator {
	c := *v
	c.maxBytes = n
	return &c
}

// ValidateInputDirectory checks that dir exists and is a directory.
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory ensures dir exists, creating it if needed, and is
// writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path is a readable regular file within the size
// limit.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if v.maxBytes > 0 && info.Size() > v.maxBytes {
		v.logger.Error("File too large",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("limit", v.maxBytes))
		return fmt.Errorf("file %s is %d bytes, over the %d byte limit", path, info.Size(), v.maxBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateExport checks an input export: a readable .csv or .xlsx file that
// is not an editor lock file.
func (v *FileValidator) ValidateExport(path string) error {
	if IsLockFile(filepath.Base(path)) {
		return fmt.Errorf("file %s is an editor lock file", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !exportExtensions[ext] {
		v.logger.Error("Unsupported export type",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("file %s is not a .csv or .xlsx export (extension: %q)", path, ext)
	}
	return v.ValidateFile(path)
}

// IsExport reports whether name looks like an input export.
func IsExport(name string) bool {
	return exportExtensions[strings.ToLower(filepath.Ext(name))] && !IsLockFile(name)
}

// IsLockFile reports whether name is an Office or LibreOffice lock file, or
// a hidden file.
func IsLockFile(name string) bool {
	return strings.HasPrefix(name, "~$") ||
		strings.HasPrefix(name, ".~lock.") ||
		strings.HasPrefix(name, ".")
}
