package validation

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *FileValidator {
	return NewFileValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name:      "existing directory",
			setupFunc: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name: "non-existent directory",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent")
			},
			wantErr:       true,
			errorContains: "does not exist",
		},
		{
			name: "path is file not directory",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "session1.csv")
				require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
				return file
			},
			wantErr:       true,
			errorContains: "is not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newValidator().ValidateInputDirectory(tt.setupFunc(t))
			if tt.wantErr {
				assert.ErrorContains(t, err, tt.errorContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "2025")
	require.NoError(t, newValidator().ValidateOutputDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	assert.Error(t, newValidator().ValidateOutputDirectory(filepath.Join(blocker, "sub")))
}

func TestFileValidator_ValidateExport(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
		return path
	}

	tests := []struct {
		name          string
		path          string
		maxBytes      int64
		errorContains string
	}{
		{name: "csv", path: write("session1.csv", 10)},
		{name: "xlsx upper case", path: write("Week 2.XLSX", 10)},
		{name: "missing", path: filepath.Join(dir, "nope.csv"), errorContains: "does not exist"},
		{name: "wrong extension", path: write("notes.txt", 10), errorContains: "not a .csv or .xlsx"},
		{name: "legacy xls", path: write("old.xls", 10), errorContains: "not a .csv or .xlsx"},
		{name: "excel lock file", path: write("~$session1.xlsx", 10), errorContains: "lock file"},
		{name: "too large", path: write("big.csv", 64), maxBytes: 32, errorContains: "byte limit"},
		{name: "directory", path: filepath.Join(dir, "sub.csv"), errorContains: "is a directory"},
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0755))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator()
			if tt.maxBytes > 0 {
				v = v.WithMaxBytes(tt.maxBytes)
			}
			err := v.ValidateExport(tt.path)
			if tt.errorContains != "" {
				assert.ErrorContains(t, err, tt.errorContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWithMaxBytes_DoesNotMutate(t *testing.T) {
	v := newValidator()
	limited := v.WithMaxBytes(1)
	assert.Equal(t, DefaultMaxInputBytes, v.maxBytes)
	assert.Equal(t, int64(1), limited.maxBytes)
}

func TestIsExport(t *testing.T) {
	tests := map[string]bool{
		"session1.csv":         true,
		"Week 3.xlsx":          true,
		"~$Week 3.xlsx":        false,
		".~lock.session1.csv#": false,
		".hidden.csv":          false,
		"readme.md":            false,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsExport(name), name)
	}
}
