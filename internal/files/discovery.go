package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"rosterlink/internal/ingest"
	"rosterlink/internal/validation"
	"rosterlink/pkg/contracts/domain"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// SessionExports is the result of scanning a directory for attendance
// exports.
type SessionExports struct {
	// Files maps a session key to its export.
	Files map[string]FileInfo
	// Skipped holds exports whose name carries no session number and older
	// duplicates of a session that has a newer export.
	Skipped []FileInfo
}

// Keys returns the discovered session keys in session order.
func (s SessionExports) Keys() []string {
	return domain.SortedSessionKeys(s.Files)
}

// Discovery finds export files below a base path.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// FindExports lists the .csv and .xlsx files directly in dir, sorted by name.
// Lock files and hidden files are ignored.
func (d *Discovery) FindExports(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !validation.IsExport(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// FindSessionExports keys every export in dir by the session number in its
// file name. When two exports name the same session the most recently
// modified one wins. Paths listed in exclude are left out.
func (d *Discovery) FindSessionExports(dir string, exclude ...string) (SessionExports, error) {
	found, err := d.FindExports(dir)
	if err != nil {
		return SessionExports{}, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	result := SessionExports{Files: make(map[string]FileInfo)}
	for _, f := range found {
		if abs, err := filepath.Abs(f.Path); err == nil && skip[abs] {
			continue
		}
		key, ok := ingest.SessionKeyFromFilename(f.Name)
		if !ok {
			result.Skipped = append(result.Skipped, f)
			continue
		}
		prev, dup := result.Files[key]
		if !dup {
			result.Files[key] = f
			continue
		}
		latest, _ := GetLatestFile([]FileInfo{prev, f})
		result.Files[key] = latest
		if latest.Path == f.Path {
			result.Skipped = append(result.Skipped, prev)
		} else {
			result.Skipped = append(result.Skipped, f)
		}
	}
	return result, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}
