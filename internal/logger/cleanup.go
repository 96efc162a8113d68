package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// tracePattern matches trace files and their rotated backups.
const tracePattern = "vsts-pi_*.log*"

// Retention limits how many trace files accumulate in the diagnostics
// directory. Every invocation starts a new file, so lumberjack's per-file
// rotation alone never removes old runs. Zero fields are ignored.
type Retention struct {
	KeepRuns   int
	KeepDays   int
	MaxTotalMB int
}

func (r Retention) empty() bool {
	return r.KeepRuns <= 0 && r.KeepDays <= 0 && r.MaxTotalMB <= 0
}

type traceFile struct {
	path    string
	run     string
	modTime time.Time
	size    int64
}

// CleanupTraces removes old trace files from dir.
// Priority: MaxTotalMB > KeepDays > KeepRuns
func CleanupTraces(dir string, r Retention, now time.Time) error {
	if dir == "" || r.empty() {
		return nil
	}

	if r.MaxTotalMB > 0 {
		if err := cleanBySize(dir, int64(r.MaxTotalMB)*1024*1024); err != nil {
			return err
		}
	}
	if r.KeepDays > 0 {
		if err := cleanByAge(dir, now.Add(-time.Duration(r.KeepDays)*24*time.Hour)); err != nil {
			return err
		}
	}
	if r.KeepRuns > 0 {
		if err := cleanByRuns(dir, r.KeepRuns); err != nil {
			return err
		}
	}
	return nil
}

// cleanByRuns keeps the files of the newest keep runs.
func cleanByRuns(dir string, keep int) error {
	files, err := listTraces(dir)
	if err != nil {
		return err
	}

	runs := make(map[string][]traceFile)
	var order []string
	for _, f := range files {
		if _, seen := runs[f.run]; !seen {
			order = append(order, f.run)
		}
		runs[f.run] = append(runs[f.run], f)
	}
	if len(order) <= keep {
		return nil
	}

	// Run stamps sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	for _, run := range order[keep:] {
		for _, f := range runs[run] {
			if err := remove(f.path); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanByAge deletes trace files last written before cutoff.
func cleanByAge(dir string, cutoff time.Time) error {
	files, err := listTraces(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.modTime.Before(cutoff) {
			if err := remove(f.path); err != nil {
				return err
			}
		}
	}
	return nil
}

// cleanBySize deletes the oldest trace files until the total is under maxBytes.
func cleanBySize(dir string, maxBytes int64) error {
	files, err := listTraces(dir)
	if err != nil {
		return err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= maxBytes {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if err := remove(f.path); err != nil {
			return err
		}
		total -= f.size
	}
	return nil
}

func listTraces(dir string) ([]traceFile, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), tracePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list trace files in %s: %w", dir, err)
	}

	files := make([]traceFile, 0, len(matches))
	for _, name := range matches {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue // Skip entries we can't stat
		}
		files = append(files, traceFile{
			path:    filepath.Join(dir, name),
			run:     traceRun(name),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
	}
	return files, nil
}

// traceRun extracts the run stamp from a trace file name, so a trace and its
// rotated backups are grouped together.
// Format: vsts-pi_<YYYYMMDD-HHMMSS>[-<backup time>].log[.gz]
func traceRun(name string) string {
	stamp := strings.TrimPrefix(name, "vsts-pi_")
	if len(stamp) >= 15 && isDigits(stamp[:8]) && stamp[8] == '-' && isDigits(stamp[9:15]) {
		return stamp[:15]
	}
	return name
}

// isDigits returns true if all characters are digits.
func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old trace %s: %w", path, err)
	}
	return nil
}
