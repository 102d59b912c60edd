package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// serviceFile appends tab-separated lines to <dir>/<service>.txt.
type serviceFile struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func (f *serviceFile) append(service string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(f.dir, service+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	_, err = file.WriteString(strings.Join(lines, "\n") + "\n")
	return err
}

// ErrorLog appends request reports to <errors>/<service>.txt as
// date, unique id, level, description and details separated by tabs.
type ErrorLog struct {
	f serviceFile
}

// NewErrorLog creates an error log rooted at dir.
func NewErrorLog(dir string) *ErrorLog {
	return &ErrorLog{f: serviceFile{dir: dir, now: time.Now}}
}

// Append writes every report of one request.
func (l *ErrorLog) Append(service, uniqueID string, reports verrors.Reports) error {
	date := l.f.now().Format(verrors.TimestampLayout)
	lines := make([]string, 0, len(reports))
	for _, r := range reports {
		lines = append(lines, strings.Join([]string{
			date, uniqueID, string(r.Level), oneLine(r.Description), oneLine(r.Details),
		}, "\t"))
	}
	return l.f.append(service, lines)
}

// QueryLog appends served queries to <logs>/<service>.txt as date, client
// address and request URL separated by tabs.
type QueryLog struct {
	f serviceFile
}

// NewQueryLog creates a query log rooted at dir.
func NewQueryLog(dir string) *QueryLog {
	return &QueryLog{f: serviceFile{dir: dir, now: time.Now}}
}

// Append writes one query line.
func (l *QueryLog) Append(service, clientAddr, url string) error {
	line := strings.Join([]string{l.f.now().Format(verrors.TimestampLayout), clientAddr, oneLine(url)}, "\t")
	return l.f.append(service, []string{line})
}

func oneLine(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
