package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// StatusLog stores append-only progress traces, one file per unique id,
// with lines of the form "timestamp<TAB>message".
type StatusLog struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewStatusLog creates a status log in dir.
func NewStatusLog(dir string) *StatusLog {
	return &StatusLog{dir: dir, now: time.Now}
}

// Path returns the status file of uniqueID.
func (l *StatusLog) Path(uniqueID string) string {
	return filepath.Join(l.dir, safeName(uniqueID)+".txt")
}

// Exists reports whether a status file exists for uniqueID.
func (l *StatusLog) Exists(uniqueID string) bool {
	_, err := os.Stat(l.Path(uniqueID))
	return err == nil
}

// Append writes one status line.
func (l *StatusLog) Append(uniqueID, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return verrors.New(verrors.ErrCodeStatusWrite, "failed to create status directory", err)
	}
	f, err := os.OpenFile(l.Path(uniqueID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return verrors.New(verrors.ErrCodeStatusWrite, "failed to open status file", err)
	}
	defer f.Close()

	line := l.now().Format(verrors.TimestampLayout) + "\t" + strings.ReplaceAll(message, "\n", " ") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return verrors.New(verrors.ErrCodeStatusWrite, "failed to write status file", err)
	}
	return nil
}

// Last returns the message of the last status line.
func (l *StatusLog) Last(uniqueID string) (string, bool, error) {
	f, err := os.Open(l.Path(uniqueID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	defer f.Close()

	var last string
	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			last = line
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("failed to read status file: %w", err)
	}
	if !found {
		return "", false, nil
	}
	if _, msg, ok := strings.Cut(last, "\t"); ok {
		return msg, true, nil
	}
	return last, true, nil
}

func safeName(id string) string {
	return unsafeChars.Replace(id)
}
