package search

import (
	"bufio"
	"strings"

	"github.com/Aman-CERP/variomes/configs"
)

// HighlightSuffix marks a highlighted copy of a field.
const HighlightSuffix = "_highlight"

// FieldMapping translates user-facing field names to backend field names
// for one collection. Unknown names pass through unchanged.
type FieldMapping struct {
	toBackend map[string]string
	toUser    map[string]string
}

// NewFieldMapping loads the embedded mapping of collection.
func NewFieldMapping(collection string) FieldMapping {
	return ParseFieldMapping(configs.FieldMapping(collection))
}

// ParseFieldMapping reads "user backend" lines. Blank lines and lines
// starting with "#" are skipped.
func ParseFieldMapping(text string) FieldMapping {
	m := FieldMapping{toBackend: map[string]string{}, toUser: map[string]string{}}
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		m.toBackend[fields[0]] = fields[1]
		m.toUser[fields[1]] = fields[0]
	}
	return m
}

// ToBackend returns the backend name of a user field.
func (m FieldMapping) ToBackend(name string) string {
	return translate(m.toBackend, name)
}

// ToUser returns the user name of a backend field.
func (m FieldMapping) ToUser(name string) string {
	return translate(m.toUser, name)
}

// AllToBackend maps every name of names.
func (m FieldMapping) AllToBackend(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = m.ToBackend(n)
	}
	return out
}

func translate(table map[string]string, name string) string {
	base, suffix := name, ""
	if strings.HasSuffix(name, HighlightSuffix) {
		base, suffix = strings.TrimSuffix(name, HighlightSuffix), HighlightSuffix
	}
	if mapped, ok := table[base]; ok {
		return mapped + suffix
	}
	return name
}
