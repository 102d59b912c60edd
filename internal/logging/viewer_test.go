package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"INFO","msg":"api_server_started","addr":":5003"}
{"time":"2026-03-01T10:00:01.000Z","level":"DEBUG","msg":"search_done","unique_id":"run-1","hits":12}
not json at all
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"ct_unavailable","unique_id":"run-2"}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"rankvar_failed","unique_id":"run-1"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "variomes.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func msgs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Valid {
			out = append(out, e.Msg)
		} else {
			out = append(out, e.Raw)
		}
	}
	return out
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t, sampleLog)

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"last lines", ViewerConfig{NoColor: true}, 2, []string{"ct_unavailable", "rankvar_failed"}},
		{"more lines than the file", ViewerConfig{NoColor: true}, 100, []string{"api_server_started", "search_done", "not json at all", "ct_unavailable", "rankvar_failed"}},
		{"level filter keeps raw lines", ViewerConfig{Level: "warn", NoColor: true}, 100, []string{"not json at all", "ct_unavailable", "rankvar_failed"}},
		{"request filter", ViewerConfig{UniqueID: "run-1", NoColor: true}, 100, []string{"search_done", "rankvar_failed"}},
		{"pattern filter", ViewerConfig{Pattern: regexp.MustCompile(`ct_`), NoColor: true}, 100, []string{"ct_unavailable"}},
		{"zero lines", ViewerConfig{NoColor: true}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewViewer(tt.cfg, &bytes.Buffer{}).Tail(path, tt.n)

			require.NoError(t, err)
			assert.Equal(t, tt.want, msgs(entries))
		})
	}
}

func TestViewer_TailMissingFile(t *testing.T) {
	_, err := NewViewer(ViewerConfig{}, &bytes.Buffer{}).Tail(filepath.Join(t.TempDir(), "none.log"), 10)

	assert.Error(t, err)
}

func TestParseEntry(t *testing.T) {
	e := ParseEntry(`{"time":"2026-03-01T10:00:01.5Z","level":"DEBUG","msg":"search_done","hits":12}`)

	assert.True(t, e.Valid)
	assert.Equal(t, "DEBUG", e.Level)
	assert.Equal(t, "search_done", e.Msg)
	assert.Equal(t, map[string]any{"hits": float64(12)}, e.Attrs)
	assert.Equal(t, 500*time.Millisecond, time.Duration(e.Time.Nanosecond()))

	raw := ParseEntry("plain text")
	assert.False(t, raw.Valid)
	assert.Equal(t, "plain text", raw.Raw)
}

func TestViewer_Format(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	line := v.Format(ParseEntry(`{"time":"2026-03-01T10:00:01.000Z","level":"WARN","msg":"slow","b":2,"a":"x"}`))

	assert.Equal(t, "10:00:01.000 WARN  slow a=x b=2", line)
	assert.Equal(t, "raw", v.Format(ParseEntry("raw")))
}

func TestViewer_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	v.Print([]Entry{ParseEntry("one"), ParseEntry("two")})

	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log file being followed
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan Entry, 10)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// When: lines are appended until one arrives
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var got Entry
	deadline := time.After(5 * time.Second)
	for i := 0; got.Msg == ""; i++ {
		_, err := fmt.Fprintf(f, `{"time":"2026-03-01T10:01:00Z","level":"INFO","msg":"appended","n":%d}`+"\n", i)
		require.NoError(t, err)
		select {
		case got = <-entries:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no entry followed")
		}
	}

	// Then: only new lines are followed
	assert.Equal(t, "appended", got.Msg)
	assert.False(t, strings.Contains(got.Raw, "api_server_started"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not stop")
	}
}
