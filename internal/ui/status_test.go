package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() StatusInfo {
	return StatusInfo{
		DataDir: "/data/variomes",
		Backend: "bleve",
		Collections: []CollectionStatus{
			{Name: "medline", Index: "med20", Indexed: 1200, Stored: 1200},
			{Name: "ct", Stored: 40},
		},
		LastUpdated:       time.Now().Add(-2 * time.Hour),
		IndexSize:         3 * 1024 * 1024,
		StoreSize:         512 * 1024,
		CacheSize:         2048,
		TotalSize:         3*1024*1024 + 512*1024 + 2048,
		BackendStatus:     "ready",
		TerminologyStatus: "offline",
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a no-color status renderer
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering status info
	require.NoError(t, r.Render(sampleStatus()))

	// Then: collections, sizes and components are listed
	out := buf.String()
	assert.Contains(t, out, "Data Status: /data/variomes")
	assert.Contains(t, out, "Backend: bleve (ready)")
	assert.Contains(t, out, "Terminology: offline")
	assert.Contains(t, out, "Last updated: 2 hours ago")
	assert.Contains(t, out, "medline  1200 indexed in med20, 1200 stored")
	assert.Contains(t, out, "ct       remote service, 40 stored")
	assert.Contains(t, out, "Index:     3.0 MB")
	assert.Contains(t, out, "Cache:     2.0 KB")
	assert.NotContains(t, out, "\x1b[")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	require.NoError(t, r.RenderJSON(sampleStatus()))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "bleve", parsed["backend"])
	colls := parsed["collections"].([]any)
	require.Len(t, colls, 2)
	assert.Equal(t, "med20", colls[0].(map[string]any)["index"])
	assert.NotContains(t, colls[1].(map[string]any), "index")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.in))
		})
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 10 * time.Second, "just now"},
		{"one minute", 90 * time.Second, "1 minute ago"},
		{"minutes", 5 * time.Minute, "5 minutes ago"},
		{"one day", 30 * time.Hour, "1 day ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTime(time.Now().Add(-tt.ago)))
		})
	}
}
