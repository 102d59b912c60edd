package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CollectionStatus describes the local data of one collection.
type CollectionStatus struct {
	Name string `json:"name"`
	// Index is the backend index name, empty for collections answered by
	// a remote service.
	Index   string `json:"index,omitempty"`
	Indexed uint64 `json:"indexed"`
	Stored  int    `json:"stored"`
}

// StatusInfo contains the health of the local data directory.
type StatusInfo struct {
	DataDir     string             `json:"data_dir"`
	Backend     string             `json:"backend"`
	Collections []CollectionStatus `json:"collections"`
	LastUpdated time.Time          `json:"last_updated"`

	// Storage sizes (in bytes)
	IndexSize     int64 `json:"index_size"`
	StoreSize     int64 `json:"store_size"`
	CacheSize     int64 `json:"cache_size"`
	TelemetrySize int64 `json:"telemetry_size"`
	TotalSize     int64 `json:"total_size"`

	// Component status
	BackendStatus     string `json:"backend_status"` // "ready", "offline", "error"
	TerminologyStatus string `json:"terminology_status"`
}

// StatusRenderer displays data status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Data Status: "+info.DataDir))

	_, _ = fmt.Fprintf(r.out, "  Backend: %s (%s)\n", info.Backend, r.renderStatus(info.BackendStatus))
	if info.TerminologyStatus != "" {
		_, _ = fmt.Fprintf(r.out, "  Terminology: %s\n", r.renderStatus(info.TerminologyStatus))
	}
	if !info.LastUpdated.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last updated: %s\n", formatTime(info.LastUpdated))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Collections:")
	for _, c := range info.Collections {
		if c.Index == "" {
			_, _ = fmt.Fprintf(r.out, "    %-8s remote service, %d stored\n", c.Name, c.Stored)
			continue
		}
		_, _ = fmt.Fprintf(r.out, "    %-8s %d indexed in %s, %d stored\n", c.Name, c.Indexed, c.Index, c.Stored)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	_, _ = fmt.Fprintf(r.out, "    Index:     %s\n", FormatBytes(info.IndexSize))
	_, _ = fmt.Fprintf(r.out, "    Store:     %s\n", FormatBytes(info.StoreSize))
	_, _ = fmt.Fprintf(r.out, "    Cache:     %s\n", FormatBytes(info.CacheSize))
	_, _ = fmt.Fprintf(r.out, "    Telemetry: %s\n", FormatBytes(info.TelemetrySize))
	_, _ = fmt.Fprintf(r.out, "    Total:     %s\n", FormatBytes(info.TotalSize))

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running", "finished":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
