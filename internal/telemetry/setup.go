package telemetry

import (
	"log/slog"

	"github.com/Aman-CERP/variomes/internal/config"
)

// FromConfig builds the process metrics. Search statistics are persisted
// when telemetry is enabled; a store that cannot be opened degrades to
// memory-only statistics.
func FromConfig(cfg *config.Config) *Metrics {
	statsCfg := DefaultStatsConfig()
	if cfg.Telemetry.FlushInterval > 0 {
		statsCfg.FlushInterval = cfg.Telemetry.FlushInterval
	}

	var store StatsStore
	if cfg.Telemetry.Enabled {
		s, err := OpenSQLiteStatsStore(cfg.TelemetryPath())
		if err != nil {
			slog.Warn("telemetry_store_unavailable",
				slog.String("path", cfg.TelemetryPath()),
				slog.String("error", err.Error()))
		} else {
			store = s
		}
	}
	return NewMetrics(NewSearchStats(store, statsCfg))
}

// Close flushes and releases the search statistics.
func (m *Metrics) Close() error {
	if m.stats == nil {
		return nil
	}
	return m.stats.Close()
}
