package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// ErrStillProcessing is returned when a result did not appear before the
// wait timeout.
var ErrStillProcessing = verrors.New(verrors.ErrCodeStillProcessing, "result is still being computed", nil)

// ErrAbandoned is returned when the process computing a result stopped
// heartbeating before producing it.
var ErrAbandoned = errors.New("computation was abandoned")

// WaitOptions configures WaitForResult.
type WaitOptions struct {
	// Dir is watched for new files; any event re-checks readiness.
	Dir string
	// Interval is the polling period used alongside the watcher.
	Interval time.Duration
	// Timeout bounds the whole wait.
	Timeout time.Duration
	// Abandoned, if set, reports that the producer is gone.
	Abandoned func() bool
}

// WaitForResult blocks until ready returns true. It wakes on file events in
// opts.Dir and on every opts.Interval tick, and gives up with
// ErrStillProcessing after opts.Timeout or ErrAbandoned when the producer
// is gone.
func WaitForResult(ctx context.Context, opts WaitOptions, ready func() bool) error {
	if ready() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var events <-chan fsnotify.Event
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err == nil {
			if w, err := fsnotify.NewWatcher(); err == nil {
				defer w.Close()
				if err := w.Add(opts.Dir); err == nil {
					events = w.Events
				}
			}
		}
		if events == nil {
			slog.Debug("wait_watch_unavailable", slog.String("dir", opts.Dir))
		}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ready() {
				return nil
			}
			if ctx.Err() == context.DeadlineExceeded {
				return ErrStillProcessing
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
		case <-ticker.C:
		}

		if ready() {
			return nil
		}
		if opts.Abandoned != nil && opts.Abandoned() {
			return ErrAbandoned
		}
	}
}
