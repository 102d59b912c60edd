package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var ve *VariomesError
	if !errors.As(err, &ve) {
		ve = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ve.Message)
	if ve.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ve.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ve.Code)
	return sb.String()
}

// LogAttrs returns slog attributes describing err.
func LogAttrs(err error) []slog.Attr {
	if err == nil {
		return nil
	}

	var ve *VariomesError
	if !errors.As(err, &ve) {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("error_code", ve.Code),
		slog.String("message", ve.Message),
		slog.String("category", string(ve.Category)),
		slog.String("severity", string(ve.Severity)),
		slog.Bool("retryable", ve.Retryable),
	}
	if ve.Cause != nil {
		attrs = append(attrs, slog.String("cause", ve.Cause.Error()))
	}
	for k, v := range ve.Details {
		attrs = append(attrs, slog.String("detail_"+k, v))
	}
	return attrs
}
