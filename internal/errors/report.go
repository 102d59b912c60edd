package errors

import (
	"fmt"
	"time"
)

// Level is the level of a pipeline report.
type Level string

const (
	LevelFatal   Level = "fatal"
	LevelWarning Level = "warning"
)

// Report is one problem recorded while serving a request.
type Report struct {
	Level       Level  `json:"level"`
	Service     string `json:"service"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

// String renders the report on one line.
func (r Report) String() string {
	if r.Details == "" {
		return fmt.Sprintf("%s [%s] %s", r.Level, r.Service, r.Description)
	}
	return fmt.Sprintf("%s [%s] %s: %s", r.Level, r.Service, r.Description, r.Details)
}

// Reports accumulates reports through every pipeline layer.
// Callers concatenate the lists of the components they invoke.
type Reports []Report

// Warn appends a warning.
func (r *Reports) Warn(service, description, details string) {
	*r = append(*r, Report{Level: LevelWarning, Service: service, Description: description, Details: details})
}

// Fatal appends a fatal report.
func (r *Reports) Fatal(service, description, details string) {
	*r = append(*r, Report{Level: LevelFatal, Service: service, Description: description, Details: details})
}

// FromError appends err as a warning, or as a fatal report when err is a
// fatal VariomesError. A nil err is ignored.
func (r *Reports) FromError(service, description string, err error) {
	if err == nil {
		return
	}
	if IsFatal(err) {
		r.Fatal(service, description, err.Error())
		return
	}
	r.Warn(service, description, err.Error())
}

// Extend appends the reports of a callee.
func (r *Reports) Extend(other Reports) {
	*r = append(*r, other...)
}

// HasFatal reports whether any fatal report was recorded.
func (r Reports) HasFatal() bool {
	_, ok := r.FirstFatal()
	return ok
}

// FirstFatal returns the first fatal report.
func (r Reports) FirstFatal() (Report, bool) {
	for _, rep := range r {
		if rep.Level == LevelFatal {
			return rep, true
		}
	}
	return Report{}, false
}

// Dedup returns the reports with duplicates removed, first occurrence kept.
func (r Reports) Dedup() Reports {
	seen := make(map[Report]struct{}, len(r))
	out := make(Reports, 0, len(r))
	for _, rep := range r {
		if _, ok := seen[rep]; ok {
			continue
		}
		seen[rep] = struct{}{}
		out = append(out, rep)
	}
	return out
}

// Envelope is the single error object returned instead of any partial
// output when a request hits a fatal report.
type Envelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// TimestampLayout is the date format used in outputs and log files.
const TimestampLayout = "01/02/2006, 15:04:05"

// NewEnvelope builds the error envelope for a fatal report.
func NewEnvelope(rep Report, now time.Time) Envelope {
	return Envelope{
		Timestamp: now.Format(TimestampLayout),
		Status:    500,
		Error:     "Internal Server Error",
		Message:   rep.Description + ": " + rep.Details,
	}
}
