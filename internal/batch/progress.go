package batch

// Stage is a step of a variant batch.
type Stage int

const (
	StageNormalize Stage = iota
	StageSearch
	StagePrepare
	StageDone
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageNormalize:
		return "normalize"
	case StageSearch:
		return "search"
	case StagePrepare:
		return "prepare"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event reports batch progress. Current counts from 1 within Total.
type Event struct {
	Stage      Stage
	Current    int
	Total      int
	Collection string
	Message    string
	// Found is the number of documents ranked by a finished search.
	Found int
}

// ProgressFunc receives progress events. Search events of different
// collections may arrive concurrently.
type ProgressFunc func(Event)
