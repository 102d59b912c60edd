package ui

import (
	"fmt"
	"strings"
)

// yieldBars are the bar heights of a yield chart, lowest first.
var yieldBars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// noYield marks a search that ranked no document.
const noYield = '·'

// YieldChart charts the number of documents each search ranked, one bar
// per topic and collection, newest on the right. It keeps the last
// capacity searches and running totals over all of them.
type YieldChart struct {
	found    []int
	next     int
	kept     int
	searches int
	empty    int
	docs     int
}

// NewYieldChart creates a chart keeping the last capacity searches.
func NewYieldChart(capacity int) *YieldChart {
	return &YieldChart{found: make([]int, max(capacity, 1))}
}

// Add records one finished search.
func (y *YieldChart) Add(found int) {
	found = max(found, 0)
	y.found[y.next] = found
	y.next = (y.next + 1) % len(y.found)
	y.kept = min(y.kept+1, len(y.found))

	y.searches++
	y.docs += found
	if found == 0 {
		y.empty++
	}
}

// Reset forgets every search.
func (y *YieldChart) Reset() {
	clear(y.found)
	y.next, y.kept = 0, 0
	y.searches, y.empty, y.docs = 0, 0, 0
}

// Searches returns the number of searches recorded since the last reset.
func (y *YieldChart) Searches() int { return y.searches }

// Empty returns the number of searches that ranked no document.
func (y *YieldChart) Empty() int { return y.empty }

// Documents returns the number of documents ranked over all searches.
func (y *YieldChart) Documents() int { return y.docs }

// recent returns up to n of the kept counts, oldest first.
func (y *YieldChart) recent(n int) []int {
	n = min(n, y.kept)
	out := make([]int, n)
	for i := range out {
		out[i] = y.found[(y.next-n+i+len(y.found))%len(y.found)]
	}
	return out
}

// Render draws the last width searches right-aligned in width cells.
// Bars scale to the largest count shown; a search without documents is
// drawn as a dot so it is not mistaken for a small one.
func (y *YieldChart) Render(width int) string {
	if width <= 0 {
		return ""
	}
	counts := y.recent(width)

	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(counts)))
	for _, c := range counts {
		if c == 0 {
			sb.WriteRune(noYield)
			continue
		}
		sb.WriteRune(yieldBars[c*(len(yieldBars)-1)/peak])
	}
	return sb.String()
}

// Summary describes the totals, e.g. "42 documents in 6 searches, 1 empty".
func (y *YieldChart) Summary() string {
	if y.searches == 0 {
		return "no searches yet"
	}
	s := fmt.Sprintf("%d documents in %d searches", y.docs, y.searches)
	if y.empty > 0 {
		s += fmt.Sprintf(", %d empty", y.empty)
	}
	return s
}
