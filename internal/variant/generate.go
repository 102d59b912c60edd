package variant

import (
	"regexp"

	"github.com/Aman-CERP/variomes/internal/textutil"
)

var (
	// exon9 -> exon 9, exon9, exon-9, exon_9
	wordNumber = regexp.MustCompile(`^([a-zA-Z]+) *(\d+)$`)
	// A250_Y252 -> A250 Y252, A250Y252, A250_Y252, A250-Y252
	positionRange = regexp.MustCompile(`^([A-Z]*\d+)[- _]([A-Z]*\d+)$`)
	// A250_Y252 -> 250 252, 250_252, 250-252
	residueRange = regexp.MustCompile(`^[A-Z](\d+)[- _][A-Z](\d+)$`)
)

// Generate builds separator variants of a variant expression. It returns
// an empty list when no rule applies.
func Generate(term string) []string {
	var out []string
	if m := wordNumber.FindStringSubmatch(term); m != nil {
		out = append(out, m[1]+" "+m[2], m[1]+m[2], m[1]+"-"+m[2], m[1]+"_"+m[2])
	}
	if m := positionRange.FindStringSubmatch(term); m != nil {
		out = append(out, m[1]+" "+m[2], m[1]+m[2], m[1]+"_"+m[2], m[1]+"-"+m[2])
	}
	if m := residueRange.FindStringSubmatch(term); m != nil {
		out = append(out, m[1]+" "+m[2], m[1]+"_"+m[2], m[1]+"-"+m[2])
	}
	return textutil.Unique(out)
}
