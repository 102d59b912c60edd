package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxLiteralKey is the longest query used verbatim as a file name.
const maxLiteralKey = 20

var unsafeChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "", " ", "",
)

// FileKey returns the file name stem for a query.
func FileKey(query string) string {
	if len(query) > maxLiteralKey {
		sum := sha256.Sum224([]byte(query))
		query = hex.EncodeToString(sum[:])
	}
	return unsafeChars.Replace(query)
}
