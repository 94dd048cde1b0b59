package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// normalizeText treats form feeds as page separators.
func normalizeText(data []byte) (*Document, error) {
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrCorruptDocument)
	}
	return fromPages(strings.Split(string(data), "\f"))
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
