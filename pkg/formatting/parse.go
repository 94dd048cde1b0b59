package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when no JSON value can be recovered from content.
var ErrParseFailed = errors.New("failed to parse response")

// excerptLimit bounds how much of the rejected content an error carries.
const excerptLimit = 200

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")

// Parse decodes content into T. Models often wrap their answer, so Parse
// tries, in order: the raw content, the first fenced code block, and the
// outermost object or array found in surrounding prose.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
		result = *new(T)
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, excerpt(content))
}

func candidates(content string) []string {
	out := []string{content}

	if m := fencePattern.FindStringSubmatch(content); len(m) == 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if s := embedded(content, '{', '}'); s != "" {
		out = append(out, s)
	}
	if s := embedded(content, '[', ']'); s != "" {
		out = append(out, s)
	}
	return out
}

func embedded(content string, open, close byte) string {
	start := strings.IndexByte(content, open)
	end := strings.LastIndexByte(content, close)
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit] + "..."
}
