package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFenceRe   = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	plainFenceRe  = regexp.MustCompile("(?s)```\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// RecoverJSON extracts a JSON object from raw model output and unmarshals
// it into v. Models wrap JSON in markdown fences or prose more often than
// they should, so parsing runs through a chain of strategies: the raw text,
// a ```json fence, any ``` fence, the first balanced object, and finally
// the balanced object with trailing commas stripped.
func RecoverJSON(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty model output")
	}
	if json.Unmarshal([]byte(trimmed), v) == nil {
		return nil
	}
	for _, re := range []*regexp.Regexp{jsonFenceRe, plainFenceRe} {
		if m := re.FindStringSubmatch(trimmed); m != nil {
			candidate := strings.TrimSpace(m[1])
			if json.Unmarshal([]byte(candidate), v) == nil {
				return nil
			}
		}
	}
	if obj := firstBalancedObject(trimmed); obj != "" {
		if json.Unmarshal([]byte(obj), v) == nil {
			return nil
		}
		repaired := trailingComma.ReplaceAllString(obj, "$1")
		if json.Unmarshal([]byte(repaired), v) == nil {
			return nil
		}
	}
	return fmt.Errorf("no parseable JSON object in model output")
}

// firstBalancedObject returns the first {...} span with balanced braces,
// skipping braces inside string literals. Empty when none exists.
func firstBalancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
