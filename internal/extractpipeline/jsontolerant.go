package extractpipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSONObject implements the tolerant JSON extractor shared by every
// CDEME stage: a permissive "find any JSON object in this string" pass
// first, then a code-fence-stripped retry, then failure. dst must be a
// pointer to the shape the caller expects (map[string]string,
// map[string]any, or a small struct).
func ExtractJSONObject(raw string, dst any) bool {
	if tryUnmarshalBraces(raw, dst) {
		return true
	}
	if m := codeFencePattern.FindStringSubmatch(raw); m != nil {
		if tryUnmarshalBraces(m[1], dst) {
			return true
		}
	}
	return false
}

// tryUnmarshalBraces finds the outermost "{...}" span in s and attempts a
// strict JSON parse of it into dst.
func tryUnmarshalBraces(s string, dst any) bool {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), dst) == nil
}
