// Package llmjson extracts structured data from unreliable model output.
// Completions frequently wrap JSON in prose, code fences, or get truncated
// mid-object; parsing goes through tiers: balanced-brace extraction plus a
// strict parse, a repair pass, and finally a narrow per-field regex.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"github.com/kaptinlin/jsonrepair"
)

var ErrNoObject = errors.New("llmjson: no JSON object found")

// ExtractObject returns the first balanced top-level {...} substring.
// Braces inside string literals are skipped.
func ExtractObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// Unmarshal parses the first JSON object found in s into v. A strict
// parse is attempted first; on failure the extracted object (or, when no
// balanced object exists, the raw text) is run through jsonrepair and
// parsed again.
func Unmarshal(s string, v any) error {
	obj, ok := ExtractObject(s)
	if ok {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	} else {
		obj = s
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return ErrNoObject
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return err
	}
	return nil
}

// IntField extracts a single integer field by name, e.g. `"selected": 3`,
// without requiring the surrounding document to parse. This is the last
// resort for truncated responses.
func IntField(s, name string) (int, bool) {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*(-?\d+)`)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
