package parsers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON strips markdown code fences (if present) and returns the
// first balanced {...} substring of raw, suitable for json.Unmarshal. It
// tolerates braces embedded in string literals so a JSON value containing
// "{" in one of its fields doesn't terminate extraction early.
func ExtractJSON(raw string) (string, error) {
	s := raw
	if m := codeFenceRe.FindStringSubmatch(raw); m != nil {
		s = m[1]
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("parse_error: no JSON object found in output")
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
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("parse_error: unbalanced JSON object in output")
}

// ParseJSON extracts the first balanced JSON object from raw and unmarshals
// it into out.
func ParseJSON(raw string, out interface{}) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("parse_error: unmarshal extracted JSON: %w", err)
	}
	return nil
}
