// Package validator enforces that a synthesized SQL statement is read-only:
// a single SELECT, optionally wrapped in one or more CTEs. A single trailing
// ';' is tolerated; a separator followed by another statement is rejected.
// It deliberately does not implement a general SQL parser or query planner
// (out of scope); it is built on the standard library only (see DESIGN.md).
package validator

import (
	"fmt"
	"regexp"
	"strings"
)

var writeKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "replace", "merge", "call",
	"exec", "execute", "vacuum", "attach", "detach", "pragma",
}

var leadingCommentRe = regexp.MustCompile(`(?s)^(\s*--[^\n]*\n|\s*/\*.*?\*/)+`)

// ValidateReadOnly returns nil if stmt is a single read-only statement
// (SELECT, or one or more CTEs terminating in a SELECT). It returns a
// validation_error describing the first rule violated otherwise.
func ValidateReadOnly(stmt string) error {
	trimmed := stripLeadingComments(stmt)
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return fmt.Errorf("validation_error: empty statement")
	}

	if err := checkSingleStatement(trimmed); err != nil {
		return err
	}

	if err := checkNoWriteKeyword(trimmed); err != nil {
		return err
	}

	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") && !strings.HasPrefix(lowered, "with") {
		return fmt.Errorf("validation_error: statement must start with SELECT or WITH, got: %s", firstWord(trimmed))
	}

	return nil
}

// checkSingleStatement rejects a trailing ";" followed by more statements.
// A single trailing ";" with only whitespace after it is tolerated.
func checkSingleStatement(stmt string) error {
	body := stmt
	inString := false
	var quote byte

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case inString:
			if c == quote {
				inString = false
			}
		case c == '\'' || c == '"':
			inString = true
			quote = c
		case c == ';':
			rest := strings.TrimSpace(body[i+1:])
			if rest != "" {
				return fmt.Errorf("validation_error: multiple statements are not allowed")
			}
			return nil
		}
	}
	return nil
}

func checkNoWriteKeyword(stmt string) error {
	lowered := strings.ToLower(stmt)
	for _, kw := range writeKeywords {
		if containsKeyword(lowered, kw) {
			return fmt.Errorf("validation_error: write/DDL keyword '%s' is not allowed", kw)
		}
	}
	return nil
}

func containsKeyword(s, kw string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], kw)
		if pos == -1 {
			return false
		}
		abs := idx + pos
		before := abs == 0 || !isIdentChar(s[abs-1])
		afterIdx := abs + len(kw)
		after := afterIdx == len(s) || !isIdentChar(s[afterIdx])
		if before && after {
			return true
		}
		idx = abs + 1
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func stripLeadingComments(stmt string) string {
	return leadingCommentRe.ReplaceAllString(stmt, "")
}

func firstWord(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
