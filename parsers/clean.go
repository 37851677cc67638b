// Package parsers implements the pipeline's two LLM output parsers: Clean,
// which strips reasoning markup from free-text model output, and ExtractJSON,
// which extracts a single balanced JSON object from a fenced or narrated
// response. Neither has a natural third-party analogue in the reference
// corpus (see DESIGN.md); both are built on the standard regexp/strings
// packages, which is the idiomatic Go choice for this kind of text
// transformation.
package parsers

import (
	"regexp"
	"strings"
)

var (
	thinkTagRe   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	markupTagRe  = regexp.MustCompile(`(?is)</?(?:think|reasoning|scratchpad|reflection)[^>]*>`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Clean strips <think>...</think> blocks and related reasoning markup from
// raw LLM output, collapses repeated whitespace, and trims the result.
// Clean is idempotent: Clean(Clean(s)) == Clean(s).
func Clean(raw string) string {
	s := thinkTagRe.ReplaceAllString(raw, "")
	s = markupTagRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	return strings.TrimSpace(s)
}
