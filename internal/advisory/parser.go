// internal/advisory/parser.go
package advisory

import (
	"strings"

	"mcp-chew-check/internal/models"
)

// Response is the outcome of reading an advisory reply: either Parsed or Unparsable.
type Response interface {
	isResponse()
}

// Parsed holds a reply that carried a recognisable VERDICT line.
type Parsed struct {
	Verdict models.FoodVerdict
	Reasons []string
}

// Unparsable holds a reply with no usable verdict. Raw is empty when the
// advisor could not be reached at all.
type Unparsable struct {
	Raw string
}

func (Parsed) isResponse()     {}
func (Unparsable) isResponse() {}

const (
	verdictPrefix = "VERDICT:"
	reasonsPrefix = "REASONS:"
)

// Parse extracts the "VERDICT:" and "REASONS:" lines from free text. Prefixes
// are matched case-insensitively after trimming; markdown emphasis is ignored.
func Parse(text string) Response {
	var verdictText string
	var reasons []string
	found := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "*")
		line = strings.TrimSpace(line)
		switch {
		case hasPrefixFold(line, verdictPrefix):
			verdictText = cleanValue(line[len(verdictPrefix):])
			found = true
		case hasPrefixFold(line, reasonsPrefix):
			if r := cleanValue(line[len(reasonsPrefix):]); r != "" {
				reasons = []string{r}
			}
		}
	}

	if !found {
		return Unparsable{Raw: text}
	}
	v, ok := models.ParseVerdict(verdictText)
	if !ok {
		return Unparsable{Raw: text}
	}
	return Parsed{Verdict: v, Reasons: reasons}
}

// hasPrefixFold compares the leading bytes only, so the prefix length is
// also the byte offset of the value.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*[]\"'.")
	return strings.TrimSpace(s)
}
