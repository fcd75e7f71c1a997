package main

import (
	"strings"
	"unicode"
)

// stripComments removes a trailing # comment from a single script line.
// A # inside a /regex/ literal or inside the bodies of an s command is kept,
// as is any character preceded by a backslash.
func stripComments(line string) string {
	var (
		result         strings.Builder
		runes          = []rune(line)
		escaped        bool
		inRegex        bool
		inSubstitute   bool
		delimiter      rune
		delimiterCount int
	)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case inSubstitute:
			if ch == delimiter {
				delimiterCount++
				if delimiterCount == 3 {
					inSubstitute = false
				}
			}
		case inRegex:
			if ch == '/' {
				inRegex = false
			}
		case ch == '/':
			inRegex = true
		case ch == 's' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]):
			// The delimiter itself is the first of the three occurrences.
			delimiter = runes[i+1]
			inSubstitute = true
			delimiterCount = 0
		case ch == '#':
			return result.String()
		}

		result.WriteRune(ch)
	}

	return result.String()
}

// splitScript strips comments from every script line and returns the
// non-empty, trimmed lines in order.
func splitScript(script string) []string {
	var statements []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(stripComments(strings.TrimSuffix(line, "\r")))
		if line != "" {
			statements = append(statements, line)
		}
	}
	return statements
}
