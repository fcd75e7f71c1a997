package main

import (
	"regexp"
	"strconv"
	"strings"
)

// unescapeLiteral removes every backslash from s. The bodies of an s command
// are stored this way, so "a\/b" matches "a/b".
func unescapeLiteral(s string) string {
	return strings.ReplaceAll(s, `\`, "")
}

// replaceCount returns how many matches a substitution may replace.
func replaceCount(global bool) int {
	if global {
		return -1
	}
	return 1
}

// substitute replaces up to n non-overlapping matches of re in input with
// the literal replacement. A negative n replaces every match.
func substitute(re *regexp.Regexp, input, replacement string, n int) string {
	matches := re.FindAllStringIndex(input, n)
	if len(matches) == 0 {
		return input
	}

	var result strings.Builder
	last := 0
	for _, m := range matches {
		result.WriteString(input[last:m[0]])
		result.WriteString(replacement)
		last = m[1]
	}
	result.WriteString(input[last:])

	return result.String()
}

// splitTerminator separates a line from its trailing line terminator.
func splitTerminator(line string) (body, terminator string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// processEscapeSequences converts escape sequences in a string
// Handles: \n, \r, \t, \\, and \xHH hex escapes
func processEscapeSequences(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' || i+1 >= len(runes) {
			result.WriteRune(runes[i])
			continue
		}

		switch runes[i+1] {
		case 'n':
			result.WriteRune('\n')
			i++
		case 'r':
			result.WriteRune('\r')
			i++
		case 't':
			result.WriteRune('\t')
			i++
		case '\\':
			result.WriteRune('\\')
			i++
		case 'x':
			// Handle \xHH hex escape
			if i+3 < len(runes) {
				if val, err := strconv.ParseUint(string(runes[i+2:i+4]), 16, 8); err == nil {
					result.WriteRune(rune(val))
					i += 3
					continue
				}
			}
			result.WriteRune(runes[i])
		default:
			// Not a recognized escape sequence, keep the backslash
			result.WriteRune(runes[i])
		}
	}

	return result.String()
}
