package main

import (
	"regexp"
	"strconv"
)

// AddressKind selects how an Address is matched against a line.
type AddressKind int

const (
	// AddressAlways matches every line. It is the zero value, so a command
	// parsed without an address applies everywhere.
	AddressAlways AddressKind = iota
	AddressLine
	AddressRegex
	AddressLast
)

// Address is a single line selector.
type Address struct {
	Kind    AddressKind
	Line    int
	Pattern *regexp.Regexp
}

// String renders the address the way it is written in a script.
func (a Address) String() string {
	switch a.Kind {
	case AddressLine:
		return strconv.Itoa(a.Line)
	case AddressRegex:
		return "/" + a.Pattern.String() + "/"
	case AddressLast:
		return "$"
	}
	return ""
}

// matches reports whether the address selects the current line.
func (a Address) matches(text string, lineno int, last bool) bool {
	switch a.Kind {
	case AddressAlways:
		return true
	case AddressLine:
		return a.Line == lineno
	case AddressRegex:
		return a.Pattern.MatchString(text)
	case AddressLast:
		return last
	}
	return false
}

// AddressSpec is a command's full address. A nil End makes it single-shot.
type AddressSpec struct {
	Start Address
	End   *Address
}

func (s AddressSpec) String() string {
	if s.End == nil {
		return s.Start.String()
	}
	return s.Start.String() + "," + s.End.String()
}

// singleShot reports whether the spec behaves as a plain start-address match
// on this line: either there is no end address or the end is a line number
// that has already gone by.
func (s AddressSpec) singleShot(lineno int) bool {
	if s.End == nil {
		return true
	}
	return s.End.Kind == AddressLine && s.End.Line < lineno
}

// evaluate decides whether a command applies to the current line, opening
// and closing its range as needed. The line on which the range closes is
// still selected.
func (s AddressSpec) evaluate(active *bool, text string, lineno int, last bool) bool {
	if s.singleShot(lineno) {
		return s.Start.matches(text, lineno, last)
	}

	if s.Start.matches(text, lineno, last) {
		*active = true
	}
	result := *active
	if s.End.matches(text, lineno, last) {
		*active = false
	}
	return result
}

// evaluateEntering is evaluate for commands that must not close a range on
// the line that opened it. The end address is not consulted on the entry line.
func (s AddressSpec) evaluateEntering(active *bool, text string, lineno int, last bool) (selected, entered bool) {
	if s.singleShot(lineno) {
		return s.Start.matches(text, lineno, last), false
	}

	if s.Start.matches(text, lineno, last) {
		*active = true
		entered = true
	}
	selected = *active
	if !entered && s.End.matches(text, lineno, last) {
		*active = false
	}
	return selected, entered
}

// changeState is the outcome of evaluating a change command on one line.
type changeState int

const (
	changeNone    changeState = iota
	changeInside              // inside an open range, the line is swallowed
	changeReplace             // the line is replaced by the command's text
)

// evaluateChange applies the two-phase range logic of the c command: every
// line of the range is swallowed and the text is emitted once, on the line
// that closes the range. A single-shot spec replaces the matching line.
func (s AddressSpec) evaluateChange(active *bool, text string, lineno int, last bool) changeState {
	if s.singleShot(lineno) {
		if s.Start.matches(text, lineno, last) {
			return changeReplace
		}
		return changeNone
	}

	entered := false
	if s.Start.matches(text, lineno, last) {
		*active = true
		entered = true
	}
	if !*active {
		return changeNone
	}
	if entered {
		return changeInside
	}
	if s.End.matches(text, lineno, last) {
		*active = false
		return changeReplace
	}
	return changeInside
}
