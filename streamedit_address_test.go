package main

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lineAddr(n int) Address {
	return Address{Kind: AddressLine, Line: n}
}

func regexAddr(pattern string) Address {
	return Address{Kind: AddressRegex, Pattern: regexp.MustCompile(pattern)}
}

// selectLines runs evaluate over lines and returns the 1-based numbers of
// the selected ones.
func selectLines(spec AddressSpec, lines []string) []int {
	var active bool
	var selected []int
	for i, line := range lines {
		if spec.evaluate(&active, line, i+1, i == len(lines)-1) {
			selected = append(selected, i+1)
		}
	}
	return selected
}

func TestAddressMatches(t *testing.T) {
	tests := []struct {
		name   string
		addr   Address
		text   string
		lineno int
		last   bool
		want   bool
	}{
		{"always", Address{}, "x", 7, false, true},
		{"line hit", lineAddr(3), "x", 3, false, true},
		{"line miss", lineAddr(3), "x", 4, false, false},
		{"line zero", lineAddr(0), "x", 1, false, false},
		{"regex hit", regexAddr("fo+"), "a foo", 1, false, true},
		{"regex miss", regexAddr("fo+"), "bar", 1, false, false},
		{"last", Address{Kind: AddressLast}, "x", 9, true, true},
		{"not last", Address{Kind: AddressLast}, "x", 9, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.matches(tt.text, tt.lineno, tt.last); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddressSpecEvaluate(t *testing.T) {
	lines := []string{"a", "on", "b", "off", "c", "on", "d"}
	end3 := lineAddr(3)
	endOff := regexAddr("off")
	end1 := lineAddr(1)
	endLast := Address{Kind: AddressLast}

	tests := []struct {
		name string
		spec AddressSpec
		want []int
	}{
		{"single line", AddressSpec{Start: lineAddr(2)}, []int{2}},
		{"single regex", AddressSpec{Start: regexAddr("^on$")}, []int{2, 6}},
		{"no address", AddressSpec{}, []int{1, 2, 3, 4, 5, 6, 7}},
		{"line range", AddressSpec{Start: lineAddr(1), End: &end3}, []int{1, 2, 3}},
		{"regex range reopens", AddressSpec{Start: regexAddr("^on$"), End: &endOff}, []int{2, 3, 4, 6, 7}},
		{"end already past", AddressSpec{Start: lineAddr(3), End: &end1}, []int{3}},
		{"until last", AddressSpec{Start: lineAddr(5), End: &endLast}, []int{5, 6, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, selectLines(tt.spec, lines)); diff != "" {
				t.Errorf("selected lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateClosesOnEntryLine(t *testing.T) {
	end := regexAddr("x")
	spec := AddressSpec{Start: regexAddr("x"), End: &end}

	var active bool
	if !spec.evaluate(&active, "x", 1, false) {
		t.Fatal("Expected entry line to be selected")
	}
	if active {
		t.Error("Expected range to close on a line matching both addresses")
	}
}

func TestEvaluateEnteringKeepsRangeOpen(t *testing.T) {
	end := regexAddr("x")
	spec := AddressSpec{Start: regexAddr("x"), End: &end}

	var active bool
	selected, entered := spec.evaluateEntering(&active, "x", 1, false)
	if !selected || !entered {
		t.Fatalf("Expected selected and entered, got %v %v", selected, entered)
	}
	if !active {
		t.Error("Expected range to stay open on the entry line")
	}

	selected, entered = spec.evaluateEntering(&active, "y", 2, false)
	if !selected || entered {
		t.Errorf("Expected selected inside range, got %v %v", selected, entered)
	}
}

func TestEvaluateChange(t *testing.T) {
	end := lineAddr(3)
	spec := AddressSpec{Start: lineAddr(2), End: &end}

	var active bool
	want := []changeState{changeNone, changeInside, changeReplace, changeNone}
	for i, w := range want {
		if got := spec.evaluateChange(&active, "x", i+1, false); got != w {
			t.Errorf("line %d: got %v, want %v", i+1, got, w)
		}
	}

	single := AddressSpec{Start: regexAddr("b")}
	if got := single.evaluateChange(&active, "abc", 1, false); got != changeReplace {
		t.Errorf("Expected single address to replace, got %v", got)
	}
}

func TestAddressSpecString(t *testing.T) {
	end := Address{Kind: AddressLast}
	tests := []struct {
		spec AddressSpec
		want string
	}{
		{AddressSpec{}, ""},
		{AddressSpec{Start: lineAddr(4)}, "4"},
		{AddressSpec{Start: regexAddr("a.c"), End: &end}, "/a.c/,$"},
	}

	for _, tt := range tests {
		if got := tt.spec.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
