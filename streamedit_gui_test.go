package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProgramRowLabel(t *testing.T) {
	core := NewStreamEditorCore(nil)
	if err := core.SetScript(":top\n/x/,$s/x/y/g\n2a HELLO\np\nt top"); err != nil {
		t.Fatalf("SetScript failed: %v", err)
	}

	var got []string
	for _, info := range core.GetProgram() {
		got = append(got, programRowLabel(info))
	}

	want := []string{
		":top",
		`/x/,$ substitute "x" -> "y" (all)`,
		`2 append "HELLO"`,
		"print",
		"branch-if-substituted top",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row labels mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptStatus(t *testing.T) {
	tests := []struct {
		commands int
		err      error
		want     string
	}{
		{0, nil, "✓ 0 commands"},
		{1, nil, "✓ 1 command"},
		{3, nil, "✓ 3 commands"},
		{2, errors.New("undefined label"), "✗ undefined label"},
	}

	for _, tt := range tests {
		if got := scriptStatus(tt.commands, tt.err); got != tt.want {
			t.Errorf("scriptStatus(%d, %v) = %q, want %q", tt.commands, tt.err, got, tt.want)
		}
	}
}
