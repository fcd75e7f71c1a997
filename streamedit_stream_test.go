package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func newTestEngine(t *testing.T, script string, opts ...EngineOption) *Engine {
	t.Helper()
	program, err := ParseScript(script)
	if err != nil {
		t.Fatalf("ParseScript(%q) failed: %v", script, err)
	}
	return NewEngine(program, opts...)
}

func TestRunCollectedSpansSources(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		noAutoprint bool
		want        string
	}{
		{"line numbers continue", "2d", false, "a\nc\n"},
		{"last line is in the last source", "$p", true, "c\n"},
		{"range crosses sources", "1,2s/$/!/", false, "a!\nb!\nc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, tt.script, WithNoAutoprint(tt.noAutoprint))
			var out strings.Builder
			_, err := engine.Run(context.Background(), &out,
				Source{Name: "first", Reader: strings.NewReader("a\n")},
				Source{Name: "second", Reader: strings.NewReader("b\nc\n")},
			)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, out.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunCollectedEmptyInput(t *testing.T) {
	engine := newTestEngine(t, "$p")
	var out strings.Builder
	quit, err := engine.Run(context.Background(), &out, Source{Name: "empty", Reader: strings.NewReader("")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if quit || out.Len() != 0 {
		t.Errorf("Expected no output, got %q (quit=%v)", out.String(), quit)
	}
}

func TestRunCollectedQuitStopsLaterSources(t *testing.T) {
	engine := newTestEngine(t, "1q")
	var out strings.Builder
	quit, err := engine.Run(context.Background(), &out,
		Source{Name: "first", Reader: strings.NewReader("a\nb\n")},
		Source{Name: "second", Reader: strings.NewReader("c\n")},
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !quit {
		t.Error("Expected quit")
	}
	if diff := cmp.Diff("a\n", out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInPlacePerFileNumbering(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "a1\na2\na3\n")
	second := writeFile(t, dir, "second.txt", "b1\nb2\n")

	engine := newTestEngine(t, "1d;$s/$/!/")
	if err := engine.RunInPlace(context.Background(), first, second); err != nil {
		t.Fatalf("RunInPlace failed: %v", err)
	}

	if diff := cmp.Diff("a2\na3!\n", readFile(t, first)); diff != "" {
		t.Errorf("first file mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("b2!\n", readFile(t, second)); diff != "" {
		t.Errorf("second file mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInPlaceRangeCrossesFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "a\nstart\nb\n")
	second := writeFile(t, dir, "second.txt", "c\nend\nd\n")

	engine := newTestEngine(t, "/start/,/end/d")
	if err := engine.RunInPlace(context.Background(), first, second); err != nil {
		t.Fatalf("RunInPlace failed: %v", err)
	}

	if diff := cmp.Diff("a\n", readFile(t, first)); diff != "" {
		t.Errorf("first file mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("d\n", readFile(t, second)); diff != "" {
		t.Errorf("second file mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInPlaceQuitFinalizes(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "a\nb\nc\n")
	second := writeFile(t, dir, "second.txt", "x\n")

	engine := newTestEngine(t, "2q")
	if err := engine.RunInPlace(context.Background(), first, second); err != nil {
		t.Fatalf("RunInPlace failed: %v", err)
	}

	if diff := cmp.Diff("a\nb\n", readFile(t, first)); diff != "" {
		t.Errorf("first file mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("x\n", readFile(t, second)); diff != "" {
		t.Errorf("second file should be untouched (-want +got):\n%s", diff)
	}
}

func TestRunInPlaceKeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "script.sh", "echo hi\n")
	if err := os.Chmod(path, 0o750); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	engine := newTestEngine(t, "s/hi/bye/")
	if err := engine.RunInPlace(context.Background(), path); err != nil {
		t.Fatalf("RunInPlace failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o750 {
		t.Errorf("Expected mode 0750, got %v", info.Mode().Perm())
	}
	if diff := cmp.Diff("echo bye\n", readFile(t, path)); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInPlaceMissingFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "a\n")

	engine := newTestEngine(t, "s/a/b/")
	err := engine.RunInPlace(context.Background(), first, filepath.Join(dir, "missing.txt"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only first.txt in %s, got %v", dir, names)
	}
	if diff := cmp.Diff("b\n", readFile(t, first)); diff != "" {
		t.Errorf("first file mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInPlaceCancelledDiscards(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loop.txt", "x\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(t, ":a;ba")
	if err := engine.RunInPlace(ctx, path); err == nil {
		t.Fatal("Expected cancelled run to fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected temporary file to be removed, found %d entries", len(entries))
	}
	if diff := cmp.Diff("x\n", readFile(t, path)); diff != "" {
		t.Errorf("file should be untouched (-want +got):\n%s", diff)
	}
}

func TestOpenSources(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.txt", "hello\n")

	sources, closeAll, err := OpenSources([]string{path, "-"})
	if err != nil {
		t.Fatalf("OpenSources failed: %v", err)
	}
	defer closeAll()

	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != path || sources[1].Name != "<stdin>" {
		t.Errorf("Unexpected source names %q, %q", sources[0].Name, sources[1].Name)
	}

	if _, _, err := OpenSources([]string{path, filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOpenSourcesDefaultsToStdin(t *testing.T) {
	sources, closeAll, err := OpenSources(nil)
	if err != nil {
		t.Fatalf("OpenSources failed: %v", err)
	}
	defer closeAll()

	if len(sources) != 1 || sources[0].Reader != os.Stdin {
		t.Errorf("Expected standard input, got %+v", sources)
	}
}
