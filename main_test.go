package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestCLIEditsFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.txt", "foo\nbar\n")
	second := writeFile(t, dir, "second.txt", "baz\nfoo\n")

	out, err := runCLI(t, "s/foo/FOO/", first, second)
	require.NoError(t, err)
	require.Equal(t, "FOO\nbar\nbaz\nFOO\n", out)

	out, err = runCLI(t, "-n", "$p", first, second)
	require.NoError(t, err)
	require.Equal(t, "foo\n", out)
}

func TestCLIScriptFile(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "edit.sed", "# number two goes\n2d\n1a\\\nafter one\n")
	input := writeFile(t, dir, "in.txt", "one\ntwo\nthree\n")

	out, err := runCLI(t, "-f", script, input)
	require.NoError(t, err)
	require.Equal(t, "one\nafter one\nthree\n", out)
}

func TestCLIInPlace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "in.txt", "keep\ndrop\n")

	out, err := runCLI(t, "-i", "/drop/d", path)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, "keep\n", readFile(t, path))
}

func TestCLIInPlaceRequiresFiles(t *testing.T) {
	_, err := runCLI(t, "-i", "p")
	require.ErrorContains(t, err, "requires at least one file")

	_, err = runCLI(t, "-i", "p", "-")
	require.ErrorContains(t, err, "standard input")
}

func TestCLIErrors(t *testing.T) {
	_, err := runCLI(t)
	require.ErrorIs(t, err, errNoScript)

	_, err = runCLI(t, "wat", filepath.Join(t.TempDir(), "in.txt"))
	require.ErrorIs(t, err, ErrInvalidCommand)

	_, err = runCLI(t, "p", filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)

	_, err = runCLI(t, "--color", "purple", "p")
	require.ErrorContains(t, err, "color must be")
}

func TestCLIConfigFile(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "streamedit.yaml", "no_autoprint: true\ncolor: never\n")
	input := writeFile(t, dir, "in.txt", "a\nb\n")

	out, err := runCLI(t, "--config", config, "/b/p", input)
	require.NoError(t, err)
	require.Equal(t, "b\n", out)

	// An explicit flag wins over the file.
	out, err = runCLI(t, "--config", config, "--quiet=false", "/b/p", input)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nb\n", out)
}

func TestResolveScript(t *testing.T) {
	script, files, err := resolveScript("", []string{"p", "a", "b"})
	require.NoError(t, err)
	require.Equal(t, "p", script)
	require.Equal(t, []string{"a", "b"}, files)

	_, _, err = resolveScript(filepath.Join(t.TempDir(), "nope"), nil)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "s")
	require.NoError(t, os.WriteFile(path, []byte("d"), 0o644))
	script, files, err = resolveScript(path, []string{"x"})
	require.NoError(t, err)
	require.Equal(t, "d", script)
	require.Equal(t, []string{"x"}, files)
}

func TestServeStopsOnCancel(t *testing.T) {
	socketPath := "/tmp/test_streamedit_serve.sock"
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"serve", "--socket", socketPath})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	require.Contains(t, stdout.String(), "Shutting down...")

	_, err := os.Stat(socketPath)
	require.True(t, os.IsNotExist(err), "socket file should be removed")
}
