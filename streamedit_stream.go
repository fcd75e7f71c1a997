package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Source is a named input stream.
type Source struct {
	Name   string
	Reader io.Reader
}

// lineStream hands lines to the engine with exactly one line of lookahead,
// so the final line can be flagged as last once the input is exhausted.
type lineStream struct {
	engine     *Engine
	w          io.Writer
	lineno     int
	pending    string
	hasPending bool
}

func newLineStream(engine *Engine, w io.Writer) *lineStream {
	return &lineStream{engine: engine, w: w}
}

// feed queues line and processes the previously queued one.
func (s *lineStream) feed(ctx context.Context, line string) (bool, error) {
	var (
		quit bool
		err  error
	)
	if s.hasPending {
		s.lineno++
		quit, err = s.engine.ProcessLine(ctx, s.w, s.pending, s.lineno, false)
	}
	s.pending = line
	s.hasPending = true
	return quit, err
}

// feedReader feeds every line of r, terminators included.
func (s *lineStream) feedReader(ctx context.Context, r io.Reader) (bool, error) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			quit, ferr := s.feed(ctx, line)
			if ferr != nil || quit {
				return quit, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// finish processes the queued line as the last line of the stream.
func (s *lineStream) finish(ctx context.Context) (bool, error) {
	if !s.hasPending {
		return false, nil
	}
	s.hasPending = false
	s.lineno++
	return s.engine.ProcessLine(ctx, s.w, s.pending, s.lineno, true)
}

// Run processes sources as one logical stream: line numbers continue across
// sources and only the final line of the final source is the last line.
// It reports whether a q command stopped the run early.
func (e *Engine) Run(ctx context.Context, w io.Writer, sources ...Source) (bool, error) {
	stream := newLineStream(e, w)
	for _, src := range sources {
		quit, err := stream.feedReader(ctx, src.Reader)
		if err != nil {
			return false, fmt.Errorf("%s: %w", src.Name, err)
		}
		if quit {
			return true, nil
		}
	}
	return stream.finish(ctx)
}

// RunInPlace edits each file separately, writing the result back onto the
// file. Line numbers and the last-line flag restart for every file; range
// state on the program's commands does not. A q command finalizes the file
// being edited and leaves the remaining files untouched.
func (e *Engine) RunInPlace(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		quit, err := e.editFile(ctx, path)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return nil
}

func (e *Engine) editFile(ctx context.Context, path string) (quit bool, err error) {
	in, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	out, err := newInPlaceFile(path, info.Mode().Perm())
	if err != nil {
		return false, err
	}
	defer func() {
		if err == nil {
			return
		}
		if discardErr := out.Discard(); discardErr != nil {
			err = multierror.Append(err, discardErr)
		}
	}()

	stream := newLineStream(e, out)
	quit, err = stream.feedReader(ctx, in)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if !quit {
		if quit, err = stream.finish(ctx); err != nil {
			return false, fmt.Errorf("%s: %w", path, err)
		}
	}

	e.logger.Debug("finalize in-place edit", zap.String("path", path), zap.Bool("quit", quit))
	if err = out.Commit(); err != nil {
		return false, err
	}
	return quit, nil
}

// inPlaceFile is the output sink of an in-place edit: a temporary file next
// to the target that replaces the target on Commit.
type inPlaceFile struct {
	target string
	tmp    *os.File
	w      *bufio.Writer
	done   bool
}

func newInPlaceFile(target string, perm os.FileMode) (*inPlaceFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".streamedit-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", target, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to set mode on temporary file: %w", err)
	}
	return &inPlaceFile{target: target, tmp: tmp, w: bufio.NewWriter(tmp)}, nil
}

func (f *inPlaceFile) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Commit moves the temporary file onto the target.
func (f *inPlaceFile) Commit() error {
	if f.done {
		return nil
	}
	if err := f.w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.target, err)
	}
	if err := f.tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.target, err)
	}
	f.done = true
	return nil
}

// Discard removes the temporary file without touching the target.
func (f *inPlaceFile) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	var result *multierror.Error
	if err := f.tmp.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		result = multierror.Append(result, err)
	}
	if err := os.Remove(f.tmp.Name()); err != nil && !os.IsNotExist(err) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// OpenSources opens the named inputs. "-" and an empty list mean standard
// input. The returned function closes everything that was opened.
func OpenSources(names []string) ([]Source, func() error, error) {
	if len(names) == 0 {
		names = []string{"-"}
	}

	var (
		sources []Source
		files   []*os.File
	)
	closeAll := func() error {
		var result *multierror.Error
		for _, f := range files {
			if err := f.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	for _, name := range names {
		if name == "-" {
			sources = append(sources, Source{Name: "<stdin>", Reader: os.Stdin})
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			openErr := fmt.Errorf("error opening file %s: %w", name, err)
			if closeErr := closeAll(); closeErr != nil {
				return nil, nil, multierror.Append(openErr, closeErr)
			}
			return nil, nil, openErr
		}
		files = append(files, f)
		sources = append(sources, Source{Name: name, Reader: f})
	}

	return sources, closeAll, nil
}
