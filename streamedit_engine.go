package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Engine runs a Program against input lines, one pass per line.
type Engine struct {
	program     *Program
	noAutoprint bool
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNoAutoprint disables the automatic print at the end of every pass.
func WithNoAutoprint(noAutoprint bool) EngineOption {
	return func(e *Engine) {
		e.noAutoprint = noAutoprint
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for program.
func NewEngine(program *Program, opts ...EngineOption) *Engine {
	e := &Engine{
		program: program,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pass holds the state of one walk over the program for a single line.
type pass struct {
	working      string
	terminator   string
	buffer       []string
	appends      []string
	substituted  bool
	defaultPrint bool
}

func (p *pass) flush(w io.Writer, parts ...[]string) error {
	for _, part := range parts {
		for _, s := range part {
			if _, err := io.WriteString(w, s); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
	}
	return nil
}

// ProcessLine runs one pass of the program over line, which may carry its
// line terminator. lineno is 1-based and last marks the final line of the
// stream. Output is written to w only once the pass is over. The returned
// bool is true when a q command ended the run.
func (e *Engine) ProcessLine(ctx context.Context, w io.Writer, line string, lineno int, last bool) (bool, error) {
	body, terminator := splitTerminator(line)
	p := &pass{
		working:      body,
		terminator:   terminator,
		defaultPrint: !e.noAutoprint,
	}

	cmds := e.program.commands
	for pc := 0; pc < len(cmds); pc++ {
		cmd := &cmds[pc]

		switch cmd.Kind {
		case CmdQuit:
			if !cmd.Address.Start.matches(p.working, lineno, last) {
				continue
			}
			e.logger.Debug("quit", zap.Int("line", lineno))
			return true, p.flush(w, p.buffer, []string{p.working + p.terminator})

		case CmdPrint:
			if cmd.Address.evaluate(&cmd.activeRange, p.working, lineno, last) {
				p.buffer = append(p.buffer, p.working+p.terminator)
			}

		case CmdDelete:
			if selected, _ := cmd.Address.evaluateEntering(&cmd.activeRange, p.working, lineno, last); selected {
				return false, nil
			}

		case CmdSubstitute:
			if !cmd.Address.evaluate(&cmd.activeRange, p.working, lineno, last) {
				continue
			}
			replaced := substitute(cmd.Pattern, p.working, cmd.Replace, replaceCount(cmd.Global))
			if replaced != p.working {
				p.working = replaced
				p.substituted = true
			}

		case CmdInsert:
			if cmd.Address.evaluate(&cmd.activeRange, p.working, lineno, last) {
				p.buffer = append(p.buffer, cmd.Text+"\n")
			}

		case CmdAppend:
			if cmd.Address.evaluate(&cmd.activeRange, p.working, lineno, last) {
				p.appends = append(p.appends, cmd.Text+"\n")
			}

		case CmdChange:
			switch cmd.Address.evaluateChange(&cmd.activeRange, p.working, lineno, last) {
			case changeReplace:
				p.buffer = append(p.buffer, cmd.Text+"\n")
				p.defaultPrint = false
				pc = len(cmds)
			case changeInside:
				p.defaultPrint = false
				pc = len(cmds)
			}

		case CmdLabel:

		case CmdBranch, CmdCondBranch:
			if !cmd.Address.evaluate(&cmd.activeRange, p.working, lineno, last) {
				continue
			}
			if cmd.Kind == CmdCondBranch {
				if !p.substituted {
					continue
				}
				p.substituted = false
			}
			if err := ctx.Err(); err != nil {
				return false, err
			}

			target := len(cmds)
			if cmd.Label != "" {
				pos, ok := e.program.labelPosition(cmd.Label)
				if !ok {
					return false, &ScriptError{Statement: cmd.Source, Err: ErrUndefinedLabel}
				}
				target = pos
			}
			e.logger.Debug("branch",
				zap.Int("line", lineno),
				zap.String("label", cmd.Label),
				zap.Int("target", target))
			// The loop increment steps past the label itself.
			pc = target
		}
	}

	if !p.defaultPrint {
		return false, p.flush(w, p.buffer)
	}
	return false, p.flush(w, p.buffer, []string{p.working + p.terminator}, p.appends)
}
