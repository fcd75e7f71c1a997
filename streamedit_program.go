package main

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidCommand is returned when a script statement matches no command shape.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUndefinedLabel is returned when b or t names a label that does not exist.
	ErrUndefinedLabel = errors.New("undefined label")
)

// ScriptError reports the statement that made a script unusable.
type ScriptError struct {
	Statement string
	Err       error
}

func (e *ScriptError) Error() string {
	if e.Statement == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Statement)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// CommandKind identifies the effect of a command.
type CommandKind int

const (
	CmdQuit CommandKind = iota
	CmdPrint
	CmdDelete
	CmdSubstitute
	CmdAppend
	CmdInsert
	CmdChange
	CmdLabel
	CmdBranch
	CmdCondBranch
)

var commandNames = map[CommandKind]string{
	CmdQuit:       "quit",
	CmdPrint:      "print",
	CmdDelete:     "delete",
	CmdSubstitute: "substitute",
	CmdAppend:     "append",
	CmdInsert:     "insert",
	CmdChange:     "change",
	CmdLabel:      "label",
	CmdBranch:     "branch",
	CmdCondBranch: "branch-if-substituted",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is one parsed statement of a script. Only the fields relevant to
// Kind are set.
type Command struct {
	Kind    CommandKind
	Address AddressSpec

	// Substitute
	Pattern *regexp.Regexp
	Match   string
	Replace string
	Global  bool

	// Append, Insert, Change
	Text string

	// Label, Branch, CondBranch. An empty target on a branch means the end of
	// the program.
	Label string

	Source string

	activeRange bool
}

// Detail returns a short human readable description of the command's arguments.
func (c *Command) Detail() string {
	switch c.Kind {
	case CmdSubstitute:
		if c.Global {
			return fmt.Sprintf("%q -> %q (all)", c.Match, c.Replace)
		}
		return fmt.Sprintf("%q -> %q", c.Match, c.Replace)
	case CmdAppend, CmdInsert, CmdChange:
		return fmt.Sprintf("%q", c.Text)
	case CmdLabel:
		return c.Label
	case CmdBranch, CmdCondBranch:
		if c.Label == "" {
			return "(end)"
		}
		return c.Label
	}
	return ""
}

// Program is an ordered sequence of commands plus the positions of its labels.
// Range state is owned by the command slots and persists for the lifetime of
// the Program.
type Program struct {
	commands []Command
	labels   map[string]int
}

// NewProgram builds a program from parsed commands and resolves every branch
// target against the labels it contains.
func NewProgram(commands []Command) (*Program, error) {
	p := &Program{
		commands: commands,
		labels:   make(map[string]int),
	}

	for i := range p.commands {
		if p.commands[i].Kind == CmdLabel {
			if _, exists := p.labels[p.commands[i].Label]; !exists {
				p.labels[p.commands[i].Label] = i
			}
		}
	}

	for i := range p.commands {
		cmd := &p.commands[i]
		if cmd.Kind != CmdBranch && cmd.Kind != CmdCondBranch {
			continue
		}
		if cmd.Label == "" {
			continue
		}
		if _, ok := p.labels[cmd.Label]; !ok {
			return nil, &ScriptError{Statement: cmd.Source, Err: ErrUndefinedLabel}
		}
	}

	return p, nil
}

// Len returns the number of commands in the program.
func (p *Program) Len() int {
	return len(p.commands)
}

// Commands returns a copy of the program's commands.
func (p *Program) Commands() []Command {
	result := make([]Command, len(p.commands))
	copy(result, p.commands)
	return result
}

// labelPosition returns the index of the named label.
func (p *Program) labelPosition(name string) (int, bool) {
	pos, ok := p.labels[name]
	return pos, ok
}

// Reset closes every open range.
func (p *Program) Reset() {
	for i := range p.commands {
		p.commands[i].activeRange = false
	}
}
