package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// scanner walks a single statement.
type scanner struct {
	src []rune
	pos int
}

func newScanner(statement string) *scanner {
	return &scanner{src: []rune(statement)}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() && unicode.IsSpace(s.src[s.pos]) {
		s.pos++
	}
}

// accept consumes the next rune if it is one of chars.
func (s *scanner) accept(chars string) (rune, bool) {
	if s.eof() || !strings.ContainsRune(chars, s.src[s.pos]) {
		return 0, false
	}
	ch := s.src[s.pos]
	s.pos++
	return ch, true
}

// word consumes a run of letters, digits and underscores.
func (s *scanner) word() string {
	start := s.pos
	for !s.eof() && isWordRune(s.src[s.pos]) {
		s.pos++
	}
	return string(s.src[start:s.pos])
}

// delimited reads up to the next unescaped delimiter and consumes it. A
// backslash always takes the following rune with it.
func (s *scanner) delimited(delimiter rune) (string, bool) {
	start := s.pos
	for !s.eof() {
		ch := s.src[s.pos]
		switch {
		case ch == '\\' && s.pos+1 < len(s.src):
			s.pos += 2
		case ch == delimiter:
			body := string(s.src[start:s.pos])
			s.pos++
			return body, true
		default:
			s.pos++
		}
	}
	return "", false
}

func (s *scanner) rest() string {
	return string(s.src[s.pos:])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// parseAddress reads a single address at the current position.
func (s *scanner) parseAddress() (Address, bool, error) {
	start := s.pos
	switch ch := s.peek(); {
	case ch == '$':
		s.pos++
		return Address{Kind: AddressLast}, true, nil
	case ch >= '0' && ch <= '9':
		for !s.eof() && s.peek() >= '0' && s.peek() <= '9' {
			s.pos++
		}
		n, err := strconv.Atoi(string(s.src[start:s.pos]))
		if err != nil {
			return Address{}, false, fmt.Errorf("%w: line number %s", ErrInvalidCommand, string(s.src[start:s.pos]))
		}
		return Address{Kind: AddressLine, Line: n}, true, nil
	case ch == '/':
		s.pos++
		bodyStart := s.pos
		for !s.eof() && s.peek() != '/' {
			s.pos++
		}
		if s.eof() || s.pos == bodyStart {
			s.pos = start
			return Address{}, false, nil
		}
		pattern := string(s.src[bodyStart:s.pos])
		s.pos++
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Address{}, false, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		return Address{Kind: AddressRegex, Pattern: re}, true, nil
	}
	return Address{}, false, nil
}

// parseAddressSpec reads an optional address or address pair. Without an
// address the returned spec selects every line.
func (s *scanner) parseAddressSpec() (AddressSpec, error) {
	start, ok, err := s.parseAddress()
	if err != nil || !ok {
		return AddressSpec{}, err
	}
	spec := AddressSpec{Start: start}

	mark := s.pos
	s.skipSpace()
	if _, ok := s.accept(","); !ok {
		s.pos = mark
		return spec, nil
	}
	s.skipSpace()
	end, ok, err := s.parseAddress()
	if err != nil {
		return AddressSpec{}, err
	}
	if !ok {
		s.pos = mark
		return spec, nil
	}
	spec.End = &end
	return spec, nil
}

// shapeFunc tries to recognise one command shape at the start of a
// statement. It reports whether the shape claimed the statement; a claimed
// statement must be followed by end of input or ';'.
type shapeFunc func(s *scanner) (Command, bool, error)

// commandShapes are tried in order; the first one that claims a statement wins.
var commandShapes = []struct {
	name  string
	match shapeFunc
}{
	{"simple", matchSimple},
	{"substitute", matchSubstitute},
	{"text", matchText},
	{"label", matchLabel},
	{"branch", matchBranch},
}

var simpleKinds = map[rune]CommandKind{
	'q': CmdQuit,
	'p': CmdPrint,
	'd': CmdDelete,
}

func matchSimple(s *scanner) (Command, bool, error) {
	addr, err := s.parseAddressSpec()
	if err != nil {
		return Command{}, false, err
	}
	s.skipSpace()
	ch, ok := s.accept("qpd")
	if !ok {
		return Command{}, false, nil
	}
	return Command{Kind: simpleKinds[ch], Address: addr}, true, nil
}

func matchSubstitute(s *scanner) (Command, bool, error) {
	addr, err := s.parseAddressSpec()
	if err != nil {
		return Command{}, false, err
	}
	s.skipSpace()
	if _, ok := s.accept("s"); !ok || s.eof() {
		return Command{}, false, nil
	}
	delimiter := s.peek()
	if unicode.IsSpace(delimiter) {
		return Command{}, false, nil
	}
	s.pos++

	match, ok := s.delimited(delimiter)
	if !ok {
		return Command{}, false, nil
	}
	replace, ok := s.delimited(delimiter)
	if !ok {
		return Command{}, false, nil
	}

	global := false
	for {
		if _, ok := s.accept("g"); !ok {
			break
		}
		global = true
	}

	cmd := Command{
		Kind:    CmdSubstitute,
		Address: addr,
		Match:   unescapeLiteral(match),
		Replace: unescapeLiteral(replace),
		Global:  global,
	}
	cmd.Pattern, err = regexp.Compile(cmd.Match)
	if err != nil {
		return Command{}, false, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return cmd, true, nil
}

var textKinds = map[rune]CommandKind{
	'a': CmdAppend,
	'i': CmdInsert,
	'c': CmdChange,
}

// matchText recognises a, i and c. The text is either one word on the same
// line, everything after "a\", or (when the line ends right after the
// command) the next script line; the last case leaves Text empty for the
// caller to fill in.
func matchText(s *scanner) (Command, bool, error) {
	addr, err := s.parseAddressSpec()
	if err != nil {
		return Command{}, false, err
	}
	s.skipSpace()
	ch, ok := s.accept("aic")
	if !ok {
		return Command{}, false, nil
	}
	cmd := Command{Kind: textKinds[ch], Address: addr}

	if _, ok := s.accept("\\"); ok {
		cmd.Text = strings.TrimSpace(s.rest())
		s.pos = len(s.src)
		return cmd, true, nil
	}

	s.skipSpace()
	if s.eof() {
		return cmd, true, nil
	}
	cmd.Text = s.word()
	if cmd.Text == "" {
		return Command{}, false, nil
	}
	return cmd, true, nil
}

func matchLabel(s *scanner) (Command, bool, error) {
	if _, ok := s.accept(":"); !ok {
		return Command{}, false, nil
	}
	s.skipSpace()
	name := s.word()
	if name == "" {
		return Command{}, false, nil
	}
	return Command{Kind: CmdLabel, Label: name}, true, nil
}

func matchBranch(s *scanner) (Command, bool, error) {
	addr, err := s.parseAddressSpec()
	if err != nil {
		return Command{}, false, err
	}
	s.skipSpace()
	ch, ok := s.accept("bt")
	if !ok {
		return Command{}, false, nil
	}
	kind := CmdBranch
	if ch == 't' {
		kind = CmdCondBranch
	}
	s.skipSpace()
	return Command{Kind: kind, Address: addr, Label: s.word()}, true, nil
}

// parseStatement parses the first command of a statement and returns the
// text following its ';' separator, if any.
func parseStatement(statement string) (Command, string, error) {
	for _, shape := range commandShapes {
		s := newScanner(statement)
		cmd, claimed, err := shape.match(s)
		if err != nil {
			return Command{}, "", &ScriptError{Statement: statement, Err: err}
		}
		if !claimed {
			continue
		}

		consumed := strings.TrimSpace(string(s.src[:s.pos]))
		s.skipSpace()
		if s.eof() {
			cmd.Source = consumed
			return cmd, "", nil
		}
		if _, ok := s.accept(";"); ok {
			cmd.Source = consumed
			return cmd, strings.TrimSpace(s.rest()), nil
		}
		return Command{}, "", &ScriptError{Statement: statement, Err: ErrInvalidCommand}
	}
	return Command{}, "", &ScriptError{Statement: statement, Err: ErrInvalidCommand}
}

// ParseScript turns script text into a program. Any statement that cannot
// be parsed, and any branch to a missing label, aborts with an error.
func ParseScript(script string) (*Program, error) {
	lines := splitScript(script)
	var commands []Command

	for i := 0; i < len(lines); i++ {
		rest := lines[i]
		for rest != "" {
			cmd, next, err := parseStatement(rest)
			if err != nil {
				return nil, err
			}
			if isTextCommand(cmd.Kind) && cmd.Text == "" {
				// Text on the following script line.
				if next != "" || i+1 >= len(lines) {
					return nil, &ScriptError{Statement: rest, Err: ErrInvalidCommand}
				}
				i++
				cmd.Text = lines[i]
			}
			commands = append(commands, cmd)
			rest = next
		}
	}

	return NewProgram(commands)
}

func isTextCommand(kind CommandKind) bool {
	return kind == CmdAppend || kind == CmdInsert || kind == CmdChange
}
