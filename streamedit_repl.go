package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/olekukonko/tablewriter"
)

const replPrompt = "streamedit> "

// errExitREPL is returned by a command that ends the session.
var errExitREPL = errors.New("exit")

// replVerbs lists every verb the REPL understands.
var replVerbs = []string{"set", "get", "show", "run", "validate", "help", "clear", "quit", "exit"}

// REPLCommand represents a parsed command
type REPLCommand struct {
	Verb   string
	Object string
	Args   []string
	// Raw is the text after the verb and object, exactly as typed.
	Raw string
	// Tail is the text after the verb, exactly as typed.
	Tail string
}

// promptReader is the part of readline the command handlers need.
type promptReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// REPLFormatter handles output formatting
type REPLFormatter struct {
	out io.Writer
}

// NewREPLFormatter creates a new formatter writing to out
func NewREPLFormatter(out io.Writer) *REPLFormatter {
	return &REPLFormatter{out: out}
}

// PrintSuccess prints a success message
func (f *REPLFormatter) PrintSuccess(message string) {
	color.New(color.FgGreen).Fprintf(f.out, "✓ %s\n", message)
}

// PrintError prints an error message
func (f *REPLFormatter) PrintError(message string) {
	color.New(color.FgRed).Fprintf(f.out, "✗ Error: %s\n", message)
}

// PrintInfo prints an info message
func (f *REPLFormatter) PrintInfo(message string) {
	color.New(color.FgCyan).Fprintf(f.out, "ℹ %s\n", message)
}

// PrintText prints text verbatim, making sure it ends with a newline
func (f *REPLFormatter) PrintText(text string) {
	fmt.Fprint(f.out, text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(f.out)
	}
}

// PrintTable prints a formatted ASCII table
func (f *REPLFormatter) PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	table := tablewriter.NewWriter(f.out)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	table.Header(header...)
	if err := table.Bulk(rows); err != nil {
		f.PrintError("Failed to build table: " + err.Error())
		return
	}
	if err := table.Render(); err != nil {
		f.PrintError("Failed to render table: " + err.Error())
	}
}

// PrintProgram prints the commands of a program as a table
func (f *REPLFormatter) PrintProgram(infos []CommandInfo) {
	if len(infos) == 0 {
		f.PrintInfo("No script loaded")
		return
	}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{fmt.Sprintf("%d", info.Index), info.Kind, info.Address, info.Detail}
	}
	f.PrintTable([]string{"#", "Command", "Address", "Argument"}, rows)
}

// ParseCommand parses a verb-first command string
func ParseCommand(input string) (*REPLCommand, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := splitArgs(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &REPLCommand{
		Verb: strings.ToLower(parts[0]),
	}

	_, rest := cutField(input)
	cmd.Tail = rest
	if len(parts) > 1 {
		cmd.Object = strings.ToLower(parts[1])
		cmd.Args = parts[2:]
		_, cmd.Raw = cutField(rest)
	}

	return cmd, nil
}

// cutField splits off the first whitespace-separated field of s.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimLeft(s[i:], " \t")
	}
	return s, ""
}

// splitArgs splits a command string into arguments, respecting quotes
func splitArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)
	escaped := false

	for _, ch := range input {
		if escaped {
			current.WriteRune(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if (ch == '"' || ch == '\'') && !inQuotes {
			inQuotes = true
			quoteChar = ch
			continue
		}

		if ch == quoteChar && inQuotes {
			inQuotes = false
			quoteChar = 0
			continue
		}

		if (ch == ' ' || ch == '\t') && !inQuotes {
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(ch)
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// ExecuteREPLCommand executes a REPL command against a stream editor session
func ExecuteREPLCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter, rl promptReader) error {
	switch cmd.Verb {
	case "set":
		return handleSetCommand(cmd, commands, formatter, rl)
	case "get":
		return handleGetCommand(cmd, commands, formatter)
	case "show":
		return handleShowCommand(cmd, commands, formatter)
	case "run":
		return handleRunCommand(cmd, commands, formatter)
	case "validate":
		return handleValidateCommand(cmd, commands, formatter)

	case "help":
		showHelp(formatter.out, cmd.Object)
		return nil
	case "quit", "exit":
		return errExitREPL
	case "clear":
		fmt.Fprint(formatter.out, "\033[2J\033[H") // Clear screen
		return nil

	default:
		formatter.PrintError(fmt.Sprintf("Unknown command: %s", cmd.Verb))
		if suggestion := findClosestMatch(cmd.Verb, replVerbs); suggestion != "" {
			formatter.PrintInfo(fmt.Sprintf("Did you mean '%s'?", suggestion))
		}
		formatter.PrintInfo("Type 'help' for available commands")
		return nil
	}
}

// findClosestMatch finds the closest string match using fuzzy matching
func findClosestMatch(target string, candidates []string) string {
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		// Misspellings such as "shw" are not subsequences of any verb.
		best, bestDistance := "", 3
		for _, candidate := range candidates {
			if d := fuzzy.LevenshteinDistance(target, candidate); d < bestDistance {
				best, bestDistance = candidate, d
			}
		}
		return best
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return best.Target
}

// Command handlers

func handleSetCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter, rl promptReader) error {
	switch cmd.Object {
	case "script":
		script := cmd.Raw
		if script == "" {
			formatter.PrintInfo("Enter script (end with blank line):")
			script = readMultiline(rl)
		}
		if err := commands.SetScript(script); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess(fmt.Sprintf("Script loaded (%d commands)", len(commands.GetProgram())))

	case "input":
		var text string
		if cmd.Raw != "" {
			text = processEscapeSequences(cmd.Raw) + "\n"
		} else {
			formatter.PrintInfo("Enter text (end with blank line):")
			text = readMultiline(rl)
			if text != "" {
				text += "\n"
			}
		}
		if err := commands.SetInputText(text); err != nil {
			formatter.PrintError(err.Error())
			return nil
		}
		formatter.PrintSuccess("Input text set")

	case "autoprint":
		switch strings.ToLower(cmd.Raw) {
		case "on":
			commands.SetNoAutoprint(false)
		case "off":
			commands.SetNoAutoprint(true)
		default:
			formatter.PrintError("set autoprint requires 'on' or 'off'")
			return nil
		}
		formatter.PrintSuccess("Autoprint " + strings.ToLower(cmd.Raw))

	default:
		formatter.PrintError("set requires 'script', 'input' or 'autoprint' argument")
	}
	return nil
}

func handleGetCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter) error {
	switch cmd.Object {
	case "script":
		formatter.PrintText(commands.GetScript())
	case "input":
		formatter.PrintText(commands.GetInputText())
	case "output":
		formatter.PrintText(commands.GetOutputText())
	case "autoprint":
		if commands.GetNoAutoprint() {
			formatter.PrintInfo("autoprint off")
		} else {
			formatter.PrintInfo("autoprint on")
		}
	default:
		formatter.PrintError("get requires 'script', 'input', 'output' or 'autoprint' argument")
	}
	return nil
}

func handleShowCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter) error {
	switch cmd.Object {
	case "program":
		formatter.PrintProgram(commands.GetProgram())
	case "commands":
		rows := make([][]string, len(commandHelp))
		for i, h := range commandHelp {
			rows[i] = []string{h.Command, h.Description}
		}
		formatter.PrintTable([]string{"Command", "Description"}, rows)
	default:
		formatter.PrintError("show requires 'program' or 'commands' argument")
	}
	return nil
}

// handleRunCommand runs a script over the current input without loading it.
func handleRunCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter) error {
	script := cmd.Tail
	if script == "" {
		formatter.PrintError("run requires a script")
		return nil
	}

	result, err := commands.Run(script, commands.GetInputText(), commands.GetNoAutoprint())
	if err != nil {
		formatter.PrintError(err.Error())
		return nil
	}
	formatter.PrintText(result.Output)
	if result.Quit {
		formatter.PrintInfo("script quit early")
	}
	return nil
}

func handleValidateCommand(cmd *REPLCommand, commands StreamEditorCommands, formatter *REPLFormatter) error {
	script := cmd.Tail
	if script == "" {
		formatter.PrintError("validate requires a script")
		return nil
	}
	if err := commands.ValidateScript(script); err != nil {
		formatter.PrintError(err.Error())
		return nil
	}
	formatter.PrintSuccess("Script is valid")
	return nil
}

// readMultiline reads lines until a blank line or end of input.
func readMultiline(rl promptReader) string {
	var lines []string
	rl.SetPrompt("")
	defer rl.SetPrompt(replPrompt)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil || strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func showHelp(out io.Writer, command string) {
	if command == "" {
		fmt.Fprint(out, mainHelp)
		return
	}

	helps := map[string]string{
		"set": `
set script <script>     Load a script, e.g. set script /foo/s/a/b/g
set script              Enter a multiline script (end with blank line)
set input <text>        Set the input text; \n separates lines
set input               Enter multiline input (end with blank line)
set autoprint on|off    Toggle the automatic print of every line
`,
		"get": `
get script|input|output|autoprint
  Print the loaded script, the input text, the edited output or the
  autoprint setting.
`,
		"show": `
show program            Show the parsed commands of the loaded script
show commands           Show the commands of the script language
`,
		"run": `
run <script>
  Run a script over the current input without loading it.

  Example:
    run 2,3d
`,
		"validate": `
validate <script>
  Check a script for errors without loading it.
`,
	}

	if help, ok := helps[command]; ok {
		fmt.Fprintln(out, help)
	} else {
		fmt.Fprintf(out, "No help available for '%s'\n", command)
		fmt.Fprintln(out, "Type 'help' for a list of all commands")
	}
}

const mainHelp = `
streamedit REPL - Available Commands
====================================

SCRIPT:
  set script <script>         Load a script
  set script                  Enter multiline script mode
  get script                  Print the loaded script
  show program                Show the parsed commands as a table
  validate <script>           Check a script without loading it

TEXT:
  set input <text>            Set input text (\n separates lines)
  set input                   Enter multiline input mode
  get input                   Print the input text
  get output                  Print the edited output
  run <script>                Run a script over the input without loading it

OPTIONS:
  set autoprint on|off        Toggle the automatic print of every line
  get autoprint               Show the autoprint setting

UTILITIES:
  show commands               List the commands of the script language
  help [command]              Show this help or help for specific command
  clear                       Clear the screen
  quit, exit                  Exit the REPL

EXAMPLES:
  > set input foo\nbar\nfoo
  > set script /foo/s/o/0/g
  > get output
  > set autoprint off
  > run /bar/p

Type 'help' followed by a command name for detailed help.
`

// REPLSession manages the REPL interactive session
type REPLSession struct {
	commands  StreamEditorCommands
	formatter *REPLFormatter
	banner    string
}

// NewREPLSession creates a new REPL session over commands. banner describes
// where the session is connected.
func NewREPLSession(commands StreamEditorCommands, out io.Writer, banner string) *REPLSession {
	return &REPLSession{
		commands:  commands,
		formatter: NewREPLFormatter(out),
		banner:    banner,
	}
}

// Run starts the interactive REPL loop
func (rs *REPLSession) Run() error {
	rl, err := readline.New(replPrompt)
	if err != nil {
		return err
	}
	defer rl.Close()

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(rs.formatter.out, "streamedit REPL\n")
	cyan.Fprintf(rs.formatter.out, "%s\n", rs.banner)
	cyan.Fprintf(rs.formatter.out, "Type 'help' for available commands\n\n")

	return rs.loop(rl)
}

// loop reads and executes commands until quit or end of input.
func (rs *REPLSession) loop(rl promptReader) error {
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Fprintln(rs.formatter.out)
			break
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			rs.formatter.PrintError(err.Error())
			continue
		}

		if err := ExecuteREPLCommand(cmd, rs.commands, rs.formatter, rl); err != nil {
			if errors.Is(err, errExitREPL) {
				break
			}
			rs.formatter.PrintError(err.Error())
		}
	}

	rs.formatter.PrintInfo("Goodbye!")
	return nil
}
