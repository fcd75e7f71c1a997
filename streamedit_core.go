package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRunTimeout bounds a single run of the core so a script that
// branches forever cannot wedge a server connection.
const DefaultRunTimeout = 5 * time.Second

// CommandInfo describes one command of a loaded program.
type CommandInfo struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Detail  string `json:"detail"`
	Source  string `json:"source"`
}

// RunResult is the outcome of running a script over some input text.
type RunResult struct {
	Output string `json:"output"`
	Quit   bool   `json:"quit"`
}

// StreamEditorCore is the headless, stateful editor behind the socket server
// and the REPL: it holds a script, its options and an input text, and keeps
// the output text up to date.
type StreamEditorCore struct {
	mu          sync.Mutex
	script      string
	program     *Program
	noAutoprint bool
	inputText   string
	outputText  string
	lastErr     error
	runTimeout  time.Duration
	logger      *zap.Logger
}

// NewStreamEditorCore creates an empty core. With no script loaded the
// output text equals the input text.
func NewStreamEditorCore(logger *zap.Logger) *StreamEditorCore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamEditorCore{
		runTimeout: DefaultRunTimeout,
		logger:     logger,
	}
}

// SetRunTimeout changes the time limit of a single run. Zero disables it.
func (sc *StreamEditorCore) SetRunTimeout(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.runTimeout = d
}

// ============================================================================
// Script Methods
// ============================================================================

// SetScript parses a script and runs it over the input text. The script is
// loaded only when both succeed; on error the previous script and its output
// stay in place.
func (sc *StreamEditorCore) SetScript(script string) error {
	program, err := ParseScript(script)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	result, err := sc.execute(program, sc.inputText, sc.noAutoprint, sc.runTimeout)
	if err != nil {
		return err
	}
	sc.script = script
	sc.program = program
	sc.outputText = result.Output
	sc.lastErr = nil
	return nil
}

// GetScript returns the loaded script text
func (sc *StreamEditorCore) GetScript() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.script
}

// ValidateScript parses a script without loading it.
func (sc *StreamEditorCore) ValidateScript(script string) error {
	_, err := ParseScript(script)
	return err
}

// CommandCount returns the number of commands in the loaded script.
func (sc *StreamEditorCore) CommandCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.program == nil {
		return 0
	}
	return sc.program.Len()
}

// GetProgram lists the commands of the loaded script.
func (sc *StreamEditorCore) GetProgram() []CommandInfo {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.program == nil {
		return []CommandInfo{}
	}
	return describeProgram(sc.program)
}

func describeProgram(program *Program) []CommandInfo {
	commands := program.Commands()
	infos := make([]CommandInfo, len(commands))
	for i := range commands {
		cmd := &commands[i]
		info := CommandInfo{
			Index:  i,
			Kind:   cmd.Kind.String(),
			Detail: cmd.Detail(),
			Source: cmd.Source,
		}
		if cmd.Kind != CmdLabel {
			info.Address = cmd.Address.String()
		}
		infos[i] = info
	}
	return infos
}

// ============================================================================
// Option Methods
// ============================================================================

// SetNoAutoprint toggles the automatic print of every line.
func (sc *StreamEditorCore) SetNoAutoprint(noAutoprint bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.noAutoprint = noAutoprint
	sc.processText()
}

// GetNoAutoprint returns the current autoprint setting
func (sc *StreamEditorCore) GetNoAutoprint() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.noAutoprint
}

// ============================================================================
// Text Processing Methods
// ============================================================================

// SetInputText sets the input text and runs the loaded script over it.
func (sc *StreamEditorCore) SetInputText(text string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.inputText = text
	sc.processText()
	return sc.lastErr
}

// GetInputText returns the current input text
func (sc *StreamEditorCore) GetInputText() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.inputText
}

// GetOutputText returns the current output text
func (sc *StreamEditorCore) GetOutputText() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.outputText
}

// Run parses script and runs it over input without touching the loaded state.
func (sc *StreamEditorCore) Run(script, input string, noAutoprint bool) (RunResult, error) {
	program, err := ParseScript(script)
	if err != nil {
		return RunResult{}, err
	}

	sc.mu.Lock()
	timeout := sc.runTimeout
	sc.mu.Unlock()

	return sc.execute(program, input, noAutoprint, timeout)
}

// processText runs the loaded program over the input text and stores the
// result. Callers hold sc.mu.
func (sc *StreamEditorCore) processText() {
	if sc.program == nil {
		sc.outputText = sc.inputText
		sc.lastErr = nil
		return
	}

	// Every run starts with all ranges closed.
	sc.program.Reset()
	result, err := sc.execute(sc.program, sc.inputText, sc.noAutoprint, sc.runTimeout)
	sc.outputText = result.Output
	sc.lastErr = err
}

func (sc *StreamEditorCore) execute(program *Program, input string, noAutoprint bool, timeout time.Duration) (RunResult, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	engine := NewEngine(program, WithNoAutoprint(noAutoprint), WithLogger(sc.logger))

	var out strings.Builder
	quit, err := engine.Run(ctx, &out, Source{Name: "input", Reader: strings.NewReader(input)})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("script did not finish within %v: %w", timeout, err)
		}
		sc.logger.Debug("run failed", zap.Error(err))
		return RunResult{}, err
	}
	return RunResult{Output: out.String(), Quit: quit}, nil
}
