package main

// StreamEditorCommands defines the operations of a stream editor session.
// Both StreamEditorCore (direct implementation) and SocketClientCommands (socket wrapper)
// implement this interface, so the REPL works the same against a local core or a server.
type StreamEditorCommands interface {
	// =========================================================================
	// Script - Load, inspect and validate scripts
	// =========================================================================

	// SetScript parses and loads a script, replacing the current one
	SetScript(script string) error

	// GetScript returns the loaded script text
	GetScript() string

	// ValidateScript parses a script without loading it
	ValidateScript(script string) error

	// GetProgram lists the parsed commands of the loaded script
	GetProgram() []CommandInfo

	// =========================================================================
	// Options
	// =========================================================================

	// SetNoAutoprint toggles suppression of the automatic print of every line
	SetNoAutoprint(noAutoprint bool)

	// GetNoAutoprint returns whether automatic printing is suppressed
	GetNoAutoprint() bool

	// =========================================================================
	// Text Processing - Set input text and read the edited output
	// =========================================================================

	// SetInputText sets the input text and runs the loaded script over it
	SetInputText(text string) error

	// GetInputText returns the current input text
	GetInputText() string

	// GetOutputText returns the result of running the script over the input
	GetOutputText() string

	// Run runs a script over an input text without changing the session
	Run(script, input string, noAutoprint bool) (RunResult, error)
}
