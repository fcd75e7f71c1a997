package main

import (
	"fmt"
	"os"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	guiTitle  = "streamedit"
	guiWidth  = 1000
	guiHeight = 600
)

// StreamEditorWindow is a GTK front end over a StreamEditorCore: a script
// pane, the parsed program, and input and output panes that update as the
// user types.
type StreamEditorWindow struct {
	core   *StreamEditorCore
	logger *zap.Logger

	window        *gtk.Window
	scriptBuffer  *gtk.TextBuffer
	inputBuffer   *gtk.TextBuffer
	outputBuffer  *gtk.TextBuffer
	quietCheckbox *gtk.CheckButton
	copyButton    *gtk.Button
	programList   *gtk.ListBox
	statusLabel   *gtk.Label
}

func newGUICommand(opts *globalOptions) *cobra.Command {
	var scriptFile string

	cmd := &cobra.Command{
		Use:   "gui [file]",
		Short: "Edit text in a window with live output",
		Long: `gui opens a window with a script pane, an input pane and an output pane.
The output is recomputed whenever the script, the input or the quiet
setting changes. An optional file is loaded as the initial input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core := NewStreamEditorCore(opts.logger)
			core.SetRunTimeout(opts.cfg.RunTimeout)
			core.SetNoAutoprint(opts.cfg.NoAutoprint)

			var script, input string
			if scriptFile != "" {
				data, err := os.ReadFile(scriptFile)
				if err != nil {
					return fmt.Errorf("error reading script file %s: %w", scriptFile, err)
				}
				script = string(data)
			}
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("error reading input file %s: %w", args[0], err)
				}
				input = string(data)
			}

			if err := gtk.InitCheck(nil); err != nil {
				return fmt.Errorf("failed to initialize GTK: %w", err)
			}

			win, err := NewStreamEditorWindow(core, opts.logger)
			if err != nil {
				return err
			}
			win.Load(script, input)

			// Close the window on SIGINT as well.
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-cmd.Context().Done():
					glib.IdleAdd(gtk.MainQuit)
				case <-done:
				}
			}()

			gtk.Main()
			return nil
		},
	}

	cmd.Flags().StringVarP(&scriptFile, "script-file", "f", "", "load a script from a file at startup")

	return cmd
}

// NewStreamEditorWindow builds the window and wires its event handlers.
func NewStreamEditorWindow(core *StreamEditorCore, logger *zap.Logger) (*StreamEditorWindow, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sw := &StreamEditorWindow{core: core, logger: logger}

	win, err := gtk.WindowNew(gtk.WINDOW_TOPLEVEL)
	if err != nil {
		return nil, fmt.Errorf("unable to create window: %w", err)
	}
	sw.window = win
	sw.window.SetTitle(guiTitle)
	sw.window.SetDefaultSize(guiWidth, guiHeight)
	sw.window.Connect("destroy", func() {
		gtk.MainQuit()
	})

	mainBox, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 5)
	mainBox.SetMarginTop(5)
	mainBox.SetMarginBottom(5)
	mainBox.SetMarginStart(5)
	mainBox.SetMarginEnd(5)

	mainBox.PackStart(sw.createToolbar(), false, false, 0)

	// Script and program on the left, text panes on the right
	mainPaned, _ := gtk.PanedNew(gtk.ORIENTATION_HORIZONTAL)
	mainPaned.SetPosition(300)
	mainPaned.Add1(sw.createScriptPanel())

	textPaned, _ := gtk.PanedNew(gtk.ORIENTATION_HORIZONTAL)
	textPaned.SetPosition((guiWidth - 300) / 2)
	inputFrame, inputBuffer := createTextPane("Input", true)
	outputFrame, outputBuffer := createTextPane("Output", false)
	sw.inputBuffer = inputBuffer
	sw.outputBuffer = outputBuffer
	textPaned.Add1(inputFrame)
	textPaned.Add2(outputFrame)
	mainPaned.Add2(textPaned)

	mainBox.PackStart(mainPaned, true, true, 0)

	statusLabel, _ := gtk.LabelNew("")
	statusLabel.SetXAlign(0)
	sw.statusLabel = statusLabel
	mainBox.PackStart(statusLabel, false, false, 0)

	sw.window.Add(mainBox)
	sw.window.ShowAll()

	sw.setupEventHandlers()
	return sw, nil
}

func (sw *StreamEditorWindow) createToolbar() *gtk.Box {
	toolbar, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 5)

	quiet, _ := gtk.CheckButtonNewWithLabel("Quiet (-n)")
	quiet.SetActive(sw.core.GetNoAutoprint())
	sw.quietCheckbox = quiet
	toolbar.PackStart(quiet, false, false, 0)

	spacer, _ := gtk.BoxNew(gtk.ORIENTATION_HORIZONTAL, 0)
	toolbar.PackStart(spacer, true, true, 0)

	copyButton, _ := gtk.ButtonNewWithLabel("Copy to Clipboard")
	sw.copyButton = copyButton
	toolbar.PackStart(copyButton, false, false, 0)

	return toolbar
}

func (sw *StreamEditorWindow) createScriptPanel() *gtk.Box {
	panel, _ := gtk.BoxNew(gtk.ORIENTATION_VERTICAL, 5)

	scriptFrame, scriptBuffer := createTextPane("Script", true)
	sw.scriptBuffer = scriptBuffer
	panel.PackStart(scriptFrame, true, true, 0)

	titleLabel, _ := gtk.LabelNew("")
	titleLabel.SetMarkup("<b>Program</b>")
	panel.PackStart(titleLabel, false, false, 5)

	scrolledWindow, _ := gtk.ScrolledWindowNew(nil, nil)
	scrolledWindow.SetPolicy(gtk.POLICY_AUTOMATIC, gtk.POLICY_AUTOMATIC)
	scrolledWindow.SetSizeRequest(200, -1)

	listBox, _ := gtk.ListBoxNew()
	listBox.SetSelectionMode(gtk.SELECTION_NONE)
	sw.programList = listBox
	scrolledWindow.Add(listBox)
	panel.PackStart(scrolledWindow, true, true, 0)

	return panel
}

func createTextPane(title string, editable bool) (*gtk.Frame, *gtk.TextBuffer) {
	frame, _ := gtk.FrameNew(title)

	scrolledWindow, _ := gtk.ScrolledWindowNew(nil, nil)
	scrolledWindow.SetPolicy(gtk.POLICY_AUTOMATIC, gtk.POLICY_AUTOMATIC)

	textView, _ := gtk.TextViewNew()
	textView.SetWrapMode(gtk.WRAP_NONE)
	textView.SetMonospace(true)
	textView.SetEditable(editable)
	buffer, _ := textView.GetBuffer()

	scrolledWindow.Add(textView)
	frame.Add(scrolledWindow)

	return frame, buffer
}

func (sw *StreamEditorWindow) setupEventHandlers() {
	sw.scriptBuffer.Connect("changed", func() {
		sw.applyScript()
	})

	sw.inputBuffer.Connect("changed", func() {
		sw.applyInput()
	})

	sw.quietCheckbox.Connect("toggled", func() {
		sw.core.SetNoAutoprint(sw.quietCheckbox.GetActive())
		sw.refresh(nil)
	})

	sw.copyButton.Connect("clicked", func() {
		sw.copyToClipboard()
	})
}

// Load fills the script and input panes. Each buffer change runs the core.
func (sw *StreamEditorWindow) Load(script, input string) {
	sw.refresh(nil)
	sw.inputBuffer.SetText(input)
	sw.scriptBuffer.SetText(script)
}

// applyScript loads the script pane into the core. A script that does not
// parse or run leaves the previous one in effect.
func (sw *StreamEditorWindow) applyScript() {
	err := sw.core.SetScript(bufferText(sw.scriptBuffer))
	if err != nil {
		sw.logger.Debug("script rejected", zap.Error(err))
	}
	sw.refresh(err)
}

func (sw *StreamEditorWindow) applyInput() {
	sw.refresh(sw.core.SetInputText(bufferText(sw.inputBuffer)))
}

// refresh copies the core's output and program into the window.
func (sw *StreamEditorWindow) refresh(err error) {
	sw.outputBuffer.SetText(sw.core.GetOutputText())
	sw.statusLabel.SetText(scriptStatus(sw.core.CommandCount(), err))

	sw.programList.GetChildren().Foreach(func(item interface{}) {
		sw.programList.Remove(item.(*gtk.Widget))
	})
	for _, info := range sw.core.GetProgram() {
		row, _ := gtk.LabelNew(programRowLabel(info))
		row.SetXAlign(0)
		row.SetMarginStart(5)
		row.SetMarginEnd(5)
		row.SetMarginTop(3)
		row.SetMarginBottom(3)
		sw.programList.Add(row)
	}
	sw.programList.ShowAll()
}

func (sw *StreamEditorWindow) copyToClipboard() {
	clipboard, err := gtk.ClipboardGet(gdk.GdkAtomIntern("CLIPBOARD", true))
	if err != nil {
		sw.logger.Warn("failed to get clipboard", zap.Error(err))
		return
	}
	clipboard.SetText(bufferText(sw.outputBuffer))
}

func bufferText(buffer *gtk.TextBuffer) string {
	start, end := buffer.GetBounds()
	text, _ := buffer.GetText(start, end, true)
	return text
}

// programRowLabel renders one command of the program list.
func programRowLabel(info CommandInfo) string {
	if info.Kind == CmdLabel.String() {
		return ":" + info.Detail
	}
	label := info.Kind
	if info.Address != "" {
		label = info.Address + " " + label
	}
	if info.Detail != "" {
		label += " " + info.Detail
	}
	return label
}

// scriptStatus is the text of the status line under the panes.
func scriptStatus(commands int, err error) string {
	if err != nil {
		return "✗ " + err.Error()
	}
	if commands == 1 {
		return "✓ 1 command"
	}
	return fmt.Sprintf("✓ %d commands", commands)
}
