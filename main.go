package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var errNoScript = errors.New("no script given")

// globalOptions are the flags and settings shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
	color      string

	cfg    Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "streamedit: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the streamedit command tree.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	var (
		quiet      bool
		inPlace    bool
		scriptFile string
	)

	cmd := &cobra.Command{
		Use:   "streamedit [flags] script [file...]",
		Short: "Edit a stream of lines with a small sed-like script",
		Long: `streamedit reads lines from files or standard input, runs a script
over every line and writes the result to standard output.

A script is a list of commands separated by newlines or ';'. Each command
may be preceded by an address (a line number, '$' or /regex/) or by a
range of two addresses separated by ','.`,
		Example: `  streamedit 's/foo/bar/g' input.txt
  streamedit -n '/error/p' app.log
  streamedit -i '1,3d' a.txt b.txt
  printf 'a\nb\n' | streamedit '1a HELLO'`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("quiet") {
				quiet = opts.cfg.NoAutoprint
			}

			script, files, err := resolveScript(scriptFile, args)
			if errors.Is(err, errNoScript) {
				cmd.SetOut(cmd.ErrOrStderr())
				_ = cmd.Usage()
			}
			if err != nil {
				return err
			}

			program, err := ParseScript(script)
			if err != nil {
				return err
			}
			engine := NewEngine(program, WithNoAutoprint(quiet), WithLogger(opts.logger))

			if inPlace {
				return runInPlace(cmd.Context(), engine, files)
			}
			return runCollected(cmd.Context(), engine, files, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "n", false, "only print lines selected by p (and q)")
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "edit files in place")
	cmd.Flags().StringVarP(&scriptFile, "script-file", "f", "", "read the script from a file")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log debug output to stderr")
	cmd.PersistentFlags().StringVar(&opts.color, "color", "auto", "colored output: auto, always or never")

	cmd.AddCommand(
		newServeCommand(opts),
		newREPLCommand(opts),
		newClientCommand(opts),
		newGUICommand(opts),
	)

	return cmd
}

// setup loads the configuration file, lets explicit flags override it and
// builds the logger.
func (o *globalOptions) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = o.debug
	}
	if cmd.Flags().Changed("color") {
		cfg.Color = o.color
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	o.logger, err = newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	configureColor(cfg.Color, os.Stdout)
	return nil
}

// resolveScript splits the positional arguments into the script text and
// the input files. With a script file every argument is an input file.
func resolveScript(scriptFile string, args []string) (string, []string, error) {
	if scriptFile != "" {
		data, err := os.ReadFile(scriptFile)
		if err != nil {
			return "", nil, fmt.Errorf("error reading script file %s: %w", scriptFile, err)
		}
		return string(data), args, nil
	}
	if len(args) == 0 {
		return "", nil, errNoScript
	}
	return args[0], args[1:], nil
}

func runInPlace(ctx context.Context, engine *Engine, files []string) error {
	if len(files) == 0 {
		return errors.New("in-place editing requires at least one file")
	}
	for _, f := range files {
		if f == "-" {
			return errors.New("cannot edit standard input in place")
		}
	}
	return engine.RunInPlace(ctx, files...)
}

func runCollected(ctx context.Context, engine *Engine, files []string, stdout io.Writer) (err error) {
	sources, closeAll, err := OpenSources(files)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeAll(); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
	}()

	out := bufio.NewWriter(stdout)
	_, runErr := engine.Run(ctx, out, sources...)
	flushErr := out.Flush()
	switch {
	case runErr != nil && flushErr != nil:
		return multierror.Append(runErr, flushErr)
	case runErr != nil:
		return runErr
	case flushErr != nil:
		return fmt.Errorf("failed to write output: %w", flushErr)
	}
	return nil
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		socketPath     string
		maxConnections int
		scriptFile     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a stream editor session over a Unix domain socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("socket") {
				socketPath = opts.cfg.Socket
			}
			if !cmd.Flags().Changed("max-connections") {
				maxConnections = opts.cfg.MaxConnections
			}

			core := NewStreamEditorCore(opts.logger)
			core.SetRunTimeout(opts.cfg.RunTimeout)
			core.SetNoAutoprint(opts.cfg.NoAutoprint)
			if scriptFile != "" {
				data, err := os.ReadFile(scriptFile)
				if err != nil {
					return fmt.Errorf("error reading script file %s: %w", scriptFile, err)
				}
				if err := core.SetScript(string(data)); err != nil {
					return err
				}
			}

			server := NewSocketServer(socketPath, core, maxConnections, opts.logger)
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Socket server listening on %s\n", socketPath)

			stopErr := make(chan error, 1)
			go func() {
				<-cmd.Context().Done()
				fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
				stopErr <- server.Stop()
			}()

			server.Wait()
			return <-stopErr
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "path of the Unix domain socket")
	cmd.Flags().IntVar(&maxConnections, "max-connections", 0, "maximum concurrent connections (0 means unlimited)")
	cmd.Flags().StringVarP(&scriptFile, "script-file", "f", "", "load a script from a file at startup")

	return cmd
}

func newREPLCommand(opts *globalOptions) *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit text interactively",
		Long: `repl starts an interactive session. Without --socket the session runs
locally; with --socket it drives a running 'streamedit serve'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				commands StreamEditorCommands
				banner   string
			)

			if cmd.Flags().Changed("socket") {
				client, err := NewSocketClient(socketPath)
				if err != nil {
					return err
				}
				defer client.Close()
				commands = NewSocketClientCommands(client, opts.logger)
				banner = "Connected to " + socketPath
			} else {
				core := NewStreamEditorCore(opts.logger)
				core.SetRunTimeout(opts.cfg.RunTimeout)
				core.SetNoAutoprint(opts.cfg.NoAutoprint)
				commands = core
				banner = "Local session"
			}

			return NewREPLSession(commands, color.Output, banner).Run()
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "connect to a socket server instead of running locally")

	return cmd
}

func newClientCommand(opts *globalOptions) *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send JSON commands to a socket server, one per line",
		Example: `  echo '{"action":"set_script","params":{"script":"s/a/b/"}}' | streamedit client
  streamedit client --socket /tmp/streamedit.sock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("socket") {
				socketPath = opts.cfg.Socket
			}

			client, err := NewSocketClient(socketPath)
			if err != nil {
				return err
			}
			defer client.Close()

			interactive := false
			if f, ok := cmd.InOrStdin().(*os.File); ok {
				interactive = term.IsTerminal(int(f.Fd()))
			}
			return runClient(client, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "path of the Unix domain socket")

	return cmd
}

// runClient forwards every non-empty line of in to the server and prints the
// indented response.
func runClient(client *SocketClient, in io.Reader, out io.Writer, interactive bool) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		if !gjson.Valid(line) {
			fmt.Fprintln(out, "Invalid JSON")
			continue
		}

		response, err := client.Execute(line)
		if err != nil {
			return err
		}
		fmt.Fprint(out, gjson.Get(response, "@pretty").String())
	}

	return scanner.Err()
}
