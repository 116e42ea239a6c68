// Command transctl translates the HTML and JSON resources of a project into
// every configured target language, reusing earlier translations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/transctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds the global flags and the streams shared by every command.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	glossary   string
	verbose    bool
	logFormat  string
	ephemeral  bool

	logger *slog.Logger
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   transctl.Name,
		Short: transctl.Description,
		Long: `transctl translates HTML and JSON resources into every target language
listed in .transctl.toml. Strings already translated are served from the
translation memory and outputs whose source did not change are skipped.`,
		Version:       transctl.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogger()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default: nearest .transctl.toml)")
	flags.StringVar(&a.glossary, "glossary", "", "glossary file (JSON or YAML), overrides [glossary] file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&a.ephemeral, "ephemeral", false, "use an in-memory translation memory for this invocation")

	root.AddCommand(
		a.initCmd(),
		a.runCmd(),
		a.planCmd(),
		a.pruneCmd(),
		a.cacheCmd(),
		a.tmCmd(),
		a.scheduleCmd(),
		a.showLangsCmd(),
		a.showResourcesCmd(),
		a.versionCmd(),
	)
	return root
}

// setupLogger builds the slog logger on stderr. Every invocation gets its
// own run identifier.
func (a *app) setupLogger() error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch a.logFormat {
	case "", "text":
		handler = slog.NewTextHandler(a.stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(a.stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", a.logFormat)
	}

	a.logger = slog.New(handler).With("run", uuid.NewString())
	return nil
}
