package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// Environment variables supplying flag defaults.
const (
	EnvTarget   = "PHILOPROBE_TARGET"
	EnvDatabase = "PHILOPROBE_DB"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the philoprobe root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "philoprobe",
		Short: "Black-box conformance tester for dining philosophers simulators",
		Long: `philoprobe launches a philosophers simulator as a subprocess, captures
its event stream and judges format, death timing, deadlock and fairness
from that stream alone.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logs")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes structured logs to w: warnings by default, everything
// with --verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// envDefault returns value, or the environment variable key when value is
// empty.
func envDefault(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

// checkTarget verifies that the target exists and is not a directory.
func checkTarget(path string) error {
	if path == "" {
		return NewExitError(ExitCommandError, "no target given (pass a path or set "+EnvTarget+")")
	}
	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "target not found", err)
	}
	if info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("target %s is a directory", path))
	}
	return nil
}
