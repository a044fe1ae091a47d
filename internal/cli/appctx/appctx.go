// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logging setup, renderer creation and
// journal opening to reduce boilerplate across commands.
package appctx

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/config"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/logging"
	"github.com/lherron/rebase-migrations/internal/render"
)

// log file rotation
const (
	logFileMaxSizeMB = 10
	logFilesKeep     = 3
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// Journal is the opened run journal (nil if NeedsJournal is false or
	// the journal is disabled)
	Journal *journal.Journal

	// Renderer writes command output to the command's stdout
	Renderer *render.Renderer
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Journal != nil {
		a.Journal.Close()
		a.Journal = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsJournal indicates whether to open the run journal.
	NeedsJournal bool
}

// DefaultOptions returns default options (no journal).
func DefaultOptions() Options {
	return Options{}
}

// WithJournal returns options that open the journal when it is enabled.
func WithJournal() Options {
	return Options{NeedsJournal: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The journal is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, cmd)
	app.Config = cfg

	logging.SetLevel(cfg.LogLevel)
	logging.SetOutputFormat(cfg.LogFormat)
	if cfg.LogFile != "" {
		logging.SetOutputs([]string{cfg.LogFile}, logFileMaxSizeMB, logFilesKeep)
	}

	format, err := render.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}
	app.Renderer = render.NewRenderer(cmd.OutOrStdout(), render.Options{
		Format: format,
		Color:  cfg.Color,
	})

	if opts.NeedsJournal && cfg.Journal {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		app.Journal = j
		logging.Default().WithField(logging.PathFieldKey, cfg.JournalPath).Debug("journal opened")
	}

	return app, nil
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cfg *config.Config, cmd *cobra.Command) {
	strs := map[string]*string{
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"log-file":   &cfg.LogFile,
		"output":     &cfg.Output,
		"color":      &cfg.Color,
	}
	for name, dst := range strs {
		if f := cmd.Flag(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	if f := cmd.Flag("no-journal"); f != nil && f.Changed && f.Value.String() == "true" {
		cfg.Journal = false
	}
	if f := cmd.Flag("all-dirs"); f != nil && f.Changed && f.Value.String() == "true" {
		cfg.AllDirs = true
	}
}
