package cli

import (
	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
)

var rootCmd = &cobra.Command{
	Use:   "rebase-migrations",
	Short: "Renumber Django migrations after a rebase",
	Long: `rebase-migrations resolves git conflicts in migrations/max_migration.txt.

Migrations that arrived from the rebased branch are renumbered above the
current head, their dependencies are rewritten (also in other apps that
point at them) and max_migration.txt is set to the new tip.

Examples:
  rebase-migrations                      # Resolve every app under the current directory
  rebase-migrations --dry-run            # Show what would change
  rebase-migrations --dry-run --diff     # Show unified diffs of every edit
  rebase-migrations --app-path shop      # Resolve a single app
  rebase-migrations --dry-run --json     # Machine readable plan`,
	Args:          cobra.NoArgs,
	RunE:          appctx.WithApp(appctx.WithJournal(), runRebase),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("output", "o", "", "Output format: table, json or yaml")
	flags.String("color", "", "Colorize output: auto, always or never")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error or none")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.Bool("no-journal", false, "Do not record applied runs in the journal")
	flags.StringVarP(&searchPath, "path", "p", ".", "Directory to search for apps")
	flags.Bool("all-dirs", false, "Also search directories skipped by default (venv, node_modules, ...)")
	flags.StringArrayVar(&searchExclude, "exclude", nil, "Glob of directories to skip (repeatable)")

	rootCmd.Flags().BoolVar(&rebaseDryRun, "dry-run", false, "Show the planned changes without writing")
	rootCmd.Flags().StringVar(&rebaseAppPath, "app-path", "", "Resolve a single app directory")
	rootCmd.Flags().BoolVar(&rebaseJSON, "json", false, "Output the plan as JSON (requires --dry-run)")
	rootCmd.Flags().BoolVar(&rebaseDiff, "diff", false, "Print a unified diff of every edit (requires --dry-run)")
	rootCmd.MarkFlagsMutuallyExclusive("path", "app-path")
}
