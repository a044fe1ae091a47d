package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
	"github.com/lherron/rebase-migrations/internal/discover"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/logging"
	"github.com/lherron/rebase-migrations/internal/migration"
	"github.com/lherron/rebase-migrations/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Resolve migration conflicts as soon as git leaves them",
	Long: `Watch the migrations directory of every app and plan a resolution
whenever a max_migration.txt is left with a merge conflict, for example in
the middle of a rebase. Without --apply the plan is only printed.

Apps created after the watch started are not picked up.

Examples:
  rebase-migrations watch               # Print the plan on every conflict
  rebase-migrations watch --apply       # Resolve conflicts on the spot`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithJournal(), runWatch),
}

var (
	watchApply    bool
	watchDebounce time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchApply, "apply", false, "Write the resolution instead of printing it")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a change is handled")
}

func runWatch(app *appctx.App, cmd *cobra.Command, args []string) error {
	root, err := discover.ResolveRoot(searchPath)
	if err != nil {
		return err
	}
	dirs, err := discover.MigrationDirs(root, searchOptions(app.Config))
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("%w under %s", migration.ErrNoApps, root)
	}

	w, err := watch.New(dirs, watchDebounce, func(ctx context.Context, changed []string) error {
		return handlePointerChange(app, root, changed)
	})
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d migrations directories under %s\n", len(dirs), root)
	return w.Run(ctx)
}

// handlePointerChange re-plans the whole search root when one of the
// changed pointer files holds a conflict.
func handlePointerChange(app *appctx.App, root string, changed []string) error {
	log := logging.Default()
	conflicted := false
	for _, dir := range changed {
		if _, ok := migration.LoadPointerFile(dir).(migration.Conflicted); ok {
			log.WithField(logging.PathFieldKey, dir).Info("merge conflict detected")
			conflicted = true
		}
	}
	if !conflicted {
		return nil
	}

	project, err := migration.Plan(runOptions(app.Config, "", !watchApply))
	if err != nil {
		return err
	}
	if !watchApply {
		return app.Renderer.ChangeSet(project.ChangeSet(), true)
	}
	cs, err := applyProject(app, root, journal.ModeWatch, project)
	if err != nil {
		return err
	}
	return app.Renderer.ChangeSet(cs, false)
}
