package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
	"github.com/lherron/rebase-migrations/internal/discover"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/migration"
	"github.com/lherron/rebase-migrations/internal/render"
)

var (
	rebaseDryRun  bool
	rebaseAppPath string
	rebaseJSON    bool
	rebaseDiff    bool
)

func runRebase(app *appctx.App, cmd *cobra.Command, args []string) error {
	if rebaseJSON {
		if !rebaseDryRun {
			return fmt.Errorf("--json requires --dry-run")
		}
		app.Renderer = render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON})
	}
	if rebaseDiff && !rebaseDryRun {
		return fmt.Errorf("--diff requires --dry-run")
	}
	if rebaseDiff && app.Renderer.Format() != render.FormatTable {
		return fmt.Errorf("--diff only works with table output")
	}

	root := searchPath
	if rebaseAppPath != "" {
		root = rebaseAppPath
	}
	root, err := discover.ResolveRoot(root)
	if err != nil {
		return err
	}

	project, err := migration.Plan(runOptions(app.Config, rebaseAppPath, rebaseDryRun))
	if err != nil {
		return err
	}

	if rebaseDryRun {
		if rebaseDiff {
			edits, err := project.FileEdits()
			if err != nil {
				return err
			}
			if err := app.Renderer.Diff(root, edits); err != nil {
				return err
			}
		}
		return app.Renderer.ChangeSet(project.ChangeSet(), true)
	}

	cs, err := applyProject(app, root, journal.ModeApply, project)
	if err != nil {
		return err
	}
	return app.Renderer.ChangeSet(cs, false)
}
