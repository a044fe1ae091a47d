package cli

import (
	"fmt"
	"slices"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
	"github.com/lherron/rebase-migrations/internal/config"
	"github.com/lherron/rebase-migrations/internal/discover"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/logging"
	"github.com/lherron/rebase-migrations/internal/migration"
)

// search flags shared by every command that discovers apps
var (
	searchPath    string
	searchExclude []string
)

// searchOptions merges configured excludes with --exclude.
func searchOptions(cfg *config.Config) discover.Options {
	return discover.Options{
		AllDirs: cfg.AllDirs,
		Exclude: append(slices.Clone(cfg.Exclude), searchExclude...),
	}
}

func runOptions(cfg *config.Config, appPath string, dryRun bool) migration.RunOptions {
	opts := searchOptions(cfg)
	return migration.RunOptions{
		Path:    searchPath,
		AppPath: appPath,
		DryRun:  dryRun,
		AllDirs: opts.AllDirs,
		Exclude: opts.Exclude,
	}
}

// applyProject writes the planned edits of project and records the run in
// the journal when one is open. Nothing is journaled when there is nothing
// to write.
func applyProject(app *appctx.App, root, mode string, project *migration.Project) (migration.ChangeSet, error) {
	cs := project.ChangeSet()
	if cs.Empty() {
		return cs, nil
	}
	log := logging.Default()

	var run *journal.Run
	if app.Journal != nil {
		var err error
		run, err = app.Journal.Start(root, mode, project.Apps(), cs)
		if err != nil {
			return cs, fmt.Errorf("failed to journal run: %w", err)
		}
		log = log.WithField(logging.RunIDFieldKey, run.ID)
	}

	applyErr := project.Apply()
	if applyErr != nil {
		log.WithError(applyErr).Error("apply stopped, earlier edits stay in place")
	} else {
		log.Info("applied migration changes")
	}

	if run != nil {
		renames, updates := cs.Counts()
		if err := app.Journal.Finish(run, renames, updates, applyErr); err != nil {
			log.WithError(err).Warn("failed to record run outcome")
		}
	}
	return cs, applyErr
}
