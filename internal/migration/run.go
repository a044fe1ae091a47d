package migration

import (
	"fmt"
	"path/filepath"

	"github.com/lherron/rebase-migrations/internal/discover"
	"github.com/lherron/rebase-migrations/internal/logging"
)

// RunOptions selects what Plan and Run operate on.
type RunOptions struct {
	// Path is the directory searched for apps. Defaults to ".".
	Path string
	// AppPath restricts the run to a single app directory.
	AppPath string
	// DryRun computes the change set without writing.
	DryRun bool
	// AllDirs searches directories that are skipped by default.
	AllDirs bool
	// Exclude holds extra glob patterns of directories not to search.
	Exclude []string
}

// Plan loads the apps selected by opts and plans every edit.
func Plan(opts RunOptions) (*Project, error) {
	apps, err := selectApps(opts)
	if err != nil {
		return nil, err
	}
	project, err := LoadProject(apps)
	if err != nil {
		return nil, err
	}
	if err := project.Resolve(); err != nil {
		return nil, err
	}
	return project, nil
}

// Run plans the edits and applies them unless opts.DryRun is set. The
// returned change set describes what was, or would be, written.
func Run(opts RunOptions) (ChangeSet, error) {
	project, err := Plan(opts)
	if err != nil {
		return ChangeSet{}, err
	}
	cs := project.ChangeSet()
	if opts.DryRun {
		return cs, nil
	}
	if err := project.Apply(); err != nil {
		return cs, err
	}
	return cs, nil
}

func selectApps(opts RunOptions) ([]string, error) {
	if opts.AppPath != "" {
		app, err := discover.ResolveRoot(opts.AppPath)
		if err != nil {
			return nil, err
		}
		logging.Default().WithField(logging.PathFieldKey, app).Debug("using single app")
		return []string{app}, nil
	}

	root := opts.Path
	if root == "" {
		root = "."
	}
	apps, err := discover.Apps(root, discover.Options{AllDirs: opts.AllDirs, Exclude: opts.Exclude})
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		abs, _ := filepath.Abs(root)
		return nil, fmt.Errorf("%w under %s", ErrNoApps, abs)
	}
	return apps, nil
}
