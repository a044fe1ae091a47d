package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
	"github.com/lherron/rebase-migrations/internal/discover"
	"github.com/lherron/rebase-migrations/internal/migration"
	"github.com/lherron/rebase-migrations/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report the max_migration.txt state of every app",
	Long: `Load every app and report whether its max_migration.txt is resolved,
conflicted or broken. Conflicted apps are also resolved in memory to show
the tip they would get and any error that would stop the resolution.

Exit codes:
  0 - Every app is resolved
  1 - At least one app is conflicted or cannot be loaded

Examples:
  rebase-migrations check               # Check every app under the current directory
  rebase-migrations check -o json       # Output the report as JSON`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runCheck),
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// errConflicted marks an app whose pointer file still holds a conflict.
var errConflicted = errors.New("max_migration.txt has an unresolved merge conflict")

// app states reported by check
const (
	stateResolved   = "resolved"
	stateConflicted = "conflicted"
	stateBroken     = "broken"
)

// AppStatus is the check result of one app.
type AppStatus struct {
	App      string `json:"app" yaml:"app"`
	Path     string `json:"path" yaml:"path"`
	State    string `json:"state" yaml:"state"`
	Head     string `json:"head,omitempty" yaml:"head,omitempty"`
	Incoming string `json:"incoming,omitempty" yaml:"incoming,omitempty"`
	Tip      string `json:"tip,omitempty" yaml:"tip,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runCheck(app *appctx.App, cmd *cobra.Command, args []string) error {
	root, err := discover.ResolveRoot(searchPath)
	if err != nil {
		return err
	}
	apps, err := discover.Apps(root, searchOptions(app.Config))
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		return fmt.Errorf("%w under %s", migration.ErrNoApps, root)
	}

	var result *multierror.Error
	statuses := make([]AppStatus, 0, len(apps))
	for _, appPath := range apps {
		status, err := checkApp(appPath)
		if err != nil {
			result = multierror.Append(result, err)
		}
		statuses = append(statuses, status)
	}

	if err := renderStatuses(app.Renderer, root, statuses); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

// checkApp loads the app at appPath. The returned error is non-nil unless
// the app is resolved.
func checkApp(appPath string) (AppStatus, error) {
	status := AppStatus{App: filepath.Base(appPath), Path: appPath}

	g, err := migration.LoadGroup(appPath)
	if err != nil {
		status.State = stateBroken
		status.Error = err.Error()
		return status, fmt.Errorf("%s: %w", status.App, err)
	}

	switch s := g.State.(type) {
	case migration.Resolved:
		status.State = stateResolved
		status.Head = s.Current.String()
		return status, nil
	case migration.Conflicted:
		status.State = stateConflicted
		status.Head = s.Conflict.Head.String()
		status.Incoming = s.Conflict.Incoming.String()
	}

	if err := g.Resolve(); err != nil {
		status.Error = err.Error()
		return status, fmt.Errorf("%s: %w: %w", status.App, errConflicted, err)
	}
	if s, ok := g.State.(migration.Resolved); ok && s.New != nil {
		status.Tip = s.New.String()
	}
	return status, fmt.Errorf("%s: %w", status.App, errConflicted)
}

func renderStatuses(r *render.Renderer, root string, statuses []AppStatus) error {
	if r.Format() != render.FormatTable {
		return r.Render(statuses)
	}

	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := s.State
		switch s.State {
		case stateResolved:
			state = r.Colorize(state, text.FgGreen)
		case stateConflicted:
			state = r.Colorize(state, text.FgYellow)
		default:
			state = r.Colorize(state, text.FgRed)
		}
		rel, err := filepath.Rel(root, s.Path)
		if err != nil {
			rel = s.Path
		}
		rows = append(rows, []string{s.App, rel, state, dash(s.Head), dash(s.Incoming), dash(s.Tip), dash(s.Error)})
	}
	r.RenderTable("Migration check", []string{"App", "Path", "State", "Head", "Incoming", "Tip", "Error"}, rows)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
