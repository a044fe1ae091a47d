package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/cli/appctx"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/migration"
	"github.com/lherron/rebase-migrations/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs",
	Long: `List the runs that wrote migration changes, newest first.

Examples:
  rebase-migrations history                 # Last 20 runs
  rebase-migrations history --app shop      # Runs that touched the shop app
  rebase-migrations history show 3f2a       # Details of one run (ID prefix)`,
	Args: cobra.NoArgs,
	RunE: appctx.WithApp(appctx.WithJournal(), runHistory),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one journaled run and its change set",
	Args:  cobra.ExactArgs(1),
	RunE:  appctx.WithApp(appctx.WithJournal(), runHistoryShow),
}

var (
	historyLimit int
	historyApp   string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs (0 = all)")
	historyCmd.Flags().StringVar(&historyApp, "app", "", "Only runs that touched this app")
}

var errJournalDisabled = errors.New("the journal is disabled (journal: false or --no-journal)")

func runHistory(app *appctx.App, cmd *cobra.Command, args []string) error {
	if app.Journal == nil {
		return errJournalDisabled
	}
	runs, err := app.Journal.List(journal.ListOptions{Limit: historyLimit, App: historyApp})
	if err != nil {
		return err
	}

	r := app.Renderer
	if r.Format() != render.FormatTable {
		if runs == nil {
			runs = []journal.Run{}
		}
		return r.Render(runs)
	}
	if len(runs) == 0 {
		r.Printf("No runs recorded.\n")
		return printJournalInfo(r, app.Journal)
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode,
			colorStatus(r, run.Status),
			strings.Join(run.Apps, ", "),
			strconv.Itoa(run.Renames),
			strconv.Itoa(run.DependencyUpdates),
			run.Root,
		})
	}
	r.RenderTable("Runs", []string{"ID", "Started", "Mode", "Status", "Apps", "Renames", "Dependency updates", "Root"}, rows)
	return printJournalInfo(r, app.Journal)
}

func printJournalInfo(r *render.Renderer, j *journal.Journal) error {
	version, err := j.SchemaVersion()
	if err != nil {
		return err
	}
	r.Printf("\n%s\n", r.Colorize(fmt.Sprintf("Journal: %s (schema %s)", j.Path(), version), text.Faint))
	return nil
}

// runDetail is a run with its change set decoded.
type runDetail struct {
	journal.Run `yaml:",inline"`
	ChangeSet   migration.ChangeSet `json:"change_set" yaml:"change_set"`
}

func runHistoryShow(app *appctx.App, cmd *cobra.Command, args []string) error {
	if app.Journal == nil {
		return errJournalDisabled
	}
	run, err := app.Journal.Get(args[0])
	if err != nil {
		return err
	}

	detail := runDetail{Run: *run}
	if len(run.ChangeSet) > 0 {
		if err := json.Unmarshal(run.ChangeSet, &detail.ChangeSet); err != nil {
			return fmt.Errorf("run %s: failed to decode change set: %w", run.ID, err)
		}
	}

	r := app.Renderer
	if r.Format() != render.FormatTable {
		return r.Render(detail)
	}

	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Local().Format(time.DateTime)
	}
	rows := [][]string{
		{"ID", run.ID},
		{"Started", run.StartedAt.Local().Format(time.DateTime)},
		{"Finished", finished},
		{"Mode", run.Mode},
		{"Status", colorStatus(r, run.Status)},
		{"Root", run.Root},
		{"Apps", strings.Join(run.Apps, ", ")},
	}
	if run.Error != "" {
		rows = append(rows, []string{"Error", run.Error})
	}
	r.RenderTable("Run", []string{"Field", "Value"}, rows)
	return r.ChangeSet(detail.ChangeSet, false)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func colorStatus(r *render.Renderer, status string) string {
	switch status {
	case journal.StatusApplied:
		return r.Colorize(status, text.FgGreen)
	case journal.StatusFailed:
		return r.Colorize(status, text.FgRed)
	default:
		return r.Colorize(status, text.FgYellow)
	}
}
