package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lherron/rebase-migrations/internal/config"
	"github.com/lherron/rebase-migrations/internal/journal"
	"github.com/lherron/rebase-migrations/internal/migration"
	"github.com/lherron/rebase-migrations/internal/testutil"
)

type dep = testutil.Dep

// setupEnv isolates config and journal from the user's environment and
// returns a project root with a conflicted blog app and a resolved shop app.
func setupEnv(t *testing.T) string {
	t.Helper()
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvPrefix+"CONFIG", filepath.Join(home, "missing.yaml"))
	t.Setenv(config.EnvPrefix+"JOURNAL_PATH", filepath.Join(home, "journal.db"))
	t.Setenv(config.EnvPrefix+"COLOR", "never")
	t.Chdir(home)

	root := t.TempDir()
	testutil.WriteMigration(t, root, "blog", "0001_initial")
	testutil.WriteMigration(t, root, "blog", "0002_a", dep{"blog", "0001_initial"})
	testutil.WriteMigration(t, root, "blog", "0002_b", dep{"blog", "0001_initial"})
	testutil.WriteMaxMigration(t, root, "blog", testutil.ConflictContent("0002_a", "0002_b"))

	testutil.WriteMigration(t, root, "shop", "0001_initial", dep{"blog", "0001_initial"})
	testutil.WriteMaxMigration(t, root, "shop", "0001_initial\n")
	return root
}

// resetFlags restores every flag to its default so commands can run more
// than once in a test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRebaseDryRunJSON(t *testing.T) {
	root := setupEnv(t)

	out, err := execute(t, "--path", root, "--dry-run", "--json")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}

	var cs migration.ChangeSet
	if err := json.Unmarshal([]byte(out), &cs); err != nil {
		t.Fatalf("output is not a change set: %v\n%s", err, out)
	}
	blog, ok := cs.App("blog")
	if !ok {
		t.Fatalf("blog missing from %s", out)
	}
	if len(blog.MigrationChanges) != 1 {
		t.Fatalf("expected one blog change, got %+v", blog.MigrationChanges)
	}
	change := blog.MigrationChanges[0]
	if change.Rename == nil || change.Rename.New.String() != "0003_b" {
		t.Errorf("rename = %v, want 0002_b -> 0003_b", change.Rename)
	}
	if blog.MaxMigrationUpdate == nil || blog.MaxMigrationUpdate.New.String() != "0003_b" {
		t.Errorf("max migration update = %+v", blog.MaxMigrationUpdate)
	}
	if shop, _ := cs.App("shop"); shop.HasChanges() {
		t.Errorf("shop should be untouched: %+v", shop)
	}

	testutil.AssertExists(t, filepath.Join(root, "blog", "migrations", "0002_b.py"))
	testutil.AssertNotExists(t, filepath.Join(root, "blog", "migrations", "0003_b.py"))
	testutil.AssertStringContains(t, testutil.ReadFile(t, filepath.Join(root, "blog", "migrations", "max_migration.txt")), "<<<<<<< HEAD")
}

func TestRebaseDiff(t *testing.T) {
	root := setupEnv(t)

	out, err := execute(t, "--path", root, "--dry-run", "--diff")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "--- a/blog/migrations/0002_b.py")
	testutil.AssertStringContains(t, out, "+++ b/blog/migrations/0003_b.py")
	testutil.AssertStringContains(t, out, "+        ('blog', '0002_a'),")
	testutil.AssertStringContains(t, out, "+0003_b")
	testutil.AssertStringContains(t, out, "dry run")
}

func TestRebaseApplyRecordsRun(t *testing.T) {
	root := setupEnv(t)
	dir := filepath.Join(root, "blog", "migrations")

	out, err := execute(t, "--path", root)
	if err != nil {
		t.Fatalf("apply failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "0002_b -> 0003_b")
	testutil.AssertNotExists(t, filepath.Join(dir, "0002_b.py"))
	testutil.AssertStringContains(t, testutil.ReadFile(t, filepath.Join(dir, "0003_b.py")), "('blog', '0002_a'),")
	testutil.AssertEqual(t, "0003_b\n", testutil.ReadFile(t, filepath.Join(dir, "max_migration.txt")))

	out, err = execute(t, "history", "-o", "json")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	var runs []journal.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("history output: %v\n%s", err, out)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	testutil.AssertEqual(t, journal.StatusApplied, run.Status)
	testutil.AssertEqual(t, journal.ModeApply, run.Mode)
	testutil.AssertEqual(t, 1, run.Renames)
	testutil.AssertEqual(t, 1, run.DependencyUpdates)
	testutil.AssertEqual(t, root, run.Root)

	out, err = execute(t, "history", "show", run.ID[:8], "-o", "json")
	if err != nil {
		t.Fatalf("history show failed: %v\n%s", err, out)
	}
	var detail runDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("history show output: %v\n%s", err, out)
	}
	testutil.AssertEqual(t, run.ID, detail.ID)
	if _, ok := detail.ChangeSet.App("blog"); !ok {
		t.Errorf("journaled change set lacks blog: %s", out)
	}

	// a second run has nothing to do and is not journaled
	out, err = execute(t, "--path", root)
	if err != nil {
		t.Fatalf("second apply failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "No migration changes needed.")

	out, err = execute(t, "history", "-o", "json")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Errorf("expected still 1 run (err %v): %s", err, out)
	}
}

func TestHistoryTableShowsJournal(t *testing.T) {
	root := setupEnv(t)
	journalPath := filepath.Join(os.Getenv("HOME"), "journal.db")

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "No runs recorded.")
	testutil.AssertStringContains(t, out, "Journal: "+journalPath+" (schema 000002_run_apps")

	if out, err := execute(t, "--path", root); err != nil {
		t.Fatalf("apply failed: %v\n%s", err, out)
	}
	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, journal.StatusApplied)
	testutil.AssertStringContains(t, out, "Journal: "+journalPath)
}

func TestRebaseSingleApp(t *testing.T) {
	root := setupEnv(t)

	out, err := execute(t, "--app-path", filepath.Join(root, "blog"), "--no-journal")
	if err != nil {
		t.Fatalf("apply failed: %v\n%s", err, out)
	}
	testutil.AssertExists(t, filepath.Join(root, "blog", "migrations", "0003_b.py"))

	_, err = execute(t, "history", "--no-journal")
	if !errors.Is(err, errJournalDisabled) {
		t.Errorf("history without journal: got %v", err)
	}
}

func TestRebaseFlagValidation(t *testing.T) {
	root := setupEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"json without dry run", []string{"--path", root, "--json"}, "--json requires --dry-run"},
		{"diff without dry run", []string{"--path", root, "--diff"}, "--diff requires --dry-run"},
		{"diff with yaml", []string{"--path", root, "--dry-run", "--diff", "-o", "yaml"}, "--diff only works with table output"},
		{"path and app path", []string{"--path", root, "--app-path", root}, "none of the others can be"},
		{"bad output", []string{"--path", root, "-o", "xml"}, "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			testutil.AssertStringContains(t, err.Error(), tt.want)
		})
	}

	testutil.AssertExists(t, filepath.Join(root, "blog", "migrations", "0002_b.py"))
}

func TestRebaseNoApps(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "--path", t.TempDir())
	if !errors.Is(err, migration.ErrNoApps) {
		t.Errorf("got %v, want ErrNoApps", err)
	}
}

func TestCheck(t *testing.T) {
	root := setupEnv(t)
	testutil.WriteMigration(t, root, "broken", "0001_initial")
	testutil.WriteMaxMigration(t, root, "broken", "not a migration name\n")

	out, err := execute(t, "check", "--path", root, "-o", "json")
	if !errors.Is(err, errConflicted) {
		t.Errorf("check error = %v, want conflicted", err)
	}
	if !errors.Is(err, migration.ErrPointerUnparseable) {
		t.Errorf("check error = %v, want unparseable pointer", err)
	}

	var statuses []AppStatus
	if err := json.Unmarshal([]byte(out), &statuses); err != nil {
		t.Fatalf("check output: %v\n%s", err, out)
	}
	byApp := make(map[string]AppStatus)
	for _, s := range statuses {
		byApp[s.App] = s
	}
	if s := byApp["blog"]; s.State != stateConflicted || s.Head != "0002_a" || s.Incoming != "0002_b" || s.Tip != "0003_b" {
		t.Errorf("blog = %+v", s)
	}
	if s := byApp["shop"]; s.State != stateResolved || s.Head != "0001_initial" {
		t.Errorf("shop = %+v", s)
	}
	if s := byApp["broken"]; s.State != stateBroken || s.Error == "" {
		t.Errorf("broken = %+v", s)
	}
}

func TestCheckAfterApply(t *testing.T) {
	root := setupEnv(t)

	if out, err := execute(t, "--path", root, "--no-journal"); err != nil {
		t.Fatalf("apply failed: %v\n%s", err, out)
	}
	out, err := execute(t, "check", "--path", root)
	if err != nil {
		t.Fatalf("check after apply: %v\n%s", err, out)
	}
	testutil.AssertStringContains(t, out, "resolved")
	if strings.Contains(out, stateConflicted) {
		t.Errorf("no app should be conflicted:\n%s", out)
	}
}

func TestCheckReportsMergeMigration(t *testing.T) {
	root := setupEnv(t)
	testutil.WriteMigration(t, root, "blog", "0002_b", dep{"blog", "0001_initial"}, dep{"blog", "0002_a"})

	out, err := execute(t, "check", "--path", root, "-o", "json")
	if !errors.Is(err, migration.ErrMergeMigration) {
		t.Errorf("check error = %v, want merge migration", err)
	}
	testutil.AssertStringContains(t, out, "merge migration")
}

func TestVersionJSON(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output: %v\n%s", err, out)
	}
	testutil.AssertEqual(t, Version, info["version"])
}
