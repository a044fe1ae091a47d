package journal_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"

	"github.com/lherron/rebase-migrations/internal/journal"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("could not open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenAppliesSchema(t *testing.T) {
	j := openJournal(t)

	version, err := j.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != "000002_run_apps.sql" {
		t.Errorf("schema version = %q", version)
	}

	applied, err := j.Migrate()
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second Migrate applied %v", applied)
	}
}

func TestRunLifecycle(t *testing.T) {
	j := openJournal(t)

	changeSet := map[string]any{"apps": []string{"blog"}}
	run, err := j.Start("/srv/project", journal.ModeApply, []string{"blog", "shop"}, changeSet)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.Status != journal.StatusRunning {
		t.Errorf("status = %q, want running", run.Status)
	}

	if err := j.Finish(run, 2, 3, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := j.Get(run.ID[:8])
	if err != nil {
		t.Fatalf("Get by prefix: %v", err)
	}
	if got.ID != run.ID || got.Status != journal.StatusApplied {
		t.Errorf("got %+v", got)
	}
	if got.Renames != 2 || got.DependencyUpdates != 3 {
		t.Errorf("counts = %d/%d, want 2/3", got.Renames, got.DependencyUpdates)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if diff := deep.Equal(got.Apps, []string{"blog", "shop"}); diff != nil {
		t.Error(diff)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got.ChangeSet, &decoded); err != nil {
		t.Fatalf("decode change set: %v", err)
	}
	if _, ok := decoded["apps"]; !ok {
		t.Errorf("change set = %s", got.ChangeSet)
	}
}

func TestFailedRunKeepsError(t *testing.T) {
	j := openJournal(t)

	run, err := j.Start("/srv/project", journal.ModeApply, nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := j.Finish(run, 1, 0, errors.New("rename target already exists")); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := j.Get(run.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != journal.StatusFailed || got.Error != "rename target already exists" {
		t.Errorf("got status %q error %q", got.Status, got.Error)
	}
}

func TestListNewestFirst(t *testing.T) {
	j := openJournal(t)

	var ids []string
	for _, app := range []string{"blog", "shop", "blog"} {
		run, err := j.Start("/srv/project", journal.ModeApply, []string{app}, nil)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := j.List(journal.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Errorf("runs not newest first: %v", []string{runs[0].ID, runs[1].ID, runs[2].ID})
	}

	limited, err := j.List(journal.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d runs", len(limited))
	}

	blog, err := j.List(journal.ListOptions{App: "blog"})
	if err != nil {
		t.Fatalf("List app: %v", err)
	}
	if len(blog) != 2 {
		t.Errorf("blog runs = %d, want 2", len(blog))
	}
}

func TestGetUnknownRun(t *testing.T) {
	j := openJournal(t)
	if _, err := j.Get("does-not-exist"); !journal.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
	if _, err := j.Get("  "); !journal.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}
