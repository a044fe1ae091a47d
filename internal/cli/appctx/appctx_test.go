package appctx

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/lherron/rebase-migrations/internal/config"
	"github.com/lherron/rebase-migrations/internal/render"
)

func testCommand(t *testing.T) *cobra.Command {
	t.Helper()
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvPrefix+"JOURNAL_PATH", filepath.Join(home, "journal.db"))
	t.Chdir(home)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("output", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("no-journal", false, "")
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	cmd := testCommand(t)

	app, err := Bootstrap(cmd, DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil {
		t.Error("Config should not be nil")
	}
	if app.Journal != nil {
		t.Error("Journal should be nil when NeedsJournal is false")
	}
	if app.Renderer.Format() != render.FormatTable {
		t.Errorf("Format = %q, want table", app.Renderer.Format())
	}
}

func TestBootstrap_WithJournal(t *testing.T) {
	cmd := testCommand(t)

	app, err := Bootstrap(cmd, WithJournal())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Journal == nil {
		t.Fatal("Journal should be opened")
	}
	if app.Journal.Path() != app.Config.JournalPath {
		t.Errorf("Journal path = %q, want %q", app.Journal.Path(), app.Config.JournalPath)
	}

	app.Close()
	app.Close()
}

func TestBootstrap_FlagOverrides(t *testing.T) {
	cmd := testCommand(t)
	if err := cmd.ParseFlags([]string{"--output", "yaml", "--no-journal", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}

	app, err := Bootstrap(cmd, WithJournal())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Journal != nil {
		t.Error("--no-journal should keep the journal closed")
	}
	if app.Renderer.Format() != render.FormatYAML {
		t.Errorf("Format = %q, want yaml", app.Renderer.Format())
	}
	if app.Config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", app.Config.LogLevel)
	}
}

func TestBootstrap_InvalidOutput(t *testing.T) {
	cmd := testCommand(t)
	if err := cmd.ParseFlags([]string{"--output", "xml"}); err != nil {
		t.Fatal(err)
	}

	if _, err := Bootstrap(cmd, DefaultOptions()); err == nil {
		t.Error("expected error for unknown output format")
	}
}
