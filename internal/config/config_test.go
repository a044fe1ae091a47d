package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
	"github.com/mitchellh/go-homedir"
)

func isolate(t *testing.T) string {
	t.Helper()
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"CONFIG", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "OUTPUT", "COLOR", "JOURNAL_PATH", "ALL_DIRS", "JOURNAL", "EXCLUDE"} {
		t.Setenv(EnvPrefix+key, "")
	}
	work := filepath.Join(home, "work")
	if err := os.MkdirAll(work, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(work)
	return home
}

func writeYAML(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".config", "rebase-migrations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	want.JournalPath = filepath.Join(home, ".local", "share", "rebase-migrations", "journal.db")
	if diff := deep.Equal(cfg, want); diff != nil {
		t.Error(diff)
	}
}

func TestLoadYAML(t *testing.T) {
	home := isolate(t)
	writeYAML(t, home, `
output: json
all_dirs: true
exclude:
  - "legacy/**"
  - vendor
journal_path: ~/journals/rm.db
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output != "json" || !cfg.AllDirs {
		t.Errorf("cfg = %+v", cfg)
	}
	if diff := deep.Equal(cfg.Exclude, []string{"legacy/**", "vendor"}); diff != nil {
		t.Error(diff)
	}
	if cfg.JournalPath != filepath.Join(home, "journals", "rm.db") {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want default warn", cfg.LogLevel)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	home := isolate(t)
	writeYAML(t, home, "output: json\njournal: true\n")
	t.Setenv(EnvPrefix+"OUTPUT", "yaml")
	t.Setenv(EnvPrefix+"JOURNAL", "false")
	t.Setenv(EnvPrefix+"EXCLUDE", "a/**, b ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
	if cfg.Journal {
		t.Error("Journal should be disabled by env")
	}
	if diff := deep.Equal(cfg.Exclude, []string{"a/**", "b"}); diff != nil {
		t.Error(diff)
	}
}

func TestLoadEnvLocal(t *testing.T) {
	home := isolate(t)
	if err := os.WriteFile(filepath.Join(home, "work", ".env.local"), []byte("REBASE_MIGRATIONS_LOG_LEVEL=debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load never overrides variables that are already set
	os.Unsetenv(EnvPrefix + "LOG_LEVEL")
	t.Cleanup(func() { os.Unsetenv(EnvPrefix + "LOG_LEVEL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from .env.local", cfg.LogLevel)
	}
}

func TestLoadInvalidBool(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPrefix+"ALL_DIRS", "sometimes")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	home := isolate(t)
	writeYAML(t, home, "exclude: [unterminated\n")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
