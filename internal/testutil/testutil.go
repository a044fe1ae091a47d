package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/rebase-migrations/internal/journal"
)

// TempJournal opens a migrated journal in a temporary directory
func TempJournal(t *testing.T) (*journal.Journal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Failed to open test journal: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j, path
}

// Dep is an (app, migration) pair written into a dependencies list
type Dep [2]string

// MigrationSource renders a Django migration module with the given
// dependencies, one tuple per line like makemigrations does
func MigrationSource(deps ...Dep) string {
	var b strings.Builder
	b.WriteString("from django.db import migrations\n\n\n")
	b.WriteString("class Migration(migrations.Migration):\n\n")
	if len(deps) == 0 {
		b.WriteString("    dependencies = []\n")
	} else {
		b.WriteString("    dependencies = [\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "        ('%s', '%s'),\n", d[0], d[1])
		}
		b.WriteString("    ]\n")
	}
	b.WriteString("\n    operations = []\n")
	return b.String()
}

// WriteMigration writes root/app/migrations/name.py and returns its path
func WriteMigration(t *testing.T, root, app, name string, deps ...Dep) string {
	t.Helper()
	dir := MigrationsDir(t, root, app)
	return WriteFile(t, dir, name+".py", MigrationSource(deps...))
}

// WriteMaxMigration writes the pointer file of app
func WriteMaxMigration(t *testing.T, root, app, content string) string {
	t.Helper()
	dir := MigrationsDir(t, root, app)
	return WriteFile(t, dir, "max_migration.txt", content)
}

// ConflictContent builds a max_migration.txt merge conflict
func ConflictContent(head, incoming string) string {
	return fmt.Sprintf("<<<<<<< HEAD\n%s\n=======\n%s\n>>>>>>> feature\n", head, incoming)
}

// MigrationsDir creates root/app/migrations if needed
func MigrationsDir(t *testing.T, root, app string) string {
	t.Helper()
	dir := filepath.Join(root, app, "migrations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	return dir
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// AssertExists fails unless path exists
func AssertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected %s to exist: %v", path, err)
	}
}

// AssertNotExists fails if path exists
func AssertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("Expected %s not to exist", path)
	}
}

// AssertNoError asserts that an error is nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

// AssertError asserts that an error is not nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertEqual asserts that two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("Expected %v, got %v", expected, actual)
	}
}

// AssertStringContains asserts that a string contains a substring
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()
	if !strings.Contains(str, substr) {
		t.Fatalf("Expected string to contain %q, got %q", substr, str)
	}
}
