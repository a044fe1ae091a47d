package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
	"github.com/mitchellh/go-homedir"
)

func makeApp(t *testing.T, root, rel string, withPointer bool) string {
	t.Helper()
	app := filepath.Join(root, filepath.FromSlash(rel))
	dir := filepath.Join(app, "migrations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if withPointer {
		if err := os.WriteFile(filepath.Join(dir, "max_migration.txt"), []byte("0001_initial\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return app
}

func TestApps(t *testing.T) {
	root := t.TempDir()
	blog := makeApp(t, root, "blog", true)
	shop := makeApp(t, root, "src/shop", true)
	makeApp(t, root, "nopointer", false)
	makeApp(t, root, "venv/lib/site-packages/thirdparty", true)
	makeApp(t, root, "node_modules/pkg", true)

	got, err := Apps(root, Options{})
	if err != nil {
		t.Fatalf("Apps: %v", err)
	}
	if diff := deep.Equal(got, []string{blog, shop}); diff != nil {
		t.Error(diff)
	}
}

func TestAppsAllDirs(t *testing.T) {
	root := t.TempDir()
	blog := makeApp(t, root, "blog", true)
	vendored := makeApp(t, root, "venv/lib/thirdparty", true)

	got, err := Apps(root, Options{AllDirs: true})
	if err != nil {
		t.Fatalf("Apps: %v", err)
	}
	if diff := deep.Equal(got, []string{blog, vendored}); diff != nil {
		t.Error(diff)
	}
}

func TestAppsExclude(t *testing.T) {
	root := t.TempDir()
	blog := makeApp(t, root, "blog", true)
	makeApp(t, root, "legacy/old", true)
	makeApp(t, root, "contrib/archive_2019/app", true)
	kept := makeApp(t, root, "contrib/live", true)

	got, err := Apps(root, Options{Exclude: []string{"legacy", "contrib/archive_*"}})
	if err != nil {
		t.Fatalf("Apps: %v", err)
	}
	if diff := deep.Equal(got, []string{blog, kept}); diff != nil {
		t.Error(diff)
	}
}

func TestAppsRootNamedLikeSkippedDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "build")
	app := makeApp(t, root, "blog", true)

	got, err := Apps(root, Options{})
	if err != nil {
		t.Fatalf("Apps: %v", err)
	}
	if diff := deep.Equal(got, []string{app}); diff != nil {
		t.Error(diff)
	}
}

func TestAppsErrors(t *testing.T) {
	if _, err := Apps(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Apps(file, Options{}); err == nil {
		t.Error("expected error for file root")
	}

	if _, err := Apps(t.TempDir(), Options{Exclude: []string{"[unclosed"}}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestMatcherSkip(t *testing.T) {
	m, err := NewMatcher(Options{Exclude: []string{"**/fixtures", "tmp*"}})
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{"src/__pycache__", true},
		{"src/app", false},
		{"tests/fixtures", true},
		{"a/b/fixtures", true},
		{"fixtures", false},
		{"tmp", true},
		{"src/tmp_data", true},
		{"docs", true},
	}
	for _, tt := range tests {
		if got := m.Skip(tt.rel); got != tt.want {
			t.Errorf("Skip(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestResolveRootExpandsHome(t *testing.T) {
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ResolveRoot("~/project")
	if err != nil {
		t.Fatalf("ResolveRoot: %v", err)
	}
	if got != filepath.Join(home, "project") {
		t.Errorf("ResolveRoot = %q", got)
	}
}
