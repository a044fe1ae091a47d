// Package discover finds Django apps that keep a max_migration.txt pointer
// file in their migrations directory.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mitchellh/go-homedir"

	"github.com/lherron/rebase-migrations/internal/logging"
)

const (
	// Must match migration.Dir and migration.MaxMigrationFile; migration imports this package.
	migrationsDir    = "migrations"
	maxMigrationFile = "max_migration.txt"
)

// DefaultSkipDirs are directory names never searched unless AllDirs is set.
var DefaultSkipDirs = []string{
	// version control
	".git", ".svn", ".hg",
	// virtual environments
	"venv", "env", ".venv", ".env", "virtualenv",
	// python caches and tooling
	"__pycache__", ".pytest_cache", ".tox", ".mypy_cache", ".coverage", "htmlcov",
	// node
	"node_modules", ".npm", ".yarn",
	// build output
	"build", "dist", ".cache", "target", "_build",
	// editors and OS files
	".vscode", ".idea", ".sublime-project", ".sublime-workspace", ".DS_Store", "Thumbs.db",
	// static and media
	"static", "staticdirs", "staticfiles", "static_collected", "media",
	".docker", "docs",
}

// Options controls which directories are searched.
type Options struct {
	// AllDirs disables DefaultSkipDirs.
	AllDirs bool
	// Exclude holds glob patterns matched against slash separated paths
	// relative to the search root. A pattern without a slash also matches
	// a bare directory name.
	Exclude []string
}

// Matcher decides whether a directory is skipped.
type Matcher struct {
	skip     map[string]struct{}
	patterns []glob.Glob
	nameOnly []glob.Glob
}

// NewMatcher compiles opts.
func NewMatcher(opts Options) (*Matcher, error) {
	m := &Matcher{skip: make(map[string]struct{})}
	if !opts.AllDirs {
		for _, name := range DefaultSkipDirs {
			m.skip[name] = struct{}{}
		}
	}
	for _, pattern := range opts.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(strings.TrimSuffix(pattern, "/"), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		if strings.Contains(pattern, "/") {
			m.patterns = append(m.patterns, g)
		} else {
			m.nameOnly = append(m.nameOnly, g)
		}
	}
	return m, nil
}

// Skip reports whether the directory at rel (relative to the root, slash
// separated) should not be searched.
func (m *Matcher) Skip(rel string) bool {
	name := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		name = rel[i+1:]
	}
	if _, ok := m.skip[name]; ok {
		return true
	}
	for _, g := range m.nameOnly {
		if g.Match(name) {
			return true
		}
	}
	for _, g := range m.patterns {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// ResolveRoot expands a leading ~ and makes path absolute.
func ResolveRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

// Apps returns the sorted paths of every app under root whose migrations
// directory contains max_migration.txt. Unreadable directories are skipped.
func Apps(root string, opts Options) ([]string, error) {
	root, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("search root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search root %s is not a directory", root)
	}

	matcher, err := NewMatcher(opts)
	if err != nil {
		return nil, err
	}

	log := logging.Default().WithField(logging.PathFieldKey, root)
	var apps []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrPermission) && path != root {
				log.WithError(walkErr).Debug("skipping unreadable directory")
				return fs.SkipDir
			}
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if matcher.Skip(filepath.ToSlash(rel)) {
				return fs.SkipDir
			}
		}
		if d.Name() != migrationsDir {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, maxMigrationFile)); err == nil {
			apps = append(apps, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", root, err)
	}

	slices.Sort(apps)
	log.Debugf("found %d apps", len(apps))
	return apps, nil
}

// MigrationDirs returns the migrations directory of every app under root.
func MigrationDirs(root string, opts Options) ([]string, error) {
	apps, err := Apps(root, opts)
	if err != nil {
		return nil, err
	}
	dirs := make([]string, len(apps))
	for i, app := range apps {
		dirs[i] = filepath.Join(app, migrationsDir)
	}
	return dirs, nil
}
