package migration

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lherron/rebase-migrations/internal/logging"
)

// Migration is one migration file as observed on disk, plus the edits
// planned for it. Observed fields are never changed after loading.
type Migration struct {
	Name         FileName
	Path         string
	App          string
	Dependencies []Dependency

	// FromRebasedBranch is set for migrations that only exist on the
	// incoming side of a conflict.
	FromRebasedBranch bool

	nameChange       *NameChange
	dependencyChange *DependencyChange
}

// LoadMigration loads the migration at path. The app is the name of the
// directory that holds the migrations directory. Sources that cannot be
// parsed load with no dependencies.
func LoadMigration(path string) (*Migration, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	name, err := ParseFileName(filepath.Base(abs))
	if err != nil {
		return nil, err
	}
	app := filepath.Base(filepath.Dir(filepath.Dir(abs)))
	if app == "" || app == "." || app == string(filepath.Separator) {
		return nil, fmt.Errorf("cannot determine app name for %s", abs)
	}

	src, err := ParseSource(abs)
	if errors.Is(err, ErrReadSource) {
		return nil, err
	}
	var deps []Dependency
	if err != nil {
		logging.Default().
			WithField(logging.PathFieldKey, abs).
			WithError(err).
			Debug("treating unparseable migration as having no dependencies")
	} else {
		deps = src.Dependencies()
	}

	return &Migration{
		Name:         name,
		Path:         abs,
		App:          app,
		Dependencies: deps,
	}, nil
}

func (m *Migration) key() nodeKey {
	return nodeKey{app: m.App, name: m.Name}
}

// SameAppDependencies returns the dependencies on migrations of the same app.
func (m *Migration) SameAppDependencies() []Dependency {
	var out []Dependency
	for _, d := range m.Dependencies {
		if d.App == m.App {
			out = append(out, d)
		}
	}
	return out
}

// CheckNotMerge fails for migrations with more than one same-app dependency.
func (m *Migration) CheckNotMerge() error {
	same := m.SameAppDependencies()
	if len(same) <= 1 {
		return nil
	}
	names := make([]string, len(same))
	for i, d := range same {
		names[i] = d.Name.String()
	}
	return fmt.Errorf("%w: %s depends on %s. Merge migrations cannot be resolved when they are not part of the HEAD branch; "+
		"remove the merge migration and merge manually", ErrMergeMigration, m.Name, strings.Join(names, ", "))
}

func (m *Migration) NameChange() *NameChange {
	return m.nameChange
}

func (m *Migration) DependencyChange() *DependencyChange {
	return m.dependencyChange
}

func (m *Migration) setNameChange(c *NameChange) {
	m.nameChange = c
}

func (m *Migration) setDependencyChange(c *DependencyChange) {
	m.dependencyChange = c
}

// HasChanges reports whether any edit is pending.
func (m *Migration) HasChanges() bool {
	return m.nameChange != nil || m.dependencyChange != nil
}

// PendingDependencies is the dependency list after planned edits.
func (m *Migration) PendingDependencies() []Dependency {
	if m.dependencyChange != nil {
		return slices.Clone(m.dependencyChange.New)
	}
	return slices.Clone(m.Dependencies)
}

// PendingName is the file name after a planned rename.
func (m *Migration) PendingName() FileName {
	if m.nameChange != nil {
		return m.nameChange.New
	}
	return m.Name
}

// PendingPath is where the file lives once renames are applied.
func (m *Migration) PendingPath() string {
	return filepath.Join(filepath.Dir(m.Path), m.PendingName().SourceFile())
}
