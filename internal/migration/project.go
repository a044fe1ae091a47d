package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/lherron/rebase-migrations/internal/logging"
)

// Project is every app group found under a search root.
type Project struct {
	groups map[string]*Group
}

// NewProject indexes groups by app name.
func NewProject(groups []*Group) (*Project, error) {
	p := &Project{groups: make(map[string]*Group, len(groups))}
	for _, g := range groups {
		if existing, ok := p.groups[g.App]; ok {
			return nil, fmt.Errorf("%w %q: %s and %s", ErrDuplicateApp, g.App, existing.Dir, g.Dir)
		}
		p.groups[g.App] = g
	}
	return p, nil
}

// LoadProject loads a group for every app path.
func LoadProject(appPaths []string) (*Project, error) {
	groups := make([]*Group, 0, len(appPaths))
	for _, path := range appPaths {
		g, err := LoadGroup(path)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return NewProject(groups)
}

// Apps returns the app names in sorted order.
func (p *Project) Apps() []string {
	apps := make([]string, 0, len(p.groups))
	for app := range p.groups {
		apps = append(apps, app)
	}
	slices.Sort(apps)
	return apps
}

// Group returns the group of app.
func (p *Project) Group(app string) (*Group, bool) {
	g, ok := p.groups[app]
	return g, ok
}

// Groups returns every group ordered by app name.
func (p *Project) Groups() []*Group {
	out := make([]*Group, 0, len(p.groups))
	for _, app := range p.Apps() {
		out = append(out, p.groups[app])
	}
	return out
}

// Resolve plans every edit: conflicted groups are renumbered, then
// same-app dependencies are rewritten, then dependencies across apps, each
// pass reading a fresh rename lookup.
func (p *Project) Resolve() error {
	groups := p.Groups()
	for _, g := range groups {
		if !g.Conflicted() {
			continue
		}
		logging.Default().WithField(logging.AppFieldKey, g.App).Debug("resolving max_migration.txt conflict")
		if err := g.Resolve(); err != nil {
			return err
		}
	}

	lookup := BuildRenameLookup(groups)
	for _, g := range groups {
		if err := g.PropagateSameApp(lookup); err != nil {
			return err
		}
	}

	lookup = BuildRenameLookup(groups)
	for _, g := range groups {
		g.PropagateCrossApp(lookup)
	}
	return nil
}

// Apply writes all planned edits, one group at a time. Edits already written
// stay in place when a later one fails.
func (p *Project) Apply() error {
	for _, g := range p.Groups() {
		if err := g.Apply(); err != nil {
			return err
		}
	}
	return nil
}

// ChangeSet describes the planned edits of every group.
func (p *Project) ChangeSet() ChangeSet {
	cs := ChangeSet{Apps: make([]AppChanges, 0, len(p.groups))}
	for _, g := range p.Groups() {
		cs.Apps = append(cs.Apps, groupChanges(g))
	}
	return cs
}

// FileEdit is the effect of the planned edits on one file.
type FileEdit struct {
	App     string
	OldPath string
	NewPath string
	Before  []byte
	After   []byte
}

// FileEdits computes the content every touched file would have after Apply,
// without writing anything.
func (p *Project) FileEdits() ([]FileEdit, error) {
	var edits []FileEdit
	for _, g := range p.Groups() {
		for _, m := range g.Migrations() {
			if !m.HasChanges() {
				continue
			}
			edit := FileEdit{App: g.App, OldPath: m.Path, NewPath: m.PendingPath()}
			if c := m.DependencyChange(); c != nil {
				before, after, err := c.Rewrite(m.Path)
				if err != nil {
					return nil, fmt.Errorf("app %s: %w", g.App, err)
				}
				edit.Before, edit.After = before, after
			} else {
				content, err := os.ReadFile(m.Path)
				if err != nil {
					return nil, fmt.Errorf("app %s: %w %s: %w", g.App, ErrReadSource, m.Path, err)
				}
				edit.Before, edit.After = content, content
			}
			edits = append(edits, edit)
		}

		if s, ok := g.State.(Resolved); ok && s.New != nil {
			path := filepath.Join(g.Dir, MaxMigrationFile)
			before, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("app %s: read %s: %w", g.App, path, err)
			}
			edits = append(edits, FileEdit{
				App:     g.App,
				OldPath: path,
				NewPath: path,
				Before:  before,
				After:   []byte(s.New.String() + "\n"),
			})
		}
	}
	return edits, nil
}
