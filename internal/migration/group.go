package migration

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lherron/rebase-migrations/internal/logging"
)

// Group is the migration set of one app.
type Group struct {
	App string
	// Dir is the app's migrations directory.
	Dir string
	// Head holds migrations reachable from the HEAD side of max_migration.txt,
	// keyed by absolute path.
	Head map[string]*Migration
	// Rebased holds the incoming-only migrations, ordered by original number.
	Rebased []*Migration
	// LastCommon is the newest migration shared by both sides, once found.
	LastCommon *FileName
	State      MaxMigrationState

	graph Graph
	log   logging.Logger
}

// LoadGroup loads the app rooted at appPath.
func LoadGroup(appPath string) (*Group, error) {
	dir := filepath.Join(appPath, Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s does not contain a %s directory", appPath, Dir)
	}
	if _, err := os.Stat(filepath.Join(dir, MaxMigrationFile)); err != nil {
		return nil, fmt.Errorf("%s does not contain %s", dir, MaxMigrationFile)
	}
	return NewGroup(dir, FileSystemGraph{})
}

// NewGroup loads the migrations directory dir, walking graph from the HEAD
// migration named by the pointer file.
func NewGroup(dir string, graph Graph) (*Group, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	g := &Group{
		App:   filepath.Base(filepath.Dir(abs)),
		Dir:   abs,
		Head:  make(map[string]*Migration),
		State: LoadPointerFile(abs),
		graph: graph,
	}
	g.log = logging.Default().WithField(logging.AppFieldKey, g.App)

	var head FileName
	switch s := g.State.(type) {
	case Resolved:
		head = s.Current
	case Conflicted:
		head = s.Conflict.Head
	case Absent:
		return nil, fmt.Errorf("%w under %s: %s", ErrPointerUnparseable, abs, s.Reason)
	default:
		return nil, fmt.Errorf("unexpected pointer state %T", s)
	}

	seed, err := g.load(head)
	if err != nil {
		return nil, fmt.Errorf("app %s: head migration: %w", g.App, err)
	}
	for m := range Walk(g.graph, seed) {
		g.Head[m.Path] = m
	}
	g.log.WithField(logging.MigrationFieldKey, head.String()).
		Debugf("loaded %d head migrations", len(g.Head))
	return g, nil
}

func (g *Group) load(name FileName) (*Migration, error) {
	return LoadMigration(filepath.Join(g.Dir, name.SourceFile()))
}

// Conflicted reports whether the pointer file holds an unresolved conflict.
func (g *Group) Conflicted() bool {
	_, ok := g.State.(Conflicted)
	return ok
}

// Migrations returns head migrations sorted by path followed by the rebased
// ones.
func (g *Group) Migrations() []*Migration {
	out := make([]*Migration, 0, len(g.Head)+len(g.Rebased))
	for _, m := range g.Head {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Migration) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return append(out, g.Rebased...)
}

// HighestHead returns the head migration with the highest number.
func (g *Group) HighestHead() (*Migration, error) {
	best := -1
	var tied []*Migration
	for _, m := range g.Head {
		n := m.Name.Number()
		if n > best {
			best = n
			tied = tied[:0]
		}
		if n == best {
			tied = append(tied, m)
		}
	}
	switch len(tied) {
	case 0:
		return nil, fmt.Errorf("%w for app %s", ErrNoMigrations, g.App)
	case 1:
		return tied[0], nil
	}

	var own []*Migration
	names := make([]string, 0, len(tied))
	for _, m := range tied {
		if !m.FromRebasedBranch {
			own = append(own, m)
		}
		names = append(names, m.Name.String())
	}
	if len(own) == 1 {
		return own[0], nil
	}
	slices.Sort(names)
	return nil, fmt.Errorf("%w in app %s: %s", ErrAmbiguousHead, g.App, strings.Join(names, ", "))
}

// FindCommonAncestor walks back from the incoming migration and records the
// first migration that is also on the HEAD side. Nothing happens unless the
// pointer file is conflicted.
func (g *Group) FindCommonAncestor() error {
	conflict, ok := g.State.(Conflicted)
	if !ok {
		return nil
	}
	incoming, err := g.load(conflict.Conflict.Incoming)
	if err != nil {
		return fmt.Errorf("app %s: incoming migration: %w", g.App, err)
	}
	for m := range Walk(g.graph, incoming) {
		if _, ok := g.Head[m.Path]; ok {
			name := m.Name
			g.LastCommon = &name
			g.log.WithField(logging.MigrationFieldKey, name.String()).Debug("found last common migration")
			return nil
		}
		if err := m.CheckNotMerge(); err != nil {
			return fmt.Errorf("app %s: %w", g.App, err)
		}
	}
	return fmt.Errorf("%w for app %s between %s and %s", ErrNoCommonAncestor, g.App, conflict.Conflict.Head, conflict.Conflict.Incoming)
}

// Renumber moves the incoming-only migrations after the highest HEAD
// migration, keeping their relative order, and settles the pointer file on
// the newest of them.
func (g *Group) Renumber() error {
	conflict, ok := g.State.(Conflicted)
	if !ok {
		return nil
	}
	if g.LastCommon == nil {
		return fmt.Errorf("app %s: common ancestor has not been determined", g.App)
	}
	highest, err := g.HighestHead()
	if err != nil {
		return err
	}
	incoming, err := g.load(conflict.Conflict.Incoming)
	if err != nil {
		return fmt.Errorf("app %s: incoming migration: %w", g.App, err)
	}

	var rebased []*Migration
	for m := range Walk(g.graph, incoming) {
		if m.Name == *g.LastCommon {
			break
		}
		m.FromRebasedBranch = true
		rebased = append(rebased, m)
	}
	slices.SortStableFunc(rebased, func(a, b *Migration) int {
		return cmp.Compare(a.Name.Number(), b.Name.Number())
	})

	tip := highest.Name
	next := highest.Name.Number() + 1
	for _, m := range rebased {
		renamed, err := m.Name.WithNumber(next)
		if err != nil {
			return fmt.Errorf("app %s: %w", g.App, err)
		}
		if renamed != m.Name {
			m.setNameChange(&NameChange{Old: m.Name, New: renamed})
			g.log.WithField(logging.MigrationFieldKey, m.Name.String()).Debugf("renumbered to %s", renamed)
		}
		tip = renamed
		next++
	}

	g.Rebased = rebased
	g.State = Resolved{Current: conflict.Conflict.Head, New: &tip}
	return nil
}

// Resolve finds the common ancestor and renumbers the incoming branch.
func (g *Group) Resolve() error {
	if err := g.FindCommonAncestor(); err != nil {
		return err
	}
	return g.Renumber()
}

// PropagateSameApp points the dependencies of rebased migrations at their
// new names. A dependency on the common ancestor moves to the highest HEAD
// migration.
func (g *Group) PropagateSameApp(lookup RenameLookup) error {
	var highest *Migration
	for _, m := range g.Migrations() {
		if !m.FromRebasedBranch {
			continue
		}
		if highest == nil {
			h, err := g.HighestHead()
			if err != nil {
				return err
			}
			highest = h
		}

		updated := slices.Clone(m.Dependencies)
		for i, dep := range updated {
			if dep.App != g.App {
				continue
			}
			if g.LastCommon != nil && dep.Name == *g.LastCommon {
				updated[i].Name = highest.Name
				continue
			}
			if change, ok := lookup.Find(g.App, dep.Name); ok {
				updated[i].Name = change.New
			}
		}
		if !equalDependencies(updated, m.Dependencies) {
			m.setDependencyChange(&DependencyChange{Old: slices.Clone(m.Dependencies), New: updated})
		}
	}
	return nil
}

// PropagateCrossApp rewrites dependencies on migrations of other apps that
// are being renamed.
func (g *Group) PropagateCrossApp(lookup RenameLookup) {
	for _, m := range g.Migrations() {
		current := m.PendingDependencies()
		updated := slices.Clone(current)
		for i, dep := range updated {
			if dep.App == g.App {
				continue
			}
			if change, ok := lookup.Find(dep.App, dep.Name); ok {
				updated[i].Name = change.New
			}
		}
		if equalDependencies(updated, current) {
			continue
		}
		m.setDependencyChange(&DependencyChange{Old: slices.Clone(m.Dependencies), New: updated})
	}
}

// HasChanges reports whether applying the group would touch any file.
func (g *Group) HasChanges() bool {
	if s, ok := g.State.(Resolved); ok && s.New != nil {
		return true
	}
	for _, m := range g.Migrations() {
		if m.HasChanges() {
			return true
		}
	}
	return false
}

// Apply writes the planned edits: renames first, then dependency rewrites at
// the renamed paths, then the pointer file. It stops at the first failure.
func (g *Group) Apply() error {
	migrations := g.Migrations()

	var renamed []*Migration
	var renames []NameChange
	for _, m := range migrations {
		if c := m.NameChange(); c != nil {
			renamed = append(renamed, m)
			renames = append(renames, *c)
		}
	}
	if err := applyRenames(g.Dir, renames); err != nil {
		return fmt.Errorf("app %s: %w", g.App, err)
	}
	for _, m := range renamed {
		g.log.WithField(logging.MigrationFieldKey, m.Name.String()).Infof("renamed to %s", m.NameChange().New)
	}

	for _, m := range migrations {
		change := m.DependencyChange()
		if change == nil {
			continue
		}
		if err := change.Apply(m.PendingPath()); err != nil {
			return fmt.Errorf("app %s: %w", g.App, err)
		}
		g.log.WithField(logging.MigrationFieldKey, m.PendingName().String()).Info("updated dependencies")
	}

	switch s := g.State.(type) {
	case Resolved:
		if s.New == nil {
			return nil
		}
		if err := WritePointerFile(g.Dir, *s.New); err != nil {
			return fmt.Errorf("app %s: %w", g.App, err)
		}
	case Conflicted, Absent:
	}
	return nil
}
