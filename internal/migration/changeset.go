package migration

// MigrationChange lists the edits planned for one migration.
type MigrationChange struct {
	Migration        FileName          `json:"migration" yaml:"migration"`
	Rename           *NameChange       `json:"file_rename,omitempty" yaml:"file_rename,omitempty"`
	DependencyUpdate *DependencyChange `json:"dependency_updates,omitempty" yaml:"dependency_updates,omitempty"`
}

type MaxMigrationUpdate struct {
	Old FileName `json:"old" yaml:"old"`
	New FileName `json:"new" yaml:"new"`
}

// AppChanges is the planned edits of one app.
type AppChanges struct {
	App                 string              `json:"app_name" yaml:"app_name"`
	LastCommonMigration *FileName           `json:"last_common_migration,omitempty" yaml:"last_common_migration,omitempty"`
	MigrationChanges    []MigrationChange   `json:"migration_changes" yaml:"migration_changes"`
	MaxMigrationUpdate  *MaxMigrationUpdate `json:"max_migration_update,omitempty" yaml:"max_migration_update,omitempty"`
}

func (a AppChanges) HasChanges() bool {
	return len(a.MigrationChanges) > 0 || a.MaxMigrationUpdate != nil
}

// ChangeSet is every planned edit in a project, ordered by app name.
type ChangeSet struct {
	Apps []AppChanges `json:"apps" yaml:"apps"`
}

// Empty reports whether nothing would be written.
func (c ChangeSet) Empty() bool {
	for _, a := range c.Apps {
		if a.HasChanges() {
			return false
		}
	}
	return true
}

// Counts returns the number of renames and dependency rewrites.
func (c ChangeSet) Counts() (renames, dependencyUpdates int) {
	for _, a := range c.Apps {
		for _, m := range a.MigrationChanges {
			if m.Rename != nil {
				renames++
			}
			if m.DependencyUpdate != nil {
				dependencyUpdates++
			}
		}
	}
	return renames, dependencyUpdates
}

// App returns the changes for app, if it is part of the set.
func (c ChangeSet) App(app string) (AppChanges, bool) {
	for _, a := range c.Apps {
		if a.App == app {
			return a, true
		}
	}
	return AppChanges{}, false
}

func groupChanges(g *Group) AppChanges {
	changes := AppChanges{
		App:              g.App,
		MigrationChanges: []MigrationChange{},
	}
	if g.LastCommon != nil {
		last := *g.LastCommon
		changes.LastCommonMigration = &last
	}
	for _, m := range g.Migrations() {
		if !m.HasChanges() {
			continue
		}
		changes.MigrationChanges = append(changes.MigrationChanges, MigrationChange{
			Migration:        m.Name,
			Rename:           m.NameChange(),
			DependencyUpdate: m.DependencyChange(),
		})
	}
	if s, ok := g.State.(Resolved); ok && s.New != nil {
		changes.MaxMigrationUpdate = &MaxMigrationUpdate{Old: s.Current, New: *s.New}
	}
	return changes
}
