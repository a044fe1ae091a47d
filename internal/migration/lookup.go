package migration

// RenameLookup maps an app name to the renames planned in that app. It is
// built once per propagation pass and read only.
type RenameLookup map[string][]NameChange

// BuildRenameLookup snapshots the renames currently planned across groups.
func BuildRenameLookup(groups []*Group) RenameLookup {
	lookup := make(RenameLookup)
	for _, g := range groups {
		var changes []NameChange
		for _, m := range g.Migrations() {
			if c := m.NameChange(); c != nil {
				changes = append(changes, *c)
			}
		}
		if len(changes) > 0 {
			lookup[g.App] = changes
		}
	}
	return lookup
}

// Find returns the rename of app's migration old, if one is planned.
func (l RenameLookup) Find(app string, old FileName) (NameChange, bool) {
	for _, c := range l[app] {
		if c.Old == old {
			return c, true
		}
	}
	return NameChange{}, false
}
