package migration

import (
	"fmt"
	"slices"
	"strings"
)

// Dependency is one (app, migration) tuple from a dependencies list.
type Dependency struct {
	App  string   `json:"app" yaml:"app"`
	Name FileName `json:"name" yaml:"name"`
}

func (d Dependency) String() string {
	return fmt.Sprintf("('%s', '%s')", d.App, d.Name)
}

// FormatDependencies renders deps as a python list literal on one line.
func FormatDependencies(deps []Dependency) string {
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func equalDependencies(a, b []Dependency) bool {
	return slices.Equal(a, b)
}
