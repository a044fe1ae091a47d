package migration

import (
	"github.com/go-test/deep"
)

func init() {
	// FileName keeps its value in an unexported field.
	deep.CompareUnexportedFields = true
}

func name(s string) FileName {
	return MustParseFileName(s)
}

// deps builds a dependency list from app, name pairs.
func deps(pairs ...string) []Dependency {
	out := make([]Dependency, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Dependency{App: pairs[i], Name: name(pairs[i+1])})
	}
	return out
}
