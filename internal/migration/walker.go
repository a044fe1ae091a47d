package migration

import (
	"iter"
	"os"
	"path/filepath"

	"github.com/lherron/rebase-migrations/internal/logging"
)

// Graph yields the migrations a migration depends on.
type Graph interface {
	Neighbors(m *Migration) []*Migration
}

type nodeKey struct {
	app  string
	name FileName
}

// Walk visits every migration reachable from seed depth first, each one
// exactly once. Ranging over the result again restarts the walk.
func Walk(g Graph, seed *Migration) iter.Seq[*Migration] {
	return func(yield func(*Migration) bool) {
		visited := make(map[nodeKey]struct{})
		stack := []*Migration{seed}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := visited[current.key()]; ok {
				continue
			}

			neighbors := g.Neighbors(current)
			for i := len(neighbors) - 1; i >= 0; i-- {
				if _, ok := visited[neighbors[i].key()]; !ok {
					stack = append(stack, neighbors[i])
				}
			}
			visited[current.key()] = struct{}{}

			if !yield(current) {
				return
			}
		}
	}
}

// FileSystemGraph follows same-app dependencies to sibling files in the
// migrations directory. Files that are missing or fail to load are skipped.
type FileSystemGraph struct{}

func (FileSystemGraph) Neighbors(m *Migration) []*Migration {
	dir := filepath.Dir(m.Path)
	var out []*Migration
	for _, dep := range m.Dependencies {
		if dep.App != m.App {
			continue
		}
		path := filepath.Join(dir, dep.Name.SourceFile())
		if _, err := os.Stat(path); err != nil {
			continue
		}
		next, err := LoadMigration(path)
		if err != nil {
			logging.Default().
				WithField(logging.PathFieldKey, path).
				WithError(err).
				Debug("skipping unloadable dependency")
			continue
		}
		out = append(out, next)
	}
	return out
}
