package migration

import (
	"fmt"
	"os"
	"path/filepath"
)

// NameChange renames a migration file within its directory.
type NameChange struct {
	Old FileName `json:"old_name" yaml:"old_name"`
	New FileName `json:"new_name" yaml:"new_name"`
}

func (c NameChange) String() string {
	return fmt.Sprintf("%s -> %s", c.Old, c.New)
}

// applyRenames moves every Old file in dir to its New name. A target is
// never overwritten unless it is itself the source of another rename.
// Sources are parked under hidden names first so renames that swap or shift
// names within the set cannot collide.
func applyRenames(dir string, changes []NameChange) error {
	sources := make(map[string]bool, len(changes))
	for _, c := range changes {
		sources[c.Old.SourceFile()] = true
	}
	for _, c := range changes {
		if sources[c.New.SourceFile()] {
			continue
		}
		to := filepath.Join(dir, c.New.SourceFile())
		if _, err := os.Stat(to); err == nil {
			return fmt.Errorf("%w: cannot rename %s to %s", ErrTargetExists, filepath.Join(dir, c.Old.SourceFile()), to)
		}
	}

	parked := make([]string, len(changes))
	for i, c := range changes {
		from := filepath.Join(dir, c.Old.SourceFile())
		parked[i] = filepath.Join(dir, "."+c.Old.SourceFile()+".rebasing")
		if _, err := os.Stat(parked[i]); err == nil {
			return fmt.Errorf("%w: cannot park %s at %s", ErrTargetExists, from, parked[i])
		}
		if err := os.Rename(from, parked[i]); err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", from, parked[i], err)
		}
	}
	for i, c := range changes {
		to := filepath.Join(dir, c.New.SourceFile())
		if err := os.Rename(parked[i], to); err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", parked[i], to, err)
		}
	}
	return nil
}

// DependencyChange replaces a migration's dependencies list.
type DependencyChange struct {
	Old []Dependency `json:"old_dependencies" yaml:"old_dependencies"`
	New []Dependency `json:"new_dependencies" yaml:"new_dependencies"`
}

func (c DependencyChange) String() string {
	return fmt.Sprintf("%s -> %s", FormatDependencies(c.Old), FormatDependencies(c.New))
}

// Rewrite returns the content of the file at path before and after the
// change. The file is not modified.
func (c DependencyChange) Rewrite(path string) (before, after []byte, err error) {
	src, err := ParseSource(path)
	if err != nil {
		return nil, nil, err
	}
	after, err = src.ReplaceDependencies(c.New)
	if err != nil {
		return nil, nil, err
	}
	return src.Content(), after, nil
}

// Apply rewrites the dependencies statement of the file at path in place.
func (c DependencyChange) Apply(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrReadSource, path, err)
	}
	_, after, err := c.Rewrite(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, after, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
