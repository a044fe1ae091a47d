package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	conflictHeadMarker      = "<<<<<<< HEAD"
	conflictSeparatorMarker = "======="
	conflictIncomingMarker  = ">>>>>>> "
)

// MergeConflict is a two-way conflict left in max_migration.txt by git.
type MergeConflict struct {
	Head     FileName `json:"head" yaml:"head"`
	Incoming FileName `json:"incoming" yaml:"incoming"`
}

// ParseMergeConflict extracts both sides of the conflict block in content.
func ParseMergeConflict(content string) (MergeConflict, error) {
	if n := strings.Count(content, conflictHeadMarker); n != 1 {
		if n == 0 {
			return MergeConflict{}, fmt.Errorf("%w: missing %q", ErrNoMergeConflict, conflictHeadMarker)
		}
		return MergeConflict{}, fmt.Errorf("%w: expected one conflict block, found %d", ErrNoMergeConflict, n)
	}
	_, rest, _ := strings.Cut(content, conflictHeadMarker)
	headText, rest, ok := strings.Cut(rest, conflictSeparatorMarker)
	if !ok {
		return MergeConflict{}, fmt.Errorf("%w: missing %q", ErrNoMergeConflict, conflictSeparatorMarker)
	}
	incomingText, _, ok := strings.Cut(rest, conflictIncomingMarker)
	if !ok {
		return MergeConflict{}, fmt.Errorf("%w: missing %q", ErrNoMergeConflict, strings.TrimSpace(conflictIncomingMarker))
	}

	head, err := ParseFileName(strings.TrimSpace(headText))
	if err != nil {
		return MergeConflict{}, fmt.Errorf("%w: head side: %w", ErrNoMergeConflict, err)
	}
	incoming, err := ParseFileName(strings.TrimSpace(incomingText))
	if err != nil {
		return MergeConflict{}, fmt.Errorf("%w: incoming side: %w", ErrNoMergeConflict, err)
	}
	return MergeConflict{Head: head, Incoming: incoming}, nil
}

// MaxMigrationState is the classified content of max_migration.txt. It is
// one of Resolved, Conflicted or Absent.
type MaxMigrationState interface {
	maxMigrationState()
}

// Resolved holds a single migration name. New is set once a conflict
// resolution has decided the content to write.
type Resolved struct {
	Current FileName
	New     *FileName
}

type Conflicted struct {
	Conflict MergeConflict
}

// Absent means the pointer file is missing or holds nothing usable.
type Absent struct {
	Reason string
}

func (Resolved) maxMigrationState()   {}
func (Conflicted) maxMigrationState() {}
func (Absent) maxMigrationState()     {}

// ParsePointerFile classifies the content of max_migration.txt.
func ParsePointerFile(content string) MaxMigrationState {
	content = strings.TrimSpace(content)
	if content == "" {
		return Absent{Reason: "file is empty"}
	}
	if strings.Contains(content, conflictHeadMarker) {
		conflict, err := ParseMergeConflict(content)
		if err != nil {
			return Absent{Reason: err.Error()}
		}
		return Conflicted{Conflict: conflict}
	}
	name, err := ParseFileName(content)
	if err != nil {
		return Absent{Reason: err.Error()}
	}
	return Resolved{Current: name}
}

// LoadPointerFile reads and classifies dir/max_migration.txt.
func LoadPointerFile(dir string) MaxMigrationState {
	content, err := os.ReadFile(filepath.Join(dir, MaxMigrationFile))
	if err != nil {
		return Absent{Reason: err.Error()}
	}
	return ParsePointerFile(string(content))
}

// WritePointerFile replaces the content of dir/max_migration.txt with name.
func WritePointerFile(dir string, name FileName) error {
	path := filepath.Join(dir, MaxMigrationFile)
	if err := os.WriteFile(path, []byte(name.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
