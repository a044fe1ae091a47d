package migration

import "errors"

// Validation errors.
var (
	ErrInvalidFileName = errors.New("invalid migration file name")
	ErrNoMergeConflict = errors.New("no merge conflict found")
)

// Source parsing errors. They only surface when an edit has to be located;
// dependency reading during discovery treats them as "no dependencies".
var (
	ErrReadSource          = errors.New("failed to read migration source")
	ErrSyntax              = errors.New("failed to parse python source")
	ErrNoMigrationClass    = errors.New("migration class not found")
	ErrNoDependencies      = errors.New("dependencies assignment not found in Migration class")
	ErrDependenciesNotList = errors.New("dependencies should be a list")
)

// Graph errors.
var (
	ErrNoMigrations       = errors.New("no migrations found")
	ErrAmbiguousHead      = errors.New("multiple migrations share the highest number")
	ErrMergeMigration     = errors.New("merge migration detected in rebased migration")
	ErrNoCommonAncestor   = errors.New("no common ancestor found")
	ErrPointerUnparseable = errors.New("failed to parse max_migration.txt")
	ErrDuplicateApp       = errors.New("duplicate app name")
	ErrNoApps             = errors.New("no Django apps with migrations found")
	ErrTargetExists       = errors.New("rename target already exists")
)
