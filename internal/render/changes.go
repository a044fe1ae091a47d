package render

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/lherron/rebase-migrations/internal/migration"
)

// ChangeSet prints the planned or applied edits. JSON and YAML output
// serialize cs as is.
func (r *Renderer) ChangeSet(cs migration.ChangeSet, dryRun bool) error {
	if r.opts.Format != FormatTable {
		return r.Render(cs)
	}

	if cs.Empty() {
		r.Printf("%s\n", r.Colorize("No migration changes needed.", text.FgGreen))
		return nil
	}

	heading := "Applied migration changes"
	if dryRun {
		heading = "Planned migration changes (dry run, nothing written)"
	}
	r.Printf("%s\n", r.Colorize(heading, text.Bold))

	var summary [][]string
	for _, app := range cs.Apps {
		if !app.HasChanges() {
			continue
		}
		renames, updates := 0, 0
		for _, m := range app.MigrationChanges {
			if m.Rename != nil {
				renames++
			}
			if m.DependencyUpdate != nil {
				updates++
			}
		}
		last := "-"
		if app.LastCommonMigration != nil {
			last = app.LastCommonMigration.String()
		}
		pointer := "-"
		if app.MaxMigrationUpdate != nil {
			pointer = app.MaxMigrationUpdate.New.String()
		}
		summary = append(summary, []string{app.App, last, strconv.Itoa(renames), strconv.Itoa(updates), pointer})
	}
	r.RenderTable("Summary", []string{"App", "Last common", "Renames", "Dependency updates", "max_migration.txt"}, summary)

	for _, app := range cs.Apps {
		if len(app.MigrationChanges) == 0 {
			continue
		}
		var rows [][]string
		for _, m := range app.MigrationChanges {
			rename := "-"
			if m.Rename != nil {
				rename = r.Colorize(m.Rename.String(), text.FgYellow)
			}
			dependencies := "-"
			if m.DependencyUpdate != nil {
				dependencies = formatDependencyUpdate(m.DependencyUpdate)
			}
			rows = append(rows, []string{m.Migration.String(), rename, dependencies})
		}
		r.RenderTable("App "+app.App, []string{"Migration", "Rename", "Dependencies"}, rows)
	}

	var pointers [][]string
	for _, app := range cs.Apps {
		if app.MaxMigrationUpdate == nil {
			continue
		}
		pointers = append(pointers, []string{
			app.App,
			app.MaxMigrationUpdate.Old.String(),
			r.Colorize(app.MaxMigrationUpdate.New.String(), text.FgGreen),
		})
	}
	r.RenderTable("max_migration.txt", []string{"App", "Old", "New"}, pointers)
	return nil
}

// formatDependencyUpdate lists only the tuples that differ, one per line.
func formatDependencyUpdate(c *migration.DependencyChange) string {
	var lines []string
	for i, dep := range c.New {
		if i < len(c.Old) && c.Old[i] == dep {
			continue
		}
		if i < len(c.Old) {
			lines = append(lines, fmt.Sprintf("%s -> %s", c.Old[i], dep))
		} else {
			lines = append(lines, fmt.Sprintf("+ %s", dep))
		}
	}
	for i := len(c.New); i < len(c.Old); i++ {
		lines = append(lines, fmt.Sprintf("- %s", c.Old[i]))
	}
	return strings.Join(lines, "\n")
}

// Diff prints a unified diff for every edited file, relative to root.
func (r *Renderer) Diff(root string, edits []migration.FileEdit) error {
	for _, e := range edits {
		from, to := relPath(root, e.OldPath), relPath(root, e.NewPath)
		if from != to && string(e.Before) == string(e.After) {
			r.Printf("%s\n", r.Colorize(fmt.Sprintf("rename %s => %s", from, to), text.FgCyan))
			continue
		}
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(e.Before)),
			B:        difflib.SplitLines(string(e.After)),
			FromFile: "a/" + from,
			ToFile:   "b/" + to,
			Context:  3,
		})
		if err != nil {
			return fmt.Errorf("diff %s: %w", from, err)
		}
		r.Printf("%s", r.colorizeDiff(diff))
	}
	return nil
}

func (r *Renderer) colorizeDiff(diff string) string {
	if !r.color {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = text.Bold.Sprint(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = text.FgCyan.Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = text.FgGreen.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = text.FgRed.Sprint(line)
		}
	}
	return strings.Join(lines, "")
}

func relPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
