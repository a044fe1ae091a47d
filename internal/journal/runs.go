package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run modes
const (
	ModeApply = "apply"
	ModeWatch = "watch"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// fixed width so started_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one journaled resolver run.
type Run struct {
	ID                string          `json:"id" yaml:"id"`
	StartedAt         time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Root              string          `json:"root" yaml:"root"`
	Mode              string          `json:"mode" yaml:"mode"`
	Status            string          `json:"status" yaml:"status"`
	Error             string          `json:"error,omitempty" yaml:"error,omitempty"`
	Apps              []string        `json:"apps" yaml:"apps"`
	Renames           int             `json:"renames" yaml:"renames"`
	DependencyUpdates int             `json:"dependency_updates" yaml:"dependency_updates"`
	ChangeSet         json.RawMessage `json:"change_set,omitempty" yaml:"-"`
}

// Start inserts a running entry for a run over root and returns it.
func (j *Journal) Start(root, mode string, apps []string, changeSet any) (*Run, error) {
	payload, err := json.Marshal(changeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change set: %w", err)
	}
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Root:      root,
		Mode:      mode,
		Status:    StatusRunning,
		Apps:      apps,
		ChangeSet: payload,
	}

	tx, err := j.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, root, mode, status, change_set)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.Format(timeLayout), run.Root, run.Mode, run.Status, string(payload))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	for _, app := range apps {
		if _, err := tx.Exec("INSERT INTO run_apps (run_id, app) VALUES (?, ?)", run.ID, app); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to record app %s: %w", app, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// Finish stores the outcome of run. A nil runErr marks it applied.
func (j *Journal) Finish(run *Run, renames, dependencyUpdates int, runErr error) error {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Renames = renames
	run.DependencyUpdates = dependencyUpdates
	run.Status = StatusApplied
	run.Error = ""
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}

	res, err := j.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, error = ?, renames = ?, dependency_updates = ?
		WHERE id = ?
	`, finished.Format(timeLayout), run.Status, nullString(run.Error), renames, dependencyUpdates, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	Limit int
	App   string
}

// List returns runs, newest first.
func (j *Journal) List(opts ListOptions) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, root, mode, status, error, renames, dependency_updates
		FROM runs
	`
	var args []any
	if opts.App != "" {
		query += " WHERE id IN (SELECT run_id FROM run_apps WHERE app = ?)"
		args = append(args, opts.App)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := j.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	for i := range runs {
		apps, err := j.runApps(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Apps = apps
	}
	return runs, nil
}

// Get returns the run whose ID is id or starts with it.
func (j *Journal) Get(id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := j.Query(`
		SELECT id, started_at, finished_at, root, mode, status, error, renames, dependency_updates, change_set
		FROM runs
		WHERE id = ? OR id LIKE ? || '%'
		LIMIT 2
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		var changeSet string
		run, err := scanRun(rows, &changeSet)
		if err != nil {
			return nil, err
		}
		run.ChangeSet = json.RawMessage(changeSet)
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
	default:
		if found[0].ID != id && found[1].ID != id {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
		}
		if found[1].ID == id {
			found[0] = found[1]
		}
	}

	apps, err := j.runApps(found[0].ID)
	if err != nil {
		return nil, err
	}
	found[0].Apps = apps
	return found[0], nil
}

func (j *Journal) runApps(id string) ([]string, error) {
	rows, err := j.Query("SELECT app FROM run_apps WHERE run_id = ? ORDER BY app", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query apps of run %s: %w", id, err)
	}
	defer rows.Close()

	apps := []string{}
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanRun(rows *sql.Rows, extra ...any) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		errText    sql.NullString
	)
	dest := []any{&run.ID, &startedAt, &finishedAt, &run.Root, &run.Mode, &run.Status, &errText, &run.Renames, &run.DependencyUpdates}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	started, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad started_at %q: %w", run.ID, startedAt, err)
	}
	run.StartedAt = started
	if finishedAt.Valid {
		finished, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at %q: %w", run.ID, finishedAt.String, err)
		}
		run.FinishedAt = &finished
	}
	run.Error = errText.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// IsNotFound reports whether err means a run lookup found nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
