package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/tracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a private in-memory SQLite database
// (modernc.org/sqlite, pure Go). Nothing is written to disk.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
	ids *idSource
}

// NewSQLiteStore opens a fresh in-memory database. Call Migrate before use.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a separate database, so the pool must
	// hold exactly one connection for the life of the store. This also
	// serializes all access from concurrent HTTP requests.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	o := buildOptions(opts)
	return &SQLiteStore{db: db, now: o.now, ids: newIDSource()}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Migrate applies the embedded migrations newer than the database's
// user_version. Files are named NNN_description.sql and run in name order;
// after each one user_version is set to NNN.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	for _, entry := range entries {
		name := entry.Name()
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return fmt.Errorf("migration %s: name must start with a number", name)
		}
		if version <= current {
			continue
		}

		data, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		slog.DebugContext(ctx, "applied migration", "file", name)
		current = version
	}
	return nil
}

// Close closes the database connection, discarding all data.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const issueColumns = `id, issue_title, issue_text, created_by, assigned_to, status_text, created_on, updated_on, open`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var createdOn, updatedOn string
	if err := row.Scan(&issue.ID, &issue.Title, &issue.Text, &issue.CreatedBy, &issue.AssignedTo,
		&issue.StatusText, &createdOn, &updatedOn, &issue.Open); err != nil {
		return nil, err
	}
	var err error
	if issue.CreatedOn, err = time.Parse(time.RFC3339Nano, createdOn); err != nil {
		return nil, fmt.Errorf("parse created_on: %w", err)
	}
	if issue.UpdatedOn, err = time.Parse(time.RFC3339Nano, updatedOn); err != nil {
		return nil, fmt.Errorf("parse updated_on: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) ListIssues(ctx context.Context, project string, filter models.Filter) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project = ? ORDER BY seq`, project)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Filtering happens in Go so both stores share one matching rule.
	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		if filter.Matches(issue) {
			issues = append(issues, issue)
		}
	}
	return issues, rows.Err()
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, project string, issue *models.Issue) error {
	now := s.now()
	issue.ID = s.ids.next(now)
	issue.CreatedOn = now
	issue.UpdatedOn = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (project, `+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project, issue.ID, issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		formatTime(issue.CreatedOn), formatTime(issue.UpdatedOn), boolToInt(issue.Open),
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, project, id string, patch models.Patch) (*models.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	issue, err := scanIssue(tx.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project = ? AND id = ?`, project, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	patch.Apply(issue, s.now())

	_, err = tx.ExecContext(ctx,
		`UPDATE issues SET issue_title=?, issue_text=?, created_by=?, assigned_to=?, status_text=?, updated_on=?, open=?
		WHERE project=? AND id=?`,
		issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		formatTime(issue.UpdatedOn), boolToInt(issue.Open), project, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, project, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE project = ? AND id = ?", project, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete issue: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT project FROM issues ORDER BY project")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
