package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/joescharf/tracker/internal/models"
)

// MemoryStore implements Store with a map of project name to issue slice.
// A single RWMutex guards the whole map so a project's sequence is never
// observed mid-mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string][]*models.Issue
	now      func() time.Time
	ids      *idSource
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		projects: make(map[string][]*models.Issue),
		now:      o.now,
		ids:      newIDSource(),
	}
}

func (s *MemoryStore) ListIssues(ctx context.Context, project string, filter models.Filter) ([]*models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	issues := []*models.Issue{}
	for _, issue := range s.projects[project] {
		if filter.Matches(issue) {
			issues = append(issues, issue.Clone())
		}
	}
	return issues, nil
}

func (s *MemoryStore) CreateIssue(ctx context.Context, project string, issue *models.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	issue.ID = s.ids.next(now)
	issue.CreatedOn = now
	issue.UpdatedOn = now

	s.projects[project] = append(s.projects[project], issue.Clone())
	return nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, project, id string, patch models.Patch) (*models.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(project, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	issue := s.projects[project][i]
	patch.Apply(issue, s.now())
	return issue.Clone(), nil
}

func (s *MemoryStore) DeleteIssue(ctx context.Context, project, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(project, id)
	if i < 0 {
		return ErrNotFound
	}
	remaining := slices.Delete(s.projects[project], i, i+1)
	if len(remaining) == 0 {
		delete(s.projects, project)
		return nil
	}
	s.projects[project] = remaining
	return nil
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.projects))
	for name, issues := range s.projects {
		if len(issues) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op; the store lives as long as the process.
func (s *MemoryStore) Close() error { return nil }

// indexOf must be called with s.mu held.
func (s *MemoryStore) indexOf(project, id string) int {
	return slices.IndexFunc(s.projects[project], func(issue *models.Issue) bool {
		return issue.ID == id
	})
}
