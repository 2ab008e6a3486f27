package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tracker/internal/models"
)

// ErrNotFound is returned when an issue does not exist in the given project.
var ErrNotFound = errors.New("issue not found")

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Store holds issues grouped by project name. Issues within a project keep
// their insertion order. Returned issues are copies.
type Store interface {
	// ListIssues returns the project's issues matching filter. An unknown
	// project yields an empty result, not an error.
	ListIssues(ctx context.Context, project string, filter models.Filter) ([]*models.Issue, error)
	// CreateIssue assigns ID, CreatedOn and UpdatedOn and appends the issue
	// to the project, creating the project on demand.
	CreateIssue(ctx context.Context, project string, issue *models.Issue) error
	UpdateIssue(ctx context.Context, project, id string, patch models.Patch) (*models.Issue, error)
	DeleteIssue(ctx context.Context, project, id string) error
	// ListProjects returns the sorted names of projects holding at least one issue.
	ListProjects(ctx context.Context) ([]string, error)

	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for CreatedOn/UpdatedOn.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open constructs a store for the named driver. Both drivers keep all state in
// process memory.
func Open(ctx context.Context, driver string, opts ...Option) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(opts...), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(opts...)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", driver)
	}
}

// idSource hands out ULIDs that are strictly increasing for the life of the process.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIDSource() *idSource {
	return &idSource{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (g *idSource) next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
