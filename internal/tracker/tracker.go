// Package tracker implements the issue operations shared by the HTTP API, the
// MCP tools and the CLI: list/filter, create, update and delete.
//
// Refusals such as a missing required field are not faults. They are returned
// as *Rejection errors whose Reply is sent to the client as an ordinary
// response body. Any other error is an internal failure.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
)

// Refusal reasons as they appear in reply bodies.
const (
	ReasonRequiredMissing = "required field(s) missing"
	ReasonMissingID       = "missing _id"
	ReasonNoUpdateFields  = "no update field(s) sent"
	ReasonCouldNotUpdate  = "could not update"
	ReasonCouldNotDelete  = "could not delete"

	ResultUpdated = "successfully updated"
	ResultDeleted = "successfully deleted"
)

// Reply is the body returned by update and delete, and by any refusal.
type Reply struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     string `json:"_id,omitempty"`
}

// Rejection is a request the tracker refused.
type Rejection struct {
	Reason string
	ID     string
}

func (r *Rejection) Error() string {
	if r.ID != "" {
		return fmt.Sprintf("%s: %s", r.Reason, r.ID)
	}
	return r.Reason
}

// Reply returns the body describing the refusal.
func (r *Rejection) Reply() Reply {
	return Reply{Error: r.Reason, ID: r.ID}
}

// AsRejection unwraps a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Service runs issue operations against a store.
type Service struct {
	store store.Store
}

// New creates a Service backed by s.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// List returns the project's issues matching every filter, in insertion order.
// An unknown project yields an empty slice.
func (s *Service) List(ctx context.Context, project string, filter models.Filter) ([]*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx, project, filter)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

// Create validates the required fields and appends a new open issue to the project.
func (s *Service) Create(ctx context.Context, project string, f Fields) (*models.Issue, error) {
	title, okTitle := f.Value(models.FieldTitle)
	text, okText := f.Value(models.FieldText)
	createdBy, okBy := f.Value(models.FieldCreatedBy)
	if !okTitle || !okText || !okBy {
		return nil, &Rejection{Reason: ReasonRequiredMissing}
	}

	issue := &models.Issue{
		Title:      title,
		Text:       text,
		CreatedBy:  createdBy,
		AssignedTo: f.Optional(models.FieldAssignedTo),
		StatusText: f.Optional(models.FieldStatusText),
		Open:       true,
	}
	if err := s.store.CreateIssue(ctx, project, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	slog.InfoContext(ctx, "issue created", "project", project, "id", issue.ID)
	return issue, nil
}

// Update applies the supplied fields to the issue named by _id.
func (s *Service) Update(ctx context.Context, project string, f Fields) (Reply, error) {
	id, ok := f.Value(models.FieldID)
	if !ok {
		return Reply{}, &Rejection{Reason: ReasonMissingID}
	}

	if !f.HasUpdates() {
		return Reply{}, &Rejection{Reason: ReasonNoUpdateFields, ID: id}
	}

	// Keys outside the issue record still make a valid update: the issue is
	// found and its updated_on refreshed even when nothing else changes.
	patch, err := f.Patch()
	if err != nil {
		slog.DebugContext(ctx, "rejecting update", "project", project, "id", id, "error", err)
		return Reply{}, &Rejection{Reason: ReasonCouldNotUpdate, ID: id}
	}

	if _, err := s.store.UpdateIssue(ctx, project, id, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Reply{}, &Rejection{Reason: ReasonCouldNotUpdate, ID: id}
		}
		return Reply{}, fmt.Errorf("update issue %s: %w", id, err)
	}

	slog.InfoContext(ctx, "issue updated", "project", project, "id", id)
	return Reply{Result: ResultUpdated, ID: id}, nil
}

// Delete removes the issue named by _id from the project.
func (s *Service) Delete(ctx context.Context, project string, f Fields) (Reply, error) {
	id, ok := f.Value(models.FieldID)
	if !ok {
		return Reply{}, &Rejection{Reason: ReasonMissingID}
	}

	if err := s.store.DeleteIssue(ctx, project, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Reply{}, &Rejection{Reason: ReasonCouldNotDelete, ID: id}
		}
		return Reply{}, fmt.Errorf("delete issue %s: %w", id, err)
	}

	slog.InfoContext(ctx, "issue deleted", "project", project, "id", id)
	return Reply{Result: ResultDeleted, ID: id}, nil
}

// Projects returns the names of projects that currently hold issues.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	names, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return names, nil
}
