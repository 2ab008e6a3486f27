package models

import "time"

// Field names as they appear on the wire.
const (
	FieldID         = "_id"
	FieldTitle      = "issue_title"
	FieldText       = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldCreatedOn  = "created_on"
	FieldUpdatedOn  = "updated_on"
	FieldOpen       = "open"
)

// Issue represents a tracked issue belonging to a single project.
type Issue struct {
	ID         string    `json:"_id"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	CreatedOn  time.Time `json:"created_on"`
	UpdatedOn  time.Time `json:"updated_on"`
	Open       bool      `json:"open"`
}

// Clone returns a copy of the issue that shares no state with the original.
func (i *Issue) Clone() *Issue {
	c := *i
	return &c
}

// Patch is a typed update set. Nil fields were not supplied.
type Patch struct {
	Title      *string
	Text       *string
	CreatedBy  *string
	AssignedTo *string
	StatusText *string
	Open       *bool
}

// Apply overwrites every supplied field on the issue and stamps UpdatedOn.
// UpdatedOn never moves before CreatedOn.
func (p Patch) Apply(issue *Issue, now time.Time) {
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Text != nil {
		issue.Text = *p.Text
	}
	if p.CreatedBy != nil {
		issue.CreatedBy = *p.CreatedBy
	}
	if p.AssignedTo != nil {
		issue.AssignedTo = *p.AssignedTo
	}
	if p.StatusText != nil {
		issue.StatusText = *p.StatusText
	}
	if p.Open != nil {
		issue.Open = *p.Open
	}
	if now.Before(issue.CreatedOn) {
		now = issue.CreatedOn
	}
	issue.UpdatedOn = now
}
