package models

import (
	"strconv"
	"time"
)

// Filter holds query filters keyed by wire field name. A key may carry several
// values; an issue matches only if it satisfies all of them.
type Filter map[string][]string

// Matches reports whether the issue satisfies every filter. An empty filter
// matches everything.
func (f Filter) Matches(issue *Issue) bool {
	for key, values := range f {
		for _, v := range values {
			if !fieldEquals(issue, key, v) {
				return false
			}
		}
	}
	return true
}

// fieldEquals compares one query value against a typed issue field. Query values
// are always strings, so booleans and timestamps are parsed per field rather than
// compared loosely. Unknown keys never match.
func fieldEquals(issue *Issue, key, value string) bool {
	switch key {
	case FieldID:
		return issue.ID == value
	case FieldTitle:
		return issue.Title == value
	case FieldText:
		return issue.Text == value
	case FieldCreatedBy:
		return issue.CreatedBy == value
	case FieldAssignedTo:
		return issue.AssignedTo == value
	case FieldStatusText:
		return issue.StatusText == value
	case FieldOpen:
		b, err := strconv.ParseBool(value)
		return err == nil && issue.Open == b
	case FieldCreatedOn:
		return timeEquals(issue.CreatedOn, value)
	case FieldUpdatedOn:
		return timeEquals(issue.UpdatedOn, value)
	default:
		return false
	}
}

func timeEquals(t time.Time, value string) bool {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	return err == nil && t.Equal(parsed)
}
