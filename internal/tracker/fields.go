package tracker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/joescharf/tracker/internal/models"
)

// Fields is a decoded request body: JSON objects decode to typed values, form
// posts to strings.
type Fields map[string]any

// updatable lists the keys an update may carry. Identity and timestamps are
// never taken from a request.
var updatable = []string{
	models.FieldTitle,
	models.FieldText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldOpen,
}

// Value returns the value under key as a string, treating absent, null, empty,
// false and zero as missing.
func (f Fields) Value(key string) (string, bool) {
	v, ok := f[key]
	if !ok || !truthy(v) {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

// Optional returns the value under key as a string, or "" when missing.
func (f Fields) Optional(key string) string {
	s, _ := f.Value(key)
	return s
}

// HasUpdates reports whether f carries any key besides _id, known or not.
func (f Fields) HasUpdates() bool {
	for key := range f {
		if key != models.FieldID {
			return true
		}
	}
	return false
}

// Patch builds the typed update set from every updatable key present in f.
// Other keys are not stored, so a patch built only from them is empty.
func (f Fields) Patch() (models.Patch, error) {
	var p models.Patch
	for _, key := range updatable {
		v, ok := f[key]
		if !ok {
			continue
		}
		if key == models.FieldOpen {
			b, err := toBool(v)
			if err != nil {
				return models.Patch{}, fmt.Errorf("field %s: %w", key, err)
			}
			p.Open = &b
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return models.Patch{}, fmt.Errorf("field %s: %w", key, err)
		}
		switch key {
		case models.FieldTitle:
			p.Title = &s
		case models.FieldText:
			p.Text = &s
		case models.FieldCreatedBy:
			p.CreatedBy = &s
		case models.FieldAssignedTo:
			p.AssignedTo = &s
		case models.FieldStatusText:
			p.StatusText = &s
		}
	}
	return p, nil
}

func toBool(v any) (bool, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	return cast.ToBoolE(v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
