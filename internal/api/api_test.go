package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	tick := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore(store.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))
	return NewServer(tracker.New(s)).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeIssues(t *testing.T, w *httptest.ResponseRecorder) []models.Issue {
	t.Helper()
	var out []models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createIssue(t *testing.T, router http.Handler, project string, fields map[string]any) models.Issue {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/issues/"+project, fields)
	require.Equal(t, http.StatusOK, w.Code)
	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	require.NotEmpty(t, issue.ID, w.Body.String())
	return issue
}

func TestCreateIssue_EveryField(t *testing.T) {
	router := setupTestServer(t)

	w := doJSON(t, router, "POST", "/api/issues/testproject", map[string]any{
		"issue_title": "Test issue",
		"issue_text":  "This is a test",
		"created_by":  "Tester",
		"assigned_to": "John Doe",
		"status_text": "In progress",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeMap(t, w)
	assert.Equal(t, "Test issue", body["issue_title"])
	assert.Equal(t, "This is a test", body["issue_text"])
	assert.Equal(t, "Tester", body["created_by"])
	assert.Equal(t, "John Doe", body["assigned_to"])
	assert.Equal(t, "In progress", body["status_text"])
	assert.Equal(t, true, body["open"])
	assert.NotEmpty(t, body["_id"])
	assert.NotEmpty(t, body["created_on"])
	assert.NotEmpty(t, body["updated_on"])
}

func TestCreateIssue_RequiredOnly(t *testing.T) {
	router := setupTestServer(t)

	w := doJSON(t, router, "POST", "/api/issues/testproject", map[string]any{
		"issue_title": "Required fields issue",
		"issue_text":  "Only required fields",
		"created_by":  "Tester",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	body := decodeMap(t, w)
	assert.Equal(t, "Required fields issue", body["issue_title"])
	assert.Equal(t, "", body["assigned_to"])
	assert.Equal(t, "", body["status_text"])
}

func TestCreateIssue_MissingRequired(t *testing.T) {
	router := setupTestServer(t)

	w := doJSON(t, router, "POST", "/api/issues/testproject", map[string]any{
		"issue_title": "Missing fields issue",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "required field(s) missing"}, decodeMap(t, w))
}

func TestCreateIssue_FormEncoded(t *testing.T) {
	router := setupTestServer(t)

	form := url.Values{
		"issue_title": {"From the form"},
		"issue_text":  {"posted as a form"},
		"created_by":  {"Browser"},
		"assigned_to": {""},
	}
	req := httptest.NewRequest("POST", "/api/issues/formproject", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, "From the form", body["issue_title"])
	assert.Equal(t, "", body["assigned_to"])
}

func TestListIssues_UnknownProject(t *testing.T) {
	router := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/issues/nothing-here", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestListIssues_Filters(t *testing.T) {
	router := setupTestServer(t)

	a := createIssue(t, router, "filters", map[string]any{"issue_title": "a", "issue_text": "a", "created_by": "Tester"})
	b := createIssue(t, router, "filters", map[string]any{"issue_title": "b", "issue_text": "b", "created_by": "Other"})
	c := createIssue(t, router, "filters", map[string]any{"issue_title": "c", "issue_text": "c", "created_by": "Tester"})

	w := doJSON(t, router, "PUT", "/api/issues/filters", map[string]any{"_id": c.ID, "open": false})
	require.Equal(t, "successfully updated", decodeMap(t, w)["result"])

	// No filters: everything, insertion order.
	w = doJSON(t, router, "GET", "/api/issues/filters", nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{issues[0].ID, issues[1].ID, issues[2].ID})

	// One filter.
	w = doJSON(t, router, "GET", "/api/issues/filters?open=true", nil)
	issues = decodeIssues(t, w)
	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.True(t, issue.Open)
	}

	// Multiple filters.
	w = doJSON(t, router, "GET", "/api/issues/filters?open=true&created_by=Tester", nil)
	issues = decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, a.ID, issues[0].ID)

	w = doJSON(t, router, "GET", "/api/issues/filters?open=false", nil)
	issues = decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, c.ID, issues[0].ID)

	// Unknown fields match nothing.
	w = doJSON(t, router, "GET", "/api/issues/filters?priority=high", nil)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestUpdateIssue(t *testing.T) {
	router := setupTestServer(t)
	issue := createIssue(t, router, "upd", map[string]any{"issue_title": "t", "issue_text": "x", "created_by": "Tester"})

	tests := []struct {
		name string
		body map[string]any
		want map[string]any
	}{
		{
			name: "missing _id",
			body: map[string]any{"issue_text": "X"},
			want: map[string]any{"error": "missing _id"},
		},
		{
			name: "no update fields",
			body: map[string]any{"_id": issue.ID},
			want: map[string]any{"error": "no update field(s) sent", "_id": issue.ID},
		},
		{
			name: "invalid _id",
			body: map[string]any{"_id": "5f665eb46e296f6b9b6a504d", "issue_text": "X"},
			want: map[string]any{"error": "could not update", "_id": "5f665eb46e296f6b9b6a504d"},
		},
		{
			name: "unknown keys only",
			body: map[string]any{"_id": issue.ID, "priority": "high"},
			want: map[string]any{"result": "successfully updated", "_id": issue.ID},
		},
		{
			name: "unknown keys only, invalid _id",
			body: map[string]any{"_id": "nope", "priority": "high"},
			want: map[string]any{"error": "could not update", "_id": "nope"},
		},
		{
			name: "one field",
			body: map[string]any{"_id": issue.ID, "issue_text": "X"},
			want: map[string]any{"result": "successfully updated", "_id": issue.ID},
		},
		{
			name: "multiple fields",
			body: map[string]any{"_id": issue.ID, "issue_title": "T2", "assigned_to": "Jane"},
			want: map[string]any{"result": "successfully updated", "_id": issue.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, "PUT", "/api/issues/upd", tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, decodeMap(t, w))
		})
	}

	w := doJSON(t, router, "GET", "/api/issues/upd?_id="+issue.ID, nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	got := issues[0]
	assert.Equal(t, "X", got.Text)
	assert.Equal(t, "T2", got.Title)
	assert.Equal(t, "Jane", got.AssignedTo)
	assert.True(t, got.UpdatedOn.After(got.CreatedOn))
}

func TestDeleteIssue(t *testing.T) {
	router := setupTestServer(t)
	issue := createIssue(t, router, "del", map[string]any{"issue_title": "t", "issue_text": "x", "created_by": "Tester"})

	w := doJSON(t, router, "DELETE", "/api/issues/del", map[string]any{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "missing _id"}, decodeMap(t, w))

	w = doJSON(t, router, "DELETE", "/api/issues/del", map[string]any{"_id": "invalid"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "could not delete", "_id": "invalid"}, decodeMap(t, w))

	w = doJSON(t, router, "DELETE", "/api/issues/del", map[string]any{"_id": issue.ID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"result": "successfully deleted", "_id": issue.ID}, decodeMap(t, w))

	w = doJSON(t, router, "GET", "/api/issues/del", nil)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestIssueLifecycle_EndToEnd(t *testing.T) {
	router := setupTestServer(t)

	issue := createIssue(t, router, "e2e", map[string]any{
		"issue_title": "Lifecycle", "issue_text": "original", "created_by": "Tester",
	})

	w := doJSON(t, router, "PUT", "/api/issues/e2e", map[string]any{"_id": issue.ID, "issue_text": "X"})
	require.Equal(t, "successfully updated", decodeMap(t, w)["result"])

	w = doJSON(t, router, "GET", "/api/issues/e2e", nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, "X", issues[0].Text)
	assert.True(t, issues[0].Open)

	w = doJSON(t, router, "DELETE", "/api/issues/e2e", map[string]any{"_id": issue.ID})
	require.Equal(t, "successfully deleted", decodeMap(t, w)["result"])

	w = doJSON(t, router, "GET", "/api/issues/e2e", nil)
	for _, got := range decodeIssues(t, w) {
		assert.NotEqual(t, issue.ID, got.ID)
	}
}

func TestMalformedBody_Is500(t *testing.T) {
	router := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/issues/bad", strings.NewReader(`{"issue_title":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": "internal server error"}, decodeMap(t, w))
}

func TestOtherMediaTypes_ReadAsEmptyBody(t *testing.T) {
	router := setupTestServer(t)

	send := func(method, contentType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/issues/media", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send("DELETE", "text/plain", "_id=abc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "missing _id"}, decodeMap(t, w))

	w = send("POST", "multipart/form-data; boundary=xyz", "--xyz\r\nContent-Disposition: form-data; name=\"issue_title\"\r\n\r\nt\r\n--xyz--\r\n")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "required field(s) missing"}, decodeMap(t, w))

	w = send("PUT", "not a media type;;", `{"_id":"abc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"error": "missing _id"}, decodeMap(t, w))
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

// failingStore answers every call with an error.
type failingStore struct{ store.Store }

func (failingStore) ListIssues(context.Context, string, models.Filter) ([]*models.Issue, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) ListProjects(context.Context) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailure_Is500(t *testing.T) {
	router := NewServer(tracker.New(failingStore{})).Router()

	for _, path := range []string{"/api/issues/p", "/api/projects"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.NotContains(t, w.Body.String(), "disk on fire", "details stay in the log")
	}
}

func TestListProjects(t *testing.T) {
	router := setupTestServer(t)

	w := doJSON(t, router, "GET", "/api/projects", nil)
	assert.JSONEq(t, "[]", w.Body.String())

	createIssue(t, router, "zeta", map[string]any{"issue_title": "t", "issue_text": "x", "created_by": "Tester"})
	createIssue(t, router, "alpha", map[string]any{"issue_title": "t", "issue_text": "x", "created_by": "Tester"})

	w = doJSON(t, router, "GET", "/api/projects", nil)
	assert.JSONEq(t, `["alpha","zeta"]`, w.Body.String())
}

func TestHealth(t *testing.T) {
	router := setupTestServer(t)
	w := doJSON(t, router, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := setupTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/issues/p", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPHandlerMounted(t *testing.T) {
	called := false
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	router := NewServer(tracker.New(store.NewMemoryStore()), WithMCPHandler(mcpHandler)).Router()

	req := httptest.NewRequest("POST", "/mcp", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
