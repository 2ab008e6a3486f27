package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/tracker"
)

func exportEnv(t *testing.T, format string) *strings.Builder {
	t.Helper()
	svc, _, _ := issueEnv(t)
	seedIssue(t, svc, "apitest", tracker.Fields{"issue_title": "a|b", "issue_text": "x", "created_by": "joe", "assigned_to": "ann"})
	seedIssue(t, svc, "apitest", tracker.Fields{"issue_title": "second", "issue_text": "y", "created_by": "joe"})
	seedIssue(t, svc, "billing", tracker.Fields{"issue_title": "invoice", "issue_text": "z", "created_by": "sue"})

	out := &strings.Builder{}
	ui.Out = out
	exportFormat = format
	exportFilters = nil
	t.Cleanup(func() {
		exportFormat = "json"
		exportFilters = nil
	})
	return out
}

func TestExportRun_JSON(t *testing.T) {
	out := exportEnv(t, "json")

	require.NoError(t, exportRun(context.Background(), ""))

	var groups []projectIssues
	require.NoError(t, json.Unmarshal([]byte(out.String()), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "apitest", groups[0].Project)
	assert.Len(t, groups[0].Issues, 2)
	assert.Equal(t, "billing", groups[1].Project)
	assert.Equal(t, "invoice", groups[1].Issues[0].Title)
}

func TestExportRun_CSVWithFilter(t *testing.T) {
	out := exportEnv(t, "csv")
	exportFilters = []string{"assigned_to=ann"}

	require.NoError(t, exportRun(context.Background(), "apitest"))

	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Project", records[0][0])
	assert.Equal(t, []string{"apitest", "a|b", "x", "joe", "ann", "", "true"}, append([]string{records[1][0]}, records[1][2:8]...))
}

func TestExportRun_Markdown(t *testing.T) {
	out := exportEnv(t, "markdown")

	require.NoError(t, exportRun(context.Background(), "nothing"))
	assert.Contains(t, out.String(), "## nothing")
	assert.Contains(t, out.String(), "_No issues._")

	out.Reset()
	require.NoError(t, exportRun(context.Background(), "apitest"))
	assert.Contains(t, out.String(), `| a\|b | joe | ann |  | true |`)
}

func TestExportRun_UnknownFormat(t *testing.T) {
	exportEnv(t, "xml")

	err := exportRun(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
