package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

func TestSummarize(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sum := summarize("apitest", []models.Issue{
		{Open: true, UpdatedOn: t0},
		{Open: false, UpdatedOn: t0.Add(time.Hour)},
		{Open: true, UpdatedOn: t0.Add(-time.Hour)},
	})
	assert.Equal(t, projectSummary{Name: "apitest", Open: 2, Closed: 1, LastUpdate: t0.Add(time.Hour)}, sum)
}

func TestStatusOverviewRun(t *testing.T) {
	svc, out, _ := issueEnv(t)
	ctx := context.Background()

	require.NoError(t, statusOverviewRun(ctx))
	assert.Contains(t, out.String(), "No issues yet")

	open := seedIssue(t, svc, "apitest", tracker.Fields{"issue_title": "t", "issue_text": "x", "created_by": "me"})
	seedIssue(t, svc, "apitest", tracker.Fields{"issue_title": "t2", "issue_text": "x", "created_by": "me"})
	closed := seedIssue(t, svc, "billing", tracker.Fields{"issue_title": "t3", "issue_text": "x", "created_by": "me"})
	_, err := svc.Update(ctx, "billing", tracker.Fields{"_id": closed.ID, "open": false})
	require.NoError(t, err)
	require.NotEmpty(t, open.ID)

	out.Reset()
	require.NoError(t, statusOverviewRun(ctx))
	assert.Contains(t, out.String(), "apitest")
	assert.Contains(t, out.String(), "billing")
	assert.Contains(t, out.String(), "just now")

	statusOpenOnly = true
	t.Cleanup(func() { statusOpenOnly = false })
	out.Reset()
	require.NoError(t, statusOverviewRun(ctx))
	assert.Contains(t, out.String(), "apitest")
	assert.NotContains(t, out.String(), "billing")
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", timeAgo(time.Now()))
	assert.Equal(t, "5m ago", timeAgo(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", timeAgo(time.Now().Add(-3*time.Hour-time.Second)))
	assert.Equal(t, "1d ago", timeAgo(time.Now().Add(-25*time.Hour)))
	assert.Equal(t, "4d ago", timeAgo(time.Now().Add(-4*24*time.Hour-time.Minute)))
}
