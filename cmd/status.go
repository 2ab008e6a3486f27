package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/output"
)

var statusOpenOnly bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show an issue overview across projects",
	Long: `Show a summary table of every project on the running server with its
open and closed issue counts and the time of the latest change.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusOverviewRun(cmd.Context())
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusOpenOnly, "open", false, "Show only projects with open issues")
	rootCmd.AddCommand(statusCmd)
}

// projectSummary is one row of the status table.
type projectSummary struct {
	Name       string
	Open       int
	Closed     int
	LastUpdate time.Time
}

func summarize(name string, issues []models.Issue) projectSummary {
	sum := projectSummary{Name: name}
	for _, i := range issues {
		if i.Open {
			sum.Open++
		} else {
			sum.Closed++
		}
		if i.UpdatedOn.After(sum.LastUpdate) {
			sum.LastUpdate = i.UpdatedOn
		}
	}
	return sum
}

func statusOverviewRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := newClient()

	names, err := c.Projects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(names) == 0 {
		ui.Info("No issues yet. Use 'tracker issue add <project>' to file one.")
		return nil
	}

	table := ui.Table([]string{"Project", "Open", "Closed", "Activity"})
	for _, name := range names {
		issues, err := c.List(ctx, name, nil)
		if err != nil {
			return fmt.Errorf("list %s: %w", name, err)
		}
		sum := summarize(name, issues)
		if statusOpenOnly && sum.Open == 0 {
			continue
		}

		activity := output.Faint("n/a")
		if !sum.LastUpdate.IsZero() {
			activity = timeAgo(sum.LastUpdate)
		}
		_ = table.Append([]string{
			output.Cyan(sum.Name),
			output.Green(fmt.Sprint(sum.Open)),
			fmt.Sprint(sum.Closed),
			activity,
		})
	}
	_ = table.Render()
	return nil
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
