package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tracker/internal/models"
)

var (
	exportFormat  string
	exportFilters []string
)

var exportCmd = &cobra.Command{
	Use:   "export [project]",
	Short: "Export issues as JSON, CSV, or Markdown",
	Long: `Export a project's issues, or every project's issues when no project is
given. --filter narrows the export the same way 'issue list' does.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var project string
		if len(args) > 0 {
			project = args[0]
		}
		return exportRun(cmd.Context(), project)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringArrayVarP(&exportFilters, "filter", "f", nil, "Filter as field=value (repeatable)")
	rootCmd.AddCommand(exportCmd)
}

// projectIssues pairs a project name with its exported issues.
type projectIssues struct {
	Project string         `json:"project"`
	Issues  []models.Issue `json:"issues"`
}

func exportRun(ctx context.Context, project string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	switch exportFormat {
	case "json", "csv", "markdown":
	default:
		return fmt.Errorf("unknown format: %s (use: json, csv, markdown)", exportFormat)
	}

	filter, err := parseFilters(exportFilters)
	if err != nil {
		return err
	}

	c := newClient()
	names := []string{project}
	if project == "" {
		if names, err = c.Projects(ctx); err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
	}

	groups := make([]projectIssues, 0, len(names))
	for _, name := range names {
		issues, err := c.List(ctx, name, filter)
		if err != nil {
			return fmt.Errorf("list %s: %w", name, err)
		}
		groups = append(groups, projectIssues{Project: name, Issues: issues})
	}

	switch exportFormat {
	case "csv":
		return exportCSV(groups)
	case "markdown":
		exportMarkdown(groups)
		return nil
	default:
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}
}

func exportCSV(groups []projectIssues) error {
	w := csv.NewWriter(ui.Out)
	_ = w.Write([]string{"Project", "ID", "Title", "Text", "CreatedBy", "AssignedTo", "StatusText", "Open", "Created", "Updated"})
	for _, g := range groups {
		for _, i := range g.Issues {
			_ = w.Write([]string{
				g.Project, i.ID, i.Title, i.Text, i.CreatedBy, i.AssignedTo, i.StatusText,
				strconv.FormatBool(i.Open),
				i.CreatedOn.UTC().Format(time.RFC3339),
				i.UpdatedOn.UTC().Format(time.RFC3339),
			})
		}
	}
	w.Flush()
	return w.Error()
}

func exportMarkdown(groups []projectIssues) {
	fmt.Fprintln(ui.Out, "# Issues")
	for _, g := range groups {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "## %s\n", g.Project)
		fmt.Fprintln(ui.Out)
		if len(g.Issues) == 0 {
			fmt.Fprintln(ui.Out, "_No issues._")
			continue
		}
		fmt.Fprintln(ui.Out, "| Title | Created by | Assigned | Status | Open |")
		fmt.Fprintln(ui.Out, "|-------|------------|----------|--------|------|")
		for _, i := range g.Issues {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %t |\n",
				mdCell(i.Title), mdCell(i.CreatedBy), mdCell(i.AssignedTo), mdCell(i.StatusText), i.Open)
		}
	}
}

// mdCell escapes pipes so a value stays inside its table cell.
func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
