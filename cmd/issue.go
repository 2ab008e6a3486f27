package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/output"
	"github.com/joescharf/tracker/internal/tracker"
)

var (
	issueTitle    string
	issueText     string
	issueBy       string
	issueAssign   string
	issueStatus   string
	issueOpen     bool
	issueFilters  []string
	issueAllTimes bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "File and manage issues on a running server",
	Long: `File, list, update and delete issues through the tracker API.

The server address comes from server.url (default http://localhost:3000).`,
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "File a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Context(), args[0])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's issues",
	Long: `List a project's issues, optionally narrowed with --filter key=value.

Repeat --filter to require several fields, e.g.
  tracker issue list apitest --filter open=true --filter assigned_to=joe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context(), args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <project> <id>",
	Short: "Update fields of an issue",
	Long:  "Update an issue. Only the flags you pass are sent.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd.Context(), args[0], issueUpdateFields(cmd.Flags(), args[1]))
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <project> <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(cmd.Context(), args[0], args[1])
	},
}

var issueProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that hold issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueProjectsRun(cmd.Context())
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueText, "text", "", "Issue text (required)")
	issueAddCmd.Flags().StringVar(&issueBy, "by", "", "Reporter (required)")
	issueAddCmd.Flags().StringVar(&issueAssign, "assign", "", "Assignee")
	issueAddCmd.Flags().StringVar(&issueStatus, "status", "", "Status text")

	issueListCmd.Flags().StringArrayVarP(&issueFilters, "filter", "f", nil, "Filter as field=value (repeatable)")
	issueListCmd.Flags().BoolVar(&issueAllTimes, "times", false, "Show created/updated timestamps")

	addIssueUpdateFlags(issueUpdateCmd.Flags())

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueProjectsCmd)
	rootCmd.AddCommand(issueCmd)
}

// reportRejection prints a refusal from the server and reports whether err was one.
func reportRejection(err error) bool {
	rej, ok := tracker.AsRejection(err)
	if !ok {
		return false
	}
	if rej.ID != "" {
		ui.Error("%s (%s)", rej.Reason, rej.ID)
	} else {
		ui.Error("%s", rej.Reason)
	}
	return true
}

func issueAddRun(ctx context.Context, project string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fields := tracker.Fields{
		models.FieldTitle:     issueTitle,
		models.FieldText:      issueText,
		models.FieldCreatedBy: issueBy,
	}
	if issueAssign != "" {
		fields[models.FieldAssignedTo] = issueAssign
	}
	if issueStatus != "" {
		fields[models.FieldStatusText] = issueStatus
	}

	if dryRun {
		ui.DryRunMsg("Would file issue %q in %s", issueTitle, project)
		return nil
	}

	issue, err := newClient().Create(ctx, project, fields)
	if err != nil {
		if reportRejection(err) {
			return nil
		}
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created issue %s: %s", output.Cyan(issue.ID), issue.Title)
	return nil
}

// parseFilters turns repeated key=value flags into a Filter.
func parseFilters(raw []string) (models.Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filter := make(models.Filter)
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want field=value)", kv)
		}
		filter[key] = append(filter[key], value)
	}
	return filter, nil
}

func issueListRun(ctx context.Context, project string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	filter, err := parseFilters(issueFilters)
	if err != nil {
		return err
	}

	issues, err := newClient().List(ctx, project, filter)
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	headers := []string{"ID", "Title", "Created by", "Assigned", "Status", "Open"}
	if issueAllTimes {
		headers = append(headers, "Created", "Updated")
	}
	table := ui.Table(headers)
	for _, issue := range issues {
		row := []string{
			issue.ID,
			issue.Title,
			issue.CreatedBy,
			issue.AssignedTo,
			issue.StatusText,
			output.OpenLabel(issue.Open),
		}
		if issueAllTimes {
			row = append(row,
				issue.CreatedOn.Local().Format(time.DateTime),
				issue.UpdatedOn.Local().Format(time.DateTime),
			)
		}
		_ = table.Append(row)
	}
	_ = table.Render()
	return nil
}

func addIssueUpdateFlags(fs *pflag.FlagSet) {
	fs.StringVar(&issueTitle, "title", "", "New title")
	fs.StringVar(&issueText, "text", "", "New text")
	fs.StringVar(&issueBy, "by", "", "New reporter")
	fs.StringVar(&issueAssign, "assign", "", "New assignee")
	fs.StringVar(&issueStatus, "status", "", "New status text")
	fs.BoolVar(&issueOpen, "open", true, "Set open (--open=false closes the issue)")
}

// issueUpdateFields builds an update body holding only the flags the user set.
func issueUpdateFields(fs *pflag.FlagSet, id string) tracker.Fields {
	fields := tracker.Fields{models.FieldID: id}
	for flag, key := range map[string]string{
		"title":  models.FieldTitle,
		"text":   models.FieldText,
		"by":     models.FieldCreatedBy,
		"assign": models.FieldAssignedTo,
		"status": models.FieldStatusText,
	} {
		if fs.Changed(flag) {
			v, _ := fs.GetString(flag)
			fields[key] = v
		}
	}
	if fs.Changed("open") {
		fields[models.FieldOpen] = issueOpen
	}
	return fields
}

func issueUpdateRun(ctx context.Context, project string, fields tracker.Fields) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id, _ := fields[models.FieldID].(string)

	if dryRun {
		ui.DryRunMsg("Would update issue %s in %s (%d field(s))", id, project, len(fields)-1)
		return nil
	}

	reply, err := newClient().Update(ctx, project, fields)
	if err != nil {
		if reportRejection(err) {
			return nil
		}
		return fmt.Errorf("update issue: %w", err)
	}

	ui.Success("%s %s", reply.Result, output.Cyan(reply.ID))
	return nil
}

func issueDeleteRun(ctx context.Context, project, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if dryRun {
		ui.DryRunMsg("Would delete issue %s from %s", id, project)
		return nil
	}

	reply, err := newClient().Delete(ctx, project, id)
	if err != nil {
		if reportRejection(err) {
			return nil
		}
		return fmt.Errorf("delete issue: %w", err)
	}

	ui.Success("%s %s", reply.Result, output.Cyan(reply.ID))
	return nil
}

func issueProjectsRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	names, err := newClient().Projects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(names) == 0 {
		ui.Info("No projects yet.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(ui.Out, name)
	}
	return nil
}
