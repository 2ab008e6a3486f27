package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/joescharf/tracker/internal/models"
	"github.com/joescharf/tracker/internal/tracker"
)

// Server exposes the tracker operations as MCP tools.
type Server struct {
	tracker *tracker.Service
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *tracker.Service, version string) *Server {
	return &Server{tracker: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable HTTP transport for mounting on the API server.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.MCPServer())
}

// jsonResult marshals v as the tool's text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// outcome renders a tracker result the way the HTTP API would: refusals are
// regular results carrying the error body.
func outcome(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if rej, ok := tracker.AsRejection(err); ok {
			return jsonResult(rej.Reply())
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

// issueFields copies the tool arguments minus the project.
func issueFields(request mcp.CallToolRequest) tracker.Fields {
	fields := tracker.Fields{}
	for k, v := range request.GetArguments() {
		if k == "project" {
			continue
		}
		fields[k] = v
	}
	return fields
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// tracker_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_list_projects",
		mcp.WithDescription("List the names of projects that currently hold issues."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return outcome(s.tracker.Projects(ctx))
}

// tracker_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_list_issues",
		mcp.WithDescription("List a project's issues in creation order. Optional filters match fields exactly; 'open' accepts true/false."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithObject("filters", mcp.Description("Field/value pairs, e.g. {\"open\": \"true\", \"created_by\": \"Tester\"}")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filter := models.Filter{}
	if raw, ok := request.GetArguments()["filters"].(map[string]any); ok {
		for k, v := range raw {
			value, err := cast.ToStringE(v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("filter %s: %v", k, err)), nil
			}
			filter[k] = []string{value}
		}
	}

	return outcome(s.tracker.List(ctx, project, filter))
}

// tracker_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_create_issue",
		mcp.WithDescription("Create an open issue in a project. Returns the created issue, or {\"error\": ...} when a required field is missing."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldTitle, mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString(models.FieldText, mcp.Required(), mcp.Description("Issue text")),
		mcp.WithString(models.FieldCreatedBy, mcp.Required(), mcp.Description("Reporter")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.tracker.Create(ctx, project, issueFields(request)))
}

// tracker_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_update_issue",
		mcp.WithDescription("Update fields of an issue identified by _id. Only supplied fields change."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Description("Issue ID (required)")),
		mcp.WithString(models.FieldTitle, mcp.Description("New title")),
		mcp.WithString(models.FieldText, mcp.Description("New text")),
		mcp.WithString(models.FieldCreatedBy, mcp.Description("New reporter")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("New assignee")),
		mcp.WithString(models.FieldStatusText, mcp.Description("New status text")),
		mcp.WithBoolean(models.FieldOpen, mcp.Description("false closes the issue, true reopens it")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.tracker.Update(ctx, project, issueFields(request)))
}

// tracker_delete_issue
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tracker_delete_issue",
		mcp.WithDescription("Delete an issue identified by _id."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Description("Issue ID (required)")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.tracker.Delete(ctx, project, issueFields(request)))
}
