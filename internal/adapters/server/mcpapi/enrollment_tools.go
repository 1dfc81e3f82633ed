package mcpapi

import (
	"context"

	"github.com/evanschultz/flare/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerEnrollmentTools registers enrollment request and admission tools.
func registerEnrollmentTools(srv *mcpserver.MCPServer, enrollments common.EnrollmentService) {
	srv.AddTool(
		mcp.NewTool(
			"flare.request_enrollment",
			mcp.WithDescription("Request a seat at one approved event."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			enrollment, err := enrollments.RequestEnrollment(ctx, eventID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("request_enrollment", enrollment)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.list_event_enrollments",
			mcp.WithDescription("List enrollments for one owned event: approved, then pending, then rejected."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			rows, err := enrollments.ListEventEnrollments(ctx, eventID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_event_enrollments", map[string]any{"enrollments": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.approve_enrollment",
			mcp.WithDescription("Admit one pending enrollment if a seat is free. A full event reports admitted=false."),
			mcp.WithString("enrollment_id", mcp.Required(), mcp.Description("Enrollment identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			enrollmentID, err := req.RequireString("enrollment_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			admission, err := enrollments.ApproveEnrollment(ctx, enrollmentID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("approve_enrollment", admission)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.reject_enrollment",
			mcp.WithDescription("Decline one pending enrollment."),
			mcp.WithString("enrollment_id", mcp.Required(), mcp.Description("Enrollment identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			enrollmentID, err := req.RequireString("enrollment_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			enrollment, err := enrollments.RejectEnrollment(ctx, enrollmentID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("reject_enrollment", enrollment)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.list_my_enrollments",
			mcp.WithDescription("List the caller's approved enrollments with their events."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := enrollments.ListMyEnrollments(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_my_enrollments", map[string]any{"enrollments": rows})
		},
	)
}

// registerDirectoryTools registers the user directory tool.
func registerDirectoryTools(srv *mcpserver.MCPServer, directory common.DirectoryService) {
	srv.AddTool(
		mcp.NewTool(
			"flare.list_users",
			mcp.WithDescription("List known users holding one role."),
			mcp.WithString("role", mcp.Required(), mcp.Description("Role to list"), mcp.Enum("organizer", "participant")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			role, err := req.RequireString("role")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			users, err := directory.ListUsers(ctx, role)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_users", map[string]any{"users": users})
		},
	)
}
