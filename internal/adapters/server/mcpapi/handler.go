// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/evanschultz/flare/internal/adapters/server/common"
	"github.com/evanschultz/flare/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// eventArgs mirrors the editable event fields accepted by create and update tools.
type eventArgs struct {
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	Venue       string `json:"venue"`
}

// input converts bound arguments into the transport event input.
func (a eventArgs) input() common.EventInput {
	return common.EventInput{
		Name:        a.Name,
		Description: a.Description,
		Date:        a.Date,
		Time:        a.Time,
		Capacity:    a.Capacity,
		Venue:       a.Venue,
	}
}

// NewHandler builds one stateless MCP adapter exposing the flare tool surface.
func NewHandler(cfg Config, service common.Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("event service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerEventTools(mcpSrv, service)
	registerEnrollmentTools(mcpSrv, service)
	registerDirectoryTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(carryActor),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// carryActor copies the authenticated actor from the HTTP request into the tool context.
func carryActor(ctx context.Context, r *http.Request) context.Context {
	if actor, ok := app.ActorFromContext(r.Context()); ok {
		return app.WithActor(ctx, actor)
	}
	return ctx
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "flare"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// eventFieldOptions declares the shared event input schema.
func eventFieldOptions(required bool) []mcp.ToolOption {
	req := func(opts ...mcp.PropertyOption) []mcp.PropertyOption {
		if required {
			return append(opts, mcp.Required())
		}
		return opts
	}
	return []mcp.ToolOption{
		mcp.WithString("name", req(mcp.Description("Event name, at most 100 characters"))...),
		mcp.WithString("description", req(mcp.Description("Event description, at most 500 characters"))...),
		mcp.WithString("date", req(mcp.Description("Event date as YYYY-MM-DD"))...),
		mcp.WithString("time", req(mcp.Description("Start time as HH:MM"))...),
		mcp.WithNumber("capacity", req(mcp.Description("Seat count, at least 1"))...),
		mcp.WithString("venue", req(mcp.Description("Venue, at most 200 characters"))...),
	}
}

// registerEventTools registers event lifecycle tools.
func registerEventTools(srv *mcpserver.MCPServer, events common.EventService) {
	srv.AddTool(
		mcp.NewTool(
			"flare.list_events",
			mcp.WithDescription("List events for one role-specific view."),
			mcp.WithString("view", mcp.Description("Which listing to return"), mcp.Enum(common.SupportedEventViews()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := events.ListEvents(ctx, req.GetString("view", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_events", list)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.create_event",
			append([]mcp.ToolOption{
				mcp.WithDescription("Submit one event for admin approval."),
			}, eventFieldOptions(true)...)...,
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args eventArgs
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			event, err := events.CreateEvent(ctx, args.input())
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_event", event)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.get_event",
			mcp.WithDescription("Read one event."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			event, err := events.GetEvent(ctx, eventID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_event", event)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.update_event",
			append([]mcp.ToolOption{
				mcp.WithDescription("Replace the editable fields of one owned event."),
				mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
			}, eventFieldOptions(true)...)...,
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args eventArgs
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.EventID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "event_id" not found`), nil
			}
			event, err := events.UpdateEvent(ctx, args.EventID, args.input())
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_event", event)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.delete_event",
			mcp.WithDescription("Delete one owned event and its enrollments."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			if err := events.DeleteEvent(ctx, eventID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_event", map[string]any{"deleted": eventID})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.set_event_status",
			mcp.WithDescription("Approve or reject one pending event."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Decision"), mcp.Enum("approved", "rejected")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			event, err := events.SetEventStatus(ctx, eventID, status)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_event_status", event)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"flare.list_event_activity",
			mcp.WithDescription("List ledger entries for one event, newest first."),
			mcp.WithString("event_id", mcp.Required(), mcp.Description("Event identifier")),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			eventID, err := req.RequireString("event_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			activity, err := events.ListEventActivity(ctx, eventID, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_event_activity", map[string]any{"activity": activity})
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrUnauthenticated):
		return mcp.NewToolResultError("unauthenticated: " + err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		return mcp.NewToolResultError("unauthorized: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrTransitionBlocked):
		return mcp.NewToolResultError("transition_blocked: " + err.Error())
	case errors.Is(err, common.ErrCapacityExceeded):
		return mcp.NewToolResultError("capacity_exceeded: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument-binding failures as deterministic tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// jsonResult encodes one tool payload as structured JSON content.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}
