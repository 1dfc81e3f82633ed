package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/evanschultz/flare/internal/adapters/server/common"
	"github.com/evanschultz/flare/internal/app"
	"github.com/evanschultz/flare/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubService provides deterministic responses for MCP tool tests.
type stubService struct {
	err error

	list      common.EventList
	event     common.Event
	admission common.Admission
	users     []common.User

	lastView   string
	lastInput  common.EventInput
	lastID     string
	lastStatus string
	lastLimit  int
	lastRole   string
	lastActor  string
}

// record captures the actor carried by ctx.
func (s *stubService) record(ctx context.Context) {
	if actor, ok := app.ActorFromContext(ctx); ok {
		s.lastActor = actor.UserID
	}
}

func (s *stubService) ListEvents(ctx context.Context, view string) (common.EventList, error) {
	s.record(ctx)
	s.lastView = view
	return s.list, s.err
}

func (s *stubService) CreateEvent(ctx context.Context, in common.EventInput) (common.Event, error) {
	s.record(ctx)
	s.lastInput = in
	return s.event, s.err
}

func (s *stubService) GetEvent(ctx context.Context, id string) (common.Event, error) {
	s.record(ctx)
	s.lastID = id
	return s.event, s.err
}

func (s *stubService) UpdateEvent(ctx context.Context, id string, in common.EventInput) (common.Event, error) {
	s.record(ctx)
	s.lastID = id
	s.lastInput = in
	return s.event, s.err
}

func (s *stubService) DeleteEvent(ctx context.Context, id string) error {
	s.record(ctx)
	s.lastID = id
	return s.err
}

func (s *stubService) SetEventStatus(ctx context.Context, id, status string) (common.Event, error) {
	s.record(ctx)
	s.lastID = id
	s.lastStatus = status
	return s.event, s.err
}

func (s *stubService) ListEventActivity(ctx context.Context, id string, limit int) ([]common.Activity, error) {
	s.record(ctx)
	s.lastID = id
	s.lastLimit = limit
	return nil, s.err
}

func (s *stubService) RequestEnrollment(ctx context.Context, id string) (common.Enrollment, error) {
	s.record(ctx)
	s.lastID = id
	return common.Enrollment{ID: "n1", EventID: id, Status: "pending"}, s.err
}

func (s *stubService) ListEventEnrollments(ctx context.Context, id string) ([]common.EventEnrollment, error) {
	s.record(ctx)
	s.lastID = id
	return nil, s.err
}

func (s *stubService) ApproveEnrollment(ctx context.Context, id string) (common.Admission, error) {
	s.record(ctx)
	s.lastID = id
	return s.admission, s.err
}

func (s *stubService) RejectEnrollment(ctx context.Context, id string) (common.Enrollment, error) {
	s.record(ctx)
	s.lastID = id
	return common.Enrollment{ID: id, Status: "rejected"}, s.err
}

func (s *stubService) ListMyEnrollments(ctx context.Context) ([]common.MyEnrollment, error) {
	s.record(ctx)
	return nil, s.err
}

func (s *stubService) ListUsers(ctx context.Context, role string) ([]common.User, error) {
	s.record(ctx)
	s.lastRole = role
	return s.users, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "flare-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// withActor injects one authenticated actor the way the server auth middleware does.
func withActor(next http.Handler, userID string, roles ...domain.Role) http.Handler {
	actor, _ := domain.NewActor(userID, "", roles)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(app.WithActor(r.Context(), actor)))
	})
}

// newTestServer starts one MCP server over svc and initializes the protocol.
func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(withActor(handler, "org-1", domain.RoleOrganizer))
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersFlareTools verifies tool discovery exposes the full surface.
func TestHandlerRegistersFlareTools(t *testing.T) {
	server := newTestServer(t, &stubService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{
		"flare.list_events",
		"flare.create_event",
		"flare.get_event",
		"flare.update_event",
		"flare.delete_event",
		"flare.set_event_status",
		"flare.list_event_activity",
		"flare.request_enrollment",
		"flare.list_event_enrollments",
		"flare.approve_enrollment",
		"flare.reject_enrollment",
		"flare.list_my_enrollments",
		"flare.list_users",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerCreateEventToolCall verifies argument binding and actor propagation.
func TestHandlerCreateEventToolCall(t *testing.T) {
	svc := &stubService{event: common.Event{ID: "e1", Status: "pending"}}
	server := newTestServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "flare.create_event", map[string]any{
		"name":        "Meetup",
		"description": "Talks.",
		"date":        "2026-03-14",
		"time":        "18:30",
		"capacity":    4,
		"venue":       "Hall B",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["id"] != "e1" {
		t.Fatalf("id = %#v, want e1", structured["id"])
	}
	if svc.lastInput.Capacity != 4 || svc.lastInput.Venue != "Hall B" {
		t.Fatalf("unexpected bound input %#v", svc.lastInput)
	}
	if svc.lastActor != "org-1" {
		t.Fatalf("actor = %q, want org-1", svc.lastActor)
	}
}

// TestHandlerToolCallsForwardArguments verifies id, status, limit and role forwarding.
func TestHandlerToolCallsForwardArguments(t *testing.T) {
	svc := &stubService{admission: common.Admission{Admitted: false, Reason: "event is full"}}
	server := newTestServer(t, svc)

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "flare.set_event_status", map[string]any{
		"event_id": "e7",
		"status":   "approved",
	}))
	if svc.lastID != "e7" || svc.lastStatus != "approved" {
		t.Fatalf("set_event_status forwarded id=%q status=%q", svc.lastID, svc.lastStatus)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "flare.list_event_activity", map[string]any{
		"event_id": "e7",
		"limit":    5,
	}))
	if svc.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", svc.lastLimit)
	}

	_, approveResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "flare.approve_enrollment", map[string]any{
		"enrollment_id": "n9",
	}))
	structured := toolResultStructured(t, approveResp.Result)
	if structured["admitted"] != false || structured["reason"] != "event is full" {
		t.Fatalf("unexpected admission %#v", structured)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "flare.list_users", map[string]any{
		"role": "participant",
	}))
	if svc.lastRole != "participant" {
		t.Fatalf("role = %q, want participant", svc.lastRole)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(7, "flare.list_events", map[string]any{
		"view": "mine",
	}))
	if svc.lastView != "mine" {
		t.Fatalf("view = %q, want mine", svc.lastView)
	}
}

// TestHandlerToolCallErrorPaths verifies required-arg and mapped-service errors.
func TestHandlerToolCallErrorPaths(t *testing.T) {
	svc := &stubService{err: errors.Join(common.ErrUnauthorized, errors.New("not the organizer"))}
	server := newTestServer(t, svc)

	_, missingArgResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "flare.get_event", map[string]any{}))
	if isError, _ := missingArgResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missingArgResp.Result["isError"])
	}
	if got := toolResultText(t, missingArgResp.Result); !strings.Contains(got, `required argument "event_id" not found`) {
		t.Fatalf("error text = %q, want required event_id message", got)
	}

	_, mappedErrResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "flare.delete_event", map[string]any{
		"event_id": "e1",
	}))
	if isError, _ := mappedErrResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", mappedErrResp.Result["isError"])
	}
	if got := toolResultText(t, mappedErrResp.Result); !strings.HasPrefix(got, "unauthorized:") {
		t.Fatalf("error text = %q, want prefix unauthorized:", got)
	}
}

// TestNewHandlerRequiresService verifies construction fails without a backing service.
func TestNewHandlerRequiresService(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies deterministic config defaults and path normalization.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{
				ServerName:    "flare",
				ServerVersion: "dev",
				EndpointPath:  "/mcp",
			},
		},
		{
			name: "trimmed values and slash prefix",
			in: Config{
				ServerName:    " flare-server ",
				ServerVersion: " v1.2.3 ",
				EndpointPath:  "custom/path",
			},
			want: Config{
				ServerName:    "flare-server",
				ServerVersion: "v1.2.3",
				EndpointPath:  "/custom/path",
			},
		},
		{
			name: "endpoint trim of repeated slashes",
			in: Config{
				ServerName:    "flare",
				ServerVersion: "dev",
				EndpointPath:  "///mcp///",
			},
			want: Config{
				ServerName:    "flare",
				ServerVersion: "dev",
				EndpointPath:  "/mcp",
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeConfig(tt.in)
			if got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler paths fail closed with 503.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver", handler: nil},
		{name: "missing inner http handler", handler: &Handler{}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "unknown error"},
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad date")), wantPrefix: "invalid_request:"},
		{name: "unauthenticated", err: common.ErrUnauthenticated, wantPrefix: "unauthenticated:"},
		{name: "unauthorized", err: common.ErrUnauthorized, wantPrefix: "unauthorized:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "transition", err: common.ErrTransitionBlocked, wantPrefix: "transition_blocked:"},
		{name: "capacity", err: common.ErrCapacityExceeded, wantPrefix: "capacity_exceeded:"},
		{name: "conflict", err: common.ErrConflict, wantPrefix: "conflict:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
