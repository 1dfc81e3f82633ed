// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/flare/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.Service
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the transport service.
func NewHandler(service common.Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "event service is not configured",
		})
		return
	}

	path := normalizePath(r.URL.Path)
	parts := strings.Split(path, "/")
	switch {
	case path == "events":
		switch r.Method {
		case http.MethodGet:
			h.handleListEvents(w, r)
		case http.MethodPost:
			h.handleCreateEvent(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[0] == "events" && parts[1] != "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetEvent(w, r, parts[1])
		case http.MethodPut:
			h.handleUpdateEvent(w, r, parts[1])
		case http.MethodDelete:
			h.handleDeleteEvent(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 3 && parts[0] == "events" && parts[1] != "":
		h.routeEventSubresource(w, r, parts[1], parts[2])
	case len(parts) == 3 && parts[0] == "enrollments" && parts[1] != "":
		h.routeEnrollmentAction(w, r, parts[1], parts[2])
	case path == "me/enrollments":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListMyEnrollments(w, r)
	case path == "users":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListUsers(w, r)
	default:
		writeEndpointNotFound(w)
	}
}

// routeEventSubresource dispatches `/events/{id}/{action}` requests.
func (h *Handler) routeEventSubresource(w http.ResponseWriter, r *http.Request, eventID, action string) {
	switch action {
	case "approve", "reject":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSetEventStatus(w, r, eventID, decisionStatus(action))
	case "enrollments":
		switch r.Method {
		case http.MethodGet:
			h.handleListEventEnrollments(w, r, eventID)
		case http.MethodPost:
			h.handleRequestEnrollment(w, r, eventID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case "activity":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListEventActivity(w, r, eventID)
	default:
		writeEndpointNotFound(w)
	}
}

// routeEnrollmentAction dispatches `/enrollments/{id}/{approve|reject}` requests.
func (h *Handler) routeEnrollmentAction(w http.ResponseWriter, r *http.Request, enrollmentID, action string) {
	if action != "approve" && action != "reject" {
		writeEndpointNotFound(w)
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if action == "approve" {
		admission, err := h.service.ApproveEnrollment(r.Context(), enrollmentID)
		if err != nil {
			writeErrorFrom(w, err)
			return
		}
		writeJSON(w, http.StatusOK, admission)
		return
	}
	enrollment, err := h.service.RejectEnrollment(r.Context(), enrollmentID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

// handleListEvents serves GET `/events?view=...`.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListEvents(r.Context(), strings.TrimSpace(r.URL.Query().Get("view")))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateEvent serves POST `/events`.
func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in common.EventInput
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	event, err := h.service.CreateEvent(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// handleGetEvent serves GET `/events/{id}`.
func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleUpdateEvent serves PUT `/events/{id}`.
func (h *Handler) handleUpdateEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	var in common.EventInput
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	event, err := h.service.UpdateEvent(r.Context(), eventID, in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleDeleteEvent serves DELETE `/events/{id}`.
func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	if err := h.service.DeleteEvent(r.Context(), eventID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetEventStatus serves POST `/events/{id}/approve` and `/events/{id}/reject`.
func (h *Handler) handleSetEventStatus(w http.ResponseWriter, r *http.Request, eventID, status string) {
	event, err := h.service.SetEventStatus(r.Context(), eventID, status)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleListEventEnrollments serves GET `/events/{id}/enrollments`.
func (h *Handler) handleListEventEnrollments(w http.ResponseWriter, r *http.Request, eventID string) {
	enrollments, err := h.service.ListEventEnrollments(r.Context(), eventID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enrollments": enrollments,
	})
}

// handleRequestEnrollment serves POST `/events/{id}/enrollments`.
func (h *Handler) handleRequestEnrollment(w http.ResponseWriter, r *http.Request, eventID string) {
	enrollment, err := h.service.RequestEnrollment(r.Context(), eventID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

// handleListEventActivity serves GET `/events/{id}/activity?limit=n`.
func (h *Handler) handleListEventActivity(w http.ResponseWriter, r *http.Request, eventID string) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("limit %q must be a non-negative integer", raw),
			})
			return
		}
		limit = parsed
	}
	activity, err := h.service.ListEventActivity(r.Context(), eventID, limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": activity,
	})
}

// handleListMyEnrollments serves GET `/me/enrollments`.
func (h *Handler) handleListMyEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.service.ListMyEnrollments(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enrollments": enrollments,
	})
}

// handleListUsers serves GET `/users?role=...`.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	if role == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "role is required",
			Hint:    "Use role=organizer or role=participant.",
		})
		return
	}
	users, err := h.service.ListUsers(r.Context(), role)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
	})
}

// decisionStatus maps an action path segment onto an event status.
func decisionStatus(action string) string {
	if action == "approve" {
		return "approved"
	}
	return "rejected"
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "unauthenticated",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnauthorized):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrTransitionBlocked):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "transition_blocked",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrCapacityExceeded):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "capacity_exceeded",
			Message: err.Error(),
			Hint:    "The event has no seats left.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeEndpointNotFound writes the structured 404 for unknown routes.
func writeEndpointNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
