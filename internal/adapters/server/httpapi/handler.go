// Package httpapi provides the REST HTTP adapter for the board surfaces.
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

	"github.com/evanschultz/stageboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board common.BoardService
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

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(board common.BoardService) *Handler {
	return &Handler{board: board}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "rows":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleRows(w, r)
		return
	case "tasks":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAddTask(w, r)
		return
	case "segments/order":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleApplyOrder(w, r)
		return
	case "activation":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleToggle(w, r)
		return
	case "change_events":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleChangeEvents(w, r)
		return
	}

	taskID, action, ok := resolveTaskRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := h.board.DeleteManualTask(r.Context(), taskID); err != nil {
			writeErrorFrom(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "reorder":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleReorder(w, r, taskID)
	case "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMove(w, r, taskID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleRows serves GET `/rows`.
func (h *Handler) handleRows(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := common.RowsRequest{
		ExpandedSections:    splitList(query["section"]),
		ExpandedStages:      splitList(query["stage"]),
		CollapsedCategories: splitList(query["collapsed"]),
	}
	if raw := strings.TrimSpace(query.Get("expand_all")); raw != "" {
		expandAll, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "expand_all must be a boolean",
			})
			return
		}
		req.ExpandAll = expandAll
	}
	rows, err := h.board.Rows(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleAddTask serves POST `/tasks`.
func (h *Handler) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req common.AddManualTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.board.AddManualTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleReorder serves POST `/tasks/{id}/reorder`.
func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request, taskID string) {
	var payload struct {
		Direction string `json:"direction"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.board.ReorderTask(r.Context(), common.ReorderRequest{TaskID: taskID, Direction: payload.Direction}); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMove serves POST `/tasks/{id}/move`.
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request, taskID string) {
	var payload struct {
		Stage        string  `json:"stage"`
		CategoryID   string  `json:"category_id"`
		CategoryName *string `json:"category_name"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	err := h.board.MoveTask(r.Context(), common.MoveTaskRequest{
		TaskID:       taskID,
		Stage:        payload.Stage,
		CategoryID:   payload.CategoryID,
		CategoryName: payload.CategoryName,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyOrder serves POST `/segments/order`.
func (h *Handler) handleApplyOrder(w http.ResponseWriter, r *http.Request) {
	var req common.ApplyOrderRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.board.ApplyOrder(r.Context(), req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggle serves POST `/activation`.
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req common.ToggleRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.board.Toggle(r.Context(), req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangeEvents serves GET `/change_events`.
func (h *Handler) handleChangeEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	events, err := h.board.ListChangeEvents(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// resolveTaskRoute parses `tasks/{id}` and `tasks/{id}/{action}`.
func resolveTaskRoute(path string) (string, string, bool) {
	const prefix = "tasks/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) > 2 {
		return "", "", false
	}
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return id, "", true
	}
	return id, parts[1], true
}

// splitList flattens repeated and comma-separated query values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
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
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Reload rows and retry against the current segment order.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
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
