// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/stageboard/internal/adapters/server/common"
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// defaultAgentID attributes tool writes when the caller names no actor.
const defaultAgentID = "mcp-agent"

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

// NewHandler builds one stateless MCP adapter exposing the board tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerRowsTool(mcpSrv, board)
	registerOrderTools(mcpSrv, board)
	registerTaskTools(mcpSrv, board)
	registerActivationTool(mcpSrv, board)
	registerChangeEventsTool(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
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

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "stageboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// withAgent attributes a tool call to the agent named by actor_id.
func withAgent(ctx context.Context, req mcp.CallToolRequest) context.Context {
	id := strings.TrimSpace(req.GetString("actor_id", ""))
	if id == "" {
		id = defaultAgentID
	}
	return app.WithActor(ctx, app.Actor{ID: id, Type: domain.ActorTypeAgent})
}

// actorOption documents the optional attribution argument shared by write tools.
func actorOption() mcp.ToolOption {
	return mcp.WithString("actor_id", mcp.Description("Agent identifier recorded in the activity ledger"))
}

// jsonResult encodes one tool payload, naming the tool in encode failures.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// registerRowsTool registers the `stageboard.rows` tool.
func registerRowsTool(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"stageboard.rows",
			mcp.WithDescription("Return the visible board rows and draggable segments for one expansion view."),
			mcp.WithBoolean("expand_all", mcp.Description("Open every section and stage")),
			mcp.WithArray("expanded_sections", mcp.Description("Section ids to open"), mcp.WithStringItems()),
			mcp.WithArray("expanded_stages", mcp.Description("Stage row ids to open"), mcp.WithStringItems()),
			mcp.WithArray("collapsed_categories", mcp.Description("Category row ids to close"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := board.Rows(ctx, common.RowsRequest{
				ExpandAll:           req.GetBool("expand_all", false),
				ExpandedSections:    req.GetStringSlice("expanded_sections", nil),
				ExpandedStages:      req.GetStringSlice("expanded_stages", nil),
				CollapsedCategories: req.GetStringSlice("collapsed_categories", nil),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("rows", rows)
		},
	)
}

// registerOrderTools registers single-step and whole-segment ordering tools.
func registerOrderTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"stageboard.reorder_task",
			mcp.WithDescription("Swap one task with its previous or next sibling in its segment."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("direction", mcp.Required(), mcp.Description("Step direction"), mcp.Enum("up", "down")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			direction, err := req.RequireString("direction")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := board.ReorderTask(withAgent(ctx, req), common.ReorderRequest{TaskID: taskID, Direction: direction}); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("reorder_task", map[string]any{"task_id": taskID, "direction": direction})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stageboard.apply_order",
			mcp.WithDescription("Replace the full task order of one segment."),
			mcp.WithString("segment_key", mcp.Required(), mcp.Description("Segment key in stage::category form")),
			mcp.WithArray("task_ids", mcp.Required(), mcp.Description("Every task id of the segment in the new order"), mcp.WithStringItems()),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			segmentKey, err := req.RequireString("segment_key")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			taskIDs, err := req.RequireStringSlice("task_ids")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := board.ApplyOrder(withAgent(ctx, req), common.ApplyOrderRequest{SegmentKey: segmentKey, TaskIDs: taskIDs}); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("apply_order", map[string]any{"segment_key": segmentKey, "task_ids": taskIDs})
		},
	)
}

// registerTaskTools registers manual-task creation, deletion, and stage moves.
func registerTaskTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"stageboard.move_task",
			mcp.WithDescription("Move one task to another stage and optional category."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Target stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("category_id", mcp.Description("Target category identifier")),
			mcp.WithString("category_name", mcp.Description("Category label for manual tasks")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			stage, err := req.RequireString("stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			move := common.MoveTaskRequest{
				TaskID:     taskID,
				Stage:      stage,
				CategoryID: req.GetString("category_id", ""),
			}
			if name := req.GetString("category_name", ""); name != "" {
				move.CategoryName = &name
			}
			if err := board.MoveTask(withAgent(ctx, req), move); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_task", move)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stageboard.add_manual_task",
			mcp.WithDescription("Create one manual task in a stage."),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("name", mcp.Required(), mcp.Description("Task name")),
			mcp.WithString("section_id", mcp.Description("Owning section identifier")),
			mcp.WithString("category_id", mcp.Description("Category identifier")),
			mcp.WithString("parent_id", mcp.Description("Parent manual task for subtasks")),
			mcp.WithString("assignee", mcp.Description("Assignee")),
			mcp.WithString("start_date", mcp.Description("Start date as YYYY-MM-DD or RFC3339")),
			mcp.WithNumber("duration_days", mcp.Description("Duration in days")),
			mcp.WithNumber("budget_amount", mcp.Description("Budget amount")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			stage, err := req.RequireString("stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			add := common.AddManualTaskRequest{
				SectionID:    req.GetString("section_id", ""),
				Stage:        stage,
				CategoryID:   req.GetString("category_id", ""),
				Name:         name,
				ParentID:     req.GetString("parent_id", ""),
				Assignee:     req.GetString("assignee", ""),
				DurationDays: req.GetInt("duration_days", 0),
				BudgetAmount: req.GetFloat("budget_amount", 0),
			}
			if raw := strings.TrimSpace(req.GetString("start_date", "")); raw != "" {
				start, err := parseDate(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				add.StartDate = &start
			}
			task, err := board.AddManualTask(withAgent(ctx, req), add)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_manual_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stageboard.delete_manual_task",
			mcp.WithDescription("Delete one manual task and its subtasks."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := board.DeleteManualTask(withAgent(ctx, req), taskID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_manual_task", map[string]any{"task_id": taskID, "deleted": true})
		},
	)
}

// registerActivationTool registers the `stageboard.toggle` tool.
func registerActivationTool(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"stageboard.toggle",
			mcp.WithDescription("Activate or deactivate one stage, or one category when category_id is set."),
			mcp.WithString("section_id", mcp.Required(), mcp.Description("Section identifier")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Stage"), mcp.Enum(stageNames()...)),
			mcp.WithString("category_id", mcp.Description("Category identifier")),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Target activation state")),
			actorOption(),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sectionID, err := req.RequireString("section_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			stage, err := req.RequireString("stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			enabled, err := req.RequireBool("enabled")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			toggle := common.ToggleRequest{
				SectionID:  sectionID,
				Stage:      stage,
				CategoryID: req.GetString("category_id", ""),
				Enabled:    enabled,
			}
			if err := board.Toggle(withAgent(ctx, req), toggle); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("toggle", toggle)
		},
	)
}

// registerChangeEventsTool registers the `stageboard.list_change_events` tool.
func registerChangeEventsTool(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"stageboard.list_change_events",
			mcp.WithDescription("List recent board changes, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events, err := board.ListChangeEvents(ctx, req.GetInt("limit", 25))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_change_events", map[string]any{"events": events})
		},
	)
}

// stageNames lists the canonical stage values accepted by tools.
func stageNames() []string {
	stages := domain.Stages()
	out := make([]string, 0, len(stages))
	for _, stage := range stages {
		out = append(out, string(stage))
	}
	return out
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.Join(common.ErrInvalidRequest, fmt.Errorf("start_date %q: %w", raw, err))
	}
	return parsed.UTC(), nil
}

// toolResultFromError maps adapter errors into stable MCP tool error results.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
