// Package common provides transport-agnostic server contracts used by HTTP, MCP and
// websocket adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a request that is well formed but refused by the board state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a board surface that is not configured.
var ErrUnavailable = errors.New("surface unavailable")

// RowsRequest selects which collapsible rows are open. ExpandAll opens every section and
// stage before the explicit lists apply.
type RowsRequest struct {
	ExpandAll           bool     `json:"expand_all,omitempty"`
	ExpandedSections    []string `json:"expanded_sections,omitempty"`
	ExpandedStages      []string `json:"expanded_stages,omitempty"`
	CollapsedCategories []string `json:"collapsed_categories,omitempty"`
}

// RowView is one board row flattened for transport.
type RowView struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Depth        int        `json:"depth"`
	Name         string     `json:"name,omitempty"`
	SectionID    string     `json:"section_id,omitempty"`
	StageID      string     `json:"stage_id,omitempty"`
	Stage        string     `json:"stage,omitempty"`
	Color        string     `json:"color,omitempty"`
	CategoryID   string     `json:"category_id,omitempty"`
	TaskID       string     `json:"task_id,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`
	Active       bool       `json:"active,omitempty"`
	HasData      bool       `json:"has_data,omitempty"`
	Custom       bool       `json:"custom,omitempty"`
	Subtask      bool       `json:"subtask,omitempty"`
	Manual       bool       `json:"manual,omitempty"`
	Completed    bool       `json:"completed,omitempty"`
	TaskCount    int        `json:"task_count,omitempty"`
	Assignee     string     `json:"assignee,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	DurationDays int        `json:"duration_days,omitempty"`
	BudgetAmount float64    `json:"budget_amount,omitempty"`
}

// SegmentView is one ordered block of draggable task ids.
type SegmentView struct {
	Key          string   `json:"key"`
	SectionID    string   `json:"section_id"`
	StageID      string   `json:"stage_id"`
	Stage        string   `json:"stage"`
	CategoryID   string   `json:"category_id,omitempty"`
	CategoryName string   `json:"category_name,omitempty"`
	Custom       bool     `json:"custom,omitempty"`
	TaskIDs      []string `json:"task_ids"`
}

// BoardRows is the filtered row tree with its segments.
type BoardRows struct {
	Rows      []RowView     `json:"rows"`
	TotalRows int           `json:"total_rows"`
	Segments  []SegmentView `json:"segments"`
}

// ReorderRequest moves one task a single step among its siblings.
type ReorderRequest struct {
	TaskID    string `json:"task_id"`
	Direction string `json:"direction"`
}

// ApplyOrderRequest replaces the full order of one segment.
type ApplyOrderRequest struct {
	SegmentKey string   `json:"segment_key"`
	TaskIDs    []string `json:"task_ids"`
}

// MoveTaskRequest re-scopes one task to a stage and optional category.
type MoveTaskRequest struct {
	TaskID       string  `json:"task_id"`
	Stage        string  `json:"stage"`
	CategoryID   string  `json:"category_id,omitempty"`
	CategoryName *string `json:"category_name,omitempty"`
}

// AddManualTaskRequest creates one manual task.
type AddManualTaskRequest struct {
	SectionID    string     `json:"section_id,omitempty"`
	Stage        string     `json:"stage"`
	CategoryID   string     `json:"category_id,omitempty"`
	Name         string     `json:"name"`
	DurationDays int        `json:"duration_days,omitempty"`
	BudgetAmount float64    `json:"budget_amount,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`
	Assignee     string     `json:"assignee,omitempty"`
}

// TaskView is one manual task echoed back after a write.
type TaskView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Stage        string     `json:"stage"`
	CategoryID   string     `json:"category_id,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`
	Order        int        `json:"order"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	DurationDays int        `json:"duration_days"`
	BudgetAmount float64    `json:"budget_amount,omitempty"`
	Completed    bool       `json:"completed,omitempty"`
	Assignee     string     `json:"assignee,omitempty"`
}

// ToggleRequest activates or deactivates one stage, or one category under it when
// CategoryID is set.
type ToggleRequest struct {
	SectionID  string `json:"section_id"`
	Stage      string `json:"stage"`
	CategoryID string `json:"category_id,omitempty"`
	Enabled    bool   `json:"enabled"`
}

// ChangeEventView is one activity-ledger entry.
type ChangeEventView struct {
	ID         int64             `json:"id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Operation  string            `json:"operation"`
	SectionID  string            `json:"section_id,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	ActorID    string            `json:"actor_id"`
	ActorType  string            `json:"actor_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notification is one committed mutation pushed to live subscribers.
type Notification struct {
	Operation  string    `json:"operation"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	SectionID  string    `json:"section_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BoardReader serves the filtered row tree.
type BoardReader interface {
	Rows(context.Context, RowsRequest) (BoardRows, error)
}

// BoardService serves board reads plus the intents every transport accepts.
type BoardService interface {
	BoardReader
	ReorderTask(context.Context, ReorderRequest) error
	ApplyOrder(context.Context, ApplyOrderRequest) error
	MoveTask(context.Context, MoveTaskRequest) error
	AddManualTask(context.Context, AddManualTaskRequest) (TaskView, error)
	DeleteManualTask(context.Context, string) error
	Toggle(context.Context, ToggleRequest) error
	ListChangeEvents(context.Context, int) ([]ChangeEventView, error)
}

// ChangeNotifier pushes committed mutations to fn until the returned func is called.
type ChangeNotifier interface {
	Subscribe(fn func(Notification)) (unsubscribe func())
}
