package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/stageboard/internal/activation"
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/drag"
)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

var (
	_ BoardService   = (*AppServiceAdapter)(nil)
	_ ChangeNotifier = (*AppServiceAdapter)(nil)
)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// Rows returns the filtered row tree and its segments.
func (a *AppServiceAdapter) Rows(ctx context.Context, in RowsRequest) (BoardRows, error) {
	if err := a.ready(); err != nil {
		return BoardRows{}, err
	}
	b, err := a.service.Board(ctx)
	if err != nil {
		return BoardRows{}, mapAppError("load board", err)
	}
	view := board.View{
		ExpandedSections:    board.NewIDSet(in.ExpandedSections...),
		ExpandedStages:      board.NewIDSet(in.ExpandedStages...),
		CollapsedCategories: board.NewIDSet(in.CollapsedCategories...),
	}
	if in.ExpandAll {
		all := board.ExpandAll(b.Rows)
		for id := range view.ExpandedSections {
			all.ExpandedSections[id] = struct{}{}
		}
		for id := range view.ExpandedStages {
			all.ExpandedStages[id] = struct{}{}
		}
		all.CollapsedCategories = view.CollapsedCategories
		view = all
	}
	filtered := b.Filter(view)

	out := BoardRows{
		Rows:      make([]RowView, 0, len(filtered)),
		TotalRows: len(b.Rows),
		Segments:  make([]SegmentView, 0, len(b.Layout.Keys())),
	}
	for _, row := range filtered {
		out.Rows = append(out.Rows, MapRow(row))
	}
	for _, key := range b.Layout.Keys() {
		scope, _ := b.Layout.Scope(key)
		out.Segments = append(out.Segments, SegmentView{
			Key:          key,
			SectionID:    scope.SectionID,
			StageID:      scope.StageID,
			Stage:        string(scope.Stage),
			CategoryID:   scope.CategoryID,
			CategoryName: scope.CategoryName,
			Custom:       scope.Custom,
			TaskIDs:      append([]string{}, b.Layout.Segment(key)...),
		})
	}
	return out, nil
}

// ReorderTask moves one task a single step among its siblings.
func (a *AppServiceAdapter) ReorderTask(ctx context.Context, in ReorderRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	taskID, err := requireField("task_id", in.TaskID)
	if err != nil {
		return err
	}
	direction, err := domain.ParseDirection(in.Direction)
	if err != nil {
		return fmt.Errorf("direction %q: %w", in.Direction, errors.Join(ErrInvalidRequest, err))
	}
	return mapAppError("reorder task", a.service.ReorderTask(ctx, taskID, direction))
}

// ApplyOrder replaces the order of one segment.
func (a *AppServiceAdapter) ApplyOrder(ctx context.Context, in ApplyOrderRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	key, err := requireField("segment_key", in.SegmentKey)
	if err != nil {
		return err
	}
	if len(in.TaskIDs) == 0 {
		return fmt.Errorf("task_ids is required: %w", ErrInvalidRequest)
	}
	return mapAppError("apply order", a.service.ApplyOrder(ctx, key, in.TaskIDs))
}

// MoveTask re-scopes one task.
func (a *AppServiceAdapter) MoveTask(ctx context.Context, in MoveTaskRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	taskID, err := requireField("task_id", in.TaskID)
	if err != nil {
		return err
	}
	stage, err := parseStage(in.Stage)
	if err != nil {
		return err
	}
	return mapAppError("move task", a.service.MoveTaskStage(ctx, taskID, stage, strings.TrimSpace(in.CategoryID), in.CategoryName))
}

// AddManualTask creates one manual task.
func (a *AppServiceAdapter) AddManualTask(ctx context.Context, in AddManualTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	name, err := requireField("name", in.Name)
	if err != nil {
		return TaskView{}, err
	}
	stage := domain.StagePlanning
	if strings.TrimSpace(in.Stage) != "" {
		if stage, err = parseStage(in.Stage); err != nil {
			return TaskView{}, err
		}
	}
	task, err := a.service.AddManualTask(ctx, app.AddManualTaskInput{
		SectionID:    strings.TrimSpace(in.SectionID),
		Stage:        stage,
		CategoryID:   strings.TrimSpace(in.CategoryID),
		Name:         name,
		DurationDays: in.DurationDays,
		BudgetAmount: in.BudgetAmount,
		StartDate:    in.StartDate,
		ParentID:     strings.TrimSpace(in.ParentID),
		Assignee:     in.Assignee,
	})
	if err != nil {
		return TaskView{}, mapAppError("add manual task", err)
	}
	return MapManualTask(task), nil
}

// DeleteManualTask deletes one manual task and its subtasks.
func (a *AppServiceAdapter) DeleteManualTask(ctx context.Context, taskID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	taskID, err := requireField("task_id", taskID)
	if err != nil {
		return err
	}
	return mapAppError("delete manual task", a.service.DeleteManualTask(ctx, taskID))
}

// Toggle activates or deactivates one stage or category.
func (a *AppServiceAdapter) Toggle(ctx context.Context, in ToggleRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	sectionID, err := requireField("section_id", in.SectionID)
	if err != nil {
		return err
	}
	stage, err := parseStage(in.Stage)
	if err != nil {
		return err
	}
	if categoryID := strings.TrimSpace(in.CategoryID); categoryID != "" {
		return mapAppError("toggle category", a.service.ToggleCategory(ctx, sectionID, stage, categoryID, in.Enabled))
	}
	return mapAppError("toggle stage", a.service.ToggleStage(ctx, sectionID, stage, in.Enabled))
}

// ListChangeEvents lists the newest ledger entries first.
func (a *AppServiceAdapter) ListChangeEvents(ctx context.Context, limit int) ([]ChangeEventView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	events, err := a.service.ListChangeEvents(ctx, limit)
	if err != nil {
		return nil, mapAppError("list change events", err)
	}
	out := make([]ChangeEventView, 0, len(events))
	for _, event := range events {
		out = append(out, ChangeEventView{
			ID:         event.ID,
			EntityType: event.EntityType,
			EntityID:   event.EntityID,
			Operation:  string(event.Operation),
			SectionID:  event.SectionID,
			Stage:      string(event.Stage),
			ActorID:    event.ActorID,
			ActorType:  string(event.ActorType),
			Metadata:   event.Metadata,
			OccurredAt: event.OccurredAt,
		})
	}
	return out, nil
}

// Subscribe forwards committed service mutations as notifications.
func (a *AppServiceAdapter) Subscribe(fn func(Notification)) func() {
	if a == nil || a.service == nil || fn == nil {
		return func() {}
	}
	return a.service.Subscribe(func(ev app.Event) {
		fn(Notification{
			Operation:  string(ev.Operation),
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			SectionID:  ev.SectionID,
			Stage:      string(ev.Stage),
			OccurredAt: ev.OccurredAt,
		})
	})
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// MapRow flattens one board row for transport.
func MapRow(row board.Row) RowView {
	out := RowView{ID: row.RowID(), Kind: string(row.Kind())}
	switch r := row.(type) {
	case board.SectionRow:
		out.Name = r.Name
		out.SectionID = r.ID
		out.HasData = r.HasData
	case board.StageRow:
		out.Depth = 1
		out.Name = r.Label
		out.SectionID = r.SectionID
		out.StageID = r.ID
		out.Stage = string(r.Stage)
		out.Color = r.Color
		out.Active = r.Active
		out.HasData = r.HasData
		out.TaskCount = r.TaskCount
	case board.CategoryRow:
		out.Depth = 2
		out.Name = r.Name
		out.SectionID = r.SectionID
		out.StageID = r.StageID
		out.Stage = string(r.Stage)
		out.CategoryID = r.CategoryID
		out.Custom = r.Custom
		out.TaskCount = r.TaskCount
	case board.TaskRow:
		out.Depth = taskDepth(r.CategoryID, r.IsSubtask)
		out.Name = r.Name
		out.SectionID = r.SectionID
		out.StageID = r.StageID
		out.Stage = string(r.Stage)
		out.CategoryID = r.CategoryID
		out.TaskID = r.TaskID
		out.ParentID = r.ParentID
		out.Subtask = r.IsSubtask
		out.Completed = r.Completed
		out.Assignee = r.Assignee
		if r.Task != nil {
			out.StartDate = r.Task.StartDate
			out.EndDate = r.Task.EndDate
			out.DurationDays = r.Task.DurationDays
		}
	case board.ManualTaskRow:
		out.Depth = taskDepth(r.CategoryID, r.IsSubtask)
		out.Name = r.Name
		out.SectionID = r.SectionID
		out.StageID = r.StageID
		out.Stage = string(r.Stage)
		out.CategoryID = r.CategoryID
		out.TaskID = r.TaskID
		out.ParentID = r.ParentID
		out.Subtask = r.IsSubtask
		out.Manual = true
		out.Completed = r.Completed
		out.Assignee = r.Assignee
		out.StartDate = r.Task.StartDate
		out.EndDate = r.Task.EndDate
		out.DurationDays = r.Task.DurationDays
		out.BudgetAmount = r.Task.BudgetAmount
	case board.AddPhantomRow:
		out.Depth = 2
		out.SectionID = r.SectionID
		out.StageID = r.StageID
		out.Stage = string(r.Stage)
	case board.AddCategoryPhantomRow:
		out.Depth = 3
		out.SectionID = r.SectionID
		out.StageID = r.StageID
		out.Stage = string(r.Stage)
		out.CategoryID = r.CategoryID
	}
	return out
}

// taskDepth returns the indentation of a task row.
func taskDepth(categoryID string, subtask bool) int {
	depth := 2
	if categoryID != "" {
		depth++
	}
	if subtask {
		depth++
	}
	return depth
}

// MapManualTask converts one manual task for transport.
func MapManualTask(task domain.ManualTask) TaskView {
	return TaskView{
		ID:           task.ID,
		Name:         task.Name,
		Stage:        string(task.Stage()),
		CategoryID:   task.CatalogCategoryID,
		ParentID:     task.ParentID,
		Order:        task.Order,
		StartDate:    task.StartDate,
		EndDate:      task.EndDate,
		DurationDays: task.DurationDays,
		BudgetAmount: task.BudgetAmount,
		Completed:    task.Completed,
		Assignee:     task.Assignee,
	}
}

// requireField trims one required string field.
func requireField(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required: %w", name, ErrInvalidRequest)
	}
	return value, nil
}

// parseStage accepts exact stage codes only; aliases are a storage concern.
func parseStage(raw string) (domain.Stage, error) {
	if !domain.IsKnownStage(raw) {
		return "", fmt.Errorf("stage %q: %w", raw, errors.Join(ErrInvalidRequest, domain.ErrInvalidStage))
	}
	return domain.NormalizeStage(raw), nil
}

// mapAppError maps app, domain and core errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, activation.ErrCategoryNotFound),
		errors.Is(err, drag.ErrTaskNotInSegment):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrOrderMismatch),
		errors.Is(err, app.ErrCatalogCategoryFixed),
		errors.Is(err, app.ErrCategoryStageMismatch),
		errors.Is(err, activation.ErrCascadeUnacknowledged),
		errors.Is(err, activation.ErrStageNotEmpty),
		errors.Is(err, drag.ErrNoMove),
		errors.Is(err, drag.ErrTaskLocked),
		errors.Is(err, drag.ErrInvalidDrop):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrCustomCategoriesDisabled):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidDates),
		errors.Is(err, domain.ErrInvalidBudget),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidParentID),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, activation.ErrInvalidStageKey),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
