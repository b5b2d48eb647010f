package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/stageboard/internal/activation"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/drag"
)

// Logger is the structured logger the service reports to. *log.Logger satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	SupportsCustomCategories bool
	Logger                   Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements the board operations over a repository.
type Service struct {
	repo           Repository
	idGen          IDGenerator
	clock          Clock
	supportsCustom bool
	log            Logger
	events         *broker
	// writeMu serializes read-modify-write sequences such as order assignment.
	writeMu sync.Mutex
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Service{
		repo:           repo,
		idGen:          idGen,
		clock:          clock,
		supportsCustom: cfg.SupportsCustomCategories,
		log:            cfg.Logger,
		events:         newBroker(),
	}
}

// SupportsCustomCategories reports whether custom categories are enabled.
func (s *Service) SupportsCustomCategories() bool {
	return s.supportsCustom
}

// CreateSection creates a section at the end of the section list.
func (s *Service) CreateSection(ctx context.Context, name string) (domain.Section, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return domain.Section{}, err
	}
	section, err := domain.NewSection(s.idGen(), name, len(sections), s.clock())
	if err != nil {
		return domain.Section{}, err
	}
	if err := s.repo.CreateSection(ctx, section); err != nil {
		return domain.Section{}, err
	}
	s.publish(domain.ChangeOperationCreate, domain.EntitySection, section.ID, section.ID, "")
	return section, nil
}

// SetSectionActive shows or hides a section that holds no data.
func (s *Service) SetSectionActive(ctx context.Context, sectionID string, active bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	section, err := s.repo.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if section.Active == active {
		return nil
	}
	section.Active = active
	section.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateSection(ctx, section); err != nil {
		return err
	}
	s.publish(domain.ChangeOperationActivate, domain.EntitySection, section.ID, section.ID, "")
	return nil
}

// CreateCatalogCategory appends a catalog category to a section.
func (s *Service) CreateCatalogCategory(ctx context.Context, sectionID, name string) (domain.CatalogCategory, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	section, err := s.repo.GetSection(ctx, sectionID)
	if err != nil {
		return domain.CatalogCategory{}, err
	}
	category, err := domain.NewCatalogCategory(s.idGen(), section.ID, name, len(section.Categories), s.clock())
	if err != nil {
		return domain.CatalogCategory{}, err
	}
	if err := s.repo.CreateCatalogCategory(ctx, category); err != nil {
		return domain.CatalogCategory{}, err
	}
	s.publish(domain.ChangeOperationStructure, domain.EntityCategory, category.ID, section.ID, "")
	return category, nil
}

// CreateCatalogItem appends an unscheduled item to a catalog category.
func (s *Service) CreateCatalogItem(ctx context.Context, categoryID, name string) (domain.CatalogItem, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	category, _, err := s.findCatalogCategory(ctx, categoryID)
	if err != nil {
		return domain.CatalogItem{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CatalogItem{}, domain.ErrInvalidName
	}
	item := domain.CatalogItem{
		ID:         s.idGen(),
		CategoryID: category.ID,
		Name:       name,
		Order:      len(category.ItemIDs),
	}
	if strings.TrimSpace(item.ID) == "" {
		return domain.CatalogItem{}, domain.ErrInvalidID
	}
	if err := s.repo.CreateCatalogItem(ctx, item); err != nil {
		return domain.CatalogItem{}, err
	}
	s.publish(domain.ChangeOperationCreate, domain.EntityCatalogItem, item.ID, category.SectionID, "")
	return item, nil
}

// ScheduleItemInput holds input values for schedule item operations.
type ScheduleItemInput struct {
	ItemID       string
	Stage        domain.Stage
	StartDate    *time.Time
	DurationDays int
	Assignee     string
}

// ScheduleItem binds a scheduling task to a catalog item, or reschedules the bound one.
func (s *Service) ScheduleItem(ctx context.Context, in ScheduleItemInput) (domain.ScheduledTask, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if in.Stage == "" {
		in.Stage = domain.StagePlanning
	}
	if in.Stage.Index() < 0 {
		return domain.ScheduledTask{}, domain.ErrInvalidStage
	}
	if in.DurationDays < 1 {
		in.DurationDays = 1
	}
	items, err := s.repo.ListCatalogItems(ctx)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	idx := slices.IndexFunc(items, func(item domain.CatalogItem) bool { return item.ID == in.ItemID })
	if idx < 0 {
		return domain.ScheduledTask{}, fmt.Errorf("catalog item %q: %w", in.ItemID, ErrNotFound)
	}
	item := items[idx]
	now := s.clock()
	task := domain.ScheduledTask{ID: s.idGen(), ItemID: item.ID}
	if item.Task != nil {
		task = *item.Task
	}
	if strings.TrimSpace(task.ID) == "" {
		return domain.ScheduledTask{}, domain.ErrInvalidID
	}
	task.Assignee = strings.TrimSpace(in.Assignee)
	if item.Task == nil || item.StageOf() != in.Stage {
		manual, err := s.repo.ListManualTasks(ctx)
		if err != nil {
			return domain.ScheduledTask{}, err
		}
		task.Order = nextSegmentOrder(items, manual, in.Stage, item.CategoryID, task.ID)
	}
	task.Move(in.Stage, now)
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	end := domain.EndFromDuration(start, in.DurationDays)
	if err := task.SetDates(&start, &end, now); err != nil {
		return domain.ScheduledTask{}, err
	}
	if err := s.repo.UpsertScheduledTask(ctx, task); err != nil {
		return domain.ScheduledTask{}, err
	}
	s.publish(domain.ChangeOperationCreate, domain.EntityScheduledTask, task.ID, "", in.Stage)
	return task, nil
}

// Board loads the domain data and builds the full row model.
func (s *Service) Board(ctx context.Context) (Board, error) {
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return Board{}, err
	}
	items, err := s.repo.ListCatalogItems(ctx)
	if err != nil {
		return Board{}, err
	}
	manual, err := s.repo.ListManualTasks(ctx)
	if err != nil {
		return Board{}, err
	}
	customs, err := s.repo.ListCustomCategories(ctx)
	if err != nil {
		return Board{}, err
	}
	activated, err := s.repo.ListActivatedKeys(ctx)
	if err != nil {
		return Board{}, err
	}
	return newBoard(sections, items, manual, customs, activated, s.supportsCustom), nil
}

// ReorderTask moves a task one position within its segment.
func (s *Service) ReorderTask(ctx context.Context, taskID string, direction domain.Direction) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	b, err := s.Board(ctx)
	if err != nil {
		return err
	}
	key, ok := b.Layout.SegmentOf(taskID)
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	ids := b.Layout.Segment(key)
	from := slices.Index(ids, taskID)
	to := from + direction.Delta()
	if to < 0 || to >= len(ids) {
		return drag.ErrNoMove
	}
	ids[from], ids[to] = ids[to], ids[from]
	return s.applyOrder(ctx, b, key, ids)
}

// ApplyOrder persists the full order of one segment in a single batch.
func (s *Service) ApplyOrder(ctx context.Context, segmentKey string, taskIDs []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	b, err := s.Board(ctx)
	if err != nil {
		return err
	}
	return s.applyOrder(ctx, b, segmentKey, taskIDs)
}

func (s *Service) applyOrder(ctx context.Context, b Board, key string, taskIDs []string) error {
	scope, ok := b.Layout.Scope(key)
	if !ok {
		return fmt.Errorf("segment %q: %w", key, ErrNotFound)
	}
	current := b.Layout.Segment(key)
	if _, ok := b.Layout.WithOrder(key, taskIDs); !ok {
		return fmt.Errorf("%w: segment %q holds %v", ErrOrderMismatch, key, current)
	}
	orders := make([]TaskOrder, 0, len(taskIDs))
	for idx, id := range taskIDs {
		orders = append(orders, TaskOrder{TaskID: id, Manual: b.Layout.IsManual(id), Order: idx})
	}
	if err := s.repo.UpdateTaskOrders(ctx, key, orders); err != nil {
		return err
	}
	s.log.Debug("segment reordered", "segment", key, "tasks", len(orders))
	s.publish(domain.ChangeOperationReorder, domain.EntitySegment, key, scope.SectionID, scope.Stage)
	return nil
}

// MoveTaskStage re-scopes a task. Manual tasks may change stage and category; catalog
// tasks only change stage. A blank categoryID with a categoryName resolves the category
// by name within the target stage.
func (s *Service) MoveTaskStage(ctx context.Context, taskID string, stage domain.Stage, categoryID string, categoryName *string) error {
	if stage.Index() < 0 {
		return domain.ErrInvalidStage
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	categoryID = strings.TrimSpace(categoryID)

	manual, err := s.repo.GetManualTask(ctx, taskID)
	switch {
	case err == nil:
		if categoryID == "" && categoryName != nil && strings.TrimSpace(*categoryName) != "" {
			categoryID, err = s.findCategoryByName(ctx, stage, *categoryName)
			if err != nil {
				return err
			}
		}
		if categoryID != "" {
			if err := s.ensureCategory(ctx, categoryID, stage); err != nil {
				return err
			}
		}
		next, err := s.nextOrder(ctx, stage, categoryID, manual.ID)
		if err != nil {
			return err
		}
		now := s.clock()
		if err := manual.Move(stage, categoryID, now); err != nil {
			return err
		}
		if err := manual.SetOrder(next, now); err != nil {
			return err
		}
		if err := s.repo.UpdateManualTask(ctx, manual); err != nil {
			return err
		}
		s.log.Debug("manual task moved", "task_id", manual.ID, "stage", stage, "category_id", categoryID)
		s.publish(domain.ChangeOperationMove, domain.EntityManualTask, manual.ID, "", stage)
		return nil
	case !errors.Is(err, ErrNotFound):
		return err
	}

	task, err := s.repo.GetScheduledTask(ctx, taskID)
	if err != nil {
		return err
	}
	items, err := s.repo.ListCatalogItems(ctx)
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(items, func(item domain.CatalogItem) bool { return item.ID == task.ItemID })
	if idx < 0 {
		return fmt.Errorf("catalog item %q: %w", task.ItemID, ErrNotFound)
	}
	item := items[idx]
	if categoryID != "" && categoryID != item.CategoryID {
		return ErrCatalogCategoryFixed
	}
	if domain.NormalizeStage(task.Stage) == stage {
		return nil
	}
	manualTasks, err := s.repo.ListManualTasks(ctx)
	if err != nil {
		return err
	}
	task.Order = nextSegmentOrder(items, manualTasks, stage, item.CategoryID, task.ID)
	task.Move(stage, s.clock())
	if err := s.repo.UpsertScheduledTask(ctx, task); err != nil {
		return err
	}
	s.log.Debug("catalog task moved", "task_id", task.ID, "stage", stage)
	s.publish(domain.ChangeOperationMove, domain.EntityScheduledTask, task.ID, "", stage)
	return nil
}

// PatchManualTask applies a partial update to a manual task. A stage change that leaves
// the task in another stage's custom category drops the category. Any change of stage or
// category appends the task to the end of its new segment.
func (s *Service) PatchManualTask(ctx context.Context, taskID string, patch domain.ManualTaskPatch) (domain.ManualTask, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, err := s.repo.GetManualTask(ctx, taskID)
	if err != nil {
		return domain.ManualTask{}, err
	}
	before := task
	now := s.clock()
	if err := task.ApplyPatch(patch, now); err != nil {
		return domain.ManualTask{}, err
	}
	stageChanged := task.Stage() != before.Stage()
	if task.CatalogCategoryID != "" && (patch.CatalogCategoryID != nil || stageChanged) {
		err := s.ensureCategory(ctx, task.CatalogCategoryID, task.Stage())
		switch {
		case err == nil:
		case patch.CatalogCategoryID == nil && errors.Is(err, ErrCategoryStageMismatch):
			task.CatalogCategoryID = ""
		case patch.CatalogCategoryID == nil && errors.Is(err, ErrNotFound):
		default:
			return domain.ManualTask{}, err
		}
	}
	if stageChanged || task.CatalogCategoryID != before.CatalogCategoryID {
		next, err := s.nextOrder(ctx, task.Stage(), task.CatalogCategoryID, task.ID)
		if err != nil {
			return domain.ManualTask{}, err
		}
		if err := task.SetOrder(next, now); err != nil {
			return domain.ManualTask{}, err
		}
	}
	if err := s.repo.UpdateManualTask(ctx, task); err != nil {
		return domain.ManualTask{}, err
	}
	s.publish(domain.ChangeOperationUpdate, domain.EntityManualTask, task.ID, "", task.Stage())
	return task, nil
}

// UpdateTaskDates reschedules a manual or catalog task.
func (s *Service) UpdateTaskDates(ctx context.Context, taskID string, start, end *time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	manual, err := s.repo.GetManualTask(ctx, taskID)
	if err == nil {
		if err := manual.ApplyPatch(domain.ManualTaskPatch{StartDate: start, EndDate: end}, s.clock()); err != nil {
			return err
		}
		if err := s.repo.UpdateManualTask(ctx, manual); err != nil {
			return err
		}
		s.publish(domain.ChangeOperationUpdate, domain.EntityManualTask, manual.ID, "", manual.Stage())
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	task, err := s.repo.GetScheduledTask(ctx, taskID)
	if err != nil {
		return err
	}
	if start == nil {
		start = task.StartDate
	}
	if end == nil {
		end = task.EndDate
	}
	if err := task.SetDates(start, end, s.clock()); err != nil {
		return err
	}
	if err := s.repo.UpsertScheduledTask(ctx, task); err != nil {
		return err
	}
	s.publish(domain.ChangeOperationUpdate, domain.EntityScheduledTask, task.ID, "", domain.NormalizeStage(task.Stage))
	return nil
}

// AddManualTaskInput holds input values for add manual task operations.
type AddManualTaskInput struct {
	SectionID    string
	Stage        domain.Stage
	CategoryID   string
	Name         string
	DurationDays int
	BudgetAmount float64
	StartDate    *time.Time
	ParentID     string
	Assignee     string
}

// AddManualTask creates a manual task at the end of its stage and category.
func (s *Service) AddManualTask(ctx context.Context, in AddManualTaskInput) (domain.ManualTask, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if strings.TrimSpace(in.SectionID) != "" {
		if _, err := s.repo.GetSection(ctx, in.SectionID); err != nil {
			return domain.ManualTask{}, err
		}
	}
	if in.Stage == "" {
		in.Stage = domain.StagePlanning
	}
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if in.CategoryID != "" {
		if err := s.ensureCategory(ctx, in.CategoryID, in.Stage); err != nil {
			return domain.ManualTask{}, err
		}
	}
	if in.DurationDays == 0 {
		in.DurationDays = 1
	}
	if err := s.ensureParent(ctx, in.ParentID); err != nil {
		return domain.ManualTask{}, err
	}
	next, err := s.nextOrder(ctx, in.Stage, in.CategoryID, "")
	if err != nil {
		return domain.ManualTask{}, err
	}
	task, err := domain.NewManualTask(domain.ManualTaskInput{
		ID:                s.idGen(),
		Name:              in.Name,
		Stage:             in.Stage,
		CatalogCategoryID: in.CategoryID,
		ParentID:          in.ParentID,
		DurationDays:      in.DurationDays,
		BudgetAmount:      in.BudgetAmount,
		StartDate:         in.StartDate,
		Assignee:          in.Assignee,
		Order:             next,
	}, s.clock())
	if err != nil {
		return domain.ManualTask{}, err
	}
	if err := s.repo.CreateManualTask(ctx, task); err != nil {
		return domain.ManualTask{}, err
	}
	s.log.Debug("manual task created", "task_id", task.ID, "stage", in.Stage)
	s.publish(domain.ChangeOperationCreate, domain.EntityManualTask, task.ID, in.SectionID, in.Stage)
	return task, nil
}

// DeleteManualTask deletes a manual task and its subtasks.
func (s *Service) DeleteManualTask(ctx context.Context, taskID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, err := s.repo.GetManualTask(ctx, taskID)
	if err != nil {
		return err
	}
	tasks, err := s.repo.ListManualTasks(ctx)
	if err != nil {
		return err
	}
	ids := []string{task.ID}
	for _, other := range tasks {
		if other.ParentID == task.ID {
			ids = append(ids, other.ID)
		}
	}
	if err := s.repo.DeleteTasks(ctx, ids); err != nil {
		return err
	}
	s.publish(domain.ChangeOperationDelete, domain.EntityManualTask, task.ID, "", task.Stage())
	return nil
}

// DuplicateManualTask copies a manual task to the end of its segment.
func (s *Service) DuplicateManualTask(ctx context.Context, taskID string) (domain.ManualTask, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	source, err := s.repo.GetManualTask(ctx, taskID)
	if err != nil {
		return domain.ManualTask{}, err
	}
	next, err := s.nextOrder(ctx, source.Stage(), source.CatalogCategoryID, "")
	if err != nil {
		return domain.ManualTask{}, err
	}
	now := s.clock()
	dup := source
	dup.ID = s.idGen()
	if strings.TrimSpace(dup.ID) == "" {
		return domain.ManualTask{}, domain.ErrInvalidID
	}
	dup.Name = source.Name + " (copia)"
	dup.Completed = false
	dup.Order = next
	dup.CreatedAt = now.UTC()
	dup.UpdatedAt = now.UTC()
	if err := s.repo.CreateManualTask(ctx, dup); err != nil {
		return domain.ManualTask{}, err
	}
	s.publish(domain.ChangeOperationCreate, domain.EntityManualTask, dup.ID, "", dup.Stage())
	return dup, nil
}

// MoveCategory moves a catalog category one position among its siblings. Every sibling
// order is reassigned in one batch.
func (s *Service) MoveCategory(ctx context.Context, sectionID, categoryID string, direction domain.Direction) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	section, err := s.repo.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	categories := section.SortedCategories()
	from := slices.IndexFunc(categories, func(c domain.CatalogCategory) bool { return c.ID == categoryID })
	if from < 0 {
		return fmt.Errorf("category %q: %w", categoryID, ErrNotFound)
	}
	to := from + direction.Delta()
	if to < 0 || to >= len(categories) {
		return drag.ErrNoMove
	}
	categories[from], categories[to] = categories[to], categories[from]
	now := s.clock()
	for idx := range categories {
		if err := categories[idx].SetOrder(idx, now); err != nil {
			return err
		}
	}
	if err := s.repo.UpdateCatalogCategoryOrders(ctx, section.ID, categories); err != nil {
		return err
	}
	s.publish(domain.ChangeOperationReorder, domain.EntityCategory, categoryID, section.ID, "")
	return nil
}

// ListChangeEvents lists recent ledger entries, newest first.
func (s *Service) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	return s.repo.ListChangeEvents(ctx, limit)
}

// findCatalogCategory looks a catalog category up across sections.
func (s *Service) findCatalogCategory(ctx context.Context, categoryID string) (domain.CatalogCategory, domain.Section, error) {
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return domain.CatalogCategory{}, domain.Section{}, err
	}
	for _, section := range sections {
		if category, ok := section.CategoryByID(categoryID); ok {
			return category, section, nil
		}
	}
	return domain.CatalogCategory{}, domain.Section{}, fmt.Errorf("catalog category %q: %w", categoryID, ErrNotFound)
}

// ensureCategory checks that id names a catalog category or a custom category of stage.
func (s *Service) ensureCategory(ctx context.Context, id string, stage domain.Stage) error {
	id = strings.TrimSpace(id)
	if _, _, err := s.findCatalogCategory(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	customs, err := s.repo.ListCustomCategories(ctx)
	if err != nil {
		return err
	}
	for _, custom := range customs {
		if custom.ID != id {
			continue
		}
		if custom.Stage != stage {
			return fmt.Errorf("custom category %q under %s: %w", id, custom.Stage, ErrCategoryStageMismatch)
		}
		return nil
	}
	return fmt.Errorf("category %q: %w", id, ErrNotFound)
}

// findCategoryByName resolves a category name within stage: custom categories of the
// stage first, then catalog categories. The first match in display order wins.
func (s *Service) findCategoryByName(ctx context.Context, stage domain.Stage, name string) (string, error) {
	name = strings.TrimSpace(name)
	customs, err := s.repo.ListCustomCategories(ctx)
	if err != nil {
		return "", err
	}
	slices.SortStableFunc(customs, func(a, b domain.CustomCategory) int { return a.Order - b.Order })
	for _, custom := range customs {
		if custom.Stage == stage && strings.EqualFold(custom.Name, name) {
			return custom.ID, nil
		}
	}
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return "", err
	}
	for _, section := range sections {
		for _, category := range section.SortedCategories() {
			if strings.EqualFold(category.Name, name) || strings.EqualFold(activation.FormatCategoryName(category.Name), name) {
				return category.ID, nil
			}
		}
	}
	return "", fmt.Errorf("category named %q: %w", name, ErrNotFound)
}

// ensureParent checks that parentID names a task that is not itself a subtask.
func (s *Service) ensureParent(ctx context.Context, parentID string) error {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil
	}
	parent, err := s.repo.GetManualTask(ctx, parentID)
	if err == nil {
		if parent.ParentID != "" {
			return domain.ErrInvalidParentID
		}
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	task, err := s.repo.GetScheduledTask(ctx, parentID)
	if errors.Is(err, ErrNotFound) {
		return domain.ErrInvalidParentID
	}
	if err != nil {
		return err
	}
	if task.ParentID != "" {
		return domain.ErrInvalidParentID
	}
	return nil
}

// nextOrder returns the order after the last task of the (stage, category) segment.
func (s *Service) nextOrder(ctx context.Context, stage domain.Stage, categoryID, exceptID string) (int, error) {
	manual, err := s.repo.ListManualTasks(ctx)
	if err != nil {
		return 0, err
	}
	var items []domain.CatalogItem
	if categoryID != "" {
		if items, err = s.repo.ListCatalogItems(ctx); err != nil {
			return 0, err
		}
	}
	return nextSegmentOrder(items, manual, stage, categoryID, exceptID), nil
}

// nextSegmentOrder returns the order after the last catalog or manual sibling.
func nextSegmentOrder(items []domain.CatalogItem, manual []domain.ManualTask, stage domain.Stage, categoryID, exceptID string) int {
	next := nextManualOrder(manual, stage, categoryID, exceptID)
	if categoryID == "" {
		return next
	}
	return max(next, nextScheduledOrder(items, categoryID, stage, exceptID))
}

// nextManualOrder returns the order after the last manual sibling in (stage, category).
func nextManualOrder(tasks []domain.ManualTask, stage domain.Stage, categoryID, exceptID string) int {
	next := 0
	for _, task := range tasks {
		if task.ID == exceptID || task.Stage() != stage || task.CatalogCategoryID != categoryID {
			continue
		}
		if task.Order >= next {
			next = task.Order + 1
		}
	}
	return next
}

// nextScheduledOrder returns the order after the last scheduled sibling in (category, stage).
func nextScheduledOrder(items []domain.CatalogItem, categoryID string, stage domain.Stage, exceptID string) int {
	next := 0
	for _, item := range items {
		if item.Task == nil || item.CategoryID != categoryID || item.Task.ID == exceptID || item.StageOf() != stage {
			continue
		}
		if item.Task.Order >= next {
			next = item.Task.Order + 1
		}
	}
	return next
}
