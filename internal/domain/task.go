package domain

import (
	"strings"
	"time"
)

// ManualTask is a user-created task with no catalog binding.
type ManualTask struct {
	ID                string
	Name              string
	Category          string
	StartDate         *time.Time
	EndDate           *time.Time
	DurationDays      int
	BudgetAmount      float64
	Completed         bool
	Assignee          string
	CatalogCategoryID string
	ParentID          string
	Order             int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ManualTaskInput holds the values used to create a manual task.
type ManualTaskInput struct {
	ID                string
	Name              string
	Stage             Stage
	CatalogCategoryID string
	ParentID          string
	DurationDays      int
	BudgetAmount      float64
	StartDate         *time.Time
	Assignee          string
	Order             int
}

// ManualTaskPatch is a partial update; nil fields are left untouched.
type ManualTaskPatch struct {
	Name              *string
	BudgetAmount      *float64
	Assignee          *string
	Completed         *bool
	StartDate         *time.Time
	EndDate           *time.Time
	DurationDays      *int
	Stage             *Stage
	CatalogCategoryID *string
}

// NewManualTask constructs a validated manual task.
func NewManualTask(in ManualTaskInput, now time.Time) (ManualTask, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.CatalogCategoryID = strings.TrimSpace(in.CatalogCategoryID)
	in.ParentID = strings.TrimSpace(in.ParentID)
	in.Assignee = strings.TrimSpace(in.Assignee)

	if in.ID == "" {
		return ManualTask{}, ErrInvalidID
	}
	if in.Name == "" {
		return ManualTask{}, ErrInvalidName
	}
	if in.DurationDays < 1 {
		return ManualTask{}, ErrInvalidDuration
	}
	if in.BudgetAmount < 0 {
		return ManualTask{}, ErrInvalidBudget
	}
	if in.Order < 0 {
		return ManualTask{}, ErrInvalidOrder
	}
	if in.ParentID == in.ID {
		return ManualTask{}, ErrInvalidParentID
	}
	stage := in.Stage
	if stage == "" {
		stage = StagePlanning
	}
	if stage.Index() < 0 {
		return ManualTask{}, ErrInvalidStage
	}

	start := in.StartDate
	if start == nil {
		start = &now
	}
	start = normalizeDate(start)
	end := EndFromDuration(*start, in.DurationDays)

	return ManualTask{
		ID:                in.ID,
		Name:              in.Name,
		Category:          string(stage),
		StartDate:         start,
		EndDate:           &end,
		DurationDays:      in.DurationDays,
		BudgetAmount:      in.BudgetAmount,
		Assignee:          in.Assignee,
		CatalogCategoryID: in.CatalogCategoryID,
		ParentID:          in.ParentID,
		Order:             in.Order,
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}, nil
}

// Stage returns the normalized stage of the task.
func (t ManualTask) Stage() Stage {
	return NormalizeStage(t.Category)
}

// Move re-scopes the task to another stage and category.
func (t *ManualTask) Move(stage Stage, catalogCategoryID string, now time.Time) error {
	if stage.Index() < 0 {
		return ErrInvalidStage
	}
	t.Category = string(stage)
	t.CatalogCategoryID = strings.TrimSpace(catalogCategoryID)
	t.UpdatedAt = now.UTC()
	return nil
}

// SetOrder sets the sibling order of the task.
func (t *ManualTask) SetOrder(order int, now time.Time) error {
	if order < 0 {
		return ErrInvalidOrder
	}
	t.Order = order
	t.UpdatedAt = now.UTC()
	return nil
}

// ApplyPatch applies a partial update.
func (t *ManualTask) ApplyPatch(p ManualTaskPatch, now time.Time) error {
	next := *t
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrInvalidName
		}
		next.Name = name
	}
	if p.BudgetAmount != nil {
		if *p.BudgetAmount < 0 {
			return ErrInvalidBudget
		}
		next.BudgetAmount = *p.BudgetAmount
	}
	if p.Assignee != nil {
		next.Assignee = strings.TrimSpace(*p.Assignee)
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	if p.Stage != nil {
		if p.Stage.Index() < 0 {
			return ErrInvalidStage
		}
		next.Category = string(*p.Stage)
	}
	if p.CatalogCategoryID != nil {
		next.CatalogCategoryID = strings.TrimSpace(*p.CatalogCategoryID)
	}
	if err := next.applyDatePatch(p); err != nil {
		return err
	}
	next.UpdatedAt = now.UTC()
	*t = next
	return nil
}

// applyDatePatch resolves start, end and duration so the three stay consistent.
func (t *ManualTask) applyDatePatch(p ManualTaskPatch) error {
	if p.DurationDays != nil && *p.DurationDays < 1 {
		return ErrInvalidDuration
	}
	if p.StartDate != nil {
		t.StartDate = normalizeDate(p.StartDate)
	}
	switch {
	case p.EndDate != nil:
		t.EndDate = normalizeDate(p.EndDate)
	case p.DurationDays != nil && t.StartDate != nil:
		end := EndFromDuration(*t.StartDate, *p.DurationDays)
		t.EndDate = &end
	case p.StartDate != nil && t.DurationDays > 0:
		end := EndFromDuration(*t.StartDate, t.DurationDays)
		t.EndDate = &end
	}
	if t.StartDate != nil && t.EndDate != nil {
		if t.EndDate.Before(*t.StartDate) {
			return ErrInvalidDates
		}
		t.DurationDays = daysBetween(*t.StartDate, *t.EndDate)
	} else if p.DurationDays != nil {
		t.DurationDays = *p.DurationDays
	}
	return nil
}
