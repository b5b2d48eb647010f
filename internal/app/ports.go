package app

import (
	"context"

	"github.com/evanschultz/stageboard/internal/domain"
)

// Repository persists the board. Every mutation also records a change event.
type Repository interface {
	CreateSection(context.Context, domain.Section) error
	UpdateSection(context.Context, domain.Section) error
	GetSection(context.Context, string) (domain.Section, error)
	// ListSections returns sections by position with their categories and item ids.
	ListSections(context.Context) ([]domain.Section, error)

	CreateCatalogCategory(context.Context, domain.CatalogCategory) error
	// UpdateCatalogCategoryOrders rewrites the order of every given category in one
	// transaction.
	UpdateCatalogCategoryOrders(context.Context, string, []domain.CatalogCategory) error

	CreateCatalogItem(context.Context, domain.CatalogItem) error
	// ListCatalogItems returns every item with its bound task, if any.
	ListCatalogItems(context.Context) ([]domain.CatalogItem, error)
	GetScheduledTask(context.Context, string) (domain.ScheduledTask, error)
	UpsertScheduledTask(context.Context, domain.ScheduledTask) error

	CreateManualTask(context.Context, domain.ManualTask) error
	UpdateManualTask(context.Context, domain.ManualTask) error
	GetManualTask(context.Context, string) (domain.ManualTask, error)
	ListManualTasks(context.Context) ([]domain.ManualTask, error)
	// DeleteTasks removes manual and scheduled tasks by id in one transaction.
	DeleteTasks(context.Context, []string) error
	// UpdateTaskOrders rewrites the sibling orders of one segment in one transaction.
	UpdateTaskOrders(context.Context, string, []TaskOrder) error
	// ApplyCascade applies one activation cascade in one transaction.
	ApplyCascade(context.Context, Cascade) error

	CreateCustomCategory(context.Context, domain.CustomCategory) error
	UpdateCustomCategory(context.Context, domain.CustomCategory) error
	DeleteCustomCategory(context.Context, string) error
	ListCustomCategories(context.Context) ([]domain.CustomCategory, error)

	SetActivation(context.Context, string, bool) error
	ListActivatedKeys(context.Context) ([]string, error)

	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// Cascade lists everything one activation cascade removes. Tasks go first, then custom
// categories, then activation keys.
type Cascade struct {
	TaskIDs           []string
	CustomCategoryIDs []string
	DeactivateKeys    []string
}

// TaskOrder assigns one sibling order.
type TaskOrder struct {
	TaskID string
	Manual bool
	Order  int
}
