package activation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/optimistic"
)

// Host persists activation mutations. Each method is called once per effective change
// and a returned error rolls the change back.
type Host interface {
	StageToggled(ctx context.Context, sectionID string, stage domain.Stage, enabled bool) error
	CategoryToggled(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, enabled bool) error
	CustomCategoryAdded(ctx context.Context, category domain.CustomCategory) error
	CustomCategoryRenamed(ctx context.Context, category domain.CustomCategory) error
	CustomCategoryDeleted(ctx context.Context, category domain.CustomCategory, taskIDs []string) error
	EmptyStageRemoved(ctx context.Context, sectionID string, stage domain.Stage, removedCategoryIDs []string) error
	StageDeleted(ctx context.Context, sectionID string, stage domain.Stage, taskIDs []string) error
}

// IDGenerator returns a new unique custom category id.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Controller holds the current activation state and reports changes to its host.
type Controller struct {
	state *optimistic.Value[State]
	host  Host
	newID IDGenerator
	clock Clock
}

// NewController returns a controller over initial.
func NewController(initial State, host Host, newID IDGenerator, clock Clock) *Controller {
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		state: optimistic.New(initial),
		host:  host,
		newID: newID,
		clock: clock,
	}
}

// State returns the visible state.
func (c *Controller) State() State {
	return c.state.Get()
}

// Refresh replaces the confirmed state after the host reloads its data.
func (c *Controller) Refresh(next State) {
	c.state.Reset(next)
}

// commit applies patch optimistically and settles it with persist.
func (c *Controller) commit(ctx context.Context, patch optimistic.Patch[State], persist func(context.Context) error) error {
	return c.state.Apply(patch).Commit(ctx, persist)
}

// ToggleStage explicitly activates or deactivates a stage. Deactivating a stage that
// holds data or owns non-empty custom categories is a no-op.
func (c *Controller) ToggleStage(ctx context.Context, sectionID string, stage domain.Stage, enabled bool) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	current := c.state.Get()
	if current.IsExplicitlyActive(key) == enabled {
		return nil
	}
	if !enabled && !current.CanDeactivate(key) {
		return nil
	}
	return c.commit(ctx, func(s State) State {
		return s.withActivated(key, enabled)
	}, func(ctx context.Context) error {
		return c.host.StageToggled(ctx, sectionID, stage, enabled)
	})
}

// ToggleCategory explicitly activates or deactivates a catalog category under a stage.
// Deactivating a category that holds tasks is a no-op.
func (c *Controller) ToggleCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, enabled bool) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return domain.ErrInvalidID
	}
	activationKey := domain.CategoryActivationKey(key, categoryID)
	current := c.state.Get()
	if current.IsExplicitlyActive(activationKey) == enabled {
		return nil
	}
	if !enabled && current.CategoryTaskCount(key, categoryID) > 0 {
		return nil
	}
	return c.commit(ctx, func(s State) State {
		return s.withActivated(activationKey, enabled)
	}, func(ctx context.Context) error {
		return c.host.CategoryToggled(ctx, sectionID, stage, categoryID, enabled)
	})
}

// AddCustomCategory creates a custom category and returns its id. Names are trimmed and
// may repeat within a stage.
func (c *Controller) AddCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, name string) (string, error) {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return "", err
	}
	order := len(c.state.Get().CustomCategories(key))
	category, err := domain.NewCustomCategory(c.newID(), sectionID, stage, name, order, c.clock())
	if err != nil {
		return "", err
	}
	err = c.commit(ctx, func(s State) State {
		return s.withCustom(key, category)
	}, func(ctx context.Context) error {
		return c.host.CustomCategoryAdded(ctx, category)
	})
	if err != nil {
		return "", fmt.Errorf("add custom category: %w", err)
	}
	return category.ID, nil
}

// RenameCustomCategory renames a custom category.
func (c *Controller) RenameCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID, name string) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	category, ok := c.state.Get().CustomCategory(key, categoryID)
	if !ok {
		return ErrCategoryNotFound
	}
	if strings.TrimSpace(name) == category.Name {
		return nil
	}
	if err := category.Rename(name, c.clock()); err != nil {
		return err
	}
	return c.commit(ctx, func(s State) State {
		return s.withCustom(key, category)
	}, func(ctx context.Context) error {
		return c.host.CustomCategoryRenamed(ctx, category)
	})
}

// DeleteCustomCategory removes a custom category. When it owns tasks the caller must
// pass their ids to acknowledge the cascade.
func (c *Controller) DeleteCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, taskIDs []string) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	current := c.state.Get()
	category, ok := current.CustomCategory(key, categoryID)
	if !ok {
		return ErrCategoryNotFound
	}
	if current.CategoryTaskCount(key, categoryID) > 0 && len(taskIDs) == 0 {
		return ErrCascadeUnacknowledged
	}
	return c.commit(ctx, func(s State) State {
		return s.withoutCustom(key, func(other domain.CustomCategory) bool { return other.ID != categoryID })
	}, func(ctx context.Context) error {
		return c.host.CustomCategoryDeleted(ctx, category, taskIDs)
	})
}

// RemoveEmptyStage deactivates a fully empty stage and drops its custom categories.
func (c *Controller) RemoveEmptyStage(ctx context.Context, sectionID string, stage domain.Stage) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	current := c.state.Get()
	if !current.CanDeactivate(key) {
		return ErrStageNotEmpty
	}
	removed := make([]string, 0, len(current.customs[key]))
	for _, category := range current.customs[key] {
		removed = append(removed, category.ID)
	}
	if !current.IsExplicitlyActive(key) && len(removed) == 0 {
		return nil
	}
	return c.commit(ctx, func(s State) State {
		return s.withActivated(key, false).withoutCustom(key, func(domain.CustomCategory) bool { return false })
	}, func(ctx context.Context) error {
		return c.host.EmptyStageRemoved(ctx, sectionID, stage, removed)
	})
}

// DeleteStage deactivates a stage and drops everything under it. When it holds tasks
// the caller must pass their ids to acknowledge the cascade.
func (c *Controller) DeleteStage(ctx context.Context, sectionID string, stage domain.Stage, taskIDs []string) error {
	key, err := stageKey(sectionID, stage)
	if err != nil {
		return err
	}
	if c.state.Get().HasData(key) && len(taskIDs) == 0 {
		return ErrCascadeUnacknowledged
	}
	return c.commit(ctx, func(s State) State {
		return s.withoutStage(key)
	}, func(ctx context.Context) error {
		return c.host.StageDeleted(ctx, sectionID, stage, taskIDs)
	})
}

func stageKey(sectionID string, stage domain.Stage) (string, error) {
	sectionID = strings.TrimSpace(sectionID)
	if sectionID == "" {
		return "", ErrInvalidStageKey
	}
	if stage.Index() < 0 {
		return "", domain.ErrInvalidStage
	}
	return domain.StageKey(sectionID, stage), nil
}
