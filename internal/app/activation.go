package app

import (
	"context"
	"strings"

	"github.com/evanschultz/stageboard/internal/activation"
	"github.com/evanschultz/stageboard/internal/domain"
)

// NewActivationController returns a controller seeded from b that persists through s.
func (s *Service) NewActivationController(b Board) *activation.Controller {
	return activation.NewController(b.Activation, activationHost{svc: s}, activation.IDGenerator(s.idGen), activation.Clock(s.clock))
}

// ToggleStage explicitly activates or deactivates a stage.
func (s *Service) ToggleStage(ctx context.Context, sectionID string, stage domain.Stage, enabled bool) error {
	return s.withController(ctx, func(c *activation.Controller, _ Board) error {
		return c.ToggleStage(ctx, sectionID, stage, enabled)
	})
}

// ToggleCategory explicitly activates or deactivates a catalog category under a stage.
func (s *Service) ToggleCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, enabled bool) error {
	return s.withController(ctx, func(c *activation.Controller, _ Board) error {
		return c.ToggleCategory(ctx, sectionID, stage, categoryID, enabled)
	})
}

// AddCustomCategory creates a custom category under a stage and returns its id.
func (s *Service) AddCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, name string) (string, error) {
	if !s.supportsCustom {
		return "", ErrCustomCategoriesDisabled
	}
	var id string
	err := s.withController(ctx, func(c *activation.Controller, _ Board) error {
		var err error
		id, err = c.AddCustomCategory(ctx, sectionID, stage, name)
		return err
	})
	return id, err
}

// RenameCustomCategory renames a custom category.
func (s *Service) RenameCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID, name string) error {
	return s.withController(ctx, func(c *activation.Controller, _ Board) error {
		return c.RenameCustomCategory(ctx, sectionID, stage, categoryID, name)
	})
}

// DeleteCustomCategory removes a custom category. Tasks under it are deleted only when
// cascade is set; otherwise a non-empty category is refused.
func (s *Service) DeleteCustomCategory(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, cascade bool) error {
	return s.withController(ctx, func(c *activation.Controller, b Board) error {
		var taskIDs []string
		if cascade {
			taskIDs = b.TaskIDsIn(domain.StageKey(sectionID, stage), categoryID)
		}
		return c.DeleteCustomCategory(ctx, sectionID, stage, categoryID, taskIDs)
	})
}

// RemoveEmptyStage deactivates a fully empty stage.
func (s *Service) RemoveEmptyStage(ctx context.Context, sectionID string, stage domain.Stage) error {
	return s.withController(ctx, func(c *activation.Controller, _ Board) error {
		return c.RemoveEmptyStage(ctx, sectionID, stage)
	})
}

// DeleteStage deactivates a stage and deletes everything under it. A stage holding
// tasks is refused unless cascade is set.
func (s *Service) DeleteStage(ctx context.Context, sectionID string, stage domain.Stage, cascade bool) error {
	return s.withController(ctx, func(c *activation.Controller, b Board) error {
		var taskIDs []string
		if cascade {
			taskIDs = b.TaskIDsIn(domain.StageKey(sectionID, stage), "")
		}
		return c.DeleteStage(ctx, sectionID, stage, taskIDs)
	})
}

// withController runs fn against a controller seeded from the current board.
func (s *Service) withController(ctx context.Context, fn func(*activation.Controller, Board) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	b, err := s.Board(ctx)
	if err != nil {
		return err
	}
	return fn(s.NewActivationController(b), b)
}

// activationHost persists controller changes through the repository.
type activationHost struct {
	svc *Service
}

func (h activationHost) StageToggled(ctx context.Context, sectionID string, stage domain.Stage, enabled bool) error {
	if err := h.svc.repo.SetActivation(ctx, domain.StageKey(sectionID, stage), enabled); err != nil {
		return err
	}
	h.svc.publish(domain.ChangeOperationActivate, domain.EntityActivation, domain.StageKey(sectionID, stage), sectionID, stage)
	return nil
}

func (h activationHost) CategoryToggled(ctx context.Context, sectionID string, stage domain.Stage, categoryID string, enabled bool) error {
	key := domain.CategoryActivationKey(domain.StageKey(sectionID, stage), categoryID)
	if err := h.svc.repo.SetActivation(ctx, key, enabled); err != nil {
		return err
	}
	h.svc.publish(domain.ChangeOperationActivate, domain.EntityActivation, key, sectionID, stage)
	return nil
}

func (h activationHost) CustomCategoryAdded(ctx context.Context, category domain.CustomCategory) error {
	if err := h.svc.repo.CreateCustomCategory(ctx, category); err != nil {
		return err
	}
	h.svc.publish(domain.ChangeOperationCreate, domain.EntityCustomCategory, category.ID, category.SectionID, category.Stage)
	return nil
}

func (h activationHost) CustomCategoryRenamed(ctx context.Context, category domain.CustomCategory) error {
	if err := h.svc.repo.UpdateCustomCategory(ctx, category); err != nil {
		return err
	}
	h.svc.publish(domain.ChangeOperationUpdate, domain.EntityCustomCategory, category.ID, category.SectionID, category.Stage)
	return nil
}

func (h activationHost) CustomCategoryDeleted(ctx context.Context, category domain.CustomCategory, taskIDs []string) error {
	if err := h.svc.repo.ApplyCascade(ctx, Cascade{
		TaskIDs:           taskIDs,
		CustomCategoryIDs: []string{category.ID},
	}); err != nil {
		return err
	}
	h.svc.log.Info("custom category deleted", "category_id", category.ID, "tasks", len(taskIDs))
	h.svc.publish(domain.ChangeOperationDelete, domain.EntityCustomCategory, category.ID, category.SectionID, category.Stage)
	return nil
}

func (h activationHost) EmptyStageRemoved(ctx context.Context, sectionID string, stage domain.Stage, removedCategoryIDs []string) error {
	key := domain.StageKey(sectionID, stage)
	if err := h.svc.repo.ApplyCascade(ctx, Cascade{
		CustomCategoryIDs: removedCategoryIDs,
		DeactivateKeys:    []string{key},
	}); err != nil {
		return err
	}
	h.svc.publish(domain.ChangeOperationActivate, domain.EntityActivation, key, sectionID, stage)
	return nil
}

func (h activationHost) StageDeleted(ctx context.Context, sectionID string, stage domain.Stage, taskIDs []string) error {
	key := domain.StageKey(sectionID, stage)
	cascade := Cascade{TaskIDs: taskIDs}
	activated, err := h.svc.repo.ListActivatedKeys(ctx)
	if err != nil {
		return err
	}
	for _, activeKey := range activated {
		if activeKey == key || strings.HasPrefix(activeKey, key+"/") {
			cascade.DeactivateKeys = append(cascade.DeactivateKeys, activeKey)
		}
	}
	customs, err := h.svc.repo.ListCustomCategories(ctx)
	if err != nil {
		return err
	}
	for _, custom := range customs {
		if custom.StageKey() == key {
			cascade.CustomCategoryIDs = append(cascade.CustomCategoryIDs, custom.ID)
		}
	}
	if err := h.svc.repo.ApplyCascade(ctx, cascade); err != nil {
		return err
	}
	h.svc.log.Info("stage deleted", "stage_key", key, "tasks", len(taskIDs))
	h.svc.publish(domain.ChangeOperationDelete, domain.EntityActivation, key, sectionID, stage)
	return nil
}
