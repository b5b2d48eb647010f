package domain

import (
	"strings"
	"time"
)

// CustomCategory is a scheduler-local category scoped to one (section, stage).
// Names are not unique within a scope; the id is the only identity.
type CustomCategory struct {
	ID        string
	SectionID string
	Stage     Stage
	Name      string
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCustomCategory constructs a validated custom category.
func NewCustomCategory(id, sectionID string, stage Stage, name string, order int, now time.Time) (CustomCategory, error) {
	id = strings.TrimSpace(id)
	sectionID = strings.TrimSpace(sectionID)
	name = strings.TrimSpace(name)
	if id == "" || sectionID == "" {
		return CustomCategory{}, ErrInvalidID
	}
	if stage.Index() < 0 {
		return CustomCategory{}, ErrInvalidStage
	}
	if name == "" {
		return CustomCategory{}, ErrInvalidName
	}
	return CustomCategory{
		ID:        id,
		SectionID: sectionID,
		Stage:     stage,
		Name:      name,
		Order:     order,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// StageKey returns the stage key that scopes the category.
func (c CustomCategory) StageKey() string {
	return StageKey(c.SectionID, c.Stage)
}

// Rename renames the category.
func (c *CustomCategory) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}
