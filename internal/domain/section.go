package domain

import (
	"slices"
	"strings"
	"time"
)

// Section groups catalog categories, for example "Foto" or "Video".
type Section struct {
	ID         string
	Name       string
	Position   int
	Active     bool
	Categories []CatalogCategory
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CatalogCategory belongs to exactly one section and owns ordered catalog items.
type CatalogCategory struct {
	ID        string
	SectionID string
	Name      string
	Order     int
	ItemIDs   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSection constructs a validated section.
func NewSection(id, name string, position int, now time.Time) (Section, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Section{}, ErrInvalidID
	}
	if name == "" {
		return Section{}, ErrInvalidName
	}
	if position < 0 {
		return Section{}, ErrInvalidOrder
	}
	return Section{
		ID:        id,
		Name:      name,
		Position:  position,
		Active:    true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// NewCatalogCategory constructs a validated catalog category.
func NewCatalogCategory(id, sectionID, name string, order int, now time.Time) (CatalogCategory, error) {
	id = strings.TrimSpace(id)
	sectionID = strings.TrimSpace(sectionID)
	name = strings.TrimSpace(name)
	if id == "" || sectionID == "" {
		return CatalogCategory{}, ErrInvalidID
	}
	if name == "" {
		return CatalogCategory{}, ErrInvalidName
	}
	if order < 0 {
		return CatalogCategory{}, ErrInvalidOrder
	}
	return CatalogCategory{
		ID:        id,
		SectionID: sectionID,
		Name:      name,
		Order:     order,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the category.
func (c *CatalogCategory) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}

// SetOrder moves the category among its siblings.
func (c *CatalogCategory) SetOrder(order int, now time.Time) error {
	if order < 0 {
		return ErrInvalidOrder
	}
	c.Order = order
	c.UpdatedAt = now.UTC()
	return nil
}

// SortedCategories returns the section categories by display order, ties by insertion.
func (s Section) SortedCategories() []CatalogCategory {
	out := append([]CatalogCategory(nil), s.Categories...)
	slices.SortStableFunc(out, func(a, b CatalogCategory) int {
		return a.Order - b.Order
	})
	return out
}

// CategoryByID looks up one of the section categories.
func (s Section) CategoryByID(id string) (CatalogCategory, bool) {
	for _, category := range s.Categories {
		if category.ID == id {
			return category, true
		}
	}
	return CatalogCategory{}, false
}
