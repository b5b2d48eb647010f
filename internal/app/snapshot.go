package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/stageboard/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "stageboard.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version          string                   `json:"version"`
	ExportedAt       time.Time                `json:"exported_at"`
	Sections         []SnapshotSection        `json:"sections"`
	Categories       []SnapshotCategory       `json:"categories"`
	Items            []SnapshotItem           `json:"items"`
	ScheduledTasks   []SnapshotScheduledTask  `json:"scheduled_tasks"`
	ManualTasks      []SnapshotManualTask     `json:"manual_tasks"`
	CustomCategories []SnapshotCustomCategory `json:"custom_categories,omitempty"`
	ActivatedKeys    []string                 `json:"activated_keys,omitempty"`
}

// SnapshotSection represents snapshot section data used by this package.
type SnapshotSection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotCategory represents one catalog category in a snapshot.
type SnapshotCategory struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotItem represents one catalog item in a snapshot.
type SnapshotItem struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
}

// SnapshotScheduledTask represents the scheduling task bound to one item.
type SnapshotScheduledTask struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"item_id"`
	Stage        string     `json:"stage"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	DurationDays int        `json:"duration_days"`
	Completed    bool       `json:"completed"`
	Assignee     string     `json:"assignee,omitempty"`
	ParentID     string     `json:"parent_id,omitempty"`
	Order        int        `json:"order"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SnapshotManualTask represents one manual task in a snapshot.
type SnapshotManualTask struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	DurationDays      int        `json:"duration_days"`
	BudgetAmount      float64    `json:"budget_amount"`
	Completed         bool       `json:"completed"`
	Assignee          string     `json:"assignee,omitempty"`
	CatalogCategoryID string     `json:"catalog_category_id,omitempty"`
	ParentID          string     `json:"parent_id,omitempty"`
	Order             int        `json:"order"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SnapshotCustomCategory represents one custom category in a snapshot.
type SnapshotCustomCategory struct {
	ID        string       `json:"id"`
	SectionID string       `json:"section_id"`
	Stage     domain.Stage `json:"stage"`
	Name      string       `json:"name"`
	Order     int          `json:"order"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	items, err := s.repo.ListCatalogItems(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	manual, err := s.repo.ListManualTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	customs, err := s.repo.ListCustomCategories(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	activated, err := s.repo.ListActivatedKeys(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:          SnapshotVersion,
		ExportedAt:       s.clock().UTC(),
		Sections:         make([]SnapshotSection, 0, len(sections)),
		Categories:       make([]SnapshotCategory, 0),
		Items:            make([]SnapshotItem, 0, len(items)),
		ScheduledTasks:   make([]SnapshotScheduledTask, 0),
		ManualTasks:      make([]SnapshotManualTask, 0, len(manual)),
		CustomCategories: make([]SnapshotCustomCategory, 0, len(customs)),
		ActivatedKeys:    append([]string(nil), activated...),
	}
	for _, section := range sections {
		snap.Sections = append(snap.Sections, snapshotSectionFromDomain(section))
		for _, category := range section.Categories {
			snap.Categories = append(snap.Categories, snapshotCategoryFromDomain(category))
		}
	}
	for _, item := range items {
		snap.Items = append(snap.Items, SnapshotItem{
			ID:         item.ID,
			CategoryID: item.CategoryID,
			Name:       item.Name,
			Order:      item.Order,
		})
		if item.Task != nil {
			snap.ScheduledTasks = append(snap.ScheduledTasks, snapshotScheduledTaskFromDomain(*item.Task))
		}
	}
	for _, task := range manual {
		snap.ManualTasks = append(snap.ManualTasks, snapshotManualTaskFromDomain(task))
	}
	for _, custom := range customs {
		snap.CustomCategories = append(snap.CustomCategories, snapshotCustomCategoryFromDomain(custom))
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot handles import snapshot.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, section := range snap.Sections {
		if err := s.upsertSection(ctx, section.toDomain()); err != nil {
			return err
		}
	}
	for _, category := range snap.Categories {
		if err := s.repo.CreateCatalogCategory(ctx, category.toDomain()); err != nil {
			return err
		}
	}
	for _, item := range snap.Items {
		if err := s.repo.CreateCatalogItem(ctx, domain.CatalogItem{
			ID:         strings.TrimSpace(item.ID),
			CategoryID: strings.TrimSpace(item.CategoryID),
			Name:       strings.TrimSpace(item.Name),
			Order:      item.Order,
		}); err != nil {
			return err
		}
	}
	for _, task := range snap.ScheduledTasks {
		if err := s.repo.UpsertScheduledTask(ctx, task.toDomain()); err != nil {
			return err
		}
	}
	for _, task := range snap.ManualTasks {
		if err := s.upsertManualTask(ctx, task.toDomain()); err != nil {
			return err
		}
	}

	existing, err := s.repo.ListCustomCategories(ctx)
	if err != nil {
		return err
	}
	customIDs := map[string]struct{}{}
	for _, custom := range existing {
		customIDs[custom.ID] = struct{}{}
	}
	for _, custom := range snap.CustomCategories {
		dc := custom.toDomain()
		if _, ok := customIDs[dc.ID]; ok {
			if err := s.repo.UpdateCustomCategory(ctx, dc); err != nil {
				return err
			}
			continue
		}
		if err := s.repo.CreateCustomCategory(ctx, dc); err != nil {
			return err
		}
		customIDs[dc.ID] = struct{}{}
	}
	for _, key := range snap.ActivatedKeys {
		if err := s.repo.SetActivation(ctx, key, true); err != nil {
			return err
		}
	}
	s.log.Info("snapshot imported", "sections", len(snap.Sections), "manual_tasks", len(snap.ManualTasks))
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	sectionIDs := map[string]struct{}{}
	for i, sec := range s.Sections {
		if strings.TrimSpace(sec.ID) == "" {
			return fmt.Errorf("%w: sections[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(sec.Name) == "" {
			return fmt.Errorf("%w: sections[%d].name is required", ErrInvalidSnapshot, i)
		}
		if sec.Position < 0 {
			return fmt.Errorf("%w: sections[%d].position must be >= 0", ErrInvalidSnapshot, i)
		}
		if sec.CreatedAt.IsZero() || sec.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: sections[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		if _, exists := sectionIDs[sec.ID]; exists {
			return fmt.Errorf("%w: duplicate section id %q", ErrInvalidSnapshot, sec.ID)
		}
		sectionIDs[sec.ID] = struct{}{}
	}

	categoryIDs := map[string]struct{}{}
	for i, c := range s.Categories {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: categories[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: categories[%d].name is required", ErrInvalidSnapshot, i)
		}
		if c.Order < 0 {
			return fmt.Errorf("%w: categories[%d].order must be >= 0", ErrInvalidSnapshot, i)
		}
		if _, ok := sectionIDs[c.SectionID]; !ok {
			return fmt.Errorf("%w: categories[%d] references unknown section_id %q", ErrInvalidSnapshot, i, c.SectionID)
		}
		if _, exists := categoryIDs[c.ID]; exists {
			return fmt.Errorf("%w: duplicate category id %q", ErrInvalidSnapshot, c.ID)
		}
		categoryIDs[c.ID] = struct{}{}
	}

	itemIDs := map[string]struct{}{}
	for i, item := range s.Items {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("%w: items[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: items[%d].name is required", ErrInvalidSnapshot, i)
		}
		if _, ok := categoryIDs[item.CategoryID]; !ok {
			return fmt.Errorf("%w: items[%d] references unknown category_id %q", ErrInvalidSnapshot, i, item.CategoryID)
		}
		if _, exists := itemIDs[item.ID]; exists {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidSnapshot, item.ID)
		}
		itemIDs[item.ID] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	boundItems := map[string]struct{}{}
	for i, t := range s.ScheduledTasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: scheduled_tasks[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, ok := itemIDs[t.ItemID]; !ok {
			return fmt.Errorf("%w: scheduled_tasks[%d] references unknown item_id %q", ErrInvalidSnapshot, i, t.ItemID)
		}
		if _, bound := boundItems[t.ItemID]; bound {
			return fmt.Errorf("%w: item %q is bound to more than one task", ErrInvalidSnapshot, t.ItemID)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, t.ID)
		}
		if t.Order < 0 {
			return fmt.Errorf("%w: scheduled_tasks[%d].order must be >= 0", ErrInvalidSnapshot, i)
		}
		boundItems[t.ItemID] = struct{}{}
		taskIDs[t.ID] = struct{}{}
	}

	customIDs := map[string]struct{}{}
	for i, c := range s.CustomCategories {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: custom_categories[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: custom_categories[%d].name is required", ErrInvalidSnapshot, i)
		}
		if c.Stage.Index() < 0 {
			return fmt.Errorf("%w: custom_categories[%d].stage %q is unknown", ErrInvalidSnapshot, i, c.Stage)
		}
		if _, ok := sectionIDs[c.SectionID]; !ok {
			return fmt.Errorf("%w: custom_categories[%d] references unknown section_id %q", ErrInvalidSnapshot, i, c.SectionID)
		}
		if _, exists := customIDs[c.ID]; exists {
			return fmt.Errorf("%w: duplicate custom category id %q", ErrInvalidSnapshot, c.ID)
		}
		customIDs[c.ID] = struct{}{}
	}

	for i, t := range s.ManualTasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: manual_tasks[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: manual_tasks[%d].name is required", ErrInvalidSnapshot, i)
		}
		if t.Order < 0 {
			return fmt.Errorf("%w: manual_tasks[%d].order must be >= 0", ErrInvalidSnapshot, i)
		}
		if t.BudgetAmount < 0 {
			return fmt.Errorf("%w: manual_tasks[%d].budget_amount must be >= 0", ErrInvalidSnapshot, i)
		}
		if t.CreatedAt.IsZero() || t.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: manual_tasks[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, t.ID)
		}
		if id := strings.TrimSpace(t.CatalogCategoryID); id != "" {
			_, catalog := categoryIDs[id]
			_, custom := customIDs[id]
			if !catalog && !custom {
				return fmt.Errorf("%w: manual_tasks[%d] references unknown category %q", ErrInvalidSnapshot, i, id)
			}
		}
		taskIDs[t.ID] = struct{}{}
	}
	for i, t := range s.ManualTasks {
		if strings.TrimSpace(t.ParentID) == "" {
			continue
		}
		if t.ParentID == t.ID {
			return fmt.Errorf("%w: manual_tasks[%d].parent_id cannot reference itself", ErrInvalidSnapshot, i)
		}
		if _, exists := taskIDs[t.ParentID]; !exists {
			return fmt.Errorf("%w: manual_tasks[%d] references unknown parent_id %q", ErrInvalidSnapshot, i, t.ParentID)
		}
	}

	keys := make([]string, 0, len(s.ActivatedKeys))
	seen := map[string]struct{}{}
	for i, raw := range s.ActivatedKeys {
		key := strings.TrimSpace(raw)
		stageKey, _, _ := strings.Cut(key, "/")
		sectionID, _, ok := domain.ParseStageKey(stageKey)
		if !ok {
			return fmt.Errorf("%w: activated_keys[%d] %q is not a stage key", ErrInvalidSnapshot, i, raw)
		}
		if _, known := sectionIDs[sectionID]; !known {
			return fmt.Errorf("%w: activated_keys[%d] references unknown section %q", ErrInvalidSnapshot, i, sectionID)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	s.ActivatedKeys = keys
	return nil
}

// upsertSection handles upsert section.
func (s *Service) upsertSection(ctx context.Context, section domain.Section) error {
	if _, err := s.repo.GetSection(ctx, section.ID); err == nil {
		return s.repo.UpdateSection(ctx, section)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateSection(ctx, section)
}

// upsertManualTask handles upsert manual task.
func (s *Service) upsertManualTask(ctx context.Context, task domain.ManualTask) error {
	if _, err := s.repo.GetManualTask(ctx, task.ID); err == nil {
		return s.repo.UpdateManualTask(ctx, task)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.CreateManualTask(ctx, task)
}

// sort orders every collection deterministically.
func (s *Snapshot) sort() {
	sort.Slice(s.Sections, func(i, j int) bool {
		a := s.Sections[i]
		b := s.Sections[j]
		if a.Position == b.Position {
			return a.ID < b.ID
		}
		return a.Position < b.Position
	})
	sort.Slice(s.Categories, func(i, j int) bool {
		a := s.Categories[i]
		b := s.Categories[j]
		if a.SectionID == b.SectionID {
			if a.Order == b.Order {
				return a.ID < b.ID
			}
			return a.Order < b.Order
		}
		return a.SectionID < b.SectionID
	})
	sort.Slice(s.Items, func(i, j int) bool {
		a := s.Items[i]
		b := s.Items[j]
		if a.CategoryID == b.CategoryID {
			if a.Order == b.Order {
				return a.ID < b.ID
			}
			return a.Order < b.Order
		}
		return a.CategoryID < b.CategoryID
	})
	sort.Slice(s.ScheduledTasks, func(i, j int) bool {
		return s.ScheduledTasks[i].ID < s.ScheduledTasks[j].ID
	})
	sort.Slice(s.ManualTasks, func(i, j int) bool {
		a := s.ManualTasks[i]
		b := s.ManualTasks[j]
		if a.Category == b.Category {
			if a.Order == b.Order {
				return a.ID < b.ID
			}
			return a.Order < b.Order
		}
		return a.Category < b.Category
	})
	sort.Slice(s.CustomCategories, func(i, j int) bool {
		a := s.CustomCategories[i]
		b := s.CustomCategories[j]
		if a.SectionID == b.SectionID {
			if a.Stage == b.Stage {
				if a.Order == b.Order {
					return a.ID < b.ID
				}
				return a.Order < b.Order
			}
			return a.Stage.Index() < b.Stage.Index()
		}
		return a.SectionID < b.SectionID
	})
	sort.Strings(s.ActivatedKeys)
}

// snapshotSectionFromDomain handles snapshot section from domain.
func snapshotSectionFromDomain(sec domain.Section) SnapshotSection {
	return SnapshotSection{
		ID:        sec.ID,
		Name:      sec.Name,
		Position:  sec.Position,
		Active:    sec.Active,
		CreatedAt: sec.CreatedAt.UTC(),
		UpdatedAt: sec.UpdatedAt.UTC(),
	}
}

func snapshotCategoryFromDomain(c domain.CatalogCategory) SnapshotCategory {
	return SnapshotCategory{
		ID:        c.ID,
		SectionID: c.SectionID,
		Name:      c.Name,
		Order:     c.Order,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func snapshotScheduledTaskFromDomain(t domain.ScheduledTask) SnapshotScheduledTask {
	return SnapshotScheduledTask{
		ID:           t.ID,
		ItemID:       t.ItemID,
		Stage:        t.Stage,
		StartDate:    copyTimePtr(t.StartDate),
		EndDate:      copyTimePtr(t.EndDate),
		DurationDays: t.DurationDays,
		Completed:    t.Completed,
		Assignee:     t.Assignee,
		ParentID:     t.ParentID,
		Order:        t.Order,
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func snapshotManualTaskFromDomain(t domain.ManualTask) SnapshotManualTask {
	return SnapshotManualTask{
		ID:                t.ID,
		Name:              t.Name,
		Category:          t.Category,
		StartDate:         copyTimePtr(t.StartDate),
		EndDate:           copyTimePtr(t.EndDate),
		DurationDays:      t.DurationDays,
		BudgetAmount:      t.BudgetAmount,
		Completed:         t.Completed,
		Assignee:          t.Assignee,
		CatalogCategoryID: t.CatalogCategoryID,
		ParentID:          t.ParentID,
		Order:             t.Order,
		CreatedAt:         t.CreatedAt.UTC(),
		UpdatedAt:         t.UpdatedAt.UTC(),
	}
}

func snapshotCustomCategoryFromDomain(c domain.CustomCategory) SnapshotCustomCategory {
	return SnapshotCustomCategory{
		ID:        c.ID,
		SectionID: c.SectionID,
		Stage:     c.Stage,
		Name:      c.Name,
		Order:     c.Order,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (sec SnapshotSection) toDomain() domain.Section {
	return domain.Section{
		ID:        strings.TrimSpace(sec.ID),
		Name:      strings.TrimSpace(sec.Name),
		Position:  sec.Position,
		Active:    sec.Active,
		CreatedAt: sec.CreatedAt.UTC(),
		UpdatedAt: sec.UpdatedAt.UTC(),
	}
}

func (c SnapshotCategory) toDomain() domain.CatalogCategory {
	return domain.CatalogCategory{
		ID:        strings.TrimSpace(c.ID),
		SectionID: strings.TrimSpace(c.SectionID),
		Name:      strings.TrimSpace(c.Name),
		Order:     c.Order,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (t SnapshotScheduledTask) toDomain() domain.ScheduledTask {
	return domain.ScheduledTask{
		ID:           strings.TrimSpace(t.ID),
		ItemID:       strings.TrimSpace(t.ItemID),
		Stage:        strings.TrimSpace(t.Stage),
		StartDate:    copyTimePtr(t.StartDate),
		EndDate:      copyTimePtr(t.EndDate),
		DurationDays: t.DurationDays,
		Completed:    t.Completed,
		Assignee:     strings.TrimSpace(t.Assignee),
		ParentID:     strings.TrimSpace(t.ParentID),
		Order:        t.Order,
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (t SnapshotManualTask) toDomain() domain.ManualTask {
	return domain.ManualTask{
		ID:                strings.TrimSpace(t.ID),
		Name:              strings.TrimSpace(t.Name),
		Category:          strings.TrimSpace(t.Category),
		StartDate:         copyTimePtr(t.StartDate),
		EndDate:           copyTimePtr(t.EndDate),
		DurationDays:      t.DurationDays,
		BudgetAmount:      t.BudgetAmount,
		Completed:         t.Completed,
		Assignee:          strings.TrimSpace(t.Assignee),
		CatalogCategoryID: strings.TrimSpace(t.CatalogCategoryID),
		ParentID:          strings.TrimSpace(t.ParentID),
		Order:             t.Order,
		CreatedAt:         t.CreatedAt.UTC(),
		UpdatedAt:         t.UpdatedAt.UTC(),
	}
}

func (c SnapshotCustomCategory) toDomain() domain.CustomCategory {
	return domain.CustomCategory{
		ID:        strings.TrimSpace(c.ID),
		SectionID: strings.TrimSpace(c.SectionID),
		Stage:     c.Stage,
		Name:      strings.TrimSpace(c.Name),
		Order:     c.Order,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

// copyTimePtr copies time ptr.
func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := in.UTC().Truncate(time.Second)
	return &t
}
