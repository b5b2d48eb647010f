// Package activation derives which stages and categories are visible and applies the
// toggle, add, rename and remove operations with their deletion-safety guards.
package activation

import (
	"slices"
	"strings"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
)

// DataIndex counts task rows per stage key and per category activation key.
type DataIndex struct {
	Stages     map[string]int
	Categories map[string]int
}

// IndexRows counts the task rows of an unfiltered row list.
func IndexRows(rows []board.Row) DataIndex {
	index := DataIndex{Stages: map[string]int{}, Categories: map[string]int{}}
	count := func(stageID, categoryID string) {
		index.Stages[stageID]++
		if categoryID != "" {
			index.Categories[domain.CategoryActivationKey(stageID, categoryID)]++
		}
	}
	for _, row := range rows {
		switch r := row.(type) {
		case board.TaskRow:
			count(r.StageID, r.CategoryID)
		case board.ManualTaskRow:
			count(r.StageID, r.CategoryID)
		}
	}
	return index
}

// State is an immutable activation snapshot. Every mutator returns a new State.
type State struct {
	activated board.IDSet
	customs   map[string][]domain.CustomCategory
	data      DataIndex
}

// NewState builds a state from persisted activation keys, custom categories by stage
// key and the current data index.
func NewState(activated []string, customs map[string][]domain.CustomCategory, data DataIndex) State {
	s := State{
		activated: board.NewIDSet(activated...),
		customs:   make(map[string][]domain.CustomCategory, len(customs)),
		data:      cloneIndex(data),
	}
	for key, list := range customs {
		if len(list) == 0 {
			continue
		}
		sorted := slices.Clone(list)
		slices.SortStableFunc(sorted, func(a, b domain.CustomCategory) int { return a.Order - b.Order })
		s.customs[key] = sorted
	}
	return s
}

// ActivatedKeys returns the explicitly activated keys in lexical order.
func (s State) ActivatedKeys() []string {
	return s.activated.Sorted()
}

// ActivatedSet returns a copy of the activated keys as a set.
func (s State) ActivatedSet() board.IDSet {
	return board.NewIDSet(s.activated.Sorted()...)
}

// CustomCategoriesByStage returns a copy of the custom categories by stage key.
func (s State) CustomCategoriesByStage() map[string][]domain.CustomCategory {
	out := make(map[string][]domain.CustomCategory, len(s.customs))
	for key, list := range s.customs {
		out[key] = slices.Clone(list)
	}
	return out
}

// CustomCategories returns the custom categories of stageKey in display order.
func (s State) CustomCategories(stageKey string) []domain.CustomCategory {
	return slices.Clone(s.customs[stageKey])
}

// CustomCategory looks up one custom category of stageKey.
func (s State) CustomCategory(stageKey, id string) (domain.CustomCategory, bool) {
	for _, category := range s.customs[stageKey] {
		if category.ID == id {
			return category, true
		}
	}
	return domain.CustomCategory{}, false
}

// Data returns a copy of the data index.
func (s State) Data() DataIndex {
	return cloneIndex(s.data)
}

// StageTaskCount returns the task rows under stageKey.
func (s State) StageTaskCount(stageKey string) int {
	return s.data.Stages[stageKey]
}

// CategoryTaskCount returns the task rows under one category of stageKey.
func (s State) CategoryTaskCount(stageKey, categoryID string) int {
	return s.data.Categories[domain.CategoryActivationKey(stageKey, categoryID)]
}

// HasData reports whether stageKey holds any task.
func (s State) HasData(stageKey string) bool {
	return s.StageTaskCount(stageKey) > 0
}

// IsStageActive reports whether a stage is visible: it holds data, was explicitly
// activated, or has custom categories.
func (s State) IsStageActive(stageKey string) bool {
	return s.HasData(stageKey) || s.activated.Has(stageKey) || len(s.customs[stageKey]) > 0
}

// IsCategoryActive reports whether a catalog category is visible under stageKey.
func (s State) IsCategoryActive(stageKey, categoryID string) bool {
	return s.CategoryTaskCount(stageKey, categoryID) > 0 || s.activated.Has(domain.CategoryActivationKey(stageKey, categoryID))
}

// IsExplicitlyActive reports whether key is in the activated set.
func (s State) IsExplicitlyActive(key string) bool {
	return s.activated.Has(key)
}

// customsHoldTasks reports whether any custom category of stageKey owns a task.
func (s State) customsHoldTasks(stageKey string) bool {
	for _, category := range s.customs[stageKey] {
		if s.CategoryTaskCount(stageKey, category.ID) > 0 {
			return true
		}
	}
	return false
}

// CanDeactivate reports whether stageKey is fully empty.
func (s State) CanDeactivate(stageKey string) bool {
	return !s.HasData(stageKey) && !s.customsHoldTasks(stageKey)
}

// WithData returns s with a new data index.
func (s State) WithData(data DataIndex) State {
	next := s.clone()
	next.data = cloneIndex(data)
	return next
}

func (s State) withActivated(key string, enabled bool) State {
	next := s.clone()
	if enabled {
		next.activated = next.activated.With(key)
	} else {
		next.activated = next.activated.Without(key)
	}
	return next
}

func (s State) withCustom(stageKey string, category domain.CustomCategory) State {
	next := s.clone()
	list := slices.Clone(next.customs[stageKey])
	replaced := false
	for idx := range list {
		if list[idx].ID == category.ID {
			list[idx] = category
			replaced = true
		}
	}
	if !replaced {
		list = append(list, category)
	}
	next.customs[stageKey] = list
	return next
}

func (s State) withoutCustom(stageKey string, keep func(domain.CustomCategory) bool) State {
	next := s.clone()
	list := slices.DeleteFunc(slices.Clone(next.customs[stageKey]), func(c domain.CustomCategory) bool {
		return !keep(c)
	})
	if len(list) == 0 {
		delete(next.customs, stageKey)
	} else {
		next.customs[stageKey] = list
	}
	return next
}

// withoutStage drops the stage activation, every category activation under it, its
// custom categories and its data counters.
func (s State) withoutStage(stageKey string) State {
	next := s.clone()
	prefix := domain.CategoryActivationKey(stageKey, "")
	for key := range next.activated {
		if key == stageKey || strings.HasPrefix(key, prefix) {
			delete(next.activated, key)
		}
	}
	delete(next.customs, stageKey)
	delete(next.data.Stages, stageKey)
	for key := range next.data.Categories {
		if strings.HasPrefix(key, prefix) {
			delete(next.data.Categories, key)
		}
	}
	return next
}

func (s State) clone() State {
	next := State{
		activated: board.NewIDSet(s.activated.Sorted()...),
		customs:   make(map[string][]domain.CustomCategory, len(s.customs)),
		data:      cloneIndex(s.data),
	}
	for key, list := range s.customs {
		next.customs[key] = slices.Clone(list)
	}
	return next
}

func cloneIndex(in DataIndex) DataIndex {
	out := DataIndex{
		Stages:     make(map[string]int, len(in.Stages)),
		Categories: make(map[string]int, len(in.Categories)),
	}
	for k, v := range in.Stages {
		out.Stages[k] = v
	}
	for k, v := range in.Categories {
		out.Categories[k] = v
	}
	return out
}
