package board

import (
	"slices"
	"strings"

	"github.com/evanschultz/stageboard/internal/domain"
)

// BuildInput holds the normalized domain data consumed by BuildRows.
type BuildInput struct {
	Sections     []domain.Section
	CatalogItems map[string]domain.CatalogItem
	ManualTasks  []domain.ManualTask
	// ActiveSectionIDs limits the emitted sections when non-nil. Sections holding
	// bound catalog data or categorized manual tasks are always emitted.
	ActiveSectionIDs IDSet
	// ActivatedKeys holds explicitly activated stage keys and category activation keys.
	ActivatedKeys IDSet
	// CustomCategories is keyed by stage key.
	CustomCategories map[string][]domain.CustomCategory
	// SupportsCustomCategories adds a phantom row after every category.
	SupportsCustomCategories bool
}

// BuildRows emits the maximal row tree: every visible section, every stage in pipeline
// order, and the categories and tasks under each. Filters prune it afterwards.
// Manual tasks render once: under the section owning their category, otherwise under the
// first emitted section.
func BuildRows(in BuildInput) []Row {
	sections := visibleSections(in)
	known := knownCategories(sections, in.CustomCategories)
	out := make([]Row, 0, len(sections)*(len(domain.Stages())*2+1)+len(in.ManualTasks))
	for idx, section := range sections {
		sectionAt := len(out)
		out = append(out, SectionRow{ID: SectionRowID(section.ID), Name: section.Name})
		hasData := false
		for _, stage := range domain.Stages() {
			rows, stageHasData := buildStage(in, section, stage, idx == 0, known[stage])
			hasData = hasData || stageHasData
			out = append(out, rows...)
		}
		out[sectionAt] = SectionRow{ID: SectionRowID(section.ID), Name: section.Name, HasData: hasData}
	}
	return out
}

// visibleSections applies the active-section set.
func visibleSections(in BuildInput) []domain.Section {
	if in.ActiveSectionIDs == nil {
		return in.Sections
	}
	out := make([]domain.Section, 0, len(in.Sections))
	for _, section := range in.Sections {
		if in.ActiveSectionIDs.Has(section.ID) || sectionHoldsData(section, in) {
			out = append(out, section)
		}
	}
	return out
}

// knownCategories indexes, per stage, the category ids some emitted section renders in
// that stage: every catalog category plus the custom categories of that stage key.
func knownCategories(sections []domain.Section, customs map[string][]domain.CustomCategory) map[domain.Stage]IDSet {
	known := make(map[domain.Stage]IDSet, len(domain.Stages()))
	for _, stage := range domain.Stages() {
		set := IDSet{}
		for _, section := range sections {
			for _, category := range section.Categories {
				set[category.ID] = struct{}{}
			}
			for _, custom := range customs[StageRowID(section.ID, stage)] {
				set[custom.ID] = struct{}{}
			}
		}
		known[stage] = set
	}
	return known
}

// sectionHoldsData reports whether any item of the section carries a scheduled task, or
// any manual task sits in one of the section's catalog categories or in a custom
// category of the section under the task's own stage.
func sectionHoldsData(section domain.Section, in BuildInput) bool {
	for _, category := range section.Categories {
		for _, itemID := range category.ItemIDs {
			if item, ok := in.CatalogItems[itemID]; ok && item.Task != nil {
				return true
			}
		}
	}
	for _, task := range in.ManualTasks {
		categoryID := strings.TrimSpace(task.CatalogCategoryID)
		if categoryID == "" {
			continue
		}
		if _, ok := section.CategoryByID(categoryID); ok {
			return true
		}
		for _, custom := range in.CustomCategories[StageRowID(section.ID, task.Stage())] {
			if custom.ID == categoryID {
				return true
			}
		}
	}
	return false
}

// segmentDraft collects the rows of one segment before subtask resolution.
type segmentDraft struct {
	category *CategoryRow
	rows     []Row
}

// buildStage emits the stage header, its segments and the stage phantom. Manual tasks
// render under the section owning their category in this stage; uncategorized ones and
// those whose category no section renders in this stage fall back to the uncategorized
// segment of the first section. known holds the category ids rendered in stage.
func buildStage(in BuildInput, section domain.Section, stage domain.Stage, firstSection bool, known IDSet) ([]Row, bool) {
	stageID := StageRowID(section.ID, stage)
	customs := sortedCustomCategories(in.CustomCategories[stageID])

	customIDs := make(map[string]struct{}, len(customs))
	for _, custom := range customs {
		customIDs[custom.ID] = struct{}{}
	}
	manualByCategory := map[string][]domain.ManualTask{}
	var uncategorized []domain.ManualTask
	for _, task := range sortedManualTasks(in.ManualTasks, stage) {
		categoryID := strings.TrimSpace(task.CatalogCategoryID)
		_, isCatalog := section.CategoryByID(categoryID)
		_, isCustom := customIDs[categoryID]
		if categoryID != "" && (isCatalog || isCustom) {
			manualByCategory[categoryID] = append(manualByCategory[categoryID], task)
			continue
		}
		if firstSection && (categoryID == "" || !known.Has(categoryID)) {
			uncategorized = append(uncategorized, task)
		}
	}

	drafts := make([]segmentDraft, 0, len(section.Categories)+len(customs)+1)
	if len(uncategorized) > 0 {
		draft := segmentDraft{}
		for _, task := range uncategorized {
			draft.rows = append(draft.rows, manualRow(section.ID, stageID, stage, "", task))
		}
		drafts = append(drafts, draft)
	}

	for _, category := range section.SortedCategories() {
		items := stageItems(category, in.CatalogItems, stage)
		manual := manualByCategory[category.ID]
		activated := in.ActivatedKeys.Has(domain.CategoryActivationKey(stageID, category.ID))
		if len(items) == 0 && len(manual) == 0 && !activated {
			continue
		}
		draft := segmentDraft{category: &CategoryRow{
			ID:         CategoryRowID(stageID, categoryKey(category.ID, category.Name)),
			SectionID:  section.ID,
			StageID:    stageID,
			Stage:      stage,
			CategoryID: category.ID,
			Name:       category.Name,
		}}
		draft.rows = mergeByOrder(section.ID, stageID, stage, category.ID, items, manual)
		drafts = append(drafts, draft)
	}

	for _, custom := range customs {
		draft := segmentDraft{category: &CategoryRow{
			ID:         CategoryRowID(stageID, categoryKey(custom.ID, custom.Name)),
			SectionID:  section.ID,
			StageID:    stageID,
			Stage:      stage,
			CategoryID: custom.ID,
			Name:       custom.Name,
			Custom:     true,
		}}
		for _, task := range manualByCategory[custom.ID] {
			draft.rows = append(draft.rows, manualRow(section.ID, stageID, stage, custom.ID, task))
		}
		drafts = append(drafts, draft)
	}

	taskCount := 0
	for idx := range drafts {
		drafts[idx].rows = resolveSubtasks(drafts[idx].rows)
		taskCount += len(drafts[idx].rows)
	}
	hasData := taskCount > 0

	out := make([]Row, 0, taskCount+len(drafts)*2+2)
	out = append(out, StageRow{
		ID:        stageID,
		SectionID: section.ID,
		Stage:     stage,
		Label:     stage.Label(),
		Color:     stage.Color(),
		Active:    hasData || in.ActivatedKeys.Has(stageID) || len(customs) > 0,
		HasData:   hasData,
		TaskCount: taskCount,
	})
	for _, draft := range drafts {
		if draft.category != nil {
			header := *draft.category
			header.TaskCount = len(draft.rows)
			out = append(out, header)
		}
		out = append(out, draft.rows...)
		if draft.category != nil && in.SupportsCustomCategories {
			out = append(out, AddCategoryPhantomRow{
				ID:         PhantomRowID(draft.category.ID),
				SectionID:  section.ID,
				StageID:    stageID,
				Stage:      stage,
				CategoryID: draft.category.CategoryID,
			})
		}
	}
	out = append(out, AddPhantomRow{
		ID:        PhantomRowID(stageID),
		SectionID: section.ID,
		StageID:   stageID,
		Stage:     stage,
	})
	return out, hasData
}

// categoryKey prefers the category id and falls back to its name.
func categoryKey(id, name string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return name
}

// stageItems returns the bound category items whose task belongs to stage, skipping
// dangling references, ordered by task order then item order.
func stageItems(category domain.CatalogCategory, items map[string]domain.CatalogItem, stage domain.Stage) []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(category.ItemIDs))
	for _, itemID := range category.ItemIDs {
		item, ok := items[itemID]
		if !ok || item.Task == nil {
			continue
		}
		if item.StageOf() != stage {
			continue
		}
		out = append(out, item)
	}
	slices.SortStableFunc(out, func(a, b domain.CatalogItem) int {
		if d := taskOrder(a) - taskOrder(b); d != 0 {
			return d
		}
		return a.Order - b.Order
	})
	return out
}

// mergeByOrder interleaves catalog and manual tasks of one category by sibling order.
// Catalog tasks win ties, then item order and insertion decide.
func mergeByOrder(sectionID, stageID string, stage domain.Stage, categoryID string, items []domain.CatalogItem, manual []domain.ManualTask) []Row {
	type entry struct {
		order     int
		manual    bool
		itemOrder int
		row       Row
	}
	entries := make([]entry, 0, len(items)+len(manual))
	for _, item := range items {
		entries = append(entries, entry{order: taskOrder(item), itemOrder: item.Order, row: taskRow(sectionID, stageID, stage, categoryID, item)})
	}
	for _, task := range manual {
		entries = append(entries, entry{order: task.Order, manual: true, row: manualRow(sectionID, stageID, stage, categoryID, task)})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		if a.order != b.order {
			return a.order - b.order
		}
		if a.manual != b.manual {
			if a.manual {
				return 1
			}
			return -1
		}
		return a.itemOrder - b.itemOrder
	})
	out := make([]Row, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.row)
	}
	return out
}

func taskOrder(item domain.CatalogItem) int {
	if item.Task == nil {
		return 0
	}
	return item.Task.Order
}

// sortedManualTasks filters manual tasks to stage and orders them by Order, ties by
// insertion.
func sortedManualTasks(tasks []domain.ManualTask, stage domain.Stage) []domain.ManualTask {
	out := make([]domain.ManualTask, 0, len(tasks))
	for _, task := range tasks {
		if task.Stage() == stage {
			out = append(out, task)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.ManualTask) int {
		return a.Order - b.Order
	})
	return out
}

func sortedCustomCategories(in []domain.CustomCategory) []domain.CustomCategory {
	out := append([]domain.CustomCategory(nil), in...)
	slices.SortStableFunc(out, func(a, b domain.CustomCategory) int {
		return a.Order - b.Order
	})
	return out
}

func taskRow(sectionID, stageID string, stage domain.Stage, categoryID string, item domain.CatalogItem) TaskRow {
	row := TaskRow{
		ID:         TaskRowID(item.ID),
		SectionID:  sectionID,
		StageID:    stageID,
		Stage:      stage,
		CategoryID: categoryID,
		ItemID:     item.ID,
		TaskID:     item.TaskID(),
		Name:       item.Name,
	}
	if item.Task != nil {
		task := *item.Task
		row.Task = &task
		row.ParentID = strings.TrimSpace(task.ParentID)
		row.Completed = task.Completed
		row.Assignee = task.Assignee
	}
	return row
}

func manualRow(sectionID, stageID string, stage domain.Stage, categoryID string, task domain.ManualTask) ManualTaskRow {
	return ManualTaskRow{
		ID:         ManualTaskRowID(task.ID),
		SectionID:  sectionID,
		StageID:    stageID,
		Stage:      stage,
		CategoryID: categoryID,
		TaskID:     task.ID,
		Name:       task.Name,
		ParentID:   strings.TrimSpace(task.ParentID),
		Completed:  task.Completed,
		Assignee:   task.Assignee,
		Task:       task,
	}
}

// resolveSubtasks is the second build pass over one segment. Rows live in a flat arena
// indexed by draggable id; a row becomes a subtask only when its parent is in the same
// arena and the parent claims no parent itself. Subtasks follow their parent.
func resolveSubtasks(arena []Row) []Row {
	if len(arena) == 0 {
		return arena
	}
	index := make(map[string]int, len(arena))
	for idx, row := range arena {
		id := DraggableID(row)
		if id == "" {
			continue
		}
		if _, dup := index[id]; !dup {
			index[id] = idx
		}
	}

	subtask := make([]bool, len(arena))
	children := make(map[int][]int)
	for idx, row := range arena {
		parentID := parentIDOf(row)
		if parentID == "" {
			continue
		}
		parentIdx, ok := index[parentID]
		if !ok || parentIdx == idx || parentIDOf(arena[parentIdx]) != "" {
			continue
		}
		subtask[idx] = true
		children[parentIdx] = append(children[parentIdx], idx)
	}

	out := make([]Row, 0, len(arena))
	for idx, row := range arena {
		if subtask[idx] {
			continue
		}
		out = append(out, row)
		for _, childIdx := range children[idx] {
			out = append(out, markSubtask(arena[childIdx]))
		}
	}
	return out
}

func parentIDOf(row Row) string {
	switch r := row.(type) {
	case TaskRow:
		return r.ParentID
	case ManualTaskRow:
		return r.ParentID
	default:
		return ""
	}
}

func markSubtask(row Row) Row {
	switch r := row.(type) {
	case TaskRow:
		r.IsSubtask = true
		return r
	case ManualTaskRow:
		r.IsSubtask = true
		return r
	default:
		return row
	}
}
