package board

import (
	"github.com/evanschultz/stageboard/internal/domain"
)

// boundItem returns a catalog item bound to a scheduled task in stage.
func boundItem(id, categoryID, stage string, order int) domain.CatalogItem {
	return domain.CatalogItem{
		ID:         id,
		CategoryID: categoryID,
		Name:       "Item " + id,
		Order:      order,
		Task: &domain.ScheduledTask{
			ID:     "task-" + id,
			ItemID: id,
			Stage:  stage,
			Order:  order,
		},
	}
}

func manualTask(id, stage string, order int) domain.ManualTask {
	return domain.ManualTask{ID: id, Name: "Manual " + id, Category: stage, DurationDays: 1, Order: order}
}

// scenarioInput builds two sections, "Foto" and "Video", each with two planning tasks
// and nothing scheduled for delivery.
func scenarioInput() BuildInput {
	foto := domain.Section{
		ID:   "foto",
		Name: "Foto",
		Categories: []domain.CatalogCategory{
			{ID: "foto-sesion", SectionID: "foto", Name: "Sesión", ItemIDs: []string{"f1", "f2"}},
		},
	}
	video := domain.Section{
		ID:   "video",
		Name: "Video",
		Categories: []domain.CatalogCategory{
			{ID: "video-rodaje", SectionID: "video", Name: "Rodaje", Order: 0, ItemIDs: []string{"v1", "v2"}},
			{ID: "video-edicion", SectionID: "video", Name: "Edición", Order: 1},
		},
	}
	return BuildInput{
		Sections: []domain.Section{foto, video},
		CatalogItems: map[string]domain.CatalogItem{
			"f1": boundItem("f1", "foto-sesion", "PLANNING", 0),
			"f2": boundItem("f2", "foto-sesion", "PLANNING", 1),
			"v1": boundItem("v1", "video-rodaje", "PLANNING", 0),
			"v2": boundItem("v2", "video-rodaje", "PLANNING", 1),
		},
	}
}

func countKind(rows []Row, kind Kind) int {
	n := 0
	for _, row := range rows {
		if row.Kind() == kind {
			n++
		}
	}
	return n
}

// taskRowsUnder counts task and manual task rows owned by stageID.
func taskRowsUnder(rows []Row, stageID string) int {
	n := 0
	for _, row := range rows {
		switch r := row.(type) {
		case TaskRow:
			if r.StageID == stageID {
				n++
			}
		case ManualTaskRow:
			if r.StageID == stageID {
				n++
			}
		}
	}
	return n
}

func rowIDs(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.RowID())
	}
	return out
}

func findRow(rows []Row, id string) (Row, bool) {
	for _, row := range rows {
		if row.RowID() == id {
			return row, true
		}
	}
	return nil, false
}

// ancestorIDs returns the header row ids a row must be rendered under.
func ancestorIDs(row Row) []string {
	switch r := row.(type) {
	case StageRow:
		return []string{r.SectionID}
	case CategoryRow:
		return []string{r.SectionID, r.StageID}
	case TaskRow:
		return withCategory([]string{r.SectionID, r.StageID}, r.StageID, r.CategoryID)
	case ManualTaskRow:
		return withCategory([]string{r.SectionID, r.StageID}, r.StageID, r.CategoryID)
	case AddPhantomRow:
		return []string{r.SectionID, r.StageID}
	case AddCategoryPhantomRow:
		return withCategory([]string{r.SectionID, r.StageID}, r.StageID, r.CategoryID)
	default:
		return nil
	}
}

func withCategory(ids []string, stageID, categoryID string) []string {
	if categoryID == "" {
		return ids
	}
	return append(ids, CategoryRowID(stageID, categoryID))
}
