package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanschultz/stageboard/internal/domain"
)

func TestBuildRowsScenarioTwoSections(t *testing.T) {
	rows := BuildRows(scenarioInput())

	assert.Equal(t, 2, countKind(rows, KindSection))
	assert.Equal(t, 8, countKind(rows, KindStage))
	assert.Equal(t, 8, countKind(rows, KindAddPhantom))

	assert.Equal(t, 2, taskRowsUnder(rows, "foto-PLANNING"))
	assert.Equal(t, 2, taskRowsUnder(rows, "video-PLANNING"))
	assert.Equal(t, 0, taskRowsUnder(rows, "foto-DELIVERY"))
	assert.Equal(t, 0, taskRowsUnder(rows, "video-DELIVERY"))

	for _, id := range []string{"foto-DELIVERY", "video-DELIVERY"} {
		row, ok := findRow(rows, id)
		require.True(t, ok, "missing stage row %s", id)
		stage := row.(StageRow)
		assert.False(t, stage.Active)
		assert.False(t, stage.HasData)
		_, ok = findRow(rows, PhantomRowID(id))
		assert.True(t, ok, "missing phantom for %s", id)
	}

	planning, ok := findRow(rows, "foto-PLANNING")
	require.True(t, ok)
	assert.True(t, planning.(StageRow).Active)
	assert.Equal(t, 2, planning.(StageRow).TaskCount)

	section, ok := findRow(rows, "foto")
	require.True(t, ok)
	assert.True(t, section.(SectionRow).HasData)
}

func TestBuildRowsStageOrderAndIDs(t *testing.T) {
	rows := BuildRows(scenarioInput())

	var stages []string
	for _, row := range rows {
		if stage, ok := row.(StageRow); ok && stage.SectionID == "foto" {
			stages = append(stages, stage.ID)
		}
	}
	assert.Equal(t, []string{"foto-PLANNING", "foto-PRODUCTION", "foto-POST_PRODUCTION", "foto-DELIVERY"}, stages)

	want := []string{
		"foto",
		"foto-PLANNING",
		"foto-PLANNING-cat-foto-sesion",
		"item-f1",
		"item-f2",
		"foto-PLANNING-add",
	}
	assert.Equal(t, want, rowIDs(rows)[:len(want)])
}

func TestBuildRowsIDsUniqueAndStable(t *testing.T) {
	in := scenarioInput()
	in.ManualTasks = []domain.ManualTask{manualTask("m1", "PLANNING", 0)}
	in.CustomCategories = map[string][]domain.CustomCategory{
		"foto-DELIVERY": {{ID: "cc1", SectionID: "foto", Stage: domain.StageDelivery, Name: "Extras"}},
	}
	in.SupportsCustomCategories = true

	first := rowIDs(BuildRows(in))
	seen := map[string]bool{}
	for _, id := range first {
		assert.False(t, seen[id], "duplicate row id %s", id)
		seen[id] = true
	}
	assert.Equal(t, first, rowIDs(BuildRows(in)))
}

func TestBuildRowsManualTasksRenderOnce(t *testing.T) {
	in := scenarioInput()
	in.ManualTasks = []domain.ManualTask{
		manualTask("m1", "PLANNING", 0),
		manualTask("m2", "DELIVERY", 0),
		manualTask("m3", "REVIEW", 0),
	}

	rows := BuildRows(in)

	assert.Equal(t, 3, countKind(rows, KindManualTask))
	for _, row := range rows {
		if manual, ok := row.(ManualTaskRow); ok {
			assert.Equal(t, "foto", manual.SectionID)
		}
	}
	legacy, ok := findRow(rows, ManualTaskRowID("m3"))
	require.True(t, ok)
	assert.Equal(t, domain.StagePostProduction, legacy.(ManualTaskRow).Stage)
}

func TestBuildRowsUncategorizedManualTasksLead(t *testing.T) {
	in := scenarioInput()
	in.ManualTasks = []domain.ManualTask{
		manualTask("m2", "PLANNING", 1),
		manualTask("m1", "PLANNING", 0),
	}

	ids := rowIDs(BuildRows(in))

	assert.Equal(t, []string{"foto", "foto-PLANNING", "manual-m1", "manual-m2", "foto-PLANNING-cat-foto-sesion"}, ids[:5])
}

func TestBuildRowsManualTaskInCatalogCategory(t *testing.T) {
	in := scenarioInput()
	task := manualTask("m1", "PLANNING", 5)
	task.CatalogCategoryID = "foto-sesion"
	in.ManualTasks = []domain.ManualTask{task}

	rows := BuildRows(in)

	header, ok := findRow(rows, "foto-PLANNING-cat-foto-sesion")
	require.True(t, ok)
	assert.Equal(t, 3, header.(CategoryRow).TaskCount)
	manual, ok := findRow(rows, "manual-m1")
	require.True(t, ok)
	assert.Equal(t, "foto-sesion", manual.(ManualTaskRow).CategoryID)
}

func TestBuildRowsManualTaskFollowsCategorySection(t *testing.T) {
	in := scenarioInput()
	owned := manualTask("m1", "POST_PRODUCTION", 0)
	owned.CatalogCategoryID = "video-edicion"
	orphan := manualTask("m2", "POST_PRODUCTION", 0)
	orphan.CatalogCategoryID = "gone"
	in.ManualTasks = []domain.ManualTask{owned, orphan}

	rows := BuildRows(in)

	row, ok := findRow(rows, "manual-m1")
	require.True(t, ok)
	assert.Equal(t, "video", row.(ManualTaskRow).SectionID)
	assert.Equal(t, "video-edicion", row.(ManualTaskRow).CategoryID)

	row, ok = findRow(rows, "manual-m2")
	require.True(t, ok)
	assert.Equal(t, "foto", row.(ManualTaskRow).SectionID)
	assert.Empty(t, row.(ManualTaskRow).CategoryID)
}

func TestBuildRowsManualTaskInForeignStageCustomCategory(t *testing.T) {
	in := scenarioInput()
	in.SupportsCustomCategories = true
	in.CustomCategories = map[string][]domain.CustomCategory{
		"foto-DELIVERY": {{ID: "cc1", SectionID: "foto", Stage: domain.StageDelivery, Name: "Extras"}},
	}
	stray := manualTask("m1", "PLANNING", 0)
	stray.CatalogCategoryID = "cc1"
	placed := manualTask("m2", "DELIVERY", 0)
	placed.CatalogCategoryID = "cc1"
	in.ManualTasks = []domain.ManualTask{stray, placed}

	rows := BuildRows(in)

	assert.Equal(t, 2, countKind(rows, KindManualTask))
	row, ok := findRow(rows, ManualTaskRowID("m1"))
	require.True(t, ok, "task pointing at another stage's custom category must still render")
	assert.Equal(t, "foto-PLANNING", row.(ManualTaskRow).StageID)
	assert.Empty(t, row.(ManualTaskRow).CategoryID)

	row, ok = findRow(rows, ManualTaskRowID("m2"))
	require.True(t, ok)
	assert.Equal(t, "cc1", row.(ManualTaskRow).CategoryID)
	assert.Equal(t, 3, taskRowsUnder(rows, "foto-PLANNING"))
}

func TestBuildRowsSkipsDanglingItems(t *testing.T) {
	in := scenarioInput()
	in.Sections[0].Categories[0].ItemIDs = append(in.Sections[0].Categories[0].ItemIDs, "missing")

	rows := BuildRows(in)

	assert.Equal(t, 2, taskRowsUnder(rows, "foto-PLANNING"))
	_, ok := findRow(rows, TaskRowID("missing"))
	assert.False(t, ok)
}

func TestBuildRowsSortsCatalogTasksByTaskOrder(t *testing.T) {
	in := scenarioInput()
	f1 := in.CatalogItems["f1"]
	f1.Task.Order = 3
	in.CatalogItems["f1"] = f1

	ids := rowIDs(BuildRows(in))

	assert.Equal(t, []string{"item-f2", "item-f1"}, ids[3:5])
}

func TestBuildRowsActiveSectionFilter(t *testing.T) {
	in := scenarioInput()
	in.Sections = append(in.Sections, domain.Section{ID: "audio", Name: "Audio"})
	in.ActiveSectionIDs = NewIDSet("foto")

	rows := BuildRows(in)

	_, fotoOK := findRow(rows, "foto")
	_, videoOK := findRow(rows, "video")
	_, audioOK := findRow(rows, "audio")
	assert.True(t, fotoOK)
	assert.True(t, videoOK, "sections holding data are always emitted")
	assert.False(t, audioOK)
}

func TestBuildRowsActiveSectionFilterCountsManualTasks(t *testing.T) {
	in := scenarioInput()
	in.Sections = append(in.Sections,
		domain.Section{ID: "audio", Name: "Audio", Categories: []domain.CatalogCategory{{ID: "audio-mezcla", SectionID: "audio", Name: "Mezcla"}}},
		domain.Section{ID: "luces", Name: "Luces"},
	)
	in.CustomCategories = map[string][]domain.CustomCategory{
		"luces-PRODUCTION": {{ID: "cc-luces", SectionID: "luces", Stage: domain.StageProduction, Name: "Rigging"}},
	}
	mix := manualTask("m1", "PLANNING", 0)
	mix.CatalogCategoryID = "audio-mezcla"
	rig := manualTask("m2", "PRODUCTION", 0)
	rig.CatalogCategoryID = "cc-luces"
	in.ManualTasks = []domain.ManualTask{mix, rig}
	in.ActiveSectionIDs = NewIDSet("foto")

	rows := BuildRows(in)

	row, ok := findRow(rows, ManualTaskRowID("m1"))
	require.True(t, ok)
	assert.Equal(t, "audio", row.(ManualTaskRow).SectionID)
	row, ok = findRow(rows, ManualTaskRowID("m2"))
	require.True(t, ok)
	assert.Equal(t, "luces", row.(ManualTaskRow).SectionID)
	assert.Equal(t, "cc-luces", row.(ManualTaskRow).CategoryID)
}

func TestBuildRowsActivation(t *testing.T) {
	in := scenarioInput()
	in.ActivatedKeys = NewIDSet(
		"video-DELIVERY",
		domain.CategoryActivationKey("video-DELIVERY", "video-edicion"),
	)
	in.CustomCategories = map[string][]domain.CustomCategory{
		"foto-PRODUCTION": {{ID: "cc1", SectionID: "foto", Stage: domain.StageProduction, Name: "Extras"}},
	}
	in.SupportsCustomCategories = true

	rows := BuildRows(in)

	delivery, ok := findRow(rows, "video-DELIVERY")
	require.True(t, ok)
	assert.True(t, delivery.(StageRow).Active)
	assert.False(t, delivery.(StageRow).HasData)

	edicion, ok := findRow(rows, "video-DELIVERY-cat-video-edicion")
	require.True(t, ok)
	assert.Equal(t, "Edición", edicion.(CategoryRow).Name)
	assert.Equal(t, 0, edicion.(CategoryRow).TaskCount)
	_, ok = findRow(rows, "video-DELIVERY-cat-video-edicion-add")
	assert.True(t, ok)

	production, ok := findRow(rows, "foto-PRODUCTION")
	require.True(t, ok)
	assert.True(t, production.(StageRow).Active)
	custom, ok := findRow(rows, "foto-PRODUCTION-cat-cc1")
	require.True(t, ok)
	assert.True(t, custom.(CategoryRow).Custom)

	_, ok = findRow(rows, "video-PLANNING-cat-video-edicion")
	assert.False(t, ok, "inactive empty catalog category is hidden")
}

func TestBuildRowsSubtaskResolution(t *testing.T) {
	in := scenarioInput()
	m1 := manualTask("m1", "PLANNING", 0)
	m3 := manualTask("m3", "PLANNING", 1)
	m3.ParentID = "m2"
	m2 := manualTask("m2", "PLANNING", 2)
	m2.ParentID = "m1"
	m4 := manualTask("m4", "PLANNING", 3)
	m4.ParentID = "ghost"
	in.ManualTasks = []domain.ManualTask{m1, m3, m2, m4}

	rows := BuildRows(in)

	var got []string
	subtask := map[string]bool{}
	for _, row := range rows {
		if manual, ok := row.(ManualTaskRow); ok {
			got = append(got, manual.TaskID)
			subtask[manual.TaskID] = manual.IsSubtask
		}
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, got)
	assert.True(t, subtask["m2"])
	assert.False(t, subtask["m3"], "parent that is itself a subtask")
	assert.False(t, subtask["m4"], "dangling parent")
}

func TestBuildRowsDemotesCrossSegmentParent(t *testing.T) {
	in := scenarioInput()
	in.CustomCategories = map[string][]domain.CustomCategory{
		"foto-PLANNING": {{ID: "cc1", SectionID: "foto", Stage: domain.StagePlanning, Name: "Extras"}},
	}
	parent := manualTask("m1", "PLANNING", 0)
	child := manualTask("m2", "PLANNING", 1)
	child.ParentID = "m1"
	child.CatalogCategoryID = "cc1"
	in.ManualTasks = []domain.ManualTask{parent, child}

	rows := BuildRows(in)

	row, ok := findRow(rows, "manual-m2")
	require.True(t, ok)
	assert.False(t, row.(ManualTaskRow).IsSubtask)
	assert.Equal(t, "cc1", row.(ManualTaskRow).CategoryID)
}

func TestBuildRowsEmptyInput(t *testing.T) {
	assert.Empty(t, BuildRows(BuildInput{}))
	rows := BuildRows(BuildInput{ManualTasks: []domain.ManualTask{manualTask("m1", "", 0)}})
	assert.Empty(t, rows, "manual tasks need a section to render under")
}
