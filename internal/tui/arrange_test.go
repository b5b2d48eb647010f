package tui

import (
	"slices"
	"testing"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
)

// arrangeFixture returns one section with a planning stage holding two uncategorized
// tasks and a category, followed by an empty production stage.
func arrangeFixture() []board.Row {
	planning := board.StageRowID("foto", domain.StagePlanning)
	production := board.StageRowID("foto", domain.StageProduction)
	category := board.CategoryRowID(planning, "cat-1")
	manual := func(id, categoryID string) board.ManualTaskRow {
		return board.ManualTaskRow{
			ID:         board.ManualTaskRowID(id),
			SectionID:  "foto",
			StageID:    planning,
			Stage:      domain.StagePlanning,
			CategoryID: categoryID,
			TaskID:     id,
			Name:       id,
		}
	}
	return []board.Row{
		board.SectionRow{ID: "foto", Name: "Foto"},
		board.StageRow{ID: planning, SectionID: "foto", Stage: domain.StagePlanning},
		manual("a", ""),
		manual("b", ""),
		board.CategoryRow{ID: category, SectionID: "foto", StageID: planning, Stage: domain.StagePlanning, CategoryID: "cat-1", Name: "Drones", Custom: true},
		manual("c", "cat-1"),
		board.AddCategoryPhantomRow{ID: board.PhantomRowID(category), SectionID: "foto", StageID: planning, Stage: domain.StagePlanning, CategoryID: "cat-1"},
		board.AddPhantomRow{ID: board.PhantomRowID(planning), SectionID: "foto", StageID: planning, Stage: domain.StagePlanning},
		board.StageRow{ID: production, SectionID: "foto", Stage: domain.StageProduction},
		board.AddPhantomRow{ID: board.PhantomRowID(production), SectionID: "foto", StageID: production, Stage: domain.StageProduction},
	}
}

func rowIDsOf(rows []board.Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.RowID())
	}
	return out
}

func TestArrangeRowsKeepsBuiltOrder(t *testing.T) {
	rows := arrangeFixture()
	got := arrangeRows(rows, board.BuildLayout(rows))
	if !slices.Equal(rowIDsOf(got), rowIDsOf(rows)) {
		t.Fatalf("arrangeRows() = %v, want %v", rowIDsOf(got), rowIDsOf(rows))
	}
}

func TestArrangeRowsFollowsPendingReorder(t *testing.T) {
	rows := arrangeFixture()
	planning := board.StageRowID("foto", domain.StagePlanning)
	layout, ok := board.BuildLayout(rows).WithOrder(board.SegmentKey(planning, ""), []string{"b", "a"})
	if !ok {
		t.Fatal("WithOrder() rejected the segment members")
	}

	got := rowIDsOf(arrangeRows(rows, layout))
	if got[2] != "manual-b" || got[3] != "manual-a" {
		t.Fatalf("expected b before a, got %v", got)
	}
	if len(got) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(got))
	}
}

func TestArrangeRowsRescopesPendingMove(t *testing.T) {
	rows := arrangeFixture()
	production := board.StageRowID("foto", domain.StageProduction)
	layout, ok := board.BuildLayout(rows).WithMove("c", board.Scope{SectionID: "foto", StageID: production, Stage: domain.StageProduction})
	if !ok {
		t.Fatal("WithMove() rejected the task")
	}

	got := arrangeRows(rows, layout)
	ids := rowIDsOf(got)
	want := []string{
		"foto",
		board.StageRowID("foto", domain.StagePlanning),
		"manual-a",
		"manual-b",
		board.CategoryRowID(board.StageRowID("foto", domain.StagePlanning), "cat-1"),
		board.PhantomRowID(board.CategoryRowID(board.StageRowID("foto", domain.StagePlanning), "cat-1")),
		board.PhantomRowID(board.StageRowID("foto", domain.StagePlanning)),
		production,
		"manual-c",
		board.PhantomRowID(production),
	}
	if !slices.Equal(ids, want) {
		t.Fatalf("arrangeRows() = %v, want %v", ids, want)
	}
	moved, ok := got[8].(board.ManualTaskRow)
	if !ok {
		t.Fatalf("expected manual row, got %T", got[8])
	}
	if moved.StageID != production || moved.Stage != domain.StageProduction || moved.CategoryID != "" {
		t.Fatalf("expected moved row to be re-scoped, got %#v", moved)
	}
}
