package app

import (
	"context"

	"github.com/evanschultz/stageboard/internal/activation"
	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/drag"
)

// Board is one loaded snapshot of the board: the unfiltered rows and the indexes
// derived from them.
type Board struct {
	Sections   []domain.Section
	Rows       []board.Row
	Layout     board.Layout
	Activation activation.State
}

// newBoard builds rows and indexes from repository data.
func newBoard(sections []domain.Section, items []domain.CatalogItem, manual []domain.ManualTask, customs []domain.CustomCategory, activated []string, supportsCustom bool) Board {
	itemsByID := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}
	customsByStage := map[string][]domain.CustomCategory{}
	for _, custom := range customs {
		key := custom.StageKey()
		customsByStage[key] = append(customsByStage[key], custom)
	}
	active := board.IDSet{}
	for _, section := range sections {
		if section.Active {
			active[section.ID] = struct{}{}
		}
	}
	rows := board.BuildRows(board.BuildInput{
		Sections:                 sections,
		CatalogItems:             itemsByID,
		ManualTasks:              manual,
		ActiveSectionIDs:         active,
		ActivatedKeys:            board.NewIDSet(activated...),
		CustomCategories:         customsByStage,
		SupportsCustomCategories: supportsCustom,
	})
	return Board{
		Sections:   sections,
		Rows:       rows,
		Layout:     board.BuildLayout(rows),
		Activation: activation.NewState(activated, customsByStage, activation.IndexRows(rows)),
	}
}

// Filter returns the rows visible under view.
func (b Board) Filter(view board.View) []board.Row {
	return board.ApplyFilters(b.Rows, view)
}

// Row looks a row up by id.
func (b Board) Row(id string) (board.Row, bool) {
	for _, row := range b.Rows {
		if row.RowID() == id {
			return row, true
		}
	}
	return nil, false
}

// TaskIDsIn returns the task ids under a stage, limited to one category when
// categoryID is not blank.
func (b Board) TaskIDsIn(stageID, categoryID string) []string {
	var out []string
	for _, key := range b.Layout.Keys() {
		scope, _ := b.Layout.Scope(key)
		if scope.StageID != stageID {
			continue
		}
		if categoryID != "" && scope.CategoryID != categoryID {
			continue
		}
		out = append(out, b.Layout.Segment(key)...)
	}
	return out
}

// NewDragSession returns a drag session over the board layout that commits through s.
func (s *Service) NewDragSession(b Board, cfg drag.Config) *drag.Session {
	return drag.NewSession(b.Layout, dragCommitter{svc: s}, cfg)
}

// dragCommitter persists drop intents through the service.
type dragCommitter struct {
	svc *Service
}

// CommitReorder persists the full segment order of a reorder.
func (c dragCommitter) CommitReorder(ctx context.Context, intent drag.ReorderIntent) error {
	return c.svc.ApplyOrder(ctx, intent.SegmentKey, intent.Order)
}

// CommitMove persists a cross-scope move.
func (c dragCommitter) CommitMove(ctx context.Context, intent drag.MoveIntent) error {
	return c.svc.MoveTaskStage(ctx, intent.TaskID, intent.Stage, intent.CategoryID, intent.CategoryName)
}
