package tui

import "github.com/evanschultz/stageboard/internal/board"

// arrangeRows reorders the task rows of rows to follow layout, which may carry drops
// that are not persisted yet. Header and phantom rows keep their place; each segment's
// tasks are emitted once, right where the segment starts. Moved manual rows are
// re-scoped to their new segment.
func arrangeRows(rows []board.Row, layout board.Layout) []board.Row {
	byID := make(map[string]board.Row, layout.Len())
	for _, row := range rows {
		if id := board.DraggableID(row); id != "" {
			if _, seen := byID[id]; !seen {
				byID[id] = row
			}
		}
	}

	out := make([]board.Row, 0, len(rows))
	emitted := map[string]bool{}
	current := ""
	flush := func() {
		if current == "" || emitted[current] {
			return
		}
		emitted[current] = true
		scope, _ := layout.Scope(current)
		for _, id := range layout.Segment(current) {
			row, ok := byID[id]
			if !ok {
				continue
			}
			out = append(out, rescope(row, scope))
		}
	}

	for _, row := range rows {
		switch r := row.(type) {
		case board.SectionRow:
			flush()
			current = ""
			out = append(out, row)
		case board.StageRow:
			flush()
			current = board.SegmentKey(r.ID, "")
			out = append(out, row)
		case board.CategoryRow:
			flush()
			current = board.SegmentKey(r.StageID, r.CategoryID)
			out = append(out, row)
		case board.AddCategoryPhantomRow, board.AddPhantomRow:
			flush()
			out = append(out, row)
		case board.TaskRow, board.ManualTaskRow:
			flush()
		default:
			out = append(out, row)
		}
	}
	flush()
	return out
}

// rescope points a manual row at scope when a pending move changed its segment.
func rescope(row board.Row, scope board.Scope) board.Row {
	manual, ok := row.(board.ManualTaskRow)
	if !ok || scope.StageID == "" {
		return row
	}
	if manual.StageID == scope.StageID && manual.CategoryID == scope.CategoryID {
		return row
	}
	manual.SectionID = scope.SectionID
	manual.StageID = scope.StageID
	manual.Stage = scope.Stage
	manual.CategoryID = scope.CategoryID
	return manual
}
