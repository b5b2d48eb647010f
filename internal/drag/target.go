package drag

import (
	"strings"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
)

// Source describes the picked-up task.
type Source struct {
	TaskID     string
	Manual     bool
	Stage      domain.Stage
	CategoryID string
	StageKey   string
	SegmentKey string
}

// TargetKind classifies drop targets.
type TargetKind int

// TargetKind values.
const (
	TargetTask TargetKind = iota
	TargetCategory
	TargetStage
)

// Target is the row currently under the pointer.
type Target struct {
	Kind   TargetKind
	TaskID string
	Scope  board.Scope
}

// Key returns the segment key addressed by the target.
func (t Target) Key() string {
	return board.SegmentKey(t.Scope.StageID, t.Scope.CategoryID)
}

// normalizeCategoryID treats blank and missing category ids as "no category".
func normalizeCategoryID(id string) string {
	return strings.TrimSpace(id)
}

// IsValidDrop reports whether source may land in (stage, categoryID). Manual tasks may
// land anywhere; catalog tasks keep their catalog-derived stage and category.
func IsValidDrop(source Source, stage domain.Stage, categoryID string) bool {
	if source.Manual {
		return true
	}
	return source.Stage == stage && normalizeCategoryID(source.CategoryID) == normalizeCategoryID(categoryID)
}

// SourceFromRow returns the drag source of a task row.
func SourceFromRow(row board.Row) (Source, bool) {
	switch r := row.(type) {
	case board.TaskRow:
		if r.TaskID == "" {
			return Source{}, false
		}
		return Source{
			TaskID:     r.TaskID,
			Stage:      r.Stage,
			CategoryID: r.CategoryID,
			StageKey:   r.StageID,
			SegmentKey: board.SegmentKey(r.StageID, normalizeCategoryID(r.CategoryID)),
		}, true
	case board.ManualTaskRow:
		if r.TaskID == "" {
			return Source{}, false
		}
		return Source{
			TaskID:     r.TaskID,
			Manual:     true,
			Stage:      r.Stage,
			CategoryID: r.CategoryID,
			StageKey:   r.StageID,
			SegmentKey: board.SegmentKey(r.StageID, normalizeCategoryID(r.CategoryID)),
		}, true
	default:
		return Source{}, false
	}
}

// TargetFromRow resolves the drop target of a row. Category names come from layout so
// phantom rows resolve to their category.
func TargetFromRow(row board.Row, layout board.Layout) (Target, bool) {
	switch r := row.(type) {
	case board.TaskRow:
		if r.TaskID == "" {
			return Target{}, false
		}
		return Target{Kind: TargetTask, TaskID: r.TaskID, Scope: scopeOf(layout, r.SectionID, r.StageID, r.Stage, r.CategoryID)}, true
	case board.ManualTaskRow:
		if r.TaskID == "" {
			return Target{}, false
		}
		return Target{Kind: TargetTask, TaskID: r.TaskID, Scope: scopeOf(layout, r.SectionID, r.StageID, r.Stage, r.CategoryID)}, true
	case board.CategoryRow:
		scope := scopeOf(layout, r.SectionID, r.StageID, r.Stage, r.CategoryID)
		scope.CategoryName = r.Name
		scope.Custom = r.Custom
		return Target{Kind: TargetCategory, Scope: scope}, true
	case board.AddCategoryPhantomRow:
		return Target{Kind: TargetCategory, Scope: scopeOf(layout, r.SectionID, r.StageID, r.Stage, r.CategoryID)}, true
	case board.StageRow:
		return Target{Kind: TargetStage, Scope: scopeOf(layout, r.SectionID, r.ID, r.Stage, "")}, true
	case board.AddPhantomRow:
		return Target{Kind: TargetStage, Scope: scopeOf(layout, r.SectionID, r.StageID, r.Stage, "")}, true
	default:
		return Target{}, false
	}
}

func scopeOf(layout board.Layout, sectionID, stageID string, stage domain.Stage, categoryID string) board.Scope {
	categoryID = normalizeCategoryID(categoryID)
	if scope, ok := layout.Scope(board.SegmentKey(stageID, categoryID)); ok {
		return scope
	}
	return board.Scope{SectionID: sectionID, StageID: stageID, Stage: stage, CategoryID: categoryID}
}
