// Package board turns sections, catalog items and manual tasks into the ordered row
// model of the scheduling board and groups it into drag-and-drop segments.
package board

import "github.com/evanschultz/stageboard/internal/domain"

// Kind discriminates row variants.
type Kind string

// Kind values, one per concrete Row type.
const (
	KindSection            Kind = "section"
	KindStage              Kind = "stage"
	KindCategory           Kind = "category"
	KindTask               Kind = "task"
	KindManualTask         Kind = "manual_task"
	KindAddPhantom         Kind = "add_phantom"
	KindAddCategoryPhantom Kind = "add_category_phantom"
)

// Row is one display row. The set of implementations is closed; consumers switch on
// the concrete type.
type Row interface {
	RowID() string
	Kind() Kind
	isRow()
}

// SectionRow heads one section.
type SectionRow struct {
	ID      string
	Name    string
	HasData bool
}

// StageRow heads one (section, stage) pair.
type StageRow struct {
	ID        string
	SectionID string
	Stage     domain.Stage
	Label     string
	Color     string
	Active    bool
	HasData   bool
	TaskCount int
}

// CategoryRow heads one catalog or custom category inside a stage.
type CategoryRow struct {
	ID         string
	SectionID  string
	StageID    string
	Stage      domain.Stage
	CategoryID string
	Name       string
	Custom     bool
	TaskCount  int
}

// TaskRow is a catalog-bound task.
type TaskRow struct {
	ID         string
	SectionID  string
	StageID    string
	Stage      domain.Stage
	CategoryID string
	ItemID     string
	TaskID     string
	Name       string
	ParentID   string
	IsSubtask  bool
	Completed  bool
	Assignee   string
	Task       *domain.ScheduledTask
}

// ManualTaskRow is a user-created task.
type ManualTaskRow struct {
	ID         string
	SectionID  string
	StageID    string
	Stage      domain.Stage
	CategoryID string
	TaskID     string
	Name       string
	ParentID   string
	IsSubtask  bool
	Completed  bool
	Assignee   string
	Task       domain.ManualTask
}

// AddPhantomRow is the trailing "create task" affordance of a stage.
type AddPhantomRow struct {
	ID        string
	SectionID string
	StageID   string
	Stage     domain.Stage
}

// AddCategoryPhantomRow is the trailing "create task" affordance of a category.
type AddCategoryPhantomRow struct {
	ID         string
	SectionID  string
	StageID    string
	Stage      domain.Stage
	CategoryID string
}

func (r SectionRow) RowID() string            { return r.ID }
func (r StageRow) RowID() string              { return r.ID }
func (r CategoryRow) RowID() string           { return r.ID }
func (r TaskRow) RowID() string               { return r.ID }
func (r ManualTaskRow) RowID() string         { return r.ID }
func (r AddPhantomRow) RowID() string         { return r.ID }
func (r AddCategoryPhantomRow) RowID() string { return r.ID }

func (SectionRow) Kind() Kind            { return KindSection }
func (StageRow) Kind() Kind              { return KindStage }
func (CategoryRow) Kind() Kind           { return KindCategory }
func (TaskRow) Kind() Kind               { return KindTask }
func (ManualTaskRow) Kind() Kind         { return KindManualTask }
func (AddPhantomRow) Kind() Kind         { return KindAddPhantom }
func (AddCategoryPhantomRow) Kind() Kind { return KindAddCategoryPhantom }

func (SectionRow) isRow()            {}
func (StageRow) isRow()              {}
func (CategoryRow) isRow()           {}
func (TaskRow) isRow()               {}
func (ManualTaskRow) isRow()         {}
func (AddPhantomRow) isRow()         {}
func (AddCategoryPhantomRow) isRow() {}

// DraggableID returns the id used in segment containers: the bound task id or the
// manual task id. It is "" for rows that cannot be dragged.
func DraggableID(row Row) string {
	switch r := row.(type) {
	case TaskRow:
		return r.TaskID
	case ManualTaskRow:
		return r.TaskID
	default:
		return ""
	}
}

// IsTaskRow reports whether row is a catalog or manual task row.
func IsTaskRow(row Row) bool {
	switch row.(type) {
	case TaskRow, ManualTaskRow:
		return true
	default:
		return false
	}
}

// Row id helpers. Ids depend only on entity ids, stage codes and category keys.

// SectionRowID returns the row id of a section.
func SectionRowID(sectionID string) string {
	return sectionID
}

// StageRowID returns the row id of a stage under a section.
func StageRowID(sectionID string, stage domain.Stage) string {
	return domain.StageKey(sectionID, stage)
}

// CategoryRowID returns the row id of a category under a stage row.
func CategoryRowID(stageRowID, categoryKeyOrName string) string {
	return stageRowID + "-cat-" + categoryKeyOrName
}

// TaskRowID returns the row id of a catalog-bound task row.
func TaskRowID(itemID string) string {
	return "item-" + itemID
}

// ManualTaskRowID returns the row id of a manual task row.
func ManualTaskRowID(taskID string) string {
	return "manual-" + taskID
}

// PhantomRowID returns the row id of the phantom row closing a stage or category.
func PhantomRowID(ownerRowID string) string {
	return ownerRowID + "-add"
}
