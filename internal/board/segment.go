package board

import (
	"slices"

	"github.com/evanschultz/stageboard/internal/domain"
)

// SectionBlock is one section header with its stage blocks.
type SectionBlock struct {
	Section SectionRow
	Stages  []StageBlock
}

// StageBlock is one stage header, its content rows and the trailing stage phantom.
type StageBlock struct {
	Stage   StageRow
	Content []Row
	Phantom *AddPhantomRow
}

// Segment is the run of rows under one category header, or the implicit run before the
// first header. It is the unit of drag-and-drop locality.
type Segment struct {
	Category *CategoryRow
	Rows     []Row
}

// GroupSections regroups filtered rows into section blocks.
func GroupSections(rows []Row) []SectionBlock {
	var out []SectionBlock
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		section := rows[start].(SectionRow)
		out = append(out, SectionBlock{Section: section, Stages: GroupStageBlocks(rows[start+1 : end])})
	}
	for idx, row := range rows {
		if _, ok := row.(SectionRow); ok {
			flush(idx)
			start = idx
		}
	}
	flush(len(rows))
	return out
}

// GroupStageBlocks regroups filtered rows into stage blocks. Rows outside any stage are
// ignored and a section row closes the open block.
func GroupStageBlocks(rows []Row) []StageBlock {
	var out []StageBlock
	var current *StageBlock
	closeBlock := func() {
		if current != nil {
			out = append(out, *current)
			current = nil
		}
	}
	for _, row := range rows {
		switch r := row.(type) {
		case SectionRow:
			closeBlock()
		case StageRow:
			closeBlock()
			current = &StageBlock{Stage: r}
		case AddPhantomRow:
			if current != nil && r.StageID == current.Stage.ID {
				phantom := r
				current.Phantom = &phantom
			}
		default:
			if current != nil {
				current.Content = append(current.Content, row)
			}
		}
	}
	closeBlock()
	return out
}

// StageSegments splits stage content at every category row. Rows before the first
// category form a leading implicit segment; content with no category rows is one
// implicit segment, even when empty.
func StageSegments(content []Row) []Segment {
	var out []Segment
	current := Segment{}
	for _, row := range content {
		if category, ok := row.(CategoryRow); ok {
			if current.Category != nil || len(current.Rows) > 0 {
				out = append(out, current)
			}
			header := category
			current = Segment{Category: &header}
			continue
		}
		current.Rows = append(current.Rows, row)
	}
	if current.Category != nil || len(current.Rows) > 0 || len(out) == 0 {
		out = append(out, current)
	}
	return out
}

// TaskIDs returns the draggable ids of the segment in order. Rows without an id are
// skipped.
func (s Segment) TaskIDs() []string {
	out := make([]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		if id := DraggableID(row); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// CategoryID returns the id of the segment header or "".
func (s Segment) CategoryID() string {
	if s.Category == nil {
		return ""
	}
	return s.Category.CategoryID
}

// SegmentKey scopes sibling ordering to one stage and category. An empty category id
// is the implicit uncategorized segment.
func SegmentKey(stageID, categoryID string) string {
	return stageID + "::" + categoryID
}

// Scope locates one segment in the tree.
type Scope struct {
	SectionID    string
	StageID      string
	Stage        domain.Stage
	CategoryID   string
	CategoryName string
	Custom       bool
}

// Layout is an immutable map of segment key to ordered task ids with a reverse index.
// Mutators return a new Layout and leave the receiver untouched.
type Layout struct {
	keys     []string
	segments map[string][]string
	scopes   map[string]Scope
	owner    map[string]string
	manual   map[string]bool
}

// BuildLayout indexes the segments of rows. A task id is owned by the first segment that
// lists it.
func BuildLayout(rows []Row) Layout {
	layout := Layout{
		segments: map[string][]string{},
		scopes:   map[string]Scope{},
		owner:    map[string]string{},
		manual:   map[string]bool{},
	}
	for _, block := range GroupStageBlocks(rows) {
		for _, segment := range StageSegments(block.Content) {
			scope := Scope{
				SectionID:  block.Stage.SectionID,
				StageID:    block.Stage.ID,
				Stage:      block.Stage.Stage,
				CategoryID: segment.CategoryID(),
			}
			if segment.Category != nil {
				scope.CategoryName = segment.Category.Name
				scope.Custom = segment.Category.Custom
			}
			key := SegmentKey(scope.StageID, scope.CategoryID)
			if _, seen := layout.scopes[key]; !seen {
				layout.keys = append(layout.keys, key)
				layout.scopes[key] = scope
			}
			for _, row := range segment.Rows {
				id := DraggableID(row)
				if id == "" {
					continue
				}
				if _, owned := layout.owner[id]; owned {
					continue
				}
				layout.owner[id] = key
				layout.segments[key] = append(layout.segments[key], id)
				_, isManual := row.(ManualTaskRow)
				layout.manual[id] = isManual
			}
		}
	}
	return layout
}

// Keys returns the segment keys in tree order.
func (l Layout) Keys() []string {
	return slices.Clone(l.keys)
}

// Segment returns a copy of the ordered task ids of key.
func (l Layout) Segment(key string) []string {
	return slices.Clone(l.segments[key])
}

// Scope returns the scope of key.
func (l Layout) Scope(key string) (Scope, bool) {
	scope, ok := l.scopes[key]
	return scope, ok
}

// SegmentOf returns the key of the segment owning taskID.
func (l Layout) SegmentOf(taskID string) (string, bool) {
	key, ok := l.owner[taskID]
	return key, ok
}

// IsManual reports whether taskID belongs to a manual task row.
func (l Layout) IsManual(taskID string) bool {
	return l.manual[taskID]
}

// Len returns the number of indexed task ids.
func (l Layout) Len() int {
	return len(l.owner)
}

// WithOrder returns a layout whose segment key lists ids in the given order. The ids
// must be exactly the current members of the segment.
func (l Layout) WithOrder(key string, ids []string) (Layout, bool) {
	current, ok := l.segments[key]
	if !ok || !sameMembers(current, ids) {
		return l, false
	}
	next := l.clone()
	next.segments[key] = slices.Clone(ids)
	return next, true
}

// WithMove returns a layout where taskID is appended to the segment described by scope,
// creating that segment when it is not indexed yet.
func (l Layout) WithMove(taskID string, scope Scope) (Layout, bool) {
	from, ok := l.owner[taskID]
	if !ok {
		return l, false
	}
	to := SegmentKey(scope.StageID, scope.CategoryID)
	next := l.clone()
	next.segments[from] = slices.DeleteFunc(next.segments[from], func(id string) bool {
		return id == taskID
	})
	if _, seen := next.scopes[to]; !seen {
		next.keys = append(next.keys, to)
		next.scopes[to] = scope
	}
	next.segments[to] = append(next.segments[to], taskID)
	next.owner[taskID] = to
	return next, true
}

func (l Layout) clone() Layout {
	next := Layout{
		keys:     slices.Clone(l.keys),
		segments: make(map[string][]string, len(l.segments)),
		scopes:   make(map[string]Scope, len(l.scopes)),
		owner:    make(map[string]string, len(l.owner)),
		manual:   make(map[string]bool, len(l.manual)),
	}
	for k, v := range l.segments {
		next.segments[k] = slices.Clone(v)
	}
	for k, v := range l.scopes {
		next.scopes[k] = v
	}
	for k, v := range l.owner {
		next.owner[k] = v
	}
	for k, v := range l.manual {
		next.manual[k] = v
	}
	return next
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
