package board

// View holds the expansion state applied on top of the maximal row tree.
type View struct {
	ExpandedSections    IDSet
	ExpandedStages      IDSet
	CollapsedCategories IDSet
}

// ExpandAll returns a view with every section and stage of rows open.
func ExpandAll(rows []Row) View {
	view := View{
		ExpandedSections:    IDSet{},
		ExpandedStages:      IDSet{},
		CollapsedCategories: IDSet{},
	}
	for _, row := range rows {
		switch r := row.(type) {
		case SectionRow:
			view.ExpandedSections[r.ID] = struct{}{}
		case StageRow:
			view.ExpandedStages[r.ID] = struct{}{}
		}
	}
	return view
}

// ApplyFilters prunes rows by sections, then stages, then categories. Each pass relies on
// the previous one having removed rows whose ancestor header is gone.
func ApplyFilters(rows []Row, view View) []Row {
	rows = FilterByExpandedSections(rows, view.ExpandedSections)
	rows = FilterByExpandedStages(rows, view.ExpandedStages)
	return FilterByExpandedCategories(rows, view.CollapsedCategories)
}

// FilterByExpandedSections keeps every section row and the rows under open sections.
func FilterByExpandedSections(rows []Row, open IDSet) []Row {
	out := make([]Row, 0, len(rows))
	keep := false
	for _, row := range rows {
		if section, ok := row.(SectionRow); ok {
			keep = open.Has(section.ID)
			out = append(out, row)
			continue
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// FilterByExpandedStages keeps section and stage rows and the rows under open stages.
// Tracking resets at every section boundary.
func FilterByExpandedStages(rows []Row, open IDSet) []Row {
	out := make([]Row, 0, len(rows))
	keep := false
	for _, row := range rows {
		switch r := row.(type) {
		case SectionRow:
			keep = false
			out = append(out, row)
		case StageRow:
			keep = open.Has(r.ID)
			out = append(out, row)
		default:
			if keep {
				out = append(out, row)
			}
		}
	}
	return out
}

// FilterByExpandedCategories drops the rows under collapsed categories. Header rows are
// always kept and the stage phantom belongs to the stage, not to the last category.
func FilterByExpandedCategories(rows []Row, collapsed IDSet) []Row {
	out := make([]Row, 0, len(rows))
	drop := false
	for _, row := range rows {
		switch r := row.(type) {
		case SectionRow, StageRow, AddPhantomRow:
			drop = false
			out = append(out, row)
		case CategoryRow:
			drop = collapsed.Has(r.ID)
			out = append(out, row)
		default:
			if !drop {
				out = append(out, row)
			}
		}
	}
	return out
}
