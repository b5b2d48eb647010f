package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewSectionAndCategoryValidation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("CST", -6*3600))
	section, err := NewSection(" foto ", " Foto ", 0, now)
	if err != nil {
		t.Fatalf("NewSection() error = %v", err)
	}
	if section.ID != "foto" || section.Name != "Foto" || !section.Active {
		t.Fatalf("unexpected section %#v", section)
	}
	if section.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %v", section.CreatedAt.Location())
	}

	cases := []struct {
		name string
		err  error
		fn   func() error
	}{
		{"section id", ErrInvalidID, func() error { _, err := NewSection("", "x", 0, now); return err }},
		{"section name", ErrInvalidName, func() error { _, err := NewSection("s", " ", 0, now); return err }},
		{"section position", ErrInvalidOrder, func() error { _, err := NewSection("s", "x", -1, now); return err }},
		{"category section", ErrInvalidID, func() error { _, err := NewCatalogCategory("c", "", "x", 0, now); return err }},
		{"category name", ErrInvalidName, func() error { _, err := NewCatalogCategory("c", "s", "", 0, now); return err }},
		{"category order", ErrInvalidOrder, func() error { _, err := NewCatalogCategory("c", "s", "x", -2, now); return err }},
		{"custom stage", ErrInvalidStage, func() error { _, err := NewCustomCategory("cc", "s", "REVIEW", "x", 0, now); return err }},
		{"custom name", ErrInvalidName, func() error { _, err := NewCustomCategory("cc", "s", StageDelivery, "", 0, now); return err }},
	}
	for _, tc := range cases {
		if err := tc.fn(); !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestSectionSortedCategories(t *testing.T) {
	section := Section{Categories: []CatalogCategory{
		{ID: "b", Order: 1},
		{ID: "a", Order: 0},
		{ID: "c", Order: 1},
	}}
	sorted := section.SortedCategories()
	if sorted[0].ID != "a" || sorted[1].ID != "b" || sorted[2].ID != "c" {
		t.Fatalf("unexpected order %#v", sorted)
	}
	if section.Categories[0].ID != "b" {
		t.Fatal("expected SortedCategories to leave the section untouched")
	}
	if _, ok := section.CategoryByID("c"); !ok {
		t.Fatal("expected to find category c")
	}
	if _, ok := section.CategoryByID("z"); ok {
		t.Fatal("expected missing category z")
	}
}

func TestStageNormalizationAndKeys(t *testing.T) {
	cases := map[string]Stage{
		"PLANNING":        StagePlanning,
		" production ":    StageProduction,
		"POST_PRODUCTION": StagePostProduction,
		"delivery":        StageDelivery,
		"REVIEW":          StagePostProduction,
		"EDITING":         StagePostProduction,
		"":                StagePlanning,
		"unknown":         StagePlanning,
	}
	for raw, want := range cases {
		if got := NormalizeStage(raw); got != want {
			t.Fatalf("NormalizeStage(%q) = %q, want %q", raw, got, want)
		}
	}
	if IsKnownStage("REVIEW") {
		t.Fatal("legacy alias should not count as a known stage")
	}

	key := StageKey("foto-extra", StagePostProduction)
	if key != "foto-extra-POST_PRODUCTION" {
		t.Fatalf("unexpected stage key %q", key)
	}
	sectionID, stage, ok := ParseStageKey(key)
	if !ok || sectionID != "foto-extra" || stage != StagePostProduction {
		t.Fatalf("ParseStageKey(%q) = %q, %q, %v", key, sectionID, stage, ok)
	}
	if _, _, ok := ParseStageKey("-PLANNING"); ok {
		t.Fatal("expected blank section id to be rejected")
	}
	if got := CategoryActivationKey(key, "cc1"); got != "foto-extra-POST_PRODUCTION/cc1" {
		t.Fatalf("unexpected category activation key %q", got)
	}
	if StageDelivery.Index() != 3 || Stage("X").Index() != -1 {
		t.Fatal("unexpected stage indexes")
	}
	if StagePlanning.Label() != "Planeación" || Stage("X").Color() != "#888888" {
		t.Fatal("unexpected stage display values")
	}
	stages := Stages()
	stages[0] = StageDelivery
	if Stages()[0] != StagePlanning {
		t.Fatal("expected Stages() to return a copy")
	}
}

func TestNewManualTaskDefaults(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	task, err := NewManualTask(ManualTaskInput{
		ID:           "m1",
		Name:         " Scout venue ",
		DurationDays: 3,
		Assignee:     " ana ",
	}, now)
	if err != nil {
		t.Fatalf("NewManualTask() error = %v", err)
	}
	if task.Name != "Scout venue" || task.Assignee != "ana" {
		t.Fatalf("unexpected trimmed fields %#v", task)
	}
	if task.Stage() != StagePlanning {
		t.Fatalf("expected default stage PLANNING, got %q", task.Stage())
	}
	wantStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !task.StartDate.Equal(wantStart) || !task.EndDate.Equal(wantEnd) {
		t.Fatalf("unexpected window %v..%v", task.StartDate, task.EndDate)
	}
}

func TestNewManualTaskValidation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	base := ManualTaskInput{ID: "m1", Name: "x", DurationDays: 1}
	cases := []struct {
		name string
		err  error
		edit func(*ManualTaskInput)
	}{
		{"id", ErrInvalidID, func(in *ManualTaskInput) { in.ID = " " }},
		{"name", ErrInvalidName, func(in *ManualTaskInput) { in.Name = "" }},
		{"duration", ErrInvalidDuration, func(in *ManualTaskInput) { in.DurationDays = 0 }},
		{"budget", ErrInvalidBudget, func(in *ManualTaskInput) { in.BudgetAmount = -1 }},
		{"order", ErrInvalidOrder, func(in *ManualTaskInput) { in.Order = -1 }},
		{"self parent", ErrInvalidParentID, func(in *ManualTaskInput) { in.ParentID = "m1" }},
		{"stage", ErrInvalidStage, func(in *ManualTaskInput) { in.Stage = "REVIEW" }},
	}
	for _, tc := range cases {
		in := base
		tc.edit(&in)
		if _, err := NewManualTask(in, now); !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestManualTaskPatchKeepsDatesConsistent(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	task, err := NewManualTask(ManualTaskInput{ID: "m1", Name: "x", DurationDays: 2}, now)
	if err != nil {
		t.Fatalf("NewManualTask() error = %v", err)
	}

	duration := 5
	if err := task.ApplyPatch(ManualTaskPatch{DurationDays: &duration}, now); err != nil {
		t.Fatalf("ApplyPatch(duration) error = %v", err)
	}
	if task.DurationDays != 5 || !task.EndDate.Equal(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected duration patch result %d %v", task.DurationDays, task.EndDate)
	}

	end := time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC)
	if err := task.ApplyPatch(ManualTaskPatch{EndDate: &end}, now); err != nil {
		t.Fatalf("ApplyPatch(end) error = %v", err)
	}
	if task.DurationDays != 2 {
		t.Fatalf("expected duration derived from dates, got %d", task.DurationDays)
	}

	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	name := "renamed"
	err = task.ApplyPatch(ManualTaskPatch{Name: &name, EndDate: &before}, now)
	if !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
	if task.Name != "x" {
		t.Fatal("expected failed patch to leave the task untouched")
	}

	stage := StageDelivery
	category := " cc1 "
	done := true
	if err := task.ApplyPatch(ManualTaskPatch{Stage: &stage, CatalogCategoryID: &category, Completed: &done}, now); err != nil {
		t.Fatalf("ApplyPatch(stage) error = %v", err)
	}
	if task.Stage() != StageDelivery || task.CatalogCategoryID != "cc1" || !task.Completed {
		t.Fatalf("unexpected stage patch result %#v", task)
	}
}

func TestManualTaskMoveAndOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	task := ManualTask{ID: "m1", Name: "x", Category: "REVIEW"}
	if task.Stage() != StagePostProduction {
		t.Fatalf("expected legacy category to normalize, got %q", task.Stage())
	}
	if err := task.Move("bogus", "c1", now); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
	if err := task.Move(StageProduction, " c1 ", now); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if task.Category != "PRODUCTION" || task.CatalogCategoryID != "c1" {
		t.Fatalf("unexpected moved task %#v", task)
	}
	if err := task.SetOrder(-1, now); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestScheduledTaskDatesAndItemStage(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	item := CatalogItem{ID: "i1"}
	if item.StageOf() != StagePlanning || item.TaskID() != "" {
		t.Fatal("unbound item should default to PLANNING with no task id")
	}
	task := &ScheduledTask{ID: " t1 ", ItemID: "i1", Stage: "delivery"}
	item.Task = task
	if item.StageOf() != StageDelivery || item.TaskID() != "t1" {
		t.Fatalf("unexpected bound item stage %q id %q", item.StageOf(), item.TaskID())
	}

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 12, 1, 0, 0, 0, time.UTC)
	if err := task.SetDates(&start, &end, now); err != nil {
		t.Fatalf("SetDates() error = %v", err)
	}
	if task.DurationDays != 3 {
		t.Fatalf("expected inclusive duration 3, got %d", task.DurationDays)
	}
	if err := task.SetDates(&end, &start, now); !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
	task.Move(StageProduction, now)
	if task.Stage != "PRODUCTION" {
		t.Fatalf("unexpected stage %q", task.Stage)
	}
	if got := EndFromDuration(start, 0); !got.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected zero duration to clamp to one day, got %v", got)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection(" UP "); err != nil || d != DirectionUp || d.Delta() != -1 {
		t.Fatalf("ParseDirection(up) = %q, %v", d, err)
	}
	if d, err := ParseDirection("down"); err != nil || d.Delta() != 1 {
		t.Fatalf("ParseDirection(down) = %q, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}
