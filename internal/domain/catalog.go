package domain

import (
	"strings"
	"time"
)

// CatalogItem is one catalog entry, optionally bound to a scheduled task.
type CatalogItem struct {
	ID         string
	CategoryID string
	Name       string
	Order      int
	Task       *ScheduledTask
}

// ScheduledTask is the scheduling task bound 1:1 to a catalog item.
type ScheduledTask struct {
	ID           string
	ItemID       string
	Stage        string
	StartDate    *time.Time
	EndDate      *time.Time
	DurationDays int
	Completed    bool
	Assignee     string
	ParentID     string
	Order        int
	UpdatedAt    time.Time
}

// StageOf returns the normalized stage of an item, PLANNING when unbound.
func (i CatalogItem) StageOf() Stage {
	if i.Task == nil {
		return StagePlanning
	}
	return NormalizeStage(i.Task.Stage)
}

// TaskID returns the bound task id or "".
func (i CatalogItem) TaskID() string {
	if i.Task == nil {
		return ""
	}
	return strings.TrimSpace(i.Task.ID)
}

// SetDates updates the scheduled window, keeping the duration in sync.
func (t *ScheduledTask) SetDates(start, end *time.Time, now time.Time) error {
	start, end = normalizeDate(start), normalizeDate(end)
	if start != nil && end != nil && end.Before(*start) {
		return ErrInvalidDates
	}
	t.StartDate = start
	t.EndDate = end
	if start != nil && end != nil {
		t.DurationDays = daysBetween(*start, *end)
	}
	t.UpdatedAt = now.UTC()
	return nil
}

// Move re-scopes the task to another stage.
func (t *ScheduledTask) Move(stage Stage, now time.Time) {
	t.Stage = string(stage)
	t.UpdatedAt = now.UTC()
}

// normalizeDate truncates a timestamp to a UTC calendar date.
func normalizeDate(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	u := ts.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// daysBetween counts calendar days in an inclusive window.
func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// EndFromDuration returns the inclusive end date of a window of durationDays.
func EndFromDuration(start time.Time, durationDays int) time.Time {
	if durationDays < 1 {
		durationDays = 1
	}
	d := normalizeDate(&start)
	return d.AddDate(0, 0, durationDays-1)
}
