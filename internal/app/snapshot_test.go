package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/stageboard/internal/domain"
)

func TestExportSnapshotIncludesExpectedData(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seedFoto(t, repo, now)
	custom, _ := domain.NewCustomCategory("cc1", "foto", domain.StageDelivery, "Extras", 0, now)
	repo.customs[custom.ID] = custom
	repo.activated["foto-DELIVERY"] = true

	svc := NewService(repo, nil, func() time.Time { return now.Add(time.Minute) }, ServiceConfig{})
	snap, err := svc.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("unexpected version %q", snap.Version)
	}
	if len(snap.Sections) != 1 || len(snap.Categories) != 1 || len(snap.Items) != 2 {
		t.Fatalf("unexpected sizes sections=%d categories=%d items=%d", len(snap.Sections), len(snap.Categories), len(snap.Items))
	}
	if len(snap.ScheduledTasks) != 2 || snap.ScheduledTasks[0].ID != "t-i1" {
		t.Fatalf("unexpected scheduled tasks %#v", snap.ScheduledTasks)
	}
	if len(snap.ManualTasks) != 1 || snap.ManualTasks[0].ID != "m1" {
		t.Fatalf("unexpected manual tasks %#v", snap.ManualTasks)
	}
	if len(snap.CustomCategories) != 1 || len(snap.ActivatedKeys) != 1 {
		t.Fatalf("unexpected activation data customs=%d keys=%v", len(snap.CustomCategories), snap.ActivatedKeys)
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("exported snapshot should validate, got %v", err)
	}
}

func TestImportSnapshotCreatesAndUpdates(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seedFoto(t, repo, now)

	svc := NewService(repo, nil, func() time.Time { return now }, ServiceConfig{})
	snap := Snapshot{
		Version: SnapshotVersion,
		Sections: []SnapshotSection{
			{ID: "foto", Name: "Fotografía", Position: 0, Active: true, CreatedAt: now, UpdatedAt: now.Add(time.Minute)},
			{ID: "video", Name: "Video", Position: 1, Active: true, CreatedAt: now, UpdatedAt: now},
		},
		Categories: []SnapshotCategory{
			{ID: "rodaje", SectionID: "video", Name: "Rodaje", CreatedAt: now, UpdatedAt: now},
		},
		Items: []SnapshotItem{{ID: "v1", CategoryID: "rodaje", Name: "Drone"}},
		ScheduledTasks: []SnapshotScheduledTask{
			{ID: "t-v1", ItemID: "v1", Stage: "PRODUCTION", DurationDays: 1, UpdatedAt: now},
		},
		ManualTasks: []SnapshotManualTask{
			{ID: "m1", Name: "Scout venue again", Category: "PLANNING", DurationDays: 2, CreatedAt: now, UpdatedAt: now.Add(time.Minute)},
			{ID: "m2", Name: "Edit reel", Category: "POST_PRODUCTION", DurationDays: 1, CatalogCategoryID: "cc-video", CreatedAt: now, UpdatedAt: now},
		},
		CustomCategories: []SnapshotCustomCategory{
			{ID: "cc-video", SectionID: "video", Stage: domain.StagePostProduction, Name: "Reels", CreatedAt: now, UpdatedAt: now},
		},
		ActivatedKeys: []string{"video-DELIVERY", "video-DELIVERY", "video-PLANNING/rodaje"},
	}

	if err := svc.ImportSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if got := repo.sections["foto"]; got.Name != "Fotografía" {
		t.Fatalf("unexpected updated section %#v", got)
	}
	if _, ok := repo.sections["video"]; !ok {
		t.Fatal("expected new section video")
	}
	if got := repo.manual["m1"]; got.Name != "Scout venue again" {
		t.Fatalf("unexpected updated manual task %#v", got)
	}
	if _, ok := repo.scheduled["t-v1"]; !ok {
		t.Fatal("expected new scheduled task")
	}
	if _, ok := repo.customs["cc-video"]; !ok {
		t.Fatal("expected new custom category")
	}
	if len(repo.activated) != 2 {
		t.Fatalf("expected deduplicated activation keys, got %v", repo.activated)
	}

	b, err := svc.Board(context.Background())
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if _, ok := b.Row("manual-m2"); !ok {
		t.Fatal("expected imported manual task to render")
	}
}

func TestImportSnapshotValidateErrors(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, time.Now, ServiceConfig{})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sections := []SnapshotSection{{ID: "foto", Name: "Foto", CreatedAt: now, UpdatedAt: now}}

	cases := map[string]Snapshot{
		"version": {Version: "stageboard.snapshot.v999"},
		"category section": {
			Sections:   sections,
			Categories: []SnapshotCategory{{ID: "c1", SectionID: "missing", Name: "X"}},
		},
		"double binding": {
			Sections:   sections,
			Categories: []SnapshotCategory{{ID: "c1", SectionID: "foto", Name: "X"}},
			Items:      []SnapshotItem{{ID: "i1", CategoryID: "c1", Name: "Item"}},
			ScheduledTasks: []SnapshotScheduledTask{
				{ID: "t1", ItemID: "i1"},
				{ID: "t2", ItemID: "i1"},
			},
		},
		"parent": {
			Sections:    sections,
			ManualTasks: []SnapshotManualTask{{ID: "m1", Name: "A", ParentID: "ghost", CreatedAt: now, UpdatedAt: now}},
		},
		"custom stage": {
			Sections:         sections,
			CustomCategories: []SnapshotCustomCategory{{ID: "cc1", SectionID: "foto", Stage: "REVIEW", Name: "X"}},
		},
		"activation key": {
			Sections:      sections,
			ActivatedKeys: []string{"foto"},
		},
	}
	for name, snap := range cases {
		if err := svc.ImportSnapshot(context.Background(), snap); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("%s: expected ErrInvalidSnapshot, got %v", name, err)
		}
	}
	if len(repo.sections) != 0 {
		t.Fatalf("expected rejected snapshots to write nothing, got %d sections", len(repo.sections))
	}
}

type failingSnapshotRepo struct {
	*fakeRepo
	err error
}

func (f failingSnapshotRepo) ListSections(context.Context) ([]domain.Section, error) {
	return nil, f.err
}

func TestExportSnapshotPropagatesError(t *testing.T) {
	expected := errors.New("boom")
	svc := NewService(failingSnapshotRepo{fakeRepo: newFakeRepo(), err: expected}, nil, time.Now, ServiceConfig{})
	_, err := svc.ExportSnapshot(context.Background())
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}
