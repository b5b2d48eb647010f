package drag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
)

// fakeCommitter records committed intents and fails when err is set.
type fakeCommitter struct {
	mu       sync.Mutex
	err      error
	reorders []ReorderIntent
	moves    []MoveIntent
}

func (f *fakeCommitter) CommitReorder(_ context.Context, intent ReorderIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reorders = append(f.reorders, intent)
	return nil
}

func (f *fakeCommitter) CommitMove(_ context.Context, intent MoveIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, intent)
	return nil
}

func testRows() []board.Row {
	bound := func(id, categoryID, stage string, order int) domain.CatalogItem {
		return domain.CatalogItem{ID: id, CategoryID: categoryID, Name: id, Order: order, Task: &domain.ScheduledTask{ID: "task-" + id, ItemID: id, Stage: stage, Order: order}}
	}
	in := board.BuildInput{
		Sections: []domain.Section{
			{ID: "foto", Name: "Foto", Categories: []domain.CatalogCategory{
				{ID: "foto-sesion", SectionID: "foto", Name: "Sesión", ItemIDs: []string{"f1", "f2", "f3"}},
				{ID: "foto-album", SectionID: "foto", Name: "Álbum", Order: 1, ItemIDs: []string{"f4"}},
			}},
			{ID: "video", Name: "Video", Categories: []domain.CatalogCategory{
				{ID: "video-edicion", SectionID: "video", Name: "Edición"},
			}},
		},
		CatalogItems: map[string]domain.CatalogItem{
			"f1": bound("f1", "foto-sesion", "PLANNING", 0),
			"f2": bound("f2", "foto-sesion", "PLANNING", 1),
			"f3": bound("f3", "foto-sesion", "PLANNING", 2),
			"f4": bound("f4", "foto-album", "PLANNING", 0),
		},
		ManualTasks: []domain.ManualTask{
			{ID: "t1", Name: "Scout venue", Category: "PLANNING", DurationDays: 1},
			{ID: "t2", Name: "Confirm crew", Category: "PLANNING", DurationDays: 1, Order: 1},
		},
		ActivatedKeys: board.NewIDSet(domain.CategoryActivationKey("video-DELIVERY", "video-edicion")),
	}
	return board.BuildRows(in)
}

func rowByID(t *testing.T, rows []board.Row, id string) board.Row {
	t.Helper()
	for _, row := range rows {
		if row.RowID() == id {
			return row
		}
	}
	t.Fatalf("row %q not found", id)
	return nil
}

func dragTo(t *testing.T, engine *Engine, rows []board.Row, layout board.Layout, sourceID, targetID string) (Intent, bool) {
	t.Helper()
	source, ok := SourceFromRow(rowByID(t, rows, sourceID))
	require.True(t, ok)
	target, ok := TargetFromRow(rowByID(t, rows, targetID), layout)
	require.True(t, ok)
	require.True(t, engine.Start(source, Point{}))
	require.Equal(t, PhaseDragging, engine.Move(Point{X: 0, Y: 20}))
	engine.Over(target)
	return engine.End()
}

func TestManualTaskDropOnCategoryHeaderMoves(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	engine := NewEngine(Config{}, func() board.Layout { return layout }, nil)

	intent, ok := dragTo(t, engine, rows, layout, "manual-t1", "video-DELIVERY-cat-video-edicion")

	require.True(t, ok)
	move, isMove := intent.(MoveIntent)
	require.True(t, isMove, "got %T", intent)
	assert.Equal(t, "t1", move.TaskID)
	assert.Equal(t, domain.StageDelivery, move.Stage)
	assert.Equal(t, "video-edicion", move.CategoryID)
	require.NotNil(t, move.CategoryName)
	assert.Equal(t, "Edición", *move.CategoryName)
	assert.Equal(t, PhaseIdle, engine.Phase())
}

func TestManualTaskDropOnStageHasNoCategory(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	engine := NewEngine(Config{}, func() board.Layout { return layout }, nil)

	intent, ok := dragTo(t, engine, rows, layout, "manual-t1", "foto-DELIVERY-add")

	require.True(t, ok)
	move := intent.(MoveIntent)
	assert.Equal(t, domain.StageDelivery, move.Stage)
	assert.Empty(t, move.CategoryID)
	assert.Nil(t, move.CategoryName)
}

func TestCatalogTaskReorderWithinSegment(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	engine := NewEngine(Config{}, func() board.Layout { return layout }, nil)

	intent, ok := dragTo(t, engine, rows, layout, "item-f1", "item-f3")

	require.True(t, ok)
	reorder, isReorder := intent.(ReorderIntent)
	require.True(t, isReorder, "got %T", intent)
	assert.Equal(t, board.SegmentKey("foto-PLANNING", "foto-sesion"), reorder.SegmentKey)
	assert.Equal(t, 0, reorder.From)
	assert.Equal(t, 2, reorder.To)
	assert.Equal(t, []string{"task-f2", "task-f3", "task-f1"}, reorder.Order)
	assert.Equal(t, []Step{{TaskID: "task-f1", Direction: domain.DirectionDown}, {TaskID: "task-f1", Direction: domain.DirectionDown}}, reorder.Steps())
}

func TestCatalogTaskCannotLeaveCategory(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	engine := NewEngine(Config{}, func() board.Layout { return layout }, nil)

	_, ok := dragTo(t, engine, rows, layout, "item-f1", "item-f4")
	assert.False(t, ok)

	_, ok = dragTo(t, engine, rows, layout, "item-f1", "foto-PLANNING-cat-foto-album")
	assert.False(t, ok)

	_, ok = dragTo(t, engine, rows, layout, "item-f1", "video-DELIVERY-cat-video-edicion")
	assert.False(t, ok)
}

func TestIsValidDropSymmetry(t *testing.T) {
	catalog := Source{TaskID: "task-f1", Stage: domain.StagePlanning, CategoryID: "c"}
	assert.True(t, IsValidDrop(catalog, domain.StagePlanning, "c"))
	assert.True(t, IsValidDrop(catalog, domain.StagePlanning, " c "))
	assert.False(t, IsValidDrop(catalog, domain.StagePlanning, "c2"))
	assert.False(t, IsValidDrop(catalog, domain.StageDelivery, "c"))

	uncategorized := Source{TaskID: "task-x", Stage: domain.StagePlanning}
	assert.True(t, IsValidDrop(uncategorized, domain.StagePlanning, ""))
	assert.False(t, IsValidDrop(uncategorized, domain.StagePlanning, "c"))

	manual := Source{TaskID: "t1", Manual: true, Stage: domain.StagePlanning}
	for _, stage := range domain.Stages() {
		for _, categoryID := range []string{"", "c", "other"} {
			assert.True(t, IsValidDrop(manual, stage, categoryID))
		}
	}
}

func TestActivationDistance(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	engine := NewEngine(Config{}, func() board.Layout { return layout }, nil)
	source, _ := SourceFromRow(rowByID(t, rows, "item-f1"))
	target, _ := TargetFromRow(rowByID(t, rows, "item-f2"), layout)

	require.True(t, engine.Start(source, Point{X: 10, Y: 10}))
	assert.Equal(t, PhasePending, engine.Move(Point{X: 13, Y: 14}))
	assert.False(t, engine.Over(target), "no hover before the drag is recognized")
	_, ok := engine.End()
	assert.False(t, ok, "a click is not a drag")
	assert.Equal(t, PhaseIdle, engine.Phase())

	wide := NewEngine(Config{ActivationDistance: 30}, func() board.Layout { return layout }, nil)
	require.True(t, wide.Start(source, Point{}))
	assert.Equal(t, PhasePending, wide.Move(Point{X: 20}))
	assert.Equal(t, PhaseDragging, wide.Move(Point{X: 30}))
}

func TestStartIgnoredWhileActiveOrLocked(t *testing.T) {
	rows := testRows()
	layout := board.BuildLayout(rows)
	locked := map[string]bool{"task-f2": true}
	engine := NewEngine(Config{}, func() board.Layout { return layout }, func(id string) bool { return locked[id] })
	f1, _ := SourceFromRow(rowByID(t, rows, "item-f1"))
	f2, _ := SourceFromRow(rowByID(t, rows, "item-f2"))

	assert.False(t, engine.Start(f2, Point{}))
	require.True(t, engine.Start(f1, Point{}))
	assert.False(t, engine.Start(f1, Point{}))

	engine.Cancel()
	assert.Equal(t, PhaseIdle, engine.Phase())
	_, ok := engine.End()
	assert.False(t, ok)
}

func TestSessionDropCommits(t *testing.T) {
	rows := testRows()
	committer := &fakeCommitter{}
	session := NewSession(board.BuildLayout(rows), committer, Config{})
	key := board.SegmentKey("foto-PLANNING", "foto-sesion")

	source, _ := SourceFromRow(rowByID(t, rows, "item-f3"))
	target, _ := TargetFromRow(rowByID(t, rows, "item-f1"), session.Layout())
	require.True(t, session.Start(source, Point{}))
	session.Move(Point{Y: 9})
	require.True(t, session.Over(target))
	pending, ok := session.Drop()
	require.True(t, ok)

	assert.Equal(t, []string{"task-f3", "task-f1", "task-f2"}, session.Layout().Segment(key))
	assert.True(t, session.Locks().IsLocked("task-f3"))

	require.NoError(t, pending.Commit(context.Background()))
	assert.False(t, session.Locks().IsLocked("task-f3"))
	assert.Equal(t, []string{"task-f3", "task-f1", "task-f2"}, session.Layout().Segment(key))
	require.Len(t, committer.reorders, 1)
	assert.Equal(t, 2, committer.reorders[0].From)
	assert.Equal(t, 0, committer.reorders[0].To)
}

func TestSessionRollbackOnFailure(t *testing.T) {
	rows := testRows()
	boom := errors.New("network down")
	committer := &fakeCommitter{err: boom}
	session := NewSession(board.BuildLayout(rows), committer, Config{})
	before := session.Layout()

	pending, err := session.MoveTo("t1", board.Scope{SectionID: "video", StageID: "video-DELIVERY", Stage: domain.StageDelivery, CategoryID: "video-edicion", CategoryName: "Edición"})
	require.NoError(t, err)
	key, _ := session.Layout().SegmentOf("t1")
	assert.Equal(t, board.SegmentKey("video-DELIVERY", "video-edicion"), key)

	err = pending.Commit(context.Background())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, before.Segment(board.SegmentKey("foto-PLANNING", "")), session.Layout().Segment(board.SegmentKey("foto-PLANNING", "")))
	key, _ = session.Layout().SegmentOf("t1")
	assert.Equal(t, board.SegmentKey("foto-PLANNING", ""), key)
	failed, ok := session.Locks().Failed("t1")
	require.True(t, ok)
	assert.ErrorIs(t, failed, boom)
	assert.False(t, session.Locks().IsLocked("t1"))
}

func TestSessionOneCommitPerTask(t *testing.T) {
	session := NewSession(board.BuildLayout(testRows()), &fakeCommitter{}, Config{})

	pending, err := session.Step("t2", domain.DirectionUp)
	require.NoError(t, err)

	_, err = session.Step("t2", domain.DirectionDown)
	assert.ErrorIs(t, err, ErrTaskLocked)

	pending.Discard()
	assert.Equal(t, []string{"t1", "t2"}, session.Layout().Segment(board.SegmentKey("foto-PLANNING", "")))
	_, err = session.Step("t2", domain.DirectionDown)
	assert.ErrorIs(t, err, ErrNoMove)
}

func TestSessionKeyboardErrors(t *testing.T) {
	session := NewSession(board.BuildLayout(testRows()), nil, Config{})

	_, err := session.Step("ghost", domain.DirectionUp)
	assert.ErrorIs(t, err, ErrTaskNotInSegment)

	_, err = session.Step("task-f1", domain.DirectionUp)
	assert.ErrorIs(t, err, ErrNoMove)

	_, err = session.MoveTo("task-f1", board.Scope{StageID: "foto-DELIVERY", Stage: domain.StageDelivery})
	assert.ErrorIs(t, err, ErrInvalidDrop)
}

func TestSessionRefreshKeepsPendingDrop(t *testing.T) {
	rows := testRows()
	session := NewSession(board.BuildLayout(rows), &fakeCommitter{}, Config{})
	key := board.SegmentKey("foto-PLANNING", "foto-sesion")

	pending, err := session.Step("task-f1", domain.DirectionDown)
	require.NoError(t, err)
	session.Refresh(board.BuildLayout(rows))

	assert.Equal(t, []string{"task-f2", "task-f1", "task-f3"}, session.Layout().Segment(key))
	require.NoError(t, pending.Commit(context.Background()))
}
