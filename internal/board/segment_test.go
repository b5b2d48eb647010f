package board

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanschultz/stageboard/internal/domain"
)

func TestGroupStageBlocks(t *testing.T) {
	rows := richRows()

	blocks := GroupStageBlocks(rows)

	require.Len(t, blocks, 8)
	assert.Equal(t, "foto-PLANNING", blocks[0].Stage.ID)
	require.NotNil(t, blocks[0].Phantom)
	assert.Equal(t, "foto-PLANNING-add", blocks[0].Phantom.ID)
	for _, block := range blocks {
		for _, row := range block.Content {
			_, isPhantom := row.(AddPhantomRow)
			assert.False(t, isPhantom)
		}
	}

	sections := GroupSections(rows)
	require.Len(t, sections, 2)
	assert.Equal(t, "video", sections[1].Section.ID)
	assert.Len(t, sections[1].Stages, 4)
}

func TestStageSegmentsPartitionTasks(t *testing.T) {
	rows := richRows()

	for _, block := range GroupStageBlocks(rows) {
		var want []string
		for _, row := range block.Content {
			if id := DraggableID(row); id != "" {
				want = append(want, id)
			}
		}
		var got []string
		for _, segment := range StageSegments(block.Content) {
			got = append(got, segment.TaskIDs()...)
		}
		slices.Sort(want)
		slices.Sort(got)
		assert.Equal(t, want, got, "stage %s", block.Stage.ID)
		assert.Equal(t, len(got), len(NewIDSet(got...)), "stage %s lists a task twice", block.Stage.ID)
	}
}

func TestStageSegmentsLeadingImplicitSegment(t *testing.T) {
	rows := richRows()
	blocks := GroupStageBlocks(rows)

	segments := StageSegments(blocks[0].Content)

	require.Len(t, segments, 2)
	assert.Nil(t, segments[0].Category)
	assert.Equal(t, []string{"m1"}, segments[0].TaskIDs())
	require.NotNil(t, segments[1].Category)
	assert.Equal(t, "foto-sesion", segments[1].CategoryID())
	assert.Equal(t, []string{"task-f1", "task-f2"}, segments[1].TaskIDs())
}

func TestStageSegmentsEmptyStage(t *testing.T) {
	segments := StageSegments(nil)

	require.Len(t, segments, 1)
	assert.Nil(t, segments[0].Category)
	assert.Empty(t, segments[0].TaskIDs())
}

func TestSegmentTaskIDsSkipsEmptyIDs(t *testing.T) {
	segment := Segment{Rows: []Row{
		TaskRow{ID: "item-a", TaskID: ""},
		TaskRow{ID: "item-b", TaskID: "task-b"},
		ManualTaskRow{ID: "manual-", TaskID: ""},
		AddCategoryPhantomRow{ID: "x-add"},
	}}

	assert.Equal(t, []string{"task-b"}, segment.TaskIDs())
}

func TestBuildLayout(t *testing.T) {
	layout := BuildLayout(richRows())

	key, ok := layout.SegmentOf("task-f2")
	require.True(t, ok)
	assert.Equal(t, SegmentKey("foto-PLANNING", "foto-sesion"), key)
	assert.Equal(t, []string{"task-f1", "task-f2"}, layout.Segment(key))

	scope, ok := layout.Scope(key)
	require.True(t, ok)
	assert.Equal(t, Scope{SectionID: "foto", StageID: "foto-PLANNING", Stage: domain.StagePlanning, CategoryID: "foto-sesion", CategoryName: "Sesión"}, scope)

	assert.True(t, layout.IsManual("m1"))
	assert.False(t, layout.IsManual("task-f1"))
	assert.Equal(t, 6, layout.Len())

	_, ok = layout.Scope(SegmentKey("video-DELIVERY", "video-edicion"))
	assert.True(t, ok, "empty activated category is a drop container")
}

func TestLayoutWithOrderIsCopyOnWrite(t *testing.T) {
	layout := BuildLayout(richRows())
	key := SegmentKey("foto-PLANNING", "foto-sesion")

	next, ok := layout.WithOrder(key, []string{"task-f2", "task-f1"})

	require.True(t, ok)
	assert.Equal(t, []string{"task-f2", "task-f1"}, next.Segment(key))
	assert.Equal(t, []string{"task-f1", "task-f2"}, layout.Segment(key))

	_, ok = layout.WithOrder(key, []string{"task-f1", "task-v1"})
	assert.False(t, ok)
}

func TestLayoutWithMove(t *testing.T) {
	layout := BuildLayout(richRows())
	target := Scope{SectionID: "video", StageID: "video-DELIVERY", Stage: domain.StageDelivery, CategoryID: "video-edicion", CategoryName: "Edición"}

	next, ok := layout.WithMove("m1", target)

	require.True(t, ok)
	key, _ := next.SegmentOf("m1")
	assert.Equal(t, SegmentKey("video-DELIVERY", "video-edicion"), key)
	assert.Empty(t, next.Segment(SegmentKey("foto-PLANNING", "")))
	assert.Equal(t, []string{"m1"}, layout.Segment(SegmentKey("foto-PLANNING", "")))

	_, ok = layout.WithMove("ghost", target)
	assert.False(t, ok)
}
