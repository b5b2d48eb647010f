package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/stageboard/internal/activation"
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/board"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/evanschultz/stageboard/internal/drag"
)

// Service represents the board operations used by the model.
type Service interface {
	Board(context.Context) (app.Board, error)
	NewDragSession(app.Board, drag.Config) *drag.Session
	NewActivationController(app.Board) *activation.Controller
	SupportsCustomCategories() bool
	AddManualTask(context.Context, app.AddManualTaskInput) (domain.ManualTask, error)
	DeleteManualTask(context.Context, string) error
	DuplicateManualTask(context.Context, string) (domain.ManualTask, error)
	ListChangeEvents(context.Context, int) ([]domain.ChangeEvent, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddTask
	modeAddCategory
	modeConfirmDelete
	modeActivityLog
	modeHelp
)

const (
	// activityLogMaxItems caps the entries fetched for the activity overlay.
	activityLogMaxItems = 50
	// boardTop is the screen line of the first board row.
	boardTop = 2
	// footerLines reserves the status and help lines.
	footerLines = 3
)

// Pixel size of one terminal cell when no option overrides it.
const (
	defaultCellWidth  = 8
	defaultCellHeight = 16
)

// activityEntry is one rendered ledger line.
type activityEntry struct {
	At      time.Time
	Summary string
	Actor   string
	Target  string
}

// confirmKind identifies the entity a pending delete removes.
type confirmKind int

const (
	confirmTask confirmKind = iota
	confirmCategory
	confirmStage
)

// confirmAction stores a delete awaiting confirmation.
type confirmAction struct {
	kind       confirmKind
	label      string
	taskID     string
	sectionID  string
	stage      domain.Stage
	categoryID string
	taskIDs    []string
}

// discardLogger drops model diagnostics.
type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Info(any, ...any)  {}
func (discardLogger) Warn(any, ...any)  {}
func (discardLogger) Error(any, ...any) {}

// Model is the interactive board.
type Model struct {
	svc Service
	log app.Logger

	ready  bool
	width  int
	height int
	err    error
	status string

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer

	dragCfg    drag.Config
	cellWidth  int
	cellHeight int
	expandAll  bool
	clipboard  ClipboardFunc

	loaded     bool
	board      app.Board
	session    *drag.Session
	controller *activation.Controller
	view       board.View
	rows       []board.Row
	cursor     int
	offset     int
	focusRowID string

	mode           inputMode
	input          textinput.Model
	addScope       board.Scope
	pendingConfirm confirmAction
	activity       []activityEntry

	hoverRowID string
	hoverValid bool
}

// boardLoadedMsg carries a freshly loaded board.
type boardLoadedMsg struct {
	board app.Board
	err   error
}

// actionMsg carries the outcome of one mutation.
type actionMsg struct {
	err        error
	status     string
	reload     bool
	focusRowID string
}

// commitMsg carries the outcome of one persisted drop.
type commitMsg struct {
	taskID string
	err    error
}

// activityLogLoadedMsg carries ledger entries for the activity overlay.
type activityLogLoadedMsg struct {
	entries []activityEntry
	err     error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:        svc,
		log:        discardLogger{},
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(KeyOverrides{}),
		markdown:   &markdownRenderer{},
		dragCfg:    drag.Config{ActivationDistance: drag.DefaultActivationDistance},
		cellWidth:  defaultCellWidth,
		cellHeight: defaultCellHeight,
		clipboard:  clipboard.WriteAll,
		view: board.View{
			ExpandedSections:    board.IDSet{},
			ExpandedStages:      board.IDSet{},
			CollapsedCategories: board.IDSet{},
		},
		input: newModalInput("", "", "", 120),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadBoard
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(msg.Width)
		m.ensureVisible()
		return m, nil

	case boardLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.log.Error("load board", "err", msg.err)
			return m, nil
		}
		m.err = nil
		m.applyBoard(msg.board)
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			m.log.Warn("board action failed", "err", msg.err)
		} else if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusRowID != "" {
			m.focusRowID = msg.focusRowID
		}
		if msg.reload {
			return m, m.loadBoard
		}
		m.refreshRows()
		return m, nil

	case commitMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
			m.log.Warn("commit drop", "task", msg.taskID, "err", msg.err)
		} else {
			m.status = "saved"
		}
		m.refreshRows()
		return m, m.loadBoard

	case activityLogLoadedMsg:
		if msg.err != nil {
			m.status = "activity log failed: " + msg.err.Error()
			return m, nil
		}
		m.activity = msg.entries
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		if m.mode != modeNone {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseWheelUp:
			m.moveCursor(-1)
		case tea.MouseWheelDown:
			m.moveCursor(1)
		}
		return m, nil
	}

	if m.mode == modeAddTask || m.mode == modeAddCategory {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// loadBoard loads required data for the current operation.
func (m Model) loadBoard() tea.Msg {
	b, err := m.svc.Board(context.Background())
	if err != nil {
		return boardLoadedMsg{err: err}
	}
	return boardLoadedMsg{board: b}
}

// applyBoard installs a loaded board, keeping pending drops and activation changes.
func (m *Model) applyBoard(b app.Board) {
	m.board = b
	if m.session == nil {
		m.session = m.svc.NewDragSession(b, m.dragCfg)
	} else {
		m.session.Refresh(b.Layout)
	}
	if m.controller == nil {
		m.controller = m.svc.NewActivationController(b)
	} else {
		m.controller.Refresh(b.Activation)
	}
	if !m.loaded {
		m.loaded = true
		m.status = "ready"
		if m.expandAll {
			open := board.ExpandAll(b.Rows)
			for _, id := range m.view.ExpandedSections.Sorted() {
				open.ExpandedSections = open.ExpandedSections.With(id)
			}
			m.view = open
		}
	}
	m.refreshRows()
}

// refreshRows rebuilds the visible rows and keeps the cursor on the same row.
func (m *Model) refreshRows() {
	if !m.loaded {
		return
	}
	selected := m.focusRowID
	if selected == "" {
		if row, ok := m.selectedRow(); ok {
			selected = row.RowID()
		}
	}
	m.focusRowID = ""
	layout := m.board.Layout
	if m.session != nil {
		layout = m.session.Layout()
	}
	m.rows = board.ApplyFilters(arrangeRows(m.board.Rows, layout), m.view)
	if selected != "" {
		for idx, row := range m.rows {
			if row.RowID() == selected {
				m.cursor = idx
				break
			}
		}
	}
	m.cursor = clamp(m.cursor, 0, len(m.rows)-1)
	m.ensureVisible()
}

// selectedRow returns the row under the cursor.
func (m Model) selectedRow() (board.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil, false
	}
	return m.rows[m.cursor], true
}

// moveCursor moves the cursor by delta rows.
func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(m.rows)-1)
	m.ensureVisible()
}

// bodyHeight returns the number of board rows that fit on screen.
func (m Model) bodyHeight() int {
	if m.height <= 0 {
		return len(m.rows)
	}
	return max(1, m.height-boardTop-footerLines)
}

// ensureVisible scrolls the board so the cursor row is on screen.
func (m *Model) ensureVisible() {
	height := m.bodyHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
	m.offset = clamp(m.offset, 0, max(0, len(m.rows)-height))
}

// handleKey routes one key press by mode.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAddTask, modeAddCategory:
		return m.handleInputKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	case modeActivityLog, modeHelp:
		if key.Matches(msg, m.keys.cancel) || key.Matches(msg, m.keys.activityLog) || key.Matches(msg, m.keys.toggleHelp) || key.Matches(msg, m.keys.quit) {
			m.mode = modeNone
			m.help.ShowAll = false
			m.status = "ready"
		}
		return m, nil
	}
	if m.err != nil {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.reload):
			m.err = nil
			return m, m.loadBoard
		}
		return m, nil
	}
	return m.handleNormalModeKey(msg)
}

// handleNormalModeKey handles board navigation and actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.cancel):
		if m.session != nil && m.session.Phase() != drag.PhaseIdle {
			m.session.Cancel()
			m.hoverRowID = ""
			m.status = "drag cancelled"
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadBoard
	case key.Matches(msg, m.keys.toggleHelp):
		m.mode = modeHelp
		m.help.ShowAll = true
		m.status = "help"
		return m, nil
	case key.Matches(msg, m.keys.activityLog):
		m.mode = modeActivityLog
		m.status = "activity log"
		return m, m.loadActivityLog
	}
	if !m.loaded {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.moveDown):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.expand):
		return m.activateSelected()
	case key.Matches(msg, m.keys.expandAll):
		m.view = board.ExpandAll(m.board.Rows)
		m.refreshRows()
		m.status = "expanded all"
	case key.Matches(msg, m.keys.collapseAll):
		m.view = board.View{ExpandedSections: board.IDSet{}, ExpandedStages: board.IDSet{}, CollapsedCategories: board.IDSet{}}
		m.refreshRows()
		m.status = "collapsed all"
	case key.Matches(msg, m.keys.stepUp):
		return m.stepSelected(domain.DirectionUp)
	case key.Matches(msg, m.keys.stepDown):
		return m.stepSelected(domain.DirectionDown)
	case key.Matches(msg, m.keys.stagePrev):
		return m.moveSelectedStage(-1)
	case key.Matches(msg, m.keys.stageNext):
		return m.moveSelectedStage(1)
	case key.Matches(msg, m.keys.toggleActive):
		return m.toggleSelectedActivation()
	case key.Matches(msg, m.keys.addTask):
		return m.startAddTask()
	case key.Matches(msg, m.keys.addCategory):
		return m.startAddCategory()
	case key.Matches(msg, m.keys.deleteRow):
		return m.startDelete()
	case key.Matches(msg, m.keys.duplicate):
		return m.duplicateSelected()
	case key.Matches(msg, m.keys.copyID):
		return m.copySelectedID()
	}
	return m, nil
}

// activateSelected toggles the expansion of a header row or opens the add form on a
// phantom row.
func (m Model) activateSelected() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	switch r := row.(type) {
	case board.SectionRow:
		m.view.ExpandedSections = toggleID(m.view.ExpandedSections, r.ID)
	case board.StageRow:
		m.view.ExpandedStages = toggleID(m.view.ExpandedStages, r.ID)
	case board.CategoryRow:
		m.view.CollapsedCategories = toggleID(m.view.CollapsedCategories, r.ID)
	case board.AddPhantomRow, board.AddCategoryPhantomRow:
		return m.startAddTask()
	default:
		return m, nil
	}
	m.refreshRows()
	return m, nil
}

// toggleID flips id membership in set.
func toggleID(set board.IDSet, id string) board.IDSet {
	if set.Has(id) {
		return set.Without(id)
	}
	return set.With(id)
}

// stepSelected moves the selected task one slot within its segment.
func (m Model) stepSelected(direction domain.Direction) (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	taskID := ""
	if ok {
		taskID = board.DraggableID(row)
	}
	if taskID == "" {
		m.status = "select a task to move"
		return m, nil
	}
	m.session.Locks().ClearFailed(taskID)
	pending, err := m.session.Step(taskID, direction)
	if err != nil {
		m.status = describeDragError(err)
		return m, nil
	}
	m.focusRowID = row.RowID()
	m.refreshRows()
	m.status = "saving..."
	return m, commitPending(pending)
}

// moveSelectedStage moves the selected manual task to the neighboring stage, keeping a
// catalog category when it has one.
func (m Model) moveSelectedStage(delta int) (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	manual, ok := row.(board.ManualTaskRow)
	if !ok {
		if board.IsTaskRow(row) {
			m.status = "catalog tasks keep their stage"
		} else {
			m.status = "select a task to move"
		}
		return m, nil
	}
	stages := domain.Stages()
	next := manual.Stage.Index() + delta
	if next < 0 || next >= len(stages) {
		m.status = "no stage in that direction"
		return m, nil
	}
	stage := stages[next]
	layout := m.session.Layout()
	stageID := board.StageRowID(manual.SectionID, stage)
	scope := board.Scope{SectionID: manual.SectionID, StageID: stageID, Stage: stage}
	if from, ok := layout.Scope(board.SegmentKey(manual.StageID, manual.CategoryID)); ok && from.CategoryID != "" && !from.Custom {
		scope.CategoryID = from.CategoryID
		scope.CategoryName = from.CategoryName
	}
	if existing, ok := layout.Scope(board.SegmentKey(stageID, scope.CategoryID)); ok {
		scope = existing
	}
	m.session.Locks().ClearFailed(manual.TaskID)
	pending, err := m.session.MoveTo(manual.TaskID, scope)
	if err != nil {
		m.status = describeDragError(err)
		return m, nil
	}
	m.view.ExpandedStages = m.view.ExpandedStages.With(stageID)
	m.focusRowID = manual.ID
	m.refreshRows()
	m.status = "moving to " + stage.Label() + "..."
	return m, commitPending(pending)
}

// commitPending persists one applied drop.
func commitPending(pending *drag.Pending) tea.Cmd {
	return func() tea.Msg {
		err := pending.Commit(context.Background())
		return commitMsg{taskID: pending.Intent.Task(), err: err}
	}
}

// describeDragError maps drag refusals onto status text.
func describeDragError(err error) string {
	switch {
	case errors.Is(err, drag.ErrTaskLocked):
		return "task is still saving"
	case errors.Is(err, drag.ErrNoMove):
		return "task cannot move further"
	case errors.Is(err, drag.ErrInvalidDrop):
		return "catalog tasks keep their stage"
	case errors.Is(err, drag.ErrTaskNotInSegment):
		return "task is not on the board"
	default:
		return "error: " + err.Error()
	}
}

// toggleSelectedActivation flips the activation of the selected stage or category.
func (m Model) toggleSelectedActivation() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	state := m.controller.State()
	controller := m.controller
	switch r := row.(type) {
	case board.StageRow:
		active := state.IsStageActive(r.ID)
		if active && !state.CanDeactivate(r.ID) {
			m.status = "stage holds tasks"
			return m, nil
		}
		status := "stage activated"
		if active {
			status = "stage deactivated"
		}
		return m, func() tea.Msg {
			err := controller.ToggleStage(context.Background(), r.SectionID, r.Stage, !active)
			return actionMsg{err: err, status: status, reload: true}
		}
	case board.CategoryRow:
		if r.Custom {
			m.status = "custom categories are removed with d"
			return m, nil
		}
		active := state.IsCategoryActive(r.StageID, r.CategoryID)
		status := "category activated"
		if active {
			status = "category deactivated"
		}
		return m, func() tea.Msg {
			err := controller.ToggleCategory(context.Background(), r.SectionID, r.Stage, r.CategoryID, !active)
			return actionMsg{err: err, status: status, reload: true}
		}
	default:
		m.status = "select a stage or category"
		return m, nil
	}
}

// scopeOfRow returns the stage scope addressed by row. Section rows address their
// first stage.
func (m Model) scopeOfRow(row board.Row) (board.Scope, bool) {
	var scope board.Scope
	switch r := row.(type) {
	case board.SectionRow:
		stage := domain.Stages()[0]
		scope = board.Scope{SectionID: r.ID, StageID: board.StageRowID(r.ID, stage), Stage: stage}
	case board.StageRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.ID, Stage: r.Stage}
	case board.CategoryRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.StageID, Stage: r.Stage, CategoryID: r.CategoryID, CategoryName: r.Name, Custom: r.Custom}
	case board.AddPhantomRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.StageID, Stage: r.Stage}
	case board.AddCategoryPhantomRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.StageID, Stage: r.Stage, CategoryID: r.CategoryID}
	case board.TaskRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.StageID, Stage: r.Stage, CategoryID: r.CategoryID}
	case board.ManualTaskRow:
		scope = board.Scope{SectionID: r.SectionID, StageID: r.StageID, Stage: r.Stage, CategoryID: r.CategoryID}
	default:
		return board.Scope{}, false
	}
	if known, ok := m.board.Layout.Scope(board.SegmentKey(scope.StageID, scope.CategoryID)); ok {
		return known, true
	}
	return scope, true
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startAddTask opens the new-task prompt for the selected scope.
func (m Model) startAddTask() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	scope, ok := m.scopeOfRow(row)
	if !ok {
		return m, nil
	}
	m.addScope = scope
	m.mode = modeAddTask
	target := scope.Stage.Label()
	if scope.CategoryName != "" {
		target += " / " + scope.CategoryName
	}
	m.input = newModalInput("task: ", "name for "+target, "", 120)
	m.status = "new task in " + target
	cmd := m.input.Focus()
	return m, cmd
}

// startAddCategory opens the new-category prompt for the selected stage.
func (m Model) startAddCategory() (tea.Model, tea.Cmd) {
	if !m.svc.SupportsCustomCategories() {
		m.status = "custom categories are disabled"
		return m, nil
	}
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	scope, ok := m.scopeOfRow(row)
	if !ok {
		return m, nil
	}
	m.addScope = board.Scope{SectionID: scope.SectionID, StageID: scope.StageID, Stage: scope.Stage}
	m.mode = modeAddCategory
	m.input = newModalInput("category: ", "name for a "+scope.Stage.Label()+" category", "", 80)
	m.status = "new category in " + scope.Stage.Label()
	cmd := m.input.Focus()
	return m, cmd
}

// handleInputKey edits and submits the add prompts.
func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.status = "name required"
			return m, nil
		}
		mode := m.mode
		scope := m.addScope
		m.mode = modeNone
		m.input.Blur()
		m.view.ExpandedSections = m.view.ExpandedSections.With(scope.SectionID)
		m.view.ExpandedStages = m.view.ExpandedStages.With(scope.StageID)
		if mode == modeAddCategory {
			controller := m.controller
			return m, func() tea.Msg {
				_, err := controller.AddCustomCategory(context.Background(), scope.SectionID, scope.Stage, name)
				return actionMsg{err: err, status: "category added", reload: true}
			}
		}
		svc := m.svc
		return m, func() tea.Msg {
			task, err := svc.AddManualTask(context.Background(), app.AddManualTaskInput{
				SectionID:  scope.SectionID,
				Stage:      scope.Stage,
				CategoryID: scope.CategoryID,
				Name:       name,
			})
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: "task added", reload: true, focusRowID: board.ManualTaskRowID(task.ID)}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startDelete asks to confirm removal of the selected task, category or stage.
func (m Model) startDelete() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	switch r := row.(type) {
	case board.ManualTaskRow:
		m.pendingConfirm = confirmAction{kind: confirmTask, label: "task " + r.Name, taskID: r.TaskID}
	case board.TaskRow:
		m.status = "catalog tasks are managed in the catalog"
		return m, nil
	case board.CategoryRow:
		if !r.Custom {
			m.status = "catalog categories cannot be deleted here"
			return m, nil
		}
		taskIDs := m.board.TaskIDsIn(r.StageID, r.CategoryID)
		m.pendingConfirm = confirmAction{
			kind:       confirmCategory,
			label:      withTaskCount("category "+r.Name, len(taskIDs)),
			sectionID:  r.SectionID,
			stage:      r.Stage,
			categoryID: r.CategoryID,
			taskIDs:    taskIDs,
		}
	case board.StageRow:
		taskIDs := m.board.TaskIDsIn(r.ID, "")
		if len(taskIDs) == 0 {
			controller := m.controller
			return m, func() tea.Msg {
				err := controller.RemoveEmptyStage(context.Background(), r.SectionID, r.Stage)
				return actionMsg{err: err, status: "stage removed", reload: true}
			}
		}
		m.pendingConfirm = confirmAction{
			kind:      confirmStage,
			label:     withTaskCount("stage "+r.Label, len(taskIDs)),
			sectionID: r.SectionID,
			stage:     r.Stage,
			taskIDs:   taskIDs,
		}
	default:
		m.status = "nothing to delete"
		return m, nil
	}
	m.mode = modeConfirmDelete
	m.status = "delete " + m.pendingConfirm.label + "? (y/n)"
	return m, nil
}

// withTaskCount appends the number of cascaded tasks to label.
func withTaskCount(label string, count int) string {
	switch count {
	case 0:
		return label
	case 1:
		return label + " and 1 task"
	default:
		return fmt.Sprintf("%s and %d tasks", label, count)
	}
}

// handleConfirmKey settles a pending delete.
func (m Model) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
	case "n", "esc":
		m.mode = modeNone
		m.pendingConfirm = confirmAction{}
		m.status = "cancelled"
		return m, nil
	default:
		return m, nil
	}
	action := m.pendingConfirm
	m.mode = modeNone
	m.pendingConfirm = confirmAction{}
	svc := m.svc
	controller := m.controller
	return m, func() tea.Msg {
		ctx := context.Background()
		var err error
		switch action.kind {
		case confirmTask:
			err = svc.DeleteManualTask(ctx, action.taskID)
		case confirmCategory:
			err = controller.DeleteCustomCategory(ctx, action.sectionID, action.stage, action.categoryID, action.taskIDs)
		case confirmStage:
			err = controller.DeleteStage(ctx, action.sectionID, action.stage, action.taskIDs)
		}
		return actionMsg{err: err, status: "deleted " + action.label, reload: true}
	}
}

// duplicateSelected copies the selected manual task.
func (m Model) duplicateSelected() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	manual, ok := row.(board.ManualTaskRow)
	if !ok {
		m.status = "only manual tasks can be duplicated"
		return m, nil
	}
	svc := m.svc
	return m, func() tea.Msg {
		task, err := svc.DuplicateManualTask(context.Background(), manual.TaskID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "duplicated " + manual.Name, reload: true, focusRowID: board.ManualTaskRowID(task.ID)}
	}
}

// copySelectedID writes the selected task id, or the row id of a header, to the
// clipboard.
func (m Model) copySelectedID() (tea.Model, tea.Cmd) {
	row, ok := m.selectedRow()
	if !ok {
		return m, nil
	}
	id := board.DraggableID(row)
	if id == "" {
		id = row.RowID()
	}
	write := m.clipboard
	return m, func() tea.Msg {
		if err := write(id); err != nil {
			return actionMsg{err: fmt.Errorf("copy id: %w", err)}
		}
		return actionMsg{status: "copied " + id}
	}
}

// loadActivityLog loads the newest ledger entries for the activity overlay.
func (m Model) loadActivityLog() tea.Msg {
	events, err := m.svc.ListChangeEvents(context.Background(), activityLogMaxItems)
	if err != nil {
		return activityLogLoadedMsg{err: err}
	}
	return activityLogLoadedMsg{entries: mapChangeEventsToActivityEntries(events)}
}

// mapChangeEventsToActivityEntries converts newest-first events into overlay rows.
func mapChangeEventsToActivityEntries(events []domain.ChangeEvent) []activityEntry {
	entries := make([]activityEntry, 0, len(events))
	for _, event := range events {
		target := strings.TrimSpace(event.Metadata["name"])
		if target == "" {
			target = strings.TrimSpace(event.EntityID)
		}
		if target == "" {
			target = "-"
		}
		summary := string(event.Operation) + " " + strings.ReplaceAll(event.EntityType, "_", " ")
		if event.Stage != "" {
			summary += " in " + event.Stage.Label()
		}
		actor := event.ActorID
		if event.ActorType != "" && event.ActorType != domain.ActorTypeUser {
			actor = string(event.ActorType) + ":" + actor
		}
		entries = append(entries, activityEntry{
			At:      event.OccurredAt.UTC(),
			Summary: summary,
			Actor:   actor,
			Target:  target,
		})
	}
	return entries
}

// rowAt returns the board row drawn at screen line y.
func (m Model) rowAt(y int) (int, bool) {
	idx := y - boardTop + m.offset
	if y < boardTop || y >= boardTop+m.bodyHeight() || idx < 0 || idx >= len(m.rows) {
		return 0, false
	}
	return idx, true
}

// pointAt converts a cell position into pointer pixels.
func (m Model) pointAt(x, y int) drag.Point {
	return drag.Point{X: float64(x * m.cellWidth), Y: float64(y * m.cellHeight)}
}

// handleMouseClick selects the clicked row and picks up tasks for dragging. Clicking a
// header toggles it.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || !m.loaded || msg.Button != tea.MouseLeft {
		return m, nil
	}
	idx, ok := m.rowAt(msg.Y)
	if !ok {
		return m, nil
	}
	m.cursor = idx
	row := m.rows[idx]
	source, ok := drag.SourceFromRow(row)
	if !ok {
		return m.activateSelected()
	}
	m.session.Locks().ClearFailed(source.TaskID)
	if !m.session.Start(source, m.pointAt(msg.X, msg.Y)) {
		m.status = "task is still saving"
	}
	return m, nil
}

// handleMouseMotion tracks an active drag and its hovered target.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.session == nil || m.session.Phase() == drag.PhaseIdle {
		return m, nil
	}
	if m.session.Move(m.pointAt(msg.X, msg.Y)) != drag.PhaseDragging {
		return m, nil
	}
	m.hover(msg.Y)
	return m, nil
}

// hover records the drop target under screen line y.
func (m *Model) hover(y int) {
	m.hoverRowID = ""
	m.hoverValid = false
	idx, ok := m.rowAt(y)
	if !ok {
		return
	}
	target, ok := drag.TargetFromRow(m.rows[idx], m.session.Layout())
	if !ok {
		return
	}
	m.hoverRowID = m.rows[idx].RowID()
	m.hoverValid = m.session.Over(target)
	if m.hoverValid {
		m.status = "drop into " + target.Scope.Stage.Label()
	} else {
		m.status = "cannot drop here"
	}
}

// handleMouseRelease drops the dragged task.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.session == nil || m.session.Phase() == drag.PhaseIdle {
		return m, nil
	}
	source, _ := m.session.Source()
	if m.session.Move(m.pointAt(msg.X, msg.Y)) == drag.PhaseDragging {
		m.hover(msg.Y)
	}
	m.hoverRowID = ""
	pending, ok := m.session.Drop()
	if !ok {
		if m.status == "cannot drop here" {
			m.status = "drop cancelled"
		}
		return m, nil
	}
	for _, row := range m.rows {
		if board.DraggableID(row) == source.TaskID {
			m.focusRowID = row.RowID()
			break
		}
	}
	m.refreshRows()
	m.status = "saving..."
	return m, commitPending(pending)
}

// clamp bounds v to [lo, hi]. An empty range yields lo.
func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
