package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyOverrides rebinds the configurable board actions. Blank fields keep the defaults.
type KeyOverrides struct {
	ToggleActive string
	AddTask      string
	CopyID       string
	Help         string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit         key.Binding
	reload       key.Binding
	toggleHelp   key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	expand       key.Binding
	expandAll    key.Binding
	collapseAll  key.Binding
	stepUp       key.Binding
	stepDown     key.Binding
	stagePrev    key.Binding
	stageNext    key.Binding
	toggleActive key.Binding
	addTask      key.Binding
	addCategory  key.Binding
	deleteRow    key.Binding
	duplicate    key.Binding
	copyID       key.Binding
	activityLog  key.Binding
	cancel       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap(overrides KeyOverrides) keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:   configurable(overrides.Help, "?", "toggle help"),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "row up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "row down")),
		expand:       key.NewBinding(key.WithKeys("enter", "space"), key.WithHelp("enter", "expand/collapse")),
		expandAll:    key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		collapseAll:  key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		stepUp:       key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move task up")),
		stepDown:     key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move task down")),
		stagePrev:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous stage")),
		stageNext:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next stage")),
		toggleActive: configurable(overrides.ToggleActive, "a", "toggle active"),
		addTask:      configurable(overrides.AddTask, "n", "new task"),
		addCategory:  key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "new category")),
		deleteRow:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		duplicate:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "duplicate task")),
		copyID:       configurable(overrides.CopyID, "y", "copy id"),
		activityLog:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "activity log")),
		cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// configurable builds a binding from a configured key, falling back to def when blank.
func configurable(value, def, desc string) key.Binding {
	keys, helpKey := parseBindingKeys(value, def)
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(helpKey, desc))
}

// parseBindingKeys maps one configured key onto matcher keys and its help label.
// Uppercase runes also match their shift chord.
func parseBindingKeys(value, fallback string) ([]string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if strings.EqualFold(value, "space") || value == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(value) == 1 {
		r, _ := utf8.DecodeRuneInString(value)
		if unicode.IsUpper(r) {
			return []string{value, "shift+" + string(unicode.ToLower(r))}, value
		}
		return []string{value}, value
	}
	return []string{strings.ToLower(value)}, value
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.expand, k.stepUp, k.stepDown, k.addTask, k.toggleActive, k.deleteRow, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.expand, k.expandAll, k.collapseAll},
		{k.stepUp, k.stepDown, k.stagePrev, k.stageNext},
		{k.addTask, k.addCategory, k.duplicate, k.deleteRow, k.toggleActive, k.copyID},
		{k.activityLog, k.toggleHelp, k.reload, k.cancel, k.quit},
	}
}
