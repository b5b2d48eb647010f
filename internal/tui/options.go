package tui

import (
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/drag"
)

// Option configures a Model.
type Option func(*Model)

// ClipboardFunc writes text to the system clipboard.
type ClipboardFunc func(string) error

// WithDragConfig sets the pointer travel, in pixels, before a press becomes a drag.
func WithDragConfig(cfg drag.Config) Option {
	return func(m *Model) {
		if cfg.ActivationDistance >= 0 {
			m.dragCfg = cfg
		}
	}
}

// WithCellSize sets the pixel size of one terminal cell used to convert mouse positions.
func WithCellSize(width, height int) Option {
	return func(m *Model) {
		if width > 0 && height > 0 {
			m.cellWidth = width
			m.cellHeight = height
		}
	}
}

// WithExpandAll opens every section and stage on first load.
func WithExpandAll(enabled bool) Option {
	return func(m *Model) {
		m.expandAll = enabled
	}
}

// WithExpandedSections opens the listed sections on first load.
func WithExpandedSections(ids ...string) Option {
	return func(m *Model) {
		for _, id := range ids {
			m.view.ExpandedSections = m.view.ExpandedSections.With(id)
		}
	}
}

// WithKeys rebinds the configurable actions.
func WithKeys(overrides KeyOverrides) Option {
	return func(m *Model) {
		m.keys = newKeyMap(overrides)
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(fn ClipboardFunc) Option {
	return func(m *Model) {
		if fn != nil {
			m.clipboard = fn
		}
	}
}

// WithLogger routes model diagnostics to logger.
func WithLogger(logger app.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.log = logger
		}
	}
}
