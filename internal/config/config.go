package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Drag     DragConfig     `toml:"drag"`
	Board    BoardConfig    `toml:"board"`
	Server   ServerConfig   `toml:"server"`
	TUI      TUIConfig      `toml:"tui"`
	Keys     KeyConfig      `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink written during development.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type DragConfig struct {
	// ActivationDistance is the pointer travel in pixels before a press becomes a drag.
	ActivationDistance float64 `toml:"activation_distance"`
}

type BoardConfig struct {
	CustomCategories bool     `toml:"custom_categories"`
	ExpandAll        bool     `toml:"expand_all"`
	ExpandedSections []string `toml:"expanded_sections"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	WSEndpoint  string `toml:"ws_endpoint"`
}

type TUIConfig struct {
	CellWidth  int `toml:"cell_width"`
	CellHeight int `toml:"cell_height"`
}

type KeyConfig struct {
	ToggleActive string `toml:"toggle_active"`
	AddTask      string `toml:"add_task"`
	CopyID       string `toml:"copy_id"`
	Help         string `toml:"help"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: false,
				Dir:     ".stageboard/log",
			},
		},
		Drag: DragConfig{
			ActivationDistance: 8,
		},
		Board: BoardConfig{
			CustomCategories: true,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
			WSEndpoint:  "/ws",
		},
		TUI: TUIConfig{
			CellWidth:  8,
			CellHeight: 16,
		},
		Keys: KeyConfig{
			ToggleActive: "a",
			AddTask:      "n",
			CopyID:       "y",
			Help:         "?",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if _, err := log.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when the dev file is enabled")
	}
	if c.Drag.ActivationDistance < 0 {
		return fmt.Errorf("drag.activation_distance must be >= 0, got %v", c.Drag.ActivationDistance)
	}
	for i, id := range c.Board.ExpandedSections {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("board.expanded_sections[%d] is empty", i)
		}
	}
	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	endpoints := map[string]string{}
	for name, endpoint := range map[string]string{
		"api_endpoint": c.Server.APIEndpoint,
		"mcp_endpoint": c.Server.MCPEndpoint,
		"ws_endpoint":  c.Server.WSEndpoint,
	} {
		endpoint = "/" + strings.Trim(strings.TrimSpace(endpoint), "/")
		if endpoint == "/" {
			return fmt.Errorf("server.%s is required", name)
		}
		if other, ok := endpoints[endpoint]; ok {
			return fmt.Errorf("server.%s collides with server.%s: %s", name, other, endpoint)
		}
		endpoints[endpoint] = name
	}
	if c.TUI.CellWidth <= 0 || c.TUI.CellHeight <= 0 {
		return fmt.Errorf("tui cell size must be positive, got %dx%d", c.TUI.CellWidth, c.TUI.CellHeight)
	}
	seenKey := map[string]string{}
	for name, key := range map[string]string{
		"toggle_active": c.Keys.ToggleActive,
		"add_task":      c.Keys.AddTask,
		"copy_id":       c.Keys.CopyID,
		"help":          c.Keys.Help,
	} {
		if key == "" {
			return fmt.Errorf("keys.%s is required", name)
		}
		if other, ok := seenKey[key]; ok {
			return fmt.Errorf("keys.%s duplicates keys.%s: %q", name, other, key)
		}
		seenKey[key] = name
	}
	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
