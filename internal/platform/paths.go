package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "stageboard"

// Environment variables that override resolved paths and options.
const (
	EnvConfigPath = "STAGEBOARD_CONFIG"
	EnvDBPath     = "STAGEBOARD_DB_PATH"
	EnvAppName    = "STAGEBOARD_APP_NAME"
	EnvDevMode    = "STAGEBOARD_DEV_MODE"
)

// Paths locates the config file, data directory, and board database.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
}

// Options selects the app directory name.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns default paths.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// baseDirEnv names the variables that relocate the config and data bases per GOOS.
var baseDirEnv = map[string]struct{ config, data string }{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPathsWithOptions resolves paths for the running platform. Dev mode appends
// "-dev" to the app name so dev boards never touch the real database.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = DefaultAppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := make(map[string]string, 4)
	for _, keys := range baseDirEnv {
		env[keys.config] = os.Getenv(keys.config)
		env[keys.data] = os.Getenv(keys.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor resolves paths for goos from explicit base dirs and environment values.
// Platforms without an entry in baseDirEnv (darwin included) keep the given bases.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if keys, ok := baseDirEnv[goos]; ok {
		configBase = orDefault(env[keys.config], configBase)
		dataBase = orDefault(env[keys.data], dataBase)
	}

	boardDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    boardDir,
		DBPath:     filepath.Join(boardDir, appName+".db"),
	}, nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// OptionsFromEnv overlays STAGEBOARD_APP_NAME and STAGEBOARD_DEV_MODE onto opts.
// Unparseable dev-mode values are reported and leave opts.DevMode unchanged.
func OptionsFromEnv(opts Options, getenv func(string) string) (Options, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if name := strings.TrimSpace(getenv(EnvAppName)); name != "" {
		opts.AppName = name
	}
	if raw := strings.TrimSpace(getenv(EnvDevMode)); raw != "" {
		dev, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("parse %s=%q: %w", EnvDevMode, raw, err)
		}
		opts.DevMode = dev
	}
	return opts, nil
}

// WithEnvOverrides replaces the config and database paths named by STAGEBOARD_CONFIG
// and STAGEBOARD_DB_PATH.
func (p Paths) WithEnvOverrides(getenv func(string) string) Paths {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		p.ConfigPath = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		p.DBPath = v
		p.DataDir = filepath.Dir(v)
	}
	return p
}
