package platform

import (
	"path/filepath"
	"testing"
)

// fakeEnv returns a getenv func backed by vals.
func fakeEnv(vals map[string]string) func(string) string {
	return func(key string) string {
		return vals[key]
	}
}

func TestPathsFor(t *testing.T) {
	const mac = "/Users/me/Library/Application Support"
	cases := []struct {
		name       string
		goos       string
		env        map[string]string
		config     string
		data       string
		wantConfig string
		wantDB     string
	}{
		{
			name:       "linux xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			config:     "/fallback/config",
			data:       "/fallback/data",
			wantConfig: filepath.Join("/xdg/config", "stageboard", "config.toml"),
			wantDB:     filepath.Join("/xdg/data", "stageboard", "stageboard.db"),
		},
		{
			name:       "linux without xdg",
			goos:       "linux",
			env:        map[string]string{"XDG_DATA_HOME": "  "},
			config:     "/home/me/.config",
			data:       "/home/me/.local/share",
			wantConfig: filepath.Join("/home/me/.config", "stageboard", "config.toml"),
			wantDB:     filepath.Join("/home/me/.local/share", "stageboard", "stageboard.db"),
		},
		{
			name:       "windows appdata",
			goos:       "windows",
			env:        map[string]string{"APPDATA": `C:\Users\me\AppData\Roaming`, "LOCALAPPDATA": `C:\Users\me\AppData\Local`},
			config:     `C:\fallback\config`,
			data:       `C:\fallback\data`,
			wantConfig: filepath.Join(`C:\Users\me\AppData\Roaming`, "stageboard", "config.toml"),
			wantDB:     filepath.Join(`C:\Users\me\AppData\Local`, "stageboard", "stageboard.db"),
		},
		{
			name:       "darwin ignores xdg",
			goos:       "darwin",
			env:        map[string]string{"XDG_CONFIG_HOME": "/ignored", "XDG_DATA_HOME": "/ignored"},
			config:     mac,
			data:       mac,
			wantConfig: filepath.Join(mac, "stageboard", "config.toml"),
			wantDB:     filepath.Join(mac, "stageboard", "stageboard.db"),
		},
		{
			name:       "unknown platform",
			goos:       "freebsd",
			config:     "/cfg",
			data:       "/data",
			wantConfig: filepath.Join("/cfg", "stageboard", "config.toml"),
			wantDB:     filepath.Join("/data", "stageboard", "stageboard.db"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PathsFor(tc.goos, tc.env, tc.config, tc.data, "stageboard")
			if err != nil {
				t.Fatalf("PathsFor() error = %v", err)
			}
			if p.ConfigPath != tc.wantConfig {
				t.Fatalf("config path = %q, want %q", p.ConfigPath, tc.wantConfig)
			}
			if p.DBPath != tc.wantDB {
				t.Fatalf("db path = %q, want %q", p.DBPath, tc.wantDB)
			}
			if p.DataDir != filepath.Dir(tc.wantDB) {
				t.Fatalf("data dir = %q, want %q", p.DataDir, filepath.Dir(tc.wantDB))
			}
		})
	}
}

func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "stageboard"); err == nil {
		t.Fatal("expected error for empty base dirs")
	}
	if _, err := PathsFor("linux", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for blank app name")
	}
}

func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{AppName: "stageboard", DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "stageboard-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "stageboard-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}

// TestOptionsFromEnv verifies app name and dev-mode overrides.
func TestOptionsFromEnv(t *testing.T) {
	opts, err := OptionsFromEnv(Options{AppName: DefaultAppName}, fakeEnv(map[string]string{
		EnvAppName: "stageboard-festival",
		EnvDevMode: "true",
	}))
	if err != nil {
		t.Fatalf("OptionsFromEnv() error = %v", err)
	}
	if opts.AppName != "stageboard-festival" || !opts.DevMode {
		t.Fatalf("unexpected options %#v", opts)
	}

	opts, err = OptionsFromEnv(Options{AppName: DefaultAppName, DevMode: true}, fakeEnv(map[string]string{EnvDevMode: "sometimes"}))
	if err == nil {
		t.Fatal("expected parse error for invalid dev mode")
	}
	if !opts.DevMode {
		t.Fatal("expected invalid dev mode to leave options unchanged")
	}
}

// TestPathsWithEnvOverrides verifies explicit config and database paths win.
func TestPathsWithEnvOverrides(t *testing.T) {
	base := Paths{ConfigPath: "/cfg/stageboard/config.toml", DataDir: "/data/stageboard", DBPath: "/data/stageboard/stageboard.db"}

	got := base.WithEnvOverrides(fakeEnv(map[string]string{
		EnvConfigPath: "/etc/stageboard.toml",
		EnvDBPath:     "/srv/boards/festival.db",
	}))
	if got.ConfigPath != "/etc/stageboard.toml" {
		t.Fatalf("unexpected config path %q", got.ConfigPath)
	}
	if got.DBPath != "/srv/boards/festival.db" || got.DataDir != "/srv/boards" {
		t.Fatalf("unexpected db paths %#v", got)
	}

	if unchanged := base.WithEnvOverrides(fakeEnv(nil)); unchanged != base {
		t.Fatalf("expected no overrides, got %#v", unchanged)
	}
}
