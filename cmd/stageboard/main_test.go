package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/stageboard/internal/adapters/server"
	"github.com/evanschultz/stageboard/internal/adapters/server/common"
	"github.com/evanschultz/stageboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/stageboard/internal/app"
	"github.com/evanschultz/stageboard/internal/config"
	"github.com/evanschultz/stageboard/internal/domain"
	"github.com/google/uuid"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("STAGEBOARD_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram stands in for the terminal program.
type fakeProgram struct {
	runErr error
}

// Run returns the configured error without touching the terminal.
func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

func stubProgram(t *testing.T, p program) {
	t.Helper()
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(tea.Model) program { return p }
}

// seedBoard writes one section with one planning task into a fresh database.
func seedBoard(t *testing.T, dbPath string) {
	t.Helper()
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	ctx := context.Background()
	section, err := svc.CreateSection(ctx, "Foto")
	if err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	if _, err := svc.AddManualTask(ctx, app.AddManualTaskInput{
		SectionID: section.ID,
		Stage:     domain.StagePlanning,
		Name:      "Scout venue",
	}); err != nil {
		t.Fatalf("AddManualTask() error = %v", err)
	}
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), "stageboard dev") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	var got tea.Model
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(m tea.Model) program {
		got = m
		return fakeProgram{}
	}

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "stageboard.db")
	err := run(context.Background(), []string{"--db", dbPath, "--config", filepath.Join(tmp, "missing.toml")}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected the board model to reach the program factory")
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db to be created, stat error %v", err)
	}
}

func TestRunProgramError(t *testing.T) {
	stubProgram(t, fakeProgram{runErr: fmt.Errorf("boom")})

	tmp := t.TempDir()
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "stageboard.db"), "--config", filepath.Join(tmp, "missing.toml")}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
}

func TestRunInvalidFlag(t *testing.T) {
	err := run(context.Background(), []string{"--unknown-flag"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected invalid flag error")
	}
	if !strings.Contains(err.Error(), "unknown flag") {
		t.Fatalf("expected unknown flag error, got %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"bogus"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected unknown command error")
	}
	if !strings.Contains(err.Error(), `unknown command "bogus"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	srcDB := filepath.Join(tmp, "src.db")
	dstDB := filepath.Join(tmp, "dst.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	outPath := filepath.Join(tmp, "export", "snapshot.json")
	seedBoard(t, srcDB)

	ctx := context.Background()
	if err := run(ctx, []string{"--db", srcDB, "--config", cfgPath, "export", "--out", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion || len(snap.Sections) != 1 || len(snap.ManualTasks) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	if err := run(ctx, []string{"--db", dstDB, "--config", cfgPath, "import", "--in", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}

	var out strings.Builder
	if err := run(ctx, []string{"--db", dstDB, "--config", cfgPath, "rows", "--all"}, &out, io.Discard); err != nil {
		t.Fatalf("run(rows) error = %v", err)
	}
	tree := out.String()
	for _, want := range []string{"Foto", "Scout venue", "+ add task"} {
		if !strings.Contains(tree, want) {
			t.Fatalf("expected row tree to contain %q, got %q", want, tree)
		}
	}
}

func TestRunExportToStdoutAndImportErrors(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "stageboard.db")
	cfgPath := filepath.Join(tmp, "missing.toml")
	seedBoard(t, dbPath)

	var out strings.Builder
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "export"}, &out, io.Discard); err != nil {
		t.Fatalf("run(export stdout) error = %v", err)
	}
	if !strings.Contains(out.String(), "\"version\"") {
		t.Fatalf("expected snapshot json on stdout, got %q", out.String())
	}

	err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected missing --in error, got %v", err)
	}

	badIn := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(badIn, []byte("{"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err = run(context.Background(), []string{"--db", dbPath, "--config", cfgPath, "import", "--in", badIn}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "decode snapshot json") {
		t.Fatalf("expected import decode error, got %v", err)
	}
}

func TestRunRowsJSON(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "stageboard.db")
	seedBoard(t, dbPath)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"--db", dbPath, "--config", filepath.Join(tmp, "missing.toml"), "rows", "--json"}, &out, io.Discard); err != nil {
		t.Fatalf("run(rows --json) error = %v", err)
	}
	var rows common.BoardRows
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(rows.Rows) != 1 || rows.Rows[0].Name != "Foto" {
		t.Fatalf("expected the collapsed section row only, got %#v", rows.Rows)
	}
	if rows.TotalRows <= len(rows.Rows) {
		t.Fatalf("expected total rows beyond the collapsed view, got %d", rows.TotalRows)
	}
}

func TestRunConfigAndDBEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	cfgPath := filepath.Join(tmp, "env.toml")
	cfgContent := "[database]\npath = \"/tmp/ignore-me.db\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("STAGEBOARD_CONFIG", cfgPath)
	t.Setenv("STAGEBOARD_DB_PATH", dbPath)

	err := run(context.Background(), []string{"export", "--out", filepath.Join(tmp, "out.json")}, io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("run(export with env paths) error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected db created at env path, stat error %v", err)
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	err := run(context.Background(), []string{"--app", "stagex", "--dev", "paths"}, &out, io.Discard)
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "app: stagex") {
		t.Fatalf("expected app name in paths output, got %q", output)
	}
	if !strings.Contains(output, "dev_mode: true") {
		t.Fatalf("expected dev mode in paths output, got %q", output)
	}
}

func TestRunServeResolvesEndpoints(t *testing.T) {
	var (
		gotCfg  server.Config
		gotDeps server.Dependencies
	)
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })
	serveCommandRunner = func(_ context.Context, cfg server.Config, deps server.Dependencies) error {
		gotCfg = cfg
		gotDeps = deps
		return nil
	}

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "serve.toml")
	if err := os.WriteFile(cfgPath, []byte("[server]\nws_endpoint = \"/feed\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	args := []string{"--db", filepath.Join(tmp, "stageboard.db"), "--config", cfgPath, "serve", "--http", "127.0.0.1:9999"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}

	if gotCfg.HTTPBind != "127.0.0.1:9999" {
		t.Fatalf("expected flag bind, got %q", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v1" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("expected config default endpoints, got %#v", gotCfg)
	}
	if gotCfg.WSEndpoint != "/feed" {
		t.Fatalf("expected websocket endpoint from config, got %q", gotCfg.WSEndpoint)
	}
	if gotCfg.ServerName != "stageboard" || gotCfg.ServerVersion != "dev" {
		t.Fatalf("unexpected server identity %q %q", gotCfg.ServerName, gotCfg.ServerVersion)
	}
	if gotDeps.Board == nil || gotDeps.Notifier == nil || gotDeps.Logger == nil {
		t.Fatalf("expected wired dependencies, got %#v", gotDeps)
	}
}

func TestRunServeError(t *testing.T) {
	origRunner := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = origRunner })
	serveCommandRunner = func(context.Context, server.Config, server.Dependencies) error {
		return fmt.Errorf("listen failed")
	}

	tmp := t.TempDir()
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "stageboard.db"), "--config", filepath.Join(tmp, "missing.toml"), "serve"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "run serve command") {
		t.Fatalf("expected wrapped serve error, got %v", err)
	}
}

// writeDevLogConfig enables the dev-file sink under logDir.
func writeDevLogConfig(t *testing.T, path, logDir string) {
	t.Helper()
	content := fmt.Sprintf("[logging]\nlevel = \"debug\"\n\n[logging.dev_file]\nenabled = true\ndir = %q\n", logDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// readSingleLog returns the contents of the only .log file in dir.
func readSingleLog(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		return string(content)
	}
	t.Fatalf("expected a .log file in %s, got %v", dir, entries)
	return ""
}

func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Chdir(workspace)

	cfgPath := filepath.Join(workspace, "config.toml")
	writeDevLogConfig(t, cfgPath, ".stageboard/log")
	var stderr bytes.Buffer
	args := []string{"--dev", "--db", filepath.Join(workspace, "stageboard.db"), "--config", cfgPath, "export", "--out", filepath.Join(workspace, "out.json")}
	if err := run(context.Background(), args, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	logOutput := readSingleLog(t, filepath.Join(workspace, ".stageboard", "log"))
	if !strings.Contains(logOutput, "command flow complete") {
		t.Fatalf("expected command lifecycle in log file, got %q", logOutput)
	}
	if !strings.Contains(stderr.String(), "command flow start") {
		t.Fatalf("expected console output for non-tui commands, got %q", stderr.String())
	}
}

func TestRunTUIModeWritesRuntimeLogsToFileOnly(t *testing.T) {
	stubProgram(t, fakeProgram{})

	workspace := t.TempDir()
	logDir := filepath.Join(workspace, "logs")
	cfgPath := filepath.Join(workspace, "config.toml")
	writeDevLogConfig(t, cfgPath, logDir)

	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"--dev", "--db", filepath.Join(workspace, "stageboard.db"), "--config", cfgPath}, io.Discard, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.TrimSpace(stderr.String()); got != "" {
		t.Fatalf("expected no runtime stderr output in TUI mode, got %q", got)
	}
	if logOutput := readSingleLog(t, logDir); !strings.Contains(logOutput, "starting tui program loop") {
		t.Fatalf("expected runtime log file to include TUI lifecycle entries, got %q", logOutput)
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "stageboard")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); filepath.Clean(got) != filepath.Clean(root) {
		t.Fatalf("expected workspace root %q, got %q", root, got)
	}
}

func TestDevLogFilePathResolvesAgainstWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "cmd", "stageboard")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	t.Chdir(nested)

	got, err := devLogFilePath(".stageboard/log", "stage board", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	normalize := func(p string) string {
		return strings.TrimPrefix(filepath.Clean(p), "/private")
	}
	want := filepath.Join(root, ".stageboard", "log", "stage-board-20260302.log")
	if normalize(got) != normalize(want) {
		t.Fatalf("devLogFilePath() = %q, want %q", got, want)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := map[string]string{
		"stageboard":   "stageboard",
		" a/b:c ":      "a-b-c",
		"":             "stageboard",
		"///":          "stageboard",
		"stage board2": "stage-board2",
	}
	for input, want := range cases {
		if got := sanitizeLogFileStem(input); got != want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "stageboard.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"verbose\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "stageboard.db"), "--config", cfgPath, "rows"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected invalid logging level error")
	}
	if !strings.Contains(err.Error(), "invalid logging.level") {
		t.Fatalf("expected logging level validation error, got %v", err)
	}
}

func TestRuntimeLoggerCanMuteConsoleSink(t *testing.T) {
	var console bytes.Buffer
	cfg := config.Default("/tmp/stageboard.db").Logging

	logger, err := newRuntimeLogger(&console, "stageboard", false, cfg, func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	})
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log outside dev mode, got %q", logger.DevLogPath())
	}
	if logger.Primary() == nil {
		t.Fatal("expected console sink as primary logger")
	}

	logger.Info("before")
	logger.SetConsoleEnabled(false)
	logger.Info("during")
	logger.SetConsoleEnabled(true)
	logger.Info("after")

	out := console.String()
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("expected console log to include enabled entries, got %q", out)
	}
	if strings.Contains(out, "during") {
		t.Fatalf("expected muted console log to omit 'during', got %q", out)
	}
}
